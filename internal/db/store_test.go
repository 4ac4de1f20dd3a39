// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package db_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/BoostyLabs/anchor/bitcoin/anchor"
	"github.com/BoostyLabs/anchor/bitcoin/anchor/carriers"
	"github.com/BoostyLabs/anchor/bitcoin/anchor/index"
	"github.com/BoostyLabs/anchor/bitcoin/anchor/resolver"
	"github.com/BoostyLabs/anchor/internal/db"
	"github.com/BoostyLabs/anchor/internal/models"
)

var baseTime = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := db.Open(db.DriverSQLite, ":memory:")
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(conn))
	t.Cleanup(func() { _ = db.Close(conn) })

	return conn
}

func newTestStore(t *testing.T) *db.Store {
	t.Helper()

	store, err := db.NewStore(openTestDB(t), 16, nil)
	require.NoError(t, err)

	return store
}

func hashWithPrefix(prefix byte, tail byte) chainhash.Hash {
	var hash chainhash.Hash
	for i := 0; i < anchor.PrefixSize; i++ {
		hash[i] = prefix
	}
	hash[anchor.PrefixSize] = tail

	return hash
}

func textMessage(txid chainhash.Hash, vout uint32, seq int, body string, anchors ...anchor.Anchor) index.IndexedMessage {
	return index.IndexedMessage{
		TxID:      txid,
		Vout:      vout,
		Kind:      anchor.KindText,
		Anchors:   anchors,
		Body:      []byte(body),
		CreatedAt: baseTime.Add(time.Duration(seq) * time.Second),
	}
}

func TestOpen(t *testing.T) {
	_, err := db.Open("postgres", "dsn")
	require.ErrorIs(t, err, db.ErrUnsupportedDriver)

	conn := openTestDB(t)
	require.True(t, conn.Migrator().HasTable(&models.Message{}))
	require.True(t, conn.Migrator().HasIndex(&models.Message{}, "idx_anchor_messages_anchor"))
	require.True(t, conn.Migrator().HasIndex(&models.Message{}, "idx_anchor_messages_parent"))
}

func TestStore(t *testing.T) {
	ctx := context.Background()

	var (
		rootHash  = hashWithPrefix(0x01, 0x01)
		twinHash  = hashWithPrefix(0x01, 0x02)
		replyHash = hashWithPrefix(0x02, 0x01)
		otherHash = hashWithPrefix(0x03, 0x01)
		rootRef   = anchor.NewAnchorFromHash(&rootHash, 0)
	)

	t.Run("upsert and lookup", func(t *testing.T) {
		store := newTestStore(t)
		require.NoError(t, store.Upsert(ctx, textMessage(rootHash, 0, 0, "root")))
		require.NoError(t, store.Upsert(ctx, textMessage(otherHash, 1, 2, "second", rootRef)))
		require.NoError(t, store.Upsert(ctx, textMessage(replyHash, 0, 1, "first", rootRef)))

		count, err := store.Count(ctx)
		require.NoError(t, err)
		require.EqualValues(t, 3, count)

		snapshot, err := store.Snapshot(ctx)
		require.NoError(t, err)
		defer func() { require.NoError(t, snapshot.Close()) }()

		message, err := snapshot.Message(ctx, rootHash, 0)
		require.NoError(t, err)
		require.Equal(t, []byte("root"), message.Body)
		require.Equal(t, anchor.KindText, message.Kind)
		require.False(t, message.IsConfirmed())

		_, err = snapshot.Message(ctx, rootHash, 1)
		require.ErrorIs(t, err, index.ErrNotFound)

		replies, err := snapshot.Replies(ctx, []anchor.Anchor{rootRef, anchor.NewAnchorFromHash(&otherHash, 0)})
		require.NoError(t, err)
		require.Len(t, replies, 1)
		require.Len(t, replies[rootRef], 2)
		require.Equal(t, []byte("first"), replies[rootRef][0].Body)
		require.Equal(t, []byte("second"), replies[rootRef][1].Body)
		require.Equal(t, []anchor.Anchor{rootRef}, replies[rootRef][0].Anchors)
	})

	t.Run("messages at prefix", func(t *testing.T) {
		store := newTestStore(t)
		require.NoError(t, store.Upsert(ctx, textMessage(rootHash, 0, 0, "root")))
		require.NoError(t, store.Upsert(ctx, textMessage(twinHash, 0, 1, "twin")))
		require.NoError(t, store.Upsert(ctx, textMessage(twinHash, 1, 2, "twin second output")))

		snapshot, err := store.Snapshot(ctx)
		require.NoError(t, err)
		defer func() { require.NoError(t, snapshot.Close()) }()

		missing := anchor.NewAnchorFromHash(&otherHash, 0)
		found, err := snapshot.MessagesAt(ctx, []anchor.Anchor{rootRef, missing})
		require.NoError(t, err)
		require.Len(t, found[rootRef], 2)
		require.Equal(t, rootHash, found[rootRef][0].TxID)
		require.Equal(t, twinHash, found[rootRef][1].TxID)
		require.Empty(t, found[missing])

		found, err = snapshot.MessagesAt(ctx, nil)
		require.NoError(t, err)
		require.Empty(t, found)
	})

	t.Run("confirm", func(t *testing.T) {
		store := newTestStore(t)
		require.NoError(t, store.Upsert(ctx, textMessage(rootHash, 0, 0, "root")))

		require.NoError(t, store.Confirm(ctx, rootHash, 0, 100))
		require.NoError(t, store.Confirm(ctx, rootHash, 0, 100))
		require.ErrorIs(t, store.Confirm(ctx, rootHash, 0, 101), index.ErrHeightReverted)
		require.ErrorIs(t, store.Confirm(ctx, otherHash, 0, 100), index.ErrNotFound)

		// repeated upsert neither replaces payload nor height.
		unconfirmed := textMessage(rootHash, 0, 5, "replaced")
		require.NoError(t, store.Upsert(ctx, unconfirmed))

		snapshot, err := store.Snapshot(ctx)
		require.NoError(t, err)
		message, err := snapshot.Message(ctx, rootHash, 0)
		require.NoError(t, err)
		require.NoError(t, snapshot.Close())

		require.Equal(t, []byte("root"), message.Body)
		require.True(t, message.IsConfirmed())
		require.EqualValues(t, 100, *message.BlockHeight)
	})

	t.Run("upsert sets height of unconfirmed", func(t *testing.T) {
		store := newTestStore(t)
		require.NoError(t, store.Upsert(ctx, textMessage(rootHash, 0, 0, "root")))

		height := int64(840000)
		confirmed := textMessage(rootHash, 0, 0, "root")
		confirmed.BlockHeight = &height
		require.NoError(t, store.Upsert(ctx, confirmed))

		snapshot, err := store.Snapshot(ctx)
		require.NoError(t, err)
		defer func() { require.NoError(t, snapshot.Close()) }()

		message, err := snapshot.Message(ctx, rootHash, 0)
		require.NoError(t, err)
		require.EqualValues(t, height, *message.BlockHeight)
	})

	t.Run("undecodable payload skipped", func(t *testing.T) {
		conn := openTestDB(t)
		store, err := db.NewStore(conn, 0, nil)
		require.NoError(t, err)

		require.NoError(t, conn.Create(&models.Message{
			TxID:       rootHash.String(),
			Vout:       0,
			TxIDPrefix: anchor.PrefixFromHash(&rootHash).String(),
			Payload:    []byte("garbage"),
			CreatedAt:  baseTime,
		}).Error)

		snapshot, err := store.Snapshot(ctx)
		require.NoError(t, err)
		defer func() { require.NoError(t, snapshot.Close()) }()

		_, err = snapshot.Message(ctx, rootHash, 0)
		require.ErrorIs(t, err, index.ErrNotFound)

		found, err := snapshot.MessagesAt(ctx, []anchor.Anchor{rootRef})
		require.NoError(t, err)
		require.Empty(t, found[rootRef])
	})

	t.Run("invalid message rejected", func(t *testing.T) {
		store := newTestStore(t)

		anchors := make([]anchor.Anchor, anchor.MaxAnchors+1)
		err := store.Upsert(ctx, textMessage(rootHash, 0, 0, "root", anchors...))
		require.ErrorIs(t, err, anchor.ErrTooManyAnchors)
	})
}

func TestStoreSnapshotIsolation(t *testing.T) {
	ctx := context.Background()

	conn, err := db.Open(db.DriverSQLite, filepath.Join(t.TempDir(), "anchor.db"))
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(conn))
	t.Cleanup(func() { _ = db.Close(conn) })

	var mode string
	require.NoError(t, conn.Raw("PRAGMA journal_mode").Scan(&mode).Error)
	require.Equal(t, "wal", mode)

	store, err := db.NewStore(conn, 16, nil)
	require.NoError(t, err)

	var (
		rootHash  = hashWithPrefix(0x01, 0x01)
		replyHash = hashWithPrefix(0x02, 0x01)
		rootRef   = anchor.NewAnchorFromHash(&rootHash, 0)
	)
	require.NoError(t, store.Upsert(ctx, textMessage(rootHash, 0, 0, "root")))

	snapshot, err := store.Snapshot(ctx)
	require.NoError(t, err)
	defer func() { require.NoError(t, snapshot.Close()) }()

	replies, err := snapshot.Replies(ctx, []anchor.Anchor{rootRef})
	require.NoError(t, err)
	require.Empty(t, replies)

	writeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, store.Upsert(writeCtx, textMessage(replyHash, 0, 1, "reply", rootRef)))

	replies, err = snapshot.Replies(ctx, []anchor.Anchor{rootRef})
	require.NoError(t, err)
	require.Empty(t, replies)
	_, err = snapshot.Message(ctx, replyHash, 0)
	require.ErrorIs(t, err, index.ErrNotFound)

	fresh, err := store.Snapshot(ctx)
	require.NoError(t, err)
	defer func() { require.NoError(t, fresh.Close()) }()

	replies, err = fresh.Replies(ctx, []anchor.Anchor{rootRef})
	require.NoError(t, err)
	require.Len(t, replies[rootRef], 1)
	require.Equal(t, []byte("reply"), replies[rootRef][0].Body)
}

func TestStoreIndexTransaction(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	message := anchor.Message{Kind: anchor.KindText, Body: []byte("indexed")}
	payload, err := message.Encode()
	require.NoError(t, err)
	script, err := carriers.OpReturnScript(payload)
	require.NoError(t, err)

	tx := wire.NewMsgTx(2)
	tx.AddTxOut(wire.NewTxOut(0, script))

	messages, err := store.IndexTransaction(ctx, tx, nil)
	require.NoError(t, err)
	require.Len(t, messages, 1)

	empty := wire.NewMsgTx(2)
	messages, err = store.IndexTransaction(ctx, empty, nil)
	require.NoError(t, err)
	require.Empty(t, messages)

	snapshot, err := store.Snapshot(ctx)
	require.NoError(t, err)
	defer func() { require.NoError(t, snapshot.Close()) }()

	indexed, err := snapshot.Message(ctx, tx.TxHash(), 0)
	require.NoError(t, err)
	require.Equal(t, []byte("indexed"), indexed.Body)
}

func TestStoreWithResolver(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	var (
		rootHash  = hashWithPrefix(0x01, 0x01)
		replyHash = hashWithPrefix(0x02, 0x01)
		deepHash  = hashWithPrefix(0x03, 0x01)
		rootRef   = anchor.NewAnchorFromHash(&rootHash, 0)
		replyRef  = anchor.NewAnchorFromHash(&replyHash, 0)
	)
	require.NoError(t, store.Upsert(ctx, textMessage(rootHash, 0, 0, "root")))
	require.NoError(t, store.Upsert(ctx, textMessage(replyHash, 0, 1, "reply", rootRef)))
	require.NoError(t, store.Upsert(ctx, textMessage(deepHash, 0, 2, "deep", replyRef)))

	r := resolver.New(store)

	res, err := r.ResolveAnchor(ctx, rootRef.TxIDPrefix, 0)
	require.NoError(t, err)
	require.Equal(t, resolver.Resolved{TxID: rootHash}, res)

	thread, err := r.BuildThread(ctx, rootHash, 0, resolver.Budget{})
	require.NoError(t, err)
	require.False(t, thread.Truncated)
	require.Equal(t, 3, thread.TotalMessages())
	require.Len(t, thread.Root.Replies, 1)
	require.Equal(t, []byte("deep"), thread.Root.Replies[0].Replies[0].Message.Body)
}
