// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package index_test

import (
	"context"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"

	"github.com/BoostyLabs/anchor/bitcoin/anchor"
	"github.com/BoostyLabs/anchor/bitcoin/anchor/index"
)

// hashWithPrefix returns hash which internal bytes start with 8 bytes of prefix followed by tail.
func hashWithPrefix(prefix byte, tail byte) chainhash.Hash {
	var hash chainhash.Hash
	for i := 0; i < anchor.PrefixSize; i++ {
		hash[i] = prefix
	}
	hash[anchor.PrefixSize] = tail

	return hash
}

func textMessage(txid chainhash.Hash, vout uint32, body string, anchors ...anchor.Anchor) index.IndexedMessage {
	return index.IndexedMessage{
		TxID:    txid,
		Vout:    vout,
		Kind:    anchor.KindText,
		Anchors: anchors,
		Body:    []byte(body),
	}
}

func TestMemory(t *testing.T) {
	ctx := context.Background()

	var (
		rootHash  = hashWithPrefix(0x01, 0x01)
		twinHash  = hashWithPrefix(0x01, 0x02)
		replyHash = hashWithPrefix(0x02, 0x01)
		otherHash = hashWithPrefix(0x03, 0x01)
		rootRef   = anchor.NewAnchorFromHash(&rootHash, 0)
	)

	t.Run("add and lookup", func(t *testing.T) {
		memory := index.NewMemory()
		require.NoError(t, memory.Add(ctx, textMessage(rootHash, 0, "root")))
		require.NoError(t, memory.Add(ctx, textMessage(replyHash, 0, "first", rootRef)))
		require.NoError(t, memory.Add(ctx, textMessage(otherHash, 1, "second", rootRef)))
		require.Equal(t, 3, memory.Len())

		err := memory.Add(ctx, textMessage(rootHash, 0, "again"))
		require.ErrorIs(t, err, index.ErrDuplicateMessage)

		snapshot, err := memory.Snapshot(ctx)
		require.NoError(t, err)
		defer func() { require.NoError(t, snapshot.Close()) }()

		message, err := snapshot.Message(ctx, rootHash, 0)
		require.NoError(t, err)
		require.Equal(t, []byte("root"), message.Body)
		require.False(t, message.IsConfirmed())
		require.False(t, message.CreatedAt.IsZero())

		_, err = snapshot.Message(ctx, rootHash, 1)
		require.ErrorIs(t, err, index.ErrNotFound)

		replies, err := snapshot.Replies(ctx, []anchor.Anchor{rootRef, anchor.NewAnchorFromHash(&otherHash, 0)})
		require.NoError(t, err)
		require.Len(t, replies, 1)
		require.Len(t, replies[rootRef], 2)
		require.Equal(t, []byte("first"), replies[rootRef][0].Body)
		require.Equal(t, []byte("second"), replies[rootRef][1].Body)
	})

	t.Run("prefix collision", func(t *testing.T) {
		memory := index.NewMemory()
		require.NoError(t, memory.Add(ctx, textMessage(rootHash, 0, "root")))
		require.NoError(t, memory.Add(ctx, textMessage(twinHash, 0, "twin")))
		require.NoError(t, memory.Add(ctx, textMessage(twinHash, 1, "other vout")))

		snapshot, err := memory.Snapshot(ctx)
		require.NoError(t, err)

		messages, err := snapshot.MessagesAt(ctx, []anchor.Anchor{rootRef, rootRef})
		require.NoError(t, err)
		require.Len(t, messages[rootRef], 2)
		require.Equal(t, rootHash, messages[rootRef][0].TxID)
		require.Equal(t, twinHash, messages[rootRef][1].TxID)
	})

	t.Run("confirm", func(t *testing.T) {
		memory := index.NewMemory()
		require.NoError(t, memory.Add(ctx, textMessage(rootHash, 0, "root")))

		require.NoError(t, memory.Confirm(ctx, rootHash, 0, 100))
		require.NoError(t, memory.Confirm(ctx, rootHash, 0, 100))
		require.ErrorIs(t, memory.Confirm(ctx, rootHash, 0, 101), index.ErrHeightReverted)
		require.ErrorIs(t, memory.Confirm(ctx, replyHash, 0, 100), index.ErrNotFound)

		height := int64(7)
		confirmed := textMessage(replyHash, 0, "confirmed")
		confirmed.BlockHeight = &height
		require.NoError(t, memory.Add(ctx, confirmed))
		require.ErrorIs(t, memory.Confirm(ctx, replyHash, 0, 8), index.ErrHeightReverted)

		snapshot, err := memory.Snapshot(ctx)
		require.NoError(t, err)

		message, err := snapshot.Message(ctx, rootHash, 0)
		require.NoError(t, err)
		require.EqualValues(t, 100, *message.BlockHeight)

		message, err = snapshot.Message(ctx, replyHash, 0)
		require.NoError(t, err)
		require.EqualValues(t, 7, *message.BlockHeight)
	})

	t.Run("snapshot isolation", func(t *testing.T) {
		memory := index.NewMemory()
		require.NoError(t, memory.Add(ctx, textMessage(rootHash, 0, "root")))

		before, err := memory.Snapshot(ctx)
		require.NoError(t, err)

		require.NoError(t, memory.Add(ctx, textMessage(replyHash, 0, "reply", rootRef)))
		require.NoError(t, memory.Confirm(ctx, rootHash, 0, 10))

		message, err := before.Message(ctx, rootHash, 0)
		require.NoError(t, err)
		require.Nil(t, message.BlockHeight)

		_, err = before.Message(ctx, replyHash, 0)
		require.ErrorIs(t, err, index.ErrNotFound)

		replies, err := before.Replies(ctx, []anchor.Anchor{rootRef})
		require.NoError(t, err)
		require.Empty(t, replies)

		after, err := memory.Snapshot(ctx)
		require.NoError(t, err)

		message, err = after.Message(ctx, rootHash, 0)
		require.NoError(t, err)
		require.EqualValues(t, 10, *message.BlockHeight)

		replies, err = after.Replies(ctx, []anchor.Anchor{rootRef})
		require.NoError(t, err)
		require.Len(t, replies[rootRef], 1)
	})

	t.Run("invalid usage", func(t *testing.T) {
		memory := index.NewMemory()

		tooManyAnchors := textMessage(rootHash, 0, "root", make([]anchor.Anchor, anchor.MaxAnchors+1)...)
		require.ErrorIs(t, memory.Add(ctx, tooManyAnchors), anchor.ErrTooManyAnchors)

		snapshot, err := memory.Snapshot(ctx)
		require.NoError(t, err)
		require.NoError(t, snapshot.Close())

		_, err = snapshot.MessagesAt(ctx, []anchor.Anchor{rootRef})
		require.ErrorIs(t, err, index.ErrSnapshotClosed)

		canceled, cancel := context.WithCancel(ctx)
		cancel()
		_, err = memory.Snapshot(canceled)
		require.ErrorIs(t, err, context.Canceled)
		require.ErrorIs(t, memory.Add(canceled, textMessage(rootHash, 0, "root")), context.Canceled)
	})
}

func TestIndexedMessage(t *testing.T) {
	hash := hashWithPrefix(0x05, 0x06)
	parent := anchor.NewAnchorFromHash(&hash, 3)
	message := &anchor.Message{Kind: anchor.KindState, Anchors: []anchor.Anchor{parent}, Body: []byte("on")}

	payload, err := message.Encode()
	require.NoError(t, err)

	now := time.Now()
	indexed, err := index.FromPayload(hash, 300, payload, nil, now)
	require.NoError(t, err)
	require.Equal(t, message, indexed.Message())
	require.Equal(t, now, indexed.CreatedAt)

	_, ok := indexed.Anchor()
	require.False(t, ok)

	got, ok := indexed.CanonicalParent()
	require.True(t, ok)
	require.Equal(t, parent, got)

	encoded, err := indexed.Payload()
	require.NoError(t, err)
	require.Equal(t, payload, encoded)

	_, err = index.FromPayload(hash, 0, []byte{0x01}, nil, now)
	require.ErrorIs(t, err, anchor.ErrPayloadTooShort)
}
