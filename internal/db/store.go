// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	lru "github.com/hashicorp/golang-lru/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/BoostyLabs/anchor/bitcoin/anchor"
	"github.com/BoostyLabs/anchor/bitcoin/anchor/index"
	"github.com/BoostyLabs/anchor/internal/models"
)

// DefaultCacheSize defines decoded messages cache size used for non-positive sizes.
const DefaultCacheSize = 4096

// Store is a SQL backed message index.
type Store struct {
	db     *gorm.DB
	cache  *lru.Cache[wire.OutPoint, *anchor.Message]
	logger *slog.Logger
	now    func() time.Time
}

var _ index.Index = (*Store)(nil)

// NewStore is a constructor for Store. Decoded payloads are cached by outpoint,
// payload of the stored message never changes.
func NewStore(db *gorm.DB, cacheSize int, logger *slog.Logger) (*Store, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	if logger == nil {
		logger = slog.Default()
	}

	cache, err := lru.New[wire.OutPoint, *anchor.Message](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("db: create cache: %w", err)
	}

	return &Store{db: db, cache: cache, logger: logger, now: time.Now}, nil
}

// Upsert stores message. Existing row keeps its payload and its block height
// if already confirmed, otherwise the height is taken from the message.
func (s *Store) Upsert(ctx context.Context, message index.IndexedMessage) error {
	row, err := s.toModel(message)
	if err != nil {
		return err
	}

	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tx_id"}, {Name: "vout"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"block_height": gorm.Expr("COALESCE("+row.TableName()+".block_height, ?)", row.BlockHeight),
		}),
	}).Create(&row)
	if result.Error != nil {
		return fmt.Errorf("db: upsert message %s:%d: %w", row.TxID, row.Vout, result.Error)
	}
	return nil
}

// IndexTransaction stores every message carried by transaction.
func (s *Store) IndexTransaction(ctx context.Context, tx *wire.MsgTx, height *int64) ([]index.IndexedMessage, error) {
	messages := index.ScanTransaction(tx, height, s.now())
	for _, message := range messages {
		if err := s.Upsert(ctx, message); err != nil {
			return nil, err
		}
	}

	return messages, nil
}

// Confirm sets block height of unconfirmed message.
func (s *Store) Confirm(ctx context.Context, txid chainhash.Hash, vout uint32, height int64) error {
	db := s.db.WithContext(ctx)
	result := db.Model(&models.Message{}).
		Where("tx_id = ? AND vout = ? AND block_height IS NULL", txid.String(), vout).
		Update("block_height", height)
	if result.Error != nil {
		return fmt.Errorf("db: confirm message %s:%d: %w", txid, vout, result.Error)
	}
	if result.RowsAffected != 0 {
		return nil
	}

	var row models.Message
	err := db.Where("tx_id = ? AND vout = ?", txid.String(), vout).Take(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %s:%d", index.ErrNotFound, txid, vout)
	case err != nil:
		return fmt.Errorf("db: confirm message %s:%d: %w", txid, vout, err)
	case row.BlockHeight == nil:
		return fmt.Errorf("db: confirm message %s:%d: row not updated", txid, vout)
	case *row.BlockHeight == height:
		return nil
	}

	return fmt.Errorf("%w: %s:%d at %d", index.ErrHeightReverted, txid, vout, *row.BlockHeight)
}

// Count returns count of stored messages.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Message{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("db: count messages: %w", err)
	}
	return count, nil
}

// Snapshot returns view running inside read-only transaction.
func (s *Store) Snapshot(ctx context.Context) (index.Snapshot, error) {
	tx := s.db.WithContext(ctx).Begin(&sql.TxOptions{ReadOnly: true})
	if tx.Error != nil {
		return nil, fmt.Errorf("db: begin snapshot: %w", tx.Error)
	}

	return &snapshot{store: s, tx: tx}, nil
}

// toModel converts message into row.
func (s *Store) toModel(message index.IndexedMessage) (models.Message, error) {
	payload, err := message.Payload()
	if err != nil {
		return models.Message{}, err
	}

	createdAt := message.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	row := models.Message{
		TxID:        message.TxID.String(),
		Vout:        message.Vout,
		TxIDPrefix:  anchor.PrefixFromHash(&message.TxID).String(),
		Kind:        uint8(message.Kind),
		Payload:     payload,
		BlockHeight: message.BlockHeight,
		CreatedAt:   createdAt.UTC(),
	}
	if parent, ok := message.CanonicalParent(); ok {
		prefix, vout := parent.TxIDPrefix.String(), uint32(parent.Vout)
		row.ParentPrefix, row.ParentVout = &prefix, &vout
	}

	return row, nil
}

// fromModel converts row into message, false if payload is not a protocol message.
func (s *Store) fromModel(row models.Message) (index.IndexedMessage, bool) {
	txid, err := chainhash.NewHashFromStr(row.TxID)
	if err != nil {
		s.logger.Warn("stored message has malformed txid", "txid", row.TxID, "error", err)
		return index.IndexedMessage{}, false
	}

	outpoint := wire.OutPoint{Hash: *txid, Index: row.Vout}
	message, ok := s.cache.Get(outpoint)
	if !ok {
		message, err = anchor.Decode(row.Payload)
		if err != nil {
			s.logger.Debug("stored payload skipped", "outpoint", outpoint.String(), "error", err)
			return index.IndexedMessage{}, false
		}

		s.cache.Add(outpoint, message)
	}

	return index.NewIndexedMessage(*txid, row.Vout, message, row.BlockHeight, row.CreatedAt), true
}

// snapshot is a Store view inside read-only transaction.
type snapshot struct {
	store *Store
	tx    *gorm.DB
}

// Message returns message by its outpoint.
func (s *snapshot) Message(ctx context.Context, txid chainhash.Hash, vout uint32) (*index.IndexedMessage, error) {
	var row models.Message
	err := s.tx.WithContext(ctx).Where("tx_id = ? AND vout = ?", txid.String(), vout).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, index.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db: get message %s:%d: %w", txid, vout, err)
	}

	message, ok := s.store.fromModel(row)
	if !ok {
		return nil, index.ErrNotFound
	}

	return &message, nil
}

// MessagesAt returns messages which txid prefix and vout match the anchors.
func (s *snapshot) MessagesAt(ctx context.Context, anchors []anchor.Anchor) (map[anchor.Anchor][]index.IndexedMessage, error) {
	rows, err := s.find(ctx, "tx_id_prefix", "vout", anchors)
	if err != nil {
		return nil, fmt.Errorf("db: messages at anchors: %w", err)
	}

	result := make(map[anchor.Anchor][]index.IndexedMessage, len(anchors))
	for _, row := range rows {
		message, ok := s.store.fromModel(row)
		if !ok {
			continue
		}

		if ref, ok := message.Anchor(); ok {
			result[ref] = append(result[ref], message)
		}
	}

	return result, nil
}

// Replies returns messages which canonical parent equals the anchors, in creation order.
func (s *snapshot) Replies(ctx context.Context, anchors []anchor.Anchor) (map[anchor.Anchor][]index.IndexedMessage, error) {
	rows, err := s.find(ctx, "parent_prefix", "parent_vout", anchors)
	if err != nil {
		return nil, fmt.Errorf("db: replies to anchors: %w", err)
	}

	result := make(map[anchor.Anchor][]index.IndexedMessage, len(anchors))
	for _, row := range rows {
		message, ok := s.store.fromModel(row)
		if !ok {
			continue
		}

		if parent, ok := message.CanonicalParent(); ok {
			result[parent] = append(result[parent], message)
		}
	}

	return result, nil
}

// Close ends read-only transaction.
func (s *snapshot) Close() error {
	if err := s.tx.Rollback().Error; err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("db: close snapshot: %w", err)
	}
	return nil
}

// find returns rows which (prefix, vout) columns pair matches any of the anchors, in creation order.
func (s *snapshot) find(ctx context.Context, prefixColumn, voutColumn string, anchors []anchor.Anchor) ([]models.Message, error) {
	if len(anchors) == 0 {
		return nil, nil
	}

	conditions := make([]string, 0, len(anchors))
	args := make([]interface{}, 0, 2*len(anchors))
	for _, ref := range anchors {
		conditions = append(conditions, "("+prefixColumn+" = ? AND "+voutColumn+" = ?)")
		args = append(args, ref.TxIDPrefix.String(), uint32(ref.Vout))
	}

	var rows []models.Message
	err := s.tx.WithContext(ctx).
		Where(strings.Join(conditions, " OR "), args...).
		Order("created_at, tx_id, vout").
		Find(&rows).Error

	return rows, err
}
