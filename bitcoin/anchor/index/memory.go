// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package index

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/BoostyLabs/anchor/bitcoin/anchor"
)

// record describes indexed message with versions of its changes.
type record struct {
	message     IndexedMessage
	height      int64
	addedAt     uint64
	confirmedAt uint64 // 0 if not confirmed.
}

// Memory is an append-only in-memory index.
// Every change bumps version, snapshots read only changes made up to their version.
type Memory struct {
	mu      sync.RWMutex
	version uint64
	records []*record

	byOutpoint map[wire.OutPoint]int
	byAnchor   map[anchor.Anchor][]int
	byParent   map[anchor.Anchor][]int

	now func() time.Time
}

var _ Index = (*Memory)(nil)

// NewMemory is a constructor for Memory.
func NewMemory() *Memory {
	return &Memory{
		byOutpoint: make(map[wire.OutPoint]int),
		byAnchor:   make(map[anchor.Anchor][]int),
		byParent:   make(map[anchor.Anchor][]int),
		now:        time.Now,
	}
}

// Add indexes message. CreatedAt is set to current time if empty.
func (m *Memory) Add(ctx context.Context, message IndexedMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := message.Payload(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	outpoint := wire.OutPoint{Hash: message.TxID, Index: message.Vout}
	if _, ok := m.byOutpoint[outpoint]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateMessage, outpoint)
	}

	if message.CreatedAt.IsZero() {
		message.CreatedAt = m.now()
	}

	m.version++
	rec := &record{message: message, addedAt: m.version}
	if message.BlockHeight != nil {
		rec.height, rec.confirmedAt = *message.BlockHeight, m.version
		rec.message.BlockHeight = nil
	}

	idx := len(m.records)
	m.records = append(m.records, rec)
	m.byOutpoint[outpoint] = idx
	if ref, ok := message.Anchor(); ok {
		m.byAnchor[ref] = append(m.byAnchor[ref], idx)
	}
	if parent, ok := message.CanonicalParent(); ok {
		m.byParent[parent] = append(m.byParent[parent], idx)
	}

	return nil
}

// Confirm sets block height of unconfirmed message.
func (m *Memory) Confirm(ctx context.Context, txid chainhash.Hash, vout uint32, height int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	outpoint := wire.OutPoint{Hash: txid, Index: vout}
	idx, ok := m.byOutpoint[outpoint]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, outpoint)
	}

	rec := m.records[idx]
	if rec.confirmedAt != 0 {
		if rec.height == height {
			return nil
		}

		return fmt.Errorf("%w: %s at %d", ErrHeightReverted, outpoint, rec.height)
	}

	m.version++
	rec.height, rec.confirmedAt = height, m.version

	return nil
}

// Len returns count of indexed messages.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.records)
}

// Snapshot returns view over messages indexed so far.
func (m *Memory) Snapshot(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	return &memorySnapshot{index: m, version: m.version}, nil
}

// memorySnapshot is a Memory view fixed on version.
type memorySnapshot struct {
	index   *Memory
	version uint64
	closed  atomic.Bool
}

// Message returns message by its outpoint.
func (s *memorySnapshot) Message(ctx context.Context, txid chainhash.Hash, vout uint32) (*IndexedMessage, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	s.index.mu.RLock()
	defer s.index.mu.RUnlock()

	idx, ok := s.index.byOutpoint[wire.OutPoint{Hash: txid, Index: vout}]
	if !ok {
		return nil, ErrNotFound
	}

	message, ok := s.visible(idx)
	if !ok {
		return nil, ErrNotFound
	}

	return &message, nil
}

// MessagesAt returns messages which txid prefix and vout match the anchors.
func (s *memorySnapshot) MessagesAt(ctx context.Context, anchors []anchor.Anchor) (map[anchor.Anchor][]IndexedMessage, error) {
	return s.lookup(ctx, anchors, s.index.byAnchor)
}

// Replies returns messages which canonical parent equals the anchors.
func (s *memorySnapshot) Replies(ctx context.Context, anchors []anchor.Anchor) (map[anchor.Anchor][]IndexedMessage, error) {
	return s.lookup(ctx, anchors, s.index.byParent)
}

// Close releases snapshot.
func (s *memorySnapshot) Close() error {
	s.closed.Store(true)
	return nil
}

// lookup returns visible messages for each anchor from provided secondary index.
func (s *memorySnapshot) lookup(ctx context.Context, anchors []anchor.Anchor, secondary map[anchor.Anchor][]int) (map[anchor.Anchor][]IndexedMessage, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	s.index.mu.RLock()
	defer s.index.mu.RUnlock()

	result := make(map[anchor.Anchor][]IndexedMessage, len(anchors))
	for _, ref := range anchors {
		if _, ok := result[ref]; ok {
			continue
		}

		var messages []IndexedMessage
		for _, idx := range secondary[ref] {
			message, ok := s.visible(idx)
			if !ok {
				// records are appended in version order.
				break
			}

			messages = append(messages, message)
		}
		if len(messages) != 0 {
			result[ref] = messages
		}
	}

	return result, nil
}

// visible returns message state as of snapshot version. Must be called under read lock.
func (s *memorySnapshot) visible(idx int) (IndexedMessage, bool) {
	rec := s.index.records[idx]
	if rec.addedAt > s.version {
		return IndexedMessage{}, false
	}

	message := rec.message
	if rec.confirmedAt != 0 && rec.confirmedAt <= s.version {
		height := rec.height
		message.BlockHeight = &height
	}

	return message, true
}

// check returns error if snapshot is closed or context is done.
func (s *memorySnapshot) check(ctx context.Context) error {
	if s.closed.Load() {
		return ErrSnapshotClosed
	}

	return ctx.Err()
}
