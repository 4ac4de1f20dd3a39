// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package index

import (
	"context"
	"errors"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/BoostyLabs/anchor/bitcoin/anchor"
)

// ErrNotFound defines that message is not indexed.
var ErrNotFound = errors.New("message not found")

// ErrDuplicateMessage defines that message with the same outpoint is already indexed.
var ErrDuplicateMessage = errors.New("message already indexed")

// ErrHeightReverted defines attempt to change or unset block height of confirmed message.
var ErrHeightReverted = errors.New("block height can only be set once")

// ErrSnapshotClosed defines that snapshot is used after Close.
var ErrSnapshotClosed = errors.New("snapshot is closed")

// IndexedMessage describes decoded message found in the transaction output.
type IndexedMessage struct {
	TxID        chainhash.Hash
	Vout        uint32
	BlockHeight *int64 // nil for unconfirmed.
	Kind        anchor.Kind
	Anchors     []anchor.Anchor
	Body        []byte
	CreatedAt   time.Time
}

// NewIndexedMessage is a constructor for IndexedMessage.
func NewIndexedMessage(txid chainhash.Hash, vout uint32, message *anchor.Message, height *int64, createdAt time.Time) IndexedMessage {
	return IndexedMessage{
		TxID:        txid,
		Vout:        vout,
		BlockHeight: height,
		Kind:        message.Kind,
		Anchors:     message.Anchors,
		Body:        message.Body,
		CreatedAt:   createdAt,
	}
}

// FromPayload decodes payload into IndexedMessage.
func FromPayload(txid chainhash.Hash, vout uint32, payload []byte, height *int64, createdAt time.Time) (IndexedMessage, error) {
	message, err := anchor.Decode(payload)
	if err != nil {
		return IndexedMessage{}, err
	}

	return NewIndexedMessage(txid, vout, message, height, createdAt), nil
}

// Message returns protocol message.
func (m *IndexedMessage) Message() *anchor.Message {
	return &anchor.Message{Kind: m.Kind, Anchors: m.Anchors, Body: m.Body}
}

// Payload returns encoded protocol message.
func (m *IndexedMessage) Payload() ([]byte, error) {
	return m.Message().Encode()
}

// Anchor returns anchor referencing this message, false if output index does not fit into anchor.
func (m *IndexedMessage) Anchor() (anchor.Anchor, bool) {
	if m.Vout > 0xff {
		return anchor.Anchor{}, false
	}

	return anchor.NewAnchorFromHash(&m.TxID, byte(m.Vout)), true
}

// CanonicalParent returns anchor at index 0, false for root messages.
func (m *IndexedMessage) CanonicalParent() (anchor.Anchor, bool) {
	if len(m.Anchors) == 0 {
		return anchor.Anchor{}, false
	}

	return m.Anchors[0], true
}

// IsConfirmed returns true if message is included into a block.
func (m *IndexedMessage) IsConfirmed() bool {
	return m.BlockHeight != nil
}

// Index provides point in time views over indexed messages.
type Index interface {
	// Snapshot returns consistent view, caller must close it.
	Snapshot(ctx context.Context) (Snapshot, error)
}

// Snapshot is a consistent point in time read view of the index.
type Snapshot interface {
	// Message returns message by its outpoint, ErrNotFound if it is not indexed.
	Message(ctx context.Context, txid chainhash.Hash, vout uint32) (*IndexedMessage, error)
	// MessagesAt returns messages which txid prefix and vout match the anchors.
	MessagesAt(ctx context.Context, anchors []anchor.Anchor) (map[anchor.Anchor][]IndexedMessage, error)
	// Replies returns messages which canonical parent equals the anchors, in creation order.
	Replies(ctx context.Context, anchors []anchor.Anchor) (map[anchor.Anchor][]IndexedMessage, error)
	// Close releases snapshot.
	Close() error
}
