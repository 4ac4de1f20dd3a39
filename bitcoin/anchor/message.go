// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package anchor

import (
	"bytes"
	"errors"
	"fmt"
)

// ErrPayloadTooShort defines that payload is shorter than message header.
var ErrPayloadTooShort = errors.New("payload too short")

// ErrInvalidMagic defines that payload does not start with protocol magic.
var ErrInvalidMagic = errors.New("invalid magic")

// ErrTruncatedAnchors defines that payload ends before all declared anchors.
var ErrTruncatedAnchors = errors.New("truncated anchors")

// ErrTooManyAnchors defines that anchors count does not fit into the count byte.
var ErrTooManyAnchors = errors.New("too many anchors")

// Message describes ANCHOR protocol message.
//
//	Layout
//	┌─────────┬────────┬───────────────────────────────────────────┐
//	│  bytes  │ field  │ description                               │
//	├=========┼========┼===========================================┤
//	│   0 - 3 │ magic  │ a1 1c 00 01                               │
//	├─────────┼────────┼───────────────────────────────────────────┤
//	│       4 │ kind   │ message kind                              │
//	├─────────┼────────┼───────────────────────────────────────────┤
//	│       5 │ count  │ anchors count N                           │
//	├─────────┼────────┼───────────────────────────────────────────┤
//	│ 6 - 9*N │ anchor │ 8 bytes txid prefix + 1 byte vout, each   │
//	├─────────┼────────┼───────────────────────────────────────────┤
//	│    rest │ body   │ kind-specific data, opaque for this layer │
//	└─────────┴────────┴───────────────────────────────────────────┘
type Message struct {
	Kind    Kind
	Anchors []Anchor // anchors[0] is the canonical parent.
	Body    []byte
}

// Encode returns message serialized into protocol layout.
func (m *Message) Encode() ([]byte, error) {
	if len(m.Anchors) > MaxAnchors {
		return nil, fmt.Errorf("%w: %d", ErrTooManyAnchors, len(m.Anchors))
	}

	data := make([]byte, 0, m.EncodedSize())
	data = append(data, Magic[:]...)
	data = append(data, byte(m.Kind), byte(len(m.Anchors)))
	for _, anchor := range m.Anchors {
		data = append(data, anchor.TxIDPrefix[:]...)
		data = append(data, anchor.Vout)
	}

	return append(data, m.Body...), nil
}

// EncodedSize returns size of the encoded message in bytes.
func (m *Message) EncodedSize() int {
	return HeaderSize + AnchorSize*len(m.Anchors) + len(m.Body)
}

// CanonicalParent returns anchor at index 0, false for root messages.
func (m *Message) CanonicalParent() (Anchor, bool) {
	if len(m.Anchors) == 0 {
		return Anchor{}, false
	}

	return m.Anchors[0], true
}

// IsRoot returns true if message has no anchors.
func (m *Message) IsRoot() bool {
	return len(m.Anchors) == 0
}

// Decode parses ANCHOR message from payload.
func Decode(data []byte) (*Message, error) {
	if len(data) < HeaderSize {
		return nil, ErrPayloadTooShort
	}

	if !bytes.Equal(data[:len(Magic)], Magic[:]) {
		return nil, ErrInvalidMagic
	}

	var (
		kind  = Kind(data[len(Magic)])
		count = int(data[len(Magic)+1])
		rest  = data[HeaderSize:]
	)
	if count*AnchorSize > len(rest) {
		return nil, ErrTruncatedAnchors
	}

	// empty anchors and body stay nil.
	message := &Message{Kind: kind}
	if count > 0 {
		message.Anchors = make([]Anchor, count)
	}
	for i := 0; i < count; i++ {
		copy(message.Anchors[i].TxIDPrefix[:], rest[:PrefixSize])
		message.Anchors[i].Vout = rest[PrefixSize]
		rest = rest[AnchorSize:]
	}

	if len(rest) > 0 {
		message.Body = bytes.Clone(rest)
	}

	return message, nil
}

// IsAnchorPayload returns true if data is long enough and starts with protocol magic.
func IsAnchorPayload(data []byte) bool {
	return len(data) >= HeaderSize &&
		data[0] == Magic[0] && data[1] == Magic[1] && data[2] == Magic[2] && data[3] == Magic[3]
}
