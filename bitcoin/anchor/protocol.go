// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package anchor

import (
	"fmt"
	"strconv"
)

// ProtocolVersion defines the version byte carried in the last magic byte.
const ProtocolVersion byte = 0x01

const (
	// HeaderSize defines size of the fixed message header: magic, kind and anchors count.
	HeaderSize = len(Magic) + 2
	// AnchorSize defines size of the single encoded anchor: txid prefix and vout.
	AnchorSize = PrefixSize + 1
	// PrefixSize defines how many bytes of the txid are kept in the anchor.
	PrefixSize = 8
	// MaxAnchors defines maximum number of anchors which fits into the count byte.
	MaxAnchors = 255
	// LegacyOpReturnLimit defines legacy relay policy limit of OP_RETURN data in bytes.
	LegacyOpReturnLimit = 80
)

// Magic defines the sequence every ANCHOR payload starts with.
var Magic = [4]byte{0xa1, 0x1c, 0x00, ProtocolVersion}

// Kind defines message kind, its body semantics are kind-specific.
type Kind byte

const (
	// KindText defines plain text message.
	KindText Kind = 1
	// KindState defines application state message.
	KindState Kind = 2
	// KindDNS defines name record message.
	KindDNS Kind = 10
	// KindProof defines proof of existence message.
	KindProof Kind = 11
	// KindGeoMarker defines geographic marker message.
	KindGeoMarker Kind = 12
	// KindToken defines token operation message.
	KindToken Kind = 20
	// KindOracleAttestation defines oracle attestation message.
	KindOracleAttestation Kind = 30
	// KindOracleEvent defines oracle event announcement.
	KindOracleEvent Kind = 31
	// KindOracleRequest defines oracle data request.
	KindOracleRequest Kind = 32
	// KindOracleDispute defines oracle dispute message.
	KindOracleDispute Kind = 33
)

var kindNames = map[Kind]string{
	KindText:              "text",
	KindState:             "state",
	KindDNS:               "dns",
	KindProof:             "proof",
	KindGeoMarker:         "geomarker",
	KindToken:             "token",
	KindOracleAttestation: "oracle-attestation",
	KindOracleEvent:       "oracle-event",
	KindOracleRequest:     "oracle-request",
	KindOracleDispute:     "oracle-dispute",
}

// String returns human readable kind name, unknown kinds are printed by value.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}

	return fmt.Sprintf("kind(%d)", byte(k))
}

// ParseKind parses kind from its name or decimal value.
func ParseKind(s string) (Kind, error) {
	for kind, name := range kindNames {
		if name == s {
			return kind, nil
		}
	}

	value, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("unknown kind: %s", s)
	}

	return Kind(value), nil
}

// MaxBodySize returns maximum body size in bytes which keeps the message
// with provided anchors count within legacy OP_RETURN limit.
func MaxBodySize(anchors int) int {
	return LegacyOpReturnLimit - HeaderSize - AnchorSize*anchors
}
