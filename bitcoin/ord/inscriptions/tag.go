// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package inscriptions

import (
	"fmt"

	"github.com/btcsuite/btcd/txscript"
)

// Tag defines special tag for distinguishing inscription field type.
type Tag byte

const (
	// TagContentType defines content-type tag in the inscription protocol.
	// Defines content-type of the inscription content. The value is the MIME type of the body.
	TagContentType Tag = 1
	// TagPointer defines pointer tag in the inscription protocol.
	TagPointer Tag = 2
	// TagParent defines parent tag in the inscription protocol.
	TagParent Tag = 3
	// TagMetadata defines metadata tag in the inscription protocol.
	// Concatenate all Metadata-Tag pushes before decoding.
	TagMetadata Tag = 5
	// TagMetaprotocol defines meta-protocol tag in the inscription protocol.
	// The value is the metaprotocol identifier.
	TagMetaprotocol Tag = 7
	// TagContentEncoding defines content-encoding tag in the inscription protocol.
	TagContentEncoding Tag = 9
	// TagDelegate defines delegate tag in the inscription protocol.
	TagDelegate Tag = 11
	// TagRune defines Rune tag in the inscription protocol.
	TagRune Tag = 13
	// TagNote defines Note tag in the inscription protocol.
	TagNote Tag = 15
	// TagUnbound defines unbound tag in the inscription protocol.
	TagUnbound Tag = 66
	// TagNop defines Nop tag in the inscription protocol.
	TagNop Tag = 255
)

// IntoDataPush returns Tag as bytes array with OP_PUSH command.
func (t Tag) IntoDataPush() []byte {
	return []byte{txscript.OP_DATA_1, byte(t)}
}

// HexString returns Tag as hexadecimal string with leading zero if needed.
func (t Tag) HexString() string {
	return fmt.Sprintf("%02x", byte(t))
}

// isSkipped returns true for known tags which do not affect ANCHOR payload.
func (t Tag) isSkipped() bool {
	switch t {
	case TagPointer, TagParent, TagDelegate, TagRune, TagNote, TagUnbound, TagNop:
		return true
	}

	return false
}
