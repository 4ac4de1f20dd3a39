// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package anchor

import (
	"encoding/binary"

	"github.com/btcsuite/btcd/txscript"
)

// ParseOpReturn returns data pushed right after OP_RETURN.
// Only direct pushes, OP_PUSHDATA1 and OP_PUSHDATA2 are recognized, returns nil otherwise.
func ParseOpReturn(script []byte) []byte {
	if len(script) < 2 || script[0] != txscript.OP_RETURN {
		return nil
	}

	var (
		op     = script[1]
		length int
		start  int
	)
	switch {
	case op <= txscript.OP_DATA_75:
		length, start = int(op), 2
	case op == txscript.OP_PUSHDATA1:
		if len(script) < 3 {
			return nil
		}

		length, start = int(script[2]), 3
	case op == txscript.OP_PUSHDATA2:
		if len(script) < 4 {
			return nil
		}

		length, start = int(binary.LittleEndian.Uint16(script[2:4])), 4
	default:
		return nil
	}

	if len(script) < start+length {
		return nil
	}

	return script[start : start+length]
}

// MessageFromScript parses message from OP_RETURN script, false if script is not an ANCHOR output.
func MessageFromScript(script []byte) (*Message, bool) {
	payload := ParseOpReturn(script)
	if !IsAnchorPayload(payload) {
		return nil, false
	}

	message, err := Decode(payload)
	if err != nil {
		return nil, false
	}

	return message, true
}
