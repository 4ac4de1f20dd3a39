// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package utils

import (
	"encoding/binary"
	"errors"

	"github.com/btcsuite/btcd/txscript"
)

// MaxDataPushLen defines maximum size of the data push for bitcoin scripts.
const MaxDataPushLen int = txscript.MaxScriptElementSize

// ErrDataPushTooLarge defines that data does not fit into OP_PUSHDATA2.
var ErrDataPushTooLarge = errors.New("data push too large")

// NewTapScriptTreeFromRawScripts builds tapScript tree from provided raw leaf scripts.
func NewTapScriptTreeFromRawScripts(leafScripts ...[]byte) (*txscript.IndexedTapScriptTree, error) {
	if len(leafScripts) == 0 {
		return nil, errors.New("no leaf scripts provided")
	}

	var tapLeafs = make([]txscript.TapLeaf, len(leafScripts))
	for i, leafScript := range leafScripts {
		tapLeafs[i] = txscript.NewBaseTapLeaf(leafScript)
	}

	return txscript.AssembleTaprootScriptTree(tapLeafs...), nil
}

// AppendPush appends single data push to the script with the shortest push opcode.
// Unlike txscript.ScriptBuilder, small values are never replaced with OP_N opcodes,
// so pushed bytes always disassemble as data.
func AppendPush(script []byte, data []byte) ([]byte, error) {
	size := len(data)
	switch {
	case size <= txscript.OP_DATA_75:
		script = append(script, byte(size))
	case size <= 0xff:
		script = append(script, txscript.OP_PUSHDATA1, byte(size))
	case size <= 0xffff:
		script = append(script, txscript.OP_PUSHDATA2)
		script = binary.LittleEndian.AppendUint16(script, uint16(size))
	default:
		return nil, ErrDataPushTooLarge
	}

	return append(script, data...), nil
}

// AppendDataPushes appends data to the script as sequence of pushes of MaxDataPushLen size at most.
func AppendDataPushes(script []byte, data []byte) ([]byte, error) {
	var err error
	for start := 0; start < len(data); start += MaxDataPushLen {
		end := start + MaxDataPushLen
		if end > len(data) {
			end = len(data)
		}

		script, err = AppendPush(script, data[start:end])
		if err != nil {
			return nil, err
		}
	}

	return script, nil
}

// CeilQuotient returns division result with ceil function applied.
func CeilQuotient(divided, divisor int) int {
	ceilQuo := divided / divisor
	if divided%divisor != 0 {
		ceilQuo++
	}

	return ceilQuo
}
