// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package carriers

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/txscript"

	"github.com/BoostyLabs/anchor/bitcoin/utils"
)

// ErrMalformedCarrierScript defines that script is not a valid carrier script.
var ErrMalformedCarrierScript = errors.New("malformed carrier script")

const (
	// AnnexTag defines first byte of the taproot annex.
	AnnexTag byte = 0x50

	// stampsKeyPrefix defines first byte of the stamps pseudo public key.
	stampsKeyPrefix byte = 0x02
	// stampsChunkSize defines payload bytes held by one pseudo public key.
	stampsChunkSize = 32
	// stampsLengthSize defines size of big-endian payload length prefix.
	stampsLengthSize = 2
	// maxMultisigKeys defines maximum public keys count of OP_CHECKMULTISIG.
	maxMultisigKeys = txscript.MaxPubKeysPerMultiSig
)

// OpReturnScript returns OP_RETURN script with payload as a single canonical push.
func OpReturnScript(payload []byte) ([]byte, error) {
	if len(payload) > V30OpReturnLimit {
		return nil, fmt.Errorf("%w: %d bytes exceeds %s limit of %d", ErrMessageTooLarge, len(payload), OpReturn, V30OpReturnLimit)
	}

	return utils.AppendPush([]byte{txscript.OP_RETURN}, payload)
}

// StampsScript returns bare 1-of-N multisig script with payload encoded into pseudo public keys.
//
// ┌────────────┬──────────────────┬──────────────┐
// │ Length (2) │ Payload          │ Zero padding │
// └────────────┴──────────────────┴──────────────┘
//
// Data above is split into 32-byte chunks, each chunk is prefixed with 0x02.
func StampsScript(payload []byte) ([]byte, error) {
	if len(payload) > StampsLimit {
		return nil, fmt.Errorf("%w: %d bytes exceeds %s limit of %d", ErrMessageTooLarge, len(payload), Stamps, StampsLimit)
	}

	data := make([]byte, stampsLengthSize, stampsLengthSize+len(payload)+stampsChunkSize)
	binary.BigEndian.PutUint16(data, uint16(len(payload)))
	data = append(data, payload...)
	keysCount := utils.CeilQuotient(len(data), stampsChunkSize)
	data = append(data, make([]byte, keysCount*stampsChunkSize-len(data))...)

	scriptBuilder := txscript.NewScriptBuilder()
	scriptBuilder.AddOp(txscript.OP_1)
	for idx := 0; idx < keysCount; idx++ {
		key := make([]byte, 0, stampsChunkSize+1)
		key = append(key, stampsKeyPrefix)
		key = append(key, data[idx*stampsChunkSize:(idx+1)*stampsChunkSize]...)
		scriptBuilder.AddData(key)
	}
	scriptBuilder.AddInt64(int64(keysCount))
	scriptBuilder.AddOp(txscript.OP_CHECKMULTISIG)

	return scriptBuilder.Script()
}

// ParseStampsScript returns payload encoded by StampsScript.
func ParseStampsScript(script []byte) ([]byte, error) {
	tokenizer := txscript.MakeScriptTokenizer(0, script)
	if !tokenizer.Next() || tokenizer.Opcode() != txscript.OP_1 {
		return nil, ErrMalformedCarrierScript
	}

	var data []byte
	keysCount := 0
	for tokenizer.Next() {
		if tokenizer.Opcode() != txscript.OP_DATA_33 {
			break
		}

		key := tokenizer.Data()
		if key[0] != stampsKeyPrefix {
			return nil, ErrMalformedCarrierScript
		}

		data = append(data, key[1:]...)
		keysCount++
	}
	if tokenizer.Err() != nil || keysCount == 0 || keysCount > maxMultisigKeys {
		return nil, ErrMalformedCarrierScript
	}

	if multisigKeysCount(tokenizer.Opcode(), tokenizer.Data()) != keysCount {
		return nil, ErrMalformedCarrierScript
	}

	if !tokenizer.Next() || tokenizer.Opcode() != txscript.OP_CHECKMULTISIG || !tokenizer.Done() {
		return nil, ErrMalformedCarrierScript
	}

	length := int(binary.BigEndian.Uint16(data))
	if length > len(data)-stampsLengthSize {
		return nil, ErrMalformedCarrierScript
	}

	return data[stampsLengthSize : stampsLengthSize+length], nil
}

// multisigKeysCount returns keys count encoded either as small int opcode or as a single byte push.
func multisigKeysCount(opcode byte, data []byte) int {
	if txscript.IsSmallInt(opcode) {
		return txscript.AsSmallInt(opcode)
	}

	if opcode == txscript.OP_DATA_1 && len(data) == 1 {
		return int(data[0])
	}

	return -1
}

// WitnessEnvelope returns OP_FALSE OP_IF <pushes> OP_ENDIF envelope with payload split into pushes.
func WitnessEnvelope(payload []byte) ([]byte, error) {
	if len(payload) > WitnessLimit {
		return nil, fmt.Errorf("%w: %d bytes exceeds %s limit of %d", ErrMessageTooLarge, len(payload), WitnessData, WitnessLimit)
	}

	script, err := utils.AppendDataPushes([]byte{txscript.OP_FALSE, txscript.OP_IF}, payload)
	if err != nil {
		return nil, err
	}

	return append(script, txscript.OP_ENDIF), nil
}

// WitnessEnvelopeForKey returns tapscript <key> OP_CHECKSIG followed by the witness envelope.
func WitnessEnvelopeForKey(serializedPubKey []byte, payload []byte) ([]byte, error) {
	envelope, err := WitnessEnvelope(payload)
	if err != nil {
		return nil, err
	}

	script, err := utils.AppendPush(nil, serializedPubKey)
	if err != nil {
		return nil, err
	}
	script = append(script, txscript.OP_CHECKSIG)

	return append(script, envelope...), nil
}

// ParseWitnessEnvelope returns concatenated pushes of the first OP_FALSE OP_IF ... OP_ENDIF envelope.
func ParseWitnessEnvelope(script []byte) ([]byte, error) {
	tokenizer := txscript.MakeScriptTokenizer(0, script)

	var previous byte = txscript.OP_INVALIDOPCODE
	for tokenizer.Next() {
		if previous == txscript.OP_FALSE && tokenizer.Opcode() == txscript.OP_IF {
			break
		}

		previous = tokenizer.Opcode()
	}
	if tokenizer.Done() {
		return nil, ErrMalformedCarrierScript
	}

	payload := make([]byte, 0)
	for tokenizer.Next() {
		opcode := tokenizer.Opcode()
		switch {
		case opcode == txscript.OP_ENDIF:
			return payload, nil
		case opcode == txscript.OP_0:
		case opcode <= txscript.OP_PUSHDATA4:
			payload = append(payload, tokenizer.Data()...)
		default:
			return nil, ErrMalformedCarrierScript
		}
	}

	return nil, ErrMalformedCarrierScript
}

// Annex returns taproot annex with payload.
func Annex(payload []byte) ([]byte, error) {
	if len(payload) > WitnessLimit {
		return nil, fmt.Errorf("%w: %d bytes exceeds %s limit of %d", ErrMessageTooLarge, len(payload), TaprootAnnex, WitnessLimit)
	}

	annex := make([]byte, 0, len(payload)+1)
	annex = append(annex, AnnexTag)

	return append(annex, payload...), nil
}

// ParseAnnex returns payload of the taproot annex.
func ParseAnnex(annex []byte) ([]byte, error) {
	if len(annex) == 0 || annex[0] != AnnexTag {
		return nil, ErrMalformedCarrierScript
	}

	return annex[1:], nil
}
