// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package inscriptions

import (
	"encoding/hex"
	"errors"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"

	"github.com/BoostyLabs/anchor/bitcoin/anchor"
	"github.com/BoostyLabs/anchor/bitcoin/utils"
	"github.com/BoostyLabs/anchor/internal/sequencereader"
)

// ErrMalformedInscription defines that inscription is malformed and failed to parse.
var ErrMalformedInscription = errors.New("inscription is malformed")

// ErrRepeatedFieldData defines that already filled field met while parsing.
var ErrRepeatedFieldData = errors.New("field already filled")

const (
	// AnchorContentType defines content type of inscriptions carrying ANCHOR payloads.
	AnchorContentType string = "application/x-anchor"
	// AnchorMetaprotocol defines metaprotocol identifier of inscriptions carrying ANCHOR payloads.
	AnchorMetaprotocol string = "anchor"
)

// inscriptionOrdTag defines ord tag for inscription to disambiguate inscriptions from other uses of envelopes.
const inscriptionOrdTag string = "ord"

// inscriptionStartDisASM defines the start of the inscription script in disASM.
// OP_FALSE OP_IF OP_PUSH "ord" ...
const inscriptionStartDisASM string = "0 OP_IF 6f7264"

// inscriptionEndDisASM defines the end of the inscription script in disASM.
// ... OP_ENDIF.
const inscriptionEndDisASM string = "OP_ENDIF"

// Inscription describes envelope of the inscription protocol.
// Only fields needed to carry ANCHOR payloads are kept, other known tags are skipped on parsing.
type Inscription struct {
	Body            []byte
	ContentEncoding string
	ContentType     string
	Metadata        []byte
	Metaprotocol    string
}

// NewAnchorInscription returns inscription carrying encoded ANCHOR message.
func NewAnchorInscription(payload []byte) *Inscription {
	return &Inscription{
		Body:         payload,
		ContentType:  AnchorContentType,
		Metaprotocol: AnchorMetaprotocol,
	}
}

// AnchorPayload returns body if inscription carries ANCHOR payload.
func (i *Inscription) AnchorPayload() ([]byte, bool) {
	if i.Metaprotocol != AnchorMetaprotocol && i.ContentType != AnchorContentType {
		return nil, false
	}

	if !anchor.IsAnchorPayload(i.Body) {
		return nil, false
	}

	return i.Body, true
}

// IsPossibleInscriptionWitnessData returns true if witness data is possible to be parsed to inscription.
func IsPossibleInscriptionWitnessData(data []byte) bool {
	_, _, _, err := disasmWitnessDataWithBoundsIndexes(data)

	return err == nil
}

// disasmWitnessDataWithBoundsIndexes returns disassembled witness data with start and end indexes of inscription script.
func disasmWitnessDataWithBoundsIndexes(data []byte) (disasm string, start int, end int, err error) {
	disasm, err = txscript.DisasmString(data)
	if err != nil {
		return disasm, start, end, ErrMalformedInscription
	}

	start = strings.Index(disasm, inscriptionStartDisASM)
	if start == -1 {
		return disasm, start, end, ErrMalformedInscription
	}

	end = strings.Index(disasm[start:], inscriptionEndDisASM)
	if end == -1 {
		return disasm, start, end, ErrMalformedInscription
	}

	return disasm, start, start + end, nil
}

// ParseInscriptionFromWitnessData parses witness data into Inscription.
func ParseInscriptionFromWitnessData(data []byte) (*Inscription, error) {
	disasm, start, end, err := disasmWitnessDataWithBoundsIndexes(data)
	if err != nil {
		return nil, err
	}

	sr := sequencereader.New[string](strings.Split(disasm[start:end+len(inscriptionEndDisASM)], " "))
	// At least OP_FALSE OP_IF OP_PUSH "ord" OP_ENDIF.
	if sr.Len() < 4 {
		return nil, ErrMalformedInscription
	}

	// OP_FALSE OP_IF OP_PUSH "ord" are checked by inscriptionStartDisASM.
	_ = sr.Skip(3)

	inscription := new(Inscription)
	for sr.HasNext() {
		tag, _ := sr.Next() // skip error due to the loop condition check.
		if tag == "0" {     // OP_0, means that all next data pushes are body parts.
			err = inscription.fillBody(sr)
		} else if tag == inscriptionEndDisASM {
			return inscription, nil
		} else {
			var value string
			value, err = sr.Next()
			if err != nil || value == inscriptionEndDisASM {
				return nil, ErrMalformedInscription
			}

			err = inscription.fillFieldByTag(tag, value)
		}
		if err != nil {
			return nil, err
		}
	}

	return inscription, nil
}

// fillBody fills Body field with body data pushes.
func (i *Inscription) fillBody(sr *sequencereader.SequenceReader[string]) (err error) {
	var payload strings.Builder
	for sr.HasNext() {
		value, _ := sr.Next() // skip error due to the loop condition check.
		if value == inscriptionEndDisASM {
			break
		}

		payload.WriteString(value)
	}

	i.Body, err = hex.DecodeString(payload.String())
	if err != nil {
		return ErrMalformedInscription
	}

	return nil
}

// fillFieldByTag fills Inscription fields by provided tag.
func (i *Inscription) fillFieldByTag(tag string, value string) (err error) {
	var valueBytes = make([]byte, 0)
	if value != "0" {
		valueBytes, err = hex.DecodeString(value)
		if err != nil {
			return ErrMalformedInscription
		}
	}

	switch tag {
	case TagContentType.HexString():
		if len(i.ContentType) != 0 {
			return ErrRepeatedFieldData
		}

		i.ContentType = string(valueBytes)
	case TagMetadata.HexString():
		i.Metadata = append(i.Metadata, valueBytes...)
	case TagMetaprotocol.HexString():
		if len(i.Metaprotocol) != 0 {
			return ErrRepeatedFieldData
		}

		i.Metaprotocol = string(valueBytes)
	case TagContentEncoding.HexString():
		if len(i.ContentEncoding) != 0 {
			return ErrRepeatedFieldData
		}

		i.ContentEncoding = string(valueBytes)
	default:
		tagBytes, err := hex.DecodeString(tag)
		if err != nil || len(tagBytes) != 1 || !Tag(tagBytes[0]).isSkipped() {
			return ErrMalformedInscription
		}
	}

	return nil
}

// IntoScript returns Inscription as a script.
func (i *Inscription) IntoScript() ([]byte, error) {
	scriptBuilder := txscript.NewScriptBuilder()

	// inscription protocol start.
	scriptBuilder.AddOp(txscript.OP_FALSE)
	scriptBuilder.AddOp(txscript.OP_IF)
	scriptBuilder.AddData([]byte(inscriptionOrdTag))

	script, err := scriptBuilder.Script()
	if err != nil {
		return nil, err
	}

	fields := []struct {
		tag   Tag
		value []byte
	}{
		{TagContentType, []byte(i.ContentType)},
		{TagMetaprotocol, []byte(i.Metaprotocol)},
		{TagContentEncoding, []byte(i.ContentEncoding)},
	}
	for _, field := range fields {
		if len(field.value) == 0 {
			continue
		}

		script = append(script, field.tag.IntoDataPush()...)
		if script, err = utils.AppendPush(script, field.value); err != nil {
			return nil, err
		}
	}

	// metadata longer than a single push is split into several tagged pushes.
	for start := 0; start < len(i.Metadata); start += utils.MaxDataPushLen {
		end := min(start+utils.MaxDataPushLen, len(i.Metadata))
		script = append(script, TagMetadata.IntoDataPush()...)
		if script, err = utils.AppendPush(script, i.Metadata[start:end]); err != nil {
			return nil, err
		}
	}

	if len(i.Body) != 0 {
		script = append(script, txscript.OP_0)
		if script, err = utils.AppendDataPushes(script, i.Body); err != nil {
			return nil, err
		}
	}

	// inscription protocol end.
	return append(script, txscript.OP_ENDIF), nil
}

// IntoScriptForWitness returns Inscription as a script with pubKey verify at the beginning for witness data.
func (i *Inscription) IntoScriptForWitness(serializedPubKey []byte) ([]byte, error) {
	scriptBuilder := txscript.NewScriptBuilder()
	scriptBuilder.AddData(serializedPubKey)
	scriptBuilder.AddOp(txscript.OP_CHECKSIG)

	script, err := scriptBuilder.Script()
	if err != nil {
		return nil, err
	}

	inscription, err := i.IntoScript()
	if err != nil {
		return nil, err
	}

	return append(script, inscription...), nil
}

// IntoAddress returns commit address of the inscription script for provided public key.
func (i *Inscription) IntoAddress(publicKey string, chainParams *chaincfg.Params) (string, error) {
	pubKey, err := hex.DecodeString(publicKey)
	if err != nil {
		return "", err
	}

	pubKeyBtcec, err := btcec.ParsePubKey(pubKey)
	if err != nil {
		return "", err
	}

	pkScript, err := i.IntoScriptForWitness(schnorr.SerializePubKey(pubKeyBtcec))
	if err != nil {
		return "", err
	}

	addr, err := utils.NewTaprootAddressFromScripts(chainParams, pubKeyBtcec, pkScript)
	if err != nil {
		return "", err
	}

	return addr.String(), nil
}

// VBytesSize returns estimated inscription input size in virtual bytes.
func (i *Inscription) VBytesSize() (int, error) {
	script, err := i.IntoScript()
	if err != nil {
		return 0, err
	}

	// INFO: pubkey size [1 byte] + pubkey [32 bytes] + OP_CHECKSIG [1 byte] + inscription script size [variable].
	return utils.CeilQuotient(len(script)+34, 4), nil
}
