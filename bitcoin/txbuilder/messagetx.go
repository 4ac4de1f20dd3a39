// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"math/big"
	"slices"

	"github.com/BoostyLabs/anchor/bitcoin"
	"github.com/BoostyLabs/anchor/bitcoin/anchor"
	"github.com/BoostyLabs/anchor/bitcoin/anchor/carriers"
)

// MessageTx is a staged builder of the message transaction.
// The first failed step is kept and returned by Build, following steps are no-op.
type MessageTx struct {
	message anchor.Message
	params  BuildParams
	err     error
}

// NewMessageTx is a constructor for MessageTx.
func NewMessageTx(kind anchor.Kind) *MessageTx {
	return &MessageTx{message: anchor.Message{Kind: kind}}
}

// AddInput appends utxo to spend.
func (m *MessageTx) AddInput(utxo bitcoin.UTXO) *MessageTx {
	if m.err == nil {
		m.params.Inputs = append(m.params.Inputs, utxo)
	}

	return m
}

// AddInputs appends utxos to spend.
func (m *MessageTx) AddInputs(utxos ...bitcoin.UTXO) *MessageTx {
	if m.err == nil {
		m.params.Inputs = append(m.params.Inputs, utxos...)
	}

	return m
}

// ReplyTo sets canonical parent, anchor is inserted at index 0.
func (m *MessageTx) ReplyTo(txid string, vout byte) *MessageTx {
	if m.err != nil {
		return m
	}

	parent, err := anchor.NewAnchor(txid, vout)
	if err != nil {
		m.err = err
		return m
	}

	m.message.Anchors = slices.Insert(m.message.Anchors, 0, parent)

	return m
}

// AddAnchor appends auxiliary anchor.
func (m *MessageTx) AddAnchor(txid string, vout byte) *MessageTx {
	if m.err != nil {
		return m
	}

	reference, err := anchor.NewAnchor(txid, vout)
	if err != nil {
		m.err = err
		return m
	}

	m.message.Anchors = append(m.message.Anchors, reference)

	return m
}

// WithBody sets message body.
func (m *MessageTx) WithBody(body []byte) *MessageTx {
	if m.err == nil {
		m.message.Body = slices.Clone(body)
	}

	return m
}

// WithChangeAddress sets change output address.
func (m *MessageTx) WithChangeAddress(address string) *MessageTx {
	if m.err == nil {
		m.params.ChangeAddress = address
	}

	return m
}

// WithFeeRate sets fee rate in satoshi per virtual byte.
func (m *MessageTx) WithFeeRate(satoshiPerVByte int64) *MessageTx {
	if m.err == nil {
		m.params.SatoshiPerKVByte = new(big.Int).Mul(big.NewInt(satoshiPerVByte), kvByte)
	}

	return m
}

// WithCarrier forces carrier instead of the recommended one.
func (m *MessageTx) WithCarrier(carrier carriers.Carrier) *MessageTx {
	if m.err == nil {
		m.params.Carrier = &carrier
	}

	return m
}

// WithRevealPubKey sets public key committed to by witness carriers.
func (m *MessageTx) WithRevealPubKey(pubKey string) *MessageTx {
	if m.err == nil {
		m.params.RevealPubKey = pubKey
	}

	return m
}

// WithInputsPubKey sets public key of inputs owner for PSBT input preparation.
func (m *MessageTx) WithInputsPubKey(pubKey string) *MessageTx {
	if m.err == nil {
		m.params.InputsPubKey = pubKey
	}

	return m
}

// WithInputsSelection spends minimal inputs subset covering fee and change instead of all inputs.
func (m *MessageTx) WithInputsSelection() *MessageTx {
	if m.err == nil {
		m.params.SelectInputs = true
	}

	return m
}

// Message returns copy of the composed message.
func (m *MessageTx) Message() anchor.Message {
	return anchor.Message{
		Kind:    m.message.Kind,
		Anchors: slices.Clone(m.message.Anchors),
		Body:    slices.Clone(m.message.Body),
	}
}

// Err returns the first error met while staging.
func (m *MessageTx) Err() error {
	return m.err
}

// Build builds transaction with provided builder.
func (m *MessageTx) Build(b *TxBuilder) (*BuildResult, error) {
	if m.err != nil {
		return nil, m.err
	}

	message := m.Message()
	params := m.params
	params.Message = &message
	if params.SatoshiPerKVByte == nil {
		params.SatoshiPerKVByte = new(big.Int).Set(kvByte)
	}

	return b.BuildTransaction(params)
}
