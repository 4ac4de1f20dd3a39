// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"slices"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/BoostyLabs/anchor/bitcoin"
	"github.com/BoostyLabs/anchor/bitcoin/anchor"
	"github.com/BoostyLabs/anchor/bitcoin/anchor/carriers"
	"github.com/BoostyLabs/anchor/bitcoin/ord/inscriptions"
	"github.com/BoostyLabs/anchor/bitcoin/utils"
	"github.com/BoostyLabs/anchor/internal/numbers"
)

// ErrNoUTXOs defines that no inputs are provided.
var ErrNoUTXOs = errors.New("no utxos provided")

// ErrRevealKeyRequired defines that witness carrier is used without reveal public key.
var ErrRevealKeyRequired = errors.New("reveal public key is required for witness carriers")

// ErrMessageRequired defines that no message is provided.
var ErrMessageRequired = errors.New("message is required")

// ErrInvalidFeeRate defines that fee rate is missing or negative.
var ErrInvalidFeeRate = errors.New("invalid fee rate")

// ErrInvalidUTXO defines that utxo misses amount or has negative one.
var ErrInvalidUTXO = errors.New("invalid utxo")

const (
	// txVersion defines transaction version for this builder.
	txVersion int32 = 2
	// signHashType define signature hash type for input signing.
	signHashType = txscript.SigHashAll

	// DustThreshold defines the smallest non-dust output amount in satoshi.
	DustThreshold int64 = 546

	// dustRelayFactor defines spend cost multiplier of the default dust relay fee of 3 sat/vB.
	dustRelayFactor = 3
	// spendPreambleSize defines outpoint, script length and sequence size of the spending input.
	spendPreambleSize = 41
	// spendScriptSize defines signature and compressed public key size of the spending input.
	spendScriptSize = 107
	// witnessDiscount defines weight units per witness byte divisor.
	witnessDiscount = 4

	// carrierOutput defines index of the output holding the payload.
	carrierOutput uint32 = 0
	// messageTxOutputs defines outputs count of the message transaction.
	messageTxOutputs = 2
)

var (
	// headerSizeVBytes defined rough tx header size in vBytes.
	headerSizeVBytes = big.NewInt(10)
	// inputSizeVBytes defined rough tx input size in vBytes.
	inputSizeVBytes = big.NewInt(68)
	// outputSizeVBytes defined rough tx output size in vBytes.
	outputSizeVBytes = big.NewInt(34)

	// nonDustBitcoinAmount defined the smallest amount in satoshi for spendable outputs.
	nonDustBitcoinAmount = big.NewInt(DustThreshold)

	// kvByte defines virtual bytes in kilo virtual byte.
	kvByte = big.NewInt(1000)
)

// BuildParams describes data needed to build message transaction.
type BuildParams struct {
	Inputs           []bitcoin.UTXO
	ChangeAddress    string
	Message          *anchor.Message
	SatoshiPerKVByte *big.Int          // fee rate in satoshi per kilo virtual byte.
	Carrier          *carriers.Carrier // recommended by payload size if nil.
	RevealPubKey     string            // hex public key committed to by witness carriers.
	InputsPubKey     string            // hex public key of inputs owner, enables PSBT input preparation.
	SelectInputs     bool              // select minimal inputs subset instead of spending all of them.
}

// BuildResult describes built message transaction.
type BuildResult struct {
	Tx                 *wire.MsgTx
	PSBT               []byte
	Fee                *big.Int // in Satoshi.
	Change             *big.Int // in Satoshi.
	CarrierOutputIndex uint32
	Payload            []byte
	Carrier            carriers.Carrier
	EstimatedVSize     *big.Int
	// CarrierScript defines script holding the payload: output script for OP_RETURN and stamps,
	// tapscript leaf for inscription and witness data, annex for taproot annex.
	CarrierScript []byte
	UsedInputs    []bitcoin.UTXO
}

// TxBuilder provides transaction building related logic.
type TxBuilder struct {
	networkParams *chaincfg.Params
	strategy      *carriers.Strategy
}

// NewTxBuilder is a constructor for TxBuilder, carriers.DefaultStrategy is used if strategy is nil.
func NewTxBuilder(networkParams *chaincfg.Params, strategy *carriers.Strategy) *TxBuilder {
	if strategy == nil {
		strategy = carriers.DefaultStrategy
	}

	return &TxBuilder{
		networkParams: networkParams,
		strategy:      strategy,
	}
}

// DustLimit returns the smallest amount in satoshi that keeps output with pkScript
// relayable, never less than DustThreshold.
func DustLimit(pkScript []byte) int64 {
	totalSize := wire.NewTxOut(0, pkScript).SerializeSize() + spendPreambleSize
	if txscript.IsWitnessProgram(pkScript) {
		totalSize += spendScriptSize / witnessDiscount
	} else {
		totalSize += spendScriptSize
	}

	return max(DustThreshold, dustRelayFactor*int64(totalSize))
}

// BuildTransaction constructs message transaction and its PSBT.
//
//	Tx struct
//	inputs:
//	┌─────────┬──────────────┬────────────────────────────────────────┐
//	│  index  │     type     │             description                │
//	├=========┼==============┼========================================┤
//	│   0 - n │ base inputs  │ provided (or selected) utxos           │
//	└─────────┴──────────────┴────────────────────────────────────────┘
//
//	outputs:
//	┌─────────┬──────────────┬────────────────────────────────────────┐
//	│  index  │     type     │             description                │
//	├=========┼==============┼========================================┤
//	│       0 │ carrier      │ OP_RETURN or stamps multisig holding   │
//	│         │              │ the payload, or taproot commit output  │
//	│         │              │ for witness carriers (dust value).     │
//	├─────────┼──────────────┼────────────────────────────────────────┤
//	│       1 │ change       │ mandatory, non-dust change.            │
//	└─────────┴──────────────┴────────────────────────────────────────┘
func (b *TxBuilder) BuildTransaction(params BuildParams) (*BuildResult, error) {
	if len(params.Inputs) == 0 {
		return nil, ErrNoUTXOs
	}

	for _, input := range params.Inputs {
		if input.Amount == nil || numbers.IsNegative(input.Amount) {
			return nil, fmt.Errorf("%w: %s:%d", ErrInvalidUTXO, input.TxHash, input.Index)
		}
	}

	if params.Message == nil {
		return nil, ErrMessageRequired
	}

	if params.SatoshiPerKVByte == nil || numbers.IsNegative(params.SatoshiPerKVByte) {
		return nil, ErrInvalidFeeRate
	}

	payload, err := params.Message.Encode()
	if err != nil {
		return nil, err
	}

	var carrier carriers.Carrier
	if params.Carrier != nil {
		carrier = *params.Carrier
	} else if carrier, err = b.strategy.Recommend(len(payload)); err != nil {
		return nil, err
	}

	if err = b.strategy.Validate(carrier, len(payload)); err != nil {
		return nil, err
	}

	info, err := b.strategy.Lookup(carrier)
	if err != nil {
		return nil, err
	}

	pkScript, carrierScript, err := b.carrierScripts(carrier, payload, params.RevealPubKey)
	if err != nil {
		return nil, err
	}

	carrierValue := big.NewInt(0)
	if info.SpendableOutput {
		carrierValue.SetInt64(DustLimit(pkScript))
	}

	inputs := params.Inputs
	if params.SelectInputs {
		inputs, err = PrepareUTXOs(params.Inputs, messageTxOutputs, carrierValue, params.SatoshiPerKVByte)
		if err != nil {
			return nil, err
		}
	}

	vSize := RoughTxSizeEstimate(len(inputs), messageTxOutputs)
	fee := EstimateFee(vSize, params.SatoshiPerKVByte)
	totalAmount := bitcoin.TotalAmount(inputs)

	change := new(big.Int).Sub(totalAmount, fee)
	change.Sub(change, carrierValue)
	if numbers.IsLess(change, nonDustBitcoinAmount) {
		need := new(big.Int).Add(fee, carrierValue)
		need.Add(need, nonDustBitcoinAmount)

		return nil, NewInsufficientError(need, totalAmount)
	}

	tx := wire.NewMsgTx(txVersion)
	for _, input := range inputs {
		utxoHash, err := chainhash.NewHashFromStr(input.TxHash)
		if err != nil {
			return nil, err
		}

		tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(utxoHash, input.Index), nil, nil))
	}

	// carrier output (#0).
	tx.AddTxOut(wire.NewTxOut(carrierValue.Int64(), pkScript))

	// change output (#1).
	unallocatedAmount := new(big.Int).Set(change)
	if err = b.addOutput(tx, change, unallocatedAmount, params.ChangeAddress); err != nil {
		return nil, err
	}

	psbtBytes, err := b.BuildPSBT(tx, inputs, params.InputsPubKey, carrier)
	if err != nil {
		return nil, err
	}

	return &BuildResult{
		Tx:                 tx,
		PSBT:               psbtBytes,
		Fee:                fee,
		Change:             change,
		CarrierOutputIndex: carrierOutput,
		Payload:            payload,
		Carrier:            carrier,
		EstimatedVSize:     vSize,
		CarrierScript:      carrierScript,
		UsedInputs:         inputs,
	}, nil
}

// carrierScripts returns carrier output script and the script holding the payload.
func (b *TxBuilder) carrierScripts(carrier carriers.Carrier, payload []byte, revealPubKey string) (pkScript, carrierScript []byte, err error) {
	switch carrier {
	case carriers.OpReturn:
		pkScript, err = carriers.OpReturnScript(payload)
		return pkScript, pkScript, err
	case carriers.Stamps:
		pkScript, err = carriers.StampsScript(payload)
		return pkScript, pkScript, err
	}

	if revealPubKey == "" {
		return nil, nil, ErrRevealKeyRequired
	}

	revealKey, err := ParseRevealPubKey(revealPubKey)
	if err != nil {
		return nil, nil, err
	}

	var address *btcutil.AddressTaproot
	switch carrier {
	case carriers.Inscription:
		carrierScript, err = inscriptions.NewAnchorInscription(payload).IntoScriptForWitness(schnorr.SerializePubKey(revealKey))
		if err != nil {
			return nil, nil, err
		}

		address, err = utils.NewTaprootAddressFromScripts(b.networkParams, revealKey, carrierScript)
	case carriers.WitnessData:
		carrierScript, err = carriers.WitnessEnvelopeForKey(schnorr.SerializePubKey(revealKey), payload)
		if err != nil {
			return nil, nil, err
		}

		address, err = utils.NewTaprootAddressFromScripts(b.networkParams, revealKey, carrierScript)
	case carriers.TaprootAnnex:
		carrierScript, err = carriers.Annex(payload)
		if err != nil {
			return nil, nil, err
		}

		address, err = utils.NewTaprootKeyOnlyAddress(b.networkParams, revealKey)
	default:
		return nil, nil, fmt.Errorf("%w: %d", carriers.ErrUnknownCarrier, carrier)
	}
	if err != nil {
		return nil, nil, err
	}

	pkScript, err = txscript.PayToAddrScript(address)
	if err != nil {
		return nil, nil, err
	}

	return pkScript, carrierScript, nil
}

// ParseRevealPubKey parses hex public key in compressed or x-only form.
func ParseRevealPubKey(pubKey string) (*btcec.PublicKey, error) {
	pubKeyBytes, err := hex.DecodeString(pubKey)
	if err != nil {
		return nil, err
	}

	if len(pubKeyBytes) == schnorr.PubKeyBytesLen {
		return schnorr.ParsePubKey(pubKeyBytes)
	}

	return btcec.ParsePubKey(pubKeyBytes)
}

// BuildPSBT returns serialised PSBT from unsigned transaction. Inputs are prepared
// for signing by address type and signing hints are appended when inputsPubKey is set.
func (b *TxBuilder) BuildPSBT(tx *wire.MsgTx, inputs []bitcoin.UTXO, inputsPubKey string, carrier carriers.Carrier) ([]byte, error) {
	p, err := psbt.NewFromUnsignedTx(tx)
	if err != nil {
		return nil, err
	}

	hints := map[InputsHelpingKey][]byte{
		CarrierOutputHelpingKey: {byte(carrierOutput), byte(carrier)},
	}
	inputBuilders := make(map[string]*PSBTInputBuilder)
	for idx, input := range inputs {
		p.Inputs[idx].WitnessUtxo = wire.NewTxOut(input.Amount.Int64(), input.Script)
		p.Inputs[idx].SighashType = signHashType

		if inputsPubKey == "" || input.Address == "" {
			continue
		}

		inputBuilder, ok := inputBuilders[input.Address]
		if !ok {
			inputBuilder, err = NewPSBTInputBuilder(inputsPubKey, input.Address, b.networkParams)
			if err != nil {
				return nil, err
			}

			inputBuilders[input.Address] = inputBuilder
		}

		inputBuilder.PrepareInput(&p.Inputs[idx])
		key := inputBuilder.InputsHelpingKey()
		hints[key] = append(hints[key], byte(idx))
	}
	p.Unknowns = signingHints(hints)

	w := bytes.NewBuffer(nil)
	err = p.Serialize(w)
	if err != nil {
		return nil, err
	}

	return w.Bytes(), nil
}

// PrepareUTXOs selects the smallest count of utxos covering fee, transfer amount and non-dust change.
// Utxos are not required to be sorted.
func PrepareUTXOs(utxos []bitcoin.UTXO, outputs int, transferAmount, satoshiPerKVByte *big.Int) ([]bitcoin.UTXO, error) {
	sorted := slices.Clone(utxos)
	slices.SortStableFunc(sorted, func(a, b bitcoin.UTXO) int {
		return b.Amount.Cmp(a.Amount)
	})

	for i := 1; i <= len(sorted); i++ {
		minAmount := EstimateFee(RoughTxSizeEstimate(i, outputs), satoshiPerKVByte)
		minAmount.Add(minAmount, transferAmount)
		minAmount.Add(minAmount, nonDustBitcoinAmount)

		usedUTXOs, _, err := SelectUTXO(sorted, minAmount, i)
		if err != nil {
			if errors.Is(err, bitcoin.ErrInsufficientNativeBalance) {
				continue
			}

			return nil, err
		}

		selected := make([]bitcoin.UTXO, 0, len(usedUTXOs))
		for _, utxo := range usedUTXOs {
			selected = append(selected, *utxo)
		}

		return selected, nil
	}

	minAmount := EstimateFee(RoughTxSizeEstimate(len(sorted), outputs), satoshiPerKVByte)
	minAmount.Add(minAmount, transferAmount)
	minAmount.Add(minAmount, nonDustBitcoinAmount)

	return nil, NewInsufficientError(minAmount, bitcoin.TotalAmount(sorted))
}

// RoughTxSizeEstimate returns Tx rough estimated size in vBytes.
func RoughTxSizeEstimate(inputs, outputs int) *big.Int {
	size := new(big.Int).Set(headerSizeVBytes)
	size.Add(size, new(big.Int).Mul(inputSizeVBytes, big.NewInt(int64(inputs))))
	size.Add(size, new(big.Int).Mul(outputSizeVBytes, big.NewInt(int64(outputs))))

	return size
}

// EstimateFee returns fee in satoshi for provided size, rounded up.
// vB * ( sat / kvB ) = 1000 sat.
func EstimateFee(vSize, satoshiPerKVByte *big.Int) *big.Int {
	return numbers.CeilDiv(new(big.Int).Mul(vSize, satoshiPerKVByte), kvByte)
}

// SelectUTXO is a partly greedy selection algorithm for UTXOs with 'requiredUTXOs' parameter.
// Utxos must be sorted by amount desc. Returns list of selected by algorithm UTXOs with total amount.
func SelectUTXO(utxos []bitcoin.UTXO, minAmount *big.Int, requiredUTXOs int) (usedUTXOs []*bitcoin.UTXO, totalAmount *big.Int, _ error) {
	if len(utxos) < requiredUTXOs || requiredUTXOs < 1 {
		return nil, nil, bitcoin.ErrInvalidUTXOAmount
	}

	usedUTXOs = make([]*bitcoin.UTXO, 0, requiredUTXOs)
	totalAmount = big.NewInt(0)
	var startIdx = 0
	var usedIdxs = make([]int, 0)

	// find the closest by amount UTXO that is grater then minAmount or take the biggest possible.
	for idx := range utxos {
		if numbers.IsGreater(minAmount, utxos[idx].Amount) {
			break
		}

		startIdx = idx
	}

	usedIdxs = append(usedIdxs, startIdx)
	totalAmount.Add(totalAmount, utxos[startIdx].Amount)
	usedUTXOs = append(usedUTXOs, &utxos[startIdx])
	requiredUTXOs--

	// pick bigger amount if total amount do not cover minAmount, otherwise - the smallest to pass requiredUTXOs.
	for ; requiredUTXOs > 0; requiredUTXOs-- {
		idx := selectUnused(startIdx, len(utxos), usedIdxs, !numbers.IsGreater(minAmount, totalAmount))
		if idx == -1 {
			return nil, nil, bitcoin.ErrInvalidUTXOAmount
		}

		usedIdxs = append(usedIdxs, idx)
		totalAmount.Add(totalAmount, utxos[idx].Amount)
		usedUTXOs = append(usedUTXOs, &utxos[idx])
	}

	if numbers.IsGreater(minAmount, totalAmount) {
		return nil, nil, bitcoin.ErrInsufficientNativeBalance
	}

	return usedUTXOs, totalAmount, nil
}

// addOutput adds output to transaction, subtracts amount from unallocated amount.
func (b *TxBuilder) addOutput(tx *wire.MsgTx, amount, unallocatedAmount *big.Int, address string) error {
	if numbers.IsLess(unallocatedAmount, amount) {
		return errors.New("unallocated amount is less than the amount in provided inputs")
	}

	destinationAddrByte, err := utils.PayToAddressScript(address, b.networkParams)
	if err != nil {
		return err
	}

	tx.AddTxOut(wire.NewTxOut(amount.Int64(), destinationAddrByte))
	unallocatedAmount.Sub(unallocatedAmount, amount)

	return nil
}

// selectUnused returns first unused idx depending on search direction.
func selectUnused(start, end int, usedIdxs []int, reversed bool) int {
	if reversed {
		for idx := end - 1; idx >= start; idx-- {
			if !slices.Contains(usedIdxs, idx) {
				return idx
			}
		}
	} else {
		for idx := start; idx < end; idx++ {
			if !slices.Contains(usedIdxs, idx) {
				return idx
			}
		}
	}

	return -1
}
