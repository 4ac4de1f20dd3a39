// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package carriers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BoostyLabs/anchor/bitcoin/anchor"
)

// ErrMessageTooLarge defines that payload does not fit into the carrier.
var ErrMessageTooLarge = errors.New("message too large")

// ErrUnknownCarrier defines that carrier is not in the table.
var ErrUnknownCarrier = errors.New("unknown carrier")

// Carrier defines bitcoin script mechanism which holds the payload.
type Carrier byte

const (
	// OpReturn defines provably unspendable OP_RETURN output.
	OpReturn Carrier = 0
	// Inscription defines ord envelope revealed in the taproot script path witness.
	Inscription Carrier = 1
	// Stamps defines bare multisig output with data encoded as public keys.
	Stamps Carrier = 2
	// TaprootAnnex defines data stored in the taproot witness annex.
	TaprootAnnex Carrier = 3
	// WitnessData defines raw envelope revealed in the taproot script path witness.
	WitnessData Carrier = 4
)

const (
	// V30OpReturnLimit defines OP_RETURN limit for nodes running relaxed data carrier policy.
	// 100KB policy is capped by the largest push the protocol parses (OP_PUSHDATA2).
	V30OpReturnLimit = 65535
	// WitnessLimit defines maximum payload for witness carriers, block weight minus tx skeleton.
	WitnessLimit = 3_960_000
	// StampsLimit defines maximum payload of the single multisig carrier output.
	// Outputs above StampsRelayLimit hold more than 3 keys and are not standard.
	StampsLimit = 520
	// StampsRelayLimit defines maximum payload of the standard 1-of-3 multisig carrier output.
	StampsRelayLimit = 3*stampsChunkSize - stampsLengthSize

	// baseOverheadVBytes defines tx skeleton size added to every estimate.
	baseOverheadVBytes = 10
	// witnessScaleFactor defines weight units per virtual byte.
	witnessScaleFactor = 4

	carriersCount = 5
)

var carrierNames = [carriersCount]string{"op_return", "inscription", "stamps", "taproot_annex", "witness_data"}

// String returns carrier name.
func (c Carrier) String() string {
	if int(c) < carriersCount {
		return carrierNames[c]
	}

	return fmt.Sprintf("carrier(%d)", byte(c))
}

// ParseCarrier parses carrier from its name.
func ParseCarrier(name string) (Carrier, error) {
	for idx, carrierName := range carrierNames {
		if strings.EqualFold(carrierName, name) {
			return Carrier(idx), nil
		}
	}

	return 0, fmt.Errorf("%w: %s", ErrUnknownCarrier, name)
}

// Info describes carrier characteristics.
type Info struct {
	Carrier    Carrier
	MaxPayload int  // in bytes.
	Prunable   bool // data may be dropped by pruned nodes.
	UTXOImpact bool // carrier output stays in the UTXO set.
	Relayed    bool // standard for the most nodes.
	// WeightPerByte defines weight units per payload byte, 4 for non-witness and 1 for witness data.
	WeightPerByte int
	// Overhead defines fixed carrier-specific size in vBytes.
	Overhead int
	// SpendableOutput defines that carrier output must hold non-dust value.
	SpendableOutput bool
}

// FeeMultiplier returns payload fee multiplier, 0.25 for witness-discounted carriers.
func (info Info) FeeMultiplier() float64 {
	return float64(info.WeightPerByte) / witnessScaleFactor
}

// defaultTable defines carriers table with legacy OP_RETURN relay policy.
var defaultTable = [carriersCount]Info{
	OpReturn:     {Carrier: OpReturn, MaxPayload: anchor.LegacyOpReturnLimit, Prunable: true, Relayed: true, WeightPerByte: 4, Overhead: 12},
	Inscription:  {Carrier: Inscription, MaxPayload: WitnessLimit, Prunable: true, Relayed: true, WeightPerByte: 1, Overhead: 120, SpendableOutput: true},
	Stamps:       {Carrier: Stamps, MaxPayload: StampsLimit, UTXOImpact: true, WeightPerByte: 4, Overhead: 20, SpendableOutput: true},
	TaprootAnnex: {Carrier: TaprootAnnex, MaxPayload: WitnessLimit, Prunable: true, WeightPerByte: 1, Overhead: 100, SpendableOutput: true},
	WitnessData:  {Carrier: WitnessData, MaxPayload: WitnessLimit, Prunable: true, Relayed: true, WeightPerByte: 1, Overhead: 120, SpendableOutput: true},
}

// Strategy provides carrier selection over the carriers table.
type Strategy struct {
	table [carriersCount]Info
}

// Option configures Strategy.
type Option func(*Strategy)

// WithOpReturnLimit overrides OP_RETURN payload limit.
func WithOpReturnLimit(limit int) Option {
	return func(s *Strategy) {
		s.table[OpReturn].MaxPayload = limit
	}
}

// WithPolicy selects OP_RETURN relay policy by name: "legacy" or "v30".
func WithPolicy(policy string) (Option, error) {
	switch strings.ToLower(policy) {
	case "", "legacy":
		return WithOpReturnLimit(anchor.LegacyOpReturnLimit), nil
	case "v30":
		return WithOpReturnLimit(V30OpReturnLimit), nil
	}

	return nil, fmt.Errorf("unknown op_return policy: %s", policy)
}

// NewStrategy is a constructor for Strategy.
func NewStrategy(opts ...Option) *Strategy {
	s := &Strategy{table: defaultTable}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// DefaultStrategy defines strategy with legacy OP_RETURN policy.
var DefaultStrategy = NewStrategy()

// Lookup returns carrier characteristics.
func (s *Strategy) Lookup(c Carrier) (Info, error) {
	if int(c) >= carriersCount {
		return Info{}, fmt.Errorf("%w: %d", ErrUnknownCarrier, c)
	}

	return s.table[c], nil
}

// Table returns copy of the carriers table ordered by carrier id.
func (s *Strategy) Table() []Info {
	table := make([]Info, carriersCount)
	copy(table, s.table[:])

	return table
}

// CanHandle returns true if payload of provided size fits into the carrier.
func (s *Strategy) CanHandle(c Carrier, size int) bool {
	info, err := s.Lookup(c)
	if err != nil {
		return false
	}

	return size >= 0 && size <= info.MaxPayload
}

// Recommend returns carrier for the payload of provided size. Payloads within legacy
// OP_RETURN limit always go to OP_RETURN, otherwise the cheapest relayed carrier
// without UTXO set impact is picked, ties go to the lower carrier id.
func (s *Strategy) Recommend(size int) (Carrier, error) {
	if size <= anchor.LegacyOpReturnLimit && s.CanHandle(OpReturn, size) {
		return OpReturn, nil
	}

	var (
		best     Carrier
		bestSize = -1
	)
	for _, info := range s.table {
		if !info.Relayed || info.UTXOImpact || !s.CanHandle(info.Carrier, size) {
			continue
		}

		vBytes := estimate(info, size)
		if bestSize == -1 || vBytes < bestSize {
			best, bestSize = info.Carrier, vBytes
		}
	}

	if bestSize == -1 {
		return 0, fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, size)
	}

	return best, nil
}

// EstimateTxSize returns estimated transaction size in vBytes for the payload carried by provided carrier.
func (s *Strategy) EstimateTxSize(size int, c Carrier) (int, error) {
	info, err := s.Lookup(c)
	if err != nil {
		return 0, err
	}

	return estimate(info, size), nil
}

// Validate returns ErrMessageTooLarge if payload does not fit into the carrier.
func (s *Strategy) Validate(c Carrier, size int) error {
	info, err := s.Lookup(c)
	if err != nil {
		return err
	}

	if size > info.MaxPayload {
		return fmt.Errorf("%w: %d bytes exceeds %s limit of %d", ErrMessageTooLarge, size, c, info.MaxPayload)
	}

	return nil
}

// estimate returns base overhead + scaled payload + carrier overhead, ceil is used for scaling.
func estimate(info Info, size int) int {
	weight := size * info.WeightPerByte
	vBytes := weight / witnessScaleFactor
	if weight%witnessScaleFactor != 0 {
		vBytes++
	}

	return baseOverheadVBytes + vBytes + info.Overhead
}

// CanHandle uses DefaultStrategy.CanHandle.
func CanHandle(c Carrier, size int) bool {
	return DefaultStrategy.CanHandle(c, size)
}

// Recommend uses DefaultStrategy.Recommend.
func Recommend(size int) (Carrier, error) {
	return DefaultStrategy.Recommend(size)
}

// EstimateTxSize uses DefaultStrategy.EstimateTxSize.
func EstimateTxSize(size int, c Carrier) (int, error) {
	return DefaultStrategy.EstimateTxSize(size, c)
}
