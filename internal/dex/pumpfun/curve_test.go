package pumpfun

import (
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeCurve(s CurveState) []byte {
	data := make([]byte, CurveStateMinLength)
	copy(data, BondingCurveDiscriminator[:])
	le := binary.LittleEndian
	le.PutUint64(data[8:], s.VirtualTokenReserves)
	le.PutUint64(data[16:], s.VirtualSolReserves)
	le.PutUint64(data[24:], s.RealTokenReserves)
	le.PutUint64(data[32:], s.RealSolReserves)
	le.PutUint64(data[40:], s.TokenTotalSupply)
	if s.Complete {
		data[48] = 1
	}
	copy(data[49:], s.Creator.Bytes())
	return data
}

func sampleState() CurveState {
	return CurveState{
		VirtualTokenReserves: 1_073_000_000_000_000,
		VirtualSolReserves:   30_000_000_000,
		RealTokenReserves:    793_100_000_000_000,
		RealSolReserves:      0,
		TokenTotalSupply:     1_000_000_000_000_000,
		Complete:             false,
		Creator:              solana.NewWallet().PublicKey(),
	}
}

func TestDecodeCurveState_Layout(t *testing.T) {
	want := sampleState()
	want.Complete = true

	got, err := DecodeCurveState(encodeCurve(want))
	require.NoError(t, err)
	assert.Equal(t, want, *got)
}

func TestDecodeCurveState_TrailingBytesIgnored(t *testing.T) {
	want := sampleState()
	data := append(encodeCurve(want), 0xde, 0xad, 0xbe, 0xef)

	got, err := DecodeCurveState(data)
	require.NoError(t, err)
	assert.Equal(t, want.VirtualSolReserves, got.VirtualSolReserves)
	assert.Equal(t, want.Creator, got.Creator)
}

func TestDecodeCurveState_Errors(t *testing.T) {
	valid := encodeCurve(sampleState())

	wrongDisc := append([]byte(nil), valid...)
	wrongDisc[0] = 0x00

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrTruncatedRecord},
		{"shorter than discriminator", valid[:5], ErrTruncatedRecord},
		{"wrong discriminator", wrongDisc, ErrInvalidDiscriminator},
		{"wrong discriminator and short", wrongDisc[:20], ErrInvalidDiscriminator},
		{"truncated body", valid[:72], ErrTruncatedRecord},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, err := DecodeCurveState(tt.data)
			assert.Nil(t, state)
			require.ErrorIs(t, err, tt.want)

			var decErr *DecodeError
			require.ErrorAs(t, err, &decErr)
			assert.Equal(t, len(tt.data), decErr.Length)
		})
	}
}

func TestCurvePrice(t *testing.T) {
	s := sampleState()

	price, err := CurvePrice(&s)
	require.NoError(t, err)
	// 30 SOL / 1_073_000_000 tokens
	assert.InDelta(t, 30.0/1_073_000_000.0, price, 1e-18)

	assert.InDelta(t, price*1_000_000_000, s.MarketCap(price), 1e-9)
}

func TestCurvePrice_ZeroReserves(t *testing.T) {
	s := sampleState()
	s.VirtualTokenReserves = 0
	_, err := s.Price()
	assert.ErrorIs(t, err, ErrInvalidReserves)

	s = sampleState()
	s.VirtualSolReserves = 0
	_, err = DeriveMetrics(&s)
	assert.ErrorIs(t, err, ErrInvalidReserves)
}

func TestCurvePrice_MonotoneInSolReserves(t *testing.T) {
	s := sampleState()
	prev := 0.0
	for _, sol := range []uint64{1e9, 10e9, 30e9, 60e9, 90e9} {
		s.VirtualSolReserves = sol
		p, err := s.Price()
		require.NoError(t, err)
		assert.Greater(t, p, prev)
		prev = p
	}
}

func TestProgress(t *testing.T) {
	tests := []struct {
		realSol uint64
		want    float64
	}{
		{0, 0},
		{42_500_000_000, 50},
		{85_000_000_000, 100},
		{120_000_000_000, 100},
	}
	for _, tt := range tests {
		s := sampleState()
		s.RealSolReserves = tt.realSol
		assert.InDelta(t, tt.want, s.Progress(), 1e-9)
	}
}

func TestDeriveMetrics(t *testing.T) {
	s := sampleState()
	s.RealSolReserves = 17_000_000_000

	m, err := DeriveMetrics(&s)
	require.NoError(t, err)
	assert.InDelta(t, 30.0, m.VirtualSol, 1e-9)
	assert.InDelta(t, 1_073_000_000.0, m.VirtualTokens, 1e-3)
	assert.InDelta(t, 17.0, m.RealSol, 1e-9)
	assert.InDelta(t, 20.0, m.Progress, 1e-9)
	assert.InDelta(t, m.Price*1e9, m.MarketCap, 1e-9)
}

func TestDeriveBondingCurve_Deterministic(t *testing.T) {
	mint := solana.NewWallet().PublicKey()

	a, err := DeriveBondingCurve(mint)
	require.NoError(t, err)
	b, err := DeriveBondingCurve(mint)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, mint, a)
}
