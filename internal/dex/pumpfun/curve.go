// =============================
// File: internal/dex/pumpfun/curve.go
// =============================
package pumpfun

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/gagliardetto/solana-go"
)

// PumpFunProgramID - адрес программы Pump.fun
var PumpFunProgramID = solana.MustPublicKeyFromBase58("6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P")

// BondingCurveDiscriminator - первые 8 байт аккаунта bonding curve
// (sha256("account:BondingCurve")[:8]).
var BondingCurveDiscriminator = [8]byte{0x17, 0xb7, 0xf8, 0x37, 0x60, 0xd8, 0xac, 0x60}

const (
	// CurveStateMinLength - дискриминатор + 5×u64 + bool + pubkey
	CurveStateMinLength = 8 + 5*8 + 1 + 32

	// GraduationThresholdSol - объём реальных SOL в кривой, при котором токен мигрирует
	GraduationThresholdSol = 85.0

	LamportsPerSol   = 1e9
	TokenDecimalsPow = 1e6
)

// Ошибки декодирования
var (
	ErrInvalidDiscriminator = errors.New("invalid bonding curve discriminator")
	ErrTruncatedRecord      = errors.New("truncated bonding curve record")
	ErrInvalidReserves      = errors.New("invalid bonding curve reserves")
)

// DecodeError описывает, почему запись не удалось разобрать как bonding curve.
type DecodeError struct {
	Kind   error
	Length int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%v (length %d)", e.Kind, e.Length)
}

func (e *DecodeError) Unwrap() error {
	return e.Kind
}

// CurveState - декодированное состояние аккаунта bonding curve
type CurveState struct {
	VirtualTokenReserves uint64
	VirtualSolReserves   uint64
	RealTokenReserves    uint64
	RealSolReserves      uint64
	TokenTotalSupply     uint64
	Complete             bool
	Creator              solana.PublicKey
}

// DecodeCurveState разбирает бинарную запись аккаунта bonding curve.
// Функция чистая: при ошибке состояние не возвращается вовсе.
func DecodeCurveState(data []byte) (*CurveState, error) {
	if len(data) < len(BondingCurveDiscriminator) {
		return nil, &DecodeError{Kind: ErrTruncatedRecord, Length: len(data)}
	}
	if !bytes.Equal(data[:8], BondingCurveDiscriminator[:]) {
		return nil, &DecodeError{Kind: ErrInvalidDiscriminator, Length: len(data)}
	}
	if len(data) < CurveStateMinLength {
		return nil, &DecodeError{Kind: ErrTruncatedRecord, Length: len(data)}
	}

	le := binary.LittleEndian
	state := &CurveState{
		VirtualTokenReserves: le.Uint64(data[8:16]),
		VirtualSolReserves:   le.Uint64(data[16:24]),
		RealTokenReserves:    le.Uint64(data[24:32]),
		RealSolReserves:      le.Uint64(data[32:40]),
		TokenTotalSupply:     le.Uint64(data[40:48]),
		Complete:             data[48] != 0,
		Creator:              solana.PublicKeyFromBytes(data[49:81]),
	}
	return state, nil
}

// Price возвращает цену токена в SOL на основе виртуальных резервов.
func (s *CurveState) Price() (float64, error) {
	if s.VirtualTokenReserves == 0 || s.VirtualSolReserves == 0 {
		return 0, ErrInvalidReserves
	}
	sol := float64(s.VirtualSolReserves) / LamportsPerSol
	tokens := float64(s.VirtualTokenReserves) / TokenDecimalsPow
	return sol / tokens, nil
}

// CurvePrice - то же, что state.Price().
func CurvePrice(state *CurveState) (float64, error) {
	return state.Price()
}

// MarketCap возвращает капитализацию в SOL при заданной цене.
func (s *CurveState) MarketCap(price float64) float64 {
	return price * (float64(s.TokenTotalSupply) / TokenDecimalsPow)
}

// Progress возвращает прогресс до миграции в процентах, не более 100.
func (s *CurveState) Progress() float64 {
	sol := float64(s.RealSolReserves) / LamportsPerSol
	return math.Min(100, sol/GraduationThresholdSol*100)
}

// CurveMetrics - производные метрики bonding curve
type CurveMetrics struct {
	State         *CurveState
	Price         float64 // SOL за токен
	VirtualSol    float64
	VirtualTokens float64
	RealSol       float64
	MarketCap     float64 // в SOL
	Progress      float64 // 0..100
}

// DeriveMetrics вычисляет цену, резервы, капитализацию и прогресс.
func DeriveMetrics(state *CurveState) (*CurveMetrics, error) {
	price, err := state.Price()
	if err != nil {
		return nil, err
	}
	return &CurveMetrics{
		State:         state,
		Price:         price,
		VirtualSol:    float64(state.VirtualSolReserves) / LamportsPerSol,
		VirtualTokens: float64(state.VirtualTokenReserves) / TokenDecimalsPow,
		RealSol:       float64(state.RealSolReserves) / LamportsPerSol,
		MarketCap:     state.MarketCap(price),
		Progress:      state.Progress(),
	}, nil
}

// DeriveBondingCurve вычисляет PDA bonding curve для минта.
func DeriveBondingCurve(mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{[]byte("bonding-curve"), mint.Bytes()},
		PumpFunProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive bonding curve: %w", err)
	}
	return addr, nil
}
