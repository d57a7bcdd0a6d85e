package monitor

import (
	"time"
)

// SessionSummary - итог по позициям менеджера
type SessionSummary struct {
	TotalPositions  int
	ActivePositions int
	ClosedPositions int

	WinningTrades int
	LosingTrades  int
	WinRate       float64 // в процентах от закрытых

	TotalInvested float64 // SOL, по закрытым позициям
	RealizedPnL   float64 // SOL
	NetROIPercent float64
	LargestWin    float64
	LargestLoss   float64
	ProfitFactor  float64
	AvgHoldTime   time.Duration

	ExitsByReason map[ExitReason]int
}

// Summarize считает статистику по закрытым позициям. Активные только подсчитываются.
func Summarize(positions []*Position) SessionSummary {
	s := SessionSummary{
		TotalPositions: len(positions),
		ExitsByReason:  make(map[ExitReason]int),
	}

	var (
		totalWins   float64
		totalLosses float64
		totalHold   time.Duration
	)

	for _, p := range positions {
		snap := p.Snapshot()
		if snap.IsActive {
			s.ActivePositions++
			continue
		}
		s.ClosedPositions++
		s.ExitsByReason[snap.Exit.Reason]++
		s.TotalInvested += snap.SolInvested
		totalHold += snap.Exit.ExitTime.Sub(snap.EntryTime)

		pnl := snap.PnL(snap.Exit.ExitPrice).Unrealized
		s.RealizedPnL += pnl
		switch {
		case pnl > 0:
			s.WinningTrades++
			totalWins += pnl
			s.LargestWin = max(s.LargestWin, pnl)
		case pnl < 0:
			s.LosingTrades++
			totalLosses += -pnl
			s.LargestLoss = min(s.LargestLoss, pnl)
		}
	}

	if s.ClosedPositions > 0 {
		s.WinRate = float64(s.WinningTrades) / float64(s.ClosedPositions) * 100
		s.AvgHoldTime = totalHold / time.Duration(s.ClosedPositions)
	}
	if s.TotalInvested > 0 {
		s.NetROIPercent = s.RealizedPnL / s.TotalInvested * 100
	}
	if totalLosses > 0 {
		s.ProfitFactor = totalWins / totalLosses
	}
	return s
}
