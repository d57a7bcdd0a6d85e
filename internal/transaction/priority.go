// internal/transaction/priority.go
package transaction

import (
	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
)

// DefaultComputeUnits - лимит compute units для сделок на bonding curve
const DefaultComputeUnits = 200_000

// PriorityInstructions собирает инструкции ComputeBudget для рассчитанной
// комиссии. Нулевые значения пропускаются.
func PriorityInstructions(result PriorityFeeResult, computeUnits uint32) []solana.Instruction {
	var instructions []solana.Instruction

	if computeUnits > 0 {
		instructions = append(instructions,
			computebudget.NewSetComputeUnitLimitInstruction(computeUnits).Build())
	}
	if result.Fee > 0 {
		instructions = append(instructions,
			computebudget.NewSetComputeUnitPriceInstruction(result.Fee).Build())
	}

	return instructions
}

// TotalPriorityCostLamports - верхняя граница доплаты за приоритет в лампортах.
func TotalPriorityCostLamports(result PriorityFeeResult, computeUnits uint32) uint64 {
	return result.Fee * uint64(computeUnits) / 1_000_000
}
