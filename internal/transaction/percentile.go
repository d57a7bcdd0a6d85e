// internal/transaction/percentile.go
package transaction

import (
	"math"
	"slices"
)

// Percentile возвращает p-й перцентиль выборки с линейной интерполяцией
// между соседними рангами, округлённый до ближайшего целого.
// Для пустой выборки ok == false.
func Percentile(values []uint64, p float64) (value uint64, ok bool) {
	if len(values) == 0 {
		return 0, false
	}
	if len(values) == 1 {
		return values[0], true
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	p = math.Max(0, math.Min(100, p))
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))

	v := float64(sorted[lo]) + (float64(sorted[hi])-float64(sorted[lo]))*(rank-float64(lo))
	return uint64(math.Round(v)), true
}
