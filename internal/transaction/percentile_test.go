package transaction

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPercentile(t *testing.T) {
	tests := []struct {
		name   string
		values []uint64
		p      float64
		want   uint64
		ok     bool
	}{
		{"empty", nil, 70, 0, false},
		{"single", []uint64{1234}, 70, 1234, true},
		{"interpolated and rounded", []uint64{1, 2, 3, 4, 5}, 70, 4, true},
		{"unsorted input", []uint64{5, 1, 4, 2, 3}, 70, 4, true},
		{"min", []uint64{10, 20, 30}, 0, 10, true},
		{"max", []uint64{10, 20, 30}, 100, 30, true},
		{"median", []uint64{10, 20, 30, 40}, 50, 25, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Percentile(tt.values, tt.p)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPercentile_DoesNotMutateInput(t *testing.T) {
	values := []uint64{3, 1, 2}
	Percentile(values, 70)
	assert.Equal(t, []uint64{3, 1, 2}, values)
}
