package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWholeUnits(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want int
	}{
		{"integer", 12, 12},
		{"fraction floors", 12.9, 12},
		{"float noise", 2.9999999999, 3},
		{"negative clamps", -4.2, 0},
		{"zero", 0, 0},
		{"nan", math.NaN(), 0},
		{"inf", math.Inf(1), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WholeUnits(tt.in))
		})
	}
}

func TestClassifyAction(t *testing.T) {
	tests := []struct {
		name     string
		position int
		rop      float64
		ss       float64
		eoq      float64
		want     Action
	}{
		{"at reorder point", 50, 50, 20, 100, ActionReorderNow},
		{"negative position", -5, 0, 0, 0, ActionReorderNow},
		{"within half safety stock", 60, 50, 20, 100, ActionReorderSoon},
		{"above one and a half eoq", 201, 50, 20, 100, ActionOverstocked},
		{"no eoq never overstocked", 10000, 50, 20, 0, ActionAdequate},
		{"adequate", 120, 50, 20, 100, ActionAdequate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyAction(tt.position, tt.rop, tt.ss, tt.eoq))
		})
	}
}

func TestPurchaseOrderUnits(t *testing.T) {
	po := PurchaseOrder{Items: map[string]int{"A": 10, "B": 5}}
	assert.Equal(t, 15, po.Units())
}
