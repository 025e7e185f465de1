package services

import (
	"math"
	"math/rand"
	"testing"

	"inventaris/server/internal/models"

	"github.com/shopspring/decimal"
)

func recipeOf(lines map[string]string) models.Recipe {
	r := models.Recipe{ProductID: "p"}
	for id, qty := range lines {
		r.Lines = append(r.Lines, models.RecipeLine{RawMaterialID: id, QuantityRequiredPerUnit: dec(qty)})
	}
	return r
}

func levelsOf(levels map[string]string) map[string]decimal.Decimal {
	result := make(map[string]decimal.Decimal, len(levels))
	for id, qty := range levels {
		result[id] = dec(qty)
	}
	return result
}

func TestComputeMaxProducible(t *testing.T) {
	calc := NewCapacityCalculator()

	tests := []struct {
		name   string
		recipe map[string]string
		levels map[string]string
		want   int64
	}{
		{
			name:   "two ingredients, second is the bottleneck",
			recipe: map[string]string{"a": "50", "b": "5"},
			levels: map[string]string{"a": "500", "b": "60"},
			want:   10,
		},
		{
			name:   "floor of fractional capacity",
			recipe: map[string]string{"a": "0.3"},
			levels: map[string]string{"a": "1"},
			want:   3,
		},
		{
			name:   "exact division",
			recipe: map[string]string{"a": "0.1"},
			levels: map[string]string{"a": "0.3"},
			want:   3,
		},
		{
			name:   "missing stock counts as zero",
			recipe: map[string]string{"a": "1", "b": "1"},
			levels: map[string]string{"a": "10"},
			want:   0,
		},
		{
			name:   "empty recipe",
			recipe: map[string]string{},
			levels: map[string]string{"a": "10"},
			want:   0,
		},
		{
			name:   "not enough for one unit",
			recipe: map[string]string{"a": "2.5"},
			levels: map[string]string{"a": "2.4999"},
			want:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calc.ComputeMaxProducible(recipeOf(tt.recipe), levelsOf(tt.levels))
			if got != tt.want {
				t.Errorf("ComputeMaxProducible() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestComputeMaxProducibleCapsHugeCapacity(t *testing.T) {
	calc := NewCapacityCalculator()
	recipe := recipeOf(map[string]string{"a": "0.000001"})
	levels := levelsOf(map[string]string{"a": "99999999999999999999"})
	if got := calc.ComputeMaxProducible(recipe, levels); got != math.MaxInt64 {
		t.Fatalf("ComputeMaxProducible() = %d, want MaxInt64", got)
	}
}

func TestCapacityIsMonotone(t *testing.T) {
	calc := NewCapacityCalculator()
	rng := rand.New(rand.NewSource(42))
	recipe := recipeOf(map[string]string{"a": "7.5", "b": "0.25", "c": "3"})

	for i := 0; i < 500; i++ {
		levels := map[string]decimal.Decimal{
			"a": decimal.NewFromInt(rng.Int63n(1000)),
			"b": decimal.NewFromInt(rng.Int63n(100)),
			"c": decimal.NewFromInt(rng.Int63n(300)),
		}
		before := calc.ComputeMaxProducible(recipe, levels)

		raised := make(map[string]decimal.Decimal, len(levels))
		for id, qty := range levels {
			raised[id] = qty
		}
		ids := []string{"a", "b", "c"}
		bump := ids[rng.Intn(len(ids))]
		raised[bump] = raised[bump].Add(decimal.NewFromInt(rng.Int63n(50) + 1))

		if after := calc.ComputeMaxProducible(recipe, raised); after < before {
			t.Fatalf("capacity decreased from %d to %d after raising %s", before, after, bump)
		}
	}
}

func TestLimitingMaterials(t *testing.T) {
	calc := NewCapacityCalculator()
	recipe := recipeOf(map[string]string{"a": "50", "b": "5", "c": "1"})
	levels := levelsOf(map[string]string{"a": "500", "b": "50", "c": "100"})

	got := calc.LimitingMaterials(recipe, levels)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("LimitingMaterials() = %v, want [a b]", got)
	}
	if calc.LimitingMaterials(models.Recipe{}, levels) != nil {
		t.Fatal("empty recipe should have no limiting materials")
	}
}

func TestCanProduce(t *testing.T) {
	calc := NewCapacityCalculator()
	recipe := recipeOf(map[string]string{"a": "50", "b": "5"})
	levels := levelsOf(map[string]string{"a": "500", "b": "60"})

	if !calc.CanProduce(recipe, levels, 10) {
		t.Error("CanProduce(10) = false, want true")
	}
	if calc.CanProduce(recipe, levels, 11) {
		t.Error("CanProduce(11) = true, want false")
	}
}
