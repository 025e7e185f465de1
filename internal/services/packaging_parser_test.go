package services

import (
	"testing"

	"inventaris/server/internal/errs"
)

func TestSuggestFactor(t *testing.T) {
	parser := NewPackagingLabelParser()

	tests := []struct {
		label    string
		baseUnit string
		want     string
	}{
		{"dus 12 x 500 ml", "ml", "6000"},
		{"Karung 25 kg", "gram", "25000"},
		{"karung 25 kg", "kg", "25"},
		{"botol 1,5 L", "ml", "1500"},
		{"6 pcs x 2 l", "ml", "12000"},
		{"pack 4x250gr", "gram", "1000"},
		{"tray isi 30 butir", "butir", "30"},
		{"bungkus 5 ons", "gram", "500"},
		{"jerigen 5 liter", "liter", "5"},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			result, err := parser.SuggestFactor(tt.label, tt.baseUnit)
			if err != nil {
				t.Fatalf("SuggestFactor(%q, %q) error: %v", tt.label, tt.baseUnit, err)
			}
			if !result.Factor.Equal(dec(tt.want)) {
				t.Fatalf("SuggestFactor(%q, %q) = %s, want %s", tt.label, tt.baseUnit, result.Factor, tt.want)
			}
			if result.Extracted == "" || result.Message == "" {
				t.Fatalf("expected extracted text and message, got %+v", result)
			}
		})
	}
}

func TestSuggestFactorRejects(t *testing.T) {
	parser := NewPackagingLabelParser()

	tests := []struct {
		name     string
		label    string
		baseUnit string
	}{
		{"empty label", "  ", "gram"},
		{"unknown base unit", "25 kg", "sendok"},
		{"volume into mass", "12 x 500 ml", "gram"},
		{"no quantity", "karung besar", "gram"},
		{"only piece count", "isi 12 pcs", "ml"},
		{"zero quantity", "0 kg", "gram"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parser.SuggestFactor(tt.label, tt.baseUnit)
			assertKind(t, err, errs.KindValidation)
		})
	}
}
