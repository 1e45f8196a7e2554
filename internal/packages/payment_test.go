package packages

import (
	"math"
	"testing"

	"github.com/clientdesk/backend/internal/engine"
)

func fptr(v float64) *float64 { return &v }

func TestValidatePayment(t *testing.T) {
	cases := []struct {
		name     string
		price    *float64
		received float64
		wantErr  func(error) bool
	}{
		{"zero received no price", nil, 0, nil},
		{"received without price", nil, 150, nil},
		{"received equals price", fptr(200), 200, nil},
		{"received under price", fptr(200), 50, nil},
		{"negative received", nil, -1, engine.IsInvariant},
		{"received over price", fptr(200), 200.01, engine.IsInvariant},
		{"nan received", nil, math.NaN(), engine.IsValidation},
		{"inf received", nil, math.Inf(1), engine.IsValidation},
		{"nan price", fptr(math.NaN()), 0, engine.IsValidation},
		{"negative price", fptr(-10), 0, engine.IsValidation},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := ValidatePayment(c.price, c.received)
			if c.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !c.wantErr(err) {
				t.Fatalf("got %v, want matching error class", err)
			}
		})
	}
}
