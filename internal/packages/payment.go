package packages

import (
	"math"

	"github.com/clientdesk/backend/internal/engine"
)

// ValidatePayment enforces the payment invariant: amount received is a
// finite non-negative number and, when a price is set, never exceeds it.
// It runs before every commit that can change either value.
func ValidatePayment(price *float64, received float64) error {
	if math.IsNaN(received) || math.IsInf(received, 0) {
		return engine.Validationf("amount received must be a finite number")
	}
	if received < 0 {
		return engine.Invariantf("amount received cannot be negative")
	}
	if price != nil {
		if math.IsNaN(*price) || math.IsInf(*price, 0) {
			return engine.Validationf("price must be a finite number")
		}
		if *price < 0 {
			return engine.Validationf("price cannot be negative")
		}
		if received > *price {
			return engine.Invariantf("amount received %.2f exceeds price %.2f", received, *price)
		}
	}
	return nil
}
