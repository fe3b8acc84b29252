// Package validation holds the fixed business rules applied to parsed
// trades. Validate is pure: the reference time is passed in, nothing is
// read from the environment.
package validation

import (
	"fmt"
	"time"

	"github.com/tradeops/trademanager/internal/model"
)

// principalScale is the fixed decimal scale at which the principal
// equation is checked, rounding half up.
const principalScale = 4

// Validate applies all rules and accumulates every violation instead of
// short-circuiting. A field required by a rule that is absent is itself a
// violation, not a fault. An empty result means the trade is admissible.
func Validate(trade *model.TradeDetails, now time.Time) []string {
	var violations []string
	today := model.DateOf(now)

	if trade.TradeDate == nil {
		violations = append(violations, "Trade date is missing.")
	} else if !trade.TradeDate.Equal(today) {
		violations = append(violations,
			fmt.Sprintf("Trade date (%s) is not the current date (%s).", trade.TradeDate, today))
	}

	if trade.SettleDate == nil {
		violations = append(violations, "Settlement date is missing.")
	} else if !trade.SettleDate.After(today) {
		violations = append(violations,
			fmt.Sprintf("Settlement date (%s) is not in the future.", trade.SettleDate))
	}

	if trade.Quantity == nil || trade.Price == nil || trade.Principal == nil {
		violations = append(violations, "Quantity, price, or principal is missing.")
	} else {
		calculated := trade.Quantity.Mul(*trade.Price).Round(principalScale)
		provided := trade.Principal.Round(principalScale)
		if !calculated.Equal(provided) {
			violations = append(violations,
				fmt.Sprintf("Principal amount (%s) does not equal quantity * price (%s).", provided, calculated))
		}
	}

	return violations
}
