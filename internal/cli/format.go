package cli

import (
	"fmt"
	"math"
	"strings"
	"time"

	"options-lab/internal/models"
	"options-lab/pkg/utils"
)

// FormatStrike formats a strike without trailing zeros, e.g. 102.5 or 100.
func FormatStrike(strike float64) string {
	s := fmt.Sprintf("%.2f", strike)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

// FormatPrice formats a per-share price.
func FormatPrice(price float64) string {
	if math.IsNaN(price) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", price)
}

// FormatAmount formats a position-level amount, spelling out unbounded
// values.
func FormatAmount(amount float64) string {
	return utils.FormatCurrency(amount)
}

// FormatBreakevens lists breakeven prices in ascending order.
func FormatBreakevens(prices []float64) string {
	if len(prices) == 0 {
		return "none"
	}
	parts := make([]string, len(prices))
	for i, p := range prices {
		parts[i] = FormatPrice(p)
	}
	return strings.Join(parts, ", ")
}

// FormatRewardRisk formats a reward-to-risk ratio as 1:x.
func FormatRewardRisk(rr float64) string {
	switch {
	case math.IsNaN(rr):
		return "n/a"
	case math.IsInf(rr, 1):
		return "1:∞"
	}
	return fmt.Sprintf("1:%.2f", rr)
}

// FormatGreeks formats Greeks on one line.
func FormatGreeks(g models.Greeks) string {
	return fmt.Sprintf("Δ: %.4f  Γ: %.4f  Θ: %.4f  ν: %.4f  ρ: %.4f", g.Delta, g.Gamma, g.Theta, g.Vega, g.Rho)
}

// FormatIV formats implied volatility given as a fraction.
func FormatIV(iv float64) string {
	return fmt.Sprintf("%.2f%%", iv*100)
}

// FormatLeg describes a leg, e.g. "BUY 2x CALL 105 @ 3.20 exp 2024-03-15".
func FormatLeg(l models.OptionLeg, dateLayout string) string {
	return fmt.Sprintf("%s %dx %s %s @ %s exp %s",
		strings.ToUpper(string(l.Action)), l.Quantity, strings.ToUpper(string(l.Type)),
		FormatStrike(l.Strike), FormatPrice(l.Premium), FormatDate(l.Expiration, dateLayout))
}

// FormatDate formats a date with layout, falling back to YYYY-MM-DD.
func FormatDate(t time.Time, layout string) string {
	if layout == "" {
		layout = time.DateOnly
	}
	return t.Format(layout)
}

// FormatDuration formats a duration in human-readable form.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
}

// TruncateString truncates a string to max length with ellipsis.
func TruncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
