package payment

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"possettle/backend/internal/domain"
)

// ValidateCard checks the card-present fields before anything is sent to a
// processor. The card is valid through the last day of its expiry month.
func ValidateCard(card domain.CardData, now time.Time) error {
	pan := digitsOnly(card.PAN)
	if len(pan) < 12 || len(pan) > 19 || len(pan) != len(strings.ReplaceAll(strings.ReplaceAll(card.PAN, " ", ""), "-", "")) {
		return ErrInvalidPAN
	}
	if !luhnValid(pan) {
		return ErrInvalidPAN
	}

	month, year, err := parseExpiry(card.Expiry)
	if err != nil {
		return err
	}
	firstOfNextMonth := time.Date(year, time.Month(month)+1, 1, 0, 0, 0, 0, time.UTC)
	if !now.UTC().Before(firstOfNextMonth) {
		return ErrCardExpired
	}

	cvv := strings.TrimSpace(card.CVV)
	if len(cvv) < 3 || len(cvv) > 4 || digitsOnly(cvv) != cvv {
		return ErrInvalidCVV
	}
	return nil
}

func parseExpiry(expiry string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(expiry), "/")
	if len(parts) != 2 || len(parts[0]) != 2 || (len(parts[1]) != 2 && len(parts[1]) != 4) {
		return 0, 0, ErrInvalidExpiry
	}
	month, err := strconv.Atoi(parts[0])
	if err != nil || month < 1 || month > 12 {
		return 0, 0, ErrInvalidExpiry
	}
	year, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, ErrInvalidExpiry
	}
	if len(parts[1]) == 2 {
		year += 2000
	}
	return month, year, nil
}

func luhnValid(pan string) bool {
	sum := 0
	double := false
	for i := len(pan) - 1; i >= 0; i-- {
		d := int(pan[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// MaskPAN keeps only the last four digits.
func MaskPAN(pan string) string {
	digits := digitsOnly(pan)
	if len(digits) <= 4 {
		return strings.Repeat("*", len(digits))
	}
	return strings.Repeat("*", len(digits)-4) + digits[len(digits)-4:]
}

func CardBrand(pan string) string {
	digits := digitsOnly(pan)
	prefix := func(n int) int {
		if len(digits) < n {
			return -1
		}
		v, _ := strconv.Atoi(digits[:n])
		return v
	}

	switch {
	case strings.HasPrefix(digits, "4"):
		return "visa"
	case prefix(2) >= 51 && prefix(2) <= 55, prefix(4) >= 2221 && prefix(4) <= 2720:
		return "mastercard"
	case prefix(2) == 34 || prefix(2) == 37:
		return "amex"
	case prefix(4) == 6011 || prefix(2) == 65:
		return "discover"
	case prefix(4) >= 3528 && prefix(4) <= 3589:
		return "jcb"
	default:
		return "card"
	}
}

// NormalizePhone strips formatting and accepts 8 to 15 digits with an
// optional leading plus.
func NormalizePhone(phone string) (string, error) {
	trimmed := strings.TrimSpace(phone)
	plus := strings.HasPrefix(trimmed, "+")
	cleaned := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", "+", "").Replace(trimmed)
	if digitsOnly(cleaned) != cleaned || len(cleaned) < 8 || len(cleaned) > 15 {
		return "", fmt.Errorf("%w: %q", ErrInvalidPhone, phone)
	}
	if plus {
		return "+" + cleaned, nil
	}
	return cleaned, nil
}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
