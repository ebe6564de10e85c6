package finance

import (
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ones      = []string{"", "one", "two", "three", "four", "five", "six", "seven", "eight", "nine"}
	teens     = []string{"ten", "eleven", "twelve", "thirteen", "fourteen", "fifteen", "sixteen", "seventeen", "eighteen", "nineteen"}
	tens      = []string{"", "", "twenty", "thirty", "forty", "fifty", "sixty", "seventy", "eighty", "ninety"}
	thousands = []string{"", "thousand", "million", "billion", "trillion"}
)

var currencyUnits = map[string][2]string{
	"NGN": {"naira", "kobo"},
	"USD": {"dollars", "cents"},
	"GBP": {"pounds", "pence"},
	"EUR": {"euros", "cents"},
}

// AmountInWords spells out an amount for the payable line of a voucher,
// e.g. "One thousand twenty-five naira only."
func AmountInWords(amount decimal.Decimal, currency string) string {
	amount = amount.Abs().Round(2)
	major := amount.IntPart()
	minor := amount.Sub(decimal.NewFromInt(major)).Mul(hundred).IntPart()

	code := strings.ToUpper(strings.TrimSpace(currency))
	if code == "" {
		code = "NGN"
	}
	units, ok := currencyUnits[code]
	if !ok {
		units = [2]string{strings.ToLower(code), "cents"}
	}

	words := capitalize(intToWords(major)) + " " + units[0]
	if minor > 0 {
		words += ", " + capitalize(intToWords(minor)) + " " + units[1]
	}
	return words + " only."
}

func intToWords(n int64) string {
	if n == 0 {
		return "zero"
	}
	var groups []string
	for i := 0; n > 0 && i < len(thousands); i++ {
		chunk := n % 1000
		n /= 1000
		if chunk == 0 {
			continue
		}
		w := chunkToWords(chunk)
		if thousands[i] != "" {
			w += " " + thousands[i]
		}
		groups = append([]string{w}, groups...)
	}
	return strings.Join(groups, " ")
}

func chunkToWords(n int64) string {
	var parts []string
	h, rem := n/100, n%100
	if h > 0 {
		parts = append(parts, ones[h]+" hundred")
		if rem > 0 {
			parts = append(parts, "and")
		}
	}
	switch {
	case rem >= 20:
		w := tens[rem/10]
		if rem%10 > 0 {
			w += "-" + ones[rem%10]
		}
		parts = append(parts, w)
	case rem >= 10:
		parts = append(parts, teens[rem-10])
	case rem > 0:
		parts = append(parts, ones[rem])
	}
	return strings.Join(parts, " ")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
