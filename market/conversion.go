package market

import "strings"

// Currencies splits a six-letter FX or metal symbol such as "USDJPY" into
// its base and quote currencies.
func Currencies(symbol string) (base, quote string, ok bool) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if len(s) != 6 {
		return "", "", false
	}
	return s[:3], s[3:], true
}

// TickValueAt returns the account-currency value of one tick for one lot at
// quote t. Symbols quoted in the account currency have a fixed tick value;
// symbols whose base is the account currency convert through the mid. Cross
// rates fall back to the static TickValue.
func TickValueAt(info SymbolInfo, accountCurrency string, t Tick) float64 {
	base, quote, ok := Currencies(info.Name)
	if !ok || info.Contract <= 0 || info.TickSize <= 0 {
		return info.TickValue
	}
	account := strings.ToUpper(accountCurrency)

	switch account {
	case quote:
		return info.TickSize * info.Contract
	case base:
		if mid := t.Mid(); mid > 0 {
			return info.TickSize * info.Contract / mid
		}
	}
	return info.TickValue
}
