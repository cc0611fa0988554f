package world

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// MaxFormattedBytes is the hard budget for any formatted currency string.
// The radio transport frames messages at roughly 200 bytes, so anything the
// store hands to the session layer must already fit.
const MaxFormattedBytes = 200

// ErrUnparsableAmount indicates input that could not be read as a currency
// amount under the active system.
var ErrUnparsableAmount = errors.New("unparsable currency amount")

// FormatCurrency renders an amount for display under the given system. The
// result never exceeds MaxFormattedBytes. An amount whose kind does not
// match the system falls back to a bare unit count rather than failing.
func FormatCurrency(amount CurrencyAmount, system CurrencySystem) string {
	var out string
	switch {
	case amount.kindOrDefault() == CurrencyDecimal && system.Kind == CurrencyDecimal && system.Decimal != nil:
		out = formatDecimal(amount.Units, *system.Decimal)
	case amount.kindOrDefault() == CurrencyMultiTier && system.Kind == CurrencyMultiTier && system.MultiTier != nil:
		out = formatMultiTier(amount.Units, *system.MultiTier)
	default:
		out = fmt.Sprintf("%d units", amount.Units)
	}
	return truncateToBudget(out)
}

// truncateToBudget caps s at MaxFormattedBytes, backing off to the nearest
// rune boundary so the cut never leaves a broken multi-byte symbol behind.
func truncateToBudget(s string) string {
	if len(s) <= MaxFormattedBytes {
		return s
	}
	cut := MaxFormattedBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func formatDecimal(minorUnits int64, cfg DecimalCurrency) string {
	if cfg.Decimals <= 0 {
		name := cfg.NamePlural
		if minorUnits == 1 || minorUnits == -1 {
			name = cfg.Name
		}
		return fmt.Sprintf("%s%d %s", cfg.Symbol, minorUnits, name)
	}
	divisor := pow10(cfg.Decimals)
	whole := minorUnits / divisor
	frac := minorUnits % divisor
	if frac < 0 {
		frac = -frac
	}
	sign := ""
	if minorUnits < 0 && whole == 0 {
		sign = "-"
	}
	return fmt.Sprintf("%s%s%d.%0*d", cfg.Symbol, sign, whole, cfg.Decimals, frac)
}

func formatMultiTier(baseUnits int64, cfg MultiTierCurrency) string {
	if baseUnits == 0 {
		return fmt.Sprintf("0 %s", cfg.BaseUnit)
	}

	remaining := baseUnits
	negative := remaining < 0
	if negative {
		remaining = -remaining
	}

	tiers := make([]CurrencyTier, len(cfg.Tiers))
	copy(tiers, cfg.Tiers)
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].RatioToBase > tiers[j].RatioToBase })

	var parts []string
	for _, tier := range tiers {
		if tier.RatioToBase <= 0 {
			continue
		}
		count := remaining / tier.RatioToBase
		if count > 0 {
			parts = append(parts, fmt.Sprintf("%d%s", count, tier.Symbol))
			remaining %= tier.RatioToBase
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("0 %s", cfg.BaseUnit)
	}
	out := strings.Join(parts, " ")
	if negative {
		out = "-" + out
	}
	return out
}

func pow10(n int) int64 {
	out := int64(1)
	for i := 0; i < n; i++ {
		out *= 10
	}
	return out
}

// ParseCurrency reads a currency amount from user input under the given
// system. Decimal input accepts a bare number, an optional symbol, and an
// optional decimal point ("12.34", "¤5.50", "100 credits"). Multi-tier
// input accepts bare base units or tier pairs ("537", "5g 3s 7c",
// "5 gold 3 silver").
func ParseCurrency(input string, system CurrencySystem) (CurrencyAmount, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return CurrencyAmount{}, fmt.Errorf("empty input: %w", ErrUnparsableAmount)
	}
	switch system.Kind {
	case CurrencyDecimal:
		if system.Decimal == nil {
			return CurrencyAmount{}, fmt.Errorf("decimal system unconfigured: %w", ErrUnparsableAmount)
		}
		return parseDecimal(input, *system.Decimal)
	case CurrencyMultiTier:
		if system.MultiTier == nil {
			return CurrencyAmount{}, fmt.Errorf("multi-tier system unconfigured: %w", ErrUnparsableAmount)
		}
		return parseMultiTier(input, *system.MultiTier)
	default:
		return CurrencyAmount{}, fmt.Errorf("unknown currency system %q: %w", system.Kind, ErrUnparsableAmount)
	}
}

func parseDecimal(input string, cfg DecimalCurrency) (CurrencyAmount, error) {
	// Strip the plural name before the singular so "credits" does not leave
	// a trailing "s" behind.
	cleaned := strings.ReplaceAll(input, cfg.Symbol, "")
	if cfg.NamePlural != "" {
		cleaned = strings.ReplaceAll(cleaned, cfg.NamePlural, "")
	}
	if cfg.Name != "" {
		cleaned = strings.ReplaceAll(cleaned, cfg.Name, "")
	}
	cleaned = strings.TrimSpace(cleaned)

	if !strings.Contains(cleaned, ".") {
		value, err := strconv.ParseInt(cleaned, 10, 64)
		if err != nil {
			return CurrencyAmount{}, fmt.Errorf("%q: %w", input, ErrUnparsableAmount)
		}
		return Decimal(value * pow10(cfg.Decimals)), nil
	}

	whole, frac, ok := strings.Cut(cleaned, ".")
	if !ok || strings.Contains(frac, ".") {
		return CurrencyAmount{}, fmt.Errorf("%q: %w", input, ErrUnparsableAmount)
	}
	wholeValue, err := strconv.ParseInt(strings.TrimSpace(whole), 10, 64)
	if err != nil {
		return CurrencyAmount{}, fmt.Errorf("%q: %w", input, ErrUnparsableAmount)
	}
	fracStr := strings.TrimSpace(frac)
	if len(fracStr) > cfg.Decimals {
		fracStr = fracStr[:cfg.Decimals]
	}
	for len(fracStr) < cfg.Decimals {
		fracStr += "0"
	}
	fracValue := int64(0)
	if cfg.Decimals > 0 {
		fracValue, err = strconv.ParseInt(fracStr, 10, 64)
		if err != nil {
			return CurrencyAmount{}, fmt.Errorf("%q: %w", input, ErrUnparsableAmount)
		}
	}
	minor := wholeValue * pow10(cfg.Decimals)
	if wholeValue < 0 || strings.HasPrefix(strings.TrimSpace(whole), "-") {
		minor -= fracValue
	} else {
		minor += fracValue
	}
	return Decimal(minor), nil
}

func parseMultiTier(input string, cfg MultiTierCurrency) (CurrencyAmount, error) {
	// A bare number is base units.
	if value, err := strconv.ParseInt(input, 10, 64); err == nil {
		return MultiTier(value), nil
	}

	total := int64(0)
	fields := strings.Fields(input)
	i := 0
	for i < len(fields) {
		count, rest, ok := splitCountSuffix(fields[i])
		var tierName string
		switch {
		case ok && rest != "":
			// Compact form like "5g".
			tierName = rest
			i++
		case ok:
			// "5 gold" form; the tier name is the next field.
			if i+1 >= len(fields) {
				return CurrencyAmount{}, fmt.Errorf("missing tier after %q: %w", fields[i], ErrUnparsableAmount)
			}
			tierName = fields[i+1]
			i += 2
		default:
			return CurrencyAmount{}, fmt.Errorf("expected number, got %q: %w", fields[i], ErrUnparsableAmount)
		}

		tier, found := findTier(tierName, cfg)
		if !found {
			return CurrencyAmount{}, fmt.Errorf("unknown currency tier %q: %w", tierName, ErrUnparsableAmount)
		}
		total += count * tier.RatioToBase
	}
	return MultiTier(total), nil
}

// splitCountSuffix splits "5g" into (5, "g", true) and "5" into
// (5, "", true).
func splitCountSuffix(field string) (int64, string, bool) {
	digits := len(field)
	for i, r := range field {
		if (r < '0' || r > '9') && !(i == 0 && r == '-') {
			digits = i
			break
		}
	}
	if digits == 0 {
		return 0, "", false
	}
	count, err := strconv.ParseInt(field[:digits], 10, 64)
	if err != nil {
		return 0, "", false
	}
	return count, field[digits:], true
}

func findTier(name string, cfg MultiTierCurrency) (CurrencyTier, bool) {
	lower := strings.ToLower(name)
	for _, tier := range cfg.Tiers {
		if strings.ToLower(tier.Symbol) == lower ||
			strings.ToLower(tier.Name) == lower ||
			strings.ToLower(tier.NamePlural) == lower {
			return tier, true
		}
	}
	return CurrencyTier{}, false
}
