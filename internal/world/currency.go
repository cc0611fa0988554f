package world

import (
	"errors"
	"fmt"
)

// CurrencyKind tags which currency system an amount belongs to.
type CurrencyKind string

const (
	// CurrencyDecimal is a single-denomination currency stored as integer
	// minor units (e.g. cents of a credit).
	CurrencyDecimal CurrencyKind = "decimal"
	// CurrencyMultiTier is a tiered currency stored as integer base units
	// (e.g. coppers, with silver and gold as multiples).
	CurrencyMultiTier CurrencyKind = "multitier"
)

var (
	// ErrCurrencyMismatch indicates arithmetic across two currency systems.
	ErrCurrencyMismatch = errors.New("currency systems do not match")
	// ErrInsufficientFunds indicates a balance cannot cover an amount.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrNonPositiveAmount indicates an economic operation with a zero or
	// negative amount.
	ErrNonPositiveAmount = errors.New("amount must be positive")
)

// CurrencyAmount is a tagged integer amount in one of the two currency
// systems. The zero value is zero decimal units.
type CurrencyAmount struct {
	Kind CurrencyKind `json:"kind"`
	// Units holds minor units for decimal amounts and base units for
	// multi-tier amounts.
	Units int64 `json:"units"`
}

// Decimal returns a decimal amount in minor units.
func Decimal(minorUnits int64) CurrencyAmount {
	return CurrencyAmount{Kind: CurrencyDecimal, Units: minorUnits}
}

// MultiTier returns a multi-tier amount in base units.
func MultiTier(baseUnits int64) CurrencyAmount {
	return CurrencyAmount{Kind: CurrencyMultiTier, Units: baseUnits}
}

// EffectiveKind returns the amount's kind, treating the zero value as
// decimal so records written before the tag existed still compare correctly.
func (a CurrencyAmount) EffectiveKind() CurrencyKind {
	if a.Kind == "" {
		return CurrencyDecimal
	}
	return a.Kind
}

func (a CurrencyAmount) kindOrDefault() CurrencyKind { return a.EffectiveKind() }

// BaseValue returns the canonical comparable integer for the amount.
func (a CurrencyAmount) BaseValue() int64 {
	return a.Units
}

// IsPositive reports whether the amount is strictly positive.
func (a CurrencyAmount) IsPositive() bool {
	return a.Units > 0
}

// SameKind reports whether two amounts belong to the same currency system.
func (a CurrencyAmount) SameKind(b CurrencyAmount) bool {
	return a.kindOrDefault() == b.kindOrDefault()
}

// Add returns a+b. Both amounts must belong to the same currency system.
func (a CurrencyAmount) Add(b CurrencyAmount) (CurrencyAmount, error) {
	if !a.SameKind(b) {
		return CurrencyAmount{}, fmt.Errorf("add %s to %s: %w", b.kindOrDefault(), a.kindOrDefault(), ErrCurrencyMismatch)
	}
	return CurrencyAmount{Kind: a.kindOrDefault(), Units: a.Units + b.Units}, nil
}

// Subtract returns a-b. Economic callers must not allow the result to go
// negative; Subtract returns ErrInsufficientFunds instead of clamping.
func (a CurrencyAmount) Subtract(b CurrencyAmount) (CurrencyAmount, error) {
	if !a.SameKind(b) {
		return CurrencyAmount{}, fmt.Errorf("subtract %s from %s: %w", b.kindOrDefault(), a.kindOrDefault(), ErrCurrencyMismatch)
	}
	if a.Units < b.Units {
		return CurrencyAmount{}, ErrInsufficientFunds
	}
	return CurrencyAmount{Kind: a.kindOrDefault(), Units: a.Units - b.Units}, nil
}

// CanAfford reports whether the amount covers cost. Amounts of different
// currency systems never afford each other.
func (a CurrencyAmount) CanAfford(cost CurrencyAmount) bool {
	if !a.SameKind(cost) {
		return false
	}
	return a.Units >= cost.Units
}

// Scale multiplies the amount by num/den using integer arithmetic, rounding
// toward zero. Used for shop markup and markdown pricing in basis points.
func (a CurrencyAmount) Scale(num, den int64) CurrencyAmount {
	if den == 0 {
		return a
	}
	return CurrencyAmount{Kind: a.kindOrDefault(), Units: a.Units * num / den}
}

// ConversionRatio is the fixed integer ratio between the two currency
// systems: 100 multi-tier base units are worth one major decimal unit. With
// the default two-decimal configuration one base unit equals one minor unit,
// so conversion is lossless in both directions.
const ConversionRatio int64 = 100

// ToMultiTier converts a decimal amount to the multi-tier system at the
// fixed ratio. The conversion is exact; no rounding occurs.
func (a CurrencyAmount) ToMultiTier() (CurrencyAmount, error) {
	if a.kindOrDefault() != CurrencyDecimal {
		return CurrencyAmount{}, fmt.Errorf("convert to multitier: %w", ErrCurrencyMismatch)
	}
	return MultiTier(a.Units), nil
}

// ToDecimal converts a multi-tier amount to the decimal system at the fixed
// ratio. The conversion is exact; no rounding occurs.
func (a CurrencyAmount) ToDecimal() (CurrencyAmount, error) {
	if a.kindOrDefault() != CurrencyMultiTier {
		return CurrencyAmount{}, fmt.Errorf("convert to decimal: %w", ErrCurrencyMismatch)
	}
	return Decimal(a.Units), nil
}

// DecimalCurrency configures a single-denomination currency.
type DecimalCurrency struct {
	Name       string `json:"name"`
	NamePlural string `json:"name_plural"`
	Symbol     string `json:"symbol"`
	// Decimals is the number of decimal places shown; minor units per major
	// unit is 10^Decimals.
	Decimals int `json:"decimals"`
}

// DefaultDecimalCurrency returns the stock credit configuration.
func DefaultDecimalCurrency() DecimalCurrency {
	return DecimalCurrency{Name: "credit", NamePlural: "credits", Symbol: "¤", Decimals: 2}
}

// CurrencyTier is one denomination of a multi-tier currency.
type CurrencyTier struct {
	Name       string `json:"name"`
	NamePlural string `json:"name_plural"`
	Symbol     string `json:"symbol"`
	// RatioToBase is how many base units one unit of this tier is worth.
	RatioToBase int64 `json:"ratio_to_base"`
}

// MultiTierCurrency configures a tiered currency. Tiers are ordered lowest
// ratio first; the base tier has ratio 1.
type MultiTierCurrency struct {
	Tiers    []CurrencyTier `json:"tiers"`
	BaseUnit string         `json:"base_unit"`
}

// DefaultMultiTierCurrency returns the stock copper/silver/gold
// configuration.
func DefaultMultiTierCurrency() MultiTierCurrency {
	return MultiTierCurrency{
		Tiers: []CurrencyTier{
			{Name: "copper", NamePlural: "coppers", Symbol: "c", RatioToBase: 1},
			{Name: "silver", NamePlural: "silvers", Symbol: "s", RatioToBase: 10},
			{Name: "gold", NamePlural: "golds", Symbol: "g", RatioToBase: 100},
		},
		BaseUnit: "copper",
	}
}

// CurrencySystem selects the active currency configuration for a world.
// Exactly one of Decimal or MultiTier is set.
type CurrencySystem struct {
	Kind      CurrencyKind       `json:"kind"`
	Decimal   *DecimalCurrency   `json:"decimal,omitempty"`
	MultiTier *MultiTierCurrency `json:"multi_tier,omitempty"`
}

// DecimalSystem returns a currency system using the given decimal
// configuration.
func DecimalSystem(cfg DecimalCurrency) CurrencySystem {
	return CurrencySystem{Kind: CurrencyDecimal, Decimal: &cfg}
}

// MultiTierSystem returns a currency system using the given multi-tier
// configuration.
func MultiTierSystem(cfg MultiTierCurrency) CurrencySystem {
	return CurrencySystem{Kind: CurrencyMultiTier, MultiTier: &cfg}
}

// Zero returns the zero amount of the system's kind.
func (s CurrencySystem) Zero() CurrencyAmount {
	return CurrencyAmount{Kind: s.Kind}
}
