// Package resale implements device listings and the volunteer-run handoff of a sold
// device from seller to buyer.
package resale

import (
	"math"
	"strings"
	"time"

	"ewaste-backend/internal/apperr"
	"ewaste-backend/internal/models"
)

// yearlyDepreciation is the share of value kept per year of age.
const yearlyDepreciation = 0.8

// PriceTable maps a normalized model name to its base price in rupees.
type PriceTable map[string]float64

var DefaultPriceTable = PriceTable{
	"iphone 11":          30000,
	"iphone 12":          40000,
	"iphone 13":          50000,
	"samsung galaxy s21": 35000,
	"samsung galaxy a52": 18000,
	"oneplus 9":          25000,
	"redmi note 10":      10000,
	"dell inspiron 15":   35000,
	"hp pavilion 14":     40000,
	"lenovo ideapad 3":   30000,
	"macbook air m1":     60000,
}

func normalizeModel(model string) string {
	return strings.Join(strings.Fields(strings.ToLower(model)), " ")
}

// Lookup returns the base price of a model, ignoring case and extra spaces.
func (t PriceTable) Lookup(model string) (float64, bool) {
	p, ok := t[normalizeModel(model)]
	return p, ok
}

// ConditionFactor scales the depreciated price. Unknown or empty conditions count as
// fair.
func ConditionFactor(c models.DeviceCondition) float64 {
	switch c {
	case models.ConditionGood:
		return 1.0
	case models.ConditionFair:
		return 0.7
	case models.ConditionPoor:
		return 0.5
	default:
		return 0.7
	}
}

// NormalizeCondition maps anything outside the known set to unknown.
func NormalizeCondition(c models.DeviceCondition) models.DeviceCondition {
	switch c {
	case models.ConditionGood, models.ConditionFair, models.ConditionPoor:
		return c
	default:
		return models.ConditionUnknown
	}
}

// Price computes base * 0.8^age * conditionFactor rounded to two decimals. A purchase
// year in the future counts as age zero.
func (t PriceTable) Price(model string, purchaseYear int, condition models.DeviceCondition, now time.Time) (float64, error) {
	base, ok := t.Lookup(model)
	if !ok {
		return 0, apperr.Validation("unknown device model %q", model)
	}
	if purchaseYear <= 0 {
		return 0, apperr.Validation("purchase_year is required")
	}

	years := now.Year() - purchaseYear
	if years < 0 {
		years = 0
	}
	price := base * math.Pow(yearlyDepreciation, float64(years)) * ConditionFactor(condition)
	return math.Round(price*100) / 100, nil
}
