package services

import (
	"fmt"
	"math"

	"prospect-scraper/models"
)

// ValidationRules are the numeric bounds records are checked against.
type ValidationRules struct {
	MinPrice       int64 // exclusive
	MaxPrice       int64 // exclusive
	MinSurface     float64
	MaxSurface     float64
	MinRooms       int
	MaxRooms       int
	ConcatRooms    int // rooms above this look like digits glued to other data
	MaxLandSurface float64
	Penalty        float64
	ConcatPenalty  float64
}

// DefaultValidationRules returns the bounds used for French residential listings.
func DefaultValidationRules() ValidationRules {
	return ValidationRules{
		MinPrice:       1_000,
		MaxPrice:       10_000_000,
		MinSurface:     10,
		MaxSurface:     2000,
		MinRooms:       1,
		MaxRooms:       20,
		ConcatRooms:    50,
		MaxLandSurface: 1_000_000,
		Penalty:        0.2,
		ConcatPenalty:  0.3,
	}
}

// Validator flags suspicious records. It never rejects one: an invalid
// record is still stored, with its errors and a lower quality score.
type Validator struct {
	rules ValidationRules
}

// NewValidator creates a Validator with the given rules.
func NewValidator(rules ValidationRules) *Validator {
	return &Validator{rules: rules}
}

// Validate checks p and returns the verdict. It has no side effects.
func (v *Validator) Validate(p *models.NormalizedProperty) models.ValidationResult {
	r := v.rules
	errs := make([]string, 0)
	score := 1.0

	flag := func(penalty float64, format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
		score -= penalty
	}

	if p.Price <= r.MinPrice || p.Price >= r.MaxPrice {
		flag(r.Penalty, "Price %d out of range (%d-%d)", p.Price, r.MinPrice, r.MaxPrice)
	}

	if s := p.BuildingSurface; s != nil && (*s < r.MinSurface || *s > r.MaxSurface) {
		flag(r.Penalty, "Surface %.0f m² out of range (%.0f-%.0f)", *s, r.MinSurface, r.MaxSurface)
	}

	if rooms := p.Rooms; rooms != nil {
		if *rooms < r.MinRooms || *rooms > r.MaxRooms {
			flag(r.Penalty, "Rooms %d out of range (%d-%d)", *rooms, r.MinRooms, r.MaxRooms)
		}
		if *rooms > r.ConcatRooms {
			flag(r.ConcatPenalty, "Rooms %d likely concatenated with other data", *rooms)
		}
	}

	if p.Bedrooms != nil && p.Rooms != nil && *p.Bedrooms > *p.Rooms {
		flag(r.Penalty, "Bedrooms (%d) exceeds total rooms (%d)", *p.Bedrooms, *p.Rooms)
	}

	if land := p.LandSurface; land != nil && *land > r.MaxLandSurface {
		flag(r.Penalty, "Land surface %.0f m² suspiciously large", *land)
	}

	score = math.Max(0, math.Round(score*100)/100)

	return models.ValidationResult{
		IsValid:      len(errs) == 0,
		Errors:       errs,
		QualityScore: score,
	}
}
