package services

import (
	"testing"

	"prospect-scraper/models"
)

func intp(n int) *int             { return &n }
func floatp(f float64) *float64 { return &f }

func TestValidate(t *testing.T) {
	v := NewValidator(DefaultValidationRules())

	tests := []struct {
		name      string
		p         models.NormalizedProperty
		wantValid bool
		wantErrs  int
		wantScore float64
	}{
		{"clean record", models.NormalizedProperty{Price: 250_000, Rooms: intp(4), Bedrooms: intp(2), BuildingSurface: floatp(90)}, true, 0, 1},
		{"price at lower bound", models.NormalizedProperty{Price: 1000}, false, 1, 0.8},
		{"price just above lower bound", models.NormalizedProperty{Price: 1001}, true, 0, 1},
		{"price at upper bound", models.NormalizedProperty{Price: 10_000_000}, false, 1, 0.8},
		{"price just below upper bound", models.NormalizedProperty{Price: 9_999_999}, true, 0, 1},
		{"surface too small", models.NormalizedProperty{Price: 250_000, BuildingSurface: floatp(5)}, false, 1, 0.8},
		{"surface bounds inclusive", models.NormalizedProperty{Price: 250_000, BuildingSurface: floatp(2000)}, true, 0, 1},
		{"rooms zero", models.NormalizedProperty{Price: 250_000, Rooms: intp(0)}, false, 1, 0.8},
		{"rooms concatenated", models.NormalizedProperty{Price: 250_000, Rooms: intp(51)}, false, 2, 0.5},
		{"rooms out of range only", models.NormalizedProperty{Price: 250_000, Rooms: intp(30)}, false, 1, 0.8},
		{"bedrooms exceed rooms", models.NormalizedProperty{Price: 250_000, Rooms: intp(3), Bedrooms: intp(5)}, false, 1, 0.8},
		{"bedrooms without rooms", models.NormalizedProperty{Price: 250_000, Bedrooms: intp(5)}, true, 0, 1},
		{"huge land", models.NormalizedProperty{Price: 250_000, LandSurface: floatp(2_000_000)}, false, 1, 0.8},
		{"score floored at zero", models.NormalizedProperty{
			Price: 0, BuildingSurface: floatp(5000), Rooms: intp(60), Bedrooms: intp(70), LandSurface: floatp(2_000_000),
		}, false, 6, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := v.Validate(&tt.p)
			if got.IsValid != tt.wantValid {
				t.Errorf("IsValid: got %v, want %v (errors %v)", got.IsValid, tt.wantValid, got.Errors)
			}
			if len(got.Errors) != tt.wantErrs {
				t.Errorf("Errors: got %d %v, want %d", len(got.Errors), got.Errors, tt.wantErrs)
			}
			if got.QualityScore != tt.wantScore {
				t.Errorf("QualityScore: got %v, want %v", got.QualityScore, tt.wantScore)
			}
		})
	}
}

func TestValidateNeverReturnsNilErrors(t *testing.T) {
	got := NewValidator(DefaultValidationRules()).Validate(&models.NormalizedProperty{Price: 300_000})
	if got.Errors == nil {
		t.Errorf("Errors should be an empty slice, not nil")
	}
}
