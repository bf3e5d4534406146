package api

import (
	"github.com/andygrunwald/fuel-price-scraper/internal/models"
)

// FuelCodes maps one source's fuel codes onto canonical grades.
type FuelCodes struct {
	// Source names the owning source in errors.
	Source string
	// Grades maps source codes to canonical grades.
	Grades map[string]models.FuelGrade
	// Ignore lists codes that are dropped on purpose (biodiesel blends, EV charging).
	Ignore []string
}

// Decode returns the canonical grade for code. ok is false for an ignored code.
// A code in neither set returns *UnmappedFuelCodeError.
func (f FuelCodes) Decode(code string) (grade models.FuelGrade, ok bool, err error) {
	if g, found := f.Grades[code]; found {
		return g, true, nil
	}
	for _, ignored := range f.Ignore {
		if code == ignored {
			return 0, false, nil
		}
	}
	return 0, false, &UnmappedFuelCodeError{Source: f.Source, Code: code}
}
