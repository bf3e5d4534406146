package models

import (
	"database/sql/driver"
	"fmt"
)

// FuelGrade is the canonical fuel type, independent of any source's own codes.
type FuelGrade uint8

const (
	Diesel FuelGrade = iota + 1
	PremiumDiesel
	LPG
	Ethanol10
	Ethanol85
	Unleaded91
	Unleaded95
	Unleaded98
)

var fuelNames = map[FuelGrade]string{
	Diesel:        "Diesel",
	PremiumDiesel: "PremiumDiesel",
	LPG:           "LPG",
	Ethanol10:     "Ethanol10",
	Ethanol85:     "Ethanol85",
	Unleaded91:    "Unleaded91",
	Unleaded95:    "Unleaded95",
	Unleaded98:    "Unleaded98",
}

var fuelsByName = func() map[string]FuelGrade {
	m := make(map[string]FuelGrade, len(fuelNames))
	for f, name := range fuelNames {
		m[name] = f
	}
	return m
}()

// FuelGrades returns every fuel grade in declaration order.
func FuelGrades() []FuelGrade {
	return []FuelGrade{Diesel, PremiumDiesel, LPG, Ethanol10, Ethanol85, Unleaded91, Unleaded95, Unleaded98}
}

// ParseFuelGrade returns the fuel grade for its canonical name.
func ParseFuelGrade(name string) (FuelGrade, error) {
	f, ok := fuelsByName[name]
	if !ok {
		return 0, fmt.Errorf("unknown fuel grade %q", name)
	}
	return f, nil
}

// String returns the canonical name, e.g. "Unleaded91".
func (f FuelGrade) String() string {
	if name, ok := fuelNames[f]; ok {
		return name
	}
	return fmt.Sprintf("FuelGrade(%d)", uint8(f))
}

// Valid reports whether f is one of the canonical grades.
func (f FuelGrade) Valid() bool {
	_, ok := fuelNames[f]
	return ok
}

// MarshalText implements encoding.TextMarshaler.
func (f FuelGrade) MarshalText() ([]byte, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("invalid fuel grade %d", uint8(f))
	}
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *FuelGrade) UnmarshalText(text []byte) error {
	parsed, err := ParseFuelGrade(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// Value implements driver.Valuer.
func (f FuelGrade) Value() (driver.Value, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("invalid fuel grade %d", uint8(f))
	}
	return f.String(), nil
}

// Scan implements sql.Scanner.
func (f *FuelGrade) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return f.UnmarshalText([]byte(v))
	case []byte:
		return f.UnmarshalText(v)
	default:
		return fmt.Errorf("scanning fuel grade from %T", src)
	}
}
