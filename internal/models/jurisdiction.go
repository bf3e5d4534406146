package models

import (
	"database/sql/driver"
	"fmt"
)

// Jurisdiction is a region whose regulator publishes fuel prices.
type Jurisdiction uint8

const (
	NSW Jurisdiction = iota + 1
	NT
	QLD
	SA
	TAS
	WA
)

var jurisdictionCodes = map[Jurisdiction]string{
	NSW: "NSW",
	NT:  "NT",
	QLD: "QLD",
	SA:  "SA",
	TAS: "TAS",
	WA:  "WA",
}

var jurisdictionsByCode = func() map[string]Jurisdiction {
	m := make(map[string]Jurisdiction, len(jurisdictionCodes))
	for j, code := range jurisdictionCodes {
		m[code] = j
	}
	return m
}()

// Jurisdictions returns every jurisdiction in declaration order.
func Jurisdictions() []Jurisdiction {
	return []Jurisdiction{NSW, NT, QLD, SA, TAS, WA}
}

// ParseJurisdiction returns the jurisdiction for its short code.
func ParseJurisdiction(code string) (Jurisdiction, error) {
	j, ok := jurisdictionsByCode[code]
	if !ok {
		return 0, fmt.Errorf("unknown jurisdiction %q", code)
	}
	return j, nil
}

// String returns the persisted short code, e.g. "NSW".
func (j Jurisdiction) String() string {
	if code, ok := jurisdictionCodes[j]; ok {
		return code
	}
	return fmt.Sprintf("Jurisdiction(%d)", uint8(j))
}

// Valid reports whether j is one of the known jurisdictions.
func (j Jurisdiction) Valid() bool {
	_, ok := jurisdictionCodes[j]
	return ok
}

// MarshalText implements encoding.TextMarshaler.
func (j Jurisdiction) MarshalText() ([]byte, error) {
	if !j.Valid() {
		return nil, fmt.Errorf("invalid jurisdiction %d", uint8(j))
	}
	return []byte(j.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (j *Jurisdiction) UnmarshalText(text []byte) error {
	parsed, err := ParseJurisdiction(string(text))
	if err != nil {
		return err
	}
	*j = parsed
	return nil
}

// Value implements driver.Valuer.
func (j Jurisdiction) Value() (driver.Value, error) {
	if !j.Valid() {
		return nil, fmt.Errorf("invalid jurisdiction %d", uint8(j))
	}
	return j.String(), nil
}

// Scan implements sql.Scanner.
func (j *Jurisdiction) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return j.UnmarshalText([]byte(v))
	case []byte:
		return j.UnmarshalText(v)
	default:
		return fmt.Errorf("scanning jurisdiction from %T", src)
	}
}
