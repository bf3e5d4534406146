// Package models provides shared data types for the fuel price scraper.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// StationID is the numeric site code a source assigns to a station.
// It is only unique within one jurisdiction.
type StationID uint32

// Price is a price in cents per litre. An invalid (absent) price means the fuel is
// not currently sold or priced at the station, which is distinct from a zero price.
type Price = decimal.NullDecimal

// NoPrice is the absent price.
var NoPrice = Price{}

// PriceScale is the number of decimal places a price is stored with.
const PriceScale = 3

// PriceOf returns a present price.
func PriceOf(d decimal.Decimal) Price {
	return Price{Decimal: d, Valid: true}
}

// PriceFromFloat returns a present price from a float value.
func PriceFromFloat(f float64) Price {
	return PriceOf(decimal.NewFromFloat(f))
}

// RoundPrice rounds a present price to PriceScale decimal places.
func RoundPrice(p Price) Price {
	if !p.Valid {
		return p
	}
	return PriceOf(p.Decimal.Round(PriceScale))
}

// SamePrice reports whether two prices are identical. Two absent prices are identical;
// present prices compare by exact value with no tolerance.
func SamePrice(a, b Price) bool {
	if a.Valid != b.Valid {
		return false
	}
	if !a.Valid {
		return true
	}
	return a.Decimal.Equal(b.Decimal)
}

// FormatPrice renders a price for humans, using "-" for an absent price.
func FormatPrice(p Price) string {
	if !p.Valid {
		return "-"
	}
	return p.Decimal.String()
}

// Station is a fuel station location.
type Station struct {
	Jurisdiction Jurisdiction `csv:"jurisdiction" json:"jurisdiction"`
	ID           StationID    `csv:"id" json:"id"`
	Latitude     float64      `csv:"latitude" json:"latitude"`
	Longitude    float64      `csv:"longitude" json:"longitude"`
}

// PriceKey identifies one durable price record.
type PriceKey struct {
	Jurisdiction Jurisdiction
	Station      StationID
	Fuel         FuelGrade
}

// PriceObservation is one price seen during a run. It is the input of the persistence engine.
type PriceObservation struct {
	Jurisdiction Jurisdiction
	Station      StationID
	Fuel         FuelGrade
	// Price is in cents per litre; absent when the fuel is not available.
	Price Price
}

// Key returns the record key of the observation.
func (o PriceObservation) Key() PriceKey {
	return PriceKey{Jurisdiction: o.Jurisdiction, Station: o.Station, Fuel: o.Fuel}
}

// PriceRecord is the stored current state for one (jurisdiction, station, fuel).
type PriceRecord struct {
	PriceKey
	Price     Price
	CheckedAt time.Time
	ChangedAt time.Time
}

// PriceHistoryEntry is one detected price change.
type PriceHistoryEntry struct {
	PriceKey
	ChangedAt time.Time
	Price     Price
}
