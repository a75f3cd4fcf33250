package weather

import (
	"encoding/json"
	"strings"
)

// DateLayout is the ISO calendar date format used by the records service and the API.
const DateLayout = "2006-01-02"

// Unit is the temperature unit requested by the caller.
type Unit string

const (
	UnitCelsius    Unit = "C"
	UnitFahrenheit Unit = "F"
)

// ParseUnit normalizes a unit query value; empty means Celsius.
func ParseUnit(s string) (Unit, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "C":
		return UnitCelsius, true
	case "F":
		return UnitFahrenheit, true
	default:
		return "", false
	}
}

// AggMode selects how raw daily records are summarized.
type AggMode string

const (
	AggNone     AggMode = ""
	AggDaily    AggMode = "daily"
	AggRolling7 AggMode = "rolling7"
)

// keyPart is the cache key fragment for the mode.
func (m AggMode) keyPart() string {
	if m == AggNone {
		return "none"
	}
	return string(m)
}

// DailyRecord is one raw day as returned by the records service.
// Temperatures are in Celsius.
type DailyRecord struct {
	Date     string  `json:"date"`
	TempMin  float64 `json:"temp_min"`
	TempMax  float64 `json:"temp_max"`
	PrecipMm float64 `json:"precip_mm"`
	CloudPct float64 `json:"cloud_pct"`
}

// UnmarshalJSON accepts both the canonical field names and the records
// service's native "_c" suffixed temperature columns.
func (r *DailyRecord) UnmarshalJSON(data []byte) error {
	var raw struct {
		Date     string   `json:"date"`
		TempMin  *float64 `json:"temp_min"`
		TempMax  *float64 `json:"temp_max"`
		TempMinC *float64 `json:"temp_min_c"`
		TempMaxC *float64 `json:"temp_max_c"`
		PrecipMm float64  `json:"precip_mm"`
		CloudPct float64  `json:"cloud_pct"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*r = DailyRecord{
		Date:     raw.Date,
		PrecipMm: raw.PrecipMm,
		CloudPct: raw.CloudPct,
	}
	switch {
	case raw.TempMin != nil:
		r.TempMin = *raw.TempMin
	case raw.TempMinC != nil:
		r.TempMin = *raw.TempMinC
	}
	switch {
	case raw.TempMax != nil:
		r.TempMax = *raw.TempMax
	case raw.TempMaxC != nil:
		r.TempMax = *raw.TempMaxC
	}
	return nil
}

// midpoint is the record's daily mean temperature estimate.
func (r DailyRecord) midpoint() float64 {
	return (r.TempMin + r.TempMax) / 2
}

// DailyAggregate summarizes all records sharing a date.
type DailyAggregate struct {
	Date          string  `json:"date"`
	TempMin       float64 `json:"temp_min"`
	TempMax       float64 `json:"temp_max"`
	TempAvg       float64 `json:"temp_avg"`
	PrecipTotalMm float64 `json:"precip_total_mm"`
	CloudAvgPct   float64 `json:"cloud_avg_pct"`
}

// RollingAggregate summarizes the 7 records ending at Date.
type RollingAggregate struct {
	Date         string  `json:"date"`
	TempAvg7     float64 `json:"temp_avg7"`
	CloudAvg7Pct float64 `json:"cloud_avg7_pct"`
	PrecipSum7Mm float64 `json:"precip_sum7_mm"`
}

// RecordsPage is the records service response body.
type RecordsPage struct {
	Items []DailyRecord `json:"items"`
}

// Result is the response envelope. Days holds one of []DailyRecord,
// []DailyAggregate or []RollingAggregate depending on the mode.
type Result struct {
	City string `json:"city"`
	Unit Unit   `json:"unit"`
	From string `json:"from"`
	To   string `json:"to"`
	Days any    `json:"days"`
}

// cachedResult is used to check that a cached payload is still a valid envelope.
type cachedResult struct {
	City string          `json:"city"`
	Unit Unit            `json:"unit"`
	From string          `json:"from"`
	To   string          `json:"to"`
	Days json.RawMessage `json:"days"`
}
