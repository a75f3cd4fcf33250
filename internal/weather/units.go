package weather

import "github.com/i474232898/weather-proxy/internal/common"

// CelsiusToFahrenheit converts c and rounds to two decimals.
func CelsiusToFahrenheit(c float64) float64 {
	return common.Round2(c*9/5 + 32)
}

// convertDays rewrites every temperature field of days in place.
// Field names are unchanged; the unit travels in the envelope.
func convertDays(days any, unit Unit) {
	if unit != UnitFahrenheit {
		return
	}
	switch v := days.(type) {
	case []DailyRecord:
		for i := range v {
			v[i].TempMin = CelsiusToFahrenheit(v[i].TempMin)
			v[i].TempMax = CelsiusToFahrenheit(v[i].TempMax)
		}
	case []DailyAggregate:
		for i := range v {
			v[i].TempMin = CelsiusToFahrenheit(v[i].TempMin)
			v[i].TempMax = CelsiusToFahrenheit(v[i].TempMax)
			v[i].TempAvg = CelsiusToFahrenheit(v[i].TempAvg)
		}
	case []RollingAggregate:
		for i := range v {
			v[i].TempAvg7 = CelsiusToFahrenheit(v[i].TempAvg7)
		}
	}
}
