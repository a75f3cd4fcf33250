package weather

import (
	"sort"
	"time"

	"github.com/i474232898/weather-proxy/internal/common"
)

// rollingWindow is the number of records summarized by AggregateRolling7.
const rollingWindow = 7

// AggregateDaily groups records by exact date string and summarizes each group.
// Output is ordered ascending by date. temp_avg is the mean of each record's
// midpoint, not the midpoint of the group's min/max.
func AggregateDaily(records []DailyRecord) []DailyAggregate {
	groups := make(map[string][]DailyRecord)
	for _, r := range records {
		groups[r.Date] = append(groups[r.Date], r)
	}

	dates := make([]string, 0, len(groups))
	for d := range groups {
		dates = append(dates, d)
	}
	// ISO dates order correctly as strings.
	sort.Strings(dates)

	out := make([]DailyAggregate, 0, len(dates))
	for _, d := range dates {
		group := groups[d]

		var (
			midpoints = make([]float64, 0, len(group))
			clouds    = make([]float64, 0, len(group))
			precip    float64
		)
		minT, maxT := group[0].TempMin, group[0].TempMax
		for _, r := range group {
			if r.TempMin < minT {
				minT = r.TempMin
			}
			if r.TempMax > maxT {
				maxT = r.TempMax
			}
			midpoints = append(midpoints, r.midpoint())
			clouds = append(clouds, r.CloudPct)
			precip += r.PrecipMm
		}

		out = append(out, DailyAggregate{
			Date:          d,
			TempMin:       minT,
			TempMax:       maxT,
			TempAvg:       common.Round2(common.Mean(midpoints)),
			PrecipTotalMm: common.Round2(precip),
			CloudAvgPct:   common.Round2(common.Mean(clouds)),
		})
	}
	return out
}

// AggregateRolling7 sorts records by calendar date and emits one summary per
// record from the 7th onward, covering that record and the six before it.
// The window advances by record count, so gaps or duplicate dates in the
// input are not compensated for.
func AggregateRolling7(records []DailyRecord) []RollingAggregate {
	sorted := sortByParsedDate(records)

	temps := make([]float64, 0, len(sorted))
	clouds := make([]float64, 0, len(sorted))
	precs := make([]float64, 0, len(sorted))

	out := make([]RollingAggregate, 0, max(0, len(sorted)-(rollingWindow-1)))
	for i, r := range sorted {
		temps = append(temps, r.midpoint())
		clouds = append(clouds, r.CloudPct)
		precs = append(precs, r.PrecipMm)

		if i < rollingWindow-1 {
			continue
		}
		lo, hi := i-(rollingWindow-1), i+1
		out = append(out, RollingAggregate{
			Date:         r.Date,
			TempAvg7:     common.Round2(common.Mean(temps[lo:hi])),
			CloudAvg7Pct: common.Round2(common.Mean(clouds[lo:hi])),
			PrecipSum7Mm: common.Round2(common.Sum(precs[lo:hi])),
		})
	}
	return out
}

// SortRecords returns a copy of records ordered ascending by date string.
func SortRecords(records []DailyRecord) []DailyRecord {
	out := make([]DailyRecord, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date < out[j].Date
	})
	return out
}

// sortByParsedDate orders records by calendar date. Records whose date does
// not parse keep their relative order and go after all parsed ones.
func sortByParsedDate(records []DailyRecord) []DailyRecord {
	type keyed struct {
		rec DailyRecord
		at  time.Time
		ok  bool
	}

	items := make([]keyed, len(records))
	for i, r := range records {
		t, err := time.Parse(DateLayout, r.Date)
		items[i] = keyed{rec: r, at: t, ok: err == nil}
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.ok != b.ok {
			return a.ok
		}
		if !a.ok {
			return false
		}
		return a.at.Before(b.at)
	})

	out := make([]DailyRecord, len(items))
	for i, it := range items {
		out[i] = it.rec
	}
	return out
}
