package weather

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"
)

type fakeSource struct {
	mu    sync.Mutex
	calls int
	page  RecordsPage
	err   error
	last  [3]string
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) FetchRecords(_ context.Context, city, from, to string) (RecordsPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = [3]string{city, from, to}
	return f.page, f.err
}

type mapCache struct {
	mu     sync.Mutex
	data   map[string]string
	getErr error
	setErr error
	ttls   map[string]time.Duration
}

func newMapCache() *mapCache {
	return &mapCache{data: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (m *mapCache) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", false, m.getErr
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mapCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

func madridRecords() RecordsPage {
	return RecordsPage{Items: []DailyRecord{
		{Date: "2025-10-16", TempMax: 17.0, TempMin: 7.9, PrecipMm: 0.0, CloudPct: 50},
		{Date: "2025-10-15", TempMax: 16.5, TempMin: 8.1, PrecipMm: 1.4, CloudPct: 80},
	}}
}

func TestGetWeatherMissThenHit(t *testing.T) {
	src := &fakeSource{page: madridRecords()}
	cache := newMapCache()
	svc := NewService(cache, src, 10*time.Minute)

	q := Query{City: "Madrid", Date: "2025-10-15", Days: 2, Unit: UnitFahrenheit, Agg: AggDaily}

	first, err := svc.GetWeather(context.Background(), q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Hit {
		t.Fatalf("first request should miss")
	}
	if src.last != [3]string{"Madrid", "2025-10-15", "2025-10-16"} {
		t.Fatalf("unexpected upstream range %v", src.last)
	}

	var res struct {
		City string           `json:"city"`
		Unit string           `json:"unit"`
		From string           `json:"from"`
		To   string           `json:"to"`
		Days []DailyAggregate `json:"days"`
	}
	if err := json.Unmarshal(first.Body, &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.City != "Madrid" || res.Unit != "F" || res.From != "2025-10-15" || res.To != "2025-10-16" {
		t.Fatalf("unexpected envelope %+v", res)
	}
	if len(res.Days) != 2 {
		t.Fatalf("expected 2 days, got %d", len(res.Days))
	}
	d := res.Days[0]
	if d.Date != "2025-10-15" || d.TempMin != 46.58 || d.TempMax != 61.7 || d.TempAvg != 54.14 {
		t.Fatalf("unexpected converted day %+v", d)
	}
	if d.PrecipTotalMm != 1.4 || d.CloudAvgPct != 80 {
		t.Fatalf("non-temperature fields must not be converted: %+v", d)
	}

	key := "Madrid:2025-10-15:2:F:daily"
	if _, ok := cache.data[key]; !ok {
		t.Fatalf("expected cache entry %s, have %v", key, cache.data)
	}
	if cache.ttls[key] != 10*time.Minute {
		t.Fatalf("expected ttl 10m, got %v", cache.ttls[key])
	}

	second, err := svc.GetWeather(context.Background(), q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !second.Hit {
		t.Fatalf("second request should hit")
	}
	if string(second.Body) != string(first.Body) {
		t.Fatalf("cached body differs:\n%s\n%s", first.Body, second.Body)
	}
	if src.calls != 1 {
		t.Fatalf("expected 1 upstream call, got %d", src.calls)
	}
}

func TestGetWeatherInvalidDateSkipsIO(t *testing.T) {
	src := &fakeSource{page: madridRecords()}
	cache := newMapCache()
	svc := NewService(cache, src, time.Minute)

	for _, date := range []string{"", "2025-13-01", "15/10/2025", "2025-10-15T00:00:00Z"} {
		_, err := svc.GetWeather(context.Background(), Query{City: "Madrid", Date: date, Days: 1})
		if !errors.Is(err, ErrInvalidDate) {
			t.Errorf("date %q: expected ErrInvalidDate, got %v", date, err)
		}
	}
	if src.calls != 0 || len(cache.data) != 0 {
		t.Fatalf("no I/O expected for invalid dates")
	}
}

func TestGetWeatherInvalidQuery(t *testing.T) {
	svc := NewService(newMapCache(), &fakeSource{}, time.Minute)
	tests := []Query{
		{City: "Madrid", Date: "2025-10-15", Days: 0},
		{City: "Madrid", Date: "2025-10-15", Days: 1, Unit: "K"},
		{City: "Madrid", Date: "2025-10-15", Days: 1, Agg: "weekly"},
	}
	for _, q := range tests {
		if _, err := svc.GetWeather(context.Background(), q); !errors.Is(err, ErrInvalidQuery) {
			t.Errorf("%+v: expected ErrInvalidQuery, got %v", q, err)
		}
	}
}

func TestGetWeatherEmptyUpstreamIsNotFound(t *testing.T) {
	cache := newMapCache()
	svc := NewService(cache, &fakeSource{}, time.Minute)

	_, err := svc.GetWeather(context.Background(), Query{City: "Atlantis", Date: "2025-10-15", Days: 3})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if len(cache.data) != 0 {
		t.Fatalf("errors must not be cached")
	}
}

func TestGetWeatherPropagatesUpstreamError(t *testing.T) {
	upErr := &UpstreamError{StatusCode: http.StatusUnprocessableEntity, Detail: "bad city"}
	svc := NewService(newMapCache(), &fakeSource{err: upErr}, time.Minute)

	_, err := svc.GetWeather(context.Background(), Query{City: "x", Date: "2025-10-15", Days: 1})
	var got *UpstreamError
	if !errors.As(err, &got) || got.StatusCode != http.StatusUnprocessableEntity || !got.ClientError() {
		t.Fatalf("expected upstream 422, got %v", err)
	}
}

func TestGetWeatherCorruptCacheIsMiss(t *testing.T) {
	src := &fakeSource{page: madridRecords()}
	cache := newMapCache()
	svc := NewService(cache, src, time.Minute)
	q := Query{City: "Madrid", Date: "2025-10-15", Days: 2}

	key := "Madrid:2025-10-15:2:C:none"
	cache.data[key] = "{not json"

	resp, err := svc.GetWeather(context.Background(), q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Hit || src.calls != 1 {
		t.Fatalf("corrupt entry should be a miss")
	}
	if cache.data[key] != string(resp.Body) {
		t.Fatalf("corrupt entry should be overwritten")
	}
}

func TestGetWeatherCacheFailuresAreAbsorbed(t *testing.T) {
	src := &fakeSource{page: madridRecords()}
	cache := newMapCache()
	cache.getErr = errors.New("get down")
	cache.setErr = errors.New("set down")
	svc := NewService(cache, src, time.Minute)

	resp, err := svc.GetWeather(context.Background(), Query{City: "Madrid", Date: "2025-10-15", Days: 2})
	if err != nil {
		t.Fatalf("cache errors must not fail the request: %v", err)
	}
	if resp.Hit {
		t.Fatalf("expected miss")
	}
}

func TestGetWeatherRawAndRollingModes(t *testing.T) {
	src := &fakeSource{page: RecordsPage{Items: rollingRows()}}
	svc := NewService(newMapCache(), src, time.Minute)

	raw, err := svc.GetWeather(context.Background(), Query{City: "Bilbao", Date: "2025-10-01", Days: 8, Unit: UnitFahrenheit})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var rawRes struct {
		Days []DailyRecord `json:"days"`
	}
	if err := json.Unmarshal(raw.Body, &rawRes); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rawRes.Days) != 8 || rawRes.Days[0].Date != "2025-10-01" || rawRes.Days[0].TempMax != 60.8 {
		t.Fatalf("unexpected raw days %+v", rawRes.Days)
	}

	rolling, err := svc.GetWeather(context.Background(), Query{City: "Bilbao", Date: "2025-10-01", Days: 8, Agg: AggRolling7})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var rollRes struct {
		Unit string             `json:"unit"`
		Days []RollingAggregate `json:"days"`
	}
	if err := json.Unmarshal(rolling.Body, &rollRes); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rollRes.Unit != "C" || len(rollRes.Days) != 2 || rollRes.Days[0].TempAvg7 != 15 {
		t.Fatalf("unexpected rolling result %+v", rollRes)
	}
	if src.calls != 2 {
		t.Fatalf("different modes must not share a cache key")
	}
}

func TestCacheKeyDistinguishesParameters(t *testing.T) {
	start := time.Date(2025, 10, 15, 0, 0, 0, 0, time.UTC)
	base := Query{City: "Madrid", Days: 2, Unit: UnitCelsius}

	keys := map[string]bool{}
	for _, q := range []Query{
		base,
		{City: "Madrid", Days: 3, Unit: UnitCelsius},
		{City: "Madrid", Days: 2, Unit: UnitFahrenheit},
		{City: "Madrid", Days: 2, Unit: UnitCelsius, Agg: AggDaily},
		{City: "Madrid", Days: 2, Unit: UnitCelsius, Agg: AggRolling7},
		{City: "Sevilla", Days: 2, Unit: UnitCelsius},
	} {
		keys[q.CacheKey(start)] = true
	}
	if len(keys) != 6 {
		t.Fatalf("expected 6 distinct keys, got %v", keys)
	}
	if got := base.CacheKey(start); got != "Madrid:2025-10-15:2:C:none" {
		t.Fatalf("unexpected key %s", got)
	}
}
