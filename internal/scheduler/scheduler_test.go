package scheduler

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/i474232898/weather-proxy/internal/weather"
)

type recordingWarmer struct {
	mu      sync.Mutex
	queries []weather.Query
	fail    map[string]bool
}

func (w *recordingWarmer) GetWeather(_ context.Context, q weather.Query) (*weather.Response, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.queries = append(w.queries, q)
	if w.fail[q.City] {
		return nil, errors.New("upstream down")
	}
	return &weather.Response{Body: []byte(`{}`)}, nil
}

func TestRunOnceWarmsEveryCity(t *testing.T) {
	w := &recordingWarmer{fail: map[string]bool{"Bilbao": true}}
	s := New([]string{"Madrid", "Bilbao", "Sevilla"}, 3, time.Hour, w)
	s.now = func() time.Time { return time.Date(2025, 10, 15, 23, 30, 0, 0, time.FixedZone("CEST", 2*3600)) }

	s.RunOnce()

	if len(w.queries) != 3 {
		t.Fatalf("expected 3 warm-up requests, got %d", len(w.queries))
	}
	var cities []string
	for _, q := range w.queries {
		cities = append(cities, q.City)
		if q.Date != "2025-10-15" || q.Days != 3 || q.Unit != weather.UnitCelsius || q.Agg != weather.AggNone {
			t.Errorf("unexpected query %+v", q)
		}
	}
	sort.Strings(cities)
	if cities[0] != "Bilbao" || cities[1] != "Madrid" || cities[2] != "Sevilla" {
		t.Fatalf("unexpected cities %v", cities)
	}
}

func TestStartWithoutCitiesIsNoop(t *testing.T) {
	s := New(nil, 0, 0, &recordingWarmer{})
	if err := s.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Stop()
	if s.days != 5 {
		t.Fatalf("expected default of 5 days, got %d", s.days)
	}
}
