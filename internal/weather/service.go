package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"
)

// Query is a single inbound weather request.
type Query struct {
	City string
	Date string // start date, YYYY-MM-DD
	Days int
	Unit Unit
	Agg  AggMode
}

// CacheKey derives the cache-aside key from every parameter that shapes the response.
func (q Query) CacheKey(start time.Time) string {
	return fmt.Sprintf("%s:%s:%d:%s:%s", q.City, start.Format(DateLayout), q.Days, strings.ToUpper(string(q.Unit)), q.Agg.keyPart())
}

// Response carries the serialized envelope and whether it came from the cache.
type Response struct {
	Body []byte
	Hit  bool
}

// Service composes the cache, the records source and the aggregation engine.
type Service struct {
	cache  Cache
	source RecordSource
	ttl    time.Duration
}

// NewService creates a new Service.
func NewService(cache Cache, source RecordSource, ttl time.Duration) *Service {
	return &Service{
		cache:  cache,
		source: source,
		ttl:    ttl,
	}
}

// GetWeather answers q from the cache when possible, otherwise fetches,
// aggregates, converts and caches the result.
func (s *Service) GetWeather(ctx context.Context, q Query) (*Response, error) {
	start, err := time.Parse(DateLayout, q.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDate, q.Date)
	}
	if q.Days <= 0 {
		return nil, fmt.Errorf("%w: days must be greater than zero", ErrInvalidQuery)
	}
	if q.Unit == "" {
		q.Unit = UnitCelsius
	}
	if q.Unit != UnitCelsius && q.Unit != UnitFahrenheit {
		return nil, fmt.Errorf("%w: unknown unit %q", ErrInvalidQuery, q.Unit)
	}
	switch q.Agg {
	case AggNone, AggDaily, AggRolling7:
	default:
		return nil, fmt.Errorf("%w: unknown aggregation mode %q", ErrInvalidQuery, q.Agg)
	}
	end := start.AddDate(0, 0, q.Days-1)
	key := q.CacheKey(start)

	if body, ok := s.lookup(ctx, key); ok {
		return &Response{Body: body, Hit: true}, nil
	}

	from, to := start.Format(DateLayout), end.Format(DateLayout)
	page, err := s.source.FetchRecords(ctx, q.City, from, to)
	if err != nil {
		return nil, fmt.Errorf("fetch records for %s: %w", q.City, err)
	}
	if len(page.Items) == 0 {
		return nil, ErrNotFound
	}

	days, err := aggregate(page.Items, q.Agg)
	if err != nil {
		return nil, err
	}
	convertDays(days, q.Unit)

	body, err := json.Marshal(Result{
		City: q.City,
		Unit: q.Unit,
		From: from,
		To:   to,
		Days: days,
	})
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, string(body), s.ttl); err != nil {
			log.Printf("ERROR: cache set failed for %s: %v", key, err)
		}
	}
	return &Response{Body: body, Hit: false}, nil
}

// lookup returns a cached envelope. Read errors and undecodable payloads are
// reported as a miss.
func (s *Service) lookup(ctx context.Context, key string) ([]byte, bool) {
	if s.cache == nil {
		return nil, false
	}

	val, found, err := s.cache.Get(ctx, key)
	if err != nil {
		log.Printf("ERROR: cache get failed for %s: %v", key, err)
		return nil, false
	}
	if !found || val == "" {
		return nil, false
	}

	body := []byte(val)
	if err := decodeCached(body); err != nil {
		log.Printf("INFO: ignoring cache entry %s: %v", key, err)
		return nil, false
	}
	return body, true
}

func decodeCached(body []byte) error {
	var env cachedResult
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheCorrupt, err)
	}
	if env.Days == nil {
		return fmt.Errorf("%w: missing days", ErrCacheCorrupt)
	}
	return nil
}

func aggregate(records []DailyRecord, mode AggMode) (any, error) {
	switch mode {
	case AggDaily:
		return AggregateDaily(records), nil
	case AggRolling7:
		return AggregateRolling7(records), nil
	case AggNone:
		return SortRecords(records), nil
	default:
		return nil, fmt.Errorf("%w: unknown aggregation mode %q", ErrInvalidQuery, mode)
	}
}
