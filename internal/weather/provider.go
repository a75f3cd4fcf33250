package weather

import (
	"context"
	"time"
)

// RecordSource abstracts the upstream records service.
type RecordSource interface {
	Name() string
	FetchRecords(ctx context.Context, city, from, to string) (RecordsPage, error)
}

// Cache is the contract the tiered cache store must satisfy.
// Values are opaque serialized strings.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}
