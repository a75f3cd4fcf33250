package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/i474232898/weather-proxy/internal/weather"
)

// DefaultLimit is the result cap sent with every records query.
const DefaultLimit = 1000

// RecordsOptions configures a RecordsClient. Zero values take defaults.
type RecordsOptions struct {
	MaxRetries     int
	AttemptTimeout time.Duration
	BaseDelay      time.Duration
	Limit          int
	RPS            float64 // 0 = unlimited
}

// RecordsClient implements weather.RecordSource for the records service.
type RecordsClient struct {
	name    string
	baseURL string
	limit   int
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewRecordsClient(client *http.Client, baseURL string, opts RecordsOptions) *RecordsClient {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = 5 * time.Second
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = time.Second
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}

	var limiter *rate.Limiter
	if opts.RPS > 0 {
		burst := int(opts.RPS)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RPS), burst)
	}

	return &RecordsClient{
		name:    "records",
		baseURL: strings.TrimRight(baseURL, "/"),
		limit:   opts.Limit,
		httpCfg: HTTPClientConfig{
			Client: client,
			Backoff: BackoffConfig{
				MaxRetries:      opts.MaxRetries,
				InitialInterval: opts.BaseDelay,
				JitterFraction:  0.2,
			},
			AttemptTimeout: opts.AttemptTimeout,
			Limiter:        limiter,
		},
		circuit: newCircuitBreaker("records"),
	}
}

func (p *RecordsClient) Name() string {
	return p.name
}

// FetchRecords returns the daily records for city in [from, to].
func (p *RecordsClient) FetchRecords(ctx context.Context, city, from, to string) (weather.RecordsPage, error) {
	buildRequest := func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		values.Set("city", city)
		values.Set("from", from)
		values.Set("to", to)
		values.Set("limit", strconv.Itoa(p.limit))

		u := fmt.Sprintf("%s/records?%s", p.baseURL, values.Encode())
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if id := weather.RequestIDFromContext(ctx); id != "" {
			req.Header.Set("X-Request-ID", id)
		}
		return req, nil
	}

	body, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return weather.RecordsPage{}, err
	}

	var page weather.RecordsPage
	if err := json.Unmarshal(body, &page); err != nil {
		return weather.RecordsPage{}, &weather.UpstreamError{
			StatusCode: http.StatusBadGateway,
			Detail:     "invalid records payload",
			Err:        err,
		}
	}
	return page, nil
}

var _ weather.RecordSource = (*RecordsClient)(nil)
