package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/weather-proxy/internal/weather"
)

// Warmer is the part of the weather service the warm-up job drives.
type Warmer interface {
	GetWeather(ctx context.Context, q weather.Query) (*weather.Response, error)
}

// Scheduler periodically pre-populates the cache for configured cities.
type Scheduler struct {
	scheduler *gocron.Scheduler
	service   Warmer
	cities    []string
	days      int
	interval  time.Duration
	now       func() time.Time
}

// New creates a new Scheduler.
func New(cities []string, days int, interval time.Duration, service Warmer) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	if days <= 0 {
		days = 5
	}
	return &Scheduler{
		scheduler: s,
		service:   service,
		cities:    cities,
		days:      days,
		interval:  interval,
		now:       time.Now,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if len(s.cities) == 0 {
		log.Println("scheduler: no warm-up cities configured; nothing to schedule")
		return nil
	}

	interval := s.interval
	if interval <= 0 {
		interval = 30 * time.Minute
	}

	_, err := s.scheduler.Every(interval).Do(s.RunOnce)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// RunOnce warms the cache for every configured city concurrently.
func (s *Scheduler) RunOnce() {
	log.Println("scheduler: running cache warm-up job")

	date := s.now().UTC().Format(weather.DateLayout)

	var wg sync.WaitGroup
	for _, city := range s.cities {
		city := city
		wg.Add(1)
		go func() {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			resp, err := s.service.GetWeather(ctx, weather.Query{
				City: city,
				Date: date,
				Days: s.days,
				Unit: weather.UnitCelsius,
			})
			if err != nil {
				log.Printf("scheduler: warm-up failed for %s: %v", city, err)
				return
			}
			if resp.Hit {
				log.Printf("scheduler: %s already cached", city)
			}
		}()
	}
	wg.Wait()
	log.Println("scheduler: completed cache warm-up job")
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
