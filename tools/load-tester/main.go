package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

func main() {
	baseURL := flag.String("url", "http://localhost:8080/events", "Target URL for the events endpoint")
	lat := flag.Float64("lat", 33.4484, "Center latitude for generated queries")
	lon := flag.Float64("lon", -112.0740, "Center longitude for generated queries")
	jitter := flag.Float64("jitter", 0.02, "Coordinate jitter; 0 makes every query share one cache entry")
	concurrency := flag.Int("c", 10, "Number of concurrent workers")
	duration := flag.Duration("d", 30*time.Second, "Duration of the load test")
	rps := flag.Int("rps", 50, "Requests per second limit")
	flag.Parse()

	log.Printf("Starting load test on %s", *baseURL)
	log.Printf("Concurrency: %d, Duration: %s, RPS: %d, Jitter: %.4f", *concurrency, *duration, *rps, *jitter)

	var wg sync.WaitGroup
	var successCount, errorCount atomic.Int64
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	limiter := rate.NewLimiter(rate.Limit(*rps), 10)

	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			client := &http.Client{
				Timeout: 30 * time.Second,
			}
			rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

			for {
				select {
				case <-ctx.Done():
					return
				default:
					limiter.Wait(ctx) // Wait for token from rate limiter

					// Coordinates are rounded server-side, so small jitter
					// exercises both cache hits and distinct entries.
					qLat := *lat + (rng.Float64()-0.5)*(*jitter)
					qLon := *lon + (rng.Float64()-0.5)*(*jitter)
					url := fmt.Sprintf("%s?lat=%.5f&lon=%.5f&radius=50&days=14", *baseURL, qLat, qLon)

					req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
					if err != nil {
						continue // Should not happen
					}

					resp, err := client.Do(req)
					if err != nil {
						errorCount.Add(1)
						continue
					}

					if resp.StatusCode == http.StatusOK {
						successCount.Add(1)
					} else {
						errorCount.Add(1)
					}
					resp.Body.Close()
				}
			}
		}(i)
	}

	wg.Wait()

	log.Printf("Load test finished. Success: %d, Errors: %d", successCount.Load(), errorCount.Load())
}
