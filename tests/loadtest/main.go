package main

import (
	"bytes"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
)

const (
	baseURL      = "http://127.0.0.1:8090"
	numWorkers   = 50
	testDuration = 10 * time.Second
	idBase       = 1_900_000_000_000
)

var httpClient = &http.Client{
	Timeout: 5 * time.Second,
	Transport: &http.Transport{
		MaxIdleConns:        200,
		MaxIdleConnsPerHost: 200,
		IdleConnTimeout:     30 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   2 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	},
}

// nextID hands out session IDs far above anything a live clock produces.
var nextID atomic.Int64

type result struct {
	endpoint string
	status   int
	latency  time.Duration
	err      bool
}

type stats struct {
	count     int64
	errors    int64
	latencies []time.Duration
}

func main() {
	fmt.Println("=== Stride Load Test ===")
	fmt.Printf("Workers: %d | Duration: %s\n\n", numWorkers, testDuration)
	nextID.Store(idBase)

	fmt.Print("Waiting for server... ")
	for i := 0; i < 30; i++ {
		resp, err := httpClient.Get(baseURL + "/health")
		if err == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			break
		}
		if i == 29 {
			fmt.Println("FAILED: server not responding")
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
	fmt.Println("OK")

	fmt.Println("\n--- Phase 1: Seeding sessions (POST /runs/import) ---")
	runPhase(testDuration, doImport)

	fmt.Println("\n--- Phase 2: Mixed load (50% import, 50% reads) ---")
	runPhase(testDuration, func(rng *rand.Rand) result {
		r := rng.Float64()
		switch {
		case r < 0.50:
			return doImport(rng)
		case r < 0.65:
			return doGet("/runs?limit=20")
		case r < 0.80:
			return doGet("/stats")
		case r < 0.90:
			return doGet("/achievements?filter=unlocked")
		default:
			return doGetRun(rng)
		}
	})

	fmt.Println("\n--- Phase 3: Read-heavy load (10% import, 90% reads) ---")
	runPhase(testDuration, func(rng *rand.Rand) result {
		r := rng.Float64()
		switch {
		case r < 0.10:
			return doImport(rng)
		case r < 0.35:
			return doGet("/runs?limit=20")
		case r < 0.55:
			return doGet("/stats")
		case r < 0.65:
			return doGet("/stats?source=store")
		case r < 0.80:
			return doGet("/achievements")
		default:
			return doGetRun(rng)
		}
	})
}

func runPhase(duration time.Duration, workFn func(rng *rand.Rand) result) {
	results := make(chan result, 10000)
	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(seed uint64) {
			defer wg.Done()
			rng := rand.New(rand.NewPCG(seed, uint64(time.Now().UnixNano())))
			for {
				select {
				case <-stop:
					return
				default:
					results <- workFn(rng)
				}
			}
		}(rand.Uint64() + uint64(i))
	}

	allResults := make(map[string]*stats)
	done := make(chan struct{})
	go func() {
		for r := range results {
			s, ok := allResults[r.endpoint]
			if !ok {
				s = &stats{}
				allResults[r.endpoint] = s
			}
			s.count++
			if r.err {
				s.errors++
			}
			s.latencies = append(s.latencies, r.latency)
		}
		close(done)
	}()

	time.Sleep(duration)
	close(stop)
	wg.Wait()
	close(results)
	<-done

	printResults(allResults, duration)
}

func printResults(allResults map[string]*stats, duration time.Duration) {
	var totalOps int64
	var totalErrors int64

	endpoints := make([]string, 0, len(allResults))
	for ep := range allResults {
		endpoints = append(endpoints, ep)
	}
	sort.Strings(endpoints)

	fmt.Printf("\n  %-30s %8s %6s %10s %10s %10s %10s\n",
		"Endpoint", "Reqs", "Errs", "Avg", "P50", "P95", "P99")
	fmt.Println("  " + strings.Repeat("-", 96))

	for _, ep := range endpoints {
		s := allResults[ep]
		totalOps += s.count
		totalErrors += s.errors

		sort.Slice(s.latencies, func(i, j int) bool {
			return s.latencies[i] < s.latencies[j]
		})

		fmt.Printf("  %-30s %8d %6d %10s %10s %10s %10s\n",
			ep, s.count, s.errors,
			fmtDur(avgDuration(s.latencies)),
			fmtDur(percentile(s.latencies, 0.50)),
			fmtDur(percentile(s.latencies, 0.95)),
			fmtDur(percentile(s.latencies, 0.99)))
	}

	fmt.Println("  " + strings.Repeat("-", 96))
	if totalOps == 0 {
		fmt.Println("  Total: 0 reqs")
		return
	}
	fmt.Printf("  Total: %d reqs | Errors: %d (%.1f%%) | RPS: %.0f\n",
		totalOps, totalErrors, float64(totalErrors)/float64(totalOps)*100, float64(totalOps)/duration.Seconds())
}

type importBody struct {
	ID        int64   `json:"id"`
	StartTime int64   `json:"start_time"`
	EndTime   int64   `json:"end_time"`
	Distance  float64 `json:"distance"`
	Duration  int64   `json:"duration"`
	Calories  float64 `json:"calories"`
}

func doImport(rng *rand.Rand) result {
	id := nextID.Add(1)
	distance := 1000 + rng.Float64()*14000
	// 4:30 to 8:00 min/km
	paceMs := 270_000 + rng.Int64N(210_000)
	duration := int64(distance / 1000 * float64(paceMs))

	data, _ := json.Marshal(importBody{
		ID:        id,
		StartTime: id,
		EndTime:   id + duration,
		Distance:  distance,
		Duration:  duration,
		Calories:  distance * 0.06,
	})
	start := time.Now()
	resp, err := httpClient.Post(baseURL+"/runs/import", "application/json", bytes.NewReader(data))
	return finish("POST /runs/import", start, resp, err, http.StatusCreated)
}

func doGetRun(rng *rand.Rand) result {
	issued := nextID.Load() - idBase
	if issued <= 0 {
		return doGet("/runs?limit=1")
	}
	id := idBase + 1 + rng.Int64N(issued)
	start := time.Now()
	resp, err := httpClient.Get(fmt.Sprintf("%s/run?id=%d", baseURL, id))
	return finish("GET /run", start, resp, err, http.StatusOK)
}

func doGet(path string) result {
	start := time.Now()
	resp, err := httpClient.Get(baseURL + path)
	return finish("GET "+path, start, resp, err, http.StatusOK)
}

func finish(endpoint string, start time.Time, resp *http.Response, err error, want int) result {
	lat := time.Since(start)
	if err != nil {
		return result{endpoint, 0, lat, true}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return result{endpoint, resp.StatusCode, lat, resp.StatusCode != want}
}

func avgDuration(d []time.Duration) time.Duration {
	if len(d) == 0 {
		return 0
	}
	var sum time.Duration
	for _, v := range d {
		sum += v
	}
	return sum / time.Duration(len(d))
}

func percentile(d []time.Duration, p float64) time.Duration {
	if len(d) == 0 {
		return 0
	}
	idx := int(float64(len(d)) * p)
	if idx >= len(d) {
		idx = len(d) - 1
	}
	return d[idx]
}

func fmtDur(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	return fmt.Sprintf("%.1fms", float64(d.Microseconds())/1000.0)
}
