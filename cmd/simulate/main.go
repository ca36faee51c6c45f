// Command simulate drives the schedule API with synthetic submissions and
// approvals to exercise the validation path, the overlap detector, and the
// asynchronous generation pipeline under load.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	Doctors      int
	ApproveRatio float64
}

type OperationMetrics struct {
	Total    int64
	Success  int64
	Conflict int64
	Rejected int64
	Error    int64

	mu        sync.Mutex
	latencies []time.Duration
}

func (om *OperationMetrics) Record(latency time.Duration, status int) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case status >= 200 && status < 300:
		atomic.AddInt64(&om.Success, 1)
	case status == http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	case status == http.StatusUnprocessableEntity:
		atomic.AddInt64(&om.Rejected, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.latencies = append(om.latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Report(name string) {
	om.mu.Lock()
	defer om.mu.Unlock()

	fmt.Printf("\n%s: total=%d success=%d conflict=%d validation_rejected=%d error=%d\n",
		name, om.Total, om.Success, om.Conflict, om.Rejected, om.Error)

	if len(om.latencies) == 0 {
		return
	}

	sorted := make([]time.Duration, len(om.latencies))
	copy(sorted, om.latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, l := range sorted {
		sum += l
	}

	p := func(q int) time.Duration {
		idx := len(sorted) * q / 100
		if idx >= len(sorted) {
			idx = len(sorted) - 1
		}
		return sorted[idx]
	}

	fmt.Printf("  latency avg=%s min=%s max=%s p50=%s p95=%s\n",
		sum/time.Duration(len(sorted)), sorted[0], sorted[len(sorted)-1], p(50), p(95))
}

type submittedSchedule struct {
	ID string `json:"id"`
}

func main() {
	cfg := loadSimConfig()
	log.Printf("simulate: base_url=%s duration=%s workers=%d doctors=%d",
		cfg.APIBaseURL, cfg.Duration, cfg.Workers, cfg.Doctors)

	doctorIDs := make([]string, cfg.Doctors)
	for i := range doctorIDs {
		doctorIDs[i] = uuid.NewString()
	}
	hospitalID := uuid.NewString()

	var (
		submitMetrics  OperationMetrics
		approveMetrics OperationMetrics
		pending        sync.Map
	)

	client := &http.Client{Timeout: 10 * time.Second}
	deadline := time.Now().Add(cfg.Duration)

	var wg sync.WaitGroup
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))

			for time.Now().Before(deadline) {
				if rng.Float64() < cfg.ApproveRatio {
					if id, ok := popPending(&pending); ok {
						approve(client, cfg.APIBaseURL, id, &approveMetrics)
						continue
					}
				}
				if id, ok := submit(client, cfg.APIBaseURL, doctorIDs, hospitalID, rng, &submitMetrics); ok {
					pending.Store(id, struct{}{})
				}
			}
		}(time.Now().UnixNano() + int64(w))
	}
	wg.Wait()

	submitMetrics.Report("submit")
	approveMetrics.Report("approve")
}

func submit(client *http.Client, baseURL string, doctorIDs []string, hospitalID string, rng *rand.Rand, m *OperationMetrics) (string, bool) {
	startHour := 7 + rng.Intn(10)
	startDate := time.Now().AddDate(0, 0, 1+rng.Intn(14)).Format("2006-01-02")

	body := map[string]any{
		"doctor_id":     doctorIDs[rng.Intn(len(doctorIDs))],
		"hospital_id":   hospitalID,
		"name":          fmt.Sprintf("load-test %d", rng.Intn(10000)),
		"type":          "recurring",
		"days_of_week":  []int{rng.Intn(7)},
		"start_date":    startDate,
		"start_time":    fmt.Sprintf("%02d:00", startHour),
		"end_time":      fmt.Sprintf("%02d:00", startHour+2),
		"timezone":      "UTC",
		"slot_duration": 30,
	}

	status, respBody, latency := do(client, http.MethodPost, baseURL+"/schedules", body)
	m.Record(latency, status)

	if status != http.StatusCreated {
		return "", false
	}
	var created submittedSchedule
	if err := json.Unmarshal(respBody, &created); err != nil {
		return "", false
	}
	return created.ID, true
}

func approve(client *http.Client, baseURL, id string, m *OperationMetrics) {
	status, _, latency := do(client, http.MethodPost, fmt.Sprintf("%s/schedules/%s/approve", baseURL, id), nil)
	m.Record(latency, status)
}

func do(client *http.Client, method, url string, body any) (int, []byte, time.Duration) {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return 0, nil, 0
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Caller-Role", "simulator")

	start := time.Now()
	resp, err := client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return 0, nil, latency
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, respBody, latency
}

func popPending(pending *sync.Map) (string, bool) {
	var id string
	pending.Range(func(k, _ any) bool {
		id = k.(string)
		return false
	})
	if id == "" {
		return "", false
	}
	pending.Delete(id)
	return id, true
}

func loadSimConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:   envStr("SIM_API_URL", "http://localhost:8080"),
		Duration:     envDuration("SIM_DURATION", 30*time.Second),
		Workers:      envInt("SIM_WORKERS", 8),
		Doctors:      envInt("SIM_DOCTORS", 20),
		ApproveRatio: envFloat("SIM_APPROVE_RATIO", 0.4),
	}
	return cfg
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
