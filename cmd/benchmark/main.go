package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Config holds the benchmark settings
var (
	targetURL   string
	token       string
	concurrency int
	duration    time.Duration
	workload    string
	lenders     int
	invoiceIDs  int
)

// Metrics
var (
	totalRequests uint64
	success201    uint64 // Created, including cross-lender duplicates
	fail409       uint64 // Same-lender duplicates and lock conflicts
	failOther     uint64
)

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "API Base URL")
	flag.StringVar(&token, "token", os.Getenv("INVOSAFE_TOKEN"), "Admin bearer token")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	flag.StringVar(&workload, "workload", "uniform", "Workload type: uniform | hotspot")
	flag.IntVar(&lenders, "lenders", 50, "Number of seeded lenders")
	flag.IntVar(&invoiceIDs, "invoices", 100000, "Size of the invoice id space")
}

func main() {
	flag.Parse()
	if token == "" {
		log.Fatal("an admin token is required, pass -token or set INVOSAFE_TOKEN")
	}
	log.Printf("Starting Benchmark: %s | Workers: %d | Duration: %s", workload, concurrency, duration)

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrency)

	for i := 0; i < concurrency; i++ {
		go worker(&wg, start)
	}

	wg.Wait()
	printResults(time.Since(start))
}

func worker(wg *sync.WaitGroup, start time.Time) {
	defer wg.Done()
	client := &http.Client{Timeout: 5 * time.Second}

	for time.Since(start) < duration {
		lenderID, invoiceID := generateInvoice()

		payload := map[string]interface{}{
			"invoice_id":     invoiceID,
			"lender_id":      lenderID,
			"invoice_amount": "1000.00",
			"seller_pan":     "ABCDE1234F",
			"buyer_pan":      "PQRSX6789K",
		}
		body, _ := json.Marshal(payload)

		req, _ := http.NewRequest("POST", targetURL+"/api/v1/invoice", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := client.Do(req)
		if err != nil {
			atomic.AddUint64(&failOther, 1)
			continue
		}

		atomic.AddUint64(&totalRequests, 1)
		switch resp.StatusCode {
		case 201:
			atomic.AddUint64(&success201, 1)
		case 409:
			atomic.AddUint64(&fail409, 1)
		default:
			atomic.AddUint64(&failOther, 1)
		}
		resp.Body.Close()
	}
}

func generateInvoice() (int64, string) {
	if workload == "hotspot" {
		// Hotspot: 90% of traffic races on two invoice ids across all lenders
		if rand.Float32() < 0.90 {
			return int64(rand.Intn(lenders) + 1), fmt.Sprintf("HOT-%d", rand.Intn(2)+1)
		}
	}

	// Uniform Random
	return int64(rand.Intn(lenders) + 1), fmt.Sprintf("INV-%d", rand.Intn(invoiceIDs)+1)
}

func printResults(d time.Duration) {
	total := atomic.LoadUint64(&totalRequests)
	s201 := atomic.LoadUint64(&success201)
	f409 := atomic.LoadUint64(&fail409)
	fErr := atomic.LoadUint64(&failOther)

	tps := float64(total) / d.Seconds()
	conflictRate := 0.0
	if total > 0 {
		conflictRate = float64(f409) / float64(total) * 100
	}

	results := map[string]interface{}{
		"workload":          workload,
		"duration_sec":      d.Seconds(),
		"total_requests":    total,
		"throughput_tps":    tps,
		"success_created":   s201,
		"conflicts":         f409,
		"conflict_rate_pct": conflictRate,
		"errors":            fErr,
	}

	// Print JSON for the python plotter to consume
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)

	// Also save to file
	filename := fmt.Sprintf("results_%s.json", workload)
	file, err := os.Create(filename)
	if err != nil {
		log.Printf("Unable to save results: %v", err)
		return
	}
	defer file.Close()
	json.NewEncoder(file).Encode(results)
}
