// Benchmark tool for testing Heron against labeled review data.
//
// Usage:
//   go run cmd/benchmark/main.go -csv /path/to/reviews.csv -url http://localhost:8080
//
// This tool:
//  1. Reads labeled review data (one row per review, with a per-product
//     sakura label)
//  2. Sends each review to Heron for ingestion
//  3. Recomputes the trust score for every product
//  4. Compares Heron's judgment (SAKURA/LIKELY = flagged) with the actual
//     labels
//  5. Calculates precision, recall, F1-score, and confusion matrix
//
// Expected CSV columns (header, case-insensitive):
//
//	product_id, source, external_review_id, rating, title, body,
//	review_date (RFC3339), reviewer, is_sakura (0/1, per product)
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// LabeledReview represents a row from the benchmark dataset.
type LabeledReview struct {
	ProductID        string
	Source           string
	ExternalReviewID string
	Rating           int
	Title            string
	Body             string
	ReviewDate       time.Time
	Reviewer         string
	IsSakura         bool
}

// ReviewRequest is the Heron ingest request format.
type ReviewRequest struct {
	ProductID        string    `json:"productId"`
	Source           string    `json:"source,omitempty"`
	ExternalReviewID string    `json:"externalReviewId,omitempty"`
	Title            string    `json:"title,omitempty"`
	Body             string    `json:"body,omitempty"`
	Rating           int       `json:"rating"`
	ReviewDate       time.Time `json:"reviewDate,omitempty"`
	Reviewer         string    `json:"reviewer,omitempty"`
}

// ScoreResponse is the Heron score response format.
type ScoreResponse struct {
	ProductID string   `json:"productId"`
	Score     int      `json:"score"`
	Penalty   int      `json:"penalty"`
	Rank      string   `json:"rank"`
	Judgment  string   `json:"judgment"`
	Flags     []string `json:"flags"`
}

// Metrics tracks benchmark results.
type Metrics struct {
	TruePositives  int64 // Sakura products judged SAKURA/LIKELY
	FalsePositives int64 // Genuine products judged SAKURA/LIKELY
	TrueNegatives  int64 // Genuine products judged UNLIKELY/GENUINE
	FalseNegatives int64 // Sakura products judged UNLIKELY/GENUINE (missed!)

	ReviewsIngested int64
	IngestErrors    int64
	ScoreErrors     int64

	IngestTimeMs int64
	ScoreTimeMs  int64
}

func main() {
	// Parse flags
	csvPath := flag.String("csv", "", "Path to labeled review CSV file")
	baseURL := flag.String("url", "http://localhost:8080", "Heron base URL")
	limit := flag.Int("limit", 0, "Maximum reviews to ingest (0 = all)")
	workers := flag.Int("workers", 10, "Number of concurrent ingest workers")
	sakuraOnly := flag.Bool("sakura-only", false, "Only test labeled-sakura products")
	verbose := flag.Bool("verbose", false, "Print each product result")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: benchmark -csv /path/to/reviews.csv [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║          HERON BENCHMARK - Sakura Review Detection            ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nCSV File:    %s\n", *csvPath)
	fmt.Printf("Heron URL:   %s\n", *baseURL)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Printf("Limit:       %d\n", *limit)
	fmt.Printf("Sakura Only: %v\n", *sakuraOnly)
	fmt.Println()

	// Check Heron is running
	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Heron not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Heron is running:")
		fmt.Println("  cd heron && go run cmd/heron/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Heron is healthy")

	// Read labeled review data
	fmt.Printf("\nReading review data from %s...\n", *csvPath)
	reviews, err := readReviewCSV(*csvPath, *limit, *sakuraOnly)
	if err != nil {
		fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Loaded %d reviews\n", len(reviews))

	// Group by product and count labels
	labels := make(map[string]bool)
	for _, r := range reviews {
		if r.IsSakura {
			labels[r.ProductID] = true
		} else if _, seen := labels[r.ProductID]; !seen {
			labels[r.ProductID] = false
		}
	}
	sakuraCount := 0
	for _, isSakura := range labels {
		if isSakura {
			sakuraCount++
		}
	}
	fmt.Printf("  - Products:  %d\n", len(labels))
	fmt.Printf("  - Sakura:    %d (%.2f%%)\n", sakuraCount, 100*float64(sakuraCount)/float64(len(labels)))
	fmt.Printf("  - Genuine:   %d (%.2f%%)\n", len(labels)-sakuraCount, 100*float64(len(labels)-sakuraCount)/float64(len(labels)))

	// Run benchmark
	fmt.Printf("\nIngesting %d reviews with %d workers...\n", len(reviews), *workers)
	startTime := time.Now()
	metrics := runBenchmark(reviews, labels, *baseURL, *workers, *verbose)
	duration := time.Since(startTime)

	// Print results
	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func readReviewCSV(path string, limit int, sakuraOnly bool) ([]LabeledReview, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)

	// Read header
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	// Map column indices
	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}
	if _, ok := colIndex["product_id"]; !ok {
		return nil, fmt.Errorf("missing required column product_id")
	}

	field := func(record []string, name string) string {
		i, ok := colIndex[name]
		if !ok || i >= len(record) {
			return ""
		}
		return record[i]
	}

	var reviews []LabeledReview

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}

		isSakura := field(record, "is_sakura") == "1"
		if sakuraOnly && !isSakura {
			continue
		}

		rating, _ := strconv.Atoi(field(record, "rating"))
		reviewDate, _ := time.Parse(time.RFC3339, field(record, "review_date"))

		reviews = append(reviews, LabeledReview{
			ProductID:        field(record, "product_id"),
			Source:           field(record, "source"),
			ExternalReviewID: field(record, "external_review_id"),
			Rating:           rating,
			Title:            field(record, "title"),
			Body:             field(record, "body"),
			ReviewDate:       reviewDate,
			Reviewer:         field(record, "reviewer"),
			IsSakura:         isSakura,
		})

		if limit > 0 && len(reviews) >= limit {
			break
		}
	}

	return reviews, nil
}

func runBenchmark(reviews []LabeledReview, labels map[string]bool, baseURL string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	// Phase 1: ingest every review through concurrent workers
	work := make(chan LabeledReview, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for r := range work {
				start := time.Now()
				err := ingestReview(client, baseURL, r)
				atomic.AddInt64(&metrics.IngestTimeMs, time.Since(start).Milliseconds())

				if err != nil {
					atomic.AddInt64(&metrics.IngestErrors, 1)
					if verbose {
						fmt.Printf("INGEST ERROR: %s -> %v\n", r.ProductID, err)
					}
					continue
				}
				atomic.AddInt64(&metrics.ReviewsIngested, 1)
			}
		}()
	}

	for _, r := range reviews {
		work <- r
	}
	close(work)
	wg.Wait()

	// Phase 2: score every product once, sequentially for stable output
	productIDs := make([]string, 0, len(labels))
	for id := range labels {
		productIDs = append(productIDs, id)
	}
	sort.Strings(productIDs)

	client := &http.Client{Timeout: 30 * time.Second}
	for _, productID := range productIDs {
		start := time.Now()
		result, err := computeScore(client, baseURL, productID)
		atomic.AddInt64(&metrics.ScoreTimeMs, time.Since(start).Milliseconds())

		if err != nil {
			atomic.AddInt64(&metrics.ScoreErrors, 1)
			if verbose {
				fmt.Printf("SCORE ERROR: %s -> %v\n", productID, err)
			}
			continue
		}

		// SAKURA and LIKELY count as a flagged product
		predicted := result.Judgment == "SAKURA" || result.Judgment == "LIKELY"
		actual := labels[productID]

		if predicted && actual {
			atomic.AddInt64(&metrics.TruePositives, 1)
		} else if predicted && !actual {
			atomic.AddInt64(&metrics.FalsePositives, 1)
		} else if !predicted && !actual {
			atomic.AddInt64(&metrics.TrueNegatives, 1)
		} else { // !predicted && actual
			atomic.AddInt64(&metrics.FalseNegatives, 1)
		}

		if verbose {
			status := "✓"
			if predicted != actual {
				status = "✗"
			}
			fmt.Printf("%s %-14s | Sakura: %-5v | Heron: %-14s | Score: %3d | Rank: %s | Flags: %s\n",
				status,
				productID,
				actual,
				result.Judgment,
				result.Score,
				result.Rank,
				strings.Join(result.Flags, ","),
			)
		}
	}

	return metrics
}

func ingestReview(client *http.Client, baseURL string, r LabeledReview) error {
	req := ReviewRequest{
		ProductID:        r.ProductID,
		Source:           r.Source,
		ExternalReviewID: r.ExternalReviewID,
		Title:            r.Title,
		Body:             r.Body,
		Rating:           r.Rating,
		ReviewDate:       r.ReviewDate,
		Reviewer:         r.Reviewer,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/reviews", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

func computeScore(client *http.Client, baseURL, productID string) (*ScoreResponse, error) {
	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/products/"+productID+"/score", nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result ScoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 DATASET STATISTICS\n")
	fmt.Printf("   Reviews Ingested:  %d\n", m.ReviewsIngested)
	fmt.Printf("   Ingest Errors:     %d\n", m.IngestErrors)
	fmt.Printf("   Score Errors:      %d\n", m.ScoreErrors)

	fmt.Printf("\n📈 CONFUSION MATRIX (per product)\n")
	fmt.Println("                        Predicted")
	fmt.Println("                 Flagged       Clear")
	fmt.Println("              ┌──────────┬──────────┐")
	fmt.Printf("   Actual  S  │ %8d │ %8d │  (TP, FN)\n", m.TruePositives, m.FalseNegatives)
	fmt.Println("              ├──────────┼──────────┤")
	fmt.Printf("           G  │ %8d │ %8d │  (FP, TN)\n", m.FalsePositives, m.TrueNegatives)
	fmt.Println("              └──────────┴──────────┘")

	// Calculate metrics
	precision := float64(0)
	if m.TruePositives+m.FalsePositives > 0 {
		precision = float64(m.TruePositives) / float64(m.TruePositives+m.FalsePositives)
	}

	recall := float64(0)
	if m.TruePositives+m.FalseNegatives > 0 {
		recall = float64(m.TruePositives) / float64(m.TruePositives+m.FalseNegatives)
	}

	f1 := float64(0)
	if precision+recall > 0 {
		f1 = 2 * (precision * recall) / (precision + recall)
	}

	accuracy := float64(0)
	total := m.TruePositives + m.TrueNegatives + m.FalsePositives + m.FalseNegatives
	if total > 0 {
		accuracy = float64(m.TruePositives+m.TrueNegatives) / float64(total)
	}

	fmt.Printf("\n🎯 DETECTION METRICS\n")
	fmt.Printf("   Precision:  %.4f  (of flagged products, how many were sakura)\n", precision)
	fmt.Printf("   Recall:     %.4f  (of sakura products, how many did we catch)\n", recall)
	fmt.Printf("   F1-Score:   %.4f  (harmonic mean of precision & recall)\n", f1)
	fmt.Printf("   Accuracy:   %.4f  (overall correct judgments)\n", accuracy)

	// Detection rate analysis
	fmt.Printf("\n🔍 DETECTION ANALYSIS\n")
	totalSakura := m.TruePositives + m.FalseNegatives
	totalGenuine := m.FalsePositives + m.TrueNegatives
	if totalSakura > 0 {
		detectionRate := float64(m.TruePositives) / float64(totalSakura) * 100
		missRate := float64(m.FalseNegatives) / float64(totalSakura) * 100
		fmt.Printf("   Sakura Detected:   %d / %d (%.2f%%)\n", m.TruePositives, totalSakura, detectionRate)
		fmt.Printf("   Sakura Missed:     %d / %d (%.2f%%) ⚠️\n", m.FalseNegatives, totalSakura, missRate)
	}
	if totalGenuine > 0 {
		falseAlarmRate := float64(m.FalsePositives) / float64(totalGenuine) * 100
		fmt.Printf("   False Alarms:      %d / %d (%.2f%%)\n", m.FalsePositives, totalGenuine, falseAlarmRate)
	}

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.ReviewsIngested > 0 {
		avgMs := float64(m.IngestTimeMs) / float64(m.ReviewsIngested)
		rps := float64(m.ReviewsIngested) / duration.Seconds()
		fmt.Printf("   Avg Ingest:       %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f reviews/sec\n", rps)
	}
	if total > 0 {
		fmt.Printf("   Avg Score:        %.2f ms\n", float64(m.ScoreTimeMs)/float64(total))
	}

	// Interpretation
	fmt.Printf("\n💡 INTERPRETATION\n")
	if recall >= 0.9 {
		fmt.Println("   ✅ Excellent recall - catching most sakura products")
	} else if recall >= 0.7 {
		fmt.Println("   ⚠️  Good recall - but missing some sakura products")
	} else if recall >= 0.5 {
		fmt.Println("   ⚠️  Moderate recall - significant sakura activity being missed")
	} else {
		fmt.Println("   ❌ Poor recall - most sakura products are being missed!")
	}

	if precision >= 0.5 {
		fmt.Println("   ✅ Good precision - flags are meaningful")
	} else if precision >= 0.2 {
		fmt.Println("   ⚠️  Low precision - many false alarms")
	} else {
		fmt.Println("   ❌ Very low precision - mostly false alarms")
	}

	fmt.Println()
}
