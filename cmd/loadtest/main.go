// Command loadtest drives concurrent POST /api/v1/check traffic against a
// running API and prints throughput, latency percentiles, and status codes.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/checker"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/lexicon"
)

// Sample is one check request body cycled through by the workers.
type Sample struct {
	Text string
	Lang lexicon.Lang
}

type Config struct {
	BaseURL     string
	APIKey      string
	Concurrency int
	Duration    time.Duration
	Reveal      bool
	Samples     []Sample
}

var defaultSamples = []Sample{
	{Text: "Die Kündigungsfrist beträgt drei Monate zum Quartalsende.", Lang: lexicon.LangGerman},
	{Text: "Der Arbeitgeber zahlt das Weihnachtsgeld im November aus.", Lang: lexicon.LangGerman},
	{Text: "Bitte reichen Sie die Arbeitsunfähigkeitsbescheinigung bis Mittwoch ein.", Lang: lexicon.LangGerman},
	{Text: "Die Probezeit kann einvernehmlich verlängert werden.", Lang: lexicon.LangGerman},
	{Text: "The notice period is three months to the end of the quarter.", Lang: lexicon.LangEnglish},
	{Text: "Employees accrue paid leave from their first working day.", Lang: lexicon.LangEnglish},
	{Text: "Submit the sick note to human resources by Wednesday.", Lang: lexicon.LangEnglish},
	{Text: "The probation period may be extended by mutual agreement.", Lang: lexicon.LangEnglish},
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the glossary API")
	apiKey := flag.String("api-key", "", "API key sent as a bearer token (anonymous when empty)")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	reveal := flag.Bool("reveal", false, "skip redaction in check requests")
	flag.Parse()

	cfg := Config{
		BaseURL:     *baseURL,
		APIKey:      *apiKey,
		Concurrency: max(*concurrency, 1),
		Duration:    *duration,
		Reveal:      *reveal,
		Samples:     defaultSamples,
	}

	fmt.Println("=== Glossary Check Load Test ===")
	fmt.Printf("Target:      %s/api/v1/check\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Samples:     %d texts\n", len(cfg.Samples))
	fmt.Println()

	bodies, err := encodeSamples(cfg.Samples, cfg.Reveal)
	if err != nil {
		fmt.Fprintf(os.Stderr, "encoding samples: %v\n", err)
		os.Exit(1)
	}

	stats := run(cfg, bodies)
	if err := stats.Report(os.Stdout, cfg.Duration); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func encodeSamples(samples []Sample, reveal bool) ([][]byte, error) {
	bodies := make([][]byte, 0, len(samples))
	for _, s := range samples {
		body, err := json.Marshal(checker.CheckRequest{Text: s.Text, Lang: string(s.Lang), Reveal: reveal})
		if err != nil {
			return nil, err
		}
		bodies = append(bodies, body)
	}
	return bodies, nil
}

func run(cfg Config, bodies [][]byte) *Stats {
	stats := NewStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	checkURL := cfg.BaseURL + "/api/v1/check"

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	fmt.Print("Running")

	for w := range cfg.Concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := w; ctx.Err() == nil; i++ {
				start := time.Now()
				status, err := send(ctx, client, checkURL, cfg.APIKey, bodies[i%len(bodies)])
				if ctx.Err() != nil {
					return
				}
				stats.Record(time.Since(start), status, err)
			}
		}()
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	wg.Wait()
	fmt.Println(" done!")
	fmt.Println()
	return stats
}

func send(ctx context.Context, client *http.Client, url, apiKey string, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}
