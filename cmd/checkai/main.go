// checkai probes the configured AI backend: connectivity, then a sample
// extraction, printing the parsed payload. Useful when wiring up a new
// API key or base URL.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/kevinshaw/invoice-intel/internal/ai"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"
)

const sampleInvoice = `
Initech Systems Inc.
Invoice Number: INV-2025-0042
Invoice Date: 10/31/2025
Monthly TPS report processing subscription

TOTAL AMOUNT DUE: $42.00
`

func main() {
	baseURL := flag.String("base-url", "https://api.near.ai/v1", "API base URL (or NEARAI_BASE_URL)")
	apiKey := flag.String("key", "", "API key (or NEARAI_API_KEY)")
	model := flag.String("model", "fireworks::accounts/fireworks/models/llama-v3p1-70b-instruct", "Model identifier (or NEARAI_MODEL)")
	timeout := flag.Duration("timeout", 60*time.Second, "API call timeout")
	verbose := flag.Bool("verbose", false, "Verbose output")
	flag.Parse()

	_ = gotenv.Load()

	var logger *zap.Logger
	var err error
	if *verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *apiKey == "" {
		*apiKey = os.Getenv("NEARAI_API_KEY")
	}
	if v := os.Getenv("NEARAI_BASE_URL"); v != "" {
		*baseURL = v
	}
	if v := os.Getenv("NEARAI_MODEL"); v != "" {
		*model = v
	}

	if *apiKey == "" {
		fmt.Fprintln(os.Stderr, "ERROR: NEARAI_API_KEY not set and no --key flag provided")
		fmt.Fprintln(os.Stderr, "Usage: checkai --key ... [--base-url <url>] [--model <id>] [--timeout 60s]")
		os.Exit(1)
	}

	fmt.Println("=== AI Backend Check ===")
	fmt.Printf("  Base URL: %s\n", *baseURL)
	fmt.Printf("  Model:    %s\n", *model)
	fmt.Printf("  Timeout:  %v\n", *timeout)
	fmt.Println()

	client := ai.NewClient(ai.Config{
		BaseURL: *baseURL,
		APIKey:  *apiKey,
		Model:   *model,
		Timeout: *timeout,
	}, logger)

	ctx := context.Background()

	fmt.Print("Connectivity... ")
	if err := client.Ping(ctx); err != nil {
		fmt.Println("FAILED")
		fmt.Fprintf(os.Stderr, "  %v\n", err)
		os.Exit(1)
	}
	fmt.Println("OK")

	fmt.Print("Sample extraction... ")
	data, err := client.ExtractInvoice(ctx, sampleInvoice)
	if err != nil {
		fmt.Println("FAILED")
		fmt.Fprintf(os.Stderr, "  %v\n", err)
		os.Exit(1)
	}
	fmt.Println("OK")

	pretty, err := json.MarshalIndent(data, "  ", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render payload: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("  %s\n", pretty)

	if !data.Valid() {
		fmt.Fprintln(os.Stderr, "WARNING: payload failed the minimum-field check")
		os.Exit(1)
	}

	fmt.Println("\nAll checks passed")
}
