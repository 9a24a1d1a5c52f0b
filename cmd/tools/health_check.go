package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/Namanahuja82/koinx-backend-assignment/internal/app/dto"
)

func main() {
	url := flag.String("url", "http://localhost:3000/health", "health endpoint of the stats API")
	timeout := flag.Duration("timeout", 5*time.Second, "request timeout")
	flag.Parse()

	fmt.Println("coinstats Health Check Utility")
	fmt.Println("------------------------------")

	health, err := checkServiceHealth(context.Background(), *url, *timeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service is NOT healthy: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Service is healthy! (reported at %s)\n", health.Timestamp.Format(time.RFC3339))
}

func checkServiceHealth(ctx context.Context, url string, timeout time.Duration) (*dto.HealthResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var health dto.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if health.Status != "OK" {
		return nil, fmt.Errorf("status %q", health.Status)
	}
	return &health, nil
}
