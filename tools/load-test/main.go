package main

import (
	"bytes"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

func main() {
	// Configuration
	// Point at a local API with the face service mock running behind it.
	url := "http://localhost:8080/api/v1/attendance/capture"
	contentType := "application/json"
	token := "replace-with-a-kiosk-token"

	numCaptures := 5000
	concurrency := 50 // Number of concurrent requests to avoid local port exhaustion

	fmt.Printf("Starting load test: %d captures to %s with concurrency %d\n", numCaptures, url, concurrency)

	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency) // Semaphore to limit concurrency

	var successCount int64
	var failCount int64

	payload := []byte(`{"image": "data:image/png;base64,iVBORw0KGgo=", "stationId": 1}`)

	startTime := time.Now()

	for i := 0; i < numCaptures; i++ {
		wg.Add(1)
		sem <- struct{}{} // Acquire token

		go func() {
			defer wg.Done()
			defer func() { <-sem }() // Release token

			req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(payload))
			if err != nil {
				atomic.AddInt64(&failCount, 1)
				return
			}
			req.Header.Set("Content-Type", contentType)
			req.Header.Set("Authorization", "Bearer "+token)

			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				atomic.AddInt64(&failCount, 1)
				return
			}

			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				atomic.AddInt64(&successCount, 1)
			} else {
				atomic.AddInt64(&failCount, 1)
			}
			resp.Body.Close()
		}()
	}

	wg.Wait()
	duration := time.Since(startTime)

	fmt.Println("\n--- Load Test Results ---")
	fmt.Printf("Total Duration: %v\n", duration)
	fmt.Printf("Total Requests: %d\n", numCaptures)
	fmt.Printf("Successful:     %d\n", successCount)
	fmt.Printf("Failed:         %d\n", failCount)
	fmt.Printf("Requests/Sec:   %.2f\n", float64(numCaptures)/duration.Seconds())
}
