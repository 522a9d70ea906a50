package supervisor

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

// readinessSubstrings is the legacy stdout sniff retained as a fallback
// readiness hint. The authoritative signal is the /info handshake below;
// these strings only let the observer see life before the first probe lands.
var readinessSubstrings = []string{
	"Running on",
	"Serving Flask app",
	"listening on",
}

func lineSignalsReadiness(line string) bool {
	for _, s := range readinessSubstrings {
		if strings.Contains(line, s) {
			return true
		}
	}
	return false
}

// probeWindow bounds how long the handshake keeps retrying before giving up.
const probeWindow = 15 * time.Second

// For mocking in tests
var probeReadiness = probeInfoEndpoint

// probeInfoEndpoint polls the worker's /info endpoint with backoff until it
// answers or the window closes. Every worker binds an HTTP service and serves
// /info, so a 200 here is a verified handshake rather than a heuristic.
func probeInfoEndpoint(ctx context.Context, port int) error {
	url := fmt.Sprintf("http://127.0.0.1:%d/info", port)
	client := &http.Client{Timeout: 2 * time.Second}

	backoff := retry.WithMaxDuration(probeWindow, retry.NewFibonacci(100*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return retry.RetryableError(fmt.Errorf("status %d from %s", resp.StatusCode, url))
		}
		return nil
	})
}
