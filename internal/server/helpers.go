package server

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// WaitForHealthy polls baseURL's /health endpoint until it answers 200 OK
// or ctx is done. baseURL may use an http or ws scheme.
func WaitForHealthy(ctx context.Context, baseURL string) error {
	healthURL := HTTPBase(baseURL) + "/health"
	client := &http.Client{Timeout: time.Second}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL, nil)
		if err != nil {
			return err
		}
		if resp, err := client.Do(req); err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// HTTPBase turns a ws:// or wss:// server URL into its http equivalent and
// strips a trailing /ws path.
func HTTPBase(serverURL string) string {
	u := strings.TrimSuffix(strings.TrimSuffix(serverURL, "/"), "/ws")
	switch {
	case strings.HasPrefix(u, "ws://"):
		return "http://" + strings.TrimPrefix(u, "ws://")
	case strings.HasPrefix(u, "wss://"):
		return "https://" + strings.TrimPrefix(u, "wss://")
	}
	return u
}
