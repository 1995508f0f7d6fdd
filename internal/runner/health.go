package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/wesleyorama2/gabsload/internal/http"
)

// HealthPath is the connectivity check endpoint relative to the base URL.
const HealthPath = "/health"

// CheckHealth requires GET /health to answer 200 and returns its latency.
// Use a client without the run's observer so the probe is not counted.
func CheckHealth(ctx context.Context, client *http.Client) (time.Duration, error) {
	resp, err := client.Do(ctx, http.Get(HealthPath).Named("health"))
	if err != nil {
		return 0, fmt.Errorf("health check failed: %w", err)
	}
	if resp.StatusCode != 200 {
		return resp.Duration(), fmt.Errorf("health check failed: %s returned status %d", client.BaseURL()+HealthPath, resp.StatusCode)
	}
	return resp.Duration(), nil
}
