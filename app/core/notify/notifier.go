package notify

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"pagesmith/app/pkg/logger"
	"pagesmith/app/pkg/types"
)

// Notifier delivers result payloads to the evaluation endpoint with
// exponential backoff. Delivery is at-least-once; failures are logged
// and reported as a boolean, never raised.
type Notifier struct {
	client       *http.Client
	maxRetries   int
	initialDelay time.Duration
	sleep        func(time.Duration)
}

func New(maxRetries int, initialDelay time.Duration) *Notifier {
	if maxRetries <= 0 {
		maxRetries = 10
	}
	if initialDelay <= 0 {
		initialDelay = time.Second
	}
	return &Notifier{
		client:       &http.Client{Timeout: 30 * time.Second},
		maxRetries:   maxRetries,
		initialDelay: initialDelay,
		sleep:        time.Sleep,
	}
}

// Notify posts the payload until the endpoint accepts it or the retry
// budget runs out. The delay doubles before each retry; there is no
// sleep after the final attempt.
func (n *Notifier) Notify(url string, payload types.NotifyPayload) bool {
	body, err := json.Marshal(payload)
	if err != nil {
		logger.Error("Failed to encode notification payload: %v", err)
		return false
	}

	logger.Info("Starting notification to %s", url)
	delay := n.initialDelay

	for attempt := 1; attempt <= n.maxRetries; attempt++ {
		logger.Debug("Notification attempt %d/%d", attempt, n.maxRetries)

		if n.post(url, body) {
			logger.Info("Successfully notified evaluation server")
			return true
		}

		if attempt < n.maxRetries {
			logger.Debug("Retrying in %s", delay)
			n.sleep(delay)
			delay *= 2
		}
	}

	logger.Error("Failed to notify evaluation server after %d attempts", n.maxRetries)
	return false
}

func (n *Notifier) post(url string, body []byte) bool {
	resp, err := n.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		logger.Error("Notification request failed: %v", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return true
	}
	excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
	logger.Error("Evaluation server responded with %d: %s", resp.StatusCode, excerpt)
	return false
}
