package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Notifier forwards accepted change requests to an external endpoint.
// Delivery is best effort: one attempt, outcome only logged. A nil *Notifier
// is disabled and Notify on it is a no-op.
type Notifier struct {
	url        string
	httpClient *http.Client
	wg         sync.WaitGroup
}

// New returns nil when url is empty.
func New(url string, timeout time.Duration) *Notifier {
	if url == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Notifier{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Notify posts payload in the background and returns immediately.
func (n *Notifier) Notify(payload []byte, requestID string) {
	if n == nil {
		return
	}
	body := bytes.Clone(payload)

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if err := n.send(context.Background(), body); err != nil {
			log.Warn().Err(err).Str("module", "adapters.webhook").Str("request_id", requestID).Msg("webhook notification failed")
			return
		}
		log.Debug().Str("module", "adapters.webhook").Str("request_id", requestID).Msg("webhook notified")
	}()
}

func (n *Notifier) send(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: send: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Wait blocks until in-flight notifications finish or ctx is done.
func (n *Notifier) Wait(ctx context.Context) error {
	if n == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
