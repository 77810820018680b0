// Package callback delivers verification outcomes to external requesters.
package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"credex/internal/inbox/models"
)

const maxAckBytes = 64 << 10

// HTTPNotifier POSTs the outcome to the requester's callback URL. It makes a
// single attempt; the client passed in should be built with zero retries.
type HTTPNotifier struct {
	client *http.Client
	logger *slog.Logger
}

func NewHTTPNotifier(client *http.Client, logger *slog.Logger) *HTTPNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPNotifier{client: client, logger: logger}
}

// Notify returns the requester's echo when the response body carries one. A
// 2xx response with an empty or unrecognized body is a successful delivery
// with no ack.
func (n *HTTPNotifier) Notify(ctx context.Context, url string, payload models.CallbackPayload) (*models.RequesterAck, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal callback payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deliver callback: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxAckBytes))
	if err != nil {
		return nil, fmt.Errorf("read callback response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("callback rejected with status %d", resp.StatusCode)
	}
	return parseAck(ctx, raw, n.logger), nil
}

// parseAck accepts {verified, message, details}. Missing fields leave nil.
func parseAck(ctx context.Context, raw []byte, logger *slog.Logger) *models.RequesterAck {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		logger.DebugContext(ctx, "callback response is not a JSON object", "error", err)
		return nil
	}
	if _, ok := probe["verified"]; !ok {
		return nil
	}
	var ack models.RequesterAck
	if err := json.Unmarshal(raw, &ack); err != nil {
		logger.DebugContext(ctx, "callback ack has unexpected shape", "error", err)
		return nil
	}
	return &ack
}
