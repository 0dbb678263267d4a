// Package notify contains notification dispatcher implementations. The
// parent portal is the only channel the platform currently exposes to
// guardians.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/schoolhub/discipline-core/internal/domain/actor"
	"github.com/schoolhub/discipline-core/internal/domain/notification"
	"github.com/schoolhub/discipline-core/pkg/retry"
)

// PortalConfig configures the portal dispatcher.
type PortalConfig struct {
	// BaseURL is the portal notification endpoint base.
	BaseURL string

	// APIKey authenticates against the portal.
	APIKey string

	// RequestTimeout bounds a single HTTP call.
	RequestTimeout time.Duration
}

// DefaultPortalConfig returns sensible defaults.
func DefaultPortalConfig() PortalConfig {
	return PortalConfig{
		RequestTimeout: 5 * time.Second,
	}
}

// PortalDispatcher delivers notices to guardians through the parent
// portal HTTP API. Transient failures are retried with backoff; the
// final outcome is reported in the DeliveryResult, never as an error
// that could reach the lifecycle engine.
type PortalDispatcher struct {
	config  PortalConfig
	client  *http.Client
	retrier *retry.Retrier
	logger  *slog.Logger
}

// NewPortalDispatcher creates a portal dispatcher.
func NewPortalDispatcher(config PortalConfig, logger *slog.Logger) *PortalDispatcher {
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PortalDispatcher{
		config:  config,
		client:  &http.Client{Timeout: config.RequestTimeout},
		retrier: retry.PortalRetrier(),
		logger:  logger,
	}
}

type portalPayload struct {
	GuardianID string `json:"guardian_id"`
	StudentID  string `json:"student_id"`
	IncidentID string `json:"incident_id"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
}

// Dispatch implements notification.Dispatcher.
func (d *PortalDispatcher) Dispatch(ctx context.Context, guardian *actor.Guardian, notice *notification.Notice) notification.DeliveryResult {
	result := notification.DeliveryResult{
		NoticeID:    notice.ID,
		AttemptedAt: time.Now().UTC(),
	}

	payload, err := json.Marshal(portalPayload{
		GuardianID: guardian.ID,
		StudentID:  notice.StudentID,
		IncidentID: notice.IncidentID,
		Subject:    notice.Subject,
		Body:       notice.Body,
	})
	if err != nil {
		result.Error = fmt.Sprintf("marshal notice: %v", err)
		return result
	}

	err = d.retrier.Do(ctx, func(ctx context.Context) error {
		return d.send(ctx, payload)
	})
	if err != nil {
		result.Error = err.Error()
		return result
	}

	result.Delivered = true
	return result
}

func (d *PortalDispatcher) send(ctx context.Context, payload []byte) error {
	url := d.config.BaseURL + "/v1/notifications"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return retry.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if d.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+d.config.APIKey)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return retry.Retryable(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return retry.Retryable(fmt.Errorf("portal returned %d", resp.StatusCode))
	default:
		return retry.Permanent(fmt.Errorf("portal returned %d", resp.StatusCode))
	}
}

// LogDispatcher is a Dispatcher that only logs. Used in development and
// in deployments without a portal endpoint configured.
type LogDispatcher struct {
	logger *slog.Logger
}

// NewLogDispatcher creates a logging dispatcher.
func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogDispatcher{logger: logger}
}

// Dispatch implements notification.Dispatcher.
func (d *LogDispatcher) Dispatch(_ context.Context, guardian *actor.Guardian, notice *notification.Notice) notification.DeliveryResult {
	d.logger.Info("notice dispatched (log only)",
		slog.String("notice_id", notice.ID),
		slog.String("guardian_id", guardian.ID),
		slog.String("incident_id", notice.IncidentID),
		slog.String("subject", notice.Subject))

	return notification.DeliveryResult{
		NoticeID:    notice.ID,
		Delivered:   true,
		AttemptedAt: time.Now().UTC(),
	}
}
