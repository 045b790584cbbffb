package notify

import (
	"context"
	"log/slog"
	"time"

	goslack "github.com/slack-go/slack"
)

// ServiceConfig holds the parameters needed to construct a Service.
type ServiceConfig struct {
	Token        string
	Channel      string
	DashboardURL string
}

// Service handles Slack notification delivery. Nil-safe: every method is a
// no-op when the Service itself is nil, so callers can construct it once
// at startup and pass a possibly-nil pointer around without a nil check at
// every call site.
type Service struct {
	client       *Client
	dashboardURL string
	logger       *slog.Logger
}

// NewService creates a new notification service. Returns nil if Token or
// Channel is empty, so the notifier extension is effectively disabled
// without special-casing it at every call site.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Token == "" || cfg.Channel == "" {
		return nil
	}
	return &Service{
		client:       NewClient(cfg.Token, cfg.Channel),
		dashboardURL: cfg.DashboardURL,
		logger:       slog.Default().With("component", "notify-service"),
	}
}

// NewServiceWithClient creates a Service backed by a pre-built Client.
// Useful for testing with a mock API server.
func NewServiceWithClient(client *Client, dashboardURL string) *Service {
	return &Service{
		client:       client,
		dashboardURL: dashboardURL,
		logger:       slog.Default().With("component", "notify-service"),
	}
}

// NotifyIngested posts a document.ingested notification. Fail-open: errors
// are logged, never returned, consistent with the extensions
// being an auxiliary consumer of events, not on the critical path of
// pipeline progress.
func (s *Service) NotifyIngested(ctx context.Context, documentID string) {
	s.post(ctx, documentID, BuildIngestedMessage(documentID, s.safeDashboardURL()))
}

// NotifyComplete posts a document.complete notification.
func (s *Service) NotifyComplete(ctx context.Context, documentID string) {
	s.post(ctx, documentID, BuildCompleteMessage(documentID, s.safeDashboardURL()))
}

// NotifyPartial posts a document.partial notification.
func (s *Service) NotifyPartial(ctx context.Context, documentID, reason string) {
	s.post(ctx, documentID, BuildPartialMessage(documentID, reason, s.safeDashboardURL()))
}

// NotifyFailed posts a document.failed notification.
func (s *Service) NotifyFailed(ctx context.Context, documentID, reason string) {
	s.post(ctx, documentID, BuildFailedMessage(documentID, reason, s.safeDashboardURL()))
}

// NotifyOCREscalated posts an ocr.escalated notification.
func (s *Service) NotifyOCREscalated(ctx context.Context, documentID string) {
	s.post(ctx, documentID, BuildOCREscalatedMessage(documentID, s.safeDashboardURL()))
}

func (s *Service) post(ctx context.Context, documentID string, blocks []goslack.Block) {
	if s == nil {
		return
	}
	if err := s.client.PostMessage(ctx, blocks, 5*time.Second); err != nil {
		s.logger.Error("failed to send Slack notification", "document_id", documentID, "error", err)
	}
}

func (s *Service) safeDashboardURL() string {
	if s == nil {
		return ""
	}
	return s.dashboardURL
}
