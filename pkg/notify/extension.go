package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/arkhamforge/docintel/pkg/events"
	"github.com/arkhamforge/docintel/pkg/extension"
)

// Extension is the reference notifier extension: it
// subscribes to every document.* event plus ocr.escalated (a
// stage-adjacent event worth a notification in its own right, published
// one segment short of the document.* namespace it otherwise mirrors)
// and relays each to Slack via Service. It demonstrates the full
// lifecycle a real analytic extension follows — declared manifest,
// Initialize-time subscription, Shutdown-time quiescence, a status route
// — without owning any storage of its own (SchemaName is declared for
// isolation symmetry with other extensions, but the notifier persists
// nothing).
type Extension struct {
	service *Service

	mu      sync.Mutex
	sub     *events.Subscription
	ocrSub  *events.Subscription
	wg      sync.WaitGroup
	done    chan struct{}
	started bool
}

// NewExtension constructs a notifier extension. service may be nil
// (disabled notifications, e.g. no Slack token configured); Initialize
// still subscribes so the extension can report itself as running, but
// every notification becomes a no-op per Service's nil-safety.
func NewExtension(service *Service) *Extension {
	return &Extension{service: service}
}

// Name implements extension.Extension.
func (e *Extension) Name() string { return "notifier" }

// Initialize subscribes to document.* and ocr.escalated events and
// starts a background relay goroutine per subscription. Idempotent: a
// second call is a no-op if already started.
func (e *Extension) Initialize(ctx context.Context, host *extension.Host) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return nil
	}

	e.sub = host.Subscribe("document.*")
	e.ocrSub = host.Subscribe("ocr.escalated")
	e.done = make(chan struct{})
	e.started = true

	e.wg.Add(2)
	go e.relay(e.sub)
	go e.relay(e.ocrSub)
	go func() {
		e.wg.Wait()
		close(e.done)
	}()
	return nil
}

// Shutdown unsubscribes both subscriptions and waits for their relay
// goroutines to drain and exit before returning, so the host can rely
// on every handler having quiesced before it terminates.
func (e *Extension) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return nil
	}
	sub := e.sub
	ocrSub := e.ocrSub
	done := e.done
	e.started = false
	e.mu.Unlock()

	sub.Unsubscribe()
	ocrSub.Unsubscribe()
	<-done
	return nil
}

// Routes implements extension.Extension with a single status endpoint.
func (e *Extension) Routes() []extension.Route {
	return []extension.Route{
		{Method: http.MethodGet, Path: "/status", Handler: e.handleStatus},
	}
}

func (e *Extension) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"extension":"notifier","status":"running"}`))
}

func (e *Extension) relay(sub *events.Subscription) {
	defer e.wg.Done()

	for evt := range sub.Events() {
		var payload events.DocumentPayload
		if err := json.Unmarshal(evt.Payload, &payload); err != nil {
			continue
		}

		ctx := context.Background()
		switch evt.Type {
		case events.TopicDocumentIngested:
			e.service.NotifyIngested(ctx, payload.DocumentID)
		case events.TopicDocumentComplete:
			e.service.NotifyComplete(ctx, payload.DocumentID)
		case events.TopicDocumentPartial:
			e.service.NotifyPartial(ctx, payload.DocumentID, payload.Reason)
		case events.TopicDocumentFailed:
			e.service.NotifyFailed(ctx, payload.DocumentID, payload.Reason)
		case events.TopicOCREscalated:
			e.service.NotifyOCREscalated(ctx, payload.DocumentID)
		}
	}
}
