package events_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkhamforge/docintel/pkg/events"
)

func TestPublishDeliversToMatchingSubscriber(t *testing.T) {
	bus := events.New()
	sub := bus.Subscribe("stage.*.completed")
	defer sub.Unsubscribe()

	bus.Publish("stage.ocr.completed", "worker-1", []byte(`{}`), "corr-1")

	select {
	case evt := <-sub.Events():
		assert.Equal(t, "stage.ocr.completed", evt.Type)
		assert.Equal(t, "worker-1", evt.Source)
		assert.Equal(t, "corr-1", evt.CorrelationID)
	case <-time.After(time.Second):
		t.Fatal("expected event delivery")
	}
}

func TestPublishDoesNotDeliverToNonMatchingSubscriber(t *testing.T) {
	bus := events.New()
	sub := bus.Subscribe("stage.*.completed")
	defer sub.Unsubscribe()

	bus.Publish("stage.ocr.failed", "worker-1", []byte(`{}`), "")

	select {
	case <-sub.Events():
		t.Fatal("did not expect delivery for non-matching topic")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestGlobMatchesExactlyOneSegment(t *testing.T) {
	bus := events.New()
	sub := bus.Subscribe("stage.*.completed")
	defer sub.Unsubscribe()

	bus.Publish("stage.ocr.step.completed", "worker-1", []byte(`{}`), "")

	select {
	case <-sub.Events():
		t.Fatal("wildcard must not span multiple segments")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribeAllMatchesAnySegmentCount(t *testing.T) {
	bus := events.New()
	sub := bus.SubscribeAll()
	defer sub.Unsubscribe()

	bus.Publish("document.ingested", "core", []byte(`{}`), "")
	bus.Publish("stage.ocr.step.completed", "worker-1", []byte(`{}`), "")

	for i := 0; i < 2; i++ {
		select {
		case <-sub.Events():
		case <-time.After(time.Second):
			t.Fatal("expected event delivery")
		}
	}
}

func TestSequenceIsPerSourceMonotonic(t *testing.T) {
	bus := events.New()

	e1 := bus.Publish("document.ingested", "core", []byte(`{}`), "")
	e2 := bus.Publish("document.ingested", "core", []byte(`{}`), "")
	e3 := bus.Publish("document.ingested", "other", []byte(`{}`), "")

	assert.Equal(t, uint64(1), e1.Sequence)
	assert.Equal(t, uint64(2), e2.Sequence)
	assert.Equal(t, uint64(1), e3.Sequence)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := events.New()
	sub := bus.Subscribe("document.ingested")
	sub.Unsubscribe()

	_, ok := <-sub.Events()
	assert.False(t, ok)
}

type upperRedactor struct{}

func (upperRedactor) Redact(text string) string {
	return "[" + text + "]"
}

func TestPublishAppliesRedactorBeforeDelivery(t *testing.T) {
	bus := events.New()
	bus.SetRedactor(upperRedactor{})
	sub := bus.Subscribe("document.ingested")
	defer sub.Unsubscribe()

	bus.Publish("document.ingested", "core", []byte("raw"), "")

	select {
	case evt := <-sub.Events():
		assert.Equal(t, "[raw]", string(evt.Payload))
	case <-time.After(time.Second):
		t.Fatal("expected event delivery")
	}
}

func TestPublishWithNoRedactorLeavesPayloadUnchanged(t *testing.T) {
	bus := events.New()
	sub := bus.Subscribe("document.ingested")
	defer sub.Unsubscribe()

	bus.Publish("document.ingested", "core", []byte("raw"), "")

	select {
	case evt := <-sub.Events():
		assert.Equal(t, "raw", string(evt.Payload))
	case <-time.After(time.Second):
		t.Fatal("expected event delivery")
	}
}

func TestFullSubscriberQueueDropsOldest(t *testing.T) {
	bus := events.New()
	sub := bus.Subscribe("document.ingested")
	defer sub.Unsubscribe()

	const overflow = 300
	for i := 0; i < overflow; i++ {
		bus.Publish("document.ingested", "core", []byte(`{}`), "")
	}

	require.Greater(t, bus.DropCount(), int64(0))
}
