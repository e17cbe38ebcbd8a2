package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/chantier/backend/internal/domain/project"
	"github.com/chantier/backend/internal/domain/shared"
	"github.com/chantier/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

// testHandler records the events it receives
type testHandler struct {
	eventTypes []string
	handled    []shared.DomainEvent
	err        error
	panicWith  any
	mu         sync.Mutex
}

func newTestHandler(eventTypes ...string) *testHandler {
	return &testHandler{eventTypes: eventTypes}
}

func (h *testHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, event)
	if h.panicWith != nil {
		panic(h.panicWith)
	}
	return h.err
}

func (h *testHandler) EventTypes() []string {
	return h.eventTypes
}

func (h *testHandler) getHandled() []shared.DomainEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]shared.DomainEvent(nil), h.handled...)
}

func newExpenseEvent(t *testing.T) *project.ExpenseRecordedEvent {
	t.Helper()
	e, err := project.NewExpense(uuid.New(), valueobject.MustMoney("120.50"), time.Now(), "Placo")
	require.NoError(t, err)
	return project.NewExpenseRecordedEvent(e)
}

func TestInMemoryEventBus_Publish(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	handler := newTestHandler(project.EventTypeExpenseRecorded)
	bus.Subscribe(handler)

	event := newExpenseEvent(t)
	require.NoError(t, bus.Publish(context.Background(), event))

	require.Len(t, handler.getHandled(), 1)
	assert.Equal(t, event, handler.getHandled()[0])

	published, failed := bus.Stats()
	assert.Equal(t, int64(1), published)
	assert.Zero(t, failed)
}

func TestInMemoryEventBus_Publish_MultipleHandlersAndWildcard(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	typed := newTestHandler(project.EventTypeExpenseRecorded)
	other := newTestHandler(project.EventTypePaymentRecorded)
	wildcard := newTestHandler()
	bus.Subscribe(typed)
	bus.Subscribe(other)
	bus.Subscribe(wildcard)

	require.NoError(t, bus.Publish(context.Background(), newExpenseEvent(t), newExpenseEvent(t)))

	assert.Len(t, typed.getHandled(), 2)
	assert.Empty(t, other.getHandled())
	assert.Len(t, wildcard.getHandled(), 2)
}

func TestInMemoryEventBus_Publish_FailuresDoNotStopDelivery(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	failing := newTestHandler(project.EventTypeExpenseRecorded)
	failing.err = errors.New("handler error")
	panicking := newTestHandler(project.EventTypeExpenseRecorded)
	panicking.panicWith = "boom"
	healthy := newTestHandler(project.EventTypeExpenseRecorded)
	bus.Subscribe(failing)
	bus.Subscribe(panicking)
	bus.Subscribe(healthy)

	require.NoError(t, bus.Publish(context.Background(), newExpenseEvent(t)))

	assert.Len(t, healthy.getHandled(), 1)
	_, failed := bus.Stats()
	assert.Equal(t, int64(2), failed)
}

func TestInMemoryEventBus_Publish_SkipsNil(t *testing.T) {
	bus := NewInMemoryEventBus(nil)
	wildcard := newTestHandler()
	bus.Subscribe(wildcard)

	require.NoError(t, bus.Publish(context.Background(), nil))
	assert.Empty(t, wildcard.getHandled())
}

func TestInMemoryEventBus_Unsubscribe(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	handler := newTestHandler(project.EventTypeExpenseRecorded)
	bus.Subscribe(handler)
	_ = bus.Publish(context.Background(), newExpenseEvent(t))

	bus.Unsubscribe(handler)
	_ = bus.Publish(context.Background(), newExpenseEvent(t))

	assert.Len(t, handler.getHandled(), 1)
}

func TestInMemoryEventBus_StartStop(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	ctx := context.Background()

	require.NoError(t, bus.Start(ctx))
	assert.True(t, bus.IsRunning())

	require.NoError(t, bus.Stop(ctx))
	assert.False(t, bus.IsRunning())
}

func TestInMemoryEventBus_RecordsHandlerSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	bus := NewInMemoryEventBus(zap.NewNop())
	failing := newTestHandler(project.EventTypeExpenseRecorded)
	failing.err = errors.New("nope")
	bus.Subscribe(failing)

	require.NoError(t, bus.Publish(context.Background(), newExpenseEvent(t)))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "event.handle ExpenseRecorded", spans[0].Name())
	assert.Equal(t, "Error", spans[0].Status().Code.String())
}
