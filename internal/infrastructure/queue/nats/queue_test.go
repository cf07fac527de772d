package nats

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/calibration-tracker/internal/core/domain"
)

func TestClassifyNATSError(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"no servers", fmt.Errorf("nats publish: %w", nats.ErrNoServers), true},
		{"timeout", nats.ErrTimeout, true},
		{"circuit open", gobreaker.ErrOpenState, true},
		{"cancelled", context.Canceled, false},
		{"payload", nats.ErrMaxPayload, false},
	}
	for _, tc := range cases {
		if got := classifyNATSError(tc.err).Retryable; got != tc.retryable {
			t.Errorf("%s: retryable = %v, want %v", tc.name, got, tc.retryable)
		}
	}
}

func TestWrapTemporaryIfNeeded(t *testing.T) {
	if err := wrapTemporaryIfNeeded(nats.ErrDisconnected); !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
	if err := wrapTemporaryIfNeeded(nats.ErrMaxPayload); domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("permanent error must not be marked temporary: %v", err)
	}
	if err := wrapTemporaryIfNeeded(nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestDispatchDecodesBatchEvent(t *testing.T) {
	q := &Queue{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	var got domain.BatchEvent
	calls := 0
	handler := func(_ context.Context, event domain.BatchEvent) error {
		calls++
		got = event
		return errors.New("handler failure is logged, not returned")
	}

	q.dispatch(context.Background(), []byte(`{"batch_id":"b-1","kind":"certificates","tool_ids":["tool-1"]}`), handler)
	if calls != 1 || got.BatchID != "b-1" || len(got.ToolIDs) != 1 {
		t.Fatalf("unexpected dispatch: calls=%d event=%+v", calls, got)
	}

	q.dispatch(context.Background(), []byte(`not json`), handler)
	if calls != 1 {
		t.Fatalf("malformed payload must not reach the handler")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	q.dispatch(ctx, []byte(`{"batch_id":"b-2"}`), handler)
	if calls != 1 {
		t.Fatalf("cancelled context must not reach the handler")
	}
}
