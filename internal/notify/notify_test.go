package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventPayload(t *testing.T) {
	e := Event{
		Name:     TripleFinished,
		RunID:    "run-1",
		Target:   "ngc0628",
		Product:  "co21",
		Config:   "12m+7m",
		Status:   "ok",
		Outputs:  30,
		Duration: 1500 * time.Millisecond,
	}
	want := map[string]any{
		"name":        TripleFinished,
		"run_id":      "run-1",
		"target":      "ngc0628",
		"product":     "co21",
		"config":      "12m+7m",
		"status":      "ok",
		"outputs":     30,
		"duration_ms": int64(1500),
	}
	if diff := cmp.Diff(want, e.Payload()); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, map[string]any{"name": RunFinished}, Event{Name: RunFinished}.Payload())
}

func TestNoop(t *testing.T) {
	var n Notifier = Noop{}
	n.Notify(context.Background(), Event{Name: TripleStarted})
	require.NoError(t, n.Close())
}

func TestDial_RejectsBadURL(t *testing.T) {
	_, err := Dial(context.Background(), Options{URL: "localhost"})
	require.ErrorContains(t, err, "scheme and host")

	_, err = Dial(context.Background(), Options{URL: "http://[::1"})
	require.ErrorContains(t, err, "failed to parse URL")
}

func TestOutcome_LateReportsDoNotBlock(t *testing.T) {
	o := newOutcome()
	first := errors.New("connect_error")
	o.report(first)

	done := make(chan struct{})
	go func() {
		o.report(nil)
		o.report(errors.New("again"))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("report blocked after the first outcome")
	}

	require.ErrorIs(t, <-o, first)
	select {
	case err := <-o:
		t.Fatalf("unexpected second outcome: %v", err)
	default:
	}
}
