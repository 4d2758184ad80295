package diag

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSinkRecordsAndLogs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	sink := NewSink(logger)
	ctx := context.Background()

	scope := Scope{Target: "ngc4321", Config: "12m+7m", Product: "co21", ResTag: "10p72"}
	sink.Warnf(ctx, scope, "cube with tag %s was not found", "10p72")
	sink.Errorf(ctx, Scope{Target: "ngc4321"}, errors.New("boom"), "triple failed")
	sink.Infof(ctx, Scope{}, "done")

	require.Len(t, sink.Entries(), 3)
	warns := sink.Filter(Warn)
	require.Len(t, warns, 1)
	assert.Equal(t, scope, warns[0].Scope)
	assert.Equal(t, 1, sink.Count(Error))

	out := buf.String()
	assert.True(t, strings.Contains(out, "level=WARN"))
	assert.True(t, strings.Contains(out, "res_tag=10p72"))
	assert.True(t, strings.Contains(out, "error=boom"))
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "warn", Warn.String())
	assert.Equal(t, "Level(9)", Level(9).String())
}

func TestNilLoggerIsDiscarded(t *testing.T) {
	sink := NewSink(nil)
	sink.Infof(context.Background(), Scope{}, "quiet")
	assert.Equal(t, 1, sink.Count(Info))
}
