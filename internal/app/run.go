package app

import (
	"context"
	"fmt"
	"time"

	"github.com/vk/cubeproducts/internal/ctxlog"
	"github.com/vk/cubeproducts/internal/diag"
	"github.com/vk/cubeproducts/internal/handler"
	"github.com/vk/cubeproducts/internal/notify"
)

// Run executes the product loop over the loaded configuration.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.config.HealthcheckPort > 0 {
		if err := a.startHealthcheckServer(a.config.HealthcheckPort); err != nil {
			return fmt.Errorf("%w: %w", ErrStartup, err)
		}
		defer a.closeHealthcheckServer(context.WithoutCancel(ctx))
	}

	notifier := a.newNotifier(ctx)
	defer notifier.Close()

	sink := diag.NewSink(a.logger)
	h, err := handler.NewFromModel(a.model, sink, notifier, a.runID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStartup, err)
	}

	a.logger.Info("🚀 Starting product generation...")
	summary, err := h.Loop(ctx)
	a.logger.Info("🏁 Product generation finished.",
		"ok", summary.Count(handler.StatusOK),
		"failed", summary.Count(handler.StatusFailed),
		"planned", summary.Count(handler.StatusPlanned),
		"warnings", sink.Count(diag.Warn),
	)
	if err != nil {
		return fmt.Errorf("product generation failed: %w", err)
	}

	a.logger.Debug("App.Run method finished.")
	return nil
}

// newNotifier connects to the progress monitor when one is configured. A
// monitor that cannot be reached only costs the progress events.
func (a *App) newNotifier(ctx context.Context) notify.Notifier {
	n := a.model.Notify
	if n == nil {
		return notify.Noop{}
	}
	timeout, _ := time.ParseDuration(n.Timeout)
	client, err := notify.Dial(ctx, notify.Options{
		URL:                n.URL,
		Namespace:          n.Namespace,
		Event:              n.Event,
		Timeout:            timeout,
		InsecureSkipVerify: n.InsecureSkipVerify,
	})
	if err != nil {
		a.logger.Warn("Progress notifications disabled.", "url", n.URL, "error", err)
		return notify.Noop{}
	}
	return client
}
