package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/pithecene-io/tlink/archive"
	"github.com/pithecene-io/tlink/cli/config"
	"github.com/pithecene-io/tlink/metrics"
	"github.com/pithecene-io/tlink/notify"
	"github.com/pithecene-io/tlink/notify/redis"
	"github.com/pithecene-io/tlink/notify/webhook"
)

// newPublisher builds the configured publisher, or nil when notifications
// are disabled.
func newPublisher(cfg config.NotifyConfig) (notify.Publisher, error) {
	switch cfg.Type {
	case "":
		return nil, nil
	case config.NotifyRedis:
		rc := redis.Config{
			URL:     cfg.URL,
			Channel: cfg.Channel,
			Timeout: cfg.Timeout.Duration,
			Retries: redis.DefaultRetries,
		}
		if cfg.Retries != nil {
			rc.Retries = *cfg.Retries
		}
		return redis.New(rc)
	case config.NotifyWebhook:
		wc := webhook.Config{
			URL:     cfg.URL,
			Headers: cfg.Headers,
			Timeout: cfg.Timeout.Duration,
			Retries: webhook.DefaultRetries,
		}
		if cfg.Retries != nil {
			wc.Retries = *cfg.Retries
		}
		return webhook.New(wc)
	default:
		return nil, fmt.Errorf("unknown notify type %q", cfg.Type)
	}
}

// newDispatcher starts a dispatcher for the configured publisher, or
// returns nil when notifications are disabled.
func (rt *runtime) newDispatcher() (*notify.Dispatcher, error) {
	pub, err := newPublisher(rt.cfg.Notify)
	if err != nil || pub == nil {
		return nil, err
	}
	return notify.NewDispatcher(pub, rt.logger.Named("notify"), rt.metrics, 0), nil
}

// newArchiver builds the configured archiver, or nil when archiving is
// disabled.
func (rt *runtime) newArchiver(ctx context.Context) (*archive.Archiver, error) {
	if !rt.cfg.Archive.Enabled() {
		return nil, nil
	}
	return archive.New(ctx, rt.cfg.Archive.Archive(), rt.metrics)
}

// setDimensions labels the metrics snapshot for address.
func (rt *runtime) setDimensions(address string) {
	rt.metrics.SetDimensions(metrics.Dimensions{
		Address:        address,
		StorageBackend: rt.cfg.Archive.Backend,
		Notifier:       rt.cfg.Notify.Type,
	})
}

// closeDispatcher drains d with a bounded wait.
func closeDispatcher(d *notify.Dispatcher) {
	if d == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = d.Close(ctx)
}
