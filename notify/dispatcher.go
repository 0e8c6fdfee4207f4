package notify

import (
	"context"
	"sync"

	"github.com/pithecene-io/tlink/log"
	"github.com/pithecene-io/tlink/metrics"
)

// DefaultQueueSize is the number of events buffered before Send drops.
const DefaultQueueSize = 64

// Dispatcher publishes events from a single background goroutine.
// Send never blocks; events beyond the queue capacity are dropped.
type Dispatcher struct {
	publisher Publisher
	logger    *log.Logger
	metrics   *metrics.Collector

	queue  chan *Event
	done   chan struct{}
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// NewDispatcher starts a dispatcher over publisher.
func NewDispatcher(publisher Publisher, logger *log.Logger, m *metrics.Collector, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		publisher: publisher,
		logger:    logger,
		metrics:   m,
		queue:     make(chan *Event, queueSize),
		done:      make(chan struct{}),
		cancel:    cancel,
	}
	go d.run(ctx)
	return d
}

// Send enqueues event. Returns false if the dispatcher is closed or full.
func (d *Dispatcher) Send(event *Event) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false
	}
	select {
	case d.queue <- event:
		return true
	default:
		d.metrics.IncNotifyFailed()
		d.logger.Warn("notify queue full, dropping event", map[string]any{
			"event_type": event.EventType,
			"event_id":   event.EventID,
		})
		return false
	}
}

func (d *Dispatcher) run(ctx context.Context) {
	defer close(d.done)
	for event := range d.queue {
		if err := d.publisher.Publish(ctx, event); err != nil {
			d.metrics.IncNotifyFailed()
			d.logger.Warn("notify publish failed", map[string]any{
				"event_type": event.EventType,
				"event_id":   event.EventID,
				"error":      err.Error(),
			})
			continue
		}
		d.metrics.IncNotifyPublished()
	}
}

// Close stops accepting events, waits for queued events to drain or ctx
// to end, then closes the publisher.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	select {
	case <-d.done:
	case <-ctx.Done():
		d.cancel()
		<-d.done
	}
	d.cancel()
	return d.publisher.Close()
}
