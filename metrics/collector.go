// Package metrics provides per-process counters for live sessions and log
// sync.
//
// The Collector is a leaf package with no internal dependencies. Failure
// kinds are recorded as strings to keep it free of the types package.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Live sessions
	SessionsStarted int64
	SessionsStopped int64
	SessionsFailed  int64
	FailuresByKind  map[string]int64
	FramesForwarded int64
	BytesReceived   int64
	HeartbeatsSent  int64

	// Log sync
	SyncConnects     int64
	SyncErrors       int64
	SyncRetries      int64
	Listings         int64
	FilesSaved       int64
	FilesSkipped     int64
	BytesTransferred int64

	// Archive
	ArchiveWriteSuccess int64
	ArchiveWriteFailure int64

	// Notify
	NotifyPublished int64
	NotifyFailed    int64

	// Dimensions (informational)
	Dimensions Dimensions
}

// Dimensions label a collector.
type Dimensions struct {
	Address        string
	StorageBackend string
	Notifier       string
}

// Collector accumulates counters.
// Thread-safe via sync.Mutex. All methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	sessionsStarted int64
	sessionsStopped int64
	sessionsFailed  int64
	failuresByKind  map[string]int64
	framesForwarded int64
	bytesReceived   int64
	heartbeatsSent  int64

	syncConnects     int64
	syncErrors       int64
	syncRetries      int64
	listings         int64
	filesSaved       int64
	filesSkipped     int64
	bytesTransferred int64

	archiveWriteSuccess int64
	archiveWriteFailure int64

	notifyPublished int64
	notifyFailed    int64

	dims Dimensions
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{failuresByKind: make(map[string]int64)}
}

// SetDimensions replaces the collector's labels.
func (c *Collector) SetDimensions(d Dimensions) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.dims = d
	c.mu.Unlock()
}

func (c *Collector) add(field *int64, n int64) {
	if c == nil || n == 0 {
		return
	}
	c.mu.Lock()
	*field += n
	c.mu.Unlock()
}

// --- Live sessions ---

// IncSessionStarted records a live session start request.
func (c *Collector) IncSessionStarted() {
	if c == nil {
		return
	}
	c.add(&c.sessionsStarted, 1)
}

// IncSessionStopped records an explicit stop of an active session.
func (c *Collector) IncSessionStopped() {
	if c == nil {
		return
	}
	c.add(&c.sessionsStopped, 1)
}

// IncSessionFailed records a reported live failure of the given kind.
func (c *Collector) IncSessionFailed(kind string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.sessionsFailed++
	c.failuresByKind[kind]++
	c.mu.Unlock()
}

// IncFrameForwarded records one frame delivered to a consumer.
func (c *Collector) IncFrameForwarded() {
	if c == nil {
		return
	}
	c.add(&c.framesForwarded, 1)
}

// AddBytesReceived records inbound chunk bytes before decoding.
func (c *Collector) AddBytesReceived(n int) {
	if c == nil {
		return
	}
	c.add(&c.bytesReceived, int64(n))
}

// IncHeartbeats records n heartbeat writes.
func (c *Collector) IncHeartbeats(n int) {
	if c == nil {
		return
	}
	c.add(&c.heartbeatsSent, int64(n))
}

// --- Log sync ---

// IncSyncConnect records an established sync connection.
func (c *Collector) IncSyncConnect() {
	if c == nil {
		return
	}
	c.add(&c.syncConnects, 1)
}

// IncSyncError records an error routed through the sync backoff path.
func (c *Collector) IncSyncError() {
	if c == nil {
		return
	}
	c.add(&c.syncErrors, 1)
}

// IncSyncRetry records a scheduled reconnect firing.
func (c *Collector) IncSyncRetry() {
	if c == nil {
		return
	}
	c.add(&c.syncRetries, 1)
}

// IncListing records a completed directory listing.
func (c *Collector) IncListing() {
	if c == nil {
		return
	}
	c.add(&c.listings, 1)
}

// AddSaved records a completed file save of size bytes.
func (c *Collector) AddSaved(size int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.filesSaved++
	c.bytesTransferred += size
	c.mu.Unlock()
}

// IncSkipped records a name skipped because it already exists locally.
func (c *Collector) IncSkipped() {
	if c == nil {
		return
	}
	c.add(&c.filesSkipped, 1)
}

// --- Archive ---

// IncArchiveWriteSuccess records a successful archive Put.
func (c *Collector) IncArchiveWriteSuccess() {
	if c == nil {
		return
	}
	c.add(&c.archiveWriteSuccess, 1)
}

// IncArchiveWriteFailure records a failed archive Put.
func (c *Collector) IncArchiveWriteFailure() {
	if c == nil {
		return
	}
	c.add(&c.archiveWriteFailure, 1)
}

// --- Notify ---

// IncNotifyPublished records a delivered notification.
func (c *Collector) IncNotifyPublished() {
	if c == nil {
		return
	}
	c.add(&c.notifyPublished, 1)
}

// IncNotifyFailed records a notification that exhausted its retries.
func (c *Collector) IncNotifyFailed() {
	if c == nil {
		return
	}
	c.add(&c.notifyFailed, 1)
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all counters.
// The returned Snapshot is safe to read concurrently; the Collector can
// continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	kinds := make(map[string]int64, len(c.failuresByKind))
	for k, v := range c.failuresByKind {
		kinds[k] = v
	}

	return Snapshot{
		SessionsStarted: c.sessionsStarted,
		SessionsStopped: c.sessionsStopped,
		SessionsFailed:  c.sessionsFailed,
		FailuresByKind:  kinds,
		FramesForwarded: c.framesForwarded,
		BytesReceived:   c.bytesReceived,
		HeartbeatsSent:  c.heartbeatsSent,

		SyncConnects:     c.syncConnects,
		SyncErrors:       c.syncErrors,
		SyncRetries:      c.syncRetries,
		Listings:         c.listings,
		FilesSaved:       c.filesSaved,
		FilesSkipped:     c.filesSkipped,
		BytesTransferred: c.bytesTransferred,

		ArchiveWriteSuccess: c.archiveWriteSuccess,
		ArchiveWriteFailure: c.archiveWriteFailure,

		NotifyPublished: c.notifyPublished,
		NotifyFailed:    c.notifyFailed,

		Dimensions: c.dims,
	}
}
