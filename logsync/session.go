// Package logsync keeps a persistent SFTP session to a robot, lists its log
// directory on a fixed period and saves selected files locally.
//
// Any failure while connecting, listing or transferring is handled the same
// way: the consumer is alerted with the raw error, the connection is torn
// down and exactly one reconnect is scheduled after a fixed delay. The
// session keeps retrying until Stop.
//
// Session methods must be called on the event loop. Remote calls run on
// worker goroutines and post their results back, tagged with the connection
// generation so results from a torn-down connection are dropped.
package logsync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/pithecene-io/tlink/log"
	"github.com/pithecene-io/tlink/loop"
	"github.com/pithecene-io/tlink/metrics"
	"github.com/pithecene-io/tlink/types"
)

// Default timings.
const (
	DefaultConnectTimeout  = 3 * time.Second
	DefaultRefreshInterval = 5 * time.Second
	DefaultRetryDelay      = time.Second
)

// State is the session's connection state.
type State int

// Session states.
const (
	StateIdle State = iota
	StateConnecting
	StateListing
	StateTransferring
	StateBackoff
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateListing:
		return "listing"
	case StateTransferring:
		return "transferring"
	case StateBackoff:
		return "backoff"
	default:
		return "unknown"
	}
}

// Consumer receives session notifications on the loop.
type Consumer interface {
	// Listing delivers each filtered, ordered directory listing.
	Listing(entries []types.RemoteFileEntry)
	// Alert reports an error handled by the backoff path.
	Alert(err error)
	// Progress reports transfer progress of the running save.
	Progress(p types.Progress)
	// Saved reports one completed file.
	Saved(f types.SavedFile)
	// Summary reports the outcome of a multi-file save.
	Summary(s types.SaveSummary)
}

// Config configures a Session.
type Config struct {
	ConnectTimeout  time.Duration
	RefreshInterval time.Duration
	RetryDelay      time.Duration
	Filter          *Filter
	Logger          *log.Logger
	Metrics         *metrics.Collector
}

// Session is a persistent log sync session.
type Session struct {
	cfg      Config
	loop     *loop.Loop
	dialer   Dialer
	consumer Consumer
	logger   *log.Logger
	metrics  *metrics.Collector

	address string
	dir     string

	state  State
	gen    uint64
	remote Remote
	ctx    context.Context
	cancel context.CancelFunc

	listTimer  *loop.Timer
	retryTimer *loop.Timer
	listing    bool

	sizes map[string]int64
	job   *transferJob
}

// New creates an idle session.
func New(cfg Config, l *loop.Loop, dialer Dialer, consumer Consumer) (*Session, error) {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = DefaultRefreshInterval
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.Filter == nil {
		f, err := NewFilter(nil, nil)
		if err != nil {
			return nil, err
		}
		cfg.Filter = f
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	return &Session{
		cfg:      cfg,
		loop:     l,
		dialer:   dialer,
		consumer: consumer,
		logger:   logger,
		metrics:  cfg.Metrics,
		sizes:    make(map[string]int64),
	}, nil
}

// State returns the current state.
func (s *Session) State() State {
	return s.state
}

// CachedSize returns the size of name from the latest listing.
func (s *Session) CachedSize(name string) (int64, bool) {
	size, ok := s.sizes[name]
	return size, ok
}

// Start connects to address and begins listing dir, replacing any existing
// connection.
func (s *Session) Start(address, dir string) {
	s.teardown()
	s.address = address
	s.dir = dir
	s.connect()
}

// Stop ends the connection and cancels both timers. Idempotent.
func (s *Session) Stop() {
	if s.state == StateIdle {
		return
	}
	s.teardown()
	s.state = StateIdle
	s.logger.Info("sync stopped", map[string]any{"address": s.address})
}

// teardown cancels timers, ends the connection, clears the size cache and
// drops any running job. In-flight results are invalidated.
func (s *Session) teardown() {
	s.listTimer.Stop()
	s.listTimer = nil
	s.retryTimer.Stop()
	s.retryTimer = nil

	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.remote != nil {
		_ = s.remote.Close()
		s.remote = nil
	}
	s.listing = false
	s.job = nil
	clear(s.sizes)
}

// post runs fn on the loop if the connection generation is still gen.
func (s *Session) post(gen uint64, fn func()) {
	s.loop.Post(func() {
		if gen != s.gen {
			return
		}
		fn()
	})
}

func (s *Session) connect() {
	s.state = StateConnecting
	s.ctx, s.cancel = context.WithCancel(context.Background())
	gen := s.gen
	ctx, address := s.ctx, s.address

	s.logger.Info("sync connecting", map[string]any{"address": address, "path": s.dir})

	go func() {
		dialCtx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
		defer cancel()
		remote, err := s.dialer.Dial(dialCtx, address)
		if !s.loop.Post(func() { s.connected(gen, remote, err) }) && remote != nil {
			_ = remote.Close()
		}
	}()
}

func (s *Session) connected(gen uint64, remote Remote, err error) {
	if gen != s.gen {
		if remote != nil {
			_ = remote.Close()
		}
		return
	}
	if err != nil {
		if !errors.Is(err, types.ErrConnect) {
			err = types.NewLinkError(types.ErrConnect, "connect", s.address, err)
		}
		s.fail(err)
		return
	}

	s.remote = remote
	s.state = StateListing
	s.metrics.IncSyncConnect()
	s.logger.Info("sync connected", map[string]any{"address": s.address})

	s.list()
	s.listTimer = s.loop.Every(s.cfg.RefreshInterval, s.tick)
}

// tick lists unless a listing is in flight or a save is running.
func (s *Session) tick() {
	if s.listing || s.state != StateListing {
		return
	}
	s.list()
}

func (s *Session) list() {
	s.listing = true
	gen, ctx, remote, dir := s.gen, s.ctx, s.remote, s.dir
	go func() {
		infos, err := remote.ReadDir(ctx, dir)
		s.post(gen, func() {
			s.listing = false
			if err != nil {
				if !errors.Is(err, types.ErrConnect) {
					err = types.NewLinkError(types.ErrConnect, "list", dir, err)
				}
				s.fail(err)
				return
			}
			entries := s.cfg.Filter.Apply(infos)
			sizes := make(map[string]int64, len(entries))
			for _, e := range entries {
				sizes[e.Name] = e.Size
			}
			s.sizes = sizes
			s.metrics.IncListing()
			s.consumer.Listing(entries)
		})
	}()
}

// fail is the uniform error handler: alert, tear down, schedule one retry.
func (s *Session) fail(err error) {
	s.metrics.IncSyncError()
	s.logger.Warn("sync failed", map[string]any{
		"address": s.address,
		"state":   s.state.String(),
		"error":   err.Error(),
	})
	s.consumer.Alert(err)

	s.teardown()
	s.state = StateBackoff
	s.retryTimer = s.loop.AfterFunc(s.cfg.RetryDelay, s.retry)
}

func (s *Session) retry() {
	s.retryTimer = nil
	s.metrics.IncSyncRetry()
	s.Start(s.address, s.dir)
}

// Save downloads names from the listed directory.
//
// With one name, destination is the target file path. With several,
// destination is a directory; names that already exist there are skipped
// and one summary is emitted when every name is skipped or saved. A
// transfer or local file-system failure aborts the whole batch through the
// backoff path.
func (s *Session) Save(names []string, destination string) error {
	switch {
	case len(names) == 0:
		return ErrNoFiles
	case s.job != nil:
		return ErrBusy
	case s.state != StateListing || s.remote == nil:
		return ErrNotReady
	}

	job := newTransferJob(names, destination, len(names) == 1)
	for i, name := range job.names {
		job.totals[i] = s.sizes[name]
	}

	if job.single {
		job.locals[0] = destination
	} else {
		for i, name := range job.names {
			local := filepath.Join(destination, filepath.Base(name))
			job.locals[i] = local
			_, err := os.Stat(local)
			switch {
			case err == nil:
				job.skip(i)
				s.metrics.IncSkipped()
			case errors.Is(err, os.ErrNotExist):
			default:
				s.fail(types.NewLinkError(types.ErrFileSystem, "stat", local, err))
				return nil
			}
		}
	}

	s.logger.Info("save started", map[string]any{
		"files":   len(job.names),
		"skipped": job.skippedCount,
		"bytes":   job.total(),
	})

	if job.finished() {
		s.consumer.Summary(job.summary())
		return nil
	}

	s.job = job
	s.state = StateTransferring
	s.consumer.Progress(job.progress())
	for i := range job.names {
		if !job.skipped[i] && !s.transfer(job, i) {
			break
		}
	}
	return nil
}

// transfer downloads one name into a temporary file next to its target.
// The file is renamed into place on the loop only while the job is still
// current, so a download from a torn-down connection never touches the
// target path. Returns false if the batch was aborted.
func (s *Session) transfer(job *transferJob, i int) bool {
	gen, ctx, remote := s.gen, s.ctx, s.remote
	remotePath := path.Join(s.dir, job.names[i])
	local := job.locals[i]

	tmp, err := tempPath(local)
	if err != nil {
		s.fail(types.NewLinkError(types.ErrFileSystem, "create", local, err))
		return false
	}

	go func() {
		err := remote.Get(ctx, remotePath, tmp, func(n int64) {
			s.post(gen, func() {
				if s.job != job || job.done[i] {
					return
				}
				job.transferred[i] = n
				s.consumer.Progress(job.progress())
			})
		})
		posted := s.loop.Post(func() {
			if gen != s.gen || s.job != job {
				_ = os.Remove(tmp)
				return
			}
			if err == nil {
				if rerr := os.Rename(tmp, local); rerr != nil {
					err = types.NewLinkError(types.ErrFileSystem, "rename", local, rerr)
				}
			}
			if err != nil {
				_ = os.Remove(tmp)
				if !errors.Is(err, types.ErrTransfer) && !errors.Is(err, types.ErrFileSystem) {
					err = types.NewLinkError(types.ErrTransfer, "get", remotePath, err)
				}
				s.fail(err)
				return
			}
			s.transferred(job, i)
		})
		if !posted {
			_ = os.Remove(tmp)
		}
	}()
	return true
}

// tempPath reserves a hidden partial-download file beside local.
func tempPath(local string) (string, error) {
	f, err := os.CreateTemp(filepath.Dir(local), "."+filepath.Base(local)+".*.part")
	if err != nil {
		return "", err
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		_ = os.Remove(name)
		return "", err
	}
	return name, nil
}

func (s *Session) transferred(job *transferJob, i int) {
	job.complete(i)
	size := job.totals[i]
	if info, err := os.Stat(job.locals[i]); err == nil {
		size = info.Size()
	}
	s.metrics.AddSaved(size)
	s.consumer.Progress(job.progress())
	s.consumer.Saved(types.SavedFile{
		Name: job.names[i],
		Path: job.locals[i],
		Size: size,
		Open: job.single,
	})

	if !job.finished() {
		return
	}
	s.job = nil
	s.state = StateListing
	if !job.single {
		summary := job.summary()
		s.logger.Info("save finished", map[string]any{
			"saved":   summary.Saved,
			"skipped": summary.Skipped,
		})
		s.consumer.Summary(summary)
	}
}

// String describes the session for logs.
func (s *Session) String() string {
	return fmt.Sprintf("sync %s:%s (%s)", s.address, s.dir, s.state)
}
