package archive

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/tlink/metrics"
)

// failingStore is a lode.Store that returns configurable errors.
type failingStore struct {
	putErr    error
	existsErr error
	listErr   error
	exists    bool

	putCalls int
	putPaths []string
}

func (s *failingStore) Put(_ context.Context, path string, _ io.Reader) error {
	s.putCalls++
	s.putPaths = append(s.putPaths, path)
	return s.putErr
}

func (s *failingStore) Get(_ context.Context, _ string) (io.ReadCloser, error) {
	return nil, errors.New("not implemented")
}

func (s *failingStore) Exists(_ context.Context, _ string) (bool, error) {
	return s.exists, s.existsErr
}

func (s *failingStore) List(_ context.Context, _ string) ([]string, error) {
	return nil, s.listErr
}

func (s *failingStore) Delete(_ context.Context, _ string) error {
	return nil
}

func (s *failingStore) ReadRange(_ context.Context, _ string, _, _ int64) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func (s *failingStore) ReaderAt(_ context.Context, _ string) (io.ReaderAt, error) {
	return nil, errors.New("not implemented")
}

var _ lode.Store = (*failingStore)(nil)

func storeFactory(store lode.Store) lode.StoreFactory {
	return func() (lode.Store, error) {
		return store, nil
	}
}

func writeLog(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

var day = time.Date(2026, 3, 14, 22, 5, 0, 0, time.UTC)

func TestKey(t *testing.T) {
	tests := []struct {
		robot string
		name  string
		want  string
	}{
		{"10.0.0.2", "Log_01.wpilog", "logs/robot=10.0.0.2/day=2026-03-14/Log_01.wpilog"},
		{"roborio-254-frc.local", "/tmp/x/a.rlog", "logs/robot=roborio-254-frc.local/day=2026-03-14/a.rlog"},
		{"[::1]:22", "a.hoot", "logs/robot=[__1]_22/day=2026-03-14/a.hoot"},
		{"", "a.hoot", "logs/robot=unknown/day=2026-03-14/a.hoot"},
	}
	for _, tt := range tests {
		if got := Key(tt.robot, day, tt.name); got != tt.want {
			t.Errorf("Key(%q, %q) = %q, want %q", tt.robot, tt.name, got, tt.want)
		}
	}
}

func TestArchive_WritesOnce(t *testing.T) {
	m := metrics.NewCollector()
	a := NewWithFactory(lode.NewMemoryFactory(), m)
	local := writeLog(t, "Log_01.wpilog", "telemetry")
	ctx := context.Background()

	key, written, err := a.Archive(ctx, "10.0.0.2", local, day)
	if err != nil {
		t.Fatalf("Archive failed: %v", err)
	}
	if !written {
		t.Error("first Archive should write")
	}
	if key != "logs/robot=10.0.0.2/day=2026-03-14/Log_01.wpilog" {
		t.Errorf("key = %q", key)
	}

	_, written, err = a.Archive(ctx, "10.0.0.2", local, day)
	if err != nil {
		t.Fatalf("second Archive failed: %v", err)
	}
	if written {
		t.Error("second Archive of the same key should be a no-op")
	}

	keys, err := a.List(ctx, "10.0.0.2")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(keys) != 1 || keys[0] != key {
		t.Errorf("List = %v, want [%s]", keys, key)
	}

	snap := m.Snapshot()
	if snap.ArchiveWriteSuccess != 1 {
		t.Errorf("ArchiveWriteSuccess = %d, want 1", snap.ArchiveWriteSuccess)
	}
	if snap.ArchiveWriteFailure != 0 {
		t.Errorf("ArchiveWriteFailure = %d, want 0", snap.ArchiveWriteFailure)
	}
}

func TestArchive_FSBackend(t *testing.T) {
	root := t.TempDir()
	a, err := New(context.Background(), Config{Backend: BackendFS, Path: root}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	local := writeLog(t, "Log_02.rlog", "rlog-bytes")

	key, _, err := a.Archive(context.Background(), "10.0.0.2", local, day)
	if err != nil {
		t.Fatalf("Archive failed: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(key)))
	if err != nil {
		t.Fatalf("archived object missing: %v", err)
	}
	if string(data) != "rlog-bytes" {
		t.Errorf("archived content = %q, want rlog-bytes", data)
	}
}

func TestArchive_PutFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"disk full", syscall.ENOSPC, ErrDiskFull},
		{"permission", os.ErrPermission, ErrPermissionDenied},
		{"throttled", errors.New("SlowDown: please reduce your request rate"), ErrThrottled},
		{"credentials", errors.New("NoCredentialProviders: no valid providers"), ErrAuth},
		{"network", errors.New("dial tcp 10.0.0.9:443: connection refused"), ErrNetwork},
		{"unknown", errors.New("boom"), ErrUnclassified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &failingStore{putErr: tt.err}
			m := metrics.NewCollector()
			a := NewWithFactory(storeFactory(store), m)

			_, written, err := a.Archive(context.Background(), "r", writeLog(t, "a.hoot", "x"), day)
			if err == nil {
				t.Fatal("expected error")
			}
			if written {
				t.Error("written = true on failure")
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("errors.Is(%v, %v) = false", err, tt.want)
			}
			if !errors.Is(err, tt.err) {
				t.Error("underlying error should remain in the chain")
			}
			var se *StorageError
			if !errors.As(err, &se) || se.Op != "put" {
				t.Errorf("err = %#v, want StorageError with Op put", err)
			}
			if store.putCalls != 1 {
				t.Errorf("putCalls = %d, want 1", store.putCalls)
			}
			if m.Snapshot().ArchiveWriteFailure != 1 {
				t.Errorf("ArchiveWriteFailure = %d, want 1", m.Snapshot().ArchiveWriteFailure)
			}
		})
	}
}

func TestArchive_ExistsSkipsPut(t *testing.T) {
	store := &failingStore{exists: true}
	a := NewWithFactory(storeFactory(store), nil)

	_, written, err := a.Archive(context.Background(), "r", "/does/not/matter.wpilog", day)
	if err != nil {
		t.Fatalf("Archive failed: %v", err)
	}
	if written || store.putCalls != 0 {
		t.Errorf("written = %v, putCalls = %d; want no write", written, store.putCalls)
	}
}

func TestArchive_MissingLocalFile(t *testing.T) {
	a := NewWithFactory(lode.NewMemoryFactory(), nil)
	_, _, err := a.Archive(context.Background(), "r", filepath.Join(t.TempDir(), "gone.wpilog"), day)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestArchive_FactoryFailure(t *testing.T) {
	boom := errors.New("bucket unreachable: dial tcp: connection refused")
	calls := 0
	a := NewWithFactory(func() (lode.Store, error) {
		calls++
		return nil, boom
	}, nil)

	for range 2 {
		_, _, err := a.Archive(context.Background(), "r", "x.wpilog", day)
		if !errors.Is(err, ErrNetwork) {
			t.Errorf("err = %v, want ErrNetwork", err)
		}
	}
	if calls != 1 {
		t.Errorf("factory called %d times, want 1", calls)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"fs ok", Config{Backend: BackendFS, Path: "/tmp/a"}, ""},
		{"s3 ok", Config{Backend: BackendS3, Path: "bucket/prefix"}, ""},
		{"bad backend", Config{Backend: "gcs", Path: "x"}, "invalid archive backend"},
		{"no path", Config{Backend: BackendFS}, "path is required"},
		{"no bucket", Config{Backend: BackendS3, Path: "/prefix"}, "bucket is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseS3Path(t *testing.T) {
	tests := []struct {
		in, bucket, prefix string
	}{
		{"bucket", "bucket", ""},
		{"bucket/a/b", "bucket", "a/b"},
	}
	for _, tt := range tests {
		b, p := ParseS3Path(tt.in)
		if b != tt.bucket || p != tt.prefix {
			t.Errorf("ParseS3Path(%q) = (%q, %q), want (%q, %q)", tt.in, b, p, tt.bucket, tt.prefix)
		}
	}
}
