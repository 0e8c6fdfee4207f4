package logsync

import (
	"errors"
	"io/fs"
	"strings"
	"testing"
	"time"
)

type fakeInfo struct {
	name string
	size int64
	dir  bool
}

func (f fakeInfo) Name() string       { return f.name }
func (f fakeInfo) Size() int64        { return f.size }
func (f fakeInfo) Mode() fs.FileMode  { return 0o644 }
func (f fakeInfo) ModTime() time.Time { return time.Time{} }
func (f fakeInfo) IsDir() bool        { return f.dir }
func (f fakeInfo) Sys() any           { return nil }

func infos(names ...string) []fs.FileInfo {
	out := make([]fs.FileInfo, len(names))
	for i, n := range names {
		out[i] = fakeInfo{name: n, size: int64(len(n))}
	}
	return out
}

func names(t *testing.T, f *Filter, in []fs.FileInfo) []string {
	t.Helper()
	var out []string
	for _, e := range f.Apply(in) {
		out = append(out, e.Name)
	}
	return out
}

func defaultFilter(t *testing.T) *Filter {
	t.Helper()
	f, err := NewFilter(nil, nil)
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	return f
}

func TestFilter_DropsDotfilesAndForeignExtensions(t *testing.T) {
	f := defaultFilter(t)
	got := names(t, f, infos("Log_01.wpilog", ".DS_Store", "notes.txt", "Log_02.rlog"))

	want := []string{"Log_02.rlog", "Log_01.wpilog"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("names = %v, want %v", got, want)
	}
}

func TestFilter_RandomizedLast(t *testing.T) {
	f := defaultFilter(t)
	in := infos(
		"TBD_2.wpilog",
		"akit_24-03-02_10-15-00.wpilog",
		"Log_0123456789abcdef.wpilog",
		".hidden.wpilog",
		"akit_24-03-02_11-00-00_q12.wpilog",
		"rio.hoot",
	)
	in = append(in, fakeInfo{name: "archive.wpilog", dir: true})

	got := names(t, f, in)
	want := []string{
		"rio.hoot",
		"akit_24-03-02_11-00-00_q12.wpilog",
		"akit_24-03-02_10-15-00.wpilog",
		"TBD_2.wpilog",
		"Log_0123456789abcdef.wpilog",
	}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("names = %v\nwant %v", got, want)
	}

	entries := f.Apply(in)
	if entries[0].Randomized || !entries[3].Randomized || !entries[4].Randomized {
		t.Errorf("randomized flags wrong: %+v", entries)
	}
}

func TestFilter_IsRandomized(t *testing.T) {
	f := defaultFilter(t)
	tests := []struct {
		name string
		want bool
	}{
		{"Log_TBD.wpilog", true},
		{"Log_0123456789abcdef.rlog", true},
		{"Log_0123456789ABCDEF0.rlog", true},
		{"Log_0123.rlog", false},
		{"akit_24-03-02_10-15-00.wpilog", false},
	}
	for _, tt := range tests {
		if got := f.IsRandomized(tt.name); got != tt.want {
			t.Errorf("IsRandomized(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestFilter_CustomExtensions(t *testing.T) {
	f, err := NewFilter([]string{"csv", ".WPILOG"}, []string{"^tmp"})
	if err != nil {
		t.Fatal(err)
	}
	if !f.Accept("data.csv") || !f.Accept("RUN.WPILOG") || f.Accept("x.rlog") {
		t.Error("custom extensions not applied")
	}
	if !f.IsRandomized("tmp_1.csv") || f.IsRandomized("TBD.csv") {
		t.Error("custom patterns not applied")
	}
}

func TestNewFilter_InvalidPattern(t *testing.T) {
	if _, err := NewFilter(nil, []string{"("}); err == nil {
		t.Error("expected error for invalid pattern")
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{errors.New("open /U/logs: file does not exist"), "Log folder not found. Check the configured path."},
		{errors.New("dial tcp: lookup roborio-1234-frc.local: no such host"), "Unable to resolve the robot address."},
		{errors.New("ssh: handshake failed: ssh: unable to authenticate"), "Authentication with the robot failed."},
		{errors.New("dial tcp 10.12.34.2:22: i/o timeout"), "Connection to the robot timed out."},
		{errors.New("unexpected EOF"), "Lost connection to the robot."},
		{errors.New("disk quota"), "Error: disk quota"},
	}
	for _, tt := range tests {
		if got := Describe(tt.err); got != tt.want {
			t.Errorf("Describe(%q) = %q, want %q", tt.err, got, tt.want)
		}
	}
	if Describe(nil) != "" {
		t.Error("Describe(nil) should be empty")
	}
}
