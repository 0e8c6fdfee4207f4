package logsync

import (
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strings"

	"github.com/pithecene-io/tlink/types"
)

// DefaultExtensions are the accepted log file extensions.
var DefaultExtensions = []string{".wpilog", ".rlog", ".hoot"}

// DefaultRandomizedPatterns match names a robot assigns before it knows the
// match or wall-clock time.
var DefaultRandomizedPatterns = []string{
	`TBD`,
	`Log_[0-9a-fA-F]{16,}`,
}

// Filter selects and orders log files from a directory listing.
type Filter struct {
	extensions []string
	randomized []*regexp.Regexp
}

// NewFilter compiles a filter. Empty arguments select the defaults.
func NewFilter(extensions, randomizedPatterns []string) (*Filter, error) {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	if len(randomizedPatterns) == 0 {
		randomizedPatterns = DefaultRandomizedPatterns
	}

	f := &Filter{}
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		f.extensions = append(f.extensions, ext)
	}
	for _, p := range randomizedPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid randomized pattern %q: %w", p, err)
		}
		f.randomized = append(f.randomized, re)
	}
	return f, nil
}

// Accept reports whether name is a visible log file.
func (f *Filter) Accept(name string) bool {
	if name == "" || strings.HasPrefix(name, ".") {
		return false
	}
	lower := strings.ToLower(name)
	for _, ext := range f.extensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// IsRandomized reports whether name carries a placeholder rather than a
// meaningful timestamp.
func (f *Filter) IsRandomized(name string) bool {
	for _, re := range f.randomized {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// Apply filters a listing and orders it: named files first by descending
// name, then randomized files by descending name. Directories are dropped.
func (f *Filter) Apply(infos []fs.FileInfo) []types.RemoteFileEntry {
	entries := make([]types.RemoteFileEntry, 0, len(infos))
	for _, info := range infos {
		if info.IsDir() || !f.Accept(info.Name()) {
			continue
		}
		entries = append(entries, types.RemoteFileEntry{
			Name:       info.Name(),
			Size:       info.Size(),
			Randomized: f.IsRandomized(info.Name()),
		})
	}
	SortEntries(entries)
	return entries
}

// SortEntries orders entries in place: non-randomized before randomized,
// each group by descending name.
func SortEntries(entries []types.RemoteFileEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Randomized != b.Randomized {
			return !a.Randomized
		}
		return a.Name > b.Name
	})
}
