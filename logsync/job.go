package logsync

import "github.com/pithecene-io/tlink/types"

// transferJob tracks one Save request.
type transferJob struct {
	single      bool
	destination string
	names       []string
	locals      []string
	totals      []int64
	transferred []int64
	skipped     []bool
	done        []bool

	skippedCount   int
	completedCount int
}

// newTransferJob creates a job for names. Repeated names are requested once.
func newTransferJob(names []string, destination string, single bool) *transferJob {
	seen := make(map[string]bool, len(names))
	unique := make([]string, 0, len(names))
	for _, name := range names {
		if !seen[name] {
			seen[name] = true
			unique = append(unique, name)
		}
	}
	n := len(unique)
	return &transferJob{
		single:      single,
		destination: destination,
		names:       unique,
		locals:      make([]string, n),
		totals:      make([]int64, n),
		transferred: make([]int64, n),
		skipped:     make([]bool, n),
		done:        make([]bool, n),
	}
}

func (j *transferJob) skip(i int) {
	j.skipped[i] = true
	j.skippedCount++
}

func (j *transferJob) complete(i int) {
	if j.done[i] {
		return
	}
	j.done[i] = true
	j.transferred[i] = j.totals[i]
	j.completedCount++
}

// finished reports whether every name is skipped or completed.
func (j *transferJob) finished() bool {
	return j.skippedCount+j.completedCount == len(j.names)
}

// total returns the byte denominator: cached sizes of non-skipped names.
func (j *transferJob) total() int64 {
	var sum int64
	for i, t := range j.totals {
		if !j.skipped[i] {
			sum += t
		}
	}
	return sum
}

func (j *transferJob) sumTransferred() int64 {
	var sum int64
	for i, n := range j.transferred {
		if !j.skipped[i] {
			sum += n
		}
	}
	return sum
}

// progress returns the aggregate progress across non-skipped names.
func (j *transferJob) progress() types.Progress {
	if j.single {
		return types.BytesProgress(j.transferred[0], j.totals[0])
	}
	total := j.total()
	if total <= 0 {
		return types.IndeterminateProgress()
	}
	return types.FractionProgress(float64(j.sumTransferred()) / float64(total))
}

func (j *transferJob) summary() types.SaveSummary {
	return types.SaveSummary{
		Requested: len(j.names),
		Saved:     j.completedCount,
		Skipped:   j.skippedCount,
	}
}
