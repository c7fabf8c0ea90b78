// Package shellstate holds the state threaded through one posh process:
// shell variables, the last exit status, the shell's own process group,
// and the background job table.
package shellstate

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// ExecutionContext is the state a command tree is evaluated against. A
// new Context lives for the whole process, not per command line.
type ExecutionContext struct {
	Variables      map[string]string
	ShellPGID      int
	LastExitStatus int
	Jobs           *JobTable

	// Background tracks every backgrounded job's wait-goroutine, the way
	// an interactive shell keeps a handle on its running children. It is
	// never Wait()ed on during normal operation, since a background job
	// must not block the driver loop; Wait is only useful at shutdown to
	// let in-flight jobs finish cleanly.
	Background errgroup.Group
}

// NewContext creates an empty ExecutionContext for the given shell
// process group.
func NewContext(shellPGID int) *ExecutionContext {
	return &ExecutionContext{
		Variables: make(map[string]string),
		ShellPGID: shellPGID,
		Jobs:      NewJobTable(),
	}
}

// JobState is the lifecycle state of a background job.
type JobState int

const (
	JobRunning JobState = iota
	JobStopped
	JobDone
)

func (s JobState) String() string {
	switch s {
	case JobRunning:
		return "Running"
	case JobStopped:
		return "Stopped"
	case JobDone:
		return "Done"
	default:
		return "Unknown"
	}
}

// Job is one backgrounded pipeline: a process group and the command
// text it was started from.
type Job struct {
	ID         int
	PGID       int
	Command    string
	State      JobState
	ExitStatus int

	// Reported marks that the job's completion has already been
	// announced to the user once; CleanupReported removes jobs that are
	// both Done and Reported, leaving a brief tombstone window so a
	// background job that finishes between prompts is announced exactly
	// once.
	Reported  bool
	StartTime time.Time
}

// Listing renders a still-running job the way the `jobs` builtin lists
// it: "[<n> <pid>]" (spec ref: §4.4).
func (j *Job) Listing() string {
	return fmt.Sprintf("[%d %d]", j.ID, j.PGID)
}

// LaunchNotice renders the announcement printed the moment a job is
// backgrounded: "[<n>] <pid>" (spec ref: §6 "Job announcements").
func (j *Job) LaunchNotice() string {
	return fmt.Sprintf("[%d] %d", j.ID, j.PGID)
}

// DoneNotice renders the announcement printed once a backgrounded job
// is reaped: "[<n>] Done <status>" (spec ref: §6 "Job announcements").
func (j *Job) DoneNotice() string {
	return fmt.Sprintf("[%d] Done %d", j.ID, j.ExitStatus)
}

// JobTable tracks background jobs for one shell process. Safe for
// concurrent use: background-job completion is observed from a
// per-job goroutine while the driver loop polls from the main
// goroutine.
type JobTable struct {
	mu      sync.Mutex
	jobs    map[int]*Job
	nextID  int
	current int
}

// NewJobTable creates an empty job table.
func NewJobTable() *JobTable {
	return &JobTable{jobs: make(map[int]*Job), nextID: 1}
}

// Add registers a new running job and returns it.
func (t *JobTable) Add(pgid int, command string) *Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	j := &Job{
		ID:        t.nextID,
		PGID:      pgid,
		Command:   command,
		State:     JobRunning,
		StartTime: time.Now(),
	}
	t.jobs[j.ID] = j
	t.nextID++
	t.current = j.ID
	return j
}

// MarkDone transitions a job to Done with the given exit status. It is
// the non-blocking completion hook a background job's wait-goroutine
// calls once cmd.Wait returns.
func (t *JobTable) MarkDone(id, exitStatus int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if j, ok := t.jobs[id]; ok {
		j.State = JobDone
		j.ExitStatus = exitStatus
	}
}

// Get returns a job by ID, or nil if absent.
func (t *JobTable) Get(id int) *Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.jobs[id]
}

// Current returns the most recently backgrounded job, or nil if none.
func (t *JobTable) Current() *Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.jobs[t.current]
}

// All returns a snapshot of every tracked job, ordered by ID.
func (t *JobTable) All() []*Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Job, 0, len(t.jobs))
	for id := 1; id < t.nextID; id++ {
		if j, ok := t.jobs[id]; ok {
			out = append(out, j)
		}
	}
	return out
}

// PendingNotices returns Done jobs not yet reported and marks them
// Reported, so the driver loop prints each completion exactly once.
func (t *JobTable) PendingNotices() []*Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []*Job
	for _, j := range t.jobs {
		if j.State == JobDone && !j.Reported {
			j.Reported = true
			out = append(out, j)
		}
	}
	return out
}

// CleanupReported drops jobs that are Done and already Reported,
// leaving running, stopped, and not-yet-announced jobs untouched.
func (t *JobTable) CleanupReported() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, j := range t.jobs {
		if j.State == JobDone && j.Reported {
			delete(t.jobs, id)
		}
	}
}
