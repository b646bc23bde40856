package transcode

import (
	"sync"
	"time"

	"github.com/dkeye/WatchParty/internal/domain"
)

type Status int

const (
	StatusStarting Status = iota
	StatusRunning
	StatusCompleted
	StatusFailed
	StatusSuperseded
)

func (s Status) String() string {
	switch s {
	case StatusStarting:
		return "starting"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusSuperseded:
		return "superseded"
	}
	return "unknown"
}

func (s Status) Terminal() bool { return s >= StatusCompleted }

// Job is one supervised encoder run for a room.
type Job struct {
	ID        string
	RoomID    domain.RoomID
	SourceURL string
	// Prefix starts every segment file name this job writes.
	Prefix    string
	StartedAt time.Time

	// mu also serializes segment broadcasts against supersede, so a job
	// never publishes once it has left the active states.
	mu     sync.Mutex
	status Status
	proc   Process
}

// JobInfo is the API view of a job.
type JobInfo struct {
	ID        string        `json:"id"`
	RoomID    domain.RoomID `json:"roomId"`
	Status    string        `json:"status"`
	SourceURL string        `json:"videoUrl"`
	StartedAt time.Time     `json:"startedAt"`
	Segments  []string      `json:"segments"`
}

func (j *Job) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

func (j *Job) attach(p Process) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status != StatusStarting {
		return false
	}
	j.proc = p
	j.status = StatusRunning
	return true
}

// finish moves the job to a terminal state once. It returns the process to
// signal, if any, and whether this call made the transition.
func (j *Job) finish(s Status) (Process, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status.Terminal() {
		return nil, false
	}
	j.status = s
	return j.proc, true
}

func (j *Job) info(segments []string) JobInfo {
	if segments == nil {
		segments = []string{}
	}
	return JobInfo{
		ID:        j.ID,
		RoomID:    j.RoomID,
		Status:    j.Status().String(),
		SourceURL: j.SourceURL,
		StartedAt: j.StartedAt,
		Segments:  segments,
	}
}
