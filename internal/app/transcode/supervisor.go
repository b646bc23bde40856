// Package transcode supervises per-room encoder processes and pushes the
// segments they produce to the room.
package transcode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"github.com/dkeye/WatchParty/internal/config"
	"github.com/dkeye/WatchParty/internal/domain"
	"github.com/dkeye/WatchParty/internal/metrics"
)

var (
	ErrInvalidRequest = errors.New("invalid transcode request")
	ErrSpawn          = errors.New("failed to start transcoder")
	ErrNoJob          = errors.New("no active transcode job")
)

// Notifier delivers a complete segment list to every member of a room.
type Notifier interface {
	PublishSegments(roomID domain.RoomID, urls []string) int
}

type Options struct {
	Config   config.Transcode
	Fs       afero.Fs
	Launcher Launcher
	Notifier Notifier
	Metrics  *metrics.Metrics
}

// Supervisor keeps at most one active job per room. Requests for the same
// room are serialized by a per-room lock held from the lookup of the old job
// until the new one is recorded.
type Supervisor struct {
	cfg      config.Transcode
	fs       afero.Fs
	launcher Launcher
	notifier Notifier
	metrics  *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	locks  roomLocks
	wg     sync.WaitGroup

	mu   sync.RWMutex
	jobs map[domain.RoomID]*Job
}

func NewSupervisor(ctx context.Context, opts Options) *Supervisor {
	ctx, cancel := context.WithCancel(ctx)
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Launcher == nil {
		opts.Launcher = ExecLauncher{}
	}
	return &Supervisor{
		cfg:      opts.Config,
		fs:       opts.Fs,
		launcher: opts.Launcher,
		notifier: opts.Notifier,
		metrics:  opts.Metrics,
		ctx:      ctx,
		cancel:   cancel,
		locks:    roomLocks{m: make(map[domain.RoomID]*roomLock)},
		jobs:     make(map[domain.RoomID]*Job),
	}
}

// Start supersedes any active job for roomID and spawns a new encoder.
// A spawn failure leaves the room without a job. A failure to prepare the
// output directory returns before anything is superseded, so the current job keeps running.
func (s *Supervisor) Start(roomID domain.RoomID, videoURL string) (JobInfo, error) {
	videoURL = strings.TrimSpace(videoURL)
	if roomID.Empty() || videoURL == "" {
		return JobInfo{}, fmt.Errorf("%w: roomId and videoUrl are required", ErrInvalidRequest)
	}
	if u, err := url.Parse(videoURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return JobInfo{}, fmt.Errorf("%w: videoUrl must be an http(s) URL", ErrInvalidRequest)
	}

	unlock := s.locks.lock(roomID)
	defer unlock()

	if err := s.fs.MkdirAll(s.cfg.OutputDir, 0o755); err != nil {
		return JobInfo{}, fmt.Errorf("%w: %v", ErrSpawn, err)
	}

	s.supersede(roomID)

	id := uuid.NewString()
	job := &Job{
		ID:        id,
		RoomID:    roomID,
		SourceURL: videoURL,
		Prefix:    segmentPrefix(roomID, id),
		StartedAt: time.Now(),
		status:    StatusStarting,
	}
	s.mu.Lock()
	s.jobs[roomID] = job
	s.mu.Unlock()
	s.metrics.JobActive(1)

	logger := jobLogger(job)
	proc, err := s.launcher.Launch(s.ctx, s.command(job))
	if err != nil {
		s.drop(job)
		if _, ok := job.finish(StatusFailed); ok {
			s.metrics.JobActive(-1)
		}
		s.metrics.Job("spawn_error")
		logger.Error().Err(err).Msg("spawn encoder")
		return JobInfo{}, fmt.Errorf("%w: %v", ErrSpawn, err)
	}
	job.attach(proc)
	s.metrics.Job("started")
	logger.Info().Int("pid", proc.PID()).Str("url", videoURL).Msg("encoder started")

	s.wg.Add(1)
	go s.watch(job, proc, logger)
	return job.info(nil), nil
}

// Cancel terminates the active job of a room.
func (s *Supervisor) Cancel(roomID domain.RoomID) error {
	unlock := s.locks.lock(roomID)
	defer unlock()
	if !s.supersede(roomID) {
		return ErrNoJob
	}
	return nil
}

// Status returns the latest job of a room together with its current segment URLs.
func (s *Supervisor) Status(roomID domain.RoomID) (JobInfo, bool) {
	s.mu.RLock()
	job, ok := s.jobs[roomID]
	s.mu.RUnlock()
	if !ok {
		return JobInfo{}, false
	}
	names, err := listSegments(s.fs, s.cfg.OutputDir, job.Prefix, s.cfg.SegmentExt)
	if err != nil {
		logger := jobLogger(job)
		logger.Warn().Err(err).Msg("list segments for status")
	}
	return job.info(segmentURLs(s.cfg.PublicBaseURL, names)), true
}

// Active reports the number of jobs in Starting or Running.
func (s *Supervisor) Active() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, job := range s.jobs {
		if !job.Status().Terminal() {
			n++
		}
	}
	return n
}

// Shutdown terminates every live encoder and waits for their watchers.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	rooms := make([]domain.RoomID, 0, len(s.jobs))
	for id := range s.jobs {
		rooms = append(rooms, id)
	}
	s.mu.RUnlock()
	for _, id := range rooms {
		_ = s.Cancel(id)
	}
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// supersede removes a non-terminal job record and signals its process.
// The caller must hold the room lock.
func (s *Supervisor) supersede(roomID domain.RoomID) bool {
	s.mu.Lock()
	old, ok := s.jobs[roomID]
	if ok && !old.Status().Terminal() {
		delete(s.jobs, roomID)
	} else {
		ok = false
	}
	s.mu.Unlock()
	if !ok {
		return false
	}

	proc, moved := old.finish(StatusSuperseded)
	if !moved {
		return false
	}
	s.metrics.JobActive(-1)
	s.metrics.Job("superseded")
	logger := jobLogger(old)
	if proc != nil {
		if err := proc.Terminate(); err != nil {
			logger.Warn().Err(err).Msg("terminate superseded encoder")
		}
	}
	logger.Info().Msg("job superseded")
	return true
}

func (s *Supervisor) drop(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.jobs[job.RoomID] == job {
		delete(s.jobs, job.RoomID)
	}
}

func (s *Supervisor) isCurrent(job *Job) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jobs[job.RoomID] == job
}

// watch turns every chunk of encoder diagnostics into a segment list broadcast,
// then records how the process ended.
func (s *Supervisor) watch(job *Job, proc Process, logger zerolog.Logger) {
	defer s.wg.Done()

	buf := make([]byte, 4096)
	stderr := proc.Stderr()
	for {
		n, err := stderr.Read(buf)
		if n > 0 {
			logger.Trace().Bytes("stderr", buf[:n]).Msg("encoder output")
			s.publish(job, logger)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Debug().Err(err).Msg("encoder stderr closed")
			}
			break
		}
	}
	waitErr := proc.Wait()

	s.publish(job, logger)

	unlock := s.locks.lock(job.RoomID)
	status := StatusCompleted
	if waitErr != nil {
		status = StatusFailed
	}
	moved := false
	if s.isCurrent(job) {
		_, moved = job.finish(status)
	}
	unlock()

	if !moved {
		logger.Info().AnErr("exit", waitErr).Msg("stale encoder exited")
		if s.cfg.PruneSuperseded && job.Status() == StatusSuperseded {
			s.prune(job, logger)
		}
		return
	}
	s.metrics.JobActive(-1)
	s.metrics.Job(status.String())
	if waitErr != nil {
		logger.Error().Err(waitErr).Msg("encoder exited abnormally")
		return
	}
	logger.Info().Msg("encoder completed")
}

// publish re-lists the output directory and broadcasts the full list, but only
// while job is still the room's active job.
func (s *Supervisor) publish(job *Job, logger zerolog.Logger) {
	if !s.isCurrent(job) || job.Status() != StatusRunning {
		return
	}
	names, err := listSegments(s.fs, s.cfg.OutputDir, job.Prefix, s.cfg.SegmentExt)
	if err != nil {
		logger.Warn().Err(err).Msg("segment discovery failed, skipping broadcast")
		return
	}
	urls := segmentURLs(s.cfg.PublicBaseURL, names)

	job.mu.Lock()
	defer job.mu.Unlock()
	if job.status != StatusRunning {
		return
	}
	if s.notifier == nil {
		return
	}
	n := s.notifier.PublishSegments(job.RoomID, urls)
	s.metrics.SegmentsPushed()
	logger.Debug().Int("segments", len(urls)).Int("receivers", n).Msg("segment list published")
}

func (s *Supervisor) prune(job *Job, logger zerolog.Logger) {
	names, err := listSegments(s.fs, s.cfg.OutputDir, job.Prefix, s.cfg.SegmentExt)
	if err != nil {
		logger.Warn().Err(err).Msg("list superseded segments")
		return
	}
	for _, name := range names {
		if err := s.fs.Remove(filepath.Join(s.cfg.OutputDir, name)); err != nil {
			logger.Warn().Err(err).Str("file", name).Msg("remove superseded segment")
		}
	}
	logger.Debug().Int("files", len(names)).Msg("pruned superseded segments")
}

// command builds the encoder invocation: H.264/AAC cut into numbered segments.
func (s *Supervisor) command(job *Job) Command {
	return Command{
		Path: s.cfg.FFmpegPath,
		Args: []string{
			"-hide_banner",
			"-y",
			"-i", job.SourceURL,
			"-c:v", "libx264",
			"-preset", "veryfast",
			"-c:a", "aac",
			"-f", "segment",
			"-segment_time", strconv.Itoa(s.cfg.SegmentSeconds),
			"-reset_timestamps", "1",
			segmentPattern(s.cfg.OutputDir, job.Prefix, s.cfg.SegmentExt),
		},
	}
}

func jobLogger(job *Job) zerolog.Logger {
	return log.With().
		Str("module", "transcode").
		Str("room", string(job.RoomID)).
		Str("job", job.ID).
		Logger()
}

type roomLock struct {
	mu   sync.Mutex
	refs int
}

// roomLocks is a mutex per room id, dropped when nobody holds or waits on it.
type roomLocks struct {
	mu sync.Mutex
	m  map[domain.RoomID]*roomLock
}

func (l *roomLocks) lock(id domain.RoomID) func() {
	l.mu.Lock()
	rl, ok := l.m[id]
	if !ok {
		rl = &roomLock{}
		l.m[id] = rl
	}
	rl.refs++
	l.mu.Unlock()

	rl.mu.Lock()
	return func() {
		rl.mu.Unlock()
		l.mu.Lock()
		rl.refs--
		if rl.refs == 0 {
			delete(l.m, id)
		}
		l.mu.Unlock()
	}
}
