package transcode

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/dkeye/WatchParty/internal/domain"
)

var errTerminated = errors.New("signal: terminated")

type fakeProcess struct {
	pid  int
	r    *io.PipeReader
	w    *io.PipeWriter
	exit chan error
	once sync.Once

	mu         sync.Mutex
	terminated bool
	exited     bool
}

func newFakeProcess(pid int) *fakeProcess {
	r, w := io.Pipe()
	return &fakeProcess{pid: pid, r: r, w: w, exit: make(chan error, 1)}
}

func (p *fakeProcess) Stderr() io.Reader { return p.r }
func (p *fakeProcess) PID() int          { return p.pid }
func (p *fakeProcess) Wait() error       { return <-p.exit }

func (p *fakeProcess) Terminate() error {
	p.mu.Lock()
	p.terminated = true
	p.mu.Unlock()
	p.exitWith(errTerminated)
	return nil
}

func (p *fakeProcess) isTerminated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.terminated
}

// emit blocks until the supervisor has read the chunk.
func (p *fakeProcess) emit(s string) {
	_, _ = p.w.Write([]byte(s))
}

func (p *fakeProcess) alive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.terminated && !p.exited
}

func (p *fakeProcess) exitWith(err error) {
	p.once.Do(func() {
		p.mu.Lock()
		p.exited = true
		p.mu.Unlock()
		_ = p.w.Close()
		p.exit <- err
	})
}

// fakeLauncher hands out fakeProcesses and records how many were live at each launch.
type fakeLauncher struct {
	mu          sync.Mutex
	procs       []*fakeProcess
	cmds        []Command
	liveAtStart []int
}

func (l *fakeLauncher) Launch(_ context.Context, cmd Command) (Process, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	live := 0
	for _, p := range l.procs {
		if p.alive() {
			live++
		}
	}
	l.liveAtStart = append(l.liveAtStart, live)
	p := newFakeProcess(len(l.procs) + 100)
	l.procs = append(l.procs, p)
	l.cmds = append(l.cmds, cmd)
	return p, nil
}

func (l *fakeLauncher) proc(i int) *fakeProcess {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.procs[i]
}

type published struct {
	room domain.RoomID
	urls []string
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []published
}

func (n *fakeNotifier) PublishSegments(room domain.RoomID, urls []string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, published{room: room, urls: append([]string(nil), urls...)})
	return 1
}

func (n *fakeNotifier) snapshot() []published {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]published(nil), n.calls...)
}

func (n *fakeNotifier) last() (published, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.calls) == 0 {
		return published{}, false
	}
	return n.calls[len(n.calls)-1], true
}
