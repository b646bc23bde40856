package transcode

import (
	"context"
	"io"
	"os/exec"
	"syscall"
)

// Command is one encoder invocation.
type Command struct {
	Path string
	Args []string
}

// Process is a running encoder. Stderr must be drained before Wait.
type Process interface {
	Stderr() io.Reader
	// Terminate sends the termination signal and returns without waiting.
	Terminate() error
	Wait() error
	PID() int
}

type Launcher interface {
	Launch(ctx context.Context, cmd Command) (Process, error)
}

// ExecLauncher starts encoders as child processes. Cancelling ctx kills them.
type ExecLauncher struct{}

func (ExecLauncher) Launch(ctx context.Context, c Command) (Process, error) {
	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &execProcess{cmd: cmd, stderr: stderr}, nil
}

type execProcess struct {
	cmd    *exec.Cmd
	stderr io.ReadCloser
}

func (p *execProcess) Stderr() io.Reader { return p.stderr }
func (p *execProcess) Wait() error       { return p.cmd.Wait() }
func (p *execProcess) PID() int          { return p.cmd.Process.Pid }

func (p *execProcess) Terminate() error {
	return p.cmd.Process.Signal(syscall.SIGTERM)
}
