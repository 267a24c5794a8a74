package platform

import (
	"bufio"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Process supervision constants
const (
	// KillGracePeriod is how long a process gets after SIGTERM before SIGKILL
	KillGracePeriod = 5 * time.Second

	// SyntheticExitCode marks exits manufactured by the runner (spawn failure)
	SyntheticExitCode = -1

	// Line scanning limits; extractor lines can carry long JSON documents
	initialScanBuffer = 64 * 1024
	maxScanBuffer     = 4 * 1024 * 1024

	lineChannelBuffer = 64
)

// ProcessSpec describes one external process to start
type ProcessSpec struct {
	Path string
	Args []string
	Env  []string // appended to the parent environment
	Dir  string
}

// ExitStatus describes how a supervised process finished
type ExitStatus struct {
	Code        int
	Err         error
	SpawnFailed bool // the process never started; Code is synthetic
}

// Process is one supervised external process. Lines carries every line of
// the merged stdout+stderr streams and is closed when both streams end; Exit
// delivers exactly one status afterwards. A spawn failure delivers a single
// synthetic exit with no lines, so callers never need a separate error path.
type Process struct {
	cmd *exec.Cmd

	lines chan string
	exit  chan ExitStatus
	done  chan struct{}

	killOnce sync.Once
}

// StartProcess spawns the process described by spec. It never returns an
// error: spawn failures surface through the synthetic exit status.
func StartProcess(spec ProcessSpec) *Process {
	p := &Process{
		lines: make(chan string, lineChannelBuffer),
		exit:  make(chan ExitStatus, 1),
		done:  make(chan struct{}),
	}

	cmd := exec.Command(spec.Path, spec.Args...)
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	cmd.Dir = spec.Dir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		p.failSpawn(err)
		return p
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		p.failSpawn(err)
		return p
	}

	if err := cmd.Start(); err != nil {
		p.failSpawn(err)
		return p
	}
	p.cmd = cmd

	var readers sync.WaitGroup
	readers.Add(2)
	go p.scanLines(stdout, &readers)
	go p.scanLines(stderr, &readers)

	go func() {
		readers.Wait()
		close(p.lines)

		err := cmd.Wait()
		status := ExitStatus{Err: err}
		if exitErr, ok := err.(*exec.ExitError); ok {
			status.Code = exitErr.ExitCode()
		} else if err != nil {
			status.Code = SyntheticExitCode
		}
		p.exit <- status
		close(p.done)
	}()

	return p
}

// Lines returns the merged stdout+stderr line stream
func (p *Process) Lines() <-chan string {
	return p.lines
}

// Exit returns the channel delivering the single exit status
func (p *Process) Exit() <-chan ExitStatus {
	return p.exit
}

// Kill requests termination: SIGTERM first, then SIGKILL after the grace
// period if the process has not exited. Safe to call more than once and
// before/after exit.
func (p *Process) Kill() {
	p.killOnce.Do(func() {
		if p.cmd == nil || p.cmd.Process == nil {
			return
		}
		proc := p.cmd.Process
		_ = proc.Signal(syscall.SIGTERM)

		go func() {
			select {
			case <-p.done:
			case <-time.After(KillGracePeriod):
				_ = proc.Kill()
			}
		}()
	})
}

// failSpawn delivers the synthetic spawn-failure exit
func (p *Process) failSpawn(err error) {
	close(p.lines)
	p.exit <- ExitStatus{Code: SyntheticExitCode, Err: err, SpawnFailed: true}
	close(p.done)
}

// scanLines forwards each output line to the merged line channel
func (p *Process) scanLines(r io.Reader, wg *sync.WaitGroup) {
	defer wg.Done()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, initialScanBuffer), maxScanBuffer)
	for scanner.Scan() {
		p.lines <- scanner.Text()
	}
}
