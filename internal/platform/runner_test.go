package platform

import (
	"testing"
	"time"
)

func collectLines(t *testing.T, p *Process) []string {
	t.Helper()
	var lines []string
	for line := range p.Lines() {
		lines = append(lines, line)
	}
	return lines
}

func waitExit(t *testing.T, p *Process) ExitStatus {
	t.Helper()
	select {
	case status := <-p.Exit():
		return status
	case <-time.After(10 * time.Second):
		t.Fatal("Timed out waiting for process exit")
		return ExitStatus{}
	}
}

func TestStartProcessLinesAndExitCode(t *testing.T) {
	p := StartProcess(ProcessSpec{
		Path: "/bin/sh",
		Args: []string{"-c", "echo one; echo two 1>&2; exit 3"},
	})

	lines := collectLines(t, p)
	status := waitExit(t, p)

	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines from merged streams, got %d: %v", len(lines), lines)
	}
	seen := map[string]bool{}
	for _, l := range lines {
		seen[l] = true
	}
	if !seen["one"] || !seen["two"] {
		t.Errorf("Expected both stdout and stderr lines, got %v", lines)
	}

	if status.Code != 3 {
		t.Errorf("Expected exit code 3, got %d", status.Code)
	}
	if status.SpawnFailed {
		t.Error("Expected spawn to succeed")
	}
}

func TestStartProcessCleanExit(t *testing.T) {
	p := StartProcess(ProcessSpec{
		Path: "/bin/sh",
		Args: []string{"-c", "exit 0"},
	})

	collectLines(t, p)
	status := waitExit(t, p)

	if status.Code != 0 {
		t.Errorf("Expected exit code 0, got %d", status.Code)
	}
	if status.Err != nil {
		t.Errorf("Expected no error on clean exit, got %v", status.Err)
	}
}

func TestStartProcessSpawnFailure(t *testing.T) {
	p := StartProcess(ProcessSpec{
		Path: "/nonexistent/binary/definitely-missing",
	})

	lines := collectLines(t, p)
	status := waitExit(t, p)

	if len(lines) != 0 {
		t.Errorf("Expected no lines on spawn failure, got %v", lines)
	}
	if !status.SpawnFailed {
		t.Error("Expected SpawnFailed to be set")
	}
	if status.Code != SyntheticExitCode {
		t.Errorf("Expected synthetic exit code %d, got %d", SyntheticExitCode, status.Code)
	}
	if status.Err == nil {
		t.Error("Expected spawn error to be reported")
	}
}

func TestProcessKill(t *testing.T) {
	p := StartProcess(ProcessSpec{
		Path: "/bin/sh",
		Args: []string{"-c", "sleep 60"},
	})

	go func() {
		time.Sleep(100 * time.Millisecond)
		p.Kill()
	}()

	collectLines(t, p)
	status := waitExit(t, p)

	if status.Code == 0 {
		t.Error("Expected non-zero exit code after kill")
	}
}

func TestProcessKillIdempotent(t *testing.T) {
	p := StartProcess(ProcessSpec{
		Path: "/bin/sh",
		Args: []string{"-c", "sleep 60"},
	})

	p.Kill()
	p.Kill() // second call is a no-op

	collectLines(t, p)
	waitExit(t, p)
}
