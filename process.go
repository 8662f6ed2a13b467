package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/shirou/gopsutil/v4/process"
)

// ProcessController finds and stops running instances of a program by name.
type ProcessController interface {
	IsRunning(ctx context.Context, programID string) (bool, error)
	Terminate(ctx context.Context, programID string) error
}

type runningProcess interface {
	PID() int32
	Name(ctx context.Context) (string, error)
	Kill(ctx context.Context) error
}

type systemProcessController struct {
	listProcesses func(ctx context.Context) ([]runningProcess, error)
	ownPID        int32
}

// used where there is no supported way to stop a program: nothing is ever
// reported as running, so the update goes ahead
type noopProcessController struct{}

func NewProcessController(mode string, goos string) (ProcessController, error) {
	switch strings.ToLower(mode) {
	case "", PROCESS_CONTROL_AUTO:
		if goos == "windows" {
			return newSystemProcessController(), nil
		}
		return noopProcessController{}, nil
	case PROCESS_CONTROL_ALWAYS:
		return newSystemProcessController(), nil
	case PROCESS_CONTROL_NEVER:
		return noopProcessController{}, nil
	default:
		return nil, fmt.Errorf("%s is not a known process control mode", mode)
	}
}

func newSystemProcessController() systemProcessController {
	return systemProcessController{
		listProcesses: listSystemProcesses,
		ownPID:        int32(os.Getpid()),
	}
}

func (c systemProcessController) IsRunning(ctx context.Context, programID string) (bool, error) {
	matches, err := c.matching(ctx, programID)
	if err != nil {
		return false, err
	}
	return len(matches) > 0, nil
}

// Terminate kills every matching process. Processes that cannot be killed are
// only logged; the caller finds out through IsRunning.
func (c systemProcessController) Terminate(ctx context.Context, programID string) error {
	matches, err := c.matching(ctx, programID)
	if err != nil {
		return err
	}
	for _, p := range matches {
		sugar.Infof("killing process %d (%s)", p.PID(), programID)
		if err := p.Kill(ctx); err != nil {
			sugar.Warnf("unable to kill process %d: %v", p.PID(), err)
		}
	}
	return nil
}

func (c systemProcessController) matching(ctx context.Context, programID string) ([]runningProcess, error) {
	if programID == "" {
		return nil, nil
	}
	processes, err := c.listProcesses(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing processes: %w", err)
	}

	needle := strings.ToLower(programID)
	var matches []runningProcess
	for _, p := range processes {
		if p.PID() == c.ownPID {
			continue
		}
		// processes exit or deny access while we look at them
		name, err := p.Name(ctx)
		if err != nil {
			continue
		}
		if strings.Contains(strings.ToLower(name), needle) {
			matches = append(matches, p)
		}
	}
	return matches, nil
}

func (noopProcessController) IsRunning(context.Context, string) (bool, error) {
	return false, nil
}

func (noopProcessController) Terminate(context.Context, string) error {
	return nil
}

type systemProcess struct {
	p *process.Process
}

func (s systemProcess) PID() int32 {
	return s.p.Pid
}

func (s systemProcess) Name(ctx context.Context) (string, error) {
	return s.p.NameWithContext(ctx)
}

func (s systemProcess) Kill(ctx context.Context) error {
	return s.p.KillWithContext(ctx)
}

func listSystemProcesses(ctx context.Context) ([]runningProcess, error) {
	processes, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	running := make([]runningProcess, 0, len(processes))
	for _, p := range processes {
		running = append(running, systemProcess{p: p})
	}
	return running, nil
}
