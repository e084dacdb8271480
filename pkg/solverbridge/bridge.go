package solverbridge

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/dd0wney/gac/pkg/gacerrors"
	"github.com/dd0wney/gac/pkg/logging"
	"github.com/sony/gobreaker"
)

// killGracePeriod is how long a cancelled subprocess gets after SIGTERM
// before Bridge escalates to SIGKILL.
const killGracePeriod = 500 * time.Millisecond

// Exit codes the solver subprocess protocol assigns meaning to.
const (
	exitSuccess       = 0
	exitProtocolError = 1
	exitSolverError   = 2
	exitInfeasible    = 3
	exitUnbounded     = 4
	exitTimeout       = 5

	// exitCancelled is internal: not a subprocess exit code, but the
	// marker run uses when the caller's context ended the call.
	exitCancelled = -1
)

// Bridge spawns a solver subprocess per call and speaks the columnar
// protocol to it. A gobreaker circuit breaker opens after
// repeated protocol-error exits across calls, distinct from the
// single-restart-per-call policy for an individual exit-code-1
// failure.
type Bridge struct {
	command string
	args    []string
	env     []string // appended to the inherited environment
	cb      *gobreaker.CircuitBreaker
	logger  logging.Logger
}

// NewBridge constructs a Bridge that spawns command with args for every
// Call. The circuit breaker trips after 3 consecutive protocol-error exits
// and resets after a 30s cooldown.
func NewBridge(command string, args []string) *Bridge {
	settings := gobreaker.Settings{
		Name:    "solver-bridge:" + command,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		// Infeasible/Unbounded/Timeout are legitimate solver outcomes,
		// not bridge health signals; only SolverProtocol failures
		// (spawn, premature exit, schema/deserialize errors) count
		// against the breaker.
		IsSuccessful: func(err error) bool {
			return err == nil || !gacerrors.IsSolverProtocol(err)
		},
	}
	return &Bridge{
		command: command,
		args:    args,
		cb:      gobreaker.NewCircuitBreaker(settings),
		logger:  logging.DefaultLogger(),
	}
}

// Call sends problem to one subprocess invocation and returns its parsed
// solution, mapping every subprocess failure mode to a typed
// gacerrors.AnalysisError. A single restart is attempted when the
// subprocess exits with code 1 (protocol error); all other non-success
// outcomes are reported without retry.
func (br *Bridge) Call(ctx context.Context, problem *Problem) (*Solution, error) {
	result, err := br.cb.Execute(func() (any, error) {
		return br.callOnce(ctx, problem)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, gacerrors.New(gacerrors.KindSolverProtocol, "solverbridge.Call", gacerrors.ErrCircuitOpen)
		}
		return nil, err
	}
	return result.(*Solution), nil
}

func (br *Bridge) callOnce(ctx context.Context, problem *Problem) (*Solution, error) {
	sol, exitErr := br.run(ctx, problem)
	if exitErr == nil {
		return sol, nil
	}
	if exitErr.code == exitProtocolError {
		br.logger.Warn("solver subprocess protocol error, retrying once",
			logging.String("op", "solverbridge.Call"))
		sol, exitErr = br.run(ctx, problem)
		if exitErr == nil {
			return sol, nil
		}
	}
	return nil, exitErr.toAnalysisError()
}

type exitFailure struct {
	code int
	err  error
}

func (f *exitFailure) toAnalysisError() error {
	switch f.code {
	case exitCancelled:
		if f.err == context.DeadlineExceeded {
			return gacerrors.Timeout("solverbridge.Call")
		}
		return gacerrors.Cancelled("solverbridge.Call")
	case exitInfeasible:
		return gacerrors.Infeasible("solverbridge.Call", "")
	case exitUnbounded:
		return gacerrors.Unbounded("solverbridge.Call")
	case exitTimeout:
		return gacerrors.Timeout("solverbridge.Call")
	default:
		return gacerrors.SolverProtocol("solverbridge.Call",
			fmt.Errorf("%w: exit code %d: %v", gacerrors.ErrSubprocessExit, f.code, f.err))
	}
}

// run spawns one subprocess instance, writes the problem batch, reads the
// solution batch, and watches ctx for cooperative cancellation (SIGTERM
// then SIGKILL after killGracePeriod).
func (br *Bridge) run(ctx context.Context, problem *Problem) (*Solution, *exitFailure) {
	// A plain exec.Command, not exec.CommandContext: CommandContext's
	// default cancellation is an immediate SIGKILL, which would bypass
	// the SIGTERM-then-grace-period shutdown policy. watchCancellation
	// implements that policy explicitly instead.
	cmd := exec.Command(br.command, br.args...)
	cmd.Env = os.Environ()
	if lvl := os.Getenv("SOLVER_LOG_LEVEL"); lvl != "" {
		cmd.Env = append(cmd.Env, "SOLVER_LOG_LEVEL="+lvl)
	}
	cmd.Env = append(cmd.Env, br.env...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &exitFailure{code: 1, err: fmt.Errorf("%w: %v", gacerrors.ErrSubprocessSpawn, err)}
	}
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Start(); err != nil {
		return nil, &exitFailure{code: 1, err: fmt.Errorf("%w: %v", gacerrors.ErrSubprocessSpawn, err)}
	}

	done := make(chan struct{})
	defer close(done)
	go watchCancellation(ctx, cmd, done)

	if err := WriteProblem(stdin, problem); err != nil {
		stdin.Close()
		_ = cmd.Process.Kill()
		cmd.Wait()
		return nil, &exitFailure{code: 1, err: err}
	}
	stdin.Close()

	waitErr := cmd.Wait()
	if ctx.Err() != nil {
		return nil, &exitFailure{code: exitCancelled, err: ctx.Err()}
	}

	code := exitSuccess
	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			code = exitErr.ExitCode()
		} else {
			return nil, &exitFailure{code: 1, err: waitErr}
		}
	}
	if code != exitSuccess {
		return nil, &exitFailure{code: code, err: waitErr}
	}

	sol, err := ReadSolution(&stdout)
	if err != nil {
		return nil, &exitFailure{code: exitProtocolError, err: err}
	}
	return sol, nil
}

func watchCancellation(ctx context.Context, cmd *exec.Cmd, done chan struct{}) {
	select {
	case <-ctx.Done():
	case <-done:
		return
	}
	if cmd.Process == nil {
		return
	}
	_ = cmd.Process.Signal(syscall.SIGTERM)
	timer := time.NewTimer(killGracePeriod)
	defer timer.Stop()
	select {
	case <-timer.C:
		_ = cmd.Process.Kill()
	case <-done:
	}
}
