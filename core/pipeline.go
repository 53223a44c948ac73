package core

import (
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/josephlewis42/subsh/core/logger"
	"github.com/josephlewis42/subsh/core/session"
)

// Pipeline chains commands through anonymous pipes: stage i's standard
// output feeds stage i+1's standard input. All stages run concurrently;
// correctness relies on pipe backpressure alone.
//
// Only the terminal stage's exit status is reported. Earlier stages are
// reaped and their statuses recorded to the event log, but a failure
// there is visible to the caller only through whatever it does to the
// downstream byte stream. There is no cancellation: a hung stage blocks
// the caller indefinitely.
type Pipeline struct {
	// Runner supplies the sourcing policy, stdio endpoints, and event
	// log for the stages. A nil Runner behaves like a zero Runner.
	Runner *Runner

	// Stderr receives each stage's standard-error stream and the
	// diagnostics for stages that could not be started. Defaults to
	// os.Stderr. Stage stderr is deliberately not piped between stages,
	// so diagnostics stay visible to the host.
	Stderr io.Writer
}

func (p *Pipeline) runner() *Runner {
	if p.Runner != nil {
		return p.Runner
	}
	return &Runner{}
}

func (p *Pipeline) stderr() io.Writer {
	if p.Stderr != nil {
		return p.Stderr
	}
	return os.Stderr
}

// Run executes the stages concurrently and returns the terminal stage's
// exit status, updating the session like Runner.Run does.
//
// An empty stage list is a no-op success. A single stage runs through the
// Runner directly with no pipe overhead. An empty argument vector in any
// position fails the whole invocation before anything is spawned.
func (p *Pipeline) Run(sess *session.Session, stages [][]string) int {
	r := p.runner()
	sess.ClearLastError()

	n := len(stages)
	if n == 0 {
		sess.SetExitStatus(0)
		return 0
	}
	if n == 1 {
		return r.Run(sess, stages[0])
	}

	for i, argv := range stages {
		if len(argv) == 0 {
			return r.fail(sess, fmt.Sprintf("pipeline stage %d is empty", i+1))
		}
	}

	// One pipe per adjacent stage boundary. os.Pipe descriptors are
	// close-on-exec, so a child only ever sees the two ends the runtime
	// dups onto its stdio; every other pipe end stays out of the child.
	readers := make([]*os.File, n-1)
	writers := make([]*os.File, n-1)
	closeAll := func() {
		for i := 0; i < n-1; i++ {
			if readers[i] != nil {
				readers[i].Close()
			}
			if writers[i] != nil {
				writers[i].Close()
			}
		}
	}
	for i := 0; i < n-1; i++ {
		pr, pw, err := os.Pipe()
		if err != nil {
			closeAll()
			return r.fail(sess, fmt.Sprintf("pipe: %v", err))
		}
		readers[i], writers[i] = pr, pw
	}

	type stageResult struct {
		cmd      *exec.Cmd
		status   int
		spawnErr string
	}
	results := make([]stageResult, n)

	for i, argv := range stages {
		cmd, err := r.command(sess, argv)
		if err != nil {
			// Mirrors a child whose program replacement failed: the
			// diagnostic goes to the stage's stderr and the slot exits
			// with 127. Later stages see EOF once the parent closes the
			// dangling pipe ends below.
			fmt.Fprintf(p.stderr(), "%s\n", err)
			results[i].status = ExitExecFailure
			results[i].spawnErr = err.Error()
			continue
		}

		if i > 0 {
			cmd.Stdin = readers[i-1]
		} else {
			cmd.Stdin = r.stdin()
		}
		if i < n-1 {
			cmd.Stdout = writers[i]
		} else {
			cmd.Stdout = r.stdout()
		}
		cmd.Stderr = p.stderr()

		if err := cmd.Start(); err != nil {
			// Lookup succeeded but the spawn did not; report the engine
			// failure code, not the missing-program one.
			fmt.Fprintf(p.stderr(), "%s: %v\n", argv[0], err)
			results[i].status = ExitInternalError
			results[i].spawnErr = fmt.Sprintf("%s: %v", argv[0], err)
			continue
		}
		results[i].cmd = cmd
	}

	// Every pipe write end must be closed here, before any wait, or a
	// reader downstream of a dead stage would block forever on the end
	// the parent still holds.
	closeAll()

	for i := range results {
		if results[i].cmd == nil {
			continue
		}
		results[i].status = waitStatus(results[i].cmd)
	}

	final := results[n-1].status
	if results[n-1].cmd == nil {
		// The terminal stage never ran; its diagnostic is the outcome.
		sess.SetLastError(results[n-1].spawnErr)
	}
	sess.SetExitStatus(final)

	if r.Log != nil {
		statuses := make([]int, n)
		argvs := make([][]string, n)
		for i := range results {
			statuses[i] = results[i].status
			argvs[i] = stages[i]
		}
		r.Log.Record(&logger.PipelineRun{
			Stages:        argvs,
			StageStatuses: statuses,
			ExitCode:      final,
		})
	}
	return final
}
