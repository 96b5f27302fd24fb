package worker

import (
	"errors"
	"os/exec"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/cuemby/drp/pkg/metrics"
	"github.com/cuemby/drp/pkg/pathutil"
	"github.com/cuemby/drp/pkg/protocol"
)

// launchFailedStatus is reported when no child process could be started
const launchFailedStatus int32 = -1

// handleExecute runs req.Executable with req.Arguments and waits for it
// to exit. The program is started directly: no shell, no PATH search, and
// the worker's environment unchanged. There is no timeout; the dispatch
// loop is blocked until the child exits.
func (w *Worker) handleExecute(logger zerolog.Logger, req *protocol.ExecuteRequest) *protocol.ExecuteResponse {
	logger = logger.With().Str("executable", req.Executable).Logger()

	if !pathutil.IsPathnameLocal(req.Executable) {
		logger.Warn().Msg("Rejected execute: non-local pathname")
		return &protocol.ExecuteResponse{Status: launchFailedStatus}
	}

	argv := make([]string, 0, len(req.Arguments)+1)
	argv = append(argv, req.Executable)
	argv = append(argv, req.Arguments...)

	cmd := &exec.Cmd{
		Path:   w.resolve(req.Executable),
		Args:   argv,
		Dir:    w.workDir,
		Stdout: w.stdout,
		Stderr: w.stderr,
	}

	logger.Info().Strs("args", req.Arguments).Msg("Executing")
	err := cmd.Run()
	status := exitStatus(err)

	if status == launchFailedStatus {
		logger.Warn().Err(err).Msg("Execute failed: could not start process")
		metrics.ExecutionsTotal.WithLabelValues("launch_failed").Inc()
	} else {
		result := "zero"
		if status != 0 {
			result = "nonzero"
		}
		metrics.ExecutionsTotal.WithLabelValues(result).Inc()
		logger.Info().Int32("status", status).Msg("Process exited")
	}

	return &protocol.ExecuteResponse{Status: status}
}

// exitStatus converts the result of cmd.Run into the reported status. A
// child killed by a signal reports 128 plus the signal number.
func exitStatus(err error) int32 {
	if err == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return 128 + int32(ws.Signal())
		}
		return int32(exitErr.ExitCode())
	}

	return launchFailedStatus
}
