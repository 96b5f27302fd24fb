package worker

import (
	"errors"
	"io/fs"
	"os"

	"github.com/rs/zerolog"

	"github.com/cuemby/drp/pkg/metrics"
	"github.com/cuemby/drp/pkg/pathutil"
	"github.com/cuemby/drp/pkg/protocol"
)

// executableBits are the owner, group and other execute permissions
const executableBits fs.FileMode = 0o111

// handleCopyIn writes req.Content to req.Pathname, replacing any previous
// contents. Existing files with an execute bit are never overwritten, so a
// controller cannot swap out a program the worker runs.
func (w *Worker) handleCopyIn(logger zerolog.Logger, req *protocol.CopyInRequest) *protocol.CopyInResponse {
	logger = logger.With().Str("pathname", req.Pathname).Logger()

	if !pathutil.IsPathnameLocal(req.Pathname) {
		logger.Warn().Msg("Rejected copy in: non-local pathname")
		return &protocol.CopyInResponse{Success: false}
	}

	path := w.resolve(req.Pathname)

	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// New file
	case err != nil:
		logger.Warn().Err(err).Msg("Rejected copy in: stat failed")
		return &protocol.CopyInResponse{Success: false}
	case info.Mode().Perm()&executableBits != 0:
		logger.Warn().
			Stringer("mode", info.Mode()).
			Msg("Rejected copy in: refusing to overwrite executable")
		return &protocol.CopyInResponse{Success: false}
	}

	if err := os.WriteFile(path, req.Content, 0o666); err != nil {
		logger.Warn().Err(err).Msg("Copy in failed: write error")
		return &protocol.CopyInResponse{Success: false}
	}

	metrics.TransferBytesTotal.WithLabelValues("in").Add(float64(len(req.Content)))
	logger.Debug().Int("bytes", len(req.Content)).Msg("Copied file in")

	return &protocol.CopyInResponse{Success: true}
}
