package worker

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/cuemby/drp/pkg/metrics"
	"github.com/cuemby/drp/pkg/pathutil"
	"github.com/cuemby/drp/pkg/protocol"
)

// copyOutOverhead bounds the response envelope around the file content:
// request type, payload header, success flag and content header.
const copyOutOverhead = 32

// handleCopyOut returns the full contents of req.Pathname. Files that would
// not fit in one response frame are refused.
func (w *Worker) handleCopyOut(logger zerolog.Logger, req *protocol.CopyOutRequest) *protocol.CopyOutResponse {
	logger = logger.With().Str("pathname", req.Pathname).Logger()

	if !pathutil.IsPathnameLocal(req.Pathname) {
		logger.Warn().Msg("Rejected copy out: non-local pathname")
		return &protocol.CopyOutResponse{Success: false}
	}

	path := w.resolve(req.Pathname)
	limit := w.frameLimit.Load() - copyOutOverhead

	info, err := os.Stat(path)
	if err != nil {
		logger.Warn().Err(err).Msg("Copy out failed: stat error")
		return &protocol.CopyOutResponse{Success: false}
	}
	if info.Size() > limit {
		logger.Warn().
			Int64("size", info.Size()).
			Int64("limit", limit).
			Msg("Copy out failed: file exceeds frame limit")
		return &protocol.CopyOutResponse{Success: false}
	}

	content, err := os.ReadFile(path)
	if err != nil {
		logger.Warn().Err(err).Msg("Copy out failed: read error")
		return &protocol.CopyOutResponse{Success: false}
	}
	// The file may have grown since the stat.
	if int64(len(content)) > limit {
		logger.Warn().
			Int("size", len(content)).
			Int64("limit", limit).
			Msg("Copy out failed: file exceeds frame limit")
		return &protocol.CopyOutResponse{Success: false}
	}

	metrics.TransferBytesTotal.WithLabelValues("out").Add(float64(len(content)))
	logger.Debug().Int("bytes", len(content)).Msg("Copied file out")

	return &protocol.CopyOutResponse{Success: true, Content: content}
}
