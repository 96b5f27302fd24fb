package worker

import (
	"os"
	"runtime"

	"github.com/rs/zerolog"

	"github.com/cuemby/drp/pkg/protocol"
)

// unknownHostname is reported when the OS will not give a hostname
const unknownHostname = "unknown"

// handleWelcome reports the worker's hostname and logical CPU count
func (w *Worker) handleWelcome(logger zerolog.Logger, _ *protocol.WelcomeRequest) *protocol.WelcomeResponse {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		logger.Warn().Err(err).Msg("Failed to read hostname")
		hostname = unknownHostname
	}

	resp := &protocol.WelcomeResponse{
		Hostname:  hostname,
		CoreCount: uint32(runtime.NumCPU()),
	}

	logger.Info().
		Str("hostname", resp.Hostname).
		Uint32("core_count", resp.CoreCount).
		Msg("Welcomed by controller")

	return resp
}
