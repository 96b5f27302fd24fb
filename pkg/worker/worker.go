package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cuemby/drp/pkg/endpoint"
	"github.com/cuemby/drp/pkg/log"
	"github.com/cuemby/drp/pkg/metrics"
	"github.com/cuemby/drp/pkg/protocol"
	"github.com/cuemby/drp/pkg/transport"
)

// State is the dispatch loop state
type State int32

const (
	StateConnecting State = iota
	StateServing
	StateClosed
	StateFatal
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateServing:
		return "serving"
	case StateClosed:
		return "closed"
	case StateFatal:
		return "fatal"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Config holds worker configuration
type Config struct {
	Controller   string        // Controller or proxy address (host[:port] or a URL)
	Port         int           // Port used when Controller names none (0 = endpoint.DefaultPort)
	WorkDir      string        // Root for worker-local pathnames (empty = current directory)
	DialTimeout  time.Duration // Bound on resolution plus connect (0 = none)
	MaxFrameSize uint32        // Largest frame sent or accepted (0 = transport.DefaultMaxFrameSize)

	// Stdout and Stderr receive the output of executed programs. Nil
	// discards it.
	Stdout io.Writer
	Stderr io.Writer
}

// Worker serves one controller connection, one request at a time
type Worker struct {
	controller   string
	port         int
	workDir      string
	dialTimeout  time.Duration
	maxFrameSize uint32
	stdout       io.Writer
	stderr       io.Writer

	logger     zerolog.Logger
	state      atomic.Int32
	frameLimit atomic.Int64
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) (*Worker, error) {
	workDir := cfg.WorkDir
	if workDir == "" {
		workDir = "."
	}
	workDir, err := filepath.Abs(workDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve work directory: %w", err)
	}

	info, err := os.Stat(workDir)
	if err != nil {
		return nil, fmt.Errorf("failed to access work directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("work directory %s is not a directory", workDir)
	}

	w := &Worker{
		controller:   cfg.Controller,
		port:         cfg.Port,
		workDir:      workDir,
		dialTimeout:  cfg.DialTimeout,
		maxFrameSize: cfg.MaxFrameSize,
		stdout:       cfg.Stdout,
		stderr:       cfg.Stderr,
		logger:       log.WithComponent("worker"),
	}
	w.setState(StateConnecting)
	w.frameLimit.Store(w.configuredFrameLimit())

	return w, nil
}

// WorkDir returns the absolute directory pathnames are resolved against
func (w *Worker) WorkDir() string {
	return w.workDir
}

// State returns the current dispatch loop state
func (w *Worker) State() State {
	return State(w.state.Load())
}

// Ready reports whether the worker is serving a controller
func (w *Worker) Ready() bool {
	return w.State() == StateServing
}

// Status returns the state name for health reporting
func (w *Worker) Status() string {
	return w.State().String()
}

// configuredFrameLimit returns the frame size limit before any connection
// narrows it.
func (w *Worker) configuredFrameLimit() int64 {
	if w.maxFrameSize == 0 {
		return transport.DefaultMaxFrameSize
	}
	return int64(w.maxFrameSize)
}

func (w *Worker) setState(s State) {
	w.state.Store(int32(s))
	metrics.WorkerState.Set(float64(s))
}

// Run connects to the controller and serves it until the connection
// closes. It returns nil after a clean close by the controller, ctx.Err()
// after cancellation, and an error for any startup or transport failure.
func (w *Worker) Run(ctx context.Context) error {
	w.setState(StateConnecting)

	ep, err := endpoint.Parse(w.controller, w.port)
	if err != nil {
		w.setState(StateFatal)
		return fmt.Errorf("invalid controller address: %w", err)
	}

	w.logger.Info().Str("controller", ep.String()).Msg("Connecting to controller")

	dialer := &endpoint.Dialer{
		Timeout:      w.dialTimeout,
		MaxFrameSize: w.maxFrameSize,
	}
	conn, err := dialer.Dial(ctx, ep)
	if err != nil {
		w.setState(StateFatal)
		return err
	}

	return w.Serve(ctx, conn)
}

// Serve runs the dispatch loop on conn, which it owns and closes. Each
// request is answered before the next one is read. Cancelling ctx closes
// the connection; a handler that is already running finishes first.
func (w *Worker) Serve(ctx context.Context, conn transport.Conn) error {
	defer conn.Close()

	limit := w.configuredFrameLimit()
	if n := conn.MaxFrameSize(); n > 0 && n < limit {
		limit = n
	}
	w.frameLimit.Store(limit)

	logger := log.WithSessionID(w.logger, uuid.NewString())
	w.setState(StateServing)
	logger.Info().
		Str("peer", conn.RemoteAddr()).
		Str("work_dir", w.workDir).
		Int64("max_frame_size", limit).
		Msg("Serving controller")

	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()

	for {
		var req protocol.Request
		if err := protocol.Receive(conn, &req); err != nil {
			if ctx.Err() != nil {
				w.setState(StateClosed)
				logger.Info().Msg("Worker stopped")
				return ctx.Err()
			}
			if errors.Is(err, transport.ErrConnectionClosed) {
				w.setState(StateClosed)
				logger.Info().Msg("Controller closed the connection")
				return nil
			}
			w.setState(StateFatal)
			return fmt.Errorf("failed to receive request: %w", err)
		}

		resp := w.Handle(logger, &req)

		if err := protocol.Send(conn, resp); err != nil {
			if ctx.Err() != nil {
				w.setState(StateClosed)
				return ctx.Err()
			}
			w.setState(StateFatal)
			return fmt.Errorf("failed to send %s response: %w", req.RequestType, err)
		}
	}
}

// Handle routes req to its handler and returns the response. The
// response always carries req.RequestType.
func (w *Worker) Handle(logger zerolog.Logger, req *protocol.Request) *protocol.Response {
	timer := metrics.NewTimer()
	logger = log.WithRequestType(logger, req.RequestType)

	if !req.RequestType.Known() {
		logger.Warn().Msg("Unknown request type")
		metrics.RequestsTotal.WithLabelValues("unknown", metrics.OutcomeRejected).Inc()
		return protocol.NewErrorResponse(req.RequestType,
			fmt.Sprintf("unknown request type %d", int32(req.RequestType)))
	}
	if req.Payload != nil && req.Payload.Kind() != req.RequestType {
		logger.Warn().Stringer("payload", req.Payload.Kind()).Msg("Payload does not match request type")
		metrics.RequestsTotal.WithLabelValues(req.RequestType.String(), metrics.OutcomeRejected).Inc()
		return protocol.NewErrorResponse(req.RequestType, "payload does not match request type")
	}

	var (
		payload protocol.ResponsePayload
		ok      bool
	)
	switch req.RequestType {
	case protocol.RequestTypeWelcome:
		resp := w.handleWelcome(logger, payloadOf[protocol.WelcomeRequest](req.Payload))
		payload, ok = resp, true
	case protocol.RequestTypeCopyIn:
		resp := w.handleCopyIn(logger, payloadOf[protocol.CopyInRequest](req.Payload))
		payload, ok = resp, resp.Success
	case protocol.RequestTypeExecute:
		resp := w.handleExecute(logger, payloadOf[protocol.ExecuteRequest](req.Payload))
		payload, ok = resp, resp.Status == 0
	case protocol.RequestTypeCopyOut:
		resp := w.handleCopyOut(logger, payloadOf[protocol.CopyOutRequest](req.Payload))
		payload, ok = resp, resp.Success
	}

	outcome := metrics.OutcomeSuccess
	if !ok {
		outcome = metrics.OutcomeFailure
	}
	metrics.RequestsTotal.WithLabelValues(req.RequestType.String(), outcome).Inc()
	timer.ObserveDurationVec(metrics.RequestDuration, req.RequestType.String())

	logger.Debug().
		Str("outcome", outcome).
		Dur("duration", timer.Duration()).
		Msg("Handled request")

	return protocol.NewResponse(req.RequestType, payload)
}

// payloadOf returns p as *T, or a zero-valued *T when the request carried
// no payload.
func payloadOf[T any, PT interface {
	*T
	protocol.RequestPayload
}](p protocol.RequestPayload) PT {
	if v, ok := p.(PT); ok && any(v) != any((*T)(nil)) {
		return v
	}
	return PT(new(T))
}

// resolve maps a local pathname into the work directory
func (w *Worker) resolve(pathname string) string {
	return filepath.Join(w.workDir, pathname)
}
