package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/drp/pkg/api"
	"github.com/cuemby/drp/pkg/config"
	"github.com/cuemby/drp/pkg/log"
	"github.com/cuemby/drp/pkg/worker"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "drp-worker",
	Short: "DRP worker - runs jobs for a DRP controller",
	Long: `drp-worker connects to a DRP controller (or a proxy in front of it)
and serves its requests until the controller closes the connection:
files are copied into the work directory, programs from it are executed,
and result files are copied back.

The worker exits 0 when the controller hangs up or on SIGINT/SIGTERM,
and 1 when it cannot connect or the connection fails.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runWorker,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"drp-worker version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	flags := rootCmd.Flags()
	flags.String("config", "", "Path to a YAML config file")
	flags.String("env-file", "", "Path to a dotenv file with DRP_* variables")
	flags.String("controller", "", "Controller address (host[:port], or a tcp://, grpc://, ws:// or wss:// URL)")
	flags.Int("port", 0, "Controller port when the address names none")
	flags.String("work-dir", "", "Directory worker pathnames resolve against (may contain %d)")
	flags.Int("worker-index", -1, "Value substituted for %d in --work-dir")
	flags.Duration("dial-timeout", 0, "Bound on resolving and connecting to the controller")
	flags.Uint32("max-frame-size", 0, "Largest frame in bytes sent or accepted (0 = 256 MiB)")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.Bool("log-json", false, "Output logs in JSON format")
	flags.String("metrics-addr", "", "Address for /health, /ready and /metrics (empty disables)")
}

// loadConfig layers defaults, the config file, DRP_* variables (process
// environment, then --env-file) and flags
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()

	path, _ := flags.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	envFile, _ := flags.GetString("env-file")
	lookup, err := config.EnvLookup(envFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(lookup); err != nil {
		return nil, err
	}

	if flags.Changed("controller") {
		cfg.Controller, _ = flags.GetString("controller")
	}
	if flags.Changed("port") {
		cfg.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("work-dir") {
		cfg.WorkDir, _ = flags.GetString("work-dir")
	}
	if flags.Changed("worker-index") {
		cfg.WorkerIndex, _ = flags.GetInt("worker-index")
	}
	if flags.Changed("dial-timeout") {
		cfg.DialTimeout, _ = flags.GetDuration("dial-timeout")
	}
	if flags.Changed("max-frame-size") {
		cfg.MaxFrameSize, _ = flags.GetUint32("max-frame-size")
	}
	if flags.Changed("log-level") {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-json") {
		cfg.Log.JSON, _ = flags.GetBool("log-json")
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr, _ = flags.GetString("metrics-addr")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}

	log.Init(log.Config{
		Level:      log.ParseLevel(cfg.Log.Level),
		JSONOutput: cfg.Log.JSON,
	})
	logger := log.WithComponent("main")

	w, err := worker.NewWorker(&worker.Config{
		Controller:   cfg.Controller,
		Port:         cfg.Port,
		WorkDir:      cfg.ResolvedWorkDir(),
		DialTimeout:  cfg.DialTimeout,
		MaxFrameSize: cfg.MaxFrameSize,
		Stdout:       os.Stdout,
		Stderr:       os.Stderr,
	})
	if err != nil {
		log.Errorf("Failed to create worker", err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		api.Version = Version
		hs := api.NewHealthServer(w)
		go func() {
			logger.Info().Str("addr", cfg.MetricsAddr).Msg("Status server listening")
			if err := hs.Start(cfg.MetricsAddr); err != nil {
				logger.Warn().Err(err).Msg("Status server stopped")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = hs.Shutdown(shutdownCtx)
		}()
	}

	logger.Info().
		Str("version", Version).
		Str("work_dir", w.WorkDir()).
		Msg("Starting worker")

	err = w.Run(ctx)
	switch {
	case err == nil:
		log.Info("Controller closed the connection, exiting")
		return nil
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		log.Info("Shutdown signal received, exiting")
		return nil
	default:
		logger.Error().Err(err).Str("state", w.Status()).Msg("Worker failed")
		return err
	}
}
