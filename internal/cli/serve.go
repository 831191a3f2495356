package cli

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/roach88/devbridge/internal/bridge"
	"github.com/roach88/devbridge/internal/event"
	"github.com/roach88/devbridge/internal/project"
	"github.com/roach88/devbridge/internal/store"
)

// ReloadSignalPath is the Reload path used when SIGHUP triggers a restart.
const ReloadSignalPath = "signal"

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	ProjectDir string
	Port       int
	WorkerPort int
	ConfigPath string
	Trace      bool

	// Bus allows injecting the event bus (for testing).
	// If nil, a new bus is created per command run.
	Bus *event.Bus
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return newServeCommand(&ServeOptions{RootOptions: rootOpts})
}

func newServeCommand(opts *ServeOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the local development bridge",
		Long: `Start the bridge for the project containing the working directory
(or --project-dir). The bridge listens on 127.0.0.1 and forwards resolver
invocations to the worker pool on --worker-port.

SIGHUP restarts the bridge with freshly loaded configuration after in-flight
requests finish. SIGINT and SIGTERM stop it.

Example:
  devbridge serve
  devbridge serve --project-dir ./app --port 4500 --worker-port 4501 --trace`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ProjectDir, "project-dir", "", "directory to search for the project (default: working directory)")
	cmd.Flags().IntVar(&opts.Port, "port", project.DefaultPort, "bridge listen port on 127.0.0.1 (0 picks a free port)")
	cmd.Flags().IntVar(&opts.WorkerPort, "worker-port", project.DefaultWorkerPort, "port of the resolver worker pool")
	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "bridge config file (default: grafbase/"+project.ConfigFileName+")")
	cmd.Flags().BoolVar(&opts.Trace, "trace", false, "log request and response payloads")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	logLevel := slog.LevelInfo
	if opts.Verbose || opts.Trace {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	}))
	gin.SetMode(gin.ReleaseMode)

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	bus := opts.Bus
	if bus == nil {
		bus = event.NewBus()
	}

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	go func() {
		for {
			select {
			case sig := <-sigChan:
				if sig == syscall.SIGHUP {
					logger.Info("received SIGHUP, reloading")
					bus.Publish(event.Reload{Path: ReloadSignalPath})
					continue
				}
				logger.Info("received signal, shutting down", "signal", sig)
				cancel()
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	notices := bus.Subscribe()
	forwarded := make(chan struct{})
	go func() {
		defer close(forwarded)
		forwardNotices(notices, out, logger)
	}()
	defer func() {
		notices.Close()
		<-forwarded
	}()

	for {
		cfg, err := buildConfig(opts, cmd, out, logger)
		if err != nil {
			return err
		}

		logger.Info("starting bridge", "project", cfg.Paths.Root, "port", cfg.Port, "worker_port", cfg.WorkerPort)
		reason, err := bridge.Run(ctx, cfg, bus, logger)
		if err != nil {
			if isStartupError(err) {
				return WrapExitError(ExitCommandError, "failed to start bridge", err)
			}
			return WrapExitError(ExitFailure, "bridge error", err)
		}
		if reason != bridge.StopReload || ctx.Err() != nil {
			logger.Info("bridge stopped gracefully")
			return nil
		}
		logger.Info("restarting bridge")
	}
}

// buildConfig resolves the project and loads a fresh configuration.
// Flags override the config file only when set explicitly.
func buildConfig(opts *ServeOptions, cmd *cobra.Command, out *OutputFormatter, logger *slog.Logger) (*project.Config, error) {
	start := opts.ProjectDir
	if start == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to resolve working directory", err)
		}
		start = wd
	}

	paths, warnings, err := project.Discover(start)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to find project", err)
	}
	for _, w := range warnings {
		logger.Warn(w.Message, "hint", w.Hint)
		if err := out.Notify(Notice{Event: "warning", Error: w.Message, Hint: w.Hint}); err != nil {
			logger.Warn("failed to write notice", "error", err)
		}
	}

	configPath, explicit := opts.ConfigPath, opts.ConfigPath != ""
	if !explicit {
		configPath = paths.ConfigPath()
	}

	var overrides project.Overrides
	if cmd.Flags().Changed("port") {
		overrides.Port = &opts.Port
	}
	if cmd.Flags().Changed("worker-port") {
		overrides.WorkerPort = &opts.WorkerPort
	}

	cfg, err := project.Load(paths, configPath, explicit, overrides)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	return cfg, nil
}

// forwardNotices reports lifecycle events to the supervising process until
// sub is closed and drained.
func forwardNotices(sub *event.Subscription, out *OutputFormatter, logger *slog.Logger) {
	for {
		e, err := sub.Next(context.Background())
		if err != nil {
			return
		}

		var n Notice
		switch ev := e.(type) {
		case event.Ready:
			n = Notice{Event: "ready", Addr: ev.Addr}
		case event.Reload:
			n = Notice{Event: "reload", Path: ev.Path}
		case event.Stopped:
			n = Notice{Event: "stopped"}
		default:
			continue
		}
		if err := out.Notify(n); err != nil {
			logger.Warn("failed to write notice", "error", err)
		}
	}
}

// isStartupError reports failures that prevented the bridge from serving.
func isStartupError(err error) bool {
	var se *store.StartupError
	var le *bridge.ListenError
	return errors.As(err, &se) || errors.Is(err, store.ErrLocked) || errors.As(err, &le)
}
