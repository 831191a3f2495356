package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/devbridge/internal/event"
	"github.com/roach88/devbridge/internal/project"
	"github.com/roach88/devbridge/internal/registry"
	"github.com/roach88/devbridge/internal/resolver"
	"github.com/roach88/devbridge/internal/search"
	"github.com/roach88/devbridge/internal/store"
)

// ListenHost is the only interface the bridge binds to.
const ListenHost = "127.0.0.1"

// ListenError reports that the bridge could not bind its port.
type ListenError struct {
	Addr string
	Err  error
}

func (e *ListenError) Error() string { return fmt.Sprintf("listen on %s: %v", e.Addr, e.Err) }
func (e *ListenError) Unwrap() error { return e.Err }

// StopReason tells the caller why a bridge run ended.
type StopReason int

const (
	// StopCanceled means the run context was canceled.
	StopCanceled StopReason = iota
	// StopReload means a reload event was received; the caller should
	// start the bridge again.
	StopReload
)

func (r StopReason) String() string {
	switch r {
	case StopCanceled:
		return "canceled"
	case StopReload:
		return "reload"
	default:
		return "StopReason(" + strconv.Itoa(int(r)) + ")"
	}
}

// Serve accepts connections on ln until ctx is done or a Reload event is
// published on the bus, then shuts down gracefully: no new connections
// are accepted and requests already in flight run to completion.
//
// Ready is published once the accept loop is live. Serve never cancels
// request contexts.
func (s *Server) Serve(ctx context.Context, ln net.Listener) (StopReason, error) {
	sub := s.bus.Subscribe()
	defer sub.Close()

	srv := &http.Server{
		Handler:  s.engine,
		ErrorLog: slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	reason := StopCanceled
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		e, err := event.WaitFor(gctx, sub, event.IsReload)
		if err == nil {
			reason = StopReload
			s.logger.Info("reload requested, draining", "event", e.String())
		}
		// Shutdown waits for in-flight requests without a deadline.
		if err := srv.Shutdown(context.WithoutCancel(ctx)); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	addr := ln.Addr().String()
	s.logger.Info("bridge listening", "addr", addr)
	s.bus.Publish(event.Ready{Addr: addr})

	if err := g.Wait(); err != nil {
		return reason, err
	}
	return reason, nil
}

// Run is one lifetime of the bridge: it opens the store, starts the
// resolver proxy, serves until ctx is done or a reload arrives, then
// closes the proxy and the store and publishes Stopped.
//
// Errors opening the store (including *store.StartupError) are returned
// before anything is served.
func Run(ctx context.Context, cfg *project.Config, bus *event.Bus, logger *slog.Logger) (StopReason, error) {
	if logger == nil {
		logger = slog.Default()
	}

	st, err := store.Open(ctx, cfg.Paths.DatabaseDir, cfg.Store)
	if err != nil {
		return StopCanceled, err
	}
	logger.Info("store ready", "path", st.Path())

	proxy, err := resolver.New(cfg.WorkerPort, cfg.Resolver, logger.With("component", "resolver"))
	if err != nil {
		return StopCanceled, errors.Join(err, st.Close())
	}

	registryPath := cfg.Paths.RegistryPath
	searcher := search.NewSearcher(func() (*registry.Registry, error) {
		return registry.Load(registryPath)
	}, st, cfg.Search.MaxLimit, logger.With("component", "search"))

	srv := NewServer(Deps{
		Executor: st,
		Searcher: searcher,
		Invoker:  proxy,
		Bus:      bus,
		Logger:   logger.With("component", "router"),
	})

	addr := net.JoinHostPort(ListenHost, strconv.Itoa(cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return StopCanceled, errors.Join(&ListenError{Addr: addr, Err: err}, proxy.Close(), st.Close())
	}

	reason, serveErr := srv.Serve(ctx, ln)

	// The pool closes only after every in-flight request has returned.
	closeErr := errors.Join(proxy.Close(), st.Close())
	bus.Publish(event.Stopped{})
	logger.Info("bridge stopped", "reason", reason.String())

	return reason, errors.Join(serveErr, closeErr)
}
