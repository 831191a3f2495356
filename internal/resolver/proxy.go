// Package resolver forwards custom resolver invocations to the external
// worker pool.
//
// Invocations pass through a bounded channel: when it is full, Invoke
// blocks the caller until a slot frees. A dispatcher drains the channel
// into a fixed-size goroutine pool that performs the HTTP forwarding.
// The proxy never retries.
package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/roach88/devbridge/internal/project"
)

// InvokePath is the worker endpoint receiving invocations.
const InvokePath = "/invoke"

// releaseTimeout bounds how long Close waits for pool workers to exit.
const releaseTimeout = 3 * time.Second

// invocation is the body sent to the worker.
type invocation struct {
	ResolverName string          `json:"resolver_name"`
	Payload      json.RawMessage `json:"payload"`
}

type job struct {
	ctx     context.Context
	name    string
	payload json.RawMessage
	result  chan result // buffered, size 1
}

type result struct {
	value json.RawMessage
	err   error
}

// Proxy forwards resolver invocations to a worker on 127.0.0.1.
// Safe for concurrent use.
type Proxy struct {
	endpoint string
	timeout  time.Duration
	client   *http.Client
	logger   *slog.Logger

	jobs chan job
	pool *ants.Pool
	quit chan struct{}
	done chan struct{}

	mu      sync.RWMutex
	closed  bool
	pending sync.WaitGroup
}

// New starts a proxy forwarding to the worker at workerPort.
func New(workerPort int, cfg project.ResolverConfig, logger *slog.Logger) (*Proxy, error) {
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := ants.NewPool(max(cfg.Workers, 1), ants.WithPanicHandler(func(v any) {
		logger.Error("resolver forward panic", "panic", v)
	}))
	if err != nil {
		return nil, fmt.Errorf("create resolver pool: %w", err)
	}

	p := &Proxy{
		endpoint: "http://127.0.0.1:" + strconv.Itoa(workerPort) + InvokePath,
		timeout:  cfg.Timeout,
		client:   &http.Client{},
		logger:   logger,
		jobs:     make(chan job, max(cfg.QueueSize, 1)),
		pool:     pool,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go p.dispatch()
	return p, nil
}

// Invoke forwards one invocation and waits for the worker's JSON result.
//
// Blocks while the invocation channel is full. Every failure is an
// *InvocationError naming the resolver.
func (p *Proxy) Invoke(ctx context.Context, name string, payload json.RawMessage) (json.RawMessage, error) {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return nil, &InvocationError{Resolver: name, Err: ErrClosed}
	}
	p.pending.Add(1)
	p.mu.RUnlock()
	defer p.pending.Done()

	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	j := job{ctx: ctx, name: name, payload: payload, result: make(chan result, 1)}

	select {
	case p.jobs <- j:
	case <-ctx.Done():
		return nil, &InvocationError{Resolver: name, Err: ctx.Err()}
	}

	select {
	case r := <-j.result:
		return r.value, r.err
	case <-ctx.Done():
		return nil, &InvocationError{Resolver: name, Err: ctx.Err()}
	}
}

// Close stops accepting invocations, waits for the ones already accepted
// to finish, and releases the worker pool.
func (p *Proxy) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.pending.Wait()
	close(p.quit)
	<-p.done
	return p.pool.ReleaseTimeout(releaseTimeout)
}

// dispatch moves jobs from the channel into the pool. Submit blocks while
// every pool worker is busy, which in turn lets the channel fill up.
func (p *Proxy) dispatch() {
	defer close(p.done)
	for {
		select {
		case j := <-p.jobs:
			if err := p.pool.Submit(func() { j.result <- p.forward(j) }); err != nil {
				j.result <- result{err: &InvocationError{Resolver: j.name, Err: err}}
			}
		case <-p.quit:
			return
		}
	}
}

func (p *Proxy) forward(j job) result {
	start := time.Now()
	value, status, err := p.roundTrip(j)
	if err != nil {
		p.logger.Debug("resolver invocation failed",
			"resolver", j.name, "status", status, "duration", time.Since(start), "error", err)
		return result{err: &InvocationError{Resolver: j.name, Status: status, Err: err}}
	}
	p.logger.Debug("resolver invocation", "resolver", j.name, "duration", time.Since(start))
	return result{value: value}
}

func (p *Proxy) roundTrip(j job) (json.RawMessage, int, error) {
	ctx := j.ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	body, err := json.Marshal(invocation{ResolverName: j.name, Payload: j.payload})
	if err != nil {
		return nil, 0, fmt.Errorf("encode invocation: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp.StatusCode, fmt.Errorf("worker failed: %s", bytes.TrimSpace(data))
	}

	value, err := singleJSON(data)
	if err != nil {
		return nil, 0, err
	}
	return value, 0, nil
}

// singleJSON returns data if it holds exactly one JSON value.
func singleJSON(data []byte) (json.RawMessage, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("empty response")
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	var value json.RawMessage
	if err := dec.Decode(&value); err != nil {
		return nil, fmt.Errorf("malformed response: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("malformed response: trailing data after JSON value")
	}
	return value, nil
}
