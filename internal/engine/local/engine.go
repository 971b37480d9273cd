// Package local is the in-process execution engine. Tables live in Arrow
// memory; each handle gets a session with its own dispatcher goroutine, so
// work against one handle runs one call at a time in submission order.
package local

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/google/uuid"
	"github.com/paveg/teide/internal/config"
	"github.com/paveg/teide/internal/engine"
	"github.com/paveg/teide/internal/errors"
	teideio "github.com/paveg/teide/internal/io"
	teidemem "github.com/paveg/teide/internal/memory"
	"github.com/paveg/teide/internal/monitoring"
	"github.com/paveg/teide/internal/parallel"
	"github.com/paveg/teide/internal/plan"
	"go.uber.org/atomic"
)

// Engine implements engine.Engine on Arrow arrays.
type Engine struct {
	cfg     config.Config
	mem     memory.Allocator
	tracker *teidemem.TrackingAllocator
	logger  *slog.Logger
	metrics *monitoring.MetricsCollector

	mu       sync.Mutex
	sessions map[string]*session
}

var _ engine.Engine = (*Engine)(nil)

// Option configures an Engine.
type Option func(*Engine)

// WithConfig sets the engine configuration. Zero values take defaults.
func WithConfig(cfg config.Config) Option {
	return func(e *Engine) {
		e.cfg = cfg.WithDefaults()
	}
}

// WithAllocator sets the allocator for every table the engine builds.
func WithAllocator(mem memory.Allocator) Option {
	return func(e *Engine) {
		e.mem = mem
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMetrics sets the collector that records reads and plans.
func WithMetrics(mc *monitoring.MetricsCollector) Option {
	return func(e *Engine) {
		e.metrics = mc
	}
}

// New creates an engine. Without options it uses the global configuration,
// the default allocator and slog.Default().
func New(opts ...Option) *Engine {
	e := &Engine{
		cfg:      config.GetGlobalConfig().WithDefaults(),
		mem:      memory.DefaultAllocator,
		logger:   slog.Default(),
		sessions: make(map[string]*session),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = monitoring.NewMetricsCollector(e.cfg.MetricsCollection, nil)
	}
	e.tracker = teidemem.NewTrackingAllocator(e.mem)
	e.mem = e.tracker
	return e
}

// Metrics returns the engine's collector.
func (e *Engine) Metrics() *monitoring.MetricsCollector {
	return e.metrics
}

// MemoryStats reports the Arrow memory held by tables across all sessions.
func (e *Engine) MemoryStats() teidemem.Stats {
	return e.tracker.Stats()
}

func (e *Engine) observeMemory() {
	e.metrics.Engine().SetBytesInUse(e.tracker.InUse())
}

type handle string

func (h handle) ID() string { return string(h) }

type session struct {
	id       string
	owner    *Engine
	dispatch *parallel.Dispatcher
	exec     *executor
	released atomic.Bool

	mu     sync.Mutex
	tables []*table
}

// register wraps f in a table owned by the session.
func (s *session) register(f *frame) *table {
	t := newTable(s, f)
	s.mu.Lock()
	s.tables = append(s.tables, t)
	s.mu.Unlock()
	return t
}

// close rejects new work, lets queued work finish (it observes the released
// flag and fails fast), then frees every table.
func (s *session) close() {
	s.released.Store(true)
	s.dispatch.Close()

	s.mu.Lock()
	for _, t := range s.tables {
		t.release()
	}
	s.tables = nil
	s.mu.Unlock()

	s.exec.pool.Close()
}

// CreateHandle opens a session.
func (e *Engine) CreateHandle() (engine.Handle, error) {
	s := &session{
		id:       uuid.NewString(),
		owner:    e,
		dispatch: parallel.NewDispatcher(),
		exec: &executor{
			mem:       e.mem,
			pool:      parallel.NewWorkerPool(e.cfg.WorkerPoolSize),
			threshold: e.cfg.ParallelThreshold,
		},
	}

	e.mu.Lock()
	e.sessions[s.id] = s
	e.mu.Unlock()

	e.metrics.Engine().SessionOpened()
	e.logger.Debug("session opened", "session", s.id)
	return handle(s.id), nil
}

// Release closes the session behind h. Unknown and already released
// handles are ignored.
func (e *Engine) Release(h engine.Handle) error {
	if h == nil {
		return nil
	}
	e.mu.Lock()
	s, ok := e.sessions[h.ID()]
	delete(e.sessions, h.ID())
	e.mu.Unlock()
	if !ok {
		return nil
	}

	s.close()
	e.metrics.Engine().SessionClosed()
	e.observeMemory()
	e.logger.Debug("session released", "session", s.id)
	return nil
}

// Close releases every open session.
func (e *Engine) Close() error {
	e.mu.Lock()
	ids := make([]string, 0, len(e.sessions))
	for id := range e.sessions {
		ids = append(ids, id)
	}
	e.mu.Unlock()

	for _, id := range ids {
		if err := e.Release(handle(id)); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) session(h engine.Handle, op string) (*session, error) {
	if h == nil {
		return nil, errors.NewInvalidArgumentError(op, "handle is nil")
	}
	e.mu.Lock()
	s, ok := e.sessions[h.ID()]
	e.mu.Unlock()
	if !ok {
		return nil, errors.NewResourceReleasedError(op)
	}
	return s, nil
}

func (e *Engine) table(d engine.DataHandle, op string) (*table, error) {
	t, ok := d.(*table)
	if !ok || t == nil || t.session.owner != e {
		return nil, errors.NewInvalidArgumentError(op, "data handle was not produced by this engine")
	}
	if t.session.released.Load() || t.released.Load() {
		return nil, errors.NewResourceReleasedError(op)
	}
	return t, nil
}

// call runs fn on the session goroutine and waits.
func call(s *session, op string, fn func() (engine.DataHandle, error)) (engine.DataHandle, error) {
	d, err := parallel.Call(s.dispatch, fn)
	if stderrors.Is(err, parallel.ErrDispatcherClosed) {
		return nil, errors.NewResourceReleasedError(op)
	}
	return d, err
}

// submit queues fn on the session goroutine.
func submit(s *session, op string, fn func() (engine.DataHandle, error)) *engine.Future[engine.DataHandle] {
	fut, resolve := engine.NewFuture[engine.DataHandle]()
	if err := s.dispatch.Submit(func() { resolve(fn()) }); err != nil {
		resolve(nil, errors.NewResourceReleasedError(op))
	}
	return fut
}

// ReadSource reads a file or object into a new table.
func (e *Engine) ReadSource(h engine.Handle, path string) (engine.DataHandle, error) {
	s, err := e.session(h, "ReadSource")
	if err != nil {
		return nil, err
	}
	return call(s, "ReadSource", func() (engine.DataHandle, error) { return e.readSource(s, path) })
}

// ReadSourceAsync is ReadSource without waiting.
func (e *Engine) ReadSourceAsync(h engine.Handle, path string) *engine.Future[engine.DataHandle] {
	s, err := e.session(h, "ReadSource")
	if err != nil {
		return engine.Failed[engine.DataHandle](err)
	}
	return submit(s, "ReadSource", func() (engine.DataHandle, error) { return e.readSource(s, path) })
}

// Materialize applies ops to d and returns the result as a new table.
func (e *Engine) Materialize(d engine.DataHandle, ops []plan.Operation) (engine.DataHandle, error) {
	t, err := e.table(d, "Materialize")
	if err != nil {
		return nil, err
	}
	return call(t.session, "Materialize", func() (engine.DataHandle, error) { return e.materialize(t, ops) })
}

// MaterializeAsync is Materialize without waiting.
func (e *Engine) MaterializeAsync(d engine.DataHandle, ops []plan.Operation) *engine.Future[engine.DataHandle] {
	t, err := e.table(d, "Materialize")
	if err != nil {
		return engine.Failed[engine.DataHandle](err)
	}
	return submit(t.session, "Materialize", func() (engine.DataHandle, error) { return e.materialize(t, ops) })
}

func (e *Engine) sourceOptions() teideio.SourceOptions {
	opts := teideio.DefaultSourceOptions()
	opts.CSV.Delimiter = e.cfg.Delimiter()
	opts.CSV.Header = !e.cfg.CSVNoHeader
	opts.CSV.NullValue = e.cfg.CSVNullValue
	opts.CSV.MaxSymEntries = e.cfg.MaxSymEntries
	opts.Parquet.MaxSymEntries = e.cfg.MaxSymEntries
	opts.JSON.MaxSymEntries = e.cfg.MaxSymEntries
	opts.ObjectStore = teideio.ObjectStoreConfig{
		Endpoint:  e.cfg.S3Endpoint,
		Region:    e.cfg.S3Region,
		AccessKey: e.cfg.S3AccessKey,
		SecretKey: e.cfg.S3SecretKey,
		UseSSL:    e.cfg.S3UseSSL,
	}
	return opts
}

func (e *Engine) readSource(s *session, path string) (engine.DataHandle, error) {
	if s.released.Load() {
		return nil, errors.NewResourceReleasedError("ReadSource")
	}

	start := time.Now()
	var t *table
	err := e.metrics.RecordOperation("read_source", func() (int64, error) {
		rec, err := teideio.ReadFile(context.Background(), path, e.sourceOptions(), e.mem)
		if err != nil {
			return 0, err
		}
		defer rec.Release()
		t = s.register(frameFromRecord(rec))
		return rec.NumRows(), nil
	})
	if err != nil {
		e.logger.Debug("source read failed", "session", s.id, "path", path, "error", err)
		return nil, errors.NewEngineError("ReadSource", fmt.Sprintf("cannot read %s", path), err)
	}
	e.observeMemory()

	e.logger.Debug("source read",
		"session", s.id,
		"path", path,
		"rows", t.RowCount(),
		"columns", t.ColumnCount(),
		"duration", time.Since(start))
	return t, nil
}

func (e *Engine) materialize(t *table, ops []plan.Operation) (engine.DataHandle, error) {
	s := t.session
	if s.released.Load() || t.released.Load() {
		return nil, errors.NewResourceReleasedError("Materialize")
	}
	for _, op := range ops {
		if err := plan.Validate(op); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	pb := monitoring.NewPlanBuilder()
	var result *frame
	err := e.metrics.RecordOperation("materialize", func() (int64, error) {
		cur := t.frame.share()
		for _, op := range ops {
			stepStart := time.Now()
			next, err := s.exec.apply(cur, op)
			if err != nil {
				cur.release()
				return 0, errors.NewEngineError("Materialize", fmt.Sprintf("%s failed", op), err)
			}
			pb.AddOperation(op.Kind().String(), op.String(), int64(cur.rows), int64(next.rows), time.Since(stepStart))
			cur.release()
			cur = next
		}
		result = cur
		return int64(cur.rows), nil
	})
	if err != nil {
		e.logger.Debug("materialize failed", "session", s.id, "ops", len(ops), "error", err)
		return nil, err
	}

	e.metrics.RecordPlan(pb.Build(int64(result.rows)))
	e.observeMemory()
	out := s.register(result)
	e.logger.Debug("plan materialized",
		"session", s.id,
		"ops", len(ops),
		"rows", result.rows,
		"duration", time.Since(start))
	return out, nil
}
