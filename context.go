package teide

import (
	"fmt"
	"log/slog"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/teide/internal/config"
	"github.com/paveg/teide/internal/engine"
	"github.com/paveg/teide/internal/engine/local"
	"github.com/paveg/teide/internal/errors"
	"github.com/paveg/teide/internal/monitoring"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"
)

// Context is a live engine session. Every RowSet, Query and Column derived
// from it stays usable until Release.
//
// A Context is safe for concurrent use; the engine serialises the work
// submitted against it.
type Context struct {
	eng      *local.Engine
	h        engine.Handle
	logger   *slog.Logger
	released atomic.Bool
}

type settings struct {
	cfg        config.Config
	configFile string
	logger     *slog.Logger
	mem        memory.Allocator
	registerer prometheus.Registerer
}

// Option configures New.
type Option func(*settings)

// WithConfig replaces the global configuration for this Context.
func WithConfig(cfg Config) Option {
	return func(s *settings) { s.cfg = cfg }
}

// WithConfigFile loads the configuration from a .json, .yaml or .yml file.
// It takes precedence over WithConfig.
func WithConfigFile(path string) Option {
	return func(s *settings) { s.configFile = path }
}

// WithLogger sets the logger for the Context and its engine.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithAllocator sets the Arrow allocator behind every table.
func WithAllocator(mem memory.Allocator) Option {
	return func(s *settings) { s.mem = mem }
}

// WithRegisterer exports engine metrics to reg and enables the in-process
// operation summary.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *settings) { s.registerer = reg }
}

// New opens a Context on the local engine.
func New(opts ...Option) (*Context, error) {
	s := settings{cfg: config.GetGlobalConfig(), logger: slog.Default()}
	for _, opt := range opts {
		opt(&s)
	}
	if s.configFile != "" {
		cfg, err := config.LoadFromFile(s.configFile)
		if err != nil {
			return nil, err
		}
		s.cfg = cfg
	}
	cfg := s.cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errors.NewInvalidArgumentError("New", fmt.Sprintf("invalid configuration: %v", err))
	}

	engOpts := []local.Option{local.WithConfig(cfg), local.WithLogger(s.logger)}
	if s.mem != nil {
		engOpts = append(engOpts, local.WithAllocator(s.mem))
	}
	if s.registerer != nil {
		mc := monitoring.NewMetricsCollector(true, monitoring.NewEngineMetrics(s.registerer))
		engOpts = append(engOpts, local.WithMetrics(mc))
	}

	eng := local.New(engOpts...)
	h, err := eng.CreateHandle()
	if err != nil {
		return nil, errors.NewEngineError("New", "cannot open engine session", err)
	}
	return &Context{eng: eng, h: h, logger: s.logger}, nil
}

// check fails once the Context is released. It never touches the engine.
func (c *Context) check(op string) error {
	if c.released.Load() {
		return errors.NewResourceReleasedError(op)
	}
	return nil
}

// Released reports whether Release has been called.
func (c *Context) Released() bool {
	return c.released.Load()
}

// Release frees the session and every table read or materialized through
// it. Calling it again does nothing.
func (c *Context) Release() error {
	if c.released.Swap(true) {
		return nil
	}
	c.logger.Debug("context released", "session", c.h.ID())
	return c.eng.Release(c.h)
}

// ReadSource reads a CSV, Parquet or JSON file, or an s3:// object.
func (c *Context) ReadSource(path string) (*RowSet, error) {
	if err := c.check("ReadSource"); err != nil {
		return nil, err
	}
	d, err := c.eng.ReadSource(c.h, path)
	if err != nil {
		return nil, err
	}
	return c.wrap(d), nil
}

// ReadSourceAsync is ReadSource without waiting. On a released Context the
// returned Future has already failed.
func (c *Context) ReadSourceAsync(path string) *Future[*RowSet] {
	if err := c.check("ReadSource"); err != nil {
		return engine.Failed[*RowSet](err)
	}
	return engine.Then(c.eng.ReadSourceAsync(c.h, path), c.adopt)
}

// Metrics summarises the operations run so far. It is empty unless metrics
// collection is enabled by configuration or WithRegisterer.
func (c *Context) Metrics() MetricsSummary {
	return c.eng.Metrics().GetSummary()
}

// LastPlan returns the per-operation breakdown of the most recent
// materialization.
func (c *Context) LastPlan() (QueryPlan, bool) {
	return c.eng.Metrics().LastPlan()
}

// MemoryStats reports the Arrow memory held by tables of this Context. It is
// zero once the Context is released.
func (c *Context) MemoryStats() MemoryStats {
	return c.eng.MemoryStats()
}

func (c *Context) wrap(d engine.DataHandle) *RowSet {
	return &RowSet{ctx: c, data: d}
}

func (c *Context) adopt(d engine.DataHandle) (*RowSet, error) {
	return c.wrap(d), nil
}
