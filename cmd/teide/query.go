package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/paveg/teide"
	"github.com/paveg/teide/internal/config"
	"github.com/paveg/teide/internal/expr"
	"github.com/paveg/teide/internal/plan"
	"github.com/spf13/cobra"
)

type queryOptions struct {
	outputOptions
	filters  []string
	planFile string
	group    []string
	aggs     []string
	sorts    []string
	head     int
	headSet  bool
}

func newQueryCmd() *cobra.Command {
	o := &queryOptions{}
	cmd := &cobra.Command{
		Use:   "query <source>",
		Short: "Read a source, apply operations and print the result",
		Long: `Read a CSV, Parquet or JSON file (or an s3://bucket/key object), apply the
operations given by flags and print the materialized table.

Operations run in this order: the --plan file, every --filter, the
--group/--agg step, the --sort keys, then --head.`,
		Example: `  teide query sales.csv --filter "qty>2" --group region --agg sum:qty --sort qty:desc
  teide query events.parquet --plan plan.json --format csv
  teide query sales.csv --filter 'region=="north"' --head 5 --explain`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o.headSet = cmd.Flags().Changed("head")
			source := args[0]
			return run(cmd.OutOrStdout(), cmd.ErrOrStderr(), &o.outputOptions, source,
				func(ctx *teide.Context) (*teide.Query, error) {
					rows, err := ctx.ReadSource(source)
					if err != nil {
						return nil, err
					}
					return buildQuery(rows, o)
				})
		},
	}

	f := cmd.Flags()
	f.StringArrayVar(&o.filters, "filter", nil, `row predicate "<col><op><value>", op one of == != > >= < <=; repeatable`)
	f.StringVar(&o.planFile, "plan", "", "JSON plan file whose operations run first")
	f.StringSliceVar(&o.group, "group", nil, "group key columns, comma separated")
	f.StringArrayVar(&o.aggs, "agg", nil, `aggregate "<op>:<col>[:<alias>]", op one of sum prod min max count avg first last; repeatable`)
	f.StringArrayVar(&o.sorts, "sort", nil, `sort key "<col>[:asc|:desc]"; repeat for secondary keys`)
	f.IntVar(&o.head, "head", 0, "keep the first n rows")
	o.bind(cmd)
	return cmd
}

// outputOptions are the flags shared by every command that prints a result.
type outputOptions struct {
	format     string
	limit      int
	explain    bool
	metrics    bool
	configFile string
	verbose    bool
}

func (o *outputOptions) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&o.format, "format", "table", "output format: table or csv")
	f.IntVar(&o.limit, "limit", 20, "rows shown in table output, -1 for all")
	f.BoolVar(&o.explain, "explain", false, "print the operations as JSON without running them")
	f.BoolVar(&o.metrics, "metrics", false, "print engine operation metrics to stderr")
	f.StringVar(&o.configFile, "config", "", "configuration file (.json, .yaml or .yml)")
	f.BoolVarP(&o.verbose, "verbose", "v", false, "debug logging to stderr")
}

// run opens a Context configured from o, builds a query on it and prints
// either its plan or its result.
func run(stdout, stderr io.Writer, o *outputOptions, label string, build func(*teide.Context) (*teide.Query, error)) error {
	if o.format != "table" && o.format != "csv" {
		return fmt.Errorf("unknown format %q (want table or csv)", o.format)
	}

	cfg, err := loadConfig(o.configFile)
	if err != nil {
		return err
	}
	if o.metrics {
		cfg.MetricsCollection = true
	}
	level := slog.LevelWarn
	if o.verbose || cfg.VerboseLogging {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	return teide.With(func(ctx *teide.Context) error {
		q, err := build(ctx)
		if err != nil {
			return err
		}

		if o.explain {
			out, err := q.Explain()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(stdout, out)
			return err
		}

		start := time.Now()
		result, err := q.Materialize()
		if err != nil {
			return err
		}
		logger.Debug("query materialized",
			"source", label,
			"ops", len(q.Operations()),
			"rows", result.NumRows(),
			"duration", time.Since(start))

		if err := writeResult(stdout, result, o); err != nil {
			return err
		}
		if o.metrics {
			printMetrics(stderr, ctx)
		}
		return nil
	}, teide.WithConfig(cfg), teide.WithLogger(logger))
}

// loadConfig layers TEIDE_* environment variables over the config file, or
// over the defaults when no file is given.
func loadConfig(path string) (config.Config, error) {
	cfg := config.GetGlobalConfig()
	if path != "" {
		var err error
		if cfg, err = config.LoadFromFile(path); err != nil {
			return config.Config{}, err
		}
	}
	return config.ApplyEnv(cfg), nil
}

func buildQuery(rows *teide.RowSet, o *queryOptions) (*teide.Query, error) {
	q := rows.Query()

	if o.planFile != "" {
		data, err := os.ReadFile(o.planFile)
		if err != nil {
			return nil, fmt.Errorf("reading plan: %w", err)
		}
		ops, err := plan.Unmarshal(data)
		if err != nil {
			return nil, fmt.Errorf("decoding plan %s: %w", o.planFile, err)
		}
		q.Append(ops...)
	}

	for _, f := range o.filters {
		pred, err := parseFilter(f)
		if err != nil {
			return nil, err
		}
		q.Filter(pred)
	}

	if len(o.group) > 0 || len(o.aggs) > 0 {
		aggs := make([]teide.Expr, 0, len(o.aggs))
		for _, a := range o.aggs {
			e, err := parseAgg(a)
			if err != nil {
				return nil, err
			}
			aggs = append(aggs, e)
		}
		q = q.GroupBy(o.group...).Agg(aggs...)
	}

	if len(o.sorts) > 0 {
		cols := make([]string, len(o.sorts))
		descs := make([]bool, len(o.sorts))
		for i, s := range o.sorts {
			col, dir, _ := strings.Cut(s, ":")
			switch strings.ToLower(dir) {
			case "", "asc":
			case "desc":
				descs[i] = true
			default:
				return nil, fmt.Errorf("sort %q: direction must be asc or desc", s)
			}
			cols[i] = col
		}
		q.SortBy(cols, descs)
	}

	if o.headSet {
		q.Head(o.head)
	}
	return q, q.Err()
}

var filterPattern = regexp.MustCompile(`^\s*([^=!<>\s]+)\s*(==|!=|>=|<=|=|>|<)\s*(.*?)\s*$`)

func parseFilter(s string) (teide.Expr, error) {
	m := filterPattern.FindStringSubmatch(s)
	if m == nil || m[3] == "" {
		return nil, fmt.Errorf("filter %q: want <col><op><value>", s)
	}
	col, value := teide.Col(m[1]), parseLiteral(m[3])
	switch m[2] {
	case "==", "=":
		return col.Eq(value), nil
	case "!=":
		return col.Ne(value), nil
	case ">":
		return col.Gt(value), nil
	case ">=":
		return col.Ge(value), nil
	case "<":
		return col.Lt(value), nil
	default:
		return col.Le(value), nil
	}
}

// parseLiteral reads quoted text as a string, then tries int, float and
// bool before falling back to the raw text.
func parseLiteral(s string) teide.Operand {
	if unq, err := strconv.Unquote(s); err == nil {
		return teide.Str(unq)
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return teide.Int(i)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return teide.Float(f)
	}
	switch s {
	case "true":
		return teide.Bool(true)
	case "false":
		return teide.Bool(false)
	}
	return teide.Str(s)
}

func parseAgg(s string) (teide.Expr, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) < 2 || parts[1] == "" {
		return nil, fmt.Errorf("agg %q: want <op>:<col>[:<alias>]", s)
	}
	op, err := expr.ParseAggOp(strings.ToLower(parts[0]))
	if err != nil {
		return nil, fmt.Errorf("agg %q: %w", s, err)
	}
	var e teide.Expr = expr.Aggregate(op, expr.Col(parts[1]))
	if len(parts) == 3 && parts[2] != "" {
		e = e.Alias(parts[2])
	}
	return e, nil
}

func writeResult(w io.Writer, rs *teide.RowSet, o *outputOptions) error {
	if o.format == "csv" {
		return rs.WriteCSV(w)
	}
	if err := rs.WriteTable(w, o.limit); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%s rows x %d columns\n", humanize.Comma(int64(rs.NumRows())), rs.NumCols())
	return err
}

func printMetrics(w io.Writer, ctx *teide.Context) {
	s := ctx.Metrics()
	fmt.Fprintf(w, "%d operations (%d failed), %s rows, %s allocated, %s\n",
		s.TotalOperations, s.Failures,
		humanize.Comma(s.TotalRows),
		humanize.Bytes(uint64(max(s.TotalMemory, 0))),
		s.TotalDuration.Round(time.Microsecond))
	fmt.Fprintf(w, "arrow memory: %s\n", ctx.MemoryStats())

	qp, ok := ctx.LastPlan()
	if !ok {
		return
	}
	tw := tablewriter.NewWriter(w)
	tw.SetHeader([]string{"step", "operation", "rows in", "rows out", "time"})
	tw.SetAutoFormatHeaders(false)
	for i, n := range qp.Operations {
		tw.Append([]string{
			strconv.Itoa(i + 1),
			n.Description,
			humanize.Comma(n.RowsIn),
			humanize.Comma(n.RowsOut),
			n.Duration.Round(time.Microsecond).String(),
		})
	}
	tw.Render()
}
