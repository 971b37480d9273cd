package main

import (
	"maps"
	"slices"

	"github.com/paveg/teide"
	"github.com/spf13/cobra"
)

func newSQLCmd() *cobra.Command {
	o := &outputOptions{}
	var tables map[string]string
	cmd := &cobra.Command{
		Use:   "sql <statement>",
		Short: "Run a SELECT statement",
		Long: `Compile a SELECT statement into query operations and print the result.

FROM takes a quoted path ('sales.csv') or a table name bound with --table.
Supported clauses: WHERE, GROUP BY, HAVING, ORDER BY and LIMIT. Without
GROUP BY or an aggregate the statement must select *.`,
		Example: `  teide sql "SELECT * FROM 'sales.csv' WHERE qty > 2 ORDER BY price DESC LIMIT 5"
  teide sql --table s=sales.parquet "SELECT region, sum(qty) AS total FROM s GROUP BY region"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stmt := args[0]
			return run(cmd.OutOrStdout(), cmd.ErrOrStderr(), o, stmt,
				func(ctx *teide.Context) (*teide.Query, error) {
					bound := make(map[string]*teide.RowSet, len(tables))
					for _, name := range slices.Sorted(maps.Keys(tables)) {
						rs, err := ctx.ReadSource(tables[name])
						if err != nil {
							return nil, err
						}
						bound[name] = rs
					}
					return ctx.SQL(stmt, bound)
				})
		},
	}
	cmd.Flags().StringToStringVar(&tables, "table", nil, "bind a table name to a source, name=path; repeatable")
	o.bind(cmd)
	return cmd
}
