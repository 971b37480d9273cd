package teide

import stderrors "errors"

// With opens a Context, runs fn and releases the Context when fn returns.
// Errors from fn and from Release are both reported.
//
//	err := teide.With(func(ctx *teide.Context) error {
//		rows, err := ctx.ReadSource("events.parquet")
//		if err != nil {
//			return err
//		}
//		out, err := rows.Head(10).Materialize()
//		if err != nil {
//			return err
//		}
//		return out.WriteCSV(os.Stdout)
//	})
//
// Column views obtained inside fn must not be used after With returns.
func With(fn func(*Context) error, opts ...Option) error {
	ctx, err := New(opts...)
	if err != nil {
		return err
	}
	runErr := fn(ctx)
	return stderrors.Join(runErr, ctx.Release())
}
