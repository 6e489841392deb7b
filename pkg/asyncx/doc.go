// Package asyncx provides the concurrency primitives used by the refinement
// pipeline: futures, settle-all fan-out, retries and clock-driven debouncing.
//
// # Fan-out
//
// [AllSettled] runs a set of functions concurrently and always returns one
// [Result] per function, so one failing call never hides the others:
//
//	results := asyncx.AllSettled(ctx,
//	    func(ctx context.Context) (Outcome, error) { return engine.Refine(ctx, reqA) },
//	    func(ctx context.Context) (Outcome, error) { return engine.Refine(ctx, reqB) },
//	)
//
// [AllSettledN] bounds the number of calls in flight.
//
// # Debouncing
//
// A [Debouncer] collapses bursts of Trigger calls into a single call made
// once the input has been quiet for the configured wait. Time comes from a
// [Clock]; production code uses [SystemClock] and tests drive a fake clock
// from the asyncxtest package.
//
//	d := asyncx.NewDebouncer(1500*time.Millisecond, nil)
//	d.Trigger(func() { dispatch(snapshot) })
//
// [Debouncer.Flush] runs the pending call immediately, which is how an
// explicit "refine now" request bypasses the wait.
package asyncx
