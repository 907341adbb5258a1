// Package trace records what the harness is doing while it runs cases.
//
// Trace output is operational logging, separate from the PASS/FAIL report.
// It answers "which case is running, which child is alive, how long did it
// take" and is the first thing to enable when a run appears to hang.
//
// # Usage
//
//	harness run --trace=- --trace-level=case
//
// # Tracers
//
//   - Nop: disabled tracing, zero overhead
//   - StreamTracer: writes each event immediately (file or stderr)
//   - RingTracer: keeps the last N events in memory, dumped when a run fails
//   - MultiTracer: fans out to several tracers
//
// # Levels
//
//   - LevelOff: nothing
//   - LevelError: only ring dumps after a failed run
//   - LevelRun: run boundaries
//   - LevelCase: per-case spans and child process events
//   - LevelDebug: everything, including individual assertions
//
// # Context propagation
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopeCase, name, parentID)
//	defer span.End("")
package trace
