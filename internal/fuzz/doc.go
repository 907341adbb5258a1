// Package fuzztests houses Go fuzz harnesses for the inputs harness reads from
// disk: the harness.toml manifest and the stored last-run report. Both are
// user-editable files, so decoding them must never panic or hang.
package fuzztests
