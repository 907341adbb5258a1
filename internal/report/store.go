// Package report persists the last run report and renders reports for humans
// and tools.
package report

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"fortio.org/safecast"
	"github.com/vmihailenco/msgpack/v5"

	"harness/internal/check"
	"harness/internal/runner"
)

// ErrNoReport is returned by Load when nothing has been stored yet.
var ErrNoReport = errors.New("no stored report")

// bump when payload changes shape
const schemaVersion uint16 = 1

const lastFile = "last.mp"

// Store keeps the last report on disk. Safe for concurrent use.
type Store struct {
	mu  sync.RWMutex
	dir string
}

type payload struct {
	Schema   uint16
	Started  time.Time
	Duration int64
	Skipped  uint32
	Cases    counters
	Checks   counters
	Results  []result
}

type counters struct {
	Total, Passed, Failed uint32
}

type result struct {
	Name     string
	Expect   string
	Isolated bool
	Passed   bool
	Skipped  bool
	Reason   string
	Checks   counters
	ExitCode int16
	Signal   uint8
	Duration int64
}

// Open returns the store under $XDG_CACHE_HOME/app, falling back to
// ~/.cache/app.
func Open(app string) (*Store, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".cache")
	}
	return OpenDir(filepath.Join(base, app))
}

// OpenDir returns a store rooted at dir, creating it if needed.
func OpenDir(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the directory of the store.
func (s *Store) Dir() string {
	if s == nil {
		return ""
	}
	return s.dir
}

func (s *Store) path() string {
	return filepath.Join(s.dir, lastFile)
}

// Save replaces the stored report with rep.
func (s *Store) Save(rep runner.Report) (err error) {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.CreateTemp(s.dir, "tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	if err = Encode(f, rep); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	// atomic replace
	return os.Rename(tmp, s.path())
}

// Load reads the stored report. It returns ErrNoReport when there is none or
// when the file was written by an incompatible version.
func (s *Store) Load() (runner.Report, error) {
	if s == nil {
		return runner.Report{}, ErrNoReport
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, err := os.Open(s.path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return runner.Report{}, ErrNoReport
		}
		return runner.Report{}, err
	}
	defer f.Close()

	rep, err := Decode(f)
	if err != nil {
		return runner.Report{}, fmt.Errorf("%s: %w", s.path(), err)
	}
	return rep, nil
}

// Decode reads one stored report from r.
func Decode(r io.Reader) (runner.Report, error) {
	var p payload
	if err := msgpack.NewDecoder(r).Decode(&p); err != nil {
		return runner.Report{}, fmt.Errorf("decode report: %w", err)
	}
	if p.Schema != schemaVersion {
		return runner.Report{}, fmt.Errorf("%w: schema %d, want %d", ErrNoReport, p.Schema, schemaVersion)
	}
	return fromPayload(p), nil
}

// Encode writes rep to w in the stored format.
func Encode(w io.Writer, rep runner.Report) error {
	p, err := toPayload(rep)
	if err != nil {
		return err
	}
	if err := msgpack.NewEncoder(w).Encode(&p); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

// Clear removes the stored report. Clearing an empty store is not an error.
func (s *Store) Clear() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func toPayload(rep runner.Report) (payload, error) {
	p := payload{
		Schema:   schemaVersion,
		Started:  rep.Started,
		Duration: int64(rep.Duration),
		Results:  make([]result, len(rep.Results)),
	}
	var err error
	if p.Skipped, err = safecast.Conv[uint32](rep.Skipped); err != nil {
		return payload{}, fmt.Errorf("skipped count: %w", err)
	}
	if p.Cases, err = toCounters(rep.Cases); err != nil {
		return payload{}, fmt.Errorf("case tally: %w", err)
	}
	if p.Checks, err = toCounters(rep.Checks); err != nil {
		return payload{}, fmt.Errorf("check tally: %w", err)
	}
	for i, res := range rep.Results {
		r := result{
			Name:     res.Name,
			Expect:   res.Expect,
			Isolated: res.Isolated,
			Passed:   res.Passed,
			Skipped:  res.Skipped,
			Reason:   res.Reason,
			Duration: int64(res.Duration),
		}
		if r.Checks, err = toCounters(res.Checks); err != nil {
			return payload{}, fmt.Errorf("%s: %w", res.Name, err)
		}
		// exit statuses fit in a byte; -1 marks an unknown status
		if r.ExitCode, err = safecast.Conv[int16](res.ExitCode); err != nil {
			return payload{}, fmt.Errorf("%s: exit code: %w", res.Name, err)
		}
		if r.Signal, err = safecast.Conv[uint8](res.Signal); err != nil {
			return payload{}, fmt.Errorf("%s: signal: %w", res.Name, err)
		}
		p.Results[i] = r
	}
	return p, nil
}

func toCounters(t check.Tally) (counters, error) {
	total, err := safecast.Conv[uint32](t.Total)
	if err != nil {
		return counters{}, err
	}
	passed, err := safecast.Conv[uint32](t.Passed)
	if err != nil {
		return counters{}, err
	}
	failed, err := safecast.Conv[uint32](t.Failed)
	if err != nil {
		return counters{}, err
	}
	return counters{Total: total, Passed: passed, Failed: failed}, nil
}

func fromCounters(c counters) check.Tally {
	return check.Tally{Total: int(c.Total), Passed: int(c.Passed), Failed: int(c.Failed)}
}

func fromPayload(p payload) runner.Report {
	rep := runner.Report{
		Cases:    fromCounters(p.Cases),
		Checks:   fromCounters(p.Checks),
		Skipped:  int(p.Skipped),
		Started:  p.Started,
		Duration: time.Duration(p.Duration),
		Results:  make([]runner.CaseResult, len(p.Results)),
	}
	for i, r := range p.Results {
		rep.Results[i] = runner.CaseResult{
			Name:     r.Name,
			Expect:   r.Expect,
			Isolated: r.Isolated,
			Passed:   r.Passed,
			Skipped:  r.Skipped,
			Reason:   r.Reason,
			Checks:   fromCounters(r.Checks),
			ExitCode: int(r.ExitCode),
			Signal:   int(r.Signal),
			Duration: time.Duration(r.Duration),
		}
	}
	return rep
}
