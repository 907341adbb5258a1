// Package suite holds the ordered registry of named test cases.
package suite

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"

	"harness/internal/check"
)

var (
	// ErrNilFunc is returned when a case is registered without a callable.
	ErrNilFunc = errors.New("case has no callable")
	// ErrDuplicateName is returned when a case name is already registered.
	ErrDuplicateName = errors.New("duplicate case name")
	// ErrEmptyName is returned when a case name is blank.
	ErrEmptyName = errors.New("empty case name")
)

// Func is the body of a test case. Assertions go to r.
type Func func(r *check.Recorder)

// Case is a registered test case. It is immutable after registration.
type Case struct {
	Name    string
	Func    Func
	Expect  Expectation
	Isolate bool
}

// Isolated reports whether the case must run in a child process. Any policy
// other than ExpectReturn can only be observed from outside the process.
func (c Case) Isolated() bool {
	return c.Isolate || c.Expect.Kind != ExpectReturn
}

// Option adjusts a case during registration.
type Option func(*Case)

// Isolated runs the case in a child process.
func Isolated() Option {
	return func(c *Case) { c.Isolate = true }
}

// Expect sets the expected-outcome policy.
func Expect(e Expectation) Option {
	return func(c *Case) { c.Expect = e }
}

// Registry is an ordered list of cases. Registration order is run order.
type Registry struct {
	mu    sync.RWMutex
	cases []Case
	index map[string]int
	log   io.Writer
}

// NewRegistry creates an empty registry. Rejected registrations are logged to
// log (stderr when nil).
func NewRegistry(log io.Writer) *Registry {
	if log == nil {
		log = os.Stderr
	}
	return &Registry{index: make(map[string]int), log: log}
}

// Register appends a case. A nil callable, blank or duplicate name, or an
// invalid policy is logged and skipped; the registry is left unchanged.
func (r *Registry) Register(name string, fn Func, opts ...Option) error {
	err := r.register(name, fn, opts...)
	if err != nil {
		fmt.Fprintf(r.log, "register %q: %v (skipped)\n", name, err)
	}
	return err
}

func (r *Registry) register(name string, fn Func, opts ...Option) error {
	name = NormalizeName(name)
	if name == "" {
		return ErrEmptyName
	}
	if fn == nil {
		return ErrNilFunc
	}

	c := Case{Name: name, Func: fn, Expect: Return()}
	for _, opt := range opts {
		if opt != nil {
			opt(&c)
		}
	}
	if err := c.Expect.Validate(); err != nil {
		return fmt.Errorf("invalid expectation: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.index[name]; exists {
		return ErrDuplicateName
	}
	r.index[name] = len(r.cases)
	r.cases = append(r.cases, c)
	return nil
}

// Len returns the number of registered cases.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cases)
}

// Cases returns the registered cases in registration order.
func (r *Registry) Cases() []Case {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Case, len(r.cases))
	copy(out, r.cases)
	return out
}

// Lookup finds a case by name.
func (r *Registry) Lookup(name string) (Case, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx, ok := r.index[NormalizeName(name)]
	if !ok {
		return Case{}, false
	}
	return r.cases[idx], true
}

// Filter returns the cases whose names match at least one glob pattern, in
// registration order. No patterns selects every case.
func (r *Registry) Filter(patterns ...string) ([]Case, error) {
	cleaned := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = NormalizeName(p)
		if p == "" {
			continue
		}
		if _, err := path.Match(p, ""); err != nil {
			return nil, fmt.Errorf("invalid filter %q: %w", p, err)
		}
		cleaned = append(cleaned, p)
	}

	all := r.Cases()
	if len(cleaned) == 0 {
		return all, nil
	}
	selected := make([]Case, 0, len(all))
	for _, c := range all {
		if MatchAny(cleaned, c.Name) {
			selected = append(selected, c)
		}
	}
	return selected, nil
}

// MatchAny reports whether name matches any pattern. A pattern without glob
// metacharacters also matches as a "/"-separated prefix, so "zlib" selects
// "zlib/deflate".
func MatchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, _ := path.Match(p, name); ok {
			return true
		}
		if !strings.ContainsAny(p, "*?[") && strings.HasPrefix(name, strings.TrimSuffix(p, "/")+"/") {
			return true
		}
	}
	return false
}

// NormalizeName trims and NFC-normalizes a case name so that visually equal
// names registered from different sources collide.
func NormalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}
