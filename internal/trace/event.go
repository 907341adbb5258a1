package trace

import "time"

// Kind represents the type of trace event.
type Kind uint8

const (
	KindSpanBegin Kind = iota + 1 // span start
	KindSpanEnd                   // span end
	KindPoint                     // instant event
	KindHeartbeat                 // periodic liveness signal
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case KindSpanBegin:
		return "begin"
	case KindSpanEnd:
		return "end"
	case KindPoint:
		return "point"
	case KindHeartbeat:
		return "heartbeat"
	default:
		return "unknown"
	}
}

// Scope indicates the granularity of an event. Lower values are coarser.
type Scope uint8

const (
	ScopeRun   Scope = iota + 1 // a whole RunAll
	ScopeCase                   // one test case
	ScopeChild                  // child process lifecycle of an isolated case
	ScopeCheck                  // individual assertions
)

// String returns the string representation of Scope.
func (s Scope) String() string {
	switch s {
	case ScopeRun:
		return "run"
	case ScopeCase:
		return "case"
	case ScopeChild:
		return "child"
	case ScopeCheck:
		return "check"
	default:
		return "unknown"
	}
}

// Event is a single trace record.
type Event struct {
	Time     time.Time         // wall-clock timestamp
	Seq      uint64            // global sequence number
	Kind     Kind              // event kind
	Scope    Scope             // granularity
	SpanID   uint64            // span identifier (0 for points outside spans)
	ParentID uint64            // parent span (0 if root)
	Name     string            // e.g. "run", "zlib/deflate", "child:zlib/deflate"
	Detail   string            // optional detail message
	Extra    map[string]string // extensible key-value pairs
}
