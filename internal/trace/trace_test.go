package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"off":   LevelOff,
		"":      LevelOff,
		"error": LevelError,
		"RUN":   LevelRun,
		"case":  LevelCase,
		"debug": LevelDebug,
	}
	for input, want := range cases {
		got, err := ParseLevel(input)
		if err != nil {
			t.Fatalf("ParseLevel(%q): %v", input, err)
		}
		if got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", input, got, want)
		}
	}
	if _, err := ParseLevel("phase"); err == nil {
		t.Fatalf("ParseLevel(phase) should fail")
	}
}

func TestShouldEmit(t *testing.T) {
	if LevelRun.ShouldEmit(ScopeCase) {
		t.Fatalf("run level must not emit case events")
	}
	if !LevelCase.ShouldEmit(ScopeChild) || LevelCase.ShouldEmit(ScopeCheck) {
		t.Fatalf("case level must emit child events and skip checks")
	}
	if !LevelDebug.ShouldEmit(ScopeCheck) {
		t.Fatalf("debug level must emit everything")
	}
}

func TestStreamTracerSpans(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelCase, FormatText)

	run := Begin(tr, ScopeRun, "run", 0)
	c := Begin(tr, ScopeCase, "zlib/deflate", run.ID())
	c.WithExtra("isolated", "false").End("pass")
	Begin(tr, ScopeCheck, "ignored", c.ID()).End("")
	run.End("")

	out := buf.String()
	if strings.Count(out, "\n") != 4 {
		t.Fatalf("expected 4 lines, got:\n%s", out)
	}
	if !strings.Contains(out, "zlib/deflate (pass) {isolated=false}") {
		t.Fatalf("case end line missing:\n%s", out)
	}
	if strings.Contains(out, "ignored") {
		t.Fatalf("check scope leaked at case level:\n%s", out)
	}
}

func TestStreamTracerNDJSON(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelDebug, FormatNDJSON)
	Point(tr, ScopeChild, "child:x", "exit 0", 0)

	var decoded map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &decoded); err != nil {
		t.Fatalf("invalid ndjson %q: %v", buf.String(), err)
	}
	if decoded["scope"] != "child" || decoded["detail"] != "exit 0" {
		t.Fatalf("unexpected event %v", decoded)
	}
}

func TestRingTracerWraps(t *testing.T) {
	ring := NewRingTracer(3, LevelDebug)
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		Point(ring, ScopeCase, name, "", 0)
	}
	snap := ring.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("snapshot length = %d, want 3", len(snap))
	}
	for i, want := range []string{"c", "d", "e"} {
		if snap[i].Name != want {
			t.Fatalf("snapshot[%d] = %q, want %q", i, snap[i].Name, want)
		}
	}

	var buf bytes.Buffer
	if err := ring.Dump(&buf, FormatText); err != nil {
		t.Fatalf("Dump: %v", err)
	}
	if strings.Count(buf.String(), "\n") != 3 {
		t.Fatalf("dump should have 3 lines:\n%s", buf.String())
	}
}

func TestRingAtErrorLevelKeepsEverything(t *testing.T) {
	ring := NewRingTracer(8, LevelError)
	Point(ring, ScopeCheck, "assert", "", 0)
	if len(ring.Snapshot()) != 1 {
		t.Fatalf("error-level ring should keep all scopes")
	}
}

func TestNewAndContext(t *testing.T) {
	tr, err := New(Config{Level: LevelOff})
	if err != nil || tr.Enabled() {
		t.Fatalf("New(off) = %v, %v; want disabled nop", tr, err)
	}

	var buf bytes.Buffer
	tr, err = New(Config{Level: LevelCase, Mode: ModeBoth, Output: &buf})
	if err != nil {
		t.Fatalf("New(both): %v", err)
	}
	if _, ok := Ring(tr); !ok {
		t.Fatalf("both mode should contain a ring tracer")
	}

	ctx := WithTracer(context.Background(), tr)
	if FromContext(ctx) != tr {
		t.Fatalf("FromContext did not return the attached tracer")
	}
	if FromContext(context.Background()) != Nop {
		t.Fatalf("FromContext without tracer should be Nop")
	}
}

func TestNewConfigDefaults(t *testing.T) {
	tr, err := New(Config{Level: LevelCase, Mode: ModeRing})
	if err != nil {
		t.Fatalf("New(ring): %v", err)
	}
	ring, ok := Ring(tr)
	if !ok || ring.capacity != 4096 {
		t.Fatalf("ring = %v, %v; want default capacity 4096", ring, ok)
	}

	// stderr must survive closing a tracer that streams to it
	tr, err = New(Config{Level: LevelCase, Mode: ModeStream, OutputPath: "-"})
	if err != nil {
		t.Fatalf("New(stream): %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stderr.Write(nil); err != nil {
		t.Fatalf("stderr closed by tracer: %v", err)
	}

	path := filepath.Join(t.TempDir(), "run.ndjson")
	tr, err = New(Config{Level: LevelCase, Mode: ModeStream, OutputPath: path})
	if err != nil {
		t.Fatalf("New(file): %v", err)
	}
	Point(tr, ScopeCase, "zlib/roundtrip", "", 0)
	if err := tr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read trace: %v", err)
	}
	var ev map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &ev); err != nil {
		t.Fatalf(".ndjson output is not JSON: %v\n%s", err, data)
	}
}

func TestHeartbeatNamesRunningCase(t *testing.T) {
	ring := NewRingTracer(64, LevelRun)
	hb := StartHeartbeat(ring, 5*time.Millisecond)
	hb.Mark("slow/case")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(ring.Snapshot()) > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	hb.Stop()
	hb.Stop()

	events := ring.Snapshot()
	if len(events) == 0 {
		t.Fatalf("no heartbeat emitted")
	}
	if !strings.Contains(events[0].Detail, "slow/case") {
		t.Fatalf("heartbeat detail %q does not name the case", events[0].Detail)
	}

	var nilBeat *Heartbeat
	nilBeat.Mark("x")
	nilBeat.Stop()
}
