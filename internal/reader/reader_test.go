package reader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/skyfield-labs/framecast/internal/domain"
	"github.com/skyfield-labs/framecast/internal/journal"
	"github.com/skyfield-labs/framecast/internal/transport"
	"github.com/skyfield-labs/framecast/pkg/log"
)

const (
	initAddr  = "127.0.0.1:18001"
	fetchAddr = "127.0.0.1:18002"
)

// fakeLocalizer implements transport.Dialer and plays both endpoints. Fetch
// responses can be delayed per frame path or withheld entirely, and open
// fetch exchanges are counted to verify the single-flight invariant.
type fakeLocalizer struct {
	mu sync.Mutex

	sessionID    string
	initErr      error
	fetchErr     error
	fetchDelays  map[string]time.Duration // keyed by path base
	neverRespond bool

	fetchOpens  int
	inFlight    int
	maxInFlight int
}

func newFakeLocalizer() *fakeLocalizer {
	return &fakeLocalizer{sessionID: "sess-test", fetchDelays: map[string]time.Duration{}}
}

func (l *fakeLocalizer) Dial(addr string) (transport.Conn, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch addr {
	case initAddr:
		if l.initErr != nil {
			return nil, l.initErr
		}
		return &fakeExchange{loc: l, kind: "init"}, nil
	case fetchAddr:
		if l.fetchErr != nil {
			return nil, l.fetchErr
		}
		l.fetchOpens++
		l.inFlight++
		if l.inFlight > l.maxInFlight {
			l.maxInFlight = l.inFlight
		}
		return &fakeExchange{loc: l, kind: "fetch"}, nil
	}
	return nil, fmt.Errorf("unexpected addr %s", addr)
}

type fakeExchange struct {
	loc  *fakeLocalizer
	kind string

	mu          sync.Mutex
	response    []byte
	availableAt time.Time
	never       bool
	closed      bool
}

func (e *fakeExchange) Send(b []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.kind {
	case "init":
		e.response = []byte(fmt.Sprintf(`{"success":true,"session_id":%q}`, e.loc.sessionID))
		e.availableAt = time.Now()
	case "fetch":
		n, err := strconv.Atoi(strings.TrimSpace(string(b[:4])))
		if err != nil {
			return err
		}
		var req domain.FetchRequest
		if err := json.Unmarshal(b[4:4+n], &req); err != nil {
			return err
		}
		if e.loc.neverRespond {
			e.never = true
			return nil
		}
		e.response = []byte(`{"success":true,"gps":{"lat":50.41,"lng":30.89}}`)
		e.availableAt = time.Now().Add(e.loc.fetchDelays[filepath.Base(req.ImagePath)])
	}
	return nil
}

func (e *fakeExchange) Poll() ([]byte, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.never || e.response == nil || time.Now().Before(e.availableAt) {
		return nil, false, nil
	}
	return e.response, true, nil
}

func (e *fakeExchange) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	if e.kind == "fetch" {
		e.loc.mu.Lock()
		e.loc.inFlight--
		e.loc.mu.Unlock()
	}
	return nil
}

func testFrames(names ...string) []domain.Frame {
	frames := make([]domain.Frame, len(names))
	for i, n := range names {
		frames[i] = domain.Frame{Index: i, Path: filepath.Join("data", "stream", n)}
	}
	return frames
}

func testConfig(tick time.Duration) Config {
	return Config{
		InitEndpoint:  initAddr,
		FetchEndpoint: fetchAddr,
		Lat:           50.4162,
		Lng:           30.8906,
		Meters:        1000,
		LoggingID:     "run-test",
		Tick:          tick,
		Poll:          2 * time.Millisecond,
		MaxRuntime:    10 * time.Second,
	}
}

func runReader(t *testing.T, cfg Config, loc *fakeLocalizer, frames []domain.Frame) []string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reader.log")
	jrnl, err := journal.Open(path)
	if err != nil {
		t.Fatal(err)
	}

	r := New(cfg, loc, frames, jrnl, log.NewNoopLogger())
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	jrnl.Close()

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(b) == 0 {
		return nil
	}
	return strings.Split(strings.TrimSuffix(string(b), "\n"), "\n")
}

func linesWithPrefix(lines []string, prefix string) []string {
	var out []string
	for _, l := range lines {
		if strings.HasPrefix(l, prefix) {
			out = append(out, l)
		}
	}
	return out
}

// frameIndices extracts the index=N value from FrameResult/FrameDropped
// lines in journal order.
func frameIndices(t *testing.T, lines []string) []int {
	t.Helper()
	var out []int
	for _, l := range lines {
		if !strings.HasPrefix(l, "FrameResult:") && !strings.HasPrefix(l, "FrameDropped:") {
			continue
		}
		var idx int
		detail := l[strings.Index(l, "index="):]
		if _, err := fmt.Sscanf(detail, "index=%d", &idx); err != nil {
			t.Fatalf("unparseable journal line %q: %v", l, err)
		}
		out = append(out, idx)
	}
	return out
}

func TestRun_CleanDrainRoundTrip(t *testing.T) {
	loc := newFakeLocalizer()
	lines := runReader(t, testConfig(30*time.Millisecond), loc, testFrames("a.jpg", "b.jpg", "c.jpg"))

	if got := linesWithPrefix(lines, "SessionReady:"); len(got) != 1 {
		t.Errorf("SessionReady entries = %d, want 1", len(got))
	}
	results := linesWithPrefix(lines, "FrameResult:")
	if len(results) != 3 {
		t.Fatalf("FrameResult entries = %d, want 3\n%s", len(results), strings.Join(lines, "\n"))
	}
	for i, l := range results {
		if !strings.Contains(l, fmt.Sprintf("index=%d ", i)) {
			t.Errorf("results[%d] = %q, want index=%d", i, l, i)
		}
	}
	if drops := linesWithPrefix(lines, "FrameDropped:"); len(drops) != 0 {
		t.Errorf("FrameDropped entries = %d, want 0", len(drops))
	}
}

func TestRun_CursorVisitsEveryIndexOnce(t *testing.T) {
	loc := newFakeLocalizer()
	loc.fetchDelays["b.jpg"] = 90 * time.Millisecond // force one drop
	lines := runReader(t, testConfig(60*time.Millisecond), loc, testFrames("a.jpg", "b.jpg", "c.jpg", "d.jpg"))

	seen := map[int]int{}
	for _, idx := range frameIndices(t, lines) {
		seen[idx]++
	}
	for i := 0; i < 4; i++ {
		if seen[i] != 1 {
			t.Errorf("index %d journaled %d times, want exactly 1", i, seen[i])
		}
	}
}

func TestRun_BackpressureDropsSuccessorNotSender(t *testing.T) {
	loc := newFakeLocalizer()
	loc.fetchDelays["a.jpg"] = 150 * time.Millisecond
	lines := runReader(t, testConfig(100*time.Millisecond), loc, testFrames("a.jpg", "b.jpg", "c.jpg"))

	drops := linesWithPrefix(lines, "FrameDropped:")
	if len(drops) != 1 {
		t.Fatalf("FrameDropped entries = %d, want 1\n%s", len(drops), strings.Join(lines, "\n"))
	}
	if !strings.Contains(drops[0], "index=1 ") {
		t.Errorf("dropped = %q, want index=1 (frame b)", drops[0])
	}

	// a's delayed response still produces a FrameResult, after the drop.
	var dropPos, aResultPos int = -1, -1
	for i, l := range lines {
		if strings.HasPrefix(l, "FrameDropped:") {
			dropPos = i
		}
		if strings.HasPrefix(l, "FrameResult:") && strings.Contains(l, "index=0 ") {
			aResultPos = i
		}
	}
	if aResultPos == -1 {
		t.Fatal("no FrameResult for frame a")
	}
	if aResultPos < dropPos {
		t.Errorf("FrameResult for a at line %d precedes drop at line %d", aResultPos, dropPos)
	}
	for _, l := range linesWithPrefix(lines, "FrameResult:") {
		if strings.Contains(l, "index=1 ") {
			t.Errorf("dropped frame b has a FrameResult: %q", l)
		}
	}
}

func TestRun_UnansweredFetchAdvancesCursor(t *testing.T) {
	loc := newFakeLocalizer()
	loc.neverRespond = true
	cfg := testConfig(40 * time.Millisecond)
	cfg.MaxRuntime = 500 * time.Millisecond
	lines := runReader(t, cfg, loc, testFrames("a.jpg", "b.jpg", "c.jpg"))

	// The sent frame stays pending; its successors are dropped, the cursor
	// reaches the end, and the watchdog terminates the run.
	drops := linesWithPrefix(lines, "FrameDropped:")
	if len(drops) != 2 {
		t.Fatalf("FrameDropped entries = %d, want 2\n%s", len(drops), strings.Join(lines, "\n"))
	}
	timeouts := linesWithPrefix(lines, "Timeout:")
	if len(timeouts) != 1 {
		t.Fatalf("Timeout entries = %d, want 1", len(timeouts))
	}
	if !strings.Contains(timeouts[0], "remaining=0") {
		t.Errorf("timeout = %q, want remaining=0", timeouts[0])
	}
}

func TestRun_WatchdogWhenLocalizerNeverListens(t *testing.T) {
	loc := newFakeLocalizer()
	loc.initErr = errors.New("connection refused")
	cfg := testConfig(30 * time.Millisecond)
	cfg.MaxRuntime = 200 * time.Millisecond
	lines := runReader(t, cfg, loc, testFrames("a.jpg", "b.jpg"))

	timeouts := linesWithPrefix(lines, "Timeout:")
	if len(timeouts) != 1 {
		t.Fatalf("Timeout entries = %d, want 1\n%s", len(timeouts), strings.Join(lines, "\n"))
	}
	if !strings.Contains(timeouts[0], "remaining=2") {
		t.Errorf("timeout = %q, want remaining=2", timeouts[0])
	}
	if got := linesWithPrefix(lines, "SessionReady:"); len(got) != 0 {
		t.Errorf("SessionReady entries = %d, want 0", len(got))
	}
}

func TestRun_SingleFlight(t *testing.T) {
	loc := newFakeLocalizer()
	lines := runReader(t, testConfig(20*time.Millisecond), loc,
		testFrames("a.jpg", "b.jpg", "c.jpg", "d.jpg", "e.jpg", "f.jpg"))

	if loc.maxInFlight > 1 {
		t.Errorf("max in-flight fetch exchanges = %d, want 1", loc.maxInFlight)
	}
	if loc.fetchOpens != 6 {
		t.Errorf("fetch opens = %d, want 6", loc.fetchOpens)
	}
	if loc.inFlight != 0 {
		t.Errorf("in-flight at exit = %d, want 0 (every channel closed)", loc.inFlight)
	}
	if results := linesWithPrefix(lines, "FrameResult:"); len(results) != 6 {
		t.Errorf("FrameResult entries = %d, want 6", len(results))
	}
}

func TestRun_FetchConnectFailureDropsWithoutRetry(t *testing.T) {
	loc := newFakeLocalizer()
	loc.fetchErr = errors.New("connection refused")
	lines := runReader(t, testConfig(20*time.Millisecond), loc, testFrames("a.jpg", "b.jpg", "c.jpg"))

	drops := linesWithPrefix(lines, "FrameDropped:")
	if len(drops) != 3 {
		t.Fatalf("FrameDropped entries = %d, want 3\n%s", len(drops), strings.Join(lines, "\n"))
	}
	for _, l := range drops {
		if !strings.Contains(l, "reason=connect") {
			t.Errorf("drop = %q, want reason=connect", l)
		}
	}
}

func TestRun_EmptyCatalog(t *testing.T) {
	loc := newFakeLocalizer()
	lines := runReader(t, testConfig(20*time.Millisecond), loc, nil)
	if len(lines) != 0 {
		t.Errorf("journal = %v, want empty for empty catalog", lines)
	}
	if loc.fetchOpens != 0 {
		t.Errorf("fetch opens = %d, want 0", loc.fetchOpens)
	}
}

func TestRun_ContextCancel(t *testing.T) {
	loc := newFakeLocalizer()
	loc.initErr = errors.New("connection refused") // keep the loop waiting
	jrnl, err := journal.Open(filepath.Join(t.TempDir(), "reader.log"))
	if err != nil {
		t.Fatal(err)
	}
	defer jrnl.Close()

	r := New(testConfig(20*time.Millisecond), loc, testFrames("a.jpg"), jrnl, log.NewNoopLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	if err := r.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run() error = %v, want context.DeadlineExceeded", err)
	}
}
