package live

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/voxkit/go-live/pkg/wire"
)

// fakeConn is an in-memory Conn for driving the client in tests.
type fakeConn struct {
	mu       sync.Mutex
	writes   [][]byte
	writeErr error

	frames chan []byte
	errs   chan error
	done   chan struct{}

	closeDelay time.Duration
	closeOnce  sync.Once
	closeCode  int
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		frames: make(chan []byte, 16),
		errs:   make(chan error, 1),
		done:   make(chan struct{}),
	}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case b := <-f.frames:
		return websocket.TextMessage, b, nil
	case err := <-f.errs:
		return 0, nil, err
	case <-f.done:
		return 0, nil, &websocket.CloseError{Code: websocket.CloseNormalClosure, Text: "closed"}
	}
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes = append(f.writes, append([]byte(nil), data...))
	return nil
}

func (f *fakeConn) Close(code int, reason string) error {
	if f.closeDelay > 0 {
		time.Sleep(f.closeDelay)
	}
	f.closeOnce.Do(func() {
		f.closeCode = code
		close(f.done)
	})
	return nil
}

func (f *fakeConn) sentFrames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.writes))
	for i, w := range f.writes {
		out[i] = string(w)
	}
	return out
}

// fakeDialer hands out fakeConns and records every dial.
type fakeDialer struct {
	mu      sync.Mutex
	conns   []*fakeConn
	dialErr error
	block   chan struct{} // when set, Dial waits until closed
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Conn, error) {
	if d.block != nil {
		<-d.block
	}
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	fc := newFakeConn()
	d.mu.Lock()
	d.conns = append(d.conns, fc)
	d.mu.Unlock()
	return fc, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

func (d *fakeDialer) conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[i]
}

// recorder collects emitted events in order.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(ev string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) count(ev string) int {
	n := 0
	for _, e := range r.snapshot() {
		if e == ev || strings.HasPrefix(e, ev+":") {
			n++
		}
	}
	return n
}

func (r *recorder) handlers() *Handlers {
	return &Handlers{
		OnOpen:  func() { r.add("open") },
		OnClose: func(code int, reason string) { r.add("close:" + strings.ToLower(reason)) },
		OnError: func(err error) { r.add("error") },
		OnContent: func(content wire.ServerContent) {
			r.add("content")
		},
		OnAudio:                func(pcm []byte) { r.add("audio") },
		OnInterrupted:          func() { r.add("interrupted") },
		OnTurnComplete:         func() { r.add("turncomplete") },
		OnSetupComplete:        func() { r.add("setupcomplete") },
		OnToolCall:             func(call wire.ToolCall) { r.add("toolcall") },
		OnToolCallCancellation: func(cancel wire.ToolCallCancellation) { r.add("toolcallcancellation") },
	}
}

func testConfig() Config {
	return Config{APIKey: "test-key", Model: "models/m1"}
}

// waitForEvents polls until the recorder has seen at least want events
// of the given kind. Dispatch runs on the read loop goroutine, so a
// fixed sleep is not a reliable fence.
func waitForEvents(t *testing.T, rec *recorder, ev string, want int) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for rec.count(ev) < want {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %d %q events, got %v", want, ev, rec.snapshot())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func newTestClient(t *testing.T, rec *recorder) (*Client, *fakeDialer) {
	t.Helper()
	d := &fakeDialer{}
	c, err := NewClient(testConfig(), rec.handlers(), WithDialer(d))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c, d
}

func TestNewClientValidates(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{name: "missing api key", cfg: Config{Model: "m"}, wantErr: ErrMissingAPIKey},
		{name: "missing model", cfg: Config{APIKey: "k"}, wantErr: ErrMissingModel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewClient(tt.cfg, nil); !errors.Is(err, tt.wantErr) {
				t.Errorf("NewClient() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestConnectSendsSetupFirst(t *testing.T) {
	rec := &recorder{}
	h := rec.handlers()

	d := &fakeDialer{}
	var writesAtOpen int
	h.OnOpen = func() {
		writesAtOpen = len(d.conn(0).sentFrames())
		rec.add("open")
	}

	c, err := NewClient(testConfig(), h, WithDialer(d))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer c.Disconnect()

	frames := d.conn(0).sentFrames()
	if len(frames) == 0 {
		t.Fatal("no frames transmitted")
	}
	if frames[0] != `{"setup":{"model":"models/m1"}}` {
		t.Errorf("first frame = %s, want setup frame", frames[0])
	}
	if writesAtOpen < 1 {
		t.Error("open event fired before the setup frame was written")
	}

	// Setup is sent exactly once per connection, even after more sends.
	c.Send([]wire.Part{wire.TextPart("hello")}, true)
	setupCount := 0
	for _, f := range d.conn(0).sentFrames() {
		if strings.Contains(f, `"setup"`) {
			setupCount++
		}
	}
	if setupCount != 1 {
		t.Errorf("setup frames = %d, want 1", setupCount)
	}
}

func TestConnectCoalescesConcurrentCallers(t *testing.T) {
	rec := &recorder{}
	d := &fakeDialer{block: make(chan struct{})}
	c, err := NewClient(testConfig(), rec.handlers(), WithDialer(d))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	const callers = 5
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		go func() {
			errs <- c.Connect(context.Background())
		}()
	}

	// Let every caller reach the attempt before releasing the dial.
	time.Sleep(50 * time.Millisecond)
	close(d.block)

	for i := 0; i < callers; i++ {
		if err := <-errs; err != nil {
			t.Errorf("caller %d: Connect() error = %v", i, err)
		}
	}

	if got := d.dialCount(); got != 1 {
		t.Errorf("dial count = %d, want 1", got)
	}
	c.Disconnect()
}

func TestConnectWhenAlreadyOpen(t *testing.T) {
	rec := &recorder{}
	c, d := newTestClient(t, rec)

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("second Connect() error = %v", err)
	}

	if got := d.dialCount(); got != 1 {
		t.Errorf("dial count = %d, want 1", got)
	}
	c.Disconnect()
}

func TestConnectDialFailure(t *testing.T) {
	rec := &recorder{}
	d := &fakeDialer{dialErr: errors.New("refused")}
	c, err := NewClient(testConfig(), rec.handlers(), WithDialer(d))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	err = c.Connect(context.Background())
	if err == nil {
		t.Fatal("Connect() should fail when dial fails")
	}
	if !IsConnectionError(err) {
		t.Errorf("Connect() error = %T, want *ConnectionError", err)
	}
	if c.Status() != StatusIdle {
		t.Errorf("Status() = %v, want idle", c.Status())
	}
	if rec.count("error") != 1 {
		t.Errorf("error events = %d, want 1", rec.count("error"))
	}
}

func TestConnectSetupWriteFailure(t *testing.T) {
	rec := &recorder{}
	d := failingWriteDialer{inner: &fakeDialer{}}
	c, err := NewClient(testConfig(), rec.handlers(), WithDialer(d))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	err = c.Connect(context.Background())
	if err == nil {
		t.Fatal("Connect() should fail when the setup frame cannot be written")
	}
	if !IsConnectionError(err) {
		t.Errorf("Connect() error = %T, want *ConnectionError", err)
	}
	if c.Status() != StatusIdle {
		t.Errorf("Status() = %v, want idle", c.Status())
	}
	if got := rec.count("open"); got != 0 {
		t.Errorf("open events = %d, want 0", got)
	}
}

// failingWriteDialer wraps fakeDialer and poisons writes on dialed conns.
type failingWriteDialer struct {
	inner *fakeDialer
}

func (d failingWriteDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, err := d.inner.Dial(ctx, url)
	if err != nil {
		return nil, err
	}
	conn.(*fakeConn).writeErr = errors.New("broken pipe")
	return conn, nil
}

func TestDisconnectIsIdempotent(t *testing.T) {
	rec := &recorder{}
	c, d := newTestClient(t, rec)

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	c.Disconnect()
	c.Disconnect()
	time.Sleep(50 * time.Millisecond) // let the read loop observe the close

	if got := rec.count("close"); got != 1 {
		t.Errorf("close events = %d, want 1", got)
	}
	if code := d.conn(0).closeCode; code != websocket.CloseNormalClosure {
		t.Errorf("transport close code = %d, want %d", code, websocket.CloseNormalClosure)
	}
	if c.Status() != StatusIdle {
		t.Errorf("Status() = %v, want idle", c.Status())
	}
}

func TestDisconnectConcurrentCallers(t *testing.T) {
	rec := &recorder{}
	c, d := newTestClient(t, rec)

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	// Slow transport close widens the window in which a second caller
	// could observe the teardown in progress.
	d.conn(0).closeDelay = 10 * time.Millisecond

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Disconnect()
		}()
	}
	wg.Wait()
	time.Sleep(50 * time.Millisecond)

	if got := rec.count("close"); got != 1 {
		t.Errorf("close events = %d, want 1 (events: %v)", got, rec.snapshot())
	}
	if c.Status() != StatusIdle {
		t.Errorf("Status() = %v, want idle", c.Status())
	}
}

func TestDisconnectWhenNeverConnected(t *testing.T) {
	rec := &recorder{}
	c, _ := newTestClient(t, rec)

	c.Disconnect()

	if got := rec.count("close"); got != 0 {
		t.Errorf("close events = %d, want 0", got)
	}
}

func TestRemoteCloseEmitsOneCloseEvent(t *testing.T) {
	rec := &recorder{}
	c, d := newTestClient(t, rec)

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	d.conn(0).errs <- &websocket.CloseError{Code: websocket.CloseInternalServerErr, Text: "server going away"}
	waitForEvents(t, rec, "close", 1)

	if got := rec.count("close"); got != 1 {
		t.Errorf("close events = %d, want 1", got)
	}
	if c.Status() != StatusIdle {
		t.Errorf("Status() = %v, want idle", c.Status())
	}

	// A disconnect after the remote close must not double-report.
	c.Disconnect()
	if got := rec.count("close"); got != 1 {
		t.Errorf("close events after Disconnect = %d, want 1", got)
	}
}

func TestTransportErrorAfterDisconnectIsSuppressed(t *testing.T) {
	rec := &recorder{}
	c, d := newTestClient(t, rec)

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	c.Disconnect()
	// Late transport-originated failure on the old conn.
	select {
	case d.conn(0).errs <- errors.New("use of closed network connection"):
	default:
	}
	time.Sleep(50 * time.Millisecond)

	if got := rec.count("close"); got != 1 {
		t.Errorf("close events = %d, want 1", got)
	}
	if got := rec.count("error"); got != 0 {
		t.Errorf("error events = %d, want 0", got)
	}
}

func TestSendFiltersEmptyParts(t *testing.T) {
	rec := &recorder{}
	c, d := newTestClient(t, rec)

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer c.Disconnect()

	before := len(d.conn(0).sentFrames())

	// All-empty parts: nothing is transmitted.
	c.Send([]wire.Part{{}, {}}, true)
	if got := len(d.conn(0).sentFrames()); got != before {
		t.Errorf("frames after empty send = %d, want %d", got, before)
	}

	// Mixed parts: empty ones are dropped from the transmitted turn.
	c.Send([]wire.Part{{}, wire.TextPart("hi")}, true)
	frames := d.conn(0).sentFrames()
	if len(frames) != before+1 {
		t.Fatalf("frames after mixed send = %d, want %d", len(frames), before+1)
	}
	want := `{"clientContent":{"turns":[{"role":"user","parts":[{"text":"hi"}]}],"turnComplete":true}}`
	if frames[len(frames)-1] != want {
		t.Errorf("frame = %s, want %s", frames[len(frames)-1], want)
	}
}

func TestSendWhenNotOpen(t *testing.T) {
	rec := &recorder{}
	c, d := newTestClient(t, rec)

	c.Send([]wire.Part{wire.TextPart("hi")}, true)
	c.SendRealtimeInput([]wire.Blob{{MIMEType: "audio/pcm", Data: "AAAA"}})
	c.SendToolResponse(wire.ToolResponse{})

	if got := d.dialCount(); got != 0 {
		t.Errorf("dial count = %d, want 0", got)
	}
}

func TestSendRealtimeInputAndToolResponse(t *testing.T) {
	rec := &recorder{}
	c, d := newTestClient(t, rec)

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer c.Disconnect()

	c.SendRealtimeInput([]wire.Blob{{MIMEType: "audio/pcm", Data: wire.EncodeData([]byte{1, 2})}})
	c.SendToolResponse(wire.ToolResponse{
		FunctionResponses: []wire.FunctionResponse{{ID: "c1", Response: map[string]any{"result": "ok"}}},
	})

	frames := d.conn(0).sentFrames()
	if len(frames) != 3 { // setup + realtimeInput + toolResponse
		t.Fatalf("frames = %d, want 3", len(frames))
	}
	if !strings.Contains(frames[1], `"realtimeInput"`) {
		t.Errorf("frame 1 = %s, want realtimeInput", frames[1])
	}
	if !strings.Contains(frames[2], `"toolResponse"`) {
		t.Errorf("frame 2 = %s, want toolResponse", frames[2])
	}
}

func TestDispatchOrderForServerContent(t *testing.T) {
	rec := &recorder{}
	c, d := newTestClient(t, rec)

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer c.Disconnect()

	pcm := wire.EncodeData([]byte{1, 2, 3})
	frame := `{"serverContent":{"modelTurn":{"parts":[` +
		`{"text":"answer"},` +
		`{"inlineData":{"mimeType":"audio/pcm","data":"` + pcm + `"}},` +
		`{"inlineData":{"mimeType":"audio/pcm","data":"` + pcm + `"}}` +
		`]},"turnComplete":true}}`
	d.conn(0).frames <- []byte(frame)
	waitForEvents(t, rec, "audio", 2)

	got := rec.snapshot()
	want := []string{"open", "content", "turncomplete", "audio", "audio"}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
}

func TestDispatchInterruptedBeforeTurnComplete(t *testing.T) {
	rec := &recorder{}
	c, d := newTestClient(t, rec)

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer c.Disconnect()

	d.conn(0).frames <- []byte(`{"serverContent":{"interrupted":true,"turnComplete":true}}`)
	waitForEvents(t, rec, "turncomplete", 1)

	got := rec.snapshot()
	want := []string{"open", "content", "interrupted", "turncomplete"}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
}

func TestDispatchTextOnlyContent(t *testing.T) {
	rec := &recorder{}
	c, d := newTestClient(t, rec)

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer c.Disconnect()

	d.conn(0).frames <- []byte(`{"serverContent":{"modelTurn":{"parts":[{"text":"hi"}]}}}`)
	waitForEvents(t, rec, "content", 1)

	if got := rec.count("content"); got != 1 {
		t.Errorf("content events = %d, want 1", got)
	}
	if got := rec.count("audio"); got != 0 {
		t.Errorf("audio events = %d, want 0", got)
	}
}

func TestDispatchMalformedFrameContinues(t *testing.T) {
	rec := &recorder{}
	c, d := newTestClient(t, rec)

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer c.Disconnect()

	d.conn(0).frames <- []byte(`{not json`)
	d.conn(0).frames <- []byte(`{"setupComplete":{}}`)
	waitForEvents(t, rec, "setupcomplete", 1)

	if got := rec.count("error"); got != 1 {
		t.Errorf("error events = %d, want 1", got)
	}
	if got := rec.count("setupcomplete"); got != 1 {
		t.Errorf("setupcomplete events = %d, want 1", got)
	}
}

func TestDispatchUnhandledEnvelope(t *testing.T) {
	var logEntries []LogEntry
	var mu sync.Mutex

	rec := &recorder{}
	h := rec.handlers()
	h.OnLog = func(entry LogEntry) {
		mu.Lock()
		logEntries = append(logEntries, entry)
		mu.Unlock()
	}

	d := &fakeDialer{}
	c, err := NewClient(testConfig(), h, WithDialer(d))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer c.Disconnect()

	d.conn(0).frames <- []byte(`{"usageMetadata":{"totalTokens":3}}`)

	unhandled := func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range logEntries {
			if e.Category == "server.unhandled" {
				return true
			}
		}
		return false
	}
	deadline := time.After(2 * time.Second)
	for !unhandled() {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for a server.unhandled log entry")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if got := rec.count("error"); got != 0 {
		t.Errorf("error events = %d, want 0", got)
	}
}

func TestDispatchAudioDecodeFailureSkipsPart(t *testing.T) {
	rec := &recorder{}
	c, d := newTestClient(t, rec)

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer c.Disconnect()

	good := wire.EncodeData([]byte{9, 9})
	frame := `{"serverContent":{"modelTurn":{"parts":[` +
		`{"inlineData":{"mimeType":"audio/pcm","data":"!!!not-base64!!!"}},` +
		`{"inlineData":{"mimeType":"audio/pcm","data":"` + good + `"}}` +
		`]}}}`
	d.conn(0).frames <- []byte(frame)
	waitForEvents(t, rec, "audio", 1)

	if got := rec.count("error"); got != 1 {
		t.Errorf("error events = %d, want 1", got)
	}
	if got := rec.count("audio"); got != 1 {
		t.Errorf("audio events = %d, want 1", got)
	}
}

func TestDispatchToolCall(t *testing.T) {
	var calls []wire.FunctionCall
	var mu sync.Mutex

	rec := &recorder{}
	h := rec.handlers()
	h.OnToolCall = func(call wire.ToolCall) {
		mu.Lock()
		calls = append(calls, call.FunctionCalls...)
		mu.Unlock()
		rec.add("toolcall")
	}

	d := &fakeDialer{}
	c, err := NewClient(testConfig(), h, WithDialer(d))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer c.Disconnect()

	d.conn(0).frames <- []byte(`{"toolCall":{"functionCalls":[{"id":"c1","name":"lookup","args":{"q":"go"}}]}}`)
	d.conn(0).frames <- []byte(`{"toolCallCancellation":{"ids":["c1"]}}`)
	waitForEvents(t, rec, "toolcallcancellation", 1)

	mu.Lock()
	defer mu.Unlock()
	if len(calls) != 1 || calls[0].ID != "c1" || calls[0].Name != "lookup" {
		t.Errorf("calls = %+v, want one call c1/lookup", calls)
	}
	if got := rec.count("toolcallcancellation"); got != 1 {
		t.Errorf("cancellation events = %d, want 1", got)
	}
}

func TestDisconnectDuringHandshake(t *testing.T) {
	rec := &recorder{}
	d := &fakeDialer{block: make(chan struct{})}
	c, err := NewClient(testConfig(), rec.handlers(), WithDialer(d))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- c.Connect(context.Background())
	}()

	time.Sleep(50 * time.Millisecond) // mid-handshake
	c.Disconnect()
	close(d.block)

	if err := <-errCh; !errors.Is(err, ErrConnectCancelled) {
		t.Errorf("Connect() error = %v, want ErrConnectCancelled", err)
	}
	if c.Status() != StatusIdle {
		t.Errorf("Status() = %v, want idle", c.Status())
	}
}
