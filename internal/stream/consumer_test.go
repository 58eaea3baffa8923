package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/homeconnect-core/internal/appliance"
	"github.com/nerrad567/homeconnect-core/internal/auth"
	"github.com/nerrad567/homeconnect-core/internal/homeconnect"
)

const (
	washerID = "SIEMENS-WM14T6H0-000000000001"
	cotton60 = "LaundryCare.Washer.Program.Cotton60"
)

// fakeAPI scripts the REST and stream side of a consumer.
type fakeAPI struct {
	streams chan *io.PipeWriter

	mu          sync.Mutex
	opens       int
	openErrs    []error
	alwaysErr   error
	refreshed   []string
	refreshErr  error
	status      []appliance.Record
	statusErr   error
	statusCalls int
	settings    []appliance.Record
	selected    homeconnect.Program
	selectedErr error
	options     map[string]appliance.Record
	optionCalls []string
	onStatus    func()
	desc        *appliance.Descriptor
	descCalls   int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		streams: make(chan *io.PipeWriter, 64),
		options: make(map[string]appliance.Record),
	}
}

func (f *fakeAPI) OpenEvents(ctx context.Context, _ string) (io.ReadCloser, error) {
	f.mu.Lock()
	f.opens++
	if f.alwaysErr != nil {
		f.mu.Unlock()
		return nil, f.alwaysErr
	}
	if len(f.openErrs) > 0 {
		err := f.openErrs[0]
		f.openErrs = f.openErrs[1:]
		f.mu.Unlock()
		return nil, err
	}
	f.mu.Unlock()

	pr, pw := io.Pipe()
	go func() {
		<-ctx.Done()
		pw.CloseWithError(context.Cause(ctx)) //nolint:errcheck // Test cleanup
	}()
	f.streams <- pw
	return pr, nil
}

func (f *fakeAPI) RefreshToken(_ context.Context, failed string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshed = append(f.refreshed, failed)
	return f.refreshErr
}

// GetAppliance answers with the scripted descriptor, or fails when none
// is set so the consumer keeps its current flag.
func (f *fakeAPI) GetAppliance(_ context.Context, haID string) (appliance.Descriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.descCalls++
	if f.desc == nil {
		return appliance.Descriptor{}, &homeconnect.APIError{Status: 503, Key: "SDK.Error.Unavailable"}
	}
	return *f.desc, nil
}

func (f *fakeAPI) setRemoteConnected(connected bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.desc = &appliance.Descriptor{HaID: washerID, Type: "Washer", Connected: connected}
}

func (f *fakeAPI) descriptorCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.descCalls
}

func (f *fakeAPI) GetStatus(context.Context, string) ([]appliance.Record, error) {
	f.mu.Lock()
	hook := f.onStatus
	f.mu.Unlock()
	if hook != nil {
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	return f.status, f.statusErr
}

func (f *fakeAPI) GetSettings(context.Context, string) ([]appliance.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.settings, nil
}

func (f *fakeAPI) GetSelectedProgram(context.Context, string) (homeconnect.Program, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.selected, f.selectedErr
}

func (f *fakeAPI) GetSelectedProgramOption(_ context.Context, _, key string) (appliance.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.optionCalls = append(f.optionCalls, key)
	rec, ok := f.options[key]
	if !ok {
		return appliance.Record{}, &homeconnect.APIError{Status: 404, Key: "SDK.Error.UnsupportedOption"}
	}
	return rec, nil
}

func (f *fakeAPI) openCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens
}

func (f *fakeAPI) statusCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusCalls
}

// nextStream waits for the consumer to open a stream.
func (f *fakeAPI) nextStream(t *testing.T) *io.PipeWriter {
	t.Helper()
	select {
	case pw := <-f.streams:
		return pw
	case <-time.After(2 * time.Second):
		t.Fatal("consumer never opened the event stream")
		return nil
	}
}

// notifyRecorder records notifications and the connectivity seen at each.
type notifyRecorder struct {
	state *appliance.State

	mu        sync.Mutex
	count     int
	connected []bool
}

func (n *notifyRecorder) Notify(string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.count++
	if n.state != nil {
		n.connected = append(n.connected, n.state.IsConnected())
	}
}

func (n *notifyRecorder) total() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.count
}

func (n *notifyRecorder) sawDisconnected() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, c := range n.connected {
		if !c {
			return true
		}
	}
	return false
}

func send(t *testing.T, pw *io.PipeWriter, kind, data string) {
	t.Helper()
	if _, err := fmt.Fprintf(pw, "event: %s\ndata: %s\nid: %s\n\n", kind, data, washerID); err != nil {
		t.Fatalf("writing %s event: %v", kind, err)
	}
}

func items(pairs ...any) string {
	out := `{"items":[`
	for i := 0; i+1 < len(pairs); i += 2 {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf(`{"key":%q,"value":%s}`, pairs[i], jsonValue(pairs[i+1]))
	}
	return out + "]}"
}

func jsonValue(v any) string {
	if s, ok := v.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprint(v)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func washer(connected bool) *appliance.State {
	return appliance.New(appliance.Descriptor{
		HaID:      washerID,
		Name:      "Washer",
		Brand:     "Siemens",
		Type:      "Washer",
		Connected: connected,
	})
}

func testConfig() Config {
	return Config{
		WatchdogTimeout: time.Hour,
		Reconnect:       true,
		InitialDelay:    5 * time.Millisecond,
		MaxDelay:        20 * time.Millisecond,
	}
}

func startConsumer(t *testing.T, state *appliance.State, api *fakeAPI, cfg Config) (*Consumer, *notifyRecorder) {
	t.Helper()
	rec := &notifyRecorder{state: state}
	c := New(state, api, rec, cfg)
	c.Start(context.Background())
	t.Cleanup(c.Stop)
	return c, rec
}

func TestConsumer_WasherProgramFinished(t *testing.T) {
	api := newFakeAPI()
	api.status = []appliance.Record{{Key: appliance.KeyOperationState, Value: appliance.OperationReady}}
	api.selected = homeconnect.Program{Key: cotton60}
	state := washer(false)

	startConsumer(t, state, api, testConfig())
	pw := api.nextStream(t)

	send(t, pw, KindConnected, items("BSH.Common.Appliance.Connected", true))
	waitFor(t, "selected program", func() bool {
		return state.Value(appliance.KeySelectedProgram) == cotton60
	})

	if !state.IsConnected() {
		t.Error("IsConnected() = false after CONNECTED")
	}
	if got := state.Value(appliance.KeyOperationState); got != appliance.OperationReady {
		t.Errorf("operation state = %v, want Ready", got)
	}

	send(t, pw, KindEvent, items(appliance.KeyProgramFinished, appliance.EventPresent))
	waitFor(t, "program progress 100", func() bool {
		return state.Value(appliance.KeyProgramProgress) == int64(100)
	})
	if got := state.Value(appliance.KeyRemainingProgramTime); got != int64(0) {
		t.Errorf("remaining time = %v, want 0", got)
	}
}

func TestConsumer_ConnectedBeforeRefreshAndRefreshFailureKeepsConnected(t *testing.T) {
	api := newFakeAPI()
	api.statusErr = &homeconnect.APIError{Status: 409, Key: "SDK.Error.HomeAppliance.Connection.Initialization.Failed"}
	api.selectedErr = &homeconnect.APIError{Status: 404, Key: "SDK.Error.NoProgramSelected"}
	state := washer(false)

	var connectedDuringRefresh []bool
	var mu sync.Mutex
	api.onStatus = func() {
		mu.Lock()
		connectedDuringRefresh = append(connectedDuringRefresh, state.IsConnected())
		mu.Unlock()
	}

	c, _ := startConsumer(t, state, api, testConfig())
	pw := api.nextStream(t)
	send(t, pw, KindConnected, "")
	send(t, pw, KindKeepAlive, "")
	waitFor(t, "keep-alive after refresh", func() bool { return c.Stats().Events == 2 })

	mu.Lock()
	defer mu.Unlock()
	if len(connectedDuringRefresh) != 1 || !connectedDuringRefresh[0] {
		t.Errorf("connected during refresh = %v, want [true]", connectedDuringRefresh)
	}
	if !state.IsConnected() {
		t.Error("refresh failure reverted IsConnected()")
	}
}

func TestConsumer_RefreshUsesCapabilities(t *testing.T) {
	api := newFakeAPI()
	api.options[appliance.KeyDryerDryingTarget] = appliance.Record{
		Key:   appliance.KeyDryerDryingTarget,
		Value: "LaundryCare.Dryer.EnumType.DryingTarget.CupboardDry",
	}
	state := appliance.New(appliance.Descriptor{HaID: "BOSCH-WTX87M40-000000000003", Type: "Dryer", Connected: true})

	c, _ := startConsumer(t, state, api, testConfig())
	api.nextStream(t)

	if got := state.Value(appliance.KeyDryerDryingTarget); got != "LaundryCare.Dryer.EnumType.DryingTarget.CupboardDry" {
		t.Errorf("drying target = %v", got)
	}
	api.mu.Lock()
	calls := append([]string(nil), api.optionCalls...)
	api.mu.Unlock()
	if len(calls) != 1 || calls[0] != appliance.KeyDryerDryingTarget {
		t.Errorf("option calls = %v, want only the drying target", calls)
	}
	if c.Watchdog().Paused() {
		t.Error("watchdog paused after startup refresh of a connected appliance")
	}
}

func TestConsumer_StartupSkipsRefreshWhenDisconnected(t *testing.T) {
	api := newFakeAPI()
	c, _ := startConsumer(t, washer(false), api, testConfig())
	api.nextStream(t)

	if n := api.statusCount(); n != 0 {
		t.Errorf("status fetched %d times for a disconnected appliance", n)
	}
	if !c.Watchdog().Paused() {
		t.Error("watchdog running for a disconnected appliance")
	}
}

func TestConsumer_LastWriteWinsAndIdempotence(t *testing.T) {
	api := newFakeAPI()
	state := washer(true)
	_, rec := startConsumer(t, state, api, testConfig())
	pw := api.nextStream(t)
	base := rec.total()

	send(t, pw, KindStatus, items(appliance.KeyDoorState, appliance.DoorOpen))
	send(t, pw, KindNotify, items(appliance.KeyDoorState, appliance.DoorClosed, appliance.KeyProgramProgress, 10))
	send(t, pw, KindStatus, items(appliance.KeyDoorState, appliance.DoorLocked))
	send(t, pw, KindStatus, items(appliance.KeyDoorState, appliance.DoorLocked))
	send(t, pw, KindNotify, items(appliance.KeyProgramProgress, 11))

	waitFor(t, "progress 11", func() bool {
		return state.Value(appliance.KeyProgramProgress) == int64(11)
	})
	if got := state.Value(appliance.KeyDoorState); got != appliance.DoorLocked {
		t.Errorf("door = %v, want the last value Locked", got)
	}
	// Open, Closed+progress, Locked, progress: the repeated Locked is silent.
	if got := rec.total() - base; got != 4 {
		t.Errorf("notifications = %d, want 4", got)
	}
}

func TestConsumer_DisconnectedPausesWatchdog(t *testing.T) {
	cfg := testConfig()
	cfg.WatchdogTimeout = 40 * time.Millisecond
	cfg.ReconnectOnWatchdog = false
	api := newFakeAPI()
	state := washer(true)

	c, rec := startConsumer(t, state, api, cfg)
	pw := api.nextStream(t)

	send(t, pw, KindDisconnected, "")
	waitFor(t, "disconnect notification", rec.sawDisconnected)
	before := c.Watchdog().Expirations()

	for range 10 {
		send(t, pw, KindKeepAlive, "")
		time.Sleep(cfg.WatchdogTimeout / 2)
	}
	time.Sleep(cfg.WatchdogTimeout * 2)

	if !c.Watchdog().Paused() {
		t.Error("watchdog not paused after DISCONNECTED")
	}
	if got := c.Watchdog().Expirations(); got != before {
		t.Errorf("watchdog fired %d times while disconnected", got-before)
	}
	if c.Phase() != PhaseDisconnected {
		t.Errorf("Phase() = %s, want disconnected", c.Phase())
	}
}

func TestConsumer_KeepAlivesHoldOffWatchdog(t *testing.T) {
	// Scaled down: keep-alives every 30s against a 300s watchdog for 5 minutes.
	cfg := testConfig()
	cfg.WatchdogTimeout = 100 * time.Millisecond
	api := newFakeAPI()

	c, _ := startConsumer(t, washer(true), api, cfg)
	pw := api.nextStream(t)

	for range 50 {
		send(t, pw, KindKeepAlive, "")
		time.Sleep(cfg.WatchdogTimeout / 10)
	}

	if got := c.Watchdog().Expirations(); got != 0 {
		t.Errorf("watchdog fired %d times despite keep-alives", got)
	}
}

func TestConsumer_UnknownEventIgnored(t *testing.T) {
	api := newFakeAPI()
	state := washer(true)
	c, rec := startConsumer(t, state, api, testConfig())
	pw := api.nextStream(t)
	before := state.Snapshot()
	base := rec.total()

	send(t, pw, "PAIRED", items(appliance.KeyDoorState, appliance.DoorOpen))
	send(t, pw, KindKeepAlive, "")
	waitFor(t, "keep-alive", func() bool { return c.Stats().Events == 1 })

	if diff := state.Snapshot().Diff(before); len(diff) != 0 {
		t.Errorf("unknown event changed %v", diff)
	}
	if rec.total() != base {
		t.Error("unknown event notified subscribers")
	}
}

func TestConsumer_ReauthenticatesWithoutDisconnect(t *testing.T) {
	api := newFakeAPI()
	api.openErrs = []error{&homeconnect.TokenExpiredError{AccessToken: "at-1"}}
	state := washer(true)

	c, rec := startConsumer(t, state, api, testConfig())
	pw := api.nextStream(t)
	send(t, pw, KindStatus, items(appliance.KeyDoorState, appliance.DoorClosed))
	waitFor(t, "status after reauth", func() bool {
		return state.Value(appliance.KeyDoorState) == appliance.DoorClosed
	})

	api.mu.Lock()
	refreshed := append([]string(nil), api.refreshed...)
	api.mu.Unlock()
	if len(refreshed) != 1 || refreshed[0] != "at-1" {
		t.Errorf("refreshed = %v, want [at-1]", refreshed)
	}
	if rec.sawDisconnected() {
		t.Error("token rotation was reported as a disconnect")
	}
	if c.Stats().Reauths != 1 {
		t.Errorf("Reauths = %d, want 1", c.Stats().Reauths)
	}
}

func TestConsumer_RefreshFailureTerminates(t *testing.T) {
	api := newFakeAPI()
	api.openErrs = []error{&homeconnect.TokenExpiredError{AccessToken: "at-1"}}
	api.refreshErr = &auth.AuthError{Code: "invalid_grant", Err: auth.ErrRefreshFailed}
	state := washer(true)

	c, rec := startConsumer(t, state, api, testConfig())

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not terminate")
	}

	var authErr *auth.AuthError
	if !errors.As(c.Err(), &authErr) {
		t.Errorf("Err() = %v, want *auth.AuthError", c.Err())
	}
	if c.Phase() != PhaseTerminated {
		t.Errorf("Phase() = %s, want terminated", c.Phase())
	}
	if state.IsConnected() {
		t.Error("terminated consumer left the appliance connected")
	}
	if !rec.sawDisconnected() {
		t.Error("termination did not notify")
	}
}

func TestConsumer_RepeatedUnauthorizedTerminates(t *testing.T) {
	api := newFakeAPI()
	api.openErrs = []error{
		&homeconnect.TokenExpiredError{AccessToken: "at-1"},
		&homeconnect.TokenExpiredError{AccessToken: "at-2"},
	}

	c, _ := startConsumer(t, washer(true), api, testConfig())

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("consumer kept reauthenticating")
	}
	if !errors.Is(c.Err(), homeconnect.ErrUnauthorized) {
		t.Errorf("Err() = %v, want ErrUnauthorized", c.Err())
	}
}

func TestConsumer_ReconnectsWithBackoff(t *testing.T) {
	api := newFakeAPI()
	state := washer(true)

	c, _ := startConsumer(t, state, api, testConfig())
	first := api.nextStream(t)
	refreshesBefore := api.statusCount()

	send(t, first, KindKeepAlive, "")
	first.Close() //nolint:errcheck // Simulated remote close

	second := api.nextStream(t)
	send(t, second, KindStatus, items(appliance.KeyDoorState, appliance.DoorOpen))
	waitFor(t, "event on reconnected stream", func() bool {
		return state.Value(appliance.KeyDoorState) == appliance.DoorOpen
	})

	if got := c.Stats().Reconnects; got != 1 {
		t.Errorf("Reconnects = %d, want 1", got)
	}
	if !errors.Is(c.Err(), ErrStreamClosed) {
		t.Errorf("Err() = %v, want ErrStreamClosed", c.Err())
	}
	if api.statusCount() <= refreshesBefore {
		t.Error("reconnect did not resynchronize the connected appliance")
	}
	if !state.IsConnected() {
		t.Error("unreadable descriptor changed IsConnected()")
	}
}

func TestConsumer_ReconnectLearnsDisconnect(t *testing.T) {
	api := newFakeAPI()
	state := washer(true)

	c, rec := startConsumer(t, state, api, testConfig())
	first := api.nextStream(t)
	waitFor(t, "initial refresh", func() bool { return api.statusCount() == 1 })

	// The DISCONNECTED event went out while the stream was down.
	api.setRemoteConnected(false)
	first.Close() //nolint:errcheck // Simulated remote close
	api.nextStream(t)

	waitFor(t, "disconnect applied", func() bool { return !state.IsConnected() })
	waitFor(t, "disconnected phase", func() bool { return c.Phase() == PhaseDisconnected })

	if !rec.sawDisconnected() {
		t.Error("subscribers were not notified of the disconnect")
	}
	if got := api.statusCount(); got != 1 {
		t.Errorf("status calls = %d, want no refresh of a disconnected appliance", got)
	}
	if !c.Watchdog().Paused() {
		t.Error("watchdog should be paused for a disconnected appliance")
	}
}

func TestConsumer_ReconnectLearnsConnect(t *testing.T) {
	api := newFakeAPI()
	api.status = []appliance.Record{{Key: appliance.KeyOperationState, Value: appliance.OperationReady}}
	state := washer(false)

	c, rec := startConsumer(t, state, api, testConfig())
	first := api.nextStream(t)
	waitFor(t, "disconnected phase", func() bool { return c.Phase() == PhaseDisconnected })

	api.setRemoteConnected(true)
	first.Close() //nolint:errcheck // Simulated remote close
	api.nextStream(t)

	waitFor(t, "refresh after connect", func() bool {
		return state.Value(appliance.KeyOperationState) == appliance.OperationReady
	})

	if !state.IsConnected() {
		t.Error("IsConnected() = false, want descriptor value true")
	}
	waitFor(t, "connected phase", func() bool { return c.Phase() == PhaseConnected })
	if rec.total() == 0 {
		t.Error("subscribers were not notified of the connect")
	}
	if c.Watchdog().Paused() {
		t.Error("watchdog should run for a connected appliance")
	}
	if api.descriptorCount() != 1 {
		t.Errorf("descriptor reads = %d, want 1", api.descriptorCount())
	}
}

func TestConsumer_TerminatesWhenReconnectDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Reconnect = false
	api := newFakeAPI()
	state := washer(true)

	c, rec := startConsumer(t, state, api, cfg)
	pw := api.nextStream(t)
	pw.CloseWithError(errors.New("connection reset by peer")) //nolint:errcheck // Simulated failure

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not terminate")
	}

	if !errors.Is(c.Err(), ErrStream) {
		t.Errorf("Err() = %v, want ErrStream", c.Err())
	}
	if c.Phase() != PhaseTerminated {
		t.Errorf("Phase() = %s, want terminated", c.Phase())
	}
	if state.IsConnected() || !rec.sawDisconnected() {
		t.Error("termination should mark the appliance disconnected and notify")
	}
	if api.openCount() != 1 {
		t.Errorf("opens = %d, want no reconnect", api.openCount())
	}
}

func TestConsumer_ReconnectAttemptsExhausted(t *testing.T) {
	cfg := testConfig()
	cfg.MaxAttempts = 2
	api := newFakeAPI()
	api.alwaysErr = fmt.Errorf("%w: status 503", homeconnect.ErrStreamRejected)

	c, _ := startConsumer(t, washer(false), api, cfg)

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not give up")
	}

	if !errors.Is(c.Err(), ErrReconnectExhausted) {
		t.Errorf("Err() = %v, want ErrReconnectExhausted", c.Err())
	}
	if !errors.Is(c.Err(), homeconnect.ErrStreamRejected) {
		t.Errorf("Err() = %v, want the last failure wrapped", c.Err())
	}
	if got := api.openCount(); got != 3 {
		t.Errorf("opens = %d, want 1 + 2 retries", got)
	}
}

func TestConsumer_WatchdogForcesReconnect(t *testing.T) {
	cfg := testConfig()
	cfg.WatchdogTimeout = 40 * time.Millisecond
	cfg.ReconnectOnWatchdog = true
	api := newFakeAPI()

	c, _ := startConsumer(t, washer(true), api, cfg)
	api.nextStream(t)

	// The first stream stays silent; the watchdog must tear it down.
	api.nextStream(t)

	if c.Watchdog().Expirations() < 1 {
		t.Error("watchdog did not fire")
	}
	if !errors.Is(c.Err(), ErrWatchdogExpired) {
		t.Errorf("Err() = %v, want ErrWatchdogExpired", c.Err())
	}
}

func TestConsumer_WatchdogOnlyLogsWhenReconnectOff(t *testing.T) {
	cfg := testConfig()
	cfg.WatchdogTimeout = 20 * time.Millisecond
	cfg.ReconnectOnWatchdog = false
	api := newFakeAPI()

	c, _ := startConsumer(t, washer(true), api, cfg)
	api.nextStream(t)

	waitFor(t, "watchdog expiry", func() bool { return c.Watchdog().Expirations() >= 2 })
	if got := api.openCount(); got != 1 {
		t.Errorf("opens = %d, want the stream left open", got)
	}
}

func TestConsumer_ReadTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.ReadTimeout = 30 * time.Millisecond
	api := newFakeAPI()

	c, _ := startConsumer(t, washer(true), api, cfg)
	api.nextStream(t)
	api.nextStream(t)

	if !errors.Is(c.Err(), ErrReadTimeout) {
		t.Errorf("Err() = %v, want ErrReadTimeout", c.Err())
	}
}

func TestConsumer_StopIsScoped(t *testing.T) {
	cfg := testConfig()
	cfg.WatchdogTimeout = 10 * time.Millisecond
	api := newFakeAPI()

	c := New(washer(true), api, nil, cfg)
	c.Start(context.Background())
	pw := api.nextStream(t)

	stopped := make(chan struct{})
	go func() {
		c.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() did not return")
	}

	select {
	case <-c.Done():
	default:
		t.Error("Done() not closed after Stop()")
	}
	if _, err := pw.Write([]byte("event: KEEP-ALIVE\n\n")); err == nil {
		t.Error("stream still open after Stop()")
	}
	fired := c.Watchdog().Expirations()
	time.Sleep(5 * cfg.WatchdogTimeout)
	if c.Watchdog().Expirations() != fired {
		t.Error("watchdog fired after Stop()")
	}
	if c.Phase() != PhaseStopped {
		t.Errorf("Phase() = %s, want stopped", c.Phase())
	}
}

func TestConsumer_StopWithoutStart(t *testing.T) {
	c := New(washer(false), newFakeAPI(), nil, testConfig())
	c.Stop()

	select {
	case <-c.Done():
	default:
		t.Error("Done() not closed")
	}
	c.Start(context.Background())
}
