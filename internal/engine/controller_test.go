package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hamzaKhattat/calllog-production-system/internal/models"
	"github.com/hamzaKhattat/calllog-production-system/pkg/errors"
)

type fakeSource struct {
	mu      sync.Mutex
	ready   bool
	calls   []models.LogicalCall
	version uint64
}

func (f *fakeSource) Ready() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready
}

func (f *fakeSource) Snapshot() ([]models.LogicalCall, uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls, f.version
}

func (f *fakeSource) push(ready bool, calls ...models.LogicalCall) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ready = ready
	f.calls = calls
	f.version++
}

type fakeMatcher struct {
	mu        sync.Mutex
	ready     bool
	matches   map[string][]models.MatchEntity
	triggered int
	err       error
}

func (f *fakeMatcher) Ready() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready
}

func (f *fakeMatcher) TriggerMatch(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggered++
	return f.err
}

func (f *fakeMatcher) Matches(key string) []models.MatchEntity {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.matches[key]
}

type fakeStore struct {
	mu     sync.Mutex
	ready  bool
	values map[string]models.LoggerSettings
	sets   int
}

func newFakeStore(ready bool) *fakeStore {
	return &fakeStore{ready: ready, values: make(map[string]models.LoggerSettings)}
}

func (f *fakeStore) Ready() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready
}

func (f *fakeStore) Register(key string, defaults models.LoggerSettings) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.values[key]; !ok {
		f.values[key] = defaults
	}
}

func (f *fakeStore) Get(key string) models.LoggerSettings {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[key]
}

func (f *fakeStore) Set(ctx context.Context, key string, settings models.LoggerSettings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = settings
	f.sets++
	return nil
}

type recorder struct {
	mu      sync.Mutex
	entries []models.LogEntry
}

func (r *recorder) provider(name string, allowAutoLog bool) Provider {
	return Provider{
		Name:         name,
		AllowAutoLog: allowAutoLog,
		ReadyCheck:   func() bool { return true },
		Log: func(ctx context.Context, entry models.LogEntry) error {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.entries = append(r.entries, entry)
			return nil
		},
	}
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *recorder) last() models.LogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[len(r.entries)-1]
}

type harness struct {
	source     *fakeSource
	contacts   *fakeMatcher
	activities *fakeMatcher
	store      *fakeStore
	ctrl       *Controller
}

func newHarness(t *testing.T, settings models.LoggerSettings) *harness {
	t.Helper()

	h := &harness{
		source:     &fakeSource{},
		contacts:   &fakeMatcher{ready: true, matches: make(map[string][]models.MatchEntity)},
		activities: &fakeMatcher{ready: true, matches: make(map[string][]models.MatchEntity)},
		store:      newFakeStore(true),
	}

	ctrl, err := NewController(Config{
		Source:     h.source,
		Contacts:   h.contacts,
		Activities: h.activities,
		Store:      h.store,
		Clock:      func() time.Time { return time.UnixMilli(5_000_000) },
	})
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	h.ctrl = ctrl
	h.store.values[ctrl.storageKey] = settings
	return h
}

func endedCall(sessionID string) models.LogicalCall {
	return models.LogicalCall{Call: models.Call{
		SessionID:       sessionID,
		Direction:       models.DirectionInbound,
		TelephonyStatus: models.StatusNoCall,
		TerminationType: models.TerminationFinal,
		StartTime:       4_000_000,
		From:            &models.Party{PhoneNumber: "+16505550100"},
		To:              &models.Party{PhoneNumber: "+19072028624"},
	}}
}

func ringingCall(sessionID string) models.LogicalCall {
	call := endedCall(sessionID)
	call.TelephonyStatus = models.StatusRinging
	call.TerminationType = ""
	return call
}

func TestNewControllerValidation(t *testing.T) {
	source := &fakeSource{}
	matcherOK := &fakeMatcher{}
	store := newFakeStore(false)

	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing source", Config{Contacts: matcherOK, Activities: matcherOK, Store: store}},
		{"missing contacts", Config{Source: source, Activities: matcherOK, Store: store}},
		{"missing activities", Config{Source: source, Contacts: matcherOK, Store: store}},
		{"missing store", Config{Source: source, Contacts: matcherOK, Activities: matcherOK}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewController(tt.cfg); !errors.Is(err, errors.ErrConfiguration) {
				t.Errorf("got %v, want configuration error", err)
			}
		})
	}
}

func TestControllerDefaultName(t *testing.T) {
	h := newHarness(t, models.LoggerSettings{})
	if h.ctrl.Name() != "callLogger" {
		t.Errorf("name = %s, want callLogger", h.ctrl.Name())
	}
	if h.ctrl.storageKey != "callLoggerData" {
		t.Errorf("storage key = %s", h.ctrl.storageKey)
	}
}

func TestControllerBecomesReady(t *testing.T) {
	h := newHarness(t, models.LoggerSettings{})
	ctx := context.Background()

	if !h.ctrl.Pending() {
		t.Fatal("controller must start pending")
	}

	if err := h.ctrl.OnStateChange(ctx); err != nil {
		t.Fatalf("OnStateChange: %v", err)
	}
	if h.ctrl.Ready() {
		t.Fatal("must stay pending while the source is not ready")
	}

	h.source.push(true)
	if err := h.ctrl.OnStateChange(ctx); err != nil {
		t.Fatalf("OnStateChange: %v", err)
	}
	if !h.ctrl.Ready() {
		t.Fatal("controller must become ready once collaborators are")
	}
}

func TestControllerNotReadyProviderBlocksReadiness(t *testing.T) {
	h := newHarness(t, models.LoggerSettings{})
	ctx := context.Background()

	down := Provider{
		Name:         "down",
		AllowAutoLog: true,
		ReadyCheck:   func() bool { return false },
		Log:          func(context.Context, models.LogEntry) error { return nil },
	}
	if err := h.ctrl.AddProvider(down); err != nil {
		t.Fatalf("AddProvider: %v", err)
	}

	h.source.push(true)
	if err := h.ctrl.OnStateChange(ctx); err != nil {
		t.Fatalf("OnStateChange: %v", err)
	}
	if h.ctrl.Ready() {
		t.Fatal("a not-ready provider must keep the controller pending")
	}
}

func TestAutoLogNewEndedCall(t *testing.T) {
	h := newHarness(t, models.LoggerSettings{AutoLog: true, LogOnRinging: false})
	ctx := context.Background()

	var rec recorder
	if err := h.ctrl.AddProvider(rec.provider("crm", true)); err != nil {
		t.Fatal(err)
	}
	var manualOnly recorder
	if err := h.ctrl.AddProvider(manualOnly.provider("notes", false)); err != nil {
		t.Fatal(err)
	}

	h.source.push(true, endedCall("1"))
	if err := h.ctrl.OnStateChange(ctx); err != nil {
		t.Fatalf("OnStateChange: %v", err)
	}

	if rec.count() != 1 {
		t.Fatalf("crm received %d entries, want 1", rec.count())
	}
	if manualOnly.count() != 0 {
		t.Fatal("manual-only provider must not receive auto-log entries")
	}

	entry := rec.last()
	if entry.Provider != "crm" {
		t.Errorf("entry provider = %s", entry.Provider)
	}
	if entry.Call.Duration == nil {
		t.Fatal("duration must be enriched")
	}
	// clock 5,000,000ms - start 4,000,000ms = 1000s
	if *entry.Call.Duration != 1000 {
		t.Errorf("duration = %d, want 1000", *entry.Call.Duration)
	}
	if entry.Call.Result != string(models.StatusNoCall) {
		t.Errorf("result = %s, want status fallback", entry.Call.Result)
	}
}

func TestAutoLogSameVersionProcessedOnce(t *testing.T) {
	h := newHarness(t, models.LoggerSettings{AutoLog: true})
	ctx := context.Background()

	var rec recorder
	h.ctrl.AddProvider(rec.provider("crm", true))

	h.source.push(true, endedCall("1"))
	h.ctrl.OnStateChange(ctx)
	h.ctrl.OnStateChange(ctx)
	h.ctrl.OnStateChange(ctx)

	if rec.count() != 1 {
		t.Fatalf("got %d entries for one snapshot version, want 1", rec.count())
	}
}

func TestAutoLogRingingGate(t *testing.T) {
	h := newHarness(t, models.LoggerSettings{AutoLog: true, LogOnRinging: false})
	ctx := context.Background()

	var rec recorder
	h.ctrl.AddProvider(rec.provider("crm", true))

	h.source.push(true, ringingCall("1"))
	h.ctrl.OnStateChange(ctx)
	if rec.count() != 0 {
		t.Fatal("ringing call must not log while logOnRinging is off")
	}

	// status transition ringing -> ended logs exactly once
	h.source.push(true, endedCall("1"))
	h.ctrl.OnStateChange(ctx)
	if rec.count() != 1 {
		t.Fatalf("got %d entries after the call ended, want 1", rec.count())
	}
}

func TestAutoLogRingingAllowed(t *testing.T) {
	h := newHarness(t, models.LoggerSettings{AutoLog: true, LogOnRinging: true})
	ctx := context.Background()

	var rec recorder
	h.ctrl.AddProvider(rec.provider("crm", true))

	h.source.push(true, ringingCall("1"))
	h.ctrl.OnStateChange(ctx)
	if rec.count() != 1 {
		t.Fatalf("got %d entries, want ringing call logged", rec.count())
	}
}

func TestAutoLogOffRequiresActivityMatch(t *testing.T) {
	h := newHarness(t, models.LoggerSettings{AutoLog: false, LogOnRinging: true})
	ctx := context.Background()

	var rec recorder
	h.ctrl.AddProvider(rec.provider("crm", true))

	// new call with auto-log off: nothing
	h.source.push(true, ringingCall("1"))
	h.ctrl.OnStateChange(ctx)
	if rec.count() != 0 {
		t.Fatal("new call must not log while auto-log is off")
	}

	// update without an existing activity: still nothing
	h.source.push(true, endedCall("1"))
	h.ctrl.OnStateChange(ctx)
	if rec.count() != 0 {
		t.Fatal("update without an activity match must not log")
	}

	// update with an existing activity: flows to the log
	h.activities.mu.Lock()
	h.activities.matches["1"] = []models.MatchEntity{{ID: "7", Type: "activity"}}
	h.activities.mu.Unlock()

	// updates only fire on a status change, so flip the status back
	connected := endedCall("1")
	connected.TelephonyStatus = models.StatusCallConnected
	connected.TerminationType = ""
	h.source.push(true, connected)
	h.ctrl.OnStateChange(ctx)

	if rec.count() != 1 {
		t.Fatalf("got %d entries, want matched update logged", rec.count())
	}
}

func TestRemovedCallTreatedAsUpdate(t *testing.T) {
	h := newHarness(t, models.LoggerSettings{AutoLog: true})
	ctx := context.Background()

	var rec recorder
	h.ctrl.AddProvider(rec.provider("crm", true))

	h.source.push(true, endedCall("1"))
	h.ctrl.OnStateChange(ctx)
	if rec.count() != 1 {
		t.Fatalf("setup: got %d entries", rec.count())
	}

	// the call disappears from the next snapshot
	h.source.push(true)
	h.ctrl.OnStateChange(ctx)
	if rec.count() != 2 {
		t.Fatalf("got %d entries, want removed call logged as an update", rec.count())
	}
}

func TestResetClearsBaseline(t *testing.T) {
	h := newHarness(t, models.LoggerSettings{AutoLog: true})
	ctx := context.Background()

	var rec recorder
	h.ctrl.AddProvider(rec.provider("crm", true))

	h.source.push(true, endedCall("1"))
	h.ctrl.OnStateChange(ctx)
	if rec.count() != 1 {
		t.Fatalf("setup: got %d entries", rec.count())
	}

	// source drops: controller resets to pending
	h.source.push(false)
	h.ctrl.OnStateChange(ctx)
	if !h.ctrl.Pending() {
		t.Fatal("controller must reset to pending when the source drops")
	}
	if got := h.ctrl.LastProcessed(); len(got) != 0 {
		t.Fatalf("baseline not cleared: %d calls", len(got))
	}

	// source recovers with the same call: treated as new again
	h.source.push(true, endedCall("1"))
	h.ctrl.OnStateChange(ctx)
	if !h.ctrl.Ready() {
		t.Fatal("controller must recover to ready")
	}
	if rec.count() != 2 {
		t.Fatalf("got %d entries, want the call re-logged after reset", rec.count())
	}
}

func TestProviderFailureDoesNotBlockSiblings(t *testing.T) {
	h := newHarness(t, models.LoggerSettings{AutoLog: true})
	ctx := context.Background()

	failing := Provider{
		Name:         "failing",
		AllowAutoLog: true,
		ReadyCheck:   func() bool { return true },
		Log: func(context.Context, models.LogEntry) error {
			return fmt.Errorf("downstream rejected the entry")
		},
	}
	h.ctrl.AddProvider(failing)
	var rec recorder
	h.ctrl.AddProvider(rec.provider("crm", true))

	h.source.push(true, endedCall("1"))
	err := h.ctrl.OnStateChange(ctx)
	if err == nil {
		t.Fatal("expected the failing provider's error to surface")
	}
	if rec.count() != 1 {
		t.Fatalf("sibling received %d entries, want 1", rec.count())
	}
}

func TestResolveEntitiesSingleMatchOnly(t *testing.T) {
	h := newHarness(t, models.LoggerSettings{AutoLog: true})
	ctx := context.Background()

	h.contacts.mu.Lock()
	h.contacts.matches["+16505550100"] = []models.MatchEntity{{ID: "from-1"}}
	h.contacts.matches["+19072028624"] = []models.MatchEntity{{ID: "a"}, {ID: "b"}}
	h.contacts.mu.Unlock()

	var rec recorder
	h.ctrl.AddProvider(rec.provider("crm", true))

	h.source.push(true, endedCall("1"))
	h.ctrl.OnStateChange(ctx)

	entry := rec.last()
	if entry.FromEntity == nil || entry.FromEntity.ID != "from-1" {
		t.Errorf("fromEntity = %+v, want the single match", entry.FromEntity)
	}
	if entry.ToEntity != nil {
		t.Errorf("toEntity = %+v, want nil for an ambiguous match", entry.ToEntity)
	}
}

func TestLogCallManual(t *testing.T) {
	h := newHarness(t, models.LoggerSettings{})
	ctx := context.Background()

	var rec recorder
	h.ctrl.AddProvider(rec.provider("crm", true))

	t.Run("unknown provider", func(t *testing.T) {
		err := h.ctrl.LogCall(ctx, LogRequest{Call: endedCall("1"), Provider: "nope"})
		if !errors.Is(err, errors.ErrProviderNotFound) {
			t.Errorf("got %v, want provider-not-found", err)
		}
	})

	t.Run("contact overrides inbound from entity", func(t *testing.T) {
		contact := &models.MatchEntity{ID: "picked"}
		err := h.ctrl.LogCall(ctx, LogRequest{Call: endedCall("1"), Provider: "crm", Contact: contact})
		if err != nil {
			t.Fatalf("LogCall: %v", err)
		}
		entry := rec.last()
		if entry.FromEntity == nil || entry.FromEntity.ID != "picked" {
			t.Errorf("fromEntity = %+v, want the explicit contact", entry.FromEntity)
		}
	})

	t.Run("contact overrides outbound to entity", func(t *testing.T) {
		call := endedCall("2")
		call.Direction = models.DirectionOutbound
		contact := &models.MatchEntity{ID: "callee"}
		if err := h.ctrl.LogCall(ctx, LogRequest{Call: call, Provider: "crm", Contact: contact}); err != nil {
			t.Fatalf("LogCall: %v", err)
		}
		entry := rec.last()
		if entry.ToEntity == nil || entry.ToEntity.ID != "callee" {
			t.Errorf("toEntity = %+v, want the explicit contact", entry.ToEntity)
		}
	})

	t.Run("works while pending", func(t *testing.T) {
		if h.ctrl.Ready() {
			t.Fatal("harness expected to be pending")
		}
		if err := h.ctrl.LogCall(ctx, LogRequest{Call: endedCall("3"), Provider: "crm"}); err != nil {
			t.Fatalf("LogCall: %v", err)
		}
	})
}

func TestSettingsGating(t *testing.T) {
	h := newHarness(t, models.LoggerSettings{AutoLog: true})
	ctx := context.Background()

	// pending: silent no-op
	if err := h.ctrl.SetAutoLog(ctx, false); err != nil {
		t.Fatalf("SetAutoLog: %v", err)
	}
	if !h.ctrl.AutoLog() {
		t.Fatal("settings must not change while pending")
	}
	if h.store.sets != 0 {
		t.Fatal("store must not be written while pending")
	}

	h.source.push(true)
	h.ctrl.OnStateChange(ctx)

	// unchanged value: no store write
	if err := h.ctrl.SetAutoLog(ctx, true); err != nil {
		t.Fatalf("SetAutoLog: %v", err)
	}
	if h.store.sets != 0 {
		t.Fatal("unchanged value must not be persisted")
	}

	// real change persists
	if err := h.ctrl.SetAutoLog(ctx, false); err != nil {
		t.Fatalf("SetAutoLog: %v", err)
	}
	if h.ctrl.AutoLog() {
		t.Fatal("autoLog must be off")
	}
	if h.store.sets != 1 {
		t.Fatalf("store writes = %d, want 1", h.store.sets)
	}

	if err := h.ctrl.SetLogOnRinging(ctx, true); err != nil {
		t.Fatalf("SetLogOnRinging: %v", err)
	}
	if !h.ctrl.LogOnRinging() {
		t.Fatal("logOnRinging must be on")
	}
}

func TestAddProviderValidation(t *testing.T) {
	h := newHarness(t, models.LoggerSettings{})

	if err := h.ctrl.AddProvider(Provider{}); !errors.Is(err, errors.ErrConfiguration) {
		t.Errorf("nameless provider: got %v", err)
	}
	if err := h.ctrl.AddProvider(Provider{Name: "x", ReadyCheck: func() bool { return true }}); !errors.Is(err, errors.ErrConfiguration) {
		t.Errorf("provider without log func: got %v", err)
	}

	var rec recorder
	if err := h.ctrl.AddProvider(rec.provider("crm", true)); err != nil {
		t.Fatalf("AddProvider: %v", err)
	}
	// same name replaces, order unchanged
	if err := h.ctrl.AddProvider(rec.provider("crm", false)); err != nil {
		t.Fatalf("AddProvider replace: %v", err)
	}

	infos := h.ctrl.Providers()
	if len(infos) != 1 {
		t.Fatalf("got %d providers, want 1", len(infos))
	}
	if infos[0].AllowAutoLog {
		t.Error("replacement descriptor not applied")
	}
}
