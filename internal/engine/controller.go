// Package engine drives at-most-once call logging. The controller watches a
// reconciled call source, diffs successive snapshots, and dispatches log
// entries to registered providers according to the auto-log policy.
package engine

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/hamzaKhattat/calllog-production-system/internal/calllog"
	"github.com/hamzaKhattat/calllog-production-system/internal/models"
	"github.com/hamzaKhattat/calllog-production-system/pkg/errors"
	"github.com/hamzaKhattat/calllog-production-system/pkg/logger"
)

// State is the controller lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StatePending
	StateReady
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateReady:
		return "ready"
	default:
		return "uninitialized"
	}
}

// CallSource exposes the reconciled logical call list. The version number
// increases whenever the upstream list is replaced; the controller never
// re-processes a version it has already seen.
type CallSource interface {
	Ready() bool
	Snapshot() ([]models.LogicalCall, uint64)
}

// Matcher resolves phone numbers or session ids to business entities.
type Matcher interface {
	Ready() bool
	TriggerMatch(ctx context.Context) error
	Matches(key string) []models.MatchEntity
}

// SettingsStore persists the controller's settings under its storage key.
type SettingsStore interface {
	Ready() bool
	Register(key string, defaults models.LoggerSettings)
	Get(key string) models.LoggerSettings
	Set(ctx context.Context, key string, settings models.LoggerSettings) error
}

// MetricsInterface defines metrics operations
type MetricsInterface interface {
	IncrementCounter(name string, labels map[string]string)
	SetGauge(name string, value float64, labels map[string]string)
}

type noopMetrics struct{}

func (noopMetrics) IncrementCounter(string, map[string]string)  {}
func (noopMetrics) SetGauge(string, float64, map[string]string) {}

// Config holds the controller's collaborators. Source, Contacts,
// Activities and Store are required; construction fails without them.
type Config struct {
	Name       string
	Source     CallSource
	Contacts   Matcher
	Activities Matcher
	Store      SettingsStore
	Metrics    MetricsInterface
	Clock      func() time.Time
}

// Controller is the call logger state machine.
type Controller struct {
	name       string
	storageKey string
	source     CallSource
	contacts   Matcher
	activities Matcher
	store      SettingsStore
	metrics    MetricsInterface
	clock      func() time.Time

	mu        sync.Mutex
	state     State
	providers map[string]Provider
	order     []string

	lastProcessed []models.LogicalCall
	lastVersion   uint64
	hasBaseline   bool

	// serializes processing passes so a snapshot is fully handled,
	// enrichment awaited, before the next one is diffed
	processMu sync.Mutex
}

// NewController validates the collaborators and returns a controller in the
// pending state with its settings key registered.
func NewController(cfg Config) (*Controller, error) {
	if cfg.Source == nil {
		return nil, errors.New(errors.ErrConfiguration, "call source is required")
	}
	if cfg.Contacts == nil {
		return nil, errors.New(errors.ErrConfiguration, "contact matcher is required")
	}
	if cfg.Activities == nil {
		return nil, errors.New(errors.ErrConfiguration, "activity matcher is required")
	}
	if cfg.Store == nil {
		return nil, errors.New(errors.ErrConfiguration, "settings store is required")
	}

	name := cfg.Name
	if name == "" {
		name = "callLogger"
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	c := &Controller{
		name:       name,
		storageKey: name + "Data",
		source:     cfg.Source,
		contacts:   cfg.Contacts,
		activities: cfg.Activities,
		store:      cfg.Store,
		metrics:    metrics,
		clock:      clock,
		state:      StatePending,
		providers:  make(map[string]Provider),
	}
	c.store.Register(c.storageKey, models.LoggerSettings{})

	return c, nil
}

func (c *Controller) Name() string { return c.name }

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Ready() bool   { return c.State() == StateReady }
func (c *Controller) Pending() bool { return c.State() == StatePending }

// OnStateChange re-evaluates readiness and, when ready, processes any new
// call snapshot. The host invokes it on every external event from any
// collaborator.
func (c *Controller) OnStateChange(ctx context.Context) error {
	c.mu.Lock()
	c.evaluateTransitionsLocked()
	ready := c.state == StateReady
	c.mu.Unlock()

	if !ready {
		return nil
	}
	return c.processCalls(ctx)
}

func (c *Controller) evaluateTransitionsLocked() {
	switch {
	case c.state == StatePending && c.collaboratorsReadyLocked():
		c.state = StateReady
		logger.WithField("controller", c.name).Info("Call logger ready")
	case c.state == StateReady && !c.collaboratorsReadyLocked():
		// Reset: forget the baseline so the next ready period diffs from
		// empty. In-flight provider calls are not cancelled.
		c.state = StatePending
		c.lastProcessed = nil
		c.lastVersion = 0
		c.hasBaseline = false
		logger.WithField("controller", c.name).Warn("Call logger reset to pending")
	}

	readyGauge := 0.0
	if c.state == StateReady {
		readyGauge = 1.0
	}
	c.metrics.SetGauge("calllogger_ready", readyGauge, nil)
}

func (c *Controller) collaboratorsReadyLocked() bool {
	return c.source.Ready() &&
		c.contacts.Ready() &&
		c.activities.Ready() &&
		c.providersReadyLocked() &&
		c.store.Ready()
}

func (c *Controller) processCalls(ctx context.Context) error {
	c.processMu.Lock()
	defer c.processMu.Unlock()

	c.mu.Lock()
	if c.state != StateReady {
		c.mu.Unlock()
		return nil
	}
	calls, version := c.source.Snapshot()
	if c.hasBaseline && version == c.lastVersion {
		c.mu.Unlock()
		return nil
	}
	oldCalls := append([]models.LogicalCall(nil), c.lastProcessed...)
	c.lastProcessed = calls
	c.lastVersion = version
	c.hasBaseline = true
	settings := c.store.Get(c.storageKey)
	c.mu.Unlock()

	c.metrics.SetGauge("calllogger_active_calls", float64(len(calls)), nil)

	var result *multierror.Error
	for i := range calls {
		call := calls[i]
		oldIndex := findBySessionID(oldCalls, call.SessionID)
		if oldIndex == -1 {
			c.metrics.IncrementCounter("calllogger_calls_processed", map[string]string{"transition": "new"})
			if err := c.onNewCall(ctx, call, settings); err != nil {
				result = multierror.Append(result, err)
			}
			continue
		}

		oldCall := oldCalls[oldIndex]
		oldCalls = append(oldCalls[:oldIndex], oldCalls[oldIndex+1:]...)
		if call.TelephonyStatus != oldCall.TelephonyStatus {
			c.metrics.IncrementCounter("calllogger_calls_processed", map[string]string{"transition": "updated"})
			if err := c.onCallUpdated(ctx, call, settings); err != nil {
				result = multierror.Append(result, err)
			}
		}
	}

	// Calls present only in the previous snapshot: still updates, flowing
	// to whatever log entries already exist for them.
	for _, stale := range oldCalls {
		c.metrics.IncrementCounter("calllogger_calls_processed", map[string]string{"transition": "removed"})
		if err := c.onCallUpdated(ctx, stale, settings); err != nil {
			result = multierror.Append(result, err)
		}
	}

	return result.ErrorOrNil()
}

func findBySessionID(calls []models.LogicalCall, sessionID string) int {
	for i := range calls {
		if calls[i].SessionID == sessionID {
			return i
		}
	}
	return -1
}

func (c *Controller) onNewCall(ctx context.Context, call models.LogicalCall, settings models.LoggerSettings) error {
	if !settings.AutoLog {
		return nil
	}
	if !settings.LogOnRinging && calllog.IsRinging(&call.Call) {
		return nil
	}
	return c.autoLogCall(ctx, call)
}

func (c *Controller) onCallUpdated(ctx context.Context, call models.LogicalCall, settings models.LoggerSettings) error {
	if !settings.LogOnRinging && calllog.IsRinging(&call.Call) {
		return nil
	}
	if !settings.AutoLog {
		// Auto-log is off, but someone may have started logging this call
		// manually; updates should still flow to that log entry.
		if err := c.activities.TriggerMatch(ctx); err != nil {
			return errors.Wrap(err, errors.ErrMatcher, "activity match failed")
		}
		if len(c.activities.Matches(call.SessionID)) == 0 {
			return nil
		}
	}
	return c.autoLogCall(ctx, call)
}

// autoLogCall enriches the call and fans out to every provider that allows
// auto-log and reports ready. Provider calls run concurrently; a failure in
// one does not cancel its siblings, and all are awaited before returning.
func (c *Controller) autoLogCall(ctx context.Context, call models.LogicalCall) error {
	if err := c.contacts.TriggerMatch(ctx); err != nil {
		return errors.Wrap(err, errors.ErrMatcher, "contact match failed")
	}
	fromEntity, toEntity := c.resolveEntities(call)
	enriched := c.enrich(call)

	c.mu.Lock()
	var eligible []Provider
	for _, name := range c.order {
		p := c.providers[name]
		if p.AllowAutoLog && p.ReadyCheck() {
			eligible = append(eligible, p)
		}
	}
	c.mu.Unlock()

	var (
		wg     sync.WaitGroup
		errMu  sync.Mutex
		result *multierror.Error
	)
	for _, p := range eligible {
		wg.Add(1)
		go func(p Provider) {
			defer wg.Done()
			entry := models.LogEntry{
				Call:       enriched,
				Provider:   p.Name,
				FromEntity: fromEntity,
				ToEntity:   toEntity,
			}
			if err := p.Log(ctx, entry); err != nil {
				logger.WithError(err).WithField("provider", p.Name).Error("Auto-log dispatch failed")
				c.metrics.IncrementCounter("calllogger_autolog", map[string]string{"provider": p.Name, "status": "failed"})
				errMu.Lock()
				result = multierror.Append(result, errors.Wrap(err, errors.ErrProviderFailed, p.Name))
				errMu.Unlock()
				return
			}
			c.metrics.IncrementCounter("calllogger_autolog", map[string]string{"provider": p.Name, "status": "ok"})
		}(p)
	}
	wg.Wait()

	return result.ErrorOrNil()
}

// resolveEntities looks the call's numbers up in the contact matcher. Only
// a single unambiguous match resolves; zero or multiple leave the entity
// nil.
func (c *Controller) resolveEntities(call models.LogicalCall) (from, to *models.MatchEntity) {
	if call.From != nil && call.From.PhoneNumber != "" {
		if matches := c.contacts.Matches(call.From.PhoneNumber); len(matches) == 1 {
			entity := matches[0]
			from = &entity
		}
	}
	if call.To != nil && call.To.PhoneNumber != "" {
		if matches := c.contacts.Matches(call.To.PhoneNumber); len(matches) == 1 {
			entity := matches[0]
			to = &entity
		}
	}
	return from, to
}

// enrich fills in duration and result on an owned copy of the call.
func (c *Controller) enrich(call models.LogicalCall) models.LogicalCall {
	enriched := call
	enriched.Call = call.Call.Clone()
	if enriched.Duration == nil {
		elapsed := c.clock().UnixMilli() - enriched.StartTime
		seconds := int64(math.Round(float64(elapsed) / 1000))
		enriched.Duration = &seconds
	}
	if enriched.Result == "" {
		enriched.Result = string(enriched.TelephonyStatus)
	}
	return enriched
}

// LogRequest is a manual log invocation for one named provider. When the
// call is inbound an already-known Contact overrides the matcher's
// fromEntity resolution; when outbound, the toEntity.
type LogRequest struct {
	Call     models.LogicalCall
	Provider string
	Contact  *models.MatchEntity
}

// LogCall logs one call to one provider with the same enrichment as
// auto-log.
func (c *Controller) LogCall(ctx context.Context, req LogRequest) error {
	c.mu.Lock()
	p, ok := c.providers[req.Provider]
	c.mu.Unlock()
	if !ok {
		return errors.New(errors.ErrProviderNotFound, "unknown log provider").
			WithContext("provider", req.Provider)
	}

	if err := c.contacts.TriggerMatch(ctx); err != nil {
		return errors.Wrap(err, errors.ErrMatcher, "contact match failed")
	}
	fromEntity, toEntity := c.resolveEntities(req.Call)
	if req.Contact != nil {
		if calllog.IsInbound(&req.Call.Call) {
			fromEntity = req.Contact
		} else {
			toEntity = req.Contact
		}
	}

	entry := models.LogEntry{
		Call:       c.enrich(req.Call),
		Provider:   p.Name,
		FromEntity: fromEntity,
		ToEntity:   toEntity,
	}
	if err := p.Log(ctx, entry); err != nil {
		c.metrics.IncrementCounter("calllogger_manual_log", map[string]string{"provider": p.Name, "status": "failed"})
		return errors.Wrap(err, errors.ErrProviderFailed, p.Name)
	}
	c.metrics.IncrementCounter("calllogger_manual_log", map[string]string{"provider": p.Name, "status": "ok"})
	return nil
}

// LastProcessed returns a copy of the snapshot the controller last diffed.
func (c *Controller) LastProcessed() []models.LogicalCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.LogicalCall(nil), c.lastProcessed...)
}
