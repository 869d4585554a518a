package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"moodline/internal/classifier"
	"moodline/internal/domain"
	"moodline/internal/logging"
	"moodline/internal/notifier"
	"moodline/internal/storage"
)

const (
	defaultMaxInFlight     = 64
	defaultDeliveryTimeout = 10 * time.Second
	defaultDedupTTL        = 24 * time.Hour
)

var (
	ErrBusy   = errors.New("dispatcher: too many events in flight")
	ErrClosed = errors.New("dispatcher: closed")
)

type State string

const (
	StateReceived       State = "received"
	StateAcknowledged   State = "acknowledged"
	StateClassifying    State = "classifying"
	StateClassified     State = "classified"
	StateLogged         State = "logged"
	StateDelivered      State = "delivered"
	StateDeliveryFailed State = "delivery_failed"
	StateRejected       State = "rejected"
	StateDuplicate      State = "duplicate"
)

type Broadcaster interface {
	Broadcast(msg string)
}

// Claimer deduplicates redelivered webhook events.
type Claimer interface {
	Claim(ctx context.Context, eventID string, ttl time.Duration) (bool, error)
}

// Report is the terminal view of one event, published to the broadcaster.
type Report struct {
	EventID    string    `json:"event_id"`
	UserID     string    `json:"user_id"`
	State      State     `json:"state"`
	Label      string    `json:"label,omitempty"`
	Confidence float64   `json:"confidence"`
	Fallback   bool      `json:"fallback,omitempty"`
	Errors     []string  `json:"errors,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}

type Option func(*Dispatcher)

// WithMaxInFlight bounds the number of concurrently processed events.
func WithMaxInFlight(n int) Option {
	return func(d *Dispatcher) { d.maxInFlight = n }
}

func WithDeliveryTimeout(t time.Duration) Option {
	return func(d *Dispatcher) { d.deliveryTimeout = t }
}

func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithOnError sets a callback invoked for every pipeline failure, in
// addition to logging it.
func WithOnError(f func(error)) Option {
	return func(d *Dispatcher) { d.errFunc = f }
}

func WithBroadcaster(b Broadcaster) Option {
	return func(d *Dispatcher) { d.broadcaster = b }
}

func WithClaimer(c Claimer, ttl time.Duration) Option {
	return func(d *Dispatcher) {
		d.claimer = c
		d.dedupTTL = ttl
	}
}

// Dispatcher runs each inbound event through acknowledge, classify, audit
// and notify on its own goroutine, bounded by maxInFlight.
type Dispatcher struct {
	classifier classifier.Classifier
	audit      storage.AuditLog
	notifier   notifier.Notifier
	messages   *Messages

	logger          *slog.Logger
	errFunc         func(error)
	broadcaster     Broadcaster
	claimer         Claimer
	dedupTTL        time.Duration
	maxInFlight     int
	deliveryTimeout time.Duration

	mu     sync.RWMutex
	closed bool
	group  errgroup.Group
}

func NewDispatcher(cl classifier.Classifier, audit storage.AuditLog, n notifier.Notifier, msgs *Messages, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		classifier:      cl,
		audit:           audit,
		notifier:        n,
		messages:        msgs,
		logger:          slog.Default(),
		maxInFlight:     defaultMaxInFlight,
		deliveryTimeout: defaultDeliveryTimeout,
		dedupTTL:        defaultDedupTTL,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.group.SetLimit(d.maxInFlight)
	return d
}

// Dispatch starts processing ev and returns without waiting for it.
// It fails with ErrBusy when maxInFlight events are already running.
func (d *Dispatcher) Dispatch(ev domain.InboundEvent) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}

	started := d.group.TryGo(func() error {
		d.run(ev)
		return nil
	})
	if !started {
		d.logger.Error("event dropped", "event_id", ev.ID, "user_id", ev.UserID, "error", ErrBusy)
		d.report(ErrBusy)
		return ErrBusy
	}
	return nil
}

// Close stops accepting events and waits for in-flight ones until ctx ends.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.group.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("dispatcher: drain: %w", ctx.Err())
	}
}

func (d *Dispatcher) run(ev domain.InboundEvent) {
	log := d.logger.With("event_id", ev.ID, "user_id", ev.UserID)
	rep := &Report{EventID: ev.ID, UserID: ev.UserID, State: StateReceived}

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("event pipeline panic: %v", r)
			d.fail(log, rep, "process", err)
		}
		rep.FinishedAt = time.Now()
		log.Info("event finished", "state", rep.State)
		d.publish(rep)
	}()

	d.process(context.Background(), log, ev, rep)
}

func (d *Dispatcher) process(ctx context.Context, log *slog.Logger, ev domain.InboundEvent, rep *Report) {
	log.Info("event received", "text", logging.Truncate(ev.Text, 60), "redelivery", ev.Redelivery)

	if d.claimer != nil {
		ok, err := d.claimer.Claim(ctx, ev.ID, d.dedupTTL)
		if err != nil {
			d.fail(log, rep, "claim event", err)
		} else if !ok {
			d.advance(log, rep, StateDuplicate)
			return
		}
	}

	if ev.Blank() {
		if err := d.acknowledge(ctx, ev, d.messages.Prompt()); err != nil {
			d.fail(log, rep, "acknowledge", err)
		}
		d.advance(log, rep, StateRejected)
		return
	}

	if err := d.acknowledge(ctx, ev, d.messages.Processing()); err != nil {
		d.fail(log, rep, "acknowledge", err)
	} else {
		d.advance(log, rep, StateAcknowledged)
	}

	d.advance(log, rep, StateClassifying)
	out := d.classifier.Classify(ctx, strings.TrimSpace(ev.Text))
	if out.Err != nil {
		log.Warn("classification fell back", "error", out.Err)
		rep.Errors = append(rep.Errors, out.Err.Error())
	}
	d.advance(log, rep, StateClassified)
	rep.Label = out.Result.Label
	rep.Confidence = out.Result.Confidence
	rep.Fallback = out.Result.Fallback

	if err := d.audit.Append(ctx, domain.NewAuditRecord(ev, out.Result)); err != nil {
		d.fail(log, rep, "append audit record", err)
	} else {
		d.advance(log, rep, StateLogged)
	}

	if err := d.notify(ctx, ev.UserID, d.messages.Summary(out.Result)); err != nil {
		d.fail(log, rep, "notify", err)
		d.advance(log, rep, StateDeliveryFailed)
		return
	}

	log.Info("classification delivered", "label", out.Result.Label, "confidence", out.Result.Confidence)
	d.advance(log, rep, StateDelivered)
}

func (d *Dispatcher) advance(log *slog.Logger, rep *Report, next State) {
	log.Debug("event state", "from", rep.State, "to", next)
	rep.State = next
}

func (d *Dispatcher) acknowledge(ctx context.Context, ev domain.InboundEvent, text string) error {
	ctx, cancel := context.WithTimeout(ctx, d.deliveryTimeout)
	defer cancel()
	return d.notifier.Acknowledge(ctx, ev.ReplyToken, text)
}

func (d *Dispatcher) notify(ctx context.Context, userID, text string) error {
	ctx, cancel := context.WithTimeout(ctx, d.deliveryTimeout)
	defer cancel()
	return d.notifier.Notify(ctx, userID, text)
}

func (d *Dispatcher) fail(log *slog.Logger, rep *Report, step string, err error) {
	log.Error(step+" failed", "state", rep.State, "error", err)
	rep.Errors = append(rep.Errors, step+": "+err.Error())
	d.report(err)
}

func (d *Dispatcher) report(err error) {
	if d.errFunc != nil {
		d.errFunc(err)
	}
}

func (d *Dispatcher) publish(rep *Report) {
	if d.broadcaster == nil {
		return
	}
	data, err := json.Marshal(rep)
	if err != nil {
		return
	}
	d.broadcaster.Broadcast(string(data))
}
