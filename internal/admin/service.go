// Package admin is the administrative order service: authentication, the
// reconciled listing and status/delete mutations.
package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hasib2k/online-store/internal/aws"
	"github.com/hasib2k/online-store/internal/metrics"
	"github.com/hasib2k/online-store/internal/orders"
	"github.com/hasib2k/online-store/internal/reconcile"
	"github.com/hasib2k/online-store/internal/session"
)

// Action is a mutation an administrator can apply to an order.
type Action string

const (
	ActionComplete Action = "complete"
	ActionPending  Action = "pending"
	ActionDelete   Action = "delete"
)

// Status returns the order status an action sets; delete has none.
func (a Action) Status() (orders.Status, bool) {
	switch a {
	case ActionComplete:
		return orders.StatusCompleted, true
	case ActionPending:
		return orders.StatusPending, true
	default:
		return "", false
	}
}

func (a Action) valid() bool {
	return a == ActionComplete || a == ActionPending || a == ActionDelete
}

// Credentials are what a request presented: the raw header credential and
// the session cookie token. Either one is enough.
type Credentials struct {
	Header string
	Token  string
}

// Mutation is one admin write.
type Mutation struct {
	ID        string
	Action    Action
	RequestID string // propagated to the published event
}

// Result describes an applied mutation.
type Result struct {
	Action Action
	ID     string
	Store  string
	Order  *orders.Order // nil for delete
}

// Lister produces the reconciled order listing.
type Lister interface {
	Reconcile(ctx context.Context) ([]orders.Order, reconcile.Stats)
}

// EventPublisher receives an event after every successful mutation.
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, ev aws.OrderEvent) error
}

// Config holds the session settings the service needs.
type Config struct {
	SessionTTL time.Duration
}

// Service implements the admin read and write paths.
type Service struct {
	codec      *session.Codec
	ttl        time.Duration
	lister     Lister
	structured orders.Store
	file       orders.Store
	logger     *zap.Logger
	recorder   metrics.Recorder
	publisher  EventPublisher
	nowFunc    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l.Named("admin")
		}
	}
}

func WithRecorder(m metrics.Recorder) Option {
	return func(s *Service) {
		if m != nil {
			s.recorder = m
		}
	}
}

// WithPublisher enables order events.
func WithPublisher(p EventPublisher) Option {
	return func(s *Service) { s.publisher = p }
}

// NewService wires the service. structured is nil when no structured store
// is configured.
func NewService(cfg Config, codec *session.Codec, lister Lister, structured, file orders.Store, opts ...Option) *Service {
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = session.DefaultTTL
	}
	s := &Service{
		codec:      codec,
		ttl:        ttl,
		lister:     lister,
		structured: structured,
		file:       file,
		logger:     zap.NewNop(),
		recorder:   metrics.Nop{},
		nowFunc:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SessionTTL is the lifetime of tokens issued by Login.
func (s *Service) SessionTTL() time.Duration { return s.ttl }

// Authenticate accepts the raw credential or a valid session token. With no
// credential configured every request is refused.
func (s *Service) Authenticate(creds Credentials) error {
	if s.codec.Configured() && (s.codec.CheckCredential(creds.Header) || s.codec.Verify(creds.Token)) {
		return nil
	}
	s.recorder.ObserveAuthFailure()
	return ErrUnauthorized
}

// Login exchanges the admin credential for a session token.
func (s *Service) Login(password string) (string, error) {
	if !s.codec.Configured() {
		return "", ErrNotConfigured
	}
	if password == "" {
		return "", fmt.Errorf("%w: missing password", ErrBadRequest)
	}
	if !s.codec.CheckCredential(password) {
		s.recorder.ObserveAuthFailure()
		return "", ErrUnauthorized
	}
	return s.codec.Issue(password, s.ttl), nil
}

// ListOrders returns the reconciled listing as is.
func (s *Service) ListOrders(ctx context.Context, creds Credentials) ([]orders.Order, error) {
	if err := s.Authenticate(creds); err != nil {
		return nil, err
	}
	list, _ := s.lister.Reconcile(ctx)
	return list, nil
}

// Apply runs m against the structured store first and falls back to the
// file store on any failure there. Exactly one store ends up mutated.
func (s *Service) Apply(ctx context.Context, creds Credentials, m Mutation) (*Result, error) {
	if err := s.Authenticate(creds); err != nil {
		return nil, err
	}
	id := strings.TrimSpace(m.ID)
	if id == "" || m.Action == "" {
		return nil, fmt.Errorf("%w: missing id or action", ErrBadRequest)
	}
	if !m.Action.valid() {
		return nil, fmt.Errorf("%w: unknown action %q", ErrBadRequest, m.Action)
	}

	log := s.logger.With(zap.String("order_id", id), zap.String("action", string(m.Action)))

	if s.structured != nil {
		res, err := s.applyTo(ctx, s.structured, id, m.Action)
		if err == nil {
			s.finish(ctx, log, m, res)
			return res, nil
		}
		s.recorder.ObserveMutation(string(m.Action), s.structured.Name(), outcomeOf(err))
		log.Warn("structured store mutation failed, falling back to file store",
			zap.String("store", s.structured.Name()),
			zap.Error(fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)))
	}

	if s.file == nil {
		return nil, fmt.Errorf("%w: no file store configured", ErrInternal)
	}
	res, err := s.applyTo(ctx, s.file, id, m.Action)
	if err != nil {
		s.recorder.ObserveMutation(string(m.Action), s.file.Name(), outcomeOf(err))
		if errors.Is(err, orders.ErrNotFound) {
			return nil, ErrNotFound
		}
		log.Error("file store mutation failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	s.finish(ctx, log, m, res)
	return res, nil
}

func (s *Service) applyTo(ctx context.Context, store orders.Store, id string, action Action) (*Result, error) {
	res := &Result{Action: action, ID: id, Store: store.Name()}
	if status, ok := action.Status(); ok {
		o, err := store.UpdateStatus(ctx, id, status)
		if err != nil {
			return nil, err
		}
		res.Order = o
		return res, nil
	}
	if err := store.Delete(ctx, id); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Service) finish(ctx context.Context, log *zap.Logger, m Mutation, res *Result) {
	s.recorder.ObserveMutation(string(res.Action), res.Store, metrics.OutcomeOK)
	log.Info("order mutated", zap.String("store", res.Store))

	if s.publisher == nil {
		return
	}
	ev := aws.OrderEvent{
		OrderID:       res.ID,
		Action:        string(res.Action),
		Store:         res.Store,
		CorrelationID: m.RequestID,
		At:            s.nowFunc().UTC(),
	}
	if res.Order != nil {
		ev.Status = string(res.Order.Status)
	}
	if err := s.publisher.PublishOrderEvent(ctx, ev); err != nil {
		log.Warn("publish order event failed", zap.Error(err))
	}
}

func outcomeOf(err error) string {
	if errors.Is(err, orders.ErrNotFound) {
		return metrics.OutcomeNotFound
	}
	return metrics.OutcomeError
}
