// Package scenario keeps the user's named request snapshots in a single
// JSON collection behind a key-value store.
package scenario

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"invoicemix/internal/amqp"
	"invoicemix/internal/core"
	ierr "invoicemix/internal/errors"
	"invoicemix/internal/log"
	"invoicemix/internal/storage"

	"github.com/samber/lo"
)

// StorageKey is the key the collection is persisted under.
const StorageKey = "invoice-mix-scenarios"

// NamePrompt asks the user for a scenario name, pre-filled with
// defaultName. ok=false means the user cancelled.
type NamePrompt func(ctx context.Context, defaultName string) (name string, ok bool)

// EventPublisher receives collection change events.
type EventPublisher interface {
	PublishScenarioEvent(ctx context.Context, event *amqp.ScenarioEvent) error
}

type Option func(*Store)

func WithIDGenerator(g IDGenerator) Option {
	return func(s *Store) { s.ids = g }
}

func WithPublisher(p EventPublisher) Option {
	return func(s *Store) { s.publisher = p }
}

func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l.WithComponent(log.ComponentScenario) }
}

// Store is the scenario collection. Every mutation rewrites the whole
// collection; concurrent writers from other processes overwrite each other.
type Store struct {
	kv        storage.KeyValue
	ids       IDGenerator
	publisher EventPublisher
	logger    *log.Logger

	mu        sync.Mutex
	loaded    bool
	scenarios []core.SavedScenario
}

func NewStore(kv storage.KeyValue, opts ...Option) *Store {
	s := &Store{
		kv:     kv,
		ids:    UUIDGenerator{},
		logger: log.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ensureLoaded reads the persisted collection on first use. Read failures
// and malformed data leave an empty collection.
func (s *Store) ensureLoaded(ctx context.Context) {
	if s.loaded {
		return
	}
	s.loaded = true
	s.scenarios = []core.SavedScenario{}

	data, ok, err := s.kv.Read(ctx, StorageKey)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to read saved scenarios, starting empty",
			log.NewFields().WithOperation(log.OpRead).WithErrorType(log.ErrorTypeStorage).WithError(err).ToSlice()...)
		return
	}
	if !ok {
		return
	}
	s.scenarios = decodeScenarios(data)
}

// Reload discards the in-memory collection and reads it again.
func (s *Store) Reload(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = false
	s.ensureLoaded(ctx)
}

func (s *Store) persist(ctx context.Context, scenarios []core.SavedScenario) error {
	data, err := encodeScenarios(scenarios)
	if err != nil {
		return fmt.Errorf("encode scenarios: %w", err)
	}
	if err := s.kv.Write(ctx, StorageKey, data); err != nil {
		return fmt.Errorf("persist scenarios: %w", err)
	}
	return nil
}

// List returns a copy of the collection in insertion order.
func (s *Store) List(ctx context.Context) []core.SavedScenario {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)
	return lo.Map(s.scenarios, func(sc core.SavedScenario, _ int) core.SavedScenario { return sc.Clone() })
}

// Get returns the scenario with the given id.
func (s *Store) Get(ctx context.Context, id string) (core.SavedScenario, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)
	sc, ok := lo.Find(s.scenarios, func(sc core.SavedScenario) bool { return sc.ID == id })
	if !ok {
		return core.SavedScenario{}, false
	}
	return sc.Clone(), true
}

// DefaultName is the name offered for the next scenario.
func (s *Store) DefaultName(ctx context.Context) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)
	return fmt.Sprintf("Scenario %d", len(s.scenarios)+1)
}

// Save stores last under a name obtained from prompt. A cancelled prompt or
// a blank name saves nothing and returns (nil, nil).
func (s *Store) Save(ctx context.Context, last *core.LastRequestRecord, prompt NamePrompt) (*core.SavedScenario, error) {
	if last == nil {
		return nil, ierr.Precondition(ierr.ErrRunSearchBeforeSave)
	}

	name, ok := prompt(ctx, s.DefaultName(ctx))
	if !ok {
		return nil, nil
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}

	sc := core.SavedScenario{
		ID:              s.ids.Next(),
		Name:            name,
		RequestSnapshot: last.RequestSnapshot.Clone(),
	}

	s.mu.Lock()
	s.ensureLoaded(ctx)
	next := append(append(make([]core.SavedScenario, 0, len(s.scenarios)+1), s.scenarios...), sc)
	if err := s.persist(ctx, next); err != nil {
		s.mu.Unlock()
		s.logger.LogError(ctx, "Failed to save scenario", err, log.ErrorTypeStorage, log.OpSave,
			log.NewFields().WithScenario(sc.ID, sc.Name))
		return nil, err
	}
	s.scenarios = next
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Scenario saved", log.NewFields().WithScenario(sc.ID, sc.Name).ToSlice()...)
	s.publish(ctx, amqp.EventScenarioSaved, sc)

	out := sc.Clone()
	return &out, nil
}

// Delete removes the scenario with the given id. It reports false when no
// such scenario exists.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	s.ensureLoaded(ctx)
	idx := lo.IndexOf(lo.Map(s.scenarios, func(sc core.SavedScenario, _ int) string { return sc.ID }), id)
	if idx < 0 {
		s.mu.Unlock()
		return false, nil
	}
	removed := s.scenarios[idx]
	next := append(append(make([]core.SavedScenario, 0, len(s.scenarios)-1), s.scenarios[:idx]...), s.scenarios[idx+1:]...)
	if err := s.persist(ctx, next); err != nil {
		s.mu.Unlock()
		s.logger.LogError(ctx, "Failed to delete scenario", err, log.ErrorTypeStorage, log.OpDelete,
			log.NewFields().WithScenario(id, removed.Name))
		return false, err
	}
	s.scenarios = next
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Scenario deleted", log.NewFields().WithScenario(id, removed.Name).ToSlice()...)
	s.publish(ctx, amqp.EventScenarioDeleted, removed)
	return true, nil
}

// publish is best effort: failures are logged, never returned.
func (s *Store) publish(ctx context.Context, eventType amqp.EventType, sc core.SavedScenario) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishScenarioEvent(ctx, amqp.NewScenarioEvent(eventType, sc.ID, sc.Name)); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish scenario event",
			log.NewFields().
				WithOperation(log.OpPublish).
				WithErrorType(log.ErrorTypeNetwork).
				WithError(err).
				WithScenario(sc.ID, sc.Name).ToSlice()...)
	}
}
