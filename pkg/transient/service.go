package transient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"reflect"
	"slices"
	"sync"
	"time"

	"github.com/aretw0/weft/internal/logging"
	"github.com/aretw0/weft/pkg/middleware"
	"github.com/aretw0/weft/pkg/ports"
	"github.com/aretw0/weft/pkg/store"
	"github.com/aretw0/weft/pkg/task"
	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
)

// DefaultKey is the snapshot key used unless WithKey says otherwise.
const DefaultKey = "transient-data"

// DefaultLockTTL bounds how long a Persist or Restore may hold the lock.
const DefaultLockTTL = 10 * time.Second

var (
	// ErrNoSnapshotStore is returned by Persist and Restore on a service
	// configured without persistence.
	ErrNoSnapshotStore = errors.New("transient service has no snapshot store")

	// ErrMessageNotFound is returned by Get for an unknown id.
	ErrMessageNotFound = errors.New("message not found")
)

// Data is the persisted state: message id to payload.
type Data struct {
	Messages map[string]any `json:"messages" mapstructure:"messages"`
}

// cloneData copies the message map. Payloads are replaced, never mutated in
// place, so they are shared between states.
func cloneData(d Data) Data {
	return Data{Messages: maps.Clone(d.Messages)}
}

// Service owns the transient data store.
type Service struct {
	store     *store.Store[Data]
	pipeline  *middleware.DataManager[any]
	snapshots ports.SnapshotStore
	locker    ports.DistributedLocker
	lockTTL   time.Duration
	key       string
	tasks     *task.Manager
	logger    *slog.Logger
	persistMu sync.Mutex
	stopWatch store.Unsubscribe
}

// Option configures a Service.
type Option func(*Service)

// WithSnapshotStore enables Persist and Restore.
func WithSnapshotStore(s ports.SnapshotStore) Option {
	return func(svc *Service) {
		svc.snapshots = s
	}
}

// WithLocker guards Persist and Restore with a distributed lock on the snapshot key.
func WithLocker(l ports.DistributedLocker, ttl time.Duration) Option {
	return func(svc *Service) {
		svc.locker = l
		if ttl > 0 {
			svc.lockTTL = ttl
		}
	}
}

// WithKey sets the snapshot key.
func WithKey(key string) Option {
	return func(svc *Service) {
		svc.key = key
	}
}

// WithMiddleware runs every write through pipeline. The candidate is the new
// payload and prev the payload it replaces (nil for a new id). A rejected
// write leaves the message untouched.
func WithMiddleware(pipeline *middleware.DataManager[any]) Option {
	return func(svc *Service) {
		svc.pipeline = pipeline
	}
}

// WithAutoPersist persists after every change. Each write runs as a task
// pinned on tasks, so CancelAll abandons writes still in flight.
func WithAutoPersist(tasks *task.Manager) Option {
	return func(svc *Service) {
		svc.tasks = tasks
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(svc *Service) {
		svc.logger = logger
	}
}

// New creates an empty Service.
func New(opts ...Option) *Service {
	svc := &Service{
		key:     DefaultKey,
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	svc.store = store.New(Data{Messages: map[string]any{}},
		store.WithLogger[Data](svc.logger),
		store.WithClone(cloneData),
	)

	if svc.tasks != nil && svc.snapshots != nil {
		svc.stopWatch = svc.store.Subscribe(svc.schedulePersist)
	}
	return svc
}

// Store exposes the observable state.
func (s *Service) Store() *store.Store[Data] {
	return s.store
}

// CreateMessage stores data under a fresh id and returns the id.
// The id is returned even if the middleware rejected the write.
func (s *Service) CreateMessage(data any) string {
	id := uuid.NewString()
	s.SetMessage(id, data)
	return id
}

// Create stores data under id, logging a warning if it replaces a message.
func (s *Service) Create(id string, data any) string {
	if _, ok := s.Message(id); ok {
		s.logger.Warn("Transient message already exists, overriding", "key", id)
	}
	s.SetMessage(id, data)
	return id
}

// SetMessage stores data under id. It reports whether the write was committed.
func (s *Service) SetMessage(id string, data any) bool {
	prev, _ := s.Message(id)
	if s.pipeline != nil {
		var ok bool
		data, ok = s.pipeline.Process(data, prev)
		if !ok {
			s.logger.Debug("Transient write rejected", "key", id)
			return false
		}
	}

	s.store.Update(func(d *Data) {
		if d.Messages == nil {
			d.Messages = map[string]any{}
		}
		d.Messages[id] = data
	})
	return true
}

// Message returns the payload stored under id. Callers must not mutate it.
func (s *Service) Message(id string) (any, bool) {
	if id == "" {
		return nil, false
	}
	v, ok := s.store.State().Messages[id]
	return v, ok
}

// UpdateMessage merges partial into an existing message. Map payloads are
// merged key by key; struct payloads are decoded over a copy. Unknown ids
// are ignored and report false.
func (s *Service) UpdateMessage(id string, partial map[string]any) (bool, error) {
	current, ok := s.Message(id)
	if !ok || current == nil {
		return false, nil
	}
	merged, err := merge(current, partial)
	if err != nil {
		return false, fmt.Errorf("failed to update message %s: %w", id, err)
	}
	return s.SetMessage(id, merged), nil
}

// Remove deletes the message.
func (s *Service) Remove(id string) {
	if _, ok := s.Message(id); !ok {
		return
	}
	s.store.Update(func(d *Data) {
		delete(d.Messages, id)
	})
}

// IDs lists message ids in sorted order.
func (s *Service) IDs() []string {
	return slices.Sorted(maps.Keys(s.store.State().Messages))
}

// Len reports the number of messages.
func (s *Service) Len() int {
	return len(s.store.State().Messages)
}

// Get returns the message under id decoded as T. Payloads restored from a
// snapshot are generic JSON values, so they are decoded into T when needed.
func Get[T any](s *Service, id string) (T, error) {
	var out T
	v, ok := s.Message(id)
	if !ok {
		return out, fmt.Errorf("%w: %s", ErrMessageNotFound, id)
	}
	if typed, ok := v.(T); ok {
		return typed, nil
	}
	if err := mapstructure.Decode(v, &out); err != nil {
		return out, fmt.Errorf("failed to decode message %s: %w", id, err)
	}
	return out, nil
}

// Persist saves the current state as a JSON snapshot.
func (s *Service) Persist(ctx context.Context) error {
	if s.snapshots == nil {
		return ErrNoSnapshotStore
	}

	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	// Read under persistMu so a later snapshot never loses to an earlier one.
	data, err := json.Marshal(s.store.State())
	if err != nil {
		return fmt.Errorf("failed to marshal transient data: %w", err)
	}
	if err := s.snapshots.Save(ctx, s.key, data); err != nil {
		return fmt.Errorf("failed to persist transient data: %w", err)
	}
	return nil
}

// Restore replaces the state with the stored snapshot. A missing snapshot
// leaves the state untouched.
func (s *Service) Restore(ctx context.Context) error {
	if s.snapshots == nil {
		return ErrNoSnapshotStore
	}

	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	raw, err := s.snapshots.Load(ctx, s.key)
	unlock()
	if errors.Is(err, ports.ErrSnapshotNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to restore transient data: %w", err)
	}

	var data Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("failed to unmarshal transient data: %w", err)
	}
	if data.Messages == nil {
		data.Messages = map[string]any{}
	}
	s.store.Set(data)
	return nil
}

// Close stops auto persistence and drops every subscription.
func (s *Service) Close() {
	if s.stopWatch != nil {
		s.stopWatch()
	}
	s.store.Dispose()
}

func (s *Service) lock(ctx context.Context) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	release, err := s.locker.Lock(ctx, s.key, s.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to lock transient data: %w", err)
	}
	return func() {
		// The lock may outlive ctx; release it on a fresh context.
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("Failed to release transient data lock", "err", err)
		}
	}, nil
}

func (s *Service) schedulePersist() {
	task.PinFunc(context.Background(), s.tasks, func(ctx context.Context) (struct{}, error) {
		err := s.Persist(ctx)
		if err != nil {
			s.logger.Error("Auto persist failed", "key", s.key, "err", err)
		}
		return struct{}{}, err
	})
}

func merge(current any, partial map[string]any) (any, error) {
	if m, ok := current.(map[string]any); ok {
		out := maps.Clone(m)
		maps.Copy(out, partial)
		return out, nil
	}

	v := reflect.ValueOf(current)
	target := reflect.New(v.Type())
	if v.Kind() == reflect.Pointer && !v.IsNil() {
		// Decode into a copy of the pointee; the stored message stays untouched.
		elem := reflect.New(v.Type().Elem())
		elem.Elem().Set(v.Elem())
		target.Elem().Set(elem)
	} else {
		target.Elem().Set(v)
	}
	if err := store.Patch(partial).ApplyTo(target.Interface()); err != nil {
		return nil, err
	}
	return target.Elem().Interface(), nil
}
