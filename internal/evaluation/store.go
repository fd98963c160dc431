package evaluation

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/think/internal/criteria"
	"github.com/kalambet/think/internal/progression"
	"github.com/kalambet/think/internal/retention"
	"github.com/kalambet/think/internal/stats"
	"github.com/kalambet/think/internal/storage"
)

const (
	// EvaluationsKey and ProgressionKey name the two persisted blobs.
	EvaluationsKey = "think-evaluations"
	ProgressionKey = "think-progression"

	DefaultCapacity        = 100
	DefaultRefreshInterval = 60 * time.Second
)

// StateStore defines the keyed persistence the Store needs.
// Implemented by storage.Store.
type StateStore interface {
	GetState(key string) (string, error)
	SetState(key, value string) error
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Observer is notified of store activity. Implemented by metrics.Metrics.
type Observer interface {
	EvaluationSaved(band string)
	DeleteRequested(outcome string)
	PersistFailed(key string)
	HistorySize(n int)
	Streak(days int)
	RetentionRefreshed()
}

type nopObserver struct{}

func (nopObserver) EvaluationSaved(string) {}
func (nopObserver) DeleteRequested(string) {}
func (nopObserver) PersistFailed(string)   {}
func (nopObserver) HistorySize(int)        {}
func (nopObserver) Streak(int)             {}
func (nopObserver) RetentionRefreshed()    {}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the wall clock (for testing).
func WithClock(c Clock) Option { return func(s *Store) { s.clock = c } }

// WithLocation sets the time zone used to decide calendar days for streaks.
func WithLocation(loc *time.Location) Option { return func(s *Store) { s.loc = loc } }

// WithLogger sets the logger; slog.Default() otherwise.
func WithLogger(l *slog.Logger) Option { return func(s *Store) { s.logger = l } }

// WithCapacity caps the number of evaluations kept. Values <= 0 are ignored.
func WithCapacity(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithRefreshInterval sets how often Run recomputes CanDelete.
func WithRefreshInterval(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithObserver attaches a metrics sink.
func WithObserver(o Observer) Option { return func(s *Store) { s.observer = o } }

// WithIDFunc replaces the id generator (for testing).
func WithIDFunc(f func() string) Option { return func(s *Store) { s.newID = f } }

// Store owns the evaluation history and the progression state. All mutations
// are serialized by mu and write through to the StateStore after the
// in-memory change; a failed write is logged and the in-memory state stays
// authoritative for the rest of the session.
type Store struct {
	kv       StateStore
	clock    Clock
	loc      *time.Location
	logger   *slog.Logger
	observer Observer
	capacity int
	interval time.Duration
	newID    func() string

	mu          sync.RWMutex
	evaluations []Evaluation
	tracker     *progression.Tracker
}

// New creates an empty Store. Call Init to load persisted state.
func New(kv StateStore, opts ...Option) *Store {
	s := &Store{
		kv:       kv,
		clock:    realClock{},
		loc:      time.Local,
		logger:   slog.Default(),
		observer: nopObserver{},
		capacity: DefaultCapacity,
		interval: DefaultRefreshInterval,
		newID:    uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	s.tracker = progression.NewTracker(progression.State{}, s.loc, s.logger)
	return s
}

// Init loads the evaluation list and progression state. Missing blobs start
// empty. Read or parse failures are returned, but the Store is usable either
// way: it continues with whatever could be loaded.
func (s *Store) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error

	list, err := s.loadEvaluations()
	if err != nil {
		s.logger.Warn("loading evaluations failed, starting empty", "error", err)
		errs = append(errs, err)
	}
	now := s.clock.Now()
	for i := range list {
		list[i].CanDelete = retention.CanDelete(list[i].Timestamp, now)
	}
	if len(list) > s.capacity {
		list = list[:s.capacity]
	}
	s.evaluations = list

	state, found, err := s.loadProgression()
	if err != nil {
		s.logger.Warn("loading progression failed, starting fresh", "error", err)
		errs = append(errs, err)
	}
	s.tracker = progression.NewTracker(state, s.loc, s.logger)
	if !found && err == nil {
		s.persistProgression()
	}

	s.observer.HistorySize(len(s.evaluations))
	s.observer.Streak(s.tracker.State().ConsecutiveDays)
	s.logger.Debug("evaluation store loaded", "evaluations", len(s.evaluations), "streak", s.tracker.State().ConsecutiveDays)
	return errors.Join(errs...)
}

func (s *Store) loadEvaluations() ([]Evaluation, error) {
	raw, err := s.kv.GetState(EvaluationsKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading evaluations: %w", err)
	}
	return decodeList(raw, s.logger)
}

func (s *Store) loadProgression() (progression.State, bool, error) {
	raw, err := s.kv.GetState(ProgressionKey)
	if errors.Is(err, storage.ErrNotFound) {
		return progression.State{}, false, nil
	}
	if err != nil {
		return progression.State{}, false, fmt.Errorf("reading progression: %w", err)
	}
	var st progression.State
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return progression.State{}, true, fmt.Errorf("parsing progression: %w", err)
	}
	return progression.Normalize(st), true, nil
}

// Save scores and stores a new evaluation, counts it as today's activity and
// returns the stored record.
func (s *Store) Save(text string, c criteria.Set) Evaluation {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	e := Evaluation{
		ID:         s.newID(),
		Text:       text,
		Criteria:   c,
		Percentage: criteria.Score(c),
		Timestamp:  now,
		CanDelete:  false,
	}

	list := make([]Evaluation, 0, len(s.evaluations)+1)
	list = append(list, e)
	list = append(list, s.evaluations...)
	if len(list) > s.capacity {
		s.logger.Debug("history at capacity, dropping oldest", "dropped", len(list)-s.capacity)
		list = list[:s.capacity]
	}
	s.evaluations = list

	s.tracker.Record(now)

	s.persistEvaluations()
	s.persistProgression()

	s.observer.EvaluationSaved(e.Band().Message)
	s.observer.HistorySize(len(s.evaluations))
	s.observer.Streak(s.tracker.State().ConsecutiveDays)
	return e
}

// Load returns the history newest first with CanDelete evaluated against
// the current time.
func (s *Store) Load() []Evaluation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.clock.Now()
	out := make([]Evaluation, len(s.evaluations))
	for i, e := range s.evaluations {
		e.CanDelete = retention.CanDelete(e.Timestamp, now)
		out[i] = e
	}
	return out
}

// Get returns a single evaluation by id.
func (s *Store) Get(id string) (Evaluation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(id)
	if i < 0 {
		return Evaluation{}, false
	}
	e := s.evaluations[i]
	e.CanDelete = retention.CanDelete(e.Timestamp, s.clock.Now())
	return e, true
}

func (s *Store) indexOf(id string) int {
	for i, e := range s.evaluations {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// Delete removes the evaluation with id if it is past the protection window.
func (s *Store) Delete(id string) DeleteOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.deleteLocked(id)
	s.observer.DeleteRequested(out.String())
	return out
}

func (s *Store) deleteLocked(id string) DeleteOutcome {
	i := s.indexOf(id)
	if i < 0 {
		return NotFound
	}
	if retention.IsProtected(s.evaluations[i].Timestamp, s.clock.Now()) {
		s.logger.Info("evaluation cannot be deleted yet", "id", id,
			"deletable_at", retention.DeletableAt(s.evaluations[i].Timestamp))
		return Protected
	}

	list := make([]Evaluation, 0, len(s.evaluations)-1)
	list = append(list, s.evaluations[:i]...)
	list = append(list, s.evaluations[i+1:]...)
	s.evaluations = list

	s.persistEvaluations()
	s.observer.HistorySize(len(s.evaluations))
	return Deleted
}

// ClearDeletable removes every evaluation past the protection window and
// keeps the rest in order. Nothing is written when no record is eligible.
func (s *Store) ClearDeletable() ClearResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	kept := make([]Evaluation, 0, len(s.evaluations))
	for _, e := range s.evaluations {
		if retention.IsProtected(e.Timestamp, now) {
			e.CanDelete = false
			kept = append(kept, e)
		}
	}

	res := ClearResult{
		Deleted:   len(s.evaluations) - len(kept),
		Protected: len(kept),
	}
	if res.Deleted == 0 {
		s.logger.Info("no evaluations can be deleted yet", "protected", res.Protected)
		return res
	}

	s.evaluations = kept
	s.persistEvaluations()
	s.observer.HistorySize(len(s.evaluations))
	for i := 0; i < res.Deleted; i++ {
		s.observer.DeleteRequested(Deleted.String())
	}
	return res
}

// DeletionSummary counts held records by protection status.
func (s *Store) DeletionSummary() retention.Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ts := make([]time.Time, len(s.evaluations))
	for i, e := range s.evaluations {
		ts[i] = e.Timestamp
	}
	return retention.Summarize(ts, s.clock.Now())
}

// Refresh recomputes CanDelete on every held record. It never changes list
// membership or order and never writes to storage. It returns how many
// records changed status.
func (s *Store) Refresh() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	changed := 0
	for i := range s.evaluations {
		can := retention.CanDelete(s.evaluations[i].Timestamp, now)
		if can != s.evaluations[i].CanDelete {
			s.evaluations[i].CanDelete = can
			changed++
		}
	}
	s.observer.RetentionRefreshed()
	return changed
}

// Progression returns a snapshot of the streak state.
func (s *Store) Progression() progression.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tracker.State()
}

// OverallStats summarizes the held history; ok is false when it is empty.
func (s *Store) OverallStats() (stats.OverallStats, bool) {
	return stats.Overall(s.percentages())
}

// KeepToYourselfStats computes the keep-to-yourself score and trend.
func (s *Store) KeepToYourselfStats() stats.KeepToYourselfStats {
	return stats.KeepToYourself(s.percentages())
}

// Breakdown tallies the held history by band and criterion.
func (s *Store) Breakdown() stats.Breakdown {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ps := make([]int, len(s.evaluations))
	sets := make([]criteria.Set, len(s.evaluations))
	for i, e := range s.evaluations {
		ps[i] = e.Percentage
		sets[i] = e.Criteria
	}
	return stats.BreakdownOf(ps, sets)
}

func (s *Store) percentages() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ps := make([]int, len(s.evaluations))
	for i, e := range s.evaluations {
		ps[i] = e.Percentage
	}
	return ps
}

// Flush writes both blobs and reports any failure. Unlike the write-through
// on mutation, the error is returned so shutdown can surface it.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return errors.Join(s.persistEvaluations(), s.persistProgression())
}

// persistEvaluations and persistProgression must be called with mu held.
func (s *Store) persistEvaluations() error {
	raw, err := encodeList(s.evaluations)
	if err == nil {
		err = s.kv.SetState(EvaluationsKey, raw)
	}
	if err != nil {
		s.logger.Error("persisting evaluations failed", "error", err)
		s.observer.PersistFailed(EvaluationsKey)
	}
	return err
}

func (s *Store) persistProgression() error {
	b, err := json.Marshal(s.tracker.State())
	if err == nil {
		err = s.kv.SetState(ProgressionKey, string(b))
	}
	if err != nil {
		s.logger.Error("persisting progression failed", "error", err)
		s.observer.PersistFailed(ProgressionKey)
	}
	return err
}
