package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fenilmodi00/tibia-lookup-backend/models"
	"github.com/fenilmodi00/tibia-lookup-backend/shared"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const DefaultMinLoading = 500 * time.Millisecond

// LookupState is the position of the fetch pipeline
type LookupState string

const (
	StateIdle       LookupState = "idle"
	StateValidating LookupState = "validating"
	StateCacheHit   LookupState = "cache_hit"
	StateRequesting LookupState = "requesting"
	StateSuccess    LookupState = "success"
	StateFailure    LookupState = "failure"
)

var (
	ErrServiceStopped       = errors.New("lookup service stopped")
	ErrRecentSearchNotFound = errors.New("recent search not found")
)

// Snapshot is one complete published state. Values are shared between subscribers
// and must be treated as read-only.
type Snapshot struct {
	State           LookupState                    `json:"state"`
	Loading         bool                           `json:"loading"`
	Revalidating    bool                           `json:"revalidating"`
	Query           string                         `json:"query,omitempty"`
	Character       *models.CharacterRecord        `json:"character,omitempty"`
	Deaths          []models.DeathRecord           `json:"deaths"`
	Achievements    []models.Achievement           `json:"achievements"`
	AccountInfo     *models.AccountInfo            `json:"account_information,omitempty"`
	OtherCharacters []models.OtherCharacterSummary `json:"other_characters"`
	RecentSearches  []models.RecentSearchEntry     `json:"recent_searches"`
	Error           *shared.LookupError            `json:"error,omitempty"`
	ErrorMessage    string                         `json:"error_message,omitempty"`
	FromCache       bool                           `json:"from_cache"`
	UpdatedAt       time.Time                      `json:"updated_at"`
}

// FetchOptions modifies a single fetch
type FetchOptions struct {
	// Refresh revalidates against the network even after a cache hit
	Refresh bool
	// FromRecent marks a replay of a recent search, which is not recorded again
	FromRecent bool
}

// Outcome is delivered once per fetch. Err is nil on success, a *shared.LookupError
// on failure, or shared.ErrFetchCancelled when a newer fetch superseded this one.
type Outcome struct {
	Snapshot  Snapshot
	Err       error
	FromCache bool
}

// LookupDependencies are the collaborators of a CharacterLookupService
type LookupDependencies struct {
	Fetcher      CharacterFetcher
	Cache        *CacheService
	Recent       *RecentSearches
	Connectivity shared.ConnectivityChecker
	Metrics      *shared.LookupMetrics
	MinLoading   time.Duration
}

type inflightRequest struct {
	generation uint64
	name       string
	options    FetchOptions
	cancel     context.CancelFunc
	reply      chan<- Outcome
	revalidate bool
}

// CharacterLookupService validates names, consults the cache, fetches from upstream
// and publishes the resulting state. Every mutation of its cache, recent searches and
// published state runs on one event loop goroutine; HTTP requests run on their own
// goroutines and report back to the loop. At most one request is outstanding.
type CharacterLookupService struct {
	fetcher      CharacterFetcher
	cache        *CacheService
	recent       *RecentSearches
	connectivity shared.ConnectivityChecker
	metrics      *shared.LookupMetrics
	minLoading   time.Duration
	logger       *logrus.Entry

	commands chan func()
	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
	started  atomic.Bool

	// loop-owned
	state      Snapshot
	inflight   *inflightRequest
	generation uint64

	current      atomic.Pointer[Snapshot]
	lastActivity atomic.Int64

	subMutex    sync.Mutex
	subscribers map[int]chan Snapshot
	nextSubID   int
}

type alwaysOnline struct{}

func (alwaysOnline) IsOnline() bool { return true }

// NewCharacterLookupService wires a service from its dependencies. Missing optional
// collaborators get in-memory defaults. Call Start before use.
func NewCharacterLookupService(deps LookupDependencies) *CharacterLookupService {
	if deps.Cache == nil {
		deps.Cache = NewCacheService()
	}
	if deps.Recent == nil {
		deps.Recent = NewRecentSearches(nil, "")
	}
	if deps.Connectivity == nil {
		deps.Connectivity = alwaysOnline{}
	}
	if deps.Metrics == nil {
		deps.Metrics = shared.NewLookupMetrics()
	}
	if deps.MinLoading < 0 {
		deps.MinLoading = 0
	}

	s := &CharacterLookupService{
		fetcher:      deps.Fetcher,
		cache:        deps.Cache,
		recent:       deps.Recent,
		connectivity: deps.Connectivity,
		metrics:      deps.Metrics,
		minLoading:   deps.MinLoading,
		logger:       logrus.WithField("component", "CharacterLookupService"),
		commands:     make(chan func()),
		done:         make(chan struct{}),
		stopped:      make(chan struct{}),
		subscribers:  make(map[int]chan Snapshot),
	}
	s.state = Snapshot{
		State:           StateIdle,
		Deaths:          []models.DeathRecord{},
		Achievements:    []models.Achievement{},
		OtherCharacters: []models.OtherCharacterSummary{},
		RecentSearches:  []models.RecentSearchEntry{},
		UpdatedAt:       time.Now(),
	}
	initial := s.state
	s.current.Store(&initial)
	s.touch()
	return s
}

// Start loads the persisted recent searches and starts the event loop
func (s *CharacterLookupService) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return nil
	}
	if err := s.recent.Load(ctx); err != nil {
		s.logger.WithError(err).Warn("Failed to load recent searches, starting empty")
	}
	s.state.RecentSearches = s.recent.List()
	initial := s.state
	s.current.Store(&initial)

	go s.loop()
	return nil
}

// Stop cancels any in-flight request, stops the event loop and closes all subscriptions
func (s *CharacterLookupService) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		if s.started.Load() {
			<-s.stopped
		}

		s.subMutex.Lock()
		for id, ch := range s.subscribers {
			close(ch)
			delete(s.subscribers, id)
		}
		s.subMutex.Unlock()
	})
}

func (s *CharacterLookupService) loop() {
	defer close(s.stopped)
	for {
		select {
		case cmd := <-s.commands:
			cmd()
		case <-s.done:
			if s.inflight != nil {
				s.inflight.cancel()
				s.inflight.reply <- Outcome{Snapshot: s.state, Err: ErrServiceStopped}
				s.inflight = nil
			}
			return
		}
	}
}

// post runs cmd on the event loop; it reports false once the service is stopped
func (s *CharacterLookupService) post(cmd func()) bool {
	select {
	case s.commands <- cmd:
		return true
	case <-s.done:
		return false
	}
}

// Fetch starts a lookup for name, cancelling any outstanding one. The returned
// channel receives exactly one Outcome.
func (s *CharacterLookupService) Fetch(name string, opts FetchOptions) <-chan Outcome {
	s.touch()
	reply := make(chan Outcome, 1)
	if !s.post(func() { s.handleFetch(name, opts, reply) }) {
		reply <- Outcome{Snapshot: s.Snapshot(), Err: ErrServiceStopped}
	}
	return reply
}

// ReplayRecent fetches the recent search with the given id without recording it again
func (s *CharacterLookupService) ReplayRecent(id uuid.UUID) <-chan Outcome {
	s.touch()
	reply := make(chan Outcome, 1)
	ok := s.post(func() {
		entry, found := s.recent.Find(id)
		if !found {
			reply <- Outcome{Snapshot: s.state, Err: ErrRecentSearchNotFound}
			return
		}
		s.handleFetch(entry.Name, FetchOptions{FromRecent: true}, reply)
	})
	if !ok {
		reply <- Outcome{Snapshot: s.Snapshot(), Err: ErrServiceStopped}
	}
	return reply
}

// Lookup runs Fetch and waits for its outcome or for ctx to end. The fetch
// itself is not cancelled when ctx ends.
func (s *CharacterLookupService) Lookup(ctx context.Context, name string, opts FetchOptions) (Outcome, error) {
	return Await(ctx, s.Fetch(name, opts))
}

// Await waits for one outcome
func Await(ctx context.Context, outcome <-chan Outcome) (Outcome, error) {
	select {
	case result := <-outcome:
		return result, result.Err
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Snapshot returns the most recently published state
func (s *CharacterLookupService) Snapshot() Snapshot {
	return *s.current.Load()
}

// Subscribe returns a channel receiving every published snapshot, starting with the
// current one. A slow subscriber only sees the latest snapshot. Call cancel to unsubscribe.
func (s *CharacterLookupService) Subscribe() (<-chan Snapshot, func()) {
	s.touch()
	ch := make(chan Snapshot, 1)

	s.subMutex.Lock()
	select {
	case <-s.done:
		s.subMutex.Unlock()
		close(ch)
		return ch, func() {}
	default:
	}
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = ch
	ch <- s.Snapshot()
	s.subMutex.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.subMutex.Lock()
			defer s.subMutex.Unlock()
			if existing, ok := s.subscribers[id]; ok {
				delete(s.subscribers, id)
				close(existing)
			}
		})
	}
	return ch, cancel
}

// SubscriberCount returns the number of active subscriptions
func (s *CharacterLookupService) SubscriberCount() int {
	s.subMutex.Lock()
	defer s.subMutex.Unlock()
	return len(s.subscribers)
}

// LastActivity returns when a caller last used the service
func (s *CharacterLookupService) LastActivity() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

// RecentSearches returns the current recent searches, most recent first
func (s *CharacterLookupService) RecentSearches() []models.RecentSearchEntry {
	return s.Snapshot().RecentSearches
}

// ClearRecent empties the recent searches and evicts their cache entries
func (s *CharacterLookupService) ClearRecent(ctx context.Context) error {
	s.touch()
	result := make(chan error, 1)
	ok := s.post(func() {
		removed, err := s.recent.Clear(ctx)
		for _, entry := range removed {
			s.cache.Delete(entry.Name)
		}
		s.state.RecentSearches = s.recent.List()
		s.publish()
		result <- err
	})
	if !ok {
		return ErrServiceStopped
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PurgeExpired removes expired cache entries on the event loop and returns how many were removed
func (s *CharacterLookupService) PurgeExpired(ctx context.Context) (int, error) {
	result := make(chan int, 1)
	if !s.post(func() { result <- s.cache.PurgeExpired() }) {
		return 0, ErrServiceStopped
	}
	select {
	case removed := <-result:
		return removed, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// CacheStats returns statistics of the service's response cache
func (s *CharacterLookupService) CacheStats() CacheStats {
	return s.cache.Stats()
}

// LogCacheStats logs statistics of the service's response cache at debug level
func (s *CharacterLookupService) LogCacheStats(logger *logrus.Entry) {
	s.cache.LogStats(logger)
}

func (s *CharacterLookupService) touch() {
	s.lastActivity.Store(time.Now().UnixNano())
}

// handleFetch runs on the event loop
func (s *CharacterLookupService) handleFetch(name string, opts FetchOptions, reply chan<- Outcome) {
	s.cancelInflight()

	logger := s.logger.WithFields(logrus.Fields{
		"character_name": name,
		"refresh":        opts.Refresh,
		"from_recent":    opts.FromRecent,
	})

	s.state.Query = name
	s.state.State = StateValidating
	s.state.Loading = true
	s.state.Revalidating = false
	s.state.Error = nil
	s.state.ErrorMessage = ""
	s.publish()

	if err := ValidateCharacterName(name); err != nil {
		logger.WithError(err).Debug("Rejected invalid character name")
		s.fail(shared.NewValidationError(name, err), false, reply)
		return
	}

	if cached, hit := s.cache.Get(name); hit {
		s.metrics.RecordCacheResult(true)
		logger.Debug("Serving character from cache")

		s.applyResponse(cached, opts)
		s.state.State = StateCacheHit
		s.state.FromCache = true
		s.publish()

		if !opts.Refresh {
			s.state.State = StateSuccess
			s.state.Loading = false
			s.publish()
			s.metrics.RecordLookup(nil)
			reply <- Outcome{Snapshot: s.state, FromCache: true}
			return
		}

		if !s.connectivity.IsOnline() {
			// the cached record stays displayed
			s.fail(shared.NewNoConnectivityError(name), true, reply)
			return
		}

		s.state.State = StateSuccess
		s.state.Loading = false
		s.state.Revalidating = true
		s.publish()
		s.startRequest(name, opts, reply, true)
		return
	}
	s.metrics.RecordCacheResult(false)

	if !s.connectivity.IsOnline() {
		s.fail(shared.NewNoConnectivityError(name), false, reply)
		return
	}

	s.state.State = StateRequesting
	s.publish()
	s.startRequest(name, opts, reply, false)
}

// startRequest runs the upstream call on its own goroutine. The result is posted back
// to the loop tagged with a generation, so results of superseded requests are dropped.
func (s *CharacterLookupService) startRequest(name string, opts FetchOptions, reply chan<- Outcome, revalidate bool) {
	s.generation++
	ctx, cancel := context.WithCancel(context.Background())
	request := &inflightRequest{
		generation: s.generation,
		name:       name,
		options:    opts,
		cancel:     cancel,
		reply:      reply,
		revalidate: revalidate,
	}
	s.inflight = request

	fetcher := s.fetcher
	minLoading := s.minLoading
	go func() {
		started := time.Now()
		var (
			response *models.CharacterResponse
			err      error
		)
		if fetcher == nil {
			err = shared.NewConnectionError(name, "no upstream client configured", nil)
		} else {
			response, err = fetcher.FetchCharacter(ctx, name)
		}

		if remaining := minLoading - time.Since(started); remaining > 0 {
			timer := time.NewTimer(remaining)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
		if ctx.Err() != nil {
			return
		}

		s.post(func() { s.completeRequest(request, response, err) })
	}()
}

// completeRequest runs on the event loop
func (s *CharacterLookupService) completeRequest(request *inflightRequest, response *models.CharacterResponse, err error) {
	if s.inflight == nil || s.inflight.generation != request.generation {
		return
	}
	s.inflight = nil
	request.cancel()

	if err != nil {
		lookupErr, ok := shared.AsLookupError(err)
		if !ok {
			lookupErr = shared.NewConnectionError(request.name, err.Error(), err)
		}
		s.fail(lookupErr, request.revalidate, request.reply)
		return
	}

	s.cache.Put(request.name, response)
	s.applyResponse(response, request.options)
	s.state.FromCache = false
	s.state.State = StateSuccess
	s.state.Loading = false
	s.state.Revalidating = false
	s.publish()

	s.metrics.RecordLookup(nil)
	s.logger.WithFields(logrus.Fields{
		"character_name":  response.Character.Name,
		"character_level": response.Character.Level,
		"world":           response.Character.World,
		"revalidated":     request.revalidate,
	}).Info("Character lookup succeeded")

	request.reply <- Outcome{Snapshot: s.state}
}

// applyResponse replaces the published record and updates recent searches unless replaying
func (s *CharacterLookupService) applyResponse(response *models.CharacterResponse, opts FetchOptions) {
	character := response.Character
	s.state.Character = &character
	s.state.Deaths = nonNil(response.Deaths)
	s.state.Achievements = nonNil(response.Achievements)
	s.state.AccountInfo = response.AccountInfo
	s.state.OtherCharacters = nonNil(response.OtherCharacters)

	if opts.FromRecent {
		return
	}

	evicted, err := s.recent.Record(context.Background(), models.NewRecentSearchEntry(character, response.FetchedAt))
	if err != nil {
		s.logger.WithError(err).Warn("Failed to persist recent searches")
	} else {
		s.metrics.RecordRecentSearchWrite()
	}
	for _, entry := range evicted {
		s.cache.Delete(entry.Name)
	}
	s.state.RecentSearches = s.recent.List()
}

// fail publishes a failure. keepRecord retains the displayed character, which is only
// the case when a revalidation of cached data fails.
func (s *CharacterLookupService) fail(lookupErr *shared.LookupError, keepRecord bool, reply chan<- Outcome) {
	lookupErr.LogError()

	if !keepRecord {
		s.state.Character = nil
		s.state.Deaths = []models.DeathRecord{}
		s.state.Achievements = []models.Achievement{}
		s.state.AccountInfo = nil
		s.state.OtherCharacters = []models.OtherCharacterSummary{}
		s.state.FromCache = false
	}
	s.state.State = StateFailure
	s.state.Loading = false
	s.state.Revalidating = false
	s.state.Error = lookupErr
	s.state.ErrorMessage = lookupErr.UserMessage()
	s.publish()

	s.metrics.RecordLookup(lookupErr)
	reply <- Outcome{Snapshot: s.state, Err: lookupErr}
}

// cancelInflight drops the outstanding request; its caller is told it was superseded
func (s *CharacterLookupService) cancelInflight() {
	if s.inflight == nil {
		return
	}
	request := s.inflight
	s.inflight = nil
	request.cancel()
	s.metrics.RecordCancelled()

	s.logger.WithField("character_name", request.name).Debug("Cancelled in-flight lookup")
	request.reply <- Outcome{Snapshot: s.state, Err: shared.ErrFetchCancelled}
}

// publish stores the loop's state as the current snapshot and fans it out
func (s *CharacterLookupService) publish() {
	s.state.UpdatedAt = time.Now()
	snapshot := s.state
	s.current.Store(&snapshot)

	s.subMutex.Lock()
	defer s.subMutex.Unlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- snapshot:
		default:
			// keep only the latest snapshot for slow subscribers
			select {
			case <-ch:
			default:
			}
			ch <- snapshot
		}
	}
}

func nonNil[T any](values []T) []T {
	if values == nil {
		return []T{}
	}
	return values
}
