package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"letscollab-be/internal/pkg/logger"
)

const (
	DefaultBroadcastInterval = 150 * time.Millisecond
	DefaultCursorInterval    = 100 * time.Millisecond
	DefaultPersistDelay      = 1500 * time.Millisecond
	DefaultSaveTimeout       = 10 * time.Second
)

var (
	ErrClosed     = errors.New("reconciler closed")
	ErrEmptyTitle = errors.New("title cannot be empty")
)

// PersistenceError wraps a failed save. It is transient: the next edit's
// debounce cycle retries.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist snapshot: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Snapshot is the persisted state of a board. A nil field is left untouched
// by a save.
type Snapshot struct {
	Title    *string
	Elements []json.RawMessage
}

// Broadcaster sends events to the other participants of the room. Failed
// sends are dropped.
type Broadcaster interface {
	BroadcastMutation(elements []json.RawMessage) error
	BroadcastCursor(x, y float64) error
	BroadcastTitle(title string) error
}

type Persister interface {
	SaveSnapshot(ctx context.Context, snapshot Snapshot) error
}

// Scene is the local rendering surface. Implementations may report the
// replacement back through LocalChange or SetTitle synchronously; those calls
// are suppressed.
type Scene interface {
	ReplaceElements(elements []json.RawMessage)
	ReplaceTitle(title string)
}

// Listener observes save status. Callbacks run without locks held.
type Listener interface {
	SaveStarted()
	SaveFinished(err error)
}

type Config struct {
	BroadcastInterval time.Duration
	CursorInterval    time.Duration
	PersistDelay      time.Duration
	SaveTimeout       time.Duration
}

func (c Config) withDefaults() Config {
	if c.BroadcastInterval <= 0 {
		c.BroadcastInterval = DefaultBroadcastInterval
	}
	if c.CursorInterval <= 0 {
		c.CursorInterval = DefaultCursorInterval
	}
	if c.PersistDelay <= 0 {
		c.PersistDelay = DefaultPersistDelay
	}
	if c.SaveTimeout <= 0 {
		c.SaveTimeout = DefaultSaveTimeout
	}
	return c
}

// Deps are the collaborators of a Reconciler. Listener, Clock and Logger are
// optional.
type Deps struct {
	Broadcaster Broadcaster
	Persister   Persister
	Scene       Scene
	Listener    Listener
	Clock       Clock
	Logger      logger.ILogger
}

// Reconciler owns one client's copy of one board. It decides which local
// changes are broadcast and persisted and applies remote ones without echoing
// them back.
//
// Echo suppression has two layers. While a remote snapshot is being handed to
// the Scene, change notifications are dropped outright; a local edit the Scene
// reports during that handoff is lost and only goes out with the next
// notification that carries it. Independently, every remote snapshot becomes
// the baseline for both the last-sent and the last-persisted fingerprint, so a
// late notification, a queued trailing broadcast or a pending persist flush
// all compare equal to the remote state and do nothing. Saves that were in
// flight when a new baseline arrived never move the persisted baseline. A
// remote snapshot is therefore only sent or saved again once a local edit
// changes it.
type Reconciler struct {
	userID string
	cfg    Config

	broadcaster Broadcaster
	persister   Persister
	scene       Scene
	listener    Listener
	clock       Clock
	logger      logger.ILogger

	mutationThrottle *throttle
	cursorThrottle   *throttle
	persistDebounce  *debounce

	mu             sync.Mutex
	elements       []json.RawMessage
	current        Fingerprint
	title          string
	cursorX        float64
	cursorY        float64
	lastSent       Fingerprint
	lastPersisted  Fingerprint
	inFlight       map[saveKey]int
	baseline       uint64 // bumped by every remote snapshot
	saveSeq        uint64
	persistedSeq   uint64
	applyingRemote int
	saving         int
	persistErr     error
	closed         bool
}

func New(userID string, deps Deps, cfg Config) *Reconciler {
	cfg = cfg.withDefaults()
	if deps.Clock == nil {
		deps.Clock = realClock{}
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNopLogger()
	}

	r := &Reconciler{
		userID:      userID,
		cfg:         cfg,
		broadcaster: deps.Broadcaster,
		persister:   deps.Persister,
		scene:       deps.Scene,
		listener:    deps.Listener,
		clock:       deps.Clock,
		logger:      deps.Logger,
		inFlight:    make(map[saveKey]int),
	}
	empty := fingerprintOf(nil)
	r.current = empty
	r.lastSent = empty
	r.lastPersisted = empty

	r.mutationThrottle = newThrottle(r.clock, cfg.BroadcastInterval, r.sendMutation)
	r.cursorThrottle = newThrottle(r.clock, cfg.CursorInterval, r.sendCursor)
	r.persistDebounce = newDebounce(r.clock, cfg.PersistDelay, r.flush)
	return r
}

// Load installs a freshly fetched snapshot as the baseline. It is used on
// first open and after every reconnect.
func (r *Reconciler) Load(title string, elements []json.RawMessage) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.elements = cloneElements(elements)
	r.title = title
	r.adoptBaselineLocked()
	r.applyingRemote++
	r.mu.Unlock()

	r.scene.ReplaceTitle(title)
	r.scene.ReplaceElements(cloneElements(elements))
	r.endRemote()
}

// LocalChange reports the scene's current element collection.
func (r *Reconciler) LocalChange(elements []json.RawMessage) {
	r.mu.Lock()
	if r.closed || r.applyingRemote > 0 {
		r.mu.Unlock()
		return
	}

	// Re-renders that report the same content are not edits and must not
	// push the persist deadline back.
	fp := fingerprintOf(elements)
	if fp == r.current {
		r.mu.Unlock()
		return
	}
	r.elements = cloneElements(elements)
	r.current = fp
	needsSend := fp != r.lastSent
	needsPersist := fp != r.lastPersisted
	r.mu.Unlock()

	if needsSend {
		r.mutationThrottle.Trigger()
	}
	if needsPersist {
		r.persistDebounce.Trigger()
	}
}

// ApplyRemoteMutation replaces the local collection with a snapshot relayed
// from another user.
func (r *Reconciler) ApplyRemoteMutation(originUserID string, elements []json.RawMessage) {
	r.mu.Lock()
	if r.closed || originUserID == r.userID {
		r.mu.Unlock()
		return
	}
	r.elements = cloneElements(elements)
	r.adoptBaselineLocked()
	r.applyingRemote++
	r.mu.Unlock()

	r.scene.ReplaceElements(cloneElements(elements))
	r.endRemote()
}

// adoptBaselineLocked marks r.elements as both sent and persisted and
// orphans every save issued before it.
func (r *Reconciler) adoptBaselineLocked() {
	r.current = fingerprintOf(r.elements)
	r.lastSent = r.current
	r.lastPersisted = r.current
	r.baseline++
	r.persistedSeq = r.saveSeq
}

func (r *Reconciler) endRemote() {
	r.mu.Lock()
	r.applyingRemote--
	r.mu.Unlock()
}

// SetTitle broadcasts a local title change and saves it right away.
func (r *Reconciler) SetTitle(ctx context.Context, title string) error {
	title = strings.TrimSpace(title)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	if r.applyingRemote > 0 || title == r.title {
		r.mu.Unlock()
		return nil
	}
	if title == "" {
		r.mu.Unlock()
		return ErrEmptyTitle
	}
	r.title = title
	r.saving++
	r.mu.Unlock()

	if err := r.broadcaster.BroadcastTitle(title); err != nil {
		r.logger.Warn("RECONCILE", "Title broadcast dropped", map[string]interface{}{"error": err.Error()})
	}

	return r.save(ctx, Snapshot{Title: &title}, nil)
}

// ApplyRemoteTitle takes a title relayed from another user.
func (r *Reconciler) ApplyRemoteTitle(originUserID, title string) {
	r.mu.Lock()
	if r.closed || originUserID == r.userID {
		r.mu.Unlock()
		return
	}
	r.title = title
	r.applyingRemote++
	r.mu.Unlock()

	r.scene.ReplaceTitle(title)
	r.endRemote()
}

// MoveCursor records the pointer position. Cursors are throttled but never
// persisted or suppressed.
func (r *Reconciler) MoveCursor(x, y float64) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.cursorX, r.cursorY = x, y
	r.mu.Unlock()

	r.cursorThrottle.Trigger()
}

func (r *Reconciler) sendMutation() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	fp := r.current
	if fp == r.lastSent {
		r.mu.Unlock()
		return
	}
	elements := cloneElements(r.elements)
	r.lastSent = fp
	r.mu.Unlock()

	if err := r.broadcaster.BroadcastMutation(elements); err != nil {
		r.logger.Warn("RECONCILE", "Mutation broadcast dropped", map[string]interface{}{"error": err.Error()})
	}
}

func (r *Reconciler) sendCursor() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	x, y := r.cursorX, r.cursorY
	r.mu.Unlock()

	if err := r.broadcaster.BroadcastCursor(x, y); err != nil {
		r.logger.Debug("RECONCILE", "Cursor broadcast dropped", map[string]interface{}{"error": err.Error()})
	}
}

// flush persists the current collection unless it is already saved or a
// save of the same content is in flight.
func (r *Reconciler) flush() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	key := saveKey{fp: r.current, baseline: r.baseline}
	if key.fp == r.lastPersisted || r.inFlight[key] > 0 {
		r.mu.Unlock()
		return
	}
	elements := cloneElements(r.elements)
	r.inFlight[key]++
	r.saving++
	r.saveSeq++
	ticket := &saveTicket{saveKey: key, seq: r.saveSeq}
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.SaveTimeout)
	defer cancel()
	r.save(ctx, Snapshot{Elements: elements}, ticket)
}

type saveKey struct {
	fp       Fingerprint
	baseline uint64
}

// saveTicket identifies an element save. A finished save only becomes the
// persisted baseline if no remote snapshot arrived meanwhile and no later
// save has already finished.
type saveTicket struct {
	saveKey
	seq uint64
}

// save runs a persister call that has already been counted in r.saving.
func (r *Reconciler) save(ctx context.Context, snapshot Snapshot, ticket *saveTicket) error {
	if r.listener != nil {
		r.listener.SaveStarted()
	}

	err := r.persister.SaveSnapshot(ctx, snapshot)

	r.mu.Lock()
	r.saving--
	if ticket != nil {
		r.inFlight[ticket.saveKey]--
		if r.inFlight[ticket.saveKey] <= 0 {
			delete(r.inFlight, ticket.saveKey)
		}
	}
	if err != nil {
		err = &PersistenceError{Err: err}
		r.persistErr = err
	} else {
		r.persistErr = nil
		if ticket != nil && ticket.baseline == r.baseline && ticket.seq > r.persistedSeq {
			r.lastPersisted = ticket.fp
			r.persistedSeq = ticket.seq
		}
	}
	r.mu.Unlock()

	if err != nil {
		r.logger.Error("RECONCILE", "Snapshot save failed", map[string]interface{}{"error": err.Error()})
	}
	if r.listener != nil {
		r.listener.SaveFinished(err)
	}
	return err
}

// Saving reports whether a save is in flight.
func (r *Reconciler) Saving() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saving > 0
}

// LastPersistError is the error of the most recent save, cleared by the next
// successful one.
func (r *Reconciler) LastPersistError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.persistErr
}

// Elements returns a copy of the current collection.
func (r *Reconciler) Elements() []json.RawMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneElements(r.elements)
}

func (r *Reconciler) Title() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.title
}

// Close stops every timer and, if the collection differs from what was last
// persisted, starts a final save without waiting for it. The returned channel
// is closed once that save finishes, or immediately when there is nothing to
// save.
func (r *Reconciler) Close(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		close(done)
		return done
	}
	r.closed = true
	fp := r.current
	dirty := fp != r.lastPersisted && r.inFlight[saveKey{fp: fp, baseline: r.baseline}] == 0
	elements := cloneElements(r.elements)
	r.mu.Unlock()

	r.mutationThrottle.Stop()
	r.cursorThrottle.Stop()
	r.persistDebounce.Stop()

	if !dirty {
		close(done)
		return done
	}

	go func() {
		defer close(done)
		if err := r.persister.SaveSnapshot(ctx, Snapshot{Elements: elements}); err != nil {
			r.logger.Warn("RECONCILE", "Final flush failed", map[string]interface{}{"error": err.Error()})
		}
	}()
	return done
}
