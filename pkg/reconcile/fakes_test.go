package reconcile

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func els(ids ...string) []json.RawMessage {
	out := make([]json.RawMessage, len(ids))
	for i, id := range ids {
		out[i] = json.RawMessage(`{"id":"` + id + `"}`)
	}
	return out
}

type cursor struct{ x, y float64 }

type recordingBroadcaster struct {
	mu        sync.Mutex
	mutations [][]json.RawMessage
	titles    []string
	cursors   []cursor
	err       error
}

func (b *recordingBroadcaster) BroadcastMutation(elements []json.RawMessage) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mutations = append(b.mutations, elements)
	return b.err
}

func (b *recordingBroadcaster) BroadcastCursor(x, y float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cursors = append(b.cursors, cursor{x, y})
	return b.err
}

func (b *recordingBroadcaster) BroadcastTitle(title string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.titles = append(b.titles, title)
	return b.err
}

func (b *recordingBroadcaster) Mutations() [][]json.RawMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([][]json.RawMessage(nil), b.mutations...)
}

type recordingPersister struct {
	mu    sync.Mutex
	saves []Snapshot
	err   error
	gate  chan struct{} // when set, each save waits for a receive
}

func (p *recordingPersister) SaveSnapshot(ctx context.Context, snapshot Snapshot) error {
	if p.gate != nil {
		<-p.gate
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saves = append(p.saves, snapshot)
	return p.err
}

func (p *recordingPersister) Saves() []Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Snapshot(nil), p.saves...)
}

func (p *recordingPersister) setErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// echoScene behaves like a UI canvas: replacing its content fires the same
// change notifications a user edit would.
type echoScene struct {
	r        *Reconciler
	replaced [][]json.RawMessage
	titles   []string
}

func (s *echoScene) ReplaceElements(elements []json.RawMessage) {
	s.replaced = append(s.replaced, elements)
	s.r.LocalChange(elements)
}

func (s *echoScene) ReplaceTitle(title string) {
	s.titles = append(s.titles, title)
	s.r.SetTitle(context.Background(), title)
}

type statusListener struct {
	mu       sync.Mutex
	started  int
	finished []error
}

func (l *statusListener) SaveStarted() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.started++
}

func (l *statusListener) SaveFinished(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.finished = append(l.finished, err)
}

type harness struct {
	r        *Reconciler
	clock    *FakeClock
	out      *recordingBroadcaster
	store    *recordingPersister
	scene    *echoScene
	listener *statusListener
}

func newHarness() *harness {
	h := &harness{
		clock:    NewFakeClock(epoch),
		out:      &recordingBroadcaster{},
		store:    &recordingPersister{},
		scene:    &echoScene{},
		listener: &statusListener{},
	}
	h.r = New("user-a", Deps{
		Broadcaster: h.out,
		Persister:   h.store,
		Scene:       h.scene,
		Listener:    h.listener,
		Clock:       h.clock,
	}, Config{})
	h.scene.r = h.r
	return h
}

// heldPersister parks every save until the test releases it by arrival index,
// so completions can be reordered.
type heldPersister struct {
	mu      sync.Mutex
	waiting []chan struct{}
	saves   []Snapshot
}

func (p *heldPersister) SaveSnapshot(ctx context.Context, snapshot Snapshot) error {
	release := make(chan struct{})
	p.mu.Lock()
	p.waiting = append(p.waiting, release)
	p.mu.Unlock()

	<-release

	p.mu.Lock()
	defer p.mu.Unlock()
	p.saves = append(p.saves, snapshot)
	return nil
}

func (p *heldPersister) Arrived() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.waiting)
}

func (p *heldPersister) Release(i int) {
	p.mu.Lock()
	release := p.waiting[i]
	p.mu.Unlock()
	close(release)
}

func (p *heldPersister) Saves() []Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Snapshot(nil), p.saves...)
}
