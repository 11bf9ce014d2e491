package service

import (
	"context"
	"encoding/json"
	"sync"

	"letscollab-be/internal/entity"
	"letscollab-be/internal/repository/contract"
	"letscollab-be/internal/repository/specification"
	"letscollab-be/internal/repository/unitofwork"
	"letscollab-be/pkg/realtime"

	"github.com/google/uuid"
)

// fakeStore backs the in-memory unit of work. It understands the handful of
// specifications the board service uses.
type fakeStore struct {
	mu            sync.Mutex
	boards        map[uuid.UUID]*entity.Board
	collaborators []*entity.BoardCollaborator
	findOneCalls  int
	updateErr     error
	committed     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{boards: make(map[uuid.UUID]*entity.Board)}
}

func (s *fakeStore) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return &fakeUow{store: s}
}

type fakeUow struct{ store *fakeStore }

func (u *fakeUow) Begin(ctx context.Context) error { return nil }
func (u *fakeUow) Commit() error {
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	u.store.committed++
	return nil
}
func (u *fakeUow) Rollback() error { return nil }
func (u *fakeUow) BoardRepository() contract.BoardRepository {
	return &fakeBoardRepo{store: u.store}
}
func (u *fakeUow) BoardCollaboratorRepository() contract.BoardCollaboratorRepository {
	return &fakeCollaboratorRepo{store: u.store}
}

type fakeBoardRepo struct{ store *fakeStore }

func (r *fakeBoardRepo) Create(ctx context.Context, board *entity.Board) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	b := *board
	r.store.boards[b.Id] = &b
	return nil
}

func (r *fakeBoardRepo) UpdateSnapshot(ctx context.Context, id uuid.UUID, title *string, elements json.RawMessage) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.store.updateErr != nil {
		return r.store.updateErr
	}
	b, ok := r.store.boards[id]
	if !ok {
		return nil
	}
	if title != nil {
		b.Title = *title
	}
	if elements != nil {
		b.Elements = elements
	}
	return nil
}

func (r *fakeBoardRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.boards, id)
	return nil
}

func (r *fakeBoardRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Board, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.findOneCalls++
	for _, spec := range specs {
		if byID, ok := spec.(specification.ByID); ok {
			if b, found := r.store.boards[byID.ID]; found {
				cp := *b
				return &cp, nil
			}
		}
	}
	return nil, nil
}

func (r *fakeBoardRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Board, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var userID uuid.UUID
	for _, spec := range specs {
		if acc, ok := spec.(specification.AccessibleBy); ok {
			userID = acc.UserID
		}
	}
	var out []*entity.Board
	for _, b := range r.store.boards {
		if b.OwnerId == userID || r.store.isCollaborator(b.Id, userID) {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeBoardRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	boards, _ := r.FindAll(ctx, specs...)
	return int64(len(boards)), nil
}

func (s *fakeStore) isCollaborator(boardID, userID uuid.UUID) bool {
	for _, c := range s.collaborators {
		if c.BoardId == boardID && c.UserId == userID {
			return true
		}
	}
	return false
}

type fakeCollaboratorRepo struct{ store *fakeStore }

func (r *fakeCollaboratorRepo) Create(ctx context.Context, c *entity.BoardCollaborator) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *c
	r.store.collaborators = append(r.store.collaborators, &cp)
	return nil
}

func (r *fakeCollaboratorRepo) DeleteByBoardId(ctx context.Context, boardId uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	kept := r.store.collaborators[:0]
	for _, c := range r.store.collaborators {
		if c.BoardId != boardId {
			kept = append(kept, c)
		}
	}
	r.store.collaborators = kept
	return nil
}

func (r *fakeCollaboratorRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.BoardCollaborator, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var boardID, userID *uuid.UUID
	for _, spec := range specs {
		switch v := spec.(type) {
		case specification.ByBoardID:
			boardID = &v.BoardID
		case specification.ByUserID:
			userID = &v.UserID
		}
	}
	var out []*entity.BoardCollaborator
	for _, c := range r.store.collaborators {
		if boardID != nil && c.BoardId != *boardID {
			continue
		}
		if userID != nil && c.UserId != *userID {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *fakeCollaboratorRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	all, _ := r.FindAll(ctx, specs...)
	return int64(len(all)), nil
}

// mapCache is a BoardSnapshotCache without expiry.
type mapCache struct {
	mu          sync.Mutex
	items       map[uuid.UUID]*entity.Board
	invalidated []uuid.UUID
}

func newMapCache() *mapCache {
	return &mapCache{items: make(map[uuid.UUID]*entity.Board)}
}

func (c *mapCache) Get(ctx context.Context, id uuid.UUID) (*entity.Board, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.items[id]
	return b, ok
}

func (c *mapCache) Set(ctx context.Context, board *entity.Board) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[board.Id] = board
}

func (c *mapCache) Invalidate(ctx context.Context, id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, id)
	c.invalidated = append(c.invalidated, id)
}

type recordingPublisher struct {
	mu       sync.Mutex
	payloads [][]byte
	err      error
}

func (p *recordingPublisher) Publish(ctx context.Context, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payloads = append(p.payloads, payload)
	return p.err
}

// recordingDelivery keeps every frame each connection would have received.
type recordingDelivery struct {
	mu     sync.Mutex
	frames map[string][]realtime.Message
}

func newRecordingDelivery() *recordingDelivery {
	return &recordingDelivery{frames: make(map[string][]realtime.Message)}
}

func (d *recordingDelivery) Deliver(connectionIDs []string, frame []byte) {
	msg, err := realtime.Parse(frame)
	if err != nil {
		panic(err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, id := range connectionIDs {
		d.frames[id] = append(d.frames[id], msg)
	}
}

func (d *recordingDelivery) received(connectionID string) []realtime.Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]realtime.Message(nil), d.frames[connectionID]...)
}

func (d *recordingDelivery) lastPresence(connectionID string) (realtime.PresencePayload, bool) {
	frames := d.received(connectionID)
	for i := len(frames) - 1; i >= 0; i-- {
		if frames[i].Kind == realtime.KindPresence {
			var p realtime.PresencePayload
			if err := frames[i].Decode(&p); err != nil {
				panic(err)
			}
			return p, true
		}
	}
	return realtime.PresencePayload{}, false
}

type activityCall struct {
	kind string
	flag bool
}

type recordingActivity struct {
	mu    sync.Mutex
	calls []activityCall
}

func (a *recordingActivity) record(kind string, flag bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, activityCall{kind: kind, flag: flag})
}

func (a *recordingActivity) PublishParticipantJoined(ctx context.Context, boardID, userID uuid.UUID, connectionID string, userArrived bool) {
	a.record("joined", userArrived)
}

func (a *recordingActivity) PublishParticipantLeft(ctx context.Context, boardID, userID uuid.UUID, connectionID string, userDeparted bool) {
	a.record("left", userDeparted)
}

func (a *recordingActivity) PublishSnapshotSaved(ctx context.Context, boardID, userID uuid.UUID, elementCount int, titleChanged bool) {
	a.record("saved", titleChanged)
}

func (a *recordingActivity) PublishBoardDeleted(ctx context.Context, boardID, userID uuid.UUID) {
	a.record("deleted", false)
}

// staticAuthorizer grants access per board id.
type staticAuthorizer struct {
	mu      sync.Mutex
	allowed map[uuid.UUID]map[uuid.UUID]bool
	err     error
}

func newStaticAuthorizer() *staticAuthorizer {
	return &staticAuthorizer{allowed: make(map[uuid.UUID]map[uuid.UUID]bool)}
}

func (a *staticAuthorizer) allow(boardID uuid.UUID, users ...uuid.UUID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.allowed[boardID] == nil {
		a.allowed[boardID] = make(map[uuid.UUID]bool)
	}
	for _, u := range users {
		a.allowed[boardID][u] = true
	}
}

func (a *staticAuthorizer) IsOwnerOrCollaborator(ctx context.Context, boardId uuid.UUID, userId uuid.UUID) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return false, a.err
	}
	users, ok := a.allowed[boardId]
	if !ok {
		return false, ErrBoardNotFound
	}
	return users[userId], nil
}
