package collabclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"letscollab-be/pkg/realtime"
	"letscollab-be/pkg/reconcile"

	"github.com/cenkalti/backoff/v5"
)

var (
	ErrNotConnected = errors.New("not connected")
	ErrBadSnapshot  = errors.New("snapshot elements are not a JSON array")
)

// Session keeps one board open: it owns the socket, reconnects it when it
// drops, and feeds both directions through a reconcile.Reconciler.
//
// Handlers passed to Open observe traffic; mutation and title events are
// applied to the scene by the session itself before the handlers run.
type Session struct {
	cfg        Config
	documentID string
	api        *API
	scene      reconcile.Scene
	handlers   Handlers

	rec *reconcile.Reconciler

	mu     sync.Mutex
	conn   *Conn
	userID string
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
}

// Open fetches the persisted snapshot, joins the room and installs the
// snapshot on the scene.
func Open(ctx context.Context, cfg Config, documentID string, scene reconcile.Scene, handlers Handlers) (*Session, error) {
	cfg = cfg.withDefaults()
	sctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		cfg:        cfg,
		documentID: documentID,
		api:        NewAPI(cfg),
		scene:      scene,
		handlers:   handlers,
		ctx:        sctx,
		cancel:     cancel,
	}

	conn, presence, err := s.connect(ctx)
	if err != nil {
		cancel()
		return nil, err
	}
	snapshot, err := s.api.LoadSnapshot(ctx, documentID)
	if err != nil {
		conn.Close()
		cancel()
		return nil, err
	}
	elements, err := decodeElements(snapshot.Elements)
	if err != nil {
		conn.Close()
		cancel()
		return nil, err
	}

	rec := reconcile.New(presence.UserID, reconcile.Deps{
		Broadcaster: s,
		Persister:   s,
		Scene:       scene,
		Logger:      cfg.Logger,
	}, cfg.Reconcile)
	rec.Load(snapshot.Title, elements)

	s.mu.Lock()
	s.userID = presence.UserID
	s.rec = rec
	s.conn = conn
	s.mu.Unlock()
	return s, nil
}

func decodeElements(raw json.RawMessage) ([]json.RawMessage, error) {
	var elements []json.RawMessage
	if len(raw) == 0 {
		return elements, nil
	}
	if err := json.Unmarshal(raw, &elements); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
	}
	return elements, nil
}

func (s *Session) connect(ctx context.Context) (*Conn, realtime.PresencePayload, error) {
	conn, err := Dial(ctx, s.cfg, s.wrapHandlers())
	if err != nil {
		return nil, realtime.PresencePayload{}, err
	}
	presence, err := conn.Join(ctx, s.documentID, s.cfg.DisplayName)
	if err != nil {
		conn.Close()
		return nil, realtime.PresencePayload{}, err
	}
	return conn, presence, nil
}

func (s *Session) wrapHandlers() Handlers {
	h := s.handlers
	return Handlers{
		OnPresence: h.OnPresence,
		OnCursor:   h.OnCursor,
		OnError:    h.OnError,
		OnMutation: func(documentID, originUserID string, elements []json.RawMessage) {
			rec := s.Reconciler()
			if documentID != s.documentID || rec == nil {
				return
			}
			rec.ApplyRemoteMutation(originUserID, elements)
			if h.OnMutation != nil {
				h.OnMutation(documentID, originUserID, elements)
			}
		},
		OnTitle: func(documentID, originUserID, title string) {
			rec := s.Reconciler()
			if documentID != s.documentID || rec == nil {
				return
			}
			rec.ApplyRemoteTitle(originUserID, title)
			if h.OnTitle != nil {
				h.OnTitle(documentID, originUserID, title)
			}
		},
		OnTransportError: func(err error) {
			go s.reconnect(err)
		},
	}
}

// reconnect redials with exponential backoff. A fresh connection must re-join
// and re-fetch the snapshot; events missed in between are not replayed.
func (s *Session) reconnect(cause error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.conn = nil
	s.mu.Unlock()

	s.cfg.Logger.Warn("COLLAB_CLIENT", "Connection lost, reconnecting", map[string]interface{}{"document_id": s.documentID, "error": cause.Error()})

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.cfg.ReconnectDelay
	policy.MaxInterval = s.cfg.ReconnectMaxDelay

	conn, err := backoff.Retry(s.ctx, func() (*Conn, error) {
		conn, _, err := s.connect(s.ctx)
		if errors.Is(err, ErrJoinRejected) {
			return nil, backoff.Permanent(err)
		}
		return conn, err
	}, backoff.WithBackOff(policy), backoff.WithMaxTries(s.cfg.ReconnectAttempts))
	if err != nil {
		s.cfg.Logger.Error("COLLAB_CLIENT", "Reconnect gave up", map[string]interface{}{"document_id": s.documentID, "error": err.Error()})
		if s.handlers.OnTransportError != nil {
			s.handlers.OnTransportError(err)
		}
		return
	}

	// On failure the local document stays as it was; it is never replaced by
	// an empty one.
	if elements, title, err := s.refetch(); err == nil {
		s.Reconciler().Load(title, elements)
	} else {
		s.cfg.Logger.Warn("COLLAB_CLIENT", "Snapshot refetch failed", map[string]interface{}{"document_id": s.documentID, "error": err.Error()})
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.conn = conn
	s.mu.Unlock()
}

func (s *Session) refetch() ([]json.RawMessage, string, error) {
	snapshot, err := s.api.LoadSnapshot(s.ctx, s.documentID)
	if err != nil {
		return nil, "", err
	}
	elements, err := decodeElements(snapshot.Elements)
	if err != nil {
		return nil, "", err
	}
	return elements, snapshot.Title, nil
}

func (s *Session) current() (*Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil, ErrNotConnected
	}
	return s.conn, nil
}

// Reconciler exposes save status and the local document. It is nil until
// Open returns.
func (s *Session) Reconciler() *reconcile.Reconciler {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec
}

func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// LocalChange is the scene's change notification.
func (s *Session) LocalChange(elements []json.RawMessage) {
	s.rec.LocalChange(elements)
}

func (s *Session) SetTitle(ctx context.Context, title string) error {
	return s.rec.SetTitle(ctx, title)
}

func (s *Session) MoveCursor(x, y float64) {
	s.rec.MoveCursor(x, y)
}

func (s *Session) BroadcastMutation(elements []json.RawMessage) error {
	conn, err := s.current()
	if err != nil {
		return err
	}
	return conn.EmitMutation(s.documentID, elements)
}

func (s *Session) BroadcastCursor(x, y float64) error {
	conn, err := s.current()
	if err != nil {
		return err
	}
	return conn.EmitCursor(s.documentID, x, y, s.cfg.DisplayName)
}

func (s *Session) BroadcastTitle(title string) error {
	conn, err := s.current()
	if err != nil {
		return err
	}
	return conn.EmitTitle(s.documentID, title)
}

func (s *Session) SaveSnapshot(ctx context.Context, snapshot reconcile.Snapshot) error {
	return s.api.SaveSnapshot(ctx, s.documentID, snapshot)
}

// Close leaves the room and starts a final save of unsaved edits. The
// returned channel is closed when that save is done.
func (s *Session) Close(ctx context.Context) <-chan struct{} {
	s.mu.Lock()
	s.closed = true
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	done := s.rec.Close(ctx)
	s.cancel()
	if conn != nil {
		_ = conn.Leave(s.documentID)
		conn.Close()
	}
	return done
}
