package collabclient

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"testing"
	"time"

	"letscollab-be/internal/controller"
	"letscollab-be/internal/dto"
	"letscollab-be/internal/handler"
	"letscollab-be/internal/pkg/logger"
	"letscollab-be/internal/pkg/serverutils"
	"letscollab-be/internal/presence"
	"letscollab-be/internal/service"
	internalWS "letscollab-be/internal/websocket"
	"letscollab-be/pkg/activity"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const testSecret = "collabclient-test-secret"

type storedBoard struct {
	title    string
	elements json.RawMessage
	owner    uuid.UUID
	members  []uuid.UUID
}

// memoryBoards is an in-memory board service for driving the real
// controller and collab handler.
type memoryBoards struct {
	mu     sync.Mutex
	boards map[uuid.UUID]*storedBoard
	saves  []dto.SaveSnapshotRequest
}

func (m *memoryBoards) add(owner uuid.UUID, title string, members ...uuid.UUID) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.boards[id] = &storedBoard{title: title, elements: json.RawMessage(`[]`), owner: owner, members: append(members, owner)}
	return id
}

func (m *memoryBoards) Saves() []dto.SaveSnapshotRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]dto.SaveSnapshotRequest(nil), m.saves...)
}

func (m *memoryBoards) lookup(boardId, userId uuid.UUID) (*storedBoard, error) {
	b, ok := m.boards[boardId]
	if !ok {
		return nil, service.ErrBoardNotFound
	}
	for _, member := range b.members {
		if member == userId {
			return b, nil
		}
	}
	return nil, service.ErrAccessDenied
}

func (m *memoryBoards) IsOwnerOrCollaborator(ctx context.Context, boardId uuid.UUID, userId uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := m.lookup(boardId, userId)
	if err == service.ErrAccessDenied {
		return false, nil
	}
	return err == nil, err
}

func (m *memoryBoards) LoadSnapshot(ctx context.Context, boardId uuid.UUID, userId uuid.UUID) (*dto.BoardSnapshotResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, err := m.lookup(boardId, userId)
	if err != nil {
		return nil, err
	}
	return &dto.BoardSnapshotResponse{Id: boardId, Title: b.title, Elements: b.elements, OwnerId: b.owner}, nil
}

func (m *memoryBoards) SaveSnapshot(ctx context.Context, boardId uuid.UUID, userId uuid.UUID, req *dto.SaveSnapshotRequest) (*dto.BoardSnapshotResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, err := m.lookup(boardId, userId)
	if err != nil {
		return nil, err
	}
	if req.Title != nil {
		b.title = *req.Title
	}
	if req.Elements != nil {
		b.elements = *req.Elements
	}
	m.saves = append(m.saves, *req)
	return &dto.BoardSnapshotResponse{Id: boardId, Title: b.title, Elements: b.elements, OwnerId: b.owner}, nil
}

func (m *memoryBoards) GetAll(ctx context.Context, userId uuid.UUID) ([]*dto.GetAllBoardResponse, error) {
	return nil, nil
}

func (m *memoryBoards) Create(ctx context.Context, userId uuid.UUID, req *dto.CreateBoardRequest) (*dto.CreateBoardResponse, error) {
	return &dto.CreateBoardResponse{Id: m.add(userId, req.Title)}, nil
}

func (m *memoryBoards) Delete(ctx context.Context, userId uuid.UUID, id uuid.UUID) error {
	return nil
}

type testServer struct {
	baseURL string
	boards  *memoryBoards
	stopHub context.CancelFunc
}

func startServer(t *testing.T) *testServer {
	t.Helper()
	t.Setenv("JWT_SECRET", testSecret)
	nop := logger.NewNopLogger()

	boards := &memoryBoards{boards: map[uuid.UUID]*storedBoard{}}
	hub := internalWS.NewHub(nil, internalWS.Options{InstanceID: "client-test"}, nop)
	rooms := service.NewRoomService(presence.NewRegistry(), boards, hub, activity.NewNatsPublisher(nil, nop), nop)
	relay := service.NewRelayService(rooms, hub, nil, nop)
	collab := handler.NewCollabHandler(rooms, relay, hub, testSecret, nop)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx, collab)
	<-hub.Ready()

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(serverutils.ErrorHandlerMiddleware())
	api := app.Group("/api")
	controller.NewBoardController(boards).RegisterRoutes(api)
	collab.RegisterRoutes(api)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go app.Listener(ln)

	t.Cleanup(func() {
		_ = app.ShutdownWithTimeout(time.Second)
		cancel()
	})
	return &testServer{baseURL: "http://" + ln.Addr().String(), boards: boards, stopHub: cancel}
}

func (s *testServer) config(t *testing.T, userID uuid.UUID, name string) Config {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID.String(),
		"name":    name,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return Config{BaseURL: s.baseURL, Token: signed, DisplayName: name}
}
