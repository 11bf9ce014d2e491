package controller

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"letscollab-be/internal/dto"
	"letscollab-be/internal/pkg/serverutils"
	"letscollab-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBoardService struct {
	saved   *dto.SaveSnapshotRequest
	saveErr error
	loadErr error
}

func (s *stubBoardService) IsOwnerOrCollaborator(ctx context.Context, boardId, userId uuid.UUID) (bool, error) {
	return true, nil
}

func (s *stubBoardService) LoadSnapshot(ctx context.Context, boardId, userId uuid.UUID) (*dto.BoardSnapshotResponse, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return &dto.BoardSnapshotResponse{Id: boardId, Title: "Board", Elements: json.RawMessage(`[{"id":"r1"}]`)}, nil
}

func (s *stubBoardService) SaveSnapshot(ctx context.Context, boardId, userId uuid.UUID, req *dto.SaveSnapshotRequest) (*dto.BoardSnapshotResponse, error) {
	s.saved = req
	if s.saveErr != nil {
		return nil, s.saveErr
	}
	return &dto.BoardSnapshotResponse{Id: boardId}, nil
}

func (s *stubBoardService) GetAll(ctx context.Context, userId uuid.UUID) ([]*dto.GetAllBoardResponse, error) {
	return []*dto.GetAllBoardResponse{}, nil
}

func (s *stubBoardService) Create(ctx context.Context, userId uuid.UUID, req *dto.CreateBoardRequest) (*dto.CreateBoardResponse, error) {
	return &dto.CreateBoardResponse{Id: uuid.New()}, nil
}

func (s *stubBoardService) Delete(ctx context.Context, userId, id uuid.UUID) error {
	return service.ErrAccessDenied
}

func newTestApp(t *testing.T, svc service.IBoardService) (*fiber.App, string) {
	t.Helper()
	t.Setenv("JWT_SECRET", "controller-secret")

	app := fiber.New()
	app.Use(serverutils.ErrorHandlerMiddleware())
	NewBoardController(svc).RegisterRoutes(app.Group("/api"))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": uuid.NewString(),
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("controller-secret"))
	require.NoError(t, err)
	return app, signed
}

func do(t *testing.T, app *fiber.App, method, path, token, body string) (int, serverutils.BaseResponse[json.RawMessage]) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)

	var out serverutils.BaseResponse[json.RawMessage]
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return resp.StatusCode, out
}

func TestShowBoard(t *testing.T) {
	app, token := newTestApp(t, &stubBoardService{})

	code, res := do(t, app, http.MethodGet, "/api/boards/"+uuid.NewString(), token, "")
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, res.Success)

	var snap dto.BoardSnapshotResponse
	require.NoError(t, json.Unmarshal(res.Data, &snap))
	assert.JSONEq(t, `[{"id":"r1"}]`, string(snap.Elements))
}

func TestRequiresToken(t *testing.T) {
	app, _ := newTestApp(t, &stubBoardService{})

	code, res := do(t, app, http.MethodGet, "/api/boards", "", "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.False(t, res.Success)
}

func TestServiceErrorsMapToStatus(t *testing.T) {
	svc := &stubBoardService{loadErr: service.ErrBoardNotFound}
	app, token := newTestApp(t, svc)

	code, _ := do(t, app, http.MethodGet, "/api/boards/"+uuid.NewString(), token, "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, app, http.MethodGet, "/api/boards/not-a-uuid", token, "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, app, http.MethodDelete, "/api/boards/"+uuid.NewString(), token, "")
	assert.Equal(t, http.StatusForbidden, code)
}

func TestSaveSnapshotBody(t *testing.T) {
	svc := &stubBoardService{}
	app, token := newTestApp(t, svc)

	code, _ := do(t, app, http.MethodPatch, "/api/boards/"+uuid.NewString(), token, `{"elements":[{"id":"r1"}]}`)
	assert.Equal(t, http.StatusOK, code)
	require.NotNil(t, svc.saved)
	assert.Nil(t, svc.saved.Title)
	require.NotNil(t, svc.saved.Elements)
	assert.JSONEq(t, `[{"id":"r1"}]`, string(*svc.saved.Elements))

	// Empty titles fail validation before reaching the service.
	svc.saved = nil
	code, res := do(t, app, http.MethodPatch, "/api/boards/"+uuid.NewString(), token, `{"title":""}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, res.Message, "Title")
	assert.Nil(t, svc.saved)

	svc.saveErr = service.ErrInvalidSnapshot
	code, _ = do(t, app, http.MethodPatch, "/api/boards/"+uuid.NewString(), token, `{"elements":{}}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestCreateBoard(t *testing.T) {
	app, token := newTestApp(t, &stubBoardService{})

	code, res := do(t, app, http.MethodPost, "/api/boards", token, `{"title":"Roadmap"}`)
	assert.Equal(t, http.StatusCreated, code)
	assert.True(t, res.Success)

	code, _ = do(t, app, http.MethodPost, "/api/boards", token, `{}`)
	assert.Equal(t, http.StatusBadRequest, code)
}
