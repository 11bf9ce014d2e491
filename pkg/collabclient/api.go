package collabclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"letscollab-be/internal/dto"
	"letscollab-be/internal/pkg/serverutils"
	"letscollab-be/pkg/reconcile"

	"github.com/google/uuid"
)

// APIError is a non-2xx answer from the REST API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// API talks to the board REST endpoints.
type API struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewAPI(cfg Config) *API {
	cfg = cfg.withDefaults()
	return &API{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/") + "/api/boards",
		token:   cfg.Token,
		client:  cfg.HTTPClient,
	}
}

func (a *API) CreateBoard(ctx context.Context, title string) (uuid.UUID, error) {
	var res dto.CreateBoardResponse
	err := a.do(ctx, http.MethodPost, "", dto.CreateBoardRequest{Title: title}, &res)
	return res.Id, err
}

func (a *API) LoadSnapshot(ctx context.Context, boardID string) (*dto.BoardSnapshotResponse, error) {
	var res dto.BoardSnapshotResponse
	if err := a.do(ctx, http.MethodGet, "/"+boardID, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (a *API) SaveSnapshot(ctx context.Context, boardID string, snapshot reconcile.Snapshot) error {
	req := dto.SaveSnapshotRequest{Title: snapshot.Title}
	if snapshot.Elements != nil {
		raw, err := json.Marshal(snapshot.Elements)
		if err != nil {
			return fmt.Errorf("failed to encode elements: %w", err)
		}
		elements := json.RawMessage(raw)
		req.Elements = &elements
	}
	return a.do(ctx, http.MethodPatch, "/"+boardID, req, nil)
}

func (a *API) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+a.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var envelope serverutils.BaseResponse[json.RawMessage]
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return &APIError{Status: resp.StatusCode, Message: "unreadable response"}
	}
	if resp.StatusCode >= 300 || !envelope.Success {
		return &APIError{Status: resp.StatusCode, Message: envelope.Message}
	}
	if out == nil || len(envelope.Data) == 0 {
		return nil
	}
	return json.Unmarshal(envelope.Data, out)
}
