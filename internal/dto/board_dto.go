package dto

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type CreateBoardRequest struct {
	Title string `json:"title" validate:"required,max=255"`
}

type CreateBoardResponse struct {
	Id uuid.UUID `json:"id"`
}

// SaveSnapshotRequest carries a partial snapshot; nil fields are left untouched.
type SaveSnapshotRequest struct {
	Title    *string          `json:"title" validate:"omitempty,min=1,max=255"`
	Elements *json.RawMessage `json:"elements"`
}

type BoardSnapshotResponse struct {
	Id        uuid.UUID       `json:"id"`
	Title     string          `json:"title"`
	Elements  json.RawMessage `json:"elements"`
	OwnerId   uuid.UUID       `json:"ownerId"`
	UpdatedAt *time.Time      `json:"updatedAt"`
}

type GetAllBoardResponse struct {
	Id        uuid.UUID  `json:"id"`
	Title     string     `json:"title"`
	IsOwner   bool       `json:"isOwner"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt"`
}

const (
	BoardEventSaved   = "saved"
	BoardEventDeleted = "deleted"
)

// BoardChangedMessage travels on the in-process bus after a successful save
// or delete. ElementCount and TitleChanged are only set for saves.
type BoardChangedMessage struct {
	Event        string    `json:"event"`
	BoardId      uuid.UUID `json:"board_id"`
	UserId       uuid.UUID `json:"user_id"`
	ElementCount int       `json:"element_count,omitempty"`
	TitleChanged bool      `json:"title_changed,omitempty"`
}
