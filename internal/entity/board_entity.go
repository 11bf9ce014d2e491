// internal\entity\board_entity.go
package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	CollaboratorRoleEditor = "editor"
	CollaboratorRoleViewer = "viewer"
)

type Board struct {
	Id        uuid.UUID
	Title     string
	Elements  json.RawMessage // Opaque element array, replaced wholesale on save
	OwnerId   uuid.UUID
	CreatedAt time.Time
	UpdatedAt *time.Time
	DeletedAt *time.Time
	IsDeleted bool
}

type BoardCollaborator struct {
	Id        uuid.UUID
	BoardId   uuid.UUID
	UserId    uuid.UUID
	Role      string
	CreatedAt time.Time
}
