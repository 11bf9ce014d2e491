package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Board struct {
	Id            uuid.UUID           `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Title         string              `gorm:"type:varchar(255);not null;default:'Untitled Board'"`
	Elements      datatypes.JSON      `gorm:"type:jsonb;not null;default:'[]'"`
	OwnerId       uuid.UUID           `gorm:"type:uuid;not null;index"`
	Collaborators []BoardCollaborator `gorm:"foreignKey:BoardId;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time           `gorm:"autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"autoUpdateTime"`
	DeletedAt     gorm.DeletedAt      `gorm:"index"`
}

func (Board) TableName() string {
	return "boards"
}

// BoardCollaborator grants a non-owner access to a board.
type BoardCollaborator struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	BoardId   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_board_collaborator,priority:1"`
	UserId    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_board_collaborator,priority:2;index"`
	Role      string    `gorm:"type:varchar(20);not null;default:'editor'"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (BoardCollaborator) TableName() string {
	return "board_collaborators"
}
