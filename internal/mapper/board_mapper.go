package mapper

import (
	"encoding/json"
	"time"

	"letscollab-be/internal/entity"
	"letscollab-be/internal/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type BoardMapper struct{}

func NewBoardMapper() *BoardMapper {
	return &BoardMapper{}
}

func (m *BoardMapper) ToEntity(b *model.Board) *entity.Board {
	if b == nil {
		return nil
	}
	var deletedAt *time.Time
	if b.DeletedAt.Valid {
		t := b.DeletedAt.Time
		deletedAt = &t
	}

	var updatedAt *time.Time
	if !b.UpdatedAt.IsZero() {
		t := b.UpdatedAt
		updatedAt = &t
	}

	elements := json.RawMessage(b.Elements)
	if len(elements) == 0 {
		elements = json.RawMessage("[]")
	}

	return &entity.Board{
		Id:        b.Id,
		Title:     b.Title,
		Elements:  elements,
		OwnerId:   b.OwnerId,
		CreatedAt: b.CreatedAt,
		UpdatedAt: updatedAt,
		DeletedAt: deletedAt,
		IsDeleted: b.DeletedAt.Valid,
	}
}

func (m *BoardMapper) ToModel(b *entity.Board) *model.Board {
	if b == nil {
		return nil
	}

	var deletedAt gorm.DeletedAt
	if b.DeletedAt != nil {
		deletedAt = gorm.DeletedAt{Time: *b.DeletedAt, Valid: true}
	} else if b.IsDeleted {
		deletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	}

	var updatedAt time.Time
	if b.UpdatedAt != nil {
		updatedAt = *b.UpdatedAt
	}

	elements := datatypes.JSON(b.Elements)
	if len(elements) == 0 {
		elements = datatypes.JSON("[]")
	}

	return &model.Board{
		Id:        b.Id,
		Title:     b.Title,
		Elements:  elements,
		OwnerId:   b.OwnerId,
		CreatedAt: b.CreatedAt,
		UpdatedAt: updatedAt,
		DeletedAt: deletedAt,
	}
}

func (m *BoardMapper) ToEntities(boards []*model.Board) []*entity.Board {
	entities := make([]*entity.Board, len(boards))
	for i, b := range boards {
		entities[i] = m.ToEntity(b)
	}
	return entities
}

func (m *BoardMapper) CollaboratorToEntity(c *model.BoardCollaborator) *entity.BoardCollaborator {
	if c == nil {
		return nil
	}
	return &entity.BoardCollaborator{
		Id:        c.Id,
		BoardId:   c.BoardId,
		UserId:    c.UserId,
		Role:      c.Role,
		CreatedAt: c.CreatedAt,
	}
}

func (m *BoardMapper) CollaboratorToModel(c *entity.BoardCollaborator) *model.BoardCollaborator {
	if c == nil {
		return nil
	}
	return &model.BoardCollaborator{
		Id:        c.Id,
		BoardId:   c.BoardId,
		UserId:    c.UserId,
		Role:      c.Role,
		CreatedAt: c.CreatedAt,
	}
}
