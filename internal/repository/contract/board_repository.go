package contract

import (
	"context"
	"encoding/json"

	"letscollab-be/internal/entity"
	"letscollab-be/internal/repository/specification"

	"github.com/google/uuid"
)

type BoardRepository interface {
	Create(ctx context.Context, board *entity.Board) error
	// UpdateSnapshot overwrites the title and/or elements. Nil arguments are left untouched.
	UpdateSnapshot(ctx context.Context, id uuid.UUID, title *string, elements json.RawMessage) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Board, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Board, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}

type BoardCollaboratorRepository interface {
	Create(ctx context.Context, collaborator *entity.BoardCollaborator) error
	DeleteByBoardId(ctx context.Context, boardId uuid.UUID) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.BoardCollaborator, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
