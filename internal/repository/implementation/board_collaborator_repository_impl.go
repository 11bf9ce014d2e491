package implementation

import (
	"context"

	"letscollab-be/internal/entity"
	"letscollab-be/internal/mapper"
	"letscollab-be/internal/model"
	"letscollab-be/internal/repository/contract"
	"letscollab-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BoardCollaboratorRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.BoardMapper
}

func NewBoardCollaboratorRepository(db *gorm.DB) contract.BoardCollaboratorRepository {
	return &BoardCollaboratorRepositoryImpl{
		db:     db,
		mapper: mapper.NewBoardMapper(),
	}
}

func (r *BoardCollaboratorRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *BoardCollaboratorRepositoryImpl) Create(ctx context.Context, collaborator *entity.BoardCollaborator) error {
	m := r.mapper.CollaboratorToModel(collaborator)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*collaborator = *r.mapper.CollaboratorToEntity(m)
	return nil
}

func (r *BoardCollaboratorRepositoryImpl) DeleteByBoardId(ctx context.Context, boardId uuid.UUID) error {
	return r.db.WithContext(ctx).Where("board_id = ?", boardId).Delete(&model.BoardCollaborator{}).Error
}

func (r *BoardCollaboratorRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.BoardCollaborator, error) {
	var models []*model.BoardCollaborator
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	result := make([]*entity.BoardCollaborator, len(models))
	for i, m := range models {
		result[i] = r.mapper.CollaboratorToEntity(m)
	}
	return result, nil
}

func (r *BoardCollaboratorRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.BoardCollaborator{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
