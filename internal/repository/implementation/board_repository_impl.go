package implementation

import (
	"context"
	"encoding/json"
	"errors"

	"letscollab-be/internal/entity"
	"letscollab-be/internal/mapper"
	"letscollab-be/internal/model"
	"letscollab-be/internal/repository/contract"
	"letscollab-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type BoardRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.BoardMapper
}

func NewBoardRepository(db *gorm.DB) contract.BoardRepository {
	return &BoardRepositoryImpl{
		db:     db,
		mapper: mapper.NewBoardMapper(),
	}
}

func (r *BoardRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *BoardRepositoryImpl) Create(ctx context.Context, board *entity.Board) error {
	m := r.mapper.ToModel(board)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*board = *r.mapper.ToEntity(m)
	return nil
}

func (r *BoardRepositoryImpl) UpdateSnapshot(ctx context.Context, id uuid.UUID, title *string, elements json.RawMessage) error {
	fields := map[string]interface{}{}
	if title != nil {
		fields["title"] = *title
	}
	if elements != nil {
		fields["elements"] = datatypes.JSON(elements)
	}
	if len(fields) == 0 {
		return nil
	}
	// Updates with a map also bumps updated_at through autoUpdateTime.
	return r.db.WithContext(ctx).Model(&model.Board{}).Where("id = ?", id).Updates(fields).Error
}

func (r *BoardRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.Board{}, id).Error
}

func (r *BoardRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Board, error) {
	var m model.Board
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *BoardRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Board, error) {
	var models []*model.Board
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *BoardRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.Board{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
