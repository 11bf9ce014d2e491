package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"letscollab-be/internal/dto"
	"letscollab-be/internal/entity"
	"letscollab-be/internal/pkg/logger"
	"letscollab-be/internal/repository/specification"
	"letscollab-be/internal/repository/unitofwork"

	"github.com/google/uuid"
)

var (
	ErrBoardNotFound   = errors.New("board not found")
	ErrAccessDenied    = errors.New("access denied")
	ErrInvalidBoardID  = errors.New("invalid board id")
	ErrEmptyTitle      = errors.New("title must not be empty")
	ErrInvalidSnapshot = errors.New("elements must be a JSON array")
	ErrNothingToSave   = errors.New("snapshot has neither title nor elements")
)

// BoardSnapshotCache is the read cache in front of the board table.
type BoardSnapshotCache interface {
	Get(ctx context.Context, id uuid.UUID) (*entity.Board, bool)
	Set(ctx context.Context, board *entity.Board)
	Invalidate(ctx context.Context, id uuid.UUID)
}

type IBoardService interface {
	IsOwnerOrCollaborator(ctx context.Context, boardId uuid.UUID, userId uuid.UUID) (bool, error)
	LoadSnapshot(ctx context.Context, boardId uuid.UUID, userId uuid.UUID) (*dto.BoardSnapshotResponse, error)
	SaveSnapshot(ctx context.Context, boardId uuid.UUID, userId uuid.UUID, req *dto.SaveSnapshotRequest) (*dto.BoardSnapshotResponse, error)
	GetAll(ctx context.Context, userId uuid.UUID) ([]*dto.GetAllBoardResponse, error)
	Create(ctx context.Context, userId uuid.UUID, req *dto.CreateBoardRequest) (*dto.CreateBoardResponse, error)
	Delete(ctx context.Context, userId uuid.UUID, id uuid.UUID) error
}

type boardService struct {
	uowFactory       unitofwork.RepositoryFactory
	cache            BoardSnapshotCache
	publisherService IPublisherService
	logger           logger.ILogger
}

func NewBoardService(
	uowFactory unitofwork.RepositoryFactory,
	cache BoardSnapshotCache,
	publisherService IPublisherService,
	logger logger.ILogger,
) IBoardService {
	return &boardService{
		uowFactory:       uowFactory,
		cache:            cache,
		publisherService: publisherService,
		logger:           logger,
	}
}

func (s *boardService) findBoard(ctx context.Context, uow unitofwork.UnitOfWork, boardId uuid.UUID) (*entity.Board, error) {
	if board, found := s.cache.Get(ctx, boardId); found {
		return board, nil
	}

	board, err := uow.BoardRepository().FindOne(ctx, specification.ByID{ID: boardId})
	if err != nil {
		return nil, err
	}
	if board == nil {
		return nil, ErrBoardNotFound
	}

	s.cache.Set(ctx, board)
	return board, nil
}

func (s *boardService) canAccess(ctx context.Context, uow unitofwork.UnitOfWork, board *entity.Board, userId uuid.UUID) (bool, error) {
	if board.OwnerId == userId {
		return true, nil
	}
	count, err := uow.BoardCollaboratorRepository().Count(ctx,
		specification.ByBoardID{BoardID: board.Id},
		specification.ByUserID{UserID: userId},
	)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *boardService) IsOwnerOrCollaborator(ctx context.Context, boardId uuid.UUID, userId uuid.UUID) (bool, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	board, err := s.findBoard(ctx, uow, boardId)
	if err != nil {
		return false, err
	}
	return s.canAccess(ctx, uow, board, userId)
}

func (s *boardService) LoadSnapshot(ctx context.Context, boardId uuid.UUID, userId uuid.UUID) (*dto.BoardSnapshotResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	board, err := s.findBoard(ctx, uow, boardId)
	if err != nil {
		return nil, err
	}
	ok, err := s.canAccess(ctx, uow, board, userId)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAccessDenied
	}

	return toSnapshotResponse(board), nil
}

func (s *boardService) SaveSnapshot(ctx context.Context, boardId uuid.UUID, userId uuid.UUID, req *dto.SaveSnapshotRequest) (*dto.BoardSnapshotResponse, error) {
	if req.Title == nil && req.Elements == nil {
		return nil, ErrNothingToSave
	}

	var title *string
	if req.Title != nil {
		trimmed := strings.TrimSpace(*req.Title)
		if trimmed == "" {
			return nil, ErrEmptyTitle
		}
		title = &trimmed
	}

	var elements json.RawMessage
	elementCount := 0
	if req.Elements != nil {
		var items []json.RawMessage
		if err := json.Unmarshal(*req.Elements, &items); err != nil {
			return nil, ErrInvalidSnapshot
		}
		if items == nil {
			return nil, ErrInvalidSnapshot
		}
		elements = *req.Elements
		elementCount = len(items)
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)

	board, err := s.findBoard(ctx, uow, boardId)
	if err != nil {
		return nil, err
	}
	ok, err := s.canAccess(ctx, uow, board, userId)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAccessDenied
	}

	if err := uow.BoardRepository().UpdateSnapshot(ctx, boardId, title, elements); err != nil {
		return nil, fmt.Errorf("save snapshot: %w", err)
	}
	s.cache.Invalidate(ctx, boardId)

	saved := *board
	if title != nil {
		saved.Title = *title
	}
	if elements != nil {
		saved.Elements = elements
	}
	now := time.Now()
	saved.UpdatedAt = &now

	msg, _ := json.Marshal(dto.BoardChangedMessage{
		Event:        dto.BoardEventSaved,
		BoardId:      boardId,
		UserId:       userId,
		ElementCount: elementCount,
		TitleChanged: title != nil,
	})
	if err := s.publisherService.Publish(ctx, msg); err != nil {
		s.logger.Warn("BOARD", "Failed to queue snapshot saved message", map[string]interface{}{"board_id": boardId, "error": err.Error()})
	}

	return toSnapshotResponse(&saved), nil
}

func (s *boardService) GetAll(ctx context.Context, userId uuid.UUID) ([]*dto.GetAllBoardResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	boards, err := uow.BoardRepository().FindAll(ctx,
		specification.AccessibleBy{UserID: userId},
		specification.OrderBy{Field: "updated_at", Desc: true},
	)
	if err != nil {
		return nil, err
	}

	result := make([]*dto.GetAllBoardResponse, 0, len(boards))
	for _, board := range boards {
		result = append(result, &dto.GetAllBoardResponse{
			Id:        board.Id,
			Title:     board.Title,
			IsOwner:   board.OwnerId == userId,
			CreatedAt: board.CreatedAt,
			UpdatedAt: board.UpdatedAt,
		})
	}
	return result, nil
}

func (s *boardService) Create(ctx context.Context, userId uuid.UUID, req *dto.CreateBoardRequest) (*dto.CreateBoardResponse, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, ErrEmptyTitle
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	board := entity.Board{
		Id:        uuid.New(),
		Title:     title,
		Elements:  json.RawMessage("[]"),
		OwnerId:   userId,
		CreatedAt: time.Now(),
	}

	if err := uow.BoardRepository().Create(ctx, &board); err != nil {
		return nil, err
	}

	return &dto.CreateBoardResponse{
		Id: board.Id,
	}, nil
}

// Delete is owner only. Collaborator rows go with the board.
func (s *boardService) Delete(ctx context.Context, userId uuid.UUID, id uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	board, err := s.findBoard(ctx, uow, id)
	if err != nil {
		return err
	}
	if board.OwnerId != userId {
		return ErrAccessDenied
	}

	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.BoardCollaboratorRepository().DeleteByBoardId(ctx, id); err != nil {
		return err
	}
	if err := uow.BoardRepository().Delete(ctx, id); err != nil {
		return err
	}
	if err := uow.Commit(); err != nil {
		return err
	}

	s.cache.Invalidate(ctx, id)

	// Other instances drop their copy when the event comes back over NATS.
	msg, _ := json.Marshal(dto.BoardChangedMessage{Event: dto.BoardEventDeleted, BoardId: id, UserId: userId})
	if err := s.publisherService.Publish(ctx, msg); err != nil {
		s.logger.Warn("BOARD", "Failed to queue board deleted message", map[string]interface{}{"board_id": id, "error": err.Error()})
	}
	return nil
}

func toSnapshotResponse(board *entity.Board) *dto.BoardSnapshotResponse {
	return &dto.BoardSnapshotResponse{
		Id:        board.Id,
		Title:     board.Title,
		Elements:  board.Elements,
		OwnerId:   board.OwnerId,
		UpdatedAt: board.UpdatedAt,
	}
}
