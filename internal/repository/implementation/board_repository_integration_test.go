package implementation_test

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"testing"
	"time"

	"letscollab-be/internal/entity"
	"letscollab-be/internal/model"
	"letscollab-be/internal/repository/specification"
	"letscollab-be/internal/repository/unitofwork"
	"letscollab-be/pkg/database"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoardRepositoriesAgainstPostgres(t *testing.T) {
	// Load .env from root
	if err := godotenv.Load("../../../.env"); err != nil {
		log.Println("No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("Skipping integration test: DB_CONNECTION_STRING not set")
	}

	gormDB, err := database.NewGormDBFromDSN(dsn, false)
	require.NoError(t, err)
	require.NoError(t, gormDB.AutoMigrate(&model.Board{}, &model.BoardCollaborator{}))

	ctx := context.Background()
	uow := unitofwork.NewRepositoryFactory(gormDB).NewUnitOfWork(ctx)
	require.NoError(t, uow.Begin(ctx))
	// Everything below is discarded.
	defer uow.Rollback()

	owner, guest, stranger := uuid.New(), uuid.New(), uuid.New()
	board := &entity.Board{
		Id:        uuid.New(),
		Title:     "Integration board",
		Elements:  json.RawMessage(`[{"id":"a"}]`),
		OwnerId:   owner,
		CreatedAt: time.Now(),
	}
	require.NoError(t, uow.BoardRepository().Create(ctx, board))
	require.NoError(t, uow.BoardCollaboratorRepository().Create(ctx, &entity.BoardCollaborator{
		Id:      uuid.New(),
		BoardId: board.Id,
		UserId:  guest,
		Role:    entity.CollaboratorRoleEditor,
	}))

	t.Run("FindOne by id", func(t *testing.T) {
		found, err := uow.BoardRepository().FindOne(ctx, specification.ByID{ID: board.Id})
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, "Integration board", found.Title)
		assert.JSONEq(t, `[{"id":"a"}]`, string(found.Elements))

		missing, err := uow.BoardRepository().FindOne(ctx, specification.ByID{ID: uuid.New()})
		assert.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("AccessibleBy covers owner and collaborator", func(t *testing.T) {
		for _, user := range []uuid.UUID{owner, guest} {
			count, err := uow.BoardRepository().Count(ctx, specification.AccessibleBy{UserID: user}, specification.ByID{ID: board.Id})
			require.NoError(t, err)
			assert.Equal(t, int64(1), count)
		}
		count, err := uow.BoardRepository().Count(ctx, specification.AccessibleBy{UserID: stranger})
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("UpdateSnapshot replaces only given fields", func(t *testing.T) {
		require.NoError(t, uow.BoardRepository().UpdateSnapshot(ctx, board.Id, nil, json.RawMessage(`[{"id":"b"},{"id":"c"}]`)))
		found, err := uow.BoardRepository().FindOne(ctx, specification.ByID{ID: board.Id})
		require.NoError(t, err)
		assert.Equal(t, "Integration board", found.Title)
		assert.JSONEq(t, `[{"id":"b"},{"id":"c"}]`, string(found.Elements))
	})

	t.Run("Delete collaborators then board", func(t *testing.T) {
		require.NoError(t, uow.BoardCollaboratorRepository().DeleteByBoardId(ctx, board.Id))
		count, err := uow.BoardCollaboratorRepository().Count(ctx, specification.ByBoardID{BoardID: board.Id})
		require.NoError(t, err)
		assert.Zero(t, count)

		require.NoError(t, uow.BoardRepository().Delete(ctx, board.Id))
		found, err := uow.BoardRepository().FindOne(ctx, specification.ByID{ID: board.Id})
		require.NoError(t, err)
		assert.Nil(t, found)
	})
}
