package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"letscollab-be/internal/entity"
	"letscollab-be/internal/repository/unitofwork"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var demoElements = json.RawMessage(`[
	{"id":"welcome","type":"text","x":120,"y":80,"text":"Welcome to letscollab"},
	{"id":"box-1","type":"rectangle","x":100,"y":160,"width":240,"height":120},
	{"id":"arrow-1","type":"arrow","x":340,"y":220,"points":[[0,0],[160,0]]}
]`)

type SeededBoard struct {
	BoardId       uuid.UUID
	OwnerId       uuid.UUID
	Collaborators []uuid.UUID
}

// SeedDemoBoard creates a board owned by a fresh user id and shares it with
// n more fresh user ids, all in one transaction.
func SeedDemoBoard(ctx context.Context, factory unitofwork.RepositoryFactory, title string, n int) (*SeededBoard, error) {
	uow := factory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	seeded := &SeededBoard{BoardId: uuid.New(), OwnerId: uuid.New()}
	board := &entity.Board{
		Id:        seeded.BoardId,
		Title:     title,
		Elements:  demoElements,
		OwnerId:   seeded.OwnerId,
		CreatedAt: time.Now(),
	}
	if err := uow.BoardRepository().Create(ctx, board); err != nil {
		return nil, fmt.Errorf("failed to create board: %w", err)
	}

	for i := 0; i < n; i++ {
		userId := uuid.New()
		role := entity.CollaboratorRoleEditor
		if i%3 == 2 {
			role = entity.CollaboratorRoleViewer
		}
		err := uow.BoardCollaboratorRepository().Create(ctx, &entity.BoardCollaborator{
			Id:        uuid.New(),
			BoardId:   seeded.BoardId,
			UserId:    userId,
			Role:      role,
			CreatedAt: time.Now(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to add collaborator: %w", err)
		}
		seeded.Collaborators = append(seeded.Collaborators, userId)
	}

	if err := uow.Commit(); err != nil {
		return nil, err
	}
	return seeded, nil
}

// Print lists the seeded ids, with a day-long token for each user when a
// signing secret is available.
func (s *SeededBoard) Print(secret string) {
	fmt.Printf("Board:  %s\n", s.BoardId)
	users := append([]uuid.UUID{s.OwnerId}, s.Collaborators...)
	for i, id := range users {
		label := fmt.Sprintf("user-%d", i)
		if i == 0 {
			label = "owner"
		}
		fmt.Printf("%-7s %s\n", label+":", id)
		if secret == "" {
			continue
		}
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"user_id": id.String(),
			"name":    label,
			"exp":     time.Now().Add(24 * time.Hour).Unix(),
		})
		if signed, err := token.SignedString([]byte(secret)); err == nil {
			fmt.Printf("        token: %s\n", signed)
		}
	}
}
