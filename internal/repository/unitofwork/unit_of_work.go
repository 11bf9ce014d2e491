package unitofwork

import (
	"context"

	"letscollab-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	BoardRepository() contract.BoardRepository
	BoardCollaboratorRepository() contract.BoardCollaboratorRepository
}
