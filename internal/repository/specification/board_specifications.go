package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ByBoardID struct {
	BoardID uuid.UUID
}

func (s ByBoardID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("board_id = ?", s.BoardID)
}

type ByUserID struct {
	UserID uuid.UUID
}

func (s ByUserID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("user_id = ?", s.UserID)
}

// AccessibleBy matches boards the user owns or collaborates on.
type AccessibleBy struct {
	UserID uuid.UUID
}

func (s AccessibleBy) Apply(db *gorm.DB) *gorm.DB {
	return db.Where(
		"owner_id = ? OR id IN (SELECT board_id FROM board_collaborators WHERE user_id = ?)",
		s.UserID, s.UserID,
	)
}
