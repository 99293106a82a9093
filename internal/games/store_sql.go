package games

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/mindengage-tutoring/internal/scoring"
)

var ErrUnknownGame = errors.New("unknown game")

type Result struct {
	ID         string  `json:"id"`
	GameName   string  `json:"game_name" validate:"required"`
	StudentID  string  `json:"student_id"`
	Score      int     `json:"score" validate:"gte=0"`
	MaxScore   int     `json:"max_score" validate:"gte=0,gtefield=Score"`
	TimeTaken  int     `json:"time_taken" validate:"gte=0"`
	Percentage float64 `json:"percentage"`
	GradeLevel string  `json:"grade_level"`
	CreatedAt  int64   `json:"created_at"`
}

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// RecordResult persists r and fills in its ID, percentage and grade level.
func (s *Store) RecordResult(ctx context.Context, r Result) (Result, error) {
	if !Known(r.GameName) {
		return Result{}, fmt.Errorf("%q: %w", r.GameName, ErrUnknownGame)
	}
	r.ID = uuid.NewString()
	r.CreatedAt = time.Now().Unix()
	pct := scoring.CalculatePercentage(float64(r.Score), float64(r.MaxScore))
	r.Percentage = math.Round(pct*10) / 10
	r.GradeLevel = scoring.GradeLevel(pct)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO game_results (id,game_name,student_id,score,max_score,time_taken_sec,created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		r.ID, r.GameName, r.StudentID, r.Score, r.MaxScore, r.TimeTaken, r.CreatedAt)
	if err != nil {
		return Result{}, fmt.Errorf("insert game result: %w", err)
	}
	return r, nil
}
