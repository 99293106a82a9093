package http

import (
	"net/http"

	"go.uber.org/zap"

	auth "github.com/mind-engage/mindengage-tutoring/internal/auth/middleware"
	"github.com/mind-engage/mindengage-tutoring/internal/games"
)

// GET /api/games/available
func AvailableGamesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"games": games.Catalog()})
	}
}

// GET /api/games/times-table-sprint/questions?difficulty=easy|medium|hard
func TimesTableHandler(gen *games.Generator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		difficulty := r.URL.Query().Get("difficulty")
		if difficulty == "" {
			difficulty = "medium"
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"questions":  gen.TimesTable(difficulty),
			"difficulty": difficulty,
		})
	}
}

// GET /api/games/math-puzzle/questions
func MathPuzzleHandler(gen *games.Generator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"puzzles": gen.MathPuzzles()})
	}
}

// GET /api/games/fraction-fun/questions
func FractionsHandler(gen *games.Generator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"questions": gen.Fractions()})
	}
}

// POST /api/games/submit-result
func SubmitGameResultHandler(store *games.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in games.Result
		if err := decode(r, &in); err != nil {
			fail(w, log, err)
			return
		}
		in.StudentID = auth.SubjectFromContext(r.Context())
		res, err := store.RecordResult(r.Context(), in)
		if err != nil {
			fail(w, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, res)
	}
}
