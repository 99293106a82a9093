package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	auth "github.com/mind-engage/mindengage-tutoring/internal/auth/middleware"
	"github.com/mind-engage/mindengage-tutoring/internal/classroom"
	"github.com/mind-engage/mindengage-tutoring/internal/homework"
)

func ownedLesson(r *http.Request, hw homework.Store) (homework.Lesson, error) {
	l, err := hw.GetLesson(r.Context(), chi.URLParam(r, "lessonID"))
	if err != nil {
		return homework.Lesson{}, err
	}
	if !owns(r, l.TeacherID) {
		return homework.Lesson{}, errForbidden
	}
	return l, nil
}

func ownedIndividual(r *http.Request, hw homework.Store) (homework.Individual, error) {
	ia, err := hw.GetIndividual(r.Context(), chi.URLParam(r, "individualID"))
	if err != nil {
		return homework.Individual{}, err
	}
	if !owns(r, ia.TeacherID) {
		return homework.Individual{}, errForbidden
	}
	return ia, nil
}

// ---- lessons ----

// POST /api/teacher/lessons
func CreateLessonHandler(hw homework.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in homework.NewLesson
		if err := decode(r, &in); err != nil {
			fail(w, log, err)
			return
		}
		l, err := hw.CreateLesson(r.Context(), auth.SubjectFromContext(r.Context()), in)
		if err != nil {
			fail(w, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, l)
	}
}

// GET /api/teacher/lessons
func ListTeacherLessonsHandler(hw homework.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ls, err := hw.ListTeacherLessons(r.Context(), auth.SubjectFromContext(r.Context()))
		if err != nil {
			fail(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, ls)
	}
}

// GET /api/teacher/lessons/{lessonID}
func GetTeacherLessonHandler(hw homework.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, err := ownedLesson(r, hw)
		if err != nil {
			fail(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, l)
	}
}

// PATCH /api/teacher/lessons/{lessonID}
func UpdateLessonHandler(hw homework.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, err := ownedLesson(r, hw)
		if err != nil {
			fail(w, log, err)
			return
		}
		var p homework.LessonPatch
		if err := decode(r, &p); err != nil {
			fail(w, log, err)
			return
		}
		l, err = hw.UpdateLesson(r.Context(), l.ID, p)
		if err != nil {
			fail(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, l)
	}
}

// DELETE /api/teacher/lessons/{lessonID}
func DeleteLessonHandler(hw homework.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, err := ownedLesson(r, hw)
		if err == nil {
			err = hw.DeleteLesson(r.Context(), l.ID)
		}
		if err != nil {
			fail(w, log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ---- individual assignments ----

// POST /api/teacher/individual-assignments
func CreateIndividualHandler(hw homework.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in homework.NewIndividual
		if err := decode(r, &in); err != nil {
			fail(w, log, err)
			return
		}
		ia, err := hw.CreateIndividual(r.Context(), auth.SubjectFromContext(r.Context()), in)
		if err != nil {
			fail(w, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, ia)
	}
}

// GET /api/teacher/individual-assignments
func ListTeacherIndividualsHandler(hw homework.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := hw.ListTeacherIndividuals(r.Context(), auth.SubjectFromContext(r.Context()))
		if err != nil {
			fail(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// GET /api/teacher/individual-assignments/{individualID}
func GetTeacherIndividualHandler(hw homework.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ia, err := ownedIndividual(r, hw)
		if err != nil {
			fail(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, ia)
	}
}

// PATCH /api/teacher/individual-assignments/{individualID}
func UpdateIndividualHandler(hw homework.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ia, err := ownedIndividual(r, hw)
		if err != nil {
			fail(w, log, err)
			return
		}
		var p homework.IndividualPatch
		if err := decode(r, &p); err != nil {
			fail(w, log, err)
			return
		}
		ia, err = hw.UpdateIndividual(r.Context(), ia.ID, p)
		if err != nil {
			fail(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, ia)
	}
}

// DELETE /api/teacher/individual-assignments/{individualID}
func DeleteIndividualHandler(hw homework.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ia, err := ownedIndividual(r, hw)
		if err == nil {
			err = hw.DeleteIndividual(r.Context(), ia.ID)
		}
		if err != nil {
			fail(w, log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// POST /api/teacher/individual-assignments/{individualID}/complete
func CompleteIndividualHandler(hw homework.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ia, err := ownedIndividual(r, hw)
		if err != nil {
			fail(w, log, err)
			return
		}
		var req struct {
			Score    *float64 `json:"score" validate:"required,min=0"`
			Feedback string   `json:"feedback"`
		}
		if err := decode(r, &req); err != nil {
			fail(w, log, err)
			return
		}
		if *req.Score > ia.MaxScore {
			writeError(w, http.StatusBadRequest, "score exceeds max score")
			return
		}
		ia, err = hw.CompleteIndividual(r.Context(), ia.ID, *req.Score, req.Feedback)
		if err != nil {
			fail(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, ia)
	}
}

// ---- relations ----

// GET /api/teacher/relations?status=pending
func ListTeacherRelationsHandler(ro classroom.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := r.URL.Query().Get("status")
		switch status {
		case "", classroom.RelationPending, classroom.RelationAccepted, classroom.RelationRejected:
		default:
			writeError(w, http.StatusBadRequest, "unknown status")
			return
		}
		rels, err := ro.ListTeacherRelations(r.Context(), auth.SubjectFromContext(r.Context()), status)
		if err != nil {
			fail(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, rels)
	}
}

// POST /api/teacher/relations/{relationID}/accept
func AcceptRelationHandler(ro classroom.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rel, err := ro.AcceptRelation(r.Context(), chi.URLParam(r, "relationID"), auth.SubjectFromContext(r.Context()))
		if err != nil {
			fail(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, rel)
	}
}

// POST /api/teacher/relations/{relationID}/reject
func RejectRelationHandler(ro classroom.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rel, err := ro.RejectRelation(r.Context(), chi.URLParam(r, "relationID"), auth.SubjectFromContext(r.Context()))
		if err != nil {
			fail(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, rel)
	}
}
