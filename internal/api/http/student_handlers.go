package http

import (
	"errors"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	auth "github.com/mind-engage/mindengage-tutoring/internal/auth/middleware"
	"github.com/mind-engage/mindengage-tutoring/internal/classroom"
	"github.com/mind-engage/mindengage-tutoring/internal/homework"
)

type studentAssignment struct {
	homework.StudentView
	Submission *submissionView `json:"submission,omitempty"`
}

// forStudent strips grading output the student may not see yet.
func forStudent(a homework.Assignment, s homework.Submission) submissionView {
	v := viewOf(s)
	if !a.ResultsVisible || !s.VisibleToStudent {
		v.Score, v.Feedback, v.Percentage, v.GradeLevel = nil, nil, nil, ""
	}
	return v
}

// enrolledAssignment loads an assignment from one of the caller's classes.
func enrolledAssignment(r *http.Request, ro classroom.Store, hw homework.Store) (homework.Assignment, error) {
	ctx := r.Context()
	a, err := hw.GetAssignment(ctx, chi.URLParam(r, "assignmentID"))
	if err != nil {
		return homework.Assignment{}, err
	}
	classes, err := ro.ListStudentClasses(ctx, auth.SubjectFromContext(ctx))
	if err != nil {
		return homework.Assignment{}, err
	}
	if !slices.ContainsFunc(classes, func(c classroom.Class) bool { return c.ID == a.ClassID }) {
		return homework.Assignment{}, errForbidden
	}
	return a, nil
}

// GET /api/student/assignments
func StudentAssignmentsHandler(ro classroom.Store, hw homework.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sub := auth.SubjectFromContext(ctx)
		classes, err := ro.ListStudentClasses(ctx, sub)
		if err != nil {
			fail(w, log, err)
			return
		}
		subs, err := hw.ListStudentSubmissions(ctx, sub)
		if err != nil {
			fail(w, log, err)
			return
		}
		byAssignment := make(map[string]homework.Submission, len(subs))
		for _, s := range subs {
			byAssignment[s.AssignmentID] = s
		}

		out := []studentAssignment{}
		for _, c := range classes {
			as, err := hw.ListClassAssignments(ctx, c.ID)
			if err != nil {
				fail(w, log, err)
				return
			}
			for _, a := range as {
				item := studentAssignment{StudentView: a.ForStudent()}
				if s, ok := byAssignment[a.ID]; ok {
					v := forStudent(a, s)
					item.Submission = &v
				}
				out = append(out, item)
			}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// GET /api/student/assignments/{assignmentID}
func StudentAssignmentDetailHandler(ro classroom.Store, hw homework.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := enrolledAssignment(r, ro, hw)
		if err != nil {
			fail(w, log, err)
			return
		}
		item := studentAssignment{StudentView: a.ForStudent()}
		s, err := hw.GetStudentSubmission(r.Context(), a.ID, auth.SubjectFromContext(r.Context()))
		switch {
		case err == nil:
			v := forStudent(a, s)
			item.Submission = &v
		case !errors.Is(err, homework.ErrNotFound):
			fail(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	}
}

// POST /api/student/assignments/{assignmentID}/submit
// A body with "submit": false saves a draft without grading.
func SubmitAnswersHandler(ro classroom.Store, hw homework.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := enrolledAssignment(r, ro, hw)
		if err != nil {
			fail(w, log, err)
			return
		}
		var req struct {
			Answers map[string]any `json:"answers" validate:"required"`
			Submit  *bool          `json:"submit,omitempty"`
		}
		if err := decode(r, &req); err != nil {
			fail(w, log, err)
			return
		}
		submit := req.Submit == nil || *req.Submit

		s, err := hw.SaveAnswers(r.Context(), a.ID, auth.SubjectFromContext(r.Context()), req.Answers, submit)
		if err != nil {
			fail(w, log, err)
			return
		}
		v := viewOf(s)
		if !a.ResultsVisible {
			v.Feedback = nil
		}
		writeJSON(w, http.StatusOK, v)
	}
}

// GET /api/student/submissions
func StudentSubmissionsHandler(hw homework.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subs, err := hw.ListStudentSubmissions(r.Context(), auth.SubjectFromContext(r.Context()))
		if err != nil {
			fail(w, log, err)
			return
		}
		released := map[string]bool{}
		out := []submissionView{}
		for _, s := range subs {
			if !s.VisibleToStudent || !s.Submitted() {
				continue
			}
			visible, seen := released[s.AssignmentID]
			if !seen {
				a, err := hw.GetAssignment(r.Context(), s.AssignmentID)
				if err != nil {
					fail(w, log, err)
					return
				}
				visible = a.ResultsVisible
				released[s.AssignmentID] = visible
			}
			if visible {
				out = append(out, viewOf(s))
			}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// ---- teachers ----

// GET /api/student/teachers
func AvailableTeachersHandler(ro classroom.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ts, err := ro.ListTeachers(r.Context())
		if err != nil {
			fail(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, ts)
	}
}

// POST /api/student/teachers/{teacherID}/request
func RequestTeacherHandler(ro classroom.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rel, err := ro.RequestTeacher(r.Context(), auth.SubjectFromContext(r.Context()), chi.URLParam(r, "teacherID"))
		if err != nil {
			fail(w, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, rel)
	}
}

// GET /api/student/my-teachers
func MyTeachersHandler(ro classroom.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ts, err := ro.AcceptedTeachers(r.Context(), auth.SubjectFromContext(r.Context()))
		if err != nil {
			fail(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, ts)
	}
}

// GET /api/student/pending-requests
func PendingRequestsHandler(ro classroom.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rels, err := ro.ListStudentRelations(r.Context(), auth.SubjectFromContext(r.Context()))
		if err != nil {
			fail(w, log, err)
			return
		}
		out := []classroom.Relation{}
		for _, rel := range rels {
			if rel.Status == classroom.RelationPending {
				out = append(out, rel)
			}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// ---- lessons & individual work ----

// GET /api/student/lessons
func StudentLessonsHandler(hw homework.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ls, err := hw.ListStudentLessons(r.Context(), auth.SubjectFromContext(r.Context()))
		if err != nil {
			fail(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, ls)
	}
}

// GET /api/student/lessons/{lessonID}
func StudentLessonHandler(hw homework.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, err := hw.GetLesson(r.Context(), chi.URLParam(r, "lessonID"))
		if err == nil && !owns(r, l.StudentID) {
			err = errForbidden
		}
		if err != nil {
			fail(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, l)
	}
}

// GET /api/student/individual-assignments
func StudentIndividualsHandler(hw homework.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := hw.ListStudentIndividuals(r.Context(), auth.SubjectFromContext(r.Context()))
		if err != nil {
			fail(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// GET /api/student/individual-assignments/{individualID}
func StudentIndividualHandler(hw homework.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ia, err := hw.GetIndividual(r.Context(), chi.URLParam(r, "individualID"))
		if err == nil && !owns(r, ia.StudentID) {
			err = errForbidden
		}
		if err != nil {
			fail(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, ia)
	}
}
