package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	auth "github.com/mind-engage/mindengage-tutoring/internal/auth/middleware"
	"github.com/mind-engage/mindengage-tutoring/internal/classroom"
	"github.com/mind-engage/mindengage-tutoring/internal/homework"
	"github.com/mind-engage/mindengage-tutoring/internal/scoring"
)

type submissionView struct {
	homework.Submission
	Percentage *float64 `json:"percentage,omitempty"`
	GradeLevel string   `json:"grade_level,omitempty"`
}

func viewOf(s homework.Submission) submissionView {
	v := submissionView{Submission: s}
	if s.Score != nil {
		pct := scoring.CalculatePercentage(*s.Score, s.MaxScore)
		v.Percentage = &pct
		v.GradeLevel = scoring.GradeLevel(pct)
	}
	return v
}

func ownedClass(r *http.Request, ro classroom.Store) (classroom.Class, error) {
	c, err := ro.GetClass(r.Context(), chi.URLParam(r, "classID"))
	if err != nil {
		return classroom.Class{}, err
	}
	if !owns(r, c.TeacherID) {
		return classroom.Class{}, errForbidden
	}
	return c, nil
}

func ownedAssignment(r *http.Request, hw homework.Store, id string) (homework.Assignment, error) {
	a, err := hw.GetAssignment(r.Context(), id)
	if err != nil {
		return homework.Assignment{}, err
	}
	if !owns(r, a.TeacherID) {
		return homework.Assignment{}, errForbidden
	}
	return a, nil
}

func ownedSubmission(r *http.Request, hw homework.Store) (homework.Submission, error) {
	sub, err := hw.GetSubmission(r.Context(), chi.URLParam(r, "submissionID"))
	if err != nil {
		return homework.Submission{}, err
	}
	if _, err := ownedAssignment(r, hw, sub.AssignmentID); err != nil {
		return homework.Submission{}, err
	}
	return sub, nil
}

// ---- users ----

// POST /api/teacher/users
func CreateUserHandler(ro classroom.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in classroom.NewUser
		if err := decode(r, &in); err != nil {
			fail(w, log, err)
			return
		}
		if in.ClassID != "" {
			c, err := ro.GetClass(r.Context(), in.ClassID)
			if err != nil {
				fail(w, log, err)
				return
			}
			if !owns(r, c.TeacherID) {
				fail(w, log, errForbidden)
				return
			}
		}
		u, err := ro.CreateUser(r.Context(), in)
		if err != nil {
			fail(w, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, u)
	}
}

// GET /api/teacher/users?role=student|teacher|available
func ListUsersHandler(ro classroom.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			users []classroom.User
			err   error
		)
		switch strings.TrimSpace(r.URL.Query().Get("role")) {
		case "", classroom.RoleStudent:
			users, err = ro.ListStudents(r.Context())
		case classroom.RoleTeacher:
			users, err = ro.ListTeachers(r.Context())
		case "available":
			users, err = ro.ListAvailableStudents(r.Context())
		default:
			writeError(w, http.StatusBadRequest, "role must be student, teacher or available")
			return
		}
		if err != nil {
			fail(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, users)
	}
}

// GET /api/teacher/students
func AcceptedStudentsHandler(ro classroom.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := ro.AcceptedStudents(r.Context(), auth.SubjectFromContext(r.Context()))
		if err != nil {
			fail(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, users)
	}
}

// ---- classes ----

// POST /api/teacher/classes
func CreateClassHandler(ro classroom.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in classroom.NewClass
		if err := decode(r, &in); err != nil {
			fail(w, log, err)
			return
		}
		c, err := ro.CreateClass(r.Context(), auth.SubjectFromContext(r.Context()), in)
		if err != nil {
			fail(w, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, c)
	}
}

// GET /api/teacher/classes
func ListTeacherClassesHandler(ro classroom.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cs, err := ro.ListTeacherClasses(r.Context(), auth.SubjectFromContext(r.Context()))
		if err != nil {
			fail(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, cs)
	}
}

// GET /api/teacher/classes/{classID}
func GetClassHandler(ro classroom.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := ownedClass(r, ro)
		if err != nil {
			fail(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

// PATCH /api/teacher/classes/{classID}
func UpdateClassHandler(ro classroom.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := ownedClass(r, ro)
		if err != nil {
			fail(w, log, err)
			return
		}
		var p classroom.ClassPatch
		if err := decode(r, &p); err != nil {
			fail(w, log, err)
			return
		}
		c, err = ro.UpdateClass(r.Context(), c.ID, p)
		if err != nil {
			fail(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

// DELETE /api/teacher/classes/{classID}
func DeleteClassHandler(ro classroom.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := ownedClass(r, ro)
		if err == nil {
			err = ro.DeleteClass(r.Context(), c.ID)
		}
		if err != nil {
			fail(w, log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// GET /api/teacher/classes/{classID}/students
func ListClassStudentsHandler(ro classroom.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := ownedClass(r, ro)
		if err != nil {
			fail(w, log, err)
			return
		}
		users, err := ro.ListClassStudents(r.Context(), c.ID)
		if err != nil {
			fail(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, users)
	}
}

// POST /api/teacher/classes/{classID}/students/{studentID}
func AddStudentHandler(ro classroom.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := ownedClass(r, ro)
		if err != nil {
			fail(w, log, err)
			return
		}
		student, err := ro.GetUser(r.Context(), chi.URLParam(r, "studentID"))
		if err != nil {
			fail(w, log, err)
			return
		}
		if student.Role != classroom.RoleStudent {
			writeError(w, http.StatusBadRequest, "user is not a student")
			return
		}
		if err := ro.AddStudent(r.Context(), c.ID, student.ID); err != nil {
			fail(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// DELETE /api/teacher/classes/{classID}/students/{studentID}
func RemoveStudentHandler(ro classroom.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := ownedClass(r, ro)
		if err == nil {
			err = ro.RemoveStudent(r.Context(), c.ID, chi.URLParam(r, "studentID"))
		}
		if err != nil {
			fail(w, log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ---- assignments ----

// POST /api/teacher/assignments
func CreateAssignmentHandler(ro classroom.Store, hw homework.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in homework.NewAssignment
		if err := decode(r, &in); err != nil {
			fail(w, log, err)
			return
		}
		c, err := ro.GetClass(r.Context(), in.ClassID)
		if err != nil {
			fail(w, log, err)
			return
		}
		if !owns(r, c.TeacherID) {
			fail(w, log, errForbidden)
			return
		}
		a, err := hw.CreateAssignment(r.Context(), auth.SubjectFromContext(r.Context()), in)
		if err != nil {
			fail(w, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, a)
	}
}

// GET /api/teacher/assignments
func ListTeacherAssignmentsHandler(hw homework.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		as, err := hw.ListTeacherAssignments(r.Context(), auth.SubjectFromContext(r.Context()))
		if err != nil {
			fail(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, as)
	}
}

// GET /api/teacher/classes/{classID}/assignments
func ListClassAssignmentsHandler(ro classroom.Store, hw homework.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := ownedClass(r, ro)
		if err != nil {
			fail(w, log, err)
			return
		}
		as, err := hw.ListClassAssignments(r.Context(), c.ID)
		if err != nil {
			fail(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, as)
	}
}

// GET /api/teacher/assignments/{assignmentID}
func GetAssignmentHandler(hw homework.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := ownedAssignment(r, hw, chi.URLParam(r, "assignmentID"))
		if err != nil {
			fail(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

// PATCH /api/teacher/assignments/{assignmentID}
func UpdateAssignmentHandler(hw homework.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := ownedAssignment(r, hw, chi.URLParam(r, "assignmentID"))
		if err != nil {
			fail(w, log, err)
			return
		}
		var p homework.AssignmentPatch
		if err := decode(r, &p); err != nil {
			fail(w, log, err)
			return
		}
		a, err = hw.UpdateAssignment(r.Context(), a.ID, p)
		if err != nil {
			fail(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

// DELETE /api/teacher/assignments/{assignmentID}
func DeleteAssignmentHandler(hw homework.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := ownedAssignment(r, hw, chi.URLParam(r, "assignmentID"))
		if err == nil {
			err = hw.DeleteAssignment(r.Context(), a.ID)
		}
		if err != nil {
			fail(w, log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// POST /api/teacher/assignments/{assignmentID}/files
func SetAssignmentFilesHandler(hw homework.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := ownedAssignment(r, hw, chi.URLParam(r, "assignmentID"))
		if err != nil {
			fail(w, log, err)
			return
		}
		var req struct {
			Files []homework.FileRef `json:"files" validate:"dive"`
		}
		if err := decode(r, &req); err != nil {
			fail(w, log, err)
			return
		}
		a, err = hw.SetAssignmentFiles(r.Context(), a.ID, req.Files)
		if err != nil {
			fail(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

// ---- submissions ----

// GET /api/teacher/assignments/{assignmentID}/submissions
// Submitted but ungraded rows are scored on the way out.
func ListAssignmentSubmissionsHandler(hw homework.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := ownedAssignment(r, hw, chi.URLParam(r, "assignmentID"))
		if err != nil {
			fail(w, log, err)
			return
		}
		subs, err := hw.ListAssignmentSubmissions(r.Context(), a.ID)
		if err != nil {
			fail(w, log, err)
			return
		}
		out := make([]submissionView, len(subs))
		for i, s := range subs {
			out[i] = viewOf(s)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// PATCH /api/teacher/submissions/{submissionID}
func UpdateSubmissionHandler(hw homework.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub, err := ownedSubmission(r, hw)
		if err != nil {
			fail(w, log, err)
			return
		}
		var p homework.SubmissionPatch
		if err := decode(r, &p); err != nil {
			fail(w, log, err)
			return
		}
		if p.Score != nil && *p.Score > sub.MaxScore {
			writeError(w, http.StatusBadRequest, "score exceeds max score")
			return
		}
		sub, err = hw.UpdateSubmission(r.Context(), sub.ID, p)
		if err != nil {
			fail(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, viewOf(sub))
	}
}

// POST /api/teacher/submissions/{submissionID}/regrade
func RegradeSubmissionHandler(hw homework.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub, err := ownedSubmission(r, hw)
		if err != nil {
			fail(w, log, err)
			return
		}
		sub, breakdown, err := hw.Regrade(r.Context(), sub.ID)
		if err != nil {
			fail(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"submission": viewOf(sub),
			"breakdown":  breakdown,
		})
	}
}
