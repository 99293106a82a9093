package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	auth "github.com/mind-engage/mindengage-tutoring/internal/auth/middleware"
	"github.com/mind-engage/mindengage-tutoring/internal/classroom"
	"github.com/mind-engage/mindengage-tutoring/internal/games"
	"github.com/mind-engage/mindengage-tutoring/internal/homework"
	"github.com/mind-engage/mindengage-tutoring/internal/rbac"
	syncx "github.com/mind-engage/mindengage-tutoring/internal/sync"
)

type Deps struct {
	Roster    classroom.Store
	Homework  homework.Store
	Games     *games.Store
	Generator *games.Generator
	Events    *syncx.EventRepo // optional; enables GET /api/events
	Auth      *auth.AuthService
	// AllowClaimFallback trusts the token role for users missing from the roster.
	AllowClaimFallback bool
	SubmitLimiter      *SubjectLimiter
	Log                *zap.Logger
}

// UserLookup adapts a roster to the auth middleware.
func UserLookup(roster classroom.Store) auth.UserLookup {
	return func(ctx context.Context, id string) (string, bool, bool, error) {
		u, err := roster.GetUser(ctx, id)
		switch {
		case err == nil:
			return u.Role, u.Disabled, true, nil
		case errors.Is(err, classroom.ErrNotFound):
			return "", false, false, nil
		default:
			return "", false, false, err
		}
	}
}

// Mount registers /api/teacher, /api/student and /api/games on r.
func Mount(r chi.Router, d Deps) {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.SubmitLimiter == nil {
		d.SubmitLimiter = NewSubjectLimiter(0)
	}
	authn := func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(d.Auth))
		pr.Use(auth.AttachRoleFromDB(UserLookup(d.Roster), d.AllowClaimFallback))
	}

	r.Route("/api/teacher", func(tr chi.Router) {
		authn(tr)
		mountTeacher(tr, d)
	})
	r.Route("/api/student", func(sr chi.Router) {
		authn(sr)
		mountStudent(sr, d)
	})
	if d.Events != nil {
		r.Group(func(er chi.Router) {
			authn(er)
			er.With(rbac.Require(rbac.PermEventsRead)).Get("/api/events", EventsHandler(d.Events, d.Log))
		})
	}
	r.Route("/api/games", func(gr chi.Router) {
		gr.Get("/available", AvailableGamesHandler())
		gr.Get("/times-table-sprint/questions", TimesTableHandler(d.Generator))
		gr.Get("/math-puzzle/questions", MathPuzzleHandler(d.Generator))
		gr.Get("/fraction-fun/questions", FractionsHandler(d.Generator))
		gr.Group(func(pr chi.Router) {
			authn(pr)
			pr.With(rbac.Require(rbac.PermGamePlay)).
				Post("/submit-result", SubmitGameResultHandler(d.Games, d.Log))
		})
	})
}

func mountTeacher(r chi.Router, d Deps) {
	ro, hw, log := d.Roster, d.Homework, d.Log

	r.With(rbac.Require(rbac.PermUserCreate)).Post("/users", CreateUserHandler(ro, log))
	r.With(rbac.Require(rbac.PermUserList)).Get("/users", ListUsersHandler(ro, log))
	r.With(rbac.Require(rbac.PermRelationReview)).Get("/students", AcceptedStudentsHandler(ro, log))

	r.Group(func(cr chi.Router) {
		cr.Use(rbac.Require(rbac.PermClassManage))
		cr.Post("/classes", CreateClassHandler(ro, log))
		cr.Get("/classes", ListTeacherClassesHandler(ro, log))
		cr.Get("/classes/{classID}", GetClassHandler(ro, log))
		cr.Patch("/classes/{classID}", UpdateClassHandler(ro, log))
		cr.Delete("/classes/{classID}", DeleteClassHandler(ro, log))
		cr.Get("/classes/{classID}/students", ListClassStudentsHandler(ro, log))
		cr.Post("/classes/{classID}/students/{studentID}", AddStudentHandler(ro, log))
		cr.Delete("/classes/{classID}/students/{studentID}", RemoveStudentHandler(ro, log))
	})

	r.Group(func(ar chi.Router) {
		ar.Use(rbac.Require(rbac.PermAssignmentManage))
		ar.Post("/assignments", CreateAssignmentHandler(ro, hw, log))
		ar.Get("/assignments", ListTeacherAssignmentsHandler(hw, log))
		ar.Get("/classes/{classID}/assignments", ListClassAssignmentsHandler(ro, hw, log))
		ar.Get("/assignments/{assignmentID}", GetAssignmentHandler(hw, log))
		ar.Patch("/assignments/{assignmentID}", UpdateAssignmentHandler(hw, log))
		ar.Delete("/assignments/{assignmentID}", DeleteAssignmentHandler(hw, log))
		ar.Post("/assignments/{assignmentID}/files", SetAssignmentFilesHandler(hw, log))
	})

	r.Group(func(sr chi.Router) {
		sr.Use(rbac.Require(rbac.PermSubmissionReview))
		sr.Get("/assignments/{assignmentID}/submissions", ListAssignmentSubmissionsHandler(hw, log))
		sr.Patch("/submissions/{submissionID}", UpdateSubmissionHandler(hw, log))
		sr.Post("/submissions/{submissionID}/regrade", RegradeSubmissionHandler(hw, log))
	})

	r.Group(func(lr chi.Router) {
		lr.Use(rbac.Require(rbac.PermLessonManage))
		lr.Post("/lessons", CreateLessonHandler(hw, log))
		lr.Get("/lessons", ListTeacherLessonsHandler(hw, log))
		lr.Get("/lessons/{lessonID}", GetTeacherLessonHandler(hw, log))
		lr.Patch("/lessons/{lessonID}", UpdateLessonHandler(hw, log))
		lr.Delete("/lessons/{lessonID}", DeleteLessonHandler(hw, log))
	})

	r.Group(func(ir chi.Router) {
		ir.Use(rbac.Require(rbac.PermIndividualManage))
		ir.Post("/individual-assignments", CreateIndividualHandler(hw, log))
		ir.Get("/individual-assignments", ListTeacherIndividualsHandler(hw, log))
		ir.Get("/individual-assignments/{individualID}", GetTeacherIndividualHandler(hw, log))
		ir.Patch("/individual-assignments/{individualID}", UpdateIndividualHandler(hw, log))
		ir.Delete("/individual-assignments/{individualID}", DeleteIndividualHandler(hw, log))
		ir.Post("/individual-assignments/{individualID}/complete", CompleteIndividualHandler(hw, log))
	})

	r.Group(func(rr chi.Router) {
		rr.Use(rbac.Require(rbac.PermRelationReview))
		rr.Get("/relations", ListTeacherRelationsHandler(ro, log))
		rr.Post("/relations/{relationID}/accept", AcceptRelationHandler(ro, log))
		rr.Post("/relations/{relationID}/reject", RejectRelationHandler(ro, log))
	})
}

func mountStudent(r chi.Router, d Deps) {
	ro, hw, log := d.Roster, d.Homework, d.Log

	r.Group(func(ar chi.Router) {
		ar.Use(rbac.Require(rbac.PermAssignmentView))
		ar.Get("/assignments", StudentAssignmentsHandler(ro, hw, log))
		ar.Get("/assignments/{assignmentID}", StudentAssignmentDetailHandler(ro, hw, log))
	})
	r.With(rbac.Require(rbac.PermAssignmentSubmit), d.SubmitLimiter.Middleware).
		Post("/assignments/{assignmentID}/submit", SubmitAnswersHandler(ro, hw, log))
	r.With(rbac.Require(rbac.PermSubmissionViewOwn)).
		Get("/submissions", StudentSubmissionsHandler(hw, log))

	r.Group(func(tr chi.Router) {
		tr.Use(rbac.Require(rbac.PermTeacherRequest))
		tr.Get("/teachers", AvailableTeachersHandler(ro, log))
		tr.Post("/teachers/{teacherID}/request", RequestTeacherHandler(ro, log))
		tr.Get("/my-teachers", MyTeachersHandler(ro, log))
		tr.Get("/pending-requests", PendingRequestsHandler(ro, log))
	})

	r.Group(func(lr chi.Router) {
		lr.Use(rbac.Require(rbac.PermLessonViewOwn))
		lr.Get("/lessons", StudentLessonsHandler(hw, log))
		lr.Get("/lessons/{lessonID}", StudentLessonHandler(hw, log))
	})
	r.Group(func(ir chi.Router) {
		ir.Use(rbac.Require(rbac.PermIndividualViewOwn))
		ir.Get("/individual-assignments", StudentIndividualsHandler(hw, log))
		ir.Get("/individual-assignments/{individualID}", StudentIndividualHandler(hw, log))
	})
}

// owns reports whether the caller is ownerID or may override ownership.
func owns(r *http.Request, ownerID string) bool {
	sub, _ := auth.Principal(r.Context())
	return sub == ownerID || rbac.Allowed(r, rbac.PermOwnershipOverride)
}
