package rbac

const (
	PermUserCreate        = "user:create"
	PermUserList          = "user:list"
	PermClassManage       = "class:manage"
	PermAssignmentManage  = "assignment:manage"
	PermSubmissionReview  = "submission:review"
	PermLessonManage      = "lesson:manage"
	PermIndividualManage  = "individual:manage"
	PermRelationReview    = "relation:review"
	PermAssignmentView    = "assignment:view"
	PermAssignmentSubmit  = "assignment:submit"
	PermSubmissionViewOwn = "submission:view-own"
	PermTeacherRequest    = "teacher:request"
	PermLessonViewOwn     = "lesson:view-own"
	PermIndividualViewOwn = "individual:view-own"
	PermGamePlay          = "game:play"
	PermEventsRead        = "events:read"

	// PermOwnershipOverride lets a role act on records owned by someone else.
	PermOwnershipOverride = "ownership:override"
)

// RolePermissions is the default policy. Guardians hold no API permissions yet.
var RolePermissions = map[string][]string{
	"student": {
		PermAssignmentView,
		PermAssignmentSubmit,
		PermSubmissionViewOwn,
		PermTeacherRequest,
		PermLessonViewOwn,
		PermIndividualViewOwn,
		PermGamePlay,
	},
	"teacher": {
		PermUserCreate,
		PermUserList,
		PermClassManage,
		PermAssignmentManage,
		PermSubmissionReview,
		PermLessonManage,
		PermIndividualManage,
		PermRelationReview,
		PermGamePlay,
	},
	"guardian": {},
	"admin": {
		"*", // everything
	},
}
