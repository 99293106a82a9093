package classroom

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrRelationExists = errors.New("request already sent to this teacher")
)

const (
	RoleTeacher  = "teacher"
	RoleStudent  = "student"
	RoleGuardian = "guardian"
)

const (
	RelationPending  = "pending"
	RelationAccepted = "accepted"
	RelationRejected = "rejected"
)

type User struct {
	ID                string `json:"id"`
	Role              string `json:"role"`
	DisplayName       string `json:"display_name"`
	Email             string `json:"email"`
	Grade             *int   `json:"grade,omitempty"`
	Disabled          bool   `json:"disabled"`
	SelectedTeacherID string `json:"selected_teacher_id,omitempty"`
	CreatedAt         int64  `json:"created_at"`
}

// NewUser is the teacher-facing create payload. A student with ClassID set is
// enrolled in that class on creation.
type NewUser struct {
	ID          string `json:"id"`
	Role        string `json:"role" validate:"required,oneof=teacher student guardian"`
	DisplayName string `json:"display_name" validate:"required,max=120"`
	Email       string `json:"email" validate:"required,email"`
	Grade       *int   `json:"grade,omitempty" validate:"omitempty,min=1,max=12"`
	ClassID     string `json:"class_id,omitempty"`
}

type UserPatch struct {
	DisplayName *string `json:"display_name,omitempty" validate:"omitempty,max=120"`
	Email       *string `json:"email,omitempty" validate:"omitempty,email"`
	Grade       *int    `json:"grade,omitempty" validate:"omitempty,min=1,max=12"`
	Disabled    *bool   `json:"disabled,omitempty"`
}

type Class struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	TeacherID  string   `json:"teacher_id"`
	Grade      int      `json:"grade"`
	StudentIDs []string `json:"student_ids"`
	CreatedAt  int64    `json:"created_at"`
}

type NewClass struct {
	Name       string   `json:"name" validate:"required,max=120"`
	Grade      int      `json:"grade" validate:"min=1,max=12"`
	StudentIDs []string `json:"student_ids,omitempty"`
}

type ClassPatch struct {
	Name  *string `json:"name,omitempty" validate:"omitempty,max=120"`
	Grade *int    `json:"grade,omitempty" validate:"omitempty,min=1,max=12"`
}

type Relation struct {
	ID         string `json:"id"`
	StudentID  string `json:"student_id"`
	TeacherID  string `json:"teacher_id"`
	Status     string `json:"status"`
	CreatedAt  int64  `json:"created_at"`
	AcceptedAt *int64 `json:"accepted_at,omitempty"`
}
