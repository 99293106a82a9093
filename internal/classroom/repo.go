package classroom

import "context"

type Store interface {
	CreateUser(ctx context.Context, in NewUser) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
	UpdateUser(ctx context.Context, id string, p UserPatch) (User, error)
	ListTeachers(ctx context.Context) ([]User, error)
	ListStudents(ctx context.Context) ([]User, error)
	ListAvailableStudents(ctx context.Context) ([]User, error) // students in no class
	ListClassStudents(ctx context.Context, classID string) ([]User, error)

	CreateClass(ctx context.Context, teacherID string, in NewClass) (Class, error)
	GetClass(ctx context.Context, id string) (Class, error)
	ListTeacherClasses(ctx context.Context, teacherID string) ([]Class, error)
	ListStudentClasses(ctx context.Context, studentID string) ([]Class, error)
	UpdateClass(ctx context.Context, id string, p ClassPatch) (Class, error)
	DeleteClass(ctx context.Context, id string) error
	AddStudent(ctx context.Context, classID, studentID string) error
	RemoveStudent(ctx context.Context, classID, studentID string) error

	RequestTeacher(ctx context.Context, studentID, teacherID string) (Relation, error)
	ListStudentRelations(ctx context.Context, studentID string) ([]Relation, error)
	ListTeacherRelations(ctx context.Context, teacherID, status string) ([]Relation, error)
	AcceptRelation(ctx context.Context, id, teacherID string) (Relation, error)
	RejectRelation(ctx context.Context, id, teacherID string) (Relation, error)
	AcceptedTeachers(ctx context.Context, studentID string) ([]User, error)
	AcceptedStudents(ctx context.Context, teacherID string) ([]User, error)
}
