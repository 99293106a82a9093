package homework

import (
	"context"

	"github.com/mind-engage/mindengage-tutoring/internal/scoring"
)

type Store interface {
	CreateAssignment(ctx context.Context, teacherID string, in NewAssignment) (Assignment, error)
	GetAssignment(ctx context.Context, id string) (Assignment, error)
	ListClassAssignments(ctx context.Context, classID string) ([]Assignment, error)
	ListTeacherAssignments(ctx context.Context, teacherID string) ([]Assignment, error)
	UpdateAssignment(ctx context.Context, id string, p AssignmentPatch) (Assignment, error)
	DeleteAssignment(ctx context.Context, id string) error
	SetAssignmentFiles(ctx context.Context, id string, files []FileRef) (Assignment, error)

	// SaveAnswers stores a draft, or grades and submits when submit is true.
	SaveAnswers(ctx context.Context, assignmentID, studentID string, answers map[string]any, submit bool) (Submission, error)
	GetSubmission(ctx context.Context, id string) (Submission, error)
	GetStudentSubmission(ctx context.Context, assignmentID, studentID string) (Submission, error)
	ListStudentSubmissions(ctx context.Context, studentID string) ([]Submission, error)
	// ListAssignmentSubmissions grades any submitted but ungraded rows before returning.
	ListAssignmentSubmissions(ctx context.Context, assignmentID string) ([]Submission, error)
	UpdateSubmission(ctx context.Context, id string, p SubmissionPatch) (Submission, error)
	Regrade(ctx context.Context, id string) (Submission, scoring.Breakdown, error)

	CreateLesson(ctx context.Context, teacherID string, in NewLesson) (Lesson, error)
	GetLesson(ctx context.Context, id string) (Lesson, error)
	ListTeacherLessons(ctx context.Context, teacherID string) ([]Lesson, error)
	ListStudentLessons(ctx context.Context, studentID string) ([]Lesson, error)
	UpdateLesson(ctx context.Context, id string, p LessonPatch) (Lesson, error)
	DeleteLesson(ctx context.Context, id string) error

	CreateIndividual(ctx context.Context, teacherID string, in NewIndividual) (Individual, error)
	GetIndividual(ctx context.Context, id string) (Individual, error)
	ListTeacherIndividuals(ctx context.Context, teacherID string) ([]Individual, error)
	ListStudentIndividuals(ctx context.Context, studentID string) ([]Individual, error)
	UpdateIndividual(ctx context.Context, id string, p IndividualPatch) (Individual, error)
	DeleteIndividual(ctx context.Context, id string) error
	CompleteIndividual(ctx context.Context, id string, score float64, feedback string) (Individual, error)
}
