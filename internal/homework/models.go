package homework

import (
	"errors"

	"github.com/mind-engage/mindengage-tutoring/internal/scoring"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrNotSubmitted = errors.New("submission has not been submitted")
)

const (
	KindHomework = "homework"
	KindQuiz     = "quiz"

	StatusAssigned  = "assigned"
	StatusCompleted = "completed"
)

type FileRef struct {
	Name string `json:"name" validate:"required"`
	URL  string `json:"url" validate:"required,url"`
}

type Assignment struct {
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	ClassID        string         `json:"class_id"`
	TeacherID      string         `json:"teacher_id"`
	Kind           string         `json:"kind"`
	QuestionCount  int            `json:"question_count"`
	AnswerSchema   scoring.Schema `json:"answer_schema"`
	QuestionFiles  []FileRef      `json:"question_files"`
	DueAt          *int64         `json:"due_at,omitempty"`
	ResultsVisible bool           `json:"results_visible_to_students"`
	CreatedAt      int64          `json:"created_at"`
}

// StudentView is an assignment with the correct answers removed.
type StudentView struct {
	ID             string                            `json:"id"`
	Title          string                            `json:"title"`
	ClassID        string                            `json:"class_id"`
	Kind           string                            `json:"kind"`
	QuestionCount  int                               `json:"question_count"`
	Questions      map[string]scoring.PublicQuestion `json:"questions"`
	QuestionFiles  []FileRef                         `json:"question_files"`
	DueAt          *int64                            `json:"due_at,omitempty"`
	ResultsVisible bool                              `json:"results_visible_to_students"`
}

func (a Assignment) ForStudent() StudentView {
	return StudentView{
		ID:             a.ID,
		Title:          a.Title,
		ClassID:        a.ClassID,
		Kind:           a.Kind,
		QuestionCount:  a.QuestionCount,
		Questions:      a.AnswerSchema.Redact(),
		QuestionFiles:  a.QuestionFiles,
		DueAt:          a.DueAt,
		ResultsVisible: a.ResultsVisible,
	}
}

type NewAssignment struct {
	Title          string         `json:"title" validate:"required,max=200"`
	ClassID        string         `json:"class_id" validate:"required"`
	Kind           string         `json:"kind" validate:"omitempty,oneof=homework quiz"`
	QuestionCount  int            `json:"question_count" validate:"min=0"`
	AnswerSchema   scoring.Schema `json:"answer_schema" validate:"required,min=1"`
	DueAt          *int64         `json:"due_at,omitempty"`
	ResultsVisible *bool          `json:"results_visible_to_students,omitempty"`
}

type AssignmentPatch struct {
	Title          *string        `json:"title,omitempty" validate:"omitempty,max=200"`
	DueAt          *int64         `json:"due_at,omitempty"`
	ResultsVisible *bool          `json:"results_visible_to_students,omitempty"`
	AnswerSchema   scoring.Schema `json:"answer_schema,omitempty"`
}

type Submission struct {
	ID               string         `json:"id"`
	AssignmentID     string         `json:"assignment_id"`
	StudentID        string         `json:"student_id"`
	Answers          map[string]any `json:"answers"`
	Score            *float64       `json:"score"`
	MaxScore         float64        `json:"max_score"`
	Feedback         *string        `json:"feedback"`
	StartedAt        int64          `json:"started_at"`
	SubmittedAt      *int64         `json:"submitted_at"`
	VisibleToStudent bool           `json:"visible_to_student"`
}

func (s Submission) Submitted() bool { return s.SubmittedAt != nil }

// Graded reports whether a score is stored for the submission.
func (s Submission) Graded() bool { return s.Score != nil }

type SubmissionPatch struct {
	Score            *float64 `json:"score,omitempty" validate:"omitempty,min=0"`
	Feedback         *string  `json:"feedback,omitempty"`
	VisibleToStudent *bool    `json:"visible_to_student,omitempty"`
}

type Lesson struct {
	ID                 string `json:"id"`
	StudentID          string `json:"student_id"`
	TeacherID          string `json:"teacher_id"`
	LessonDate         int64  `json:"lesson_date"`
	DurationMinutes    int    `json:"duration_minutes"`
	Topic              string `json:"topic"`
	ContentCovered     string `json:"content_covered"`
	Notes              string `json:"notes"`
	HomeworkAssigned   string `json:"homework_assigned"`
	StudentPerformance string `json:"student_performance"`
	CreatedAt          int64  `json:"created_at"`
}

type NewLesson struct {
	StudentID          string `json:"student_id" validate:"required"`
	LessonDate         int64  `json:"lesson_date" validate:"required"`
	DurationMinutes    int    `json:"duration_minutes" validate:"min=1,max=600"`
	Topic              string `json:"topic" validate:"required,max=200"`
	ContentCovered     string `json:"content_covered"`
	Notes              string `json:"notes"`
	HomeworkAssigned   string `json:"homework_assigned"`
	StudentPerformance string `json:"student_performance" validate:"omitempty,oneof=excellent good average needs_improvement"`
}

type LessonPatch struct {
	LessonDate         *int64  `json:"lesson_date,omitempty"`
	DurationMinutes    *int    `json:"duration_minutes,omitempty" validate:"omitempty,min=1,max=600"`
	Topic              *string `json:"topic,omitempty" validate:"omitempty,max=200"`
	ContentCovered     *string `json:"content_covered,omitempty"`
	Notes              *string `json:"notes,omitempty"`
	HomeworkAssigned   *string `json:"homework_assigned,omitempty"`
	StudentPerformance *string `json:"student_performance,omitempty" validate:"omitempty,oneof=excellent good average needs_improvement"`
}

type Individual struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	StudentID   string   `json:"student_id"`
	TeacherID   string   `json:"teacher_id"`
	Description string   `json:"description"`
	DueDate     *int64   `json:"due_date,omitempty"`
	Status      string   `json:"status"`
	MaxScore    float64  `json:"max_score"`
	Score       *float64 `json:"score"`
	Feedback    *string  `json:"feedback"`
	CompletedAt *int64   `json:"completed_at"`
	CreatedAt   int64    `json:"created_at"`
}

type NewIndividual struct {
	Title       string  `json:"title" validate:"required,max=200"`
	StudentID   string  `json:"student_id" validate:"required"`
	Description string  `json:"description"`
	DueDate     *int64  `json:"due_date,omitempty"`
	MaxScore    float64 `json:"max_score" validate:"gte=0"`
}

type IndividualPatch struct {
	Title       *string  `json:"title,omitempty" validate:"omitempty,max=200"`
	Description *string  `json:"description,omitempty"`
	DueDate     *int64   `json:"due_date,omitempty"`
	MaxScore    *float64 `json:"max_score,omitempty" validate:"omitempty,gte=0"`
}
