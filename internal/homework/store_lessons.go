package homework

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ---- lessons ----

const lessonCols = `id,student_id,teacher_id,lesson_date,duration_minutes,topic,content_covered,notes,homework_assigned,student_performance,created_at`

func scanLesson(rs rowScanner) (Lesson, error) {
	var l Lesson
	err := rs.Scan(&l.ID, &l.StudentID, &l.TeacherID, &l.LessonDate, &l.DurationMinutes, &l.Topic,
		&l.ContentCovered, &l.Notes, &l.HomeworkAssigned, &l.StudentPerformance, &l.CreatedAt)
	return l, err
}

func (s *SQLStore) queryLessons(ctx context.Context, q string, arg string) ([]Lesson, error) {
	rows, err := s.db.QueryContext(ctx, q, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Lesson{}
	for rows.Next() {
		l, err := scanLesson(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *SQLStore) CreateLesson(ctx context.Context, teacherID string, in NewLesson) (Lesson, error) {
	l := Lesson{
		ID:                 uuid.NewString(),
		StudentID:          in.StudentID,
		TeacherID:          teacherID,
		LessonDate:         in.LessonDate,
		DurationMinutes:    in.DurationMinutes,
		Topic:              strings.TrimSpace(in.Topic),
		ContentCovered:     in.ContentCovered,
		Notes:              in.Notes,
		HomeworkAssigned:   in.HomeworkAssigned,
		StudentPerformance: in.StudentPerformance,
		CreatedAt:          s.now().Unix(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO lessons (`+lessonCols+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		l.ID, l.StudentID, l.TeacherID, l.LessonDate, l.DurationMinutes, l.Topic,
		l.ContentCovered, l.Notes, l.HomeworkAssigned, l.StudentPerformance, l.CreatedAt)
	if err != nil {
		return Lesson{}, fmt.Errorf("insert lesson: %w", err)
	}
	return l, nil
}

func (s *SQLStore) GetLesson(ctx context.Context, id string) (Lesson, error) {
	l, err := scanLesson(s.db.QueryRowContext(ctx, `SELECT `+lessonCols+` FROM lessons WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Lesson{}, fmt.Errorf("lesson %s: %w", id, ErrNotFound)
	}
	return l, err
}

func (s *SQLStore) ListTeacherLessons(ctx context.Context, teacherID string) ([]Lesson, error) {
	return s.queryLessons(ctx,
		`SELECT `+lessonCols+` FROM lessons WHERE teacher_id=$1 ORDER BY lesson_date DESC, id`, teacherID)
}

func (s *SQLStore) ListStudentLessons(ctx context.Context, studentID string) ([]Lesson, error) {
	return s.queryLessons(ctx,
		`SELECT `+lessonCols+` FROM lessons WHERE student_id=$1 ORDER BY lesson_date DESC, id`, studentID)
}

func (s *SQLStore) UpdateLesson(ctx context.Context, id string, p LessonPatch) (Lesson, error) {
	l, err := s.GetLesson(ctx, id)
	if err != nil {
		return Lesson{}, err
	}
	if p.LessonDate != nil {
		l.LessonDate = *p.LessonDate
	}
	if p.DurationMinutes != nil {
		l.DurationMinutes = *p.DurationMinutes
	}
	if p.Topic != nil {
		l.Topic = strings.TrimSpace(*p.Topic)
	}
	if p.ContentCovered != nil {
		l.ContentCovered = *p.ContentCovered
	}
	if p.Notes != nil {
		l.Notes = *p.Notes
	}
	if p.HomeworkAssigned != nil {
		l.HomeworkAssigned = *p.HomeworkAssigned
	}
	if p.StudentPerformance != nil {
		l.StudentPerformance = *p.StudentPerformance
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE lessons SET lesson_date=$1, duration_minutes=$2, topic=$3, content_covered=$4,
		        notes=$5, homework_assigned=$6, student_performance=$7 WHERE id=$8`,
		l.LessonDate, l.DurationMinutes, l.Topic, l.ContentCovered, l.Notes, l.HomeworkAssigned, l.StudentPerformance, id)
	if err != nil {
		return Lesson{}, err
	}
	return l, nil
}

func (s *SQLStore) DeleteLesson(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "lessons", "lesson", id)
}

// ---- individual assignments ----

const individualCols = `id,title,student_id,teacher_id,description,due_date,status,max_score,score,feedback,completed_at,created_at`

func scanIndividual(rs rowScanner) (Individual, error) {
	var ia Individual
	var due, completed sql.NullInt64
	var score sql.NullFloat64
	var feedback sql.NullString
	if err := rs.Scan(&ia.ID, &ia.Title, &ia.StudentID, &ia.TeacherID, &ia.Description, &due, &ia.Status,
		&ia.MaxScore, &score, &feedback, &completed, &ia.CreatedAt); err != nil {
		return Individual{}, err
	}
	ia.DueDate = int64Ptr(due)
	ia.CompletedAt = int64Ptr(completed)
	ia.Score = float64Ptr(score)
	ia.Feedback = stringPtr(feedback)
	return ia, nil
}

func (s *SQLStore) queryIndividuals(ctx context.Context, q string, arg string) ([]Individual, error) {
	rows, err := s.db.QueryContext(ctx, q, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Individual{}
	for rows.Next() {
		ia, err := scanIndividual(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ia)
	}
	return out, rows.Err()
}

func (s *SQLStore) CreateIndividual(ctx context.Context, teacherID string, in NewIndividual) (Individual, error) {
	ia := Individual{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(in.Title),
		StudentID:   in.StudentID,
		TeacherID:   teacherID,
		Description: in.Description,
		DueDate:     in.DueDate,
		Status:      StatusAssigned,
		MaxScore:    in.MaxScore,
		CreatedAt:   s.now().Unix(),
	}
	if ia.MaxScore == 0 {
		ia.MaxScore = 100
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO individual_assignments (`+individualCols+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NULL,NULL,NULL,$9)`,
		ia.ID, ia.Title, ia.StudentID, ia.TeacherID, ia.Description, nullInt(ia.DueDate), ia.Status, ia.MaxScore, ia.CreatedAt)
	if err != nil {
		return Individual{}, fmt.Errorf("insert individual assignment: %w", err)
	}
	return ia, nil
}

func (s *SQLStore) GetIndividual(ctx context.Context, id string) (Individual, error) {
	ia, err := scanIndividual(s.db.QueryRowContext(ctx,
		`SELECT `+individualCols+` FROM individual_assignments WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Individual{}, fmt.Errorf("individual assignment %s: %w", id, ErrNotFound)
	}
	return ia, err
}

func (s *SQLStore) ListTeacherIndividuals(ctx context.Context, teacherID string) ([]Individual, error) {
	return s.queryIndividuals(ctx,
		`SELECT `+individualCols+` FROM individual_assignments WHERE teacher_id=$1 ORDER BY created_at DESC, id`, teacherID)
}

func (s *SQLStore) ListStudentIndividuals(ctx context.Context, studentID string) ([]Individual, error) {
	return s.queryIndividuals(ctx,
		`SELECT `+individualCols+` FROM individual_assignments WHERE student_id=$1 ORDER BY created_at DESC, id`, studentID)
}

func (s *SQLStore) UpdateIndividual(ctx context.Context, id string, p IndividualPatch) (Individual, error) {
	ia, err := s.GetIndividual(ctx, id)
	if err != nil {
		return Individual{}, err
	}
	if p.Title != nil {
		ia.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		ia.Description = *p.Description
	}
	if p.DueDate != nil {
		ia.DueDate = p.DueDate
	}
	if p.MaxScore != nil {
		ia.MaxScore = *p.MaxScore
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE individual_assignments SET title=$1, description=$2, due_date=$3, max_score=$4 WHERE id=$5`,
		ia.Title, ia.Description, nullInt(ia.DueDate), ia.MaxScore, id)
	if err != nil {
		return Individual{}, err
	}
	return ia, nil
}

func (s *SQLStore) DeleteIndividual(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "individual_assignments", "individual assignment", id)
}

// CompleteIndividual records the teacher's grade and marks the assignment completed.
func (s *SQLStore) CompleteIndividual(ctx context.Context, id string, score float64, feedback string) (Individual, error) {
	ia, err := s.GetIndividual(ctx, id)
	if err != nil {
		return Individual{}, err
	}
	now := s.now().Unix()
	ia.Status = StatusCompleted
	ia.Score, ia.Feedback, ia.CompletedAt = &score, &feedback, &now
	_, err = s.db.ExecContext(ctx,
		`UPDATE individual_assignments SET status=$1, score=$2, feedback=$3, completed_at=$4 WHERE id=$5`,
		ia.Status, score, feedback, now, id)
	if err != nil {
		return Individual{}, err
	}
	return ia, nil
}

// table is always a package constant.
func (s *SQLStore) deleteByID(ctx context.Context, table, what, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
	}
	return nil
}
