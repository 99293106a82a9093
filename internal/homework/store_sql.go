package homework

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mind-engage/mindengage-tutoring/internal/metrics"
	"github.com/mind-engage/mindengage-tutoring/internal/scoring"
	syncx "github.com/mind-engage/mindengage-tutoring/internal/sync"
)

type SQLStore struct {
	db      *sql.DB
	engine  *scoring.Engine
	events  syncx.Appender
	metrics *metrics.Metrics
	log     *zap.Logger
	now     func() time.Time
}

type Option func(*SQLStore)

func WithEngine(e *scoring.Engine) Option   { return func(s *SQLStore) { s.engine = e } }
func WithEvents(a syncx.Appender) Option    { return func(s *SQLStore) { s.events = a } }
func WithMetrics(m *metrics.Metrics) Option { return func(s *SQLStore) { s.metrics = m } }
func WithLogger(l *zap.Logger) Option       { return func(s *SQLStore) { s.log = l } }
func WithClock(now func() time.Time) Option { return func(s *SQLStore) { s.now = now } }

func NewSQLStore(db *sql.DB, opts ...Option) *SQLStore {
	s := &SQLStore{db: db, engine: scoring.NewEngine(), log: zap.NewNop(), now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

func nullInt(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullString(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func float64Ptr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func stringPtr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	v := n.String
	return &v
}

// ---- assignments ----

const assignmentCols = `id,title,class_id,teacher_id,kind,question_count,answer_schema_json,question_files_json,due_at,results_visible,created_at`

func scanAssignment(rs rowScanner) (Assignment, error) {
	var a Assignment
	var schemaJSON, filesJSON string
	var due sql.NullInt64
	if err := rs.Scan(&a.ID, &a.Title, &a.ClassID, &a.TeacherID, &a.Kind, &a.QuestionCount,
		&schemaJSON, &filesJSON, &due, &a.ResultsVisible, &a.CreatedAt); err != nil {
		return Assignment{}, err
	}
	a.DueAt = int64Ptr(due)
	if err := json.Unmarshal([]byte(schemaJSON), &a.AnswerSchema); err != nil {
		return Assignment{}, fmt.Errorf("assignment %s: %w", a.ID, err)
	}
	if err := json.Unmarshal([]byte(filesJSON), &a.QuestionFiles); err != nil || a.QuestionFiles == nil {
		a.QuestionFiles = []FileRef{}
	}
	return a, nil
}

func getAssignment(ctx context.Context, q querier, id string) (Assignment, error) {
	a, err := scanAssignment(q.QueryRowContext(ctx, `SELECT `+assignmentCols+` FROM assignments WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Assignment{}, fmt.Errorf("assignment %s: %w", id, ErrNotFound)
	}
	return a, err
}

func (s *SQLStore) listAssignments(ctx context.Context, q string, arg string) ([]Assignment, error) {
	rows, err := s.db.QueryContext(ctx, q, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Assignment{}
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) CreateAssignment(ctx context.Context, teacherID string, in NewAssignment) (Assignment, error) {
	if len(in.AnswerSchema) == 0 {
		return Assignment{}, fmt.Errorf("answer schema: %w", scoring.ErrMalformedSchema)
	}
	a := Assignment{
		ID:             uuid.NewString(),
		Title:          strings.TrimSpace(in.Title),
		ClassID:        in.ClassID,
		TeacherID:      teacherID,
		Kind:           in.Kind,
		QuestionCount:  in.QuestionCount,
		AnswerSchema:   in.AnswerSchema,
		QuestionFiles:  []FileRef{},
		DueAt:          in.DueAt,
		ResultsVisible: true,
		CreatedAt:      s.now().Unix(),
	}
	if a.Kind == "" {
		a.Kind = KindHomework
	}
	if a.QuestionCount == 0 {
		a.QuestionCount = len(in.AnswerSchema)
	}
	if in.ResultsVisible != nil {
		a.ResultsVisible = *in.ResultsVisible
	}
	sj, err := json.Marshal(a.AnswerSchema)
	if err != nil {
		return Assignment{}, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO assignments (`+assignmentCols+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		a.ID, a.Title, a.ClassID, a.TeacherID, a.Kind, a.QuestionCount, string(sj), "[]",
		nullInt(a.DueAt), a.ResultsVisible, a.CreatedAt)
	if err != nil {
		return Assignment{}, fmt.Errorf("insert assignment: %w", err)
	}
	s.log.Info("assignment created",
		zap.String("assignment_id", a.ID), zap.String("class_id", a.ClassID), zap.Int("questions", len(a.AnswerSchema)))
	return a, nil
}

func (s *SQLStore) GetAssignment(ctx context.Context, id string) (Assignment, error) {
	return getAssignment(ctx, s.db, id)
}

func (s *SQLStore) ListClassAssignments(ctx context.Context, classID string) ([]Assignment, error) {
	return s.listAssignments(ctx,
		`SELECT `+assignmentCols+` FROM assignments WHERE class_id=$1 ORDER BY created_at DESC, id`, classID)
}

func (s *SQLStore) ListTeacherAssignments(ctx context.Context, teacherID string) ([]Assignment, error) {
	return s.listAssignments(ctx,
		`SELECT `+assignmentCols+` FROM assignments WHERE teacher_id=$1 ORDER BY created_at DESC, id`, teacherID)
}

func (s *SQLStore) UpdateAssignment(ctx context.Context, id string, p AssignmentPatch) (Assignment, error) {
	a, err := s.GetAssignment(ctx, id)
	if err != nil {
		return Assignment{}, err
	}
	if p.Title != nil {
		a.Title = strings.TrimSpace(*p.Title)
	}
	if p.DueAt != nil {
		a.DueAt = p.DueAt
	}
	if p.ResultsVisible != nil {
		a.ResultsVisible = *p.ResultsVisible
	}
	if len(p.AnswerSchema) > 0 {
		// question types are fixed once published
		for qid, q := range p.AnswerSchema {
			if old, ok := a.AnswerSchema[qid]; ok && old.Type() != q.Type() {
				return Assignment{}, &scoring.SchemaError{QuestionID: qid, Reason: "type cannot change"}
			}
		}
		a.AnswerSchema = p.AnswerSchema
		a.QuestionCount = len(p.AnswerSchema)
	}
	sj, err := json.Marshal(a.AnswerSchema)
	if err != nil {
		return Assignment{}, err
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE assignments SET title=$1, due_at=$2, results_visible=$3, answer_schema_json=$4, question_count=$5 WHERE id=$6`,
		a.Title, nullInt(a.DueAt), a.ResultsVisible, string(sj), a.QuestionCount, id)
	if err != nil {
		return Assignment{}, err
	}
	return a, nil
}

func (s *SQLStore) DeleteAssignment(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM submissions WHERE assignment_id=$1`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM assignments WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("assignment %s: %w", id, ErrNotFound)
	}
	return tx.Commit()
}

func (s *SQLStore) SetAssignmentFiles(ctx context.Context, id string, files []FileRef) (Assignment, error) {
	if files == nil {
		files = []FileRef{}
	}
	buf, err := json.Marshal(files)
	if err != nil {
		return Assignment{}, err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE assignments SET question_files_json=$1 WHERE id=$2`, string(buf), id)
	if err != nil {
		return Assignment{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Assignment{}, fmt.Errorf("assignment %s: %w", id, ErrNotFound)
	}
	return s.GetAssignment(ctx, id)
}

// ---- submissions ----

const submissionCols = `id,assignment_id,student_id,answers_json,score,max_score,feedback,started_at,submitted_at,visible_to_student`

func scanSubmission(rs rowScanner) (Submission, error) {
	var sub Submission
	var answersJSON string
	var score sql.NullFloat64
	var feedback sql.NullString
	var submitted sql.NullInt64
	if err := rs.Scan(&sub.ID, &sub.AssignmentID, &sub.StudentID, &answersJSON, &score, &sub.MaxScore,
		&feedback, &sub.StartedAt, &submitted, &sub.VisibleToStudent); err != nil {
		return Submission{}, err
	}
	sub.Score = float64Ptr(score)
	sub.Feedback = stringPtr(feedback)
	sub.SubmittedAt = int64Ptr(submitted)
	if err := json.Unmarshal([]byte(answersJSON), &sub.Answers); err != nil || sub.Answers == nil {
		sub.Answers = map[string]any{}
	}
	return sub, nil
}

func (s *SQLStore) querySubmissions(ctx context.Context, q string, args ...any) ([]Submission, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Submission{}
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (s *SQLStore) SaveAnswers(ctx context.Context, assignmentID, studentID string, answers map[string]any, submit bool) (Submission, error) {
	if answers == nil {
		answers = map[string]any{}
	}
	aj, err := json.Marshal(answers)
	if err != nil {
		return Submission{}, fmt.Errorf("encode answers: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Submission{}, err
	}
	defer tx.Rollback()

	a, err := getAssignment(ctx, tx, assignmentID)
	if err != nil {
		return Submission{}, err
	}

	now := s.now().Unix()
	sub := Submission{
		ID:               uuid.NewString(),
		AssignmentID:     assignmentID,
		StudentID:        studentID,
		Answers:          answers,
		MaxScore:         a.AnswerSchema.MaxScore(),
		StartedAt:        now,
		VisibleToStudent: true,
	}

	// a draft save reopens the submission; stored scores always match stored answers
	var breakdownScore float64
	if submit {
		score, fb := s.grade(a.AnswerSchema, answers)
		breakdownScore = score
		sub.Score, sub.Feedback, sub.SubmittedAt = &score, &fb, &now
	}

	// an existing row, including one a concurrent first save just wrote, keeps
	// its id, started_at and visibility
	err = tx.QueryRowContext(ctx,
		`INSERT INTO submissions (`+submissionCols+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		 ON CONFLICT (assignment_id, student_id) DO UPDATE SET
		   answers_json=excluded.answers_json, score=excluded.score, max_score=excluded.max_score,
		   feedback=excluded.feedback, submitted_at=excluded.submitted_at
		 RETURNING id, started_at, visible_to_student`,
		sub.ID, sub.AssignmentID, sub.StudentID, string(aj), nullFloat(sub.Score), sub.MaxScore,
		nullString(sub.Feedback), sub.StartedAt, nullInt(sub.SubmittedAt), sub.VisibleToStudent,
	).Scan(&sub.ID, &sub.StartedAt, &sub.VisibleToStudent)
	if err != nil {
		return Submission{}, fmt.Errorf("save submission: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Submission{}, err
	}

	if submit {
		s.afterGrade(ctx, "submit", sub.ID, breakdownScore, sub.MaxScore)
	}
	return sub, nil
}

func (s *SQLStore) grade(schema scoring.Schema, answers map[string]any) (float64, string) {
	score, breakdown := s.engine.Score(answers, schema)
	return score, scoring.GenerateFeedback(breakdown, score, schema.MaxScore())
}

// afterGrade runs once the graded row is committed. Event log failures are
// logged and do not fail the request.
func (s *SQLStore) afterGrade(ctx context.Context, trigger, submissionID string, score, maxScore float64) {
	s.metrics.ObserveGraded(trigger, score, maxScore)
	pct := scoring.CalculatePercentage(score, maxScore)
	s.log.Info("submission graded",
		zap.String("submission_id", submissionID),
		zap.String("trigger", trigger),
		zap.Float64("score", score),
		zap.Float64("max_score", maxScore))
	if s.events == nil {
		return
	}
	err := s.events.Append(ctx, syncx.TypeSubmissionGraded, submissionID, map[string]any{
		"score":       score,
		"max_score":   maxScore,
		"grade_level": scoring.GradeLevel(pct),
	})
	if err != nil {
		s.log.Warn("event append failed", zap.String("submission_id", submissionID), zap.Error(err))
	}
}

func (s *SQLStore) GetSubmission(ctx context.Context, id string) (Submission, error) {
	sub, err := scanSubmission(s.db.QueryRowContext(ctx,
		`SELECT `+submissionCols+` FROM submissions WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Submission{}, fmt.Errorf("submission %s: %w", id, ErrNotFound)
	}
	return sub, err
}

func (s *SQLStore) GetStudentSubmission(ctx context.Context, assignmentID, studentID string) (Submission, error) {
	sub, err := scanSubmission(s.db.QueryRowContext(ctx,
		`SELECT `+submissionCols+` FROM submissions WHERE assignment_id=$1 AND student_id=$2`,
		assignmentID, studentID))
	if errors.Is(err, sql.ErrNoRows) {
		return Submission{}, fmt.Errorf("submission for %s: %w", assignmentID, ErrNotFound)
	}
	return sub, err
}

func (s *SQLStore) ListStudentSubmissions(ctx context.Context, studentID string) ([]Submission, error) {
	return s.querySubmissions(ctx,
		`SELECT `+submissionCols+` FROM submissions WHERE student_id=$1 ORDER BY started_at DESC, id`, studentID)
}

func (s *SQLStore) ListAssignmentSubmissions(ctx context.Context, assignmentID string) ([]Submission, error) {
	a, err := s.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	subs, err := s.querySubmissions(ctx,
		`SELECT `+submissionCols+` FROM submissions WHERE assignment_id=$1 ORDER BY submitted_at, id`, assignmentID)
	if err != nil {
		return nil, err
	}
	for i := range subs {
		if !subs[i].Submitted() || subs[i].Graded() {
			continue
		}
		score, fb := s.grade(a.AnswerSchema, subs[i].Answers)
		maxScore := a.AnswerSchema.MaxScore()
		// only fill rows still ungraded so a concurrent override wins
		res, err := s.db.ExecContext(ctx,
			`UPDATE submissions SET score=$1, feedback=$2, max_score=$3 WHERE id=$4 AND score IS NULL`,
			score, fb, maxScore, subs[i].ID)
		if err != nil {
			return nil, fmt.Errorf("lazy grade %s: %w", subs[i].ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			if subs[i], err = s.GetSubmission(ctx, subs[i].ID); err != nil {
				return nil, err
			}
			continue
		}
		subs[i].Score, subs[i].Feedback, subs[i].MaxScore = &score, &fb, maxScore
		s.afterGrade(ctx, "lazy", subs[i].ID, score, subs[i].MaxScore)
	}
	return subs, nil
}

func (s *SQLStore) UpdateSubmission(ctx context.Context, id string, p SubmissionPatch) (Submission, error) {
	sub, err := s.GetSubmission(ctx, id)
	if err != nil {
		return Submission{}, err
	}
	if p.Score != nil {
		sub.Score = p.Score
	}
	if p.Feedback != nil {
		sub.Feedback = p.Feedback
	}
	if p.VisibleToStudent != nil {
		sub.VisibleToStudent = *p.VisibleToStudent
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE submissions SET score=$1, feedback=$2, visible_to_student=$3 WHERE id=$4`,
		nullFloat(sub.Score), nullString(sub.Feedback), sub.VisibleToStudent, id)
	if err != nil {
		return Submission{}, err
	}
	return sub, nil
}

// Regrade recomputes the score from the stored answers and the current schema,
// overwriting any manual override.
func (s *SQLStore) Regrade(ctx context.Context, id string) (Submission, scoring.Breakdown, error) {
	sub, err := s.GetSubmission(ctx, id)
	if err != nil {
		return Submission{}, nil, err
	}
	if !sub.Submitted() {
		return Submission{}, nil, ErrNotSubmitted
	}
	a, err := s.GetAssignment(ctx, sub.AssignmentID)
	if err != nil {
		return Submission{}, nil, err
	}
	score, breakdown := s.engine.Score(sub.Answers, a.AnswerSchema)
	fb := scoring.GenerateFeedback(breakdown, score, a.AnswerSchema.MaxScore())
	sub.Score, sub.Feedback, sub.MaxScore = &score, &fb, a.AnswerSchema.MaxScore()
	_, err = s.db.ExecContext(ctx,
		`UPDATE submissions SET score=$1, feedback=$2, max_score=$3 WHERE id=$4`,
		score, fb, sub.MaxScore, id)
	if err != nil {
		return Submission{}, nil, err
	}
	s.afterGrade(ctx, "regrade", id, score, sub.MaxScore)
	return sub, breakdown, nil
}
