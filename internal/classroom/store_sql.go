package classroom

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type SQLStore struct {
	db  *sql.DB
	log *zap.Logger
}

func NewSQLStore(db *sql.DB, log *zap.Logger) *SQLStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &SQLStore{db: db, log: log}
}

const userCols = `id,role,display_name,email,grade,disabled,selected_teacher_id,created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(rs rowScanner) (User, error) {
	var u User
	var grade sql.NullInt64
	if err := rs.Scan(&u.ID, &u.Role, &u.DisplayName, &u.Email, &grade, &u.Disabled, &u.SelectedTeacherID, &u.CreatedAt); err != nil {
		return User{}, err
	}
	if grade.Valid {
		g := int(grade.Int64)
		u.Grade = &g
	}
	return u, nil
}

func (s *SQLStore) queryUsers(ctx context.Context, q string, args ...any) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *SQLStore) CreateUser(ctx context.Context, in NewUser) (User, error) {
	u := User{
		ID:          in.ID,
		Role:        in.Role,
		DisplayName: strings.TrimSpace(in.DisplayName),
		Email:       strings.ToLower(strings.TrimSpace(in.Email)),
		Grade:       in.Grade,
		CreatedAt:   time.Now().Unix(),
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return User{}, err
	}
	defer tx.Rollback()

	var grade any
	if u.Grade != nil {
		grade = *u.Grade
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO users (`+userCols+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		u.ID, u.Role, u.DisplayName, u.Email, grade, false, "", u.CreatedAt); err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	if u.Role == RoleStudent && in.ClassID != "" {
		if err := classExists(ctx, tx, in.ClassID); err != nil {
			return User{}, err
		}
		if err := addStudent(ctx, tx, in.ClassID, u.ID); err != nil {
			return User{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return User{}, err
	}
	s.log.Info("user created", zap.String("user_id", u.ID), zap.String("role", u.Role))
	return u, nil
}

func (s *SQLStore) GetUser(ctx context.Context, id string) (User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return u, err
}

func (s *SQLStore) UpdateUser(ctx context.Context, id string, p UserPatch) (User, error) {
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return User{}, err
	}
	if p.DisplayName != nil {
		u.DisplayName = strings.TrimSpace(*p.DisplayName)
	}
	if p.Email != nil {
		u.Email = strings.ToLower(strings.TrimSpace(*p.Email))
	}
	if p.Grade != nil {
		u.Grade = p.Grade
	}
	if p.Disabled != nil {
		u.Disabled = *p.Disabled
	}
	var grade any
	if u.Grade != nil {
		grade = *u.Grade
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE users SET display_name=$1, email=$2, grade=$3, disabled=$4 WHERE id=$5`,
		u.DisplayName, u.Email, grade, u.Disabled, id)
	if err != nil {
		return User{}, err
	}
	return u, nil
}

func (s *SQLStore) ListTeachers(ctx context.Context) ([]User, error) {
	return s.queryUsers(ctx,
		`SELECT `+userCols+` FROM users WHERE role=$1 AND disabled=$2 ORDER BY display_name`,
		RoleTeacher, false)
}

func (s *SQLStore) ListStudents(ctx context.Context) ([]User, error) {
	return s.queryUsers(ctx,
		`SELECT `+userCols+` FROM users WHERE role=$1 ORDER BY display_name`, RoleStudent)
}

func (s *SQLStore) ListAvailableStudents(ctx context.Context) ([]User, error) {
	return s.queryUsers(ctx,
		`SELECT `+userCols+` FROM users u
		  WHERE u.role=$1
		    AND NOT EXISTS (SELECT 1 FROM class_students cs WHERE cs.student_id=u.id)
		  ORDER BY u.display_name`, RoleStudent)
}

func (s *SQLStore) ListClassStudents(ctx context.Context, classID string) ([]User, error) {
	if _, err := s.GetClass(ctx, classID); err != nil {
		return nil, err
	}
	return s.queryUsers(ctx,
		`SELECT `+prefixed("u.", userCols)+` FROM users u
		   JOIN class_students cs ON cs.student_id=u.id
		  WHERE cs.class_id=$1
		  ORDER BY u.display_name`, classID)
}

// ---- classes ----

func (s *SQLStore) CreateClass(ctx context.Context, teacherID string, in NewClass) (Class, error) {
	c := Class{
		ID:         uuid.NewString(),
		Name:       strings.TrimSpace(in.Name),
		TeacherID:  teacherID,
		Grade:      in.Grade,
		StudentIDs: []string{},
		CreatedAt:  time.Now().Unix(),
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Class{}, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO classes (id,name,teacher_id,grade,created_at) VALUES ($1,$2,$3,$4,$5)`,
		c.ID, c.Name, c.TeacherID, c.Grade, c.CreatedAt); err != nil {
		return Class{}, fmt.Errorf("insert class: %w", err)
	}
	for _, sid := range in.StudentIDs {
		if err := addStudent(ctx, tx, c.ID, sid); err != nil {
			return Class{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return Class{}, err
	}
	return s.GetClass(ctx, c.ID)
}

func (s *SQLStore) GetClass(ctx context.Context, id string) (Class, error) {
	var c Class
	err := s.db.QueryRowContext(ctx,
		`SELECT id,name,teacher_id,grade,created_at FROM classes WHERE id=$1`, id).
		Scan(&c.ID, &c.Name, &c.TeacherID, &c.Grade, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Class{}, fmt.Errorf("class %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Class{}, err
	}
	if c.StudentIDs, err = s.classStudentIDs(ctx, id); err != nil {
		return Class{}, err
	}
	return c, nil
}

func (s *SQLStore) classStudentIDs(ctx context.Context, classID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT student_id FROM class_students WHERE class_id=$1 ORDER BY student_id`, classID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLStore) listClasses(ctx context.Context, q string, arg string) ([]Class, error) {
	rows, err := s.db.QueryContext(ctx, q, arg)
	if err != nil {
		return nil, err
	}
	var out []Class
	for rows.Next() {
		var c Class
		if err := rows.Scan(&c.ID, &c.Name, &c.TeacherID, &c.Grade, &c.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// second pass: sqlite allows a single open connection
	for i := range out {
		if out[i].StudentIDs, err = s.classStudentIDs(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	if out == nil {
		out = []Class{}
	}
	return out, nil
}

func (s *SQLStore) ListTeacherClasses(ctx context.Context, teacherID string) ([]Class, error) {
	return s.listClasses(ctx,
		`SELECT id,name,teacher_id,grade,created_at FROM classes
		  WHERE teacher_id=$1 ORDER BY created_at DESC, id`, teacherID)
}

func (s *SQLStore) ListStudentClasses(ctx context.Context, studentID string) ([]Class, error) {
	return s.listClasses(ctx,
		`SELECT c.id,c.name,c.teacher_id,c.grade,c.created_at FROM classes c
		   JOIN class_students cs ON cs.class_id=c.id
		  WHERE cs.student_id=$1 ORDER BY c.created_at DESC, c.id`, studentID)
}

func (s *SQLStore) UpdateClass(ctx context.Context, id string, p ClassPatch) (Class, error) {
	c, err := s.GetClass(ctx, id)
	if err != nil {
		return Class{}, err
	}
	if p.Name != nil {
		c.Name = strings.TrimSpace(*p.Name)
	}
	if p.Grade != nil {
		c.Grade = *p.Grade
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE classes SET name=$1, grade=$2 WHERE id=$3`, c.Name, c.Grade, id); err != nil {
		return Class{}, err
	}
	return c, nil
}

func (s *SQLStore) DeleteClass(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM class_students WHERE class_id=$1`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM classes WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("class %s: %w", id, ErrNotFound)
	}
	return tx.Commit()
}

func (s *SQLStore) AddStudent(ctx context.Context, classID, studentID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := classExists(ctx, tx, classID); err != nil {
		return err
	}
	if err := addStudent(ctx, tx, classID, studentID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLStore) RemoveStudent(ctx context.Context, classID, studentID string) error {
	if _, err := s.GetClass(ctx, classID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM class_students WHERE class_id=$1 AND student_id=$2`, classID, studentID)
	return err
}

func classExists(ctx context.Context, tx *sql.Tx, classID string) error {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM classes WHERE id=$1`, classID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("class %s: %w", classID, ErrNotFound)
	}
	return err
}

// addStudent is idempotent.
func addStudent(ctx context.Context, tx *sql.Tx, classID, studentID string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO class_students (class_id, student_id) VALUES ($1,$2)
		 ON CONFLICT (class_id, student_id) DO NOTHING`, classID, studentID)
	return err
}

// ---- student/teacher relations ----

const relationCols = `id,student_id,teacher_id,status,created_at,accepted_at`

func scanRelation(rs rowScanner) (Relation, error) {
	var r Relation
	var accepted sql.NullInt64
	if err := rs.Scan(&r.ID, &r.StudentID, &r.TeacherID, &r.Status, &r.CreatedAt, &accepted); err != nil {
		return Relation{}, err
	}
	if accepted.Valid {
		r.AcceptedAt = &accepted.Int64
	}
	return r, nil
}

func (s *SQLStore) queryRelations(ctx context.Context, q string, args ...any) ([]Relation, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Relation{}
	for rows.Next() {
		r, err := scanRelation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLStore) RequestTeacher(ctx context.Context, studentID, teacherID string) (Relation, error) {
	t, err := s.GetUser(ctx, teacherID)
	if err != nil {
		return Relation{}, err
	}
	if t.Role != RoleTeacher {
		return Relation{}, fmt.Errorf("teacher %s: %w", teacherID, ErrNotFound)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Relation{}, err
	}
	defer tx.Rollback()

	var one int
	err = tx.QueryRowContext(ctx,
		`SELECT 1 FROM student_teacher_relations WHERE student_id=$1 AND teacher_id=$2`,
		studentID, teacherID).Scan(&one)
	switch {
	case err == nil:
		return Relation{}, ErrRelationExists
	case !errors.Is(err, sql.ErrNoRows):
		return Relation{}, err
	}

	rel := Relation{
		ID:        uuid.NewString(),
		StudentID: studentID,
		TeacherID: teacherID,
		Status:    RelationPending,
		CreatedAt: time.Now().Unix(),
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO student_teacher_relations (`+relationCols+`) VALUES ($1,$2,$3,$4,$5,NULL)`,
		rel.ID, rel.StudentID, rel.TeacherID, rel.Status, rel.CreatedAt); err != nil {
		return Relation{}, fmt.Errorf("insert relation: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET selected_teacher_id=$1 WHERE id=$2`, teacherID, studentID); err != nil {
		return Relation{}, err
	}
	if err := tx.Commit(); err != nil {
		return Relation{}, err
	}
	s.log.Info("teacher requested", zap.String("student_id", studentID), zap.String("teacher_id", teacherID))
	return rel, nil
}

func (s *SQLStore) ListStudentRelations(ctx context.Context, studentID string) ([]Relation, error) {
	return s.queryRelations(ctx,
		`SELECT `+relationCols+` FROM student_teacher_relations
		  WHERE student_id=$1 ORDER BY created_at DESC, id`, studentID)
}

// ListTeacherRelations filters by status unless it is empty.
func (s *SQLStore) ListTeacherRelations(ctx context.Context, teacherID, status string) ([]Relation, error) {
	if status == "" {
		return s.queryRelations(ctx,
			`SELECT `+relationCols+` FROM student_teacher_relations
			  WHERE teacher_id=$1 ORDER BY created_at DESC, id`, teacherID)
	}
	return s.queryRelations(ctx,
		`SELECT `+relationCols+` FROM student_teacher_relations
		  WHERE teacher_id=$1 AND status=$2 ORDER BY created_at DESC, id`, teacherID, status)
}

func (s *SQLStore) setRelationStatus(ctx context.Context, id, teacherID, status string) (Relation, error) {
	rel, err := scanRelation(s.db.QueryRowContext(ctx,
		`SELECT `+relationCols+` FROM student_teacher_relations WHERE id=$1 AND teacher_id=$2`, id, teacherID))
	if errors.Is(err, sql.ErrNoRows) {
		return Relation{}, fmt.Errorf("relation %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Relation{}, err
	}
	rel.Status = status
	var accepted any
	if status == RelationAccepted {
		now := time.Now().Unix()
		rel.AcceptedAt = &now
		accepted = now
	} else {
		rel.AcceptedAt = nil
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE student_teacher_relations SET status=$1, accepted_at=$2 WHERE id=$3`,
		status, accepted, id); err != nil {
		return Relation{}, err
	}
	return rel, nil
}

func (s *SQLStore) AcceptRelation(ctx context.Context, id, teacherID string) (Relation, error) {
	return s.setRelationStatus(ctx, id, teacherID, RelationAccepted)
}

func (s *SQLStore) RejectRelation(ctx context.Context, id, teacherID string) (Relation, error) {
	return s.setRelationStatus(ctx, id, teacherID, RelationRejected)
}

func (s *SQLStore) AcceptedTeachers(ctx context.Context, studentID string) ([]User, error) {
	return s.queryUsers(ctx,
		`SELECT `+prefixed("u.", userCols)+` FROM users u
		   JOIN student_teacher_relations r ON r.teacher_id=u.id
		  WHERE r.student_id=$1 AND r.status=$2
		  ORDER BY u.display_name`, studentID, RelationAccepted)
}

func (s *SQLStore) AcceptedStudents(ctx context.Context, teacherID string) ([]User, error) {
	return s.queryUsers(ctx,
		`SELECT `+prefixed("u.", userCols)+` FROM users u
		   JOIN student_teacher_relations r ON r.student_id=u.id
		  WHERE r.teacher_id=$1 AND r.status=$2
		  ORDER BY u.display_name`, teacherID, RelationAccepted)
}

func prefixed(p, cols string) string {
	parts := strings.Split(cols, ",")
	for i := range parts {
		parts[i] = p + parts[i]
	}
	return strings.Join(parts, ",")
}
