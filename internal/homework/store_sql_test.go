package homework_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-tutoring/internal/db"
	"github.com/mind-engage/mindengage-tutoring/internal/homework"
	"github.com/mind-engage/mindengage-tutoring/internal/metrics"
	"github.com/mind-engage/mindengage-tutoring/internal/scoring"
	syncx "github.com/mind-engage/mindengage-tutoring/internal/sync"
)

type fixture struct {
	db      *sql.DB
	store   *homework.SQLStore
	events  *syncx.EventRepo
	metrics *metrics.Metrics
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dbh, err := db.Open(context.Background(), db.DriverSQLite, "file:"+filepath.Join(t.TempDir(), "homework.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = dbh.Close() })

	ev := syncx.NewEventRepo(dbh, "test")
	m := metrics.New(nil)
	return fixture{
		db:      dbh,
		store:   homework.NewSQLStore(dbh, homework.WithEvents(ev), homework.WithMetrics(m)),
		events:  ev,
		metrics: m,
	}
}

const quizSchema = `{
	"q1": {"type": "mcq", "answer": "B", "options": ["A", "B", "C"]},
	"q2": {"type": "numeric", "answer": 10, "tolerance": 0.5},
	"q3": {"type": "short", "answer": "photosynthesis", "keywords": ["light", "energy", "plants"]},
	"q4": {"type": "checkbox", "answer": ["a", "b", "c"]}
}`

func createQuiz(t *testing.T, s *homework.SQLStore) homework.Assignment {
	t.Helper()
	schema, err := scoring.ParseSchema([]byte(quizSchema))
	require.NoError(t, err)
	a, err := s.CreateAssignment(context.Background(), "t1", homework.NewAssignment{
		Title: "Week 3", ClassID: "c1", AnswerSchema: schema,
	})
	require.NoError(t, err)
	return a
}

func answers(js string) map[string]any {
	var m map[string]any
	if err := json.Unmarshal([]byte(js), &m); err != nil {
		panic(err)
	}
	return m
}

func TestCreateAssignment_Defaults(t *testing.T) {
	f := newFixture(t)
	a := createQuiz(t, f.store)
	assert.Equal(t, homework.KindHomework, a.Kind)
	assert.Equal(t, 4, a.QuestionCount)
	assert.True(t, a.ResultsVisible)

	got, err := f.store.GetAssignment(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.AnswerSchema, got.AnswerSchema)
	assert.Empty(t, got.QuestionFiles)

	_, err = f.store.CreateAssignment(context.Background(), "t1", homework.NewAssignment{Title: "x", ClassID: "c1"})
	assert.ErrorIs(t, err, scoring.ErrMalformedSchema)
}

func TestSaveAnswers_DraftThenSubmit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := createQuiz(t, f.store)

	draft, err := f.store.SaveAnswers(ctx, a.ID, "s1", answers(`{"q1":"B"}`), false)
	require.NoError(t, err)
	assert.False(t, draft.Submitted())
	assert.Nil(t, draft.Score)
	assert.Equal(t, 4.0, draft.MaxScore)

	sub, err := f.store.SaveAnswers(ctx, a.ID, "s1",
		answers(`{"q1":"B","q2":"10.4","q3":"plants use light energy","q4":["a","b"]}`), true)
	require.NoError(t, err)
	assert.Equal(t, draft.ID, sub.ID, "one submission per student and assignment")
	require.NotNil(t, sub.Score)
	assert.InDelta(t, 3.3, *sub.Score, 1e-9)
	require.NotNil(t, sub.Feedback)
	assert.Equal(t, scoring.FeedbackVeryGood, *sub.Feedback)

	stored, err := f.store.GetStudentSubmission(ctx, a.ID, "s1")
	require.NoError(t, err)
	assert.Equal(t, sub.Score, stored.Score)
	assert.True(t, stored.Submitted())

	evs, err := f.events.Since(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, syncx.TypeSubmissionGraded, evs[0].Type)
	assert.Equal(t, sub.ID, evs[0].Key)
	assert.JSONEq(t, `{"score":3.3,"max_score":4,"grade_level":"B"}`, evs[0].DataJSON)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Graded.WithLabelValues("submit")))
}

func TestSaveAnswers_ResubmitRegrades(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := createQuiz(t, f.store)

	first, err := f.store.SaveAnswers(ctx, a.ID, "s1", answers(`{"q1":"A"}`), true)
	require.NoError(t, err)
	assert.Equal(t, 0.0, *first.Score)

	second, err := f.store.SaveAnswers(ctx, a.ID, "s1", answers(`{"q1":"B","q2":10}`), true)
	require.NoError(t, err)
	assert.Equal(t, 2.0, *second.Score)

	reopened, err := f.store.SaveAnswers(ctx, a.ID, "s1", answers(`{"q1":"B"}`), false)
	require.NoError(t, err)
	assert.Nil(t, reopened.Score)
	assert.False(t, reopened.Submitted())
}

func TestSaveAnswers_ConcurrentFirstSubmit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := createQuiz(t, f.store)

	const n = 8
	ids := make([]string, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub, err := f.store.SaveAnswers(ctx, a.ID, "s1", answers(`{"q1":"B"}`), true)
			ids[i], errs[i] = sub.ID, err
		}()
	}
	wg.Wait()

	for i := range n {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	subs, err := f.store.ListAssignmentSubmissions(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, ids[0], subs[0].ID)
	assert.Equal(t, 1.0, *subs[0].Score)
}

func TestSaveAnswers_KeepsStoredRowIdentity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := createQuiz(t, f.store)

	// a row another request committed first, hidden from the student by the teacher
	_, err := f.db.ExecContext(ctx,
		`INSERT INTO submissions (id,assignment_id,student_id,answers_json,score,max_score,feedback,started_at,submitted_at,visible_to_student)
		 VALUES ('sub-race',$1,'s1','{}',NULL,4,NULL,5,NULL,0)`, a.ID)
	require.NoError(t, err)

	got, err := f.store.SaveAnswers(ctx, a.ID, "s1", answers(`{"q1":"B","q2":10}`), true)
	require.NoError(t, err)
	assert.Equal(t, "sub-race", got.ID)
	assert.Equal(t, int64(5), got.StartedAt)
	assert.False(t, got.VisibleToStudent)
	assert.Equal(t, 2.0, *got.Score)

	stored, err := f.store.GetSubmission(ctx, "sub-race")
	require.NoError(t, err)
	assert.Equal(t, 2.0, *stored.Score)
	assert.Equal(t, map[string]any{"q1": "B", "q2": 10.0}, stored.Answers)
}

func TestSaveAnswers_UnknownAssignment(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.SaveAnswers(context.Background(), "nope", "s1", nil, true)
	assert.True(t, errors.Is(err, homework.ErrNotFound))
}

func TestListAssignmentSubmissions_GradesLazily(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := createQuiz(t, f.store)

	// a submitted row persisted without a score, as left by an interrupted grader
	_, err := f.db.ExecContext(ctx,
		`INSERT INTO submissions (id,assignment_id,student_id,answers_json,score,max_score,feedback,started_at,submitted_at,visible_to_student)
		 VALUES ('sub-x',$1,'s2','{"q1":"B","q4":["a","d"]}',NULL,4,NULL,1,2,1)`, a.ID)
	require.NoError(t, err)
	_, err = f.store.SaveAnswers(ctx, a.ID, "s3", answers(`{"q1":"C"}`), false)
	require.NoError(t, err)

	subs, err := f.store.ListAssignmentSubmissions(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, subs, 2)

	byStudent := map[string]homework.Submission{}
	for _, s := range subs {
		byStudent[s.StudentID] = s
	}
	require.NotNil(t, byStudent["s2"].Score)
	assert.Equal(t, 1.0, *byStudent["s2"].Score)
	assert.Equal(t, scoring.FeedbackNeedsStudy, *byStudent["s2"].Feedback)
	assert.Nil(t, byStudent["s3"].Score, "drafts stay ungraded")

	again, err := f.store.ListAssignmentSubmissions(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, again, 2)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Graded.WithLabelValues("lazy")), "grading is persisted once")
}

func TestListAssignmentSubmissions_LazyGradeRefreshesMaxScore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := createQuiz(t, f.store)

	// max_score recorded before the schema shrank from seven questions to four
	_, err := f.db.ExecContext(ctx,
		`INSERT INTO submissions (id,assignment_id,student_id,answers_json,score,max_score,feedback,started_at,submitted_at,visible_to_student)
		 VALUES ('sub-old',$1,'s2','{"q1":"B","q2":10}',NULL,7,NULL,1,2,1)`, a.ID)
	require.NoError(t, err)

	subs, err := f.store.ListAssignmentSubmissions(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, 4.0, subs[0].MaxScore)
	assert.Equal(t, scoring.FeedbackAverage, *subs[0].Feedback)

	stored, err := f.store.GetSubmission(ctx, "sub-old")
	require.NoError(t, err)
	assert.Equal(t, 4.0, stored.MaxScore)
	assert.Equal(t, 2.0, *stored.Score)

	evs, err := f.events.Since(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.JSONEq(t, `{"score":2,"max_score":4,"grade_level":"F"}`, evs[0].DataJSON)
}

func TestUpdateSubmissionAndRegrade(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := createQuiz(t, f.store)

	sub, err := f.store.SaveAnswers(ctx, a.ID, "s1", answers(`{"q1":"B","q3":"Photosynthesis"}`), true)
	require.NoError(t, err)
	assert.Equal(t, 2.0, *sub.Score)

	score, note, hidden := 3.5, "nice work", false
	upd, err := f.store.UpdateSubmission(ctx, sub.ID, homework.SubmissionPatch{
		Score: &score, Feedback: &note, VisibleToStudent: &hidden,
	})
	require.NoError(t, err)
	assert.Equal(t, 3.5, *upd.Score)
	assert.False(t, upd.VisibleToStudent)

	re, breakdown, err := f.store.Regrade(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, 2.0, *re.Score)
	assert.Equal(t, []string{"q1", "q3"}, breakdown.IDs())
	assert.Equal(t, scoring.FeedbackExcellent, breakdown["q3"].Feedback)
	assert.False(t, re.VisibleToStudent, "regrade keeps visibility")

	draft, err := f.store.SaveAnswers(ctx, a.ID, "s9", nil, false)
	require.NoError(t, err)
	_, _, err = f.store.Regrade(ctx, draft.ID)
	assert.ErrorIs(t, err, homework.ErrNotSubmitted)
}

func TestUpdateAssignment_TypeIsFixed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := createQuiz(t, f.store)

	changed, err := scoring.ParseSchema([]byte(`{"q1":{"type":"short","answer":"B"}}`))
	require.NoError(t, err)
	_, err = f.store.UpdateAssignment(ctx, a.ID, homework.AssignmentPatch{AnswerSchema: changed})
	var se *scoring.SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "q1", se.QuestionID)

	hidden := false
	title := "Week 3 (revised)"
	got, err := f.store.UpdateAssignment(ctx, a.ID, homework.AssignmentPatch{Title: &title, ResultsVisible: &hidden})
	require.NoError(t, err)
	assert.Equal(t, title, got.Title)
	assert.False(t, got.ResultsVisible)

	withFiles, err := f.store.SetAssignmentFiles(ctx, a.ID, []homework.FileRef{{Name: "sheet.pdf", URL: "https://files.test/sheet.pdf"}})
	require.NoError(t, err)
	require.Len(t, withFiles.QuestionFiles, 1)

	require.NoError(t, f.store.DeleteAssignment(ctx, a.ID))
	_, err = f.store.GetAssignment(ctx, a.ID)
	assert.ErrorIs(t, err, homework.ErrNotFound)
}

func TestLessons_OrderedByDateDesc(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	base := time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC).Unix()

	for i, topic := range []string{"fractions", "decimals", "percentages"} {
		_, err := f.store.CreateLesson(ctx, "t1", homework.NewLesson{
			StudentID: "s1", LessonDate: base + int64(i)*86400, DurationMinutes: 45, Topic: topic,
		})
		require.NoError(t, err)
	}

	ls, err := f.store.ListStudentLessons(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, ls, 3)
	assert.Equal(t, "percentages", ls[0].Topic)
	assert.Equal(t, "fractions", ls[2].Topic)

	perf := "good"
	upd, err := f.store.UpdateLesson(ctx, ls[0].ID, homework.LessonPatch{StudentPerformance: &perf})
	require.NoError(t, err)
	assert.Equal(t, "good", upd.StudentPerformance)

	require.NoError(t, f.store.DeleteLesson(ctx, ls[0].ID))
	assert.ErrorIs(t, f.store.DeleteLesson(ctx, ls[0].ID), homework.ErrNotFound)
}

func TestIndividual_Complete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	ia, err := f.store.CreateIndividual(ctx, "t1", homework.NewIndividual{Title: "Essay", StudentID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, homework.StatusAssigned, ia.Status)
	assert.Equal(t, 100.0, ia.MaxScore)

	done, err := f.store.CompleteIndividual(ctx, ia.ID, 85, "well argued")
	require.NoError(t, err)
	assert.Equal(t, homework.StatusCompleted, done.Status)
	require.NotNil(t, done.CompletedAt)

	list, err := f.store.ListStudentIndividuals(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 85.0, *list[0].Score)
	assert.Equal(t, "well argued", *list[0].Feedback)

	_, err = f.store.CompleteIndividual(ctx, "missing", 1, "")
	assert.ErrorIs(t, err, homework.ErrNotFound)
}
