package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	api "github.com/mind-engage/mindengage-tutoring/internal/api/http"
	auth "github.com/mind-engage/mindengage-tutoring/internal/auth/middleware"
	"github.com/mind-engage/mindengage-tutoring/internal/classroom"
	"github.com/mind-engage/mindengage-tutoring/internal/db"
	"github.com/mind-engage/mindengage-tutoring/internal/games"
	"github.com/mind-engage/mindengage-tutoring/internal/homework"
	"github.com/mind-engage/mindengage-tutoring/internal/scoring"
	syncx "github.com/mind-engage/mindengage-tutoring/internal/sync"
)

const quizSchema = `{
	"q1": {"type": "mcq", "answer": "B", "options": ["A", "B", "C"]},
	"q2": {"type": "numeric", "answer": 10, "tolerance": 0.5},
	"q3": {"type": "short", "answer": "photosynthesis", "keywords": ["light", "energy", "plants"]},
	"q4": {"type": "checkbox", "answer": ["a", "b", "c"]}
}`

type env struct {
	srv    *httptest.Server
	authn  *auth.AuthService
	roster *classroom.SQLStore
}

func newEnv(t *testing.T, submitsPerMinute int) env {
	t.Helper()
	ctx := context.Background()
	dbh, err := db.Open(ctx, db.DriverSQLite, "file:"+filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = dbh.Close() })

	roster := classroom.NewSQLStore(dbh, nil)
	for _, u := range []classroom.NewUser{
		{ID: "t1", Role: classroom.RoleTeacher, DisplayName: "Ms Rivera", Email: "t1@school.test"},
		{ID: "t2", Role: classroom.RoleTeacher, DisplayName: "Mr Okafor", Email: "t2@school.test"},
		{ID: "s1", Role: classroom.RoleStudent, DisplayName: "Ana", Email: "s1@school.test"},
		{ID: "s2", Role: classroom.RoleStudent, DisplayName: "Ben", Email: "s2@school.test"},
	} {
		_, err := roster.CreateUser(ctx, u)
		require.NoError(t, err)
	}

	authn := auth.NewAuthService("test-secret")
	events := syncx.NewEventRepo(dbh, "test")
	r := chi.NewRouter()
	api.Mount(r, api.Deps{
		Roster:        roster,
		Homework:      homework.NewSQLStore(dbh, homework.WithEvents(events)),
		Games:         games.NewStore(dbh),
		Generator:     games.NewGenerator(rand.New(rand.NewPCG(7, 7))),
		Events:        events,
		Auth:          authn,
		SubmitLimiter: api.NewSubjectLimiter(submitsPerMinute),
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return env{srv: srv, authn: authn, roster: roster}
}

func (e env) token(t *testing.T, sub, role string) string {
	t.Helper()
	tok, err := e.authn.IssueJWT(sub, role)
	require.NoError(t, err)
	return tok
}

// call sends body as JSON and decodes the response into out when non-nil.
func (e env) call(t *testing.T, method, path, token string, body any, out any) int {
	t.Helper()
	var rd io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			rd = bytes.NewBufferString(b)
		default:
			js, err := json.Marshal(b)
			require.NoError(t, err)
			rd = bytes.NewReader(js)
		}
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

type classResp struct {
	ID         string   `json:"id"`
	StudentIDs []string `json:"student_ids"`
}

func (e env) setupQuiz(t *testing.T, visible bool) (classID, assignmentID string) {
	t.Helper()
	teacher := e.token(t, "t1", "teacher")

	var c classResp
	code := e.call(t, http.MethodPost, "/api/teacher/classes", teacher,
		map[string]any{"name": "4B", "grade": 4, "student_ids": []string{"s1"}}, &c)
	require.Equal(t, http.StatusCreated, code)

	var a struct {
		ID string `json:"id"`
	}
	body := `{"title":"Week 3","class_id":"` + c.ID + `","answer_schema":` + quizSchema
	if visible {
		body += `,"results_visible_to_students":true`
	}
	body += `}`
	code = e.call(t, http.MethodPost, "/api/teacher/assignments", teacher, body, &a)
	require.Equal(t, http.StatusCreated, code)
	return c.ID, a.ID
}

const goodAnswers = `{"answers":{"q1":"B","q2":"10.4","q3":"plants use light energy","q4":["a","b"]}}`

type submissionResp struct {
	ID          string   `json:"id"`
	StudentID   string   `json:"student_id"`
	Score       *float64 `json:"score"`
	MaxScore    float64  `json:"max_score"`
	Feedback    *string  `json:"feedback"`
	SubmittedAt *int64   `json:"submitted_at"`
	Percentage  *float64 `json:"percentage"`
	GradeLevel  string   `json:"grade_level"`
}

func TestSubmitFlow_HiddenResults(t *testing.T) {
	e := newEnv(t, 0)
	_, aID := e.setupQuiz(t, false)
	student := e.token(t, "s1", "student")

	var list []map[string]any
	require.Equal(t, http.StatusOK, e.call(t, http.MethodGet, "/api/student/assignments", student, nil, &list))
	require.Len(t, list, 1)
	qs := list[0]["questions"].(map[string]any)
	assert.Equal(t, map[string]any{"type": "mcq", "options": []any{"A", "B", "C"}}, qs["q1"])
	assert.NotContains(t, list[0], "answer_schema")

	var sub submissionResp
	require.Equal(t, http.StatusOK,
		e.call(t, http.MethodPost, "/api/student/assignments/"+aID+"/submit", student, goodAnswers, &sub))
	require.NotNil(t, sub.Score)
	assert.InDelta(t, 3.3, *sub.Score, 1e-9)
	assert.Equal(t, 4.0, sub.MaxScore)
	assert.Nil(t, sub.Feedback, "feedback stays hidden until results are released")
	assert.Equal(t, "B", sub.GradeLevel)

	var detail struct {
		Submission *submissionResp `json:"submission"`
	}
	require.Equal(t, http.StatusOK, e.call(t, http.MethodGet, "/api/student/assignments/"+aID, student, nil, &detail))
	require.NotNil(t, detail.Submission)
	assert.Nil(t, detail.Submission.Score)
	assert.NotNil(t, detail.Submission.SubmittedAt)

	var teacherView []submissionResp
	teacher := e.token(t, "t1", "teacher")
	require.Equal(t, http.StatusOK,
		e.call(t, http.MethodGet, "/api/teacher/assignments/"+aID+"/submissions", teacher, nil, &teacherView))
	require.Len(t, teacherView, 1)
	require.NotNil(t, teacherView[0].Feedback)
	assert.Equal(t, scoring.FeedbackVeryGood, *teacherView[0].Feedback)
	require.NotNil(t, teacherView[0].Percentage)
	assert.InDelta(t, 82.5, *teacherView[0].Percentage, 1e-9)
}

func TestSubmitFlow_VisibleResultsAndDraft(t *testing.T) {
	e := newEnv(t, 0)
	_, aID := e.setupQuiz(t, true)
	student := e.token(t, "s1", "student")

	var draft submissionResp
	require.Equal(t, http.StatusOK, e.call(t, http.MethodPost, "/api/student/assignments/"+aID+"/submit", student,
		`{"answers":{"q1":"B"},"submit":false}`, &draft))
	assert.Nil(t, draft.Score)
	assert.Nil(t, draft.SubmittedAt)

	var mine []submissionResp
	require.Equal(t, http.StatusOK, e.call(t, http.MethodGet, "/api/student/submissions", student, nil, &mine))
	assert.Empty(t, mine, "drafts are not listed")

	var sub submissionResp
	require.Equal(t, http.StatusOK,
		e.call(t, http.MethodPost, "/api/student/assignments/"+aID+"/submit", student, goodAnswers, &sub))
	require.NotNil(t, sub.Feedback)
	assert.Equal(t, scoring.FeedbackVeryGood, *sub.Feedback)
	assert.Equal(t, draft.ID, sub.ID)

	require.Equal(t, http.StatusOK, e.call(t, http.MethodGet, "/api/student/submissions", student, nil, &mine))
	require.Len(t, mine, 1)
	assert.Equal(t, "B", mine[0].GradeLevel)
}

func TestTeacherOverrideAndRegrade(t *testing.T) {
	e := newEnv(t, 0)
	_, aID := e.setupQuiz(t, true)
	student := e.token(t, "s1", "student")
	teacher := e.token(t, "t1", "teacher")

	var sub submissionResp
	require.Equal(t, http.StatusOK,
		e.call(t, http.MethodPost, "/api/student/assignments/"+aID+"/submit", student, goodAnswers, &sub))

	var patched submissionResp
	require.Equal(t, http.StatusOK, e.call(t, http.MethodPatch, "/api/teacher/submissions/"+sub.ID, teacher,
		`{"score":4,"feedback":"full marks for working"}`, &patched))
	assert.Equal(t, 4.0, *patched.Score)
	assert.Equal(t, "A", patched.GradeLevel)

	assert.Equal(t, http.StatusBadRequest, e.call(t, http.MethodPatch, "/api/teacher/submissions/"+sub.ID, teacher,
		`{"score":9}`, nil))

	var regraded struct {
		Submission submissionResp             `json:"submission"`
		Breakdown  map[string]json.RawMessage `json:"breakdown"`
	}
	require.Equal(t, http.StatusOK,
		e.call(t, http.MethodPost, "/api/teacher/submissions/"+sub.ID+"/regrade", teacher, nil, &regraded))
	assert.InDelta(t, 3.3, *regraded.Submission.Score, 1e-9)
	assert.Len(t, regraded.Breakdown, 4)
}

func TestOwnershipAndRoles(t *testing.T) {
	e := newEnv(t, 0)
	classID, aID := e.setupQuiz(t, true)
	other := e.token(t, "t2", "teacher")
	outsider := e.token(t, "s2", "student")
	admin := e.token(t, "root", "admin")

	assert.Equal(t, http.StatusForbidden, e.call(t, http.MethodGet, "/api/teacher/classes/"+classID, other, nil, nil))
	assert.Equal(t, http.StatusForbidden, e.call(t, http.MethodGet, "/api/teacher/assignments/"+aID+"/submissions", other, nil, nil))
	assert.Equal(t, http.StatusOK, e.call(t, http.MethodGet, "/api/teacher/classes/"+classID, admin, nil, nil))

	assert.Equal(t, http.StatusForbidden, e.call(t, http.MethodGet, "/api/student/assignments/"+aID, outsider, nil, nil))
	assert.Equal(t, http.StatusForbidden, e.call(t, http.MethodGet, "/api/teacher/classes", outsider, nil, nil),
		"students cannot reach teacher routes")

	// the stored role wins over the token's claim
	forged := e.token(t, "s2", "teacher")
	assert.Equal(t, http.StatusForbidden, e.call(t, http.MethodGet, "/api/teacher/classes", forged, nil, nil))

	assert.Equal(t, http.StatusUnauthorized, e.call(t, http.MethodGet, "/api/teacher/classes", "", nil, nil))
	assert.Equal(t, http.StatusNotFound, e.call(t, http.MethodGet, "/api/teacher/classes/missing", other, nil, nil))
}

func TestCreateAssignment_RejectsMalformedSchema(t *testing.T) {
	e := newEnv(t, 0)
	classID, _ := e.setupQuiz(t, false)
	teacher := e.token(t, "t1", "teacher")

	var out map[string]any
	code := e.call(t, http.MethodPost, "/api/teacher/assignments", teacher,
		`{"title":"Bad","class_id":"`+classID+`","answer_schema":{"q1":{"type":"essay","answer":"x"}}}`, &out)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, out["error"], "q1")

	code = e.call(t, http.MethodPost, "/api/teacher/assignments", teacher, `{"class_id":"`+classID+`"}`, &out)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, out["fields"], "title")
}

func TestTeacherRequests(t *testing.T) {
	e := newEnv(t, 0)
	student := e.token(t, "s2", "student")
	teacher := e.token(t, "t1", "teacher")

	var rel classroom.Relation
	require.Equal(t, http.StatusCreated, e.call(t, http.MethodPost, "/api/student/teachers/t1/request", student, nil, &rel))
	assert.Equal(t, classroom.RelationPending, rel.Status)
	assert.Equal(t, http.StatusConflict, e.call(t, http.MethodPost, "/api/student/teachers/t1/request", student, nil, nil))
	assert.Equal(t, http.StatusNotFound, e.call(t, http.MethodPost, "/api/student/teachers/s1/request", student, nil, nil))

	var pending []classroom.Relation
	require.Equal(t, http.StatusOK, e.call(t, http.MethodGet, "/api/student/pending-requests", student, nil, &pending))
	require.Len(t, pending, 1)

	// another teacher cannot accept it
	assert.Equal(t, http.StatusNotFound,
		e.call(t, http.MethodPost, "/api/teacher/relations/"+rel.ID+"/accept", e.token(t, "t2", "teacher"), nil, nil))
	require.Equal(t, http.StatusOK, e.call(t, http.MethodPost, "/api/teacher/relations/"+rel.ID+"/accept", teacher, nil, &rel))
	assert.Equal(t, classroom.RelationAccepted, rel.Status)

	var mine []classroom.User
	require.Equal(t, http.StatusOK, e.call(t, http.MethodGet, "/api/student/my-teachers", student, nil, &mine))
	require.Len(t, mine, 1)
	assert.Equal(t, "t1", mine[0].ID)
}

func TestSubmitRateLimit(t *testing.T) {
	e := newEnv(t, 1)
	_, aID := e.setupQuiz(t, true)
	student := e.token(t, "s1", "student")

	assert.Equal(t, http.StatusOK, e.call(t, http.MethodPost, "/api/student/assignments/"+aID+"/submit", student, goodAnswers, nil))

	req, err := http.NewRequest(http.MethodPost, e.srv.URL+"/api/student/assignments/"+aID+"/submit",
		bytes.NewBufferString(goodAnswers))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+student)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
}

func TestLessonsAndIndividualWork(t *testing.T) {
	e := newEnv(t, 0)
	teacher := e.token(t, "t1", "teacher")

	var l homework.Lesson
	require.Equal(t, http.StatusCreated, e.call(t, http.MethodPost, "/api/teacher/lessons", teacher,
		map[string]any{"student_id": "s1", "lesson_date": 1760000000, "duration_minutes": 45, "topic": "Fractions"}, &l))
	assert.Equal(t, "t1", l.TeacherID)

	assert.Equal(t, http.StatusOK, e.call(t, http.MethodGet, "/api/student/lessons/"+l.ID, e.token(t, "s1", "student"), nil, nil))
	assert.Equal(t, http.StatusForbidden, e.call(t, http.MethodGet, "/api/student/lessons/"+l.ID, e.token(t, "s2", "student"), nil, nil))

	var ia homework.Individual
	require.Equal(t, http.StatusCreated, e.call(t, http.MethodPost, "/api/teacher/individual-assignments", teacher,
		map[string]any{"title": "Essay", "student_id": "s1"}, &ia))
	assert.Equal(t, 100.0, ia.MaxScore)
	assert.Equal(t, homework.StatusAssigned, ia.Status)

	require.Equal(t, http.StatusOK, e.call(t, http.MethodPost, "/api/teacher/individual-assignments/"+ia.ID+"/complete", teacher,
		map[string]any{"score": 88, "feedback": "clear structure"}, &ia))
	assert.Equal(t, homework.StatusCompleted, ia.Status)
	assert.Equal(t, 88.0, *ia.Score)

	assert.Equal(t, http.StatusBadRequest, e.call(t, http.MethodPost, "/api/teacher/individual-assignments/"+ia.ID+"/complete", teacher,
		map[string]any{"feedback": "no score"}, nil))
}

func TestGames(t *testing.T) {
	e := newEnv(t, 0)

	var avail struct {
		Games []games.Game `json:"games"`
	}
	require.Equal(t, http.StatusOK, e.call(t, http.MethodGet, "/api/games/available", "", nil, &avail))
	assert.Len(t, avail.Games, 3)

	var tt struct {
		Questions []games.TimesTableQuestion `json:"questions"`
	}
	require.Equal(t, http.StatusOK, e.call(t, http.MethodGet, "/api/games/times-table-sprint/questions?difficulty=easy", "", nil, &tt))
	assert.Len(t, tt.Questions, 10)

	body := map[string]any{"game_name": games.GameFractions, "score": 2, "max_score": 3, "time_taken": 40}
	assert.Equal(t, http.StatusUnauthorized, e.call(t, http.MethodPost, "/api/games/submit-result", "", body, nil))

	var res games.Result
	student := e.token(t, "s1", "student")
	require.Equal(t, http.StatusCreated, e.call(t, http.MethodPost, "/api/games/submit-result", student, body, &res))
	assert.Equal(t, "s1", res.StudentID)
	assert.InDelta(t, 66.7, res.Percentage, 1e-9)
	assert.Equal(t, "D", res.GradeLevel)

	body["game_name"] = "chess"
	assert.Equal(t, http.StatusBadRequest, e.call(t, http.MethodPost, "/api/games/submit-result", student, body, nil))
}

func TestEventsFeed(t *testing.T) {
	e := newEnv(t, 0)
	_, aID := e.setupQuiz(t, true)
	student := e.token(t, "s1", "student")

	var sub submissionResp
	require.Equal(t, http.StatusOK,
		e.call(t, http.MethodPost, "/api/student/assignments/"+aID+"/submit", student, goodAnswers, &sub))

	assert.Equal(t, http.StatusForbidden, e.call(t, http.MethodGet, "/api/events", student, nil, nil))

	var feed struct {
		Events []syncx.Event `json:"events"`
		Next   int64         `json:"next"`
	}
	admin := e.token(t, "root", "admin")
	require.Equal(t, http.StatusOK, e.call(t, http.MethodGet, "/api/events?after=0", admin, nil, &feed))
	require.Len(t, feed.Events, 1)
	assert.Equal(t, syncx.TypeSubmissionGraded, feed.Events[0].Type)
	assert.Equal(t, sub.ID, feed.Events[0].Key)
	assert.Equal(t, feed.Events[0].Offset, feed.Next)

	require.Equal(t, http.StatusOK, e.call(t, http.MethodGet, "/api/events?after=1000", admin, nil, &feed))
	assert.Empty(t, feed.Events)
	assert.Equal(t, http.StatusBadRequest, e.call(t, http.MethodGet, "/api/events?after=x", admin, nil, nil))
}
