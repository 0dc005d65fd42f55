package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/xhad/fullstackgpt/internal/models"
	"github.com/xhad/fullstackgpt/internal/types"
	"github.com/xhad/fullstackgpt/pkg/pipeline"
	"github.com/xhad/fullstackgpt/pkg/research"
)

type stubQuizzes struct {
	mu      sync.Mutex
	sources []pipeline.QuizSource
	err     error
}

func (s *stubQuizzes) Quiz(_ context.Context, src pipeline.QuizSource, difficulty models.Difficulty) (pipeline.QuizResult, error) {
	s.mu.Lock()
	s.sources = append(s.sources, src)
	s.mu.Unlock()
	if s.err != nil {
		return pipeline.QuizResult{}, s.err
	}

	label := src.FileName
	if label == "" {
		label = "wikipedia:" + src.Topic
	}
	return pipeline.QuizResult{
		Source:     label,
		Difficulty: difficulty,
		Questions: []models.QuizQuestion{
			{Prompt: "Q1?", Options: []models.Option{{Text: "a", IsCorrect: true}, {Text: "b"}}},
			{Prompt: "Q2?", Options: []models.Option{{Text: "c"}, {Text: "d", IsCorrect: true}}},
		},
	}, nil
}

type stubSites struct {
	answer  models.SiteAnswer
	err     error
	sitemap string
	filters []string
}

func (s *stubSites) AskSite(_ context.Context, sitemapURL string, filters []string, _ string) (models.SiteAnswer, error) {
	s.sitemap = sitemapURL
	s.filters = filters
	return s.answer, s.err
}

type stubResearcher struct {
	err error
}

func (s *stubResearcher) Run(_ context.Context, question string, onEvent func(research.Event)) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	onEvent(research.Event{Type: research.EventStatus, Content: "Calling function: get_term"})
	onEvent(research.Event{Type: research.EventStream, Content: "Found "})
	answer := "Found " + question
	onEvent(research.Event{Type: research.EventResponse, Content: answer})
	return answer, nil
}

func newTestServer() (*Server, *stubQuizzes, *stubSites, *stubResearcher) {
	q := &stubQuizzes{}
	sites := &stubSites{answer: models.SiteAnswer{
		Text:   "**Yes**, 100 indexes.\n\nSource: https://example.com/vectorize",
		Source: "https://example.com/vectorize",
		Candidates: []models.ScoredAnswer{
			{Text: "100 indexes", Source: "https://example.com/vectorize", Score: 5},
		},
	}}
	r := &stubResearcher{}
	s := New(Config{SitemapURL: "https://example.com/sitemap.xml", Filters: []string{"/docs/"}}, q, sites, r)
	return s, q, sites, r
}

func do(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func postForm(path string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func postJSON(path string, body any) *http.Request {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) APIError {
	t.Helper()
	var apiErr APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	return apiErr
}

func createQuiz(t *testing.T, s *Server) quizResponse {
	t.Helper()
	rec := do(t, s, postForm("/api/quiz", url.Values{"topic": {"Photosynthesis"}, "difficulty": {"Hard"}}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp quizResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealth(t *testing.T) {
	s, _, _, _ := newTestServer()
	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestCreateQuizFromTopic(t *testing.T) {
	s, q, _, _ := newTestServer()

	resp := createQuiz(t, s)
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "wikipedia:Photosynthesis", resp.Source)
	assert.Equal(t, models.DifficultyHard, resp.Difficulty)
	require.Len(t, resp.Questions, 2)
	assert.Equal(t, []string{"a", "b"}, resp.Questions[0].Options)
	assert.False(t, resp.Completed)

	require.Len(t, q.sources, 1)
	assert.Equal(t, "Photosynthesis", q.sources[0].Topic)
}

func TestCreateQuizFromFile(t *testing.T) {
	s, q, _, _ := newTestServer()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("Cells have membranes."))
	require.NoError(t, err)
	require.NoError(t, w.WriteField("difficulty", "medium"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/quiz", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := do(t, s, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	require.Len(t, q.sources, 1)
	assert.Equal(t, "notes.txt", q.sources[0].FileName)
	assert.Equal(t, []byte("Cells have membranes."), q.sources[0].Content)

	var resp quizResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, models.DifficultyMedium, resp.Difficulty)
}

func TestCreateQuizFromJSON(t *testing.T) {
	s, q, _, _ := newTestServer()

	rec := do(t, s, postJSON("/api/quiz", createQuizRequest{Topic: "Mitochondria", Difficulty: "medium"}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp quizResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "wikipedia:Mitochondria", resp.Source)
	assert.Equal(t, models.DifficultyMedium, resp.Difficulty)
	require.Len(t, q.sources, 1)
	assert.Empty(t, q.sources[0].FileName)
}

func TestCreateQuizErrors(t *testing.T) {
	tests := []struct {
		name       string
		values     url.Values
		quizErr    error
		wantStatus int
		wantCode   string
	}{
		{name: "no source", values: url.Values{}, wantStatus: http.StatusBadRequest, wantCode: "BAD_REQUEST"},
		{name: "bad difficulty", values: url.Values{"topic": {"x"}, "difficulty": {"expert"}}, wantStatus: http.StatusBadRequest, wantCode: "BAD_REQUEST"},
		{name: "load error", values: url.Values{"topic": {"x"}}, quizErr: &types.LoadError{Path: "x", Err: errors.New("no pages")}, wantStatus: http.StatusBadRequest, wantCode: "LOAD_ERROR"},
		{name: "schema error", values: url.Values{"topic": {"x"}}, quizErr: types.NewSchemaError("bad json", nil), wantStatus: http.StatusUnprocessableEntity, wantCode: "SCHEMA_ERROR"},
		{name: "model error", values: url.Values{"topic": {"x"}}, quizErr: types.NewModelError("create_quiz", errors.New("401")), wantStatus: http.StatusBadGateway, wantCode: "MODEL_ERROR"},
		{name: "unexpected error", values: url.Values{"topic": {"x"}}, quizErr: errors.New("boom"), wantStatus: http.StatusInternalServerError, wantCode: "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, q, _, _ := newTestServer()
			q.err = tt.quizErr

			rec := do(t, s, postForm("/api/quiz", tt.values))
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, rec).Code)
		})
	}
}

func TestGetQuiz(t *testing.T) {
	s, _, _, _ := newTestServer()
	created := createQuiz(t, s)

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/quiz/"+created.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp quizResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, created.ID, resp.ID)
	assert.NotContains(t, rec.Body.String(), "is_correct")

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/quiz/"+created.ID+"?format=msgpack", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/msgpack", rec.Header().Get("Content-Type"))
	var packed quizResponse
	require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &packed))
	assert.Equal(t, created.ID, packed.ID)
	assert.Equal(t, created.Questions, packed.Questions)
	assert.WithinDuration(t, time.Now(), packed.CreatedAt, time.Minute)

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/quiz/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, rec).Code)
}

func TestSubmitQuiz(t *testing.T) {
	s, _, _, _ := newTestServer()
	created := createQuiz(t, s)
	path := "/api/quiz/" + created.ID + "/submit"

	rec := do(t, s, postJSON(path, submitRequest{Selections: []string{"a", "c"}}))
	require.Equal(t, http.StatusOK, rec.Code)
	var result models.GradeResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 1, result.Score)
	assert.False(t, result.Perfect)

	rec = do(t, s, postJSON(path, submitRequest{Selections: []string{"a"}}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, postJSON(path, submitRequest{Selections: []string{"a", "d"}}))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 2, result.Score)
	assert.True(t, result.Perfect)

	rec = do(t, s, postJSON(path, submitRequest{Selections: []string{"a", "d"}}))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONFLICT", decodeError(t, rec).Code)

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/quiz/"+created.ID, nil))
	var resp quizResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Completed)
	assert.Equal(t, 2, resp.Attempts)
}

func TestAskSite(t *testing.T) {
	s, _, sites, _ := newTestServer()

	rec := do(t, s, postJSON("/api/site/ask", askRequest{Question: "How many indexes?"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp askResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "https://example.com/vectorize", resp.Source)
	assert.Contains(t, resp.HTML, "<strong>Yes</strong>")
	assert.Len(t, resp.Candidates, 1)
	assert.Equal(t, "https://example.com/sitemap.xml", sites.sitemap)
	assert.Equal(t, []string{"/docs/"}, sites.filters)

	rec = do(t, s, postJSON("/api/site/ask", askRequest{Question: "q", SitemapURL: "https://other.example/sitemap.xml"}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://other.example/sitemap.xml", sites.sitemap)
	assert.Nil(t, sites.filters)

	rec = do(t, s, postJSON("/api/site/ask", askRequest{Question: "q", Filters: []string{}}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://example.com/sitemap.xml", sites.sitemap)
	assert.NotNil(t, sites.filters, "an explicit empty list is kept")
	assert.Empty(t, sites.filters)
}

func TestAskSiteErrors(t *testing.T) {
	s, _, sites, _ := newTestServer()

	rec := do(t, s, postJSON("/api/site/ask", askRequest{Question: "  "}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	sites.err = &types.FetchError{URL: "https://example.com/sitemap.xml", Err: errors.New("refused")}
	rec = do(t, s, postJSON("/api/site/ask", askRequest{Question: "q"}))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "FETCH_ERROR", decodeError(t, rec).Code)

	bare := New(Config{}, &stubQuizzes{}, &stubSites{}, &stubResearcher{})
	rec = do(t, bare, postJSON("/api/site/ask", askRequest{Question: "q"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func dialResearch(t *testing.T, s *Server) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws/research", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	return conn
}

func TestResearchWebSocket(t *testing.T) {
	s, _, _, _ := newTestServer()
	conn := dialResearch(t, s)

	require.NoError(t, conn.WriteJSON(Message{Type: MsgTypeQuery, Content: "XZ backdoor"}))

	var got []Message
	for {
		var msg Message
		require.NoError(t, conn.ReadJSON(&msg))
		got = append(got, msg)
		if msg.Type == MsgTypeResponse {
			break
		}
	}
	assert.Equal(t, []Message{
		{Type: MsgTypeStatus, Content: "Calling function: get_term"},
		{Type: MsgTypeStream, Content: "Found "},
		{Type: MsgTypeResponse, Content: "Found XZ backdoor"},
	}, got)

	require.NoError(t, conn.WriteJSON(Message{Type: "ping"}))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MsgTypeError, msg.Type)
}

func TestResearchWebSocketReportsFailure(t *testing.T) {
	s, _, _, r := newTestServer()
	r.err = types.NewModelError("research", errors.New("quota exceeded"))
	conn := dialResearch(t, s)

	require.NoError(t, conn.WriteJSON(Message{Type: MsgTypeQuery, Content: "q"}))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MsgTypeError, msg.Type)
	assert.Contains(t, msg.Content, "quota exceeded")
}
