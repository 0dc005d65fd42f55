// Package server exposes the quiz, site and research flows over HTTP and a websocket.
package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/xhad/fullstackgpt/internal/models"
	"github.com/xhad/fullstackgpt/pkg/pipeline"
	"github.com/xhad/fullstackgpt/pkg/quiz"
	"github.com/xhad/fullstackgpt/pkg/research"
	"github.com/yuin/goldmark"
)

const maxUploadBytes = 32 << 20

type QuizService interface {
	Quiz(ctx context.Context, src pipeline.QuizSource, difficulty models.Difficulty) (pipeline.QuizResult, error)
}

type SiteService interface {
	AskSite(ctx context.Context, sitemapURL string, filters []string, question string) (models.SiteAnswer, error)
}

type Researcher interface {
	Run(ctx context.Context, question string, onEvent func(research.Event)) (string, error)
}

type Config struct {
	// SitemapURL and Filters apply when a site question names no sitemap.
	SitemapURL     string
	Filters        []string
	RequestLogging bool
}

// Server owns the echo router and the quiz attempts created through it.
type Server struct {
	config    Config
	quizzes   QuizService
	sites     SiteService
	assistant Researcher
	upgrader  websocket.Upgrader
	echo      *echo.Echo

	mu       sync.RWMutex
	attempts map[string]*quizSession
}

type quizSession struct {
	result  pipeline.QuizResult
	attempt *quiz.Attempt
	created time.Time
}

func New(config Config, quizzes QuizService, sites SiteService, assistant Researcher) *Server {
	s := &Server{
		config:    config,
		quizzes:   quizzes,
		sites:     sites,
		assistant: assistant,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Be careful with this in production
			},
		},
		attempts: make(map[string]*quizSession),
	}
	s.echo = s.routes()
	return s
}

// NewFromServices builds a server over a fully wired pipeline.
func NewFromServices(config Config, svc *pipeline.Services) *Server {
	return New(config, svc.Pipeline, svc.Pipeline, svc.Assistant)
}

func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) routes() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = ErrorHandler

	if s.config.RequestLogging {
		e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
			Skipper: func(c echo.Context) bool {
				return c.Request().URL.Path == "/health"
			},
		}))
	}
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("32M"))

	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})

	api := e.Group("/api")
	api.POST("/quiz", s.handleCreateQuiz)
	api.GET("/quiz/:id", s.handleGetQuiz)
	api.POST("/quiz/:id/submit", s.handleSubmitQuiz)
	api.POST("/site/ask", s.handleAskSite)

	e.GET("/ws/research", s.handleResearch)
	return e
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting server on %s", addr)
		errCh <- s.echo.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.echo.Shutdown(shutdownCtx)
	}
}

type quizResponse struct {
	ID         string                `json:"id" msgpack:"id"`
	Source     string                `json:"source" msgpack:"source"`
	Difficulty models.Difficulty     `json:"difficulty" msgpack:"difficulty"`
	Questions  []quiz.PublicQuestion `json:"questions" msgpack:"questions"`
	Completed  bool                  `json:"completed" msgpack:"completed"`
	Attempts   int                   `json:"attempts" msgpack:"attempts"`
	CreatedAt  time.Time             `json:"created_at" msgpack:"created_at"`
}

type createQuizRequest struct {
	Topic      string `json:"topic" form:"topic"`
	Difficulty string `json:"difficulty" form:"difficulty"`
}

func (s *Server) handleCreateQuiz(c echo.Context) error {
	var req createQuizRequest
	if err := c.Bind(&req); err != nil {
		return newBadRequest("invalid request body", err)
	}

	difficulty := models.DifficultyEasy
	if req.Difficulty != "" {
		parsed, err := models.ParseDifficulty(req.Difficulty)
		if err != nil {
			return newBadRequest("invalid difficulty", err)
		}
		difficulty = parsed
	}

	src := pipeline.QuizSource{Topic: req.Topic}
	if fh, err := c.FormFile("file"); err == nil {
		f, err := fh.Open()
		if err != nil {
			return newBadRequest("could not read upload", err)
		}
		defer f.Close()

		content, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
		if err != nil {
			return newBadRequest("could not read upload", err)
		}
		src.FileName = fh.Filename
		src.Content = content
	} else if !errors.Is(err, http.ErrMissingFile) && !errors.Is(err, http.ErrNotMultipart) {
		return newBadRequest("invalid upload", err)
	}

	if src.FileName == "" && strings.TrimSpace(src.Topic) == "" {
		return newBadRequest("a file or a topic is required", nil)
	}

	result, err := s.quizzes.Quiz(c.Request().Context(), src, difficulty)
	if err != nil {
		return err
	}

	id := uuid.New().String()
	session := &quizSession{result: result, attempt: quiz.NewAttempt(result.Questions), created: time.Now()}

	s.mu.Lock()
	s.attempts[id] = session
	s.mu.Unlock()

	log.Printf("Created quiz %s from %s (%s)", id, result.Source, difficulty)
	return c.JSON(http.StatusCreated, session.response(id))
}

func (q *quizSession) response(id string) quizResponse {
	return quizResponse{
		ID:         id,
		Source:     q.result.Source,
		Difficulty: q.result.Difficulty,
		Questions:  quiz.Public(q.result.Questions),
		Completed:  q.attempt.Completed(),
		Attempts:   q.attempt.Attempts(),
		CreatedAt:  q.created,
	}
}

func (s *Server) session(id string) (*quizSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.attempts[id]
	if !ok {
		return nil, newNotFound("quiz", id)
	}
	return session, nil
}

func (s *Server) handleGetQuiz(c echo.Context) error {
	id := c.Param("id")
	session, err := s.session(id)
	if err != nil {
		return err
	}

	resp := session.response(id)
	if c.QueryParam("format") == "msgpack" {
		data, err := msgpack.Marshal(resp)
		if err != nil {
			return err
		}
		return c.Blob(http.StatusOK, "application/msgpack", data)
	}
	return c.JSON(http.StatusOK, resp)
}

type submitRequest struct {
	Selections []string `json:"selections"`
}

func (s *Server) handleSubmitQuiz(c echo.Context) error {
	session, err := s.session(c.Param("id"))
	if err != nil {
		return err
	}

	var req submitRequest
	if err := c.Bind(&req); err != nil {
		return newBadRequest("invalid request body", err)
	}

	result, err := session.attempt.Submit(req.Selections)
	switch {
	case errors.Is(err, quiz.ErrQuizCompleted):
		return newConflict(err.Error())
	case errors.Is(err, quiz.ErrSelectionCount):
		return newBadRequest("wrong number of selections", err)
	case err != nil:
		return err
	}
	return c.JSON(http.StatusOK, result)
}

type askRequest struct {
	Question   string   `json:"question"`
	SitemapURL string   `json:"sitemap_url"`
	Filters    []string `json:"filters"`
}

type askResponse struct {
	Answer     string                `json:"answer"`
	HTML       string                `json:"html"`
	Source     string                `json:"source"`
	Candidates []models.ScoredAnswer `json:"candidates"`
}

func (s *Server) handleAskSite(c echo.Context) error {
	var req askRequest
	if err := c.Bind(&req); err != nil {
		return newBadRequest("invalid request body", err)
	}
	if strings.TrimSpace(req.Question) == "" {
		return newBadRequest("question is required", nil)
	}

	sitemapURL := req.SitemapURL
	filters := req.Filters
	if sitemapURL == "" {
		sitemapURL = s.config.SitemapURL
		if filters == nil {
			filters = s.config.Filters
		}
	}
	if sitemapURL == "" {
		return newBadRequest("sitemap_url is required", nil)
	}

	answer, err := s.sites.AskSite(c.Request().Context(), sitemapURL, filters, req.Question)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, askResponse{
		Answer:     answer.Text,
		HTML:       renderMarkdown(answer.Text),
		Source:     answer.Source,
		Candidates: answer.Candidates,
	})
}

func renderMarkdown(text string) string {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(text), &buf); err != nil {
		log.Printf("Error rendering markdown: %v", err)
		return ""
	}
	return buf.String()
}
