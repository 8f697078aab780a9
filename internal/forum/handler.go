package forum

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/RaviShinde19/StackIt/internal/httpx"
	"github.com/RaviShinde19/StackIt/internal/middleware"
	"github.com/RaviShinde19/StackIt/internal/models"
)

// Handler exposes questions and answers over HTTP.
type Handler struct {
	svc *Service
	log *zap.Logger
}

func NewHandler(svc *Service, log *zap.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// QuestionRoutes mounts under /questions. auth guards the write routes.
func (h *Handler) QuestionRoutes(auth func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListQuestions)
	r.Get("/{id}", h.GetQuestion)
	r.With(auth).Post("/", h.CreateQuestion)
	return r
}

// AnswerRoutes mounts under /answers.
func (h *Handler) AnswerRoutes(auth func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/{id}", h.ListAnswers)
	r.Group(func(r chi.Router) {
		r.Use(auth)
		r.Post("/createAnswer", h.CreateAnswer)
		r.Post("/{id}/vote", h.Vote)
		r.Post("/{id}/accept", h.Accept)
	})
	return r
}

func (h *Handler) CreateQuestion(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFrom(r.Context())
	var req models.CreateQuestionRequest
	if err := httpx.Decode(w, r, &req); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	q, err := h.svc.CreateQuestion(r.Context(), id.ID, req)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, q, "Question created")
}

// ListQuestions handles GET /questions?search=&filterBy=&sortBy=&page=&limit=.
func (h *Handler) ListQuestions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.svc.ListQuestions(r.Context(), models.QuestionFilter{
		Search:   q.Get("search"),
		FilterBy: q.Get("filterBy"),
		SortBy:   q.Get("sortBy"),
		Page:     httpx.IntQuery(r, "page", 1),
		Limit:    httpx.IntQuery(r, "limit", DefaultPageSize),
	})
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, page, "Questions fetched")
}

func (h *Handler) GetQuestion(w http.ResponseWriter, r *http.Request) {
	q, err := h.svc.GetQuestion(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q, "Question fetched")
}

func (h *Handler) CreateAnswer(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFrom(r.Context())
	var req models.CreateAnswerRequest
	if err := httpx.Decode(w, r, &req); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	a, err := h.svc.CreateAnswer(r.Context(), id.ID, req)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, a, "Answer created")
}

// ListAnswers handles GET /answers/{id}, where id is the question id.
func (h *Handler) ListAnswers(w http.ResponseWriter, r *http.Request) {
	as, err := h.svc.ListAnswers(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, as, "Answers fetched")
}

func (h *Handler) Vote(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFrom(r.Context())
	var req models.VoteRequest
	if err := httpx.Decode(w, r, &req); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	a, err := h.svc.Vote(r.Context(), chi.URLParam(r, "id"), id.ID, req.VoteType)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, a, "Vote recorded")
}

func (h *Handler) Accept(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFrom(r.Context())
	a, err := h.svc.AcceptAnswer(r.Context(), chi.URLParam(r, "id"), id.ID)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, a, "Answer accepted")
}
