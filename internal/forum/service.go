// Package forum implements questions, answers, voting and answer acceptance.
package forum

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/RaviShinde19/StackIt/internal/apperr"
	"github.com/RaviShinde19/StackIt/internal/metrics"
	"github.com/RaviShinde19/StackIt/internal/models"
	"github.com/RaviShinde19/StackIt/internal/store"
	"github.com/RaviShinde19/StackIt/internal/validate"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	voteMaxTries = 8
)

// Store is the document persistence the forum needs.
type Store interface {
	InsertQuestion(ctx context.Context, q *models.Question) (*models.Question, error)
	GetQuestion(ctx context.Context, id string) (*models.Question, error)
	IncrementViews(ctx context.Context, id string) (*models.Question, error)
	ListQuestions(ctx context.Context, f models.QuestionFilter) ([]models.Question, error)
	AppendAnswer(ctx context.Context, questionID, answerID primitive.ObjectID) error
	SetAcceptedAnswer(ctx context.Context, questionID, answerID primitive.ObjectID, askedBy string) error

	InsertAnswer(ctx context.Context, a *models.Answer) (*models.Answer, error)
	GetAnswer(ctx context.Context, id string) (*models.Answer, error)
	ListAnswers(ctx context.Context, questionID primitive.ObjectID) ([]models.Answer, error)
	UpdateVotes(ctx context.Context, a *models.Answer) error
}

// Users resolves author summaries.
type Users interface {
	GetUsersByIDs(ctx context.Context, ids []string) ([]models.User, error)
}

// Notifier delivers notifications to users.
type Notifier interface {
	Notify(ctx context.Context, n *models.Notification) error
}

type Service struct {
	store    Store
	users    Users
	notifier Notifier
	metrics  *metrics.Metrics
	log      *zap.Logger

	// newBackOff builds the retry schedule for vote conflicts.
	newBackOff func() backoff.BackOff
	voteTries  uint
}

func NewService(st Store, users Users, notifier Notifier, m *metrics.Metrics, log *zap.Logger) *Service {
	return &Service{
		store:    st,
		users:    users,
		notifier: notifier,
		metrics:  m,
		log:      log,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 5 * time.Millisecond
			b.MaxInterval = 200 * time.Millisecond
			return b
		},
		voteTries: voteMaxTries,
	}
}

// ── Questions ────────────────────────────────────────────

func (s *Service) CreateQuestion(ctx context.Context, userID string, req models.CreateQuestionRequest) (*models.Question, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	req.Tags = normalizeTags(req.Tags)
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	q, err := s.store.InsertQuestion(ctx, &models.Question{
		Title:       req.Title,
		Description: req.Description,
		Tags:        req.Tags,
		AskedBy:     userID,
	})
	if err != nil {
		return nil, apperr.Internal(err)
	}
	s.log.Info("question created", zap.String("question_id", q.ID.Hex()), zap.String("user_id", userID))
	s.attachAskers(ctx, []*models.Question{q})
	return q, nil
}

// normalizeTags trims, lower-cases and de-duplicates tags, keeping order.
func normalizeTags(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, t := range in {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func (s *Service) ListQuestions(ctx context.Context, f models.QuestionFilter) (*models.QuestionPage, error) {
	f.Search = strings.TrimSpace(f.Search)
	if f.SortBy == "" {
		f.SortBy = "newest"
	}
	if err := validate.Struct(f); err != nil {
		return nil, err
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = DefaultPageSize
	}
	if f.Limit > MaxPageSize {
		f.Limit = MaxPageSize
	}

	qs, err := s.store.ListQuestions(ctx, f)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if qs == nil {
		qs = []models.Question{}
	}
	ptrs := make([]*models.Question, len(qs))
	for i := range qs {
		ptrs[i] = &qs[i]
	}
	s.attachAskers(ctx, ptrs)
	return &models.QuestionPage{Questions: qs, Page: f.Page, Limit: f.Limit}, nil
}

// GetQuestion returns the question and counts the view.
func (s *Service) GetQuestion(ctx context.Context, id string) (*models.Question, error) {
	q, err := s.store.IncrementViews(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("question not found")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	s.attachAskers(ctx, []*models.Question{q})
	return q, nil
}

// ── Answers ──────────────────────────────────────────────

func (s *Service) CreateAnswer(ctx context.Context, userID string, req models.CreateAnswerRequest) (*models.Answer, error) {
	req.Content = strings.TrimSpace(req.Content)
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	q, err := s.store.GetQuestion(ctx, req.QuestionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("question not found")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}

	a, err := s.store.InsertAnswer(ctx, &models.Answer{
		Content:  req.Content,
		Question: q.ID,
		Author:   userID,
	})
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if err := s.store.AppendAnswer(ctx, q.ID, a.ID); err != nil {
		return nil, apperr.Internal(fmt.Errorf("link answer to question: %w", err))
	}

	if q.AskedBy != userID && s.notifier != nil {
		n := &models.Notification{
			Recipient: q.AskedBy,
			Sender:    userID,
			Type:      models.NotificationAnswer,
			Message:   "New answer on your question: " + q.Title,
			Link:      "/questions/" + q.ID.Hex(),
		}
		if err := s.notifier.Notify(ctx, n); err != nil {
			s.log.Warn("answer notification failed", zap.String("question_id", q.ID.Hex()), zap.Error(err))
		}
	}

	s.attachAuthors(ctx, []*models.Answer{a})
	return a, nil
}

// ListAnswers returns the answers of a question, newest first, with
// IsAccepted derived from the question.
func (s *Service) ListAnswers(ctx context.Context, questionID string) ([]models.Answer, error) {
	q, err := s.store.GetQuestion(ctx, questionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("question not found")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	as, err := s.store.ListAnswers(ctx, q.ID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if as == nil {
		as = []models.Answer{}
	}
	ptrs := make([]*models.Answer, len(as))
	for i := range as {
		as[i].IsAccepted = q.AcceptedAnswer != nil && *q.AcceptedAnswer == as[i].ID
		ptrs[i] = &as[i]
	}
	s.attachAuthors(ctx, ptrs)
	return as, nil
}

// Vote toggles userID's vote on an answer. Concurrent writers are resolved
// by re-reading and re-applying the vote on version conflicts.
func (s *Service) Vote(ctx context.Context, answerID, userID, voteType string) (*models.Answer, error) {
	if voteType != VoteUp && voteType != VoteDown {
		return nil, apperr.Validation("voteType must be upvote or downvote")
	}

	op := func() (*models.Answer, error) {
		cur, err := s.store.GetAnswer(ctx, answerID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, backoff.Permanent(apperr.NotFound("answer not found"))
		}
		if err != nil {
			return nil, backoff.Permanent(apperr.Internal(err))
		}
		next, err := ApplyVote(cur, userID, voteType)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		if err := s.store.UpdateVotes(ctx, next); err != nil {
			if errors.Is(err, store.ErrVersionConflict) {
				return nil, err
			}
			return nil, backoff.Permanent(apperr.Internal(err))
		}
		return next, nil
	}

	a, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(s.newBackOff()),
		backoff.WithMaxTries(s.voteTries),
		backoff.WithNotify(func(_ error, d time.Duration) {
			s.log.Debug("vote conflict, retrying", zap.String("answer_id", answerID), zap.Duration("in", d))
		}),
	)
	if err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			return nil, apperr.Wrap(err, apperr.KindConflict, "answer is being voted on, try again")
		}
		var ae *apperr.Error
		if errors.As(err, &ae) {
			return nil, ae
		}
		return nil, apperr.Internal(err)
	}

	s.metrics.Vote(voteType)
	if q, err := s.store.GetQuestion(ctx, a.Question.Hex()); err == nil {
		a.IsAccepted = q.AcceptedAnswer != nil && *q.AcceptedAnswer == a.ID
	}
	s.attachAuthors(ctx, []*models.Answer{a})
	return a, nil
}

// AcceptAnswer marks answerID as the accepted answer of its question. Only
// the question's author may do so; any previously accepted answer stops
// being accepted in the same write.
func (s *Service) AcceptAnswer(ctx context.Context, answerID, requesterID string) (*models.Answer, error) {
	a, err := s.store.GetAnswer(ctx, answerID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("answer not found")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	q, err := s.store.GetQuestion(ctx, a.Question.Hex())
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("question not found")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if q.AskedBy != requesterID {
		return nil, apperr.Forbidden("only the question author can accept an answer")
	}

	err = s.store.SetAcceptedAnswer(ctx, q.ID, a.ID, requesterID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("question not found")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	s.log.Info("answer accepted", zap.String("question_id", q.ID.Hex()), zap.String("answer_id", a.ID.Hex()))

	a.IsAccepted = true
	s.attachAuthors(ctx, []*models.Answer{a})
	return a, nil
}

// ── Author summaries ─────────────────────────────────────

func (s *Service) attachAskers(ctx context.Context, qs []*models.Question) {
	ids := make([]string, 0, len(qs))
	for _, q := range qs {
		ids = append(ids, q.AskedBy)
	}
	byID := s.summaries(ctx, ids)
	for _, q := range qs {
		q.AskedByUser = byID[q.AskedBy]
	}
}

func (s *Service) attachAuthors(ctx context.Context, as []*models.Answer) {
	ids := make([]string, 0, len(as))
	for _, a := range as {
		ids = append(ids, a.Author)
	}
	byID := s.summaries(ctx, ids)
	for _, a := range as {
		a.AuthorUser = byID[a.Author]
	}
}

// summaries looks up users by id. A failed lookup only loses the summaries.
func (s *Service) summaries(ctx context.Context, ids []string) map[string]*models.UserSummary {
	out := make(map[string]*models.UserSummary)
	if s.users == nil || len(ids) == 0 {
		return out
	}
	users, err := s.users.GetUsersByIDs(ctx, ids)
	if err != nil {
		s.log.Warn("author lookup failed", zap.Error(err))
		return out
	}
	for i := range users {
		out[users[i].ID] = users[i].Summary()
	}
	return out
}
