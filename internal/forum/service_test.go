package forum

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/RaviShinde19/StackIt/internal/apperr"
	"github.com/RaviShinde19/StackIt/internal/metrics"
	"github.com/RaviShinde19/StackIt/internal/models"
	"github.com/RaviShinde19/StackIt/internal/notification"
	"github.com/RaviShinde19/StackIt/internal/store"
	"github.com/RaviShinde19/StackIt/internal/store/memory"
)

type fixture struct {
	svc   *Service
	docs  *memory.Documents
	users *memory.Users
	notes *notification.Service
	alice string
	bob   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	users := memory.NewUsers()
	alice, err := users.CreateUser(ctx, &models.User{Username: "alice", Email: "a@x.io", Phone: "1"})
	require.NoError(t, err)
	bob, err := users.CreateUser(ctx, &models.User{Username: "bob", Email: "b@x.io", Phone: "2"})
	require.NoError(t, err)

	docs := memory.NewDocuments()
	notes := notification.NewService(docs, zap.NewNop())
	svc := NewService(docs, users, notes, metrics.New(), zap.NewNop())
	svc.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return &fixture{svc: svc, docs: docs, users: users, notes: notes, alice: alice.ID, bob: bob.ID}
}

func (f *fixture) question(t *testing.T, by, title string) *models.Question {
	t.Helper()
	q, err := f.svc.CreateQuestion(context.Background(), by, models.CreateQuestionRequest{
		Title: title, Description: "D", Tags: []string{"go"},
	})
	require.NoError(t, err)
	return q
}

func (f *fixture) answer(t *testing.T, by string, q *models.Question) *models.Answer {
	t.Helper()
	a, err := f.svc.CreateAnswer(context.Background(), by, models.CreateAnswerRequest{
		Content: "try this", QuestionID: q.ID.Hex(),
	})
	require.NoError(t, err)
	return a
}

func TestCreateQuestion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	q, err := f.svc.CreateQuestion(ctx, f.alice, models.CreateQuestionRequest{
		Title: "  T ", Description: "D", Tags: []string{" Go ", "go", "", "SQL"},
	})
	require.NoError(t, err)
	assert.Equal(t, "T", q.Title)
	assert.Equal(t, f.alice, q.AskedBy)
	assert.Equal(t, []string{"go", "sql"}, q.Tags)
	require.NotNil(t, q.AskedByUser)
	assert.Equal(t, "alice", q.AskedByUser.Username)

	for name, req := range map[string]models.CreateQuestionRequest{
		"no title":    {Description: "D", Tags: []string{"x"}},
		"blank desc":  {Title: "T", Description: "  ", Tags: []string{"x"}},
		"no tags":     {Title: "T", Description: "D"},
		"only blanks": {Title: "T", Description: "D", Tags: []string{" ", ""}},
		"long title":  {Title: strings.Repeat("t", 301), Description: "D", Tags: []string{"x"}},
		"long tag":    {Title: "T", Description: "D", Tags: []string{strings.Repeat("x", 36)}},
		"many tags":   {Title: "T", Description: "D", Tags: strings.Fields("a b c d e f g h i j k")},
	} {
		_, err := f.svc.CreateQuestion(ctx, f.alice, req)
		assert.True(t, apperr.Is(err, apperr.KindValidation), name)
	}
}

func TestGetQuestionCountsViews(t *testing.T) {
	f := newFixture(t)
	q := f.question(t, f.alice, "T")

	for i := 1; i <= 3; i++ {
		got, err := f.svc.GetQuestion(context.Background(), q.ID.Hex())
		require.NoError(t, err)
		assert.EqualValues(t, i, got.Views)
	}

	_, err := f.svc.GetQuestion(context.Background(), "not-an-id")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestListQuestions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.question(t, f.alice, "How do goroutines leak?")
	second := f.question(t, f.bob, "Postgres indexes")
	f.question(t, f.alice, "Channel (buffered) sizing")
	a := f.answer(t, f.bob, first)
	_, err := f.svc.Vote(ctx, a.ID.Hex(), f.alice, VoteUp)
	require.NoError(t, err)

	page, err := f.svc.ListQuestions(ctx, models.QuestionFilter{})
	require.NoError(t, err)
	require.Len(t, page.Questions, 3)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, DefaultPageSize, page.Limit)
	assert.Equal(t, "Channel (buffered) sizing", page.Questions[0].Title)
	assert.NotNil(t, page.Questions[0].AskedByUser)

	page, err = f.svc.ListQuestions(ctx, models.QuestionFilter{Search: "(BUFFERED)"})
	require.NoError(t, err)
	require.Len(t, page.Questions, 1)

	page, err = f.svc.ListQuestions(ctx, models.QuestionFilter{FilterBy: "answered"})
	require.NoError(t, err)
	require.Len(t, page.Questions, 1)
	assert.Equal(t, first.ID, page.Questions[0].ID)

	page, err = f.svc.ListQuestions(ctx, models.QuestionFilter{FilterBy: "unanswered", SortBy: "oldest"})
	require.NoError(t, err)
	require.Len(t, page.Questions, 2)
	assert.Equal(t, second.ID, page.Questions[0].ID)

	page, err = f.svc.ListQuestions(ctx, models.QuestionFilter{SortBy: "votes"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, page.Questions[0].ID)
	assert.EqualValues(t, 1, page.Questions[0].VoteCount)

	page, err = f.svc.ListQuestions(ctx, models.QuestionFilter{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page.Questions, 1)

	page, err = f.svc.ListQuestions(ctx, models.QuestionFilter{Limit: 1000})
	require.NoError(t, err)
	assert.Equal(t, MaxPageSize, page.Limit)

	_, err = f.svc.ListQuestions(ctx, models.QuestionFilter{SortBy: "random"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	_, err = f.svc.ListQuestions(ctx, models.QuestionFilter{FilterBy: "closed"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestCreateAnswerNotifiesAuthor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.question(t, f.alice, "T")

	f.answer(t, f.alice, q)
	ns, err := f.notes.List(ctx, f.alice, false)
	require.NoError(t, err)
	assert.Empty(t, ns, "own answers do not notify")

	a := f.answer(t, f.bob, q)
	assert.Equal(t, f.bob, a.Author)
	require.NotNil(t, a.AuthorUser)
	assert.Equal(t, "bob", a.AuthorUser.Username)

	ns, err = f.notes.List(ctx, f.alice, true)
	require.NoError(t, err)
	require.Len(t, ns, 1)
	assert.Equal(t, models.NotificationAnswer, ns[0].Type)
	assert.Equal(t, f.bob, ns[0].Sender)

	stored, err := f.docs.GetQuestion(ctx, q.ID.Hex())
	require.NoError(t, err)
	assert.Len(t, stored.Answers, 2)
}

func TestCreateAnswerValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateAnswer(ctx, f.bob, models.CreateAnswerRequest{QuestionID: "x"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	_, err = f.svc.CreateAnswer(ctx, f.bob, models.CreateAnswerRequest{Content: "hi"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = f.svc.CreateAnswer(ctx, f.bob, models.CreateAnswerRequest{
		Content: "hi", QuestionID: "65f000000000000000000000",
	})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestVote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.answer(t, f.alice, f.question(t, f.alice, "T"))

	got, err := f.svc.Vote(ctx, a.ID.Hex(), f.bob, VoteUp)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Votes)

	got, err = f.svc.Vote(ctx, a.ID.Hex(), f.bob, VoteUp)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Votes)
	assert.Empty(t, got.Upvotes)

	_, err = f.svc.Vote(ctx, a.ID.Hex(), f.bob, "meh")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = f.svc.Vote(ctx, "65f000000000000000000000", f.bob, VoteUp)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestConcurrentVotesAreAllApplied(t *testing.T) {
	f := newFixture(t)
	f.svc.voteTries = 1000
	ctx := context.Background()
	a := f.answer(t, f.alice, f.question(t, f.alice, "T"))

	const voters = 20
	var wg sync.WaitGroup
	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			vt := VoteUp
			if i%4 == 0 {
				vt = VoteDown
			}
			_, err := f.svc.Vote(ctx, a.ID.Hex(), string(rune('A'+i)), vt)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	stored, err := f.docs.GetAnswer(ctx, a.ID.Hex())
	require.NoError(t, err)
	assert.Len(t, stored.Upvotes, 15)
	assert.Len(t, stored.Downvotes, 5)
	assert.Equal(t, 10, stored.Votes)
}

type conflictingStore struct{ Store }

func (conflictingStore) UpdateVotes(context.Context, *models.Answer) error {
	return store.ErrVersionConflict
}

func TestVoteGivesUpOnPersistentConflict(t *testing.T) {
	f := newFixture(t)
	a := f.answer(t, f.alice, f.question(t, f.alice, "T"))
	f.svc.store = conflictingStore{Store: f.docs}

	_, err := f.svc.Vote(context.Background(), a.ID.Hex(), f.bob, VoteUp)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestAcceptAnswer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.question(t, f.alice, "T")
	first := f.answer(t, f.bob, q)
	second := f.answer(t, f.bob, q)

	accepted := func() []bool {
		as, err := f.svc.ListAnswers(ctx, q.ID.Hex())
		require.NoError(t, err)
		out := make([]bool, 0, len(as))
		n := 0
		for _, a := range as {
			out = append(out, a.IsAccepted)
			if a.IsAccepted {
				n++
			}
		}
		assert.LessOrEqual(t, n, 1)
		return out
	}

	_, err := f.svc.AcceptAnswer(ctx, first.ID.Hex(), f.bob)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
	assert.Equal(t, []bool{false, false}, accepted())

	got, err := f.svc.AcceptAnswer(ctx, first.ID.Hex(), f.alice)
	require.NoError(t, err)
	assert.True(t, got.IsAccepted)
	// newest first: second, first
	assert.Equal(t, []bool{false, true}, accepted())

	_, err = f.svc.AcceptAnswer(ctx, second.ID.Hex(), f.bob)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
	assert.Equal(t, []bool{false, true}, accepted())

	_, err = f.svc.AcceptAnswer(ctx, second.ID.Hex(), f.alice)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false}, accepted())

	_, err = f.svc.AcceptAnswer(ctx, "65f000000000000000000000", f.alice)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
