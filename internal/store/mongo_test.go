package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/RaviShinde19/StackIt/internal/models"
)

func newTestMongo(t *testing.T) *MongoStore {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping mongo integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	ctr, err := mongodb.Run(ctx, "mongo:7")
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	uri, err := ctr.ConnectionString(ctx)
	require.NoError(t, err)
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	t.Cleanup(func() { client.Disconnect(context.Background()) })

	s := NewMongoStore(client.Database("stackit_test"))
	require.NoError(t, s.EnsureIndexes(ctx))
	return s
}

func TestMongoQuestionsAndAnswers(t *testing.T) {
	s := newTestMongo(t)
	ctx := context.Background()

	q, err := s.InsertQuestion(ctx, &models.Question{
		Title: "Go channels", Description: "How do they block?", Tags: []string{"go"}, AskedBy: "u1",
	})
	require.NoError(t, err)
	require.False(t, q.ID.IsZero())

	viewed, err := s.IncrementViews(ctx, q.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, int64(1), viewed.Views)

	a, err := s.InsertAnswer(ctx, &models.Answer{Content: "Unbuffered ones do.", Question: q.ID, Author: "u2"})
	require.NoError(t, err)
	require.NoError(t, s.AppendAnswer(ctx, q.ID, a.ID))

	a.Upvotes = []string{"u3"}
	a.Votes = 1
	require.NoError(t, s.UpdateVotes(ctx, a))
	assert.Equal(t, int64(1), a.Version)

	stale := *a
	stale.Version = 0
	assert.ErrorIs(t, s.UpdateVotes(ctx, &stale), ErrVersionConflict)

	got, err := s.GetAnswer(ctx, a.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, []string{"u3"}, got.Upvotes)
	assert.Equal(t, 1, got.Votes)

	answers, err := s.ListAnswers(ctx, q.ID)
	require.NoError(t, err)
	assert.Len(t, answers, 1)

	assert.ErrorIs(t, s.SetAcceptedAnswer(ctx, q.ID, a.ID, "someone-else"), ErrNotFound)
	require.NoError(t, s.SetAcceptedAnswer(ctx, q.ID, a.ID, "u1"))
	got2, err := s.GetQuestion(ctx, q.ID.Hex())
	require.NoError(t, err)
	require.NotNil(t, got2.AcceptedAnswer)
	assert.Equal(t, a.ID, *got2.AcceptedAnswer)

	require.NoError(t, s.DeleteAnswer(ctx, a.ID.Hex()))
	got2, err = s.GetQuestion(ctx, q.ID.Hex())
	require.NoError(t, err)
	assert.Nil(t, got2.AcceptedAnswer)
	assert.Empty(t, got2.Answers)
}

func TestMongoListQuestions(t *testing.T) {
	s := newTestMongo(t)
	ctx := context.Background()

	first, err := s.InsertQuestion(ctx, &models.Question{Title: "Postgres (indexes)", Description: "d", Tags: []string{"sql"}, AskedBy: "u1"})
	require.NoError(t, err)
	// created_at is stored with millisecond precision
	time.Sleep(5 * time.Millisecond)
	second, err := s.InsertQuestion(ctx, &models.Question{Title: "Mongo", Description: "aggregation", Tags: []string{"NoSQL"}, AskedBy: "u1"})
	require.NoError(t, err)

	a, err := s.InsertAnswer(ctx, &models.Answer{Content: "x", Question: first.ID, Author: "u2"})
	require.NoError(t, err)
	require.NoError(t, s.AppendAnswer(ctx, first.ID, a.ID))
	a.Upvotes, a.Votes = []string{"u3", "u4"}, 2
	require.NoError(t, s.UpdateVotes(ctx, a))

	page := func(f models.QuestionFilter) []models.Question {
		f.Page, f.Limit = 1, 10
		qs, err := s.ListQuestions(ctx, f)
		require.NoError(t, err)
		return qs
	}

	qs := page(models.QuestionFilter{Search: "nosql"})
	require.Len(t, qs, 1)
	assert.Equal(t, second.ID, qs[0].ID)

	qs = page(models.QuestionFilter{Search: "(indexes)"})
	require.Len(t, qs, 1)
	assert.Equal(t, first.ID, qs[0].ID)

	qs = page(models.QuestionFilter{FilterBy: "unanswered"})
	require.Len(t, qs, 1)
	assert.Equal(t, second.ID, qs[0].ID)

	qs = page(models.QuestionFilter{FilterBy: "answered"})
	require.Len(t, qs, 1)
	assert.Equal(t, int64(2), qs[0].VoteCount)

	qs = page(models.QuestionFilter{SortBy: "votes"})
	require.Len(t, qs, 2)
	assert.Equal(t, first.ID, qs[0].ID)

	qs = page(models.QuestionFilter{SortBy: "oldest"})
	assert.Equal(t, first.ID, qs[0].ID)

	n, err := s.CountQuestions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, s.DeleteQuestion(ctx, first.ID.Hex()))
	_, err = s.GetAnswer(ctx, a.ID.Hex())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMongoNotifications(t *testing.T) {
	s := newTestMongo(t)
	ctx := context.Background()

	n := &models.Notification{Recipient: "u1", Sender: "u2", Type: models.NotificationAnswer, Message: "new answer"}
	require.NoError(t, s.InsertNotification(ctx, n))
	require.NoError(t, s.InsertNotification(ctx, &models.Notification{Recipient: "u1", Type: models.NotificationAnswer, Message: "another"}))

	assert.ErrorIs(t, s.MarkNotificationRead(ctx, n.ID.Hex(), "u2"), ErrNotFound)
	require.NoError(t, s.MarkNotificationRead(ctx, n.ID.Hex(), "u1"))

	unread, err := s.ListNotifications(ctx, "u1", true)
	require.NoError(t, err)
	assert.Len(t, unread, 1)

	changed, err := s.MarkAllNotificationsRead(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), changed)
}
