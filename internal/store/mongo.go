package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/RaviShinde19/StackIt/internal/models"
)

// MongoStore handles question, answer and notification documents in MongoDB.
type MongoStore struct {
	questions     *mongo.Collection
	answers       *mongo.Collection
	notifications *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		questions:     db.Collection("questions"),
		answers:       db.Collection("answers"),
		notifications: db.Collection("notifications"),
	}
}

// EnsureIndexes creates the secondary indexes the queries below rely on.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	if _, err := s.questions.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "views", Value: -1}}},
		{Keys: bson.D{{Key: "tags", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("question indexes: %w", err)
	}
	if _, err := s.answers.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "question_id", Value: 1}, {Key: "created_at", Value: -1}},
	}); err != nil {
		return fmt.Errorf("answer indexes: %w", err)
	}
	if _, err := s.notifications.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "recipient", Value: 1}, {Key: "created_at", Value: -1}},
	}); err != nil {
		return fmt.Errorf("notification indexes: %w", err)
	}
	return nil
}

// ── Questions ────────────────────────────────────────────

func (s *MongoStore) InsertQuestion(ctx context.Context, q *models.Question) (*models.Question, error) {
	now := time.Now().UTC()
	q.ID = primitive.NilObjectID
	q.CreatedAt, q.UpdatedAt = now, now
	if q.Answers == nil {
		q.Answers = []primitive.ObjectID{}
	}
	res, err := s.questions.InsertOne(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("mongo insert question: %w", err)
	}
	q.ID = res.InsertedID.(primitive.ObjectID)
	return q, nil
}

func (s *MongoStore) GetQuestion(ctx context.Context, id string) (*models.Question, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	var q models.Question
	if err := s.questions.FindOne(ctx, bson.M{"_id": oid}).Decode(&q); err != nil {
		return nil, mapMongoError(err)
	}
	return &q, nil
}

// IncrementViews bumps the view counter and returns the updated question.
func (s *MongoStore) IncrementViews(ctx context.Context, id string) (*models.Question, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	var q models.Question
	err = s.questions.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$inc": bson.M{"views": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&q)
	if err != nil {
		return nil, mapMongoError(err)
	}
	return &q, nil
}

// ListQuestions runs search, filter, sort and pagination as one aggregation.
// vote_count is the sum of the scores of the question's answers.
func (s *MongoStore) ListQuestions(ctx context.Context, f models.QuestionFilter) ([]models.Question, error) {
	var and bson.A
	if f.Search != "" {
		rx := primitive.Regex{Pattern: regexp.QuoteMeta(f.Search), Options: "i"}
		and = append(and, bson.M{"$or": bson.A{
			bson.M{"title": rx},
			bson.M{"description": rx},
			bson.M{"tags": rx},
		}})
	}
	switch f.FilterBy {
	case "answered":
		and = append(and, bson.M{"answers.0": bson.M{"$exists": true}})
	case "unanswered":
		and = append(and, bson.M{"answers.0": bson.M{"$exists": false}})
	}
	match := bson.M{}
	if len(and) > 0 {
		match["$and"] = and
	}

	var sort bson.D
	switch f.SortBy {
	case "oldest":
		sort = bson.D{{Key: "created_at", Value: 1}}
	case "votes":
		sort = bson.D{{Key: "vote_count", Value: -1}, {Key: "created_at", Value: -1}}
	case "views":
		sort = bson.D{{Key: "views", Value: -1}, {Key: "created_at", Value: -1}}
	default:
		sort = bson.D{{Key: "created_at", Value: -1}}
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: s.answers.Name()},
			{Key: "localField", Value: "_id"},
			{Key: "foreignField", Value: "question_id"},
			{Key: "as", Value: "answer_docs"},
		}}},
		{{Key: "$addFields", Value: bson.D{
			{Key: "vote_count", Value: bson.D{{Key: "$sum", Value: "$answer_docs.votes"}}},
		}}},
		{{Key: "$project", Value: bson.D{{Key: "answer_docs", Value: 0}}}},
		{{Key: "$sort", Value: sort}},
		{{Key: "$skip", Value: int64((f.Page - 1) * f.Limit)}},
		{{Key: "$limit", Value: int64(f.Limit)}},
	}

	cur, err := s.questions.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("mongo list questions: %w", err)
	}
	defer cur.Close(ctx)

	var qs []models.Question
	if err := cur.All(ctx, &qs); err != nil {
		return nil, err
	}
	return qs, nil
}

func (s *MongoStore) AppendAnswer(ctx context.Context, questionID, answerID primitive.ObjectID) error {
	res, err := s.questions.UpdateOne(ctx,
		bson.M{"_id": questionID},
		bson.M{
			"$push": bson.M{"answers": answerID},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetAcceptedAnswer records answerID as the question's single accepted
// answer. Only the question's author matches the filter.
func (s *MongoStore) SetAcceptedAnswer(ctx context.Context, questionID, answerID primitive.ObjectID, askedBy string) error {
	res, err := s.questions.UpdateOne(ctx,
		bson.M{"_id": questionID, "asked_by": askedBy},
		bson.M{"$set": bson.M{"accepted_answer": answerID, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteQuestion removes the question and all of its answers.
func (s *MongoStore) DeleteQuestion(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := s.questions.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	_, err = s.answers.DeleteMany(ctx, bson.M{"question_id": oid})
	return err
}

func (s *MongoStore) CountQuestions(ctx context.Context) (int64, error) {
	return s.questions.CountDocuments(ctx, bson.M{})
}

// ── Answers ──────────────────────────────────────────────

func (s *MongoStore) InsertAnswer(ctx context.Context, a *models.Answer) (*models.Answer, error) {
	now := time.Now().UTC()
	a.ID = primitive.NilObjectID
	a.CreatedAt, a.UpdatedAt = now, now
	if a.Upvotes == nil {
		a.Upvotes = []string{}
	}
	if a.Downvotes == nil {
		a.Downvotes = []string{}
	}
	res, err := s.answers.InsertOne(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("mongo insert answer: %w", err)
	}
	a.ID = res.InsertedID.(primitive.ObjectID)
	return a, nil
}

func (s *MongoStore) GetAnswer(ctx context.Context, id string) (*models.Answer, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	var a models.Answer
	if err := s.answers.FindOne(ctx, bson.M{"_id": oid}).Decode(&a); err != nil {
		return nil, mapMongoError(err)
	}
	return &a, nil
}

// ListAnswers returns a question's answers, newest first.
func (s *MongoStore) ListAnswers(ctx context.Context, questionID primitive.ObjectID) ([]models.Answer, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := s.answers.Find(ctx, bson.M{"question_id": questionID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var as []models.Answer
	if err := cur.All(ctx, &as); err != nil {
		return nil, err
	}
	return as, nil
}

// UpdateVotes writes a's vote sets and score if the stored version still
// equals a.Version, and bumps the version. Otherwise ErrVersionConflict.
func (s *MongoStore) UpdateVotes(ctx context.Context, a *models.Answer) error {
	res, err := s.answers.UpdateOne(ctx,
		bson.M{"_id": a.ID, "version": a.Version},
		bson.M{
			"$set": bson.M{
				"upvotes":    a.Upvotes,
				"downvotes":  a.Downvotes,
				"votes":      a.Votes,
				"updated_at": time.Now().UTC(),
			},
			"$inc": bson.M{"version": 1},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrVersionConflict
	}
	a.Version++
	return nil
}

// DeleteAnswer removes the answer and detaches it from its question.
func (s *MongoStore) DeleteAnswer(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	var a models.Answer
	if err := s.answers.FindOneAndDelete(ctx, bson.M{"_id": oid}).Decode(&a); err != nil {
		return mapMongoError(err)
	}
	if _, err := s.questions.UpdateOne(ctx,
		bson.M{"_id": a.Question},
		bson.M{"$pull": bson.M{"answers": oid}},
	); err != nil {
		return err
	}
	_, err = s.questions.UpdateOne(ctx,
		bson.M{"_id": a.Question, "accepted_answer": oid},
		bson.M{"$unset": bson.M{"accepted_answer": ""}},
	)
	return err
}

func (s *MongoStore) CountAnswers(ctx context.Context) (int64, error) {
	return s.answers.CountDocuments(ctx, bson.M{})
}

// ── Notifications ────────────────────────────────────────

func (s *MongoStore) InsertNotification(ctx context.Context, n *models.Notification) error {
	n.CreatedAt = time.Now().UTC()
	res, err := s.notifications.InsertOne(ctx, n)
	if err != nil {
		return fmt.Errorf("mongo insert notification: %w", err)
	}
	n.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (s *MongoStore) ListNotifications(ctx context.Context, recipient string, unreadOnly bool) ([]models.Notification, error) {
	filter := bson.M{"recipient": recipient}
	if unreadOnly {
		filter["is_read"] = false
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(100)
	cur, err := s.notifications.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var ns []models.Notification
	if err := cur.All(ctx, &ns); err != nil {
		return nil, err
	}
	return ns, nil
}

// MarkNotificationRead marks one of recipient's notifications read.
func (s *MongoStore) MarkNotificationRead(ctx context.Context, id, recipient string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := s.notifications.UpdateOne(ctx,
		bson.M{"_id": oid, "recipient": recipient},
		bson.M{"$set": bson.M{"is_read": true}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) MarkAllNotificationsRead(ctx context.Context, recipient string) (int64, error) {
	res, err := s.notifications.UpdateMany(ctx,
		bson.M{"recipient": recipient, "is_read": false},
		bson.M{"$set": bson.M{"is_read": true}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func mapMongoError(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}
