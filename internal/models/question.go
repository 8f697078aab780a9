package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Question is a single question stored in MongoDB.
type Question struct {
	ID             primitive.ObjectID   `json:"id"                       bson:"_id,omitempty"`
	Title          string               `json:"title"                    bson:"title"`
	Description    string               `json:"description"              bson:"description"`
	Tags           []string             `json:"tags"                     bson:"tags"`
	AskedBy        string               `json:"askedBy"                  bson:"asked_by"`
	Answers        []primitive.ObjectID `json:"answers"                  bson:"answers"`
	Views          int64                `json:"views"                    bson:"views"`
	AcceptedAnswer *primitive.ObjectID  `json:"acceptedAnswer,omitempty" bson:"accepted_answer,omitempty"`
	VoteCount      int64                `json:"voteCount,omitempty"      bson:"vote_count,omitempty"`
	CreatedAt      time.Time            `json:"createdAt"                bson:"created_at"`
	UpdatedAt      time.Time            `json:"updatedAt"                bson:"updated_at"`

	AskedByUser *UserSummary `json:"askedByUser,omitempty" bson:"-"`
}

// Answer is a reply to a question. IsAccepted is derived from the parent
// question's AcceptedAnswer and is never stored.
type Answer struct {
	ID         primitive.ObjectID `json:"id"         bson:"_id,omitempty"`
	Content    string             `json:"content"    bson:"content"`
	Question   primitive.ObjectID `json:"question"   bson:"question_id"`
	Author     string             `json:"author"     bson:"author_id"`
	Votes      int                `json:"votes"      bson:"votes"`
	IsAccepted bool               `json:"isAccepted" bson:"-"`
	Upvotes    []string           `json:"upvotes"    bson:"upvotes"`
	Downvotes  []string           `json:"downvotes"  bson:"downvotes"`
	Version    int64              `json:"-"          bson:"version"`
	CreatedAt  time.Time          `json:"createdAt"  bson:"created_at"`
	UpdatedAt  time.Time          `json:"updatedAt"  bson:"updated_at"`

	AuthorUser *UserSummary `json:"authorUser,omitempty" bson:"-"`
}

// CreateQuestionRequest is the JSON body for POST /questions.
type CreateQuestionRequest struct {
	Title       string   `json:"title"       validate:"required,max=300"`
	Description string   `json:"description" validate:"required,max=50000"`
	Tags        []string `json:"tags"        validate:"min=1,max=10,dive,required,max=35"`
}

// CreateAnswerRequest is the JSON body for POST /answers/createAnswer.
type CreateAnswerRequest struct {
	Content    string `json:"content"    validate:"required,max=50000"`
	QuestionID string `json:"questionId" validate:"required"`
}

// VoteRequest is the JSON body for POST /answers/{id}/vote.
type VoteRequest struct {
	VoteType string `json:"voteType"`
}

// QuestionFilter drives GET /questions. Names follow the query parameters.
type QuestionFilter struct {
	Search   string `json:"search"`
	FilterBy string `json:"filterBy" validate:"omitempty,oneof=answered unanswered"`
	SortBy   string `json:"sortBy"   validate:"oneof=newest oldest votes views"`
	Page     int    `json:"page"`
	Limit    int    `json:"limit"`
}

// QuestionPage is one page of GET /questions.
type QuestionPage struct {
	Questions []Question `json:"questions"`
	Page      int        `json:"page"`
	Limit     int        `json:"limit"`
}
