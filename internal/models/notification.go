package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	NotificationAnswer  = "answer"
	NotificationComment = "comment"
	NotificationMention = "mention"
)

// Notification tells a user that something happened to their content.
type Notification struct {
	ID        primitive.ObjectID `json:"id"        bson:"_id,omitempty"`
	Recipient string             `json:"recipient" bson:"recipient"`
	Sender    string             `json:"sender"    bson:"sender,omitempty"`
	Type      string             `json:"type"      bson:"type"`
	Message   string             `json:"message"   bson:"message"`
	Link      string             `json:"link"      bson:"link,omitempty"`
	IsRead    bool               `json:"isRead"    bson:"is_read"`
	CreatedAt time.Time          `json:"createdAt" bson:"created_at"`
}
