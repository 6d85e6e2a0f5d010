package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Comment represents a discussion entry on an issue
type Comment struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Issue      primitive.ObjectID `bson:"issue" json:"issue"`
	Author     primitive.ObjectID `bson:"author" json:"author"`
	AuthorName string             `bson:"authorName" json:"authorName"`
	Content    string             `bson:"content" json:"content"`
	IsStaff    bool               `bson:"isStaff" json:"isStaff"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
}
