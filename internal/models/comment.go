package models

import "time"

// Comment represents a discussion entry on a dataset.
type Comment struct {
	ID        string    `db:"id" json:"id"`
	DatasetID string    `db:"dataset_id" json:"dataset_id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Content   string    `db:"content" json:"content"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// CommentDetail joins the author's public profile fields onto a comment.
type CommentDetail struct {
	Comment
	AuthorName  *string `db:"author_name" json:"author_name,omitempty"`
	AuthorEmail *string `db:"author_email" json:"author_email,omitempty"`
	AvatarType  *string `db:"avatar_type" json:"avatar_type,omitempty"`
	AvatarValue *string `db:"avatar_value" json:"avatar_value,omitempty"`
}
