package models

import "time"

// UserSummary is the public projection of a User. It never carries the password.
type UserSummary struct {
	ID        uint   `json:"id"`
	Username  string `json:"username"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
	Email     string `json:"email"`
}

type PostView struct {
	ID            uint        `json:"id"`
	UserID        uint        `json:"user_id"`
	Content       string      `json:"content"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
	Author        UserSummary `json:"author"`
	LikesCount    int64       `json:"likes_count"`
	CommentsCount int64       `json:"comments_count"`
	IsLiked       bool        `json:"is_liked"`
}

type CommentView struct {
	ID         uint        `json:"id"`
	UserID     uint        `json:"user_id"`
	PostID     uint        `json:"post_id"`
	Content    string      `json:"content"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
	Author     UserSummary `json:"author"`
	LikesCount int64       `json:"likes_count"`
	IsLiked    bool        `json:"is_liked"`
}

// LikeState is the engagement of one target as seen by one viewer.
type LikeState struct {
	LikesCount int64 `json:"likes_count"`
	IsLiked    bool  `json:"is_liked"`
}
