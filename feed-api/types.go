package main

import "socialfeed/internal/models"

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ActorRequest carries the acting user for mutations without a body of their own.
// user_id may be sent as a number or a numeric string.
type ActorRequest struct {
	UserID *jsonID `json:"user_id"`
}

type ContentRequest struct {
	Content string  `json:"content"`
	UserID  *jsonID `json:"user_id"`
}

type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type UserResponse struct {
	Success bool               `json:"success"`
	Message string             `json:"message"`
	User    models.UserSummary `json:"user"`
}

type PostResponse struct {
	Success bool            `json:"success"`
	Post    models.PostView `json:"post"`
}

type CommentResponse struct {
	Success bool               `json:"success"`
	Comment models.CommentView `json:"comment"`
}

type LikeResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	LikesCount int64  `json:"likes_count"`
	IsLiked    bool   `json:"is_liked"`
}
