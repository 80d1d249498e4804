// Package store persists users, posts, comments and likes.
//
// Two implementations satisfy Store: GormStore over SQLite or PostgreSQL and
// MemoryStore for tests. Like relations are unique per (user, target); toggles
// rely on that constraint rather than on a read-then-write.
package store

import (
	"context"
	"strings"
	"unicode/utf8"

	"socialfeed/internal/models"
)

// MaxPostLength is the longest post accepted, in characters.
const MaxPostLength = 500

type Store interface {
	CreateUser(ctx context.Context, u models.User) (models.User, error)
	FindUserByCredentials(ctx context.Context, username, password string) (models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)

	// CreatePost and CreateComment return the new row with Author loaded in
	// the same transaction as the insert.
	CreatePost(ctx context.Context, userID uint, content string) (models.Post, error)
	DeletePost(ctx context.Context, postID, requestingUserID uint) error
	CreateComment(ctx context.Context, userID, postID uint, content string) (models.Comment, error)

	// TogglePostLike removes the user's like if present, otherwise adds one.
	// The returned state is the caller's own toggle and the like count as of
	// the end of that transaction.
	TogglePostLike(ctx context.Context, userID, postID uint) (models.LikeState, error)
	ToggleCommentLike(ctx context.Context, userID, commentID uint) (models.LikeState, error)

	// Snapshot runs fn against a consistent read view of the store.
	Snapshot(ctx context.Context, fn func(r Reader) error) error

	Ping(ctx context.Context) error
	Close() error
}

// Reader is the read side handed to Snapshot callbacks. Every method sees the
// same state for the lifetime of the callback. Batch methods return maps keyed
// by target id; ids absent from the result have a zero count.
type Reader interface {
	Posts() ([]models.Post, error)
	Post(id uint) (models.Post, error)
	Comments(postID uint) ([]models.Comment, error)
	Comment(id uint) (models.Comment, error)
	UsersByID(ids []uint) (map[uint]models.User, error)

	PostLikeCounts(postIDs []uint) (map[uint]int64, error)
	CommentCounts(postIDs []uint) (map[uint]int64, error)
	CommentLikeCounts(commentIDs []uint) (map[uint]int64, error)

	// LikedPosts and LikedComments report which targets userID likes.
	// userID 0 is an anonymous viewer and likes nothing.
	LikedPosts(userID uint, postIDs []uint) (map[uint]bool, error)
	LikedComments(userID uint, commentIDs []uint) (map[uint]bool, error)
}

// ValidatePostContent enforces the non-empty and length rules for posts.
func ValidatePostContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return &ValidationError{Field: "content", Message: "Post content cannot be empty"}
	}
	if utf8.RuneCountInString(content) > MaxPostLength {
		return &ValidationError{Field: "content", Message: "Post content cannot exceed 500 characters"}
	}
	return nil
}

func ValidateCommentContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return &ValidationError{Field: "content", Message: "Comment content cannot be empty"}
	}
	return nil
}
