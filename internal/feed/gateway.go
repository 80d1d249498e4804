package feed

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"socialfeed/internal/models"
	"socialfeed/internal/store"
)

// Gateway validates requests and applies them to the store. Its answers come
// from the write itself, never from a separate read.
type Gateway struct {
	store  store.Store
	logger logrus.FieldLogger
}

func NewGateway(s store.Store, logger logrus.FieldLogger) *Gateway {
	return &Gateway{store: s, logger: logger}
}

type SignupRequest struct {
	Firstname       string `json:"firstname"`
	Lastname        string `json:"lastname"`
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

func validationError(msg string) error {
	return &Error{Kind: KindValidation, Message: msg}
}

func (g *Gateway) Signup(ctx context.Context, req SignupRequest) (models.UserSummary, error) {
	req.Firstname = strings.TrimSpace(req.Firstname)
	req.Lastname = strings.TrimSpace(req.Lastname)
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)

	switch {
	case req.Firstname == "" || req.Lastname == "" || req.Username == "" ||
		req.Email == "" || req.Password == "" || req.ConfirmPassword == "":
		return models.UserSummary{}, validationError("All fields are required")
	case !strings.Contains(req.Email, "@"):
		return models.UserSummary{}, validationError("You have to enter a valid email address")
	case req.Password != req.ConfirmPassword:
		return models.UserSummary{}, validationError("Passwords do not match")
	}

	u, err := g.store.CreateUser(ctx, models.User{
		Username:  req.Username,
		Password:  req.Password,
		Firstname: req.Firstname,
		Lastname:  req.Lastname,
		Email:     req.Email,
	})
	if err != nil {
		return models.UserSummary{}, translate(g.logger, "signup", err)
	}
	g.logger.WithField("username", u.Username).Info("User registered successfully")
	return u.Summary(), nil
}

func (g *Gateway) Login(ctx context.Context, username, password string) (models.UserSummary, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return models.UserSummary{}, validationError("Username and password are required")
	}
	u, err := g.store.FindUserByCredentials(ctx, strings.TrimSpace(username), password)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			g.logger.WithField("username", username).Warn("Invalid login credentials")
			return models.UserSummary{}, &Error{Kind: KindUnauthorized, Message: "Invalid username or password"}
		}
		return models.UserSummary{}, translate(g.logger, "login", err)
	}
	return u.Summary(), nil
}

func requireUser(userID uint) error {
	if userID == 0 {
		return validationError("user_id is required")
	}
	return nil
}

// CreatePost stores a post by userID and returns it as the author sees it.
// A new post has no likes or comments, so the view is built from the
// inserted row.
func (g *Gateway) CreatePost(ctx context.Context, userID uint, content string) (models.PostView, error) {
	if err := requireUser(userID); err != nil {
		return models.PostView{}, err
	}
	if err := store.ValidatePostContent(content); err != nil {
		return models.PostView{}, translate(g.logger, "create post", err)
	}
	post, err := g.store.CreatePost(ctx, userID, content)
	if err != nil {
		return models.PostView{}, translate(g.logger, "create post", err)
	}
	return models.PostView{
		ID:        post.ID,
		UserID:    post.UserID,
		Content:   post.Content,
		CreatedAt: post.CreatedAt,
		UpdatedAt: post.UpdatedAt,
		Author:    post.Author.Summary(),
	}, nil
}

func (g *Gateway) DeletePost(ctx context.Context, postID, userID uint) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	err := g.store.DeletePost(ctx, postID, userID)
	if errors.Is(err, store.ErrForbidden) {
		return &Error{Kind: KindForbidden, Message: "You can only delete your own posts"}
	}
	return translate(g.logger, "delete post", err)
}

// LikePost toggles userID's like on postID and returns the resulting state.
func (g *Gateway) LikePost(ctx context.Context, postID, userID uint) (models.LikeState, error) {
	if err := requireUser(userID); err != nil {
		return models.LikeState{}, err
	}
	state, err := g.store.TogglePostLike(ctx, userID, postID)
	if err != nil {
		return models.LikeState{}, translate(g.logger, "like post", err)
	}
	return state, nil
}

func (g *Gateway) CreateComment(ctx context.Context, postID, userID uint, content string) (models.CommentView, error) {
	if err := requireUser(userID); err != nil {
		return models.CommentView{}, err
	}
	if err := store.ValidateCommentContent(content); err != nil {
		return models.CommentView{}, translate(g.logger, "create comment", err)
	}
	comment, err := g.store.CreateComment(ctx, userID, postID, content)
	if err != nil {
		return models.CommentView{}, translate(g.logger, "create comment", err)
	}
	return models.CommentView{
		ID:        comment.ID,
		UserID:    comment.UserID,
		PostID:    comment.PostID,
		Content:   comment.Content,
		CreatedAt: comment.CreatedAt,
		UpdatedAt: comment.UpdatedAt,
		Author:    comment.Author.Summary(),
	}, nil
}

func (g *Gateway) LikeComment(ctx context.Context, commentID, userID uint) (models.LikeState, error) {
	if err := requireUser(userID); err != nil {
		return models.LikeState{}, err
	}
	state, err := g.store.ToggleCommentLike(ctx, userID, commentID)
	if err != nil {
		return models.LikeState{}, translate(g.logger, "like comment", err)
	}
	return state, nil
}

// Users lists every user without credentials.
func (g *Gateway) Users(ctx context.Context) ([]models.UserSummary, error) {
	users, err := g.store.ListUsers(ctx)
	if err != nil {
		return nil, translate(g.logger, "list users", err)
	}
	out := make([]models.UserSummary, 0, len(users))
	for _, u := range users {
		out = append(out, u.Summary())
	}
	return out, nil
}

func (g *Gateway) Health(ctx context.Context) error {
	if err := g.store.Ping(ctx); err != nil {
		g.logger.WithError(err).Error("Database connection failed")
		return &Error{Kind: KindStoreUnavailable, Message: "Database connection failed"}
	}
	return nil
}
