package main

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"
	"github.com/sirupsen/logrus"

	"socialfeed/internal/feed"
	"socialfeed/internal/models"
)

type API struct {
	gateway  *feed.Gateway
	agg      *feed.Aggregator
	metrics  *Metrics
	sessions sessions.Store
}

func NewAPI(gateway *feed.Gateway, agg *feed.Aggregator, metrics *Metrics, store sessions.Store) *API {
	return &API{gateway: gateway, agg: agg, metrics: metrics, sessions: store}
}

// newRouter mounts every route at the root and again under /api.
func newRouter(api *API, metricsHandler http.Handler) *mux.Router {
	r := mux.NewRouter()
	r.Use(api.requestLogging)

	r.Handle("/metrics", metricsHandler).Methods("GET")
	api.routes(r)
	api.routes(r.PathPrefix("/api").Subrouter())
	return r
}

func (api *API) routes(r *mux.Router) {
	r.HandleFunc("/signup", api.SignupHandler).Methods("POST")
	r.HandleFunc("/login", api.LoginHandler).Methods("POST")
	r.HandleFunc("/logout", api.LogoutHandler).Methods("POST")
	r.HandleFunc("/posts", api.GETPostsHandler).Methods("GET")
	r.HandleFunc("/posts", api.POSTPostHandler).Methods("POST")
	r.HandleFunc("/posts/{id:[0-9]+}", api.DELETEPostHandler).Methods("DELETE")
	r.HandleFunc("/posts/{id:[0-9]+}/like", api.POSTPostLikeHandler).Methods("POST")
	r.HandleFunc("/posts/{id:[0-9]+}/comments", api.GETCommentsHandler).Methods("GET")
	r.HandleFunc("/posts/{id:[0-9]+}/comments", api.POSTCommentHandler).Methods("POST")
	r.HandleFunc("/comments/{id:[0-9]+}/like", api.POSTCommentLikeHandler).Methods("POST")
	r.HandleFunc("/users", api.GETUsersHandler).Methods("GET")
	r.HandleFunc("/test-db", api.TestDBHandler).Methods("GET")
}

func (api *API) saveSession(w http.ResponseWriter, r *http.Request, userID uint) {
	session, _ := api.sessions.Get(r, sessionName)
	if userID == 0 {
		session.Options.MaxAge = -1
		delete(session.Values, "user_id")
	} else {
		session.Values["user_id"] = userID
	}
	if err := session.Save(r, w); err != nil {
		logger.WithError(err).Warn("Failed to save session")
	}
}

func (api *API) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var req feed.SignupRequest
	if err := decodeBody(r, &req); err != nil {
		api.badRequest(w, "signup", err)
		return
	}

	logger.WithFields(logrus.Fields{"username": req.Username, "email": req.Email}).Debug("Validating registration input")

	user, err := api.gateway.Signup(r.Context(), req)
	if err != nil {
		logger.WithField("username", req.Username).Warn(err.Error())
		api.failWith(w, "signup", err)
		return
	}
	api.saveSession(w, r, user.ID)
	api.ok(w, "signup", UserResponse{Success: true, Message: "User registered successfully", User: user})
}

func (api *API) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeBody(r, &req); err != nil {
		api.badRequest(w, "login", err)
		return
	}

	user, err := api.gateway.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		api.failWith(w, "login", err)
		return
	}
	logger.WithField("username", user.Username).Info("User logged in successfully")
	api.saveSession(w, r, user.ID)
	api.ok(w, "login", UserResponse{Success: true, Message: "Login successful", User: user})
}

func (api *API) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	api.saveSession(w, r, 0)
	api.ok(w, "logout", MessageResponse{Success: true, Message: "Logged out"})
}

func (api *API) GETPostsHandler(w http.ResponseWriter, r *http.Request) {
	viewer, err := api.viewerID(r)
	if err != nil {
		api.badRequest(w, "get_posts", err)
		return
	}
	posts, err := api.agg.ListPosts(r.Context(), viewer)
	if err != nil {
		api.failWith(w, "get_posts", err)
		return
	}
	logger.WithField("post_count", len(posts)).Info("Posts retrieved successfully")
	api.ok(w, "get_posts", posts)
}

func (api *API) POSTPostHandler(w http.ResponseWriter, r *http.Request) {
	var req ContentRequest
	if err := decodeBody(r, &req); err != nil {
		api.badRequest(w, "post_post", err)
		return
	}
	userID, err := api.actorID(r, req.UserID)
	if err != nil {
		api.badRequest(w, "post_post", err)
		return
	}

	post, err := api.gateway.CreatePost(r.Context(), userID, req.Content)
	if err != nil {
		api.failWith(w, "post_post", err)
		return
	}
	api.metrics.PostsCreated.Inc()
	api.ok(w, "post_post", PostResponse{Success: true, Post: post})
}

func (api *API) DELETEPostHandler(w http.ResponseWriter, r *http.Request) {
	postID, err := pathID(r)
	if err != nil {
		api.badRequest(w, "delete_post", err)
		return
	}
	var req ActorRequest
	if err := decodeBody(r, &req); err != nil {
		api.badRequest(w, "delete_post", err)
		return
	}
	userID, err := api.actorID(r, req.UserID)
	if err != nil {
		api.badRequest(w, "delete_post", err)
		return
	}

	if err := api.gateway.DeletePost(r.Context(), postID, userID); err != nil {
		api.failWith(w, "delete_post", err)
		return
	}
	logger.WithFields(logrus.Fields{"post_id": postID, "user_id": userID}).Info("Post deleted")
	api.ok(w, "delete_post", MessageResponse{Success: true, Message: "Post deleted successfully"})
}

func (api *API) POSTPostLikeHandler(w http.ResponseWriter, r *http.Request) {
	api.like(w, r, "post_like", "post", api.gateway.LikePost)
}

func (api *API) POSTCommentLikeHandler(w http.ResponseWriter, r *http.Request) {
	api.like(w, r, "comment_like", "comment", api.gateway.LikeComment)
}

var likeMessages = map[string]map[bool]string{
	"post":    {true: "Post liked", false: "Post unliked"},
	"comment": {true: "Comment liked", false: "Comment unliked"},
}

type likeToggle func(ctx context.Context, targetID, userID uint) (models.LikeState, error)

func (api *API) like(w http.ResponseWriter, r *http.Request, path, target string, toggle likeToggle) {
	targetID, err := pathID(r)
	if err != nil {
		api.badRequest(w, path, err)
		return
	}
	var req ActorRequest
	if err := decodeBody(r, &req); err != nil {
		api.badRequest(w, path, err)
		return
	}
	userID, err := api.actorID(r, req.UserID)
	if err != nil {
		api.badRequest(w, path, err)
		return
	}

	state, err := toggle(r.Context(), targetID, userID)
	if err != nil {
		api.failWith(w, path, err)
		return
	}
	api.metrics.LikesToggled.WithLabelValues(target, likeState(state.IsLiked)).Inc()

	message := likeMessages[target][state.IsLiked]
	api.ok(w, path, LikeResponse{
		Success:    true,
		Message:    message,
		LikesCount: state.LikesCount,
		IsLiked:    state.IsLiked,
	})
}

func (api *API) GETCommentsHandler(w http.ResponseWriter, r *http.Request) {
	postID, err := pathID(r)
	if err != nil {
		api.badRequest(w, "get_comments", err)
		return
	}
	viewer, err := api.viewerID(r)
	if err != nil {
		api.badRequest(w, "get_comments", err)
		return
	}
	comments, err := api.agg.ListComments(r.Context(), postID, viewer)
	if err != nil {
		api.failWith(w, "get_comments", err)
		return
	}
	api.ok(w, "get_comments", comments)
}

func (api *API) POSTCommentHandler(w http.ResponseWriter, r *http.Request) {
	postID, err := pathID(r)
	if err != nil {
		api.badRequest(w, "post_comment", err)
		return
	}
	var req ContentRequest
	if err := decodeBody(r, &req); err != nil {
		api.badRequest(w, "post_comment", err)
		return
	}
	userID, err := api.actorID(r, req.UserID)
	if err != nil {
		api.badRequest(w, "post_comment", err)
		return
	}

	comment, err := api.gateway.CreateComment(r.Context(), postID, userID, req.Content)
	if err != nil {
		api.failWith(w, "post_comment", err)
		return
	}
	api.metrics.CommentsCreated.Inc()
	api.ok(w, "post_comment", CommentResponse{Success: true, Comment: comment})
}

func (api *API) GETUsersHandler(w http.ResponseWriter, r *http.Request) {
	users, err := api.gateway.Users(r.Context())
	if err != nil {
		api.failWith(w, "get_users", err)
		return
	}
	api.ok(w, "get_users", users)
}

func (api *API) TestDBHandler(w http.ResponseWriter, r *http.Request) {
	if err := api.gateway.Health(r.Context()); err != nil {
		api.failWith(w, "test_db", err)
		return
	}
	api.ok(w, "test_db", MessageResponse{Success: true, Message: "Database connection successful"})
}
