package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"socialfeed/internal/auth"
	"socialfeed/internal/models"
)

type likeKey struct {
	userID   uint
	targetID uint
}

// MemoryStore keeps everything in maps behind one RWMutex. Writers hold the
// write lock for the whole operation, which gives the same atomicity the
// relational store gets from transactions.
type MemoryStore struct {
	mu sync.RWMutex

	users        map[uint]models.User
	posts        map[uint]models.Post
	comments     map[uint]models.Comment
	postLikes    map[likeKey]models.PostLike
	commentLikes map[likeKey]models.CommentLike

	lastUserID    uint
	lastPostID    uint
	lastCommentID uint
	lastLikeID    uint

	passwords auth.Passwords
	now       func() time.Time
}

func NewMemoryStore(opts Options) *MemoryStore {
	opts = opts.withDefaults()
	now := opts.NowFunc
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		users:        make(map[uint]models.User),
		posts:        make(map[uint]models.Post),
		comments:     make(map[uint]models.Comment),
		postLikes:    make(map[likeKey]models.PostLike),
		commentLikes: make(map[likeKey]models.CommentLike),
		passwords:    opts.Passwords,
		now:          now,
	}
}

func checkContext(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, unavailable(err))
	}
	return nil
}

func (m *MemoryStore) CreateUser(ctx context.Context, u models.User) (models.User, error) {
	if err := checkContext(ctx, "create user"); err != nil {
		return models.User{}, err
	}
	hashed, err := hashPassword(m.passwords, u.Password)
	if err != nil {
		return models.User{}, fmt.Errorf("create user: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if existing.Username == u.Username {
			return models.User{}, fmt.Errorf("create user: %w", &DuplicateKeyError{Field: "username"})
		}
	}
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return models.User{}, fmt.Errorf("create user: %w", &DuplicateKeyError{Field: "email"})
		}
	}
	m.lastUserID++
	u.ID = m.lastUserID
	u.Password = hashed
	u.CreatedAt = m.now()
	m.users[u.ID] = u
	return u, nil
}

func (m *MemoryStore) FindUserByCredentials(ctx context.Context, username, password string) (models.User, error) {
	if err := checkContext(ctx, "find user"); err != nil {
		return models.User{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.Username == username && m.passwords.Matches(u.Password, password) {
			return u, nil
		}
	}
	return models.User{}, fmt.Errorf("find user: %w", notFound("user"))
}

func (m *MemoryStore) ListUsers(ctx context.Context) ([]models.User, error) {
	if err := checkContext(ctx, "list users"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make([]models.User, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (m *MemoryStore) CreatePost(ctx context.Context, userID uint, content string) (models.Post, error) {
	if err := ValidatePostContent(content); err != nil {
		return models.Post{}, err
	}
	if err := checkContext(ctx, "create post"); err != nil {
		return models.Post{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	author, ok := m.users[userID]
	if !ok {
		return models.Post{}, fmt.Errorf("create post: %w", notFound("user"))
	}
	now := m.now()
	m.lastPostID++
	post := models.Post{
		ID:        m.lastPostID,
		UserID:    userID,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.posts[post.ID] = post
	post.Author = author
	return post, nil
}

func (m *MemoryStore) DeletePost(ctx context.Context, postID, requestingUserID uint) error {
	if err := checkContext(ctx, "delete post"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	post, ok := m.posts[postID]
	if !ok {
		return fmt.Errorf("delete post: %w", notFound("post"))
	}
	if post.UserID != requestingUserID {
		return fmt.Errorf("delete post: %w", ErrForbidden)
	}

	for id, c := range m.comments {
		if c.PostID != postID {
			continue
		}
		for key := range m.commentLikes {
			if key.targetID == id {
				delete(m.commentLikes, key)
			}
		}
		delete(m.comments, id)
	}
	for key := range m.postLikes {
		if key.targetID == postID {
			delete(m.postLikes, key)
		}
	}
	delete(m.posts, postID)
	return nil
}

func (m *MemoryStore) CreateComment(ctx context.Context, userID, postID uint, content string) (models.Comment, error) {
	if err := ValidateCommentContent(content); err != nil {
		return models.Comment{}, err
	}
	if err := checkContext(ctx, "create comment"); err != nil {
		return models.Comment{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.posts[postID]; !ok {
		return models.Comment{}, fmt.Errorf("create comment: %w", notFound("post"))
	}
	author, ok := m.users[userID]
	if !ok {
		return models.Comment{}, fmt.Errorf("create comment: %w", notFound("user"))
	}
	now := m.now()
	m.lastCommentID++
	comment := models.Comment{
		ID:        m.lastCommentID,
		UserID:    userID,
		PostID:    postID,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.comments[comment.ID] = comment
	comment.Author = author
	return comment, nil
}

func (m *MemoryStore) TogglePostLike(ctx context.Context, userID, postID uint) (models.LikeState, error) {
	if err := checkContext(ctx, "toggle post like"); err != nil {
		return models.LikeState{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.posts[postID]; !ok {
		return models.LikeState{}, fmt.Errorf("toggle post like: %w", notFound("post"))
	}
	if _, ok := m.users[userID]; !ok {
		return models.LikeState{}, fmt.Errorf("toggle post like: %w", notFound("user"))
	}
	key := likeKey{userID: userID, targetID: postID}
	_, had := m.postLikes[key]
	if had {
		delete(m.postLikes, key)
	} else {
		m.lastLikeID++
		m.postLikes[key] = models.PostLike{ID: m.lastLikeID, UserID: userID, PostID: postID, CreatedAt: m.now()}
	}
	return models.LikeState{LikesCount: countTarget(m.postLikes, postID), IsLiked: !had}, nil
}

func (m *MemoryStore) ToggleCommentLike(ctx context.Context, userID, commentID uint) (models.LikeState, error) {
	if err := checkContext(ctx, "toggle comment like"); err != nil {
		return models.LikeState{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.comments[commentID]; !ok {
		return models.LikeState{}, fmt.Errorf("toggle comment like: %w", notFound("comment"))
	}
	if _, ok := m.users[userID]; !ok {
		return models.LikeState{}, fmt.Errorf("toggle comment like: %w", notFound("user"))
	}
	key := likeKey{userID: userID, targetID: commentID}
	_, had := m.commentLikes[key]
	if had {
		delete(m.commentLikes, key)
	} else {
		m.lastLikeID++
		m.commentLikes[key] = models.CommentLike{ID: m.lastLikeID, UserID: userID, CommentID: commentID, CreatedAt: m.now()}
	}
	return models.LikeState{LikesCount: countTarget(m.commentLikes, commentID), IsLiked: !had}, nil
}

func countTarget[L any](likes map[likeKey]L, targetID uint) int64 {
	var n int64
	for key := range likes {
		if key.targetID == targetID {
			n++
		}
	}
	return n
}

// Snapshot holds the read lock for the duration of fn. fn must not call back
// into m.
func (m *MemoryStore) Snapshot(ctx context.Context, fn func(r Reader) error) error {
	if err := checkContext(ctx, "snapshot"); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(memoryReader{m: m})
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return checkContext(ctx, "ping")
}

func (m *MemoryStore) Close() error { return nil }

// memoryReader reads m without locking; Snapshot holds the lock.
type memoryReader struct {
	m *MemoryStore
}

func (r memoryReader) Posts() ([]models.Post, error) {
	posts := make([]models.Post, 0, len(r.m.posts))
	for _, p := range r.m.posts {
		posts = append(posts, p)
	}
	sort.Slice(posts, func(i, j int) bool {
		if !posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].CreatedAt.After(posts[j].CreatedAt)
		}
		return posts[i].ID > posts[j].ID
	})
	return posts, nil
}

func (r memoryReader) Post(id uint) (models.Post, error) {
	p, ok := r.m.posts[id]
	if !ok {
		return models.Post{}, notFound("post")
	}
	return p, nil
}

func (r memoryReader) Comments(postID uint) ([]models.Comment, error) {
	var comments []models.Comment
	for _, c := range r.m.comments {
		if c.PostID == postID {
			comments = append(comments, c)
		}
	}
	sort.Slice(comments, func(i, j int) bool {
		if !comments[i].CreatedAt.Equal(comments[j].CreatedAt) {
			return comments[i].CreatedAt.Before(comments[j].CreatedAt)
		}
		return comments[i].ID < comments[j].ID
	})
	return comments, nil
}

func (r memoryReader) Comment(id uint) (models.Comment, error) {
	c, ok := r.m.comments[id]
	if !ok {
		return models.Comment{}, notFound("comment")
	}
	return c, nil
}

func (r memoryReader) UsersByID(ids []uint) (map[uint]models.User, error) {
	out := make(map[uint]models.User, len(ids))
	for _, id := range ids {
		if u, ok := r.m.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (r memoryReader) PostLikeCounts(postIDs []uint) (map[uint]int64, error) {
	wanted := idSet(postIDs)
	out := make(map[uint]int64, len(postIDs))
	for key := range r.m.postLikes {
		if wanted[key.targetID] {
			out[key.targetID]++
		}
	}
	return out, nil
}

func (r memoryReader) CommentCounts(postIDs []uint) (map[uint]int64, error) {
	wanted := idSet(postIDs)
	out := make(map[uint]int64, len(postIDs))
	for _, c := range r.m.comments {
		if wanted[c.PostID] {
			out[c.PostID]++
		}
	}
	return out, nil
}

func (r memoryReader) CommentLikeCounts(commentIDs []uint) (map[uint]int64, error) {
	wanted := idSet(commentIDs)
	out := make(map[uint]int64, len(commentIDs))
	for key := range r.m.commentLikes {
		if wanted[key.targetID] {
			out[key.targetID]++
		}
	}
	return out, nil
}

func (r memoryReader) LikedPosts(userID uint, postIDs []uint) (map[uint]bool, error) {
	out := make(map[uint]bool)
	if userID == 0 {
		return out, nil
	}
	for _, id := range postIDs {
		if _, ok := r.m.postLikes[likeKey{userID: userID, targetID: id}]; ok {
			out[id] = true
		}
	}
	return out, nil
}

func (r memoryReader) LikedComments(userID uint, commentIDs []uint) (map[uint]bool, error) {
	out := make(map[uint]bool)
	if userID == 0 {
		return out, nil
	}
	for _, id := range commentIDs {
		if _, ok := r.m.commentLikes[likeKey{userID: userID, targetID: id}]; ok {
			out[id] = true
		}
	}
	return out, nil
}

func idSet(ids []uint) map[uint]bool {
	set := make(map[uint]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
