// Package feed builds denormalized post and comment views and applies
// validated mutations to the store.
package feed

import (
	"context"
	"sort"

	"github.com/sirupsen/logrus"

	"socialfeed/internal/models"
	"socialfeed/internal/store"
)

// Aggregator computes views from the store on every call. Nothing is cached;
// each call reads one snapshot so counts and like flags agree with the rows
// they decorate.
type Aggregator struct {
	store  store.Store
	logger logrus.FieldLogger
}

func NewAggregator(s store.Store, logger logrus.FieldLogger) *Aggregator {
	return &Aggregator{store: s, logger: logger}
}

// ListPosts returns every post, newest first. viewerID 0 is anonymous.
func (a *Aggregator) ListPosts(ctx context.Context, viewerID uint) ([]models.PostView, error) {
	var views []models.PostView
	err := a.store.Snapshot(ctx, func(r store.Reader) error {
		posts, err := r.Posts()
		if err != nil {
			return err
		}
		views, err = postViews(r, posts, viewerID)
		return err
	})
	if err != nil {
		return nil, translate(a.logger, "list posts", err)
	}
	return views, nil
}

// ListComments returns the comments of postID, oldest first.
func (a *Aggregator) ListComments(ctx context.Context, postID, viewerID uint) ([]models.CommentView, error) {
	var views []models.CommentView
	err := a.store.Snapshot(ctx, func(r store.Reader) error {
		if _, err := r.Post(postID); err != nil {
			return err
		}
		comments, err := r.Comments(postID)
		if err != nil {
			return err
		}
		views, err = commentViews(r, comments, viewerID)
		return err
	})
	if err != nil {
		return nil, translate(a.logger, "list comments", err)
	}
	return views, nil
}

// postViews decorates posts with author, counts and the viewer's like flag.
// Posts whose author cannot be loaded are dropped.
func postViews(r store.Reader, posts []models.Post, viewerID uint) ([]models.PostView, error) {
	views := make([]models.PostView, 0, len(posts))
	if len(posts) == 0 {
		return views, nil
	}
	ids := make([]uint, 0, len(posts))
	authorIDs := make([]uint, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
		authorIDs = append(authorIDs, p.UserID)
	}

	authors, err := r.UsersByID(uniq(authorIDs))
	if err != nil {
		return nil, err
	}
	likes, err := r.PostLikeCounts(ids)
	if err != nil {
		return nil, err
	}
	comments, err := r.CommentCounts(ids)
	if err != nil {
		return nil, err
	}
	liked, err := r.LikedPosts(viewerID, ids)
	if err != nil {
		return nil, err
	}

	for _, p := range posts {
		author, ok := authors[p.UserID]
		if !ok {
			continue
		}
		views = append(views, models.PostView{
			ID:            p.ID,
			UserID:        p.UserID,
			Content:       p.Content,
			CreatedAt:     p.CreatedAt,
			UpdatedAt:     p.UpdatedAt,
			Author:        author.Summary(),
			LikesCount:    likes[p.ID],
			CommentsCount: comments[p.ID],
			IsLiked:       liked[p.ID],
		})
	}
	sort.SliceStable(views, func(i, j int) bool {
		if !views[i].CreatedAt.Equal(views[j].CreatedAt) {
			return views[i].CreatedAt.After(views[j].CreatedAt)
		}
		return views[i].ID > views[j].ID
	})
	return views, nil
}

func commentViews(r store.Reader, comments []models.Comment, viewerID uint) ([]models.CommentView, error) {
	views := make([]models.CommentView, 0, len(comments))
	if len(comments) == 0 {
		return views, nil
	}
	ids := make([]uint, 0, len(comments))
	authorIDs := make([]uint, 0, len(comments))
	for _, c := range comments {
		ids = append(ids, c.ID)
		authorIDs = append(authorIDs, c.UserID)
	}

	authors, err := r.UsersByID(uniq(authorIDs))
	if err != nil {
		return nil, err
	}
	likes, err := r.CommentLikeCounts(ids)
	if err != nil {
		return nil, err
	}
	liked, err := r.LikedComments(viewerID, ids)
	if err != nil {
		return nil, err
	}

	for _, c := range comments {
		author, ok := authors[c.UserID]
		if !ok {
			continue
		}
		views = append(views, models.CommentView{
			ID:         c.ID,
			UserID:     c.UserID,
			PostID:     c.PostID,
			Content:    c.Content,
			CreatedAt:  c.CreatedAt,
			UpdatedAt:  c.UpdatedAt,
			Author:     author.Summary(),
			LikesCount: likes[c.ID],
			IsLiked:    liked[c.ID],
		})
	}
	sort.SliceStable(views, func(i, j int) bool {
		if !views[i].CreatedAt.Equal(views[j].CreatedAt) {
			return views[i].CreatedAt.Before(views[j].CreatedAt)
		}
		return views[i].ID < views[j].ID
	})
	return views, nil
}

func uniq(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
