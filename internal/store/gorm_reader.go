package store

import (
	"gorm.io/gorm"

	"socialfeed/internal/models"
)

// gormReader answers Snapshot reads inside a single transaction.
type gormReader struct {
	tx *gorm.DB
}

type countRow struct {
	TargetID uint
	N        int64
}

func (r gormReader) Posts() ([]models.Post, error) {
	var posts []models.Post
	err := r.tx.Order("created_at DESC").Order("id DESC").Find(&posts).Error
	return posts, err
}

func (r gormReader) Post(id uint) (models.Post, error) {
	var post models.Post
	if err := r.tx.First(&post, id).Error; err != nil {
		if classify(err) == ErrNotFound {
			return models.Post{}, notFound("post")
		}
		return models.Post{}, err
	}
	return post, nil
}

func (r gormReader) Comments(postID uint) ([]models.Comment, error) {
	var comments []models.Comment
	err := r.tx.Where("post_id = ?", postID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&comments).Error
	return comments, err
}

func (r gormReader) Comment(id uint) (models.Comment, error) {
	var comment models.Comment
	if err := r.tx.First(&comment, id).Error; err != nil {
		if classify(err) == ErrNotFound {
			return models.Comment{}, notFound("comment")
		}
		return models.Comment{}, err
	}
	return comment, nil
}

func (r gormReader) UsersByID(ids []uint) (map[uint]models.User, error) {
	out := make(map[uint]models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var users []models.User
	if err := r.tx.Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

func (r gormReader) PostLikeCounts(postIDs []uint) (map[uint]int64, error) {
	return r.countBy(&models.PostLike{}, "post_id", postIDs)
}

func (r gormReader) CommentCounts(postIDs []uint) (map[uint]int64, error) {
	return r.countBy(&models.Comment{}, "post_id", postIDs)
}

func (r gormReader) CommentLikeCounts(commentIDs []uint) (map[uint]int64, error) {
	return r.countBy(&models.CommentLike{}, "comment_id", commentIDs)
}

// countBy groups model rows by column for the given ids.
func (r gormReader) countBy(model any, column string, ids []uint) (map[uint]int64, error) {
	out := make(map[uint]int64, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []countRow
	err := r.tx.Model(model).
		Select(column+" AS target_id, COUNT(*) AS n").
		Where(column+" IN ?", ids).
		Group(column).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.TargetID] = row.N
	}
	return out, nil
}

func (r gormReader) LikedPosts(userID uint, postIDs []uint) (map[uint]bool, error) {
	return r.likedBy(&models.PostLike{}, "post_id", userID, postIDs)
}

func (r gormReader) LikedComments(userID uint, commentIDs []uint) (map[uint]bool, error) {
	return r.likedBy(&models.CommentLike{}, "comment_id", userID, commentIDs)
}

func (r gormReader) likedBy(model any, column string, userID uint, ids []uint) (map[uint]bool, error) {
	out := make(map[uint]bool)
	if userID == 0 || len(ids) == 0 {
		return out, nil
	}
	var liked []uint
	err := r.tx.Model(model).
		Where("user_id = ? AND "+column+" IN ?", userID, ids).
		Pluck(column, &liked).Error
	if err != nil {
		return nil, err
	}
	for _, id := range liked {
		out[id] = true
	}
	return out, nil
}
