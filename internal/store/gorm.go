package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"socialfeed/internal/auth"
	"socialfeed/internal/config"
	"socialfeed/internal/models"
)

const defaultTimeout = 5 * time.Second

type Options struct {
	// Timeout bounds every store call. Zero means five seconds.
	Timeout   time.Duration
	Passwords auth.Passwords
	Logger    logrus.FieldLogger
	// NowFunc overrides the clock used for created_at/updated_at.
	NowFunc func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.Passwords == nil {
		o.Passwords = auth.Plain{}
	}
	if o.Logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		o.Logger = l
	}
	return o
}

// GormStore is the relational Store, backed by SQLite or PostgreSQL.
type GormStore struct {
	db        *gorm.DB
	timeout   time.Duration
	passwords auth.Passwords
	logger    logrus.FieldLogger
	// snapshotOpts isolates Snapshot reads; nil on SQLite, whose single
	// connection already serializes them.
	snapshotOpts *sql.TxOptions
	lockRows     bool
}

// Open connects to PostgreSQL when cfg names a host and to the SQLite file
// at cfg.Database.Path otherwise.
func Open(cfg *config.Config, opts Options) (*GormStore, error) {
	opts = opts.withDefaults()
	if cfg.UsePostgres() {
		opts.Logger.WithField("host", cfg.Database.Host).Info("Connecting to PostgreSQL database")
		return OpenPostgres(cfg.PostgresDSN(), opts)
	}
	opts.Logger.WithField("path", cfg.Database.Path).Info("Connecting to SQLite database")
	return OpenSQLite(cfg.Database.Path, opts)
}

func OpenSQLite(path string, opts Options) (*GormStore, error) {
	opts = opts.withDefaults()
	dsn := path + "?_foreign_keys=on&_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), gormConfig(opts))
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// one writer at a time; concurrent callers queue on the pool
	sqlDB.SetMaxOpenConns(1)

	return newGormStore(db, opts, nil, false)
}

func OpenPostgres(dsn string, opts Options) (*GormStore, error) {
	opts = opts.withDefaults()
	db, err := gorm.Open(postgres.Open(dsn), gormConfig(opts))
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	snapshot := &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	return newGormStore(db, opts, snapshot, true)
}

func gormConfig(opts Options) *gorm.Config {
	return &gorm.Config{
		Logger: gormlogger.New(opts.Logger, gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
		NowFunc: opts.NowFunc,
	}
}

func newGormStore(db *gorm.DB, opts Options, snapshot *sql.TxOptions, lockRows bool) (*GormStore, error) {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	opts.Logger.Info("Database connection successful")
	return &GormStore{
		db:           db,
		timeout:      opts.Timeout,
		passwords:    opts.Passwords,
		logger:       opts.Logger,
		snapshotOpts: snapshot,
		lockRows:     lockRows,
	}, nil
}

// session returns a handle bound to a context carrying the store timeout.
func (s *GormStore) session(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	return s.db.WithContext(ctx), cancel
}

// fail classifies err and logs anything that is not an expected domain outcome.
func (s *GormStore) fail(op string, err error) error {
	classified := classify(err)
	if !isClassified(classified) {
		s.logger.WithError(err).WithField("op", op).Error("Unexpected database error")
	} else if errors.Is(classified, ErrUnavailable) {
		s.logger.WithError(err).WithField("op", op).Warn("Database unavailable")
	}
	return fmt.Errorf("%s: %w", op, classified)
}

func (s *GormStore) CreateUser(ctx context.Context, u models.User) (models.User, error) {
	db, cancel := s.session(ctx)
	defer cancel()

	hashed, err := hashPassword(s.passwords, u.Password)
	if err != nil {
		return models.User{}, fmt.Errorf("create user: %w", err)
	}
	u.ID = 0
	u.Password = hashed
	if err := db.Create(&u).Error; err != nil {
		return models.User{}, s.fail("create user", err)
	}
	return u, nil
}

func (s *GormStore) FindUserByCredentials(ctx context.Context, username, password string) (models.User, error) {
	db, cancel := s.session(ctx)
	defer cancel()

	var u models.User
	if err := db.Where("username = ?", username).First(&u).Error; err != nil {
		return models.User{}, s.fail("find user", err)
	}
	if !s.passwords.Matches(u.Password, password) {
		return models.User{}, fmt.Errorf("find user: %w", notFound("user"))
	}
	return u, nil
}

func (s *GormStore) ListUsers(ctx context.Context) ([]models.User, error) {
	db, cancel := s.session(ctx)
	defer cancel()

	var users []models.User
	if err := db.Order("id").Find(&users).Error; err != nil {
		return nil, s.fail("list users", err)
	}
	return users, nil
}

func (s *GormStore) CreatePost(ctx context.Context, userID uint, content string) (models.Post, error) {
	if err := ValidatePostContent(content); err != nil {
		return models.Post{}, err
	}
	db, cancel := s.session(ctx)
	defer cancel()

	post := models.Post{UserID: userID, Content: content}
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := loadUser(tx, userID, &post.Author); err != nil {
			return err
		}
		return tx.Omit(clause.Associations).Create(&post).Error
	})
	if err != nil {
		return models.Post{}, s.fail("create post", err)
	}
	return post, nil
}

// DeletePost removes the post with its likes, comments and comment likes in
// one transaction, so readers observe either all of it or none of it.
func (s *GormStore) DeletePost(ctx context.Context, postID, requestingUserID uint) error {
	db, cancel := s.session(ctx)
	defer cancel()

	err := db.Transaction(func(tx *gorm.DB) error {
		q := tx.Select("id", "user_id")
		if s.lockRows {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var post models.Post
		if err := q.First(&post, postID).Error; err != nil {
			if classify(err) == ErrNotFound {
				return notFound("post")
			}
			return err
		}
		if post.UserID != requestingUserID {
			return ErrForbidden
		}

		commentIDs := tx.Model(&models.Comment{}).Select("id").Where("post_id = ?", postID)
		if err := tx.Where("comment_id IN (?)", commentIDs).Delete(&models.CommentLike{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", postID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", postID).Delete(&models.PostLike{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Post{}, postID).Error
	})
	if err != nil {
		return s.fail("delete post", err)
	}
	return nil
}

func (s *GormStore) CreateComment(ctx context.Context, userID, postID uint, content string) (models.Comment, error) {
	if err := ValidateCommentContent(content); err != nil {
		return models.Comment{}, err
	}
	db, cancel := s.session(ctx)
	defer cancel()

	comment := models.Comment{UserID: userID, PostID: postID, Content: content}
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := mustExist(tx, &models.Post{}, postID, "post"); err != nil {
			return err
		}
		if err := loadUser(tx, userID, &comment.Author); err != nil {
			return err
		}
		return tx.Omit(clause.Associations).Create(&comment).Error
	})
	if err != nil {
		return models.Comment{}, s.fail("create comment", err)
	}
	return comment, nil
}

func (s *GormStore) TogglePostLike(ctx context.Context, userID, postID uint) (models.LikeState, error) {
	state, err := s.toggle(ctx, likeTable{
		target:       &models.Post{},
		targetID:     postID,
		entity:       "post",
		like:         &models.PostLike{},
		targetColumn: "post_id",
		newLike:      func() any { return &models.PostLike{UserID: userID, PostID: postID} },
	}, userID)
	if err != nil {
		return models.LikeState{}, s.fail("toggle post like", err)
	}
	return state, nil
}

func (s *GormStore) ToggleCommentLike(ctx context.Context, userID, commentID uint) (models.LikeState, error) {
	state, err := s.toggle(ctx, likeTable{
		target:       &models.Comment{},
		targetID:     commentID,
		entity:       "comment",
		like:         &models.CommentLike{},
		targetColumn: "comment_id",
		newLike:      func() any { return &models.CommentLike{UserID: userID, CommentID: commentID} },
	}, userID)
	if err != nil {
		return models.LikeState{}, s.fail("toggle comment like", err)
	}
	return state, nil
}

type likeTable struct {
	target       any
	targetID     uint
	entity       string
	like         any
	targetColumn string
	newLike      func() any
}

// toggle deletes the (user, target) like row if one exists and inserts it
// otherwise. The insert is ON CONFLICT DO NOTHING against the unique index, so
// two racing toggles can never leave two rows behind. The count is read
// before commit.
func (s *GormStore) toggle(ctx context.Context, lt likeTable, userID uint) (models.LikeState, error) {
	db, cancel := s.session(ctx)
	defer cancel()

	var state models.LikeState
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := mustExist(tx, lt.target, lt.targetID, lt.entity); err != nil {
			return err
		}
		if err := mustExist(tx, &models.User{}, userID, "user"); err != nil {
			return err
		}

		res := tx.Where("user_id = ? AND "+lt.targetColumn+" = ?", userID, lt.targetID).Delete(lt.like)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			state.IsLiked = true
			err := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Omit(clause.Associations).
				Create(lt.newLike()).Error
			if err != nil {
				return err
			}
		}
		return tx.Model(lt.like).Where(lt.targetColumn+" = ?", lt.targetID).Count(&state.LikesCount).Error
	})
	return state, err
}

func mustExist(tx *gorm.DB, model any, id uint, entity string) error {
	var count int64
	if err := tx.Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return notFound(entity)
	}
	return nil
}

func loadUser(tx *gorm.DB, id uint, dest *models.User) error {
	if err := tx.First(dest, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("user")
		}
		return err
	}
	return nil
}

func (s *GormStore) Snapshot(ctx context.Context, fn func(r Reader) error) error {
	db, cancel := s.session(ctx)
	defer cancel()

	var opts []*sql.TxOptions
	if s.snapshotOpts != nil {
		opts = append(opts, s.snapshotOpts)
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		return fn(gormReader{tx: tx})
	}, opts...)
	if err != nil {
		return s.fail("snapshot", err)
	}
	return nil
}

// Ping runs a trivial query through the pool.
func (s *GormStore) Ping(ctx context.Context) error {
	db, cancel := s.session(ctx)
	defer cancel()

	var result int
	if err := db.Raw("SELECT 1 + 1 AS result").Scan(&result).Error; err != nil {
		return s.fail("ping", err)
	}
	if result != 2 {
		return fmt.Errorf("ping: %w", unavailable(fmt.Errorf("unexpected result %d", result)))
	}
	return nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
