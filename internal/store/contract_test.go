package store

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"socialfeed/internal/models"
)

// factory builds an empty store whose timestamps come from now.
type factory func(t *testing.T, now func() time.Time) Store

// steppingClock returns a clock that advances one second per call.
func steppingClock() func() time.Time {
	var mu sync.Mutex
	current := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)
		return current
	}
}

func frozenClock() func() time.Time {
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return fixed }
}

func mustUser(t *testing.T, s Store, username string) models.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), models.User{
		Username:  username,
		Password:  username + "-pw",
		Firstname: strings.ToUpper(username[:1]) + username[1:],
		Lastname:  "Tester",
		Email:     username + "@example.com",
	})
	if err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return u
}

func mustPost(t *testing.T, s Store, userID uint, content string) models.Post {
	t.Helper()
	p, err := s.CreatePost(context.Background(), userID, content)
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	return p
}

func mustComment(t *testing.T, s Store, userID, postID uint, content string) models.Comment {
	t.Helper()
	c, err := s.CreateComment(context.Background(), userID, postID, content)
	if err != nil {
		t.Fatalf("create comment: %v", err)
	}
	return c
}

func postLikes(t *testing.T, s Store, postID uint) int64 {
	t.Helper()
	var n int64
	err := s.Snapshot(context.Background(), func(r Reader) error {
		counts, err := r.PostLikeCounts([]uint{postID})
		n = counts[postID]
		return err
	})
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	return n
}

func runContract(t *testing.T, newStore factory) {
	t.Run("CreateUserRejectsDuplicates", func(t *testing.T) {
		s := newStore(t, steppingClock())
		ctx := context.Background()
		alice := mustUser(t, s, "alice")
		if alice.ID == 0 {
			t.Fatalf("expected an id")
		}

		_, err := s.CreateUser(ctx, models.User{Username: "alice", Password: "x", Firstname: "A", Lastname: "B", Email: "other@example.com"})
		var dup *DuplicateKeyError
		if !errors.As(err, &dup) || dup.Field != "username" {
			t.Fatalf("expected duplicate username, got %v", err)
		}

		_, err = s.CreateUser(ctx, models.User{Username: "alice2", Password: "x", Firstname: "A", Lastname: "B", Email: "alice@example.com"})
		if !errors.As(err, &dup) || dup.Field != "email" {
			t.Fatalf("expected duplicate email, got %v", err)
		}

		users, err := s.ListUsers(ctx)
		if err != nil {
			t.Fatalf("list users: %v", err)
		}
		if len(users) != 1 {
			t.Fatalf("expected 1 user, got %d", len(users))
		}
	})

	t.Run("DuplicateUsernameReportedBeforeEmail", func(t *testing.T) {
		s := newStore(t, steppingClock())
		ctx := context.Background()
		for _, name := range []string{"alice", "bob", "carol", "dave", "erin"} {
			mustUser(t, s, name)
		}

		// username taken by one user, email by another
		for i := 0; i < 20; i++ {
			_, err := s.CreateUser(ctx, models.User{
				Username: "alice", Password: "x", Firstname: "A", Lastname: "B", Email: "erin@example.com",
			})
			var dup *DuplicateKeyError
			if !errors.As(err, &dup) || dup.Field != "username" {
				t.Fatalf("attempt %d: expected duplicate username, got %v", i, err)
			}
		}
	})

	t.Run("ConcurrentSignupCreatesOneRow", func(t *testing.T) {
		s := newStore(t, steppingClock())
		const attempts = 8
		var wg sync.WaitGroup
		errs := make(chan error, attempts)
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.CreateUser(context.Background(), models.User{
					Username: "racer", Password: "pw", Firstname: "R", Lastname: "R", Email: "racer@example.com",
				})
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)

		var ok, dup int
		for err := range errs {
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrDuplicateKey):
				dup++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}
		if ok != 1 || dup != attempts-1 {
			t.Fatalf("expected 1 success and %d duplicates, got %d and %d", attempts-1, ok, dup)
		}
	})

	t.Run("FindUserByCredentials", func(t *testing.T) {
		s := newStore(t, steppingClock())
		ctx := context.Background()
		alice := mustUser(t, s, "alice")

		got, err := s.FindUserByCredentials(ctx, "alice", "alice-pw")
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if got.ID != alice.ID || got.Email != "alice@example.com" {
			t.Fatalf("unexpected user %+v", got)
		}
		if _, err := s.FindUserByCredentials(ctx, "alice", "wrong"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected not found for wrong password, got %v", err)
		}
		if _, err := s.FindUserByCredentials(ctx, "nobody", "alice-pw"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected not found for unknown user, got %v", err)
		}
	})

	t.Run("CreatePostValidation", func(t *testing.T) {
		s := newStore(t, steppingClock())
		ctx := context.Background()
		alice := mustUser(t, s, "alice")

		cases := []struct {
			content string
			ok      bool
		}{
			{"hello", true},
			{strings.Repeat("é", MaxPostLength), true},
			{"", false},
			{"   \n\t", false},
			{strings.Repeat("é", MaxPostLength+1), false},
		}
		for i, c := range cases {
			_, err := s.CreatePost(ctx, alice.ID, c.content)
			if c.ok && err != nil {
				t.Fatalf("case %d expected ok, got err: %v", i, err)
			}
			if !c.ok && !errors.Is(err, ErrValidation) {
				t.Fatalf("case %d expected validation error, got %v", i, err)
			}
		}

		if _, err := s.CreatePost(ctx, 9999, "orphan"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected not found for unknown user, got %v", err)
		}

		p, err := s.CreatePost(ctx, alice.ID, "with author")
		if err != nil {
			t.Fatalf("create post: %v", err)
		}
		if p.Author.ID != alice.ID || p.Author.Username != "alice" {
			t.Fatalf("expected author to be loaded, got %+v", p.Author)
		}
	})

	t.Run("DeletePostOwnership", func(t *testing.T) {
		s := newStore(t, steppingClock())
		ctx := context.Background()
		alice := mustUser(t, s, "alice")
		bob := mustUser(t, s, "bob")
		post := mustPost(t, s, alice.ID, "hello")
		comment := mustComment(t, s, bob.ID, post.ID, "hi")
		if _, err := s.TogglePostLike(ctx, bob.ID, post.ID); err != nil {
			t.Fatalf("like: %v", err)
		}
		if _, err := s.ToggleCommentLike(ctx, alice.ID, comment.ID); err != nil {
			t.Fatalf("like comment: %v", err)
		}

		if err := s.DeletePost(ctx, post.ID, bob.ID); !errors.Is(err, ErrForbidden) {
			t.Fatalf("expected forbidden, got %v", err)
		}
		err := s.Snapshot(ctx, func(r Reader) error {
			if _, err := r.Post(post.ID); err != nil {
				return err
			}
			comments, err := r.Comments(post.ID)
			if err != nil {
				return err
			}
			if len(comments) != 1 {
				t.Errorf("expected comment to survive, got %d", len(comments))
			}
			likes, err := r.PostLikeCounts([]uint{post.ID})
			if err != nil {
				return err
			}
			if likes[post.ID] != 1 {
				t.Errorf("expected like to survive, got %d", likes[post.ID])
			}
			return nil
		})
		if err != nil {
			t.Fatalf("snapshot: %v", err)
		}

		if err := s.DeletePost(ctx, post.ID, alice.ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if err := s.DeletePost(ctx, post.ID, alice.ID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected not found on second delete, got %v", err)
		}
		err = s.Snapshot(ctx, func(r Reader) error {
			if _, err := r.Post(post.ID); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected deleted post to be gone, got %v", err)
			}
			if _, err := r.Comment(comment.ID); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected comment to be gone, got %v", err)
			}
			counts, err := r.CommentLikeCounts([]uint{comment.ID})
			if err != nil {
				return err
			}
			if counts[comment.ID] != 0 {
				t.Errorf("expected comment likes to be gone")
			}
			return nil
		})
		if err != nil {
			t.Fatalf("snapshot: %v", err)
		}
	})

	t.Run("CreateCommentChecksPost", func(t *testing.T) {
		s := newStore(t, steppingClock())
		ctx := context.Background()
		alice := mustUser(t, s, "alice")
		post := mustPost(t, s, alice.ID, "hello")

		if _, err := s.CreateComment(ctx, alice.ID, 9999, "hi"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
		var nf *NotFoundError
		_, err := s.CreateComment(ctx, alice.ID, 9999, "hi")
		if !errors.As(err, &nf) || nf.Entity != "post" {
			t.Fatalf("expected missing post, got %v", err)
		}
		if _, err := s.CreateComment(ctx, alice.ID, post.ID, "  "); !errors.Is(err, ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
		c := mustComment(t, s, alice.ID, post.ID, "hi")
		if c.PostID != post.ID || c.UserID != alice.ID || c.Content != "hi" {
			t.Fatalf("unexpected comment %+v", c)
		}
		if c.Author.Username != "alice" {
			t.Fatalf("expected author to be loaded, got %+v", c.Author)
		}
	})

	t.Run("TogglePostLike", func(t *testing.T) {
		s := newStore(t, steppingClock())
		ctx := context.Background()
		alice := mustUser(t, s, "alice")
		post := mustPost(t, s, alice.ID, "hello")

		bob := mustUser(t, s, "bob")
		if _, err := s.TogglePostLike(ctx, bob.ID, post.ID); err != nil {
			t.Fatalf("bob toggle: %v", err)
		}

		state, err := s.TogglePostLike(ctx, alice.ID, post.ID)
		if err != nil || state != (models.LikeState{LikesCount: 2, IsLiked: true}) {
			t.Fatalf("first toggle: state=%+v err=%v", state, err)
		}
		if n := postLikes(t, s, post.ID); n != 2 {
			t.Fatalf("expected 2 likes, got %d", n)
		}
		state, err = s.TogglePostLike(ctx, alice.ID, post.ID)
		if err != nil || state != (models.LikeState{LikesCount: 1, IsLiked: false}) {
			t.Fatalf("second toggle: state=%+v err=%v", state, err)
		}
		if _, err := s.TogglePostLike(ctx, bob.ID, post.ID); err != nil {
			t.Fatalf("bob untoggle: %v", err)
		}
		if n := postLikes(t, s, post.ID); n != 0 {
			t.Fatalf("expected 0 likes, got %d", n)
		}
		if _, err := s.TogglePostLike(ctx, alice.ID, 9999); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})

	t.Run("ToggleCommentLike", func(t *testing.T) {
		s := newStore(t, steppingClock())
		ctx := context.Background()
		alice := mustUser(t, s, "alice")
		bob := mustUser(t, s, "bob")
		post := mustPost(t, s, alice.ID, "hello")
		comment := mustComment(t, s, bob.ID, post.ID, "hi")

		for i, u := range []models.User{alice, bob} {
			state, err := s.ToggleCommentLike(ctx, u.ID, comment.ID)
			if err != nil || !state.IsLiked || state.LikesCount != int64(i+1) {
				t.Fatalf("toggle by %s: state=%+v err=%v", u.Username, state, err)
			}
		}
		err := s.Snapshot(ctx, func(r Reader) error {
			counts, err := r.CommentLikeCounts([]uint{comment.ID})
			if err != nil {
				return err
			}
			if counts[comment.ID] != 2 {
				t.Errorf("expected 2 likes, got %d", counts[comment.ID])
			}
			liked, err := r.LikedComments(bob.ID, []uint{comment.ID})
			if err != nil {
				return err
			}
			if !liked[comment.ID] {
				t.Errorf("expected bob to like the comment")
			}
			anon, err := r.LikedComments(0, []uint{comment.ID})
			if err != nil {
				return err
			}
			if anon[comment.ID] {
				t.Errorf("anonymous viewer cannot like")
			}
			return nil
		})
		if err != nil {
			t.Fatalf("snapshot: %v", err)
		}
		if _, err := s.ToggleCommentLike(ctx, alice.ID, 9999); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})

	t.Run("ConcurrentTogglesKeepOneRow", func(t *testing.T) {
		s := newStore(t, steppingClock())
		alice := mustUser(t, s, "alice")
		post := mustPost(t, s, alice.ID, "hello")

		const toggles = 9
		var wg sync.WaitGroup
		for i := 0; i < toggles; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := s.TogglePostLike(context.Background(), alice.ID, post.ID); err != nil {
					t.Errorf("toggle: %v", err)
				}
			}()
		}
		wg.Wait()

		if n := postLikes(t, s, post.ID); n != toggles%2 {
			t.Fatalf("expected %d likes after %d toggles, got %d", toggles%2, toggles, n)
		}
	})

	t.Run("ConcurrentTogglesReportOwnState", func(t *testing.T) {
		s := newStore(t, steppingClock())
		alice := mustUser(t, s, "alice")
		post := mustPost(t, s, alice.ID, "hello")

		const toggles = 10
		var wg sync.WaitGroup
		states := make([]models.LikeState, toggles)
		for i := 0; i < toggles; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				state, err := s.TogglePostLike(context.Background(), alice.ID, post.ID)
				if err != nil {
					t.Errorf("toggle: %v", err)
				}
				states[i] = state
			}(i)
		}
		wg.Wait()

		// any serial order alternates like/unlike, so exactly half report a like
		liked := 0
		for _, st := range states {
			if st.IsLiked {
				liked++
				if st.LikesCount != 1 {
					t.Errorf("a like must report 1, got %+v", st)
				}
			} else if st.LikesCount != 0 {
				t.Errorf("an unlike must report 0, got %+v", st)
			}
		}
		if liked != toggles/2 {
			t.Fatalf("expected %d likes reported, got %d", toggles/2, liked)
		}
	})

	t.Run("DeleteIsAtomicForReaders", func(t *testing.T) {
		s := newStore(t, steppingClock())
		ctx := context.Background()
		alice := mustUser(t, s, "alice")
		users := []models.User{alice, mustUser(t, s, "bob"), mustUser(t, s, "carol")}
		post := mustPost(t, s, alice.ID, "doomed")

		var commentIDs []uint
		for _, u := range users {
			c := mustComment(t, s, u.ID, post.ID, "comment by "+u.Username)
			commentIDs = append(commentIDs, c.ID)
			if _, err := s.TogglePostLike(ctx, u.ID, post.ID); err != nil {
				t.Fatalf("like: %v", err)
			}
			if _, err := s.ToggleCommentLike(ctx, u.ID, c.ID); err != nil {
				t.Fatalf("like comment: %v", err)
			}
		}
		full := int64(len(users))

		done := make(chan struct{})
		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					select {
					case <-done:
						return
					default:
					}
					err := s.Snapshot(ctx, func(r Reader) error {
						posts, err := r.Posts()
						if err != nil {
							return err
						}
						present := false
						for _, p := range posts {
							if p.ID == post.ID {
								present = true
							}
						}
						comments, err := r.CommentCounts([]uint{post.ID})
						if err != nil {
							return err
						}
						likes, err := r.PostLikeCounts([]uint{post.ID})
						if err != nil {
							return err
						}
						commentLikes, err := r.CommentLikeCounts(commentIDs)
						if err != nil {
							return err
						}
						var totalCommentLikes int64
						for _, n := range commentLikes {
							totalCommentLikes += n
						}

						want := int64(0)
						if present {
							want = full
						}
						if comments[post.ID] != want || likes[post.ID] != want || totalCommentLikes != want {
							t.Errorf("torn read: present=%v comments=%d likes=%d comment likes=%d",
								present, comments[post.ID], likes[post.ID], totalCommentLikes)
						}
						return nil
					})
					if err != nil {
						t.Errorf("snapshot: %v", err)
						return
					}
				}
			}()
		}

		if err := s.DeletePost(ctx, post.ID, alice.ID); err != nil {
			t.Errorf("delete: %v", err)
		}
		close(done)
		wg.Wait()

		if n := postLikes(t, s, post.ID); n != 0 {
			t.Fatalf("expected likes to be gone, got %d", n)
		}
	})

	t.Run("SnapshotOrdering", func(t *testing.T) {
		s := newStore(t, frozenClock())
		ctx := context.Background()
		alice := mustUser(t, s, "alice")
		first := mustPost(t, s, alice.ID, "first")
		second := mustPost(t, s, alice.ID, "second")
		c1 := mustComment(t, s, alice.ID, first.ID, "one")
		c2 := mustComment(t, s, alice.ID, first.ID, "two")

		err := s.Snapshot(ctx, func(r Reader) error {
			posts, err := r.Posts()
			if err != nil {
				return err
			}
			if len(posts) != 2 || posts[0].ID != second.ID || posts[1].ID != first.ID {
				t.Errorf("posts out of order: %+v", posts)
			}
			comments, err := r.Comments(first.ID)
			if err != nil {
				return err
			}
			if len(comments) != 2 || comments[0].ID != c1.ID || comments[1].ID != c2.ID {
				t.Errorf("comments out of order: %+v", comments)
			}
			counts, err := r.CommentCounts([]uint{first.ID, second.ID})
			if err != nil {
				return err
			}
			if counts[first.ID] != 2 || counts[second.ID] != 0 {
				t.Errorf("unexpected comment counts %v", counts)
			}
			users, err := r.UsersByID([]uint{alice.ID, 9999})
			if err != nil {
				return err
			}
			if len(users) != 1 || users[alice.ID].Username != "alice" {
				t.Errorf("unexpected users %v", users)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("snapshot: %v", err)
		}
	})

	t.Run("CanceledContextIsUnavailable", func(t *testing.T) {
		s := newStore(t, steppingClock())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if _, err := s.ListUsers(ctx); !errors.Is(err, ErrUnavailable) {
			t.Fatalf("expected unavailable, got %v", err)
		}
		err := s.Snapshot(ctx, func(r Reader) error { return nil })
		if !errors.Is(err, ErrUnavailable) {
			t.Fatalf("expected unavailable snapshot, got %v", err)
		}
		if err := s.Ping(ctx); !errors.Is(err, ErrUnavailable) {
			t.Fatalf("expected unavailable ping, got %v", err)
		}
		if err := s.Ping(context.Background()); err != nil {
			t.Fatalf("ping: %v", err)
		}
	})
}
