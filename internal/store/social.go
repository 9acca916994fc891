package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bloopsocial/bloop/internal/realtime"
	"gorm.io/gorm"
)

// Profile returns the minimal projection embedded in notifications
func (u *User) Profile() *realtime.Profile {
	return &realtime.Profile{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Avatar:      u.AvatarURL,
	}
}

// CreateUser stores a new user
func (s *Store) CreateUser(ctx context.Context, username, displayName, avatar string) (*User, error) {
	u := &User{
		ID:          newID(),
		Username:    strings.TrimSpace(username),
		DisplayName: displayName,
		AvatarURL:   avatar,
	}
	if err := s.conn(ctx).Create(u).Error; err != nil {
		return nil, err
	}
	return u, nil
}

// GetUser loads a user by id
func (s *Store) GetUser(ctx context.Context, id string) (*User, error) {
	var u User
	if err := s.conn(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// GetUserByUsername loads a user by username
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var u User
	if err := s.conn(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// CreatePost stores a new post
func (s *Store) CreatePost(ctx context.Context, authorID, text string) (*Post, error) {
	p := &Post{ID: newID(), AuthorID: authorID, Text: text}
	if err := s.conn(ctx).Create(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

// GetPost loads a post by id
func (s *Store) GetPost(ctx context.Context, id string) (*Post, error) {
	var p Post
	if err := s.conn(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// CreateComment stores a comment on postID, optionally replying to parentID.
// The parent must belong to the same post.
func (s *Store) CreateComment(ctx context.Context, authorID, postID, parentID, text string) (*Comment, error) {
	c := &Comment{ID: newID(), PostID: postID, AuthorID: authorID, ParentID: parentID, Text: text}
	err := s.Transaction(ctx, func(ctx context.Context) error {
		if _, err := s.GetPost(ctx, postID); err != nil {
			return err
		}
		if parentID != "" {
			parent, err := s.GetComment(ctx, parentID)
			if err != nil {
				return err
			}
			if parent.PostID != postID {
				return ErrNotFound
			}
			if parent.Depth+1 >= MaxCommentDepth {
				return ErrMaxDepth
			}
			c.Depth = parent.Depth + 1
		}
		return s.conn(ctx).Create(c).Error
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GetComment loads a comment by id
func (s *Store) GetComment(ctx context.Context, id string) (*Comment, error) {
	var c Comment
	if err := s.conn(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// TogglePostLike likes postID for userID, or removes an existing like
func (s *Store) TogglePostLike(ctx context.Context, userID, postID string) (*LikeResult, error) {
	res := &LikeResult{}
	err := s.Transaction(ctx, func(ctx context.Context) error {
		post, err := s.GetPost(ctx, postID)
		if err != nil {
			return err
		}
		res.Owner = post.AuthorID

		del := s.conn(ctx).Where("user_id = ? AND post_id = ?", userID, postID).Delete(&PostLike{})
		if del.Error != nil {
			return del.Error
		}
		if del.RowsAffected == 0 {
			if err := s.conn(ctx).Create(&PostLike{UserID: userID, PostID: postID, CreatedAt: time.Now()}).Error; err != nil {
				return err
			}
			res.Liked = true
		}
		res.Likes, err = s.CountPostLikes(ctx, postID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// CountPostLikes counts the likes of a post
func (s *Store) CountPostLikes(ctx context.Context, postID string) (int64, error) {
	var n int64
	err := s.conn(ctx).Model(&PostLike{}).Where("post_id = ?", postID).Count(&n).Error
	return n, err
}

// ToggleCommentLike likes commentID for userID, or removes an existing like
func (s *Store) ToggleCommentLike(ctx context.Context, userID, commentID string) (*LikeResult, error) {
	res := &LikeResult{}
	err := s.Transaction(ctx, func(ctx context.Context) error {
		comment, err := s.GetComment(ctx, commentID)
		if err != nil {
			return err
		}
		res.Owner = comment.AuthorID

		del := s.conn(ctx).Where("user_id = ? AND comment_id = ?", userID, commentID).Delete(&CommentLike{})
		if del.Error != nil {
			return del.Error
		}
		if del.RowsAffected == 0 {
			if err := s.conn(ctx).Create(&CommentLike{UserID: userID, CommentID: commentID, CreatedAt: time.Now()}).Error; err != nil {
				return err
			}
			res.Liked = true
		}
		return s.conn(ctx).Model(&CommentLike{}).Where("comment_id = ?", commentID).Count(&res.Likes).Error
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Follow makes followerID follow targetID. It reports false when the
// relation already existed.
func (s *Store) Follow(ctx context.Context, followerID, targetID string) (bool, error) {
	created := false
	err := s.Transaction(ctx, func(ctx context.Context) error {
		if _, err := s.GetUser(ctx, targetID); err != nil {
			return err
		}
		var existing Follow
		err := s.conn(ctx).Where("follower_id = ? AND following_id = ?", followerID, targetID).First(&existing).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		created = true
		return s.conn(ctx).Create(&Follow{FollowerID: followerID, FollowingID: targetID, CreatedAt: time.Now()}).Error
	})
	return created, err
}

// Unfollow removes the relation and reports whether it existed
func (s *Store) Unfollow(ctx context.Context, followerID, targetID string) (bool, error) {
	res := s.conn(ctx).Where("follower_id = ? AND following_id = ?", followerID, targetID).Delete(&Follow{})
	return res.RowsAffected > 0, res.Error
}

// CountFollowers counts the followers of userID
func (s *Store) CountFollowers(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := s.conn(ctx).Model(&Follow{}).Where("following_id = ?", userID).Count(&n).Error
	return n, err
}
