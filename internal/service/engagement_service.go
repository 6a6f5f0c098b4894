package service

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"ripple/internal/models"
	"ripple/internal/observability"
	"ripple/internal/repository"
)

// LikeResult is the state of a post's like relation after a toggle.
type LikeResult struct {
	Liked     bool  `json:"liked"`
	LikeCount int64 `json:"like_count"`
}

// FollowResult is the state of a follow relation after a toggle.
type FollowResult struct {
	Following     bool   `json:"following"`
	FollowerCount int64  `json:"follower_count"`
	Username      string `json:"username"`
}

// EngagementService owns the idempotent like and follow toggles.
type EngagementService struct {
	postRepo   repository.PostRepository
	followRepo repository.FollowRepository
	userRepo   repository.UserRepository
}

func NewEngagementService(postRepo repository.PostRepository, followRepo repository.FollowRepository, userRepo repository.UserRepository) *EngagementService {
	return &EngagementService{
		postRepo:   postRepo,
		followRepo: followRepo,
		userRepo:   userRepo,
	}
}

// ToggleLike flips the (user, post) like relation and reports the resulting
// state. The insert carries an ON CONFLICT DO NOTHING clause, so two racing
// toggles converge on one stored row; when the insert reports zero rows the
// relation already existed and this call recovers into the off branch, so
// every request still flips the state once.
func (s *EngagementService) ToggleLike(ctx context.Context, userID, postID uint) (*LikeResult, error) {
	if userID == 0 {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	if _, err := s.postRepo.GetByID(ctx, postID, 0); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", postID)
		}
		return nil, models.NewInternalError(err)
	}

	isLiked, err := s.postRepo.IsLiked(ctx, userID, postID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	liked := !isLiked
	if isLiked {
		if err := s.postRepo.Unlike(ctx, userID, postID); err != nil {
			return nil, models.NewInternalError(err)
		}
		observability.ToggleOperations.WithLabelValues("like", "off").Inc()
	} else {
		inserted, err := s.postRepo.Like(ctx, userID, postID)
		if err != nil {
			return nil, models.NewInternalError(err)
		}
		if inserted {
			observability.ToggleOperations.WithLabelValues("like", "on").Inc()
		} else {
			// A concurrent toggle inserted the row between our read and our
			// write, so the like was already on; this request takes the off
			// flip instead.
			if err := s.postRepo.Unlike(ctx, userID, postID); err != nil {
				return nil, models.NewInternalError(err)
			}
			liked = false
			observability.ToggleOperations.WithLabelValues("like", "off").Inc()
		}
	}

	count, err := s.postRepo.LikeCount(ctx, postID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &LikeResult{Liked: liked, LikeCount: count}, nil
}

// ToggleFollow flips the follow edge from the caller to the named user.
// Self-follow is rejected here in addition to the store's check constraint.
func (s *EngagementService) ToggleFollow(ctx context.Context, followerID uint, username string) (*FollowResult, error) {
	if followerID == 0 {
		return nil, models.NewUnauthorizedError("Authentication required")
	}

	target, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("User", username)
		}
		return nil, models.NewInternalError(err)
	}

	if target.ID == followerID {
		observability.ToggleOperations.WithLabelValues("follow", "rejected").Inc()
		return nil, models.NewValidationError("You cannot follow yourself")
	}

	exists, err := s.followRepo.Exists(ctx, followerID, target.ID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	following := !exists
	if exists {
		if err := s.followRepo.Delete(ctx, followerID, target.ID); err != nil {
			return nil, models.NewInternalError(err)
		}
		observability.ToggleOperations.WithLabelValues("follow", "off").Inc()
	} else {
		inserted, err := s.followRepo.Create(ctx, followerID, target.ID)
		if err != nil {
			return nil, models.NewInternalError(err)
		}
		if inserted {
			observability.ToggleOperations.WithLabelValues("follow", "on").Inc()
		} else {
			// Raced with another toggle that created the edge first; this
			// request takes the off flip.
			if err := s.followRepo.Delete(ctx, followerID, target.ID); err != nil {
				return nil, models.NewInternalError(err)
			}
			following = false
			observability.ToggleOperations.WithLabelValues("follow", "off").Inc()
		}
	}

	count, err := s.followRepo.CountFollowers(ctx, target.ID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &FollowResult{
		Following:     following,
		FollowerCount: count,
		Username:      target.Username,
	}, nil
}
