package service

import (
	"context"

	"ripple/internal/models"
	"ripple/internal/repository"
)

// FeedPageSize is the fixed number of posts per feed page.
const FeedPageSize = 5

// Feed scopes.
const (
	FeedScopeAll       = "all"
	FeedScopeFollowing = "following"
)

// FeedPage is one page of the feed plus whether another page follows it.
type FeedPage struct {
	Items   []*models.Post `json:"items"`
	Page    int            `json:"page"`
	HasNext bool           `json:"has_next"`
}

type FeedService struct {
	postRepo   repository.PostRepository
	followRepo repository.FollowRepository
}

func NewFeedService(postRepo repository.PostRepository, followRepo repository.FollowRepository) *FeedService {
	return &FeedService{
		postRepo:   postRepo,
		followRepo: followRepo,
	}
}

// GetPage returns one feed page, newest posts first. Pages past the end come
// back empty with has_next false rather than clamping to the last page, so a
// stale "load more" button simply stops producing posts.
func (s *FeedService) GetPage(ctx context.Context, scope string, page int, viewerID uint) (*FeedPage, error) {
	if page < 1 {
		return emptyPage(page), nil
	}
	offset := (page - 1) * FeedPageSize

	var (
		posts []*models.Post
		total int64
		err   error
	)

	switch scope {
	case FeedScopeFollowing:
		if viewerID == 0 {
			return nil, models.NewUnauthorizedError("Authentication required")
		}
		authorIDs, ferr := s.followRepo.FolloweeIDs(ctx, viewerID)
		if ferr != nil {
			return nil, models.NewInternalError(ferr)
		}
		// The viewer's own posts belong in their following feed.
		authorIDs = append(authorIDs, viewerID)

		posts, err = s.postRepo.ListByAuthors(ctx, authorIDs, FeedPageSize, offset, 0)
		if err != nil {
			return nil, models.NewInternalError(err)
		}
		if err = s.annotateLiked(ctx, posts, viewerID); err != nil {
			return nil, models.NewInternalError(err)
		}
		total, err = s.postRepo.CountByAuthors(ctx, authorIDs)
	case FeedScopeAll, "":
		posts, err = s.postRepo.List(ctx, FeedPageSize, offset, viewerID)
		if err != nil {
			return nil, models.NewInternalError(err)
		}
		total, err = s.postRepo.CountAll(ctx)
	default:
		return nil, models.NewValidationError("Unknown feed scope")
	}
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	if len(posts) == 0 {
		return emptyPage(page), nil
	}

	return &FeedPage{
		Items:   posts,
		Page:    page,
		HasNext: int64(offset+len(posts)) < total,
	}, nil
}

// annotateLiked marks which of the page's posts the viewer has liked, using
// one batched query over the page's post IDs.
func (s *FeedService) annotateLiked(ctx context.Context, posts []*models.Post, viewerID uint) error {
	if viewerID == 0 || len(posts) == 0 {
		return nil
	}
	postIDs := make([]uint, len(posts))
	for i, post := range posts {
		postIDs[i] = post.ID
	}
	likedIDs, err := s.postRepo.GetLikedPostIDs(ctx, viewerID, postIDs)
	if err != nil {
		return err
	}
	liked := make(map[uint]bool, len(likedIDs))
	for _, id := range likedIDs {
		liked[id] = true
	}
	for _, post := range posts {
		post.Liked = liked[post.ID]
	}
	return nil
}

func emptyPage(page int) *FeedPage {
	return &FeedPage{Items: []*models.Post{}, Page: page, HasNext: false}
}
