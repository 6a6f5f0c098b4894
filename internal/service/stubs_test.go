package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ripple/internal/metadata"
	"ripple/internal/models"
)

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	createFn          func(context.Context, *models.Post) error
	getByIDFn         func(context.Context, uint, uint) (*models.Post, error)
	listFn            func(context.Context, int, int, uint) ([]*models.Post, error)
	listByAuthorsFn   func(context.Context, []uint, int, int, uint) ([]*models.Post, error)
	countAllFn        func(context.Context) (int64, error)
	countByAuthorsFn  func(context.Context, []uint) (int64, error)
	updateFn          func(context.Context, *models.Post) error
	deleteFn          func(context.Context, uint) error
	incrementViewsFn  func(context.Context, uint) error
	adjacentFn        func(context.Context, time.Time, uint) (uint, uint, error)
	isLikedFn         func(context.Context, uint, uint) (bool, error)
	getLikedPostIDsFn func(context.Context, uint, []uint) ([]uint, error)
	likeFn            func(context.Context, uint, uint) (bool, error)
	unlikeFn          func(context.Context, uint, uint) error
	likeCountFn       func(context.Context, uint) (int64, error)
}

func (s *postRepoStub) Create(ctx context.Context, post *models.Post) error {
	return s.createFn(ctx, post)
}
func (s *postRepoStub) GetByID(ctx context.Context, id, currentUserID uint) (*models.Post, error) {
	return s.getByIDFn(ctx, id, currentUserID)
}
func (s *postRepoStub) List(ctx context.Context, limit, offset int, currentUserID uint) ([]*models.Post, error) {
	return s.listFn(ctx, limit, offset, currentUserID)
}
func (s *postRepoStub) ListByAuthors(ctx context.Context, authorIDs []uint, limit, offset int, currentUserID uint) ([]*models.Post, error) {
	return s.listByAuthorsFn(ctx, authorIDs, limit, offset, currentUserID)
}
func (s *postRepoStub) CountAll(ctx context.Context) (int64, error) {
	return s.countAllFn(ctx)
}
func (s *postRepoStub) CountByAuthors(ctx context.Context, authorIDs []uint) (int64, error) {
	return s.countByAuthorsFn(ctx, authorIDs)
}
func (s *postRepoStub) Update(ctx context.Context, post *models.Post) error {
	return s.updateFn(ctx, post)
}
func (s *postRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}
func (s *postRepoStub) IncrementViews(ctx context.Context, id uint) error {
	return s.incrementViewsFn(ctx, id)
}
func (s *postRepoStub) Adjacent(ctx context.Context, createdAt time.Time, id uint) (uint, uint, error) {
	return s.adjacentFn(ctx, createdAt, id)
}
func (s *postRepoStub) IsLiked(ctx context.Context, userID, postID uint) (bool, error) {
	return s.isLikedFn(ctx, userID, postID)
}
func (s *postRepoStub) GetLikedPostIDs(ctx context.Context, userID uint, postIDs []uint) ([]uint, error) {
	return s.getLikedPostIDsFn(ctx, userID, postIDs)
}
func (s *postRepoStub) Like(ctx context.Context, userID, postID uint) (bool, error) {
	return s.likeFn(ctx, userID, postID)
}
func (s *postRepoStub) Unlike(ctx context.Context, userID, postID uint) error {
	return s.unlikeFn(ctx, userID, postID)
}
func (s *postRepoStub) LikeCount(ctx context.Context, postID uint) (int64, error) {
	return s.likeCountFn(ctx, postID)
}

func noopPostRepo() *postRepoStub {
	return &postRepoStub{
		createFn:  func(_ context.Context, _ *models.Post) error { return nil },
		getByIDFn: func(_ context.Context, id, _ uint) (*models.Post, error) { return &models.Post{ID: id}, nil },
		listFn:    func(_ context.Context, _, _ int, _ uint) ([]*models.Post, error) { return nil, nil },
		listByAuthorsFn: func(_ context.Context, _ []uint, _, _ int, _ uint) ([]*models.Post, error) {
			return nil, nil
		},
		countAllFn:        func(_ context.Context) (int64, error) { return 0, nil },
		countByAuthorsFn:  func(_ context.Context, _ []uint) (int64, error) { return 0, nil },
		updateFn:          func(_ context.Context, _ *models.Post) error { return nil },
		deleteFn:          func(_ context.Context, _ uint) error { return nil },
		incrementViewsFn:  func(_ context.Context, _ uint) error { return nil },
		adjacentFn:        func(_ context.Context, _ time.Time, _ uint) (uint, uint, error) { return 0, 0, nil },
		isLikedFn:         func(_ context.Context, _, _ uint) (bool, error) { return false, nil },
		getLikedPostIDsFn: func(_ context.Context, _ uint, _ []uint) ([]uint, error) { return nil, nil },
		likeFn:            func(_ context.Context, _, _ uint) (bool, error) { return true, nil },
		unlikeFn:          func(_ context.Context, _, _ uint) error { return nil },
		likeCountFn:       func(_ context.Context, _ uint) (int64, error) { return 0, nil },
	}
}

// followRepoStub is a stub for repository.FollowRepository.
type followRepoStub struct {
	createFn         func(context.Context, uint, uint) (bool, error)
	deleteFn         func(context.Context, uint, uint) error
	existsFn         func(context.Context, uint, uint) (bool, error)
	followeeIDsFn    func(context.Context, uint) ([]uint, error)
	followerIDsFn    func(context.Context, uint) ([]uint, error)
	countFollowersFn func(context.Context, uint) (int64, error)
	countFollowingFn func(context.Context, uint) (int64, error)
}

func (s *followRepoStub) Create(ctx context.Context, followerID, followeeID uint) (bool, error) {
	return s.createFn(ctx, followerID, followeeID)
}
func (s *followRepoStub) Delete(ctx context.Context, followerID, followeeID uint) error {
	return s.deleteFn(ctx, followerID, followeeID)
}
func (s *followRepoStub) Exists(ctx context.Context, followerID, followeeID uint) (bool, error) {
	return s.existsFn(ctx, followerID, followeeID)
}
func (s *followRepoStub) FolloweeIDs(ctx context.Context, followerID uint) ([]uint, error) {
	return s.followeeIDsFn(ctx, followerID)
}
func (s *followRepoStub) FollowerIDs(ctx context.Context, followeeID uint) ([]uint, error) {
	return s.followerIDsFn(ctx, followeeID)
}
func (s *followRepoStub) CountFollowers(ctx context.Context, userID uint) (int64, error) {
	return s.countFollowersFn(ctx, userID)
}
func (s *followRepoStub) CountFollowing(ctx context.Context, userID uint) (int64, error) {
	return s.countFollowingFn(ctx, userID)
}

func noopFollowRepo() *followRepoStub {
	return &followRepoStub{
		createFn:         func(_ context.Context, _, _ uint) (bool, error) { return true, nil },
		deleteFn:         func(_ context.Context, _, _ uint) error { return nil },
		existsFn:         func(_ context.Context, _, _ uint) (bool, error) { return false, nil },
		followeeIDsFn:    func(_ context.Context, _ uint) ([]uint, error) { return nil, nil },
		followerIDsFn:    func(_ context.Context, _ uint) ([]uint, error) { return nil, nil },
		countFollowersFn: func(_ context.Context, _ uint) (int64, error) { return 0, nil },
		countFollowingFn: func(_ context.Context, _ uint) (int64, error) { return 0, nil },
	}
}

// userRepoStub is a stub for repository.UserRepository.
type userRepoStub struct {
	createWithProfileFn func(context.Context, *models.User, *models.Profile) error
	getByIDFn           func(context.Context, uint) (*models.User, error)
	getByUsernameFn     func(context.Context, string) (*models.User, error)
	getByEmailFn        func(context.Context, string) (*models.User, error)
	getProfileFn        func(context.Context, uint) (*models.Profile, error)
	updateProfileFn     func(context.Context, *models.Profile) error
}

func (s *userRepoStub) CreateWithProfile(ctx context.Context, user *models.User, profile *models.Profile) error {
	return s.createWithProfileFn(ctx, user, profile)
}
func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getByUsernameFn(ctx, username)
}
func (s *userRepoStub) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getByEmailFn(ctx, email)
}
func (s *userRepoStub) GetProfile(ctx context.Context, userID uint) (*models.Profile, error) {
	return s.getProfileFn(ctx, userID)
}
func (s *userRepoStub) UpdateProfile(ctx context.Context, profile *models.Profile) error {
	return s.updateProfileFn(ctx, profile)
}

func noopUserRepo() *userRepoStub {
	return &userRepoStub{
		createWithProfileFn: func(_ context.Context, u *models.User, p *models.Profile) error {
			u.ID = 1
			p.UserID = u.ID
			return nil
		},
		getByIDFn: func(_ context.Context, id uint) (*models.User, error) {
			return &models.User{ID: id}, nil
		},
		getByUsernameFn: func(_ context.Context, username string) (*models.User, error) {
			return &models.User{ID: 1, Username: username}, nil
		},
		getByEmailFn: func(_ context.Context, email string) (*models.User, error) {
			return &models.User{ID: 1, Email: email}, nil
		},
		getProfileFn: func(_ context.Context, userID uint) (*models.Profile, error) {
			return &models.Profile{ID: 1, UserID: userID, ProfileImage: models.DefaultProfileImage}, nil
		},
		updateProfileFn: func(_ context.Context, _ *models.Profile) error { return nil },
	}
}

// commentRepoStub is a stub for repository.CommentRepository.
type commentRepoStub struct {
	createFn     func(context.Context, *models.Comment) error
	getByIDFn    func(context.Context, uint) (*models.Comment, error)
	listByPostFn func(context.Context, uint) ([]*models.Comment, error)
	deleteFn     func(context.Context, uint) error
}

func (s *commentRepoStub) Create(ctx context.Context, comment *models.Comment) error {
	return s.createFn(ctx, comment)
}
func (s *commentRepoStub) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	return s.getByIDFn(ctx, id)
}
func (s *commentRepoStub) ListByPost(ctx context.Context, postID uint) ([]*models.Comment, error) {
	return s.listByPostFn(ctx, postID)
}
func (s *commentRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}

func noopCommentRepo() *commentRepoStub {
	return &commentRepoStub{
		createFn: func(_ context.Context, c *models.Comment) error { c.ID = 1; return nil },
		getByIDFn: func(_ context.Context, id uint) (*models.Comment, error) {
			return &models.Comment{ID: id}, nil
		},
		listByPostFn: func(_ context.Context, _ uint) ([]*models.Comment, error) { return nil, nil },
		deleteFn:     func(_ context.Context, _ uint) error { return nil },
	}
}

// linkRepoStub is a stub for repository.LinkRepository.
type linkRepoStub struct {
	createFn  func(context.Context, *models.Link) error
	getByIDFn func(context.Context, uint) (*models.Link, error)
	listFn    func(context.Context, int, int) ([]*models.Link, error)
	updateFn  func(context.Context, *models.Link) error
	deleteFn  func(context.Context, uint) error
}

func (s *linkRepoStub) Create(ctx context.Context, link *models.Link) error {
	return s.createFn(ctx, link)
}
func (s *linkRepoStub) GetByID(ctx context.Context, id uint) (*models.Link, error) {
	return s.getByIDFn(ctx, id)
}
func (s *linkRepoStub) List(ctx context.Context, limit, offset int) ([]*models.Link, error) {
	return s.listFn(ctx, limit, offset)
}
func (s *linkRepoStub) Update(ctx context.Context, link *models.Link) error {
	return s.updateFn(ctx, link)
}
func (s *linkRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}

func noopLinkRepo() *linkRepoStub {
	return &linkRepoStub{
		createFn:  func(_ context.Context, l *models.Link) error { l.ID = 1; return nil },
		getByIDFn: func(_ context.Context, id uint) (*models.Link, error) { return &models.Link{ID: id}, nil },
		listFn:    func(_ context.Context, _, _ int) ([]*models.Link, error) { return nil, nil },
		updateFn:  func(_ context.Context, _ *models.Link) error { return nil },
		deleteFn:  func(_ context.Context, _ uint) error { return nil },
	}
}

// fetcherStub is a stub for metadata.Fetcher.
type fetcherStub struct {
	fetchFn func(context.Context, string) metadata.Metadata
}

func (s *fetcherStub) Fetch(ctx context.Context, url string) metadata.Metadata {
	if s.fetchFn != nil {
		return s.fetchFn(ctx, url)
	}
	return metadata.Metadata{}
}

// assertValidationError asserts that err is an AppError with code VALIDATION_ERROR.
func assertValidationError(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
}

// assertUnauthorizedError asserts that err is an AppError with code UNAUTHORIZED.
func assertUnauthorizedError(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, "UNAUTHORIZED", appErr.Code)
}

// assertNotFoundError asserts that err is an AppError with code NOT_FOUND.
func assertNotFoundError(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, "NOT_FOUND", appErr.Code)
}
