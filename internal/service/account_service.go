// Package service implements the application's business logic on top of the
// repository layer.
package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"ripple/internal/imaging"
	"ripple/internal/models"
	"ripple/internal/repository"
	"ripple/internal/validation"
)

type RegisterInput struct {
	Username string
	Email    string
	Password string
}

type LoginInput struct {
	Username string
	Password string
}

type UpdateProfileInput struct {
	UserID    uint
	Bio       *string
	ImageName string
	ImageData []byte
}

// ProfileView is a user's public page: their profile plus follow counts and
// whether the viewer already follows them.
type ProfileView struct {
	User           *models.User `json:"user"`
	FollowerCount  int64        `json:"follower_count"`
	FollowingCount int64        `json:"following_count"`
	IsFollowing    bool         `json:"is_following"`
	IsSelf         bool         `json:"is_self"`
}

type AccountService struct {
	userRepo   repository.UserRepository
	followRepo repository.FollowRepository
	images     *imaging.Processor
}

func NewAccountService(userRepo repository.UserRepository, followRepo repository.FollowRepository, images *imaging.Processor) *AccountService {
	return &AccountService{
		userRepo:   userRepo,
		followRepo: followRepo,
		images:     images,
	}
}

// Register creates the account and its profile in a single transaction so
// every account always has one.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	if err := validation.ValidateUsername(in.Username); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		Username: in.Username,
		Email:    strings.ToLower(in.Email),
		Password: string(hash),
	}
	profile := &models.Profile{ProfileImage: models.DefaultProfileImage}
	if err := s.userRepo.CreateWithProfile(ctx, user, profile); err != nil {
		return nil, err
	}
	user.Profile = profile

	return user, nil
}

// Authenticate verifies credentials and returns the account.
func (s *AccountService) Authenticate(ctx context.Context, in LoginInput) (*models.User, error) {
	user, err := s.userRepo.GetByUsername(ctx, in.Username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewUnauthorizedError("Invalid username or password")
		}
		return nil, models.NewInternalError(err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.Password)); err != nil {
		return nil, models.NewUnauthorizedError("Invalid username or password")
	}
	return user, nil
}

// GetProfileView assembles a user's public page for the given viewer.
// viewerID zero means anonymous.
func (s *AccountService) GetProfileView(ctx context.Context, username string, viewerID uint) (*ProfileView, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("User", username)
		}
		return nil, models.NewInternalError(err)
	}

	followers, err := s.followRepo.CountFollowers(ctx, user.ID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	following, err := s.followRepo.CountFollowing(ctx, user.ID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	view := &ProfileView{
		User:           user,
		FollowerCount:  followers,
		FollowingCount: following,
		IsSelf:         viewerID == user.ID,
	}
	if viewerID != 0 && viewerID != user.ID {
		isFollowing, err := s.followRepo.Exists(ctx, viewerID, user.ID)
		if err != nil {
			return nil, models.NewInternalError(err)
		}
		view.IsFollowing = isFollowing
	}
	return view, nil
}

// UpdateProfile applies a partial profile edit. A new profile picture is
// stored first and then bounded to 300x300 in place when oversized.
func (s *AccountService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.Profile, error) {
	if in.UserID == 0 {
		return nil, models.NewUnauthorizedError("Authentication required")
	}

	profile, err := s.userRepo.GetProfile(ctx, in.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Profile", in.UserID)
		}
		return nil, models.NewInternalError(err)
	}

	if in.Bio != nil {
		if err := validation.ValidateBio(*in.Bio); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		profile.Bio = *in.Bio
	}

	if len(in.ImageData) > 0 {
		rel := profileImagePath(in.UserID, in.ImageName)
		stored, err := s.images.SaveUpload(rel, in.ImageData)
		if err != nil {
			return nil, models.NewValidationError("Invalid image file")
		}
		s.images.BoundProfileImage(stored)
		if profile.ProfileImage != models.DefaultProfileImage {
			s.images.Remove(profile.ProfileImage)
		}
		profile.ProfileImage = stored
	}

	if err := s.userRepo.UpdateProfile(ctx, profile); err != nil {
		return nil, models.NewInternalError(err)
	}
	return profile, nil
}

func profileImagePath(userID uint, filename string) string {
	base := filepath.Base(filename)
	if base == "." || base == "/" || base == "" {
		base = "upload.jpg"
	}
	return fmt.Sprintf("profile_pics/%d_%s", userID, base)
}
