package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"ripple/internal/imaging"
	"ripple/internal/models"
	"ripple/internal/repository"
	"ripple/internal/validation"
)

type CreatePostInput struct {
	UserID    uint
	Content   string
	ImageName string
	ImageData []byte
	// UseRandomImage generates a placeholder picture when no upload was
	// provided. Without it a text-only post stays imageless.
	UseRandomImage bool
}

type UpdatePostInput struct {
	UserID    uint
	PostID    uint
	Content   string
	ImageName string
	ImageData []byte
}

type DeletePostInput struct {
	UserID uint
	PostID uint
}

// PostDetail is a single post page: the post, its comments in thread order,
// whether the viewer follows the author, and the neighboring post IDs for
// prev/next navigation.
type PostDetail struct {
	Post      *models.Post      `json:"post"`
	Comments  []*models.Comment `json:"comments"`
	Following bool              `json:"following"`
	PrevID    uint              `json:"prev_id,omitempty"`
	NextID    uint              `json:"next_id,omitempty"`
}

type PostService struct {
	postRepo    repository.PostRepository
	commentRepo repository.CommentRepository
	followRepo  repository.FollowRepository
	images      *imaging.Processor
}

func NewPostService(postRepo repository.PostRepository, commentRepo repository.CommentRepository, followRepo repository.FollowRepository, images *imaging.Processor) *PostService {
	return &PostService{
		postRepo:    postRepo,
		commentRepo: commentRepo,
		followRepo:  followRepo,
		images:      images,
	}
}

// CreatePost stores a new post. Uploads become the post image; posts without
// one can opt into a generated placeholder. Thumbnail generation is
// best-effort and never blocks the post itself.
func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	if in.UserID == 0 {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	if err := validation.ValidatePostContent(in.Content); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	var imagePath string
	switch {
	case len(in.ImageData) > 0:
		stored, err := s.images.SaveUpload(postImagePath(in.ImageName), in.ImageData)
		if err != nil {
			return nil, models.NewValidationError("Invalid image file")
		}
		imagePath = stored
	case in.UseRandomImage:
		generated := postImagePath(uuid.NewString() + ".jpg")
		if err := s.images.GeneratePlaceholder(generated); err != nil {
			return nil, models.NewInternalError(err)
		}
		imagePath = generated
	}

	post := &models.Post{
		Content: in.Content,
		Image:   imagePath,
		UserID:  in.UserID,
	}
	if imagePath != "" {
		post.Thumbnail = s.images.GenerateThumbnail(imagePath)
	}

	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, models.NewInternalError(err)
	}
	return post, nil
}

// UpdatePost edits an existing post the caller owns. The thumbnail is only
// regenerated when the stored image actually changed.
func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (*models.Post, error) {
	post, err := s.getOwnedPost(ctx, in.UserID, in.PostID)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidatePostContent(in.Content); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	oldImage := post.Image
	post.Content = in.Content

	if len(in.ImageData) > 0 {
		stored, err := s.images.SaveUpload(postImagePath(in.ImageName), in.ImageData)
		if err != nil {
			return nil, models.NewValidationError("Invalid image file")
		}
		post.Image = stored
	}

	if post.Image != oldImage {
		oldThumb := post.Thumbnail
		post.Thumbnail = s.images.GenerateThumbnail(post.Image)
		s.images.Remove(oldImage)
		s.images.Remove(oldThumb)
	}

	if err := s.postRepo.Update(ctx, post); err != nil {
		return nil, models.NewInternalError(err)
	}
	return post, nil
}

// DeletePost removes a post the caller owns along with its stored images.
func (s *PostService) DeletePost(ctx context.Context, in DeletePostInput) error {
	post, err := s.getOwnedPost(ctx, in.UserID, in.PostID)
	if err != nil {
		return err
	}
	if err := s.postRepo.Delete(ctx, post.ID); err != nil {
		return models.NewInternalError(err)
	}
	s.images.Remove(post.Image)
	s.images.Remove(post.Thumbnail)
	return nil
}

// GetPostDetail loads a post page for a viewer and counts the view. The
// counter update is a single atomic column bump, so concurrent viewers all
// register.
func (s *PostService) GetPostDetail(ctx context.Context, postID, viewerID uint) (*PostDetail, error) {
	post, err := s.postRepo.GetByID(ctx, postID, viewerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", postID)
		}
		return nil, models.NewInternalError(err)
	}

	if err := s.postRepo.IncrementViews(ctx, postID); err != nil {
		return nil, models.NewInternalError(err)
	}
	post.Views++

	comments, err := s.commentRepo.ListByPost(ctx, postID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	prevID, nextID, err := s.postRepo.Adjacent(ctx, post.CreatedAt, post.ID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	var following bool
	if viewerID != 0 && viewerID != post.UserID {
		following, err = s.followRepo.Exists(ctx, viewerID, post.UserID)
		if err != nil {
			return nil, models.NewInternalError(err)
		}
	}

	return &PostDetail{
		Post:      post,
		Comments:  comments,
		Following: following,
		PrevID:    prevID,
		NextID:    nextID,
	}, nil
}

func (s *PostService) getOwnedPost(ctx context.Context, userID, postID uint) (*models.Post, error) {
	if userID == 0 {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	post, err := s.postRepo.GetByID(ctx, postID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", postID)
		}
		return nil, models.NewInternalError(err)
	}
	if post.UserID != userID {
		return nil, models.NewUnauthorizedError("You can only modify your own posts")
	}
	return post, nil
}

func postImagePath(filename string) string {
	base := filepath.Base(filename)
	if base == "." || base == "/" || base == "" {
		base = "upload.jpg"
	}
	return fmt.Sprintf("post_pics/%d_%s", time.Now().UnixNano(), base)
}
