package service

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"gorm.io/gorm"

	"ripple/internal/metadata"
	"ripple/internal/models"
	"ripple/internal/repository"
)

type CreateLinkInput struct {
	UserID uint
	URL    string
	// SkipPreview suppresses the metadata fetch, e.g. when the preview
	// rollout flag is off for this user.
	SkipPreview bool
}

type UpdateLinkInput struct {
	UserID      uint
	LinkID      uint
	URL         string
	SkipPreview bool
}

type LinkService struct {
	linkRepo repository.LinkRepository
	fetcher  metadata.Fetcher
}

func NewLinkService(linkRepo repository.LinkRepository, fetcher metadata.Fetcher) *LinkService {
	return &LinkService{
		linkRepo: linkRepo,
		fetcher:  fetcher,
	}
}

// CreateLink stores a shared URL with whatever Open Graph metadata the page
// yields. A page that cannot be fetched still produces a link, just a bare one.
func (s *LinkService) CreateLink(ctx context.Context, in CreateLinkInput) (*models.Link, error) {
	if in.UserID == 0 {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	normalized, err := normalizeURL(in.URL)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	var meta metadata.Metadata
	if !in.SkipPreview {
		meta = s.fetcher.Fetch(ctx, normalized)
	}
	link := &models.Link{
		UserID:      in.UserID,
		URL:         normalized,
		Title:       meta.Title,
		Description: meta.Description,
		OGImage:     meta.Image,
	}
	if err := s.linkRepo.Create(ctx, link); err != nil {
		return nil, models.NewInternalError(err)
	}
	return link, nil
}

func (s *LinkService) GetLink(ctx context.Context, id uint) (*models.Link, error) {
	link, err := s.linkRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Link", id)
		}
		return nil, models.NewInternalError(err)
	}
	return link, nil
}

func (s *LinkService) ListLinks(ctx context.Context, limit, offset int) ([]*models.Link, error) {
	links, err := s.linkRepo.List(ctx, limit, offset)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return links, nil
}

// UpdateLink replaces the URL on a link the caller owns and refetches its
// metadata.
func (s *LinkService) UpdateLink(ctx context.Context, in UpdateLinkInput) (*models.Link, error) {
	link, err := s.getOwnedLink(ctx, in.UserID, in.LinkID)
	if err != nil {
		return nil, err
	}
	normalized, err := normalizeURL(in.URL)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	var meta metadata.Metadata
	if !in.SkipPreview {
		meta = s.fetcher.Fetch(ctx, normalized)
	}
	link.URL = normalized
	link.Title = meta.Title
	link.Description = meta.Description
	link.OGImage = meta.Image

	if err := s.linkRepo.Update(ctx, link); err != nil {
		return nil, models.NewInternalError(err)
	}
	return link, nil
}

func (s *LinkService) DeleteLink(ctx context.Context, userID, linkID uint) error {
	link, err := s.getOwnedLink(ctx, userID, linkID)
	if err != nil {
		return err
	}
	if err := s.linkRepo.Delete(ctx, link.ID); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (s *LinkService) getOwnedLink(ctx context.Context, userID, linkID uint) (*models.Link, error) {
	if userID == 0 {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	link, err := s.linkRepo.GetByID(ctx, linkID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Link", linkID)
		}
		return nil, models.NewInternalError(err)
	}
	if link.UserID != userID {
		return nil, models.NewUnauthorizedError("You can only modify your own links")
	}
	return link, nil
}

func normalizeURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", errors.New("url is required")
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return "", errors.New("invalid url")
	}
	if u.Scheme == "" {
		u, err = url.Parse("https://" + trimmed)
		if err != nil {
			return "", errors.New("invalid url")
		}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", errors.New("only http and https urls are allowed")
	}
	if u.Host == "" {
		return "", errors.New("invalid url")
	}
	return u.String(), nil
}
