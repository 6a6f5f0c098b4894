package server

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"ripple/internal/service"
)

// GetFeed handles GET /api/feed. Anonymous viewers see the global feed with
// no liked annotations.
func (s *Server) GetFeed(c *fiber.Ctx) error {
	viewerID, _ := s.optionalUserID(c)
	page := c.QueryInt("page", 1)

	feedPage, err := s.feedService.GetPage(c.Context(), service.FeedScopeAll, page, viewerID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(feedPage)
}

// GetFollowingFeed handles GET /api/feed/following.
func (s *Server) GetFollowingFeed(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)

	feedPage, err := s.feedService.GetPage(c.Context(), service.FeedScopeFollowing, page, currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(feedPage)
}

// LoadMoreFeed handles GET /api/feed/more, the incremental fetch behind the
// "load more" button. A page value that does not parse, or one past the end,
// yields an empty page with has_next false; the client just stops appending.
func (s *Server) LoadMoreFeed(c *fiber.Ctx) error {
	viewerID, _ := s.optionalUserID(c)

	scope := c.Query("feed", service.FeedScopeAll)
	if scope == service.FeedScopeFollowing && viewerID == 0 {
		return c.JSON(fiber.Map{"items": []any{}, "has_next": false})
	}

	page, err := strconv.Atoi(c.Query("page", "1"))
	if err != nil || page < 1 {
		return c.JSON(fiber.Map{"items": []any{}, "has_next": false})
	}

	feedPage, err := s.feedService.GetPage(c.Context(), scope, page, viewerID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"items":    feedPage.Items,
		"has_next": feedPage.HasNext,
		"page":     feedPage.Page,
	})
}
