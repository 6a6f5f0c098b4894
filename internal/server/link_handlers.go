package server

import (
	"github.com/gofiber/fiber/v2"

	"ripple/internal/models"
	"ripple/internal/service"
)

// GetLinks handles GET /api/links.
func (s *Server) GetLinks(c *fiber.Ctx) error {
	p := parsePagination(c, 20)

	links, err := s.linkService.ListLinks(c.Context(), p.Limit, p.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}
	if links == nil {
		links = []*models.Link{}
	}
	return c.JSON(links)
}

// GetLink handles GET /api/links/:id.
func (s *Server) GetLink(c *fiber.Ctx) error {
	linkID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	link, err := s.linkService.GetLink(c.Context(), linkID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(link)
}

// CreateLink handles POST /api/links.
func (s *Server) CreateLink(c *fiber.Ctx) error {
	var req struct {
		URL string `json:"url" form:"url"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	userID := currentUserID(c)
	link, err := s.linkService.CreateLink(c.Context(), service.CreateLinkInput{
		UserID:      userID,
		URL:         req.URL,
		SkipPreview: !s.flags.Enabled("link_previews", userID),
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(link)
}

// UpdateLink handles PUT /api/links/:id.
func (s *Server) UpdateLink(c *fiber.Ctx) error {
	linkID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		URL string `json:"url" form:"url"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	userID := currentUserID(c)
	link, err := s.linkService.UpdateLink(c.Context(), service.UpdateLinkInput{
		UserID:      userID,
		LinkID:      linkID,
		URL:         req.URL,
		SkipPreview: !s.flags.Enabled("link_previews", userID),
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(link)
}

// DeleteLink handles DELETE /api/links/:id.
func (s *Server) DeleteLink(c *fiber.Ctx) error {
	linkID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.linkService.DeleteLink(c.Context(), currentUserID(c), linkID); err != nil {
		return respondServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
