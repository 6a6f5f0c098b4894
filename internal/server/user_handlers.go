package server

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"ripple/internal/models"
	"ripple/internal/service"
)

// GetUserProfile handles GET /api/users/:username.
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	username := c.Params("username")
	viewerID, _ := s.optionalUserID(c)

	view, err := s.accountService.GetProfileView(c.Context(), username, viewerID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(view)
}

// UpdateMyProfile handles PUT /api/users/me/profile (multipart). The bio
// field is only applied when present so clients can update the picture alone.
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	filename, data, err := formFileBytes(c, "profile_image")
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid image upload"))
	}

	in := service.UpdateProfileInput{
		UserID:    currentUserID(c),
		ImageName: filename,
		ImageData: data,
	}
	if form, err := c.MultipartForm(); err == nil {
		if values, ok := form.Value["bio"]; ok && len(values) > 0 {
			in.Bio = &values[0]
		}
	}

	profile, err := s.accountService.UpdateProfile(c.Context(), in)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(profile)
}

// ToggleFollow handles POST /api/users/:username/follow. Follow toggles are
// form-driven: the browser is sent back to the profile and the outcome lands
// in the flash queue. Script callers still get JSON.
func (s *Server) ToggleFollow(c *fiber.Ctx) error {
	username := c.Params("username")
	userID := currentUserID(c)

	result, err := s.engagementService.ToggleFollow(c.Context(), userID, username)
	if err != nil {
		return respondServiceError(c, err)
	}

	if s.sessions != nil {
		notice := fmt.Sprintf("You are no longer following %s", result.Username)
		if result.Following {
			notice = fmt.Sprintf("You are now following %s", result.Username)
		}
		if err := s.sessions.PushFlash(c.Context(), userID, notice); err != nil {
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		}
	}

	if isXHR(c) {
		return c.JSON(result)
	}
	return c.Redirect("/api/users/"+result.Username, fiber.StatusSeeOther)
}

// GetFeatureFlags handles GET /api/users/me/flags. Page script fetches the
// evaluated flag set once on load.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"flags": s.flags.Snapshot(currentUserID(c))})
}

// GetFlashes handles GET /api/users/me/flashes, draining pending notices.
func (s *Server) GetFlashes(c *fiber.Ctx) error {
	if s.sessions == nil {
		return c.JSON(fiber.Map{"flashes": []string{}})
	}
	flashes, err := s.sessions.PopFlashes(c.Context(), currentUserID(c))
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}
	if flashes == nil {
		flashes = []string{}
	}
	return c.JSON(fiber.Map{"flashes": flashes})
}
