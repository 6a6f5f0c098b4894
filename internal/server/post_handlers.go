package server

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"ripple/internal/models"
	"ripple/internal/service"
)

// NewPostForm handles GET /api/posts/new. It issues the single-use token the
// subsequent POST must present; re-rendering the form invalidates any token
// issued earlier.
func (s *Server) NewPostForm(c *fiber.Ctx) error {
	if s.sessions == nil {
		return models.RespondWithError(c, fiber.StatusServiceUnavailable,
			models.NewInternalError(fmt.Errorf("session store unavailable")))
	}
	nonce, err := s.sessions.IssueNonce(c.Context(), currentUserID(c))
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}
	return c.JSON(fiber.Map{"nonce": nonce})
}

// CreatePost handles POST /api/posts (multipart). The nonce from the form
// render must accompany the submission; a replayed or missing nonce is
// answered with a redirect to the feed and no new post.
func (s *Server) CreatePost(c *fiber.Ctx) error {
	userID := currentUserID(c)

	if s.sessions != nil {
		ok, err := s.sessions.ConsumeNonce(c.Context(), userID, c.FormValue("nonce"))
		if err != nil {
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		}
		if !ok {
			if isXHR(c) {
				return models.RespondWithError(c, fiber.StatusConflict,
					models.NewValidationError("Form already submitted"))
			}
			return c.Redirect("/api/feed", fiber.StatusSeeOther)
		}
	}

	filename, data, err := formFileBytes(c, "image")
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid image upload"))
	}

	post, err := s.postService.CreatePost(c.Context(), service.CreatePostInput{
		UserID:         userID,
		Content:        c.FormValue("content"),
		ImageName:      filename,
		ImageData:      data,
		UseRandomImage: formBool(c, "use_random_image"),
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	if isXHR(c) {
		return c.Status(fiber.StatusCreated).JSON(post)
	}
	return c.Redirect(fmt.Sprintf("/api/posts/%d", post.ID), fiber.StatusSeeOther)
}

// GetPost handles GET /api/posts/:id.
func (s *Server) GetPost(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	viewerID, _ := s.optionalUserID(c)

	detail, err := s.postService.GetPostDetail(c.Context(), postID, viewerID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(detail)
}

// UpdatePost handles PUT /api/posts/:id (multipart).
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	filename, data, err := formFileBytes(c, "image")
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid image upload"))
	}

	post, err := s.postService.UpdatePost(c.Context(), service.UpdatePostInput{
		UserID:    currentUserID(c),
		PostID:    postID,
		Content:   c.FormValue("content"),
		ImageName: filename,
		ImageData: data,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(post)
}

// DeletePost handles DELETE /api/posts/:id.
func (s *Server) DeletePost(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.postService.DeletePost(c.Context(), service.DeletePostInput{
		UserID: currentUserID(c),
		PostID: postID,
	}); err != nil {
		return respondServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ToggleLikePost handles POST /api/posts/:id/like. Script callers get the
// resulting state back as JSON; plain form posts are redirected to the post.
func (s *Server) ToggleLikePost(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	result, err := s.engagementService.ToggleLike(c.Context(), currentUserID(c), postID)
	if err != nil {
		return respondServiceError(c, err)
	}

	if isXHR(c) {
		return c.JSON(result)
	}
	return c.Redirect(fmt.Sprintf("/api/posts/%d", postID), fiber.StatusSeeOther)
}
