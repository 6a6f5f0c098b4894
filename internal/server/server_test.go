package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ripple/internal/config"
	"ripple/internal/database"
	"ripple/internal/imaging"
	"ripple/internal/metadata"
	"ripple/internal/repository"
	"ripple/internal/service"
	"ripple/internal/session"
	"ripple/internal/testutil"
)

// setupTestServer wires a full Server against an isolated SQLite database
// and a miniredis instance. The Prometheus middleware is left nil to avoid
// duplicate collector registration across tests.
func setupTestServer(t *testing.T) (*Server, *fiber.App) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := &config.Config{
		JWTSecret: "test-secret-not-for-production",
		MediaDir:  t.TempDir(),
		Port:      "0",
	}

	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	followRepo := repository.NewFollowRepository(db)
	linkRepo := repository.NewLinkRepository(db)
	images := imaging.NewProcessor(cfg.MediaDir)

	s := &Server{
		config:      cfg,
		db:          db,
		redis:       rdb,
		userRepo:    userRepo,
		postRepo:    postRepo,
		commentRepo: commentRepo,
		followRepo:  followRepo,
		linkRepo:    linkRepo,
		images:      images,
		sessions:    session.NewStore(rdb),
	}
	s.accountService = service.NewAccountService(userRepo, followRepo, images)
	s.postService = service.NewPostService(postRepo, commentRepo, followRepo, images)
	s.feedService = service.NewFeedService(postRepo, followRepo)
	s.engagementService = service.NewEngagementService(postRepo, followRepo, userRepo)
	s.commentService = service.NewCommentService(commentRepo, postRepo)
	s.linkService = service.NewLinkService(linkRepo, metadata.NewHTTPFetcher())

	app := fiber.New()
	s.SetupRoutes(app)
	return s, app
}

// signupUser registers an account directly through the service layer and
// returns its ID with a valid bearer token.
func signupUser(t *testing.T, s *Server, username string) (uint, string) {
	t.Helper()
	user, err := s.accountService.Register(context.Background(), service.RegisterInput{
		Username: username,
		Email:    username + "@example.com",
		Password: "CorrectHorse9!",
	})
	require.NoError(t, err)
	token, err := s.generateToken(user.ID, user.Username)
	require.NoError(t, err)
	return user.ID, token
}

func createPost(t *testing.T, s *Server, userID uint, content string) uint {
	t.Helper()
	post, err := s.postService.CreatePost(context.Background(), service.CreatePostInput{
		UserID:  userID,
		Content: content,
	})
	require.NoError(t, err)
	return post.ID
}

func doJSON(t *testing.T, app *fiber.App, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dest any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dest))
}

func TestSignupAndLoginFlow(t *testing.T) {
	_, app := setupTestServer(t)

	resp := doJSON(t, app, http.MethodPost, "/api/auth/signup", "", fiber.Map{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "CorrectHorse9!",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var signup struct {
		Token string `json:"token"`
	}
	decodeBody(t, resp, &signup)
	assert.NotEmpty(t, signup.Token)

	resp = doJSON(t, app, http.MethodPost, "/api/auth/login", "", fiber.Map{
		"username": "alice",
		"password": "CorrectHorse9!",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = doJSON(t, app, http.MethodPost, "/api/auth/login", "", fiber.Map{
		"username": "alice",
		"password": "wrong-password",
	})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	_, app := setupTestServer(t)

	resp := doJSON(t, app, http.MethodPost, "/api/posts", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, "/api/feed/following", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestFeedPagination(t *testing.T) {
	s, app := setupTestServer(t)
	userID, _ := signupUser(t, s, "alice")
	for i := 0; i < 7; i++ {
		createPost(t, s, userID, fmt.Sprintf("post number %d", i))
	}

	var page struct {
		Items   []json.RawMessage `json:"items"`
		HasNext bool              `json:"has_next"`
	}

	resp := doJSON(t, app, http.MethodGet, "/api/feed?page=1", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &page)
	assert.Len(t, page.Items, 5)
	assert.True(t, page.HasNext)

	resp = doJSON(t, app, http.MethodGet, "/api/feed?page=2", "", nil)
	decodeBody(t, resp, &page)
	assert.Len(t, page.Items, 2)
	assert.False(t, page.HasNext)

	// A page beyond the end is empty, not clamped.
	resp = doJSON(t, app, http.MethodGet, "/api/feed?page=50", "", nil)
	decodeBody(t, resp, &page)
	assert.Empty(t, page.Items)
	assert.False(t, page.HasNext)
}

func TestLoadMoreUnparseablePage(t *testing.T) {
	s, app := setupTestServer(t)
	userID, _ := signupUser(t, s, "alice")
	createPost(t, s, userID, "only post")

	var page struct {
		Items   []json.RawMessage `json:"items"`
		HasNext bool              `json:"has_next"`
	}

	resp := doJSON(t, app, http.MethodGet, "/api/feed/more?page=banana", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &page)
	assert.Empty(t, page.Items)
	assert.False(t, page.HasNext)
}

func TestFollowingFeedScope(t *testing.T) {
	s, app := setupTestServer(t)
	aliceID, aliceToken := signupUser(t, s, "alice")
	bobID, _ := signupUser(t, s, "bob")
	carolID, _ := signupUser(t, s, "carol")

	createPost(t, s, aliceID, "from alice")
	createPost(t, s, bobID, "from bob")
	createPost(t, s, carolID, "from carol")

	_, err := s.engagementService.ToggleFollow(context.Background(), aliceID, "bob")
	require.NoError(t, err)

	var page struct {
		Items []struct {
			UserID uint `json:"user_id"`
		} `json:"items"`
	}
	resp := doJSON(t, app, http.MethodGet, "/api/feed/following", aliceToken, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &page)

	require.Len(t, page.Items, 2, "alice should see her own and bob's posts")
	for _, item := range page.Items {
		assert.NotEqual(t, carolID, item.UserID)
	}
}

func TestToggleLikeXHR(t *testing.T) {
	s, app := setupTestServer(t)
	userID, token := signupUser(t, s, "alice")
	postID := createPost(t, s, userID, "likeable")

	like := func() *http.Response {
		req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/posts/%d/like", postID), nil)
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("X-Requested-With", "XMLHttpRequest")
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		return resp
	}

	var result struct {
		Liked     bool  `json:"liked"`
		LikeCount int64 `json:"like_count"`
	}

	resp := like()
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &result)
	assert.True(t, result.Liked)
	assert.EqualValues(t, 1, result.LikeCount)

	resp = like()
	decodeBody(t, resp, &result)
	assert.False(t, result.Liked)
	assert.EqualValues(t, 0, result.LikeCount)
}

func TestToggleLikeFormPostRedirects(t *testing.T) {
	s, app := setupTestServer(t)
	userID, token := signupUser(t, s, "alice")
	postID := createPost(t, s, userID, "likeable")

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/posts/%d/like", postID), nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, fmt.Sprintf("/api/posts/%d", postID), resp.Header.Get("Location"))
}

func TestToggleFollowFlow(t *testing.T) {
	s, app := setupTestServer(t)
	_, aliceToken := signupUser(t, s, "alice")
	signupUser(t, s, "bob")

	resp := doJSON(t, app, http.MethodPost, "/api/users/bob/follow", aliceToken, nil)
	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/api/users/bob", resp.Header.Get("Location"))

	// The outcome lands in the flash queue.
	var flashes struct {
		Flashes []string `json:"flashes"`
	}
	resp = doJSON(t, app, http.MethodGet, "/api/users/me/flashes", aliceToken, nil)
	decodeBody(t, resp, &flashes)
	require.Len(t, flashes.Flashes, 1)
	assert.Contains(t, flashes.Flashes[0], "now following bob")

	// Toggling again unfollows.
	resp = doJSON(t, app, http.MethodPost, "/api/users/bob/follow", aliceToken, nil)
	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)

	var profile struct {
		FollowerCount int64 `json:"follower_count"`
	}
	resp = doJSON(t, app, http.MethodGet, "/api/users/bob", aliceToken, nil)
	decodeBody(t, resp, &profile)
	assert.EqualValues(t, 0, profile.FollowerCount)
}

func TestSelfFollowRejected(t *testing.T) {
	s, app := setupTestServer(t)
	_, token := signupUser(t, s, "alice")

	resp := doJSON(t, app, http.MethodPost, "/api/users/alice/follow", token, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func multipartBody(t *testing.T, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return buf, w.FormDataContentType()
}

func TestCreatePostNonceFlow(t *testing.T) {
	s, app := setupTestServer(t)
	_, token := signupUser(t, s, "alice")

	// Render the form to get a nonce.
	resp := doJSON(t, app, http.MethodGet, "/api/posts/new", token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var form struct {
		Nonce string `json:"nonce"`
	}
	decodeBody(t, resp, &form)
	require.NotEmpty(t, form.Nonce)

	submit := func(nonce string) *http.Response {
		body, contentType := multipartBody(t, map[string]string{
			"content": "hello world",
			"nonce":   nonce,
		})
		req := httptest.NewRequest(http.MethodPost, "/api/posts", body)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("X-Requested-With", "XMLHttpRequest")
		r, err := app.Test(req, -1)
		require.NoError(t, err)
		return r
	}

	// First submission goes through.
	resp = submit(form.Nonce)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	// Replaying the same nonce is rejected without creating a post.
	resp = submit(form.Nonce)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	count, err := s.postRepo.CountAll(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestCreatePostWithoutNonceRedirects(t *testing.T) {
	s, app := setupTestServer(t)
	_, token := signupUser(t, s, "alice")

	body, contentType := multipartBody(t, map[string]string{"content": "sneaky"})
	req := httptest.NewRequest(http.MethodPost, "/api/posts", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/api/feed", resp.Header.Get("Location"))

	count, err := s.postRepo.CountAll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCreatePostWithImageUpload(t *testing.T) {
	s, app := setupTestServer(t)
	_, token := signupUser(t, s, "alice")

	resp := doJSON(t, app, http.MethodGet, "/api/posts/new", token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var form struct {
		Nonce string `json:"nonce"`
	}
	decodeBody(t, resp, &form)

	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	require.NoError(t, w.WriteField("content", "with a picture"))
	require.NoError(t, w.WriteField("nonce", form.Nonce))
	fw, err := w.CreateFormFile("image", "photo.png")
	require.NoError(t, err)
	_, err = fw.Write(testutil.TinyPNG(t, 800, 600))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/posts", buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var post struct {
		Image     string `json:"image"`
		Thumbnail string `json:"thumbnail"`
	}
	decodeBody(t, resp, &post)
	assert.NotEmpty(t, post.Image)
	require.NotEmpty(t, post.Thumbnail)
	assert.Contains(t, post.Thumbnail, "thumb_")
}

func TestPostDetailCountsViews(t *testing.T) {
	s, app := setupTestServer(t)
	userID, _ := signupUser(t, s, "alice")
	postID := createPost(t, s, userID, "watch me")

	var detail struct {
		Post struct {
			Views uint `json:"views"`
		} `json:"post"`
	}
	for i := 1; i <= 3; i++ {
		resp := doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/posts/%d", postID), "", nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		decodeBody(t, resp, &detail)
		assert.EqualValues(t, i, detail.Post.Views)
	}
}

func TestCommentFlow(t *testing.T) {
	s, app := setupTestServer(t)
	userID, token := signupUser(t, s, "alice")
	postID := createPost(t, s, userID, "discuss")

	resp := doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/posts/%d/comments", postID), token, fiber.Map{
		"content": "first!",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp = doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/posts/%d/comments", postID), token, fiber.Map{
		"content": strings.Repeat("x", 201),
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var comments []struct {
		Content string `json:"content"`
	}
	resp = doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/posts/%d/comments", postID), "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &comments)
	require.Len(t, comments, 1)
	assert.Equal(t, "first!", comments[0].Content)
}

func TestUpdateProfileBio(t *testing.T) {
	s, app := setupTestServer(t)
	_, token := signupUser(t, s, "alice")

	body, contentType := multipartBody(t, map[string]string{"bio": "hello, I post here"})
	req := httptest.NewRequest(http.MethodPut, "/api/users/me/profile", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var profile struct {
		Bio string `json:"bio"`
	}
	decodeBody(t, resp, &profile)
	assert.Equal(t, "hello, I post here", profile.Bio)
}

func TestUpdateProfileImageReplacesDefault(t *testing.T) {
	s, app := setupTestServer(t)
	_, token := signupUser(t, s, "alice")

	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	fw, err := w.CreateFormFile("profile_image", "me.jpg")
	require.NoError(t, err)
	_, err = fw.Write(testutil.TinyJPEG(t, 640, 480))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPut, "/api/users/me/profile", buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var profile struct {
		ProfileImage string `json:"profile_image"`
	}
	decodeBody(t, resp, &profile)
	assert.NotEmpty(t, profile.ProfileImage)
	assert.NotEqual(t, "profile_pics/default.jpg", profile.ProfileImage)
}

func TestOnlyOwnerCanDeletePost(t *testing.T) {
	s, app := setupTestServer(t)
	aliceID, _ := signupUser(t, s, "alice")
	_, bobToken := signupUser(t, s, "bob")
	postID := createPost(t, s, aliceID, "alice's post")

	resp := doJSON(t, app, http.MethodDelete, fmt.Sprintf("/api/posts/%d", postID), bobToken, nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
