// Package seed provides database seeding utilities for development and
// testing.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"ripple/internal/imaging"
	"ripple/internal/models"
)

// DefaultPassword is the password every seeded account gets.
const DefaultPassword = "RippleDemo2024x"

// Options configures a seeding run.
type Options struct {
	NumUsers int
	NumPosts int
	// MaxDays spreads created_at timestamps over this many days back.
	MaxDays int
}

// Seeder populates the database with demo data.
type Seeder struct {
	db     *gorm.DB
	images *imaging.Processor
	rng    *rand.Rand
	opts   Options
}

// NewSeeder creates a Seeder. The image processor may be nil, in which case
// posts are created without placeholder images.
func NewSeeder(db *gorm.DB, images *imaging.Processor, opts Options) *Seeder {
	if opts.NumUsers <= 0 {
		opts.NumUsers = 25
	}
	if opts.NumPosts <= 0 {
		opts.NumPosts = 100
	}
	if opts.MaxDays <= 0 {
		opts.MaxDays = 90
	}
	gofakeit.Seed(time.Now().UnixNano())
	return &Seeder{
		db:     db,
		images: images,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		opts:   opts,
	}
}

// ClearAll removes all seedable rows. Order matters because of foreign keys.
func (s *Seeder) ClearAll() error {
	for _, model := range []any{
		&models.Like{}, &models.Comment{}, &models.Follow{},
		&models.Link{}, &models.Post{}, &models.Profile{}, &models.User{},
	} {
		if err := s.db.Unscoped().Where("1 = 1").Delete(model).Error; err != nil {
			return fmt.Errorf("clear %T: %w", model, err)
		}
	}
	return nil
}

// Run seeds users, their follow graph, posts, comments, likes and links.
func (s *Seeder) Run() error {
	users, err := s.SeedUsers(s.opts.NumUsers)
	if err != nil {
		return err
	}
	if err := s.SeedFollows(users); err != nil {
		return err
	}
	posts, err := s.SeedPosts(users, s.opts.NumPosts)
	if err != nil {
		return err
	}
	if err := s.SeedEngagement(users, posts); err != nil {
		return err
	}
	if err := s.SeedLinks(users); err != nil {
		return err
	}
	log.Printf("seeded %d users, %d posts", len(users), len(posts))
	return nil
}

// SeedUsers creates n users with profiles. All share DefaultPassword.
func (s *Seeder) SeedUsers(n int) ([]*models.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash seed password: %w", err)
	}

	users := make([]*models.User, 0, n)
	taken := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		username := s.uniqueUsername(taken)
		user := &models.User{
			Username: username,
			Email:    strings.ToLower(username) + "@" + gofakeit.DomainName(),
			Password: string(hashed),
		}
		if err := s.db.Create(user).Error; err != nil {
			return nil, fmt.Errorf("create user %s: %w", username, err)
		}

		profile := &models.Profile{
			UserID:       user.ID,
			Bio:          gofakeit.HipsterSentence(8),
			ProfileImage: models.DefaultProfileImage,
		}
		if err := s.db.Create(profile).Error; err != nil {
			return nil, fmt.Errorf("create profile for %s: %w", username, err)
		}
		user.Profile = profile
		users = append(users, user)
	}
	return users, nil
}

// SeedFollows gives every user a handful of followees.
func (s *Seeder) SeedFollows(users []*models.User) error {
	if len(users) < 2 {
		return nil
	}
	for _, follower := range users {
		count := 1 + s.rng.Intn(minInt(8, len(users)-1))
		for _, followee := range s.pickOthers(users, follower.ID, count) {
			follow := &models.Follow{
				FollowerID: follower.ID,
				FolloweeID: followee.ID,
			}
			// Random picks can repeat; the unique index makes that a no-op.
			if err := s.db.Where(follow).FirstOrCreate(follow).Error; err != nil {
				return fmt.Errorf("create follow: %w", err)
			}
		}
	}
	return nil
}

// SeedPosts creates n posts spread over random authors and timestamps. A
// placeholder image with its thumbnail is generated for roughly half of them.
func (s *Seeder) SeedPosts(users []*models.User, n int) ([]*models.Post, error) {
	if len(users) == 0 {
		return nil, nil
	}
	posts := make([]*models.Post, 0, n)
	for i := 0; i < n; i++ {
		author := users[s.rng.Intn(len(users))]
		post := &models.Post{
			Content:   gofakeit.Paragraph(1, 2, 8, " "),
			UserID:    author.ID,
			Views:     uint(s.rng.Intn(500)),
			CreatedAt: s.pastTimestamp(),
		}
		if s.images != nil && s.rng.Intn(2) == 0 {
			name := fmt.Sprintf("post_pics/seed_%s.jpg", gofakeit.UUID())
			if err := s.images.GeneratePlaceholder(name); err == nil {
				post.Image = name
				post.Thumbnail = s.images.GenerateThumbnail(name)
			}
		}
		if err := s.db.Create(post).Error; err != nil {
			return nil, fmt.Errorf("create post: %w", err)
		}
		posts = append(posts, post)
	}
	return posts, nil
}

// SeedEngagement sprinkles comments and likes over the given posts.
func (s *Seeder) SeedEngagement(users []*models.User, posts []*models.Post) error {
	for _, post := range posts {
		for _, commenter := range s.pickOthers(users, 0, s.rng.Intn(4)) {
			comment := &models.Comment{
				Content: gofakeit.Sentence(6 + s.rng.Intn(10)),
				UserID:  commenter.ID,
				PostID:  post.ID,
			}
			if err := s.db.Create(comment).Error; err != nil {
				return fmt.Errorf("create comment: %w", err)
			}
		}
		for _, fan := range s.pickOthers(users, post.UserID, s.rng.Intn(6)) {
			like := &models.Like{UserID: fan.ID, PostID: post.ID}
			if err := s.db.Where(like).FirstOrCreate(like).Error; err != nil {
				return fmt.Errorf("create like: %w", err)
			}
		}
	}
	return nil
}

// SeedLinks creates a few shared links per user with fake preview metadata.
func (s *Seeder) SeedLinks(users []*models.User) error {
	for _, user := range users {
		for i := 0; i < s.rng.Intn(3); i++ {
			link := &models.Link{
				UserID:      user.ID,
				URL:         gofakeit.URL(),
				Title:       gofakeit.Sentence(4),
				Description: gofakeit.Sentence(12),
				CreatedAt:   s.pastTimestamp(),
			}
			if err := s.db.Create(link).Error; err != nil {
				return fmt.Errorf("create link: %w", err)
			}
		}
	}
	return nil
}

func (s *Seeder) uniqueUsername(taken map[string]bool) string {
	for {
		name := strings.ToLower(gofakeit.Username())
		name = strings.Trim(name, "_-")
		if len(name) < 3 || len(name) > 24 {
			continue
		}
		if taken[name] {
			name = fmt.Sprintf("%s%d", name, s.rng.Intn(1000))
			if taken[name] {
				continue
			}
		}
		taken[name] = true
		return name
	}
}

// pickOthers returns up to count random users excluding the given ID.
func (s *Seeder) pickOthers(users []*models.User, exclude uint, count int) []*models.User {
	out := make([]*models.User, 0, count)
	for i := 0; i < count && len(users) > 0; i++ {
		candidate := users[s.rng.Intn(len(users))]
		if candidate.ID == exclude {
			continue
		}
		out = append(out, candidate)
	}
	return out
}

func (s *Seeder) pastTimestamp() time.Time {
	back := time.Duration(s.rng.Intn(s.opts.MaxDays*24*60)) * time.Minute
	return time.Now().Add(-back)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
