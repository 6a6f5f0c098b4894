// Package imaging produces the stored image derivatives: post thumbnails,
// bounded profile pictures, and generated placeholder images.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder

	"ripple/internal/middleware"
	"ripple/internal/observability"
)

const (
	// ThumbnailMaxSize bounds post thumbnails to a 300x300 box.
	ThumbnailMaxSize = 300
	// ProfileMaxSize bounds profile pictures to a 300x300 box.
	ProfileMaxSize = 300
	// ThumbnailPrefix is prepended to the source basename for derivatives.
	ThumbnailPrefix = "thumb_"

	placeholderSize = 400
	jpegQuality     = 85
	webpQuality     = 85
)

// Processor renders derivatives under a media root directory. All stored
// paths are relative to that root.
type Processor struct {
	mediaDir string
}

func NewProcessor(mediaDir string) *Processor {
	return &Processor{mediaDir: mediaDir}
}

// ThumbnailPath returns the relative path a thumbnail for sourcePath would
// occupy: same directory, basename prefixed with thumb_.
func ThumbnailPath(sourcePath string) string {
	dir, base := filepath.Split(sourcePath)
	return filepath.ToSlash(filepath.Join(dir, ThumbnailPrefix+base))
}

// GenerateThumbnail renders a copy of the image at relPath scaled to fit
// within 300x300 and writes it next to the source as thumb_<basename>.
// Images already within bounds are copied at original size. The derived path
// is returned; failures are logged, counted, and reported as an empty path so
// the post itself always persists.
func (p *Processor) GenerateThumbnail(relPath string) string {
	src, format, err := p.decode(relPath)
	if err != nil {
		observability.ThumbnailGenerations.WithLabelValues("post", "failed").Inc()
		middleware.Logger.Warn("thumbnail generation failed", "path", relPath, "error", err)
		return ""
	}

	thumb := resizeToFit(src, ThumbnailMaxSize, ThumbnailMaxSize)
	thumbRel := ThumbnailPath(relPath)
	if err := p.encodeToFile(thumbRel, thumb, format); err != nil {
		observability.ThumbnailGenerations.WithLabelValues("post", "failed").Inc()
		middleware.Logger.Warn("thumbnail generation failed", "path", relPath, "error", err)
		return ""
	}

	observability.ThumbnailGenerations.WithLabelValues("post", "ok").Inc()
	return thumbRel
}

// BoundProfileImage rewrites the profile picture at relPath in place when
// either dimension exceeds 300 pixels. Smaller images are left untouched.
// Failures are swallowed so a bad file never blocks a profile save.
func (p *Processor) BoundProfileImage(relPath string) {
	src, format, err := p.decode(relPath)
	if err != nil {
		observability.ThumbnailGenerations.WithLabelValues("profile", "failed").Inc()
		middleware.Logger.Warn("profile image resize failed", "path", relPath, "error", err)
		return
	}

	b := src.Bounds()
	if b.Dx() <= ProfileMaxSize && b.Dy() <= ProfileMaxSize {
		observability.ThumbnailGenerations.WithLabelValues("profile", "skipped").Inc()
		return
	}

	resized := resizeToFit(src, ProfileMaxSize, ProfileMaxSize)
	if err := p.encodeToFile(relPath, resized, format); err != nil {
		observability.ThumbnailGenerations.WithLabelValues("profile", "failed").Inc()
		middleware.Logger.Warn("profile image resize failed", "path", relPath, "error", err)
		return
	}
	observability.ThumbnailGenerations.WithLabelValues("profile", "ok").Inc()
}

// GeneratePlaceholder writes a random 400x400 striped JPEG to relPath for
// posts submitted without an image.
func (p *Processor) GeneratePlaceholder(relPath string) error {
	img := image.NewRGBA(image.Rect(0, 0, placeholderSize, placeholderSize))

	// Vertical stripes in two random colors.
	a := randomColor()
	b := randomColor()
	stripe := 20 + rand.Intn(40)
	for x := 0; x < placeholderSize; x++ {
		c := a
		if (x/stripe)%2 == 1 {
			c = b
		}
		for y := 0; y < placeholderSize; y++ {
			img.Set(x, y, c)
		}
	}

	return p.encodeToFile(relPath, img, "jpeg")
}

// SaveUpload writes raw upload bytes under the media root after verifying
// they decode as a supported image. The cleaned relative path is returned.
func (p *Processor) SaveUpload(relPath string, data []byte) (string, error) {
	if _, _, err := image.Decode(bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("invalid image file: %w", err)
	}
	clean := filepath.ToSlash(filepath.Clean(relPath))
	if strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("invalid upload path")
	}
	if err := writeBytesToFile(p.abs(clean), data); err != nil {
		return "", err
	}
	return clean, nil
}

// Remove deletes a stored file, ignoring files that are already gone.
func (p *Processor) Remove(relPath string) {
	if relPath == "" {
		return
	}
	_ = os.Remove(p.abs(relPath))
}

func (p *Processor) abs(relPath string) string {
	return filepath.Join(p.mediaDir, filepath.FromSlash(relPath))
}

func (p *Processor) decode(relPath string) (image.Image, string, error) {
	// #nosec G304: relPath is cleaned before storage
	f, err := os.Open(p.abs(relPath))
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = f.Close() }()
	return image.Decode(f)
}

// encodeToFile writes img in the source format, falling back to JPEG for
// formats without an encoder (webp decode-only paths notwithstanding).
func (p *Processor) encodeToFile(relPath string, img image.Image, format string) error {
	buf := bytes.NewBuffer(nil)
	var err error
	switch strings.ToLower(format) {
	case "png":
		err = png.Encode(buf, img)
	case "gif":
		err = gif.Encode(buf, img, nil)
	case "webp":
		err = webp.Encode(buf, img, &webp.Options{Quality: webpQuality})
	default:
		err = jpeg.Encode(buf, img, &jpeg.Options{Quality: jpegQuality})
	}
	if err != nil {
		return err
	}
	return writeBytesToFile(p.abs(relPath), buf.Bytes())
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w <= 0 || h <= 0 {
		return src
	}
	if w <= maxWidth && h <= maxHeight {
		return src
	}

	scaleW := float64(maxWidth) / float64(w)
	scaleH := float64(maxHeight) / float64(h)
	scale := scaleW
	if scaleH < scale {
		scale = scaleH
	}
	newW := int(float64(w) * scale)
	newH := int(float64(h) * scale)
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func randomColor() color.RGBA {
	return color.RGBA{
		R: uint8(rand.Intn(256)),
		G: uint8(rand.Intn(256)),
		B: uint8(rand.Intn(256)),
		A: 255,
	}
}

func writeBytesToFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
