package pubhost

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
)

const (
	maxImageWidth   = 1200
	maxImagePixels  = 40_000_000
	jpegQuality     = 80
	maxUploadSize   = 10 << 20 // 10MB
	uploadsSubdir   = "uploads"
	maxNameAttempts = 1000
)

var errImageTooLarge = errors.New("image dimensions too large")

// processImage decodes an image from src, resizes it to at most maxImageWidth
// wide, and encodes it as JPEG. Returns metadata and the encoded bytes.
// Images declaring more than maxImagePixels are rejected before decoding.
func processImage(src io.Reader, originalName string) (Image, []byte, error) {
	raw, err := io.ReadAll(src)
	if err != nil {
		return Image{}, nil, fmt.Errorf("read image: %w", err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return Image{}, nil, fmt.Errorf("decode image: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > maxImagePixels {
		return Image{}, nil, fmt.Errorf("%w: %dx%d", errImageTooLarge, cfg.Width, cfg.Height)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return Image{}, nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	if w > maxImageWidth {
		newH := h * maxImageWidth / w
		if newH < 1 {
			newH = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, maxImageWidth, newH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
		w, h = maxImageWidth, newH
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return Image{}, nil, fmt.Errorf("encode jpeg: %w", err)
	}

	base := slugifyFilename(originalName)
	if base == "" {
		base = "image"
	}
	return Image{
		Filename:     base + ".jpg",
		OriginalName: originalName,
		Width:        w,
		Height:       h,
		Size:         buf.Len(),
		UploadedAt:   time.Now().UTC(),
	}, buf.Bytes(), nil
}

// slugifyFilename converts a filename (without extension) to a URL-safe slug.
func slugifyFilename(name string) string {
	ext := filepath.Ext(name)
	return Slugify(strings.TrimSuffix(name, ext))
}

func (a *App) uploadDir(userID string) string {
	return filepath.Join(a.Config.StaticDir, uploadsSubdir, userID)
}

func uploadURL(userID, filename string) string {
	return "/public/" + uploadsSubdir + "/" + userID + "/" + filename
}

// saveUpload writes data under the first free variant of img.Filename and
// records it. A name is claimed by creating its file exclusively, so only
// files created here are ever removed on failure.
func (a *App) saveUpload(ctx context.Context, img Image, data []byte) (Image, error) {
	dir := a.uploadDir(img.UserID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Image{}, fmt.Errorf("create uploads dir: %w", err)
	}
	base := strings.TrimSuffix(img.Filename, ".jpg")
	for attempt := 1; attempt <= maxNameAttempts; attempt++ {
		name := base + ".jpg"
		if attempt > 1 {
			name = fmt.Sprintf("%s-%d.jpg", base, attempt)
		}
		path := filepath.Join(dir, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if os.IsExist(err) {
			continue
		}
		if err != nil {
			return Image{}, fmt.Errorf("create image: %w", err)
		}
		_, err = f.Write(data)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(path)
			return Image{}, fmt.Errorf("write image: %w", err)
		}

		img.Filename = name
		img.URL = uploadURL(img.UserID, name)
		saved, err := a.Store.SaveImage(ctx, img)
		if err == nil {
			return saved, nil
		}
		_ = os.Remove(path)
		// A record without a file still holds the name.
		if !isUniqueViolation(err) {
			return Image{}, err
		}
	}
	return Image{}, fmt.Errorf("no free filename for %q", base)
}

func (a *App) handleImageUpload(c echo.Context) error {
	ctx := c.Request().Context()
	u := CurrentUser(c)

	file, err := c.FormFile("image")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "no image file provided")
	}
	if file.Size > maxUploadSize {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "file too large (max 10MB)")
	}

	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	img, data, err := processImage(io.LimitReader(src, maxUploadSize), file.Filename)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid image: "+err.Error())
	}
	img.UserID = u.ID
	saved, err := a.saveUpload(ctx, img, data)
	if err != nil {
		return err
	}
	a.Log.Info("image uploaded", zap.String("user_id", u.ID), zap.String("filename", saved.Filename), zap.Int("bytes", saved.Size))

	if wantsJSON(c) {
		return c.JSON(http.StatusCreated, map[string]any{
			"url":    saved.URL,
			"width":  saved.Width,
			"height": saved.Height,
		})
	}
	return c.Redirect(http.StatusSeeOther, dashboardPath+"images/")
}

func (a *App) handleImageDelete(c echo.Context) error {
	u := CurrentUser(c)
	filename := c.Param("filename")
	if filename == "" || filename != filepath.Base(filename) || strings.HasPrefix(filename, ".") {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid filename")
	}

	if err := a.Store.DeleteImage(c.Request().Context(), u.ID, filename); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(a.uploadDir(u.ID), filename)); err != nil && !os.IsNotExist(err) {
		a.Log.Warn("remove image file failed", zap.String("filename", filename), zap.Error(err))
	}
	return c.NoContent(http.StatusNoContent)
}

func (a *App) handleImageList(c echo.Context) error {
	images, err := a.Store.ListImages(c.Request().Context(), CurrentUser(c).ID)
	if err != nil {
		return err
	}
	if wantsJSON(c) {
		return c.JSON(http.StatusOK, images)
	}
	return Render(c, a.Views.Images(ImagesPage{Chrome: a.chrome(c, "Images"), Images: images}))
}
