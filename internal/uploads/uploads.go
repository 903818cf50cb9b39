package uploads

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Evan-Ewald-Richardson/TREES/internal/course"

	"github.com/gofiber/fiber/v2"
)

const maxImageBytes = 5 << 20

var allowedImageExts = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".webp": {},
}

// Service stores course images on local disk and records their URLs on the
// course row.
type Service struct {
	dir     string
	courses *course.Service
}

func NewService(dir string, courses *course.Service) *Service {
	return &Service{dir: dir, courses: courses}
}

// SaveCourseImage writes the image under a deterministic name so a
// re-upload replaces the old file, and returns the public URL.
func (s *Service) SaveCourseImage(courseID int, filename string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := allowedImageExts[ext]; !ok {
		return "", fmt.Errorf("unsupported image type %q", ext)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", err
	}

	name := "course_" + strconv.Itoa(courseID) + ext
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", err
	}
	return "/uploads/" + name, nil
}

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/courses/:id/image", authMiddleware, func(c *fiber.Ctx) error {
		courseID, err := strconv.Atoi(c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid course id")
		}

		header, err := c.FormFile("image")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "image required")
		}
		if header.Size > maxImageBytes {
			return fiber.NewError(fiber.StatusRequestEntityTooLarge, "image too large")
		}

		file, err := header.Open()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		url, err := svc.SaveCourseImage(courseID, header.Filename, data)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := svc.courses.SetImageURL(c.Context(), courseID, url); err != nil {
			if errors.Is(err, course.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "course not found")
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{"image_url": url})
	})

	r.Get("/uploads/:file", func(c *fiber.Ctx) error {
		name := filepath.Base(c.Params("file"))
		path := filepath.Join(svc.dir, name)
		if _, err := os.Stat(path); err != nil {
			return fiber.NewError(fiber.StatusNotFound, "file not found")
		}
		return c.SendFile(path)
	})
}
