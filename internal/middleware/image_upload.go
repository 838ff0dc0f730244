package middleware

import (
	"fmt"
	"io"
	"log"
	"strings"

	"carrito/internal/storage"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// ImageField is the multipart field carrying the product image.
const ImageField = "imagen"

const (
	imageLocal    = "imagen_path"
	replacedLocal = "imagen_replaced"
)

// ImageUpload is a Fiber middleware that stores the optional image file of a
// multipart request and exposes its public path through ImagePath. The stored
// image is removed again when the rest of the chain fails; on success the image
// recorded with ReplaceImage is removed instead.
func ImageUpload(store storage.ImageStore, maxBytes int64) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
			return c.Next()
		}

		form, err := c.MultipartForm()
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": fmt.Sprintf("invalid multipart body: %v", err),
			})
		}
		files := form.File[ImageField]
		if len(files) == 0 {
			return c.Next()
		}
		if len(files) > 1 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "only one imagen file is allowed",
			})
		}

		file := files[0]
		if maxBytes > 0 && file.Size > maxBytes {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": fmt.Sprintf("imagen exceeds %d bytes", maxBytes),
			})
		}

		src, err := file.Open()
		if err != nil {
			return fmt.Errorf("failed to open uploaded image: %w", err)
		}
		defer src.Close()

		// Type and extension come from the content, never from the part headers.
		mtype, err := mimetype.DetectReader(src)
		if err != nil {
			return fmt.Errorf("failed to read uploaded image: %w", err)
		}
		if !allowedImage(mtype) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": fmt.Sprintf("imagen must be an image, got %q", mtype.String()),
			})
		}
		if _, err := src.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("failed to rewind uploaded image: %w", err)
		}

		key := uuid.NewString() + mtype.Extension()
		path, err := store.Save(c.UserContext(), key, mtype.String(), file.Size, src)
		if err != nil {
			return fmt.Errorf("failed to store uploaded image: %w", err)
		}
		c.Locals(imageLocal, path)

		err = c.Next()
		if err != nil || c.Response().StatusCode() >= fiber.StatusBadRequest {
			removeImage(c, store, key)
			return err
		}
		if previous, ok := c.Locals(replacedLocal).(string); ok && previous != path {
			if oldKey, owned := store.Key(previous); owned {
				removeImage(c, store, oldKey)
			}
		}
		return err
	}
}

// ReplaceImage records the image path the current request replaced. Once the
// request succeeds, the upload middleware removes it from the store.
func ReplaceImage(c *fiber.Ctx, previous string) {
	c.Locals(replacedLocal, previous)
}

// allowedImage accepts raster images. SVG is refused since it can carry script.
func allowedImage(mtype *mimetype.MIME) bool {
	return strings.HasPrefix(mtype.String(), "image/") && !mtype.Is("image/svg+xml")
}

func removeImage(c *fiber.Ctx, store storage.ImageStore, key string) {
	if err := store.Delete(c.UserContext(), key); err != nil {
		log.Printf("Warning: failed to remove image %s: %v", key, err)
	}
}

// ImagePath returns the stored image path for the current request, if any.
func ImagePath(c *fiber.Ctx) (string, bool) {
	path, ok := c.Locals(imageLocal).(string)
	return path, ok && path != ""
}
