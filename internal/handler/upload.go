package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/backtrackers-api/internal/dto"
	"github.com/noah-isme/backtrackers-api/internal/models"
	appErrors "github.com/noah-isme/backtrackers-api/pkg/errors"
)

const imageField = "images"

// UploadConfig bounds multipart image attachments before they reach the media store.
type UploadConfig struct {
	TempDir      string
	MaxFileSize  int64
	MaxFiles     int
	AllowedMIMEs []string
}

func (u UploadConfig) allows(mime string) bool {
	if len(u.AllowedMIMEs) == 0 {
		return strings.HasPrefix(mime, "image/")
	}
	for _, allowed := range u.AllowedMIMEs {
		if strings.EqualFold(allowed, mime) {
			return true
		}
	}
	return false
}

// stagedFiles are temp copies of uploaded attachments. The media store removes each one it consumes;
// cleanup removes whatever is left when a request fails before that.
type stagedFiles []string

func (s stagedFiles) cleanup() {
	for _, path := range s {
		_ = os.Remove(path)
	}
}

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/form-data")
}

// stageImages copies every attachment under the images field into the temp dir, in form order.
func (u UploadConfig) stageImages(c *gin.Context) (stagedFiles, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid multipart form")
	}
	headers := make([]*multipart.FileHeader, 0, len(form.File[imageField]))
	headers = append(headers, form.File[imageField]...)
	headers = append(headers, form.File[imageField+"[]"]...)
	if u.MaxFiles > 0 && len(headers) > u.MaxFiles {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("at most %d images are allowed", u.MaxFiles))
	}

	staged := make(stagedFiles, 0, len(headers))
	for i, fh := range headers {
		path, err := u.stage(fh)
		if err != nil {
			staged.cleanup()
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, fmt.Sprintf("image %d: %v", i+1, err))
		}
		staged = append(staged, path)
	}
	return staged, nil
}

func (u UploadConfig) stage(fh *multipart.FileHeader) (string, error) {
	if u.MaxFileSize > 0 && fh.Size > u.MaxFileSize {
		return "", fmt.Errorf("file exceeds %d bytes", u.MaxFileSize)
	}
	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(src, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", err
	}
	head = head[:n]
	if mime := http.DetectContentType(head); !u.allows(mime) {
		return "", fmt.Errorf("unsupported content type %s", mime)
	}

	dst, err := os.CreateTemp(u.TempDir, "item-upload-*")
	if err != nil {
		return "", err
	}
	limit := u.MaxFileSize
	if limit <= 0 {
		limit = fh.Size
	}
	_, err = dst.Write(head)
	if err == nil {
		var copied int64
		copied, err = io.Copy(dst, io.LimitReader(src, limit-int64(n)+1))
		if err == nil && int64(n)+copied > limit {
			err = fmt.Errorf("file exceeds %d bytes", limit)
		}
	}
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(dst.Name())
		return "", err
	}
	return dst.Name(), nil
}

func parseDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("occurred_at must be RFC3339 or YYYY-MM-DD")
}

func parseMetadata(raw string) (models.Metadata, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var meta models.Metadata
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return nil, fmt.Errorf("metadata must be a flat JSON object: %w", err)
	}
	return meta, nil
}

func createRequestFromForm(c *gin.Context) (dto.CreateItemRequest, error) {
	req := dto.CreateItemRequest{
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		Location:    c.PostForm("location"),
		ContactInfo: c.PostForm("contact_info"),
	}
	var err error
	if req.OccurredAt, err = parseDate(c.PostForm("occurred_at")); err != nil {
		return req, err
	}
	req.Metadata, err = parseMetadata(c.PostForm("metadata"))
	return req, err
}

// updateRequestFromForm only sets fields present in the form; existing images absent from the form mean none are kept.
func updateRequestFromForm(c *gin.Context) (dto.UpdateItemRequest, error) {
	var req dto.UpdateItemRequest
	optional := func(key string) *string {
		if v, ok := c.GetPostForm(key); ok {
			return &v
		}
		return nil
	}
	req.Title = optional("title")
	req.Description = optional("description")
	req.Location = optional("location")
	req.ContactInfo = optional("contact_info")

	if raw, ok := c.GetPostForm("occurred_at"); ok {
		occurred, err := parseDate(raw)
		if err != nil {
			return req, err
		}
		req.OccurredAt = occurred
	}
	if raw, ok := c.GetPostForm("metadata"); ok {
		meta, err := parseMetadata(raw)
		if err != nil {
			return req, err
		}
		req.Metadata = meta
	}

	req.ExistingImages = make([]string, 0)
	for _, key := range []string{"existingImages[]", "existingImages", "existing_images"} {
		for _, u := range c.PostFormArray(key) {
			if u = strings.TrimSpace(u); u != "" {
				req.ExistingImages = append(req.ExistingImages, u)
			}
		}
	}
	return req, nil
}
