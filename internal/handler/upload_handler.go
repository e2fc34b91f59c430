package handler

import (
	"github.com/gin-gonic/gin"

	"marketplace/internal/middleware"
	"marketplace/internal/storage"
	"marketplace/pkg/utils"
)

const maxUploadSize = 10 << 20 // 10 MiB

// UploadHandler HTTP surface of media uploads.
type UploadHandler struct {
	storage *storage.Storage
}

// NewUploadHandler creates an upload handler. Storage may be nil when object
// storage is not configured, in which case uploads are rejected.
func NewUploadHandler(store *storage.Storage) *UploadHandler {
	return &UploadHandler{storage: store}
}

// UploadProductImage handles POST /api/v1/uploads/products
func (h *UploadHandler) UploadProductImage(c *gin.Context) {
	h.upload(c, func() string { return h.storage.ProductsBucket() })
}

// UploadAvatar handles POST /api/v1/uploads/avatars
func (h *UploadHandler) UploadAvatar(c *gin.Context) {
	h.upload(c, func() string { return h.storage.AvatarsBucket() })
}

func (h *UploadHandler) upload(c *gin.Context, bucket func() string) {
	if _, ok := middleware.CurrentUser(c); !ok {
		utils.Error(c, utils.CodeUnauthorized, "unauthorized")
		return
	}
	if h.storage == nil {
		utils.Error(c, utils.CodeDependencyUnavailable, "object storage unavailable")
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		utils.Error(c, utils.CodeInvalidParam, "missing file field")
		return
	}
	if header.Size > maxUploadSize {
		utils.Error(c, utils.CodeInvalidParam, "file too large")
		return
	}

	file, err := header.Open()
	if err != nil {
		utils.Fail(c, err)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	key, err := h.storage.Upload(c.Request.Context(), bucket(), header.Filename, file, header.Size, contentType)
	if err != nil {
		utils.Fail(c, err)
		return
	}

	utils.Created(c, gin.H{
		"key": key,
		"url": h.storage.PublicURL(bucket(), key),
	})
}
