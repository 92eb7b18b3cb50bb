package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harshaverse/karmic/internal/platform/logger"
	"github.com/harshaverse/karmic/internal/services"
	"github.com/harshaverse/karmic/internal/session"
)

type AssetHandler struct {
	log       *logger.Logger
	optimizer *services.Optimizer
	sessions  *session.Manager
}

func NewAssetHandler(log *logger.Logger, optimizer *services.Optimizer, sessions *session.Manager) *AssetHandler {
	return &AssetHandler{
		log:       log.With("handler", "AssetHandler"),
		optimizer: optimizer,
		sessions:  sessions,
	}
}

// POST /api/upload_model
// Multipart upload; the model is parsed and validated before any quota is
// reserved.
func (h *AssetHandler) UploadModel(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "missing_file", err)
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		RespondError(c, http.StatusBadRequest, "unreadable_file", err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "unreadable_file", err)
		return
	}

	snap, err := h.optimizer.Upload(fileHeader.Filename, data)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"asset": snap})
}

type optimizeRequest struct {
	AssetID string `json:"asset_id" binding:"required"`
}

// POST /api/optimize_mesh
// Kicks off the background run; responds as soon as the session is
// Processing.
func (h *AssetHandler) OptimizeMesh(c *gin.Context) {
	var req optimizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if err := h.optimizer.StartOptimize(req.AssetID); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"asset_id": req.AssetID, "state": session.StateProcessing.String()})
}

// GET /api/download_glb/:asset_id
func (h *AssetHandler) DownloadGLB(c *gin.Context) {
	id := c.Param("asset_id")
	data, fileName, err := h.sessions.Download(id)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+fileName+`"`)
	c.Data(http.StatusOK, "model/gltf-binary", data)
}

// DELETE /api/cleanup/:asset_id
func (h *AssetHandler) Cleanup(c *gin.Context) {
	id := c.Param("asset_id")
	if err := h.sessions.Cleanup(id); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"asset_id": id, "cleaned": true})
}

// DELETE /api/cleanup
func (h *AssetHandler) CleanupAll(c *gin.Context) {
	h.sessions.CleanupAll()
	RespondOK(c, gin.H{"cleaned": true})
}

// GET /api/status
func (h *AssetHandler) Status(c *gin.Context) {
	RespondOK(c, gin.H{
		"sessions":    h.sessions.Status(),
		"usage_bytes": h.sessions.Usage(),
		"quota_bytes": h.sessions.Quota(),
	})
}
