// Package transport exposes the enhancer over HTTP.
package transport

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	studio "github.com/prodimg/studio"
	"github.com/prodimg/studio/core"
)

// maxMultipartMemory bounds the in-memory portion of multipart parsing;
// larger uploads spill to temp files.
const maxMultipartMemory = 8 << 20

// Handler serves enhancement requests for a shared Enhancer.
type Handler struct {
	enhancer *studio.Enhancer
	logger   core.Logger
	store    core.ArtifactStore
}

func NewHandler(e *studio.Enhancer, logger core.Logger) *Handler {
	if logger == nil {
		logger = core.NopLogger{}
	}
	return &Handler{enhancer: e, logger: logger}
}

// WithStore enables artifact retrieval over HTTP. Failed runs then point at
// the persisted best-effort result instead of discarding it.
func (h *Handler) WithStore(s core.ArtifactStore) *Handler {
	h.store = s
	return h
}

// Router builds the gin engine with the service routes mounted.
func (h *Handler) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.MaxMultipartMemory = maxMultipartMemory

	r.GET("/healthz", h.health)
	r.POST("/v1/enhance", h.enhance)
	if h.store != nil {
		r.GET("/v1/artifacts/:name", h.artifact)
	}
	return r
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) artifact(c *gin.Context) {
	name := c.Param("name")
	data, err := h.store.Get(c.Request.Context(), name)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "artifact not found"})
		return
	}
	c.Data(http.StatusOK, "image/png", data)
}

// enhance accepts a multipart upload under the "image" field and responds
// with the finished PNG.  Degraded runs still return 200; the fallback
// reasons are reported in the X-Studio-Warnings header.
func (h *Handler) enhance(c *gin.Context) {
	file, header, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field 'image' is required"})
		return
	}
	defer file.Close()

	src := studio.Source{Reader: file, Name: header.Filename, Size: header.Size}
	report, err := h.enhancer.Enhance(c.Request.Context(), src)
	if err != nil {
		h.logger.Error("transport.enhance_failed",
			"run_id", report.RunID,
			"file", header.Filename,
			"error", err.Error(),
		)
		body := gin.H{
			"error":  err.Error(),
			"run_id": report.RunID,
		}
		// The enhancer persists the last good artifact of an aborted run;
		// tell the caller where to fetch it.
		if h.store != nil && report.Image != nil && len(report.Image.Data) > 0 {
			body["artifact"] = "/v1/artifacts/" + report.RunID + ".png"
		}
		c.JSON(http.StatusUnprocessableEntity, body)
		return
	}

	c.Header("X-Studio-Run-Id", report.RunID)
	if report.Degraded() {
		reasons := make([]string, 0, len(report.Warnings))
		for _, w := range report.Warnings {
			reasons = append(reasons, fmt.Sprintf("%s: %s", w.Stage, w.Reason))
		}
		c.Header("X-Studio-Warnings", strings.Join(reasons, "; "))
	}
	c.Data(http.StatusOK, "image/png", report.Image.Data)
}
