package rest

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/magicwardrobe/ai"
	"github.com/kasuganosora/magicwardrobe/audit"
	"github.com/kasuganosora/magicwardrobe/catalog"
	"github.com/kasuganosora/magicwardrobe/inventory"
	mw "github.com/kasuganosora/magicwardrobe/middleware"
	"github.com/kasuganosora/magicwardrobe/model"
	"go.uber.org/zap"
)

const defaultMaxUpload = 10 << 20

// GarmentHandler handles wardrobe REST endpoints.
type GarmentHandler struct {
	inv       *inventory.Service
	vision    ai.Vision
	audit     Auditor
	maxUpload int64
	logger    *zap.Logger
}

// NewGarmentHandler creates a new GarmentHandler. maxUpload bounds the
// image accepted by Analyze; zero means 10 MiB.
func NewGarmentHandler(inv *inventory.Service, vision ai.Vision, a Auditor, maxUpload int64, logger *zap.Logger) *GarmentHandler {
	if maxUpload <= 0 {
		maxUpload = defaultMaxUpload
	}
	return &GarmentHandler{inv: inv, vision: vision, audit: a, maxUpload: maxUpload, logger: logger}
}

type createGarmentRequest struct {
	ImageURI string `json:"image_uri" binding:"required,max=512"`
	catalog.Analysis
}

// List handles GET /api/garments[?category=Tops].
func (h *GarmentHandler) List(c *gin.Context) {
	owner := mw.GetAccountID(c)
	var (
		items []model.Garment
		err   error
	)
	if q := c.Query("category"); q != "" {
		cat, perr := catalog.ParseCategory(q)
		if perr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": perr.Error()})
			return
		}
		items, err = h.inv.ListByCategory(c.Request.Context(), owner, cat)
	} else {
		items, err = h.inv.ListAll(c.Request.Context(), owner)
	}
	if err != nil {
		h.logger.Error("list garments", zap.Int64("account_id", owner), zap.Error(err))
		garmentError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"garments": items})
}

// Laundry handles GET /api/laundry.
func (h *GarmentHandler) Laundry(c *gin.Context) {
	owner := mw.GetAccountID(c)
	items, err := h.inv.ListLaundry(c.Request.Context(), owner)
	if err != nil {
		h.logger.Error("list laundry", zap.Int64("account_id", owner), zap.Error(err))
		garmentError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"garments": items})
}

// Get handles GET /api/garments/:id.
func (h *GarmentHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	g, err := h.inv.Get(c.Request.Context(), mw.GetAccountID(c), id)
	if err != nil {
		garmentError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"garment": g})
}

// Create handles POST /api/garments with an already analysed garment.
func (h *GarmentHandler) Create(c *gin.Context) {
	start := time.Now()
	var req createGarmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	g, err := h.inv.Add(c.Request.Context(), mw.GetAccountID(c), req.ImageURI, req.Analysis)
	if err != nil {
		record(h.audit, c, audit.ActionGarmentAdd, 0, req, nil, err, start)
		h.logger.Warn("add garment", zap.Int64("account_id", mw.GetAccountID(c)), zap.Error(err))
		garmentError(c, err)
		return
	}
	record(h.audit, c, audit.ActionGarmentAdd, g.ID, req, g.Analysis(), nil, start)
	c.JSON(http.StatusCreated, gin.H{"garment": g})
}

// Analyze handles POST /api/garments/analyze (multipart field "image").
// The analysis is returned for review; with save=true and an image_uri
// form field the garment is catalogued in the same request.
func (h *GarmentHandler) Analyze(c *gin.Context) {
	start := time.Now()
	if h.vision == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "image analysis is not configured"})
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload+1<<20)
	fh, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing image"})
		return
	}
	if fh.Size > h.maxUpload {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image too large"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable image"})
		return
	}
	data, err := io.ReadAll(io.LimitReader(f, h.maxUpload))
	_ = f.Close()
	if err != nil || len(data) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable image"})
		return
	}
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "unsupported media type " + mime})
		return
	}

	save := c.PostForm("save") == "true"
	imageURI := c.PostForm("image_uri")
	if save && imageURI == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image_uri is required with save"})
		return
	}

	reqInfo := gin.H{"filename": fh.Filename, "size": len(data), "mime": mime}
	analysis, err := h.vision.AnalyzeImage(c.Request.Context(), data, mime)
	if err != nil {
		record(h.audit, c, audit.ActionGarmentAnalyze, 0, reqInfo, nil, err, start)
		h.logger.Warn("analyze image", zap.Int64("account_id", mw.GetAccountID(c)), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "image analysis failed"})
		return
	}
	record(h.audit, c, audit.ActionGarmentAnalyze, 0, reqInfo, analysis, nil, start)

	if !save {
		c.JSON(http.StatusOK, gin.H{"analysis": analysis})
		return
	}
	g, err := h.inv.Add(c.Request.Context(), mw.GetAccountID(c), imageURI, analysis)
	if err != nil {
		record(h.audit, c, audit.ActionGarmentAdd, 0, analysis, nil, err, start)
		garmentError(c, err)
		return
	}
	record(h.audit, c, audit.ActionGarmentAdd, g.ID, analysis, g.Analysis(), nil, start)
	c.JSON(http.StatusCreated, gin.H{"analysis": analysis, "garment": g})
}

// Update handles PUT /api/garments/:id.
func (h *GarmentHandler) Update(c *gin.Context) {
	start := time.Now()
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req catalog.Analysis
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	g, err := h.inv.Update(c.Request.Context(), mw.GetAccountID(c), id, req)
	record(h.audit, c, audit.ActionGarmentUpdate, id, req, nil, err, start)
	if err != nil {
		garmentError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"garment": g})
}

// Delete handles DELETE /api/garments/:id.
func (h *GarmentHandler) Delete(c *gin.Context) {
	start := time.Now()
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	err := h.inv.Delete(c.Request.Context(), mw.GetAccountID(c), id)
	record(h.audit, c, audit.ActionGarmentDelete, id, nil, nil, err, start)
	if err != nil {
		garmentError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

type wearOp func(ctx context.Context, owner, id int64) error

// Worn handles POST /api/garments/:id/worn.
func (h *GarmentHandler) Worn(c *gin.Context) { h.applyWear(c, "worn", h.inv.MarkWorn) }

// Unworn handles POST /api/garments/:id/unworn.
func (h *GarmentHandler) Unworn(c *gin.Context) { h.applyWear(c, "unworn", h.inv.DecrementWear) }

// Clean handles POST /api/garments/:id/clean.
func (h *GarmentHandler) Clean(c *gin.Context) { h.applyWear(c, "clean", h.inv.MarkClean) }

// Dirty handles POST /api/garments/:id/dirty.
func (h *GarmentHandler) Dirty(c *gin.Context) { h.applyWear(c, "dirty", h.inv.MarkDirty) }

func (h *GarmentHandler) applyWear(c *gin.Context, name string, op wearOp) {
	start := time.Now()
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	owner := mw.GetAccountID(c)
	err := op(c.Request.Context(), owner, id)
	record(h.audit, c, audit.ActionGarmentWear, id, gin.H{"op": name}, nil, err, start)
	if err != nil {
		garmentError(c, err)
		return
	}
	g, err := h.inv.Get(c.Request.Context(), owner, id)
	if err != nil {
		garmentError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"garment": g})
}
