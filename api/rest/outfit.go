package rest

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/magicwardrobe/audit"
	"github.com/kasuganosora/magicwardrobe/catalog"
	"github.com/kasuganosora/magicwardrobe/inventory"
	mw "github.com/kasuganosora/magicwardrobe/middleware"
	"github.com/kasuganosora/magicwardrobe/model"
	"github.com/kasuganosora/magicwardrobe/outfit"
	"github.com/kasuganosora/magicwardrobe/weather"
	"go.uber.org/zap"
)

// OutfitHandler exposes the per-account outfit session.
type OutfitHandler struct {
	mgr     *outfit.Manager
	inv     *inventory.Service
	locator *weather.SessionLocator
	audit   Auditor
	logger  *zap.Logger
}

// NewOutfitHandler creates a new OutfitHandler. locator may be nil when
// weather lookups are disabled.
func NewOutfitHandler(mgr *outfit.Manager, inv *inventory.Service, locator *weather.SessionLocator, a Auditor, logger *zap.Logger) *OutfitHandler {
	return &OutfitHandler{mgr: mgr, inv: inv, locator: locator, audit: a, logger: logger}
}

type slotView struct {
	outfit.SlotState
	CanCycle bool `json:"can_cycle"`
}

type outfitView struct {
	Order   []catalog.Category            `json:"order"`
	Slots   map[catalog.Category]slotView `json:"slots"`
	Loading bool                          `json:"loading"`
	Weather string                        `json:"weather,omitempty"`
}

func viewOf(s outfit.Snapshot) outfitView {
	v := outfitView{
		Order:   catalog.Slots(),
		Slots:   make(map[catalog.Category]slotView, len(s.Slots)),
		Loading: s.Loading,
		Weather: s.Weather,
	}
	for slot, st := range s.Slots {
		v.Slots[slot] = slotView{SlotState: st, CanCycle: s.CanCycle(slot)}
	}
	return v
}

func displayedIDs(s outfit.Snapshot) []int64 {
	ids := []int64{}
	for _, slot := range catalog.Slots() {
		if it := s.Slots[slot].Item; it != nil {
			ids = append(ids, it.ID)
		}
	}
	return ids
}

func (h *OutfitHandler) engine(c *gin.Context) (*outfit.Engine, bool) {
	owner := mw.GetAccountID(c)
	e, err := h.mgr.Get(owner)
	if err != nil {
		h.logger.Error("open outfit session", zap.Int64("account_id", owner), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return nil, false
	}
	return e, true
}

// Get handles GET /api/outfit.
func (h *OutfitHandler) Get(c *gin.Context) {
	e, ok := h.engine(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"outfit": viewOf(e.Snapshot())})
}

// Generate handles POST /api/outfit/generate.
func (h *OutfitHandler) Generate(c *gin.Context) {
	start := time.Now()
	e, ok := h.engine(c)
	if !ok {
		return
	}
	out := e.Generate(c.Request.Context())
	snap := e.Snapshot()
	record(h.audit, c, audit.ActionOutfitGenerate, 0, nil, gin.H{"outcome": out.String(), "items": displayedIDs(snap)}, nil, start)

	body := gin.H{"outcome": out.String(), "outfit": viewOf(snap)}
	switch out {
	case outfit.OutcomeGenerated:
		c.JSON(http.StatusOK, body)
	case outfit.OutcomeNoAnchor:
		body["error"] = "add a top or bottom to your wardrobe first"
		c.JSON(http.StatusUnprocessableEntity, body)
	case outfit.OutcomeBusy:
		body["error"] = "an outfit is already being generated"
		c.JSON(http.StatusConflict, body)
	default:
		body["error"] = "outfit generation failed"
		c.JSON(http.StatusBadGateway, body)
	}
}

// ToggleLock handles POST /api/outfit/slots/:slot/lock.
func (h *OutfitHandler) ToggleLock(c *gin.Context) {
	slot, ok := paramSlot(c)
	if !ok {
		return
	}
	e, ok := h.engine(c)
	if !ok {
		return
	}
	locked, err := e.ToggleLock(slot)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"locked": locked, "outfit": viewOf(e.Snapshot())})
}

type cycleRequest struct {
	Direction string `json:"direction"`
}

// Cycle handles POST /api/outfit/slots/:slot/cycle.
func (h *OutfitHandler) Cycle(c *gin.Context) {
	slot, ok := paramSlot(c)
	if !ok {
		return
	}
	var req cycleRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	dir, err := outfit.ParseDirection(req.Direction)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	e, ok := h.engine(c)
	if !ok {
		return
	}
	if err := e.Cycle(slot, dir); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"outfit": viewOf(e.Snapshot())})
}

// Candidates handles GET /api/outfit/slots/:slot/candidates.
func (h *OutfitHandler) Candidates(c *gin.Context) {
	slot, ok := paramSlot(c)
	if !ok {
		return
	}
	e, ok := h.engine(c)
	if !ok {
		return
	}
	list, err := e.Candidates(slot)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"candidates": list,
		"index":      e.Snapshot().Slots[slot].Index,
	})
}

type setSlotRequest struct {
	GarmentID *int64 `json:"garment_id"`
}

// SetSlot handles PUT /api/outfit/slots/:slot. A null garment_id clears
// the slot.
func (h *OutfitHandler) SetSlot(c *gin.Context) {
	slot, ok := paramSlot(c)
	if !ok {
		return
	}
	var req setSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	e, ok := h.engine(c)
	if !ok {
		return
	}
	var g *model.Garment
	if req.GarmentID != nil {
		var err error
		g, err = h.inv.Get(c.Request.Context(), mw.GetAccountID(c), *req.GarmentID)
		if err != nil {
			garmentError(c, err)
			return
		}
	}
	switch err := e.SetSlot(slot, g); {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"outfit": viewOf(e.Snapshot())})
	case errors.Is(err, outfit.ErrSlotLocked):
		c.JSON(http.StatusConflict, gin.H{"error": "slot is locked"})
	case errors.Is(err, outfit.ErrWrongCategory):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}

// Confirm handles POST /api/outfit/confirm.
func (h *OutfitHandler) Confirm(c *gin.Context) {
	start := time.Now()
	e, ok := h.engine(c)
	if !ok {
		return
	}
	before := e.Snapshot()
	ids := displayedIDs(before)
	if before.Loading {
		c.JSON(http.StatusConflict, gin.H{"error": "outfit is busy"})
		return
	}
	if !e.Confirm(c.Request.Context()) {
		err := errors.New("confirm failed")
		record(h.audit, c, audit.ActionOutfitConfirm, 0, gin.H{"items": ids}, nil, err, start)
		c.JSON(http.StatusBadGateway, gin.H{"error": "could not record outfit", "outfit": viewOf(e.Snapshot())})
		return
	}
	record(h.audit, c, audit.ActionOutfitConfirm, 0, gin.H{"items": ids}, nil, nil, start)
	c.JSON(http.StatusOK, gin.H{"confirmed": true, "items": ids, "outfit": viewOf(e.Snapshot())})
}

type locationRequest struct {
	Lat *float64 `json:"lat" binding:"required"`
	Lon *float64 `json:"lon" binding:"required"`
}

// SetLocation handles PUT /api/outfit/location. The next generation looks
// the weather up again for the new coordinates.
func (h *OutfitHandler) SetLocation(c *gin.Context) {
	if h.locator == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "weather is not configured"})
		return
	}
	var req locationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	owner := mw.GetAccountID(c)
	coords := weather.Coords{Lat: *req.Lat, Lon: *req.Lon}
	if err := h.locator.Save(c.Request.Context(), owner, coords); err != nil {
		if errors.Is(err, weather.ErrInvalidCoords) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("save location", zap.Int64("account_id", owner), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if e := h.mgr.Lookup(owner); e != nil {
		e.ResetWeather()
	}
	c.JSON(http.StatusOK, gin.H{"location": coords})
}
