package rest

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/magicwardrobe/audit"
	"github.com/kasuganosora/magicwardrobe/catalog"
	"github.com/kasuganosora/magicwardrobe/inventory"
	mw "github.com/kasuganosora/magicwardrobe/middleware"
)

// Auditor receives one entry per mutating request. *audit.Service
// implements it.
type Auditor interface {
	Log(entry audit.Entry)
}

// record sends an audit entry for the current request. A nil auditor
// is allowed.
func record(a Auditor, c *gin.Context, action string, garmentID int64, req, resp any, err error, start time.Time) {
	if a == nil {
		return
	}
	accountID := mw.GetAccountID(c)
	e := audit.Entry{
		TraceID:    c.GetString(mw.TraceIDKey),
		AccountID:  &accountID,
		Action:     action,
		Request:    req,
		Response:   resp,
		IP:         c.ClientIP(),
		DurationMs: int(time.Since(start).Milliseconds()),
	}
	if garmentID != 0 {
		e.GarmentID = &garmentID
	}
	if err != nil {
		e.Error = err.Error()
	}
	a.Log(e)
}

// paramID parses a positive integer path parameter.
func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

// paramSlot parses the :slot path parameter.
func paramSlot(c *gin.Context) (catalog.Category, bool) {
	slot, err := catalog.ParseSlot(c.Param("slot"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return slot, true
}

// garmentError maps inventory and catalog errors to HTTP responses.
func garmentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, inventory.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "garment not found"})
	case errors.Is(err, catalog.ErrUnknownCategory), errors.Is(err, catalog.ErrUnknownSubCategory):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
