package rest

import "github.com/gin-gonic/gin"

// Routes groups the authenticated wardrobe handlers.
type Routes struct {
	Garments *GarmentHandler
	Outfit   *OutfitHandler
	History  *HistoryHandler
}

// Register mounts the handlers on an authenticated group rooted at /api.
func (rt Routes) Register(g *gin.RouterGroup) {
	garments := g.Group("/garments")
	garments.GET("", rt.Garments.List)
	garments.POST("", rt.Garments.Create)
	garments.POST("/analyze", rt.Garments.Analyze)
	garments.GET("/:id", rt.Garments.Get)
	garments.PUT("/:id", rt.Garments.Update)
	garments.DELETE("/:id", rt.Garments.Delete)
	garments.POST("/:id/worn", rt.Garments.Worn)
	garments.POST("/:id/unworn", rt.Garments.Unworn)
	garments.POST("/:id/clean", rt.Garments.Clean)
	garments.POST("/:id/dirty", rt.Garments.Dirty)
	g.GET("/laundry", rt.Garments.Laundry)

	o := g.Group("/outfit")
	o.GET("", rt.Outfit.Get)
	o.POST("/generate", rt.Outfit.Generate)
	o.POST("/confirm", rt.Outfit.Confirm)
	o.PUT("/location", rt.Outfit.SetLocation)
	o.PUT("/slots/:slot", rt.Outfit.SetSlot)
	o.GET("/slots/:slot/candidates", rt.Outfit.Candidates)
	o.POST("/slots/:slot/lock", rt.Outfit.ToggleLock)
	o.POST("/slots/:slot/cycle", rt.Outfit.Cycle)

	g.GET("/outfits", rt.History.List)
}
