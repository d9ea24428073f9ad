package router

import (
	"github.com/OsbanCerejo/inventoz-sub000/internal/interfaces/http/handler"
)

// InventoryRoutes declares the local inventory endpoints
func InventoryRoutes(h *handler.InventoryHandler) *DomainGroup {
	g := NewDomainGroup("inventory", "/inventory")
	items := g.Group("items", "/items")
	items.POST("", h.Register)
	items.GET("/:sku", h.GetBySKU)
	items.PUT("/:sku/quantity", h.SetQuantity)
	items.POST("/:sku/sales", h.RecordSale)
	items.PUT("/:sku/verified", h.SetVerified)
	return g
}

// SyncRoutes declares the marketplace sync endpoints
func SyncRoutes(h *handler.SyncHandler) *DomainGroup {
	g := NewDomainGroup("sync", "/sync")

	ledger := g.Group("ledger", "/ledger")
	ledger.POST("", h.EnqueueLedger)
	ledger.GET("/stuck", h.ListStuck)
	ledger.GET("/:key", h.LedgerHistory)
	ledger.POST("/:key/reset", h.ResetAttempts)

	cycles := g.Group("cycles", "/cycles")
	cycles.POST("/inbound", h.TriggerInbound)
	cycles.POST("/outbound", h.TriggerOutbound)

	g.GET("/status", h.Status)
	g.GET("/orders/:order_id/lines", h.OrderLines)
	g.GET("/audit/:entity_type/*entity_id", h.AuditTrail)
	return g
}
