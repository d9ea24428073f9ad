package handler

import (
	inventoryapp "github.com/OsbanCerejo/inventoz-sub000/internal/application/inventory"
	"github.com/gin-gonic/gin"
)

// InventoryHandler handles inventory item endpoints. Every quantity change is
// mirrored to the marketplace ledger when the item is verified.
type InventoryHandler struct {
	BaseHandler
	quantityService *inventoryapp.QuantityService
}

// NewInventoryHandler creates a new InventoryHandler
func NewInventoryHandler(quantityService *inventoryapp.QuantityService) *InventoryHandler {
	return &InventoryHandler{
		quantityService: quantityService,
	}
}

// Register godoc
// @Summary      Register an inventory item
// @Description  Creates the item; a verified item with stock is queued for its first marketplace push
// @Tags         inventory
// @Accept       json
// @Produce      json
// @Param        request body inventoryapp.RegisterItemRequest true "Item"
// @Success      201 {object} APIResponse[inventoryapp.InventoryItemResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /inventory/items [post]
func (h *InventoryHandler) Register(c *gin.Context) {
	var req inventoryapp.RegisterItemRequest
	if !h.BindJSON(c, &req) {
		return
	}

	item, err := h.quantityService.RegisterItem(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, item)
}

// GetBySKU godoc
// @Summary      Get an inventory item
// @Tags         inventory
// @Produce      json
// @Param        sku path string true "SKU"
// @Success      200 {object} APIResponse[inventoryapp.InventoryItemResponse]
// @Failure      404 {object} ErrorResponse
// @Router       /inventory/items/{sku} [get]
func (h *InventoryHandler) GetBySKU(c *gin.Context) {
	item, err := h.quantityService.GetItem(c.Request.Context(), c.Param("sku"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, item)
}

// SetQuantity godoc
// @Summary      Set the on-hand quantity
// @Description  Manual edit; mirrored to the marketplace when the item is verified
// @Tags         inventory
// @Accept       json
// @Produce      json
// @Param        sku path string true "SKU"
// @Param        request body inventoryapp.SetQuantityRequest true "Quantity"
// @Success      200 {object} APIResponse[inventoryapp.QuantityChangeResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /inventory/items/{sku}/quantity [put]
func (h *InventoryHandler) SetQuantity(c *gin.Context) {
	var req inventoryapp.SetQuantityRequest
	if !h.BindJSON(c, &req) {
		return
	}

	change, err := h.quantityService.SetQuantity(c.Request.Context(), c.Param("sku"), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, change)
}

// RecordSale godoc
// @Summary      Record units sold through another channel
// @Tags         inventory
// @Accept       json
// @Produce      json
// @Param        sku path string true "SKU"
// @Param        request body inventoryapp.RecordSaleRequest true "Sale"
// @Success      200 {object} APIResponse[inventoryapp.QuantityChangeResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /inventory/items/{sku}/sales [post]
func (h *InventoryHandler) RecordSale(c *gin.Context) {
	var req inventoryapp.RecordSaleRequest
	if !h.BindJSON(c, &req) {
		return
	}

	change, err := h.quantityService.RecordSale(c.Request.Context(), c.Param("sku"), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, change)
}

// SetVerified godoc
// @Summary      Toggle marketplace mirroring
// @Tags         inventory
// @Accept       json
// @Produce      json
// @Param        sku path string true "SKU"
// @Param        request body inventoryapp.SetVerifiedRequest true "Verified flag"
// @Success      200 {object} APIResponse[inventoryapp.InventoryItemResponse]
// @Failure      404 {object} ErrorResponse
// @Router       /inventory/items/{sku}/verified [put]
func (h *InventoryHandler) SetVerified(c *gin.Context) {
	var req inventoryapp.SetVerifiedRequest
	if !h.BindJSON(c, &req) {
		return
	}

	item, err := h.quantityService.SetVerified(c.Request.Context(), c.Param("sku"), *req.Verified)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, item)
}
