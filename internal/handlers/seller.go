package handlers

import (
	"github.com/gofiber/fiber/v2"

	"stowpay/internal/services/seller"
	"stowpay/internal/utils/response"
)

type SellerHandler struct {
	sellerService seller.Service
}

func NewSellerHandler(sellerSvc seller.Service) *SellerHandler {
	return &SellerHandler{
		sellerService: sellerSvc,
	}
}

// RegisterSeller onboards a store with the payout provider. Safe to call
// again for an already registered store.
func (h *SellerHandler) RegisterSeller(c *fiber.Ctx) error {
	var input struct {
		StoreID uint `json:"store_id"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}
	if input.StoreID == 0 {
		return response.BadRequest(c, "store_id is required")
	}

	account, err := h.sellerService.Register(c.Context(), input.StoreID)
	if err != nil {
		return response.Error(c, statusForError(err), err.Error())
	}
	return response.Success(c, "Seller registered", account)
}

// GetSeller returns a store's onboarding status.
func (h *SellerHandler) GetSeller(c *fiber.Ctx) error {
	storeID, err := c.ParamsInt("storeId")
	if err != nil || storeID <= 0 {
		return response.BadRequest(c, "Invalid store id")
	}

	account, err := h.sellerService.GetByStoreID(c.Context(), uint(storeID))
	if err != nil {
		return response.Error(c, statusForError(err), err.Error())
	}
	return response.Success(c, "Seller account", account)
}
