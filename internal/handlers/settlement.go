package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"stowpay/internal/services/settlement"
	"stowpay/internal/utils/pagination"
	"stowpay/internal/utils/response"
)

type SettlementHandler struct {
	settlementService settlement.Service
}

func NewSettlementHandler(settlementSvc settlement.Service) *SettlementHandler {
	return &SettlementHandler{
		settlementService: settlementSvc,
	}
}

// CreateSettlement records a captured order payment and computes its fee
// split.
func (h *SettlementHandler) CreateSettlement(c *fiber.Ctx) error {
	var input struct {
		StoreID     uint                   `json:"store_id"`
		OrderID     string                 `json:"order_id"`
		GrossAmount string                 `json:"gross_amount"`
		FeeRate     *string                `json:"fee_rate,omitempty"`
		Metadata    map[string]interface{} `json:"metadata,omitempty"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}

	gross, err := decimal.NewFromString(input.GrossAmount)
	if err != nil {
		return response.BadRequest(c, "Invalid gross amount")
	}

	createInput := settlement.CreateInput{
		StoreID:     input.StoreID,
		OrderID:     input.OrderID,
		GrossAmount: gross,
		Metadata:    input.Metadata,
	}
	if input.FeeRate != nil {
		rate, err := decimal.NewFromString(*input.FeeRate)
		if err != nil {
			return response.BadRequest(c, "Invalid fee rate")
		}
		createInput.FeeRate = &rate
	}

	created, err := h.settlementService.Create(c.Context(), createInput)
	if err != nil {
		return response.Error(c, statusForError(err), err.Error())
	}
	return response.Success(c, "Settlement created", created)
}

// ProcessSettlement runs one payout attempt for the settlement.
func (h *SettlementHandler) ProcessSettlement(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid settlement id")
	}

	processed, err := h.settlementService.Process(c.Context(), id)
	if err != nil {
		return response.Error(c, statusForError(err), err.Error())
	}
	return response.Success(c, "Settlement processed", processed)
}

// GetSettlement returns one settlement with its payout state and attempt
// history fields.
func (h *SettlementHandler) GetSettlement(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid settlement id")
	}

	found, err := h.settlementService.Get(c.Context(), id)
	if err != nil {
		return response.Error(c, statusForError(err), err.Error())
	}
	return response.Success(c, "Settlement found", found)
}

// ListSettlements pages a store's settlements, optionally filtered by status
// and date range.
func (h *SettlementHandler) ListSettlements(c *fiber.Ctx) error {
	storeID := uint(c.QueryInt("store_id"))
	p := pagination.ParseFromRequest(c)

	input := settlement.ListInput{
		StoreID: storeID,
		Status:  c.Query("status"),
		Page:    p.Page,
		Limit:   p.Limit,
	}
	if from := c.Query("from"); from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			return response.BadRequest(c, "Invalid from date, expected YYYY-MM-DD")
		}
		input.From = &t
	}
	if to := c.Query("to"); to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			return response.BadRequest(c, "Invalid to date, expected YYYY-MM-DD")
		}
		end := t.AddDate(0, 0, 1)
		input.To = &end
	}

	settlements, total, err := h.settlementService.List(c.Context(), input)
	if err != nil {
		return response.Error(c, statusForError(err), err.Error())
	}

	p.Total = total
	return c.JSON(pagination.Response(p, settlements))
}

// GetSummary aggregates a store's settlements for one day.
func (h *SettlementHandler) GetSummary(c *fiber.Ctx) error {
	storeID := uint(c.QueryInt("store_id"))
	if storeID == 0 {
		return response.BadRequest(c, "store_id is required")
	}

	day := time.Now()
	if date := c.Query("date"); date != "" {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return response.BadRequest(c, "Invalid date, expected YYYY-MM-DD")
		}
		day = parsed
	}

	summary, err := h.settlementService.GetSummary(c.Context(), storeID, day)
	if err != nil {
		return response.Error(c, statusForError(err), err.Error())
	}
	return response.Success(c, "Settlement summary", summary)
}

// GetBalance returns the platform's provider balance.
func (h *SettlementHandler) GetBalance(c *fiber.Ctx) error {
	balance, err := h.settlementService.GetBalance(c.Context())
	if err != nil {
		return response.Error(c, statusForError(err), err.Error())
	}
	return response.Success(c, "Provider balance", balance)
}

// CancelSettlement explicitly cancels a settlement's payout.
func (h *SettlementHandler) CancelSettlement(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid settlement id")
	}

	cancelled, err := h.settlementService.CancelPayout(c.Context(), id)
	if err != nil {
		return response.Error(c, statusForError(err), err.Error())
	}
	return response.Success(c, "Settlement cancelled", cancelled)
}
