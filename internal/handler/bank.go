package handler

import (
	"context"
	"net/http"

	"grandexchange-api/internal/model"
	"grandexchange-api/internal/service"
	"grandexchange-api/pkg/response"
)

// BankHandler handles Grand Exchange bank requests.
type BankHandler struct {
	bank *service.BankService
}

// NewBankHandler creates a new bank handler.
func NewBankHandler(bank *service.BankService) *BankHandler {
	return &BankHandler{bank: bank}
}

type bankMove func(ctx context.Context, player model.Player, itemStringID string, quantity int64) (int64, error)

type bankTransfer struct {
	ItemStringID string `json:"item_string_id"`
	Quantity     int64  `json:"quantity"`
}

// BankTransferResult is the balance of one item after a deposit or withdrawal.
type BankTransferResult struct {
	ItemStringID string `json:"item_string_id"`
	Balance      int64  `json:"balance"`
}

// GetBalance handles GET /api/v1/players/{player_id}/bank
func (h *BankHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	player, err := playerFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, h.bank.Balance(player.ID))
}

// Deposit handles POST /api/v1/players/{player_id}/bank/deposit
// Only game servers move goods into the bank.
func (h *BankHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.transfer(w, r, h.bank.Deposit)
}

// Withdraw handles POST /api/v1/players/{player_id}/bank/withdraw
// Only game servers move goods out of the bank.
func (h *BankHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.transfer(w, r, h.bank.Withdraw)
}

func (h *BankHandler) transfer(w http.ResponseWriter, r *http.Request, move bankMove) {
	if err := requireServer(r); err != nil {
		writeError(w, err)
		return
	}
	player, err := playerFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req bankTransfer
	if err := decodeJSON(r, bankTransferSchema, &req); err != nil {
		writeError(w, err)
		return
	}

	balance, err := move(r.Context(), player, req.ItemStringID, req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, BankTransferResult{ItemStringID: req.ItemStringID, Balance: balance})
}
