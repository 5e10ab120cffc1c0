package service

import (
	"context"
	"fmt"
	"log"

	"grandexchange-api/internal/inventory"
	"grandexchange-api/internal/model"
	"grandexchange-api/pkg/uid"
)

// Escrow takes goods out of a player's reach while the market holds them.
type Escrow interface {
	// Hold takes quantity of an item from the player. It fails with
	// model.ErrInsufficientFunds and takes nothing when the player is short.
	Hold(ctx context.Context, player model.Player, itemStringID string, quantity int64) error
}

// BankBalance lists what a player's bank holds.
type BankBalance struct {
	PlayerID int64            `json:"player_id"`
	Balances map[string]int64 `json:"balances"`
}

// BankService keeps the per-player Grand Exchange bank. The game server
// deposits and withdraws goods; the market escrows sell offers and buy orders
// from it, and claims can move collection box items back into it.
type BankService struct {
	registry *inventory.Registry
	persist  *Persistence
}

var _ Escrow = (*BankService)(nil)

// NewBankService creates a new bank service.
func NewBankService(registry *inventory.Registry, persist *Persistence) *BankService {
	return &BankService{registry: registry, persist: persist}
}

// Balance returns the bank of a player. Unknown players have an empty bank.
func (s *BankService) Balance(playerID int64) BankBalance {
	bal := BankBalance{PlayerID: playerID, Balances: map[string]int64{}}
	if inv, ok := s.registry.Get(playerID); ok {
		bal.Balances = inv.Bank()
	}
	return bal
}

// Deposit credits goods the game server moved into the bank.
func (s *BankService) Deposit(ctx context.Context, player model.Player, itemStringID string, quantity int64) (int64, error) {
	inv := s.registry.GetOrCreate(player.ID, player.Name)
	balance, err := inv.Deposit(itemStringID, quantity)
	if err != nil {
		return 0, err
	}
	s.save(ctx, inv)
	uid.Logf(ctx, "[BankService] Deposit: player=%d item=%s qty=%d balance=%d", player.ID, itemStringID, quantity, balance)
	return balance, nil
}

// Withdraw debits goods the game server moves out of the bank.
func (s *BankService) Withdraw(ctx context.Context, player model.Player, itemStringID string, quantity int64) (int64, error) {
	inv, ok := s.registry.Get(player.ID)
	if !ok {
		return 0, fmt.Errorf("withdraw %d %s for player %d: %w", quantity, itemStringID, player.ID, model.ErrInsufficientFunds)
	}
	balance, err := inv.Withdraw(itemStringID, quantity)
	if err != nil {
		return balance, err
	}
	s.save(ctx, inv)
	uid.Logf(ctx, "[BankService] Withdraw: player=%d item=%s qty=%d balance=%d", player.ID, itemStringID, quantity, balance)
	return balance, nil
}

// Hold takes goods into escrow for the market.
func (s *BankService) Hold(ctx context.Context, player model.Player, itemStringID string, quantity int64) error {
	if quantity == 0 {
		return nil
	}
	inv, ok := s.registry.Get(player.ID)
	if !ok {
		return fmt.Errorf("hold %d %s for player %d: %w", quantity, itemStringID, player.ID, model.ErrInsufficientFunds)
	}
	if _, err := inv.Withdraw(itemStringID, quantity); err != nil {
		return err
	}
	s.save(ctx, inv)
	return nil
}

func (s *BankService) save(ctx context.Context, inv *inventory.PlayerGEInventory) {
	if err := s.persist.SavePlayer(ctx, inv); err != nil {
		log.Printf("[BankService] Failed to persist player %d: %v", inv.PlayerID(), err)
	}
}
