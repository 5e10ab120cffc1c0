package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"grandexchange-api/internal/model"

	"github.com/go-sql-driver/mysql"
)

// SQLStore implements MarketStore on SQLite, PostgreSQL or MySQL.
// Records are kept as JSON documents next to the columns used for lookups.
type SQLStore struct {
	db      *sql.DB
	dialect dialect

	upsertSell   string
	upsertBuy    string
	upsertPlayer string
}

var _ MarketStore = (*SQLStore)(nil)

// NewSQLiteStore opens a SQLite store at path. ":memory:" opens a private in-memory database.
func NewSQLiteStore(path string) (*SQLStore, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	}
	return NewSQLStore(DialectSQLite, dsn)
}

// NewSQLStore opens a store of the given type and creates its tables.
func NewSQLStore(storeType, dsn string) (*SQLStore, error) {
	d, err := lookupDialect(storeType)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", d.name, err)
	}

	if d.name == DialectSQLite {
		db.SetMaxOpenConns(1) // SQLite only supports 1 writer
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(5 * time.Minute)
		db.SetConnMaxIdleTime(1 * time.Minute)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", d.name, err)
	}

	s := &SQLStore{
		db:           db,
		dialect:      d,
		upsertSell:   d.upsert("ge_sell_offers", "id", []string{"player_id", "item_string_id", "state", "data", "updated_at"}),
		upsertBuy:    d.upsert("ge_buy_orders", "id", []string{"player_id", "item_string_id", "state", "data", "updated_at"}),
		upsertPlayer: d.upsert("ge_player_state", "player_id", []string{"player_name", "data", "updated_at"}),
	}

	if err := s.createTables(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Printf("[SQLStore] Initialized %s store", d.name)
	return s, nil
}

func (s *SQLStore) createTables(ctx context.Context) error {
	for _, stmt := range s.dialect.schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil && !isDuplicateIndex(err) {
			return err
		}
	}
	return nil
}

func isDuplicateIndex(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == 1061
}

// SaveSellOffer upserts a sell offer.
func (s *SQLStore) SaveSellOffer(ctx context.Context, offer model.SellOffer) error {
	data, err := json.Marshal(offer)
	if err != nil {
		return fmt.Errorf("failed to encode offer %d: %w", offer.OfferID, err)
	}
	_, err = s.db.ExecContext(ctx, s.upsertSell,
		offer.OfferID, offer.SellerID, offer.ItemStringID, string(offer.State), string(data), offer.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save offer %d: %w", offer.OfferID, err)
	}
	return nil
}

// SaveBuyOrder upserts a buy order.
func (s *SQLStore) SaveBuyOrder(ctx context.Context, order model.BuyOrder) error {
	data, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("failed to encode order %d: %w", order.OrderID, err)
	}
	_, err = s.db.ExecContext(ctx, s.upsertBuy,
		order.OrderID, order.BuyerID, order.ItemStringID, string(order.State), string(data), order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save order %d: %w", order.OrderID, err)
	}
	return nil
}

// DeleteSellOffer removes a sell offer. Deleting a missing offer is not an error.
func (s *SQLStore) DeleteSellOffer(ctx context.Context, offerID int64) error {
	query := "DELETE FROM ge_sell_offers WHERE id = " + s.dialect.placeholder(1)
	if _, err := s.db.ExecContext(ctx, query, offerID); err != nil {
		return fmt.Errorf("failed to delete offer %d: %w", offerID, err)
	}
	return nil
}

// DeleteBuyOrder removes a buy order. Deleting a missing order is not an error.
func (s *SQLStore) DeleteBuyOrder(ctx context.Context, orderID int64) error {
	query := "DELETE FROM ge_buy_orders WHERE id = " + s.dialect.placeholder(1)
	if _, err := s.db.ExecContext(ctx, query, orderID); err != nil {
		return fmt.Errorf("failed to delete order %d: %w", orderID, err)
	}
	return nil
}

// SavePlayerStates upserts player states in one transaction.
func (s *SQLStore) SavePlayerStates(ctx context.Context, states []model.PlayerState) error {
	if len(states) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.upsertPlayer)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, st := range states {
		data, err := json.Marshal(st)
		if err != nil {
			return fmt.Errorf("failed to encode player %d: %w", st.PlayerID, err)
		}
		if _, err := stmt.ExecContext(ctx, st.PlayerID, st.PlayerName, string(data), st.UpdatedAt); err != nil {
			return fmt.Errorf("failed to save player %d: %w", st.PlayerID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// LoadAll reads every offer, order and player state.
func (s *SQLStore) LoadAll(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}

	if err := loadDocs(ctx, s.db, "SELECT data FROM ge_sell_offers ORDER BY id", func(o model.SellOffer) {
		snap.SellOffers = append(snap.SellOffers, o)
	}); err != nil {
		return nil, fmt.Errorf("failed to load offers: %w", err)
	}
	if err := loadDocs(ctx, s.db, "SELECT data FROM ge_buy_orders ORDER BY id", func(o model.BuyOrder) {
		snap.BuyOrders = append(snap.BuyOrders, o)
	}); err != nil {
		return nil, fmt.Errorf("failed to load orders: %w", err)
	}
	if err := loadDocs(ctx, s.db, "SELECT data FROM ge_player_state ORDER BY player_id", func(p model.PlayerState) {
		snap.Players = append(snap.Players, p)
	}); err != nil {
		return nil, fmt.Errorf("failed to load players: %w", err)
	}

	return snap, nil
}

func loadDocs[T any](ctx context.Context, db *sql.DB, query string, add func(T)) error {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return err
		}
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		add(v)
	}
	return rows.Err()
}

// GetStats returns row counts per table.
func (s *SQLStore) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := map[string]interface{}{"type": s.dialect.name}

	for _, table := range []string{"ge_sell_offers", "ge_buy_orders", "ge_player_state"} {
		var count int64
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
			return nil, err
		}
		stats[strings.TrimPrefix(table, "ge_")] = count
	}

	if s.dialect.name == DialectSQLite {
		var pageCount, pageSize int64
		s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount)
		s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		stats["db_size_bytes"] = pageCount * pageSize
	}

	return stats, nil
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
