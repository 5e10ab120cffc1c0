package repository

import (
	"context"
	"fmt"
	"log"
	"time"

	"grandexchange-api/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore implements MarketStore on MongoDB, one collection per record kind.
type MongoStore struct {
	client  *mongo.Client
	db      *mongo.Database
	sells   *mongo.Collection
	buys    *mongo.Collection
	players *mongo.Collection
}

var _ MarketStore = (*MongoStore)(nil)

type sellDoc struct {
	ID     int64           `bson:"_id"`
	Record model.SellOffer `bson:"record"`
}

type buyDoc struct {
	ID     int64          `bson:"_id"`
	Record model.BuyOrder `bson:"record"`
}

type playerDoc struct {
	ID     int64             `bson:"_id"`
	Record model.PlayerState `bson:"record"`
}

// NewMongoStore connects to MongoDB and prepares the market collections.
func NewMongoStore(uri, database string) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(50).
		SetMinPoolSize(5).
		SetMaxConnIdleTime(5 * time.Minute).
		SetRetryWrites(true)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(database)
	s := &MongoStore{
		client:  client,
		db:      db,
		sells:   db.Collection("ge_sell_offers"),
		buys:    db.Collection("ge_buy_orders"),
		players: db.Collection("ge_player_state"),
	}

	for _, c := range []*mongo.Collection{s.sells, s.buys} {
		_, err := c.Indexes().CreateMany(ctx, []mongo.IndexModel{
			{Keys: bson.D{{Key: "record.itemstringid", Value: 1}}},
			{Keys: bson.D{{Key: "player_id", Value: 1}}},
		})
		if err != nil {
			log.Printf("[MongoStore] Warning: failed to create indexes on %s: %v", c.Name(), err)
		}
	}

	log.Printf("[MongoStore] Connected to %s", database)
	return s, nil
}

func (s *MongoStore) upsert(ctx context.Context, c *mongo.Collection, id, playerID int64, record any) error {
	update := bson.M{"$set": bson.M{
		"record":     record,
		"player_id":  playerID,
		"updated_at": time.Now(),
	}}
	_, err := c.UpdateByID(ctx, id, update, options.Update().SetUpsert(true))
	return err
}

// SaveSellOffer upserts an offer.
func (s *MongoStore) SaveSellOffer(ctx context.Context, offer model.SellOffer) error {
	if err := s.upsert(ctx, s.sells, offer.OfferID, offer.SellerID, offer); err != nil {
		return fmt.Errorf("failed to save offer %d: %w", offer.OfferID, err)
	}
	return nil
}

// SaveBuyOrder upserts an order.
func (s *MongoStore) SaveBuyOrder(ctx context.Context, order model.BuyOrder) error {
	if err := s.upsert(ctx, s.buys, order.OrderID, order.BuyerID, order); err != nil {
		return fmt.Errorf("failed to save order %d: %w", order.OrderID, err)
	}
	return nil
}

// DeleteSellOffer removes an offer.
func (s *MongoStore) DeleteSellOffer(ctx context.Context, offerID int64) error {
	if _, err := s.sells.DeleteOne(ctx, bson.M{"_id": offerID}); err != nil {
		return fmt.Errorf("failed to delete offer %d: %w", offerID, err)
	}
	return nil
}

// DeleteBuyOrder removes an order.
func (s *MongoStore) DeleteBuyOrder(ctx context.Context, orderID int64) error {
	if _, err := s.buys.DeleteOne(ctx, bson.M{"_id": orderID}); err != nil {
		return fmt.Errorf("failed to delete order %d: %w", orderID, err)
	}
	return nil
}

// SavePlayerStates upserts player states in one unordered bulk write.
func (s *MongoStore) SavePlayerStates(ctx context.Context, states []model.PlayerState) error {
	if len(states) == 0 {
		return nil
	}

	models := make([]mongo.WriteModel, len(states))
	for i, st := range states {
		models[i] = mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": st.PlayerID}).
			SetUpdate(bson.M{"$set": bson.M{
				"record":     st,
				"player_id":  st.PlayerID,
				"updated_at": time.Now(),
			}}).
			SetUpsert(true)
	}

	if _, err := s.players.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false)); err != nil {
		return fmt.Errorf("failed to save %d players: %w", len(states), err)
	}
	return nil
}

// LoadAll reads every offer, order and player state.
func (s *MongoStore) LoadAll(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}

	if err := loadMongo(ctx, s.sells, func(d sellDoc) {
		snap.SellOffers = append(snap.SellOffers, d.Record)
	}); err != nil {
		return nil, fmt.Errorf("failed to load offers: %w", err)
	}
	if err := loadMongo(ctx, s.buys, func(d buyDoc) {
		snap.BuyOrders = append(snap.BuyOrders, d.Record)
	}); err != nil {
		return nil, fmt.Errorf("failed to load orders: %w", err)
	}
	if err := loadMongo(ctx, s.players, func(d playerDoc) {
		snap.Players = append(snap.Players, d.Record)
	}); err != nil {
		return nil, fmt.Errorf("failed to load players: %w", err)
	}

	return snap, nil
}

func loadMongo[T any](ctx context.Context, c *mongo.Collection, add func(T)) error {
	cur, err := c.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return err
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var doc T
		if err := cur.Decode(&doc); err != nil {
			return err
		}
		add(doc)
	}
	return cur.Err()
}

// GetStats returns document counts and the database size.
func (s *MongoStore) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := map[string]interface{}{"type": "mongodb"}

	for name, c := range map[string]*mongo.Collection{
		"sell_offers":  s.sells,
		"buy_orders":   s.buys,
		"player_state": s.players,
	} {
		count, err := c.CountDocuments(ctx, bson.M{})
		if err != nil {
			return nil, err
		}
		stats[name] = count
	}

	var dbStats bson.M
	if err := s.db.RunCommand(ctx, bson.D{{Key: "dbStats", Value: 1}}).Decode(&dbStats); err == nil {
		switch size := dbStats["dataSize"].(type) {
		case int64:
			stats["db_size_bytes"] = size
		case int32:
			stats["db_size_bytes"] = int64(size)
		case float64:
			stats["db_size_bytes"] = int64(size)
		}
	}

	return stats, nil
}

// Close closes the MongoDB connection.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
