package mongodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/davicafu/catalogsync/internal/catalog/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	gamesCollection      = "games"
	promotionsCollection = "promotions"
)

// Connect abre el cliente y comprueba la conexión.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// GameStore implementa domain.GameProjectionStore sobre la colección "games".
type GameStore struct {
	coll *mongo.Collection
}

func NewGameStore(client *mongo.Client, dbName string) *GameStore {
	return &GameStore{coll: client.Database(dbName).Collection(gamesCollection)}
}

// EnsureIndexes crea el índice usado por FindByPromotion.
func (s *GameStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "promotionId", Value: 1}},
		Options: options.Index().SetName("ix_promotion_id"),
	})
	return err
}

// Upsert reemplaza el documento entero (o lo inserta si no existía).
func (s *GameStore) Upsert(ctx context.Context, doc domain.GameDocument) (bool, error) {
	rec, err := toGameRecord(doc)
	if err != nil {
		return false, err
	}

	res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": doc.ID}, rec, options.Replace().SetUpsert(true))
	if err != nil {
		return false, fmt.Errorf("replace game %d: %w", doc.ID, err)
	}
	return res.UpsertedCount > 0, nil
}

func (s *GameStore) Get(ctx context.Context, id int64) (domain.GameDocument, error) {
	var rec gameRecord
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.GameDocument{}, fmt.Errorf("%w: %d", domain.ErrGameNotFound, id)
	}
	if err != nil {
		return domain.GameDocument{}, err
	}
	return rec.toDomain()
}

func (s *GameStore) List(ctx context.Context) ([]domain.GameDocument, error) {
	return s.find(ctx, bson.M{})
}

func (s *GameStore) FindByPromotion(ctx context.Context, promotionID int64) ([]domain.GameDocument, error) {
	return s.find(ctx, bson.M{"promotionId": promotionID})
}

func (s *GameStore) Count(ctx context.Context) (int, error) {
	n, err := s.coll.CountDocuments(ctx, bson.M{})
	return int(n), err
}

func (s *GameStore) find(ctx context.Context, filter bson.M) ([]domain.GameDocument, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})

	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	docs := []domain.GameDocument{}
	for cursor.Next(ctx) {
		var rec gameRecord
		if err := cursor.Decode(&rec); err != nil {
			return nil, err
		}
		doc, err := rec.toDomain()
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, cursor.Err()
}

// PromotionStore implementa domain.PromotionProjectionStore sobre "promotions".
type PromotionStore struct {
	coll *mongo.Collection
}

func NewPromotionStore(client *mongo.Client, dbName string) *PromotionStore {
	return &PromotionStore{coll: client.Database(dbName).Collection(promotionsCollection)}
}

func (s *PromotionStore) Upsert(ctx context.Context, doc domain.PromotionDocument) (bool, error) {
	rec, err := toPromotionRecord(doc)
	if err != nil {
		return false, err
	}

	res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": doc.ID}, rec, options.Replace().SetUpsert(true))
	if err != nil {
		return false, fmt.Errorf("replace promotion %d: %w", doc.ID, err)
	}
	return res.UpsertedCount > 0, nil
}

func (s *PromotionStore) Get(ctx context.Context, id int64) (domain.PromotionDocument, error) {
	var rec promotionRecord
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.PromotionDocument{}, fmt.Errorf("%w: %d", domain.ErrPromotionNotFound, id)
	}
	if err != nil {
		return domain.PromotionDocument{}, err
	}
	return rec.toDomain()
}

func (s *PromotionStore) List(ctx context.Context) ([]domain.PromotionDocument, error) {
	cursor, err := s.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	docs := []domain.PromotionDocument{}
	for cursor.Next(ctx) {
		var rec promotionRecord
		if err := cursor.Decode(&rec); err != nil {
			return nil, err
		}
		doc, err := rec.toDomain()
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, cursor.Err()
}

func (s *PromotionStore) Count(ctx context.Context) (int, error) {
	n, err := s.coll.CountDocuments(ctx, bson.M{})
	return int(n), err
}

// Verificación en tiempo de compilación.
var (
	_ domain.GameProjectionStore      = (*GameStore)(nil)
	_ domain.PromotionProjectionStore = (*PromotionStore)(nil)
)
