package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"keycards/entity"
	"keycards/internal/config"
)

const (
	collectionKeyCards = "key_cards"
	collectionBatches  = "batches"
)

type MongoDB struct {
	clientOptions *options.ClientOptions
	database      string
}

func NewMongoClient(conf *config.Config) *MongoDB {
	if !conf.Mongo.Enabled {
		return nil
	}
	connectionUri := fmt.Sprintf("mongodb://%s:%s", conf.Mongo.Host, conf.Mongo.Port)
	clientOptions := options.Client().ApplyURI(connectionUri)
	if conf.Mongo.User != "" {
		clientOptions.SetAuth(options.Credential{
			Username:   conf.Mongo.User,
			Password:   conf.Mongo.Password,
			AuthSource: conf.Mongo.Database,
		})
	}
	return &MongoDB{
		clientOptions: clientOptions,
		database:      conf.Mongo.Database,
	}
}

func (m *MongoDB) connect(ctx context.Context) (*mongo.Client, error) {
	connection, err := mongo.Connect(ctx, m.clientOptions)
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	return connection, nil
}

func (m *MongoDB) disconnect(connection *mongo.Client) {
	_ = connection.Disconnect(context.Background())
}

// EnsureIndexes creates the unique index on code. The index is the
// authority on code uniqueness; the generator makes no such claim.
func (m *MongoDB) EnsureIndexes(ctx context.Context) error {
	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionKeyCards)
	_, err = collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "code", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("mongodb index: %w", err)
	}
	return nil
}

func (m *MongoDB) FindByCode(ctx context.Context, code string) (*entity.KeyCard, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionKeyCards)
	var card entity.KeyCard
	err = collection.FindOne(ctx, bson.D{{Key: "code", Value: code}}).Decode(&card)
	if err != nil {
		return nil, m.findError(err)
	}
	return &card, nil
}

// findError maps a missing document to an absent result instead of an
// error; callers decide what absence means.
func (m *MongoDB) findError(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil
	}
	return fmt.Errorf("mongodb find: %w", err)
}

func (m *MongoDB) ListBatches(ctx context.Context) ([]*entity.Batch, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionBatches)
	cursor, err := collection.Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("mongodb find: %w", err)
	}
	defer cursor.Close(ctx)

	var batches []*entity.Batch
	if err = cursor.All(ctx, &batches); err != nil {
		return nil, err
	}
	return batches, nil
}

func (m *MongoDB) ListByBatch(ctx context.Context, batchId string) ([]*entity.KeyCard, error) {
	return m.listCards(ctx, bson.D{{Key: "batch_id", Value: batchId}})
}

func (m *MongoDB) ListByStatus(ctx context.Context, status entity.KeyCardStatus) ([]*entity.KeyCard, error) {
	return m.listCards(ctx, bson.D{{Key: "status", Value: status}})
}

// ListWithCredential returns cards that stored an upstream credential,
// i.e. every card that has ever been activated. The sweep iterates
// these.
func (m *MongoDB) ListWithCredential(ctx context.Context) ([]*entity.KeyCard, error) {
	return m.listCards(ctx, bson.D{{Key: "credential", Value: bson.D{{Key: "$exists", Value: true}, {Key: "$ne", Value: ""}}}})
}

func (m *MongoDB) listCards(ctx context.Context, filter bson.D) ([]*entity.KeyCard, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionKeyCards)
	cursor, err := collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("mongodb find: %w", err)
	}
	defer cursor.Close(ctx)

	var cards []*entity.KeyCard
	if err = cursor.All(ctx, &cards); err != nil {
		return nil, err
	}
	return cards, nil
}

func (m *MongoDB) CreateBatch(ctx context.Context, batch *entity.Batch) error {
	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionBatches)
	if _, err = collection.InsertOne(ctx, batch); err != nil {
		return fmt.Errorf("mongodb insert: %w", err)
	}
	return nil
}

// BulkInsertKeyCards inserts cards unordered and reports how many made
// it in. Duplicate-key rejections are not an error here: the issuer
// inspects the count and regenerates the colliding codes.
func (m *MongoDB) BulkInsertKeyCards(ctx context.Context, cards []*entity.KeyCard) (int, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return 0, err
	}
	defer m.disconnect(connection)

	docs := make([]interface{}, len(cards))
	for i, card := range cards {
		docs[i] = card
	}
	collection := connection.Database(m.database).Collection(collectionKeyCards)
	res, err := collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	inserted := 0
	if res != nil {
		inserted = len(res.InsertedIDs)
	}
	if err != nil {
		var bulkErr mongo.BulkWriteException
		if errors.As(err, &bulkErr) {
			for _, we := range bulkErr.WriteErrors {
				if !mongo.IsDuplicateKeyError(we.WriteError) {
					return inserted, fmt.Errorf("mongodb bulk insert: %w", err)
				}
			}
			return inserted, nil
		}
		return inserted, fmt.Errorf("mongodb bulk insert: %w", err)
	}
	return inserted, nil
}

// ActivateCard flips an unused card to used and writes the activation
// fields in the same conditional update. Returns false when the filter
// did not match, i.e. the code is unknown or another activation won the
// race; state is untouched in that case.
func (m *MongoDB) ActivateCard(ctx context.Context, code string, credential, ownerRef string, coupons []entity.Coupon, firstUse time.Time) (bool, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return false, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionKeyCards)
	res, err := collection.UpdateOne(ctx,
		bson.D{{Key: "code", Value: code}, {Key: "status", Value: entity.StatusUnused}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "status", Value: entity.StatusUsed},
			{Key: "first_use_time", Value: firstUse},
			{Key: "credential", Value: credential},
			{Key: "owner_ref", Value: ownerRef},
			{Key: "coupons", Value: coupons},
		}}})
	if err != nil {
		return false, fmt.Errorf("mongodb update: %w", err)
	}
	return res.ModifiedCount == 1, nil
}
