package stores

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/dmitrijs2005/archivia/internal/common"
	"github.com/dmitrijs2005/archivia/internal/server/models"
)

// metadataRecord is the stored shape: the metadata fields plus the _id
// assigned by the server.
type metadataRecord struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	models.Metadata `bson:",inline"`
}

// collection is the part of *mongo.Collection the adapter uses.
type collection interface {
	InsertOne(ctx context.Context, document any, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	FindOne(ctx context.Context, filter any, opts ...*options.FindOneOptions) *mongo.SingleResult
	UpdateOne(ctx context.Context, filter any, update any, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	DeleteOne(ctx context.Context, filter any, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
}

// Mongo is the MetadataStore backed by a MongoDB collection.
type Mongo struct {
	client *mongo.Client
	raw    *mongo.Collection
	coll   collection
	now    func() time.Time
}

var mongoConnect = func(ctx context.Context, opts ...*options.ClientOptions) (*mongo.Client, error) {
	return mongo.Connect(ctx, opts...)
}

// ConnectMongo connects to uri and binds the adapter to database.collection.
func ConnectMongo(ctx context.Context, uri, database, coll string) (*Mongo, error) {
	client, err := mongoConnect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, metadataError("connect", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, metadataError("connect", err)
	}
	c := client.Database(database).Collection(coll)
	return &Mongo{client: client, raw: c, coll: c, now: time.Now}, nil
}

// metadataIndexes allow one record per owner and logical id, and one per
// platform document.
func metadataIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "owner_id", Value: 1}, {Key: "logical_id", Value: 1}},
			Options: options.Index().SetName("owner_logical_id").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "platform_document_id", Value: 1}},
			Options: options.Index().SetName("platform_document_id").SetUnique(true),
		},
	}
}

// EnsureIndexes creates the unique lookup indexes.
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	_, err := m.raw.Indexes().CreateMany(ctx, metadataIndexes())
	return metadataError("ensure indexes", err)
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func metadataError(op string, err error) error {
	if err == nil {
		return nil
	}
	var kind error
	switch {
	case errors.Is(err, mongo.ErrNoDocuments), errors.Is(err, primitive.ErrInvalidHex):
		kind = common.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		kind = common.ErrConflict
	case mongo.IsTimeout(err), mongo.IsNetworkError(err),
		errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, mongo.ErrClientDisconnected):
		kind = common.ErrStoreUnavailable
	default:
		kind = common.ErrStoreFailure
	}
	return common.NewStoreError(common.StoreMetadata, op, kind, err)
}

func (m *Mongo) Create(ctx context.Context, md *models.Metadata) (string, error) {
	now := m.now().UTC()
	if md.CreatedAt.IsZero() {
		md.CreatedAt = now
	}
	if md.UpdatedAt.IsZero() {
		md.UpdatedAt = md.CreatedAt
	}
	if md.SchemaVersion == "" {
		md.SchemaVersion = models.SchemaVersion
	}

	res, err := m.coll.InsertOne(ctx, metadataRecord{Metadata: *md})
	if err != nil {
		return "", metadataError("create", err)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", common.NewStoreError(common.StoreMetadata, "create", common.ErrStoreFailure,
			errors.New("unexpected inserted id type"))
	}
	md.ID = oid.Hex()
	return md.ID, nil
}

func (m *Mongo) Get(ctx context.Context, id string) (*models.Metadata, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, metadataError("get", err)
	}

	var rec metadataRecord
	if err := m.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&rec); err != nil {
		return nil, metadataError("get", err)
	}
	md := rec.Metadata
	md.ID = rec.ID.Hex()
	return &md, nil
}

func (m *Mongo) Update(ctx context.Context, id string, patch models.MetadataPatch) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, nil
	}

	set := bson.M{"updated_at": m.now().UTC()}
	for k, v := range patch.Fields() {
		set[k] = v
	}

	res, err := m.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	if err != nil {
		return false, metadataError("update", err)
	}
	return res.MatchedCount > 0, nil
}

func (m *Mongo) Delete(ctx context.Context, id string) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, nil
	}

	res, err := m.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return false, metadataError("delete", err)
	}
	return res.DeletedCount > 0, nil
}

func (m *Mongo) Ping(ctx context.Context) error {
	return metadataError("ping", m.client.Ping(ctx, readpref.Primary()))
}
