package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/azaliaz/bookstore/internal/domain/consts"
	"github.com/azaliaz/bookstore/internal/domain/models"
	"github.com/azaliaz/bookstore/internal/logger"
	storerrros "github.com/azaliaz/bookstore/internal/storage/errors"
)

type userDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Email     string             `bson:"email"`
	Password  string             `bson:"password"`
	CreatedAt time.Time          `bson:"createdAt"`
}

func (d userDocument) model() models.User {
	return models.User{
		UID:          d.ID.Hex(),
		Email:        d.Email,
		PasswordHash: d.Password,
		CreatedAt:    d.CreatedAt,
	}
}

type bookDocument struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	Title         string             `bson:"title"`
	Author        string             `bson:"author"`
	Category      string             `bson:"category"`
	Price         float64            `bson:"price"`
	Rating        float64            `bson:"rating"`
	PublishedDate time.Time          `bson:"publishedDate"`
	CreatedAt     time.Time          `bson:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt"`
}

func (d bookDocument) model() models.Book {
	return models.Book{
		BID:           d.ID.Hex(),
		Title:         d.Title,
		Author:        d.Author,
		Category:      d.Category,
		Price:         d.Price,
		Rating:        d.Rating,
		PublishedDate: d.PublishedDate,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

type MongoStorage struct {
	client *mongo.Client
	users  *mongo.Collection
	books  *mongo.Collection
}

// NewMongo connects, pings and makes sure the collection indexes exist.
func NewMongo(ctx context.Context, uri, dbName string) (*MongoStorage, error) {
	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err = client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	db := client.Database(dbName)
	ms := &MongoStorage{
		client: client,
		users:  db.Collection(consts.UsersCollection),
		books:  db.Collection(consts.BooksCollection),
	}
	if err = ms.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return ms, nil
}

func (ms *MongoStorage) ensureIndexes(ctx context.Context) error {
	log := logger.Get()
	_, err := ms.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create users index: %w", err)
	}
	_, err = ms.books.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "title", Value: "text"}}},
		{Keys: bson.D{{Key: "author", Value: 1}}},
		{Keys: bson.D{{Key: "category", Value: 1}}},
		{Keys: bson.D{{Key: "rating", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create books indexes: %w", err)
	}
	log.Info().Msg("mongo indexes ready")
	return nil
}

func (ms *MongoStorage) Ping(ctx context.Context) error {
	return ms.client.Ping(ctx, nil)
}

func (ms *MongoStorage) Close(ctx context.Context) error {
	return ms.client.Disconnect(ctx)
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func (ms *MongoStorage) SaveUser(ctx context.Context, user models.User) (models.User, error) {
	log := logger.Get()
	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()

	doc := userDocument{
		Email:     user.Email,
		Password:  user.PasswordHash,
		CreatedAt: now(),
	}
	res, err := ms.users.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.User{}, storerrros.ErrUserExists
		}
		log.Error().Err(err).Msg("failed to insert user")
		return models.User{}, err
	}
	doc.ID, _ = res.InsertedID.(primitive.ObjectID)
	return doc.model(), nil
}

func (ms *MongoStorage) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()

	var doc userDocument
	if err := ms.users.FindOne(ctx, bson.D{{Key: "email", Value: email}}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, storerrros.ErrUserNotFound
		}
		return models.User{}, err
	}
	return doc.model(), nil
}

func (ms *MongoStorage) SaveBook(ctx context.Context, book models.Book) (models.Book, error) {
	log := logger.Get()
	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()

	ts := now()
	doc := bookDocument{
		Title:         book.Title,
		Author:        book.Author,
		Category:      book.Category,
		Price:         book.Price,
		Rating:        book.Rating,
		PublishedDate: book.PublishedDate.UTC(),
		CreatedAt:     ts,
		UpdatedAt:     ts,
	}
	res, err := ms.books.InsertOne(ctx, doc)
	if err != nil {
		log.Error().Err(err).Msg("save book failed")
		return models.Book{}, err
	}
	doc.ID, _ = res.InsertedID.(primitive.ObjectID)
	return doc.model(), nil
}

func (ms *MongoStorage) GetBook(ctx context.Context, bid string) (models.Book, error) {
	oid, err := primitive.ObjectIDFromHex(bid)
	if err != nil {
		return models.Book{}, storerrros.ErrBookNoExist
	}
	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()

	var doc bookDocument
	if err = ms.books.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Book{}, storerrros.ErrBookNoExist
		}
		return models.Book{}, err
	}
	return doc.model(), nil
}

func (ms *MongoStorage) UpdateBook(ctx context.Context, bid string, patch models.BookPatch) (models.Book, error) {
	oid, err := primitive.ObjectIDFromHex(bid)
	if err != nil {
		return models.Book{}, storerrros.ErrBookNoExist
	}
	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()

	var doc bookDocument
	err = ms.books.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: oid}},
		bson.D{{Key: "$set", Value: patchSet(patch)}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Book{}, storerrros.ErrBookNoExist
		}
		return models.Book{}, err
	}
	return doc.model(), nil
}

func patchSet(patch models.BookPatch) bson.D {
	set := bson.D{{Key: "updatedAt", Value: now()}}
	if patch.Title != nil {
		set = append(set, bson.E{Key: "title", Value: *patch.Title})
	}
	if patch.Author != nil {
		set = append(set, bson.E{Key: "author", Value: *patch.Author})
	}
	if patch.Category != nil {
		set = append(set, bson.E{Key: "category", Value: *patch.Category})
	}
	if patch.Price != nil {
		set = append(set, bson.E{Key: "price", Value: *patch.Price})
	}
	if patch.Rating != nil {
		set = append(set, bson.E{Key: "rating", Value: *patch.Rating})
	}
	if patch.PublishedDate != nil {
		set = append(set, bson.E{Key: "publishedDate", Value: patch.PublishedDate.UTC()})
	}
	return set
}

func (ms *MongoStorage) DeleteBook(ctx context.Context, bid string) error {
	log := logger.Get()
	oid, err := primitive.ObjectIDFromHex(bid)
	if err != nil {
		return storerrros.ErrBookNoExist
	}
	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()

	res, err := ms.books.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		log.Error().Err(err).Msg("failed to delete book")
		return err
	}
	if res.DeletedCount == 0 {
		log.Warn().Str("bid", bid).Msg("book not found")
		return storerrros.ErrBookNoExist
	}
	log.Info().Str("bid", bid).Msg("book deleted successfully")
	return nil
}

func (ms *MongoStorage) ListBooks(ctx context.Context, q models.BookQuery) ([]models.Book, int64, error) {
	log := logger.Get()
	q = q.Normalize()
	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()

	filter := mongoBookFilter(q)
	cur, err := ms.books.Find(ctx, filter, mongoFindOptions(q))
	if err != nil {
		log.Error().Err(err).Msg("failed to get books from db")
		return nil, 0, err
	}
	var docs []bookDocument
	if err = cur.All(ctx, &docs); err != nil {
		log.Error().Err(err).Msg("failed to decode books")
		return nil, 0, err
	}
	total, err := ms.books.CountDocuments(ctx, filter)
	if err != nil {
		log.Error().Err(err).Msg("failed to count books")
		return nil, 0, err
	}

	books := make([]models.Book, 0, len(docs))
	for _, d := range docs {
		books = append(books, d.model())
	}
	return books, total, nil
}
