package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/librosapp/libros/backend/go-services/internal/book"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepo implements a MongoDB-backed repository for books. IDs are
// ObjectID hex strings stored as the string _id.
type MongoRepo struct {
	col *mongo.Collection
	now func() time.Time
}

func NewMongoRepo(col *mongo.Collection) *MongoRepo {
	return &MongoRepo{col: col, now: utcNow}
}

// EnsureIndexes creates the indexes used by ListRecent and ISBN lookups.
func (m *MongoRepo) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "isbn", Value: 1}}},
	}
	if _, err := m.col.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	return nil
}

func (m *MongoRepo) Insert(ctx context.Context, b *book.Book) error {
	b.ID = primitive.NewObjectID().Hex()
	b.CreatedAt = m.now()
	b.UpdatedAt = b.CreatedAt
	if _, err := m.col.InsertOne(ctx, b); err != nil {
		return fmt.Errorf("insert book: %w", err)
	}
	return nil
}

func (m *MongoRepo) Get(ctx context.Context, id string) (*book.Book, error) {
	var b book.Book
	if err := m.col.FindOne(ctx, bson.M{"_id": id}).Decode(&b); err != nil {
		return nil, notFound(err, "get book")
	}
	return &b, nil
}

func (m *MongoRepo) List(ctx context.Context) ([]*book.Book, error) {
	return m.find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
}

func (m *MongoRepo) Update(ctx context.Context, id string, ch book.Changes) (*book.Book, error) {
	set := bson.M{"updatedAt": m.now()}
	if ch.ISBN != nil {
		set["isbn"] = *ch.ISBN
	}
	if ch.Title != nil {
		set["title"] = *ch.Title
	}
	if ch.Author != nil {
		set["author"] = *ch.Author
	}
	if ch.Publisher != nil {
		set["publisher"] = *ch.Publisher
	}
	if ch.PageCount != nil {
		set["pageCount"] = *ch.PageCount
	}
	if ch.CoverImage != nil {
		set["coverImage"] = *ch.CoverImage
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var b book.Book
	if err := m.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&b); err != nil {
		return nil, notFound(err, "update book")
	}
	return &b, nil
}

func (m *MongoRepo) Delete(ctx context.Context, id string) (*book.Book, error) {
	var b book.Book
	if err := m.col.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&b); err != nil {
		return nil, notFound(err, "delete book")
	}
	return &b, nil
}

func (m *MongoRepo) Search(ctx context.Context, c book.SearchCriteria) ([]*book.Book, error) {
	return m.find(ctx, searchFilter(c), options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
}

func (m *MongoRepo) Recent(ctx context.Context, limit int) ([]*book.Book, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return m.find(ctx, bson.M{}, opts)
}

func (m *MongoRepo) Ping(ctx context.Context) error {
	return m.col.Database().Client().Ping(ctx, nil)
}

func (m *MongoRepo) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*book.Book, error) {
	cur, err := m.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find books: %w", err)
	}
	defer cur.Close(ctx)
	out := []*book.Book{}
	for cur.Next(ctx) {
		var b book.Book
		if err := cur.Decode(&b); err != nil {
			return nil, fmt.Errorf("decode book: %w", err)
		}
		out = append(out, &b)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate books: %w", err)
	}
	return out, nil
}

// searchFilter translates criteria into a filter of case-insensitive regexes.
// User input is quoted so metacharacters match literally.
func searchFilter(c book.SearchCriteria) bson.M {
	filter := bson.M{}
	if term := strings.TrimSpace(c.Search); term != "" {
		rx := containsPattern(term)
		filter["$or"] = bson.A{
			bson.M{"title": rx},
			bson.M{"author": rx},
			bson.M{"publisher": rx},
			bson.M{"isbn": rx},
		}
	}
	if term := strings.TrimSpace(c.Author); term != "" {
		filter["author"] = containsPattern(term)
	}
	if term := strings.TrimSpace(c.Title); term != "" {
		filter["title"] = containsPattern(term)
	}
	if term := strings.TrimSpace(c.Publisher); term != "" {
		filter["publisher"] = containsPattern(term)
	}
	return filter
}

func containsPattern(term string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(term), Options: "i"}
}

func notFound(err error, op string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return book.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
