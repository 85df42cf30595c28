package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	rm "progression/internal/projection/models"
	"progression/pkg/platform/sentinel"
)

// Mongo keeps one collection per read model. Documents are stored as
// {_id, version, body} with body converted from JSON to BSON.
type Mongo struct {
	db *mongo.Database
}

func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{db: db}
}

type mongoDocument struct {
	ID      string   `bson:"_id"`
	Version int64    `bson:"version"`
	Body    bson.Raw `bson:"body"`
}

type mongoReplacement struct {
	ID      string `bson:"_id"`
	Version int64  `bson:"version"`
	Body    bson.D `bson:"body"`
}

func (s *Mongo) collection(model rm.Model) *mongo.Collection {
	return s.db.Collection("projection_" + strings.ReplaceAll(string(model), "-", "_"))
}

// Upsert replaces the document only when the stored version is lower. When a
// newer document exists the filter misses and the upsert collides with its
// _id, which is reported as a stale write.
func (s *Mongo) Upsert(ctx context.Context, doc rm.Document) (bool, error) {
	var body bson.D
	if err := bson.UnmarshalExtJSON(doc.Body, false, &body); err != nil {
		return false, fmt.Errorf("convert %s body: %w", doc.Model, err)
	}
	filter := bson.M{"_id": doc.ID, "version": bson.M{"$lt": doc.Version}}
	replacement := mongoReplacement{ID: doc.ID, Version: doc.Version, Body: body}

	_, err := s.collection(doc.Model).ReplaceOne(ctx, filter, replacement, options.Replace().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("replace %s document: %w", doc.Model, err)
	}
	return true, nil
}

func (s *Mongo) Get(ctx context.Context, model rm.Model, id string) (rm.Document, error) {
	var stored mongoDocument
	err := s.collection(model).FindOne(ctx, bson.M{"_id": id}).Decode(&stored)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return rm.Document{}, sentinel.ErrNotFound
	}
	if err != nil {
		return rm.Document{}, fmt.Errorf("find %s document: %w", model, err)
	}
	body, err := bson.MarshalExtJSON(stored.Body, false, false)
	if err != nil {
		return rm.Document{}, fmt.Errorf("convert %s body: %w", model, err)
	}
	return rm.Document{Model: model, ID: stored.ID, Version: stored.Version, Body: body}, nil
}
