// Package mongodb is the kv.Store backed by a MongoDB collection. Each record
// is a document {key, value} where value holds the JSON payload as text and
// key carries a unique index.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/dmitrijs2005/kosync/internal/server/kv"
)

type Options struct {
	URI            string
	Database       string
	Collection     string
	ConnectTimeout time.Duration
}

type record struct {
	Key   string `bson:"key"`
	Value string `bson:"value"`
}

type Store struct {
	opts Options

	mu     sync.RWMutex
	client *mongo.Client
	coll   *mongo.Collection
}

func New(opts Options) *Store {
	if opts.Database == "" {
		opts.Database = "kosync"
	}
	if opts.Collection == "" {
		opts.Collection = "kv_store"
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	return &Store{opts: opts}
}

// Init connects, verifies the connection with a ping and ensures the unique
// index on key exists.
func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return nil
	}
	if s.opts.URI == "" {
		return fmt.Errorf("mongodb: %w: empty URI", kv.ErrMissingCredentials)
	}

	client, err := mongo.Connect(options.Client().
		ApplyURI(s.opts.URI).
		SetConnectTimeout(s.opts.ConnectTimeout).
		SetServerSelectionTimeout(s.opts.ConnectTimeout))
	if err != nil {
		return kv.Unavailable("mongodb connect", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return kv.Unavailable("mongodb ping", err)
	}

	coll := client.Database(s.opts.Database).Collection(s.opts.Collection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "key", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("key_unique"),
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return kv.Unavailable("mongodb ensure index", err)
	}

	s.client = client
	s.coll = coll
	return nil
}

func (s *Store) collection() (*mongo.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.coll == nil {
		return nil, kv.ErrNotInitialized
	}
	return s.coll, nil
}

func (s *Store) Get(ctx context.Context, key kv.Key, dst any) (bool, error) {
	coll, err := s.collection()
	if err != nil {
		return false, err
	}

	var rec record
	err = coll.FindOne(ctx, bson.D{{Key: "key", Value: key.String()}}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, kv.Unavailable(fmt.Sprintf("mongodb get[%s]", key), err)
	}
	if err := kv.Decode([]byte(rec.Value), dst); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) Set(ctx context.Context, key kv.Key, value any) error {
	coll, err := s.collection()
	if err != nil {
		return err
	}
	b, err := kv.Encode(value)
	if err != nil {
		return err
	}

	_, err = coll.UpdateOne(ctx,
		bson.D{{Key: "key", Value: key.String()}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "value", Value: string(b)}}}},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return kv.Unavailable(fmt.Sprintf("mongodb set[%s]", key), err)
	}
	return nil
}

// Create relies on the unique index: a second insert fails with a
// duplicate key error.
func (s *Store) Create(ctx context.Context, key kv.Key, value any) error {
	coll, err := s.collection()
	if err != nil {
		return err
	}
	b, err := kv.Encode(value)
	if err != nil {
		return err
	}

	_, err = coll.InsertOne(ctx, record{Key: key.String(), Value: string(b)})
	if mongo.IsDuplicateKeyError(err) {
		return kv.ErrKeyExists
	}
	if err != nil {
		return kv.Unavailable(fmt.Sprintf("mongodb create[%s]", key), err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	client := s.client
	s.mu.RUnlock()
	if client == nil {
		return kv.ErrNotInitialized
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return kv.Unavailable("mongodb ping", err)
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Disconnect(ctx)
	s.client = nil
	s.coll = nil
	return err
}
