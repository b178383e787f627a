// Package mongodb implements storage interfaces using MongoDB
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sirosfoundation/go-smp/internal/storage"
)

// Store implements storage.Store using MongoDB
type Store struct {
	client *mongo.Client
	db     *mongo.Database

	// Collections
	serviceGroups   *mongo.Collection
	serviceMetadata *mongo.Collection
	redirects       *mongo.Collection
	businessCards   *mongo.Collection
	users           *mongo.Collection
}

// Config holds MongoDB connection settings
type Config struct {
	URI      string
	Database string
}

// NewStore creates a new MongoDB store
func NewStore(ctx context.Context, cfg *Config) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connecting to MongoDB: %w", err)
	}

	// Verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("pinging MongoDB: %w", err)
	}

	db := client.Database(cfg.Database)

	s := &Store{
		client:          client,
		db:              db,
		serviceGroups:   db.Collection("service_groups"),
		serviceMetadata: db.Collection("service_metadata"),
		redirects:       db.Collection("redirects"),
		businessCards:   db.Collection("business_cards"),
		users:           db.Collection("users"),
	}

	if err := s.createIndexes(ctx); err != nil {
		return nil, fmt.Errorf("creating indexes: %w", err)
	}

	return s, nil
}

func (s *Store) createIndexes(ctx context.Context) error {
	_, err := s.serviceGroups.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner_id", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("creating service group indexes: %w", err)
	}

	_, err = s.serviceMetadata.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "service_group_id", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("creating service metadata indexes: %w", err)
	}

	_, err = s.redirects.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "service_group_id", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("creating redirect indexes: %w", err)
	}

	_, err = s.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_name", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return fmt.Errorf("creating user indexes: %w", err)
	}

	return nil
}

// Close closes the MongoDB connection
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Ping verifies database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// ServiceGroupStore implementation

func (s *Store) CreateServiceGroup(ctx context.Context, sg *storage.ServiceGroup) error {
	sg.CreatedAt = time.Now()
	sg.UpdatedAt = sg.CreatedAt

	_, err := s.serviceGroups.InsertOne(ctx, sg)
	if mongo.IsDuplicateKeyError(err) {
		return storage.ErrDuplicate
	}
	return err
}

func (s *Store) GetServiceGroup(ctx context.Context, id string) (*storage.ServiceGroup, error) {
	var sg storage.ServiceGroup
	err := s.serviceGroups.FindOne(ctx, bson.M{"_id": id}).Decode(&sg)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sg, nil
}

func (s *Store) UpdateServiceGroup(ctx context.Context, sg *storage.ServiceGroup) error {
	sg.UpdatedAt = time.Now()
	_, err := s.serviceGroups.ReplaceOne(ctx, bson.M{"_id": sg.ID}, sg)
	return err
}

func (s *Store) DeleteServiceGroup(ctx context.Context, id string) (bool, error) {
	res, err := s.serviceGroups.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (s *Store) ListServiceGroupsByOwner(ctx context.Context, ownerID string) ([]*storage.ServiceGroup, error) {
	return s.findServiceGroups(ctx, bson.M{"owner_id": ownerID})
}

func (s *Store) ListServiceGroups(ctx context.Context) ([]*storage.ServiceGroup, error) {
	return s.findServiceGroups(ctx, bson.M{})
}

func (s *Store) findServiceGroups(ctx context.Context, query bson.M) ([]*storage.ServiceGroup, error) {
	cursor, err := s.serviceGroups.Find(ctx, query, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var groups []*storage.ServiceGroup
	if err := cursor.All(ctx, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// ServiceInformationStore implementation

func (s *Store) UpsertServiceInformation(ctx context.Context, si *storage.ServiceInformation) error {
	now := time.Now()
	if si.CreatedAt.IsZero() {
		si.CreatedAt = now
	}
	si.UpdatedAt = now

	opts := options.Replace().SetUpsert(true)
	_, err := s.serviceMetadata.ReplaceOne(ctx, bson.M{"_id": si.ID}, si, opts)
	return err
}

func (s *Store) GetServiceInformation(ctx context.Context, id string) (*storage.ServiceInformation, error) {
	var si storage.ServiceInformation
	err := s.serviceMetadata.FindOne(ctx, bson.M{"_id": id}).Decode(&si)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &si, nil
}

func (s *Store) ListServiceInformation(ctx context.Context, serviceGroupID string) ([]*storage.ServiceInformation, error) {
	cursor, err := s.serviceMetadata.Find(ctx, bson.M{"service_group_id": serviceGroupID},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var infos []*storage.ServiceInformation
	if err := cursor.All(ctx, &infos); err != nil {
		return nil, err
	}
	return infos, nil
}

func (s *Store) DeleteServiceInformation(ctx context.Context, id string) (bool, error) {
	res, err := s.serviceMetadata.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (s *Store) DeleteAllServiceInformation(ctx context.Context, serviceGroupID string) (int64, error) {
	res, err := s.serviceMetadata.DeleteMany(ctx, bson.M{"service_group_id": serviceGroupID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// RedirectStore implementation

func (s *Store) UpsertRedirect(ctx context.Context, r *storage.Redirect) error {
	now := time.Now()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now

	opts := options.Replace().SetUpsert(true)
	_, err := s.redirects.ReplaceOne(ctx, bson.M{"_id": r.ID}, r, opts)
	return err
}

func (s *Store) GetRedirect(ctx context.Context, id string) (*storage.Redirect, error) {
	var r storage.Redirect
	err := s.redirects.FindOne(ctx, bson.M{"_id": id}).Decode(&r)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) ListRedirects(ctx context.Context, serviceGroupID string) ([]*storage.Redirect, error) {
	cursor, err := s.redirects.Find(ctx, bson.M{"service_group_id": serviceGroupID},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rs []*storage.Redirect
	if err := cursor.All(ctx, &rs); err != nil {
		return nil, err
	}
	return rs, nil
}

func (s *Store) DeleteRedirect(ctx context.Context, id string) (bool, error) {
	res, err := s.redirects.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (s *Store) DeleteAllRedirects(ctx context.Context, serviceGroupID string) (int64, error) {
	res, err := s.redirects.DeleteMany(ctx, bson.M{"service_group_id": serviceGroupID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// BusinessCardStore implementation

func (s *Store) UpsertBusinessCard(ctx context.Context, bc *storage.BusinessCard) error {
	now := time.Now()
	if bc.CreatedAt.IsZero() {
		bc.CreatedAt = now
	}
	bc.UpdatedAt = now

	opts := options.Replace().SetUpsert(true)
	_, err := s.businessCards.ReplaceOne(ctx, bson.M{"_id": bc.ID}, bc, opts)
	return err
}

func (s *Store) GetBusinessCard(ctx context.Context, id string) (*storage.BusinessCard, error) {
	var bc storage.BusinessCard
	err := s.businessCards.FindOne(ctx, bson.M{"_id": id}).Decode(&bc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &bc, nil
}

func (s *Store) DeleteBusinessCard(ctx context.Context, id string) (bool, error) {
	res, err := s.businessCards.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

// UserStore implementation

func (s *Store) CreateUser(ctx context.Context, u *storage.User) error {
	u.CreatedAt = time.Now()

	_, err := s.users.InsertOne(ctx, u)
	if mongo.IsDuplicateKeyError(err) {
		return storage.ErrDuplicate
	}
	return err
}

func (s *Store) GetUser(ctx context.Context, id string) (*storage.User, error) {
	var u storage.User
	err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) GetUserByName(ctx context.Context, name string) (*storage.User, error) {
	var u storage.User
	err := s.users.FindOne(ctx, bson.M{"user_name": name}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
