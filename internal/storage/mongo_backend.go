package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoConfig настройки подключения к MongoDB
type MongoConfig struct {
	URI        string // e.g. mongodb://localhost:27017
	Database   string // e.g. triggers
	Collection string // e.g. trigger_files
	Timeout    time.Duration
}

// DefaultMongoConfig возвращает конфигурацию по умолчанию
func DefaultMongoConfig() *MongoConfig {
	return &MongoConfig{
		URI:        "mongodb://localhost:27017",
		Database:   "triggers",
		Collection: "trigger_files",
		Timeout:    5 * time.Second,
	}
}

func (c *MongoConfig) withDefaults() *MongoConfig {
	def := DefaultMongoConfig()
	if c == nil {
		return def
	}
	out := *c
	if out.URI == "" {
		out.URI = def.URI
	}
	if out.Database == "" {
		out.Database = def.Database
	}
	if out.Collection == "" {
		out.Collection = def.Collection
	}
	if out.Timeout == 0 {
		out.Timeout = def.Timeout
	}
	return &out
}

type mongoFile struct {
	Folder    string    `bson:"folder"`
	Name      string    `bson:"name"`
	Text      string    `bson:"text"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// MongoBackend хранит записи папки документами {folder, name, text}
type MongoBackend struct {
	client *mongo.Client
	coll   *mongo.Collection
	folder string
	owned  bool
}

// OpenMongo подключается к MongoDB, проверяет соединение и создаёт
// уникальный индекс (folder, name).
func OpenMongo(ctx context.Context, config *MongoConfig) (*mongo.Client, *mongo.Collection, error) {
	config = config.withDefaults()

	ctx, cancel := context.WithTimeout(ctx, config.Timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(config.URI))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	coll := client.Database(config.Database).Collection(config.Collection)
	idx := mongo.IndexModel{
		Keys:    bson.D{{Key: "folder", Value: 1}, {Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("folder_name_unique"),
	}
	if _, err := coll.Indexes().CreateOne(ctx, idx); err != nil {
		client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("failed to create MongoDB index: %w", err)
	}
	return client, coll, nil
}

// NewMongoBackend подключается к MongoDB и создаёт backend одной папки
func NewMongoBackend(ctx context.Context, config *MongoConfig, folder string) (*MongoBackend, error) {
	client, coll, err := OpenMongo(ctx, config)
	if err != nil {
		return nil, err
	}
	b := NewMongoBackendFromCollection(client, coll, folder)
	b.owned = true
	return b, nil
}

// NewMongoBackendFromCollection создаёт backend поверх общего клиента
func NewMongoBackendFromCollection(client *mongo.Client, coll *mongo.Collection, folder string) *MongoBackend {
	return &MongoBackend{client: client, coll: coll, folder: folder}
}

// List возвращает записи верхнего уровня
func (m *MongoBackend) List(ctx context.Context) ([]Entry, error) {
	names, err := m.Walk(ctx)
	if err != nil {
		return nil, err
	}
	return topLevel(names), nil
}

// Walk возвращает имена всех документов папки
func (m *MongoBackend) Walk(ctx context.Context) ([]string, error) {
	opts := options.Find().
		SetProjection(bson.M{"name": 1}).
		SetSort(bson.D{{Key: "name", Value: 1}})
	cur, err := m.coll.Find(ctx, bson.M{"folder": m.folder}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo find %s: %w", m.folder, err)
	}
	defer cur.Close(ctx)

	var names []string
	for cur.Next(ctx) {
		var doc mongoFile
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongo decode %s: %w", m.folder, err)
		}
		names = append(names, doc.Name)
	}
	return names, cur.Err()
}

// Read читает текст записи
func (m *MongoBackend) Read(ctx context.Context, name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}

	var doc mongoFile
	err := m.coll.FindOne(ctx, bson.M{"folder": m.folder, "name": name}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("mongo find %s: %w", name, err)
	}
	return doc.Text, nil
}

// Write создаёт или перезаписывает документ (upsert)
func (m *MongoBackend) Write(ctx context.Context, name, text string) error {
	if err := validateName(name); err != nil {
		return err
	}

	_, err := m.coll.UpdateOne(ctx,
		bson.M{"folder": m.folder, "name": name},
		bson.M{"$set": bson.M{"text": text, "updated_at": time.Now()}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("mongo upsert %s: %w", name, err)
	}
	return nil
}

// Delete удаляет документ; отсутствующий документ не ошибка
func (m *MongoBackend) Delete(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	if _, err := m.coll.DeleteOne(ctx, bson.M{"folder": m.folder, "name": name}); err != nil {
		return fmt.Errorf("mongo delete %s: %w", name, err)
	}
	return nil
}

// Close отключает клиент, если backend им владеет
func (m *MongoBackend) Close() error {
	if !m.owned {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
