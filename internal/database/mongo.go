package repository

import (
	"FunnelRouter/entity"
	"FunnelRouter/internal/config"
	"FunnelRouter/internal/lib/sl"
	"context"
	"errors"
	"fmt"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"log/slog"
	"time"
)

const (
	channelMappingsCollection = "channel_mappings"
	tenantsCollection         = "tenants"
	contactsCollection        = "contacts"
)

type MongoDB struct {
	client   *mongo.Client
	database string
	timeout  time.Duration
	log      *slog.Logger
}

func NewMongoClient(ctx context.Context, conf *config.Config, logger *slog.Logger) (*MongoDB, error) {
	if !conf.Mongo.Enabled {
		return nil, nil
	}
	connectionUri := fmt.Sprintf("mongodb://%s:%s", conf.Mongo.Host, conf.Mongo.Port)
	clientOptions := options.Client().
		ApplyURI(connectionUri).
		SetConnectTimeout(conf.Mongo.Timeout).
		SetServerSelectionTimeout(conf.Mongo.Timeout)
	if conf.Mongo.User != "" {
		clientOptions.SetAuth(options.Credential{
			Username:   conf.Mongo.User,
			Password:   conf.Mongo.Password,
			AuthSource: conf.Mongo.Database,
		})
	}

	connection, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("mongodb connect error: %w", err)
	}

	timeout := conf.Mongo.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &MongoDB{
		client:   connection,
		database: conf.Mongo.Database,
		timeout:  timeout,
		log:      logger.With(sl.Module("mongodb")),
	}, nil
}

func (m *MongoDB) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// Ping checks that the server is reachable within the configured timeout.
func (m *MongoDB) Ping(ctx context.Context) error {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	return m.client.Ping(ctx, nil)
}

func (m *MongoDB) collection(name string) *mongo.Collection {
	return m.client.Database(m.database).Collection(name)
}

func (m *MongoDB) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, m.timeout)
}

func (m *MongoDB) findError(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return entity.ErrNotFound
	}
	return fmt.Errorf("mongodb find error: %w: %w", entity.ErrStoreUnavailable, err)
}
