package dbclient

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"

	"hkcovid/internal/etl"
)

// DefaultTimeout bounds connect, ping and individual operations.
const DefaultTimeout = 30 * time.Second

// MongoConfig describes how to reach the target database.
type MongoConfig struct {
	// URI, when set, is used as-is apart from "<password>" substitution.
	URI      string
	Host     string
	Username string
	Password string
	Database string
	Timeout  time.Duration
}

// Mongo is an explicitly owned MongoDB connection scoped to one database.
// Callers must Close it.
type Mongo struct {
	client  *mongo.Client
	dbName  string
	timeout time.Duration
	logger  *zap.Logger
}

// BuildURI returns the connection string for cfg.
func BuildURI(cfg MongoConfig) (string, error) {
	if cfg.URI != "" {
		uri := cfg.URI
		if cfg.Password != "" {
			uri = strings.ReplaceAll(uri, "<password>", url.QueryEscape(cfg.Password))
			uri = strings.ReplaceAll(uri, "<db_password>", url.QueryEscape(cfg.Password))
		}
		return uri, nil
	}

	if cfg.Host == "" {
		return "", errors.New("mongo host is required")
	}
	if strings.HasPrefix(cfg.Host, "mongodb://") || strings.HasPrefix(cfg.Host, "mongodb+srv://") {
		return "", errors.Errorf("mongo host %q looks like a URI; set the uri instead", MaskURI(cfg.Host, cfg.Password))
	}

	u := url.URL{
		Scheme:   "mongodb+srv",
		Host:     cfg.Host,
		Path:     "/",
		RawQuery: "retryWrites=true&w=majority",
	}
	if cfg.Username != "" {
		u.User = url.UserPassword(cfg.Username, cfg.Password)
	}
	return u.String(), nil
}

// MaskURI replaces the password in uri with "***" for logging.
func MaskURI(uri, password string) string {
	if password == "" {
		return uri
	}
	uri = strings.ReplaceAll(uri, url.QueryEscape(password), "***")
	return strings.ReplaceAll(uri, password, "***")
}

// Connect opens the client and verifies the deployment answers a ping.
func Connect(ctx context.Context, cfg MongoConfig, logger *zap.Logger) (*Mongo, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	uri, err := BuildURI(cfg)
	if err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if cfg.Database == "" {
		return nil, errors.New("mongo database is required")
	}

	logger = logger.With(zap.String("component", "mongo"))
	logger.Info("connecting",
		zap.String("uri", MaskURI(uri, cfg.Password)),
		zap.String("database", cfg.Database))

	clientOpts := options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(timeout).
		SetConnectTimeout(timeout)
	client, err := mongo.Connect(clientOpts)
	if err != nil {
		return nil, errors.Wrap(err, "connect mongo")
	}

	m := &Mongo{client: client, dbName: cfg.Database, timeout: timeout, logger: logger}
	if err := m.Ping(ctx); err != nil {
		_ = m.Close()
		return nil, err
	}
	logger.Info("connected")
	return m, nil
}

// Ping verifies connectivity.
func (m *Mongo) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	if err := m.client.Ping(ctx, nil); err != nil {
		return errors.Wrap(err, "ping mongo")
	}
	return nil
}

// Collection returns a handle for the named collection.
func (m *Mongo) Collection(name string) etl.Collection {
	return m.client.Database(m.dbName).Collection(name)
}

// EnsureUniqueIndex creates a unique ascending index over keys if it does
// not exist yet.
func (m *Mongo) EnsureUniqueIndex(ctx context.Context, collection string, keys []string) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	keysDoc := make(bson.D, 0, len(keys))
	for _, k := range keys {
		keysDoc = append(keysDoc, bson.E{Key: k, Value: 1})
	}
	name := "uniq_" + strings.ReplaceAll(strings.Join(keys, "_"), " ", "_")
	model := mongo.IndexModel{
		Keys:    keysDoc,
		Options: options.Index().SetUnique(true).SetName(name),
	}

	coll := m.client.Database(m.dbName).Collection(collection)
	if _, err := coll.Indexes().CreateOne(ctx, model); err != nil {
		return errors.Wrapf(err, "create index %s on %s", name, collection)
	}
	m.logger.Debug("unique index ensured", zap.String("collection", collection), zap.String("index", name))
	return nil
}

// Close disconnects the client.
func (m *Mongo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
