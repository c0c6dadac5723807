package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"money-ledger/pkg/store"

	"github.com/redis/rueidis"
)

// Each document is a hash {data, version, created, updated}. A per-collection
// set tracks ids for queries. Keys use a {collection} hash tag so a document
// and its id set always live in the same cluster slot.

var createScript = rueidis.NewLuaScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1], 'data', ARGV[1], 'version', '1', 'created', ARGV[2], 'updated', ARGV[2])
redis.call('SADD', KEYS[2], ARGV[3])
return 1
`)

var updateScript = rueidis.NewLuaScript(`
local v = redis.call('HGET', KEYS[1], 'version')
if not v then
  return -1
end
if v ~= ARGV[1] then
  return 0
end
local next = tonumber(v) + 1
redis.call('HSET', KEYS[1], 'data', ARGV[2], 'version', tostring(next), 'updated', ARGV[3])
return next
`)

var deleteScript = rueidis.NewLuaScript(`
redis.call('DEL', KEYS[1])
redis.call('SREM', KEYS[2], ARGV[1])
return 1
`)

// RedisStore is a DocumentStore backed by Redis.
type RedisStore struct {
	client rueidis.Client
	name   string
	config RedisStoreConfig
	now    func() time.Time
}

// RedisStoreConfig configures the Redis connection.
type RedisStoreConfig struct {
	Name string
	// Addr is the Redis server address for single node/sentinel mode.
	// For cluster mode, use ClusterAddrs instead.
	Addr string
	// ClusterAddrs is a list of Redis cluster node addresses.
	// If set, cluster mode is enabled automatically.
	ClusterAddrs []string
	Username     string
	Password     string
	// DB is the Redis database number. Only DB 0 is supported in cluster mode.
	DB           int
	KeyPrefix    string
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	// Sentinel configuration for high availability
	SentinelMasterSet string
	SentinelAddrs     []string
	SentinelUsername  string
	SentinelPassword  string
}

// DefaultRedisStoreConfig returns a single-node configuration for localhost.
func DefaultRedisStoreConfig() RedisStoreConfig {
	return RedisStoreConfig{
		Name:         "redis",
		Addr:         "localhost:6379",
		KeyPrefix:    "ledger:",
		DialTimeout:  5 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// ClusterStoreConfig returns a configuration for Redis Cluster mode.
func ClusterStoreConfig(name string, clusterAddrs []string, password string) RedisStoreConfig {
	config := DefaultRedisStoreConfig()
	config.Name = name
	config.ClusterAddrs = clusterAddrs
	config.Password = password
	config.Addr = ""
	config.DB = 0
	return config
}

// NewRedisStore connects to Redis and verifies the connection with PING.
func NewRedisStore(config RedisStoreConfig) (*RedisStore, error) {
	if config.Name == "" {
		config.Name = "redis"
	}
	if config.DialTimeout <= 0 {
		config.DialTimeout = 5 * time.Second
	}

	var initAddress []string
	switch {
	case len(config.ClusterAddrs) > 0:
		initAddress = config.ClusterAddrs
	case len(config.SentinelAddrs) > 0:
		initAddress = config.SentinelAddrs
	case config.Addr != "":
		initAddress = []string{config.Addr}
	default:
		return nil, fmt.Errorf("redis: no addresses configured (set Addr, ClusterAddrs, or SentinelAddrs)")
	}

	clientOpts := rueidis.ClientOption{
		InitAddress:      initAddress,
		Username:         config.Username,
		Password:         config.Password,
		SelectDB:         config.DB,
		ConnWriteTimeout: config.WriteTimeout,
		MaxFlushDelay:    100 * time.Microsecond,
	}
	if len(config.SentinelAddrs) > 0 {
		clientOpts.Sentinel = rueidis.SentinelOption{
			MasterSet: config.SentinelMasterSet,
			Username:  config.SentinelUsername,
			Password:  config.SentinelPassword,
		}
	}

	client, err := rueidis.NewClient(clientOpts)
	if err != nil {
		return nil, fmt.Errorf("redis: failed to create client: %w", err)
	}

	rs := &RedisStore{
		client: client,
		name:   config.Name,
		config: config,
		now:    time.Now,
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.DialTimeout)
	defer cancel()

	if err := rs.Ping(ctx); err != nil {
		client.Close()
		return nil, err
	}

	return rs, nil
}

func (r *RedisStore) docKey(collection, id string) string {
	return r.config.KeyPrefix + "{" + collection + "}:" + id
}

func (r *RedisStore) idsKey(collection string) string {
	return r.config.KeyPrefix + "{" + collection + "}"
}

// Get loads a document hash.
func (r *RedisStore) Get(ctx context.Context, collection, id string) (*store.Document, error) {
	if err := store.ValidateRef(collection, id); err != nil {
		return nil, err
	}

	cmd := r.client.B().Hgetall().Key(r.docKey(collection, id)).Build()
	values, err := r.client.Do(ctx, cmd).AsStrMap()
	if err != nil {
		return nil, store.WrapError(err, r.name, "get")
	}
	if len(values) == 0 {
		return nil, store.ErrNotFound
	}

	return decodeHash(id, values)
}

// Create writes a new document hash if the id is free.
func (r *RedisStore) Create(ctx context.Context, collection string, doc *store.Document) error {
	if err := store.ValidateRef(collection, doc.ID); err != nil {
		return err
	}

	data, err := store.EncodeFields(doc.Fields)
	if err != nil {
		return store.WrapError(err, r.name, "create")
	}

	now := r.now().UTC()
	created, err := createScript.Exec(ctx, r.client,
		[]string{r.docKey(collection, doc.ID), r.idsKey(collection)},
		[]string{string(data), store.FormatTime(now), doc.ID},
	).AsInt64()
	if err != nil {
		return store.WrapError(err, r.name, "create")
	}
	if created == 0 {
		return store.ErrAlreadyExists
	}

	doc.Version = 1
	doc.CreatedAt = now
	doc.UpdatedAt = now
	return nil
}

// Update replaces the document body if the stored version equals doc.Version.
func (r *RedisStore) Update(ctx context.Context, collection string, doc *store.Document) error {
	if err := store.ValidateRef(collection, doc.ID); err != nil {
		return err
	}

	data, err := store.EncodeFields(doc.Fields)
	if err != nil {
		return store.WrapError(err, r.name, "update")
	}

	now := r.now().UTC()
	next, err := updateScript.Exec(ctx, r.client,
		[]string{r.docKey(collection, doc.ID)},
		[]string{strconv.FormatInt(doc.Version, 10), string(data), store.FormatTime(now)},
	).AsInt64()
	if err != nil {
		return store.WrapError(err, r.name, "update")
	}

	switch next {
	case -1:
		return store.ErrNotFound
	case 0:
		return store.ErrConflict
	}

	doc.Version = next
	doc.UpdatedAt = now
	return nil
}

// Delete removes the document hash and its id set entry.
func (r *RedisStore) Delete(ctx context.Context, collection, id string) error {
	if err := store.ValidateRef(collection, id); err != nil {
		return err
	}

	err := deleteScript.Exec(ctx, r.client,
		[]string{r.docKey(collection, id), r.idsKey(collection)},
		[]string{id},
	).Error()
	if err != nil {
		return store.WrapError(err, r.name, "delete")
	}
	return nil
}

// Query loads every document in the collection and filters in-process.
// Collections are per-owner small in practice; a secondary index would be
// needed for large ones.
func (r *RedisStore) Query(ctx context.Context, collection string, q store.Query) ([]*store.Document, error) {
	if err := store.ValidateCollection(collection); err != nil {
		return nil, err
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	ids, err := r.client.Do(ctx, r.client.B().Smembers().Key(r.idsKey(collection)).Build()).AsStrSlice()
	if err != nil {
		return nil, store.WrapError(err, r.name, "query")
	}
	if len(ids) == 0 {
		return nil, nil
	}

	cmds := make([]rueidis.Completed, len(ids))
	for i, id := range ids {
		cmds[i] = r.client.B().Hgetall().Key(r.docKey(collection, id)).Build()
	}

	var errs []error
	docs := make([]*store.Document, 0, len(ids))
	for i, resp := range r.client.DoMulti(ctx, cmds...) {
		values, err := resp.AsStrMap()
		if err != nil {
			errs = append(errs, fmt.Errorf("id %s: %w", ids[i], err))
			continue
		}
		if len(values) == 0 {
			// deleted between SMEMBERS and HGETALL
			continue
		}
		doc, err := decodeHash(ids[i], values)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		docs = append(docs, doc)
	}
	if len(errs) > 0 {
		return nil, store.WrapError(errors.Join(errs...), r.name, "query")
	}

	return store.Apply(docs, q), nil
}

func decodeHash(id string, values map[string]string) (*store.Document, error) {
	fields, err := store.DecodeFields([]byte(values["data"]))
	if err != nil {
		return nil, fmt.Errorf("id %s: %w", id, err)
	}
	version, err := strconv.ParseInt(values["version"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("id %s: bad version %q: %w", id, values["version"], err)
	}

	doc := &store.Document{ID: id, Fields: fields, Version: version}
	if t, err := store.ParseTime(values["created"]); err == nil {
		doc.CreatedAt = t
	}
	if t, err := store.ParseTime(values["updated"]); err == nil {
		doc.UpdatedAt = t
	}
	return doc, nil
}

// Ping checks the connection.
func (r *RedisStore) Ping(ctx context.Context) error {
	cmd := r.client.B().Ping().Build()
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// FlushDB removes every key in the selected database. Used by tests.
func (r *RedisStore) FlushDB(ctx context.Context) error {
	cmd := r.client.B().Flushdb().Build()
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("redis flushdb: %w", err)
	}
	return nil
}

// Name returns the store name.
func (r *RedisStore) Name() string {
	return r.name
}

// Close closes the client.
func (r *RedisStore) Close() error {
	r.client.Close()
	return nil
}
