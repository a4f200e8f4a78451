package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/saviobatista/flightwatch/internal/types"
)

// StatusTTL bounds how long a status cache entry outlives its last write
const StatusTTL = 30 * time.Hour

// RedisClientInterface defines the Redis operations used by our client
type RedisClientInterface interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Close() error
}

// Client manages Redis connections and operations
type Client struct {
	client RedisClientInterface
}

// New creates a new Redis client
func New(addr string) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{client: client}, nil
}

// NewWithClient creates a new Redis client with a custom RedisClientInterface (useful for testing)
func NewWithClient(client RedisClientInterface) *Client {
	return &Client{client: client}
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.client.Close()
}

func statusKey(flightKey string) string {
	return "status:" + flightKey
}

func airportKey(iata string) string {
	return "airport:" + strings.ToUpper(iata)
}

func airlineKey(iata string) string {
	return "airline:" + strings.ToUpper(iata)
}

func (c *Client) setData(ctx context.Context, key string, value interface{}, ttl time.Duration, dataType string) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", dataType, err)
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store %s: %w", dataType, err)
	}
	return nil
}

// getData retrieves data from Redis and unmarshals it into the target.
// It reports false when the key does not exist.
func (c *Client) getData(ctx context.Context, key string, target interface{}, dataType string) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get %s: %w", dataType, err)
	}

	if err := json.Unmarshal(data, target); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", dataType, err)
	}

	return true, nil
}

// GetEntry returns the status cache entry for flightKey, or nil
func (c *Client) GetEntry(ctx context.Context, flightKey string) (*types.CacheEntry, error) {
	var entry types.CacheEntry
	found, err := c.getData(ctx, statusKey(flightKey), &entry, "status entry")
	if err != nil || !found {
		return nil, err
	}
	return &entry, nil
}

// StoreEntry writes a status cache entry
func (c *Client) StoreEntry(ctx context.Context, entry *types.CacheEntry) error {
	return c.setData(ctx, statusKey(entry.FlightKey), entry, StatusTTL, "status entry")
}

// DeleteEntry removes a status cache entry
func (c *Client) DeleteEntry(ctx context.Context, flightKey string) error {
	if err := c.client.Del(ctx, statusKey(flightKey)).Err(); err != nil {
		return fmt.Errorf("failed to delete status entry: %w", err)
	}
	return nil
}

// GetAirport returns a cached directory record, or nil
func (c *Client) GetAirport(ctx context.Context, iata string) (*types.AirportInfo, error) {
	var info types.AirportInfo
	found, err := c.getData(ctx, airportKey(iata), &info, "airport")
	if err != nil || !found {
		return nil, err
	}
	return &info, nil
}

// StoreAirport caches a directory record for ttl
func (c *Client) StoreAirport(ctx context.Context, info *types.AirportInfo, ttl time.Duration) error {
	return c.setData(ctx, airportKey(info.IATA), info, ttl, "airport")
}

// GetAirline returns a cached directory record, or nil
func (c *Client) GetAirline(ctx context.Context, iata string) (*types.AirlineInfo, error) {
	var info types.AirlineInfo
	found, err := c.getData(ctx, airlineKey(iata), &info, "airline")
	if err != nil || !found {
		return nil, err
	}
	return &info, nil
}

// StoreAirline caches a directory record for ttl
func (c *Client) StoreAirline(ctx context.Context, info *types.AirlineInfo, ttl time.Duration) error {
	return c.setData(ctx, airlineKey(info.IATA), info, ttl, "airline")
}
