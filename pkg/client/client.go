// Package client implements a caching client of the file service.
package client

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/sync/singleflight"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/example/handlefs/pkg/api"
)

// Config contains the client configuration options
type Config struct {
	// ServerAddress is the address of the server (e.g., "localhost:2049")
	ServerAddress string

	// Timeout is the timeout of a single RPC attempt, zero for none
	Timeout time.Duration

	// MaxRetries is the maximum number of retries for operations
	MaxRetries int

	// RetryDelay is the initial delay between retries (will be multiplied by backoff factor)
	RetryDelay time.Duration

	// BackoffFactor is the multiplier for retry delay after each attempt
	BackoffFactor float64

	// MaxCacheSize is the maximum number of entries in each cache
	MaxCacheSize int

	// CacheTTL is the time-to-live for cache entries
	CacheTTL time.Duration

	// ReadDirCount is the number of entries asked for per ReadDir page
	ReadDirCount uint32

	// Credentials are sent with every call not carrying its own, see
	// WithCredentials
	Credentials *api.Credentials
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	uid, gid := uint32(os.Getuid()), uint32(os.Getgid())
	return &Config{
		ServerAddress: "localhost:2049",
		Timeout:       30 * time.Second,
		MaxRetries:    3,
		RetryDelay:    500 * time.Millisecond,
		BackoffFactor: 2.0,
		MaxCacheSize:  1000,
		CacheTTL:      5 * time.Second,
		ReadDirCount:  1000,
		Credentials:   &api.Credentials{Uid: uid, Gid: gid, Groups: []uint32{gid}},
	}
}

// Client talks to a file server and implements CacheableClient
type Client struct {
	// closer is set when the client owns the connection
	closer io.Closer

	nfsClient api.NFSServiceClient
	config    *Config

	handleCache *HandleCache
	attrCache   *AttrCache

	// lookups collapses concurrent identical Lookup calls
	lookups singleflight.Group
}

// NewClient dials config.ServerAddress and returns a client owning the
// connection.
func NewClient(config *Config) (*Client, error) {
	if config == nil {
		config = DefaultConfig()
	}

	conn, err := grpc.NewClient(
		config.ServerAddress,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}

	c := NewClientWithConn(conn, config)
	c.closer = conn
	return c, nil
}

// NewClientWithConn returns a client using an existing connection. Close
// leaves the connection open.
func NewClientWithConn(conn grpc.ClientConnInterface, config *Config) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	return &Client{
		nfsClient:   api.NewNFSServiceClient(conn),
		config:      config,
		handleCache: NewHandleCache(config.MaxCacheSize, config.CacheTTL),
		attrCache:   NewAttrCache(config.MaxCacheSize, config.CacheTTL),
	}
}

// Close closes the client connection
func (c *Client) Close() error {
	c.handleCache.Purge()
	c.attrCache.Purge()
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}

// ClearCache clears all cached handles and attributes
func (c *Client) ClearCache() error {
	c.handleCache.Purge()
	c.attrCache.Purge()
	return nil
}

// SetCacheTTL sets the time-to-live for cache entries. Cached entries are
// dropped.
func (c *Client) SetCacheTTL(ttl time.Duration) {
	c.handleCache.SetTTL(ttl)
	c.attrCache.SetTTL(ttl)
}

type credentialsKey struct{}

// WithCredentials returns a context whose calls are made as creds.
func WithCredentials(ctx context.Context, creds *api.Credentials) context.Context {
	return context.WithValue(ctx, credentialsKey{}, creds)
}

// CredentialsFromContext returns the credentials set by WithCredentials.
func CredentialsFromContext(ctx context.Context) (*api.Credentials, bool) {
	creds, ok := ctx.Value(credentialsKey{}).(*api.Credentials)
	return creds, ok && creds != nil
}

func (c *Client) credentials(ctx context.Context) *api.Credentials {
	if creds, ok := CredentialsFromContext(ctx); ok {
		return creds
	}
	return c.config.Credentials
}
