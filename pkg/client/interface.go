package client

import (
	"context"
	"time"

	"github.com/example/handlefs/pkg/api"
)

// NFSClient defines the interface for file service client operations
type NFSClient interface {
	// GetRootFileHandle retrieves the root directory file handle from the server
	GetRootFileHandle(ctx context.Context) ([]byte, error)

	// GetAttr retrieves attributes for a file or directory
	GetAttr(ctx context.Context, fileHandle []byte) (*api.FileAttributes, error)

	// Lookup looks up a file name in a directory
	// Returns the file handle, attributes, and any error
	Lookup(ctx context.Context, dirHandle []byte, name string) ([]byte, *api.FileAttributes, error)

	// LookupPath resolves a slash separated path, relative to the export
	// root, to a file handle
	LookupPath(ctx context.Context, path string) ([]byte, error)

	// ReadDir reads the whole contents of a directory
	ReadDir(ctx context.Context, dirHandle []byte) ([]*api.DirEntry, error)

	// Mkdir creates a new directory
	// Returns the directory handle, attributes, and any error
	Mkdir(ctx context.Context, dirHandle []byte, name string, attrs *api.FileAttributes) ([]byte, *api.FileAttributes, error)

	// Remove removes a file, symlink or empty directory
	Remove(ctx context.Context, dirHandle []byte, name string) error

	// Readlink returns the target of a symbolic link
	Readlink(ctx context.Context, fileHandle []byte) (string, error)

	// Access returns the access bits granted for the object
	Access(ctx context.Context, fileHandle []byte, access uint32) (uint32, error)

	// Close closes the client connection and releases all resources
	Close() error
}

// CacheableClient extends NFSClient with cache management capabilities
type CacheableClient interface {
	NFSClient

	// ClearCache clears all cached handles and attributes
	ClearCache() error

	// SetCacheTTL sets the time-to-live for cache entries
	SetCacheTTL(duration time.Duration)
}

var _ CacheableClient = (*Client)(nil)
