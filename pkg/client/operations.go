package client

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/example/handlefs/pkg/api"
)

const rootPath = "/"

// GetRootFileHandle retrieves the root directory file handle from the server
func (c *Client) GetRootFileHandle(ctx context.Context) ([]byte, error) {
	if handle, ok := c.handleCache.GetHandle(rootPath); ok {
		return handle, nil
	}

	resp, err := call(ctx, c, "GetRootHandle", func(ctx context.Context) (*api.GetRootHandleResponse, error) {
		return c.nfsClient.GetRootHandle(ctx, &api.GetRootHandleRequest{Credentials: c.credentials(ctx)})
	})
	if err != nil {
		return nil, err
	}
	if err := StatusToError("GetRootHandle", resp.Status); err != nil {
		return nil, err
	}

	c.handleCache.StorePathHandle(rootPath, resp.FileHandle)
	c.attrCache.Store(resp.FileHandle, resp.Attributes)
	return resp.FileHandle, nil
}

// GetAttr retrieves attributes for a file or directory
func (c *Client) GetAttr(ctx context.Context, fileHandle []byte) (*api.FileAttributes, error) {
	if attrs, ok := c.attrCache.Get(fileHandle); ok {
		return attrs, nil
	}

	resp, err := call(ctx, c, "GetAttr", func(ctx context.Context) (*api.GetAttrResponse, error) {
		return c.nfsClient.GetAttr(ctx, &api.GetAttrRequest{
			FileHandle:  fileHandle,
			Credentials: c.credentials(ctx),
		})
	})
	if err != nil {
		return nil, err
	}
	if err := StatusToError("GetAttr", resp.Status); err != nil {
		return nil, err
	}

	c.attrCache.Store(fileHandle, resp.Attributes)
	return resp.Attributes, nil
}

// childPath returns the export path of name inside dirHandle when the
// directory's path is known.
func (c *Client) childPath(dirHandle []byte, name string) (string, bool) {
	if name == "." || name == ".." {
		return "", false
	}
	dirPath, ok := c.handleCache.GetPath(dirHandle)
	if !ok {
		return "", false
	}
	return path.Join(dirPath, name), true
}

// Lookup looks up a file name in a directory
func (c *Client) Lookup(ctx context.Context, dirHandle []byte, name string) ([]byte, *api.FileAttributes, error) {
	p, known := c.childPath(dirHandle, name)
	if known {
		if handle, ok := c.handleCache.GetHandle(p); ok {
			if attrs, ok := c.attrCache.Get(handle); ok {
				return handle, attrs, nil
			}
		}
	}

	creds := c.credentials(ctx)
	key := fmt.Sprintf("%x/%s", dirHandle, name)
	if creds != nil {
		key += fmt.Sprintf("/%d:%d", creds.Uid, creds.Gid)
	}
	v, err, _ := c.lookups.Do(key, func() (any, error) {
		return call(ctx, c, "Lookup", func(ctx context.Context) (*api.LookupResponse, error) {
			return c.nfsClient.Lookup(ctx, &api.LookupRequest{
				DirectoryHandle: dirHandle,
				Name:            name,
				Credentials:     creds,
			})
		})
	})
	if err != nil {
		return nil, nil, err
	}

	resp := v.(*api.LookupResponse)
	c.attrCache.Store(dirHandle, resp.DirectoryAttributes)
	if err := StatusToError("Lookup", resp.Status); err != nil {
		if known {
			c.invalidatePath(p)
		}
		return nil, nil, err
	}

	c.attrCache.Store(resp.FileHandle, resp.Attributes)
	if known {
		c.handleCache.StorePathHandle(p, resp.FileHandle)
	}
	return resp.FileHandle, resp.Attributes, nil
}

// LookupPath resolves a path relative to the export root. The path is
// cleaned lexically first, so ".." never reaches the server.
func (c *Client) LookupPath(ctx context.Context, p string) ([]byte, error) {
	clean := path.Clean(rootPath + p)
	if handle, ok := c.handleCache.GetHandle(clean); ok {
		return handle, nil
	}

	handle, err := c.GetRootFileHandle(ctx)
	if err != nil {
		return nil, err
	}
	if clean == rootPath {
		return handle, nil
	}

	for _, name := range strings.Split(strings.TrimPrefix(clean, rootPath), "/") {
		handle, _, err = c.Lookup(ctx, handle, name)
		if err != nil {
			return nil, fmt.Errorf("lookup %s: %w", clean, err)
		}
	}
	return handle, nil
}

// ReadDir reads all entries of a directory, one page per call.
func (c *Client) ReadDir(ctx context.Context, dirHandle []byte) ([]*api.DirEntry, error) {
	dirPath, known := c.handleCache.GetPath(dirHandle)

	var (
		entries  []*api.DirEntry
		cookie   uint64
		verifier uint64
	)
	for {
		resp, err := call(ctx, c, "ReadDir", func(ctx context.Context) (*api.ReadDirResponse, error) {
			return c.nfsClient.ReadDir(ctx, &api.ReadDirRequest{
				DirectoryHandle: dirHandle,
				Cookie:          cookie,
				CookieVerifier:  verifier,
				Count:           c.config.ReadDirCount,
				Credentials:     c.credentials(ctx),
			})
		})
		if err != nil {
			return nil, err
		}
		if err := StatusToError("ReadDir", resp.Status); err != nil {
			return nil, err
		}

		c.attrCache.Store(dirHandle, resp.DirectoryAttributes)
		for _, entry := range resp.Entries {
			c.attrCache.Store(entry.FileHandle, entry.Attributes)
			if known {
				c.handleCache.StorePathHandle(path.Join(dirPath, entry.Name), entry.FileHandle)
			}
		}
		entries = append(entries, resp.Entries...)

		if resp.Eof || len(resp.Entries) == 0 {
			return entries, nil
		}
		cookie = resp.Entries[len(resp.Entries)-1].Cookie
		verifier = resp.CookieVerifier
	}
}

// Mkdir creates a new directory. Only the mode of attrs is used, nil
// lets the server pick one.
func (c *Client) Mkdir(ctx context.Context, dirHandle []byte, name string, attrs *api.FileAttributes) ([]byte, *api.FileAttributes, error) {
	resp, err := call(ctx, c, "Mkdir", func(ctx context.Context) (*api.MkdirResponse, error) {
		return c.nfsClient.Mkdir(ctx, &api.MkdirRequest{
			DirectoryHandle: dirHandle,
			Name:            name,
			Attributes:      attrs,
			Credentials:     c.credentials(ctx),
		})
	})
	if err != nil {
		return nil, nil, err
	}

	c.attrCache.Invalidate(dirHandle)
	p, known := c.childPath(dirHandle, name)
	if known {
		c.invalidatePath(p)
	}
	if err := StatusToError("Mkdir", resp.Status); err != nil {
		return nil, nil, err
	}

	c.attrCache.Store(resp.FileHandle, resp.Attributes)
	if known {
		c.handleCache.StorePathHandle(p, resp.FileHandle)
	}
	return resp.FileHandle, resp.Attributes, nil
}

// Remove removes a file, symlink or empty directory
func (c *Client) Remove(ctx context.Context, dirHandle []byte, name string) error {
	resp, err := call(ctx, c, "Remove", func(ctx context.Context) (*api.RemoveResponse, error) {
		return c.nfsClient.Remove(ctx, &api.RemoveRequest{
			DirectoryHandle: dirHandle,
			Name:            name,
			Credentials:     c.credentials(ctx),
		})
	})
	if err != nil {
		return err
	}

	c.attrCache.Invalidate(dirHandle)
	if p, known := c.childPath(dirHandle, name); known {
		c.invalidatePath(p)
	}
	return StatusToError("Remove", resp.Status)
}

// Readlink returns the target of a symbolic link
func (c *Client) Readlink(ctx context.Context, fileHandle []byte) (string, error) {
	resp, err := call(ctx, c, "Readlink", func(ctx context.Context) (*api.ReadlinkResponse, error) {
		return c.nfsClient.Readlink(ctx, &api.ReadlinkRequest{
			FileHandle:  fileHandle,
			Credentials: c.credentials(ctx),
		})
	})
	if err != nil {
		return "", err
	}
	if err := StatusToError("Readlink", resp.Status); err != nil {
		return "", err
	}

	c.attrCache.Store(fileHandle, resp.Attributes)
	return resp.Target, nil
}

// Access returns the access bits the server grants out of access
func (c *Client) Access(ctx context.Context, fileHandle []byte, access uint32) (uint32, error) {
	resp, err := call(ctx, c, "Access", func(ctx context.Context) (*api.AccessResponse, error) {
		return c.nfsClient.Access(ctx, &api.AccessRequest{
			FileHandle:  fileHandle,
			Access:      access,
			Credentials: c.credentials(ctx),
		})
	})
	if err != nil {
		return 0, err
	}
	if err := StatusToError("Access", resp.Status); err != nil {
		return 0, err
	}

	c.attrCache.Store(fileHandle, resp.Attributes)
	return resp.Access, nil
}

func (c *Client) invalidatePath(p string) {
	for _, handle := range c.handleCache.InvalidatePath(p) {
		c.attrCache.Invalidate(handle)
	}
}
