// Package server implements the file service over a VirtualFileSystem.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/containerd/log"
	"github.com/google/uuid"
	"golang.org/x/net/netutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/example/handlefs/pkg/api"
	"github.com/example/handlefs/pkg/fs"
	"github.com/example/handlefs/pkg/nfs"
)

// defaultDirMode is used by Mkdir when the request carries no mode.
const defaultDirMode = 0o755

// NFSServer implements the file service.
type NFSServer struct {
	api.UnimplementedNFSServiceServer

	config *Config

	// The underlying filesystem implementation
	fileSystem fs.VirtualFileSystem

	// Worker pool for limiting concurrent requests
	workerPool chan struct{}

	metrics *Metrics

	mu         sync.Mutex
	grpcServer *grpc.Server
	stopped    bool
}

// NewNFSServer creates a new file server.
func NewNFSServer(config *Config, fileSystem fs.VirtualFileSystem) (*NFSServer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &NFSServer{
		config:     config,
		fileSystem: fileSystem,
		workerPool: make(chan struct{}, config.MaxConcurrent),
		metrics:    NewMetrics(),
	}, nil
}

// MetricsHandler serves the server's Prometheus metrics.
func (s *NFSServer) MetricsHandler() http.Handler {
	return s.metrics.Handler()
}

// Start listens on the configured address and serves until ctx is done or
// the server is stopped.
func (s *NFSServer) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	log.G(ctx).WithField("address", lis.Addr().String()).Info("file server starting")
	return s.Serve(lis)
}

// Serve accepts connections on lis. At most MaxConnections are served at
// once.
func (s *NFSServer) Serve(lis net.Listener) error {
	if s.config.MaxConnections > 0 {
		lis = netutil.LimitListener(lis, s.config.MaxConnections)
	}

	grpcServer := grpc.NewServer(
		api.ServerOption(),
		grpc.ChainUnaryInterceptor(s.metrics.UnaryInterceptor()),
	)
	api.RegisterNFSServiceServer(grpcServer, s)

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return lis.Close()
	}
	s.grpcServer = grpcServer
	s.mu.Unlock()

	if err := grpcServer.Serve(lis); err != nil {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

// Stop waits for in-flight requests and shuts the server down.
func (s *NFSServer) Stop() {
	s.mu.Lock()
	grpcServer := s.grpcServer
	s.stopped = true
	s.mu.Unlock()

	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
}

// acquireWorker gets a worker from the pool or gives up with ctx
func (s *NFSServer) acquireWorker(ctx context.Context) error {
	select {
	case s.workerPool <- struct{}{}:
		s.metrics.inflight.Inc()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// releaseWorker returns a worker to the pool
func (s *NFSServer) releaseWorker() {
	s.metrics.inflight.Dec()
	<-s.workerPool
}

// squash applies root squashing to the caller's credentials.
func (s *NFSServer) squash(creds fs.Credentials) fs.Credentials {
	if s.config.EnableRootSquash && creds.UID == 0 {
		creds.UID = s.config.AnonUID
		creds.GID = s.config.AnonGID
	}
	return creds
}

func clientAddress(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return "unknown"
}

// processRequest handles the logic shared by every RPC: request id, logging,
// worker pool and timeout. process returns the response and its status; only
// a request that never got a worker fails at the gRPC level.
func processRequest[Resp any](ctx context.Context, s *NFSServer, op string, creds *api.Credentials,
	process func(ctx context.Context, creds fs.Credentials) (Resp, api.Status)) (Resp, error) {

	reqID := uuid.NewString()
	ctx = log.WithLogger(ctx, log.G(ctx).WithField("req", reqID))
	nfs.LogRequest(ctx, op, reqID, clientAddress(ctx))
	startTime := time.Now()

	if timeout := s.config.requestTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := s.acquireWorker(ctx); err != nil {
		nfs.LogError(ctx, op, reqID, err)
		var zero Resp
		return zero, status.Errorf(codes.ResourceExhausted, "%s: no worker available: %v", op, err)
	}
	defer s.releaseWorker()

	resp, st := process(ctx, s.squash(nfs.ProtoCredsToFSCreds(creds)))

	s.metrics.observeStatus(op, st)
	nfs.LogResponse(ctx, op, reqID, st, time.Since(startTime))
	return resp, nil
}

// errorStatus maps a backend error and logs it.
func errorStatus(ctx context.Context, op string, err error) api.Status {
	st := nfs.MapErrorToStatus(ctx, err)
	log.G(ctx).WithError(err).WithFields(log.Fields{
		"op":     op,
		"status": st.String(),
	}).Debug("backend error")
	return st
}

// validateFileHandle verifies a handle can be decoded by the backend.
func validateFileHandle(handle []byte) (fs.Inode, error) {
	if len(handle) == 0 {
		return nil, nfs.NewNFSError(api.Status_ERR_BADHANDLE, "empty handle", fs.ErrInvalidHandle)
	}
	if len(handle) > fs.MaxHandleSize {
		return nil, nfs.NewNFSError(api.Status_ERR_BADHANDLE,
			fmt.Sprintf("handle of %d bytes exceeds %d", len(handle), fs.MaxHandleSize), fs.ErrInvalidHandle)
	}
	return fs.Inode(handle), nil
}

// validateName rejects names that are not a single path component.
func validateName(name string) error {
	if name == "" || strings.ContainsRune(name, '/') {
		return nfs.NewNFSError(api.Status_ERR_INVAL, fmt.Sprintf("invalid name %q", name), fs.ErrInvalidName)
	}
	return nil
}

// attributes fetches the attribute sheet of inode, nil if it fails.
func (s *NFSServer) attributes(ctx context.Context, inode fs.Inode) *api.FileAttributes {
	info, err := s.fileSystem.GetAttr(ctx, inode)
	if err != nil {
		log.G(ctx).WithError(err).Debug("post-operation attributes unavailable")
		return nil
	}
	return nfs.FSInfoToProtoAttributes(info)
}

// GetRootHandle returns the handle and attributes of the export root.
func (s *NFSServer) GetRootHandle(ctx context.Context, req *api.GetRootHandleRequest) (*api.GetRootHandleResponse, error) {
	return processRequest(ctx, s, "GetRootHandle", req.Credentials, func(ctx context.Context, _ fs.Credentials) (*api.GetRootHandleResponse, api.Status) {
		root, err := s.fileSystem.RootInode(ctx)
		if err != nil {
			st := errorStatus(ctx, "GetRootHandle", err)
			return &api.GetRootHandleResponse{Status: st}, st
		}
		info, err := s.fileSystem.GetAttr(ctx, root)
		if err != nil {
			st := errorStatus(ctx, "GetRootHandle", err)
			return &api.GetRootHandleResponse{Status: st}, st
		}
		return &api.GetRootHandleResponse{
			Status:     api.Status_OK,
			FileHandle: root,
			Attributes: nfs.FSInfoToProtoAttributes(info),
		}, api.Status_OK
	})
}

// GetAttr implements the GetAttr RPC method
func (s *NFSServer) GetAttr(ctx context.Context, req *api.GetAttrRequest) (*api.GetAttrResponse, error) {
	return processRequest(ctx, s, "GetAttr", req.Credentials, func(ctx context.Context, _ fs.Credentials) (*api.GetAttrResponse, api.Status) {
		inode, err := validateFileHandle(req.FileHandle)
		if err != nil {
			return &api.GetAttrResponse{Status: api.Status_ERR_BADHANDLE}, api.Status_ERR_BADHANDLE
		}

		info, err := s.fileSystem.GetAttr(ctx, inode)
		if err != nil {
			st := errorStatus(ctx, "GetAttr", err)
			return &api.GetAttrResponse{Status: st}, st
		}
		return &api.GetAttrResponse{
			Status:     api.Status_OK,
			Attributes: nfs.FSInfoToProtoAttributes(info),
		}, api.Status_OK
	})
}

// Lookup implements the Lookup RPC method. "." names the directory itself;
// ".." needs the parent of a handle, which the backend does not provide.
func (s *NFSServer) Lookup(ctx context.Context, req *api.LookupRequest) (*api.LookupResponse, error) {
	return processRequest(ctx, s, "Lookup", req.Credentials, func(ctx context.Context, _ fs.Credentials) (*api.LookupResponse, api.Status) {
		dir, err := validateFileHandle(req.DirectoryHandle)
		if err != nil {
			return &api.LookupResponse{Status: api.Status_ERR_BADHANDLE}, api.Status_ERR_BADHANDLE
		}
		if err := validateName(req.Name); err != nil {
			return &api.LookupResponse{Status: api.Status_ERR_INVAL}, api.Status_ERR_INVAL
		}

		var inode fs.Inode
		switch req.Name {
		case ".":
			inode = dir
		case "..":
			inode, err = s.fileSystem.ParentOf(ctx, dir)
		default:
			inode, err = s.fileSystem.Lookup(ctx, dir, req.Name)
		}
		if err != nil {
			st := errorStatus(ctx, "Lookup", err)
			return &api.LookupResponse{
				Status:              st,
				DirectoryAttributes: s.attributes(ctx, dir),
			}, st
		}

		info, err := s.fileSystem.GetAttr(ctx, inode)
		if err != nil {
			st := errorStatus(ctx, "Lookup", err)
			return &api.LookupResponse{Status: st}, st
		}
		return &api.LookupResponse{
			Status:              api.Status_OK,
			FileHandle:          inode,
			Attributes:          nfs.FSInfoToProtoAttributes(info),
			DirectoryAttributes: s.attributes(ctx, dir),
		}, api.Status_OK
	})
}

// ReadDir implements the ReadDir RPC method. Cookies are 1-based entry
// positions; the cookie verifier is the directory's modification time, so a
// continuation is refused once the directory changed.
func (s *NFSServer) ReadDir(ctx context.Context, req *api.ReadDirRequest) (*api.ReadDirResponse, error) {
	return processRequest(ctx, s, "ReadDir", req.Credentials, func(ctx context.Context, _ fs.Credentials) (*api.ReadDirResponse, api.Status) {
		dir, err := validateFileHandle(req.DirectoryHandle)
		if err != nil {
			return &api.ReadDirResponse{Status: api.Status_ERR_BADHANDLE}, api.Status_ERR_BADHANDLE
		}

		dirInfo, err := s.fileSystem.GetAttr(ctx, dir)
		if err != nil {
			st := errorStatus(ctx, "ReadDir", err)
			return &api.ReadDirResponse{Status: st}, st
		}
		if !dirInfo.IsDir() {
			return &api.ReadDirResponse{Status: api.Status_ERR_NOTDIR}, api.Status_ERR_NOTDIR
		}
		verifier := uint64(dirInfo.ModifyTime.UnixMilli())
		if req.Cookie != 0 && req.CookieVerifier != 0 && req.CookieVerifier != verifier {
			return &api.ReadDirResponse{Status: api.Status_ERR_BAD_COOKIE}, api.Status_ERR_BAD_COOKIE
		}

		entries, err := s.fileSystem.List(ctx, dir)
		if err != nil {
			st := errorStatus(ctx, "ReadDir", err)
			return &api.ReadDirResponse{Status: st}, st
		}
		if req.Cookie > uint64(len(entries)) {
			return &api.ReadDirResponse{Status: api.Status_ERR_BAD_COOKIE}, api.Status_ERR_BAD_COOKIE
		}

		// Determine the maximum number of entries to return
		maxCount := int(req.Count)
		if maxCount <= 0 {
			maxCount = 1000
		} else if maxCount > 10000 {
			maxCount = 10000
		}

		start := int(req.Cookie)
		end := start + maxCount
		if end > len(entries) {
			end = len(entries)
		}

		protoEntries := make([]*api.DirEntry, 0, end-start)
		for i, entry := range entries[start:end] {
			protoEntries = append(protoEntries, &api.DirEntry{
				FileId:     entry.Attr.FileID,
				Name:       entry.Name,
				Cookie:     uint64(start + i + 1),
				FileHandle: entry.Inode,
				Attributes: nfs.FSInfoToProtoAttributes(entry.Attr),
			})
		}

		return &api.ReadDirResponse{
			Status:              api.Status_OK,
			Entries:             protoEntries,
			CookieVerifier:      verifier,
			Eof:                 end == len(entries),
			DirectoryAttributes: nfs.FSInfoToProtoAttributes(dirInfo),
		}, api.Status_OK
	})
}

// Mkdir implements the Mkdir RPC method. The new directory is owned by the
// caller after root squashing.
func (s *NFSServer) Mkdir(ctx context.Context, req *api.MkdirRequest) (*api.MkdirResponse, error) {
	return processRequest(ctx, s, "Mkdir", req.Credentials, func(ctx context.Context, creds fs.Credentials) (*api.MkdirResponse, api.Status) {
		dir, err := validateFileHandle(req.DirectoryHandle)
		if err != nil {
			return &api.MkdirResponse{Status: api.Status_ERR_BADHANDLE}, api.Status_ERR_BADHANDLE
		}
		if err := validateName(req.Name); err != nil {
			return &api.MkdirResponse{Status: api.Status_ERR_INVAL}, api.Status_ERR_INVAL
		}

		mode := uint32(defaultDirMode)
		if attr := nfs.ProtoAttributesToFSAttr(req.Attributes); attr.Mode != nil {
			mode = *attr.Mode
		}

		inode, err := s.fileSystem.Mkdir(ctx, dir, req.Name, creds.UID, creds.GID, mode)
		if err != nil {
			st := errorStatus(ctx, "Mkdir", err)
			return &api.MkdirResponse{Status: st}, st
		}
		return &api.MkdirResponse{
			Status:     api.Status_OK,
			FileHandle: inode,
			Attributes: s.attributes(ctx, inode),
		}, api.Status_OK
	})
}

// Remove implements the Remove RPC method for files and directories alike.
func (s *NFSServer) Remove(ctx context.Context, req *api.RemoveRequest) (*api.RemoveResponse, error) {
	return processRequest(ctx, s, "Remove", req.Credentials, func(ctx context.Context, _ fs.Credentials) (*api.RemoveResponse, api.Status) {
		dir, err := validateFileHandle(req.DirectoryHandle)
		if err != nil {
			return &api.RemoveResponse{Status: api.Status_ERR_BADHANDLE}, api.Status_ERR_BADHANDLE
		}
		if err := validateName(req.Name); err != nil {
			return &api.RemoveResponse{Status: api.Status_ERR_INVAL}, api.Status_ERR_INVAL
		}

		if err := s.fileSystem.Remove(ctx, dir, req.Name); err != nil {
			st := errorStatus(ctx, "Remove", err)
			return &api.RemoveResponse{Status: st}, st
		}
		return &api.RemoveResponse{Status: api.Status_OK}, api.Status_OK
	})
}

// Readlink implements the Readlink RPC method
func (s *NFSServer) Readlink(ctx context.Context, req *api.ReadlinkRequest) (*api.ReadlinkResponse, error) {
	return processRequest(ctx, s, "Readlink", req.Credentials, func(ctx context.Context, _ fs.Credentials) (*api.ReadlinkResponse, api.Status) {
		inode, err := validateFileHandle(req.FileHandle)
		if err != nil {
			return &api.ReadlinkResponse{Status: api.Status_ERR_BADHANDLE}, api.Status_ERR_BADHANDLE
		}

		target, err := s.fileSystem.Readlink(ctx, inode)
		if err != nil {
			st := errorStatus(ctx, "Readlink", err)
			return &api.ReadlinkResponse{Status: st}, st
		}
		return &api.ReadlinkResponse{
			Status:     api.Status_OK,
			Target:     target,
			Attributes: s.attributes(ctx, inode),
		}, api.Status_OK
	})
}

// Access implements the Access RPC method
func (s *NFSServer) Access(ctx context.Context, req *api.AccessRequest) (*api.AccessResponse, error) {
	return processRequest(ctx, s, "Access", req.Credentials, func(ctx context.Context, _ fs.Credentials) (*api.AccessResponse, api.Status) {
		inode, err := validateFileHandle(req.FileHandle)
		if err != nil {
			return &api.AccessResponse{Status: api.Status_ERR_BADHANDLE}, api.Status_ERR_BADHANDLE
		}

		granted, err := s.fileSystem.Access(ctx, inode, req.Access)
		if err != nil {
			st := errorStatus(ctx, "Access", err)
			return &api.AccessResponse{Status: st}, st
		}
		return &api.AccessResponse{
			Status:     api.Status_OK,
			Access:     granted,
			Attributes: s.attributes(ctx, inode),
		}, api.Status_OK
	})
}

// Read forwards to the backend.
func (s *NFSServer) Read(ctx context.Context, req *api.ReadRequest) (*api.ReadResponse, error) {
	return processRequest(ctx, s, "Read", req.Credentials, func(ctx context.Context, _ fs.Credentials) (*api.ReadResponse, api.Status) {
		inode, err := validateFileHandle(req.FileHandle)
		if err != nil {
			return &api.ReadResponse{Status: api.Status_ERR_BADHANDLE}, api.Status_ERR_BADHANDLE
		}

		count := req.Count
		if count > uint32(s.config.MaxReadSize) {
			count = uint32(s.config.MaxReadSize)
		}

		data := make([]byte, count)
		n, err := s.fileSystem.Read(ctx, inode, data, int64(req.Offset))
		if err != nil {
			st := errorStatus(ctx, "Read", err)
			return &api.ReadResponse{Status: st}, st
		}
		return &api.ReadResponse{
			Status: api.Status_OK,
			Data:   data[:n],
			Eof:    n < len(data),
		}, api.Status_OK
	})
}

// Write forwards to the backend.
func (s *NFSServer) Write(ctx context.Context, req *api.WriteRequest) (*api.WriteResponse, error) {
	return processRequest(ctx, s, "Write", req.Credentials, func(ctx context.Context, _ fs.Credentials) (*api.WriteResponse, api.Status) {
		inode, err := validateFileHandle(req.FileHandle)
		if err != nil {
			return &api.WriteResponse{Status: api.Status_ERR_BADHANDLE}, api.Status_ERR_BADHANDLE
		}

		res, err := s.fileSystem.Write(ctx, inode, req.Data, int64(req.Offset), fs.StabilityLevel(req.Stability))
		if err != nil {
			st := errorStatus(ctx, "Write", err)
			return &api.WriteResponse{Status: st}, st
		}
		return &api.WriteResponse{
			Status:    api.Status_OK,
			Count:     uint32(res.Count),
			Stability: uint32(res.Stability),
		}, api.Status_OK
	})
}

// Create forwards to the backend.
func (s *NFSServer) Create(ctx context.Context, req *api.CreateRequest) (*api.CreateResponse, error) {
	return processRequest(ctx, s, "Create", req.Credentials, func(ctx context.Context, creds fs.Credentials) (*api.CreateResponse, api.Status) {
		dir, err := validateFileHandle(req.DirectoryHandle)
		if err != nil {
			return &api.CreateResponse{Status: api.Status_ERR_BADHANDLE}, api.Status_ERR_BADHANDLE
		}
		if err := validateName(req.Name); err != nil {
			return &api.CreateResponse{Status: api.Status_ERR_INVAL}, api.Status_ERR_INVAL
		}

		var mode uint32 = 0o644
		if attr := nfs.ProtoAttributesToFSAttr(req.Attributes); attr.Mode != nil {
			mode = *attr.Mode
		}
		inode, err := s.fileSystem.Create(ctx, dir, fs.FileTypeRegular, req.Name, creds.UID, creds.GID, mode)
		if err != nil {
			st := errorStatus(ctx, "Create", err)
			return &api.CreateResponse{Status: st}, st
		}
		return &api.CreateResponse{
			Status:     api.Status_OK,
			FileHandle: inode,
			Attributes: s.attributes(ctx, inode),
		}, api.Status_OK
	})
}

// Rename forwards to the backend.
func (s *NFSServer) Rename(ctx context.Context, req *api.RenameRequest) (*api.RenameResponse, error) {
	return processRequest(ctx, s, "Rename", req.Credentials, func(ctx context.Context, _ fs.Credentials) (*api.RenameResponse, api.Status) {
		from, err := validateFileHandle(req.FromDirHandle)
		if err != nil {
			return &api.RenameResponse{Status: api.Status_ERR_BADHANDLE}, api.Status_ERR_BADHANDLE
		}
		to, err := validateFileHandle(req.ToDirHandle)
		if err != nil {
			return &api.RenameResponse{Status: api.Status_ERR_BADHANDLE}, api.Status_ERR_BADHANDLE
		}
		if validateName(req.FromName) != nil || validateName(req.ToName) != nil {
			return &api.RenameResponse{Status: api.Status_ERR_INVAL}, api.Status_ERR_INVAL
		}

		if err := s.fileSystem.Rename(ctx, from, req.FromName, to, req.ToName); err != nil {
			st := errorStatus(ctx, "Rename", err)
			return &api.RenameResponse{Status: st}, st
		}
		return &api.RenameResponse{Status: api.Status_OK}, api.Status_OK
	})
}

// SetAttr forwards to the backend.
func (s *NFSServer) SetAttr(ctx context.Context, req *api.SetAttrRequest) (*api.SetAttrResponse, error) {
	return processRequest(ctx, s, "SetAttr", req.Credentials, func(ctx context.Context, _ fs.Credentials) (*api.SetAttrResponse, api.Status) {
		inode, err := validateFileHandle(req.FileHandle)
		if err != nil {
			return &api.SetAttrResponse{Status: api.Status_ERR_BADHANDLE}, api.Status_ERR_BADHANDLE
		}

		if err := s.fileSystem.SetAttr(ctx, inode, nfs.ProtoAttributesToFSAttr(req.Attributes)); err != nil {
			st := errorStatus(ctx, "SetAttr", err)
			return &api.SetAttrResponse{Status: st}, st
		}
		return &api.SetAttrResponse{
			Status:     api.Status_OK,
			Attributes: s.attributes(ctx, inode),
		}, api.Status_OK
	})
}
