package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const serviceName = "handlefs.NFSService"

// NFSServiceServer is the server side of the file service.
type NFSServiceServer interface {
	GetRootHandle(context.Context, *GetRootHandleRequest) (*GetRootHandleResponse, error)
	GetAttr(context.Context, *GetAttrRequest) (*GetAttrResponse, error)
	Lookup(context.Context, *LookupRequest) (*LookupResponse, error)
	ReadDir(context.Context, *ReadDirRequest) (*ReadDirResponse, error)
	Mkdir(context.Context, *MkdirRequest) (*MkdirResponse, error)
	Remove(context.Context, *RemoveRequest) (*RemoveResponse, error)
	Readlink(context.Context, *ReadlinkRequest) (*ReadlinkResponse, error)
	Access(context.Context, *AccessRequest) (*AccessResponse, error)
	Read(context.Context, *ReadRequest) (*ReadResponse, error)
	Write(context.Context, *WriteRequest) (*WriteResponse, error)
	Create(context.Context, *CreateRequest) (*CreateResponse, error)
	Rename(context.Context, *RenameRequest) (*RenameResponse, error)
	SetAttr(context.Context, *SetAttrRequest) (*SetAttrResponse, error)
}

// UnimplementedNFSServiceServer answers every call with codes.Unimplemented.
// Embed it to stay forward compatible.
type UnimplementedNFSServiceServer struct{}

func (UnimplementedNFSServiceServer) GetRootHandle(context.Context, *GetRootHandleRequest) (*GetRootHandleResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetRootHandle not implemented")
}
func (UnimplementedNFSServiceServer) GetAttr(context.Context, *GetAttrRequest) (*GetAttrResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetAttr not implemented")
}
func (UnimplementedNFSServiceServer) Lookup(context.Context, *LookupRequest) (*LookupResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Lookup not implemented")
}
func (UnimplementedNFSServiceServer) ReadDir(context.Context, *ReadDirRequest) (*ReadDirResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ReadDir not implemented")
}
func (UnimplementedNFSServiceServer) Mkdir(context.Context, *MkdirRequest) (*MkdirResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Mkdir not implemented")
}
func (UnimplementedNFSServiceServer) Remove(context.Context, *RemoveRequest) (*RemoveResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Remove not implemented")
}
func (UnimplementedNFSServiceServer) Readlink(context.Context, *ReadlinkRequest) (*ReadlinkResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Readlink not implemented")
}
func (UnimplementedNFSServiceServer) Access(context.Context, *AccessRequest) (*AccessResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Access not implemented")
}
func (UnimplementedNFSServiceServer) Read(context.Context, *ReadRequest) (*ReadResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Read not implemented")
}
func (UnimplementedNFSServiceServer) Write(context.Context, *WriteRequest) (*WriteResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Write not implemented")
}
func (UnimplementedNFSServiceServer) Create(context.Context, *CreateRequest) (*CreateResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Create not implemented")
}
func (UnimplementedNFSServiceServer) Rename(context.Context, *RenameRequest) (*RenameResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Rename not implemented")
}
func (UnimplementedNFSServiceServer) SetAttr(context.Context, *SetAttrRequest) (*SetAttrResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method SetAttr not implemented")
}

// RegisterNFSServiceServer registers srv on s. The server must be created
// with ServerOption so requests are decoded with Codec.
func RegisterNFSServiceServer(s grpc.ServiceRegistrar, srv NFSServiceServer) {
	s.RegisterService(&NFSService_ServiceDesc, srv)
}

// ServerOption forces Codec on a gRPC server.
func ServerOption() grpc.ServerOption {
	return grpc.ForceServerCodec(Codec{})
}

// unaryHandler adapts a typed service method to grpc.MethodHandler.
func unaryHandler[Req Message, Resp any](method string, newReq func() Req, call func(NFSServiceServer, context.Context, Req) (Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := newReq()
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(NFSServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + serviceName + "/" + method,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(NFSServiceServer), ctx, req.(Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// NFSService_ServiceDesc describes the file service for grpc.Server.
var NFSService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*NFSServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetRootHandle", Handler: unaryHandler("GetRootHandle", func() *GetRootHandleRequest { return new(GetRootHandleRequest) }, NFSServiceServer.GetRootHandle)},
		{MethodName: "GetAttr", Handler: unaryHandler("GetAttr", func() *GetAttrRequest { return new(GetAttrRequest) }, NFSServiceServer.GetAttr)},
		{MethodName: "Lookup", Handler: unaryHandler("Lookup", func() *LookupRequest { return new(LookupRequest) }, NFSServiceServer.Lookup)},
		{MethodName: "ReadDir", Handler: unaryHandler("ReadDir", func() *ReadDirRequest { return new(ReadDirRequest) }, NFSServiceServer.ReadDir)},
		{MethodName: "Mkdir", Handler: unaryHandler("Mkdir", func() *MkdirRequest { return new(MkdirRequest) }, NFSServiceServer.Mkdir)},
		{MethodName: "Remove", Handler: unaryHandler("Remove", func() *RemoveRequest { return new(RemoveRequest) }, NFSServiceServer.Remove)},
		{MethodName: "Readlink", Handler: unaryHandler("Readlink", func() *ReadlinkRequest { return new(ReadlinkRequest) }, NFSServiceServer.Readlink)},
		{MethodName: "Access", Handler: unaryHandler("Access", func() *AccessRequest { return new(AccessRequest) }, NFSServiceServer.Access)},
		{MethodName: "Read", Handler: unaryHandler("Read", func() *ReadRequest { return new(ReadRequest) }, NFSServiceServer.Read)},
		{MethodName: "Write", Handler: unaryHandler("Write", func() *WriteRequest { return new(WriteRequest) }, NFSServiceServer.Write)},
		{MethodName: "Create", Handler: unaryHandler("Create", func() *CreateRequest { return new(CreateRequest) }, NFSServiceServer.Create)},
		{MethodName: "Rename", Handler: unaryHandler("Rename", func() *RenameRequest { return new(RenameRequest) }, NFSServiceServer.Rename)},
		{MethodName: "SetAttr", Handler: unaryHandler("SetAttr", func() *SetAttrRequest { return new(SetAttrRequest) }, NFSServiceServer.SetAttr)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "handlefs/nfs.proto",
}

// NFSServiceClient is the client side of the file service.
type NFSServiceClient interface {
	GetRootHandle(ctx context.Context, in *GetRootHandleRequest, opts ...grpc.CallOption) (*GetRootHandleResponse, error)
	GetAttr(ctx context.Context, in *GetAttrRequest, opts ...grpc.CallOption) (*GetAttrResponse, error)
	Lookup(ctx context.Context, in *LookupRequest, opts ...grpc.CallOption) (*LookupResponse, error)
	ReadDir(ctx context.Context, in *ReadDirRequest, opts ...grpc.CallOption) (*ReadDirResponse, error)
	Mkdir(ctx context.Context, in *MkdirRequest, opts ...grpc.CallOption) (*MkdirResponse, error)
	Remove(ctx context.Context, in *RemoveRequest, opts ...grpc.CallOption) (*RemoveResponse, error)
	Readlink(ctx context.Context, in *ReadlinkRequest, opts ...grpc.CallOption) (*ReadlinkResponse, error)
	Access(ctx context.Context, in *AccessRequest, opts ...grpc.CallOption) (*AccessResponse, error)
	Read(ctx context.Context, in *ReadRequest, opts ...grpc.CallOption) (*ReadResponse, error)
	Write(ctx context.Context, in *WriteRequest, opts ...grpc.CallOption) (*WriteResponse, error)
	Create(ctx context.Context, in *CreateRequest, opts ...grpc.CallOption) (*CreateResponse, error)
	Rename(ctx context.Context, in *RenameRequest, opts ...grpc.CallOption) (*RenameResponse, error)
	SetAttr(ctx context.Context, in *SetAttrRequest, opts ...grpc.CallOption) (*SetAttrResponse, error)
}

type nfsServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewNFSServiceClient returns a client that encodes calls with Codec.
func NewNFSServiceClient(cc grpc.ClientConnInterface) NFSServiceClient {
	return &nfsServiceClient{cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in Message, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, "/"+serviceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *nfsServiceClient) GetRootHandle(ctx context.Context, in *GetRootHandleRequest, opts ...grpc.CallOption) (*GetRootHandleResponse, error) {
	return invoke[GetRootHandleResponse](ctx, c.cc, "GetRootHandle", in, opts)
}

func (c *nfsServiceClient) GetAttr(ctx context.Context, in *GetAttrRequest, opts ...grpc.CallOption) (*GetAttrResponse, error) {
	return invoke[GetAttrResponse](ctx, c.cc, "GetAttr", in, opts)
}

func (c *nfsServiceClient) Lookup(ctx context.Context, in *LookupRequest, opts ...grpc.CallOption) (*LookupResponse, error) {
	return invoke[LookupResponse](ctx, c.cc, "Lookup", in, opts)
}

func (c *nfsServiceClient) ReadDir(ctx context.Context, in *ReadDirRequest, opts ...grpc.CallOption) (*ReadDirResponse, error) {
	return invoke[ReadDirResponse](ctx, c.cc, "ReadDir", in, opts)
}

func (c *nfsServiceClient) Mkdir(ctx context.Context, in *MkdirRequest, opts ...grpc.CallOption) (*MkdirResponse, error) {
	return invoke[MkdirResponse](ctx, c.cc, "Mkdir", in, opts)
}

func (c *nfsServiceClient) Remove(ctx context.Context, in *RemoveRequest, opts ...grpc.CallOption) (*RemoveResponse, error) {
	return invoke[RemoveResponse](ctx, c.cc, "Remove", in, opts)
}

func (c *nfsServiceClient) Readlink(ctx context.Context, in *ReadlinkRequest, opts ...grpc.CallOption) (*ReadlinkResponse, error) {
	return invoke[ReadlinkResponse](ctx, c.cc, "Readlink", in, opts)
}

func (c *nfsServiceClient) Access(ctx context.Context, in *AccessRequest, opts ...grpc.CallOption) (*AccessResponse, error) {
	return invoke[AccessResponse](ctx, c.cc, "Access", in, opts)
}

func (c *nfsServiceClient) Read(ctx context.Context, in *ReadRequest, opts ...grpc.CallOption) (*ReadResponse, error) {
	return invoke[ReadResponse](ctx, c.cc, "Read", in, opts)
}

func (c *nfsServiceClient) Write(ctx context.Context, in *WriteRequest, opts ...grpc.CallOption) (*WriteResponse, error) {
	return invoke[WriteResponse](ctx, c.cc, "Write", in, opts)
}

func (c *nfsServiceClient) Create(ctx context.Context, in *CreateRequest, opts ...grpc.CallOption) (*CreateResponse, error) {
	return invoke[CreateResponse](ctx, c.cc, "Create", in, opts)
}

func (c *nfsServiceClient) Rename(ctx context.Context, in *RenameRequest, opts ...grpc.CallOption) (*RenameResponse, error) {
	return invoke[RenameResponse](ctx, c.cc, "Rename", in, opts)
}

func (c *nfsServiceClient) SetAttr(ctx context.Context, in *SetAttrRequest, opts ...grpc.CallOption) (*SetAttrResponse, error) {
	return invoke[SetAttrResponse](ctx, c.cc, "SetAttr", in, opts)
}
