package node

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	serviceName = "ringstore.StorageNode"

	methodFetch  = "/" + serviceName + "/Fetch"
	methodStore  = "/" + serviceName + "/Store"
	methodList   = "/" + serviceName + "/List"
	methodDelete = "/" + serviceName + "/Delete"
	methodHealth = "/" + serviceName + "/Health"

	// Metadata carried by Store calls. The -bin suffix lets paths hold any bytes.
	pathMetadataKey      = "x-ringstore-path-bin"
	requestIDMetadataKey = "x-request-id"
)

// StorageNodeServer is the server API for the StorageNode service.
// Messages are protobuf well-known types, so no generated code is needed.
type StorageNodeServer interface {
	// Fetch returns the content stored under the requested path.
	Fetch(context.Context, *wrapperspb.StringValue) (*wrapperspb.BytesValue, error)
	// Store saves the content under the path carried in request metadata.
	Store(context.Context, *wrapperspb.BytesValue) (*emptypb.Empty, error)
	// List returns every stored path.
	List(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
	// Delete removes the requested path.
	Delete(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
	// Health returns the node ID.
	Health(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error)
}

// RegisterStorageNodeServer registers srv on s.
func RegisterStorageNodeServer(s grpc.ServiceRegistrar, srv StorageNodeServer) {
	s.RegisterService(&storageNodeServiceDesc, srv)
}

var storageNodeServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*StorageNodeServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Fetch", Handler: unaryHandler(methodFetch, StorageNodeServer.Fetch)},
		{MethodName: "Store", Handler: unaryHandler(methodStore, StorageNodeServer.Store)},
		{MethodName: "List", Handler: unaryHandler(methodList, StorageNodeServer.List)},
		{MethodName: "Delete", Handler: unaryHandler(methodDelete, StorageNodeServer.Delete)},
		{MethodName: "Health", Handler: unaryHandler(methodHealth, StorageNodeServer.Health)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ringstore/storage_node.proto",
}

// unaryHandler adapts a typed StorageNodeServer method to a grpc.MethodHandler.
func unaryHandler[Req, Resp any](
	fullMethod string,
	call func(StorageNodeServer, context.Context, *Req) (*Resp, error),
) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(StorageNodeServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(StorageNodeServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}
