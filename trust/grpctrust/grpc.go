package grpctrust

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Service methods use protobuf well-known wrapper types so no protoc/codegen
// toolchain is needed:
//
//	service Trust {
//	  rpc ResolveKey(google.protobuf.StringValue) returns (google.protobuf.BytesValue);
//	  rpc FetchStatusList(google.protobuf.StringValue) returns (google.protobuf.BytesValue);
//	}
const (
	serviceName           = "xdao.vcb.trust.v1.Trust"
	methodResolveKey      = "/" + serviceName + "/ResolveKey"
	methodFetchStatusList = "/" + serviceName + "/FetchStatusList"
)

// TrustServer is the server API for the Trust gRPC service. ResolveKey
// returns a proof.PublicKey in its binary form.
type TrustServer interface {
	ResolveKey(context.Context, *wrapperspb.StringValue) (*wrapperspb.BytesValue, error)
	FetchStatusList(context.Context, *wrapperspb.StringValue) (*wrapperspb.BytesValue, error)
}

// UnimplementedTrustServer can be embedded to have forward compatible implementations.
type UnimplementedTrustServer struct{}

func (UnimplementedTrustServer) ResolveKey(context.Context, *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	return nil, status.Error(codes.Unimplemented, "method ResolveKey not implemented")
}
func (UnimplementedTrustServer) FetchStatusList(context.Context, *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	return nil, status.Error(codes.Unimplemented, "method FetchStatusList not implemented")
}

// RegisterTrustServer registers the Trust service on a gRPC server.
func RegisterTrustServer(s grpc.ServiceRegistrar, srv TrustServer) {
	s.RegisterService(&Trust_ServiceDesc, srv)
}

// TrustClient is the client API for the Trust gRPC service.
type TrustClient interface {
	ResolveKey(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error)
	FetchStatusList(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error)
}

type trustClient struct{ cc grpc.ClientConnInterface }

func NewTrustClient(cc grpc.ClientConnInterface) TrustClient { return &trustClient{cc: cc} }

func (c *trustClient) ResolveKey(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	out := new(wrapperspb.BytesValue)
	if err := c.cc.Invoke(ctx, methodResolveKey, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *trustClient) FetchStatusList(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	out := new(wrapperspb.BytesValue)
	if err := c.cc.Invoke(ctx, methodFetchStatusList, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func _Trust_ResolveKey_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TrustServer).ResolveKey(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodResolveKey}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TrustServer).ResolveKey(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func _Trust_FetchStatusList_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TrustServer).FetchStatusList(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodFetchStatusList}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TrustServer).FetchStatusList(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// Trust_ServiceDesc is the grpc.ServiceDesc for the Trust service.
var Trust_ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*TrustServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ResolveKey", Handler: _Trust_ResolveKey_Handler},
		{MethodName: "FetchStatusList", Handler: _Trust_FetchStatusList_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "trust.proto",
}
