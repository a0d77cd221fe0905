// Package grpctrust exposes a trust.Resolver over gRPC, so a fleet of
// verifiers can share one key registry and status list mirror.
package grpctrust

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/vcb/trust"
)

// Server serves a trust.Resolver.
type Server struct {
	UnimplementedTrustServer
	Resolver trust.Resolver
}

func (s *Server) ResolveKey(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	if s == nil || s.Resolver == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing resolver")
	}
	if in.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "empty key id")
	}
	pub, err := s.Resolver.ResolveKey(ctx, in.GetValue())
	if err != nil {
		return nil, mapErr(err)
	}
	b, err := pub.MarshalBinary()
	if err != nil {
		return nil, status.Error(codes.Internal, "marshal public key")
	}
	return wrapperspb.Bytes(b), nil
}

func (s *Server) FetchStatusList(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	if s == nil || s.Resolver == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing resolver")
	}
	if in.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "empty list id")
	}
	b, err := s.Resolver.FetchStatusList(ctx, in.GetValue())
	if err != nil {
		return nil, mapErr(err)
	}
	return wrapperspb.Bytes(b), nil
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, trust.ErrNotFound):
		return status.Error(codes.NotFound, trust.ErrNotFound.Error())
	case errors.Is(err, trust.ErrUnavailable):
		return status.Error(codes.Unavailable, trust.ErrUnavailable.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
