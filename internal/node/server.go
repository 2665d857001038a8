package node

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"ringstore/internal/metrics"
	"ringstore/internal/storage"
)

// Server implements the StorageNode gRPC service over a local store.
type Server struct {
	store   storage.Store
	nodeID  string
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewServer creates a new gRPC server instance.
func NewServer(store storage.Store, nodeID string, logger *zap.Logger, m *metrics.Metrics) *Server {
	return &Server{
		store:   store,
		nodeID:  nodeID,
		logger:  logger.With(zap.String("node_id", nodeID)),
		metrics: m,
	}
}

// Fetch handles Fetch requests.
func (s *Server) Fetch(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	path := req.GetValue()
	s.logger.Debug("fetch", zap.String("path", path))

	if path == "" {
		return nil, status.Error(codes.InvalidArgument, "path cannot be empty")
	}

	f, err := s.store.Get(path)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, status.Errorf(codes.NotFound, "%s: %v", path, err)
	}
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return wrapperspb.Bytes(f.Content), nil
}

// Store handles Store requests.
func (s *Server) Store(ctx context.Context, req *wrapperspb.BytesValue) (*emptypb.Empty, error) {
	path, requestID := storeMetadata(ctx)
	s.logger.Debug("store",
		zap.String("path", path),
		zap.String("request_id", requestID),
		zap.Int("bytes", len(req.GetValue())))

	if path == "" {
		return nil, status.Error(codes.InvalidArgument, "path cannot be empty")
	}

	s.store.Put(path, req.GetValue())
	s.metrics.StoredFiles.Set(float64(s.store.Len()))
	return &emptypb.Empty{}, nil
}

// List handles List requests.
func (s *Server) List(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	paths := s.store.List()
	values := make([]*structpb.Value, 0, len(paths))
	for _, p := range paths {
		values = append(values, structpb.NewStringValue(p))
	}
	return &structpb.ListValue{Values: values}, nil
}

// Delete handles Delete requests.
func (s *Server) Delete(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	path := req.GetValue()
	s.logger.Debug("delete", zap.String("path", path))

	if err := s.store.Delete(path); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, status.Errorf(codes.NotFound, "%s: %v", path, err)
		}
		return nil, status.Error(codes.Internal, err.Error())
	}
	s.metrics.StoredFiles.Set(float64(s.store.Len()))
	return &emptypb.Empty{}, nil
}

// Health handles Health requests.
func (s *Server) Health(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.StringValue, error) {
	return wrapperspb.String(s.nodeID), nil
}

// unaryMetrics counts every RPC by method and status code.
func (s *Server) unaryMetrics(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	resp, err := handler(ctx, req)
	s.metrics.StorageRequests.WithLabelValues(info.FullMethod, status.Code(err).String()).Inc()
	return resp, err
}

func storeMetadata(ctx context.Context) (path, requestID string) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", ""
	}
	if v := md.Get(pathMetadataKey); len(v) > 0 {
		path = v[0]
	}
	if v := md.Get(requestIDMetadataKey); len(v) > 0 {
		requestID = v[0]
	}
	return path, requestID
}
