package searcher

import (
	"context"
	"encoding/json"
	"net/http"

	apperrors "github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/grpc"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/proto"
)

// RegisterRPC exposes Compile and Query on srv.
func (s *Service) RegisterRPC(srv *grpc.Server) {
	srv.Register(proto.MethodCompile, func(ctx context.Context, raw json.RawMessage) (any, error) {
		var req proto.CompileRequest
		if err := decodeParams(raw, &req); err != nil {
			return nil, err
		}
		return s.Compile(ctx, req)
	})
	srv.Register(proto.MethodQuery, func(ctx context.Context, raw json.RawMessage) (any, error) {
		var req proto.QueryRequest
		if err := decodeParams(raw, &req); err != nil {
			return nil, err
		}
		return s.Query(ctx, req)
	})
}

func decodeParams(raw json.RawMessage, dst any) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "decoding params: %v", err)
	}
	return nil
}
