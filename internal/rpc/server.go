// Package rpc serves the ledger over gRPC as service wish.v1.Ledger.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"runtime/debug"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/xtding233/wish-ledger/internal/catalog"
	"github.com/xtding233/wish-ledger/internal/gacha"
	"github.com/xtding233/wish-ledger/internal/ledger"
	"github.com/xtding233/wish-ledger/internal/logger"
)

// Service is the part of *ledger.Ledger the gRPC API needs.
type Service interface {
	PerformDraw(ctx context.Context, userID, bannerID int64, count int) (*ledger.DrawResult, error)
	Account(ctx context.Context, userID int64) (*ledger.User, error)
}

type Server struct {
	svc Service
}

var _ LedgerServer = (*Server)(nil)

func NewServer(svc Service) *Server { return &Server{svc: svc} }

// NewGRPCServer builds a grpc.Server with recovery and logging interceptors
// and the ledger service registered.
func NewGRPCServer(svc Service, log logger.Logger, opts ...grpc.ServerOption) *grpc.Server {
	if log == nil {
		log = logger.NewNoop()
	}
	log = log.Named("grpc")
	opts = append(opts, grpc.ChainUnaryInterceptor(recoveryInterceptor(log), loggingInterceptor(log)))
	s := grpc.NewServer(opts...)
	RegisterLedgerServer(s, NewServer(svc))
	return s
}

type drawReply struct {
	SessionID  string            `json:"session_id"`
	UserID     int64             `json:"user_id"`
	BannerID   int64             `json:"banner_id"`
	Items      []gacha.Presented `json:"items"`
	Cost       int64             `json:"cost"`
	Balance    int64             `json:"balance"`
	Pity       int               `json:"pity"`
	Guaranteed bool              `json:"guaranteed"`
	Attempts   int               `json:"attempts"`
	Skipped    bool              `json:"skipped"`
}

type accountReply struct {
	UserID     int64                  `json:"user_id"`
	Balance    int64                  `json:"balance"`
	Pity       int                    `json:"pity"`
	Guaranteed bool                   `json:"guaranteed"`
	Inventory  map[gacha.ItemID]int64 `json:"inventory"`
}

// Draw expects {user_id, banner_id, count}.
func (s *Server) Draw(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := intField(req, "user_id", true)
	if err != nil {
		return nil, err
	}
	bannerID, err := intField(req, "banner_id", true)
	if err != nil {
		return nil, err
	}
	count, err := intField(req, "count", false)
	if err != nil {
		return nil, err
	}
	if count > ledger.MaxDrawsPerSession {
		return nil, status.Errorf(codes.InvalidArgument, "count exceeds %d", ledger.MaxDrawsPerSession)
	}
	res, err := s.svc.PerformDraw(ctx, userID, bannerID, int(count))
	if err != nil {
		return nil, toStatus(err)
	}
	items := res.Presented
	if items == nil {
		items = []gacha.Presented{}
	}
	return toStruct(drawReply{
		SessionID:  res.SessionID,
		UserID:     res.UserID,
		BannerID:   res.BannerID,
		Items:      items,
		Cost:       res.Cost,
		Balance:    res.Balance,
		Pity:       res.Pity,
		Guaranteed: res.Guaranteed,
		Attempts:   res.Attempts,
		Skipped:    res.Skipped,
	})
}

// GetAccount expects {user_id}.
func (s *Server) GetAccount(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := intField(req, "user_id", true)
	if err != nil {
		return nil, err
	}
	u, err := s.svc.Account(ctx, userID)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(accountReply{
		UserID:     u.ID,
		Balance:    u.Balance,
		Pity:       u.Data.Pity,
		Guaranteed: u.Data.Guaranteed,
		Inventory:  u.Data.Inventory,
	})
}

// intField reads an integral number field. Missing optional fields are 0.
func intField(s *structpb.Struct, key string, required bool) (int64, error) {
	v, ok := s.GetFields()[key]
	if !ok {
		if required {
			return 0, status.Errorf(codes.InvalidArgument, "%s is required", key)
		}
		return 0, nil
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, status.Errorf(codes.InvalidArgument, "%s must be a number", key)
	}
	f := n.NumberValue
	if f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, status.Errorf(codes.InvalidArgument, "%s must be an integer", key)
	}
	return int64(f), nil
}

func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode reply: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, status.Errorf(codes.Internal, "encode reply: %v", err)
	}
	out, err := structpb.NewStruct(payload)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode reply: %v", err)
	}
	return out, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, ledger.ErrInvalidArgument):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, catalog.ErrBannerNotFound), errors.Is(err, catalog.ErrItemNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, ledger.ErrNotImplemented):
		return status.Error(codes.Unimplemented, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func recoveryInterceptor(l logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if p := recover(); p != nil {
				l.ErrorContext(ctx, "grpc panic recovered",
					"grpc.method", info.FullMethod, "panic", fmt.Sprint(p), "stack", string(debug.Stack()))
				err = status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}

func loggingInterceptor(l logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		fields := []interface{}{"grpc.method", info.FullMethod, "grpc.code", code.String(), "latency", time.Since(start).String()}
		switch code {
		case codes.OK:
			l.DebugContext(ctx, "grpc request", fields...)
		case codes.Internal, codes.Unknown:
			l.ErrorContext(ctx, "grpc request", append(fields, "error", err)...)
		default:
			l.WarnContext(ctx, "grpc request", append(fields, "error", err)...)
		}
		return resp, err
	}
}
