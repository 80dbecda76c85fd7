package rpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/xtding233/wish-ledger/internal/catalog"
	"github.com/xtding233/wish-ledger/internal/ledger"
	"github.com/xtding233/wish-ledger/internal/store/memory"
)

const catalogYAML = `
version: test
items:
  - {id: 1, name: "Dull Blade", star: false, released: "2020-09-28"}
  - {id: 10, name: "Diluc", star: true, released: "2020-09-28"}
  - {id: 20, name: "Venti", star: true, released: "2020-09-28"}
banners:
  - {id: 1, name: "Ballad in Goblets", kind: character, rate_up: 20, cutoff: "2020-12-01"}
  - {id: 2, name: "Epitome Invocation", kind: weapon, rate_up: 10, cutoff: "2020-12-01"}
`

type scripted struct {
	mu   sync.Mutex
	vals []float64
	i    int
}

func (s *scripted) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.vals[s.i%len(s.vals)]
	s.i++
	return v
}

func dial(t *testing.T, svc Service) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := NewGRPCServer(svc, nil)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewClient(conn)
}

func newLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	snap, err := catalog.Parse([]byte(catalogYAML))
	require.NoError(t, err)
	// every step: common tier roll, then the first pool entry (Dull Blade)
	rng := &scripted{vals: []float64{0.5, 0.01}}
	return ledger.New(memory.New(), catalog.NewStatic(snap), ledger.WithRandom(rng))
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func TestDrawAndAccount(t *testing.T) {
	c := dial(t, newLedger(t))
	ctx := context.Background()

	out, err := c.Draw(ctx, mustStruct(t, map[string]any{"user_id": 4, "banner_id": 1, "count": 3}))
	require.NoError(t, err)
	m := out.AsMap()
	assert.Len(t, m["items"], 3)
	assert.EqualValues(t, 997, m["balance"])
	assert.EqualValues(t, 3, m["pity"])

	acc, err := c.GetAccount(ctx, mustStruct(t, map[string]any{"user_id": 4}))
	require.NoError(t, err)
	am := acc.AsMap()
	assert.EqualValues(t, 997, am["balance"])
	assert.Equal(t, map[string]any{"1": float64(3)}, am["inventory"])
}

func TestErrorCodes(t *testing.T) {
	c := dial(t, newLedger(t))
	ctx := context.Background()
	tests := []struct {
		name string
		req  map[string]any
		code codes.Code
	}{
		{"missing user", map[string]any{"banner_id": 1, "count": 1}, codes.InvalidArgument},
		{"fractional count", map[string]any{"user_id": 1, "banner_id": 1, "count": 1.5}, codes.InvalidArgument},
		{"string banner", map[string]any{"user_id": 1, "banner_id": "one"}, codes.InvalidArgument},
		{"negative count", map[string]any{"user_id": 1, "banner_id": 1, "count": -2}, codes.InvalidArgument},
		{"count over cap", map[string]any{"user_id": 1, "banner_id": 1, "count": ledger.MaxDrawsPerSession + 1}, codes.InvalidArgument},
		{"huge count", map[string]any{"user_id": 1, "banner_id": 1, "count": 5e15}, codes.InvalidArgument},
		{"unknown banner", map[string]any{"user_id": 1, "banner_id": 99, "count": 1}, codes.NotFound},
		{"weapon banner", map[string]any{"user_id": 1, "banner_id": 2, "count": 1}, codes.Unimplemented},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Draw(ctx, mustStruct(t, tt.req))
			assert.Equal(t, tt.code, status.Code(err))
		})
	}
}

// counting records the counts that reach the service.
type counting struct {
	Service
	counts []int
}

func (c *counting) PerformDraw(_ context.Context, userID, bannerID int64, count int) (*ledger.DrawResult, error) {
	c.counts = append(c.counts, count)
	return &ledger.DrawResult{UserID: userID, BannerID: bannerID}, nil
}

func TestDrawCountCapped(t *testing.T) {
	svc := &counting{}
	s := NewServer(svc)
	ctx := context.Background()

	_, err := s.Draw(ctx, mustStruct(t, map[string]any{"user_id": 1, "banner_id": 1, "count": 5e15}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Empty(t, svc.counts)

	_, err = s.Draw(ctx, mustStruct(t, map[string]any{"user_id": 1, "banner_id": 1, "count": ledger.MaxDrawsPerSession}))
	require.NoError(t, err)
	assert.Equal(t, []int{ledger.MaxDrawsPerSession}, svc.counts)
}

func TestToStatus(t *testing.T) {
	tests := []struct {
		err  error
		code codes.Code
	}{
		{fmt.Errorf("%w: 7", catalog.ErrItemNotFound), codes.NotFound},
		{fmt.Errorf("%w: 7", catalog.ErrBannerNotFound), codes.NotFound},
		{ledger.ErrInsufficientFunds, codes.FailedPrecondition},
		{context.Canceled, codes.Canceled},
		{errors.New("disk on fire"), codes.Internal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.code, status.Code(toStatus(tt.err)), tt.err.Error())
	}
}

type panicking struct{ Service }

func (panicking) Account(context.Context, int64) (*ledger.User, error) { panic("boom") }

func TestRecovery(t *testing.T) {
	c := dial(t, panicking{})
	_, err := c.GetAccount(context.Background(), mustStruct(t, map[string]any{"user_id": 1}))
	assert.Equal(t, codes.Internal, status.Code(err))
}
