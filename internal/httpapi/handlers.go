package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xtding233/wish-ledger/internal/catalog"
	"github.com/xtding233/wish-ledger/internal/gacha"
	"github.com/xtding233/wish-ledger/internal/ledger"
	"github.com/xtding233/wish-ledger/internal/pricing"
)

type drawRequest struct {
	BannerID int64 `json:"banner_id" binding:"required"`
	Count    int   `json:"count" binding:"gte=0"`
}

type grantRequest struct {
	Amount int64 `json:"amount" binding:"required,gt=0"`
}

type drawResponse struct {
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

type accountResponse struct {
	UserID     int64                  `json:"user_id"`
	Balance    int64                  `json:"balance"`
	Pity       int                    `json:"pity"`
	Guaranteed bool                   `json:"guaranteed"`
	Inventory  map[gacha.ItemID]int64 `json:"inventory"`
	CreatedAt  time.Time              `json:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

func toAccount(u *ledger.User) accountResponse {
	return accountResponse{
		UserID:     u.ID,
		Balance:    u.Balance,
		Pity:       u.Data.Pity,
		Guaranteed: u.Data.Guaranteed,
		Inventory:  u.Data.Inventory,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

type poolEntry struct {
	ItemID      gacha.ItemID `json:"item_id"`
	Name        string       `json:"name"`
	Star        bool         `json:"star"`
	RateUp      bool         `json:"rate_up"`
	Weight      int          `json:"weight"`
	Probability float64      `json:"probability"`
}

type bannerResponse struct {
	ID     int64            `json:"id"`
	Name   string           `json:"name"`
	Kind   gacha.BannerKind `json:"kind"`
	RateUp gacha.ItemID     `json:"rate_up"`
	Cutoff string           `json:"cutoff"`
}

func toBanner(b gacha.Banner) bannerResponse {
	return bannerResponse{ID: b.ID, Name: b.Name, Kind: b.Kind, RateUp: b.RateUp, Cutoff: b.Cutoff.Format(catalog.DateLayout)}
}

// pathID parses a positive int64 path parameter.
func pathID(c *gin.Context, key string) (int64, bool) {
	v, err := strconv.ParseInt(c.Param(key), 10, 64)
	if err != nil || v <= 0 {
		fail(c, http.StatusBadRequest, CodeBadRequest, "invalid "+key)
		return 0, false
	}
	return v, true
}

func (s *Server) handleHealth(c *gin.Context) {
	snap := s.svc.Catalog().Snapshot()
	success(c, gin.H{"status": "ok", "catalog_version": snap.Version()})
}

func (s *Server) handleCurve(c *gin.Context) {
	curve := s.svc.Curve()
	success(c, gin.H{"config": curve.Config(), "table": curve.Table()})
}

func (s *Server) handleBanners(c *gin.Context) {
	banners := s.svc.Catalog().Snapshot().Banners()
	out := make([]bannerResponse, len(banners))
	for i, b := range banners {
		out[i] = toBanner(b)
	}
	success(c, out)
}

func (s *Server) handlePool(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	pool, banner, err := s.svc.Catalog().Snapshot().Pool(id)
	if err != nil {
		failErr(c, err)
		return
	}
	total := float64(pool.Total())
	entries := pool.Entries()
	out := make([]poolEntry, len(entries))
	for i, e := range entries {
		out[i] = poolEntry{
			ItemID:      e.Item.ID,
			Name:        e.Item.Name,
			Star:        e.Item.Star,
			RateUp:      e.Item.ID == banner.RateUp,
			Weight:      e.Weight,
			Probability: float64(e.Weight) / total,
		}
	}
	success(c, gin.H{"banner": toBanner(banner), "total_weight": pool.Total(), "entries": out})
}

// handleAccount reads the user. An unknown id is created with the starting
// balance and persisted, the same as a first draw would.
func (s *Server) handleAccount(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	u, err := s.svc.Account(c.Request.Context(), id)
	if err != nil {
		failErr(c, err)
		return
	}
	success(c, toAccount(u))
}

func (s *Server) handleDraw(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req drawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, CodeBadRequest, "invalid request: "+err.Error())
		return
	}
	if req.Count > MaxDrawsPerRequest {
		fail(c, http.StatusBadRequest, CodeBadRequest, "count exceeds "+strconv.Itoa(MaxDrawsPerRequest))
		return
	}
	res, err := s.svc.PerformDraw(c.Request.Context(), id, req.BannerID, req.Count)
	if err != nil {
		failErr(c, err)
		return
	}
	items := res.Presented
	if items == nil {
		items = []gacha.Presented{}
	}
	success(c, drawResponse{
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

func (s *Server) handleGrant(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req grantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, CodeBadRequest, "invalid request: "+err.Error())
		return
	}
	u, err := s.svc.Grant(c.Request.Context(), id, req.Amount)
	if err != nil {
		failErr(c, err)
		return
	}
	success(c, toAccount(u))
}

// firstTime parses ?first_time=a,b, the packs whose first-purchase double
// is still available.
func firstTime(c *gin.Context) pricing.FirstTimeState {
	first := pricing.FirstTimeState{}
	if raw := c.Query("first_time"); raw != "" {
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				first[p] = true
			}
		}
	}
	return first
}

// handleQuote prices the tickets the user is short of for ?draws=N.
// Like handleAccount it creates an unknown user.
func (s *Server) handleQuote(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	draws, err := strconv.Atoi(c.Query("draws"))
	if err != nil || draws <= 0 {
		fail(c, http.StatusBadRequest, CodeBadRequest, "invalid draws")
		return
	}
	if draws > MaxDrawsPerRequest {
		fail(c, http.StatusBadRequest, CodeBadRequest, "draws exceeds "+strconv.Itoa(MaxDrawsPerRequest))
		return
	}

	u, err := s.svc.Account(c.Request.Context(), id)
	if err != nil {
		failErr(c, err)
		return
	}
	q, err := pricing.QuoteDraws(s.shop, draws, s.svc.Price().Cost(draws), u.Balance, firstTime(c))
	if err != nil {
		failErr(c, err)
		return
	}
	success(c, q)
}

// handleBudget returns the pack combination granting the most tickets for
// at most ?cents=N, tax included.
func (s *Server) handleBudget(c *gin.Context) {
	cents, err := strconv.Atoi(c.Query("cents"))
	if err != nil || cents <= 0 {
		fail(c, http.StatusBadRequest, CodeBadRequest, "invalid cents")
		return
	}
	plan, err := pricing.MaxTicketsUnderBudget(s.shop, cents, firstTime(c))
	if err != nil {
		failErr(c, err)
		return
	}
	success(c, plan)
}
