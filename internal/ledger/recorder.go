package ledger

import (
	"time"

	"github.com/xtding233/wish-ledger/internal/gacha"
)

// Recorder receives ledger events for metrics.
type Recorder interface {
	ObserveDraw(bannerID int64, sum gacha.Summary)
	ObserveTx(op string, err error, d time.Duration)
	InsufficientFunds(bannerID int64)
}

type nopRecorder struct{}

func (nopRecorder) ObserveDraw(int64, gacha.Summary)       {}
func (nopRecorder) ObserveTx(string, error, time.Duration) {}
func (nopRecorder) InsufficientFunds(int64)                {}
