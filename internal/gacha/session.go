package gacha

// State of a draw session.
type State int

const (
	Accumulating State = iota // fewer than the requested items produced
	Done                      // exactly the requested items produced
)

func (s State) String() string {
	if s == Done {
		return "done"
	}
	return "accumulating"
}

// Outcome classifies one session iteration.
type Outcome int

const (
	Retry  Outcome = iota // tier roll and sampled item disagreed, nothing produced
	Common                // common item produced, pity advanced
	Rare                  // rare item produced, pity reset
)

// Summary counts what happened in a session.
type Summary struct {
	Produced     int
	RareHits     int
	RateUpHits   int // rare hits that produced the rate-up item
	ForcedRateUp int // rate-up hits decided by the guarantee flag
	LostRateUp   int // rare hits that produced an off-banner item
	Attempts     int // iterations including retries
}

// Session produces items for one draw request against a private copy of the
// user's gacha state. It is not safe for concurrent use.
type Session struct {
	curve *Curve
	pool  *Pool
	rng   RandomSource
	data  UserData
	want  int
	got   []Item
	sum   Summary
}

// NewSession starts a session over a copy of data.
func NewSession(curve *Curve, pool *Pool, data UserData, rng RandomSource) *Session {
	if curve == nil {
		curve = defaultCurve
	}
	if rng == nil {
		rng = DefaultRNG()
	}
	return &Session{curve: curve, pool: pool, rng: rng, data: data.Clone()}
}

// Step runs one iteration:
// - r <= p and a rare item sampled → rare hit; pity resets, guarantee rules decide the item
// - r > p and a common item sampled → common hit; pity advances
// - anything else → retry, no state change
func (s *Session) Step() (Item, Outcome, error) {
	s.sum.Attempts++
	s.data.Pity = s.curve.Clamp(s.data.Pity)
	p, err := s.curve.Probability(s.data.Pity)
	if err != nil {
		return Item{}, Retry, err
	}
	r := s.rng.Float64()
	item := s.pool.Pick(s.rng)

	switch {
	case r <= p && item.Star:
		s.data.Pity = 0
		rateUp := s.pool.RateUp()
		if item.ID != rateUp.ID && !s.data.Guaranteed {
			// lost the 50/50: keep the sampled item, next rare is forced
			s.data.Guaranteed = true
			s.sum.LostRateUp++
		} else {
			if item.ID != rateUp.ID {
				s.sum.ForcedRateUp++
			}
			item = rateUp
			s.data.Guaranteed = false
			s.sum.RateUpHits++
		}
		s.sum.RareHits++
		s.produce(item)
		return item, Rare, nil
	case r > p && !item.Star:
		s.data.Pity++
		s.produce(item)
		return item, Common, nil
	default:
		return Item{}, Retry, nil
	}
}

func (s *Session) produce(item Item) {
	if s.data.Inventory == nil {
		s.data.Inventory = make(map[ItemID]int64)
	}
	s.data.Inventory[item.ID]++
	s.got = append(s.got, item)
	s.sum.Produced++
}

// Run steps until n more items have been produced and returns them in draw order.
// n <= 0 returns nil without touching state.
func (s *Session) Run(n int) ([]Item, error) {
	if n <= 0 {
		return nil, nil
	}
	start := len(s.got)
	s.want = start + n
	for s.State() == Accumulating {
		if _, _, err := s.Step(); err != nil {
			return nil, err
		}
	}
	return append([]Item(nil), s.got[start:]...), nil
}

// State reports whether the last Run request has been satisfied.
func (s *Session) State() State {
	if len(s.got) < s.want {
		return Accumulating
	}
	return Done
}

// Data returns a copy of the session's working state.
func (s *Session) Data() UserData { return s.data.Clone() }

// Summary returns counters for everything the session produced so far.
func (s *Session) Summary() Summary { return s.sum }
