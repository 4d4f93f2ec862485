package offer

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
)

const (
	rateWeight      = 60.0
	amountWeight    = 30.0
	freshnessWeight = 10.0

	freshnessWindow = 30 * 24 * time.Hour
)

type Preferences struct {
	Kind           Kind
	MaxAmountCents int64
	Limit          int
}

type Recommendation struct {
	Offer Offer
	Score int
}

// Recommend filters candidates down to open offers the viewer could accept
// and ranks them. Ties keep newest first.
func Recommend(viewerID uuid.UUID, candidates []Offer, prefs Preferences, now time.Time) []Recommendation {
	eligible := make([]Offer, 0, len(candidates))
	for _, o := range candidates {
		if o.ID == uuid.Nil || o.Status != StatusOpen {
			continue
		}
		if o.CreatorID == viewerID {
			continue
		}
		if prefs.Kind != "" && o.Kind != prefs.Kind {
			continue
		}
		if prefs.MaxAmountCents > 0 && o.AmountCents > prefs.MaxAmountCents {
			continue
		}
		eligible = append(eligible, o)
	}

	out := make([]Recommendation, 0, len(eligible))
	for _, o := range eligible {
		out = append(out, Recommendation{Offer: o, Score: score(o, prefs, now)})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Offer.CreatedAt.After(out[j].Offer.CreatedAt)
	})

	if prefs.Limit > 0 && len(out) > prefs.Limit {
		out = out[:prefs.Limit]
	}
	return out
}

func score(o Offer, prefs Preferences, now time.Time) int {
	rate := clampFloat(o.InterestRate/MaxInterestRate, 0, 1)
	// Accepting a loan makes the viewer the borrower, who wants a low rate.
	if o.Kind == KindLoan {
		rate = 1 - rate
	}

	fit := 1.0
	if prefs.MaxAmountCents > 0 {
		fit = clampFloat(float64(o.AmountCents)/float64(prefs.MaxAmountCents), 0, 1)
	}

	fresh := 0.0
	if age := now.Sub(o.CreatedAt); age < freshnessWindow {
		if age < 0 {
			age = 0
		}
		fresh = 1 - float64(age)/float64(freshnessWindow)
	}

	total := rate*rateWeight + fit*amountWeight + fresh*freshnessWeight
	s := int(math.Round(total))
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}

func clampFloat(v, minV, maxV float64) float64 {
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}
