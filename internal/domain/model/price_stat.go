package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Coin identifies a tracked asset by its upstream id (e.g. "bitcoin").
type Coin string

// DefaultCoins is the coin set used when none is configured.
var DefaultCoins = []Coin{"bitcoin", "ethereum", "matic-network"}

// CoinSet is the closed set of coins the system tracks.
type CoinSet struct {
	ordered []Coin
	members map[Coin]struct{}
}

// NewCoinSet builds a CoinSet, dropping blanks and duplicates while keeping order.
func NewCoinSet(coins ...Coin) CoinSet {
	set := CoinSet{members: make(map[Coin]struct{}, len(coins))}
	for _, c := range coins {
		c = Coin(strings.TrimSpace(string(c)))
		if c == "" {
			continue
		}
		if _, dup := set.members[c]; dup {
			continue
		}
		set.members[c] = struct{}{}
		set.ordered = append(set.ordered, c)
	}
	return set
}

// Contains reports whether c belongs to the set.
func (s CoinSet) Contains(c Coin) bool {
	_, ok := s.members[c]
	return ok
}

// Coins returns the members in configuration order.
func (s CoinSet) Coins() []Coin {
	out := make([]Coin, len(s.ordered))
	copy(out, s.ordered)
	return out
}

// IDs returns the members as plain strings.
func (s CoinSet) IDs() []string {
	out := make([]string, len(s.ordered))
	for i, c := range s.ordered {
		out[i] = string(c)
	}
	return out
}

func (s CoinSet) Len() int { return len(s.ordered) }

// PriceStat is one observation of one coin at one instant. Records are
// append-only; nothing updates or deletes them once written.
type PriceStat struct {
	ID        uuid.UUID `json:"id"`
	Coin      Coin      `json:"coin" validate:"required,coin"`
	Price     float64   `json:"price" validate:"gt=0"`
	MarketCap float64   `json:"marketCap" validate:"gte=0"`
	Change24h float64   `json:"change24h"`
	Timestamp time.Time `json:"timestamp"`
}

// Quote holds the upstream values for a single coin.
type Quote struct {
	Price     float64
	MarketCap float64
	Change24h float64
}

// Quotes maps each coin the upstream recognized to its quote. Coins missing
// from the upstream response are absent from the map.
type Quotes map[Coin]Quote

// NewPriceStat builds a record for coin from q observed at ts.
func NewPriceStat(coin Coin, q Quote, ts time.Time) *PriceStat {
	return &PriceStat{
		ID:        uuid.New(),
		Coin:      coin,
		Price:     q.Price,
		MarketCap: q.MarketCap,
		Change24h: q.Change24h,
		Timestamp: ts,
	}
}
