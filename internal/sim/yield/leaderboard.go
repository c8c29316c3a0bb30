package yield

import "sort"

type Entry struct {
	Address string  `json:"address"`
	Earned  float64 `json:"earned"`
}

// Leaderboard maps an address to its cumulative earnings. Entries never decrease.
type Leaderboard struct {
	m map[string]float64
}

func NewLeaderboard() *Leaderboard {
	return &Leaderboard{m: map[string]float64{}}
}

// Credit adds amount to addr and returns the new total. Non-positive amounts are ignored.
func (l *Leaderboard) Credit(addr string, amount float64) float64 {
	if addr == "" || !(amount > 0) {
		return l.Get(addr)
	}
	l.m[addr] += amount
	return l.m[addr]
}

func (l *Leaderboard) Get(addr string) float64 {
	if l == nil {
		return 0
	}
	return l.m[addr]
}

func (l *Leaderboard) Len() int {
	if l == nil {
		return 0
	}
	return len(l.m)
}

// Entries returns all entries, highest earnings first; ties by address.
func (l *Leaderboard) Entries() []Entry {
	if l == nil {
		return nil
	}
	out := make([]Entry, 0, len(l.m))
	for a, v := range l.m {
		out = append(out, Entry{Address: a, Earned: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Earned != out[j].Earned {
			return out[i].Earned > out[j].Earned
		}
		return out[i].Address < out[j].Address
	})
	return out
}

func (l *Leaderboard) Top(n int) []Entry {
	all := l.Entries()
	if n >= 0 && len(all) > n {
		all = all[:n]
	}
	return all
}
