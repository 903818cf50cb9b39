package editor

import (
	"fmt"
	"sort"

	"github.com/Evan-Ewald-Richardson/TREES/internal/shared/wire"

	"github.com/samber/lo"
)

// GateType marks a gate as the start or end of its pair.
type GateType string

const (
	GateStart GateType = "start"
	GateEnd   GateType = "end"
)

// Gate is an atomic marker. Exactly two gates share a PairID: one start,
// one end.
type Gate struct {
	ID        string   `json:"id"`
	PairID    int      `json:"pairId"`
	Name      string   `json:"name"`
	Type      GateType `json:"type"`
	Lat       float64  `json:"lat"`
	Lon       float64  `json:"lon"`
	Confirmed bool     `json:"confirmed"`
	Editing   bool     `json:"editing"`
}

// GatePair is the derived aggregate view of two gates. It is never stored
// or mutated; it exists only as a read-time projection.
type GatePair struct {
	PairID      int           `json:"pairId"`
	Name        string        `json:"name"`
	Start       Gate          `json:"start"`
	End         Gate          `json:"end"`
	Checkpoints []wire.LatLon `json:"checkpoints"`
	Confirmed   bool          `json:"confirmed"`
	Editing     bool          `json:"editing"`
}

// GatePairs projects the flat gate collection into ordered pairs. A pair
// is materialized only when both a start and an end gate exist for its
// PairID; a lone gate is simply not a pair yet. The projection is pure:
// unchanged inputs always yield structurally equal output.
func GatePairs(gates []Gate, checkpoints map[int][]wire.LatLon, names map[int]string) []GatePair {
	grouped := lo.GroupBy(gates, func(g Gate) int { return g.PairID })

	pairIDs := lo.Keys(grouped)
	sort.Ints(pairIDs)

	pairs := make([]GatePair, 0, len(pairIDs))
	for _, pairID := range pairIDs {
		start, hasStart := lo.Find(grouped[pairID], func(g Gate) bool { return g.Type == GateStart })
		end, hasEnd := lo.Find(grouped[pairID], func(g Gate) bool { return g.Type == GateEnd })
		if !hasStart || !hasEnd {
			continue
		}
		pairs = append(pairs, GatePair{
			PairID:      pairID,
			Name:        pairName(pairID, start, end, names),
			Start:       start,
			End:         end,
			Checkpoints: append([]wire.LatLon(nil), checkpoints[pairID]...),
			Confirmed:   start.Confirmed && end.Confirmed,
			Editing:     start.Editing || end.Editing,
		})
	}
	return pairs
}

// NextPairID returns the smallest positive integer not used by any gate,
// keeping pair ids dense as pairs come and go.
func NextPairID(gates []Gate) int {
	used := lo.SliceToMap(gates, func(g Gate) (int, struct{}) { return g.PairID, struct{}{} })
	for id := 1; ; id++ {
		if _, taken := used[id]; !taken {
			return id
		}
	}
}

// Pair naming precedence: explicit custom name, then a gate-carried name,
// then the synthesized default.
func pairName(pairID int, start, end Gate, names map[int]string) string {
	if name, ok := names[pairID]; ok && name != "" {
		return name
	}
	if start.Name != "" {
		return start.Name
	}
	if end.Name != "" {
		return end.Name
	}
	return fmt.Sprintf("Gate Pair %d", pairID)
}
