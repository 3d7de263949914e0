package simcore

import (
	"sync"

	"boidarena/internal/simcore/spatial"
)

// Leaderboard ranks players by kill/death score over the match, backed by a
// score-ordered skip list: reading the top n walks from the head, while an
// update or a per-player rank lookup scans the list for the player's key.
// It is in-memory only and dies with the match.
type Leaderboard struct {
	mu       sync.RWMutex
	skipList *spatial.SkipList
	records  map[string]*LeaderboardEntry
}

// LeaderboardEntry is one player's standing.
type LeaderboardEntry struct {
	PlayerID string  `json:"player_id"`
	Kills    int     `json:"kills"`
	Deaths   int     `json:"deaths"`
	Score    float64 `json:"score"`
	Rank     int     `json:"rank"`
}

// NewLeaderboard creates an empty leaderboard.
func NewLeaderboard() *Leaderboard {
	return &Leaderboard{
		skipList: spatial.NewSkipList(),
		records:  make(map[string]*LeaderboardEntry),
	}
}

// RecordKill credits killer with a kill and victim with a death, rescoring
// both. Either ID may be empty (a boid), in which case that side is skipped.
func (lb *Leaderboard) RecordKill(killerID, victimID string) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	if killerID != "" {
		r := lb.record(killerID)
		r.Kills++
		lb.rescore(r)
	}
	if victimID != "" {
		r := lb.record(victimID)
		r.Deaths++
		lb.rescore(r)
	}
}

// Remove drops a player from the board, used when a connection ends.
func (lb *Leaderboard) Remove(playerID string) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	delete(lb.records, playerID)
	lb.skipList.Remove(playerID)
}

// Rank returns a player's rank (1 = top), or 0 if absent.
func (lb *Leaderboard) Rank(playerID string) int {
	lb.mu.RLock()
	defer lb.mu.RUnlock()
	return lb.skipList.GetRank(playerID)
}

// Top returns the best n players in rank order.
func (lb *Leaderboard) Top(n int) []LeaderboardEntry {
	lb.mu.RLock()
	defer lb.mu.RUnlock()

	entries := lb.skipList.GetRange(1, n)
	out := make([]LeaderboardEntry, 0, len(entries))
	for i, e := range entries {
		rec, ok := lb.records[e.Key]
		if !ok {
			continue
		}
		out = append(out, LeaderboardEntry{
			PlayerID: e.Key,
			Kills:    rec.Kills,
			Deaths:   rec.Deaths,
			Score:    e.Score,
			Rank:     i + 1,
		})
	}
	return out
}

// Len returns the number of ranked players.
func (lb *Leaderboard) Len() int {
	lb.mu.RLock()
	defer lb.mu.RUnlock()
	return lb.skipList.Length()
}

func (lb *Leaderboard) record(playerID string) *LeaderboardEntry {
	r, ok := lb.records[playerID]
	if !ok {
		r = &LeaderboardEntry{PlayerID: playerID}
		lb.records[playerID] = r
	}
	return r
}

// rescore recomputes a player's score: kills weigh heavily, deaths claw a
// little back.
func (lb *Leaderboard) rescore(r *LeaderboardEntry) {
	r.Score = float64(r.Kills)*100 - float64(r.Deaths)*10
	lb.skipList.Insert(r.PlayerID, r.Score)
}
