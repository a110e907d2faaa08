package ice

import (
	"context"
	"time"
)

// CandidatePairStats is a snapshot of one checklist entry.
type CandidatePairStats struct {
	Timestamp         time.Time
	LocalCandidateID  string
	RemoteCandidateID string
	State             CandidatePairState
	Priority          uint64
	Valid             bool
	Nominated         bool
}

// CandidateStats is a snapshot of one local candidate.
type CandidateStats struct {
	Timestamp     time.Time
	ID            string
	NetworkType   NetworkType
	Foundation    string
	IP            string
	Port          int
	CandidateType CandidateType
	Priority      uint32
}

// GetCandidatePairsStats returns a snapshot of every pair in the checklist.
func (a *Agent) GetCandidatePairsStats() []CandidatePairStats {
	var res []CandidatePairStats
	err := a.run(a.context(), func(_ context.Context, agent *Agent) {
		pairs := agent.checklist.all()
		res = make([]CandidatePairStats, 0, len(pairs))
		for _, p := range pairs {
			res = append(res, CandidatePairStats{
				Timestamp:         time.Now(),
				LocalCandidateID:  p.Local.ID(),
				RemoteCandidateID: p.Remote.ID(),
				State:             p.state,
				Priority:          p.priority(),
				Valid:             p.valid,
				Nominated:         p.nominated,
			})
		}
	})
	if err != nil {
		a.log.Warnf("failed to get candidate pair stats: %v", err)
		return nil
	}
	return res
}

// GetLocalCandidatesStats returns a snapshot of every local candidate.
func (a *Agent) GetLocalCandidatesStats() []CandidateStats {
	var res []CandidateStats
	err := a.run(a.context(), func(_ context.Context, agent *Agent) {
		res = make([]CandidateStats, 0, len(agent.localCandidates))
		for _, c := range agent.localCandidates {
			res = append(res, CandidateStats{
				Timestamp:     time.Now(),
				ID:            c.ID(),
				NetworkType:   c.NetworkType(),
				Foundation:    c.Foundation(),
				IP:            c.Address(),
				Port:          c.Port(),
				CandidateType: c.Type(),
				Priority:      c.Priority(),
			})
		}
	})
	if err != nil {
		a.log.Warnf("failed to get local candidate stats: %v", err)
		return nil
	}
	return res
}
