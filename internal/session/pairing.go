package session

import "github.com/neonbeat/back/internal/model"

// SnapshotPairing captures the current ordered team state for later
// rollback (spec §3 PairingSnapshot, §4.3 EnterPairing).
func (s *Session) SnapshotPairing() model.PairingSnapshot {
	teams := s.Teams.Ordered()
	snap := model.PairingSnapshot{Teams: make([]model.PairedTeam, len(teams))}
	for i, t := range teams {
		snap.Teams[i] = model.PairedTeam{
			TeamID: t.ID, BuzzerID: t.BuzzerID, Color: t.Color, Name: t.Name, Score: t.Score,
		}
	}
	s.pairingSnapshot = &snap
	return snap
}

// RestorePairing reinstates the exact pre-pairing team ordering,
// names, colors, scores, and buzzer assignments (spec Invariant 4,
// scenario S2). It replaces the Session's team map wholesale rather
// than patching individual fields, so insertion order is restored
// bit-for-bit even if teams were inserted/removed during pairing.
func (s *Session) RestorePairing() {
	if s.pairingSnapshot == nil {
		return
	}
	tm := newTeamMap()
	for _, pt := range s.pairingSnapshot.Teams {
		tm.insert(model.Team{
			ID: pt.TeamID, Name: pt.Name, BuzzerID: pt.BuzzerID, Color: pt.Color, Score: pt.Score,
		})
	}
	s.Teams = tm
	s.pairingSnapshot = nil
}

// ClearPairingSnapshot discards the snapshot once every team is paired
// (spec §4.3: "(all paired) -> clear snapshot").
func (s *Session) ClearPairingSnapshot() {
	s.pairingSnapshot = nil
}

// HasPairingSnapshot reports whether a pairing session is in progress.
func (s *Session) HasPairingSnapshot() bool {
	return s.pairingSnapshot != nil
}
