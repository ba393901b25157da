package session

import (
	"github.com/neonbeat/back/internal/apperr"
	"github.com/neonbeat/back/internal/model"
)

// TeamMap is the ordered mapping of spec §3: insertion order is
// significant for pairing queue order and scoreboard display, so a
// plain map is not enough — this pairs an id→team map with an
// insertion-ordered slice of ids, the same shape the upstream hub's
// `players []Player` slice gives it for free, generalized here to
// support O(1) lookup and in-place update too.
type TeamMap struct {
	order []string
	byID  map[string]model.Team
}

func newTeamMap() *TeamMap {
	return &TeamMap{byID: make(map[string]model.Team)}
}

func (tm *TeamMap) Len() int { return len(tm.order) }

func (tm *TeamMap) Get(id string) (model.Team, bool) {
	t, ok := tm.byID[id]
	return t, ok
}

// Ordered returns the teams in insertion order. Callers must not
// mutate the returned slice's backing Team values in place; use the
// mutation methods below instead.
func (tm *TeamMap) Ordered() []model.Team {
	out := make([]model.Team, 0, len(tm.order))
	for _, id := range tm.order {
		out = append(out, tm.byID[id])
	}
	return out
}

func (tm *TeamMap) insert(t model.Team) {
	if _, exists := tm.byID[t.ID]; !exists {
		tm.order = append(tm.order, t.ID)
	}
	tm.byID[t.ID] = t
}

func (tm *TeamMap) remove(id string) {
	if _, ok := tm.byID[id]; !ok {
		return
	}
	delete(tm.byID, id)
	for i, oid := range tm.order {
		if oid == id {
			tm.order = append(tm.order[:i], tm.order[i+1:]...)
			break
		}
	}
}

// buzzerOwner returns the id of the team currently holding buzzerID,
// if any, enforcing Invariant 1 (at most one buzzer id across all
// teams of a game).
func (tm *TeamMap) buzzerOwner(buzzerID string) (string, bool) {
	for _, id := range tm.order {
		if tm.byID[id].BuzzerID == buzzerID {
			return id, true
		}
	}
	return "", false
}

// InsertTeam adds a new team. Allowed only in Prep::* (the dispatcher
// enforces the phase gate before calling this; Session itself only
// enforces id-level invariants).
func (s *Session) InsertTeam(t model.Team) error {
	if _, exists := s.Teams.Get(t.ID); exists {
		return apperr.New(apperr.Validation, "team %s already exists", t.ID)
	}
	if t.BuzzerID != "" {
		if owner, ok := s.Teams.buzzerOwner(t.BuzzerID); ok {
			return apperr.New(apperr.Validation, "buzzer %s already owned by team %s", t.BuzzerID, owner)
		}
	}
	s.Teams.insert(t)
	return nil
}

// UpdateTeam applies mutate to a copy of the current team and stores
// the result, preserving insertion order. Score-only updates are
// allowed throughout GameRunning; the dispatcher enforces that name/
// color/buzzer edits only happen in Prep::*.
func (s *Session) UpdateTeam(id string, mutate func(*model.Team)) (model.Team, error) {
	t, ok := s.Teams.Get(id)
	if !ok {
		return model.Team{}, apperr.New(apperr.NotFound, "team %s not found", id)
	}
	mutate(&t)
	if t.BuzzerID != "" {
		if owner, ok := s.Teams.buzzerOwner(t.BuzzerID); ok && owner != id {
			return model.Team{}, apperr.New(apperr.Validation, "buzzer %s already owned by team %s", t.BuzzerID, owner)
		}
	}
	s.Teams.insert(t)
	return t, nil
}

// RemoveTeam deletes a team. If it was the pairing-waiting team, the
// dispatcher is responsible for re-deriving the next waiting team
// (NextWaitingTeam) or ending pairing (spec §4.3 "Deleting the waiting
// team auto-advances or ends pairing").
func (s *Session) RemoveTeam(id string) error {
	if _, ok := s.Teams.Get(id); !ok {
		return apperr.New(apperr.NotFound, "team %s not found", id)
	}
	if s.Game.LastBuzzedTeam == id {
		s.Game.LastBuzzedTeam = ""
	}
	s.Teams.remove(id)
	return nil
}

// AssignBuzzer binds buzzerID to teamID, stealing it from any other
// team that currently owns it (spec §4.3 pairing semantics). It
// returns the id of the team that lost the buzzer, if any, so the
// caller can emit the required team.updated event for the victim.
func (s *Session) AssignBuzzer(teamID, buzzerID string) (victimTeamID string, err error) {
	if _, ok := s.Teams.Get(teamID); !ok {
		return "", apperr.New(apperr.NotFound, "team %s not found", teamID)
	}

	if owner, ok := s.Teams.buzzerOwner(buzzerID); ok && owner != teamID {
		victim := s.Teams.byID[owner]
		victim.BuzzerID = ""
		s.Teams.insert(victim)
		victimTeamID = owner
	}

	t := s.Teams.byID[teamID]
	t.BuzzerID = buzzerID
	s.Teams.insert(t)
	return victimTeamID, nil
}

// ClearBuzzer removes teamID's buzzer assignment, if any.
func (s *Session) ClearBuzzer(teamID string) error {
	t, ok := s.Teams.Get(teamID)
	if !ok {
		return apperr.New(apperr.NotFound, "team %s not found", teamID)
	}
	t.BuzzerID = ""
	s.Teams.insert(t)
	return nil
}

// AdjustScore applies an integer delta with no lower bound (spec §4.4).
func (s *Session) AdjustScore(teamID string, delta int) (model.Team, error) {
	return s.UpdateTeam(teamID, func(t *model.Team) { t.Score += delta })
}

// RemainingUnpaired counts teams without a buzzer id, optionally
// excluding one team (the one currently being assigned), for the FSM
// Facts.RemainingUnpairedAfterAssign guard.
func (s *Session) RemainingUnpaired(excludingTeamID string) int {
	n := 0
	for _, t := range s.Teams.Ordered() {
		if t.ID == excludingTeamID {
			continue
		}
		if !t.HasBuzzer() {
			n++
		}
	}
	return n
}

// NextWaitingTeam returns the id of the next team without a buzzer, in
// insertion order, or "" if every team is paired.
func (s *Session) NextWaitingTeam() string {
	for _, t := range s.Teams.Ordered() {
		if !t.HasBuzzer() {
			return t.ID
		}
	}
	return ""
}

// TeamByBuzzer resolves a physical buzzer id to its owning team, for
// the dispatcher to turn a raw `buzz` frame into a team-scoped event.
func (s *Session) TeamByBuzzer(buzzerID string) (model.Team, bool) {
	id, ok := s.Teams.buzzerOwner(buzzerID)
	if !ok {
		return model.Team{}, false
	}
	return s.Teams.byID[id], true
}
