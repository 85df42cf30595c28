package models

import (
	id "progression/pkg/domain"
)

// MatchMember is one defendant record inside a master defendant group.
type MatchMember struct {
	CaseID      id.CaseID      `json:"prosecutionCaseId"`
	DefendantID id.DefendantID `json:"defendantId"`
}

// MatchGroup is the master defendant aggregate: every defendant record known
// to be the same person.
type MatchGroup struct {
	MasterDefendantID id.MasterDefendantID `json:"masterDefendantId"`
	Members           []MatchMember        `json:"members"`
}

func (g *MatchGroup) Empty() bool { return len(g.Members) == 0 }

func (g *MatchGroup) Has(defendantID id.DefendantID) bool {
	for _, m := range g.Members {
		if m.DefendantID == defendantID {
			return true
		}
	}
	return false
}

// Add inserts or relocates a member and reports whether anything changed.
func (g *MatchGroup) Add(m MatchMember) bool {
	for i := range g.Members {
		if g.Members[i].DefendantID == m.DefendantID {
			if g.Members[i].CaseID == m.CaseID {
				return false
			}
			g.Members[i].CaseID = m.CaseID
			return true
		}
	}
	g.Members = append(g.Members, m)
	return true
}

func (g *MatchGroup) Remove(defendantID id.DefendantID) bool {
	for i := range g.Members {
		if g.Members[i].DefendantID == defendantID {
			g.Members = append(g.Members[:i], g.Members[i+1:]...)
			return true
		}
	}
	return false
}

// LinkGroup is the case link aggregate.
type LinkGroup struct {
	ID      id.LinkGroupID `json:"linkGroupId"`
	CaseIDs []id.CaseID    `json:"prosecutionCaseIds"`
}

func (g *LinkGroup) Empty() bool { return len(g.CaseIDs) == 0 }

func (g *LinkGroup) Has(caseID id.CaseID) bool {
	for _, c := range g.CaseIDs {
		if c == caseID {
			return true
		}
	}
	return false
}

func (g *LinkGroup) Add(caseID id.CaseID) bool {
	if g.Has(caseID) {
		return false
	}
	g.CaseIDs = append(g.CaseIDs, caseID)
	return true
}

func (g *LinkGroup) Remove(caseID id.CaseID) bool {
	for i, c := range g.CaseIDs {
		if c == caseID {
			g.CaseIDs = append(g.CaseIDs[:i], g.CaseIDs[i+1:]...)
			return true
		}
	}
	return false
}
