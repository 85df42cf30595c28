package events

import (
	"strings"

	"progression/internal/aggregate"
	id "progression/pkg/domain"
)

const (
	TypeDefendantsMatched  Type = "defendants-matched"
	TypeDefendantUnmatched Type = "defendant-unmatched"
	TypeCasesLinked        Type = "cases-linked"
	TypeCasesUnlinked      Type = "cases-unlinked"
	TypeCaseMerged         Type = "case-merged"
	TypeCaseSplit          Type = "case-split"
)

func init() {
	register(TypeDefendantsMatched, func() Event { return &DefendantsMatched{} })
	register(TypeDefendantUnmatched, func() Event { return &DefendantUnmatched{} })
	register(TypeCasesLinked, func() Event { return &CasesLinked{} })
	register(TypeCasesUnlinked, func() Event { return &CasesUnlinked{} })
	register(TypeCaseMerged, func() Event { return &CaseMerged{} })
	register(TypeCaseSplit, func() Event { return &CaseSplit{} })
}

type MatchedDefendant struct {
	CaseID      id.CaseID      `json:"prosecutionCaseId"`
	DefendantID id.DefendantID `json:"defendantId"`
}

// DefendantsMatched records that defendant records in different cases are the
// same person.
type DefendantsMatched struct {
	MasterDefendantID id.MasterDefendantID `json:"masterDefendantId"`
	Defendants        []MatchedDefendant   `json:"defendants"`
}

func (e *DefendantsMatched) EventType() Type { return TypeDefendantsMatched }

func (e *DefendantsMatched) Validate() error {
	v := newValidator()
	v.check(len(e.Defendants) >= 2, "at least two defendants are required")
	seen := map[id.DefendantID]bool{}
	for _, d := range e.Defendants {
		v.check(!d.CaseID.IsNil(), "defendants.prosecutionCaseId is required")
		v.check(!d.DefendantID.IsNil(), "defendants.defendantId is required")
		v.check(!seen[d.DefendantID], "defendants must be distinct")
		seen[d.DefendantID] = true
	}
	return v.err()
}

func (e *DefendantsMatched) Correlate() Correlation {
	var c Correlation
	master := e.MasterDefendantID
	if master.IsNil() && len(e.Defendants) > 0 {
		master = id.MasterDefendantID(e.Defendants[0].DefendantID)
	}
	if !master.IsNil() {
		c.Primary = aggregate.MasterDefendantKey(master)
	}
	for _, d := range e.Defendants {
		c.CaseIDs = append(c.CaseIDs, d.CaseID)
		c.DefendantIDs = append(c.DefendantIDs, d.DefendantID)
	}
	return c
}

// DefendantUnmatched removes a defendant from its master defendant group.
type DefendantUnmatched struct {
	CaseID      id.CaseID      `json:"prosecutionCaseId"`
	DefendantID id.DefendantID `json:"defendantId"`
}

func (e *DefendantUnmatched) EventType() Type { return TypeDefendantUnmatched }

func (e *DefendantUnmatched) Validate() error {
	v := newValidator()
	v.check(!e.DefendantID.IsNil(), "defendantId is required")
	return v.err()
}

func (e *DefendantUnmatched) Correlate() Correlation {
	return caseCorrelation(e.CaseID, e.DefendantID)
}

// CasesLinked groups cases for case management. Without a group id the
// cases join an existing group of one of them, or a new group.
type CasesLinked struct {
	LinkGroupID *id.LinkGroupID `json:"linkGroupId,omitempty"`
	CaseIDs     []id.CaseID     `json:"prosecutionCaseIds"`
}

func (e *CasesLinked) EventType() Type { return TypeCasesLinked }

func (e *CasesLinked) Validate() error {
	v := newValidator()
	v.check(len(e.CaseIDs) >= 2 || (e.LinkGroupID != nil && len(e.CaseIDs) >= 1), "at least two cases are required")
	for _, c := range e.CaseIDs {
		v.check(!c.IsNil(), "prosecutionCaseIds must not contain empty ids")
	}
	return v.err()
}

func (e *CasesLinked) Correlate() Correlation {
	c := Correlation{CaseIDs: e.CaseIDs}
	switch {
	case e.LinkGroupID != nil && !e.LinkGroupID.IsNil():
		c.Primary = aggregate.LinkGroupKey(*e.LinkGroupID)
	case len(e.CaseIDs) > 0 && !e.CaseIDs[0].IsNil():
		c.Primary = aggregate.CaseKey(e.CaseIDs[0])
	}
	return c
}

type CasesUnlinked struct {
	LinkGroupID id.LinkGroupID `json:"linkGroupId"`
	CaseIDs     []id.CaseID    `json:"prosecutionCaseIds"`
}

func (e *CasesUnlinked) EventType() Type { return TypeCasesUnlinked }

func (e *CasesUnlinked) Validate() error {
	v := newValidator()
	v.check(len(e.CaseIDs) > 0, "prosecutionCaseIds must not be empty")
	return v.err()
}

func (e *CasesUnlinked) Correlate() Correlation {
	c := Correlation{CaseIDs: e.CaseIDs}
	if !e.LinkGroupID.IsNil() {
		c.Primary = aggregate.LinkGroupKey(e.LinkGroupID)
	}
	return c
}

// CaseMerged moves every defendant of FromCaseID into IntoCaseID.
type CaseMerged struct {
	IntoCaseID id.CaseID `json:"prosecutionCaseId"`
	FromCaseID id.CaseID `json:"mergedProsecutionCaseId"`
}

func (e *CaseMerged) EventType() Type { return TypeCaseMerged }

func (e *CaseMerged) Validate() error {
	v := newValidator()
	v.check(!e.FromCaseID.IsNil(), "mergedProsecutionCaseId is required")
	v.check(e.FromCaseID != e.IntoCaseID, "a case cannot be merged into itself")
	return v.err()
}

func (e *CaseMerged) Correlate() Correlation {
	c := caseCorrelation(e.IntoCaseID)
	c.CaseIDs = append(c.CaseIDs, e.FromCaseID)
	return c
}

type SplitPart struct {
	NewCaseID    id.CaseID        `json:"prosecutionCaseId"`
	URN          string           `json:"urn"`
	DefendantIDs []id.DefendantID `json:"defendantIds"`
}

// CaseSplit moves defendants of a case into new cases.
type CaseSplit struct {
	CaseID id.CaseID   `json:"prosecutionCaseId"`
	Parts  []SplitPart `json:"splitCases"`
}

func (e *CaseSplit) EventType() Type { return TypeCaseSplit }

func (e *CaseSplit) Validate() error {
	v := newValidator()
	v.check(len(e.Parts) > 0, "splitCases must not be empty")
	for _, p := range e.Parts {
		v.check(!p.NewCaseID.IsNil(), "splitCases.prosecutionCaseId is required")
		v.check(p.NewCaseID != e.CaseID, "splitCases.prosecutionCaseId must be a new case")
		v.check(strings.TrimSpace(p.URN) != "", "splitCases.urn is required")
		v.check(len(p.DefendantIDs) > 0, "splitCases.defendantIds must not be empty")
	}
	return v.err()
}

func (e *CaseSplit) Correlate() Correlation {
	c := caseCorrelation(e.CaseID)
	for _, p := range e.Parts {
		c.CaseIDs = append(c.CaseIDs, p.NewCaseID)
		c.DefendantIDs = append(c.DefendantIDs, p.DefendantIDs...)
	}
	return c
}
