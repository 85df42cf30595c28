package service

import (
	"context"
	"slices"
	"time"

	"progression/internal/aggregate"
	"progression/internal/events"
	"progression/internal/progression/models"
	id "progression/pkg/domain"
	"progression/pkg/requestcontext"
)

// initiateCase creates the case. A case that already exists is left alone so
// a redelivered initiation is a no-op.
func (s *Service) initiateCase(ctx context.Context, ws *aggregate.Workspace, evt events.Event) ([]events.Intent, error) {
	e := evt.(*events.CaseInitiated)
	created, err := s.createCase(ctx, ws, e.ProsecutionCase)
	if err != nil || !created {
		return nil, err
	}
	return []events.Intent{caseIntent(events.OutProsecutionCaseCreated, e.ProsecutionCase.ID, "")}, nil
}

// referCases creates every referred case that does not exist yet and reports
// the referral for all of them.
func (s *Service) referCases(ctx context.Context, ws *aggregate.Workspace, evt events.Event) ([]events.Intent, error) {
	e := evt.(*events.CasesReferredToCourt)
	var intents []events.Intent
	for _, data := range e.ProsecutionCases {
		created, err := s.createCase(ctx, ws, data)
		if err != nil {
			return nil, err
		}
		if created {
			intents = append(intents, caseIntent(events.OutProsecutionCaseCreated, data.ID, ""))
		}
		intents = append(intents, caseIntent(events.OutCasesReferredToCourt, data.ID, ""))
	}
	return intents, nil
}

func (s *Service) createCase(ctx context.Context, ws *aggregate.Workspace, data events.CaseData) (bool, error) {
	_, exists, err := ws.FindCase(ctx, data.ID)
	if err != nil || exists {
		return false, err
	}
	initiated := data.InitiationDate.Time
	if initiated.IsZero() {
		initiated = requestcontext.Now(ctx)
	}
	c := &models.ProsecutionCase{
		ID:                   data.ID,
		URN:                  data.URN,
		Status:               models.CaseStatusActive,
		ProsecutingAuthority: data.ProsecutingAuthority,
		InitiationDate:       initiated.UTC().Truncate(24 * time.Hour),
	}
	for _, d := range data.Defendants {
		c.Defendants = append(c.Defendants, d.Model())
	}
	if err := ws.CreateCase(ctx, c); err != nil {
		return false, err
	}
	s.logger.InfoContext(ctx, "prosecution case created", "case_id", c.ID, "defendants", len(c.Defendants))
	return true, nil
}

func (s *Service) updateDefendantDetails(ctx context.Context, ws *aggregate.Workspace, evt events.Event) ([]events.Intent, error) {
	e := evt.(*events.DefendantDetailsUpdated)
	c, err := ws.Case(ctx, e.CaseID)
	if err != nil {
		return nil, err
	}
	d, ok := c.Defendant(e.DefendantID)
	if !ok {
		return nil, invariant("defendant %s is not on case %s", e.DefendantID, c.ID)
	}
	d.PersonDetails = e.PersonDetails.Model()
	if e.BailStatus != nil {
		d.SetBailStatus(e.BailStatus.Model())
	}
	if e.CustodyEstablishment != nil {
		ce := *e.CustodyEstablishment
		d.CustodyEstablishment = &ce
	}
	return nil, nil
}

// updateOffences adds, amends and deletes offences on a defendant. Offences
// still listed in an active hearing cannot be deleted.
func (s *Service) updateOffences(ctx context.Context, ws *aggregate.Workspace, evt events.Event) ([]events.Intent, error) {
	e := evt.(*events.DefendantOffencesUpdated)
	c, err := ws.Case(ctx, e.CaseID)
	if err != nil {
		return nil, err
	}
	d, ok := c.Defendant(e.DefendantID)
	if !ok {
		return nil, invariant("defendant %s is not on case %s", e.DefendantID, c.ID)
	}

	for _, data := range e.AddedOffences {
		if _, _, ok := c.Offence(data.ID); ok {
			continue
		}
		d.Offences = append(d.Offences, data.Model())
	}
	for _, data := range e.UpdatedOffences {
		o, ok := d.Offence(data.ID)
		if !ok {
			return nil, invariant("offence %s is not on defendant %s", data.ID, d.ID)
		}
		amendOffence(o, data)
	}
	for _, offenceID := range e.DeletedOffenceIDs {
		if _, ok := d.Offence(offenceID); !ok {
			continue
		}
		for _, h := range c.Hearings {
			if !h.ListingStatus.Active() {
				continue
			}
			for _, ref := range h.Defendants {
				if ref.DefendantID == d.ID && slices.Contains(ref.OffenceIDs, offenceID) {
					return nil, conflict("offence %s is listed in active hearing %s", offenceID, h.ID)
				}
			}
		}
		removeOffence(d, offenceID)
		for i := range c.Hearings {
			for j := range c.Hearings[i].Defendants {
				ref := &c.Hearings[i].Defendants[j]
				ref.OffenceIDs = slices.DeleteFunc(ref.OffenceIDs, func(o id.OffenceID) bool { return o == offenceID })
			}
		}
	}
	return []events.Intent{caseIntent(events.OutDefendantOffencesChanged, c.ID, d.ID.String())}, nil
}

func amendOffence(o *models.Offence, data events.OffenceData) {
	o.Code = data.Code
	o.Title = data.Title
	o.Wording = data.Wording
	o.StartDate = data.StartDate.Ptr()
	o.OrderIndex = data.OrderIndex
	if data.CustodyTimeLimit.IsZero() {
		return
	}
	if o.CustodyTimeLimit == nil {
		o.CustodyTimeLimit = &models.CustodyTimeLimit{TimeLimit: data.CustodyTimeLimit.Time}
		return
	}
	if !o.CustodyTimeLimit.IsCtlExtended {
		o.CustodyTimeLimit.TimeLimit = data.CustodyTimeLimit.Time
	}
}

func removeOffence(d *models.Defendant, offenceID id.OffenceID) {
	for i := range d.Offences {
		if d.Offences[i].ID == offenceID {
			d.Offences = append(d.Offences[:i], d.Offences[i+1:]...)
			return
		}
	}
}

// extendCustodyTimeLimit moves the limit later and restarts the day count from
// the extension date. A limit is never moved earlier.
func (s *Service) extendCustodyTimeLimit(ctx context.Context, ws *aggregate.Workspace, evt events.Event) ([]events.Intent, error) {
	e := evt.(*events.CustodyTimeLimitExtended)
	c, err := ws.Case(ctx, e.CaseID)
	if err != nil {
		return nil, err
	}
	_, o, ok := c.Offence(e.OffenceID)
	if !ok {
		return nil, invariant("offence %s is not on case %s", e.OffenceID, c.ID)
	}
	limit := e.ExtendedTimeLimit.Time
	anchor := e.ExtendedOn.Time
	if ctl := o.CustodyTimeLimit; ctl != nil {
		switch {
		case limit.Equal(ctl.TimeLimit):
			return nil, nil
		case limit.Before(ctl.TimeLimit):
			return nil, conflict("custody time limit for offence %s cannot move from %s to %s",
				o.ID, ctl.TimeLimit.Format(time.DateOnly), limit.Format(time.DateOnly))
		}
	}
	o.CustodyTimeLimit = &models.CustodyTimeLimit{
		TimeLimit:     limit,
		AnchorDate:    &anchor,
		IsCtlExtended: true,
	}
	s.logger.InfoContext(ctx, "custody time limit extended", "case_id", c.ID, "offence_id", o.ID)
	return []events.Intent{caseIntent(events.OutCustodyTimeLimitExtended, c.ID, o.ID.String())}, nil
}

func (s *Service) removeRestriction(ctx context.Context, ws *aggregate.Workspace, evt events.Event) ([]events.Intent, error) {
	e := evt.(*events.ReportingRestrictionRemoved)
	c, err := ws.Case(ctx, e.CaseID)
	if err != nil {
		return nil, err
	}
	_, o, ok := c.Offence(e.OffenceID)
	if !ok {
		return nil, invariant("offence %s is not on case %s", e.OffenceID, c.ID)
	}
	o.RemoveRestriction(e.RestrictionID)
	return nil, nil
}
