package service

import (
	"context"

	"progression/internal/aggregate"
	"progression/internal/events"
	"progression/internal/progression/models"
)

func (s *Service) associateDefence(ctx context.Context, ws *aggregate.Workspace, evt events.Event) ([]events.Intent, error) {
	e := evt.(*events.DefenceOrganisationAssociated)
	c, err := ws.Case(ctx, e.CaseID)
	if err != nil {
		return nil, err
	}
	d, ok := c.Defendant(e.DefendantID)
	if !ok {
		return nil, invariant("defendant %s is not on case %s", e.DefendantID, c.ID)
	}
	d.AssociatedDefenceOrganisation = &models.DefenceOrganisation{
		OrganisationID:    e.Organisation.ID,
		Name:              e.Organisation.Name,
		LaaContractNumber: e.Organisation.LaaContractNumber,
		AssociatedBy:      e.AssociatedBy,
		StartDate:         e.StartDate.Time,
	}
	return []events.Intent{caseIntent(events.OutDefendantLegalAidStatusUpdated, c.ID, d.ID.String())}, nil
}

// disassociateDefence clears the association when it names the organisation.
// Removing an organisation that is not associated changes nothing.
func (s *Service) disassociateDefence(ctx context.Context, ws *aggregate.Workspace, evt events.Event) ([]events.Intent, error) {
	e := evt.(*events.DefenceOrganisationDisassociated)
	c, err := ws.Case(ctx, e.CaseID)
	if err != nil {
		return nil, err
	}
	d, ok := c.Defendant(e.DefendantID)
	if !ok {
		return nil, invariant("defendant %s is not on case %s", e.DefendantID, c.ID)
	}
	org := d.AssociatedDefenceOrganisation
	if org == nil || org.OrganisationID != e.OrganisationID {
		return nil, nil
	}
	d.AssociatedDefenceOrganisation = nil
	return []events.Intent{caseIntent(events.OutDefendantLegalAidStatusUpdated, c.ID, d.ID.String())}, nil
}

// receiveRepresentationOrder records the legal aid decision on an offence and
// associates the named organisation when the defendant has none.
func (s *Service) receiveRepresentationOrder(ctx context.Context, ws *aggregate.Workspace, evt events.Event) ([]events.Intent, error) {
	e := evt.(*events.RepresentationOrderReceived)
	c, err := ws.Case(ctx, e.CaseID)
	if err != nil {
		return nil, err
	}
	d, ok := c.Defendant(e.DefendantID)
	if !ok {
		return nil, invariant("defendant %s is not on case %s", e.DefendantID, c.ID)
	}
	o, ok := d.Offence(e.OffenceID)
	if !ok {
		return nil, invariant("offence %s is not on defendant %s", e.OffenceID, d.ID)
	}
	o.LAAReference = &models.LAAReference{
		ApplicationReference: e.ApplicationReference,
		StatusCode:           e.StatusCode,
		StatusDescription:    e.StatusDescription,
		StatusDate:           e.StatusDate.Time,
		LaaContractNumber:    e.LaaContractNumber,
	}
	if e.DefenceOrganisation != nil && d.AssociatedDefenceOrganisation == nil {
		d.AssociatedDefenceOrganisation = &models.DefenceOrganisation{
			OrganisationID:    e.DefenceOrganisation.ID,
			Name:              e.DefenceOrganisation.Name,
			LaaContractNumber: e.DefenceOrganisation.LaaContractNumber,
			StartDate:         e.StatusDate.Time,
		}
	}
	return []events.Intent{caseIntent(events.OutDefendantLegalAidStatusUpdated, c.ID, d.ID.String())}, nil
}
