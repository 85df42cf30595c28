package service

import (
	"context"
	"slices"

	"progression/internal/aggregate"
	"progression/internal/events"
	"progression/internal/progression/models"
)

// initiateApplication creates a court application. The linked case and the
// parent application must already exist.
func (s *Service) initiateApplication(ctx context.Context, ws *aggregate.Workspace, evt events.Event) ([]events.Intent, error) {
	e := evt.(*events.CourtApplicationInitiated)
	data := e.Application
	if _, exists, err := ws.FindApplication(ctx, data.ID); err != nil || exists {
		return nil, err
	}

	app := &models.CourtApplication{
		ID:                   data.ID,
		Type:                 data.Type,
		Status:               models.ApplicationUnallocated,
		ApplicationReference: data.ApplicationReference,
		Applicant:            data.Applicant,
		Subject:              data.Subject,
		Respondents:          data.Respondents,
		LinkedCaseID:         data.LinkedCaseID,
		ParentApplicationID:  data.ParentApplicationID,
		Payment:              data.Payment,
	}
	if data.LinkedCaseID != nil {
		c, err := ws.Case(ctx, *data.LinkedCaseID)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(c.LinkedApplicationIDs, app.ID) {
			c.LinkedApplicationIDs = append(c.LinkedApplicationIDs, app.ID)
		}
	}
	if data.ParentApplicationID != nil {
		parent, err := ws.Application(ctx, *data.ParentApplicationID)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(parent.ChildApplicationIDs, app.ID) {
			parent.ChildApplicationIDs = append(parent.ChildApplicationIDs, app.ID)
		}
	}
	if err := ws.CreateApplication(ctx, app); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "court application created", "application_id", app.ID)
	return []events.Intent{{
		Type: events.OutCourtApplicationCreated,
		Key:  aggregate.ApplicationKey(app.ID),
	}}, nil
}

func (s *Service) editApplicationFee(ctx context.Context, ws *aggregate.Workspace, evt events.Event) ([]events.Intent, error) {
	e := evt.(*events.ApplicationFeeEdited)
	app, err := ws.Application(ctx, e.ApplicationID)
	if err != nil {
		return nil, err
	}
	payment := e.Payment
	app.Payment = &payment
	return nil, nil
}

// changeBoxworkAssignment sets or clears the adviser working the application.
func (s *Service) changeBoxworkAssignment(ctx context.Context, ws *aggregate.Workspace, evt events.Event) ([]events.Intent, error) {
	e := evt.(*events.BoxworkAssignmentChanged)
	app, err := ws.Application(ctx, e.ApplicationID)
	if err != nil {
		return nil, err
	}
	if app.Status == models.ApplicationFinalised {
		return nil, conflict("application %s is finalised", app.ID)
	}
	app.AssignedUser = e.AssignedUser
	return []events.Intent{{
		Type: events.OutBoxworkAssignmentChanged,
		Key:  aggregate.ApplicationKey(app.ID),
	}}, nil
}
