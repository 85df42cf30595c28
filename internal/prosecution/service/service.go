// Package service applies case, defendant, offence and court application
// events to the case and application aggregates.
package service

import (
	"fmt"
	"log/slog"

	"progression/internal/aggregate"
	"progression/internal/events"
	id "progression/pkg/domain"
	dErrors "progression/pkg/domain-errors"
)

// Service applies prosecution case and application events.
type Service struct {
	logger *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets the logger for the service.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(opts ...Option) *Service {
	s := &Service{logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handlers returns the inbound event types this service owns.
func (s *Service) Handlers() map[events.Type]events.Handler {
	return map[events.Type]events.Handler{
		events.TypeCaseInitiated:                 s.initiateCase,
		events.TypeCasesReferredToCourt:          s.referCases,
		events.TypeDefendantDetailsUpdated:       s.updateDefendantDetails,
		events.TypeDefendantOffencesUpdated:      s.updateOffences,
		events.TypeCustodyTimeLimitExtended:      s.extendCustodyTimeLimit,
		events.TypeReportingRestrictionRemoved:   s.removeRestriction,
		events.TypeDefenceOrganisationAssociated: s.associateDefence,
		events.TypeDefenceOrganisationRemoved:    s.disassociateDefence,
		events.TypeRepresentationOrderReceived:   s.receiveRepresentationOrder,
		events.TypeCourtApplicationInitiated:     s.initiateApplication,
		events.TypeApplicationFeeEdited:          s.editApplicationFee,
		events.TypeBoxworkAssignmentChanged:      s.changeBoxworkAssignment,
	}
}

func conflict(format string, args ...any) error {
	return dErrors.New(dErrors.CodeConflict, fmt.Sprintf(format, args...))
}

func invariant(format string, args ...any) error {
	return dErrors.New(dErrors.CodeInvariantViolation, fmt.Sprintf(format, args...))
}

func caseIntent(t events.OutboundType, caseID id.CaseID, subject string) events.Intent {
	return events.Intent{Type: t, Key: aggregate.CaseKey(caseID), Subject: subject}
}
