package events

import "progression/internal/aggregate"

// OutboundType names an integration event published downstream.
type OutboundType string

const (
	OutProsecutionCaseCreated         OutboundType = "prosecution-case-created"
	OutCasesReferredToCourt           OutboundType = "prosecution-cases-referred-to-court"
	OutHearingResultedCaseUpdated     OutboundType = "hearing-resulted-case-updated"
	OutDefendantOffencesChanged       OutboundType = "defendant-offences-changed"
	OutDefendantLegalAidStatusUpdated OutboundType = "defendant-legalaid-status-updated"
	OutCustodyTimeLimitExtended       OutboundType = "custody-time-limit-extended"
	OutCourtApplicationCreated        OutboundType = "court-application-created"
	OutBoxworkAssignmentChanged       OutboundType = "boxwork-assignment-changed"
)

// OutboundTypes lists every integration event type; each has its own topic.
var OutboundTypes = []OutboundType{
	OutProsecutionCaseCreated,
	OutCasesReferredToCourt,
	OutHearingResultedCaseUpdated,
	OutDefendantOffencesChanged,
	OutDefendantLegalAidStatusUpdated,
	OutCustodyTimeLimitExtended,
	OutCourtApplicationCreated,
	OutBoxworkAssignmentChanged,
}

// Intent asks for an outbound event about an aggregate. The payload is built
// later from the committed state, never from the triggering event. Subject
// narrows the event to a defendant or offence within the aggregate.
type Intent struct {
	Type    OutboundType
	Key     aggregate.Key
	Subject string
}
