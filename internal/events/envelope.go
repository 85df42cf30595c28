// Package events defines the closed set of inbound event variants the engine
// accepts, the envelope they travel in, and the outbound event contracts.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"progression/internal/aggregate"
	id "progression/pkg/domain"
	dErrors "progression/pkg/domain-errors"
)

// Type is the logical inbound event name.
type Type string

// Envelope is the transport form of an inbound event.
type Envelope struct {
	ID         id.EventID      `json:"eventId"`
	Type       Type            `json:"type"`
	OccurredAt time.Time       `json:"occurredAt"`
	Source     string          `json:"source,omitempty"`
	Payload    json.RawMessage `json:"payload"`
}

// Event is implemented by every inbound variant.
type Event interface {
	EventType() Type
	Validate() error
	Correlate() Correlation
}

// Correlation lists the aggregates an event refers to. Primary is the
// aggregate the event is deduplicated against.
type Correlation struct {
	Primary        aggregate.Key
	CaseIDs        []id.CaseID
	HearingIDs     []id.HearingID
	DefendantIDs   []id.DefendantID
	ApplicationIDs []id.ApplicationID
}

// Attrs flattens the correlation keys for logging and dead-letter records.
func (c Correlation) Attrs() map[string][]string {
	out := map[string][]string{}
	for _, v := range c.CaseIDs {
		out["case_id"] = append(out["case_id"], v.String())
	}
	for _, v := range c.HearingIDs {
		out["hearing_id"] = append(out["hearing_id"], v.String())
	}
	for _, v := range c.DefendantIDs {
		out["defendant_id"] = append(out["defendant_id"], v.String())
	}
	for _, v := range c.ApplicationIDs {
		out["application_id"] = append(out["application_id"], v.String())
	}
	return out
}

// Handler applies one event to the aggregates in ws and names the outbound
// events the change should produce.
type Handler func(ctx context.Context, ws *aggregate.Workspace, evt Event) ([]Intent, error)

// ErrUnknownType marks an envelope whose type has no variant.
var ErrUnknownType = errors.New("unknown event type")

var registry = map[Type]func() Event{}

func register(t Type, factory func() Event) {
	registry[t] = factory
}

// Known reports whether t names a registered variant.
func Known(t Type) bool {
	_, ok := registry[t]
	return ok
}

// Types lists every registered variant.
func Types() []Type {
	out := make([]Type, 0, len(registry))
	for t := range registry {
		out = append(out, t)
	}
	return out
}

// ValidateEnvelope checks the fields every envelope needs.
func ValidateEnvelope(env Envelope) error {
	v := newValidator()
	v.check(!env.ID.IsNil(), "eventId is required")
	v.check(strings.TrimSpace(string(env.Type)) != "", "type is required")
	v.check(len(env.Payload) > 0 && string(env.Payload) != "null", "payload is required")
	return v.err()
}

// Decode turns an envelope into its typed variant and validates it. Unknown
// types return ErrUnknownType; shape problems return a validation error.
func Decode(env Envelope) (Event, error) {
	if err := ValidateEnvelope(env); err != nil {
		return nil, err
	}
	factory, ok := registry[env.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, env.Type)
	}
	evt := factory()
	if err := json.Unmarshal(env.Payload, evt); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "decode "+string(env.Type)+" payload")
	}
	if err := evt.Validate(); err != nil {
		return nil, err
	}
	return evt, nil
}

// NewEnvelope wraps a variant for submission.
func NewEnvelope(eventID id.EventID, evt Event, occurredAt time.Time, source string) (Envelope, error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s: %w", evt.EventType(), err)
	}
	return Envelope{
		ID:         eventID,
		Type:       evt.EventType(),
		OccurredAt: occurredAt.UTC(),
		Source:     source,
		Payload:    payload,
	}, nil
}

// -----------------------------------------------------------------------------
// Validation helpers
// -----------------------------------------------------------------------------

type validator struct {
	problems []string
}

func newValidator() *validator { return &validator{} }

func (v *validator) check(ok bool, msg string) {
	if !ok {
		v.problems = append(v.problems, msg)
	}
}

func (v *validator) err() error {
	if len(v.problems) == 0 {
		return nil
	}
	return dErrors.New(dErrors.CodeValidation, strings.Join(v.problems, "; "))
}

// -----------------------------------------------------------------------------
// Date
// -----------------------------------------------------------------------------

// Date is a calendar date. It accepts "2006-01-02" or an RFC 3339 timestamp.
type Date struct {
	time.Time
}

func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(time.DateOnly))
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		*d = Date{Time: t}
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("invalid date %q", s)
	}
	*d = NewDate(t)
	return nil
}

// Ptr returns the date as *time.Time, nil when unset.
func (d *Date) Ptr() *time.Time {
	if d == nil || d.IsZero() {
		return nil
	}
	t := d.Time
	return &t
}
