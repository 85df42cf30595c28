package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "progression/pkg/domain-errors"
)

// Typed identifiers for the aggregates and records the engine tracks. Each is a
// distinct type so a hearing id can never be passed where a case id is expected.

// parseID rejects empty, malformed and nil UUIDs.
func parseID(s, label string) (uuid.UUID, error) {
	if strings.TrimSpace(s) == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" id is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label+" id")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" id must not be nil")
	}
	return u, nil
}

// unmarshalID accepts an empty value as the nil id so that required-field checks
// happen in validation rather than in the decoder.
func unmarshalID(text []byte, label string) (uuid.UUID, error) {
	if len(text) == 0 {
		return uuid.Nil, nil
	}
	u, err := uuid.ParseBytes(text)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label+" id")
	}
	return u, nil
}

type CaseID uuid.UUID

func ParseCaseID(s string) (CaseID, error) {
	u, err := parseID(s, "case")
	return CaseID(u), err
}

func (id CaseID) String() string { return uuid.UUID(id).String() }
func (id CaseID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id CaseID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *CaseID) UnmarshalText(text []byte) error {
	u, err := unmarshalID(text, "case")
	if err != nil {
		return err
	}
	*id = CaseID(u)
	return nil
}

type DefendantID uuid.UUID

func ParseDefendantID(s string) (DefendantID, error) {
	u, err := parseID(s, "defendant")
	return DefendantID(u), err
}

func (id DefendantID) String() string { return uuid.UUID(id).String() }
func (id DefendantID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id DefendantID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *DefendantID) UnmarshalText(text []byte) error {
	u, err := unmarshalID(text, "defendant")
	if err != nil {
		return err
	}
	*id = DefendantID(u)
	return nil
}

type MasterDefendantID uuid.UUID

func ParseMasterDefendantID(s string) (MasterDefendantID, error) {
	u, err := parseID(s, "master defendant")
	return MasterDefendantID(u), err
}

func (id MasterDefendantID) String() string { return uuid.UUID(id).String() }
func (id MasterDefendantID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id MasterDefendantID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *MasterDefendantID) UnmarshalText(text []byte) error {
	u, err := unmarshalID(text, "master defendant")
	if err != nil {
		return err
	}
	*id = MasterDefendantID(u)
	return nil
}

type OffenceID uuid.UUID

func ParseOffenceID(s string) (OffenceID, error) {
	u, err := parseID(s, "offence")
	return OffenceID(u), err
}

func (id OffenceID) String() string { return uuid.UUID(id).String() }
func (id OffenceID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id OffenceID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *OffenceID) UnmarshalText(text []byte) error {
	u, err := unmarshalID(text, "offence")
	if err != nil {
		return err
	}
	*id = OffenceID(u)
	return nil
}

type HearingID uuid.UUID

func ParseHearingID(s string) (HearingID, error) {
	u, err := parseID(s, "hearing")
	return HearingID(u), err
}

func (id HearingID) String() string { return uuid.UUID(id).String() }
func (id HearingID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id HearingID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *HearingID) UnmarshalText(text []byte) error {
	u, err := unmarshalID(text, "hearing")
	if err != nil {
		return err
	}
	*id = HearingID(u)
	return nil
}

type ApplicationID uuid.UUID

func ParseApplicationID(s string) (ApplicationID, error) {
	u, err := parseID(s, "court application")
	return ApplicationID(u), err
}

func (id ApplicationID) String() string { return uuid.UUID(id).String() }
func (id ApplicationID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id ApplicationID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *ApplicationID) UnmarshalText(text []byte) error {
	u, err := unmarshalID(text, "court application")
	if err != nil {
		return err
	}
	*id = ApplicationID(u)
	return nil
}

type LinkGroupID uuid.UUID

func ParseLinkGroupID(s string) (LinkGroupID, error) {
	u, err := parseID(s, "link group")
	return LinkGroupID(u), err
}

func (id LinkGroupID) String() string { return uuid.UUID(id).String() }
func (id LinkGroupID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id LinkGroupID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *LinkGroupID) UnmarshalText(text []byte) error {
	u, err := unmarshalID(text, "link group")
	if err != nil {
		return err
	}
	*id = LinkGroupID(u)
	return nil
}

type EventID uuid.UUID

func ParseEventID(s string) (EventID, error) {
	u, err := parseID(s, "event")
	return EventID(u), err
}

func (id EventID) String() string { return uuid.UUID(id).String() }
func (id EventID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id EventID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *EventID) UnmarshalText(text []byte) error {
	u, err := unmarshalID(text, "event")
	if err != nil {
		return err
	}
	*id = EventID(u)
	return nil
}
