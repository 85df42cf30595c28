package aggregate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"progression/internal/progression/models"
	id "progression/pkg/domain"
	"progression/pkg/platform/sentinel"
)

// Workspace is a unit of work over the store. Handlers load aggregates through
// it, mutate the returned pointers, and the engine commits whatever changed.
// A Workspace is used by one goroutine for one attempt.
type Workspace struct {
	store   Store
	entries map[Key]*entry
}

type entry struct {
	version  int64
	original []byte
	value    any
}

// emptier is implemented by group aggregates that need not be stored until
// they have members.
type emptier interface {
	Empty() bool
}

// Change is a committed aggregate write.
type Change struct {
	Key     Key
	Version int64
	Data    []byte
	Created bool
}

func NewWorkspace(store Store) *Workspace {
	return &Workspace{store: store, entries: make(map[Key]*entry)}
}

// Find loads the aggregate at key into the workspace. A missing aggregate
// yields ok=false with no error.
func Find[T any](ctx context.Context, ws *Workspace, key Key) (*T, bool, error) {
	if e, ok := ws.entries[key]; ok {
		if e.value == nil {
			return nil, false, nil
		}
		v, ok := e.value.(*T)
		if !ok {
			return nil, false, fmt.Errorf("aggregate %s loaded as %T", key, e.value)
		}
		return v, true, nil
	}

	snap, err := ws.store.Load(ctx, key)
	if errors.Is(err, sentinel.ErrNotFound) {
		ws.entries[key] = &entry{}
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load %s: %w", key, err)
	}

	v := new(T)
	if err := json.Unmarshal(snap.Data, v); err != nil {
		return nil, false, fmt.Errorf("decode %s: %w", key, err)
	}
	// Re-encode so change detection is insensitive to storage formatting.
	canonical, err := json.Marshal(v)
	if err != nil {
		return nil, false, fmt.Errorf("encode %s: %w", key, err)
	}
	ws.entries[key] = &entry{version: snap.Version, original: canonical, value: v}
	return v, true, nil
}

// Get is Find that reports a missing aggregate as *MissingError.
func Get[T any](ctx context.Context, ws *Workspace, key Key) (*T, error) {
	v, ok, err := Find[T](ctx, ws, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &MissingError{Key: key}
	}
	return v, nil
}

// Put registers a new aggregate. It fails if the key already holds one.
func Put[T any](ctx context.Context, ws *Workspace, key Key, v *T) error {
	_, ok, err := Find[T](ctx, ws, key)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("create %s: %w", key, sentinel.ErrConflict)
	}
	ws.entries[key].value = v
	return nil
}

// Loaded lists the keys of every aggregate present in the workspace in commit order.
func (ws *Workspace) Loaded() []Key {
	keys := make([]Key, 0, len(ws.entries))
	for k, e := range ws.entries {
		if e.value != nil {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// Value returns the in-workspace pointer for key.
func (ws *Workspace) Value(key Key) (any, bool) {
	e, ok := ws.entries[key]
	if !ok || e.value == nil {
		return nil, false
	}
	return e.value, true
}

// Commit writes every created or changed aggregate in ascending key order.
// A conflict on any aggregate aborts the remaining writes.
func (ws *Workspace) Commit(ctx context.Context) ([]Change, error) {
	var changes []Change
	for _, key := range ws.Loaded() {
		e := ws.entries[key]
		if ev, ok := e.value.(emptier); ok && e.version == 0 && ev.Empty() {
			continue
		}
		data, err := json.Marshal(e.value)
		if err != nil {
			return changes, fmt.Errorf("encode %s: %w", key, err)
		}
		created := e.version == 0
		if !created && bytes.Equal(data, e.original) {
			continue
		}
		version, err := ws.store.Commit(ctx, key, e.version, data)
		if err != nil {
			return changes, fmt.Errorf("commit %s: %w", key, err)
		}
		e.version = version
		e.original = data
		changes = append(changes, Change{Key: key, Version: version, Data: data, Created: created})
	}
	return changes, nil
}

// Snapshots returns the current state of every loaded aggregate. After Commit
// the versions reflect the committed writes.
func (ws *Workspace) Snapshots() []Snapshot {
	keys := ws.Loaded()
	out := make([]Snapshot, 0, len(keys))
	for _, key := range keys {
		e := ws.entries[key]
		if e.version == 0 {
			continue
		}
		out = append(out, Snapshot{Key: key, Version: e.version, Data: e.original})
	}
	return out
}

// -----------------------------------------------------------------------------
// Typed accessors
// -----------------------------------------------------------------------------

func CaseKey(caseID id.CaseID) Key { return Key{Kind: KindCase, ID: caseID.String()} }

func HearingKey(hearingID id.HearingID) Key { return Key{Kind: KindHearing, ID: hearingID.String()} }

func ApplicationKey(applicationID id.ApplicationID) Key {
	return Key{Kind: KindApplication, ID: applicationID.String()}
}

func MasterDefendantKey(masterID id.MasterDefendantID) Key {
	return Key{Kind: KindMasterDefendant, ID: masterID.String()}
}

func LinkGroupKey(groupID id.LinkGroupID) Key { return Key{Kind: KindLinkGroup, ID: groupID.String()} }

func (ws *Workspace) Case(ctx context.Context, caseID id.CaseID) (*models.ProsecutionCase, error) {
	return Get[models.ProsecutionCase](ctx, ws, CaseKey(caseID))
}

func (ws *Workspace) FindCase(ctx context.Context, caseID id.CaseID) (*models.ProsecutionCase, bool, error) {
	return Find[models.ProsecutionCase](ctx, ws, CaseKey(caseID))
}

func (ws *Workspace) CreateCase(ctx context.Context, c *models.ProsecutionCase) error {
	return Put(ctx, ws, CaseKey(c.ID), c)
}

func (ws *Workspace) Hearing(ctx context.Context, hearingID id.HearingID) (*models.Hearing, error) {
	return Get[models.Hearing](ctx, ws, HearingKey(hearingID))
}

func (ws *Workspace) FindHearing(ctx context.Context, hearingID id.HearingID) (*models.Hearing, bool, error) {
	return Find[models.Hearing](ctx, ws, HearingKey(hearingID))
}

func (ws *Workspace) CreateHearing(ctx context.Context, h *models.Hearing) error {
	return Put(ctx, ws, HearingKey(h.ID), h)
}

func (ws *Workspace) Application(ctx context.Context, applicationID id.ApplicationID) (*models.CourtApplication, error) {
	return Get[models.CourtApplication](ctx, ws, ApplicationKey(applicationID))
}

func (ws *Workspace) FindApplication(ctx context.Context, applicationID id.ApplicationID) (*models.CourtApplication, bool, error) {
	return Find[models.CourtApplication](ctx, ws, ApplicationKey(applicationID))
}

func (ws *Workspace) CreateApplication(ctx context.Context, a *models.CourtApplication) error {
	return Put(ctx, ws, ApplicationKey(a.ID), a)
}

// MatchGroup loads the master defendant group, creating an empty one in the
// workspace when none exists. Empty groups are never committed.
func (ws *Workspace) MatchGroup(ctx context.Context, masterID id.MasterDefendantID) (*models.MatchGroup, error) {
	key := MasterDefendantKey(masterID)
	g, ok, err := Find[models.MatchGroup](ctx, ws, key)
	if err != nil || ok {
		return g, err
	}
	g = &models.MatchGroup{MasterDefendantID: masterID}
	ws.entries[key].value = g
	return g, nil
}

// LinkGroup loads the link group, creating an empty one in the workspace when
// none exists.
func (ws *Workspace) LinkGroup(ctx context.Context, groupID id.LinkGroupID) (*models.LinkGroup, error) {
	key := LinkGroupKey(groupID)
	g, ok, err := Find[models.LinkGroup](ctx, ws, key)
	if err != nil || ok {
		return g, err
	}
	g = &models.LinkGroup{ID: groupID}
	ws.entries[key].value = g
	return g, nil
}

// Cases returns every case loaded in the workspace, in commit order.
func (ws *Workspace) Cases() []*models.ProsecutionCase {
	var out []*models.ProsecutionCase
	for _, key := range ws.Loaded() {
		if key.Kind != KindCase {
			continue
		}
		if c, ok := ws.entries[key].value.(*models.ProsecutionCase); ok {
			out = append(out, c)
		}
	}
	return out
}

// Mutate runs fn against a fresh workspace, starting over whenever a commit
// loses a version race. After attempts tries the last conflict is returned.
func Mutate(ctx context.Context, store Store, attempts int, fn func(ctx context.Context, ws *Workspace) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		err = fn(ctx, NewWorkspace(store))
		if !errors.Is(err, ErrVersionConflict) {
			return err
		}
	}
	return fmt.Errorf("after %d attempts: %w", attempts, err)
}
