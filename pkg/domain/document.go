package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// SchemaVersion is the current persisted document schema. Documents with a
// lower (or absent) version are upgraded once at load time by Migrate.
//
// Historical shapes:
//
//	v0: single implicit dashboard; scheduleGroups and items stored as
//	    JSON arrays ordered by position.
//	v1: groups and items keyed by id, still single-dashboard.
//	v2: multi-dashboard layout (dashboards + dashboardData) without an
//	    explicit version field.
//	v3: v2 plus the version field; repeat always in string form.
const SchemaVersion = 3

// UserDocument is the whole per-user document exchanged with the remote
// store. It is read-modify-written wholesale on every save; no partial
// updates are used.
type UserDocument struct {
	Dashboards         []Dashboard              `json:"dashboards"`
	CurrentDashboardID string                   `json:"currentDashboardId"`
	DashboardData      map[string]DashboardData `json:"dashboardData"`
	Version            int                      `json:"version"`
	LastUpdated        time.Time                `json:"lastUpdated"`
}

// CloneDocument returns a deep copy of a user document.
func CloneDocument(doc UserDocument) UserDocument {
	cp := doc
	cp.Dashboards = append([]Dashboard(nil), doc.Dashboards...)
	cp.DashboardData = make(map[string]DashboardData, len(doc.DashboardData))
	for id, data := range doc.DashboardData {
		cp.DashboardData[id] = CloneDashboardData(data)
	}
	return cp
}

// NewDefaultDocument seeds the document a brand-new user starts with: a
// single dashboard with the standard seeded groups.
func NewDefaultDocument(now time.Time) UserDocument {
	dash := Dashboard{ID: NewID(), Name: "My Budget"}
	return UserDocument{
		Dashboards:         []Dashboard{dash},
		CurrentDashboardID: dash.ID,
		DashboardData:      map[string]DashboardData{dash.ID: SeedDashboardData(now)},
		Version:            SchemaVersion,
		LastUpdated:        now,
	}
}

// rawDocument tolerates every historical document shape. Group and item
// containers are kept raw because they flipped from arrays to id-keyed
// maps between versions.
type rawDocument struct {
	Dashboards         []Dashboard            `json:"dashboards"`
	CurrentDashboardID string                 `json:"currentDashboardId"`
	DashboardData      map[string]rawDashData `json:"dashboardData"`
	ScheduleGroups     json.RawMessage        `json:"scheduleGroups"`
	Version            int                    `json:"version"`
	LastUpdated        time.Time              `json:"lastUpdated"`
}

type rawDashData struct {
	ScheduleGroups json.RawMessage `json:"scheduleGroups"`
	LastModified   time.Time       `json:"lastModified"`
	SharedWith     []string        `json:"sharedWith"`
}

type rawGroup struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	IsPending  bool            `json:"isPending"`
	Items      json.RawMessage `json:"items"`
	Tags       []string        `json:"tags"`
	Archived   bool            `json:"archived"`
	CreatedAt  time.Time       `json:"createdAt"`
	OrderIndex int             `json:"orderIndex"`
	Protected  bool            `json:"protected"`
}

// Migrate decodes a persisted document of any historical schema version
// and upgrades it to the current shape. now supplies timestamps for
// records the legacy shapes never carried.
func Migrate(raw []byte, now time.Time) (UserDocument, error) {
	var in rawDocument
	if err := json.Unmarshal(raw, &in); err != nil {
		return UserDocument{}, fmt.Errorf("decode document: %w", err)
	}

	doc := UserDocument{
		Dashboards:         in.Dashboards,
		CurrentDashboardID: in.CurrentDashboardID,
		DashboardData:      make(map[string]DashboardData),
		Version:            SchemaVersion,
		LastUpdated:        in.LastUpdated,
	}

	// Pre-dashboard documents stored a single top-level group collection.
	// Wrap it in a default dashboard.
	if len(in.Dashboards) == 0 {
		dash := Dashboard{ID: NewID(), Name: "My Budget"}
		doc.Dashboards = []Dashboard{dash}
		doc.CurrentDashboardID = dash.ID
		groups, err := migrateGroups(in.ScheduleGroups, now)
		if err != nil {
			return UserDocument{}, err
		}
		if groups == nil {
			groups = make(map[string]Group)
		}
		doc.DashboardData[dash.ID] = DashboardData{
			ScheduleGroups: groups,
			LastModified:   now,
			SharedWith:     []string{},
		}
		return doc, nil
	}

	for id, data := range in.DashboardData {
		groups, err := migrateGroups(data.ScheduleGroups, now)
		if err != nil {
			return UserDocument{}, fmt.Errorf("dashboard %s: %w", id, err)
		}
		if groups == nil {
			groups = make(map[string]Group)
		}
		shared := data.SharedWith
		if shared == nil {
			shared = []string{}
		}
		doc.DashboardData[id] = DashboardData{
			ScheduleGroups: groups,
			LastModified:   data.LastModified,
			SharedWith:     shared,
		}
	}

	// Every dashboard must own a data bag, even if the writer dropped it.
	for _, dash := range doc.Dashboards {
		if _, ok := doc.DashboardData[dash.ID]; !ok {
			doc.DashboardData[dash.ID] = DashboardData{
				ScheduleGroups: make(map[string]Group),
				LastModified:   now,
				SharedWith:     []string{},
			}
		}
	}
	if doc.CurrentDashboardID == "" {
		doc.CurrentDashboardID = doc.Dashboards[0].ID
	}
	return doc, nil
}

func migrateGroups(raw json.RawMessage, now time.Time) (map[string]Group, error) {
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, nil
	}
	trimmed := bytes.TrimSpace(raw)

	var rawGroups []rawGroup
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &rawGroups); err != nil {
			return nil, fmt.Errorf("decode group list: %w", err)
		}
		// Positional order becomes the explicit order index.
		for i := range rawGroups {
			rawGroups[i].OrderIndex = i
		}
	case '{':
		var byID map[string]rawGroup
		if err := json.Unmarshal(trimmed, &byID); err != nil {
			return nil, fmt.Errorf("decode group map: %w", err)
		}
		for id, g := range byID {
			if g.ID == "" {
				g.ID = id
			}
			rawGroups = append(rawGroups, g)
		}
	default:
		return nil, fmt.Errorf("unexpected scheduleGroups shape")
	}

	out := make(map[string]Group, len(rawGroups))
	for _, rg := range rawGroups {
		if rg.ID == "" {
			rg.ID = NewID()
		}
		items, err := migrateItems(rg.Items, now)
		if err != nil {
			return nil, fmt.Errorf("group %s: %w", rg.ID, err)
		}
		createdAt := rg.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		tags := rg.Tags
		if tags == nil {
			tags = []string{}
		}
		out[rg.ID] = Group{
			ID:         rg.ID,
			Title:      rg.Title,
			IsPending:  rg.IsPending,
			Items:      items,
			Tags:       tags,
			Archived:   rg.Archived,
			CreatedAt:  createdAt,
			OrderIndex: rg.OrderIndex,
			Protected:  rg.Protected,
		}
	}
	return out, nil
}

func migrateItems(raw json.RawMessage, now time.Time) (map[string]Item, error) {
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return make(map[string]Item), nil
	}
	trimmed := bytes.TrimSpace(raw)

	var items []Item
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("decode item list: %w", err)
		}
		for i := range items {
			items[i].OrderIndex = i
		}
	case '{':
		var byID map[string]Item
		if err := json.Unmarshal(trimmed, &byID); err != nil {
			return nil, fmt.Errorf("decode item map: %w", err)
		}
		for id, item := range byID {
			if item.ID == "" {
				item.ID = id
			}
			items = append(items, item)
		}
	default:
		return nil, fmt.Errorf("unexpected items shape")
	}

	out := make(map[string]Item, len(items))
	for _, item := range items {
		if item.ID == "" {
			item.ID = NewID()
		}
		if item.CreatedAt.IsZero() {
			item.CreatedAt = now
		}
		out[item.ID] = item
	}
	return out, nil
}
