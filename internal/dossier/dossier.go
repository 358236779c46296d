// Package dossier defines the document model: the dossier record, its
// project metadata, the fixed step catalog and timestamp helpers.
package dossier

import (
	"encoding/json"
	"strings"
)

const (
	// Version tags the document-level schema generation.
	Version = "rhs-dossier-v1"

	DefaultProjectName  = "Untitled dossier"
	ImportedProjectName = "Imported dossier"
)

// Dossier is the single unit of user work. Extra holds top-level members
// this model does not know, and known members of an unexpected type, so that
// they survive a decode/encode cycle.
type Dossier struct {
	Version           string                     `json:"version"`
	ID                string                     `json:"id"`
	CreatedAt         string                     `json:"createdAt"`
	UpdatedAt         string                     `json:"updatedAt"`
	LastVisitedStepID string                     `json:"lastVisitedStepId,omitempty"`
	Meta              Meta                       `json:"meta"`
	Steps             map[string]json.RawMessage `json:"steps"`
	Extra             map[string]json.RawMessage `json:"-"`
}

func (d *Dossier) members() []member {
	return []member{
		{key: "version", value: &d.Version, zero: d.Version == ""},
		{key: "id", value: &d.ID, zero: d.ID == ""},
		{key: "createdAt", value: &d.CreatedAt, zero: d.CreatedAt == ""},
		{key: "updatedAt", value: &d.UpdatedAt, zero: d.UpdatedAt == ""},
		{key: "lastVisitedStepId", value: &d.LastVisitedStepID, zero: d.LastVisitedStepID == "", omitEmpty: true},
		{key: "meta", value: &d.Meta},
		{key: "steps", value: &d.Steps},
	}
}

// MarshalJSON writes the known members in order followed by Extra.
func (d Dossier) MarshalJSON() ([]byte, error) {
	return encodeObject(d.members(), d.Extra)
}

// UnmarshalJSON decodes the known members and keeps the rest in Extra.
func (d *Dossier) UnmarshalJSON(data []byte) error {
	*d = Dossier{}
	extra, err := decodeObject(data, d.members())
	if err != nil {
		return err
	}
	d.Extra = extra
	return nil
}

// Meta is the free-text project metadata. Reviewer holds the embedded
// reviewer scoring sub-document verbatim. Extra keeps members this model
// does not know, and known members that are not strings.
type Meta struct {
	ProjectName    string                     `json:"projectName"`
	Organisation   string                     `json:"organisation"`
	PrimaryUser    string                     `json:"primaryUser"`
	Setting        string                     `json:"setting"`
	OneLineProblem string                     `json:"oneLineProblem"`
	Notes          string                     `json:"notes"`
	Reviewer       json.RawMessage            `json:"reviewerV1,omitempty"`
	Extra          map[string]json.RawMessage `json:"-"`
}

func (m *Meta) members() []member {
	return []member{
		{key: "projectName", value: &m.ProjectName, zero: m.ProjectName == ""},
		{key: "organisation", value: &m.Organisation, zero: m.Organisation == ""},
		{key: "primaryUser", value: &m.PrimaryUser, zero: m.PrimaryUser == ""},
		{key: "setting", value: &m.Setting, zero: m.Setting == ""},
		{key: "oneLineProblem", value: &m.OneLineProblem, zero: m.OneLineProblem == ""},
		{key: "notes", value: &m.Notes, zero: m.Notes == ""},
		{key: "reviewerV1", value: &m.Reviewer, zero: len(m.Reviewer) == 0, omitEmpty: true},
	}
}

// MarshalJSON writes the known members in order followed by Extra.
func (m Meta) MarshalJSON() ([]byte, error) {
	return encodeObject(m.members(), m.Extra)
}

// UnmarshalJSON decodes meta leniently: a field of the wrong type is left
// empty and its original value kept in Extra instead of failing the whole
// document.
func (m *Meta) UnmarshalJSON(data []byte) error {
	*m = Meta{}
	extra, err := decodeObject(data, m.members())
	if err != nil {
		return err
	}
	if string(m.Reviewer) == "null" {
		m.Reviewer = nil
	}
	m.Extra = extra
	return nil
}

// MetaPatch carries a partial metadata update. Nil fields are left as is.
type MetaPatch struct {
	ProjectName    *string `json:"projectName,omitempty"`
	Organisation   *string `json:"organisation,omitempty"`
	PrimaryUser    *string `json:"primaryUser,omitempty"`
	Setting        *string `json:"setting,omitempty"`
	OneLineProblem *string `json:"oneLineProblem,omitempty"`
	Notes          *string `json:"notes,omitempty"`
}

// Apply copies every set field of p onto m. A set field replaces any
// preserved value of the same name.
func (p MetaPatch) Apply(m *Meta) {
	set := func(key string, dst *string, src *string) {
		if src != nil {
			*dst = *src
			delete(m.Extra, key)
		}
	}
	set("projectName", &m.ProjectName, p.ProjectName)
	set("organisation", &m.Organisation, p.Organisation)
	set("primaryUser", &m.PrimaryUser, p.PrimaryUser)
	set("setting", &m.Setting, p.Setting)
	set("oneLineProblem", &m.OneLineProblem, p.OneLineProblem)
	set("notes", &m.Notes, p.Notes)
}

// Empty reports whether the patch sets nothing.
func (p MetaPatch) Empty() bool {
	return p == MetaPatch{}
}

// DefaultMeta returns blank metadata with the default project name.
func DefaultMeta() Meta {
	return Meta{ProjectName: DefaultProjectName}
}

// DemoMeta returns the fixed illustrative sample metadata.
func DemoMeta() Meta {
	return Meta{
		ProjectName:    "DEMO – Pre-procedure instruction clarity",
		Organisation:   "Example Imaging Centre",
		PrimaryUser:    "Nursing + admin team",
		Setting:        "Outpatient imaging / day procedure",
		OneLineProblem: "Patients don’t understand or remember pre-procedure instructions, causing delays, rescheduling, and wasted clinic capacity.",
		Notes: "DEMO ONLY.\n\nContext:\n" +
			"- Patients receive prep instructions via paper + SMS + verbal handover.\n" +
			"- Common failure points: fasting rules, medication holds, arrival time, what to bring.\n\n" +
			"Use this dossier to explore the workflow and evidence capture, not as a real project.",
	}
}

// New builds an empty dossier positioned at the first step.
func New(id, now string, meta Meta) *Dossier {
	return &Dossier{
		Version:           Version,
		ID:                id,
		CreatedAt:         now,
		UpdatedAt:         now,
		LastVisitedStepID: FirstStepID,
		Meta:              meta,
		Steps:             map[string]json.RawMessage{},
	}
}

// DisplayName returns the project name or the default placeholder.
func (d *Dossier) DisplayName() string {
	if name := strings.TrimSpace(d.Meta.ProjectName); name != "" {
		return d.Meta.ProjectName
	}
	return DefaultProjectName
}

// Encode renders d in the stored representation: two-space indented JSON.
func Encode(d *Dossier) ([]byte, error) {
	if d.Steps == nil {
		d.Steps = map[string]json.RawMessage{}
	}
	return json.MarshalIndent(d, "", "  ")
}

// HasShape is the minimal structural check applied to stored and imported
// documents: string id, createdAt and updatedAt; meta and steps, when
// present and non-null, must be objects.
func HasShape(v any) bool {
	obj, ok := v.(map[string]any)
	if !ok {
		return false
	}
	for _, k := range []string{"id", "createdAt", "updatedAt"} {
		if _, ok := obj[k].(string); !ok {
			return false
		}
	}
	for _, k := range []string{"meta", "steps"} {
		switch obj[k].(type) {
		case nil, map[string]any:
		default:
			return false
		}
	}
	return true
}

// Decode parses stored text into a dossier. It returns nil when the text is
// not JSON, fails HasShape, or cannot be mapped onto the document fields.
func Decode(text []byte) *Dossier {
	var generic any
	if err := json.Unmarshal(text, &generic); err != nil || !HasShape(generic) {
		return nil
	}
	var d Dossier
	if err := json.Unmarshal(text, &d); err != nil {
		return nil
	}
	if d.Steps == nil {
		d.Steps = map[string]json.RawMessage{}
	}
	return &d
}
