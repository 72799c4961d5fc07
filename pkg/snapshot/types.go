// Package snapshot derives the bounded grounding context sent with every
// assistant request from the dashboard's host data model.
//
// Host data is read-only here: builders copy the fields they keep and never
// hand out references into the host state.
package snapshot

import (
	"bytes"
	"encoding/json"
)

// DefaultTopLimit bounds the number of ranked entities in a snapshot.
const DefaultTopLimit = 5

// Entity is one measured compound as the dashboard exposes it.
type Entity struct {
	Metabolite string `json:"metabolite,omitempty"`
	Class      string `json:"class,omitempty"`
	HMDB       string `json:"hmdb,omitempty"`
	P          Stat   `json:"p"`
	Log2FC     Stat   `json:"log2fc"`
	FC         Stat   `json:"fc"`
}

// SampleValue is one measurement of the selected entity in one sample.
type SampleValue struct {
	Group string `json:"group,omitempty"`
	Value Stat   `json:"value"`
}

// SelectedEntity is the entity the user clicked in the table or a chart.
type SelectedEntity struct {
	Entity
	NormalMean   Stat          `json:"normalMean"`
	TumorMean    Stat          `json:"tumorMean"`
	SampleValues []SampleValue `json:"sampleValues,omitempty"`
}

// Sample is a sample metadata row. Only the group is used.
type Sample struct {
	Group string `json:"group,omitempty"`
}

// HostState is the dashboard data model. Every field is optional.
type HostState struct {
	Filters     Filters         `json:"filters,omitempty"`
	Summary     json.RawMessage `json:"summary,omitempty"`
	SampleMeta  SampleList      `json:"sampleMeta,omitempty"`
	Metabolites EntityList      `json:"metabolites,omitempty"`
	Filtered    EntityList      `json:"filtered,omitempty"`
	Selected    *SelectedEntity `json:"selected,omitempty"`
}

// UnmarshalJSON decodes field by field so one malformed field never discards
// the rest of the host state.
func (h *HostState) UnmarshalJSON(data []byte) error {
	*h = HostState{}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil
	}

	if raw, ok := fields["filters"]; ok {
		_ = json.Unmarshal(raw, &h.Filters)
	}
	if raw, ok := fields["summary"]; ok && !isNull(raw) {
		h.Summary = append(json.RawMessage(nil), raw...)
	}
	if raw, ok := fields["sampleMeta"]; ok {
		_ = json.Unmarshal(raw, &h.SampleMeta)
	}
	if raw, ok := fields["metabolites"]; ok {
		_ = json.Unmarshal(raw, &h.Metabolites)
	}
	if raw, ok := fields["filtered"]; ok {
		_ = json.Unmarshal(raw, &h.Filtered)
	}
	if raw, ok := fields["selected"]; ok && !isNull(raw) {
		var sel SelectedEntity
		if err := json.Unmarshal(raw, &sel); err == nil {
			h.Selected = &sel
		}
	}
	return nil
}

// Filters holds the dashboard's active filter values. Anything other than a
// JSON object decodes to no filters.
type Filters map[string]any

func (f *Filters) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		*f = nil
		return nil
	}
	*f = m
	return nil
}

// EntityList decodes a JSON array of entities. A value that is not an array
// decodes to nil; an element that is not an entity object becomes a zero Entity
// so list lengths still match what the host sent.
type EntityList []Entity

func (l *EntityList) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil || raws == nil {
		*l = nil
		return nil
	}
	out := make(EntityList, len(raws))
	for i, raw := range raws {
		_ = json.Unmarshal(raw, &out[i])
	}
	*l = out
	return nil
}

// SampleList decodes sample metadata with the same tolerance as EntityList.
type SampleList []Sample

func (l *SampleList) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil || raws == nil {
		*l = nil
		return nil
	}
	out := make(SampleList, len(raws))
	for i, raw := range raws {
		var s Sample
		if err := json.Unmarshal(raw, &s); err == nil {
			out[i] = s
		}
	}
	*l = out
	return nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// RankedEntity is the projection of an Entity kept for grounding.
type RankedEntity struct {
	Metabolite string `json:"metabolite,omitempty"`
	Class      string `json:"class,omitempty"`
	HMDB       string `json:"hmdb,omitempty"`
	P          Stat   `json:"p"`
	Log2FC     Stat   `json:"log2fc"`
	FC         Stat   `json:"fc"`
}

// SelectionDetail is the projection of the selected entity.
type SelectionDetail struct {
	Metabolite string `json:"metabolite,omitempty"`
	Class      string `json:"class,omitempty"`
	HMDB       string `json:"hmdb,omitempty"`
	Log2FC     Stat   `json:"log2fc"`
	FC         Stat   `json:"fc"`
	P          Stat   `json:"p"`
	NormalMean Stat   `json:"normalMean"`
	TumorMean  Stat   `json:"tumorMean"`
}

// GroupSummary counts samples per study group.
type GroupSummary struct {
	Normal int `json:"normal"`
	Tumor  int `json:"tumor"`
	Other  int `json:"other"`
}

// Total is the number of classified samples.
func (g GroupSummary) Total() int {
	return g.Normal + g.Tumor + g.Other
}

// Counts reports list sizes of the host state.
type Counts struct {
	TotalMetabolites    int `json:"totalMetabolites"`
	FilteredMetabolites int `json:"filteredMetabolites"`
}

// DashboardSnapshot is the grounding context for general questions.
type DashboardSnapshot struct {
	Filters       map[string]any   `json:"filters"`
	Summary       json.RawMessage  `json:"summary"`
	SampleSummary GroupSummary     `json:"sampleSummary"`
	Counts        Counts           `json:"counts"`
	TopHits       []RankedEntity   `json:"topHits"`
	Selected      *SelectionDetail `json:"selected"`
}

// SelectionContext is the narrower context sent when explaining the selection.
type SelectionContext struct {
	Selection  SelectionDetail      `json:"selection"`
	GroupStats map[string][]float64 `json:"groupStats"`
	Filters    map[string]any       `json:"filters"`
}
