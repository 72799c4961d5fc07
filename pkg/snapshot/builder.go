package snapshot

import (
	"maps"
	"sort"
	"strings"
)

// RankTopEntities keeps entities with a numeric p value, orders them by p
// ascending (stable for ties) and returns at most limit projections.
// A limit of zero or less means DefaultTopLimit.
func RankTopEntities(records []Entity, limit int) []RankedEntity {
	if limit <= 0 {
		limit = DefaultTopLimit
	}

	candidates := make([]Entity, 0, len(records))
	for _, r := range records {
		if r.P.Valid {
			candidates = append(candidates, r)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].P.Value < candidates[j].P.Value
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	ranked := make([]RankedEntity, 0, len(candidates))
	for _, c := range candidates {
		ranked = append(ranked, RankedEntity{
			Metabolite: c.Metabolite,
			Class:      c.Class,
			HMDB:       c.HMDB,
			P:          c.P,
			Log2FC:     c.Log2FC,
			FC:         c.FC,
		})
	}
	return ranked
}

// SummarizeGroups buckets samples by a case-insensitive prefix of their group.
// Every sample lands in exactly one bucket.
func SummarizeGroups(samples []Sample) GroupSummary {
	var summary GroupSummary
	for _, s := range samples {
		group := strings.ToLower(s.Group)
		switch {
		case strings.HasPrefix(group, "normal"):
			summary.Normal++
		case strings.HasPrefix(group, "tumor"):
			summary.Tumor++
		default:
			summary.Other++
		}
	}
	return summary
}

// BuildSnapshot derives the grounding context from the host state.
// Missing fields produce empty values, never an error.
func BuildSnapshot(state HostState) DashboardSnapshot {
	// The filtered list wins whenever the host sent one, even if it is empty.
	hits := state.Filtered
	if hits == nil {
		hits = state.Metabolites
	}

	return DashboardSnapshot{
		Filters:       copyFilters(state.Filters),
		Summary:       append([]byte(nil), state.Summary...),
		SampleSummary: SummarizeGroups(state.SampleMeta),
		Counts: Counts{
			TotalMetabolites:    len(state.Metabolites),
			FilteredMetabolites: len(state.Filtered),
		},
		TopHits:  RankTopEntities(hits, DefaultTopLimit),
		Selected: selectionDetail(state.Selected),
	}
}

// BuildSelectionContext builds the context for explaining the selected entity.
// It reports false when nothing is selected.
func BuildSelectionContext(state HostState) (SelectionContext, bool) {
	if state.Selected == nil {
		return SelectionContext{}, false
	}

	stats := make(map[string][]float64)
	for _, sv := range state.Selected.SampleValues {
		if !sv.Value.Valid {
			continue
		}
		key := strings.ToLower(sv.Group)
		if key == "" {
			key = "unknown"
		}
		stats[key] = append(stats[key], sv.Value.Value)
	}

	return SelectionContext{
		Selection:  *selectionDetail(state.Selected),
		GroupStats: stats,
		Filters:    copyFilters(state.Filters),
	}, true
}

func selectionDetail(sel *SelectedEntity) *SelectionDetail {
	if sel == nil {
		return nil
	}
	return &SelectionDetail{
		Metabolite: sel.Metabolite,
		Class:      sel.Class,
		HMDB:       sel.HMDB,
		Log2FC:     sel.Log2FC,
		FC:         sel.FC,
		P:          sel.P,
		NormalMean: sel.NormalMean,
		TumorMean:  sel.TumorMean,
	}
}

func copyFilters(f Filters) map[string]any {
	out := make(map[string]any, len(f))
	maps.Copy(out, f)
	return out
}
