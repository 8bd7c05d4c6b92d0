package timeline

import "sort"

// CategoryCount is the number of segments logged against one category.
type CategoryCount struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
	Count int    `json:"count"`
}

// TagCount is the number of segments carrying one tag.
type TagCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Stats is the summary view of a set of day segments. It is purely derived
// and recomputed on every call.
type Stats struct {
	TotalDurationMinutes int             `json:"total_duration_minutes"`
	Categories           []CategoryCount `json:"categories"`
	Tags                 []TagCount      `json:"tags"`
}

// Aggregate reduces day segments into totals: summed duration, per-category
// segment counts, and per-tag segment counts. Lanes are a display concept and
// never influence totals — overlapping segments each contribute their full
// duration. Uncategorized segments and category ids missing from the lookup
// are excluded from the category breakdown rather than bucketed into a
// pseudo-category; naming the leftovers is display policy, not aggregation.
func Aggregate(segments []DaySegment, categories map[string]Category) Stats {
	var stats Stats

	catCounts := make(map[string]int)
	tagCounts := make(map[string]int)

	for _, seg := range segments {
		stats.TotalDurationMinutes += seg.DurationMinutes

		if seg.CategoryID != "" {
			if _, ok := categories[seg.CategoryID]; ok {
				catCounts[seg.CategoryID]++
			}
		}

		for _, tag := range seg.Tags {
			tagCounts[tag]++
		}
	}

	stats.Categories = make([]CategoryCount, 0, len(catCounts))
	for id, n := range catCounts {
		cat := categories[id]
		stats.Categories = append(stats.Categories, CategoryCount{
			ID:    id,
			Name:  cat.Name,
			Color: cat.Color,
			Count: n,
		})
	}
	sort.Slice(stats.Categories, func(i, j int) bool {
		if stats.Categories[i].Count != stats.Categories[j].Count {
			return stats.Categories[i].Count > stats.Categories[j].Count
		}
		return stats.Categories[i].Name < stats.Categories[j].Name
	})

	stats.Tags = make([]TagCount, 0, len(tagCounts))
	for name, n := range tagCounts {
		stats.Tags = append(stats.Tags, TagCount{Name: name, Count: n})
	}
	sort.Slice(stats.Tags, func(i, j int) bool {
		if stats.Tags[i].Count != stats.Tags[j].Count {
			return stats.Tags[i].Count > stats.Tags[j].Count
		}
		return stats.Tags[i].Name < stats.Tags[j].Name
	})

	return stats
}
