// Package query normalises untrusted catalog filter parameters into a typed
// specification. Compilation is total: malformed values degrade to "absent"
// instead of producing errors, so any parameter bag yields a usable Spec.
package query

import (
	"strconv"
	"strings"
	"time"
)

// SortKey identifies one of the fixed catalog orderings.
type SortKey string

const (
	SortNewest         SortKey = "newest"
	SortOldest         SortKey = "oldest"
	SortMostUpvoted    SortKey = "most_upvoted"
	SortMostDownloaded SortKey = "most_downloaded"
	SortAlphabetical   SortKey = "alphabetical"
)

const dateLayout = "2006-01-02"

// Spec is the normalised result of compiling raw filter parameters. Absent
// filters are nil pointers or empty values; Sort is always a valid key.
type Spec struct {
	Search       string
	Specialties  []string
	MinUpvotes   *int
	MinDownloads *int
	DateFrom     *time.Time
	DateTo       *time.Time
	Sort         SortKey
}

// Compile translates the raw parameter map into a Spec. It never fails:
// values that do not parse, or parse to something meaningless (a negative
// floor), are treated as if the parameter had been omitted.
func Compile(params map[string]string) Spec {
	spec := Spec{Sort: SortNewest}

	spec.Search = strings.TrimSpace(params["search"])
	spec.Specialties = compileSpecialties(params["specialties"], params["specialty"])
	spec.MinUpvotes = parseFloor(params["min_upvotes"])
	spec.MinDownloads = parseFloor(params["min_downloads"])

	if from, ok := parseDate(params["date_from"]); ok {
		spec.DateFrom = &from
	}
	if to, ok := parseDate(params["date_to"]); ok {
		// Inclusive bound: cover the entire requested day, not just midnight.
		end := to.Add(24*time.Hour - time.Millisecond)
		spec.DateTo = &end
	}

	spec.Sort = parseSort(params["sort"])

	return spec
}

// compileSpecialties resolves the legacy single-value parameter against the
// current comma-separated one. The multi-valued form wins whenever it yields
// at least one non-empty token; duplicates are passed through untouched since
// the store's IN semantics make them harmless.
func compileSpecialties(multi, single string) []string {
	if multi != "" {
		var tokens []string
		for _, part := range strings.Split(multi, ",") {
			if token := strings.TrimSpace(part); token != "" {
				tokens = append(tokens, token)
			}
		}
		if len(tokens) > 0 {
			return tokens
		}
	}

	if legacy := strings.TrimSpace(single); legacy != "" {
		return []string{legacy}
	}

	return nil
}

func parseFloor(raw string) *int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value < 0 {
		return nil
	}
	return &value
}

func parseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	parsed, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}

func parseSort(raw string) SortKey {
	switch key := SortKey(raw); key {
	case SortNewest, SortOldest, SortMostUpvoted, SortMostDownloaded, SortAlphabetical:
		return key
	default:
		return SortNewest
	}
}

// OrderBy returns the SQL ordering clause for the sort key. Count-based sorts
// carry a recency tiebreaker so pagination stays stable.
func (k SortKey) OrderBy() string {
	switch k {
	case SortOldest:
		return "created_at ASC"
	case SortMostUpvoted:
		return "upvotes_count DESC, created_at DESC"
	case SortMostDownloaded:
		return "monthly_downloads DESC, created_at DESC"
	case SortAlphabetical:
		return "LOWER(title) ASC"
	default:
		return "created_at DESC"
	}
}
