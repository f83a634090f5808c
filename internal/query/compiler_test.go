package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileDefaults(t *testing.T) {
	spec := Compile(map[string]string{})

	assert.Empty(t, spec.Search)
	assert.Empty(t, spec.Specialties)
	assert.Nil(t, spec.MinUpvotes)
	assert.Nil(t, spec.MinDownloads)
	assert.Nil(t, spec.DateFrom)
	assert.Nil(t, spec.DateTo)
	assert.Equal(t, SortNewest, spec.Sort)
}

func TestCompileNeverPanicsOnGarbage(t *testing.T) {
	inputs := []map[string]string{
		nil,
		{"search": "   "},
		{"min_upvotes": "NaN", "min_downloads": "1e9999"},
		{"date_from": "yesterday", "date_to": "32/13/2024"},
		{"sort": "'; DROP TABLE datasets;--"},
		{"specialties": ",,,", "specialty": ""},
	}

	for _, params := range inputs {
		spec := Compile(params)
		assert.Equal(t, SortNewest, spec.Sort)
		assert.Nil(t, spec.MinUpvotes)
		assert.Nil(t, spec.DateFrom)
	}
}

func TestCompileSpecialtiesPrecedence(t *testing.T) {
	spec := Compile(map[string]string{
		"specialties": "cardiology,neurology",
		"specialty":   "oncology",
	})

	assert.Equal(t, []string{"cardiology", "neurology"}, spec.Specialties)
}

func TestCompileSpecialtiesLegacyFallback(t *testing.T) {
	spec := Compile(map[string]string{"specialty": "oncology"})
	assert.Equal(t, []string{"oncology"}, spec.Specialties)

	// An all-empty multi value falls through to the legacy parameter.
	spec = Compile(map[string]string{"specialties": ",,", "specialty": "oncology"})
	assert.Equal(t, []string{"oncology"}, spec.Specialties)
}

func TestCompileSpecialtiesKeepsDuplicates(t *testing.T) {
	spec := Compile(map[string]string{"specialties": "cardiology,cardiology"})
	assert.Equal(t, []string{"cardiology", "cardiology"}, spec.Specialties)
}

func TestCompileFloors(t *testing.T) {
	spec := Compile(map[string]string{"min_upvotes": "10", "min_downloads": "3"})
	require.NotNil(t, spec.MinUpvotes)
	require.NotNil(t, spec.MinDownloads)
	assert.Equal(t, 10, *spec.MinUpvotes)
	assert.Equal(t, 3, *spec.MinDownloads)
}

func TestCompileFloorsDropInvalid(t *testing.T) {
	for _, raw := range []string{"-5", "abc", "2.5", ""} {
		spec := Compile(map[string]string{"min_upvotes": raw})
		assert.Nil(t, spec.MinUpvotes, "value %q should be dropped", raw)
	}
}

func TestCompileDateRange(t *testing.T) {
	spec := Compile(map[string]string{
		"date_from": "2024-01-01",
		"date_to":   "2024-01-15",
	})

	require.NotNil(t, spec.DateFrom)
	require.NotNil(t, spec.DateTo)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), *spec.DateFrom)

	// The upper bound must include the whole of Jan 15 but nothing of Jan 16.
	lastSecond := time.Date(2024, 1, 15, 23, 59, 59, 0, time.UTC)
	nextMidnight := time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC)
	assert.True(t, spec.DateTo.After(lastSecond))
	assert.True(t, spec.DateTo.Before(nextMidnight))
}

func TestCompileDateDropsUnparsable(t *testing.T) {
	spec := Compile(map[string]string{"date_from": "01/02/2024", "date_to": "soon"})
	assert.Nil(t, spec.DateFrom)
	assert.Nil(t, spec.DateTo)
}

func TestCompileSort(t *testing.T) {
	cases := map[string]SortKey{
		"newest":          SortNewest,
		"oldest":          SortOldest,
		"most_upvoted":    SortMostUpvoted,
		"most_downloaded": SortMostDownloaded,
		"alphabetical":    SortAlphabetical,
		"":                SortNewest,
		"popular":         SortNewest,
	}

	for raw, want := range cases {
		spec := Compile(map[string]string{"sort": raw})
		assert.Equal(t, want, spec.Sort, "sort=%q", raw)
	}
}

func TestSortKeyOrderBy(t *testing.T) {
	assert.Equal(t, "created_at DESC", SortNewest.OrderBy())
	assert.Equal(t, "created_at ASC", SortOldest.OrderBy())
	assert.Equal(t, "LOWER(title) ASC", SortAlphabetical.OrderBy())
	assert.Contains(t, SortMostUpvoted.OrderBy(), "upvotes_count DESC")
	assert.Contains(t, SortMostDownloaded.OrderBy(), "monthly_downloads DESC")
}

func TestCompileDeterministic(t *testing.T) {
	params := map[string]string{
		"search":      "MRI",
		"specialties": "radiology,neurology",
		"min_upvotes": "2",
		"sort":        "alphabetical",
	}

	first := Compile(params)
	second := Compile(params)
	assert.Equal(t, first, second)
}
