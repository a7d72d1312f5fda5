package database

// Page size bounds. Callers may ask for any limit; stores clamp before
// querying, so a caller must never assume its requested value was honored.
const (
	DefaultArticlePageSize = 20
	MaxArticlePageSize     = 50

	DefaultXDataPageSize = 20
	MaxXDataPageSize     = 100
)

// clampLimit normalizes a requested page size into [1, max], substituting
// def when the caller passed nothing (zero or negative).
func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		limit = def
	}
	if limit < 1 {
		return 1
	}
	if limit > max {
		return max
	}
	return limit
}

// ClampArticleLimit applies the article page size bounds
func ClampArticleLimit(limit int) int {
	return clampLimit(limit, DefaultArticlePageSize, MaxArticlePageSize)
}

// ClampXDataLimit applies the social post page size bounds
func ClampXDataLimit(limit int) int {
	return clampLimit(limit, DefaultXDataPageSize, MaxXDataPageSize)
}

// trimOverfetch implements the fetch-limit-plus-one trick: stores query
// pageSize+1 rows ordered by the sort key; a full overfetch means another
// page exists and the extra row is dropped.
func trimOverfetch[T any](rows []T, pageSize int) ([]T, bool) {
	if len(rows) > pageSize {
		return rows[:pageSize], true
	}
	return rows, false
}
