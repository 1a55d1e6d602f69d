package join

import (
	"sort"
	"strings"

	"github.com/jon-wei/druid-sub000/pkg/resource/domain"
)

// IsPrefixedBy reports whether column starts with prefix and has a non-empty remainder.
func IsPrefixedBy(column, prefix string) bool {
	return len(column) > len(prefix) && strings.HasPrefix(column, prefix)
}

// ValidatePrefix rejects empty prefixes and prefixes that would shadow the time column.
func ValidatePrefix(prefix string) error {
	if prefix == "" {
		return domain.NewErrInvalidPrefix(prefix, "join clause cannot have an empty prefix")
	}
	if prefix == domain.TimeColumn || IsPrefixedBy(domain.TimeColumn, prefix) {
		return domain.NewErrInvalidPrefix(prefix, "join clause prefix would shadow "+domain.TimeColumn)
	}
	return nil
}

// CheckPrefixesForDuplicatesAndShadowing rejects duplicate prefixes and any
// prefix that is itself a prefix of another clause's prefix.
func CheckPrefixesForDuplicatesAndShadowing(prefixes []string) error {
	sorted := make([]string, len(prefixes))
	copy(sorted, prefixes)
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) < len(sorted[j]) })

	for i, p1 := range sorted {
		for _, p2 := range sorted[i+1:] {
			if p1 == p2 {
				return domain.NewErrDuplicatePrefix(p1)
			}
			if strings.HasPrefix(p2, p1) {
				return domain.NewErrConflictingPrefix(p1, p2)
			}
		}
	}
	return nil
}
