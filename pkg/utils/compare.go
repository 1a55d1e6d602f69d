package utils

import (
	"fmt"
	"strings"
)

// CompareValues compares two values with given operator
// Returns true if comparison matches, false otherwise
func CompareValues(a, b interface{}, operator string) (bool, error) {
	op := strings.ToUpper(strings.TrimSpace(operator))

	switch op {
	case "IN":
		return compareIn(a, b)
	case "NOT IN":
		result, err := compareIn(a, b)
		return !result, err
	case "LIKE":
		return compareLike(a, b)
	case "NOT LIKE":
		result, err := compareLike(a, b)
		return !result, err
	}

	// Handle nil values
	if a == nil || b == nil {
		switch op {
		case "=", "==", "EQ":
			return a == nil && b == nil, nil
		case "!=", "<>", "NEQ":
			return !(a == nil && b == nil), nil
		default:
			return false, nil
		}
	}

	// Try numeric comparison
	aNum, aErr := ToFloat64(a)
	bNum, bErr := ToFloat64(b)

	if aErr == nil && bErr == nil {
		switch op {
		case "=", "==", "EQ":
			return aNum == bNum, nil
		case "!=", "<>", "NEQ":
			return aNum != bNum, nil
		case ">", "GT":
			return aNum > bNum, nil
		case "<", "LT":
			return aNum < bNum, nil
		case ">=", "GE":
			return aNum >= bNum, nil
		case "<=", "LE":
			return aNum <= bNum, nil
		default:
			return false, fmt.Errorf("unsupported operator: %s", operator)
		}
	}

	// String comparison
	aStr := ToString(a)
	bStr := ToString(b)

	switch op {
	case "=", "==", "EQ":
		return aStr == bStr, nil
	case "!=", "<>", "NEQ":
		return aStr != bStr, nil
	case ">", "GT":
		return aStr > bStr, nil
	case "<", "LT":
		return aStr < bStr, nil
	case ">=", "GE":
		return aStr >= bStr, nil
	case "<=", "LE":
		return aStr <= bStr, nil
	default:
		return false, fmt.Errorf("unsupported operator: %s", operator)
	}
}

// CompareValuesForSort compares two values for sorting
// Returns -1: a < b, 0: a == b, 1: a > b
func CompareValuesForSort(a, b interface{}) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}

	aNum, aErr := ToFloat64(a)
	bNum, bErr := ToFloat64(b)

	if aErr == nil && bErr == nil {
		if aNum < bNum {
			return -1
		} else if aNum > bNum {
			return 1
		}
		return 0
	}

	return strings.Compare(ToString(a), ToString(b))
}

// ValuesEqual reports whether two values are equal under string semantics:
// 1, int64(1) and "1" are the same value, nil only equals nil.
func ValuesEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return ToString(a) == ToString(b)
}

// compareIn checks if value is in list
func compareIn(a, b interface{}) (bool, error) {
	switch values := b.(type) {
	case []interface{}:
		for _, v := range values {
			if ValuesEqual(a, v) {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("IN operator requires array value")
	}
}

// compareLike checks if value matches pattern
// Supports % (any chars), _ (one char) and * (glob style any chars)
func compareLike(a, b interface{}) (bool, error) {
	if a == nil || b == nil {
		return false, nil
	}
	pattern := strings.ReplaceAll(ToString(b), "*", "%")
	return MatchesLike(ToString(a), pattern), nil
}

// MatchesLike matches s against a SQL LIKE pattern
func MatchesLike(s, pattern string) bool {
	sr, pr := []rune(s), []rune(pattern)
	si, pi := 0, 0
	star, mark := -1, 0
	for si < len(sr) {
		switch {
		case pi < len(pr) && (pr[pi] == '_' || pr[pi] == sr[si]):
			si++
			pi++
		case pi < len(pr) && pr[pi] == '%':
			star = pi
			mark = si
			pi++
		case star >= 0:
			pi = star + 1
			mark++
			si = mark
		default:
			return false
		}
	}
	for pi < len(pr) && pr[pi] == '%' {
		pi++
	}
	return pi == len(pr)
}
