package brackets

const (
	// PointsToWin is the score that closes a set when the opponent is below DeuceAt.
	PointsToWin = 11
	// DeuceAt is the opponent score from which a set must be won by WinMargin.
	DeuceAt   = 10
	WinMargin = 2
)

// ValidateSet checks a single set's point pair against table-tennis rules.
// A nil result does not mean the set is over; see HasSetWinner.
func ValidateSet(a, b int) error {
	if a < 0 || b < 0 {
		return validationf("points cannot be negative (%d-%d)", a, b)
	}
	if a == 0 && b == 0 {
		return nil
	}
	if a < PointsToWin && b < PointsToWin {
		return nil
	}

	hi, lo := a, b
	if b > a {
		hi, lo = b, a
	}

	if hi == PointsToWin && lo < DeuceAt {
		return nil
	}
	if hi > PointsToWin && lo < DeuceAt {
		return validationf("cannot exceed %d unless opponent has >=%d (%d-%d)", PointsToWin, DeuceAt, a, b)
	}
	if lo > PointsToWin {
		if hi-lo != WinMargin {
			return validationf("must win by exactly %d (%d-%d)", WinMargin, a, b)
		}
		return nil
	}
	// both sides are at DeuceAt or above
	if hi-lo <= WinMargin {
		return nil
	}
	return validationf("deuce must be won by exactly %d (%d-%d)", WinMargin, a, b)
}

// HasSetWinner reports whether the pair is a finished set.
func HasSetWinner(a, b int) bool {
	hi, lo := a, b
	if b > a {
		hi, lo = b, a
	}
	if hi == PointsToWin && lo < DeuceAt {
		return true
	}
	return lo >= DeuceAt && hi-lo == WinMargin
}

// SetWinner returns 1 or 2 for a finished set and 0 otherwise.
func SetWinner(a, b int) int {
	if !HasSetWinner(a, b) {
		return 0
	}
	if a > b {
		return 1
	}
	return 2
}
