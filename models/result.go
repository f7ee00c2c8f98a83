package models

import "time"

// MaxSets is the longest match format supported (best of 9).
const MaxSets = 9

// SetScore is the point pair of one set. {0, 0} means the set has not been played.
type SetScore struct {
	P1 int `json:"p1"`
	P2 int `json:"p2"`
}

func (s SetScore) IsZero() bool { return s.P1 == 0 && s.P2 == 0 }

// Result is the score sheet of a match. SetsWon and coefficients are derived
// from Sets and are recomputed on every save.
type Result struct {
	ID        int               `json:"id" db:"id"`
	MatchID   int               `json:"match_id" db:"match_id"`
	Sets      [MaxSets]SetScore `json:"sets" db:"-"`
	SetsWonP1 int               `json:"sets_won_p1" db:"sets_won_p1"`
	SetsWonP2 int               `json:"sets_won_p2" db:"sets_won_p2"`
	CoefP1    float64           `json:"coef_p1" db:"coef_p1"`
	CoefP2    float64           `json:"coef_p2" db:"coef_p2"`
	Walkover  bool              `json:"walkover" db:"walkover"`
	UpdatedAt time.Time         `json:"updated_at" db:"updated_at"`
}

// Set returns the score of set index (1-based).
func (r *Result) Set(index int) SetScore {
	if index < 1 || index > MaxSets {
		return SetScore{}
	}
	return r.Sets[index-1]
}
