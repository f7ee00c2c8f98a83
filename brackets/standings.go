package brackets

import (
	"sort"

	"github.com/Dosada05/tabletennis-bracket/models"
)

// GenerateStandings projects the final ranking of a completed bracket:
// champion, runner-up, third-place winner and loser, then everyone else by
// the round they lost in (latest first, then participant id).
func GenerateStandings(slots []*models.BracketSlot) ([]models.TournamentStanding, error) {
	if !IsComplete(slots) {
		return nil, conflictf("standings", "tournament is not complete")
	}
	maxRound := MaxNormalRound(slots)
	final := normalSlots(slots, maxRound)[0]

	placed := make(map[int]bool)
	standings := make([]models.TournamentStanding, 0)
	add := func(id int, label models.StandingLabel, round *int) {
		if placed[id] {
			return
		}
		placed[id] = true
		standings = append(standings, models.TournamentStanding{
			Place:           len(standings) + 1,
			ParticipantID:   id,
			Label:           label,
			EliminatedRound: round,
		})
	}

	add(*final.WinnerID, models.StandingChampion, nil)
	if id, ok := final.Loser(); ok {
		r := maxRound
		add(id, models.StandingRunnerUp, &r)
	}
	if tp := ThirdPlaceSlot(slots); tp != nil {
		add(*tp.WinnerID, models.StandingThird, nil)
		if id, ok := tp.Loser(); ok {
			r := tp.Round
			add(id, models.StandingFourth, &r)
		}
	}

	type elimination struct {
		id, round int
	}
	var rest []elimination
	for _, s := range slots {
		if s.Stage == models.StageThirdPlace {
			continue
		}
		if id, ok := s.Loser(); ok && !placed[id] {
			rest = append(rest, elimination{id: id, round: s.Round})
		}
	}
	sort.Slice(rest, func(i, j int) bool {
		if rest[i].round != rest[j].round {
			return rest[i].round > rest[j].round
		}
		return rest[i].id < rest[j].id
	})
	for _, e := range rest {
		r := e.round
		add(e.id, models.StandingEliminated, &r)
	}
	return standings, nil
}
