package repositories

import (
	"context"
	"errors"
	"testing"

	"github.com/Dosada05/tabletennis-bracket/models"
)

func seedTournament(t *testing.T, s *MemoryStore) *models.Tournament {
	t.Helper()
	tour := &models.Tournament{Name: "Spring Open", Status: models.StatusRegistration, BestOfSets: 5, RefereeIDs: []int{7}}
	if err := s.View().Tournaments().Create(context.Background(), tour); err != nil {
		t.Fatal(err)
	}
	return tour
}

func TestMemoryStoreRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	tour := seedTournament(t, s)

	boom := errors.New("boom")
	err := s.InTx(ctx, func(tx Tx) error {
		slot := &models.BracketSlot{TournamentID: tour.ID, Round: 1, Position: 1, Stage: models.StageNormal}
		if err := tx.Slots().Create(ctx, slot); err != nil {
			return err
		}
		if err := tx.Tournaments().UpdateStatus(ctx, tour.ID, models.StatusActive, nil); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}

	slots, _ := s.View().Slots().ListByTournament(ctx, tour.ID)
	if len(slots) != 0 {
		t.Fatalf("%d slots survived the rollback", len(slots))
	}
	got, _ := s.View().Tournaments().GetByID(ctx, tour.ID)
	if got.Status != models.StatusRegistration {
		t.Fatalf("status = %s after rollback", got.Status)
	}
}

func TestMemoryStoreRollsBackOnPanic(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	tour := seedTournament(t, s)

	func() {
		defer func() { _ = recover() }()
		_ = s.InTx(ctx, func(tx Tx) error {
			_ = tx.Tournaments().UpdateStandingsURL(ctx, tour.ID, "https://example.com/x.json")
			panic("fail")
		})
	}()
	got, _ := s.View().Tournaments().GetByID(ctx, tour.ID)
	if got.StandingsURL != nil {
		t.Fatal("standings url survived the rollback")
	}
}

func TestMemoryStoreUniqueness(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	tour := seedTournament(t, s)
	tx := s.View()

	slot := &models.BracketSlot{TournamentID: tour.ID, Round: 1, Position: 1, Stage: models.StageNormal}
	if err := tx.Slots().Create(ctx, slot); err != nil {
		t.Fatal(err)
	}
	dup := &models.BracketSlot{TournamentID: tour.ID, Round: 1, Position: 1, Stage: models.StageNormal}
	if err := tx.Slots().Create(ctx, dup); !errors.Is(err, ErrSlotPositionConflict) {
		t.Fatalf("duplicate slot err = %v", err)
	}

	m := &models.Match{TournamentID: tour.ID, SlotID: slot.ID, Round: 1, Position: 1}
	if err := tx.Matches().Create(ctx, m); err != nil {
		t.Fatal(err)
	}
	if err := tx.Matches().Create(ctx, &models.Match{TournamentID: tour.ID, SlotID: slot.ID}); !errors.Is(err, ErrMatchSlotConflict) {
		t.Fatalf("duplicate match err = %v", err)
	}
	if err := tx.Participants().Create(ctx, &models.Participant{TournamentID: 999, Name: "x"}); !errors.Is(err, ErrInvalidTournamentRef) {
		t.Fatalf("dangling participant err = %v", err)
	}
}

func TestMemoryStoreResultUpsertAndCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	tour := seedTournament(t, s)
	tx := s.View()

	slot := &models.BracketSlot{TournamentID: tour.ID, Round: 1, Position: 1, Stage: models.StageNormal}
	_ = tx.Slots().Create(ctx, slot)
	m := &models.Match{TournamentID: tour.ID, SlotID: slot.ID}
	_ = tx.Matches().Create(ctx, m)

	r := &models.Result{MatchID: m.ID}
	r.Sets[0] = models.SetScore{P1: 11, P2: 4}
	if err := tx.Results().Save(ctx, r); err != nil {
		t.Fatal(err)
	}
	firstID := r.ID
	r.Sets[1] = models.SetScore{P1: 8, P2: 11}
	if err := tx.Results().Save(ctx, r); err != nil {
		t.Fatal(err)
	}
	if r.ID != firstID {
		t.Fatalf("upsert changed id %d -> %d", firstID, r.ID)
	}

	got, err := tx.Results().GetByMatch(ctx, m.ID)
	if err != nil {
		t.Fatal(err)
	}
	got.Sets[0] = models.SetScore{}
	again, _ := tx.Results().GetByMatch(ctx, m.ID)
	if again.Sets[0].P1 != 11 || again.Sets[1].P2 != 11 {
		t.Fatalf("stored result = %+v", again.Sets)
	}

	list, _ := tx.Results().ListByTournament(ctx, tour.ID)
	if len(list) != 1 {
		t.Fatalf("%d results listed", len(list))
	}
	if _, err := tx.Results().GetByMatch(ctx, 12345); !errors.Is(err, ErrResultNotFound) {
		t.Fatalf("missing result err = %v", err)
	}
}

func TestMemoryStoreSlotOrdering(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	tour := seedTournament(t, s)
	tx := s.View()

	for _, sl := range []models.BracketSlot{
		{Round: 2, Position: 1, Stage: models.StageNormal},
		{Round: 1, Position: 3, Stage: models.StageThirdPlace},
		{Round: 1, Position: 2, Stage: models.StageNormal},
		{Round: 1, Position: 1, Stage: models.StageNormal},
	} {
		sl := sl
		sl.TournamentID = tour.ID
		if err := tx.Slots().Create(ctx, &sl); err != nil {
			t.Fatal(err)
		}
	}
	slots, _ := tx.Slots().ListByTournament(ctx, tour.ID)
	want := []struct {
		round, pos int
		stage      models.SlotStage
	}{
		{1, 1, models.StageNormal},
		{1, 2, models.StageNormal},
		{1, 3, models.StageThirdPlace},
		{2, 1, models.StageNormal},
	}
	for i, w := range want {
		if slots[i].Round != w.round || slots[i].Position != w.pos || slots[i].Stage != w.stage {
			t.Fatalf("slot %d = %+v, want %+v", i, slots[i], w)
		}
	}
}

func TestMemoryStoreListByReferee(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	first := seedTournament(t, s)
	second := seedTournament(t, s)
	tx := s.View()

	ref := 7
	other := 8
	create := func(tournamentID, round, pos int, referee *int) *models.Match {
		slot := &models.BracketSlot{TournamentID: tournamentID, Round: round, Position: pos, Stage: models.StageNormal}
		if err := tx.Slots().Create(ctx, slot); err != nil {
			t.Fatal(err)
		}
		m := &models.Match{TournamentID: tournamentID, SlotID: slot.ID, Round: round, Position: pos, Stage: models.StageNormal, RefereeID: referee}
		if err := tx.Matches().Create(ctx, m); err != nil {
			t.Fatal(err)
		}
		return m
	}
	a := create(second.ID, 1, 1, &ref)
	b := create(first.ID, 2, 1, &ref)
	c := create(first.ID, 1, 2, &ref)
	create(first.ID, 1, 1, &other)
	create(first.ID, 1, 3, nil)

	got, err := tx.Matches().ListByReferee(ctx, ref)
	if err != nil {
		t.Fatal(err)
	}
	want := []int{c.ID, b.ID, a.ID}
	if len(got) != len(want) {
		t.Fatalf("%d matches listed, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("match %d = %d, want %d", i, got[i].ID, id)
		}
	}
	if none, _ := tx.Matches().ListByReferee(ctx, 99); len(none) != 0 {
		t.Fatalf("unknown referee has %d matches", len(none))
	}
}
