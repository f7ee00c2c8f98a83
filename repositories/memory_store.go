package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Dosada05/tabletennis-bracket/models"
)

type slotKey struct {
	tournamentID, round, position int
}

type memoryState struct {
	nextID       int
	tournaments  map[int]models.Tournament
	participants map[int]models.Participant
	slots        map[int]models.BracketSlot
	slotIndex    map[slotKey]int
	matches      map[int]models.Match
	matchBySlot  map[int]int
	results      map[int]models.Result // by match id
}

func newMemoryState() *memoryState {
	return &memoryState{
		tournaments:  make(map[int]models.Tournament),
		participants: make(map[int]models.Participant),
		slots:        make(map[int]models.BracketSlot),
		slotIndex:    make(map[slotKey]int),
		matches:      make(map[int]models.Match),
		matchBySlot:  make(map[int]int),
		results:      make(map[int]models.Result),
	}
}

func (s *memoryState) clone() *memoryState {
	c := newMemoryState()
	c.nextID = s.nextID
	for k, v := range s.tournaments {
		v.RefereeIDs = append([]int(nil), v.RefereeIDs...)
		c.tournaments[k] = v
	}
	for k, v := range s.participants {
		c.participants[k] = v
	}
	for k, v := range s.slots {
		c.slots[k] = v
	}
	for k, v := range s.slotIndex {
		c.slotIndex[k] = v
	}
	for k, v := range s.matches {
		c.matches[k] = v
	}
	for k, v := range s.matchBySlot {
		c.matchBySlot[k] = v
	}
	for k, v := range s.results {
		c.results[k] = v
	}
	return c
}

func (s *memoryState) id() int {
	s.nextID++
	return s.nextID
}

// MemoryStore keeps everything in process memory. Transactions are fully
// serialized and rolled back by restoring a snapshot. Reads through View see
// the state of an in-flight transaction.
type MemoryStore struct {
	txMu  sync.Mutex
	mu    sync.RWMutex
	state *memoryState
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemoryState(), now: time.Now}
}

func (s *MemoryStore) View() Tx { return memoryTx{s: s} }

func (s *MemoryStore) InTx(ctx context.Context, fn func(tx Tx) error) (txErr error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()

	defer func() {
		if p := recover(); p != nil {
			s.restore(snapshot)
			panic(p)
		} else if txErr != nil {
			s.restore(snapshot)
		}
	}()
	txErr = fn(memoryTx{s: s})
	return txErr
}

func (s *MemoryStore) restore(snapshot *memoryState) {
	s.mu.Lock()
	s.state = snapshot
	s.mu.Unlock()
}

type memoryTx struct {
	s *MemoryStore
}

func (t memoryTx) Tournaments() TournamentRepository   { return memoryTournaments{t.s} }
func (t memoryTx) Participants() ParticipantRepository { return memoryParticipants{t.s} }
func (t memoryTx) Slots() SlotRepository               { return memorySlots{t.s} }
func (t memoryTx) Matches() MatchRepository            { return memoryMatches{t.s} }
func (t memoryTx) Results() ResultRepository           { return memoryResults{t.s} }

type memoryTournaments struct{ s *MemoryStore }

func (r memoryTournaments) Create(ctx context.Context, t *models.Tournament) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t.ID = r.s.state.id()
	t.CreatedAt = r.s.now()
	v := *t
	v.RefereeIDs = append([]int(nil), t.RefereeIDs...)
	r.s.state.tournaments[t.ID] = v
	return nil
}

func (r memoryTournaments) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	v, ok := r.s.state.tournaments[id]
	if !ok {
		return nil, ErrTournamentNotFound
	}
	v.RefereeIDs = append([]int(nil), v.RefereeIDs...)
	return &v, nil
}

func (r memoryTournaments) GetForUpdate(ctx context.Context, id int) (*models.Tournament, error) {
	return r.GetByID(ctx, id)
}

func (r memoryTournaments) ListByStatus(ctx context.Context, status models.TournamentStatus) ([]*models.Tournament, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*models.Tournament, 0)
	for _, v := range r.s.state.tournaments {
		if v.Status == status {
			v.RefereeIDs = append([]int(nil), v.RefereeIDs...)
			out = append(out, &v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memoryTournaments) UpdateStatus(ctx context.Context, id int, status models.TournamentStatus, completedAt *time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	v, ok := r.s.state.tournaments[id]
	if !ok {
		return ErrTournamentNotFound
	}
	v.Status = status
	v.CompletedAt = completedAt
	r.s.state.tournaments[id] = v
	return nil
}

func (r memoryTournaments) UpdateStandingsURL(ctx context.Context, id int, url string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	v, ok := r.s.state.tournaments[id]
	if !ok {
		return ErrTournamentNotFound
	}
	v.StandingsURL = &url
	r.s.state.tournaments[id] = v
	return nil
}

type memoryParticipants struct{ s *MemoryStore }

func (r memoryParticipants) Create(ctx context.Context, p *models.Participant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.state.tournaments[p.TournamentID]; !ok {
		return ErrInvalidTournamentRef
	}
	p.ID = r.s.state.id()
	p.CreatedAt = r.s.now()
	r.s.state.participants[p.ID] = *p
	return nil
}

func (r memoryParticipants) GetByID(ctx context.Context, id int) (*models.Participant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	v, ok := r.s.state.participants[id]
	if !ok {
		return nil, ErrParticipantNotFound
	}
	return &v, nil
}

func (r memoryParticipants) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Participant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*models.Participant, 0)
	for _, v := range r.s.state.participants {
		if v.TournamentID == tournamentID {
			v := v
			out = append(out, &v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memorySlots struct{ s *MemoryStore }

func (r memorySlots) Create(ctx context.Context, slot *models.BracketSlot) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.state.tournaments[slot.TournamentID]; !ok {
		return ErrInvalidTournamentRef
	}
	key := slotKey{slot.TournamentID, slot.Round, slot.Position}
	if _, dup := r.s.state.slotIndex[key]; dup {
		return ErrSlotPositionConflict
	}
	slot.ID = r.s.state.id()
	slot.CreatedAt = r.s.now()
	r.s.state.slots[slot.ID] = *slot
	r.s.state.slotIndex[key] = slot.ID
	return nil
}

func (r memorySlots) GetByID(ctx context.Context, id int) (*models.BracketSlot, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	v, ok := r.s.state.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	return &v, nil
}

func (r memorySlots) ListByTournament(ctx context.Context, tournamentID int) ([]*models.BracketSlot, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*models.BracketSlot, 0)
	for _, v := range r.s.state.slots {
		if v.TournamentID == tournamentID {
			v := v
			out = append(out, &v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Round != b.Round {
			return a.Round < b.Round
		}
		if a.Stage != b.Stage {
			return a.Stage != models.StageThirdPlace
		}
		return a.Position < b.Position
	})
	return out, nil
}

func (r memorySlots) Update(ctx context.Context, slot *models.BracketSlot) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.state.slots[slot.ID]; !ok {
		return ErrSlotNotFound
	}
	r.s.state.slots[slot.ID] = *slot
	return nil
}

type memoryMatches struct{ s *MemoryStore }

func (r memoryMatches) Create(ctx context.Context, m *models.Match) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.state.slots[m.SlotID]; !ok {
		return ErrSlotNotFound
	}
	if _, dup := r.s.state.matchBySlot[m.SlotID]; dup {
		return ErrMatchSlotConflict
	}
	m.ID = r.s.state.id()
	m.CreatedAt = r.s.now()
	r.s.state.matches[m.ID] = *m
	r.s.state.matchBySlot[m.SlotID] = m.ID
	return nil
}

func (r memoryMatches) GetByID(ctx context.Context, id int) (*models.Match, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	v, ok := r.s.state.matches[id]
	if !ok {
		return nil, ErrMatchNotFound
	}
	return &v, nil
}

func (r memoryMatches) GetBySlot(ctx context.Context, slotID int) (*models.Match, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	id, ok := r.s.state.matchBySlot[slotID]
	if !ok {
		return nil, ErrMatchNotFound
	}
	v := r.s.state.matches[id]
	return &v, nil
}

func (r memoryMatches) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Match, error) {
	return r.list(func(m models.Match) bool { return m.TournamentID == tournamentID }), nil
}

func (r memoryMatches) ListByReferee(ctx context.Context, refereeID int) ([]*models.Match, error) {
	return r.list(func(m models.Match) bool { return m.RefereeID != nil && *m.RefereeID == refereeID }), nil
}

func (r memoryMatches) list(keep func(models.Match) bool) []*models.Match {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*models.Match, 0)
	for _, v := range r.s.state.matches {
		if keep(v) {
			v := v
			out = append(out, &v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.TournamentID != b.TournamentID {
			return a.TournamentID < b.TournamentID
		}
		if a.Round != b.Round {
			return a.Round < b.Round
		}
		if a.Stage != b.Stage {
			return a.Stage != models.StageThirdPlace
		}
		return a.Position < b.Position
	})
	return out
}

func (r memoryMatches) Update(ctx context.Context, m *models.Match) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.state.matches[m.ID]; !ok {
		return ErrMatchNotFound
	}
	r.s.state.matches[m.ID] = *m
	return nil
}

type memoryResults struct{ s *MemoryStore }

func (r memoryResults) Save(ctx context.Context, res *models.Result) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.state.matches[res.MatchID]; !ok {
		return ErrMatchNotFound
	}
	if prev, ok := r.s.state.results[res.MatchID]; ok {
		res.ID = prev.ID
	} else {
		res.ID = r.s.state.id()
	}
	res.UpdatedAt = r.s.now()
	r.s.state.results[res.MatchID] = *res
	return nil
}

func (r memoryResults) GetByMatch(ctx context.Context, matchID int) (*models.Result, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	v, ok := r.s.state.results[matchID]
	if !ok {
		return nil, ErrResultNotFound
	}
	return &v, nil
}

func (r memoryResults) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Result, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*models.Result, 0)
	for matchID, v := range r.s.state.results {
		if m, ok := r.s.state.matches[matchID]; ok && m.TournamentID == tournamentID {
			v := v
			out = append(out, &v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MatchID < out[j].MatchID })
	return out, nil
}
