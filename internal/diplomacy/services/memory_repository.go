package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"go-concord/internal/diplomacy/models"
)

// MemoryRepository keeps diplomacy state in process memory. It applies the
// same version and open-slot rules as MongoRepository.
type MemoryRepository struct {
	mu        sync.RWMutex
	relations map[models.PairKey]*models.Relation
	treaties  map[string]*models.Treaty
	openSlots map[models.PairKey]string
	alliances map[string]*models.Alliance
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		relations: make(map[models.PairKey]*models.Relation),
		treaties:  make(map[string]*models.Treaty),
		openSlots: make(map[models.PairKey]string),
		alliances: make(map[string]*models.Alliance),
	}
}

func (r *MemoryRepository) HealthCheck(ctx context.Context) error {
	return nil
}

type memoryTxKey struct{}

// memoryJournal holds the stored value of every record a transaction wrote,
// captured before its first write. A nil value means the record did not exist.
type memoryJournal struct {
	relations map[models.PairKey]*models.Relation
	treaties  map[string]*models.Treaty
	alliances map[string]*models.Alliance
}

func journalFrom(ctx context.Context) *memoryJournal {
	j, _ := ctx.Value(memoryTxKey{}).(*memoryJournal)
	return j
}

// InTx runs fn and restores every record it wrote when fn fails. Stored
// values are replaced on write and never mutated, so the journal keeps the
// previous pointers as they are.
func (r *MemoryRepository) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if journalFrom(ctx) != nil {
		return fn(ctx)
	}

	j := &memoryJournal{
		relations: make(map[models.PairKey]*models.Relation),
		treaties:  make(map[string]*models.Treaty),
		alliances: make(map[string]*models.Alliance),
	}
	if err := fn(context.WithValue(ctx, memoryTxKey{}, j)); err != nil {
		r.rollback(j)
		return err
	}
	return nil
}

func (r *MemoryRepository) rollback(j *memoryJournal) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, prev := range j.relations {
		if prev == nil {
			delete(r.relations, key)
		} else {
			r.relations[key] = prev
		}
	}

	for id, prev := range j.treaties {
		if cur, ok := r.treaties[id]; ok && cur.OpenSlot != nil && r.openSlots[*cur.OpenSlot] == id {
			delete(r.openSlots, *cur.OpenSlot)
		}
		if prev == nil {
			delete(r.treaties, id)
			continue
		}
		r.treaties[id] = prev
		if prev.OpenSlot != nil {
			r.openSlots[*prev.OpenSlot] = id
		}
	}

	for id, prev := range j.alliances {
		if prev == nil {
			delete(r.alliances, id)
		} else {
			r.alliances[id] = prev
		}
	}
}

func (j *memoryJournal) keepRelation(key models.PairKey, prev *models.Relation) {
	if j == nil {
		return
	}
	if _, seen := j.relations[key]; !seen {
		j.relations[key] = prev
	}
}

func (j *memoryJournal) keepTreaty(id string, prev *models.Treaty) {
	if j == nil {
		return
	}
	if _, seen := j.treaties[id]; !seen {
		j.treaties[id] = prev
	}
}

func (j *memoryJournal) keepAlliance(id string, prev *models.Alliance) {
	if j == nil {
		return
	}
	if _, seen := j.alliances[id]; !seen {
		j.alliances[id] = prev
	}
}

func (r *MemoryRepository) GetRelation(ctx context.Context, key models.PairKey) (*models.Relation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rel, ok := r.relations[key]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return rel.Clone(), nil
}

func (r *MemoryRepository) ListRelations(ctx context.Context, team string) ([]*models.Relation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.Relation
	for _, rel := range r.relations {
		if rel.Involves(team) {
			out = append(out, rel.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PairKey < out[j].PairKey })
	return out, nil
}

func (r *MemoryRepository) SaveRelation(ctx context.Context, rel *models.Relation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.relations[rel.PairKey]
	switch {
	case rel.Version == 0 && exists:
		return ErrStaleWrite
	case rel.Version != 0 && (!exists || stored.Version != rel.Version):
		return ErrStaleWrite
	}

	journalFrom(ctx).keepRelation(rel.PairKey, stored)
	rel.Version++
	rel.UpdatedAt = time.Now().UTC()
	r.relations[rel.PairKey] = rel.Clone()
	return nil
}

func (r *MemoryRepository) GetTreaty(ctx context.Context, id string) (*models.Treaty, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.treaties[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return t.Clone(), nil
}

func (r *MemoryRepository) FindOpenTreaty(ctx context.Context, key models.PairKey) (*models.Treaty, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.openSlots[key]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return r.treaties[id].Clone(), nil
}

func (r *MemoryRepository) ListTreaties(ctx context.Context, team string, statuses []models.TreatyStatus) ([]*models.Treaty, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	want := statusSet(statuses)
	var out []*models.Treaty
	for _, t := range r.treaties {
		if !t.Party(team) || (want != nil && !want[t.Status]) {
			continue
		}
		out = append(out, t.Clone())
	}
	sortTreaties(out)
	return out, nil
}

func (r *MemoryRepository) ListExpiredTreaties(ctx context.Context, now time.Time) ([]*models.Treaty, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.Treaty
	for _, t := range r.treaties {
		if t.ExpiredAt(now) {
			out = append(out, t.Clone())
		}
	}
	sortTreaties(out)
	return out, nil
}

func (r *MemoryRepository) InsertTreaty(ctx context.Context, t *models.Treaty) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.treaties[t.ID]; exists {
		return ErrStaleWrite
	}
	if t.OpenSlot != nil {
		if _, taken := r.openSlots[*t.OpenSlot]; taken {
			return ErrOpenSlotTaken
		}
		r.openSlots[*t.OpenSlot] = t.ID
	}

	journalFrom(ctx).keepTreaty(t.ID, nil)
	t.Version = 1
	t.UpdatedAt = time.Now().UTC()
	r.treaties[t.ID] = t.Clone()
	return nil
}

func (r *MemoryRepository) UpdateTreaty(ctx context.Context, t *models.Treaty) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.treaties[t.ID]
	if !ok || stored.Version != t.Version {
		return ErrStaleWrite
	}
	if t.OpenSlot != nil {
		if holder, taken := r.openSlots[*t.OpenSlot]; taken && holder != t.ID {
			return ErrOpenSlotTaken
		}
	}

	journalFrom(ctx).keepTreaty(t.ID, stored)
	if stored.OpenSlot != nil {
		delete(r.openSlots, *stored.OpenSlot)
	}
	if t.OpenSlot != nil {
		r.openSlots[*t.OpenSlot] = t.ID
	}

	t.Version++
	t.UpdatedAt = time.Now().UTC()
	r.treaties[t.ID] = t.Clone()
	return nil
}

func (r *MemoryRepository) GetAlliance(ctx context.Context, id string) (*models.Alliance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.alliances[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return a.Clone(), nil
}

func (r *MemoryRepository) ListAlliances(ctx context.Context, team string, includeDissolved bool) ([]*models.Alliance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.Alliance
	for _, a := range r.alliances {
		if !a.HasMember(team) || (!includeDissolved && a.Status != models.AllianceActive) {
			continue
		}
		out = append(out, a.Clone())
	}
	sortAlliances(out)
	return out, nil
}

func (r *MemoryRepository) ListExpiredAlliances(ctx context.Context, now time.Time) ([]*models.Alliance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.Alliance
	for _, a := range r.alliances {
		if a.ExpiredAt(now) {
			out = append(out, a.Clone())
		}
	}
	sortAlliances(out)
	return out, nil
}

func (r *MemoryRepository) InsertAlliance(ctx context.Context, a *models.Alliance) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.alliances[a.ID]; exists {
		return ErrStaleWrite
	}
	journalFrom(ctx).keepAlliance(a.ID, nil)
	a.Version = 1
	a.UpdatedAt = time.Now().UTC()
	r.alliances[a.ID] = a.Clone()
	return nil
}

func (r *MemoryRepository) UpdateAlliance(ctx context.Context, a *models.Alliance) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.alliances[a.ID]
	if !ok || stored.Version != a.Version {
		return ErrStaleWrite
	}
	journalFrom(ctx).keepAlliance(a.ID, stored)
	a.Version++
	a.UpdatedAt = time.Now().UTC()
	r.alliances[a.ID] = a.Clone()
	return nil
}

func sortTreaties(ts []*models.Treaty) {
	sort.Slice(ts, func(i, j int) bool {
		if ts[i].ProposedAt.Equal(ts[j].ProposedAt) {
			return ts[i].ID < ts[j].ID
		}
		return ts[i].ProposedAt.Before(ts[j].ProposedAt)
	})
}

func sortAlliances(as []*models.Alliance) {
	sort.Slice(as, func(i, j int) bool {
		if as[i].CreatedAt.Equal(as[j].CreatedAt) {
			return as[i].ID < as[j].ID
		}
		return as[i].CreatedAt.Before(as[j].CreatedAt)
	})
}
