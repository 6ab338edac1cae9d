// Package expert manages the switchable training-profile slots.
package expert

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/kapu/lead-analyzer-go/internal/constants"
	"github.com/kapu/lead-analyzer-go/internal/domain"
	"github.com/kapu/lead-analyzer-go/internal/store"
	"github.com/kapu/lead-analyzer-go/internal/util"
	"github.com/kapu/lead-analyzer-go/pkg/errors"
	"go.uber.org/zap"
)

// Registry always holds at least one expert. Ids are stable once created.
type Registry struct {
	kv       store.KV
	logger   *zap.Logger
	mu       sync.RWMutex
	experts  []domain.Expert
	activeID string
}

func NewRegistry(ctx context.Context, kv store.KV, logger *zap.Logger) (*Registry, error) {
	r := &Registry{kv: kv, logger: util.OrNop(logger)}

	var loaded []domain.Expert
	ok, err := store.GetJSON(ctx, kv, constants.StoreKeys.Experts, &loaded)
	if err != nil {
		r.logger.Warn("Stored experts unreadable, using defaults", zap.Error(err))
	}
	if ok && len(loaded) > 0 {
		r.experts = dedupe(loaded)
	} else {
		r.experts = DefaultExperts()
	}

	activeID, _, err := kv.Get(ctx, constants.StoreKeys.ActiveExpert)
	if err != nil {
		return nil, err
	}
	r.activeID = strings.Trim(strings.TrimSpace(activeID), `"`)

	return r, nil
}

// DefaultExperts returns the initial empty slots "1".."N".
func DefaultExperts() []domain.Expert {
	out := make([]domain.Expert, 0, constants.ExpertConfig.DefaultSlots)
	for i := 1; i <= constants.ExpertConfig.DefaultSlots; i++ {
		id := strconv.Itoa(i)
		out = append(out, domain.Expert{ID: id, Name: defaultName(id), Data: domain.TrainingProfile{}.Normalized()})
	}
	return out
}

func defaultName(id string) string {
	return constants.ExpertConfig.NamePrefix + id
}

func (r *Registry) List() []domain.Expert {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.Expert{}, r.experts...)
}

func (r *Registry) Get(id string) (domain.Expert, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := r.indexOf(id); i >= 0 {
		return r.experts[i], true
	}
	return domain.Expert{}, false
}

// Active returns the active expert, or the first one when the stored id is stale.
func (r *Registry) Active() domain.Expert {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := r.indexOf(r.activeID); i >= 0 {
		return r.experts[i]
	}
	return r.experts[0]
}

// SetActive fails with UnknownExpertID and leaves the active expert as it was
// when id is not registered.
func (r *Registry) SetActive(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexOf(id) < 0 {
		return errors.NewUnknownExpertID(id)
	}
	if err := r.kv.Set(ctx, constants.StoreKeys.ActiveExpert, id); err != nil {
		return err
	}
	r.activeID = id
	r.logger.Info("Active expert changed", zap.String("expert_id", id))
	return nil
}

// Save overwrites the expert's training data and renames it after userName.
func (r *Registry) Save(ctx context.Context, id string, data domain.TrainingProfile) (domain.Expert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return domain.Expert{}, errors.NewUnknownExpertID(id)
	}

	data = data.Normalized()
	name := strings.TrimSpace(data.UserName)
	if name == "" {
		name = defaultName(id)
	}

	return r.update(ctx, i, domain.Expert{ID: id, Name: name, Data: data})
}

// Reset clears one expert back to an empty slot.
func (r *Registry) Reset(ctx context.Context, id string) (domain.Expert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return domain.Expert{}, errors.NewUnknownExpertID(id)
	}
	return r.update(ctx, i, domain.Expert{ID: id, Name: defaultName(id), Data: domain.TrainingProfile{}.Normalized()})
}

// Add appends an empty slot with the next numeric id.
func (r *Registry) Add(ctx context.Context) (domain.Expert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	maxID := 0
	for _, e := range r.experts {
		if n, err := strconv.Atoi(e.ID); err == nil && n > maxID {
			maxID = n
		}
	}
	id := strconv.Itoa(maxID + 1)
	e := domain.Expert{ID: id, Name: defaultName(id), Data: domain.TrainingProfile{}.Normalized()}

	prev := r.experts
	r.experts = append(append([]domain.Expert{}, r.experts...), e)
	if err := r.persist(ctx); err != nil {
		r.experts = prev
		return domain.Expert{}, err
	}
	return e, nil
}

// IsConfigured reports whether id names an expert with a userName.
func (r *Registry) IsConfigured(id string) bool {
	e, ok := r.Get(id)
	return ok && e.IsConfigured()
}

// Require returns the expert usable for an analysis run. An empty id means the active expert.
func (r *Registry) Require(id string) (domain.Expert, error) {
	var (
		e  domain.Expert
		ok bool
	)
	if id == "" {
		e, ok = r.Active(), true
	} else {
		e, ok = r.Get(id)
	}
	if !ok {
		return domain.Expert{}, errors.NewUnknownExpertID(id)
	}
	if !e.IsConfigured() {
		return domain.Expert{}, errors.NewExpertNotConfigured(e.ID)
	}
	return e, nil
}

// ReplaceAll swaps the whole registry (used by import). An empty list restores defaults.
func (r *Registry) ReplaceAll(ctx context.Context, experts []domain.Expert, activeID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(experts) == 0 {
		experts = DefaultExperts()
	}
	prev, prevActive := r.experts, r.activeID
	r.experts = dedupe(experts)
	if err := r.persist(ctx); err != nil {
		r.experts = prev
		return err
	}
	if activeID != "" && r.indexOf(activeID) >= 0 {
		if err := r.kv.Set(ctx, constants.StoreKeys.ActiveExpert, activeID); err != nil {
			r.experts, r.activeID = prev, prevActive
			return err
		}
		r.activeID = activeID
	}
	return nil
}

// Clear drops every stored expert and the active id, leaving the default slots.
func (r *Registry) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.kv.Delete(ctx, constants.StoreKeys.Experts); err != nil {
		return err
	}
	if err := r.kv.Delete(ctx, constants.StoreKeys.ActiveExpert); err != nil {
		return err
	}
	r.experts = DefaultExperts()
	r.activeID = ""
	return nil
}

// must be called with lock held
func (r *Registry) update(ctx context.Context, i int, e domain.Expert) (domain.Expert, error) {
	prev := r.experts[i]
	r.experts[i] = e
	if err := r.persist(ctx); err != nil {
		r.experts[i] = prev
		return domain.Expert{}, err
	}
	r.logger.Info("Expert saved",
		zap.String("expert_id", e.ID),
		zap.String("name", e.Name),
		zap.Bool("configured", e.IsConfigured()),
	)
	return e, nil
}

func (r *Registry) indexOf(id string) int {
	for i, e := range r.experts {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func (r *Registry) persist(ctx context.Context) error {
	return store.SetJSON(ctx, r.kv, constants.StoreKeys.Experts, r.experts)
}

// dedupe drops repeated and empty ids, keeping the first occurrence.
func dedupe(experts []domain.Expert) []domain.Expert {
	seen := make(map[string]struct{}, len(experts))
	out := make([]domain.Expert, 0, len(experts))
	for _, e := range experts {
		if e.ID == "" {
			continue
		}
		if _, dup := seen[e.ID]; dup {
			continue
		}
		seen[e.ID] = struct{}{}
		e.Data = e.Data.Normalized()
		out = append(out, e)
	}
	if len(out) == 0 {
		return DefaultExperts()
	}
	return out
}
