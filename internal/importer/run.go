package importer

import (
	"sync"

	"github.com/google/uuid"

	"github.com/phenrril/tiendatextil/internal/domain"
)

// run holds the state of one import. Product tasks execute in parallel, so
// every access goes through mu.
type run struct {
	mu         sync.Mutex
	progress   domain.ImportProgress
	onProgress ProgressFunc

	primary map[uuid.UUID]struct{}
	colors  map[uuid.UUID]map[string]uuid.UUID
}

func newRun(total int, onProgress ProgressFunc) *run {
	return &run{
		progress:   domain.ImportProgress{Total: total, Errors: []string{}, Warnings: []string{}},
		onProgress: onProgress,
		primary:    map[uuid.UUID]struct{}{},
		colors:     map[uuid.UUID]map[string]uuid.UUID{},
	}
}

// update mutates the progress and notifies the observer while still holding
// the lock, so observers see snapshots in order.
func (r *run) update(fn func(p *domain.ImportProgress)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.progress)
	if r.onProgress != nil {
		r.onProgress(r.progress.Clone())
	}
}

func (r *run) addError(msg string) {
	r.update(func(p *domain.ImportProgress) { p.Errors = append(p.Errors, msg) })
}

func (r *run) snapshot() domain.ImportProgress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.progress.Clone()
}

// claimPrimary reports whether the caller may mark an image of productID as
// primary. Only the first claim succeeds.
func (r *run) claimPrimary(productID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.primary[productID]; taken {
		return false
	}
	r.primary[productID] = struct{}{}
	return true
}

func (r *run) releasePrimary(productID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.primary, productID)
}

// reserveColor returns false when key was already processed for productID.
func (r *run) reserveColor(productID uuid.UUID, key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.colors[productID]
	if !ok {
		m = map[string]uuid.UUID{}
		r.colors[productID] = m
	}
	if _, done := m[key]; done {
		return false
	}
	m[key] = uuid.Nil
	return true
}

func (r *run) setColorVariant(productID uuid.UUID, key string, variantID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.colors[productID]; ok {
		m[key] = variantID
	}
}
