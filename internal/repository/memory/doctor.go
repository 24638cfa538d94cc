package memory

import (
	"context"

	"github.com/jwalitptl/queue-api/internal/model"
	"github.com/jwalitptl/queue-api/internal/repository"
)

// DoctorRepository serves the doctor directory from the Store.
type DoctorRepository struct {
	s *Store
}

// Put inserts or replaces a doctor.
func (r *DoctorRepository) Put(d *model.Doctor) {
	c := *d
	r.s.mu.Lock()
	r.s.doctors[d.ID] = &c
	r.s.mu.Unlock()
}

func (r *DoctorRepository) Get(ctx context.Context, id string) (*model.Doctor, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	d, ok := r.s.doctors[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *d
	return &c, nil
}

func (r *DoctorRepository) GetByAccount(ctx context.Context, accountID string) (*model.Doctor, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, d := range r.s.doctors {
		if d.AccountID == accountID {
			c := *d
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}
