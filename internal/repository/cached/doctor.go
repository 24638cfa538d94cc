// Package cached decorates repositories with short-lived in-memory caches.
package cached

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/queue-api/internal/model"
	"github.com/jwalitptl/queue-api/internal/repository"
)

// DoctorRepository caches account lookups made on every ticket scan.
// Get is never cached since availability gates bookings.
type DoctorRepository struct {
	next  repository.DoctorRepository
	cache *cache.Cache
}

func NewDoctorRepository(next repository.DoctorRepository, ttl time.Duration) *DoctorRepository {
	return &DoctorRepository{
		next:  next,
		cache: cache.New(ttl, 2*ttl),
	}
}

func (r *DoctorRepository) Get(ctx context.Context, id string) (*model.Doctor, error) {
	return r.next.Get(ctx, id)
}

func (r *DoctorRepository) GetByAccount(ctx context.Context, accountID string) (*model.Doctor, error) {
	if v, ok := r.cache.Get(accountID); ok {
		d := *v.(*model.Doctor)
		return &d, nil
	}

	d, err := r.next.GetByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	stored := *d
	r.cache.SetDefault(accountID, &stored)
	return d, nil
}
