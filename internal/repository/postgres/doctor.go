package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/queue-api/internal/model"
	"github.com/jwalitptl/queue-api/internal/repository"
)

type doctorRepository struct {
	db *sqlx.DB
}

func NewDoctorRepository(db *sqlx.DB) repository.DoctorRepository {
	return &doctorRepository{db: db}
}

const doctorColumns = `id, account_id, name, speciality, is_available, max_appointment`

func (r *doctorRepository) Get(ctx context.Context, id string) (*model.Doctor, error) {
	var d model.Doctor
	err := r.db.GetContext(ctx, &d, `SELECT `+doctorColumns+` FROM doctors WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get doctor: %w", mapError(err))
	}
	return &d, nil
}

func (r *doctorRepository) GetByAccount(ctx context.Context, accountID string) (*model.Doctor, error) {
	var d model.Doctor
	err := r.db.GetContext(ctx, &d, `SELECT `+doctorColumns+` FROM doctors WHERE account_id = $1`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get doctor by account: %w", mapError(err))
	}
	return &d, nil
}
