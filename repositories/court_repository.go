package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/pfc-club/petanque-platform/models"
)

var (
	ErrCourtNotFound       = errors.New("court not found")
	ErrCourtNumberConflict = errors.New("court number already exists")
	ErrCourtReferenced     = errors.New("court is referenced by a match and cannot be deleted")
)

type CourtRepository interface {
	Create(ctx context.Context, exec SQLExecutor, court *models.Court) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Court, error)
	List(ctx context.Context, exec SQLExecutor) ([]*models.Court, error)
	// ListAssignableForUpdate возвращает свободные площадки по возрастанию
	// номера, блокируя строки до конца транзакции (FOR UPDATE).
	ListAssignableForUpdate(ctx context.Context, exec SQLExecutor) ([]*models.Court, error)
	UpdateState(ctx context.Context, exec SQLExecutor, id int, state models.CourtState) error
	Update(ctx context.Context, exec SQLExecutor, court *models.Court) error
	Delete(ctx context.Context, exec SQLExecutor, id int) error
}

type postgresCourtRepository struct {
	db *sql.DB
}

func NewPostgresCourtRepository(db *sql.DB) CourtRepository {
	return &postgresCourtRepository{db: db}
}

func (r *postgresCourtRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const courtColumns = `id, number, name, location, state, created_at`

func (r *postgresCourtRepository) scanCourt(rowScanner interface{ Scan(...interface{}) error }) (*models.Court, error) {
	var c models.Court
	err := rowScanner.Scan(&c.ID, &c.Number, &c.Name, &c.Location, &c.State, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCourtNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *postgresCourtRepository) Create(ctx context.Context, exec SQLExecutor, court *models.Court) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO courts (number, name, location, state)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query,
		court.Number, court.Name, court.Location, court.State,
	).Scan(&court.ID, &court.CreatedAt)
	return r.handleCourtError(err)
}

func (r *postgresCourtRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Court, error) {
	executor := r.getExecutor(exec)
	query := `SELECT ` + courtColumns + ` FROM courts WHERE id = $1`
	return r.scanCourt(executor.QueryRowContext(ctx, query, id))
}

func (r *postgresCourtRepository) List(ctx context.Context, exec SQLExecutor) ([]*models.Court, error) {
	executor := r.getExecutor(exec)
	query := `SELECT ` + courtColumns + ` FROM courts ORDER BY number ASC`
	return r.queryCourts(ctx, executor, query)
}

func (r *postgresCourtRepository) ListAssignableForUpdate(ctx context.Context, exec SQLExecutor) ([]*models.Court, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT ` + courtColumns + `
		FROM courts
		WHERE state = $1
		ORDER BY number ASC
		FOR UPDATE`
	return r.queryCourts(ctx, executor, query, models.CourtStateFree)
}

func (r *postgresCourtRepository) queryCourts(ctx context.Context, executor SQLExecutor, query string, args ...interface{}) ([]*models.Court, error) {
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	courts := make([]*models.Court, 0)
	for rows.Next() {
		c, scanErr := r.scanCourt(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		courts = append(courts, c)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return courts, nil
}

func (r *postgresCourtRepository) UpdateState(ctx context.Context, exec SQLExecutor, id int, state models.CourtState) error {
	executor := r.getExecutor(exec)
	query := `UPDATE courts SET state = $1 WHERE id = $2`
	result, err := executor.ExecContext(ctx, query, state, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrCourtNotFound)
}

func (r *postgresCourtRepository) Update(ctx context.Context, exec SQLExecutor, court *models.Court) error {
	executor := r.getExecutor(exec)
	query := `UPDATE courts SET number = $1, name = $2, location = $3 WHERE id = $4`
	result, err := executor.ExecContext(ctx, query, court.Number, court.Name, court.Location, court.ID)
	if err != nil {
		return r.handleCourtError(err)
	}
	return checkAffectedRows(result, ErrCourtNotFound)
}

func (r *postgresCourtRepository) Delete(ctx context.Context, exec SQLExecutor, id int) error {
	executor := r.getExecutor(exec)
	query := `DELETE FROM courts WHERE id = $1`
	result, err := executor.ExecContext(ctx, query, id)
	if err != nil {
		return r.handleCourtError(err)
	}
	return checkAffectedRows(result, ErrCourtNotFound)
}

func (r *postgresCourtRepository) handleCourtError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "23505": // unique_violation
			if pqErr.Constraint == "courts_number_key" {
				return ErrCourtNumberConflict
			}
		case "23503": // foreign_key_violation
			return ErrCourtReferenced
		}
	}
	return fmt.Errorf("court repository: %w", err)
}
