package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dfarias/farmacia-api/internal/domain"
	"github.com/dfarias/farmacia-api/internal/domain/entity"
	"github.com/dfarias/farmacia-api/internal/domain/repository"
	"github.com/dfarias/farmacia-api/pkg/textutil"
)

var _ repository.EstablishmentRepository = (*EstablishmentRepo)(nil)

// EstablishmentRepo implementación de EstablishmentRepository sobre PostgreSQL.
type EstablishmentRepo struct {
	q Querier
}

// NewEstablishmentRepository construye el adaptador. Pasar pool o tx (Querier).
func NewEstablishmentRepository(q Querier) *EstablishmentRepo {
	return &EstablishmentRepo{q: q}
}

const establishmentColumns = `
	id, name, type, address, phone, linked_account_ref, created_at, updated_at`

// Create inserta un establecimiento en el directorio.
func (r *EstablishmentRepo) Create(ctx context.Context, est *entity.Establishment) error {
	query := `
		INSERT INTO establishments (` + establishmentColumns + `, name_search)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.q.Exec(ctx, query,
		est.ID, est.Name, est.Type, est.Address, est.Phone,
		est.LinkedAccountRef, est.CreatedAt, est.UpdatedAt,
		textutil.Normalize(est.Name),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert establishment: %w", err)
	}
	return nil
}

// GetByID devuelve el establecimiento o nil si no existe.
func (r *EstablishmentRepo) GetByID(ctx context.Context, id string) (*entity.Establishment, error) {
	query := `SELECT ` + establishmentColumns + ` FROM establishments WHERE id = $1`
	est, err := scanEstablishment(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get establishment: %w", err)
	}
	return est, nil
}

// Search busca en el directorio por nombre normalizado.
// El llamador normaliza query con textutil.Normalize.
func (r *EstablishmentRepo) Search(ctx context.Context, query string, limit, offset int) ([]*entity.Establishment, error) {
	sql := `
		SELECT ` + establishmentColumns + `
		FROM establishments
		WHERE $1 = '' OR name_search LIKE $2
		ORDER BY name
		LIMIT $3 OFFSET $4`
	rows, err := r.q.Query(ctx, sql, query, "%"+query+"%", limit, offset)
	if err != nil {
		return nil, fmt.Errorf("search establishments: %w", err)
	}
	defer rows.Close()

	var list []*entity.Establishment
	for rows.Next() {
		est, err := scanEstablishment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan establishment: %w", err)
		}
		list = append(list, est)
	}
	return list, rows.Err()
}

func scanEstablishment(row pgx.Row) (*entity.Establishment, error) {
	var e entity.Establishment
	err := row.Scan(
		&e.ID, &e.Name, &e.Type, &e.Address, &e.Phone,
		&e.LinkedAccountRef, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
