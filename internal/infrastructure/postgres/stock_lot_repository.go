package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dfarias/farmacia-api/internal/domain"
	"github.com/dfarias/farmacia-api/internal/domain/entity"
	"github.com/dfarias/farmacia-api/internal/domain/repository"
)

var _ repository.StockLotRepository = (*StockLotRepo)(nil)

// StockLotRepo implementación de StockLotRepository sobre PostgreSQL.
type StockLotRepo struct {
	q Querier
}

// NewStockLotRepository construye el adaptador. Pasar pool o tx (Querier).
func NewStockLotRepository(q Querier) *StockLotRepo {
	return &StockLotRepo{q: q}
}

const stockLotColumns = `
	id, establishment_id, product_id, lot_number, quantity,
	unit_sale_price, expiration_date, created_at, updated_at`

// Create inserta un lote nuevo.
func (r *StockLotRepo) Create(ctx context.Context, lot *entity.StockLot) error {
	query := `
		INSERT INTO stock_lots (` + stockLotColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.q.Exec(ctx, query,
		lot.ID, lot.EstablishmentID, lot.ProductID, lot.LotNumber, lot.Quantity,
		lot.UnitSalePrice, lot.ExpirationDate, lot.CreatedAt, lot.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert stock lot: %w", err)
	}
	return nil
}

// GetByID devuelve el lote o nil si no existe.
func (r *StockLotRepo) GetByID(ctx context.Context, id string) (*entity.StockLot, error) {
	query := `SELECT ` + stockLotColumns + ` FROM stock_lots WHERE id = $1`
	lot, err := scanStockLot(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get stock lot: %w", err)
	}
	return lot, nil
}

// Debit descuenta quantity del lote solo si la cantidad disponible alcanza.
// El update condicional es atómico a nivel de fila: si otra operación consumió
// el lote primero, cero filas se afectan y se devuelve ErrInsufficientStock.
func (r *StockLotRepo) Debit(ctx context.Context, lotID string, quantity int64) error {
	query := `
		UPDATE stock_lots
		SET quantity = quantity - $2, updated_at = now()
		WHERE id = $1 AND quantity >= $2`
	cmd, err := r.q.Exec(ctx, query, lotID, quantity)
	if err != nil {
		return fmt.Errorf("debit stock lot: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		var exists bool
		if probeErr := r.q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM stock_lots WHERE id = $1)`, lotID).Scan(&exists); probeErr != nil {
			return fmt.Errorf("probe stock lot: %w", probeErr)
		}
		if !exists {
			return domain.ErrNotFound
		}
		return domain.ErrInsufficientStock
	}
	return nil
}

// Credit devuelve quantity al lote (restauración por refuse/cancel).
func (r *StockLotRepo) Credit(ctx context.Context, lotID string, quantity int64) error {
	query := `
		UPDATE stock_lots
		SET quantity = quantity + $2, updated_at = now()
		WHERE id = $1`
	cmd, err := r.q.Exec(ctx, query, lotID, quantity)
	if err != nil {
		return fmt.Errorf("credit stock lot: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Search lista los lotes de un establecimiento filtrando por número de lote o
// por nombre/código del producto asociado.
func (r *StockLotRepo) Search(ctx context.Context, establishmentID, query string, limit, offset int) ([]*entity.StockLot, error) {
	sql := `
		SELECT ` + prefixColumns("l", stockLotColumns) + `
		FROM stock_lots l
		JOIN products p ON p.id = l.product_id
		WHERE l.establishment_id = $1
		  AND ($2 = '' OR l.lot_number ILIKE $3 OR p.name_search LIKE $3 OR p.code ILIKE $3)
		ORDER BY p.name, l.expiration_date NULLS LAST
		LIMIT $4 OFFSET $5`
	rows, err := r.q.Query(ctx, sql, establishmentID, query, "%"+query+"%", limit, offset)
	if err != nil {
		return nil, fmt.Errorf("search stock lots: %w", err)
	}
	defer rows.Close()

	var lots []*entity.StockLot
	for rows.Next() {
		lot, err := scanStockLot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stock lot: %w", err)
		}
		lots = append(lots, lot)
	}
	return lots, rows.Err()
}

func scanStockLot(row pgx.Row) (*entity.StockLot, error) {
	var lot entity.StockLot
	err := row.Scan(
		&lot.ID, &lot.EstablishmentID, &lot.ProductID, &lot.LotNumber, &lot.Quantity,
		&lot.UnitSalePrice, &lot.ExpirationDate, &lot.CreatedAt, &lot.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &lot, nil
}
