package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/dfarias/farmacia-api/internal/domain"
	"github.com/dfarias/farmacia-api/internal/domain/entity"
	"github.com/dfarias/farmacia-api/internal/domain/repository"
)

var _ repository.ExchangeRepository = (*ExchangeRepo)(nil)

// ExchangeRepo implementación de ExchangeRepository sobre PostgreSQL (usable con pool o tx).
type ExchangeRepo struct {
	q Querier
}

// NewExchangeRepository construye el adaptador. Pasar pool o tx (Querier).
func NewExchangeRepository(q Querier) *ExchangeRepo {
	return &ExchangeRepo{q: q}
}

const exchangeColumns = `
	id, reference, direction, is_manual, status,
	total_articles, total_quantity, estimated_value,
	amount_due, amount_paid, payment_method,
	reason, note, refusal_reason,
	source_establishment_id, destination_establishment_id, initiator_establishment_id,
	created_at, sent_at, received_at, accepted_at, refused_at, paid_at, closed_at,
	updated_at, version`

const lineColumns = `
	id, exchange_id, position, product_name, product_code, lot_number,
	stock_lot_id, product_id, quantity, unit_price, line_total,
	expiration_date, note`

// Create persiste la cabecera y las líneas del borrador.
func (r *ExchangeRepo) Create(ctx context.Context, ex *entity.Exchange) error {
	query := `
		INSERT INTO exchanges (` + exchangeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		        $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26)`
	_, err := r.q.Exec(ctx, query,
		ex.ID, ex.Reference, ex.Direction, ex.IsManual, ex.Status,
		ex.TotalArticles, ex.TotalQuantity, ex.EstimatedValue,
		ex.AmountDue, ex.AmountPaid, ex.PaymentMethod,
		ex.Reason, ex.Note, ex.RefusalReason,
		ex.SourceEstablishmentID, ex.DestinationEstablishmentID, ex.InitiatorEstablishmentID,
		ex.CreatedAt, ex.SentAt, ex.ReceivedAt, ex.AcceptedAt, ex.RefusedAt, ex.PaidAt, ex.ClosedAt,
		ex.UpdatedAt, ex.Version,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert exchange: %w", err)
	}
	return r.insertLines(ctx, ex.Lines)
}

// GetByID carga el agregado completo (cabecera + líneas en orden de inserción).
func (r *ExchangeRepo) GetByID(ctx context.Context, id string) (*entity.Exchange, error) {
	return r.getBy(ctx, "id", id)
}

// GetByReference carga el agregado por referencia.
func (r *ExchangeRepo) GetByReference(ctx context.Context, reference string) (*entity.Exchange, error) {
	return r.getBy(ctx, "reference", reference)
}

func (r *ExchangeRepo) getBy(ctx context.Context, column, value string) (*entity.Exchange, error) {
	query := `SELECT ` + exchangeColumns + ` FROM exchanges WHERE ` + column + ` = $1`
	ex, err := scanExchange(r.q.QueryRow(ctx, query, value))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get exchange: %w", err)
	}
	lines, err := r.loadLines(ctx, []string{ex.ID})
	if err != nil {
		return nil, err
	}
	ex.Lines = lines[ex.ID]
	return ex, nil
}

// Update persiste la cabecera con control optimista: la fila solo se escribe
// si la versión en BD es la leída; la versión se incrementa en la misma
// sentencia. Cero filas afectadas con el intercambio existente significa que
// otra operación ganó la carrera.
func (r *ExchangeRepo) Update(ctx context.Context, ex *entity.Exchange) error {
	query := `
		UPDATE exchanges SET
			status = $3, total_articles = $4, total_quantity = $5, estimated_value = $6,
			amount_due = $7, amount_paid = $8, payment_method = $9,
			reason = $10, note = $11, refusal_reason = $12,
			sent_at = $13, received_at = $14, accepted_at = $15, refused_at = $16,
			paid_at = $17, closed_at = $18, updated_at = $19,
			version = version + 1
		WHERE id = $1 AND version = $2`
	cmd, err := r.q.Exec(ctx, query,
		ex.ID, ex.Version,
		ex.Status, ex.TotalArticles, ex.TotalQuantity, ex.EstimatedValue,
		ex.AmountDue, ex.AmountPaid, ex.PaymentMethod,
		ex.Reason, ex.Note, ex.RefusalReason,
		ex.SentAt, ex.ReceivedAt, ex.AcceptedAt, ex.RefusedAt,
		ex.PaidAt, ex.ClosedAt, ex.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update exchange: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		var exists bool
		if probeErr := r.q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM exchanges WHERE id = $1)`, ex.ID).Scan(&exists); probeErr != nil {
			return fmt.Errorf("probe exchange: %w", probeErr)
		}
		if !exists {
			return domain.ErrNotFound
		}
		return domain.ErrConcurrencyConflict
	}
	ex.Version++
	return nil
}

// ReplaceLines reemplaza el contenido completo de las líneas del borrador.
func (r *ExchangeRepo) ReplaceLines(ctx context.Context, exchangeID string, lines []entity.ExchangeLine) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM exchange_lines WHERE exchange_id = $1`, exchangeID); err != nil {
		return fmt.Errorf("delete exchange lines: %w", err)
	}
	return r.insertLines(ctx, lines)
}

// Delete elimina el intercambio; las líneas caen por cascade.
func (r *ExchangeRepo) Delete(ctx context.Context, id string) error {
	_, err := r.q.Exec(ctx, `DELETE FROM exchanges WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete exchange: %w", err)
	}
	return nil
}

// List devuelve la página filtrada y el total. Received=false lista los
// intercambios iniciados por el establecimiento; true, los iniciados por
// colegas en los que participa.
func (r *ExchangeRepo) List(ctx context.Context, f repository.ExchangeFilter) ([]*entity.Exchange, int, error) {
	var where []string
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Received {
		p := arg(f.EstablishmentID)
		where = append(where, fmt.Sprintf(
			"initiator_establishment_id <> %s AND (source_establishment_id = %s OR destination_establishment_id = %s)", p, p, p))
	} else {
		where = append(where, "initiator_establishment_id = "+arg(f.EstablishmentID))
	}
	if f.Status != "" {
		where = append(where, "status = "+arg(f.Status))
	}
	if f.Direction != "" {
		where = append(where, "direction = "+arg(f.Direction))
	}
	if f.Search != "" {
		p := arg("%" + f.Search + "%")
		where = append(where, fmt.Sprintf("(reference ILIKE %s OR reason ILIKE %s)", p, p))
	}

	cond := strings.Join(where, " AND ")

	var total int
	if err := r.q.QueryRow(ctx, `SELECT count(*) FROM exchanges WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count exchanges: %w", err)
	}

	query := `SELECT ` + exchangeColumns + ` FROM exchanges WHERE ` + cond +
		` ORDER BY created_at DESC LIMIT ` + arg(f.Limit) + ` OFFSET ` + arg(f.Offset)
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list exchanges: %w", err)
	}
	defer rows.Close()

	var list []*entity.Exchange
	var ids []string
	for rows.Next() {
		ex, err := scanExchange(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan exchange: %w", err)
		}
		list = append(list, ex)
		ids = append(ids, ex.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	if len(ids) > 0 {
		linesByExchange, err := r.loadLines(ctx, ids)
		if err != nil {
			return nil, 0, err
		}
		for _, ex := range list {
			ex.Lines = linesByExchange[ex.ID]
		}
	}
	return list, total, nil
}

// NextReference incrementa el contador anual de referencias y devuelve el
// consecutivo. El upsert es atómico: dos creaciones concurrentes nunca
// obtienen el mismo número, y el contador no retrocede al borrar borradores.
func (r *ExchangeRepo) NextReference(ctx context.Context, year int) (int64, error) {
	query := `
		INSERT INTO exchange_counters (year, last_value)
		VALUES ($1, 1)
		ON CONFLICT (year)
		DO UPDATE SET last_value = exchange_counters.last_value + 1
		RETURNING last_value`
	var seq int64
	if err := r.q.QueryRow(ctx, query, year).Scan(&seq); err != nil {
		return 0, fmt.Errorf("next reference: %w", err)
	}
	return seq, nil
}

func (r *ExchangeRepo) insertLines(ctx context.Context, lines []entity.ExchangeLine) error {
	query := `
		INSERT INTO exchange_lines (` + lineColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	for i := range lines {
		l := &lines[i]
		_, err := r.q.Exec(ctx, query,
			l.ID, l.ExchangeID, l.Position, l.ProductName, l.ProductCode, l.LotNumber,
			l.StockLotID, l.ProductID, l.Quantity, l.UnitPrice, l.LineTotal,
			l.ExpirationDate, l.Note,
		)
		if err != nil {
			return fmt.Errorf("insert exchange line: %w", err)
		}
	}
	return nil
}

func (r *ExchangeRepo) loadLines(ctx context.Context, exchangeIDs []string) (map[string][]entity.ExchangeLine, error) {
	query := `SELECT ` + lineColumns + ` FROM exchange_lines WHERE exchange_id = ANY($1) ORDER BY exchange_id, position`
	rows, err := r.q.Query(ctx, query, exchangeIDs)
	if err != nil {
		return nil, fmt.Errorf("load exchange lines: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]entity.ExchangeLine)
	for rows.Next() {
		var l entity.ExchangeLine
		if err := rows.Scan(
			&l.ID, &l.ExchangeID, &l.Position, &l.ProductName, &l.ProductCode, &l.LotNumber,
			&l.StockLotID, &l.ProductID, &l.Quantity, &l.UnitPrice, &l.LineTotal,
			&l.ExpirationDate, &l.Note,
		); err != nil {
			return nil, fmt.Errorf("scan exchange line: %w", err)
		}
		out[l.ExchangeID] = append(out[l.ExchangeID], l)
	}
	return out, rows.Err()
}

// scanExchange lee una fila de exchanges en la entidad.
func scanExchange(row pgx.Row) (*entity.Exchange, error) {
	var ex entity.Exchange
	err := row.Scan(
		&ex.ID, &ex.Reference, &ex.Direction, &ex.IsManual, &ex.Status,
		&ex.TotalArticles, &ex.TotalQuantity, &ex.EstimatedValue,
		&ex.AmountDue, &ex.AmountPaid, &ex.PaymentMethod,
		&ex.Reason, &ex.Note, &ex.RefusalReason,
		&ex.SourceEstablishmentID, &ex.DestinationEstablishmentID, &ex.InitiatorEstablishmentID,
		&ex.CreatedAt, &ex.SentAt, &ex.ReceivedAt, &ex.AcceptedAt, &ex.RefusedAt, &ex.PaidAt, &ex.ClosedAt,
		&ex.UpdatedAt, &ex.Version,
	)
	if err != nil {
		return nil, err
	}
	return &ex, nil
}
