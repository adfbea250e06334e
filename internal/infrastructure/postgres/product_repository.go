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

var _ repository.ProductRepository = (*ProductRepo)(nil)

// ProductRepo implementación de ProductRepository sobre PostgreSQL.
type ProductRepo struct {
	q Querier
}

// NewProductRepository construye el adaptador. Pasar pool o tx (Querier).
func NewProductRepository(q Querier) *ProductRepo {
	return &ProductRepo{q: q}
}

const productColumns = `
	id, establishment_id, code, name, description, sale_price, created_at, updated_at`

// Create inserta un producto. name_search guarda el nombre normalizado (sin
// acentos, en minúsculas) para que la búsqueda ignore diacríticos.
func (r *ProductRepo) Create(ctx context.Context, product *entity.Product) error {
	query := `
		INSERT INTO products (` + productColumns + `, name_search)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.q.Exec(ctx, query,
		product.ID, product.EstablishmentID, product.Code, product.Name,
		product.Description, product.SalePrice, product.CreatedAt, product.UpdatedAt,
		textutil.Normalize(product.Name),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// GetByID devuelve el producto o nil si no existe.
func (r *ProductRepo) GetByID(ctx context.Context, id string) (*entity.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetByCode devuelve el producto por código dentro del establecimiento.
func (r *ProductRepo) GetByCode(ctx context.Context, establishmentID, code string) (*entity.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE establishment_id = $1 AND code = $2`
	return r.getOne(ctx, query, establishmentID, code)
}

func (r *ProductRepo) getOne(ctx context.Context, query string, args ...any) (*entity.Product, error) {
	p, err := scanProduct(r.q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// Search busca por nombre normalizado o código dentro del establecimiento.
// El llamador normaliza query con textutil.Normalize.
func (r *ProductRepo) Search(ctx context.Context, establishmentID, query string, limit, offset int) ([]*entity.Product, error) {
	sql := `
		SELECT ` + productColumns + `
		FROM products
		WHERE establishment_id = $1
		  AND ($2 = '' OR name_search LIKE $3 OR code ILIKE $3)
		ORDER BY name
		LIMIT $4 OFFSET $5`
	rows, err := r.q.Query(ctx, sql, establishmentID, query, "%"+query+"%", limit, offset)
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	defer rows.Close()

	var products []*entity.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func scanProduct(row pgx.Row) (*entity.Product, error) {
	var p entity.Product
	err := row.Scan(
		&p.ID, &p.EstablishmentID, &p.Code, &p.Name,
		&p.Description, &p.SalePrice, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
