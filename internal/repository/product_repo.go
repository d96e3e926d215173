package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"storefront/internal/model"
)

const productColumns = `id, product_name, product_description, original_price::float8,
	discount_percentage::float8, discounted_price::float8, images, badge,
	quantity, is_available, created_at, updated_at`

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type ProductRepository struct {
	pool *pgxpool.Pool
}

func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

func scanProduct(row pgx.Row) (model.Product, error) {
	var p model.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.OriginalPrice,
		&p.DiscountPercentage, &p.DiscountedPrice, &p.Images, &p.Badge,
		&p.Quantity, &p.IsAvailable, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return model.Product{}, err
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	p.Sizes = []model.ProductSize{}
	return p, nil
}

func productNotFound(id int64) error {
	return notFound(model.ErrProductNotFound, fmt.Sprintf("Product with id %d", id))
}

// Create stores the product and its sizes in one transaction.
func (r *ProductRepository) Create(ctx context.Context, p model.Product) (model.Product, error) {
	var created model.Product
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		now := time.Now().UTC()
		row, err := scanProduct(tx.QueryRow(ctx,
			`INSERT INTO products
			 (product_name, product_description, original_price, discount_percentage,
			  discounted_price, images, badge, quantity, is_available, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
			 RETURNING `+productColumns,
			p.Name, p.Description, p.OriginalPrice, p.DiscountPercentage,
			p.DiscountedPrice, nonNilImages(p.Images), p.Badge, p.Quantity, p.IsAvailable, now))
		if err != nil {
			return err
		}

		row.Sizes, err = insertSizes(ctx, tx, row.ID, p.Sizes)
		if err != nil {
			return err
		}

		created = row
		return nil
	})
	if err != nil {
		return model.Product{}, translateError("create product", err)
	}
	return created, nil
}

func (r *ProductRepository) FindByID(ctx context.Context, id int64) (model.Product, error) {
	p, err := findProduct(ctx, r.pool, id)
	if err != nil {
		return model.Product{}, err
	}
	return p, nil
}

// List returns every product with its sizes, oldest first.
func (r *ProductRepository) List(ctx context.Context) ([]model.Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
	if err != nil {
		return nil, translateError("list products", err)
	}
	defer rows.Close()

	products := make([]model.Product, 0)
	index := make(map[int64]int)
	ids := make([]int64, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, translateError("scan product", err)
		}
		index[p.ID] = len(products)
		ids = append(ids, p.ID)
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError("list products", err)
	}
	rows.Close()

	if len(ids) == 0 {
		return products, nil
	}

	sizes, err := loadSizes(ctx, r.pool, ids)
	if err != nil {
		return nil, translateError("list product sizes", err)
	}
	for _, s := range sizes {
		i := index[s.ProductID]
		products[i].Sizes = append(products[i].Sizes, s)
	}

	return products, nil
}

// Update writes every column of p. When replaceSizes is set the existing
// sizes are dropped and p.Sizes inserted in the same transaction.
func (r *ProductRepository) Update(ctx context.Context, p model.Product, replaceSizes bool) (model.Product, error) {
	var updated model.Product
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		row, err := scanProduct(tx.QueryRow(ctx,
			`UPDATE products
			 SET product_name = $2, product_description = $3, original_price = $4,
			     discount_percentage = $5, discounted_price = $6, images = $7,
			     badge = $8, quantity = $9, is_available = $10, updated_at = $11
			 WHERE id = $1
			 RETURNING `+productColumns,
			p.ID, p.Name, p.Description, p.OriginalPrice, p.DiscountPercentage,
			p.DiscountedPrice, nonNilImages(p.Images), p.Badge, p.Quantity, p.IsAvailable,
			time.Now().UTC()))
		if isNoRows(err) {
			return productNotFound(p.ID)
		}
		if err != nil {
			return err
		}

		if replaceSizes {
			if _, err := tx.Exec(ctx, `DELETE FROM product_sizes WHERE product_id = $1`, p.ID); err != nil {
				return err
			}
			row.Sizes, err = insertSizes(ctx, tx, p.ID, p.Sizes)
		} else {
			row.Sizes, err = loadSizes(ctx, tx, []int64{p.ID})
		}
		if err != nil {
			return err
		}

		updated = row
		return nil
	})
	if err != nil {
		return model.Product{}, translateError("update product", err)
	}
	return updated, nil
}

// Delete removes the product and returns it as it was, sizes included.
func (r *ProductRepository) Delete(ctx context.Context, id int64) (model.Product, error) {
	var deleted model.Product
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		sizes, err := loadSizes(ctx, tx, []int64{id})
		if err != nil {
			return err
		}

		row, err := scanProduct(tx.QueryRow(ctx,
			`DELETE FROM products WHERE id = $1 RETURNING `+productColumns, id))
		if isNoRows(err) {
			return productNotFound(id)
		}
		if err != nil {
			return err
		}

		row.Sizes = append(row.Sizes, sizes...)
		deleted = row
		return nil
	})
	if err != nil {
		return model.Product{}, translateError("delete product", err)
	}
	return deleted, nil
}

func findProduct(ctx context.Context, q querier, id int64) (model.Product, error) {
	p, err := scanProduct(q.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if isNoRows(err) {
		return model.Product{}, productNotFound(id)
	}
	if err != nil {
		return model.Product{}, translateError("find product", err)
	}

	sizes, err := loadSizes(ctx, q, []int64{id})
	if err != nil {
		return model.Product{}, translateError("find product sizes", err)
	}
	p.Sizes = append(p.Sizes, sizes...)

	return p, nil
}

func loadSizes(ctx context.Context, q querier, productIDs []int64) ([]model.ProductSize, error) {
	rows, err := q.Query(ctx,
		`SELECT id, product_id, size, stock_quantity
		 FROM product_sizes WHERE product_id = ANY($1)
		 ORDER BY product_id, id`, productIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sizes := make([]model.ProductSize, 0)
	for rows.Next() {
		var s model.ProductSize
		if err := rows.Scan(&s.ID, &s.ProductID, &s.Size, &s.StockQuantity); err != nil {
			return nil, err
		}
		sizes = append(sizes, s)
	}
	return sizes, rows.Err()
}

func insertSizes(ctx context.Context, q querier, productID int64, sizes []model.ProductSize) ([]model.ProductSize, error) {
	out := make([]model.ProductSize, 0, len(sizes))
	if len(sizes) == 0 {
		return out, nil
	}

	batch := &pgx.Batch{}
	for _, s := range sizes {
		batch.Queue(
			`INSERT INTO product_sizes (product_id, size, stock_quantity)
			 VALUES ($1, $2, $3)
			 RETURNING id, product_id, size, stock_quantity`,
			productID, s.Size, s.StockQuantity)
	}

	br := q.SendBatch(ctx, batch)
	defer br.Close()

	for range sizes {
		var s model.ProductSize
		if err := br.QueryRow().Scan(&s.ID, &s.ProductID, &s.Size, &s.StockQuantity); err != nil {
			return nil, err
		}
		out = append(out, s)
	}

	return out, nil
}

func nonNilImages(images []string) []string {
	if images == nil {
		return []string{}
	}
	return images
}
