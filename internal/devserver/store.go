// Dev backend order store backed by PostgreSQL. This is the collaborator
// stub the client core talks to in local setups; production deployments
// point the client at the real backend instead.
package devserver

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mesa/internal/modules/order"
	"mesa/internal/types"
)

var (
	ErrNotFound = errors.New("order not found")
	ErrConflict = errors.New("order state conflict")
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, o *order.Order) (types.ID, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO orders (branch_id, status, service_date, estimated_time, total, cost_total, currency)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		int64(o.BranchID),
		string(o.Status),
		o.Date,
		o.EstimatedTime,
		o.Total.Amount,
		o.CostTotal.Amount,
		o.Total.Currency,
	)
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	for _, li := range o.LineItems {
		var productID, promotionID *int64
		var productTitle, promotionTitle *string
		if li.Product != nil {
			v := int64(li.Product.ID)
			productID, productTitle = &v, &li.Product.Title
		}
		if li.Promotion != nil {
			v := int64(li.Promotion.ID)
			promotionID, promotionTitle = &v, &li.Promotion.Title
		}
		if _, err := s.db.Exec(ctx, `
			INSERT INTO order_items (order_id, quantity, product_id, product_title, promotion_id, promotion_title, subtotal)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			id, li.Quantity, productID, productTitle, promotionID, promotionTitle, li.Subtotal.Amount,
		); err != nil {
			return 0, err
		}
	}
	return types.ID(id), nil
}

func (s *Store) Get(ctx context.Context, id types.ID) (*order.Order, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, branch_id, status, service_date, estimated_time, total, cost_total, currency
		FROM orders
		WHERE id = $1`, int64(id),
	)
	o, err := scanOrder(row)
	if err != nil {
		return nil, err
	}
	items, err := s.loadItems(ctx, o.ID, o.Total.Currency)
	if err != nil {
		return nil, err
	}
	o.LineItems = items
	return o, nil
}

func (s *Store) List(ctx context.Context) ([]order.Order, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, branch_id, status, service_date, estimated_time, total, cost_total, currency
		FROM orders
		ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		items, err := s.loadItems(ctx, out[i].ID, out[i].Total.Currency)
		if err != nil {
			return nil, err
		}
		out[i].LineItems = items
	}
	return out, nil
}

// UpdateStatus applies a transition with an optimistic guard on the current
// status, so concurrent requests resolve to exactly one winner.
func (s *Store) UpdateStatus(ctx context.Context, id types.ID, from, to order.Status) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE orders
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3`,
		string(to), int64(id), string(from),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) Delete(ctx context.Context, id types.ID) (bool, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM orders WHERE id = $1`, int64(id))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) AppendEvent(ctx context.Context, id types.ID, from, to order.Status, role string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO order_state_events (order_id, from_status, to_status, actor_role)
		VALUES ($1, $2, $3, $4)`,
		int64(id), string(from), string(to), role,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*order.Order, error) {
	var o order.Order
	var id, branchID int64
	var serviceDate, estimatedTime sql.NullString
	var currency string

	err := row.Scan(&id, &branchID, &o.Status, &serviceDate, &estimatedTime, &o.Total.Amount, &o.CostTotal.Amount, &currency)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	o.ID = types.ID(id)
	o.BranchID = types.ID(branchID)
	o.Date = serviceDate.String
	o.EstimatedTime = estimatedTime.String
	o.Total.Currency = currency
	o.CostTotal.Currency = currency
	return &o, nil
}

func (s *Store) loadItems(ctx context.Context, id types.ID, currency string) ([]order.LineItem, error) {
	rows, err := s.db.Query(ctx, `
		SELECT quantity, product_id, product_title, promotion_id, promotion_title, subtotal
		FROM order_items
		WHERE order_id = $1
		ORDER BY id`, int64(id),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []order.LineItem
	for rows.Next() {
		var li order.LineItem
		var productID, promotionID sql.NullInt64
		var productTitle, promotionTitle sql.NullString
		if err := rows.Scan(&li.Quantity, &productID, &productTitle, &promotionID, &promotionTitle, &li.Subtotal.Amount); err != nil {
			return nil, err
		}
		li.Subtotal.Currency = currency
		if productID.Valid {
			li.Product = &order.UnitRef{ID: types.ID(productID.Int64), Title: productTitle.String}
		}
		if promotionID.Valid {
			li.Promotion = &order.UnitRef{ID: types.ID(promotionID.Int64), Title: promotionTitle.String}
		}
		items = append(items, li)
	}
	return items, rows.Err()
}
