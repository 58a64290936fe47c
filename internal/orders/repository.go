package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/joao-fontenele/storefront/internal/domain"
)

const orderColumns = `
	id, user_id, order_number, subtotal_amount, discount_amount, coupon_code,
	coupon_id, total_amount, status, payment_id, gateway_order_id, payment_status,
	shipping_address, created_at, updated_at`

const uniqueViolation = "23505"

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// CreateOrder writes the order header only. Lines follow via InsertLines.
// A payment id or gateway order id already held by another order yields
// domain.ErrPaymentReused.
func (r *OrderRepository) CreateOrder(ctx context.Context, order *domain.Order) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO orders (
			id, user_id, order_number, subtotal_amount, discount_amount, coupon_code,
			coupon_id, total_amount, status, payment_id, gateway_order_id,
			shipping_address, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
	`, order.ID, order.UserID, order.OrderNumber, order.SubtotalAmount, order.DiscountAmount, order.CouponCode,
		order.CouponID, order.TotalAmount, order.Status, order.PaymentID, order.GatewayOrderID,
		string(order.ShippingAddress), order.CreatedAt)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation &&
		(pqErr.Constraint == "orders_payment_id_key" || pqErr.Constraint == "orders_gateway_order_id_key") {
		return domain.ErrPaymentReused
	}
	return err
}

// InsertLines records all lines of one order in a single statement.
func (r *OrderRepository) InsertLines(ctx context.Context, lines []domain.OrderLine) error {
	if len(lines) == 0 {
		return nil
	}

	const cols = 6
	placeholders := make([]string, 0, len(lines))
	args := make([]any, 0, len(lines)*cols)
	for i, line := range lines {
		n := i * cols
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5, n+6))
		args = append(args, line.ID, line.OrderID, line.ProductID, line.Quantity, line.UnitPrice, line.Subtotal)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO order_items (id, order_id, product_id, quantity, unit_price, subtotal)
		VALUES `+strings.Join(placeholders, ", "), args...)
	return err
}

func scanOrder(s interface{ Scan(...any) error }) (domain.Order, error) {
	var (
		order          domain.Order
		couponCode     sql.NullString
		couponID       sql.NullString
		paymentID      sql.NullString
		gatewayOrderID sql.NullString
		paymentStatus  sql.NullString
		address        []byte
	)
	err := s.Scan(
		&order.ID, &order.UserID, &order.OrderNumber, &order.SubtotalAmount, &order.DiscountAmount, &couponCode,
		&couponID, &order.TotalAmount, &order.Status, &paymentID, &gatewayOrderID, &paymentStatus,
		&address, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		return order, err
	}

	order.CouponCode = nullable(couponCode)
	order.CouponID = nullable(couponID)
	order.PaymentID = nullable(paymentID)
	order.GatewayOrderID = nullable(gatewayOrderID)
	order.PaymentStatus = nullable(paymentStatus)
	order.ShippingAddress = address
	order.Lines = []domain.OrderLine{}
	return order, nil
}

func nullable(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	order, err := scanOrder(r.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1
	`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	orders := []domain.Order{order}
	if err := r.attachLines(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	return r.list(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
}

func (r *OrderRepository) List(ctx context.Context) ([]domain.Order, error) {
	return r.list(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		ORDER BY created_at DESC
	`)
}

func (r *OrderRepository) list(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orders := []domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.attachLines(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// attachLines loads the lines of every order in one query.
func (r *OrderRepository) attachLines(ctx context.Context, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}

	index := make(map[string]int, len(orders))
	ids := make([]string, 0, len(orders))
	for i, order := range orders {
		index[order.ID] = i
		ids = append(ids, order.ID)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, quantity, unit_price, subtotal
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, id
	`, pq.Array(ids))
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var line domain.OrderLine
		if err := rows.Scan(&line.ID, &line.OrderID, &line.ProductID, &line.Quantity, &line.UnitPrice, &line.Subtotal); err != nil {
			return err
		}
		i := index[line.OrderID]
		orders[i].Lines = append(orders[i].Lines, line)
	}

	return rows.Err()
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = $2
	`, status, id)
	if err != nil {
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}

	if rowsAffected == 0 {
		return nil, nil
	}

	return r.GetByID(ctx, id)
}

// ApplyPaymentUpdate patches the payment fields of every order matching the
// update's payment id or gateway order id, and returns how many matched.
// Pricing and line data are never touched. A capture only confirms orders
// that are still pending or confirmed.
func (r *OrderRepository) ApplyPaymentUpdate(ctx context.Context, u domain.PaymentUpdate) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET
			payment_status = COALESCE(NULLIF($3, ''), payment_status),
			payment_currency = COALESCE(NULLIF($4, ''), payment_currency),
			payment_amount_minor = COALESCE($5, payment_amount_minor),
			payment_id = COALESCE(NULLIF($1, ''), payment_id),
			gateway_order_id = COALESCE(NULLIF($2, ''), gateway_order_id),
			webhook_last_event_id = NULLIF($6, ''),
			webhook_last_event_type = NULLIF($7, ''),
			webhook_last_event_at = $8,
			payment_captured_at = CASE WHEN $3 = 'captured' THEN NOW() ELSE payment_captured_at END,
			status = CASE WHEN $3 = 'captured' AND status IN ('pending', 'confirmed') THEN 'confirmed' ELSE status END,
			updated_at = NOW()
		WHERE ($1 <> '' AND payment_id = $1)
		   OR ($2 <> '' AND gateway_order_id = $2)
	`, u.PaymentID, u.GatewayOrderID, u.Status, u.Currency, u.AmountMinor, u.EventID, u.EventType, u.EventAt)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *OrderRepository) DashboardSummary(ctx context.Context) (*domain.DashboardSummary, error) {
	var s domain.DashboardSummary

	err := r.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM products),
			(SELECT COUNT(*) FROM products WHERE is_active),
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'confirmed'),
			COUNT(*) FILTER (WHERE status = 'shipped'),
			COUNT(*) FILTER (WHERE status = 'delivered')
		FROM orders
	`).Scan(
		&s.Products.Total, &s.Products.Active,
		&s.Orders.Total, &s.Orders.Pending, &s.Orders.Confirmed, &s.Orders.Shipped, &s.Orders.Delivered,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
