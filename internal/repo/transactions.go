// Package repo persists storefront transactions in Postgres.
package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// ErrNotFound reports a lookup that matched no transaction.
var ErrNotFound = errors.New("transaction not found")

// Transaction is one top-up purchase and its payment lifecycle.
// Nullable columns use pointers so partial states render cleanly.
type Transaction struct {
	ID            int64      `db:"id"`
	MerchantRef   string     `db:"merchant_ref"`
	TrxID         *string    `db:"trx_id"`
	UserID        int64      `db:"user_id"`
	ChatID        int64      `db:"chat_id"`
	GameCode      string     `db:"game_code"`
	GameName      string     `db:"game_name"`
	ServiceCode   string     `db:"service_code"`
	ItemName      string     `db:"item_name"`
	PlayerID      string     `db:"player_id"`
	ZoneID        *string    `db:"zone_id"`
	Nickname      *string    `db:"nickname"`
	Amount        int64      `db:"amount"`
	FeeAmount     int64      `db:"fee_amount"`
	TotalAmount   int64      `db:"total_amount"`
	Channel       string     `db:"channel"`
	ChannelName   string     `db:"channel_name"`
	Status        string     `db:"status"`
	PayURL        *string    `db:"pay_url"`
	PayCode       *string    `db:"pay_code"`
	QRString      *string    `db:"qr_string"`
	MessageID     *int64     `db:"message_id"`
	Simulated     bool       `db:"simulated"`
	ProviderTrxID *string    `db:"provider_trx_id"`
	SerialNumber  *string    `db:"serial_number"`
	ExpiredAt     *time.Time `db:"expired_at"`
	PaidAt        *time.Time `db:"paid_at"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
}

// GatewayRef returns the reference to use against the gateway: the
// gateway-assigned id when present and real, otherwise the merchant
// ref. Locally simulated placeholders never leave the process.
func (t *Transaction) GatewayRef() string {
	if t.TrxID != nil && *t.TrxID != "" && !t.Simulated {
		return *t.TrxID
	}
	return t.MerchantRef
}

const transactionColumns = `id, merchant_ref, trx_id, user_id, chat_id,
game_code, game_name, service_code, item_name, player_id, zone_id,
nickname, amount, fee_amount, total_amount, channel, channel_name,
status, pay_url, pay_code, qr_string, message_id, simulated,
provider_trx_id, serial_number, expired_at, paid_at, created_at,
updated_at`

// allowedUpdateColumns lists the columns UpdateFields may touch. Keys
// come from callers building field maps, never from user input.
var allowedUpdateColumns = map[string]bool{
	"trx_id":          true,
	"status":          true,
	"pay_url":         true,
	"pay_code":        true,
	"qr_string":       true,
	"message_id":      true,
	"provider_trx_id": true,
	"serial_number":   true,
	"expired_at":      true,
	"paid_at":         true,
	"nickname":        true,
}

// Transactions is the Postgres-backed transaction store.
type Transactions struct {
	db *sqlx.DB
}

func NewTransactions(db *sqlx.DB) *Transactions {
	return &Transactions{db: db}
}

// Create inserts a new transaction and fills the generated id and
// timestamps back into trx.
func (r *Transactions) Create(ctx context.Context, trx *Transaction) error {
	const q = `
INSERT INTO transactions (
	merchant_ref, trx_id, user_id, chat_id, game_code, game_name,
	service_code, item_name, player_id, zone_id, nickname,
	amount, fee_amount, total_amount, channel, channel_name, status,
	pay_url, pay_code, qr_string, message_id, simulated,
	provider_trx_id, serial_number, expired_at, paid_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
	$14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26
) RETURNING id, created_at, updated_at;`

	row := r.db.QueryRowxContext(ctx, q,
		trx.MerchantRef, trx.TrxID, trx.UserID, trx.ChatID,
		trx.GameCode, trx.GameName, trx.ServiceCode, trx.ItemName,
		trx.PlayerID, trx.ZoneID, trx.Nickname,
		trx.Amount, trx.FeeAmount, trx.TotalAmount,
		trx.Channel, trx.ChannelName, trx.Status,
		trx.PayURL, trx.PayCode, trx.QRString, trx.MessageID, trx.Simulated,
		trx.ProviderTrxID, trx.SerialNumber, trx.ExpiredAt, trx.PaidAt,
	)
	if err := row.Scan(&trx.ID, &trx.CreatedAt, &trx.UpdatedAt); err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// ByMerchantRef fetches a transaction by our own reference.
func (r *Transactions) ByMerchantRef(ctx context.Context, merchantRef string) (*Transaction, error) {
	q := fmt.Sprintf(`SELECT %s FROM transactions WHERE merchant_ref = $1 LIMIT 1;`, transactionColumns)

	var trx Transaction
	if err := r.db.GetContext(ctx, &trx, q, merchantRef); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get transaction by merchant_ref: %w", err)
	}
	return &trx, nil
}

// ByReference fetches a transaction by gateway reference or merchant
// ref, whichever matches.
func (r *Transactions) ByReference(ctx context.Context, ref string) (*Transaction, error) {
	q := fmt.Sprintf(`SELECT %s FROM transactions WHERE trx_id = $1 OR merchant_ref = $1 LIMIT 1;`, transactionColumns)

	var trx Transaction
	if err := r.db.GetContext(ctx, &trx, q, ref); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get transaction by reference: %w", err)
	}
	return &trx, nil
}

// UpdateFields applies a partial update keyed by column name. Only
// lifecycle columns may change; a nil value clears the column.
func (r *Transactions) UpdateFields(ctx context.Context, merchantRef string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	q, args, err := buildUpdate(merchantRef, fields)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// buildUpdate renders the partial UPDATE with deterministic column
// order so the same field map always produces the same SQL.
func buildUpdate(merchantRef string, fields map[string]any) (string, []any, error) {
	cols := make([]string, 0, len(fields))
	for col := range fields {
		if !allowedUpdateColumns[col] {
			return "", nil, fmt.Errorf("update field %q not allowed", col)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	set := make([]string, 0, len(cols)+1)
	args := make([]any, 0, len(cols)+1)
	args = append(args, merchantRef)
	for i, col := range cols {
		set = append(set, fmt.Sprintf("%s = $%d", col, i+2))
		args = append(args, fields[col])
	}
	set = append(set, "updated_at = NOW()")

	q := fmt.Sprintf("UPDATE transactions SET %s WHERE merchant_ref = $1;", strings.Join(set, ", "))
	return q, args, nil
}

// RecentByUser lists a user's latest transactions, newest first.
func (r *Transactions) RecentByUser(ctx context.Context, userID int64, limit int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 5
	}
	q := fmt.Sprintf(`SELECT %s FROM transactions WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2;`, transactionColumns)

	var out []Transaction
	if err := r.db.SelectContext(ctx, &out, q, userID, limit); err != nil {
		return nil, fmt.Errorf("list recent transactions: %w", err)
	}
	return out, nil
}

// CountByStatus returns transaction totals grouped by status.
func (r *Transactions) CountByStatus(ctx context.Context) (map[string]int64, error) {
	const q = `SELECT status, COUNT(*) AS total FROM transactions GROUP BY status;`

	rows, err := r.db.QueryxContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("count transactions: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var status string
		var total int64
		if err := rows.Scan(&status, &total); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[status] = total
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}
	return counts, nil
}
