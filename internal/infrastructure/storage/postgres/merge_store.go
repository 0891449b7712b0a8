package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"stockcount/internal/domain/count"
	"stockcount/internal/domain/merge"
)

// MergeStore реализует merge.Store поверх строк сессий
type MergeStore struct {
	db *Storage
}

func NewMergeStore(db *Storage) *MergeStore {
	return &MergeStore{db: db}
}

func (s *MergeStore) WithinItemTx(ctx context.Context, fn func(tx merge.ItemTx) error) error {
	return inTx(ctx, s.db.Pool(), func(tx pgx.Tx) error {
		return fn(&pgItemTx{tx: tx})
	})
}

type pgItemTx struct {
	tx     pgx.Tx
	locked bool
}

func (t *pgItemTx) AlreadyMerged(ctx context.Context, peerID, tempID string) (bool, error) {
	var merged bool
	err := t.tx.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM merged_temp_ids WHERE peer_id = $1 AND temp_id = $2)`,
		peerID, tempID).Scan(&merged)
	return merged, err
}

// FindMatching берет транзакционную блокировку сессии: слияния в одну сессию идут по очереди,
// поэтому новая строка не может появиться дважды, а найденная не меняется до коммита.
func (t *pgItemTx) FindMatching(ctx context.Context, sessionID, sku, name string) (*merge.Line, error) {
	if !t.locked {
		if _, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, sessionID); err != nil {
			return nil, fmt.Errorf("lock session: %w", err)
		}
		t.locked = true
	}

	if sku != "" {
		line, err := t.findLine(ctx, `WHERE session_id = $1 AND sku = $2`, sessionID, sku)
		if err != nil || line != nil {
			return line, err
		}
	}
	if name != "" {
		return t.findLine(ctx, `WHERE session_id = $1 AND lower(nombre) = lower($2)`, sessionID, name)
	}
	return nil, nil
}

func (t *pgItemTx) findLine(ctx context.Context, where string, args ...interface{}) (*merge.Line, error) {
	var (
		line      merge.Line
		productID *string
		qty, cost string
	)
	err := t.tx.QueryRow(ctx, `SELECT id::text, product_id::text, cantidad_contada::text, costo_producto::text
		FROM session_lines `+where+` ORDER BY created_at LIMIT 1 FOR UPDATE`, args...).
		Scan(&line.ID, &productID, &qty, &cost)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find line: %w", err)
	}
	line.ProductID = productID
	if line.Quantity, err = decimal.NewFromString(qty); err != nil {
		return nil, err
	}
	if line.UnitCost, err = decimal.NewFromString(cost); err != nil {
		return nil, err
	}
	return &line, nil
}

func (t *pgItemTx) AddToLine(ctx context.Context, lineID string, quantity, unitCost decimal.Decimal) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE session_lines
		SET cantidad_contada = $2::numeric, costo_producto = $3::numeric, updated_at = NOW()
		WHERE id::text = $1`, lineID, quantity.String(), unitCost.String())
	return err
}

func (t *pgItemTx) InsertLine(ctx context.Context, sessionID string, productID *string, it count.BatchItem) (string, error) {
	var id string
	err := t.tx.QueryRow(ctx, `
		INSERT INTO session_lines (session_id, product_id, nombre, sku, cantidad_contada, costo_producto)
		VALUES ($1, $2::uuid, $3, $4, $5::numeric, $6::numeric)
		RETURNING id::text`,
		sessionID, productID, it.ProductName, it.SKU, it.Quantity.String(), it.UnitCost.String()).Scan(&id)
	return id, err
}

func (t *pgItemTx) MarkMerged(ctx context.Context, peerID, tempID, lineID string) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO merged_temp_ids (peer_id, temp_id, line_id) VALUES ($1, $2, $3::uuid)`,
		peerID, tempID, lineID)
	return err
}
