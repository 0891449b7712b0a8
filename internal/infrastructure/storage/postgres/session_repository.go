package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"golang.org/x/exp/slog"

	"stockcount/internal/domain/session"
)

type SessionRepository struct {
	db  *Storage
	log *slog.Logger
}

func NewSessionRepository(db *Storage, log *slog.Logger) *SessionRepository {
	return &SessionRepository{
		db:  db,
		log: log.With("component", "session_repository"),
	}
}

const lineColumns = `id::text, session_id, COALESCE(product_id::text, ''), nombre, sku,
	cantidad_contada::text, costo_producto::text, client_ref, created_at, updated_at`

func scanLine(row pgx.Row) (*session.Line, error) {
	var (
		l         session.Line
		qty, cost string
	)
	if err := row.Scan(&l.ID, &l.SessionID, &l.ProductID, &l.Nombre, &l.SKU,
		&qty, &cost, &l.ClientRef, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	if l.CantidadContada, err = decimal.NewFromString(qty); err != nil {
		return nil, fmt.Errorf("parse cantidad: %w", err)
	}
	if l.CostoProducto, err = decimal.NewFromString(cost); err != nil {
		return nil, fmt.Errorf("parse costo: %w", err)
	}
	return &l, nil
}

func nullUUID(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}

// AddLine идемпотентна по (session_id, client_ref)
func (r *SessionRepository) AddLine(ctx context.Context, line *session.Line) (*session.Line, bool, error) {
	saved, err := scanLine(r.db.Pool().QueryRow(ctx, `
		INSERT INTO session_lines (session_id, product_id, nombre, sku, cantidad_contada, costo_producto, client_ref)
		VALUES ($1, $2::uuid, $3, $4, $5::numeric, $6::numeric, $7)
		ON CONFLICT (session_id, client_ref) WHERE client_ref IS NOT NULL DO NOTHING
		RETURNING `+lineColumns,
		line.SessionID, nullUUID(line.ProductID), line.Nombre, line.SKU,
		line.CantidadContada.String(), line.CostoProducto.String(), line.ClientRef))
	if err == nil {
		return saved, true, nil
	}
	if !isNoRows(err) {
		r.log.Error("failed to add line", "session", line.SessionID, "error", err)
		return nil, false, fmt.Errorf("add line: %w", err)
	}

	existing, err := scanLine(r.db.Pool().QueryRow(ctx,
		`SELECT `+lineColumns+` FROM session_lines WHERE session_id = $1 AND client_ref = $2`,
		line.SessionID, line.ClientRef))
	if err != nil {
		return nil, false, fmt.Errorf("load existing line: %w", err)
	}
	return existing, false, nil
}

func (r *SessionRepository) UpdateLine(ctx context.Context, sessionID, lineID string, qty, cost *decimal.Decimal) (*session.Line, error) {
	var qtyArg, costArg *string
	if qty != nil {
		s := qty.String()
		qtyArg = &s
	}
	if cost != nil {
		s := cost.String()
		costArg = &s
	}

	line, err := scanLine(r.db.Pool().QueryRow(ctx, `
		UPDATE session_lines
		SET cantidad_contada = COALESCE($3::numeric, cantidad_contada),
		    costo_producto = COALESCE($4::numeric, costo_producto),
		    updated_at = NOW()
		WHERE session_id = $1 AND id::text = $2
		RETURNING `+lineColumns, sessionID, lineID, qtyArg, costArg))
	if isNoRows(err) {
		return nil, session.ErrLineNotFound
	}
	if err != nil {
		r.log.Error("failed to update line", "line", lineID, "error", err)
		return nil, fmt.Errorf("update line: %w", err)
	}
	return line, nil
}

func (r *SessionRepository) ListLines(ctx context.Context, sessionID string) ([]session.Line, error) {
	rows, err := r.db.Pool().Query(ctx,
		`SELECT `+lineColumns+` FROM session_lines WHERE session_id = $1 ORDER BY created_at`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list lines: %w", err)
	}
	defer rows.Close()

	lines := []session.Line{}
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, fmt.Errorf("scan line: %w", err)
		}
		lines = append(lines, *l)
	}
	return lines, rows.Err()
}
