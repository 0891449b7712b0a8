package merge

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/exp/slog"

	"stockcount/internal/domain/count"
)

type Servicer interface {
	MergeBatch(ctx context.Context, sessionID string, batch count.Batch) (*Result, error)
}

// Outcome чем закончилось слияние одной позиции
type Outcome string

const (
	OutcomeMatched  Outcome = "matched"
	OutcomeInserted Outcome = "inserted"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeFailed   Outcome = "failed"
)

// ItemResult результат по одной позиции пакета
type ItemResult struct {
	TempID  string  `json:"tempId"`
	Outcome Outcome `json:"outcome"`
	LineID  string  `json:"lineId,omitempty"`
	Error   string  `json:"error,omitempty"`
}

// Result результат слияния пакета. Частичный успех допустим.
type Result struct {
	BatchID  string       `json:"batchId"`
	Matched  int          `json:"matched"`
	Inserted int          `json:"inserted"`
	Skipped  int          `json:"skipped"`
	Failed   int          `json:"failed"`
	Items    []ItemResult `json:"items"`
}

// FailedTempIDs временные идентификаторы позиций, которые нужно отправить повторно.
func (r *Result) FailedTempIDs() []string {
	var ids []string
	for _, it := range r.Items {
		if it.Outcome == OutcomeFailed {
			ids = append(ids, it.TempID)
		}
	}
	return ids
}

type Service struct {
	store    Store
	products ProductResolver
	log      *slog.Logger
}

func NewService(store Store, products ProductResolver, log *slog.Logger) *Service {
	return &Service{
		store:    store,
		products: products,
		log:      log.With("component", "merge"),
	}
}

// MergeBatch вливает пакет коллеги в сессию по одной позиции за транзакцию.
// Совпадение ищется сначала по штрихкоду, затем по имени без учета регистра.
// При совпадении количество складывается, себестоимость перезаписывается входящей.
// Повторная обработка уже влитого временного идентификатора ничего не меняет.
func (s *Service) MergeBatch(ctx context.Context, sessionID string, batch count.Batch) (*Result, error) {
	if sessionID == "" {
		return nil, ErrEmptySession
	}

	res := &Result{BatchID: batch.ID, Items: make([]ItemResult, 0, len(batch.Items))}

	for _, it := range batch.Items {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		ir := s.mergeItem(ctx, sessionID, batch.PeerID, it)
		switch ir.Outcome {
		case OutcomeMatched:
			res.Matched++
		case OutcomeInserted:
			res.Inserted++
		case OutcomeSkipped:
			res.Skipped++
		case OutcomeFailed:
			res.Failed++
			s.log.Warn("item merge failed", "peer", batch.PeerID, "temp_id", it.TempID, "error", ir.Error)
		}
		res.Items = append(res.Items, ir)
	}

	s.log.Info("batch merged",
		"batch", batch.ID,
		"peer", batch.PeerID,
		"matched", res.Matched,
		"inserted", res.Inserted,
		"skipped", res.Skipped,
		"failed", res.Failed,
	)

	return res, nil
}

func (s *Service) mergeItem(ctx context.Context, sessionID, peerID string, it count.BatchItem) ItemResult {
	ir := ItemResult{TempID: it.TempID}
	productID := it.ProductID
	resolved := productID != nil

	for {
		err := s.store.WithinItemTx(ctx, func(tx ItemTx) error {
			done, err := tx.AlreadyMerged(ctx, peerID, it.TempID)
			if err != nil {
				return fmt.Errorf("check merged: %w", err)
			}
			if done {
				ir.Outcome = OutcomeSkipped
				return nil
			}

			line, err := tx.FindMatching(ctx, sessionID, it.SKU, it.ProductName)
			if err != nil {
				return fmt.Errorf("find matching: %w", err)
			}

			if line != nil {
				qty := line.Quantity.Add(it.Quantity)
				if err := tx.AddToLine(ctx, line.ID, qty, it.UnitCost); err != nil {
					return fmt.Errorf("add to line: %w", err)
				}
				ir.Outcome, ir.LineID = OutcomeMatched, line.ID
			} else {
				if !resolved {
					return errProductRequired
				}
				lineID, err := tx.InsertLine(ctx, sessionID, productID, it)
				if err != nil {
					return fmt.Errorf("insert line: %w", err)
				}
				ir.Outcome, ir.LineID = OutcomeInserted, lineID
			}

			return tx.MarkMerged(ctx, peerID, it.TempID, ir.LineID)
		})

		if errors.Is(err, errProductRequired) {
			id, rerr := s.products.Resolve(ctx, it.ProductName, it.SKU)
			if rerr != nil {
				err = fmt.Errorf("resolve product: %w", rerr)
			} else {
				if id != "" {
					productID = &id
				}
				resolved = true
				continue
			}
		}

		if err != nil {
			return ItemResult{TempID: it.TempID, Outcome: OutcomeFailed, Error: err.Error()}
		}
		return ir
	}
}
