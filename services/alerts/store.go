// Package alerts keeps an append-only history of delivered IPO alerts in PostgreSQL.
package alerts

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ipobot/services/tracker"
)

// Alert kinds
const (
	KindPromotion   = "promotion"
	KindDayComplete = "day_complete"
)

const (
	defaultLimit = 20
	maxLimit     = 500
)

// Alert is one row of the ipo_alerts table
type Alert struct {
	EventID       uuid.UUID           `json:"event_id"`
	Kind          string              `json:"kind"`
	Symbol        string              `json:"symbol,omitempty"`
	CompanyName   string              `json:"company_name,omitempty"`
	Price         decimal.NullDecimal `json:"price"`
	ExpectedPrice string              `json:"expected_price,omitempty"`
	Day           time.Time           `json:"day"`
	Opened        int                 `json:"opened,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
}

// Store handles alert persistence
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStore creates a new alert store
func NewStore(db *sql.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger.Named("alerts")}
}

func (s *Store) insert(ctx context.Context, a Alert) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	query := `
		INSERT INTO ipo_alerts (event_id, kind, symbol, company_name, price, expected_price, day, opened, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (event_id) DO NOTHING
	`

	_, err := s.db.ExecContext(ctx, query,
		a.EventID,
		a.Kind,
		a.Symbol,
		a.CompanyName,
		a.Price,
		a.ExpectedPrice,
		a.Day,
		a.Opened,
		a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save %s alert: %w", a.Kind, err)
	}

	s.logger.Debug("Saved alert", zap.String("kind", a.Kind), zap.String("symbol", a.Symbol))
	return nil
}

// NotifyPromotion implements tracker.Notifier
func (s *Store) NotifyPromotion(ctx context.Context, ev tracker.PromotionEvent) error {
	return s.insert(ctx, fromPromotion(ev))
}

// NotifyDayComplete implements tracker.Notifier
func (s *Store) NotifyDayComplete(ctx context.Context, ev tracker.DayCompleteEvent) error {
	return s.insert(ctx, fromDayComplete(ev))
}

func fromPromotion(ev tracker.PromotionEvent) Alert {
	return Alert{
		EventID:       ev.ID,
		Kind:          KindPromotion,
		Symbol:        ev.Symbol,
		CompanyName:   ev.CompanyName,
		Price:         decimal.NewNullDecimal(ev.CurrentPrice),
		ExpectedPrice: ev.ExpectedPrice,
		Day:           ev.Day,
		CreatedAt:     ev.At,
	}
}

func fromDayComplete(ev tracker.DayCompleteEvent) Alert {
	return Alert{
		EventID:   ev.ID,
		Kind:      KindDayComplete,
		Day:       ev.From,
		Opened:    ev.Opened,
		CreatedAt: ev.At,
	}
}

// clampLimit maps a requested row count into [1, maxLimit]; <= 0 selects the default
func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultLimit
	case limit > maxLimit:
		return maxLimit
	default:
		return limit
	}
}

// Recent returns the latest alerts, newest first
func (s *Store) Recent(ctx context.Context, limit int) ([]Alert, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	query := `
		SELECT event_id, kind, symbol, company_name, price, expected_price, day, opened, created_at
		FROM ipo_alerts
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := s.db.QueryContext(ctx, query, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var results []Alert
	for rows.Next() {
		var a Alert
		if err := rows.Scan(
			&a.EventID,
			&a.Kind,
			&a.Symbol,
			&a.CompanyName,
			&a.Price,
			&a.ExpectedPrice,
			&a.Day,
			&a.Opened,
			&a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		results = append(results, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return results, nil
}
