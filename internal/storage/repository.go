// Package storage persists processed batches to SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"esgdash/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned for unknown report ids.
var ErrNotFound = errors.New("report not found")

// ErrNoScorecard is returned when saving a batch without a scorecard.
var ErrNoScorecard = errors.New("batch has no scorecard")

// DefaultListLimit applies when ListReports is given no limit.
const DefaultListLimit = 20

// Fixed width so created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Report is a stored batch summary.
type Report struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Scope1Kg         float64   `json:"scope1_kg"`
	Scope2Kg         float64   `json:"scope2_kg"`
	Scope3Kg         float64   `json:"scope3_kg"`
	TotalKg          float64   `json:"total_kg"`
	TransactionCount int       `json:"transaction_count"`
	Standards        string    `json:"standards"`
	ReportDate       string    `json:"report_date"`
	CreatedAt        time.Time `json:"created_at"`
}

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	// One writer at a time.
	db.SetMaxOpenConns(1)

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// SaveBatch stores the scorecard summary and every processed transaction of
// res under a new report id.
func (r *SQLiteRepository) SaveBatch(ctx context.Context, name string, res core.BatchResult) (string, error) {
	if res.Scorecard == nil {
		return "", ErrNoScorecard
	}
	rep := Report{
		ID:               uuid.New().String(),
		Name:             name,
		TotalKg:          res.Scorecard.TotalKgCO2e,
		TransactionCount: res.Scorecard.TransactionCount,
		Standards:        res.Scorecard.Standards,
		ReportDate:       res.Scorecard.ReportDate,
		CreatedAt:        r.now().UTC(),
	}
	rep.Scope1Kg, rep.Scope2Kg, rep.Scope3Kg = scopeTotals(res.Transactions)

	err := r.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO reports (id, name, scope1_kg, scope2_kg, scope3_kg, total_kg,
			                     transaction_count, standards, report_date, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rep.ID, rep.Name, rep.Scope1Kg, rep.Scope2Kg, rep.Scope3Kg, rep.TotalKg,
			rep.TransactionCount, rep.Standards, rep.ReportDate, rep.CreatedAt.Format(timeLayout))
		if err != nil {
			return fmt.Errorf("insert report: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO transactions (report_id, position, invoice_id, supplier, description,
			                          amount_gbp, quantity, unit, category, emissions_kg_co2e, scope, date)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare transaction insert: %w", err)
		}
		defer stmt.Close()

		for i, t := range res.Transactions {
			_, err := stmt.ExecContext(ctx, rep.ID, i, nullString(t.ID), nullString(t.Supplier), t.Description,
				t.AmountGBP, nullFloat(t.Quantity), nullString(t.Unit), nullString(t.Category),
				nullFloat(t.EmissionsKgCO2e), nullString(t.Scope), nullString(t.Date))
			if err != nil {
				return fmt.Errorf("insert transaction %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	slog.InfoContext(ctx, "Report saved to SQLite",
		"id", rep.ID,
		"name", rep.Name,
		"transactions", len(res.Transactions),
		"total_kg", rep.TotalKg)

	return rep.ID, nil
}

// ListReports returns the most recent reports first.
func (r *SQLiteRepository) ListReports(ctx context.Context, limit int) ([]Report, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, scope1_kg, scope2_kg, scope3_kg, total_kg,
		       transaction_count, standards, report_date, created_at
		FROM reports
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	reports := []Report{}
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return reports, nil
}

// GetReport returns one report by id.
func (r *SQLiteRepository) GetReport(ctx context.Context, id string) (Report, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, scope1_kg, scope2_kg, scope3_kg, total_kg,
		       transaction_count, standards, report_date, created_at
		FROM reports WHERE id = ?`, id)
	rep, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Report{}, ErrNotFound
	}
	return rep, err
}

// ReportTransactions returns the transactions of a report in their
// original order.
func (r *SQLiteRepository) ReportTransactions(ctx context.Context, id string) ([]core.Transaction, error) {
	if _, err := r.GetReport(ctx, id); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT invoice_id, supplier, description, amount_gbp, quantity, unit,
		       category, emissions_kg_co2e, scope, date
		FROM transactions
		WHERE report_id = ?
		ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("get transactions for report %s: %w", id, err)
	}
	defer rows.Close()

	txs := []core.Transaction{}
	for rows.Next() {
		var (
			t                                        core.Transaction
			invoiceID, supplier, unit, cat, sc, date sql.NullString
			qty, kg                                  sql.NullFloat64
		)
		if err := rows.Scan(&invoiceID, &supplier, &t.Description, &t.AmountGBP, &qty, &unit,
			&cat, &kg, &sc, &date); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.ID, t.Supplier, t.Unit = stringPtr(invoiceID), stringPtr(supplier), stringPtr(unit)
		t.Category, t.Scope, t.Date = stringPtr(cat), stringPtr(sc), stringPtr(date)
		t.Quantity, t.EmissionsKgCO2e = floatPtr(qty), floatPtr(kg)
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return txs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReport(s scanner) (Report, error) {
	var (
		rep     Report
		created string
	)
	err := s.Scan(&rep.ID, &rep.Name, &rep.Scope1Kg, &rep.Scope2Kg, &rep.Scope3Kg, &rep.TotalKg,
		&rep.TransactionCount, &rep.Standards, &rep.ReportDate, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Report{}, err
		}
		return Report{}, fmt.Errorf("scan report: %w", err)
	}
	if rep.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return Report{}, fmt.Errorf("parse created_at %q: %w", created, err)
	}
	return rep, nil
}

func (r *SQLiteRepository) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// scopeTotals buckets emissions by scope label, unlabelled rows count as
// Scope 3.
func scopeTotals(txs []core.Transaction) (s1, s2, s3 float64) {
	for _, t := range txs {
		if t.EmissionsKgCO2e == nil {
			continue
		}
		kg := *t.EmissionsKgCO2e
		scope := ""
		if t.Scope != nil {
			scope = *t.Scope
		}
		switch {
		case strings.Contains(scope, core.Scope1):
			s1 += kg
		case strings.Contains(scope, core.Scope2):
			s2 += kg
		default:
			s3 += kg
		}
	}
	return s1, s2, s3
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func stringPtr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	return core.String(n.String)
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	return core.Float(n.Float64)
}
