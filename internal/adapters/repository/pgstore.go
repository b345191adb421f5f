package repository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/nutriagenda/internal/domain/model"
	"github.com/okian/nutriagenda/pkg/metrics"
)

//go:embed schema.sql
var schemaSQL string

// uniqueViolation is the Postgres SQLSTATE for a unique constraint breach.
const uniqueViolation = "23505"

type queryable interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// NewPool opens a pgx pool and checks connectivity.
func NewPool(ctx context.Context, databaseURL string, maxConns, minConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = maxConns
	cfg.MinConns = minConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// PGStore stores measurements in the anthropometrics table.
type PGStore struct {
	pool *pgxpool.Pool
	db   queryable
}

var _ Store = (*PGStore)(nil)

// NewPGStore wraps pool. The store owns the pool and closes it on Close.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool, db: pool}
}

// Migrate creates the table and index if they do not exist.
func (s *PGStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate anthropometrics: %w", err)
	}
	return nil
}

const measurementCols = `patient_id, measured_at, weight_kg, height_cm,
	waist_cm, hip_cm, chest_cm, arm_cm, thigh_cm, calf_cm, neck_cm, arm_flexed_cm,
	triceps_mm, subscapular_mm, suprailiac_mm, abdominal_mm, thigh_fold_mm, calf_fold_mm, supraspinale_mm,
	humerus_breadth_cm, femur_breadth_cm, biceps_mm, wrist_breadth_cm,
	age_years, gender, activity_level, notes, body_score`

func scanMeasurement(row pgx.Row) (model.RawMeasurement, error) {
	var (
		r        model.RawMeasurement
		gender   *string
		activity *string
	)
	c, sf, b := &r.Circumferences, &r.Skinfolds, &r.Breadths
	err := row.Scan(&r.PatientID, &r.Date, &r.WeightKg, &r.HeightCm,
		&c.WaistCm, &c.HipCm, &c.ChestCm, &c.ArmCm, &c.ThighCm, &c.CalfCm, &c.NeckCm, &c.ArmFlexedCm,
		&sf.TricepsMm, &sf.SubscapularMm, &sf.SuprailiacMm, &sf.AbdominalMm, &sf.ThighMm, &sf.CalfMm, &sf.SupraspinaleMm,
		&b.HumerusCm, &b.FemurCm, &sf.BicepsMm, &b.WristCm,
		&r.AgeYears, &gender, &activity, &r.Notes, &r.BodyScore)
	if err != nil {
		return model.RawMeasurement{}, err
	}
	if gender != nil {
		g := model.Gender(*gender)
		r.Gender = &g
	}
	if activity != nil {
		a := model.ActivityLevel(*activity)
		r.ActivityLevel = &a
	}
	r.Date = r.Date.UTC()
	return r, nil
}

// Save implements Store.
func (s *PGStore) Save(ctx context.Context, patientID string, raw *model.RawMeasurement) (string, error) {
	start := time.Now()
	defer func() { metrics.RecordRepositorySaveLatency(msSince(start)) }()

	if patientID == "" {
		return "", ErrInvalidPatient
	}
	id := uuid.New()
	c, sf, b := raw.Circumferences, raw.Skinfolds, raw.Breadths
	_, err := s.db.Exec(ctx, `
		INSERT INTO anthropometrics (id, `+measurementCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29)`,
		id, patientID, raw.Date, raw.WeightKg, raw.HeightCm,
		c.WaistCm, c.HipCm, c.ChestCm, c.ArmCm, c.ThighCm, c.CalfCm, c.NeckCm, c.ArmFlexedCm,
		sf.TricepsMm, sf.SubscapularMm, sf.SuprailiacMm, sf.AbdominalMm, sf.ThighMm, sf.CalfMm, sf.SupraspinaleMm,
		b.HumerusCm, b.FemurCm, sf.BicepsMm, b.WristCm,
		raw.AgeYears, (*string)(raw.Gender), (*string)(raw.ActivityLevel), raw.Notes, raw.BodyScore)
	if err != nil {
		metrics.RecordRepositoryError("save")
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return "", ErrDuplicate
		}
		return "", fmt.Errorf("insert measurement: %w", err)
	}
	return id.String(), nil
}

// ListByPatient implements Store.
func (s *PGStore) ListByPatient(ctx context.Context, patientID string) ([]model.RawMeasurement, error) {
	start := time.Now()
	defer func() { metrics.RecordRepositoryQueryLatency(msSince(start)) }()

	rows, err := s.db.Query(ctx,
		`SELECT `+measurementCols+` FROM anthropometrics WHERE patient_id = $1 ORDER BY measured_at, created_at`,
		patientID)
	if err != nil {
		metrics.RecordRepositoryError("list")
		return nil, fmt.Errorf("list measurements: %w", err)
	}
	defer rows.Close()

	out := []model.RawMeasurement{}
	for rows.Next() {
		r, err := scanMeasurement(rows)
		if err != nil {
			metrics.RecordRepositoryError("list")
			return nil, fmt.Errorf("scan measurement: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		metrics.RecordRepositoryError("list")
		return nil, fmt.Errorf("iterate measurements: %w", err)
	}
	return out, nil
}

// Count implements Store.
func (s *PGStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM anthropometrics`).Scan(&n); err != nil {
		metrics.RecordRepositoryError("count")
		return 0, fmt.Errorf("count measurements: %w", err)
	}
	metrics.UpdateRepositoryMeasurements(n)
	return n, nil
}

// Close closes the underlying pool.
func (s *PGStore) Close() error {
	s.pool.Close()
	return nil
}
