package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JettChenT/ek-geo/internal/core/domain"
)

// invalid_text_representation, raised for malformed UUIDs.
const pgInvalidText = "22P02"

// PointSetRepo implements ports.PointSetRepository with pgx.
type PointSetRepo struct {
	db *DB
}

// NewPointSetRepo creates a new PointSetRepo.
func NewPointSetRepo(db *DB) *PointSetRepo {
	return &PointSetRepo{db: db}
}

// Create stores info and points in one transaction and returns the new id.
// A non-empty info.RequestKey makes the call idempotent: a repeated key
// returns the id of the set first stored under it.
func (r *PointSetRepo) Create(ctx context.Context, info domain.PointSetInfo, points *domain.PointSet) (string, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var lo, hi [2]*float64
	if info.Bounds != nil {
		lo = [2]*float64{&info.Bounds.Lo.Lon, &info.Bounds.Lo.Lat}
		hi = [2]*float64{&info.Bounds.Hi.Lon, &info.Bounds.Hi.Lat}
	}
	var sourceID, requestKey *string
	if info.SourceID != "" {
		sourceID = &info.SourceID
	}
	if info.RequestKey != "" {
		requestKey = &info.RequestKey
	}

	var id string
	err = tx.QueryRow(ctx, `
		INSERT INTO point_sets (name, point_count, lo_lon, lo_lat, hi_lon, hi_lat, source_id, interval_km, metadata, request_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (request_key) DO NOTHING
		RETURNING id
	`, info.Name, points.Len(), lo[0], lo[1], hi[0], hi[1], sourceID, info.IntervalKm, info.Metadata, requestKey).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) && requestKey != nil {
		err = tx.QueryRow(ctx, `SELECT id FROM point_sets WHERE request_key = $1`, *requestKey).Scan(&id)
		if err != nil {
			return "", fmt.Errorf("lookup request key: %w", err)
		}
		return id, nil
	}
	if err != nil {
		return "", fmt.Errorf("insert point set: %w", err)
	}

	if err := copyPoints(ctx, tx, id, 0, points.Points()); err != nil {
		return "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// Get returns a set with its points in stored order.
func (r *PointSetRepo) Get(ctx context.Context, id string) (*domain.StoredPointSet, error) {
	info, err := scanInfo(r.db.Pool.QueryRow(ctx, selectInfo+` WHERE id = $1`, id))
	if err != nil {
		return nil, mapNotFound(err, id)
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT lon, lat, COALESCE(aux, '{}')
		FROM points WHERE set_id = $1
		ORDER BY seq
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	points := make([]domain.GeoPoint, 0, info.Count)
	for rows.Next() {
		var p domain.GeoPoint
		if err := rows.Scan(&p.Lon, &p.Lat, &p.Aux); err != nil {
			return nil, err
		}
		if len(p.Aux) == 0 {
			p.Aux = nil
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &domain.StoredPointSet{PointSetInfo: *info, Points: domain.NewPointSet(points...)}, nil
}

// List returns set descriptions, newest first, with the total count.
func (r *PointSetRepo) List(ctx context.Context, limit, offset int) ([]domain.PointSetInfo, int, error) {
	var total int
	if err := r.db.Pool.QueryRow(ctx, `SELECT count(*) FROM point_sets`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Pool.Query(ctx, selectInfo+`
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var sets []domain.PointSetInfo
	for rows.Next() {
		info, err := scanInfo(rows)
		if err != nil {
			return nil, 0, err
		}
		sets = append(sets, *info)
	}
	return sets, total, rows.Err()
}

// Delete removes a set; its points go with it via ON DELETE CASCADE.
func (r *PointSetRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM point_sets WHERE id = $1`, id)
	if err != nil {
		return mapNotFound(err, id)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("point set %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// AppendPoints adds points after the current last point and widens the
// stored bounds.
func (r *PointSetRepo) AppendPoints(ctx context.Context, id string, points []domain.GeoPoint) error {
	if len(points) == 0 {
		return nil
	}
	added, _ := domain.BoundsFromPoints(points)

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var count int
	err = tx.QueryRow(ctx, `SELECT point_count FROM point_sets WHERE id = $1 FOR UPDATE`, id).Scan(&count)
	if err != nil {
		return mapNotFound(err, id)
	}

	if err := copyPoints(ctx, tx, id, count, points); err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE point_sets SET
			point_count = point_count + $2,
			lo_lon = LEAST(COALESCE(lo_lon, $3), $3),
			lo_lat = LEAST(COALESCE(lo_lat, $4), $4),
			hi_lon = GREATEST(COALESCE(hi_lon, $5), $5),
			hi_lat = GREATEST(COALESCE(hi_lat, $6), $6)
		WHERE id = $1
	`, id, len(points), added.Lo.Lon, added.Lo.Lat, added.Hi.Lon, added.Hi.Lat)
	if err != nil {
		return fmt.Errorf("update point set: %w", err)
	}
	return tx.Commit(ctx)
}

const selectInfo = `
	SELECT id, name, point_count, lo_lon, lo_lat, hi_lon, hi_lat,
	       COALESCE(source_id::text, ''), COALESCE(interval_km, 0),
	       COALESCE(metadata, '{}'), created_at
	FROM point_sets`

func scanInfo(row pgx.Row) (*domain.PointSetInfo, error) {
	var (
		info   domain.PointSetInfo
		lo, hi [2]*float64
	)
	err := row.Scan(
		&info.ID, &info.Name, &info.Count, &lo[0], &lo[1], &hi[0], &hi[1],
		&info.SourceID, &info.IntervalKm, &info.Metadata, &info.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lo[0] != nil && lo[1] != nil && hi[0] != nil && hi[1] != nil {
		info.Bounds = &domain.Bounds{
			Lo: domain.GeoPoint{Lon: *lo[0], Lat: *lo[1]},
			Hi: domain.GeoPoint{Lon: *hi[0], Lat: *hi[1]},
		}
	}
	if len(info.Metadata) == 0 {
		info.Metadata = nil
	}
	return &info, nil
}

// copyPoints bulk-loads points with sequence numbers starting at first.
func copyPoints(ctx context.Context, tx pgx.Tx, setID string, first int, points []domain.GeoPoint) error {
	if len(points) == 0 {
		return nil
	}
	var setUUID pgtype.UUID
	if err := setUUID.Scan(setID); err != nil {
		return fmt.Errorf("set id: %w", err)
	}
	n, err := tx.CopyFrom(ctx,
		pgx.Identifier{"points"},
		[]string{"set_id", "seq", "lon", "lat", "aux"},
		pgx.CopyFromSlice(len(points), func(i int) ([]any, error) {
			p := points[i]
			var aux any
			if len(p.Aux) > 0 {
				aux = p.Aux
			}
			return []any{setUUID, first + i, p.Lon, p.Lat, aux}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("copy points: %w", err)
	}
	if int(n) != len(points) {
		return fmt.Errorf("copy points: wrote %d of %d", n, len(points))
	}
	return nil
}

func mapNotFound(err error, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("point set %s: %w", id, domain.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgInvalidText {
		return fmt.Errorf("point set %s: %w", id, domain.ErrNotFound)
	}
	return err
}
