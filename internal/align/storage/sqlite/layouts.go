package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/wall.align/internal/align/l2calib"
	"github.com/banshee-data/wall.align/internal/align/l3layout"
)

// LayoutRecord describes a stored layout.
type LayoutRecord struct {
	LayoutID  string    `json:"layout_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	ItemCount int       `json:"item_count"`
}

// SaveLayout stores a new layout and returns its id. Items are validated
// with the same rules as l3layout.
func (db *DB) SaveLayout(name string, items []l3layout.PlannedItem) (string, error) {
	if _, err := l3layout.NewLayout(items); err != nil {
		return "", err
	}
	id := uuid.NewString()

	tx, err := db.Begin()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO layouts (layout_id, name, created_at) VALUES (?, ?, ?)`,
		id, name, time.Now().UnixNano()); err != nil {
		return "", fmt.Errorf("insert layout: %w", err)
	}
	stmt, err := tx.Prepare(`
		INSERT INTO planned_items (layout_id, item_id, label, center_x, center_y, width, height, rotation_deg)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer stmt.Close()
	for _, it := range items {
		if _, err := stmt.Exec(id, string(it.ID), it.Label, it.Center.X, it.Center.Y, it.Width, it.Height, it.RotationDeg); err != nil {
			return "", fmt.Errorf("insert item %q: %w", it.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

// LoadLayout returns a stored layout and its items sorted by id.
func (db *DB) LoadLayout(layoutID string) (LayoutRecord, []l3layout.PlannedItem, error) {
	rec := LayoutRecord{LayoutID: layoutID}
	var created int64
	err := db.QueryRow(`SELECT name, created_at FROM layouts WHERE layout_id = ?`, layoutID).Scan(&rec.Name, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return LayoutRecord{}, nil, fmt.Errorf("layout %s: %w", layoutID, ErrNotFound)
	}
	if err != nil {
		return LayoutRecord{}, nil, err
	}
	rec.CreatedAt = time.Unix(0, created)

	rows, err := db.Query(`
		SELECT item_id, label, center_x, center_y, width, height, rotation_deg
		FROM planned_items WHERE layout_id = ? ORDER BY item_id`, layoutID)
	if err != nil {
		return LayoutRecord{}, nil, err
	}
	defer rows.Close()

	var items []l3layout.PlannedItem
	for rows.Next() {
		var it l3layout.PlannedItem
		var id string
		if err := rows.Scan(&id, &it.Label, &it.Center.X, &it.Center.Y, &it.Width, &it.Height, &it.RotationDeg); err != nil {
			return LayoutRecord{}, nil, err
		}
		it.ID = l3layout.ItemID(id)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return LayoutRecord{}, nil, err
	}
	rec.ItemCount = len(items)
	return rec, items, nil
}

// ListLayouts returns every stored layout, newest first.
func (db *DB) ListLayouts() ([]LayoutRecord, error) {
	rows, err := db.Query(`
		SELECT l.layout_id, l.name, l.created_at, COUNT(p.item_id)
		FROM layouts l LEFT JOIN planned_items p ON p.layout_id = l.layout_id
		GROUP BY l.layout_id
		ORDER BY l.created_at DESC, l.layout_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LayoutRecord
	for rows.Next() {
		var rec LayoutRecord
		var created int64
		if err := rows.Scan(&rec.LayoutID, &rec.Name, &created, &rec.ItemCount); err != nil {
			return nil, err
		}
		rec.CreatedAt = time.Unix(0, created)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SaveCorrespondences replaces the calibration correspondences stored
// for a layout.
func (db *DB) SaveCorrespondences(layoutID string, corrs []l2calib.Correspondence) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM layouts WHERE layout_id = ?`, layoutID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return fmt.Errorf("layout %s: %w", layoutID, ErrNotFound)
	}
	if _, err := tx.Exec(`DELETE FROM correspondences WHERE layout_id = ?`, layoutID); err != nil {
		return err
	}
	for i, c := range corrs {
		if _, err := tx.Exec(`
			INSERT INTO correspondences (layout_id, idx, planning_x, planning_y, camera_x, camera_y)
			VALUES (?, ?, ?, ?, ?, ?)`,
			layoutID, i, c.Planning.X, c.Planning.Y, c.Camera.X, c.Camera.Y); err != nil {
			return fmt.Errorf("insert correspondence %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// LoadCorrespondences returns the stored correspondences in insertion order.
func (db *DB) LoadCorrespondences(layoutID string) ([]l2calib.Correspondence, error) {
	rows, err := db.Query(`
		SELECT planning_x, planning_y, camera_x, camera_y
		FROM correspondences WHERE layout_id = ? ORDER BY idx`, layoutID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []l2calib.Correspondence
	for rows.Next() {
		var c l2calib.Correspondence
		if err := rows.Scan(&c.Planning.X, &c.Planning.Y, &c.Camera.X, &c.Camera.Y); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
