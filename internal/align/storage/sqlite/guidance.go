package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/banshee-data/wall.align/internal/align/l3layout"
	"github.com/banshee-data/wall.align/internal/align/l4pose"
	"github.com/banshee-data/wall.align/internal/align/l5guidance"
)

// GuidanceRecorder writes one row per guidance result. It satisfies the
// pipeline sink interface.
type GuidanceRecorder struct {
	db *DB
}

// NewGuidanceRecorder creates a recorder on db.
func NewGuidanceRecorder(db *DB) *GuidanceRecorder {
	return &GuidanceRecorder{db: db}
}

// RecordGuidance stores res. A result for a frame already recorded in the
// same session replaces the earlier row.
func (r *GuidanceRecorder) RecordGuidance(res l5guidance.GuidanceResult) error {
	var conf sql.NullFloat64
	if res.Observed != nil {
		conf = sql.NullFloat64{Float64: res.Observed.Confidence, Valid: true}
	}
	var ts int64
	if !res.Timestamp.IsZero() {
		ts = res.Timestamp.UnixNano()
	}
	d := res.Deviation
	_, err := r.db.Exec(`
		INSERT OR REPLACE INTO guidance_records (
			session_id, frame_seq, item_id, ts_unix_nanos, state,
			has_deviation, stale, dx, dy, dscale, drotation_deg,
			misses, directive, directive_text, confidence
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.SessionID, int64(res.FrameSeq), string(res.ItemID), ts, string(res.State),
		boolInt(res.HasDeviation), boolInt(res.Stale), d.DX, d.DY, d.DScale, d.DRotationDeg,
		res.Misses, string(res.Primary.Kind), res.Primary.Text, conf,
	)
	if err != nil {
		return fmt.Errorf("record guidance for session %s frame %d: %w", res.SessionID, res.FrameSeq, err)
	}
	return nil
}

// SessionSummary describes one recorded session.
type SessionSummary struct {
	SessionID  string           `json:"session_id"`
	ItemID     l3layout.ItemID  `json:"item_id"`
	Frames     int              `json:"frames"`
	FirstAt    time.Time        `json:"first_at"`
	LastAt     time.Time        `json:"last_at"`
	FinalState l5guidance.State `json:"final_state"`
}

// LoadSession returns the recorded results of a session in frame order.
// Observed and mapped poses are not stored; Observed carries only the
// confidence when one was recorded.
func (db *DB) LoadSession(sessionID string) ([]l5guidance.GuidanceResult, error) {
	rows, err := db.Query(`
		SELECT frame_seq, item_id, ts_unix_nanos, state, has_deviation, stale,
		       dx, dy, dscale, drotation_deg, misses, directive, directive_text, confidence
		FROM guidance_records WHERE session_id = ? ORDER BY frame_seq`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []l5guidance.GuidanceResult
	for rows.Next() {
		var (
			res           l5guidance.GuidanceResult
			seq, ts       int64
			item, state   string
			hasDev, stale int
			kind          string
			conf          sql.NullFloat64
		)
		d := &res.Deviation
		if err := rows.Scan(&seq, &item, &ts, &state, &hasDev, &stale,
			&d.DX, &d.DY, &d.DScale, &d.DRotationDeg, &res.Misses, &kind, &res.Primary.Text, &conf); err != nil {
			return nil, err
		}
		res.SessionID = sessionID
		res.FrameSeq = uint64(seq)
		res.ItemID = l3layout.ItemID(item)
		if ts != 0 {
			res.Timestamp = time.Unix(0, ts)
		}
		res.State = l5guidance.State(state)
		res.HasDeviation = hasDev != 0
		res.Stale = stale != 0
		res.Primary.Kind = l5guidance.DirectiveKind(kind)
		if conf.Valid {
			res.Observed = &l4pose.ObservedPose{Confidence: conf.Float64}
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	return out, nil
}

// ListSessions summarises every recorded session, most recent first.
func (db *DB) ListSessions() ([]SessionSummary, error) {
	rows, err := db.Query(`
		SELECT g.session_id, g.item_id, COUNT(*), MIN(g.ts_unix_nanos), MAX(g.ts_unix_nanos),
		       (SELECT state FROM guidance_records f
		        WHERE f.session_id = g.session_id ORDER BY f.frame_seq DESC LIMIT 1)
		FROM guidance_records g
		GROUP BY g.session_id
		ORDER BY MAX(g.ts_unix_nanos) DESC, g.session_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var s SessionSummary
		var item, state string
		var first, last int64
		if err := rows.Scan(&s.SessionID, &item, &s.Frames, &first, &last, &state); err != nil {
			return nil, err
		}
		s.ItemID = l3layout.ItemID(item)
		s.FirstAt, s.LastAt = time.Unix(0, first), time.Unix(0, last)
		s.FinalState = l5guidance.State(state)
		out = append(out, s)
	}
	return out, rows.Err()
}
