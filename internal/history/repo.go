package history

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/starford/specmon/internal/apperr"
	"github.com/starford/specmon/internal/models"
)

// Row is one recorded render.
type Row struct {
	Session    string           `json:"session"`
	Seq        uint64           `json:"seq"`
	Tick       uint64           `json:"tick"`
	Mode       string           `json:"mode"`
	Width      int              `json:"width"`
	Height     int              `json:"height"`
	FrameSeq   uint64           `json:"frame_seq"`
	Checksum   string           `json:"checksum"`
	Gain       float64          `json:"gain"`
	Offset     float64          `json:"offset"`
	Low        float64          `json:"low"`
	High       float64          `json:"high"`
	Degenerate bool             `json:"degenerate"`
	Histogram  models.Histogram `json:"histogram"`
	RenderedAt time.Time        `json:"rendered_at"`
}

// Store defines the history operations consumers depend on.
type Store interface {
	Insert(r Row) error
	Recent(session string, limit int) ([]Row, error)
	Get(session string, seq uint64) (*Row, error)
	Prune(keep int) (int64, error)
	Count() (int, error)
	Close() error
}

var _ Store = (*DB)(nil)

const columns = `session, seq, tick, mode, width, height, frame_seq, checksum,
	param_gain, param_offset, low, high, degenerate, histogram, rendered_at`

// Insert stores r. Re-inserting the same (session, seq) replaces the row.
func (db *DB) Insert(r Row) error {
	hist, err := json.Marshal(r.Histogram)
	if err != nil {
		return fmt.Errorf("history: encode histogram: %w", err)
	}
	_, err = db.conn.Exec(`
		INSERT INTO renders (`+columns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session, seq) DO UPDATE SET
			tick         = excluded.tick,
			mode         = excluded.mode,
			width        = excluded.width,
			height       = excluded.height,
			frame_seq    = excluded.frame_seq,
			checksum     = excluded.checksum,
			param_gain   = excluded.param_gain,
			param_offset = excluded.param_offset,
			low          = excluded.low,
			high         = excluded.high,
			degenerate   = excluded.degenerate,
			histogram    = excluded.histogram,
			rendered_at  = excluded.rendered_at
	`, r.Session, int64(r.Seq), int64(r.Tick), r.Mode, r.Width, r.Height, int64(r.FrameSeq), r.Checksum,
		finite(r.Gain), finite(r.Offset), finite(r.Low), finite(r.High), r.Degenerate, string(hist), r.RenderedAt.UTC())
	if err != nil {
		return fmt.Errorf("history: insert: %w", err)
	}
	return nil
}

// Recent returns up to limit rows, newest first. An empty session returns
// rows from every session.
func (db *DB) Recent(session string, limit int) ([]Row, error) {
	if limit <= 0 {
		limit = 50
	}
	var (
		rows *sql.Rows
		err  error
	)
	if session == "" {
		rows, err = db.conn.Query(`SELECT `+columns+` FROM renders ORDER BY id DESC LIMIT ?`, limit)
	} else {
		rows, err = db.conn.Query(`SELECT `+columns+` FROM renders WHERE session = ? ORDER BY id DESC LIMIT ?`, session, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("history: recent: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// Get returns one row or an error wrapping apperr.ErrNotFound.
func (db *DB) Get(session string, seq uint64) (*Row, error) {
	row := db.conn.QueryRow(`SELECT `+columns+` FROM renders WHERE session = ? AND seq = ?`, session, int64(seq))
	r, err := scanRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("history: seq %d: %w", seq, apperr.ErrNotFound)
	}
	return r, err
}

// Prune keeps the newest keep rows and deletes the rest. It returns the
// number of deleted rows.
func (db *DB) Prune(keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	res, err := db.conn.Exec(`
		DELETE FROM renders WHERE id NOT IN (
			SELECT id FROM renders ORDER BY id DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("history: prune: %w", err)
	}
	return res.RowsAffected()
}

// Count returns the number of stored rows.
func (db *DB) Count() (int, error) {
	var n int
	if err := db.conn.QueryRow(`SELECT count(*) FROM renders`).Scan(&n); err != nil {
		return 0, fmt.Errorf("history: count: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRow(s scanner) (*Row, error) {
	var (
		r                   Row
		seq, tick, frameSeq int64
		hist                string
	)
	err := s.Scan(&r.Session, &seq, &tick, &r.Mode, &r.Width, &r.Height, &frameSeq, &r.Checksum,
		&r.Gain, &r.Offset, &r.Low, &r.High, &r.Degenerate, &hist, &r.RenderedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("history: scan: %w", err)
	}
	r.Seq, r.Tick, r.FrameSeq = uint64(seq), uint64(tick), uint64(frameSeq)
	if err := json.Unmarshal([]byte(hist), &r.Histogram); err != nil {
		return nil, fmt.Errorf("history: decode histogram: %w", err)
	}
	return &r, nil
}

// finite stores NaN and ±Inf as 0; SQLite has no NaN.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
