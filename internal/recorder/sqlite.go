package recorder

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"CDPShield/internal/model"
)

// SQLiteRecorder persists history to a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	log zerolog.Logger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, log zerolog.Logger) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets dashboards read while the service writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, log: log.With().Str("component", "recorder").Logger()}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	r.log.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS analyses (
			id                   INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id              TEXT NOT NULL,
			analyzed_at          INTEGER NOT NULL,
			overall              INTEGER,
			risk                 INTEGER,
			efficiency           INTEGER,
			diversification      INTEGER,
			level                TEXT,
			total_value          REAL,
			recommendation_count INTEGER,
			recommendations      TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_analyses_user_ts ON analyses(user_id, analyzed_at)`,

		`CREATE TABLE IF NOT EXISTS alerts (
			id            TEXT PRIMARY KEY,
			position_id   TEXT NOT NULL,
			protocol      TEXT,
			level         TEXT,
			health_factor REAL,
			message       TEXT,
			timestamp     INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_ts ON alerts(timestamp)`,

		`CREATE TABLE IF NOT EXISTS dismissals (
			alert_id     TEXT PRIMARY KEY,
			dismissed_at INTEGER NOT NULL
		)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordAnalysis(ctx context.Context, userID string, res *model.AnalysisResult) error {
	ids := make([]string, len(res.Recommendations))
	for i, rec := range res.Recommendations {
		ids[i] = rec.ID
	}
	recs, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("marshal recommendation ids: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	hs := res.HealthScore
	_, err = r.db.ExecContext(ctx, `INSERT INTO analyses
		(user_id, analyzed_at, overall, risk, efficiency, diversification, level,
		 total_value, recommendation_count, recommendations)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		userID, res.Metadata.AnalyzedAt.UnixMilli(), hs.Overall,
		hs.Breakdown.Risk, hs.Breakdown.Efficiency, hs.Breakdown.Diversification,
		string(hs.Level), res.Insights.TotalValue, len(ids), string(recs),
	)
	return err
}

func (r *SQLiteRecorder) RecordAlert(ctx context.Context, a model.VoiceAlert) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx, `INSERT OR REPLACE INTO alerts
		(id, position_id, protocol, level, health_factor, message, timestamp)
		VALUES (?,?,?,?,?,?,?)`,
		a.ID, a.PositionID, a.Protocol, string(a.Level), a.HealthFactor, a.Message, a.Timestamp.UnixMilli(),
	)
	return err
}

func (r *SQLiteRecorder) RecordDismiss(ctx context.Context, alertID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx, `INSERT OR IGNORE INTO dismissals (alert_id, dismissed_at) VALUES (?,?)`,
		alertID, at.UnixMilli())
	return err
}

// RecentAnalyses returns up to limit analyses for userID, newest first.
func (r *SQLiteRecorder) RecentAnalyses(ctx context.Context, userID string, limit int) ([]AnalysisRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT user_id, analyzed_at, overall, risk, efficiency,
		diversification, level, total_value, recommendation_count, recommendations
		FROM analyses WHERE user_id = ? ORDER BY analyzed_at DESC, id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query analyses: %w", err)
	}
	defer rows.Close()

	var out []AnalysisRecord
	for rows.Next() {
		var (
			rec  AnalysisRecord
			ts   int64
			recs string
		)
		if err := rows.Scan(&rec.UserID, &ts, &rec.Overall, &rec.Risk, &rec.Efficiency,
			&rec.Diversification, &rec.Level, &rec.TotalValue, &rec.RecommendationCount, &recs); err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		rec.AnalyzedAt = time.UnixMilli(ts).UTC()
		if err := json.Unmarshal([]byte(recs), &rec.Recommendations); err != nil {
			return nil, fmt.Errorf("decode recommendation ids: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// RecentAlerts returns up to limit alerts, newest first.
func (r *SQLiteRecorder) RecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT a.id, a.position_id, a.protocol, a.level, a.health_factor,
		a.message, a.timestamp, d.dismissed_at
		FROM alerts a LEFT JOIN dismissals d ON d.alert_id = a.id
		ORDER BY a.timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var out []AlertRecord
	for rows.Next() {
		var (
			rec       AlertRecord
			level     string
			ts        int64
			dismissed sql.NullInt64
		)
		if err := rows.Scan(&rec.ID, &rec.PositionID, &rec.Protocol, &level, &rec.HealthFactor,
			&rec.Message, &ts, &dismissed); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		rec.Level = model.AlertLevel(level)
		rec.Timestamp = time.UnixMilli(ts).UTC()
		if dismissed.Valid {
			at := time.UnixMilli(dismissed.Int64).UTC()
			rec.Dismissed = true
			rec.DismissedAt = &at
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	r.log.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}
