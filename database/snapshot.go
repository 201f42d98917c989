package database

import (
	"fmt"
	"time"

	"jichitai/model"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS export_runs (
	run_id      TEXT PRIMARY KEY,
	exported_at TEXT NOT NULL,
	row_count   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS municipality_snapshot (
	run_id                      TEXT NOT NULL REFERENCES export_runs(run_id),
	jichitai_code               TEXT NOT NULL,
	jichitai_name               TEXT,
	prefecture                  TEXT,
	jichitai_type               TEXT,
	population_total            INTEGER,
	population_male             INTEGER,
	population_female           INTEGER,
	households                  INTEGER,
	financial_capability_index  REAL,
	current_balance_ratio       REAL,
	real_debt_service_ratio     REAL,
	future_burden_ratio         REAL,
	laspeyres_index             REAL,
	mynumber_card_issuance_rate REAL,
	youth_ratio                 REAL,
	working_age_ratio           REAL,
	elderly_ratio               REAL,
	PRIMARY KEY (run_id, jichitai_code)
);
`

// ExportRun はスナップショット書き出し1回分の記録です。
type ExportRun struct {
	RunID      string `db:"run_id" json:"run_id"`
	ExportedAt string `db:"exported_at" json:"exported_at"`
	RowCount   int    `db:"row_count" json:"row_count"`
}

// Open は SQLite ファイルを開き、スキーマを適用します。
func Open(path string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply snapshot schema: %w", err)
	}
	return db, nil
}

// WriteSnapshot はエクスポート行を1トランザクションで書き込み、実行IDを返します。
func WriteSnapshot(db *sqlx.DB, rows []model.ExportRow, logger *zap.Logger) (runID string, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	tx, err := db.Beginx()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			logger.Warn("rolling back snapshot", zap.Error(err))
			tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	runID = uuid.NewString()
	const runQuery = `INSERT INTO export_runs (run_id, exported_at, row_count) VALUES (?, ?, ?)`
	if _, err = tx.Exec(runQuery, runID, time.Now().Format(time.RFC3339), len(rows)); err != nil {
		return "", fmt.Errorf("failed to insert export run: %w", err)
	}

	const rowQuery = `
		INSERT INTO municipality_snapshot (
			run_id, jichitai_code, jichitai_name, prefecture, jichitai_type,
			population_total, population_male, population_female, households,
			financial_capability_index, current_balance_ratio, real_debt_service_ratio,
			future_burden_ratio, laspeyres_index, mynumber_card_issuance_rate,
			youth_ratio, working_age_ratio, elderly_ratio
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	stmt, err := tx.Preparex(rowQuery)
	if err != nil {
		return "", fmt.Errorf("failed to prepare snapshot insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err = stmt.Exec(runID, r.JichitaiCode, r.JichitaiName, r.Prefecture, r.JichitaiType,
			r.PopulationTotal, r.PopulationMale, r.PopulationFemale, r.Households,
			r.FinancialCapabilityIndex, r.CurrentBalanceRatio, r.RealDebtServiceRatio,
			r.FutureBurdenRatio, r.LaspeyresIndex, r.MyNumberIssuanceRate,
			r.YouthRatio, r.WorkingAgeRatio, r.ElderlyRatio); err != nil {
			return "", fmt.Errorf("failed to insert snapshot row %s: %w", r.JichitaiCode, err)
		}
	}
	logger.Info("snapshot written", zap.String("run_id", runID), zap.Int("rows", len(rows)))
	return runID, nil
}

// GetExportRuns は書き出し履歴を新しい順に返します。
func GetExportRuns(db *sqlx.DB) ([]ExportRun, error) {
	var runs []ExportRun
	err := db.Select(&runs, "SELECT run_id, exported_at, row_count FROM export_runs ORDER BY exported_at DESC, rowid DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to get export runs: %w", err)
	}
	return runs, nil
}

// GetSnapshotRows は指定した実行IDの行を団体コード順に返します。
func GetSnapshotRows(db *sqlx.DB, runID string) ([]model.ExportRow, error) {
	var rows []model.ExportRow
	const q = `
		SELECT jichitai_code, jichitai_name, prefecture, jichitai_type,
			population_total, population_male, population_female, households,
			financial_capability_index, current_balance_ratio, real_debt_service_ratio,
			future_burden_ratio, laspeyres_index, mynumber_card_issuance_rate,
			youth_ratio, working_age_ratio, elderly_ratio
		FROM municipality_snapshot WHERE run_id = ? ORDER BY jichitai_code`
	if err := db.Select(&rows, q, runID); err != nil {
		return nil, fmt.Errorf("failed to get snapshot rows for %s: %w", runID, err)
	}
	return rows, nil
}
