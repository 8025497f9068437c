// Package historydb optionally persists past orchestrator Reports to a
// relational store (rtx report --history-db), so a caller can later ask
// "did this dependency's verdict change between runs". Grounded on
// pkg/db/common/rdb/rdb.go's Config{Type,Path} + switch-on-driver Open,
// generalized from a hand-rolled vulnerability schema to a gorm.AutoMigrate
// one since this package owns simple, fully-specified tables rather than
// the teacher's external OVAL-derived schema.
package historydb

import (
	"encoding/json"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/pkg/errors"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/afadesigns/rtx/internal/trust"
)

// Config selects the backing relational driver and its DSN/path.
type Config struct {
	Driver string // "sqlite", "mysql", or "postgres"
	DSN    string
}

// RunRecord is one stored orchestrator run.
type RunRecord struct {
	RunID         string `gorm:"primaryKey"`
	SchemaVersion int
	GeneratedAt   time.Time `gorm:"index"`
	ExitCode      int
	SummaryJSON   string
}

// VerdictRecord is one dependency's verdict within a stored run.
type VerdictRecord struct {
	ID         uint   `gorm:"primaryKey"`
	RunID      string `gorm:"index"`
	Ecosystem  string `gorm:"index:idx_dep"`
	Name       string `gorm:"index:idx_dep"`
	Version    string
	Severity   string `gorm:"index"`
	ReasonJSON string
}

// Store wraps a gorm.DB connection opened against one of the supported
// drivers.
type Store struct {
	db *gorm.DB
}

// Open connects to the configured driver and migrates the schema.
func Open(cfg Config) (*Store, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite", "":
		dialector = sqlite.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, errors.Errorf("historydb: unsupported driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, errors.Wrap(err, "historydb: open")
	}
	if err := db.AutoMigrate(&RunRecord{}, &VerdictRecord{}); err != nil {
		return nil, errors.Wrap(err, "historydb: migrate")
	}
	return &Store{db: db}, nil
}

// Close releases the underlying *sql.DB connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return errors.Wrap(err, "historydb: get *sql.DB")
	}
	return sqlDB.Close()
}

// SaveReport persists a completed Report as one RunRecord plus one
// VerdictRecord per dependency.
func (s *Store) SaveReport(report trust.Report) error {
	summary, err := json.Marshal(report.Summary)
	if err != nil {
		return errors.Wrap(err, "historydb: marshal summary")
	}

	run := RunRecord{
		RunID:         report.RunID,
		SchemaVersion: report.SchemaVersion,
		GeneratedAt:   report.GeneratedAt,
		ExitCode:      report.ExitCode,
		SummaryJSON:   string(summary),
	}

	verdicts := make([]VerdictRecord, 0, len(report.Verdicts))
	for _, dv := range report.Verdicts {
		reasons, err := json.Marshal(dv.Verdict.Reasons)
		if err != nil {
			return errors.Wrap(err, "historydb: marshal reasons")
		}
		verdicts = append(verdicts, VerdictRecord{
			RunID:      report.RunID,
			Ecosystem:  dv.Dependency.Ecosystem,
			Name:       dv.Dependency.Name,
			Version:    dv.Dependency.Version,
			Severity:   dv.Verdict.Severity.String(),
			ReasonJSON: string(reasons),
		})
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&run).Error; err != nil {
			return errors.Wrap(err, "historydb: insert run")
		}
		if len(verdicts) == 0 {
			return nil
		}
		if err := tx.Create(&verdicts).Error; err != nil {
			return errors.Wrap(err, "historydb: insert verdicts")
		}
		return nil
	})
}

// RunHistory is one past run's summary, without its full verdict list.
type RunHistory struct {
	RunID         string
	GeneratedAt   time.Time
	ExitCode      int
	SeverityCount map[string]int
}

// HistoryForDependency returns every stored verdict recorded for
// (ecosystem, name), most recent run first.
func (s *Store) HistoryForDependency(ecosystem, name string) ([]VerdictRecord, error) {
	var rows []VerdictRecord
	err := s.db.
		Joins("JOIN run_records ON run_records.run_id = verdict_records.run_id").
		Where("verdict_records.ecosystem = ? AND verdict_records.name = ?", ecosystem, name).
		Order("run_records.generated_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "historydb: query dependency history")
	}
	return rows, nil
}

// RecentRuns returns the limit most recent stored runs, newest first.
func (s *Store) RecentRuns(limit int) ([]RunRecord, error) {
	var rows []RunRecord
	err := s.db.Order("generated_at DESC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "historydb: query recent runs")
	}
	return rows, nil
}
