// Package riskstate persists the risk engine's session state to SQLite so a
// halt survives a process restart.
package riskstate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"tradeguard/internal/domain"
)

type riskStateModel struct {
	ID                 string    `gorm:"column:id;primaryKey"`
	SessionStartEquity string    `gorm:"column:session_start_equity"`
	DailyStartEquity   string    `gorm:"column:daily_start_equity"`
	HighWaterMark      string    `gorm:"column:high_water_mark"`
	ConsecutiveLosses  int       `gorm:"column:consecutive_losses"`
	ReferenceDate      time.Time `gorm:"column:reference_date"`
	Halted             bool      `gorm:"column:halted"`
	HaltReason         string    `gorm:"column:halt_reason"`
	HaltedAt           time.Time `gorm:"column:halted_at"`
	UpdatedAt          time.Time `gorm:"column:updated_at"`
}

func (riskStateModel) TableName() string { return "risk_states" }

type Store struct {
	db *gorm.DB
}

func NewStore(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	return NewStoreFromDB(db)
}

func NewStoreFromDB(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm db cannot be nil")
	}
	if err := db.AutoMigrate(&riskStateModel{}); err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(2)
		sqlDB.SetMaxIdleConns(2)
	}
	return &Store{db: db}, nil
}

// Save upserts the state row keyed by ID.
func (s *Store) Save(ctx context.Context, state domain.RiskState) error {
	m := toModel(state)
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(&m).Error
}

// Load returns the stored state, or (zero, false, nil) if none exists yet.
func (s *Store) Load(ctx context.Context, id string) (domain.RiskState, bool, error) {
	var m riskStateModel
	err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return domain.RiskState{}, false, nil
	}
	if err != nil {
		return domain.RiskState{}, false, err
	}
	state, err := fromModel(m)
	if err != nil {
		return domain.RiskState{}, false, err
	}
	return state, true, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toModel(state domain.RiskState) riskStateModel {
	return riskStateModel{
		ID:                 state.ID,
		SessionStartEquity: state.SessionStartEquity.String(),
		DailyStartEquity:   state.DailyStartEquity.String(),
		HighWaterMark:      state.HighWaterMark.String(),
		ConsecutiveLosses:  state.ConsecutiveLosses,
		ReferenceDate:      state.ReferenceDate,
		Halted:             state.Halted,
		HaltReason:         state.HaltReason,
		HaltedAt:           state.HaltedAt,
		UpdatedAt:          state.UpdatedAt,
	}
}

func fromModel(m riskStateModel) (domain.RiskState, error) {
	session, err := decimal.NewFromString(m.SessionStartEquity)
	if err != nil {
		return domain.RiskState{}, fmt.Errorf("bad session_start_equity %q: %w", m.SessionStartEquity, err)
	}
	daily, err := decimal.NewFromString(m.DailyStartEquity)
	if err != nil {
		return domain.RiskState{}, fmt.Errorf("bad daily_start_equity %q: %w", m.DailyStartEquity, err)
	}
	hwm, err := decimal.NewFromString(m.HighWaterMark)
	if err != nil {
		return domain.RiskState{}, fmt.Errorf("bad high_water_mark %q: %w", m.HighWaterMark, err)
	}
	return domain.RiskState{
		ID:                 m.ID,
		SessionStartEquity: session,
		DailyStartEquity:   daily,
		HighWaterMark:      hwm,
		ConsecutiveLosses:  m.ConsecutiveLosses,
		ReferenceDate:      m.ReferenceDate,
		Halted:             m.Halted,
		HaltReason:         m.HaltReason,
		HaltedAt:           m.HaltedAt,
		UpdatedAt:          m.UpdatedAt,
	}, nil
}
