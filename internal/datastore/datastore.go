// Package datastore persists completed pipeline runs to SQLite through GORM.
package datastore

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nicheflow/nicheflow/internal/conf"
	"github.com/nicheflow/nicheflow/internal/errors"
)

// Interface abstracts the underlying database implementation.
type Interface interface {
	Open() error
	Save(run *PipelineRun) error
	Get(id string) (*PipelineRun, error)
	List(limit int) ([]PipelineRun, error)
	Close() error
}

// Store implements Interface using a GORM SQLite database.
type Store struct {
	path  string
	debug bool
	db    *gorm.DB
}

// New creates a store for the configured database path. Open must be called
// before any other operation.
func New(settings *conf.Settings) *Store {
	return &Store{
		path:  settings.Datastore.Path,
		debug: settings.Debug,
	}
}

// Open connects to the SQLite database and migrates the schema.
func (s *Store) Open() error {
	logLevel := logger.Silent
	if s.debug {
		logLevel = logger.Info
	}

	db, err := gorm.Open(sqlite.Open(s.path), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return dbErr("open", err)
	}

	if err := db.AutoMigrate(&PipelineRun{}); err != nil {
		return dbErr("migrate", err)
	}

	s.db = db
	return nil
}

// Save inserts a run record, assigning a fresh UUID when the record carries
// none.
func (s *Store) Save(run *PipelineRun) error {
	if s.db == nil {
		return notOpen()
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CompletedAt.IsZero() {
		run.CompletedAt = time.Now()
	}
	if err := s.db.Create(run).Error; err != nil {
		return dbErr("save", err)
	}
	return nil
}

// Get returns the run with the given ID.
func (s *Store) Get(id string) (*PipelineRun, error) {
	if s.db == nil {
		return nil, notOpen()
	}
	var run PipelineRun
	if err := s.db.First(&run, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Newf("run %s not found", id).
				Component("datastore").
				Category(errors.CategoryNotFound).
				Build()
		}
		return nil, dbErr("get", err)
	}
	return &run, nil
}

// List returns the most recent runs, newest first. A non-positive limit
// returns all runs.
func (s *Store) List(limit int) ([]PipelineRun, error) {
	if s.db == nil {
		return nil, notOpen()
	}
	var runs []PipelineRun
	q := s.db.Order("started_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&runs).Error; err != nil {
		return nil, dbErr("list", err)
	}
	return runs, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return dbErr("close", err)
	}
	s.db = nil
	return sqlDB.Close()
}

func notOpen() error {
	return errors.Newf("datastore is not open").
		Component("datastore").
		Category(errors.CategoryDatastore).
		Build()
}

func dbErr(op string, err error) error {
	return errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatastore).
		Context("operation", op).
		Build()
}
