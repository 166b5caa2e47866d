package store

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"kpiload/models"
)

var ErrNoRuns = errors.New("no ingest runs recorded")

func (s *Store) RecordRun(ctx context.Context, run *models.IngestRun) error {
	return errors.Wrap(s.db.WithContext(ctx).Create(run).Error, "record ingest run")
}

func (s *Store) LatestRun(ctx context.Context) (models.IngestRun, error) {
	var run models.IngestRun
	err := s.db.WithContext(ctx).Order("started_at DESC").First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return run, ErrNoRuns
	}
	return run, errors.Wrap(err, "read latest ingest run")
}
