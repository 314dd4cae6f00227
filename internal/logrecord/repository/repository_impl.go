package repository

import (
	"context"

	logdomain "github.com/smallbiznis/lognest/internal/logrecord/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() logdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, record *logdomain.LogRecord) error {
	return db.WithContext(ctx).Create(record).Error
}

func (r *repo) DistinctLevels(ctx context.Context, db *gorm.DB, tenantKey string) ([]string, error) {
	var levels []string
	err := db.WithContext(ctx).Raw(
		`SELECT DISTINCT level FROM log_records WHERE tenant_key = ? ORDER BY level ASC`,
		tenantKey,
	).Scan(&levels).Error
	if err != nil {
		return nil, err
	}
	return levels, nil
}

func (r *repo) LatestPerService(ctx context.Context, db *gorm.DB, tenantKey string) ([]logdomain.ServiceAlert, error) {
	var alerts []logdomain.ServiceAlert
	err := db.WithContext(ctx).Raw(
		`SELECT l.app, l.service, l.url, l.message, l.level, l.timestamp
		 FROM log_records l
		 JOIN (
			SELECT app, service, MAX(timestamp) AS max_ts
			FROM log_records
			WHERE tenant_key = ?
			GROUP BY app, service
		 ) latest
		   ON l.app = latest.app AND l.service = latest.service AND l.timestamp = latest.max_ts
		 WHERE l.tenant_key = ?
		 ORDER BY l.timestamp DESC`,
		tenantKey,
		tenantKey,
	).Scan(&alerts).Error
	if err != nil {
		return nil, err
	}
	return alerts, nil
}
