// Package engagement records views and likes on posts and projects.
package engagement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ticsummit/ticsite/common/dbutil"
	"github.com/ticsummit/ticsite/pkg/errors"
	"github.com/ticsummit/ticsite/pkg/metrics"
	"github.com/ticsummit/ticsite/pkg/models"
)

// Target names a content type that carries counters.
type Target string

const (
	TargetPost    Target = "post"
	TargetProject Target = "project"
)

var targetTables = map[Target]string{
	TargetPost:    "blog_posts",
	TargetProject: "projects",
}

// Targets lists every countable content type.
func Targets() []Target { return []Target{TargetPost, TargetProject} }

// ParseTarget validates a target name.
func ParseTarget(s string) (Target, error) {
	t := Target(s)
	if _, ok := targetTables[t]; !ok {
		return "", errors.Invalid.Explain("unknown engagement target %q", s)
	}
	return t, nil
}

func (t Target) table() string { return targetTables[t] }

// Counts is the engagement state of one item as seen by one visitor.
type Counts struct {
	Views int64 `json:"views"`
	Likes int64 `json:"likes"`
	Liked bool  `json:"liked"`
}

type ViewResult struct {
	Views   int64 `json:"views"`
	Counted bool  `json:"counted"`
}

type ReconcileReport struct {
	Fixed map[Target]int64 `json:"fixed"`
}

// Service keeps counters consistent with the view and like rows.
type Service struct {
	db     *gorm.DB
	redis  *redis.Client
	window time.Duration
	log    *zap.Logger
	now    func() time.Time
}

// NewService creates the engagement service. rdb may be nil.
func NewService(db *gorm.DB, rdb *redis.Client, window time.Duration, log *zap.Logger) *Service {
	return &Service{db: db, redis: rdb, window: window, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// RecordView counts a view unless ip already viewed the item within the
// dedupe window.
func (s *Service) RecordView(ctx context.Context, target Target, id uuid.UUID, ip, userAgent string) (ViewResult, error) {
	if _, err := ParseTarget(string(target)); err != nil {
		return ViewResult{}, err
	}
	if s.seenRecently(ctx, target, id, ip) {
		metrics.ViewsDeduplicated.WithLabelValues(string(target), "redis").Inc()
		counters, err := s.counters(s.db.WithContext(ctx), target, id)
		return ViewResult{Views: counters.ViewCount}, err
	}

	var res ViewResult
	now := s.now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.counters(tx, target, id); err != nil {
			return err
		}

		var recent int64
		err := tx.Model(&models.View{}).
			Where("target_type = ? AND target_id = ? AND ip_address = ? AND created_at > ?", string(target), id, ip, now.Add(-s.window)).
			Count(&recent).Error
		if err != nil {
			return dbutil.WrapError(err)
		}

		if recent == 0 {
			view := &models.View{TargetType: string(target), TargetID: id, IPAddress: ip, UserAgent: dbutil.Truncate(userAgent, 255), CreatedAt: now}
			if err := tx.Create(view).Error; err != nil {
				return dbutil.WrapError(err)
			}
			if err := s.bump(tx, target, id, "view_count", 1); err != nil {
				return err
			}
			res.Counted = true
		}

		counters, err := s.counters(tx, target, id)
		res.Views = counters.ViewCount
		return err
	})
	if err != nil {
		s.forgetView(ctx, target, id, ip)
		return ViewResult{}, err
	}

	if res.Counted {
		metrics.ViewsRecorded.WithLabelValues(string(target)).Inc()
	} else {
		metrics.ViewsDeduplicated.WithLabelValues(string(target), "sql").Inc()
	}
	return res, nil
}

// Like records that ip likes the item. Liking twice is a no-op.
func (s *Service) Like(ctx context.Context, target Target, id uuid.UUID, ip string) (Counts, error) {
	if _, err := ParseTarget(string(target)); err != nil {
		return Counts{}, err
	}
	var out Counts
	added := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.counters(tx, target, id); err != nil {
			return err
		}
		like := &models.Like{TargetType: string(target), TargetID: id, IPAddress: ip, CreatedAt: s.now()}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(like)
		if res.Error != nil {
			return dbutil.WrapError(res.Error)
		}
		if res.RowsAffected > 0 {
			added = true
			if err := s.bump(tx, target, id, "like_count", 1); err != nil {
				return err
			}
		}
		var err error
		out, err = s.status(tx, target, id, ip)
		return err
	})
	if err == nil && added {
		metrics.Likes.WithLabelValues(string(target), "like").Inc()
	}
	return out, err
}

// Unlike removes the like of ip. Unliking an item that is not liked is a no-op.
func (s *Service) Unlike(ctx context.Context, target Target, id uuid.UUID, ip string) (Counts, error) {
	if _, err := ParseTarget(string(target)); err != nil {
		return Counts{}, err
	}
	var out Counts
	removed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.counters(tx, target, id); err != nil {
			return err
		}
		res := tx.Where("target_type = ? AND target_id = ? AND ip_address = ?", string(target), id, ip).Delete(&models.Like{})
		if res.Error != nil {
			return dbutil.WrapError(res.Error)
		}
		if res.RowsAffected > 0 {
			removed = true
			if err := s.bump(tx, target, id, "like_count", -1); err != nil {
				return err
			}
		}
		var err error
		out, err = s.status(tx, target, id, ip)
		return err
	})
	if err == nil && removed {
		metrics.Likes.WithLabelValues(string(target), "unlike").Inc()
	}
	return out, err
}

// Status returns the counters of the item and whether ip likes it.
func (s *Service) Status(ctx context.Context, target Target, id uuid.UUID, ip string) (Counts, error) {
	if _, err := ParseTarget(string(target)); err != nil {
		return Counts{}, err
	}
	return s.status(s.db.WithContext(ctx), target, id, ip)
}

// Reconcile recomputes every counter from the view and like rows and fixes
// the rows that drifted.
func (s *Service) Reconcile(ctx context.Context) (ReconcileReport, error) {
	report := ReconcileReport{Fixed: make(map[Target]int64, len(targetTables))}
	for _, target := range Targets() {
		table := target.table()
		views := fmt.Sprintf("(SELECT COUNT(*) FROM views WHERE views.target_type = @target AND views.target_id = %s.id)", table)
		likes := fmt.Sprintf("(SELECT COUNT(*) FROM likes WHERE likes.target_type = @target AND likes.target_id = %s.id)", table)
		stmt := fmt.Sprintf("UPDATE %s SET view_count = %s, like_count = %s WHERE view_count <> %s OR like_count <> %s",
			table, views, likes, views, likes)

		res := s.db.WithContext(ctx).Exec(stmt, map[string]interface{}{"target": string(target)})
		if res.Error != nil {
			return report, fmt.Errorf("failed to reconcile %s counters: %w", target, res.Error)
		}
		report.Fixed[target] = res.RowsAffected
		if res.RowsAffected > 0 {
			metrics.CountersReconciled.WithLabelValues(string(target)).Add(float64(res.RowsAffected))
			s.log.Info("reconciled counters", zap.String("target", string(target)), zap.Int64("rows", res.RowsAffected))
		}
	}
	return report, nil
}

func (s *Service) status(tx *gorm.DB, target Target, id uuid.UUID, ip string) (Counts, error) {
	counters, err := s.counters(tx, target, id)
	if err != nil {
		return Counts{}, err
	}
	var liked int64
	err = tx.Model(&models.Like{}).
		Where("target_type = ? AND target_id = ? AND ip_address = ?", string(target), id, ip).
		Count(&liked).Error
	if err != nil {
		return Counts{}, dbutil.WrapError(err)
	}
	return Counts{Views: counters.ViewCount, Likes: counters.LikeCount, Liked: liked > 0}, nil
}

func (s *Service) counters(tx *gorm.DB, target Target, id uuid.UUID) (models.Counters, error) {
	var c models.Counters
	res := tx.Table(target.table()).Select("view_count", "like_count").Where("id = ?", id).Limit(1).Scan(&c)
	if res.Error != nil {
		return c, dbutil.WrapError(res.Error)
	}
	if res.RowsAffected == 0 {
		return c, errors.NotFound.Explain("%s %s not found", target, id)
	}
	return c, nil
}

// bump adds delta to column. Counters never go below zero.
func (s *Service) bump(tx *gorm.DB, target Target, id uuid.UUID, column string, delta int) error {
	expr := gorm.Expr(column+" + ?", delta)
	if delta < 0 {
		expr = gorm.Expr("CASE WHEN "+column+" + ? < 0 THEN 0 ELSE "+column+" + ? END", delta, delta)
	}
	err := tx.Table(target.table()).Where("id = ?", id).UpdateColumn(column, expr).Error
	return dbutil.WrapError(err)
}

// seenRecently claims the view in Redis. It reports true only when Redis is
// configured and the key already existed.
func (s *Service) seenRecently(ctx context.Context, target Target, id uuid.UUID, ip string) bool {
	if s.redis == nil {
		return false
	}
	ok, err := s.redis.SetNX(ctx, viewKey(target, id, ip), 1, s.window).Result()
	if err != nil {
		s.log.Warn("view dedupe cache unavailable", zap.Error(err))
		return false
	}
	return !ok
}

// forgetView releases a claim made by seenRecently for a view that was
// not stored.
func (s *Service) forgetView(ctx context.Context, target Target, id uuid.UUID, ip string) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, viewKey(target, id, ip)).Err(); err != nil {
		s.log.Warn("failed to release view dedupe key", zap.Error(err))
	}
}

func viewKey(target Target, id uuid.UUID, ip string) string {
	return fmt.Sprintf("views:%s:%s:%s", target, id, ip)
}
