// Package content implements the CRUD layer shared by every content type.
package content

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ticsummit/ticsite/common/dbutil"
	"github.com/ticsummit/ticsite/pkg/errors"
	"github.com/ticsummit/ticsite/pkg/models"
)

// Entity is implemented by every content model.
type Entity interface {
	GetBase() *models.Base
	Resource() string
	Prepare(models.TextCleaner) error
}

type sluggable interface {
	SlugSource() string
	GetSlug() string
	SetSlug(string)
}

type publishable interface {
	IsPublished() bool
	GetPublication() *models.Publication
}

type counted interface {
	GetCounters() *models.Counters
}

// Options describe how a content table is listed and searched.
type Options struct {
	// SearchColumns are matched case-insensitively with LIKE.
	SearchColumns []string
	// DefaultOrder is used when the query names no known sort.
	DefaultOrder string
	// Sorts maps a public sort key to an ORDER BY clause.
	Sorts map[string]string
	// Filters maps a query parameter to an equality condition.
	Filters map[string]Filter
}

// Filter is an equality condition on Column. Parse converts the raw query
// value into the column type.
type Filter struct {
	Column string
	Parse  func(string) (interface{}, error)
}

func textFilter(col string) Filter {
	return Filter{Column: col, Parse: func(v string) (interface{}, error) { return strings.ToLower(v), nil }}
}

func exactFilter(col string) Filter {
	return Filter{Column: col, Parse: func(v string) (interface{}, error) { return v, nil }}
}

func intFilter(col string) Filter {
	return Filter{Column: col, Parse: func(v string) (interface{}, error) { return strconv.Atoi(v) }}
}

func boolFilter(col string) Filter {
	return Filter{Column: col, Parse: func(v string) (interface{}, error) { return strconv.ParseBool(v) }}
}

// Query is a list request.
type Query struct {
	Page          int
	PerPage       int
	PublishedOnly bool
	Search        string
	Sort          string
	Filters       map[string]string
}

// Store is a gorm repository for one content type.
type Store[T any, P interface {
	*T
	Entity
}] struct {
	db    *gorm.DB
	clean *Sanitizer
	opts  Options
}

func NewStore[T any, P interface {
	*T
	Entity
}](db *gorm.DB, clean *Sanitizer, opts Options) *Store[T, P] {
	if opts.DefaultOrder == "" {
		opts.DefaultOrder = "created_at desc"
	}
	return &Store[T, P]{db: db, clean: clean, opts: opts}
}

// Resource is the singular name of the stored type, e.g. "post".
func (s *Store[T, P]) Resource() string { return P(new(T)).Resource() }

// Publishable reports whether the type has a published flag.
func (s *Store[T, P]) Publishable() bool {
	_, ok := any(P(new(T))).(publishable)
	return ok
}

// List returns one page of items and the total number of matches.
func (s *Store[T, P]) List(ctx context.Context, q Query) ([]T, int64, error) {
	page := dbutil.NewPagination(q.Page, q.PerPage)
	tx := s.db.WithContext(ctx).Model(new(T))

	if q.PublishedOnly && s.Publishable() {
		tx = tx.Where("published = ?", true)
	}
	if term := strings.ToLower(strings.TrimSpace(q.Search)); term != "" && len(s.opts.SearchColumns) > 0 {
		like := "%" + escapeLike(term) + "%"
		clauses := make([]string, len(s.opts.SearchColumns))
		args := make([]interface{}, len(s.opts.SearchColumns))
		for i, col := range s.opts.SearchColumns {
			clauses[i] = "LOWER(" + col + ") LIKE ? ESCAPE '\\'"
			args[i] = like
		}
		tx = tx.Where(strings.Join(clauses, " OR "), args...)
	}
	for key, raw := range q.Filters {
		f, ok := s.opts.Filters[key]
		if !ok || raw == "" {
			continue
		}
		value, err := f.Parse(raw)
		if err != nil {
			return nil, 0, errors.Invalid.Explain("invalid %s filter %q", key, raw).WithField(key, "invalid", "has the wrong type")
		}
		tx = tx.Where(f.Column+" = ?", value)
	}
	tx = tx.Session(&gorm.Session{})

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, dbutil.WrapError(err)
	}

	order, ok := s.opts.Sorts[q.Sort]
	if !ok {
		order = s.opts.DefaultOrder
	}

	items := make([]T, 0, page.PerPage)
	if err := tx.Scopes(page.Scope).Order(order).Find(&items).Error; err != nil {
		return nil, 0, dbutil.WrapError(err)
	}
	return items, total, nil
}

// Get loads an item by UUID, or by slug for sluggable types. With
// publishedOnly, drafts are reported as not found.
func (s *Store[T, P]) Get(ctx context.Context, ref string, publishedOnly bool) (P, error) {
	item, err := s.find(s.db.WithContext(ctx), ref)
	if err != nil {
		return nil, err
	}
	if pub, ok := any(item).(publishable); ok && publishedOnly && !pub.IsPublished() {
		return nil, s.notFound(ref)
	}
	return item, nil
}

// Create inserts item. Its ID, counters and publish date are reset; an
// empty slug is derived from the title.
func (s *Store[T, P]) Create(ctx context.Context, item P) error {
	base := item.GetBase()
	*base = models.Base{}
	if c, ok := any(item).(counted); ok {
		*c.GetCounters() = models.Counters{}
	}
	if pub, ok := any(item).(publishable); ok {
		pub.GetPublication().PublishedAt = nil
	}
	if err := item.Prepare(s.clean); err != nil {
		return errors.Invalid.Explain("invalid %s content", item.Resource()).Wrap(err)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.assignSlug(tx, item); err != nil {
			return err
		}
		return dbutil.WrapError(tx.Create(item).Error)
	})
}

// Replace overwrites every client editable field of the item at ref.
func (s *Store[T, P]) Replace(ctx context.Context, ref string, item P) (P, error) {
	var out P
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.find(tx, ref)
		if err != nil {
			return err
		}
		s.carryOver(existing, item)
		if err := s.save(tx, item); err != nil {
			return err
		}
		out = item
		return nil
	})
	return out, err
}

// Patch loads the item at ref, lets apply mutate it and saves the result.
// Identity and counters cannot be changed by apply.
func (s *Store[T, P]) Patch(ctx context.Context, ref string, apply func(P) error) (P, error) {
	var out P
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.find(tx, ref)
		if err != nil {
			return err
		}
		snapshot := P(new(T))
		*snapshot = *existing
		if err := apply(existing); err != nil {
			return err
		}
		s.carryOver(snapshot, existing)
		if err := s.save(tx, existing); err != nil {
			return err
		}
		out = existing
		return nil
	})
	return out, err
}

// Delete removes the item at ref together with its views and likes.
func (s *Store[T, P]) Delete(ctx context.Context, ref string) (P, error) {
	var out P
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.find(tx, ref)
		if err != nil {
			return err
		}
		if err := tx.Delete(existing).Error; err != nil {
			return dbutil.WrapError(err)
		}
		if _, ok := any(existing).(counted); ok {
			id := existing.GetBase().ID
			if err := tx.Where("target_type = ? AND target_id = ?", existing.Resource(), id).Delete(&models.View{}).Error; err != nil {
				return err
			}
			if err := tx.Where("target_type = ? AND target_id = ?", existing.Resource(), id).Delete(&models.Like{}).Error; err != nil {
				return err
			}
		}
		out = existing
		return nil
	})
	return out, err
}

func (s *Store[T, P]) find(tx *gorm.DB, ref string) (P, error) {
	q := tx.Model(new(T))
	if id, err := uuid.Parse(ref); err == nil {
		q = q.Where("id = ?", id)
	} else if _, ok := any(P(new(T))).(sluggable); ok && ref != "" {
		q = q.Where("slug = ?", ref)
	} else {
		return nil, s.notFound(ref)
	}
	item, err := dbutil.FindOne[T](q)
	if errors.Is(err, errors.NotFound) {
		return nil, s.notFound(ref)
	}
	if err != nil {
		return nil, err
	}
	return P(item), nil
}

// carryOver copies server owned fields from existing onto next.
func (s *Store[T, P]) carryOver(existing, next P) {
	*next.GetBase() = *existing.GetBase()
	if c, ok := any(existing).(counted); ok {
		*any(next).(counted).GetCounters() = *c.GetCounters()
	}
	if prev, ok := any(existing).(publishable); ok {
		any(next).(publishable).GetPublication().PublishedAt = prev.GetPublication().PublishedAt
	}
}

func (s *Store[T, P]) save(tx *gorm.DB, item P) error {
	if err := item.Prepare(s.clean); err != nil {
		return errors.Invalid.Explain("invalid %s content", item.Resource()).Wrap(err)
	}
	if err := s.assignSlug(tx, item); err != nil {
		return err
	}
	return dbutil.WrapError(tx.Save(item).Error)
}

func (s *Store[T, P]) assignSlug(tx *gorm.DB, item P) error {
	sl, ok := any(item).(sluggable)
	if !ok {
		return nil
	}
	id := item.GetBase().ID

	if slug := sl.GetSlug(); slug != "" {
		taken, err := s.slugTaken(tx, slug, id)
		if err != nil {
			return err
		}
		if taken {
			return errors.Conflict.Explain("%s slug %q is already taken", item.Resource(), slug).
				WithField("slug", "unique", "is already taken")
		}
		return nil
	}

	base := Slugify(sl.SlugSource())
	if base == "" {
		base = item.Resource()
	}
	candidate := base
	for n := 2; n <= 1000; n++ {
		taken, err := s.slugTaken(tx, candidate, id)
		if err != nil {
			return err
		}
		if !taken {
			sl.SetSlug(candidate)
			return nil
		}
		candidate = fmt.Sprintf("%s-%d", base, n)
	}
	return errors.Conflict.Explain("could not derive a free slug from %q", base)
}

func (s *Store[T, P]) slugTaken(tx *gorm.DB, slug string, exclude uuid.UUID) (bool, error) {
	q := tx.Model(new(T)).Where("slug = ?", slug)
	if exclude != uuid.Nil {
		q = q.Where("id <> ?", exclude)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return false, dbutil.WrapError(err)
	}
	return n > 0, nil
}

func (s *Store[T, P]) notFound(ref string) error {
	return errors.NotFound.Explain("%s %q not found", s.Resource(), ref)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
