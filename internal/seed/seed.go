// Package seed loads site content from a YAML document.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/ticsummit/ticsite/common/apiutil"
	"github.com/ticsummit/ticsite/common/dbutil"
	"github.com/ticsummit/ticsite/internal/content"
	"github.com/ticsummit/ticsite/pkg/errors"
	"github.com/ticsummit/ticsite/pkg/models"
)

// Record is one content entry. Keys follow the JSON API field names.
type Record map[string]interface{}

// File is the layout of a seed document.
type File struct {
	Settings    map[string]interface{} `yaml:"settings"`
	Posts       []Record               `yaml:"posts"`
	Projects    []Record               `yaml:"projects"`
	Mentors     []Record               `yaml:"mentors"`
	Alumni      []Record               `yaml:"alumni"`
	Ambassadors []Record               `yaml:"ambassadors"`
	Team        []Record               `yaml:"team"`
	FAQs        []Record               `yaml:"faqs"`
}

// Counts is the number of rows created and updated for one resource.
type Counts struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

// Report maps a resource name to its counts.
type Report map[string]Counts

type Seeder struct {
	db      *gorm.DB
	catalog *content.Catalog
	log     *zap.Logger
}

func New(db *gorm.DB, catalog *content.Catalog, log *zap.Logger) *Seeder {
	apiutil.RegisterValidators()
	return &Seeder{db: db, catalog: catalog, log: log.Named("seed")}
}

// Parse decodes a seed document.
func Parse(r io.Reader) (*File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	return &f, nil
}

// ApplyFile parses and applies the document at path.
func (s *Seeder) ApplyFile(ctx context.Context, path string) (Report, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer fh.Close()

	f, err := Parse(fh)
	if err != nil {
		return nil, err
	}
	return s.Apply(ctx, f)
}

// Apply upserts every entry of f. Entries are matched on slug, on the slug
// derived from their title or name, or for FAQs on the question. Applying the
// same document twice creates no new rows.
func (s *Seeder) Apply(ctx context.Context, f *File) (Report, error) {
	report := Report{}
	steps := []struct {
		name string
		run  func() (Counts, error)
	}{
		{"settings", func() (Counts, error) { return s.settings(ctx, f.Settings) }},
		{"posts", func() (Counts, error) { return upsertAll(ctx, s.catalog.Posts, f.Posts) }},
		{"projects", func() (Counts, error) { return upsertAll(ctx, s.catalog.Projects, f.Projects) }},
		{"mentors", func() (Counts, error) { return upsertAll(ctx, s.catalog.Mentors, f.Mentors) }},
		{"alumni", func() (Counts, error) { return upsertAll(ctx, s.catalog.Alumni, f.Alumni) }},
		{"ambassadors", func() (Counts, error) { return upsertAll(ctx, s.catalog.Ambassadors, f.Ambassadors) }},
		{"team", func() (Counts, error) { return upsertAll(ctx, s.catalog.Team, f.Team) }},
		{"faqs", func() (Counts, error) { return s.faqs(ctx, f.FAQs) }},
	}
	for _, step := range steps {
		counts, err := step.run()
		if err != nil {
			return report, fmt.Errorf("%s: %w", step.name, err)
		}
		if counts.Created+counts.Updated > 0 {
			report[step.name] = counts
			s.log.Info("seeded", zap.String("resource", step.name),
				zap.Int("created", counts.Created), zap.Int("updated", counts.Updated))
		}
	}
	return report, nil
}

func (s *Seeder) settings(ctx context.Context, values map[string]interface{}) (Counts, error) {
	var counts Counts
	for key, v := range values {
		raw, err := json.Marshal(v)
		if err != nil {
			return counts, fmt.Errorf("setting %s: %w", key, err)
		}
		_, err = s.catalog.Settings.Get(ctx, key)
		exists := err == nil
		if err != nil && !errors.Is(err, errors.NotFound) {
			return counts, err
		}
		if _, err := s.catalog.Settings.Put(ctx, key, raw, ""); err != nil {
			return counts, fmt.Errorf("setting %s: %w", key, err)
		}
		if exists {
			counts.Updated++
		} else {
			counts.Created++
		}
	}
	return counts, nil
}

func (s *Seeder) faqs(ctx context.Context, records []Record) (Counts, error) {
	var counts Counts
	for i, rec := range records {
		item := &models.FAQ{}
		if err := decode(rec, item); err != nil {
			return counts, fmt.Errorf("entry %d: %w", i+1, err)
		}
		existing, err := dbutil.FindOne[models.FAQ](s.db.WithContext(ctx).Where("question = ?", item.Question))
		switch {
		case errors.Is(err, errors.NotFound):
			if err := s.catalog.FAQs.Create(ctx, item); err != nil {
				return counts, fmt.Errorf("entry %d: %w", i+1, err)
			}
			counts.Created++
		case err != nil:
			return counts, err
		default:
			if _, err := s.catalog.FAQs.Replace(ctx, existing.ID.String(), item); err != nil {
				return counts, fmt.Errorf("entry %d: %w", i+1, err)
			}
			counts.Updated++
		}
	}
	return counts, nil
}

type sluggedEntity interface {
	content.Entity
	GetSlug() string
	SlugSource() string
}

func upsertAll[T any, P interface {
	*T
	sluggedEntity
}](ctx context.Context, store *content.Store[T, P], records []Record) (Counts, error) {
	var counts Counts
	for i, rec := range records {
		item := P(new(T))
		if err := decode(rec, item); err != nil {
			return counts, fmt.Errorf("entry %d: %w", i+1, err)
		}
		ref := item.GetSlug()
		if ref == "" {
			ref = content.Slugify(item.SlugSource())
		}

		_, err := store.Get(ctx, ref, false)
		switch {
		case errors.Is(err, errors.NotFound):
			if err := store.Create(ctx, item); err != nil {
				return counts, fmt.Errorf("entry %d: %w", i+1, err)
			}
			counts.Created++
		case err != nil:
			return counts, err
		default:
			if _, err := store.Replace(ctx, ref, item); err != nil {
				return counts, fmt.Errorf("entry %d: %w", i+1, err)
			}
			counts.Updated++
		}
	}
	return counts, nil
}

// decode maps a record onto a model through its JSON tags and runs the same
// validation as the API.
func decode(rec Record, v interface{}) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return err
	}
	return binding.Validator.ValidateStruct(v)
}
