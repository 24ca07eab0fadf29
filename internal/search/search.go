// Package search ranks published content against a free text query.
package search

import (
	"context"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ticsummit/ticsite/common/dbutil"
	"github.com/ticsummit/ticsite/pkg/errors"
)

const (
	DefaultLimit = 20
	MaxLimit     = 50

	directLimit   = 50
	fallbackLimit = 500
	minScore      = 0.6
)

// Result is one ranked hit.
type Result struct {
	Type  string    `json:"type"`
	ID    uuid.UUID `json:"id"`
	Slug  string    `json:"slug,omitempty"`
	Title string    `json:"title"`
	Score float64   `json:"score"`
}

type source struct {
	kind    string
	table   string
	title   string
	hasSlug bool
}

var sources = []source{
	{kind: "post", table: "blog_posts", title: "title", hasSlug: true},
	{kind: "project", table: "projects", title: "title", hasSlug: true},
	{kind: "mentor", table: "mentor_profiles", title: "name", hasSlug: true},
	{kind: "alumni", table: "alumni_profiles", title: "name", hasSlug: true},
	{kind: "ambassador", table: "ambassador_profiles", title: "name", hasSlug: true},
	{kind: "faq", table: "faqs", title: "question"},
}

type candidate struct {
	ID    uuid.UUID
	Slug  string
	Title string
}

// Service searches across content tables.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Search returns published items whose title resembles q, best first.
func (s *Service) Search(ctx context.Context, q string, limit int) ([]Result, error) {
	query := strings.ToLower(strings.Join(strings.Fields(q), " "))
	if utf8.RuneCountInString(query) < 2 {
		return nil, errors.Invalid.Explain("query must be at least 2 characters").WithField("q", "min", "must be at least 2 characters")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	var results []Result
	for _, src := range sources {
		cands, err := s.candidates(ctx, src, query)
		if err != nil {
			return nil, err
		}
		for _, c := range cands {
			if score := Score(query, c.Title); score >= minScore {
				results = append(results, Result{Type: src.kind, ID: c.ID, Slug: c.Slug, Title: c.Title, Score: score})
			}
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Title < results[j].Title
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *Service) candidates(ctx context.Context, src source, query string) ([]candidate, error) {
	slug := "slug"
	if !src.hasSlug {
		slug = "''"
	}
	base := func() *gorm.DB {
		return s.db.WithContext(ctx).Table(src.table).
			Select("id, " + slug + " AS slug, " + src.title + " AS title").
			Where("published = ?", true)
	}

	var direct []candidate
	err := base().Where("LOWER("+src.title+") LIKE ? ESCAPE '\\'", "%"+escapeLike(query)+"%").
		Limit(directLimit).Scan(&direct).Error
	if err != nil {
		return nil, dbutil.WrapError(err)
	}

	var recent []candidate
	if err := base().Order("created_at desc").Limit(fallbackLimit).Scan(&recent).Error; err != nil {
		return nil, dbutil.WrapError(err)
	}

	seen := make(map[uuid.UUID]bool, len(direct)+len(recent))
	out := make([]candidate, 0, len(direct)+len(recent))
	for _, c := range append(direct, recent...) {
		if !seen[c.ID] {
			seen[c.ID] = true
			out = append(out, c)
		}
	}
	return out, nil
}

// Score rates how well title matches query in [0, 1]. A substring match is
// 1; otherwise the best Levenshtein similarity between query and any run of
// title words of the same length.
func Score(query, title string) float64 {
	query = strings.ToLower(strings.TrimSpace(query))
	title = strings.ToLower(title)
	if query == "" {
		return 0
	}
	if strings.Contains(title, query) {
		return 1
	}

	words := strings.Fields(title)
	n := len(strings.Fields(query))
	if n == 0 || len(words) == 0 {
		return 0
	}
	if n > len(words) {
		n = len(words)
	}
	best := 0.0
	for i := 0; i+n <= len(words); i++ {
		best = math.Max(best, similarity(query, strings.Join(words[i:i+n], " ")))
	}
	return best
}

func similarity(a, b string) float64 {
	distance := levenshtein.ComputeDistance(a, b)
	maxLen := math.Max(float64(utf8.RuneCountInString(a)), float64(utf8.RuneCountInString(b)))
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(distance)/maxLen
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
