package content

import (
	"gorm.io/gorm"

	"github.com/ticsummit/ticsite/pkg/models"
)

type (
	PostStore       = Store[models.BlogPost, *models.BlogPost]
	ProjectStore    = Store[models.Project, *models.Project]
	MentorStore     = Store[models.MentorProfile, *models.MentorProfile]
	AlumniStore     = Store[models.AlumniProfile, *models.AlumniProfile]
	AmbassadorStore = Store[models.AmbassadorProfile, *models.AmbassadorProfile]
	TeamStore       = Store[models.TeamMember, *models.TeamMember]
	FAQStore        = Store[models.FAQ, *models.FAQ]
)

// Catalog groups the stores of every content type.
type Catalog struct {
	Posts       *PostStore
	Projects    *ProjectStore
	Mentors     *MentorStore
	Alumni      *AlumniStore
	Ambassadors *AmbassadorStore
	Team        *TeamStore
	FAQs        *FAQStore
	Settings    *SettingsStore
	Contact     *ContactStore
}

var peopleSorts = map[string]string{
	"name":   "name asc",
	"newest": "created_at desc",
}

func NewCatalog(db *gorm.DB, clean *Sanitizer) *Catalog {
	return &Catalog{
		Posts: NewStore[models.BlogPost](db, clean, Options{
			SearchColumns: []string{"title", "excerpt"},
			DefaultOrder:  "published_at desc, created_at desc",
			Sorts: map[string]string{
				"newest":  "published_at desc, created_at desc",
				"oldest":  "published_at asc, created_at asc",
				"popular": "view_count desc, like_count desc",
				"title":   "title asc",
			},
		}),
		Projects: NewStore[models.Project](db, clean, Options{
			SearchColumns: []string{"title", "summary"},
			DefaultOrder:  "featured desc, year desc, title asc",
			Sorts: map[string]string{
				"newest":  "year desc, created_at desc",
				"popular": "like_count desc, view_count desc",
				"title":   "title asc",
			},
			Filters: map[string]Filter{"category": textFilter("category"), "year": intFilter("year"), "featured": boolFilter("featured")},
		}),
		Mentors: NewStore[models.MentorProfile](db, clean, Options{
			SearchColumns: []string{"name", "organization", "title"},
			DefaultOrder:  "sort_order asc, name asc",
			Sorts:         peopleSorts,
		}),
		Alumni: NewStore[models.AlumniProfile](db, clean, Options{
			SearchColumns: []string{"name", "project_title", "current_position"},
			DefaultOrder:  "cohort_year desc, sort_order asc, name asc",
			Sorts:         peopleSorts,
			Filters:       map[string]Filter{"cohort_year": intFilter("cohort_year")},
		}),
		Ambassadors: NewStore[models.AmbassadorProfile](db, clean, Options{
			SearchColumns: []string{"name", "school", "region"},
			DefaultOrder:  "sort_order asc, name asc",
			Sorts:         peopleSorts,
			Filters:       map[string]Filter{"region": exactFilter("region")},
		}),
		Team: NewStore[models.TeamMember](db, clean, Options{
			SearchColumns: []string{"name", "role"},
			DefaultOrder:  "sort_order asc, name asc",
			Sorts:         peopleSorts,
		}),
		FAQs: NewStore[models.FAQ](db, clean, Options{
			SearchColumns: []string{"question", "answer"},
			DefaultOrder:  "category asc, sort_order asc, created_at asc",
			Filters:       map[string]Filter{"category": textFilter("category")},
		}),
		Settings: NewSettingsStore(db),
		Contact:  NewContactStore(db, clean),
	}
}
