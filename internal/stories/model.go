package stories

// Story models a persisted anonymous story. AuthorToken is the keyed hash
// of the submitting account's username, never the username itself; nothing
// in this table permits recovering the identity without the secret key.
type Story struct {
	StoryID          string `gorm:"column:story_id;primaryKey;size:190;not null"`
	Subject          string `gorm:"column:subject;size:320;not null;index:idx_stories_subject"`
	AuthorToken      string `gorm:"column:author_token;size:64;not null;index:idx_stories_author_token"`
	Title            string `gorm:"column:title;size:320;not null"`
	Body             string `gorm:"column:body;type:text;not null"`
	Positive         bool   `gorm:"column:is_positive;not null;default:false"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null;index:idx_stories_created"`
}

// TableName provides the explicit table binding for GORM.
func (Story) TableName() string {
	return "stories"
}

// PageRequest is a zero-based page window over an ordered result set.
type PageRequest struct {
	Index int
	Size  int
}

func (p PageRequest) offset() int {
	return p.Index * p.Size
}

// StoryPage is one window of stories plus the pagination totals the
// presentation layer needs for clamping and page controls.
type StoryPage struct {
	Stories    []Story
	TotalPages int
	PageIndex  int
}

// LastPageIndex returns the highest valid zero-based page index, or 0 when
// the result set is empty.
func (p StoryPage) LastPageIndex() int {
	if p.TotalPages <= 0 {
		return 0
	}
	return p.TotalPages - 1
}

// OutOfRange reports whether the requested index lies beyond the last
// populated page. Callers redirect to LastPageIndex rather than serving the
// empty window.
func (p StoryPage) OutOfRange() bool {
	return p.TotalPages > 0 && p.PageIndex > p.TotalPages-1
}
