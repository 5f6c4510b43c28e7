package domain

import "time"

// Project is a public robotics project showcase entry.
type Project struct {
	ID        string
	Title     string
	Summary   string
	Body      string
	ImageURL  string
	Position  int
	Published bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TeamMember is a listed member of the program.
type TeamMember struct {
	ID        string
	Name      string
	Role      string
	Bio       string
	PhotoURL  string
	Position  int
	Published bool
	CreatedAt time.Time
}

// Partner is a supporting organisation shown on the site.
type Partner struct {
	ID        string
	Name      string
	LogoURL   string
	SiteURL   string
	Position  int
	Published bool
	CreatedAt time.Time
}

// Milestone is an entry on the program timeline.
type Milestone struct {
	ID          string
	Title       string
	Description string
	OccursOn    time.Time
	Position    int
	Published   bool
	CreatedAt   time.Time
}

// Resource is a downloadable tool or learning resource.
type Resource struct {
	ID          string
	Title       string
	Description string
	URL         string
	Kind        string
	Position    int
	Published   bool
	CreatedAt   time.Time
}
