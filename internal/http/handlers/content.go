package handlers

import (
	"net/http"
)

// The public marketing listings. All of them serve published rows only, in
// display order; editing happens elsewhere.

func (a *App) ProjectsList(w http.ResponseWriter, r *http.Request) {
	projects, err := a.Content.ListProjects(r.Context())
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load projects")
		return
	}
	items := make([]map[string]any, 0, len(projects))
	for _, p := range projects {
		items = append(items, map[string]any{
			"id":       p.ID,
			"title":    p.Title,
			"summary":  p.Summary,
			"body":     p.Body,
			"imageUrl": p.ImageURL,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

func (a *App) TeamList(w http.ResponseWriter, r *http.Request) {
	members, err := a.Content.ListTeamMembers(r.Context())
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load team")
		return
	}
	items := make([]map[string]any, 0, len(members))
	for _, m := range members {
		items = append(items, map[string]any{
			"id":       m.ID,
			"name":     m.Name,
			"role":     m.Role,
			"bio":      m.Bio,
			"photoUrl": m.PhotoURL,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

func (a *App) PartnersList(w http.ResponseWriter, r *http.Request) {
	partners, err := a.Content.ListPartners(r.Context())
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load partners")
		return
	}
	items := make([]map[string]any, 0, len(partners))
	for _, p := range partners {
		items = append(items, map[string]any{
			"id":      p.ID,
			"name":    p.Name,
			"logoUrl": p.LogoURL,
			"siteUrl": p.SiteURL,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

func (a *App) MilestonesList(w http.ResponseWriter, r *http.Request) {
	milestones, err := a.Content.ListMilestones(r.Context())
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load milestones")
		return
	}
	items := make([]map[string]any, 0, len(milestones))
	for _, m := range milestones {
		items = append(items, map[string]any{
			"id":          m.ID,
			"title":       m.Title,
			"description": m.Description,
			"occursOn":    m.OccursOn.Format("2006-01-02"),
		})
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

func (a *App) ResourcesList(w http.ResponseWriter, r *http.Request) {
	resources, err := a.Content.ListResources(r.Context())
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load resources")
		return
	}
	items := make([]map[string]any, 0, len(resources))
	for _, res := range resources {
		items = append(items, map[string]any{
			"id":          res.ID,
			"title":       res.Title,
			"description": res.Description,
			"url":         res.URL,
			"kind":        res.Kind,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}
