package service

import (
	"sort"
	"time"

	"workflow/backend/internal/model"
)

// DefaultDueSoonDays is the horizon used when none (or a non-positive one) is given.
const DefaultDueSoonDays = 7

// ProjectsDueSoon returns unfinished projects whose deadline is today or within
// the next horizonDays-1 days.
func ProjectsDueSoon(projects []model.Project, now time.Time, horizonDays int) []model.Project {
	if horizonDays <= 0 {
		horizonDays = DefaultDueSoonDays
	}
	return filterProjects(projects, func(p *model.Project) bool {
		d := p.DaysLeft(now)
		return d >= 0 && d < horizonDays && p.Status != model.StatusDone
	})
}

// OverdueProjects returns projects past their deadline. Finished projects are
// included: a DONE project that ran late is still reported.
func OverdueProjects(projects []model.Project, now time.Time) []model.Project {
	return filterProjects(projects, func(p *model.Project) bool {
		return p.DaysLeft(now) < 0
	})
}

// ProjectsNeedingHelp returns projects in the HELP status.
func ProjectsNeedingHelp(projects []model.Project) []model.Project {
	return filterProjects(projects, func(p *model.Project) bool {
		return p.Status == model.StatusHelp
	})
}

// filterProjects keeps matches ordered by deadline, then id.
func filterProjects(projects []model.Project, keep func(p *model.Project) bool) []model.Project {
	out := make([]model.Project, 0)
	for i := range projects {
		if keep(&projects[i]) {
			out = append(out, projects[i])
		}
	}
	sortByDeadline(out)
	return out
}

func sortByDeadline(projects []model.Project) {
	sort.SliceStable(projects, func(i, j int) bool {
		di, dj := time.Time(projects[i].Deadline), time.Time(projects[j].Deadline)
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		return projects[i].ID < projects[j].ID
	})
}
