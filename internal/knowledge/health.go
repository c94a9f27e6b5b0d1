package knowledge

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/fyrsmithlabs/llkb/internal/confidence"
	"github.com/fyrsmithlabs/llkb/internal/jsonstore"
)

// HealthStatus is the tri-state result of a health check.
type HealthStatus string

const (
	HealthOK      HealthStatus = "healthy"
	HealthWarning HealthStatus = "warning"
	HealthError   HealthStatus = "error"
)

// HealthCheck is one named check within a health report.
type HealthCheck struct {
	Name   string       `json:"name"`
	Status HealthStatus `json:"status"`
	Detail string       `json:"detail,omitempty"`
}

// HealthReport aggregates individual checks; the overall status is the worst
// individual status.
type HealthReport struct {
	Status HealthStatus  `json:"status"`
	Checks []HealthCheck `json:"checks"`
}

// CheckHealth inspects the store directory, config presence, JSON validity
// of each core file, the history directory, and lesson trust signals. It
// reports findings rather than failing: a broken store yields an error
// status, not an error return.
func (s *Store) CheckHealth(now time.Time) *HealthReport {
	report := &HealthReport{Status: HealthOK}

	add := func(name string, status HealthStatus, detail string) {
		report.Checks = append(report.Checks, HealthCheck{Name: name, Status: status, Detail: detail})
		if status == HealthError || (status == HealthWarning && report.Status == HealthOK) {
			report.Status = status
		}
	}

	if info, err := os.Stat(s.root); err != nil || !info.IsDir() {
		add("root", HealthError, "knowledge base directory does not exist: "+s.root)
		return report
	}
	add("root", HealthOK, "")

	if _, err := os.Stat(s.ConfigPath()); err != nil {
		add("config", HealthWarning, "config.yml missing; using defaults")
	} else {
		add("config", HealthOK, "")
	}

	for name, path := range map[string]string{
		"lessons":    s.LessonsPath(),
		"components": s.ComponentsPath(),
		"analytics":  s.AnalyticsPath(),
	} {
		var raw map[string]any
		err := jsonstore.Load(path, &raw)
		switch {
		case err == nil:
			add(name, HealthOK, "")
		case errors.Is(err, fs.ErrNotExist):
			add(name, HealthWarning, "not yet created")
		default:
			add(name, HealthError, err.Error())
		}
	}

	if info, err := os.Stat(s.HistoryDir()); err != nil || !info.IsDir() {
		add("history", HealthWarning, "history directory missing")
	} else {
		add("history", HealthOK, "")
	}

	if lessons, err := s.LoadLessons(); err == nil {
		suspect := 0
		for _, l := range lessons.Lessons {
			if l.Archived {
				continue
			}
			if l.Metrics.Confidence < lowConfidenceThreshold ||
				confidence.DetectDeclining(l.Metrics.Confidence, l.Metrics.ConfidenceHistory) {
				suspect++
			}
		}
		if suspect > 0 {
			add("lesson-health", HealthWarning, "lessons with low or declining confidence need review")
		} else {
			add("lesson-health", HealthOK, "")
		}
	}

	if problems, err := s.ValidateRegistry(); err == nil && len(problems) > 0 {
		add("module-registry", HealthWarning, problems[0])
	}

	return report
}
