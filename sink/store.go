package sink

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/charliek/snag/report"
)

// DefaultCapacity bounds the in-memory report history.
const DefaultCapacity = 200

// StoredReport pairs an accepted report with its sink metadata.
type StoredReport struct {
	ID         string        `json:"id"`
	ReceivedAt time.Time     `json:"receivedAt"`
	Report     report.Report `json:"report"`
}

// Summary is the listing shape for a stored report.
type Summary struct {
	ID          string    `json:"id"`
	ReceivedAt  time.Time `json:"receivedAt"`
	Title       string    `json:"title"`
	PageURL     string    `json:"pageUrl"`
	ProjectKey  string    `json:"projectKey"`
	ConsoleLogs int       `json:"consoleLogs"`
	NetworkLogs int       `json:"networkLogs"`
	UserActions int       `json:"userActions"`
}

// Summarize reduces a stored report to its listing shape.
func Summarize(stored StoredReport) Summary {
	title := stored.Report.Title
	if title == "" {
		title = report.DefaultTitle
	}
	return Summary{
		ID:          stored.ID,
		ReceivedAt:  stored.ReceivedAt,
		Title:       title,
		PageURL:     stored.Report.PageURL,
		ProjectKey:  stored.Report.ProjectKey,
		ConsoleLogs: len(stored.Report.ConsoleLogs),
		NetworkLogs: len(stored.Report.NetworkLogs),
		UserActions: len(stored.Report.UserActions),
	}
}

// Store is a bounded in-memory report store. The oldest report is
// evicted once capacity is reached.
type Store struct {
	mu       sync.RWMutex
	reports  []StoredReport
	capacity int
}

// NewStore creates a store holding at most capacity reports.
// A capacity of zero or less falls back to DefaultCapacity.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{capacity: capacity}
}

// Add stores a report under a fresh id and returns the stored record.
func (s *Store) Add(rep report.Report) StoredReport {
	stored := StoredReport{
		ID:         uuid.NewString(),
		ReceivedAt: time.Now().UTC(),
		Report:     rep,
	}

	s.mu.Lock()
	s.reports = append(s.reports, stored)
	if len(s.reports) > s.capacity {
		// Copy into a fresh slice so evicted reports are released
		trimmed := make([]StoredReport, s.capacity)
		copy(trimmed, s.reports[len(s.reports)-s.capacity:])
		s.reports = trimmed
	}
	s.mu.Unlock()

	return stored
}

// List returns newest-first summaries, optionally filtered by project
// key, up to limit entries.
func (s *Store) List(project string, limit int) []Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]Summary, 0)
	for i := len(s.reports) - 1; i >= 0 && len(summaries) < limit; i-- {
		stored := s.reports[i]
		if project != "" && stored.Report.ProjectKey != project {
			continue
		}
		summaries = append(summaries, Summarize(stored))
	}
	return summaries
}

// Get returns the stored report with the given id.
func (s *Store) Get(id string) (StoredReport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, stored := range s.reports {
		if stored.ID == id {
			return stored, true
		}
	}
	return StoredReport{}, false
}

// Delete removes the report with the given id. It reports whether a
// report was removed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, stored := range s.reports {
		if stored.ID == id {
			s.reports = append(s.reports[:i], s.reports[i+1:]...)
			return true
		}
	}
	return false
}

// Clear removes every stored report and returns how many were held.
func (s *Store) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.reports)
	s.reports = nil
	return n
}

// Len returns the number of stored reports.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.reports)
}
