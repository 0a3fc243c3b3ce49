package core

import (
	"context"
	"sync"
	"time"

	"attendance.service/internal/core/model"
	"attendance.service/internal/ports/recognizer"
	"attendance.service/internal/ports/repository"
)

// memStore is an in-memory Repository + Directory used by the workflow
// tests. SaveConfirmed enforces the same conditional-write semantics as the
// Postgres implementation so conflict retries behave like production.
type memStore struct {
	mu            sync.Mutex
	events        []*model.AttendanceEvent
	pendings      []*model.PendingReviewEntry
	nextEventID   int64
	nextPendingID int64
	stations      map[int64]int64 // personnel id -> station id

	lastFilter      repository.EventFilter
	injectConflicts int
}

func newMemStore() *memStore {
	return &memStore{
		nextEventID:   1,
		nextPendingID: 1,
		stations:      map[int64]int64{},
	}
}

func (m *memStore) lastConfirmedLocked(personnelID int64) *model.AttendanceEvent {
	var last *model.AttendanceEvent
	for _, ev := range m.events {
		if ev.PersonnelID != personnelID || ev.Disposition != model.DispositionConfirmed {
			continue
		}
		if last == nil || ev.CapturedAt.After(last.CapturedAt) ||
			(ev.CapturedAt.Equal(last.CapturedAt) && ev.ID > last.ID) {
			last = ev
		}
	}
	return last
}

func (m *memStore) LastConfirmed(_ context.Context, personnelID int64) (*model.AttendanceEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if last := m.lastConfirmedLocked(personnelID); last != nil {
		cp := *last
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) SaveConfirmed(_ context.Context, ev *model.AttendanceEvent) (*model.AttendanceEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveConfirmedLocked(ev)
}

func (m *memStore) saveConfirmedLocked(ev *model.AttendanceEvent) (*model.AttendanceEvent, error) {
	if m.injectConflicts > 0 {
		m.injectConflicts--
		return nil, repository.ErrAlternationConflict
	}
	if last := m.lastConfirmedLocked(ev.PersonnelID); last != nil && last.Kind == ev.Kind {
		return nil, repository.ErrAlternationConflict
	}

	cp := *ev
	cp.ID = m.nextEventID
	m.nextEventID++
	cp.Disposition = model.DispositionConfirmed
	cp.CreatedAt = time.Now()
	m.events = append(m.events, &cp)
	out := cp
	return &out, nil
}

func (m *memStore) SavePending(_ context.Context, entry *model.PendingReviewEntry) (*model.PendingReviewEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *entry
	cp.ID = m.nextPendingID
	m.nextPendingID++
	cp.Status = model.ReviewPending
	cp.CreatedAt = time.Now()
	m.pendings = append(m.pendings, &cp)
	out := cp
	return &out, nil
}

func (m *memStore) findPendingLocked(id int64) *model.PendingReviewEntry {
	for _, e := range m.pendings {
		if e.ID == id {
			return e
		}
	}
	return nil
}

func (m *memStore) FindPending(_ context.Context, id int64) (*model.PendingReviewEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e := m.findPendingLocked(id); e != nil {
		cp := *e
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) ListPending(_ context.Context) ([]model.PendingReviewEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.PendingReviewEntry
	for _, e := range m.pendings {
		if e.Status == model.ReviewPending {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *memStore) CountPending(ctx context.Context) (int, error) {
	entries, _ := m.ListPending(ctx)
	return len(entries), nil
}

func (m *memStore) transitionPendingLocked(id int64, status model.ReviewStatus, reviewer int64, at time.Time) (*model.PendingReviewEntry, error) {
	e := m.findPendingLocked(id)
	if e == nil {
		return nil, repository.ErrNotFound
	}
	if e.Status != model.ReviewPending {
		return nil, repository.ErrAlreadyReviewed
	}
	e.Status = status
	e.ReviewedBy = &reviewer
	e.ReviewedAt = &at
	cp := *e
	return &cp, nil
}

func (m *memStore) TransitionPending(_ context.Context, id int64, status model.ReviewStatus, reviewer int64, at time.Time) (*model.PendingReviewEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transitionPendingLocked(id, status, reviewer, at)
}

func (m *memStore) ApprovePending(_ context.Context, entryID int64, ev *model.AttendanceEvent, reviewer int64, at time.Time) (*model.AttendanceEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	saved, err := m.saveConfirmedLocked(ev)
	if err != nil {
		return nil, err
	}
	if _, err := m.transitionPendingLocked(entryID, model.ReviewApproved, reviewer, at); err != nil {
		// Roll the event write back, as the SQL transaction would.
		m.events = m.events[:len(m.events)-1]
		return nil, err
	}
	return saved, nil
}

func (m *memStore) GetEvent(_ context.Context, id int64) (*model.AttendanceEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ev := range m.events {
		if ev.ID == id {
			cp := *ev
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) ListEvents(_ context.Context, f repository.EventFilter) (*repository.EventPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastFilter = f
	page := &repository.EventPage{Page: f.Page, Limit: f.Limit}
	for _, ev := range m.events {
		if f.PersonnelID != nil && ev.PersonnelID != *f.PersonnelID {
			continue
		}
		if f.StationID != nil && m.stations[ev.PersonnelID] != *f.StationID {
			continue
		}
		page.Items = append(page.Items, *ev)
	}
	page.Total = len(page.Items)
	return page, nil
}

func (m *memStore) UpdateEvent(_ context.Context, ev *model.AttendanceEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.events {
		if existing.ID == ev.ID {
			cp := *ev
			m.events[i] = &cp
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *memStore) DeleteEvent(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, ev := range m.events {
		if ev.ID == id {
			m.events = append(m.events[:i], m.events[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *memStore) UpdateNotifyStatus(_ context.Context, id int64, status model.NotifyStatus, retryCount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ev := range m.events {
		if ev.ID == id {
			ev.NotifyStatus = status
			ev.NotifyRetries = retryCount
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *memStore) UpdateAuditStatus(_ context.Context, id int64, status model.AuditStatus, retryCount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ev := range m.events {
		if ev.ID == id {
			ev.AuditStatus = status
			ev.AuditRetries = retryCount
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *memStore) InsertActivityLog(_ context.Context, _ model.ActivityLogEntry) error {
	return nil
}

func (m *memStore) StationOf(_ context.Context, personnelID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	station, ok := m.stations[personnelID]
	if !ok {
		return 0, repository.ErrNotFound
	}
	return station, nil
}

func (m *memStore) confirmedKinds(personnelID int64) []model.Kind {
	m.mu.Lock()
	defer m.mu.Unlock()

	ordered := make([]*model.AttendanceEvent, 0, len(m.events))
	for _, ev := range m.events {
		if ev.PersonnelID == personnelID && ev.Disposition == model.DispositionConfirmed {
			ordered = append(ordered, ev)
		}
	}
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0; j-- {
			a, b := ordered[j-1], ordered[j]
			if a.CapturedAt.After(b.CapturedAt) || (a.CapturedAt.Equal(b.CapturedAt) && a.ID > b.ID) {
				ordered[j-1], ordered[j] = b, a
			}
		}
	}

	kinds := make([]model.Kind, len(ordered))
	for i, ev := range ordered {
		kinds[i] = ev.Kind
	}
	return kinds
}

// stubRecognizer returns a canned match or error.
type stubRecognizer struct {
	match recognizer.Match
	err   error
}

func (s *stubRecognizer) Recognize(context.Context, string, int64) (recognizer.Match, error) {
	if s.err != nil {
		return recognizer.Match{}, s.err
	}
	return s.match, nil
}

func (s *stubRecognizer) Ping(context.Context) error { return s.err }

// countingProducer records publishes without a queue.
type countingProducer struct {
	mu      sync.Mutex
	notify  int
	audit   int
	failAll bool
}

func (p *countingProducer) PublishNotify(context.Context, interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failAll {
		return context.DeadlineExceeded
	}
	p.notify++
	return nil
}

func (p *countingProducer) PublishAudit(context.Context, interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failAll {
		return context.DeadlineExceeded
	}
	p.audit++
	return nil
}
