package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/MarcoPoloResearchLab/schemaboard/internal/diagrams"
	"github.com/MarcoPoloResearchLab/schemaboard/internal/gist"
	"github.com/MarcoPoloResearchLab/schemaboard/internal/localstore"
)

type memoryLocal struct {
	mu        sync.Mutex
	diagrams  map[string]diagrams.Diagram
	templates map[string]diagrams.Template
	getErr    error
	addErr    error
	updateErr error
	putErr    error
	adds      int
	updates   int
	puts      int
}

func newMemoryLocal() *memoryLocal {
	return &memoryLocal{
		diagrams:  map[string]diagrams.Diagram{},
		templates: map[string]diagrams.Template{},
	}
}

func (m *memoryLocal) seed(d diagrams.Diagram) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.diagrams[d.ID] = d.Clone()
}

func (m *memoryLocal) stored(id string) (diagrams.Diagram, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.diagrams[id]
	return d.Clone(), ok
}

func (m *memoryLocal) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.diagrams)
}

func (m *memoryLocal) Get(_ context.Context, id string) (diagrams.Diagram, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return diagrams.Diagram{}, false, m.getErr
	}
	d, ok := m.diagrams[id]
	return d.Clone(), ok, nil
}

func (m *memoryLocal) Add(_ context.Context, d diagrams.Diagram) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adds++
	if m.addErr != nil {
		return "", m.addErr
	}
	if _, exists := m.diagrams[d.ID]; exists {
		return "", fmt.Errorf("%w: %s", localstore.ErrDuplicateID, d.ID)
	}
	m.diagrams[d.ID] = d.Clone()
	return d.ID, nil
}

func (m *memoryLocal) Update(_ context.Context, id string, d diagrams.Diagram) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, exists := m.diagrams[id]; !exists {
		return fmt.Errorf("%w: %s", localstore.ErrNotFound, id)
	}
	d.ID = id
	m.diagrams[id] = d.Clone()
	return nil
}

func (m *memoryLocal) Put(_ context.Context, d diagrams.Diagram) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if m.putErr != nil {
		return m.putErr
	}
	m.diagrams[d.ID] = d.Clone()
	return nil
}

func (m *memoryLocal) QueryLatestByModifiedTime(context.Context) (diagrams.Diagram, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return diagrams.Diagram{}, false, m.getErr
	}
	var latest diagrams.Diagram
	found := false
	for _, d := range m.diagrams {
		if !found || d.LastModified.After(latest.LastModified) {
			latest = d
			found = true
		}
	}
	return latest.Clone(), found, nil
}

func (m *memoryLocal) FindByImportedGistID(_ context.Context, gistID string) (diagrams.Diagram, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.diagrams {
		if gistID != "" && d.ImportedFromGistID == gistID {
			return d.Clone(), true, nil
		}
	}
	return diagrams.Diagram{}, false, nil
}

func (m *memoryLocal) GetTemplate(_ context.Context, id string) (diagrams.Template, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return diagrams.Template{}, false, m.getErr
	}
	t, ok := m.templates[id]
	return t, ok, nil
}

func (m *memoryLocal) UpdateTemplate(_ context.Context, id string, t diagrams.Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	existing, ok := m.templates[id]
	if !ok {
		return fmt.Errorf("%w: template %s", localstore.ErrNotFound, id)
	}
	t.ID = id
	t.Custom = existing.Custom
	m.templates[id] = t
	return nil
}

type memoryRemote struct {
	mu            sync.Mutex
	rows          map[string]diagrams.RemoteRecord
	getErr        error
	latestErr     error
	upsertErr     error
	upserts       int
	gets          int
	onUpsert      func()
	latestStarted chan struct{}
	latestRelease chan struct{}
}

func newMemoryRemote() *memoryRemote {
	return &memoryRemote{rows: map[string]diagrams.RemoteRecord{}}
}

func (m *memoryRemote) seed(record diagrams.RemoteRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[record.LocalID] = record
}

func (m *memoryRemote) row(id string) (diagrams.RemoteRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.rows[id]
	return record, ok
}

func (m *memoryRemote) upsertCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upserts
}

func (m *memoryRemote) setUpsertErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertErr = err
}

func (m *memoryRemote) GetByID(_ context.Context, id string) (diagrams.RemoteRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.getErr != nil {
		return diagrams.RemoteRecord{}, false, m.getErr
	}
	record, ok := m.rows[id]
	return record, ok, nil
}

func (m *memoryRemote) Upsert(_ context.Context, record diagrams.RemoteRecord) error {
	m.mu.Lock()
	m.upserts++
	hook := m.onUpsert
	err := m.upsertErr
	if err == nil {
		m.rows[record.LocalID] = record
	}
	m.mu.Unlock()
	if hook != nil {
		hook()
	}
	return err
}

func (m *memoryRemote) GetLatest(_ context.Context, limit int) ([]diagrams.RemoteRecord, error) {
	if m.latestStarted != nil {
		close(m.latestStarted)
		<-m.latestRelease
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.latestErr != nil {
		return nil, m.latestErr
	}
	var latest *diagrams.RemoteRecord
	for _, record := range m.rows {
		record := record
		if latest == nil || record.UpdatedAt.After(latest.UpdatedAt) {
			latest = &record
		}
	}
	if latest == nil || limit <= 0 {
		return []diagrams.RemoteRecord{}, nil
	}
	return []diagrams.RemoteRecord{*latest}, nil
}

type fakeGist struct {
	document gist.Document
	err      error
	onFetch  func()
	calls    int
}

func (f *fakeGist) Fetch(_ context.Context, _ string) (gist.Document, error) {
	f.calls++
	if f.onFetch != nil {
		f.onFetch()
	}
	return f.document, f.err
}

type recordingPrompter struct {
	mu      sync.Mutex
	prompts int
	notices []Notice
}

func (p *recordingPrompter) PromptForDialect() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prompts++
}

func (p *recordingPrompter) Notify(notice Notice) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notices = append(p.notices, notice)
}

type countingHistory struct {
	mu     sync.Mutex
	resets int
}

func (h *countingHistory) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.resets++
}

type fakeQuery struct {
	mu      sync.Mutex
	shareID string
	cleared bool
}

func (q *fakeQuery) ShareID() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.shareID
}

func (q *fakeQuery) ClearShareID() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.shareID = ""
	q.cleared = true
}

type sequenceIDs struct {
	mu   sync.Mutex
	next int
}

func (s *sequenceIDs) NewID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return fmt.Sprintf("new-%d", s.next), nil
}
