package matching

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hacknation/odnalezione-zguby/service-m-matcher/internal/models"
)

// memReportStore is an in-memory ReportStore
type memReportStore struct {
	mu      sync.Mutex
	reports map[string]*models.Report
	order   []string

	findErr         error
	setEmbeddingErr error
	appendErr       error
	setEmbedding    int
}

func newMemReportStore(reports ...*models.Report) *memReportStore {
	s := &memReportStore{reports: make(map[string]*models.Report)}
	for _, r := range reports {
		s.put(r)
	}
	return s
}

func (s *memReportStore) put(r *models.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reports[r.ID]; !ok {
		s.order = append(s.order, r.ID)
	}
	s.reports[r.ID] = r
}

func (s *memReportStore) get(id string) *models.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reports[id]
}

func (s *memReportStore) FindByID(_ context.Context, id string) (*models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	r, ok := s.reports[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *memReportStore) FindCandidates(_ context.Context, q models.CandidateQuery) ([]*models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Report
	for _, id := range s.order {
		r := s.reports[id]
		if r.Kind != q.Kind || r.Status != q.Status || r.Category != q.Category || r.ID == q.ExcludeID {
			continue
		}
		cp := *r
		out = append(out, &cp)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

func (s *memReportStore) SetEmbedding(_ context.Context, id string, embedding []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setEmbedding++
	if s.setEmbeddingErr != nil {
		return s.setEmbeddingErr
	}
	r, ok := s.reports[id]
	if !ok {
		return models.ErrNotFound
	}
	r.Embedding = append([]float64(nil), embedding...)
	return nil
}

func (s *memReportStore) AppendLinkedCandidate(_ context.Context, id string, link models.LinkedCandidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	r, ok := s.reports[id]
	if !ok {
		return models.ErrNotFound
	}
	for _, existing := range r.LinkedCandidates {
		if existing.ReportID == link.ReportID {
			return nil
		}
	}
	r.LinkedCandidates = append(r.LinkedCandidates, link)
	return nil
}

type pairKey struct{ lost, found string }

// memMatchStore is an in-memory MatchStore
type memMatchStore struct {
	mu     sync.Mutex
	byPair map[pairKey]*models.Match
	byID   map[string]*models.Match

	insertErr func(m *models.Match) error
	updateErr error
	inserts   int
	updates   int
}

func newMemMatchStore() *memMatchStore {
	return &memMatchStore{
		byPair: make(map[pairKey]*models.Match),
		byID:   make(map[string]*models.Match),
	}
}

func (s *memMatchStore) FindByPair(_ context.Context, lost, found string) (*models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byPair[pairKey{lost, found}]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *memMatchStore) Insert(_ context.Context, m *models.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		if err := s.insertErr(m); err != nil {
			return err
		}
	}
	key := pairKey{m.LostReportID, m.FoundReportID}
	if _, ok := s.byPair[key]; ok {
		return models.ErrDuplicate
	}
	cp := *m
	s.byPair[key] = &cp
	s.byID[m.ID] = &cp
	s.inserts++
	return nil
}

func (s *memMatchStore) UpdateScore(_ context.Context, id string, u models.ScoreUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return false, s.updateErr
	}
	m, ok := s.byID[id]
	if !ok || u.Score <= m.Score {
		return false, nil
	}
	m.Score = u.Score
	m.Confidence = u.Confidence
	m.ScoreBreakdown = u.ScoreBreakdown
	m.MatchReasons = u.MatchReasons
	m.UpdatedAt = u.UpdatedAt
	s.updates++
	return true, nil
}

func (s *memMatchStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byPair)
}

// seed stores a match directly, bypassing Insert bookkeeping
func (s *memMatchStore) seed(m *models.Match) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *m
	s.byPair[pairKey{m.LostReportID, m.FoundReportID}] = &cp
	s.byID[m.ID] = &cp
}

// stubEmbedder returns a fixed vector and counts calls
type stubEmbedder struct {
	mu     sync.Mutex
	vector []float64
	calls  int
}

func (e *stubEmbedder) Embed(_ context.Context, _ *models.Report) []float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	return e.vector
}

type recordingIndex struct {
	mu      sync.Mutex
	vectors map[string][]float64
	err     error
}

func (i *recordingIndex) UpsertReportVector(_ context.Context, r *models.Report, v []float64) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.err != nil {
		return i.err
	}
	if i.vectors == nil {
		i.vectors = make(map[string][]float64)
	}
	i.vectors[r.ID] = v
	return nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.MatchCreatedEvent
	err    error
}

func (n *recordingNotifier) PublishMatchCreated(_ context.Context, e models.MatchCreatedEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
	return n.err
}

var errStoreDown = errors.New("store down")

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func at(d time.Duration) *time.Time {
	t := baseTime.Add(d)
	return &t
}

func newReport(id string, kind models.ReportKind) *models.Report {
	return &models.Report{
		ID:        id,
		Kind:      kind,
		OwnerID:   "owner-" + id,
		Title:     "item " + id,
		Category:  "electronics",
		Status:    models.ReportStatusActive,
		EventDate: at(0),
		CreatedAt: baseTime,
		UpdatedAt: baseTime,
	}
}
