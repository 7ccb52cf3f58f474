package campaign

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/plateshare/comms-service/internal/domain"
	"github.com/plateshare/comms-service/internal/worker"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeStore struct {
	mu         sync.Mutex
	campaigns  map[string]*domain.Campaign
	recipients []domain.Recipient
	resolveErr error

	finishedStatus string
	finishedSent   int
	finishedTotal  int
	statusUpdates  []string
}

func newFakeStore(c *domain.Campaign, recipients []domain.Recipient) *fakeStore {
	s := &fakeStore{campaigns: map[string]*domain.Campaign{}, recipients: recipients}
	if c != nil {
		s.campaigns[c.ID] = c
	}
	return s
}

func (s *fakeStore) GetCampaign(ctx context.Context, id string) (*domain.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.campaigns[id], nil
}

func (s *fakeStore) ClaimForSending(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.campaigns[id]
	if c.Status != domain.CampaignStatusDraft && c.Status != domain.CampaignStatusScheduled {
		return false, nil
	}
	c.Status = domain.CampaignStatusSending
	return true, nil
}

func (s *fakeStore) UpdateCampaignStatus(ctx context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusUpdates = append(s.statusUpdates, status)
	s.campaigns[id].Status = status
	return nil
}

func (s *fakeStore) FinishCampaign(ctx context.Context, id, status string, sent, total int, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finishedStatus = status
	s.finishedSent = sent
	s.finishedTotal = total
	s.campaigns[id].Status = status
	return nil
}

func (s *fakeStore) ResolveSegmentRecipients(ctx context.Context, segmentID string, limit int) ([]domain.Recipient, error) {
	if s.resolveErr != nil {
		return nil, s.resolveErr
	}
	return s.recipients, nil
}

func (s *fakeStore) DueCampaigns(ctx context.Context, limit int) ([]domain.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []domain.Campaign
	for _, c := range s.campaigns {
		if c.Status == domain.CampaignStatusScheduled {
			due = append(due, *c)
		}
	}
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// fakeBatcher fails sends to addresses listed in failTo.
type fakeBatcher struct {
	mu          sync.Mutex
	failTo      map[string]bool
	messages    []domain.Message
	concurrency int
}

func (b *fakeBatcher) DispatchBatch(ctx context.Context, messages []domain.Message, concurrency int) worker.BatchResult {
	b.mu.Lock()
	b.messages = messages
	b.concurrency = concurrency
	b.mu.Unlock()
	result := worker.BatchResult{Total: len(messages)}
	for _, m := range messages {
		r := domain.DispatchResult{Success: !b.failTo[m.To], Attempts: 1}
		if r.Success {
			result.Successful++
		} else {
			result.Failed++
			r.Error = "provider returned 400 Bad Request"
		}
		result.Results = append(result.Results, r)
	}
	return result
}

func testCampaign(status string) *domain.Campaign {
	return &domain.Campaign{
		ID:        "camp-1",
		Name:      "Weekend surplus",
		Subject:   "Hi {first_name}, food near you",
		Content:   "Hello {name}, fresh meals are waiting.",
		SegmentID: "seg-1",
		Status:    status,
	}
}

func threeRecipients() []domain.Recipient {
	return []domain.Recipient{
		{ID: "u1", Email: "ada@example.com", Name: "Ada Lovelace"},
		{ID: "u2", Email: "bob@example.com", Name: "Bob"},
		{ID: "u3", Email: "eve@example.com", Name: "Eve"},
	}
}

func TestProcessor_UsesConfiguredConcurrency(t *testing.T) {
	store := newFakeStore(testCampaign(domain.CampaignStatusDraft), threeRecipients())
	batcher := &fakeBatcher{}
	p := NewProcessor(store, batcher, nil, 25, testLogger())

	if _, err := p.Process(context.Background(), "camp-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if batcher.concurrency != 25 {
		t.Errorf("expected configured concurrency 25, got %d", batcher.concurrency)
	}

	p = NewProcessor(store, batcher, nil, 0, testLogger())
	if p.concurrency != 10 {
		t.Errorf("expected fallback concurrency 10, got %d", p.concurrency)
	}
}

func TestProcessor_AllSucceed(t *testing.T) {
	store := newFakeStore(testCampaign(domain.CampaignStatusDraft), threeRecipients())
	batcher := &fakeBatcher{}
	p := NewProcessor(store, batcher, nil, 10, testLogger())

	summary, err := p.Process(context.Background(), "camp-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.Status != domain.CampaignStatusSent {
		t.Errorf("expected status sent, got %q", summary.Status)
	}
	if summary.Sent != 3 || summary.TotalRecipients != 3 {
		t.Errorf("expected 3/3 sent, got %+v", summary)
	}
	if store.finishedStatus != domain.CampaignStatusSent || store.finishedSent != 3 {
		t.Errorf("expected persisted sent=3, got status=%q sent=%d", store.finishedStatus, store.finishedSent)
	}
}

func TestProcessor_PartialFailure(t *testing.T) {
	store := newFakeStore(testCampaign(domain.CampaignStatusDraft), threeRecipients())
	batcher := &fakeBatcher{failTo: map[string]bool{"bob@example.com": true}}
	p := NewProcessor(store, batcher, nil, 10, testLogger())

	summary, err := p.Process(context.Background(), "camp-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.Status != domain.CampaignStatusPartial {
		t.Errorf("expected status partial, got %q", summary.Status)
	}
	if summary.Sent != 2 || summary.Failed != 1 {
		t.Errorf("expected 2 sent / 1 failed, got %+v", summary)
	}
	if store.finishedSent != 2 || store.finishedTotal != 3 {
		t.Errorf("expected persisted 2/3, got %d/%d", store.finishedSent, store.finishedTotal)
	}
}

func TestProcessor_TemplateRendering(t *testing.T) {
	store := newFakeStore(testCampaign(domain.CampaignStatusDraft), threeRecipients())
	batcher := &fakeBatcher{}
	p := NewProcessor(store, batcher, nil, 10, testLogger())

	if _, err := p.Process(context.Background(), "camp-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(batcher.messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(batcher.messages))
	}
	first := batcher.messages[0]
	if first.Subject != "Hi Ada, food near you" {
		t.Errorf("unexpected rendered subject %q", first.Subject)
	}
	if !strings.Contains(first.Body, "Hello Ada Lovelace") {
		t.Errorf("unexpected rendered body %q", first.Body)
	}
	if first.CampaignID != "camp-1" {
		t.Errorf("expected campaign id on message, got %q", first.CampaignID)
	}
}

func TestProcessor_SegmentResolutionFailure(t *testing.T) {
	store := newFakeStore(testCampaign(domain.CampaignStatusDraft), nil)
	store.resolveErr = errors.New("segment service down")
	p := NewProcessor(store, &fakeBatcher{}, nil, 10, testLogger())

	_, err := p.Process(context.Background(), "camp-1")
	if err == nil {
		t.Fatal("expected error")
	}
	if store.campaigns["camp-1"].Status != domain.CampaignStatusFailed {
		t.Errorf("expected campaign marked failed, got %q", store.campaigns["camp-1"].Status)
	}
}

func TestProcessor_MissingCampaign(t *testing.T) {
	store := newFakeStore(nil, nil)
	p := NewProcessor(store, &fakeBatcher{}, nil, 10, testLogger())

	_, err := p.Process(context.Background(), "nope")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestProcessor_AlreadyClaimedSkips(t *testing.T) {
	store := newFakeStore(testCampaign(domain.CampaignStatusSending), threeRecipients())
	batcher := &fakeBatcher{}
	p := NewProcessor(store, batcher, nil, 10, testLogger())

	summary, err := p.Process(context.Background(), "camp-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batcher.messages) != 0 {
		t.Error("expected no dispatch for an already-claimed campaign")
	}
	if summary.Status != domain.CampaignStatusSending {
		t.Errorf("expected current status echoed back, got %q", summary.Status)
	}
}

func TestChecker_TriggersDueCampaigns(t *testing.T) {
	store := newFakeStore(testCampaign(domain.CampaignStatusScheduled), threeRecipients())
	second := testCampaign(domain.CampaignStatusScheduled)
	second.ID = "camp-2"
	store.campaigns["camp-2"] = second

	p := NewProcessor(store, &fakeBatcher{}, nil, 10, testLogger())
	checker := NewChecker(store, p, testLogger())

	n, err := checker.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 campaigns triggered, got %d", n)
	}
	for id, c := range store.campaigns {
		if c.Status != domain.CampaignStatusSent {
			t.Errorf("campaign %s: expected sent, got %q", id, c.Status)
		}
	}
}

func TestChecker_NoDueCampaigns(t *testing.T) {
	store := newFakeStore(testCampaign(domain.CampaignStatusDraft), nil)
	p := NewProcessor(store, &fakeBatcher{}, nil, 10, testLogger())
	checker := NewChecker(store, p, testLogger())

	n, err := checker.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 triggered, got %d", n)
	}
}
