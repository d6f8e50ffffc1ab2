package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"citifix/database"
	"citifix/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore mimics the storage layer's transactional guarantees in memory so
// the policy around it can be exercised, including under concurrency.
type memStore struct {
	mu         sync.Mutex
	complaints map[string]*models.Complaint
	voters     map[string]map[string]bool
}

func newMemStore() *memStore {
	return &memStore{
		complaints: make(map[string]*models.Complaint),
		voters:     make(map[string]map[string]bool),
	}
}

func (s *memStore) add(c *models.Complaint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.complaints[c.ID] = c
	s.voters[c.ID] = make(map[string]bool)
}

func (s *memStore) CreateComplaint(ctx context.Context, req *models.CreateComplaintRequest, userID, userName string) (*models.Complaint, error) {
	c := &models.Complaint{
		ID:          fmt.Sprintf("c-%d", len(s.complaints)+1),
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Status:      models.StatusOpen,
		Location:    req.Location,
		City:        req.City,
		Image:       req.Image,
		UserID:      userID,
		UserName:    userName,
	}
	s.add(c)
	return c, nil
}

func (s *memStore) RecordVote(ctx context.Context, id, userID string) (*models.Complaint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.complaints[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	if s.voters[id][userID] {
		return nil, database.ErrAlreadyVoted
	}
	s.voters[id][userID] = true
	c.Votes++
	snapshot := *c
	return &snapshot, nil
}

func (s *memStore) MarkEscalated(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.complaints[id]
	if !ok || c.Escalated {
		return false, nil
	}
	c.Escalated = true
	c.EscalatedAt = time.Now().UTC()
	return true, nil
}

func (s *memStore) UpdateStatus(ctx context.Context, id, status string) (string, *models.Complaint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.complaints[id]
	if !ok {
		return "", nil, database.ErrNotFound
	}
	prior := c.Status
	if prior == models.StatusResolved && status != models.StatusResolved {
		return "", nil, database.ErrInvalidTransition
	}
	c.Status = status
	snapshot := *c
	return prior, &snapshot, nil
}

type memUsers struct {
	mu     sync.Mutex
	grants map[string]int
	calls  int
	err    error
}

func newMemUsers() *memUsers {
	return &memUsers{grants: make(map[string]int)}
}

func (u *memUsers) GrantPoints(ctx context.Context, userID string, points int) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.err != nil {
		return u.err
	}
	u.calls++
	u.grants[userID] += points
	return nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	captions []string
	err      error
}

func (n *recordingNotifier) Post(ctx context.Context, imageRef, caption string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.captions = append(n.captions, caption)
	return nil
}

func (n *recordingNotifier) posts() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.captions)
}

type recordingSink struct {
	mu     sync.Mutex
	events []models.ComplaintEvent
}

func (s *recordingSink) Publish(event models.ComplaintEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Type)
	}
	return out
}

func newTestEngine(threshold int) (*Engine, *memStore, *memUsers, *recordingNotifier, *recordingSink) {
	store := newMemStore()
	users := newMemUsers()
	n := &recordingNotifier{}
	sink := &recordingSink{}
	e := New(store, users, n, sink, threshold, 10, time.Second)
	return e, store, users, n, sink
}

func seedComplaint(store *memStore, votes int) *models.Complaint {
	c := &models.Complaint{
		ID:          "c-1",
		Title:       "Pothole on Main Street",
		Description: "deep crack in the road",
		Category:    "Roads",
		Status:      models.StatusOpen,
		City:        "Kolkata",
		UserID:      "reporter-1",
		Votes:       votes,
	}
	store.add(c)
	return c
}

func TestVoteBelowThresholdDoesNotNotify(t *testing.T) {
	e, store, _, n, _ := newTestEngine(20)
	seedComplaint(store, 0)

	c, err := e.Vote(context.Background(), "c-1", "voter-1")
	require.NoError(t, err)
	assert.Equal(t, 1, c.Votes)
	assert.False(t, c.Escalated)
	assert.Equal(t, 0, n.posts())
}

func TestVoteCrossingThresholdNotifiesOnce(t *testing.T) {
	e, store, _, n, sink := newTestEngine(20)
	seedComplaint(store, 19)

	// The vote that reaches 20 escalates.
	c, err := e.Vote(context.Background(), "c-1", "voter-20")
	require.NoError(t, err)
	assert.Equal(t, 20, c.Votes)
	assert.True(t, c.Escalated)
	require.Equal(t, 1, n.posts())
	assert.Equal(t,
		"Citizen Report: deep crack in the road\nPlease take action. @KolkataPolice @kmc_kolkata",
		n.captions[0])
	assert.Contains(t, sink.types(), "escalated")

	// The vote after it does not fire again.
	c, err = e.Vote(context.Background(), "c-1", "voter-21")
	require.NoError(t, err)
	assert.Equal(t, 21, c.Votes)
	assert.Equal(t, 1, n.posts())
}

func TestConcurrentThresholdCrossingSingleWinner(t *testing.T) {
	e, store, _, n, _ := newTestEngine(20)
	seedComplaint(store, 15)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := e.Vote(context.Background(), "c-1", fmt.Sprintf("voter-%d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, n.posts())
}

func TestNotifierFailureLeavesEscalationStanding(t *testing.T) {
	e, store, _, n, _ := newTestEngine(20)
	seedComplaint(store, 19)
	n.err = errors.New("channel unavailable")

	// The failure is swallowed and the flag stays set.
	c, err := e.Vote(context.Background(), "c-1", "voter-20")
	require.NoError(t, err)
	assert.True(t, c.Escalated)

	// No retry on the next vote.
	n.err = nil
	_, err = e.Vote(context.Background(), "c-1", "voter-21")
	require.NoError(t, err)
	assert.Equal(t, 0, n.posts())
}

func TestDuplicateVoteRejected(t *testing.T) {
	e, store, _, _, _ := newTestEngine(20)
	seedComplaint(store, 0)

	_, err := e.Vote(context.Background(), "c-1", "voter-1")
	require.NoError(t, err)
	_, err = e.Vote(context.Background(), "c-1", "voter-1")
	assert.ErrorIs(t, err, database.ErrAlreadyVoted)

	c, err := e.Vote(context.Background(), "c-1", "voter-2")
	require.NoError(t, err)
	assert.Equal(t, 2, c.Votes)
}

func TestResolveGrantsRewardOnce(t *testing.T) {
	e, store, users, _, sink := newTestEngine(20)
	seedComplaint(store, 5)

	c, err := e.SetStatus(context.Background(), "c-1", models.StatusResolved)
	require.NoError(t, err)
	assert.Equal(t, models.StatusResolved, c.Status)
	assert.Equal(t, 10, users.grants["reporter-1"])
	assert.Equal(t, 1, users.calls)
	assert.Contains(t, sink.types(), "resolved")

	// Resolving again is a no-op for the reward.
	_, err = e.SetStatus(context.Background(), "c-1", models.StatusResolved)
	require.NoError(t, err)
	assert.Equal(t, 1, users.calls)
}

func TestResolvedIsTerminal(t *testing.T) {
	e, store, _, _, _ := newTestEngine(20)
	seedComplaint(store, 5)

	_, err := e.SetStatus(context.Background(), "c-1", models.StatusResolved)
	require.NoError(t, err)

	_, err = e.SetStatus(context.Background(), "c-1", models.StatusOpen)
	assert.ErrorIs(t, err, database.ErrInvalidTransition)
}

func TestAssignThenResolve(t *testing.T) {
	e, store, users, _, _ := newTestEngine(20)
	seedComplaint(store, 5)

	c, err := e.SetStatus(context.Background(), "c-1", models.StatusAssigned)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAssigned, c.Status)
	assert.Equal(t, 0, users.calls)

	c, err = e.SetStatus(context.Background(), "c-1", models.StatusResolved)
	require.NoError(t, err)
	assert.Equal(t, models.StatusResolved, c.Status)
	assert.Equal(t, 1, users.calls)
}
