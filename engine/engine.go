package engine

import (
	"context"
	"time"

	"citifix/metrics"
	"citifix/models"
	"citifix/notifier"

	"github.com/apex/log"
)

// ComplaintStore is the slice of the storage layer the engine drives. The
// store owns atomicity; the engine owns the policy built on top of it.
type ComplaintStore interface {
	CreateComplaint(ctx context.Context, req *models.CreateComplaintRequest, userID, userName string) (*models.Complaint, error)
	RecordVote(ctx context.Context, id, userID string) (*models.Complaint, error)
	MarkEscalated(ctx context.Context, id string) (bool, error)
	UpdateStatus(ctx context.Context, id, status string) (prior string, updated *models.Complaint, err error)
}

// UserStore credits reward points to reporters.
type UserStore interface {
	GrantPoints(ctx context.Context, userID string, points int) error
}

// EventSink receives lifecycle events for live subscribers. May be nil.
type EventSink interface {
	Publish(event models.ComplaintEvent)
}

// Engine applies the escalation and reward policy over the complaint store:
// a complaint is posted publicly at most once, when its votes first reach
// the threshold, and its reporter is rewarded at most once, when it first
// becomes resolved.
type Engine struct {
	complaints    ComplaintStore
	users         UserStore
	notifier      notifier.Notifier
	events        EventSink
	threshold     int
	rewardPoints  int
	notifyTimeout time.Duration
}

func New(complaints ComplaintStore, users UserStore, n notifier.Notifier, events EventSink,
	threshold, rewardPoints int, notifyTimeout time.Duration) *Engine {
	return &Engine{
		complaints:    complaints,
		users:         users,
		notifier:      n,
		events:        events,
		threshold:     threshold,
		rewardPoints:  rewardPoints,
		notifyTimeout: notifyTimeout,
	}
}

func (e *Engine) publish(eventType string, c *models.Complaint) {
	if e.events == nil {
		return
	}
	e.events.Publish(models.ComplaintEvent{
		Type:      eventType,
		Complaint: c,
		Timestamp: time.Now().UTC(),
	})
}

// Submit stores a new complaint and announces it.
func (e *Engine) Submit(ctx context.Context, req *models.CreateComplaintRequest, userID, userName string) (*models.Complaint, error) {
	c, err := e.complaints.CreateComplaint(ctx, req, userID, userName)
	if err != nil {
		return nil, err
	}
	metrics.ComplaintsCreatedTotal.WithLabelValues(c.Category).Inc()
	e.publish("created", c)
	return c, nil
}

// Vote records the vote and, when the counter first reaches the threshold,
// escalates the complaint. The conditional flag update in the store decides
// a single winner among concurrent crossers, so the notification is posted
// at most once no matter how many voters arrive together.
//
// A notification failure is logged and swallowed: the escalated flag stays
// set and no retry happens.
func (e *Engine) Vote(ctx context.Context, complaintID, userID string) (*models.Complaint, error) {
	c, err := e.complaints.RecordVote(ctx, complaintID, userID)
	if err != nil {
		return nil, err
	}
	metrics.VotesTotal.Inc()

	if c.Votes < e.threshold || c.Escalated {
		return c, nil
	}

	won, err := e.complaints.MarkEscalated(ctx, complaintID)
	if err != nil {
		log.Errorf("Failed to mark complaint %s escalated: %v", complaintID, err)
		return c, nil
	}
	if !won {
		return c, nil
	}

	c.Escalated = true
	metrics.EscalationsTotal.Inc()
	log.Infof("Complaint %s reached %d votes, escalating", complaintID, c.Votes)

	notifyCtx, cancel := context.WithTimeout(context.Background(), e.notifyTimeout)
	defer cancel()
	caption := notifier.BuildCaption(c.Description, c.City)
	if err := e.notifier.Post(notifyCtx, c.Image, caption); err != nil {
		log.Errorf("Failed to post escalation for complaint %s: %v", complaintID, err)
		metrics.NotifyErrorTotal.Inc()
	}

	e.publish("escalated", c)
	return c, nil
}

// SetStatus applies an admin status change. On the first transition into
// resolved the reporter is credited once; repeating the resolved status is
// accepted but grants nothing.
func (e *Engine) SetStatus(ctx context.Context, complaintID, status string) (*models.Complaint, error) {
	prior, updated, err := e.complaints.UpdateStatus(ctx, complaintID, status)
	if err != nil {
		return nil, err
	}

	if status != models.StatusResolved || prior == models.StatusResolved {
		return updated, nil
	}

	metrics.ResolutionsTotal.Inc()
	if err := e.users.GrantPoints(ctx, updated.UserID, e.rewardPoints); err != nil {
		// The complaint is already resolved. Losing the grant is logged
		// rather than unwinding the resolution.
		log.Errorf("Failed to grant points to user %s for complaint %s: %v",
			updated.UserID, complaintID, err)
	}
	e.publish("resolved", updated)
	return updated, nil
}
