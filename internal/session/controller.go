// Package session models interactive calendar gestures. A controller owns
// at most one live drag or resize at a time; the single optional session
// field makes that a structural property instead of a convention.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/physioflow/clinic-scheduler/internal/appointment"
	"github.com/physioflow/clinic-scheduler/internal/config"
)

var (
	ErrNoActiveSession = errors.New("no gesture in progress")
	ErrWrongGesture    = errors.New("a different gesture is in progress")
	ErrCommitInFlight  = errors.New("a commit for this appointment is still pending")
)

// Geometry is the pixel-to-time mapping supplied by the calendar
// rendering collaborator. The engine never hard-codes grid geometry.
type Geometry interface {
	PositionToTime(pixelY float64, date time.Time) time.Time
	TimeToPosition(t time.Time, date time.Time) float64
}

// Committer persists a validated move. appointment.Service satisfies it;
// CommitMove re-validates against the latest committed state before
// persisting.
type Committer interface {
	CommitMove(ctx context.Context, id uuid.UUID, newStart, newEnd time.Time) (*appointment.Appointment, error)
}

type Edge string

const (
	EdgeTop    Edge = "top"
	EdgeBottom Edge = "bottom"
)

type phase int

const (
	phaseIdle phase = iota
	phaseDragging
	phaseResizing
)

// gesture is the live state of one drag or resize from begin to end.
type gesture struct {
	phase phase
	appt  appointment.Appointment // snapshot at begin, incl. original interval
	date  time.Time               // calendar day the gesture started on

	edge          Edge    // resize only
	beginPointerY float64 // resize only: anchor for the pixel delta

	previewStart time.Time
	previewEnd   time.Time
}

// Preview is the live candidate interval shown while the pointer moves.
// It is pure arithmetic; no validation happens until the gesture ends.
type Preview struct {
	Start time.Time
	End   time.Time
}

// DropResult reports how a gesture ended. An invalid drop is not an
// error: the card reverts to its original slot silently and Reverted
// carries why, for logging only.
type DropResult struct {
	Committed   bool
	Reverted    bool
	RevertCause error // validation error that caused the revert, nil when committed
	Appointment *appointment.Appointment
}

type Controller struct {
	mu        sync.Mutex
	geom      Geometry
	committer Committer
	cfg       config.Config
	logger    zerolog.Logger

	active   *gesture
	inFlight map[uuid.UUID]bool // at-most-one-in-flight commit per appointment
}

func NewController(geom Geometry, committer Committer, cfg config.Config, logger zerolog.Logger) *Controller {
	return &Controller{
		geom:      geom,
		committer: committer,
		cfg:       cfg,
		logger:    logger,
		inFlight:  make(map[uuid.UUID]bool),
	}
}

// Cancel abandons the active gesture, if any. The appointment keeps its
// original interval.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = nil
}

// Active reports whether a gesture is in progress.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil
}

// begin installs a new gesture, ending any previous one first. It fails
// when a commit for the same appointment has not resolved yet.
func (c *Controller) begin(g *gesture) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inFlight[g.appt.ID] {
		return ErrCommitInFlight
	}
	c.active = g
	return nil
}

// take detaches the active gesture for committing so a new gesture can
// begin while results are interpreted.
func (c *Controller) take(want phase) (*gesture, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil {
		return nil, ErrNoActiveSession
	}
	if c.active.phase != want {
		return nil, ErrWrongGesture
	}
	g := c.active
	c.active = nil
	return g, nil
}

// commit runs validate-persist-apply for a finished gesture. Validation
// failures revert silently; anything else (persistence, lock contention)
// is surfaced to the caller.
func (c *Controller) commit(ctx context.Context, g *gesture, start, end time.Time) (DropResult, error) {
	c.mu.Lock()
	c.inFlight[g.appt.ID] = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.inFlight, g.appt.ID)
		c.mu.Unlock()
	}()

	moved, err := c.committer.CommitMove(ctx, g.appt.ID, start, end)
	if err != nil {
		var conflict *appointment.ConflictError
		switch {
		case errors.As(err, &conflict),
			errors.Is(err, appointment.ErrOutOfBusinessHours),
			errors.Is(err, appointment.ErrMinimumDuration):
			c.logger.Debug().
				Str("appointment_id", g.appt.ID.String()).
				Err(err).
				Msg("gesture drop rejected, reverting")
			return DropResult{Reverted: true, RevertCause: err}, nil
		default:
			return DropResult{}, err
		}
	}

	return DropResult{Committed: true, Appointment: moved}, nil
}
