package timeclock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrAlreadyClockedIn indicates the operator has an open entry.
var ErrAlreadyClockedIn = errors.New("timeclock: already clocked in")

// ErrNotClockedIn indicates no open entry for the operator.
var ErrNotClockedIn = errors.New("timeclock: not clocked in")

// ErrBreakOpen indicates a break is already in progress.
var ErrBreakOpen = errors.New("timeclock: break already started")

// ErrNoBreakOpen indicates no break is in progress.
var ErrNoBreakOpen = errors.New("timeclock: no break in progress")

// Break is a completed or in-progress break within an entry.
type Break struct {
	StartedAt time.Time  `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
}

// Entry is one clock-in to clock-out span for an operator.
type Entry struct {
	ID         uuid.UUID  `json:"id"`
	OperatorID string     `json:"operatorId"`
	ClockedIn  time.Time  `json:"clockedIn"`
	ClockedOut *time.Time `json:"clockedOut,omitempty"`
	Breaks     []Break    `json:"breaks,omitempty"`
}

// OnBreak reports whether the entry has an open break.
func (e Entry) OnBreak() bool {
	n := len(e.Breaks)
	return n > 0 && e.Breaks[n-1].EndedAt == nil
}

// Worked returns time on the clock minus completed breaks, as of now.
// An open break counts up to now.
func (e Entry) Worked(now time.Time) time.Duration {
	end := now
	if e.ClockedOut != nil {
		end = *e.ClockedOut
	}
	worked := end.Sub(e.ClockedIn)
	for _, b := range e.Breaks {
		bEnd := now
		if b.EndedAt != nil {
			bEnd = *b.EndedAt
		}
		worked -= bEnd.Sub(b.StartedAt)
	}
	if worked < 0 {
		worked = 0
	}
	return worked
}

// Clock tracks one open entry per operator plus closed history.
type Clock struct {
	Now func() time.Time

	mu     sync.Mutex
	open   map[string]*Entry
	closed []Entry
}

func NewClock() *Clock {
	return &Clock{open: make(map[string]*Entry)}
}

func (c *Clock) now() time.Time {
	if c.Now != nil {
		return c.Now().UTC()
	}
	return time.Now().UTC()
}

// ClockIn opens an entry for the operator.
func (c *Clock) ClockIn(_ context.Context, operatorID string) (Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.open[operatorID]; ok {
		return Entry{}, ErrAlreadyClockedIn
	}
	e := &Entry{
		ID:         uuid.New(),
		OperatorID: operatorID,
		ClockedIn:  c.now(),
	}
	c.open[operatorID] = e
	return cloneEntry(e), nil
}

// ClockOut closes the operator's entry, ending any open break first.
func (c *Clock) ClockOut(_ context.Context, operatorID string) (Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.open[operatorID]
	if !ok {
		return Entry{}, ErrNotClockedIn
	}
	now := c.now()
	if e.OnBreak() {
		e.Breaks[len(e.Breaks)-1].EndedAt = &now
	}
	e.ClockedOut = &now
	delete(c.open, operatorID)
	c.closed = append(c.closed, cloneEntry(e))
	return cloneEntry(e), nil
}

// StartBreak opens a break on the operator's entry.
func (c *Clock) StartBreak(_ context.Context, operatorID string) (Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.open[operatorID]
	if !ok {
		return Entry{}, ErrNotClockedIn
	}
	if e.OnBreak() {
		return Entry{}, ErrBreakOpen
	}
	e.Breaks = append(e.Breaks, Break{StartedAt: c.now()})
	return cloneEntry(e), nil
}

// EndBreak closes the open break.
func (c *Clock) EndBreak(_ context.Context, operatorID string) (Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.open[operatorID]
	if !ok {
		return Entry{}, ErrNotClockedIn
	}
	if !e.OnBreak() {
		return Entry{}, ErrNoBreakOpen
	}
	now := c.now()
	e.Breaks[len(e.Breaks)-1].EndedAt = &now
	return cloneEntry(e), nil
}

// Current returns the operator's open entry.
func (c *Clock) Current(_ context.Context, operatorID string) (Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.open[operatorID]
	if !ok {
		return Entry{}, ErrNotClockedIn
	}
	return cloneEntry(e), nil
}

// History returns closed entries, oldest first.
func (c *Clock) History(_ context.Context) []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, len(c.closed))
	copy(out, c.closed)
	return out
}

func cloneEntry(e *Entry) Entry {
	cp := *e
	cp.Breaks = append([]Break(nil), e.Breaks...)
	return cp
}
