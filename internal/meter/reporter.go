package meter

import (
	"time"

	"github.com/google/uuid"
)

// Snapshot is one polled sample of playback state, tagged with the
// playback generation's correlation id for log correlation across a
// restart or seek.
type Snapshot struct {
	Time         time.Time
	Volume       float64
	Duration     time.Duration
	Playing      bool
	GenerationID uuid.UUID
}

func (s Snapshot) equalIgnoringTime(o Snapshot) bool {
	return s.Volume == o.Volume && s.Duration == o.Duration && s.Playing == o.Playing && s.GenerationID == o.GenerationID
}

// PollFunc produces the current snapshot; callers typically close over a
// player.Controller.
type PollFunc func() Snapshot

// Reporter polls a PollFunc on a fixed interval and forwards snapshots to
// a user callback, suppressing consecutive duplicates so a UI subscriber
// isn't flooded with no-op updates while paused or idle.
type Reporter struct {
	interval time.Duration
	poll     PollFunc
	onReport func(Snapshot)
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewReporter creates a reporter that is not yet running; call Start.
func NewReporter(interval time.Duration, poll PollFunc, onReport func(Snapshot)) *Reporter {
	return &Reporter{
		interval: interval,
		poll:     poll,
		onReport: onReport,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins polling on a new goroutine. Safe to call once.
func (r *Reporter) Start() {
	go r.run()
}

func (r *Reporter) run() {
	defer close(r.doneCh)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	var last Snapshot
	haveLast := false
	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			snap := r.poll()
			if haveLast && snap.equalIgnoringTime(last) {
				continue
			}
			last = snap
			haveLast = true
			r.onReport(snap)
		}
	}
}

// Stop requests the reporter goroutine exit and blocks until it has.
func (r *Reporter) Stop() {
	close(r.stopCh)
	<-r.doneCh
}
