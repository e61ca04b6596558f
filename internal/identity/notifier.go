package identity

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Transition is one auth-state change. SubjectID is empty for a sign-out;
// Account names the subject the change concerns in both cases.
type Transition struct {
	SubjectID string    `json:"subject_id"`
	Account   string    `json:"account"`
	At        time.Time `json:"at"`
}

// SignedIn reports whether the transition is a sign-in.
func (t Transition) SignedIn() bool {
	return t.SubjectID != ""
}

// SignedInTransition builds the transition for subjectID signing in.
func SignedInTransition(subjectID string, at time.Time) Transition {
	return Transition{SubjectID: subjectID, Account: subjectID, At: at}
}

// SignedOutTransition builds the transition for subjectID signing out.
func SignedOutTransition(subjectID string, at time.Time) Transition {
	return Transition{Account: subjectID, At: at}
}

// Notifier fans out auth transitions from one producer to many subscribers.
// Publish never blocks: a subscriber whose buffer is full loses its oldest
// undelivered transition.
type Notifier struct {
	mu      sync.Mutex
	subs    map[uint64]chan Transition
	nextID  uint64
	closed  bool
	dropped uint64
	logger  *zap.Logger
}

// NewNotifier creates a Notifier
func NewNotifier(logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{
		subs:   make(map[uint64]chan Transition),
		logger: logger,
	}
}

// Subscribe registers a consumer. The returned function unsubscribes and
// closes the channel; calling it more than once is safe. A buffer below 1 is
// raised to 1. Subscribing to a closed notifier yields a closed channel.
func (n *Notifier) Subscribe(buffer int) (<-chan Transition, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Transition, buffer)

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		close(ch)
		return ch, func() {}
	}

	id := n.nextID
	n.nextID++
	n.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			if sub, ok := n.subs[id]; ok {
				delete(n.subs, id)
				close(sub)
			}
		})
	}
}

// Publish delivers t to every current subscriber
func (n *Notifier) Publish(t Transition) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return
	}

	for id, ch := range n.subs {
		for {
			select {
			case ch <- t:
			default:
				select {
				case <-ch:
					n.dropped++
					n.logger.Debug("Dropped oldest auth transition for slow subscriber",
						zap.Uint64("subscriber", id))
				default:
				}
				continue
			}
			break
		}
	}
}

// Subscribers returns the number of active subscriptions
func (n *Notifier) Subscribers() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs)
}

// Dropped returns how many transitions were discarded for slow subscribers
func (n *Notifier) Dropped() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.dropped
}

// Close closes every subscriber channel. Later publishes are ignored.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return
	}
	n.closed = true
	for id, ch := range n.subs {
		delete(n.subs, id)
		close(ch)
	}
}
