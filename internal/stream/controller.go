// Package stream implements the stream controller: the component that
// owns one upstream connection per stream kind and orchestrates
// connect, reconnect, idle-disconnect, backoff, and fan-out to
// subscribers.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/jodal/patsgw/internal/config"
	"github.com/jodal/patsgw/internal/eventfilter"
	"github.com/jodal/patsgw/internal/framing"
	"github.com/jodal/patsgw/internal/httpkit"
	"github.com/jodal/patsgw/internal/registry"
)

// State is one of the controller's connection states (spec.md §3/§4.4).
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateDraining
	StateBackoff
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDraining:
		return "draining"
	case StateBackoff:
		return "backoff"
	default:
		return "unknown"
	}
}

// ErrStopped is returned by Subscribe once the controller has been
// stopped.
var ErrStopped = errors.New("stream: controller stopped")

// Handle is the subscriber-facing view of a subscription: a read-only
// queue plus a self-unsubscribe operation. It holds only a weak
// back-reference (the controller pointer and an id) rather than the
// subscription itself, so the controller remains sole owner of the
// subscription's lifecycle (spec.md §9, design note on callback-based
// self-unsubscribe).
type Handle struct {
	ID    string
	Queue <-chan eventfilter.Event

	ctrl *Controller
}

// Unsubscribe removes this subscription from its controller. Safe to
// call more than once; calls after the first are no-ops.
func (h *Handle) Unsubscribe() {
	h.ctrl.unsubscribe(h.ID)
}

// Controller owns one upstream connection for a single Kind and
// orchestrates its entire lifecycle. All state transitions, registry
// mutations, and fan-out happen on a single goroutine (run), so no
// locking is needed beyond what Registry itself provides for
// Snapshot/CurrentKeywords.
type Controller struct {
	kind             Kind
	client           *http.Client
	allowedLanguages []string
	tun              config.Tunables
	logger           *slog.Logger

	reg *registry.Registry

	subscribeCh   chan subscribeReq
	unsubscribeCh chan string
	stateQueryCh  chan chan State
	stopCh        chan struct{}
	stoppedCh     chan struct{}
}

type subscribeReq struct {
	keywords []string
	resp     chan subscribeResult
}

type subscribeResult struct {
	sub *registry.Subscription
	err error
}

// NewController starts a controller for kind and returns it ready to
// accept Subscribe calls. client is the process-wide authenticated
// HTTP client (httpkit.NewClient with an OAuth1 signer); allowedLanguages
// and tun come from Config.
func NewController(kind Kind, client *http.Client, allowedLanguages []string, tun config.Tunables, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		kind:             kind,
		client:           client,
		allowedLanguages: allowedLanguages,
		tun:              tun,
		logger:           logger,
		reg:              registry.NewRegistry(),
		subscribeCh:      make(chan subscribeReq),
		unsubscribeCh:    make(chan string),
		stateQueryCh:     make(chan chan State),
		stopCh:           make(chan struct{}),
		stoppedCh:        make(chan struct{}),
	}
	go c.run()
	return c
}

// Subscribe adds a new subscriber. For the sample kind, keywords must
// be empty; for the filter kind, it must be non-empty.
func (c *Controller) Subscribe(keywords []string) (*Handle, error) {
	if c.kind.RequiresKeywords && len(keywords) == 0 {
		return nil, fmt.Errorf("stream: %s subscribe requires at least one keyword", c.kind.Name)
	}
	if !c.kind.RequiresKeywords && len(keywords) != 0 {
		return nil, fmt.Errorf("stream: %s subscribe must not specify keywords", c.kind.Name)
	}

	resp := make(chan subscribeResult, 1)
	select {
	case c.subscribeCh <- subscribeReq{keywords: keywords, resp: resp}:
	case <-c.stoppedCh:
		return nil, ErrStopped
	}

	select {
	case r := <-resp:
		if r.err != nil {
			return nil, r.err
		}
		return &Handle{ID: r.sub.ID, Queue: r.sub.Queue, ctrl: c}, nil
	case <-c.stoppedCh:
		return nil, ErrStopped
	}
}

func (c *Controller) unsubscribe(id string) {
	select {
	case c.unsubscribeCh <- id:
	case <-c.stoppedCh:
	}
}

// State reports the controller's current connection state, for tests
// and diagnostics. It round-trips through the actor goroutine so it
// never races with a concurrent transition.
func (c *Controller) State() State {
	resp := make(chan State, 1)
	select {
	case c.stateQueryCh <- resp:
	case <-c.stoppedCh:
		return StateIdle
	}
	select {
	case s := <-resp:
		return s
	case <-c.stoppedCh:
		return StateIdle
	}
}

// Stop shuts down the controller and its upstream connection, if any.
func (c *Controller) Stop() {
	select {
	case <-c.stoppedCh:
		return
	default:
	}
	close(c.stopCh)
	<-c.stoppedCh
}

// streamMsg is the tagged union of everything the connection goroutine
// (connectAndRead) reports back to run(). Exactly one of its "kind"
// fields is meaningful per message.
type streamMsg struct {
	connected   bool
	rateLimited bool
	hasEvent    bool
	event       eventfilter.Event
	activity    bool
	err         error
}

// run is the controller's single actor goroutine: every state
// transition, registry mutation, and fan-out decision happens here,
// so none of it needs its own lock.
func (c *Controller) run() {
	defer close(c.stoppedCh)

	state := StateIdle
	var (
		connectedKeywords []string
		pendingKeywords   []string
		rateLimitAttempt  int
		errorBackoff      time.Duration

		connCancel context.CancelFunc
		connDone   chan struct{}
		frameCh    chan streamMsg

		idleTimer *time.Timer
		idleC     <-chan time.Time

		backoffTimer *time.Timer
		backoffC     <-chan time.Time

		watchdogTimer *time.Timer
		watchdogC     <-chan time.Time
	)

	stopConn := func() {
		if connCancel != nil {
			connCancel()
			<-connDone
			connCancel = nil
			connDone = nil
		}
		// Disable the frameCh select case: any message the just-exited
		// connection goroutine managed to buffer before cancellation
		// belongs to a connection we're discarding, not a live one.
		frameCh = nil
		if watchdogTimer != nil {
			watchdogTimer.Stop()
			watchdogTimer = nil
			watchdogC = nil
		}
	}

	armIdleTimer := func() {
		idleTimer = time.NewTimer(c.tun.IdleTimeout)
		idleC = idleTimer.C
	}
	disarmIdleTimer := func() {
		if idleTimer != nil {
			idleTimer.Stop()
			idleTimer = nil
			idleC = nil
		}
	}

	disarmBackoff := func() {
		if backoffTimer != nil {
			backoffTimer.Stop()
			backoffTimer = nil
			backoffC = nil
		}
	}

	scheduleConnect := func() {
		state = StateConnecting
		pendingKeywords = c.reg.CurrentKeywords()

		ctx, cancel := context.WithCancel(context.Background())
		connCancel = cancel
		done := make(chan struct{})
		connDone = done
		fc := make(chan streamMsg, 32)
		frameCh = fc

		go c.connectAndRead(ctx, pendingKeywords, fc, done)
	}

	enterBackoff := func(d time.Duration) {
		state = StateBackoff
		backoffTimer = time.NewTimer(d)
		backoffC = backoffTimer.C
	}

	maybeReconnectOnKeywordChange := func() {
		if state != StateConnected {
			return
		}
		newKW := c.reg.CurrentKeywords()
		if equalStrings(newKW, connectedKeywords) {
			return
		}
		state = StateDraining
		stopConn()
		scheduleConnect()
	}

	for {
		select {
		case <-c.stopCh:
			stopConn()
			return

		case resp := <-c.stateQueryCh:
			resp <- state

		case req := <-c.subscribeCh:
			sub := registry.New(req.keywords, c.tun.QueueCapacity)
			c.reg.Add(sub)
			req.resp <- subscribeResult{sub: sub}

			disarmIdleTimer()

			switch state {
			case StateIdle:
				scheduleConnect()
			case StateBackoff:
				disarmBackoff()
				scheduleConnect()
			case StateConnected:
				maybeReconnectOnKeywordChange()
			}
			// Connecting/Draining: the in-flight connect already reads
			// current_keywords() fresh when it lands; nothing to do.

		case id := <-c.unsubscribeCh:
			empty := c.reg.Remove(id)
			if empty {
				armIdleTimer()
			} else {
				maybeReconnectOnKeywordChange()
			}

		case <-idleC:
			idleC = nil
			if c.reg.Len() == 0 {
				stopConn()
				state = StateIdle
			}

		case <-backoffC:
			backoffC = nil
			if c.reg.Len() == 0 {
				state = StateIdle
			} else {
				scheduleConnect()
			}

		case <-watchdogC:
			c.logger.Warn("read watchdog expired, reconnecting", "kind", c.kind.Name)
			watchdogC = nil
			stopConn()
			if c.reg.Len() == 0 {
				state = StateIdle
			} else {
				state = StateConnecting
				scheduleConnect()
			}

		case msg, ok := <-frameCh:
			if !ok {
				continue
			}

			if watchdogTimer != nil && (msg.activity || msg.hasEvent || msg.connected) {
				watchdogTimer.Reset(c.tun.WatchdogTimeout)
			}

			switch {
			case msg.connected:
				state = StateConnected
				connectedKeywords = pendingKeywords
				rateLimitAttempt = 0
				errorBackoff = 0
				watchdogTimer = time.NewTimer(c.tun.WatchdogTimeout)
				watchdogC = watchdogTimer.C
				c.logger.Info("stream connected", "kind", c.kind.Name, "keywords", connectedKeywords)
				// The registry may have changed while this connect was
				// in flight; re-check now rather than waiting for the
				// next subscribe/unsubscribe to notice.
				maybeReconnectOnKeywordChange()

			case msg.rateLimited:
				rateLimitAttempt++
				d := c.tun.BackoffFor(rateLimitAttempt)
				c.logger.Warn("upstream rate limited", "kind", c.kind.Name, "attempt", rateLimitAttempt, "backoff", d)
				stopConn()
				enterBackoff(d)

			case msg.hasEvent:
				c.fanout(msg.event)

			case msg.activity:
				// watchdog already reset above; no other action.

			case msg.err != nil:
				stopConn()
				if errors.Is(msg.err, io.EOF) {
					c.logger.Info("upstream closed connection", "kind", c.kind.Name)
				} else {
					c.logger.Warn("upstream connection error", "kind", c.kind.Name, "error", msg.err)
				}
				if c.reg.Len() == 0 {
					state = StateIdle
				} else {
					if errorBackoff == 0 {
						errorBackoff = c.tun.ErrorBackoffInitial
					} else {
						errorBackoff *= 2
						if errorBackoff > c.tun.ErrorBackoffMax {
							errorBackoff = c.tun.ErrorBackoffMax
						}
					}
					enterBackoff(errorBackoff)
				}
			}
		}
	}
}

// fanout applies the kind's broadcast predicate and enqueues the event
// on every matching subscriber, dropping it for any subscriber whose
// queue is full (spec.md §4.5's sole loss mode).
func (c *Controller) fanout(e eventfilter.Event) {
	text := eventfilter.Text(e)
	for _, sub := range c.reg.Snapshot() {
		if !c.kind.Matches(text, sub.Keywords) {
			continue
		}
		select {
		case sub.Queue <- e:
		default:
			c.logger.Warn("dropping event for slow subscriber", "kind", c.kind.Name, "subscription", sub.ID)
		}
	}
}

// buildRequest constructs the authenticated connect request: always
// delimited=length, plus track=<keywords> for kinds that require it.
// Parameters are carried in the query string for both GET and POST so
// the OAuth1 signer (which only inspects req.URL.Query()) signs them
// correctly regardless of method.
func (c *Controller) buildRequest(ctx context.Context, keywords []string) (*http.Request, error) {
	q := url.Values{}
	q.Set("delimited", "length")
	if c.kind.RequiresKeywords {
		sorted := append([]string(nil), keywords...)
		sort.Strings(sorted)
		q.Set("track", strings.Join(sorted, ","))
	}

	u, err := url.Parse(c.kind.URL)
	if err != nil {
		return nil, fmt.Errorf("stream: parse upstream URL: %w", err)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, c.kind.Method, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("stream: build request: %w", err)
	}
	return req, nil
}

// connectAndRead issues the upstream connect request and, on success,
// reads frames until the connection ends or ctx is cancelled. It runs
// on its own goroutine so run()'s actor loop never blocks on network
// I/O; every send to out races against ctx.Done() so cancellation
// (via stopConn) always unblocks it.
func (c *Controller) connectAndRead(ctx context.Context, keywords []string, out chan<- streamMsg, done chan<- struct{}) {
	defer close(done)

	req, err := c.buildRequest(ctx, keywords)
	if err != nil {
		send(ctx, out, streamMsg{err: err})
		return
	}

	resp, err := c.client.Do(req)
	if err != nil {
		send(ctx, out, streamMsg{err: err})
		return
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		if !send(ctx, out, streamMsg{connected: true}) {
			httpkit.DrainAndClose(resp.Body, 4096)
			return
		}
	case resp.StatusCode == 420:
		httpkit.DrainAndClose(resp.Body, 4096)
		send(ctx, out, streamMsg{rateLimited: true})
		return
	default:
		body := httpkit.ReadErrorBody(resp.Body, 2048)
		send(ctx, out, streamMsg{err: fmt.Errorf("stream: upstream status %d: %s", resp.StatusCode, body)})
		return
	}
	defer resp.Body.Close()

	fr := framing.NewReader(resp.Body)
	fr.OnActivity(func() {
		select {
		case out <- streamMsg{activity: true}:
		default:
			// Buffer full or not yet drained: a later frame or error
			// will reset the watchdog anyway, so dropping is safe.
		}
	})

	for {
		payload, err := fr.Next()
		if err != nil {
			send(ctx, out, streamMsg{err: err})
			return
		}
		if len(payload) == 0 {
			continue // zero-length frame: spec.md §8 boundary case, no event
		}

		ev, err := eventfilter.Decode(payload)
		if err != nil {
			c.logger.Warn("dropping malformed frame", "kind", c.kind.Name, "error", err)
			continue
		}
		if !eventfilter.Allow(ev, c.allowedLanguages) {
			continue
		}
		if !send(ctx, out, streamMsg{hasEvent: true, event: ev}) {
			return
		}
	}
}

// send delivers msg on out unless ctx is cancelled first. Returns
// false if the send was abandoned due to cancellation.
func send(ctx context.Context, out chan<- streamMsg, msg streamMsg) bool {
	select {
	case out <- msg:
		return true
	case <-ctx.Done():
		return false
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
