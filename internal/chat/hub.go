// Package chat fans persisted chat messages out to the connections
// subscribed to a project's room.
package chat

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/good-yellow-bee/projectdesk/internal/metrics"
	"github.com/good-yellow-bee/projectdesk/internal/models"
)

// DefaultBuffer is the number of undelivered messages a subscriber may hold
// before further messages to it are dropped.
const DefaultBuffer = 64

// ErrHubClosed is returned by calls made after Run has returned.
var ErrHubClosed = errors.New("chat hub closed")

// Subscriber is one connection's view of the hub. It may be joined to any
// number of rooms and receives their messages on C.
type Subscriber struct {
	id   uint64
	send chan *models.ChatMessage

	// closed is only touched by the Run goroutine.
	closed bool
}

// ID returns a process-unique identifier for logging.
func (s *Subscriber) ID() uint64 {
	return s.id
}

// C returns the delivery channel. It is closed when the subscriber is removed.
func (s *Subscriber) C() <-chan *models.ChatMessage {
	return s.send
}

type membership struct {
	sub       *Subscriber
	projectID int64
	join      bool
	done      chan struct{}
}

type countReq struct {
	projectID int64
	reply     chan int
}

// Hub owns the room registry. All registry state is confined to the Run
// goroutine; other goroutines talk to it through channels.
type Hub struct {
	buffer int
	nextID atomic.Uint64

	memberships chan membership
	removals    chan *Subscriber
	broadcasts  chan *models.ChatMessage
	counts      chan countReq
	done        chan struct{}
}

// NewHub creates a hub. buffer <= 0 selects DefaultBuffer.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{
		buffer:      buffer,
		memberships: make(chan membership),
		removals:    make(chan *Subscriber),
		broadcasts:  make(chan *models.ChatMessage),
		counts:      make(chan countReq),
		done:        make(chan struct{}),
	}
}

// Run processes registry changes and deliveries until ctx is canceled.
func (h *Hub) Run(ctx context.Context) error {
	rooms := make(map[int64]map[*Subscriber]struct{})
	joined := make(map[*Subscriber]map[int64]struct{})

	defer func() {
		close(h.done)
		for sub := range joined {
			if !sub.closed {
				sub.closed = true
				close(sub.send)
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case m := <-h.memberships:
			if m.join && !m.sub.closed {
				if rooms[m.projectID] == nil {
					rooms[m.projectID] = make(map[*Subscriber]struct{})
				}
				rooms[m.projectID][m.sub] = struct{}{}
				if joined[m.sub] == nil {
					joined[m.sub] = make(map[int64]struct{})
				}
				joined[m.sub][m.projectID] = struct{}{}
			} else if !m.join {
				leave(rooms, joined, m.sub, m.projectID)
			}
			close(m.done)

		case sub := <-h.removals:
			if ids, ok := joined[sub]; ok {
				for id := range ids {
					leave(rooms, joined, sub, id)
				}
			}
			delete(joined, sub)
			if !sub.closed {
				sub.closed = true
				close(sub.send)
			}

		case msg := <-h.broadcasts:
			for sub := range rooms[msg.ProjectID] {
				select {
				case sub.send <- msg:
					metrics.ChatDeliveriesTotal.WithLabelValues("delivered").Inc()
				default:
					metrics.ChatDeliveriesTotal.WithLabelValues("dropped").Inc()
				}
			}

		case req := <-h.counts:
			req.reply <- len(rooms[req.projectID])
		}
	}
}

func leave(rooms map[int64]map[*Subscriber]struct{}, joined map[*Subscriber]map[int64]struct{}, sub *Subscriber, projectID int64) {
	if room, ok := rooms[projectID]; ok {
		delete(room, sub)
		if len(room) == 0 {
			delete(rooms, projectID)
		}
	}
	if ids, ok := joined[sub]; ok {
		delete(ids, projectID)
	}
}

// NewSubscriber creates a subscriber that is not yet in any room.
func (h *Hub) NewSubscriber() *Subscriber {
	return &Subscriber{
		id:   h.nextID.Add(1),
		send: make(chan *models.ChatMessage, h.buffer),
	}
}

// Join adds sub to a project's room. Callers check access first.
func (h *Hub) Join(ctx context.Context, sub *Subscriber, projectID int64) error {
	return h.membership(ctx, membership{sub: sub, projectID: projectID, join: true})
}

// Leave removes sub from a project's room.
func (h *Hub) Leave(ctx context.Context, sub *Subscriber, projectID int64) error {
	return h.membership(ctx, membership{sub: sub, projectID: projectID})
}

func (h *Hub) membership(ctx context.Context, m membership) error {
	m.done = make(chan struct{})
	select {
	case h.memberships <- m:
	case <-h.done:
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	<-m.done
	return nil
}

// Remove takes sub out of every room and closes its channel.
func (h *Hub) Remove(sub *Subscriber) {
	select {
	case h.removals <- sub:
	case <-h.done:
	}
}

// Publish delivers msg to the subscribers of its project's room. Delivery
// is at most once: a subscriber with a full buffer misses the message.
func (h *Hub) Publish(ctx context.Context, msg *models.ChatMessage) error {
	select {
	case h.broadcasts <- msg:
		return nil
	case <-h.done:
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RoomSize returns the number of subscribers in a project's room.
func (h *Hub) RoomSize(ctx context.Context, projectID int64) (int, error) {
	req := countReq{projectID: projectID, reply: make(chan int, 1)}
	select {
	case h.counts <- req:
	case <-h.done:
		return 0, ErrHubClosed
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	return <-req.reply, nil
}
