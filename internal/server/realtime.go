package server

import (
	"context"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/miraiwall/backend/internal/tiles"
)

const (
	RealtimeEventTileClaimed     = "tile-claimed"
	RealtimeEventCapsuleUnlocked = "capsule-unlocked"
	realtimeEventHeartbeat       = "heartbeat"
	realtimeSource               = "miraiwall-backend"
)

// RealtimeMessage is one event delivered to the subscribers of a page.
type RealtimeMessage struct {
	PageNumber int
	EventType  string
	Payload    any
	Timestamp  time.Time
}

// RealtimeDispatcher fans events out to the subscribers of each page.
// Slow subscribers miss events rather than block publishers.
type RealtimeDispatcher struct {
	mu          sync.RWMutex
	subscribers map[int]map[int64]*realtimeSubscriber
	nextID      int64
	bufferSize  int
}

type realtimeSubscriber struct {
	id     int64
	stream chan RealtimeMessage
}

func NewRealtimeDispatcher() *RealtimeDispatcher {
	return &RealtimeDispatcher{
		subscribers: make(map[int]map[int64]*realtimeSubscriber),
		bufferSize:  16,
	}
}

// Subscribe registers a subscriber for pageNumber until ctx is done or cleanup is called.
func (d *RealtimeDispatcher) Subscribe(ctx context.Context, pageNumber int) (<-chan RealtimeMessage, func()) {
	if pageNumber < 0 {
		ch := make(chan RealtimeMessage)
		close(ch)
		return ch, func() {}
	}
	subscriber := &realtimeSubscriber{
		id:     d.nextSequence(),
		stream: make(chan RealtimeMessage, d.bufferSize),
	}
	d.registerSubscriber(pageNumber, subscriber)
	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			d.unregisterSubscriber(pageNumber, subscriber.id)
		})
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return subscriber.stream, cleanup
}

func (d *RealtimeDispatcher) Publish(message RealtimeMessage) {
	if message.PageNumber < 0 || message.EventType == "" {
		return
	}
	d.mu.RLock()
	subscribers := d.subscribers[message.PageNumber]
	if len(subscribers) == 0 {
		d.mu.RUnlock()
		return
	}
	copies := make([]*realtimeSubscriber, 0, len(subscribers))
	for _, subscriber := range subscribers {
		copies = append(copies, subscriber)
	}
	d.mu.RUnlock()
	for _, subscriber := range copies {
		select {
		case subscriber.stream <- message:
		default:
		}
	}
}

// PublishTileClaimed announces a claim to the subscribers of its page.
func (d *RealtimeDispatcher) PublishTileClaimed(tile tiles.ClaimedTile) {
	d.Publish(RealtimeMessage{
		PageNumber: tile.PageNumber,
		EventType:  RealtimeEventTileClaimed,
		Payload:    newClaimedTilePayload(tile),
		Timestamp:  time.Now().UTC(),
	})
}

// PublishCapsulesUnlocked announces unlocked capsules to the subscribers of their pages.
func (d *RealtimeDispatcher) PublishCapsulesUnlocked(views []tiles.CapsuleView) {
	now := time.Now().UTC()
	for _, view := range views {
		d.Publish(RealtimeMessage{
			PageNumber: view.PageNumber,
			EventType:  RealtimeEventCapsuleUnlocked,
			Payload:    newCapsulePayload(view),
			Timestamp:  now,
		})
	}
}

// SubscriberCount returns the number of subscribers of pageNumber.
func (d *RealtimeDispatcher) SubscriberCount(pageNumber int) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subscribers[pageNumber])
}

func (d *RealtimeDispatcher) nextSequence() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID
}

func (d *RealtimeDispatcher) registerSubscriber(pageNumber int, subscriber *realtimeSubscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.subscribers[pageNumber]; !ok {
		d.subscribers[pageNumber] = make(map[int64]*realtimeSubscriber)
	}
	d.subscribers[pageNumber][subscriber.id] = subscriber
}

func (d *RealtimeDispatcher) unregisterSubscriber(pageNumber int, subscriberID int64) {
	d.mu.Lock()
	subscribers := d.subscribers[pageNumber]
	if subscribers != nil {
		delete(subscribers, subscriberID)
		if len(subscribers) == 0 {
			delete(d.subscribers, pageNumber)
		}
	}
	d.mu.Unlock()
}
