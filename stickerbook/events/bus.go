// Package events carries data-change notifications between the cache,
// the services and any open views. Events are typed structs; subscribers
// register for a single event type and receive every published event of
// that type until they unsubscribe.
package events

import (
	"sync"
	"time"
)

type Type string

const (
	TypeAlbumDataChanged      Type = "album-data-changed"
	TypeStickerDataChanged    Type = "sticker-data-changed"
	TypeInventoryDataChanged  Type = "inventory-data-changed"
	TypeExchangeOffersChanged Type = "exchange-offers-data-changed"
	TypeTeamsDataChanged      Type = "teams-data-changed"
	TypeForceRefresh          Type = "force-refresh"
	TypeConnectivityChanged   Type = "connectivity-changed"
)

// Event is implemented by the closed set of notification payloads below.
// Origin identifies the process instance that caused the change so relayed
// copies of a process's own events can be dropped.
type Event interface {
	Type() Type
	EventOrigin() string
}

type AlbumDataChanged struct {
	Origin string
}

func (AlbumDataChanged) Type() Type            { return TypeAlbumDataChanged }
func (e AlbumDataChanged) EventOrigin() string { return e.Origin }

// StickerDataChanged reports sticker mutations for one album. Bulk writes
// publish a single event with Count set to the number of rows touched.
type StickerDataChanged struct {
	Origin  string
	AlbumID string
	Action  string
	Count   int
}

func (StickerDataChanged) Type() Type            { return TypeStickerDataChanged }
func (e StickerDataChanged) EventOrigin() string { return e.Origin }

type InventoryDataChanged struct {
	Origin  string
	AlbumID string
}

func (InventoryDataChanged) Type() Type            { return TypeInventoryDataChanged }
func (e InventoryDataChanged) EventOrigin() string { return e.Origin }

type ExchangeOffersChanged struct {
	Origin  string
	AlbumID string
}

func (ExchangeOffersChanged) Type() Type            { return TypeExchangeOffersChanged }
func (e ExchangeOffersChanged) EventOrigin() string { return e.Origin }

type TeamsDataChanged struct {
	Origin  string
	AlbumID string
	OldName string
	NewName string
}

func (TeamsDataChanged) Type() Type            { return TypeTeamsDataChanged }
func (e TeamsDataChanged) EventOrigin() string { return e.Origin }

// ForceRefresh tells every cache layer to drop local state and reload
// from the backend regardless of TTLs.
type ForceRefresh struct {
	Origin string
}

func (ForceRefresh) Type() Type            { return TypeForceRefresh }
func (e ForceRefresh) EventOrigin() string { return e.Origin }

type ConnectivityChanged struct {
	Origin string
	Online bool
}

func (ConnectivityChanged) Type() Type            { return TypeConnectivityChanged }
func (e ConnectivityChanged) EventOrigin() string { return e.Origin }

type subscriber struct {
	id int
	fn func(Event)
}

type debounceKey struct {
	typ     Type
	albumID string
}

type pending struct {
	timer *time.Timer
	event StickerDataChanged
}

// Bus is a synchronous in-process publish/subscribe hub. Sticker change
// events are debounced per album so rapid-fire mutations (bulk imports,
// quick toggles) collapse into one notification with the counts summed.
type Bus struct {
	mu       sync.Mutex
	subs     map[Type][]subscriber
	nextID   int
	window   time.Duration
	pendings map[debounceKey]*pending
	closed   bool
}

func NewBus(debounceWindow time.Duration) *Bus {
	return &Bus{
		subs:     make(map[Type][]subscriber),
		window:   debounceWindow,
		pendings: make(map[debounceKey]*pending),
	}
}

// Subscribe registers fn for events of type t and returns an unsubscribe
// function. Handlers run on the publisher's goroutine (or the debounce
// timer's goroutine for coalesced events) and must not block.
func (b *Bus) Subscribe(t Type, fn func(Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs[t] = append(b.subs[t], subscriber{id: id, fn: fn})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[t]
		for i, s := range list {
			if s.id == id {
				b.subs[t] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers e to all subscribers of its type. StickerDataChanged
// events are held back for the debounce window; later events for the same
// album within the window merge into the held event (counts summed, the
// latest action wins).
func (b *Bus) Publish(e Event) {
	if sde, ok := e.(StickerDataChanged); ok && b.window > 0 {
		b.debounce(sde)
		return
	}
	b.dispatch(e)
}

// PublishNow bypasses debouncing and delivers e immediately.
func (b *Bus) PublishNow(e Event) {
	b.dispatch(e)
}

func (b *Bus) debounce(e StickerDataChanged) {
	key := debounceKey{typ: e.Type(), albumID: e.AlbumID}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	if p, ok := b.pendings[key]; ok {
		p.event.Count += e.Count
		p.event.Action = e.Action
		p.event.Origin = e.Origin
		b.mu.Unlock()
		return
	}
	p := &pending{event: e}
	p.timer = time.AfterFunc(b.window, func() {
		b.mu.Lock()
		merged := p.event
		delete(b.pendings, key)
		b.mu.Unlock()
		b.dispatch(merged)
	})
	b.pendings[key] = p
	b.mu.Unlock()
}

// Flush fires all held events immediately. Used on shutdown and in tests.
func (b *Bus) Flush() {
	b.mu.Lock()
	held := make([]StickerDataChanged, 0, len(b.pendings))
	for key, p := range b.pendings {
		p.timer.Stop()
		held = append(held, p.event)
		delete(b.pendings, key)
	}
	b.mu.Unlock()

	for _, e := range held {
		b.dispatch(e)
	}
}

func (b *Bus) dispatch(e Event) {
	b.mu.Lock()
	list := b.subs[e.Type()]
	handlers := make([]func(Event), len(list))
	for i, s := range list {
		handlers[i] = s.fn
	}
	b.mu.Unlock()

	for _, fn := range handlers {
		fn(e)
	}
}

// Close drops held events without delivering them.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for key, p := range b.pendings {
		p.timer.Stop()
		delete(b.pendings, key)
	}
}
