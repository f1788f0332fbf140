package background

import (
	"time"

	"github.com/ahrav/jobwatch/internal/domain/events"
)

// Event types emitted by the monitor.
const (
	EventTypeItemAdded         events.EventType = "MonitorItemAdded"
	EventTypeItemRemoved       events.EventType = "MonitorItemRemoved"
	EventTypeItemStatusChanged events.EventType = "MonitorItemStatusChanged"
	EventTypeItemActivated     events.EventType = "MonitorItemActivated"
)

// ItemAddedEvent is emitted when an item starts being monitored.
type ItemAddedEvent struct {
	occurredAt time.Time
	Item       ItemSnapshot `json:"item"`
}

// NewItemAddedEvent creates an ItemAddedEvent for item.
func NewItemAddedEvent(item *TrackedItem) ItemAddedEvent {
	return ItemAddedEvent{occurredAt: time.Now(), Item: item.Snapshot()}
}

func (e ItemAddedEvent) EventType() events.EventType { return EventTypeItemAdded }
func (e ItemAddedEvent) OccurredAt() time.Time       { return e.occurredAt }

// ItemRemovedEvent is emitted when an item is removed and tombstoned.
type ItemRemovedEvent struct {
	occurredAt time.Time
	ItemID     string `json:"item_id"`
	Reason     string `json:"reason"`
}

// NewItemRemovedEvent creates an ItemRemovedEvent.
func NewItemRemovedEvent(itemID, reason string) ItemRemovedEvent {
	return ItemRemovedEvent{occurredAt: time.Now(), ItemID: itemID, Reason: reason}
}

func (e ItemRemovedEvent) EventType() events.EventType { return EventTypeItemRemoved }
func (e ItemRemovedEvent) OccurredAt() time.Time       { return e.occurredAt }

// ItemStatusChangedEvent is emitted once for every status response the
// monitor applies, including responses that only update progress.
type ItemStatusChangedEvent struct {
	occurredAt time.Time
	Item       ItemSnapshot `json:"item"`
	SubIndex   int          `json:"sub_index"`
	Previous   JobState     `json:"previous"`
}

// NewItemStatusChangedEvent creates an ItemStatusChangedEvent.
func NewItemStatusChangedEvent(item *TrackedItem, subIndex int, previous JobState) ItemStatusChangedEvent {
	return ItemStatusChangedEvent{
		occurredAt: time.Now(),
		Item:       item.Snapshot(),
		SubIndex:   subIndex,
		Previous:   previous,
	}
}

func (e ItemStatusChangedEvent) EventType() events.EventType { return EventTypeItemStatusChanged }
func (e ItemStatusChangedEvent) OccurredAt() time.Time       { return e.occurredAt }

// ItemActivatedEvent is emitted when a completion handler ran for a sub-job.
type ItemActivatedEvent struct {
	occurredAt time.Time
	ItemID     string   `json:"item_id"`
	SubIndex   int      `json:"sub_index"`
	UIType     UIType   `json:"ui_type"`
	Automatic  bool     `json:"automatic"`
	FilePath   string   `json:"file_path,omitempty"`
	URLs       []string `json:"urls,omitempty"`
	Message    string   `json:"message,omitempty"`
}

// NewItemActivatedEvent creates an ItemActivatedEvent describing what became
// available for sub-job subIndex.
func NewItemActivatedEvent(item *TrackedItem, subIndex int, automatic bool, message string) ItemActivatedEvent {
	evt := ItemActivatedEvent{
		occurredAt: time.Now(),
		ItemID:     item.ID(),
		SubIndex:   subIndex,
		UIType:     item.UIType(),
		Automatic:  automatic,
		Message:    message,
	}
	if rec, err := item.Record(subIndex); err == nil {
		evt.FilePath = rec.FilePath
		for _, p := range rec.Packages {
			if p.URL != "" {
				evt.URLs = append(evt.URLs, p.URL)
			}
		}
	}
	return evt
}

func (e ItemActivatedEvent) EventType() events.EventType { return EventTypeItemActivated }
func (e ItemActivatedEvent) OccurredAt() time.Time       { return e.occurredAt }
