package api

import (
	"sync"

	"yt-allinone/internal/model"
)

const DefaultEventCapacity = 512

type EventRecord struct {
	Seq   int64       `json:"seq"`
	Event model.Event `json:"event"`
}

// EventLog keeps the most recent manager events with increasing sequence
// numbers so pollers can ask for everything after the last one they saw.
type EventLog struct {
	mu      sync.Mutex
	records []EventRecord
	next    int64
	cap     int
}

func NewEventLog(capacity int) *EventLog {
	if capacity <= 0 {
		capacity = DefaultEventCapacity
	}
	return &EventLog{cap: capacity, next: 1}
}

func (l *EventLog) Append(ev model.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, EventRecord{Seq: l.next, Event: ev})
	l.next++
	if over := len(l.records) - l.cap; over > 0 {
		l.records = append(l.records[:0:0], l.records[over:]...)
	}
}

// Since returns records with Seq > after, oldest first, and the last
// sequence number issued so far.
func (l *EventLog) Since(after int64) ([]EventRecord, int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]EventRecord, 0)
	for _, r := range l.records {
		if r.Seq > after {
			out = append(out, r)
		}
	}
	return out, l.next - 1
}
