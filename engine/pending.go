package engine

import (
	"github.com/hupe1980/engramgo/coordinate"
	"github.com/hupe1980/engramgo/model"
)

// PendingUpdate accumulates the backward links owed to one target record.
type PendingUpdate struct {
	TargetID  uint64
	TargetKey coordinate.Key
	Links     []model.Link
}

// PendingQueue buffers backward-link updates between batch flushes. New
// records never pay a read-modify-write on their link targets at insert time;
// the mirrored links are queued here and applied as one batch.
//
// The flush trigger counts distinct source inserts that queued at least one
// link, not queued link entries, so a record with four forward links moves
// the counter by one. The coordinator serializes all access.
type PendingQueue struct {
	updates map[coordinate.Key]*PendingUpdate
	order   []coordinate.Key
	sources int
}

// NewPendingQueue creates an empty queue.
func NewPendingQueue() *PendingQueue {
	return &PendingQueue{
		updates: make(map[coordinate.Key]*PendingUpdate),
	}
}

// Enqueue adds a backward link owed to the target. Multiple links for the
// same target coalesce into one update.
func (q *PendingQueue) Enqueue(targetID uint64, targetKey coordinate.Key, link model.Link) {
	u, ok := q.updates[targetKey]
	if !ok {
		u = &PendingUpdate{TargetID: targetID, TargetKey: targetKey}
		q.updates[targetKey] = u
		q.order = append(q.order, targetKey)
	}
	u.Links = append(u.Links, link)
}

// MarkSource records that one insert contributed links to the queue.
func (q *PendingQueue) MarkSource() {
	q.sources++
}

// Sources returns the number of contributing inserts since the last Clear.
func (q *PendingQueue) Sources() int { return q.sources }

// Len returns the number of distinct targets with queued links.
func (q *PendingQueue) Len() int { return len(q.updates) }

// Updates returns the queued updates in first-queued order.
func (q *PendingQueue) Updates() []*PendingUpdate {
	out := make([]*PendingUpdate, 0, len(q.order))
	for _, k := range q.order {
		out = append(out, q.updates[k])
	}
	return out
}

// Drop removes the update queued for key, if any. Called when the target
// record is deleted before its backward links were applied.
func (q *PendingQueue) Drop(key coordinate.Key) {
	if _, ok := q.updates[key]; !ok {
		return
	}
	delete(q.updates, key)
	for i, k := range q.order {
		if k == key {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
}

// Clear empties the queue and resets the source counter.
func (q *PendingQueue) Clear() {
	q.updates = make(map[coordinate.Key]*PendingUpdate)
	q.order = q.order[:0]
	q.sources = 0
}
