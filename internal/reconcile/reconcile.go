// Package reconcile merges inbound records into in-memory collections
// without duplicating or reordering them.
package reconcile

import "github.com/rickgao/feedsync/internal/model"

// Policy decides what happens to a record whose id is not in the collection.
type Policy int

const (
	// Append adds unknown records at the end (chat history).
	Append Policy = iota
	// Prepend adds unknown records at the front (newest-first lists).
	Prepend
	// Refetch leaves the collection untouched and asks for a full reload.
	// Used where pagination makes partial insertion unsafe (feed).
	Refetch
)

// Outcome reports what Merge did.
type Outcome int

const (
	Replaced Outcome = iota
	Inserted
	NeedsRefetch
)

func (o Outcome) String() string {
	switch o {
	case Replaced:
		return "replaced"
	case Inserted:
		return "inserted"
	case NeedsRefetch:
		return "needs_refetch"
	}
	return "unknown"
}

// Merge applies rec to items. A record whose id is already present replaces
// the existing one in place; otherwise policy applies. The input slice is
// never modified. Merge is idempotent: merging the same record twice yields
// the same collection as merging it once.
func Merge[T model.Record](items []T, rec T, policy Policy) ([]T, Outcome) {
	id := rec.RecordID()

	if i := IndexOf(items, id); i >= 0 {
		out := make([]T, len(items))
		copy(out, items)
		out[i] = rec
		return out, Replaced
	}

	switch policy {
	case Append:
		out := make([]T, 0, len(items)+1)
		out = append(out, items...)
		out = append(out, rec)
		return out, Inserted
	case Prepend:
		out := make([]T, 0, len(items)+1)
		out = append(out, rec)
		out = append(out, items...)
		return out, Inserted
	default:
		return items, NeedsRefetch
	}
}

// IndexOf returns the position of id in items, or -1.
func IndexOf[T model.Record](items []T, id string) int {
	for i, item := range items {
		if item.RecordID() == id {
			return i
		}
	}
	return -1
}

// Dedupe drops later occurrences of repeated ids, keeping the first
// position. Server pages occasionally overlap.
func Dedupe[T model.Record](items []T) []T {
	seen := make(map[string]struct{}, len(items))
	out := make([]T, 0, len(items))
	for _, item := range items {
		id := item.RecordID()
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, item)
	}
	return out
}
