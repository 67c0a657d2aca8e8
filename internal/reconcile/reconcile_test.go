package reconcile

import (
	"testing"
	"time"

	"github.com/rickgao/feedsync/internal/loop"
	"github.com/rickgao/feedsync/internal/model"
)

func ids[T model.Record](items []T) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.RecordID()
	}
	return out
}

func equalIDs(a, b []string) bool {
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

func TestMerge(t *testing.T) {
	base := []model.Message{
		{ID: "m1", Body: "hello"},
		{ID: "m2", Body: "world"},
	}

	tests := []struct {
		name    string
		rec     model.Message
		policy  Policy
		wantIDs []string
		outcome Outcome
	}{
		{
			name:    "append unknown",
			rec:     model.Message{ID: "m3", Body: "new"},
			policy:  Append,
			wantIDs: []string{"m1", "m2", "m3"},
			outcome: Inserted,
		},
		{
			name:    "prepend unknown",
			rec:     model.Message{ID: "m3", Body: "new"},
			policy:  Prepend,
			wantIDs: []string{"m3", "m1", "m2"},
			outcome: Inserted,
		},
		{
			name:    "refetch unknown",
			rec:     model.Message{ID: "m3", Body: "new"},
			policy:  Refetch,
			wantIDs: []string{"m1", "m2"},
			outcome: NeedsRefetch,
		},
		{
			name:    "replace known keeps position",
			rec:     model.Message{ID: "m1", Body: "edited"},
			policy:  Append,
			wantIDs: []string{"m1", "m2"},
			outcome: Replaced,
		},
		{
			name:    "replace known under refetch policy",
			rec:     model.Message{ID: "m2", Deleted: true},
			policy:  Refetch,
			wantIDs: []string{"m1", "m2"},
			outcome: Replaced,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, outcome := Merge(base, tt.rec, tt.policy)
			if outcome != tt.outcome {
				t.Errorf("outcome = %v, want %v", outcome, tt.outcome)
			}
			if !equalIDs(ids(got), tt.wantIDs) {
				t.Errorf("ids = %v, want %v", ids(got), tt.wantIDs)
			}
		})
	}

	if base[0].Body != "hello" || len(base) != 2 {
		t.Error("Merge modified its input")
	}
}

func TestMerge_ReplacedValueVisible(t *testing.T) {
	base := []model.Message{{ID: "m1", Body: "hello"}, {ID: "m2", Body: "world"}}

	got, _ := Merge(base, model.Message{ID: "m2", Body: "world", Deleted: true}, Append)
	if !got[1].Deleted {
		t.Error("replacement not applied in place")
	}
}

func TestMerge_Idempotent(t *testing.T) {
	base := []model.Notification{{ID: "n1"}, {ID: "n2", Read: true}}
	records := []model.Notification{
		{ID: "n3", Text: "new"},
		{ID: "n1", Read: true},
	}

	for _, policy := range []Policy{Append, Prepend, Refetch} {
		for _, rec := range records {
			once, _ := Merge(base, rec, policy)
			twice, _ := Merge(once, rec, policy)

			if !equalIDs(ids(once), ids(twice)) {
				t.Errorf("policy %d rec %s: once %v, twice %v", policy, rec.ID, ids(once), ids(twice))
			}
			for i := range once {
				if once[i].Read != twice[i].Read || once[i].Text != twice[i].Text {
					t.Errorf("policy %d rec %s: item %d differs", policy, rec.ID, i)
				}
			}
		}
	}
}

func TestDedupe(t *testing.T) {
	items := []model.FeedItem{{ID: "a"}, {ID: "b"}, {ID: "a"}, {ID: "c"}, {ID: "b"}}

	got := ids(Dedupe(items))
	want := []string{"a", "b", "c"}
	if !equalIDs(got, want) {
		t.Errorf("Dedupe() = %v, want %v", got, want)
	}
}

func TestDebouncer_CoalescesWithinWindow(t *testing.T) {
	clock := loop.NewFakeClock(time.Unix(0, 0))
	lp := loop.New(clock, nil)

	calls := 0
	d := NewDebouncer(lp, DefaultDebounceWindow, func() { calls++ })

	d.Trigger()
	clock.Advance(100 * time.Millisecond)
	lp.Drain()
	d.Trigger()
	d.Trigger()
	clock.Advance(150 * time.Millisecond)
	lp.Drain()

	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}

	// A hint after the window opens a new one.
	d.Trigger()
	clock.Advance(DefaultDebounceWindow)
	lp.Drain()

	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	triggers, fires := d.Counts()
	if triggers != 4 || fires != 2 {
		t.Errorf("Counts() = (%d, %d), want (4, 2)", triggers, fires)
	}
}

func TestDebouncer_Cancel(t *testing.T) {
	clock := loop.NewFakeClock(time.Unix(0, 0))
	lp := loop.New(clock, nil)

	calls := 0
	d := NewDebouncer(lp, DefaultDebounceWindow, func() { calls++ })
	d.Trigger()
	d.Cancel()

	clock.Advance(time.Second)
	lp.Drain()

	if calls != 0 {
		t.Errorf("calls = %d after Cancel, want 0", calls)
	}
	if d.Pending() {
		t.Error("Pending() = true after Cancel")
	}
}
