package signature

import (
	"testing"

	"github.com/rickgao/feedsync/internal/model"
)

func TestCompute_Pure(t *testing.T) {
	items := []model.FeedItem{
		{ID: "p1", Caption: "first", LikeCount: 1},
		{ID: "p2", Caption: "second", CommentCount: 4},
	}
	clone := append([]model.FeedItem(nil), items...)

	if Compute(items) != Compute(clone) {
		t.Error("equal ordered inputs produced different signatures")
	}
	if Compute(items) != Compute(items) {
		t.Error("repeated calls produced different signatures")
	}
}

func TestCompute_DetectsChanges(t *testing.T) {
	base := []model.FeedItem{
		{ID: "p1", Caption: "first", LikeCount: 1, UpdatedAt: 10},
		{ID: "p2", Caption: "second", CommentCount: 4, UpdatedAt: 20},
	}
	want := Compute(base)

	tests := []struct {
		name  string
		items []model.FeedItem
	}{
		{
			name:  "reordered",
			items: []model.FeedItem{base[1], base[0]},
		},
		{
			name:  "item removed",
			items: base[:1],
		},
		{
			name: "like count",
			items: []model.FeedItem{
				{ID: "p1", Caption: "first", LikeCount: 2, UpdatedAt: 10},
				base[1],
			},
		},
		{
			name: "attachment added",
			items: []model.FeedItem{
				base[0],
				{ID: "p2", Caption: "second", CommentCount: 4, UpdatedAt: 20, MediaURLs: []string{"x.png"}},
			},
		},
		{
			name: "id changed",
			items: []model.FeedItem{
				{ID: "p3", Caption: "first", LikeCount: 1, UpdatedAt: 10},
				base[1],
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Compute(tt.items); got == want {
				t.Errorf("Compute() = %q, expected a different signature", got)
			}
		})
	}
}

func TestCompute_FieldBoundaries(t *testing.T) {
	a := []model.Notification{{ID: "ab", Text: "c"}}
	b := []model.Notification{{ID: "a", Text: "bc"}}

	// Text only contributes its length, so make the ids differ at the boundary.
	if Compute(a) == Compute(b) {
		t.Error("field boundary collision")
	}
}

func TestCompute_Empty(t *testing.T) {
	if got := Compute[model.Message](nil); got != Compute([]model.Message{}) {
		t.Errorf("nil and empty slices differ: %q", got)
	}
}
