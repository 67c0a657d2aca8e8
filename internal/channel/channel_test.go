package channel_test

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rickgao/feedsync/internal/api"
	"github.com/rickgao/feedsync/internal/cache"
	"github.com/rickgao/feedsync/internal/channel"
	"github.com/rickgao/feedsync/internal/connection"
	"github.com/rickgao/feedsync/internal/connection/connectiontest"
	"github.com/rickgao/feedsync/internal/loop"
	"github.com/rickgao/feedsync/internal/model"
	"github.com/rickgao/feedsync/internal/poller"
	"github.com/rickgao/feedsync/internal/reconcile"
	"github.com/rickgao/feedsync/internal/state"
)

var errRefused = errors.New("connection refused")

type env struct {
	t      *testing.T
	loop   *loop.Loop
	clock  *loop.FakeClock
	dialer *connectiontest.Dialer
	ep     channel.Endpoints
}

func newEnv(t *testing.T, dialer *connectiontest.Dialer) *env {
	t.Helper()
	clock := loop.NewFakeClock(time.Unix(1700000000, 0))
	return &env{
		t:      t,
		loop:   loop.New(clock, nil),
		clock:  clock,
		dialer: dialer,
		ep: channel.Endpoints{
			WSURL:             "ws://sync.test",
			FeedPath:          "/ws/feed",
			ConversationPath:  "/ws/conversations/{id}",
			NotificationsPath: "/ws/notifications",
			Token:             func() (string, error) { return "t", nil },
		},
	}
}

func (e *env) options(kind connection.Kind, resource string) channel.Options {
	return channel.Options{
		Conn:    connection.DefaultChannelConfig(kind),
		Poll:    poller.DefaultConfig(resource),
		Factory: e.dialer.Factory,
	}
}

func (e *env) settle() {
	e.t.Helper()
	if !e.loop.Settle(2 * time.Second) {
		e.t.Fatal("loop did not settle")
	}
}

// waitFor drains until cond holds. Frames and drops travel through the
// socket pump goroutine, which Settle does not track.
func (e *env) waitFor(what string, cond func() bool) {
	e.t.Helper()
	if !e.loop.DrainUntil(cond, 2*time.Second) {
		e.t.Fatalf("timed out waiting for %s", what)
	}
	e.settle()
}

func (e *env) advance(d time.Duration) {
	e.clock.Advance(d)
	e.settle()
}

type feedFixture struct {
	*env
	feed    *channel.Feed
	items   *state.Collection[model.FeedItem]
	fetches atomic.Int32
}

func newFeedFixture(t *testing.T, dialer *connectiontest.Dialer) *feedFixture {
	f := &feedFixture{env: newEnv(t, dialer)}
	f.items = state.NewCollection[model.FeedItem]("feed", reconcile.Refetch, f.loop, nil, "", nil)
	refresher := state.NewRefresher("feed", f.loop, func(ctx context.Context) ([]model.FeedItem, error) {
		n := f.fetches.Add(1)
		return []model.FeedItem{{ID: "p1", LikeCount: int64(n)}}, nil
	}, func(items []model.FeedItem) { f.items.Replace(items) }, nil, nil)
	f.feed = channel.NewFeed(f.loop, f.ep, f.options(connection.KindFeed, poller.ResourceFeed), refresher, nil)
	return f
}

func TestFeed_PollingOnlyWhileNotOpen(t *testing.T) {
	dialer := connectiontest.NewDialer(errRefused)
	f := newFeedFixture(t, dialer)

	f.feed.Open()
	if !f.feed.Polling() {
		t.Error("not polling while connecting")
	}
	f.settle()

	if f.feed.State() != connection.StateClosed {
		t.Fatalf("State() = %v after failed dial, want closed", f.feed.State())
	}
	if !f.feed.Polling() {
		t.Error("not polling after failed dial")
	}

	f.advance(time.Second) // reconnect succeeds
	if f.feed.State() != connection.StateOpen {
		t.Fatalf("State() = %v, want open", f.feed.State())
	}
	if f.feed.Polling() {
		t.Error("still polling while open")
	}

	dialer.Last().Drop(errors.New("reset by peer"))
	f.waitFor("drop", func() bool { return f.feed.State() != connection.StateOpen })
	if !f.feed.Polling() {
		t.Error("not polling after drop")
	}

	f.feed.Close()
	if f.feed.Polling() {
		t.Error("still polling after Close")
	}
}

func TestFeed_PollsAtIntervalWhileDown(t *testing.T) {
	dialer := connectiontest.NewDialer()
	dialer.Fail(errRefused, 100)
	f := newFeedFixture(t, dialer)

	f.feed.Open()
	f.settle()
	start := f.fetches.Load()

	// Reconnect timers fire in between; only the poller fetches.
	for i := 0; i < 6; i++ {
		f.advance(10 * time.Second)
	}

	if got := f.fetches.Load() - start; got != 1 {
		t.Errorf("fetches over 60s = %d, want 1", got)
	}
	if f.feed.Status().Polls != 2 {
		t.Errorf("Polls = %d, want 2", f.feed.Status().Polls)
	}
}

func TestFeed_PostCreatedHintsCoalesce(t *testing.T) {
	f := newFeedFixture(t, connectiontest.NewDialer())
	f.feed.Open()
	f.settle()
	before := f.fetches.Load()

	cl := f.dialer.Last()
	for i := 0; i < 3; i++ {
		cl.Deliver(`{"type":"post_created"}`)
	}
	seen := 0
	f.feed.OnEvent(func(channel.Event) { seen++ })
	f.waitFor("hints", func() bool { return seen == 3 })

	if got := f.fetches.Load(); got != before {
		t.Fatalf("fetched before debounce window elapsed")
	}

	f.advance(reconcile.DefaultDebounceWindow)
	if got := f.fetches.Load() - before; got != 1 {
		t.Errorf("fetches after three hints = %d, want 1", got)
	}
}

func TestFeed_MalformedFrameKeepsConnection(t *testing.T) {
	f := newFeedFixture(t, connectiontest.NewDialer())
	f.feed.Open()
	f.settle()

	var events []string
	f.feed.OnEvent(func(ev channel.Event) { events = append(events, ev.Type) })

	cl := f.dialer.Last()
	cl.Deliver(`{"type":`)
	cl.Deliver(`{"type":"pong"}`)
	f.waitFor("pong", func() bool { return len(events) == 1 })

	if events[0] != channel.TypePong {
		t.Errorf("events = %v, want [pong]", events)
	}
	if f.feed.State() != connection.StateOpen {
		t.Errorf("State() = %v after malformed frame, want open", f.feed.State())
	}
	if !cl.Live() {
		t.Error("socket closed after malformed frame")
	}
}

type messagingFixture struct {
	*env
	msg  *channel.Messaging
	conv *state.Conversation
}

func newMessagingFixture(t *testing.T) *messagingFixture {
	m := &messagingFixture{env: newEnv(t, connectiontest.NewDialer())}
	coll := state.NewCollection[model.Message]("messages", reconcile.Append, m.loop, nil, "", nil)
	m.conv = state.NewConversation(coll, nil)
	fetch := func(ctx context.Context, id string) ([]model.Message, error) {
		return []model.Message{{ID: "h1", ConversationID: id, Body: "history"}}, nil
	}
	m.msg = channel.NewMessaging(m.loop, m.ep, m.options(connection.KindMessaging, poller.ResourceMessages), m.conv, fetch, nil, nil, nil)
	return m
}

func (m *messagingFixture) deliver(frame string) {
	m.t.Helper()
	n := 0
	m.msg.OnEvent(func(channel.Event) { n++ })
	m.dialer.Last().Deliver(frame)
	m.waitFor("frame", func() bool { return n > 0 })
}

// Scenario A: a message for the active conversation is appended once.
func TestMessaging_MessageCreatedAppendsOnce(t *testing.T) {
	m := newMessagingFixture(t)
	m.msg.SetConversation("c1")
	m.settle()

	if m.conv.Len() != 1 {
		t.Fatalf("history len = %d, want 1", m.conv.Len())
	}

	frame := `{"type":"message.created","message":{"id":"m1","conversationId":"c1","body":"hi"}}`
	m.deliver(frame)
	m.deliver(frame)

	items := m.conv.Items()
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2 (history + one new message)", len(items))
	}
	if items[1].ID != "m1" || items[1].Body != "hi" {
		t.Errorf("items[1] = %+v, want m1 appended", items[1])
	}
}

// Scenario B: a delete for a present id marks it in place.
func TestMessaging_MessageDeletedInPlace(t *testing.T) {
	m := newMessagingFixture(t)
	m.msg.SetConversation("c1")
	m.settle()

	m.deliver(`{"type":"message.created","message":{"id":"m1","conversationId":"c1","body":"hi"}}`)
	m.deliver(`{"type":"message.deleted","message":{"id":"h1","conversationId":"c1"}}`)

	items := m.conv.Items()
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2", len(items))
	}
	if items[0].ID != "h1" || !items[0].Deleted {
		t.Errorf("items[0] = %+v, want h1 deleted in place", items[0])
	}
	if items[1].Deleted {
		t.Error("unrelated message marked deleted")
	}
}

// gatedStore holds every Get until release is closed.
type gatedStore struct {
	*cache.MemoryStore
	release chan struct{}
}

func (g *gatedStore) Get(ctx context.Context, key string) ([]byte, error) {
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.MemoryStore.Get(ctx, key)
}

func TestMessaging_SlowCacheReadKeepsLiveEvent(t *testing.T) {
	e := newEnv(t, connectiontest.NewDialer())
	store := &gatedStore{MemoryStore: cache.NewMemoryStore(), release: make(chan struct{})}
	snaps := cache.NewSnapshots[model.Message](store, nil)
	stale := cache.NewEntry([]model.Message{{ID: "m1", ConversationID: "c1", Body: "cached"}}, time.Now())
	if !snaps.Save(context.Background(), cache.MessagesKey("c1"), stale) {
		t.Fatal("seeding cache failed")
	}

	coll := state.NewCollection[model.Message]("messages", reconcile.Append, e.loop, nil, "", nil)
	conv := state.NewConversation(coll, nil)
	fetch := func(ctx context.Context, id string) ([]model.Message, error) {
		return nil, &api.APIError{StatusCode: http.StatusServiceUnavailable}
	}
	msg := channel.NewMessaging(e.loop, e.ep, e.options(connection.KindMessaging, poller.ResourceMessages), conv, fetch, snaps, nil, nil)

	msg.SetConversation("c1")
	// The cache read is still blocked, so Settle cannot be used until release.
	if !e.loop.DrainUntil(func() bool {
		return msg.State() == connection.StateOpen && !msg.Refresher().InFlight()
	}, 2*time.Second) {
		t.Fatal("messaging did not open")
	}

	e.dialer.Last().Deliver(`{"type":"message.created","message":{"id":"m2","conversationId":"c1","body":"live"}}`)
	if !e.loop.DrainUntil(func() bool { return conv.Contains("m2") }, 2*time.Second) {
		t.Fatal("live message not merged")
	}

	close(store.release)
	e.settle()

	if !conv.Contains("m2") {
		t.Fatalf("items = %+v, live message lost to cached snapshot", conv.Items())
	}
	if conv.Contains("m1") {
		t.Errorf("items = %+v, cached snapshot applied after live event", conv.Items())
	}
	if msg.Polling() {
		t.Error("polling while socket is open")
	}
}

func TestMessaging_OtherConversationDropped(t *testing.T) {
	m := newMessagingFixture(t)
	m.msg.SetConversation("c1")
	m.settle()

	m.deliver(`{"type":"message.created","message":{"id":"x","conversationId":"c2"}}`)
	if m.conv.Len() != 1 {
		t.Errorf("len = %d, want 1", m.conv.Len())
	}
}

func TestMessaging_SwitchConversation(t *testing.T) {
	m := newMessagingFixture(t)

	m.msg.SetConversation("c1")
	m.settle()
	first := m.dialer.Last()

	m.msg.SetConversation("c2")
	m.settle()
	second := m.dialer.Last()

	if first == second {
		t.Fatal("switch reused the old socket")
	}
	if !first.Closed() {
		t.Error("old socket not closed")
	}
	if second.URL != "ws://sync.test/ws/conversations/c2?token=t" {
		t.Errorf("new socket url = %q", second.URL)
	}
	if m.dialer.LiveCount() != 1 {
		t.Errorf("live sockets = %d, want 1", m.dialer.LiveCount())
	}
	if m.conv.ID() != "c2" {
		t.Errorf("conversation = %q, want c2", m.conv.ID())
	}
	items := m.conv.Items()
	if len(items) != 1 || items[0].ConversationID != "c2" {
		t.Errorf("history = %+v, want c2 history", items)
	}

	// Same id again is a no-op.
	m.msg.SetConversation("c2")
	m.settle()
	if m.dialer.Last() != second {
		t.Error("re-selecting the active conversation reconnected")
	}

	m.msg.SetConversation("")
	m.settle()
	if m.dialer.LiveCount() != 0 {
		t.Errorf("live sockets after close = %d, want 0", m.dialer.LiveCount())
	}
	if m.msg.Polling() {
		t.Error("polling with no conversation")
	}
	if m.msg.State() != connection.StateClosed {
		t.Errorf("State() = %v, want closed", m.msg.State())
	}
}

func TestMessaging_Inject(t *testing.T) {
	m := newMessagingFixture(t)

	err := m.msg.Inject(channel.Event{Type: channel.TypeMessageCreated, Message: &model.Message{ID: "l1"}})
	if err == nil {
		t.Error("Inject() with no conversation should fail")
	}

	m.msg.SetConversation("c1")
	m.settle()

	if err := m.msg.Inject(channel.Event{Type: channel.TypeMessageCreated, Message: &model.Message{ID: "l1", Body: "local"}}); err != nil {
		t.Fatalf("Inject() error = %v", err)
	}
	if got, ok := m.conv.Get("l1"); !ok || got.ConversationID != "c1" {
		t.Errorf("injected message = %+v, %v", got, ok)
	}

	if err := m.msg.Inject(channel.Event{Type: channel.TypeMessageCreated}); !errors.Is(err, channel.ErrMalformedPayload) {
		t.Errorf("Inject(invalid) error = %v, want ErrMalformedPayload", err)
	}
}

// Scenario E: read_all zeroes the counter and marks loaded items read.
func TestNotifications_ReadAll(t *testing.T) {
	e := newEnv(t, connectiontest.NewDialer())
	coll := state.NewCollection[model.Notification]("notifications", reconcile.Prepend, e.loop, nil, "", nil)
	notes := state.NewNotifications(coll, nil)
	refresher := state.NewRefresher("notifications", e.loop, func(ctx context.Context) (state.NotificationsSnapshot, error) {
		return state.NotificationsSnapshot{
			Unread: 2,
			Items:  []model.Notification{{ID: "n1"}, {ID: "n2"}, {ID: "n0", Read: true}},
		}, nil
	}, notes.Apply, nil, nil)

	ch := channel.NewNotifications(e.loop, e.ep, e.options(connection.KindNotifications, poller.ResourceNotifications), notes, refresher, nil)
	ch.Open()
	e.settle()

	if notes.Unread() != 2 {
		t.Fatalf("Unread() = %d, want 2", notes.Unread())
	}

	seen := 0
	ch.OnEvent(func(channel.Event) { seen++ })
	cl := e.dialer.Last()
	cl.Deliver(`{"type":"notification.created","notification":{"id":"n3","kind":"comment"}}`)
	e.waitFor("created", func() bool { return seen == 1 })

	if notes.Unread() != 3 || notes.Items()[0].ID != "n3" {
		t.Errorf("after created: unread=%d first=%s, want 3/n3", notes.Unread(), notes.Items()[0].ID)
	}

	cl.Deliver(`{"type":"notification.read_all"}`)
	e.waitFor("read_all", func() bool { return seen == 2 })

	if notes.Unread() != 0 {
		t.Errorf("Unread() = %d, want 0", notes.Unread())
	}
	for _, n := range notes.Items() {
		if !n.Read {
			t.Errorf("notification %s still unread", n.ID)
		}
	}
	if notes.Len() != 4 {
		t.Errorf("Len() = %d, want 4", notes.Len())
	}
}

func TestNotifications_HeartbeatInterval(t *testing.T) {
	e := newEnv(t, connectiontest.NewDialer())
	coll := state.NewCollection[model.Notification]("notifications", reconcile.Prepend, e.loop, nil, "", nil)
	notes := state.NewNotifications(coll, nil)
	refresher := state.NewRefresher("notifications", e.loop, func(ctx context.Context) (state.NotificationsSnapshot, error) {
		return state.NotificationsSnapshot{}, nil
	}, notes.Apply, nil, nil)

	ch := channel.NewNotifications(e.loop, e.ep, e.options(connection.KindNotifications, poller.ResourceNotifications), notes, refresher, nil)
	ch.Open()
	e.settle()

	cl := e.dialer.Last()
	e.advance(30 * time.Second)
	if n := len(cl.Sent()); n != 1 {
		t.Errorf("pings after 30s = %d, want 1 (initial only)", n)
	}
	e.advance(15 * time.Second)
	if n := len(cl.Sent()); n != 2 {
		t.Errorf("pings after 45s = %d, want 2", n)
	}
}
