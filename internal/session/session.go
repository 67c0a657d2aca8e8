package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/feedsync/internal/cache"
	"github.com/rickgao/feedsync/internal/channel"
	"github.com/rickgao/feedsync/internal/config"
	"github.com/rickgao/feedsync/internal/connection"
	"github.com/rickgao/feedsync/internal/loop"
	"github.com/rickgao/feedsync/internal/model"
	"github.com/rickgao/feedsync/internal/poller"
	"github.com/rickgao/feedsync/internal/reconcile"
	"github.com/rickgao/feedsync/internal/state"
)

// Session errors.
var (
	ErrAlreadyStarted = errors.New("session already started")
	ErrNotStarted     = errors.New("session not started")
)

// cacheTimeout bounds each cache read during Start.
const cacheTimeout = 5 * time.Second

// markReadTimeout bounds the mark-all-read request.
const markReadTimeout = 15 * time.Second

// Session keeps one user's feed, active conversation and notifications in
// sync with the server.
type Session struct {
	id      string
	cfg     *config.Config
	backend Backend
	store   cache.Store
	clock   loop.Clock
	factory connection.ClientFactory
	logger  *slog.Logger

	loop    *loop.Loop
	notices *state.Notices

	feedItems *state.Collection[model.FeedItem]
	feedSnaps *cache.Snapshots[model.FeedItem]
	conv      *state.Conversation
	notes     *state.Notifications
	noteSnaps *cache.Snapshots[model.Notification]

	feedRefresher  *state.Refresher[[]model.FeedItem]
	notesRefresher *state.Refresher[state.NotificationsSnapshot]

	feed          *channel.Feed
	messaging     *channel.Messaging
	notifications *channel.Notifications

	// Copies published by the loop for lock-free reads.
	feedView  atomic.Pointer[[]model.FeedItem]
	msgView   atomic.Pointer[[]model.Message]
	noteView  atomic.Pointer[[]model.Notification]
	unread    atomic.Int64
	activeID  atomic.Pointer[string]
	startedAt time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a session. store may be nil, in which case snapshots are
// kept in memory only. token supplies the websocket auth token.
func New(cfg *config.Config, backend Backend, token channel.TokenFunc, store cache.Store, opts ...Option) (*Session, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if backend == nil {
		return nil, fmt.Errorf("backend is required")
	}
	if store == nil {
		store = cache.NewMemoryStore()
	}

	s := &Session{
		id:      cfg.Session.ID,
		cfg:     cfg,
		backend: backend,
		store:   store,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}
	s.logger = s.logger.With("session", s.id)

	s.loop = loop.New(s.clock, s.logger)
	s.notices = state.NewNotices(s.loop.Clock().Now, s.logger)

	s.build(endpoints(cfg, token))
	s.publish()
	return s, nil
}

// build creates collections, refreshers and channels and wires the views.
func (s *Session) build(ep channel.Endpoints) {
	lp, logger := s.loop, s.logger

	s.feedSnaps = cache.NewSnapshots[model.FeedItem](s.store, logger)
	s.feedItems = state.NewCollection(poller.ResourceFeed, reconcile.Refetch, lp, s.feedSnaps, cache.FeedKey, logger)
	s.feedRefresher = state.NewRefresher(poller.ResourceFeed, lp, s.backend.ListFeed, func(items []model.FeedItem) {
		s.feedItems.Replace(items)
	}, s.notices, logger)
	s.feed = channel.NewFeed(lp, ep, channelOptions(s.cfg, connection.KindFeed, s.factory), s.feedRefresher, logger)

	msgSnaps := cache.NewSnapshots[model.Message](s.store, logger)
	msgs := state.NewCollection(poller.ResourceMessages, reconcile.Append, lp, msgSnaps, "", logger)
	s.conv = state.NewConversation(msgs, logger)
	s.messaging = channel.NewMessaging(lp, ep, channelOptions(s.cfg, connection.KindMessaging, s.factory),
		s.conv, s.backend.ListMessages, msgSnaps, s.notices, logger)

	s.noteSnaps = cache.NewSnapshots[model.Notification](s.store, logger)
	notes := state.NewCollection(poller.ResourceNotifications, reconcile.Prepend, lp, s.noteSnaps, cache.NotificationsKey, logger)
	s.notes = state.NewNotifications(notes, logger)
	s.notesRefresher = state.NewRefresher(poller.ResourceNotifications, lp, fetchNotifications(s.backend), s.notes.Apply, s.notices, logger)
	s.notifications = channel.NewNotifications(lp, ep, channelOptions(s.cfg, connection.KindNotifications, s.factory),
		s.notes, s.notesRefresher, logger)

	s.feedItems.OnChange(func(items []model.FeedItem) { s.feedView.Store(&items) })
	s.conv.OnChange(func(items []model.Message) { s.msgView.Store(&items) })
	s.notes.OnChange(func(items []model.Notification) { s.noteView.Store(&items) })
	s.notes.OnUnread(func(n int) { s.unread.Store(int64(n)) })
}

func (s *Session) publish() {
	feed := s.feedItems.Items()
	msgs := s.conv.Items()
	notes := s.notes.Items()
	id := s.conv.ID()

	s.feedView.Store(&feed)
	s.msgView.Store(&msgs)
	s.noteView.Store(&notes)
	s.activeID.Store(&id)
	s.unread.Store(int64(s.notes.Unread()))
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Start restores cached snapshots, opens the feed and notifications
// channels (and the configured conversation, if any) and starts the loop
// in the background.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return ErrAlreadyStarted
	}

	feedEntry, noteEntry, err := s.loadCaches(ctx)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.startedAt = time.Now()

	s.loop.Post(func() {
		if feedEntry != nil {
			s.feedItems.Restore(*feedEntry)
		}
		if noteEntry != nil {
			s.notes.Restore(*noteEntry)
		}

		s.feed.Open()
		s.notifications.Open()
		if id := s.cfg.Session.Conversation; id != "" {
			s.switchConversation(id)
		}
	})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.loop.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("session loop exited", "error", err)
		}
	}()

	s.logger.Info("session started",
		"restored_feed", feedEntry != nil,
		"restored_notifications", noteEntry != nil,
		"conversation", s.cfg.Session.Conversation,
	)
	return nil
}

// loadCaches reads the feed and notifications snapshots in parallel. A miss
// yields a nil entry.
func (s *Session) loadCaches(ctx context.Context) (*cache.Entry[model.FeedItem], *cache.Entry[model.Notification], error) {
	var (
		feedEntry *cache.Entry[model.FeedItem]
		noteEntry *cache.Entry[model.Notification]
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lctx, cancel := context.WithTimeout(gctx, cacheTimeout)
		defer cancel()
		if entry, ok := s.feedSnaps.Load(lctx, cache.FeedKey); ok {
			feedEntry = &entry
		}
		return gctx.Err()
	})
	g.Go(func() error {
		lctx, cancel := context.WithTimeout(gctx, cacheTimeout)
		defer cancel()
		if entry, ok := s.noteSnaps.Load(lctx, cache.NotificationsKey); ok {
			noteEntry = &entry
		}
		return gctx.Err()
	})
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("restore caches: %w", err)
	}
	return feedEntry, noteEntry, nil
}

// Stop closes every channel, stops polling and shuts the loop down. Work
// already queued still runs.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}

	err := s.loop.Call(ctx, func() {
		s.feed.Close()
		s.messaging.Close()
		s.notifications.Close()
		s.feedRefresher.Cancel()
		s.notesRefresher.Cancel()
	})
	if err != nil && !errors.Is(err, loop.ErrClosed) {
		s.logger.Warn("closing channels", "error", err)
	}
	s.loop.Close()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		cancel()
		s.logger.Info("session stopped")
		return nil
	case <-ctx.Done():
		cancel()
		return ctx.Err()
	}
}

// SetConversation switches the messaging channel to id. An empty id closes
// messaging.
func (s *Session) SetConversation(id string) {
	s.loop.Post(func() { s.switchConversation(id) })
}

func (s *Session) switchConversation(id string) {
	s.messaging.SetConversation(id)
	s.activeID.Store(&id)
	msgs := s.conv.Items()
	s.msgView.Store(&msgs)
}

// RefreshFeed refetches the feed. force supersedes a fetch in flight.
func (s *Session) RefreshFeed(force bool) {
	s.loop.Post(func() { s.feed.Refresh(force) })
}

// RefreshMessages refetches the active conversation's history.
func (s *Session) RefreshMessages(force bool) {
	s.loop.Post(func() { s.messaging.Refresh(force) })
}

// RefreshNotifications refetches the unread counter and list.
func (s *Session) RefreshNotifications(force bool) {
	s.loop.Post(func() { s.notifications.Refresh(force) })
}

// ApplyLocalMessage merges a locally sent or edited message into the active
// conversation ahead of the server echo.
func (s *Session) ApplyLocalMessage(msg model.Message) {
	s.loop.Post(func() {
		if _, ok := s.conv.ApplyLocal(msg); !ok {
			s.logger.Debug("local message not applied", "message_id", msg.ID)
		}
	})
}

// DeleteLocalMessage marks a loaded message deleted ahead of the server.
func (s *Session) DeleteLocalMessage(id string) {
	s.loop.Post(func() { s.conv.DeleteLocal(id) })
}

// MarkAllNotificationsRead clears the unread counter locally and tells the
// server. If the request fails a notice is raised and the list is
// refetched to restore the server's view.
func (s *Session) MarkAllNotificationsRead() {
	s.loop.Post(func() {
		s.notes.ReadAll()

		loop.Async(s.loop, func() error {
			ctx, cancel := context.WithTimeout(context.Background(), markReadTimeout)
			defer cancel()
			return s.backend.MarkAllNotificationsRead(ctx)
		}, func(err error) {
			if err == nil {
				return
			}
			s.logger.Warn("mark all read failed", "error", err)
			s.notices.Fail(poller.ResourceNotifications, err)
			s.notesRefresher.Refresh(true)
		})
	})
}

// Feed returns the current feed.
func (s *Session) Feed() []model.FeedItem {
	return *s.feedView.Load()
}

// Messages returns the active conversation id and its history.
func (s *Session) Messages() (string, []model.Message) {
	return *s.activeID.Load(), *s.msgView.Load()
}

// Notifications returns the loaded notifications, newest first.
func (s *Session) Notifications() []model.Notification {
	return *s.noteView.Load()
}

// Unread returns the unread notification counter.
func (s *Session) Unread() int {
	return int(s.unread.Load())
}

// OnFeed registers an observer of feed changes. Observers run on the
// session loop and must not block.
func (s *Session) OnFeed(fn func(items []model.FeedItem)) {
	s.loop.Post(func() { s.feedItems.OnChange(fn) })
}

// OnMessages registers an observer of the active conversation's history.
func (s *Session) OnMessages(fn func(items []model.Message)) {
	s.loop.Post(func() { s.conv.OnChange(fn) })
}

// OnNotifications registers an observer of the notification list.
func (s *Session) OnNotifications(fn func(items []model.Notification)) {
	s.loop.Post(func() { s.notes.OnChange(fn) })
}

// OnUnread registers an observer of the unread counter.
func (s *Session) OnUnread(fn func(unread int)) {
	s.loop.Post(func() { s.notes.OnUnread(fn) })
}

// OnNotice registers an observer of fetch failures and recoveries.
func (s *Session) OnNotice(fn func(state.Notice)) {
	s.loop.Post(func() { s.notices.OnNotice(fn) })
}
