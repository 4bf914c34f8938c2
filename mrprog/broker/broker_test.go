package broker_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wchill/MrProgDiscordBot/mrprog/broker"
	"github.com/wchill/MrProgDiscordBot/mrprog/statechannel"
	"github.com/wchill/MrProgDiscordBot/mrprog/stats"
	"github.com/wchill/MrProgDiscordBot/mrprog/trade"
	"github.com/wchill/MrProgDiscordBot/mrprog/workqueue"
)

const (
	userA = snowflake.ID(1001)
	userB = snowflake.ID(1002)
	chanA = snowflake.ID(2001)
)

var testItem = trade.Item{Game: 6, Kind: trade.ItemChip, Name: "FolderBak", Code: "*"}

func newTransports(t *testing.T) (*statechannel.Memory, *workqueue.Memory) {
	t.Helper()
	sc := statechannel.NewMemory()
	// Seed the retained counter so connecting does not wait out the
	// restore timeout.
	sc.Deliver(statechannel.TopicBotTradeID, []byte("0"))
	for _, platform := range trade.Platforms() {
		for _, game := range trade.SupportedGames[platform] {
			sc.Deliver(trade.GameEnabledTopic(platform, game), []byte("1"))
		}
	}
	return sc, workqueue.NewMemory()
}

func newTestBroker(t *testing.T, sc *statechannel.Memory, wq *workqueue.Memory, cb broker.Callbacks) *broker.Broker {
	t.Helper()
	b := broker.New(sc, wq, cb)
	require.NoError(t, b.Connect(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = b.Disconnect(ctx)
	})
	return b
}

func submit(t *testing.T, b *broker.Broker, userID snowflake.ID, priority int) *trade.Request {
	t.Helper()
	req, err := b.Submit(context.Background(), "tester", userID, chanA, trade.PlatformSwitch, testItem.Game, testItem, priority, false)
	require.NoError(t, err)
	return req
}

func waitResponse(t *testing.T, ch <-chan *trade.Response) *trade.Response {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for notification callback")
		return nil
	}
}

func TestSubmitRejectsUnsupportedGame(t *testing.T) {
	sc, wq := newTransports(t)
	b := newTestBroker(t, sc, wq, broker.Callbacks{})

	_, err := b.Submit(context.Background(), "tester", userA, chanA, trade.PlatformSwitch, 2, testItem, 0, false)
	var unsupported *broker.UnsupportedGameError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, 2, unsupported.Game)
}

func TestSubmitRejectsDisabledGame(t *testing.T) {
	sc, wq := newTransports(t)
	b := newTestBroker(t, sc, wq, broker.Callbacks{})

	require.NoError(t, b.SetGameEnabled(context.Background(), trade.PlatformSwitch, 6, false))

	_, err := b.Submit(context.Background(), "tester", userA, chanA, trade.PlatformSwitch, 6, testItem, 0, false)
	var disabled *broker.GameDisabledError
	require.ErrorAs(t, err, &disabled)

	require.NoError(t, b.SetGameEnabled(context.Background(), trade.PlatformSwitch, 6, true))
	submit(t, b, userA, 0)
}

func TestSubmitRejectsDuplicateUser(t *testing.T) {
	sc, wq := newTransports(t)
	b := newTestBroker(t, sc, wq, broker.Callbacks{})

	first := submit(t, b, userA, 0)

	_, err := b.Submit(context.Background(), "tester", userA, chanA, trade.PlatformSwitch, testItem.Game, testItem, 0, false)
	var dup *broker.AlreadyQueuedError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, first.TradeID, dup.Existing.TradeID)

	// Admin submissions bypass the duplicate check.
	_, err = b.Submit(context.Background(), "tester", userA, chanA, trade.PlatformSwitch, testItem.Game, testItem, 10, true)
	require.NoError(t, err)
	assert.Equal(t, 2, wq.Len(trade.PlatformSwitch, testItem.Game))
}

func TestSubmitAssignsSequenceFromRetainedCounter(t *testing.T) {
	sc, wq := newTransports(t)
	sc.Deliver(statechannel.TopicBotTradeID, []byte("41"))
	b := newTestBroker(t, sc, wq, broker.Callbacks{})

	first := submit(t, b, userA, 0)
	second := submit(t, b, userB, 0)
	assert.Equal(t, 41, first.TradeID)
	assert.Equal(t, 42, second.TradeID)

	raw, ok := sc.Value(statechannel.TopicBotTradeID)
	require.True(t, ok)
	assert.Equal(t, "43", string(raw))
}

func TestRoomReadyMovesRequestToInProgress(t *testing.T) {
	sc, wq := newTransports(t)
	roomReady := make(chan *trade.Response, 4)
	updates := make(chan *trade.Response, 4)
	b := newTestBroker(t, sc, wq, broker.Callbacks{
		OnRoomReady:   func(r *trade.Response) { roomReady <- r },
		OnTradeUpdate: func(r *trade.Response) { updates <- r },
	})

	req := submit(t, b, userA, 0)

	task, ok := wq.PopNext(trade.PlatformSwitch, testItem.Game)
	require.True(t, ok)
	require.Equal(t, workqueue.NotificationQueueName, task.ReplyTo)

	body, err := (&trade.Response{
		Request:  req,
		Status:   trade.StatusInProgress,
		Image:    []byte("roomcode"),
		WorkerID: "switch-1",
	}).Encode()
	require.NoError(t, err)
	wq.Inject(workqueue.Delivery{Body: body, CorrelationID: task.CorrelationID})

	got := waitResponse(t, roomReady)
	assert.Equal(t, "switch-1", got.WorkerID)

	snap := b.Queue()
	assert.Empty(t, snap.Queued)
	require.Len(t, snap.InProgress, 1)
	assert.Equal(t, task.CorrelationID, snap.InProgress[0].CorrelationID)
	// The user stays indexed until the trade terminates.
	assert.Contains(t, snap.QueuedUsers, userA)

	// A redelivered room-ready must not re-announce. The trailing terminal
	// notification proves the duplicate was consumed first.
	wq.Inject(workqueue.Delivery{Body: body, CorrelationID: task.CorrelationID})
	done, err := (&trade.Response{Request: req, Status: trade.StatusSuccess}).Encode()
	require.NoError(t, err)
	wq.Inject(workqueue.Delivery{Body: done, CorrelationID: task.CorrelationID})

	waitResponse(t, updates)
	assert.Empty(t, roomReady)

	snap = b.Queue()
	assert.Empty(t, snap.Queued)
	assert.Empty(t, snap.InProgress)
	assert.Empty(t, snap.QueuedUsers)
}

func TestNotificationForUnknownCorrelationIDIsDropped(t *testing.T) {
	sc, wq := newTransports(t)
	updates := make(chan *trade.Response, 4)
	b := newTestBroker(t, sc, wq, broker.Callbacks{
		OnTradeUpdate: func(r *trade.Response) { updates <- r },
	})

	req := submit(t, b, userA, 0)
	task, ok := wq.PopNext(trade.PlatformSwitch, testItem.Game)
	require.True(t, ok)

	stray, err := (&trade.Response{Request: req, Status: trade.StatusSuccess}).Encode()
	require.NoError(t, err)
	wq.Inject(workqueue.Delivery{Body: stray, CorrelationID: uuid.NewString()})

	// The known trade still completes after the stray message.
	done, err := (&trade.Response{Request: req, Status: trade.StatusSuccess}).Encode()
	require.NoError(t, err)
	wq.Inject(workqueue.Delivery{Body: done, CorrelationID: task.CorrelationID})

	waitResponse(t, updates)
	assert.Empty(t, updates)
	assert.Empty(t, b.Queue().QueuedUsers)
}

func TestCancelRemovesPendingRequest(t *testing.T) {
	sc, wq := newTransports(t)
	b := newTestBroker(t, sc, wq, broker.Callbacks{})

	submit(t, b, userA, 0)
	reqB := submit(t, b, userB, 0)

	removed, err := b.Cancel(context.Background(), userA)
	require.NoError(t, err)
	assert.True(t, removed)

	snap := b.Queue()
	require.Len(t, snap.Queued, 1)
	assert.Equal(t, reqB.TradeID, snap.Queued[0].Request.TradeID)
	assert.NotContains(t, snap.QueuedUsers, userA)
	assert.Equal(t, 1, wq.Len(trade.PlatformSwitch, testItem.Game))

	removed, err = b.Cancel(context.Background(), userA)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestCancelBeforeConnectHonoredByReconciliation(t *testing.T) {
	sc, wq := newTransports(t)

	// Two requests survive in the durable queues from a previous run.
	for i, userID := range []snowflake.ID{userA, userB} {
		body, err := (&trade.Request{
			UserName: "tester",
			UserID:   userID,
			Platform: trade.PlatformSwitch,
			Game:     testItem.Game,
			TradeID:  i,
			Item:     testItem,
		}).Encode()
		require.NoError(t, err)
		require.NoError(t, wq.Publish(context.Background(), trade.PlatformSwitch, testItem.Game, body, 0, uuid.NewString(), workqueue.NotificationQueueName))
	}

	b := broker.New(sc, wq, broker.Callbacks{})

	removed, err := b.Cancel(context.Background(), userA)
	require.NoError(t, err)
	assert.False(t, removed)

	require.NoError(t, b.Connect(context.Background()))
	t.Cleanup(func() { _ = b.Disconnect(context.Background()) })

	snap := b.Queue()
	require.Len(t, snap.Queued, 1)
	assert.Equal(t, userB, snap.Queued[0].Request.UserID)
	assert.Equal(t, 1, wq.Len(trade.PlatformSwitch, testItem.Game))
}

func TestClearQueueKeepsInProgressTrades(t *testing.T) {
	sc, wq := newTransports(t)
	roomReady := make(chan *trade.Response, 4)
	b := newTestBroker(t, sc, wq, broker.Callbacks{
		OnRoomReady: func(r *trade.Response) { roomReady <- r },
	})

	reqA := submit(t, b, userA, 0)
	submit(t, b, userB, 0)

	task, ok := wq.PopNext(trade.PlatformSwitch, testItem.Game)
	require.True(t, ok)
	body, err := (&trade.Response{Request: reqA, Status: trade.StatusInProgress, Image: []byte("img")}).Encode()
	require.NoError(t, err)
	wq.Inject(workqueue.Delivery{Body: body, CorrelationID: task.CorrelationID})
	waitResponse(t, roomReady)

	removed, err := b.ClearQueue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	snap := b.Queue()
	assert.Empty(t, snap.Queued)
	require.Len(t, snap.InProgress, 1)
	assert.Contains(t, snap.QueuedUsers, userA)
	assert.NotContains(t, snap.QueuedUsers, userB)
	assert.Equal(t, 0, wq.Len(trade.PlatformSwitch, testItem.Game))
}

func TestConnectAnnouncesAvailability(t *testing.T) {
	sc, wq := newTransports(t)
	newTestBroker(t, sc, wq, broker.Callbacks{})

	v, ok := sc.Value(statechannel.TopicBotAvailable)
	require.True(t, ok)
	assert.Equal(t, "1", string(v))

	v, ok = sc.Value(statechannel.TopicBotHostname)
	require.True(t, ok)
	assert.NotEmpty(t, v)
}

func TestDisconnectRetractsAvailability(t *testing.T) {
	sc, wq := newTransports(t)
	b := broker.New(sc, wq, broker.Callbacks{})
	require.NoError(t, b.Connect(context.Background()))
	require.NoError(t, b.Disconnect(context.Background()))

	v, ok := sc.Value(statechannel.TopicBotAvailable)
	require.True(t, ok)
	assert.Equal(t, "0", string(v))
}

func TestQueueModifiedFlag(t *testing.T) {
	sc, wq := newTransports(t)
	b := newTestBroker(t, sc, wq, broker.Callbacks{})

	b.ResetQueueModified()
	assert.False(t, b.QueueModified())
	submit(t, b, userA, 0)
	assert.True(t, b.QueueModified())
}

func TestTerminalWithoutRequestStillFreesUser(t *testing.T) {
	sc, wq := newTransports(t)
	updates := make(chan *trade.Response, 4)
	b := newTestBroker(t, sc, wq, broker.Callbacks{
		OnTradeUpdate: func(r *trade.Response) { updates <- r },
	})

	req := submit(t, b, userA, 0)
	task, ok := wq.PopNext(trade.PlatformSwitch, testItem.Game)
	require.True(t, ok)

	// Status-only update: no request on the wire.
	done, err := (&trade.Response{Status: trade.StatusSuccess, WorkerID: "switch-1"}).Encode()
	require.NoError(t, err)
	wq.Inject(workqueue.Delivery{Body: done, CorrelationID: task.CorrelationID})

	got := waitResponse(t, updates)
	require.NotNil(t, got.Request)
	assert.Equal(t, req.TradeID, got.Request.TradeID)

	snap := b.Queue()
	assert.Empty(t, snap.Queued)
	assert.Empty(t, snap.InProgress)
	assert.Empty(t, snap.QueuedUsers)

	// The user can immediately queue again.
	submit(t, b, userA, 0)
}

func TestRoomReadyWithoutRequestResolvesFromCache(t *testing.T) {
	sc, wq := newTransports(t)
	roomReady := make(chan *trade.Response, 4)
	b := newTestBroker(t, sc, wq, broker.Callbacks{
		OnRoomReady: func(r *trade.Response) { roomReady <- r },
	})

	req := submit(t, b, userA, 0)
	task, ok := wq.PopNext(trade.PlatformSwitch, testItem.Game)
	require.True(t, ok)

	ready, err := (&trade.Response{Status: trade.StatusInProgress, Image: []byte("code")}).Encode()
	require.NoError(t, err)
	wq.Inject(workqueue.Delivery{Body: ready, CorrelationID: task.CorrelationID})

	got := waitResponse(t, roomReady)
	require.NotNil(t, got.Request)
	assert.Equal(t, req.UserID, got.Request.UserID)
	assert.Contains(t, b.Queue().QueuedUsers, userA)
}

func TestTradeLifecycleRecordsStats(t *testing.T) {
	sc, wq := newTransports(t)
	store, err := stats.Load(filepath.Join(t.TempDir(), "stats.json"))
	require.NoError(t, err)

	roomReady := make(chan *trade.Response, 4)
	updates := make(chan *trade.Response, 4)
	b := newTestBroker(t, sc, wq, broker.Callbacks{
		OnRoomReady: func(r *trade.Response) { roomReady <- r },
		OnTradeUpdate: func(r *trade.Response) {
			if r.Status == trade.StatusSuccess {
				_ = store.RecordTrade(r.Request.UserID, r.Request.Item)
			}
			updates <- r
		},
	})

	req := submit(t, b, userA, 0)
	require.Len(t, b.Queue().Queued, 1)

	task, ok := wq.PopNext(trade.PlatformSwitch, testItem.Game)
	require.True(t, ok)

	ready, err := (&trade.Response{Request: req, Status: trade.StatusInProgress, Image: []byte("code")}).Encode()
	require.NoError(t, err)
	wq.Inject(workqueue.Delivery{Body: ready, CorrelationID: task.CorrelationID})
	waitResponse(t, roomReady)

	done, err := (&trade.Response{Request: req, Status: trade.StatusSuccess}).Encode()
	require.NoError(t, err)
	wq.Inject(workqueue.Delivery{Body: done, CorrelationID: task.CorrelationID})
	waitResponse(t, updates)

	assert.Empty(t, b.Queue().InProgress)
	user, ok := store.User(userA)
	require.True(t, ok)
	assert.Equal(t, 1, user.Trades[testItem.Key()].Count)
}

func TestGameDisabledErrorUnwraps(t *testing.T) {
	err := error(&broker.GameDisabledError{Platform: trade.PlatformSteam, Game: 4})
	var disabled *broker.GameDisabledError
	require.True(t, errors.As(err, &disabled))
	assert.Contains(t, err.Error(), "steam")
}
