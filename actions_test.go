package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nostr-columns/internal/types"
)

func TestMain(m *testing.M) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	os.Exit(m.Run())
}

const testSecretHex = "0101010101010101010101010101010101010101010101010101010101010101"

func hexID(b byte) string {
	return strings.Repeat(fmt.Sprintf("%02x", b), 32)
}

func textNote(id, author byte, createdAt int64, tags [][]string) *types.Event {
	return &types.Event{
		ID:        hexID(id),
		PubKey:    hexID(author),
		CreatedAt: createdAt,
		Kind:      types.KindTextNote,
		Tags:      tags,
		Content:   fmt.Sprintf("note %d", id),
	}
}

// harness wires the full dispatch environment around a note database,
// with the zap pipeline's network collaborators stubbed out.
type harness struct {
	db         *NoteDB
	noteCache  *NoteCache
	timelines  *TimelineCache
	unknownIDs *UnknownIDs
	pool       *RelayPool
	accounts   *Accounts
	global     *GlobalWallet
	zaps       *Zaps
	images     *Images

	invoiceAmounts chan int64
	payments       chan string
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db := NewNoteDB()
	pool := NewRelayPool()
	h := &harness{
		db:             db,
		noteCache:      NewNoteCache(),
		timelines:      NewTimelineCache(),
		unknownIDs:     NewUnknownIDs(),
		pool:           pool,
		accounts:       NewAccounts(),
		global:         &GlobalWallet{},
		zaps:           NewZaps(db, pool),
		images:         NewImages(newMemBackend()),
		invoiceAmounts: make(chan int64, 4),
		payments:       make(chan string, 4),
	}

	h.zaps.resolveRecipient = func(profile *types.ProfileInfo) (*LNURLPayInfo, error) {
		return &LNURLPayInfo{Callback: "https://pay.example/cb", AllowsNostr: true}, nil
	}
	h.zaps.fetchInvoice = func(info *LNURLPayInfo, msats int64, zapRequestJSON string) (string, error) {
		h.invoiceAmounts <- msats
		return "lnbc1testinvoice", nil
	}
	h.zaps.payInvoice = func(ctx context.Context, nwc *NWCConfig, invoice string) error {
		h.payments <- invoice
		return nil
	}
	return h
}

func newMemBackend() *memBackend {
	return &memBackend{data: make(map[string][]byte)}
}

type memBackend struct {
	data map[string][]byte
}

func (m *memBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memBackend) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.data[key] = value
	return nil
}

func (m *memBackend) Delete(_ context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func (m *memBackend) Close() error { return nil }

// env opens a read transaction and builds the dispatch environment
// around it. The returned cleanup ends the transaction.
func (h *harness) env() (*ActionEnv, func()) {
	txn := h.db.NewTxn()
	return &ActionEnv{
		Txn:        txn,
		NoteCache:  h.noteCache,
		Timelines:  h.timelines,
		UnknownIDs: h.unknownIDs,
		Pool:       h.pool,
		Accounts:   h.accounts,
		Global:     h.global,
		Zaps:       h.zaps,
		Images:     h.images,
	}, txn.End
}

func (h *harness) login(t *testing.T) *Account {
	t.Helper()
	acc, err := h.accounts.AddFromSecretHex(testSecretHex)
	require.NoError(t, err)
	return acc
}

func (h *harness) attachWallet(defaultMsats uint64) {
	h.global.Wallet = &Wallet{NWC: &NWCConfig{}, DefaultZapMsats: defaultMsats}
}

func (h *harness) dispatch(t *testing.T, action NoteAction, router *Router) *RouterAction {
	t.Helper()
	env, done := h.env()
	defer done()
	return ExecuteAndProcessNoteAction(action, env, router)
}

func TestProfileActionOpensTimelineOnce(t *testing.T) {
	h := newHarness(t)
	author := byte(0xaa)
	h.db.Ingest(textNote(1, author, 100, nil))
	h.db.Ingest(textNote(2, author, 200, nil))

	router := NewRouter(TimelineRoute(ProfileTimeline("")))
	h.dispatch(t, ProfileAction{Pubkey: hexID(author)}, router)
	h.dispatch(t, ProfileAction{Pubkey: hexID(author)}, router)

	assert.Equal(t, 1, h.timelines.Len(), "equal kinds must share one timeline")

	timeline, ok := h.timelines.Get(ProfileTimeline(hexID(author)))
	require.True(t, ok)
	assert.Equal(t, 2, timeline.Len())
}

func TestProfileTimelineMergesNewestFirst(t *testing.T) {
	h := newHarness(t)
	author := byte(0xaa)
	h.db.Ingest(textNote(1, author, 100, nil))
	h.db.Ingest(textNote(2, author, 200, nil))
	h.db.Ingest(textNote(3, author, 300, nil))

	router := NewRouter(TimelineRoute(ProfileTimeline("")))
	h.dispatch(t, ProfileAction{Pubkey: hexID(author)}, router)

	timeline, ok := h.timelines.Get(ProfileTimeline(hexID(author)))
	require.True(t, ok)
	assert.Equal(t, []types.NoteKey{3, 2, 1}, timeline.Notes())
}

func TestThreadTimelineMergesRootFirst(t *testing.T) {
	h := newHarness(t)
	root := textNote(1, 0xaa, 100, nil)
	reply1 := textNote(2, 0xbb, 200, [][]string{{"e", root.ID, "", "root"}})
	reply2 := textNote(3, 0xcc, 300, [][]string{
		{"e", root.ID, "", "root"},
		{"e", reply1.ID, "", "reply"},
	})
	h.db.Ingest(root)
	h.db.Ingest(reply1)
	h.db.Ingest(reply2)

	router := NewRouter(TimelineRoute(ProfileTimeline("")))
	h.dispatch(t, ThreadAction{NoteID: reply2.ID}, router)

	timeline, ok := h.timelines.Get(ThreadTimeline(ThreadSelection{Root: root.ID}))
	require.True(t, ok, "thread must be keyed by its resolved root")
	assert.Equal(t, []types.NoteKey{1, 2, 3}, timeline.Notes(), "threads merge reversed so the root lands first")
}

func TestThreadActionResolvesRootFromReply(t *testing.T) {
	h := newHarness(t)
	root := textNote(1, 0xaa, 100, nil)
	reply := textNote(2, 0xbb, 200, [][]string{{"e", root.ID, "", "root"}})
	h.db.Ingest(root)
	h.db.Ingest(reply)

	router := NewRouter(TimelineRoute(ProfileTimeline("")))
	h.dispatch(t, ThreadAction{NoteID: reply.ID}, router)

	top := router.Top()
	require.NotNil(t, top)
	assert.Equal(t, RouteTimeline, top.Kind)
	assert.Equal(t, root.ID, top.Timeline.Thread.Root)
}

func TestThreadActionUnknownNoteIsNoOp(t *testing.T) {
	h := newHarness(t)
	router := NewRouter(TimelineRoute(ProfileTimeline("")))

	action := h.dispatch(t, ThreadAction{NoteID: hexID(0x77)}, router)

	assert.Nil(t, action, "failed resolution must not navigate")
	assert.Equal(t, 0, h.timelines.Len(), "failed resolution must not open a timeline")
	assert.Equal(t, 1, router.Depth())
}

func TestReplyActionSeedsComposerPreview(t *testing.T) {
	h := newHarness(t)
	note := textNote(1, 0xaa, 100, nil)
	note.Content = "hello   world"
	h.db.Ingest(note)

	router := NewRouter(TimelineRoute(ProfileTimeline("")))
	h.dispatch(t, ReplyAction{TargetID: note.ID}, router)

	top := router.Top()
	require.NotNil(t, top)
	assert.Equal(t, RouteReply, top.Kind)
	assert.Equal(t, note.ID, top.TargetID)
	assert.Equal(t, "hello world", top.Preview)
}

func TestQuoteActionUnknownNoteStillNavigates(t *testing.T) {
	h := newHarness(t)
	router := NewRouter(TimelineRoute(ProfileTimeline("")))

	h.dispatch(t, QuoteAction{TargetID: hexID(0x42)}, router)

	top := router.Top()
	require.NotNil(t, top)
	assert.Equal(t, RouteQuote, top.Kind)
	assert.Empty(t, top.Preview)
}

func TestHashtagActionOpensHashtagTimeline(t *testing.T) {
	h := newHarness(t)
	tagged := textNote(1, 0xaa, 100, [][]string{{"t", "gophers"}})
	other := textNote(2, 0xbb, 200, nil)
	h.db.Ingest(tagged)
	h.db.Ingest(other)

	router := NewRouter(TimelineRoute(ProfileTimeline("")))
	h.dispatch(t, HashtagAction{Hashtag: "gophers"}, router)

	timeline, ok := h.timelines.Get(HashtagTimeline("gophers"))
	require.True(t, ok)
	assert.Equal(t, []types.NoteKey{1}, timeline.Notes())
}

func TestZapSendWithoutAccountIsNoOp(t *testing.T) {
	h := newHarness(t)
	h.attachWallet(5000)
	router := NewRouter(TimelineRoute(ProfileTimeline("")))

	target := NoteZapTarget{NoteID: hexID(1), Author: hexID(0xaa)}
	action := h.dispatch(t, ZapAction{Inner: SendZapIntent{Amount: ZapTargetAmount{Target: target}}}, router)

	assert.Nil(t, action)
	assert.Equal(t, 0, h.zaps.Len(), "no ledger entry without a signing account")
}

func TestZapSendWithoutWalletRecordsFailure(t *testing.T) {
	h := newHarness(t)
	acc := h.login(t)
	router := NewRouter(TimelineRoute(ProfileTimeline("")))

	target := NoteZapTarget{NoteID: hexID(1), Author: hexID(0xaa)}
	h.dispatch(t, ZapAction{Inner: SendZapIntent{Amount: ZapTargetAmount{Target: target}}}, router)

	zapErr := h.zaps.ErrorFor(acc.PubKey, target)
	require.NotNil(t, zapErr)
	assert.Equal(t, ZapErrSenderNoWallet, zapErr.Kind)

	select {
	case <-h.invoiceAmounts:
		t.Fatal("no invoice may be requested without a wallet")
	default:
	}
}

func TestZapSendUsesWalletDefaultAmount(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.attachWallet(5000)
	router := NewRouter(TimelineRoute(ProfileTimeline("")))

	target := NoteZapTarget{NoteID: hexID(1), Author: hexID(0xaa)}
	h.dispatch(t, ZapAction{Inner: SendZapIntent{Amount: ZapTargetAmount{Target: target}}}, router)

	select {
	case msats := <-h.invoiceAmounts:
		assert.Equal(t, int64(5000), msats)
	case <-time.After(2 * time.Second):
		t.Fatal("invoice request never happened")
	}
}

func TestZapSendUsesSpecifiedAmount(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.attachWallet(5000)
	router := NewRouter(TimelineRoute(ProfileTimeline("")))

	specified := uint64(1234)
	target := NoteZapTarget{NoteID: hexID(1), Author: hexID(0xaa)}
	h.dispatch(t, ZapAction{Inner: SendZapIntent{Amount: ZapTargetAmount{
		Target:         target,
		SpecifiedMsats: &specified,
	}}}, router)

	select {
	case msats := <-h.invoiceAmounts:
		assert.Equal(t, int64(1234), msats)
	case <-time.After(2 * time.Second):
		t.Fatal("invoice request never happened")
	}

	select {
	case invoice := <-h.payments:
		assert.Equal(t, "lnbc1testinvoice", invoice)
	case <-time.After(2 * time.Second):
		t.Fatal("payment never happened")
	}
}

func TestZapSendDismissesOpenSheet(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.attachWallet(5000)

	target := NoteZapTarget{NoteID: hexID(1), Author: hexID(0xaa)}
	router := NewRouter(TimelineRoute(ProfileTimeline("")))
	router.ShowSheet(CustomizeZapAmountRoute(target))
	require.Equal(t, RouterSheet, router.ActiveKind())

	action := h.dispatch(t, ZapAction{Inner: SendZapIntent{Amount: ZapTargetAmount{Target: target}}}, router)

	require.NotNil(t, action)
	assert.Equal(t, RouterActionGoBack, action.Type)
	assert.Nil(t, router.CurrentModal(), "the amount sheet must close after submitting")
}

func TestZapSendWithoutWalletKeepsSheetOpen(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	target := NoteZapTarget{NoteID: hexID(1), Author: hexID(0xaa)}
	router := NewRouter(TimelineRoute(ProfileTimeline("")))
	router.ShowSheet(CustomizeZapAmountRoute(target))

	action := h.dispatch(t, ZapAction{Inner: SendZapIntent{Amount: ZapTargetAmount{Target: target}}}, router)

	assert.Nil(t, action, "an aborted send must not navigate")
	assert.NotNil(t, router.CurrentModal())
}

func TestZapSendFromStackEmitsNoNavigation(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.attachWallet(5000)
	router := NewRouter(TimelineRoute(ProfileTimeline("")))

	target := NoteZapTarget{NoteID: hexID(1), Author: hexID(0xaa)}
	action := h.dispatch(t, ZapAction{Inner: SendZapIntent{Amount: ZapTargetAmount{Target: target}}}, router)

	assert.Nil(t, action)
	assert.Equal(t, 1, router.Depth())
}

func TestCustomizeZapAmountOpensSheet(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	router := NewRouter(TimelineRoute(ProfileTimeline("")))

	target := NoteZapTarget{NoteID: hexID(1), Author: hexID(0xaa)}
	h.dispatch(t, ZapAction{Inner: CustomizeZapAmountIntent{Target: target}}, router)

	modal := router.CurrentModal()
	require.NotNil(t, modal)
	assert.Equal(t, RouteCustomizeZapAmount, modal.Kind)
	assert.Equal(t, target, modal.ZapTarget)
}

func TestCustomizeZapAmountWithoutAccountIsNoOp(t *testing.T) {
	h := newHarness(t)
	router := NewRouter(TimelineRoute(ProfileTimeline("")))

	target := NoteZapTarget{NoteID: hexID(1), Author: hexID(0xaa)}
	action := h.dispatch(t, ZapAction{Inner: CustomizeZapAmountIntent{Target: target}}, router)

	assert.Nil(t, action, "no account means no navigation")
	assert.Nil(t, router.CurrentModal())
}

func TestZapSendFromWatchOnlyAccountRecordsNoWalletFailure(t *testing.T) {
	h := newHarness(t)
	acc := h.accounts.AddWatchOnly(hexID(0xee))
	require.True(t, h.accounts.Select(acc.PubKey))
	router := NewRouter(TimelineRoute(ProfileTimeline("")))

	target := NoteZapTarget{NoteID: hexID(1), Author: hexID(0xaa)}
	h.dispatch(t, ZapAction{Inner: SendZapIntent{Amount: ZapTargetAmount{Target: target}}}, router)

	zapErr := h.zaps.ErrorFor(acc.PubKey, target)
	require.NotNil(t, zapErr, "a selected account without a wallet always gets a ledger entry")
	assert.Equal(t, ZapErrSenderNoWallet, zapErr.Kind)
}

func TestClearZapErrorRemovesFailure(t *testing.T) {
	h := newHarness(t)
	acc := h.login(t)
	router := NewRouter(TimelineRoute(ProfileTimeline("")))

	target := NoteZapTarget{NoteID: hexID(1), Author: hexID(0xaa)}
	h.zaps.SendError(acc.PubKey, target, ZapErrPay)
	require.NotNil(t, h.zaps.ErrorFor(acc.PubKey, target))

	h.dispatch(t, ZapAction{Inner: ClearZapErrorIntent{Target: target}}, router)

	assert.Nil(t, h.zaps.ErrorFor(acc.PubKey, target))
}

func TestClearZapErrorWithoutFailureIsNoOp(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	router := NewRouter(TimelineRoute(ProfileTimeline("")))

	target := NoteZapTarget{NoteID: hexID(1), Author: hexID(0xaa)}
	h.dispatch(t, ZapAction{Inner: ClearZapErrorIntent{Target: target}}, router)

	assert.Equal(t, 0, h.zaps.Len())
}

type recordingContextAction struct {
	got *types.Event
}

func (r *recordingContextAction) Process(note *types.Event, pool *RelayPool) {
	r.got = note
}

func TestContextActionReceivesResolvedNote(t *testing.T) {
	h := newHarness(t)
	note := textNote(1, 0xaa, 100, nil)
	key, _ := h.db.Ingest(note)

	router := NewRouter(TimelineRoute(ProfileTimeline("")))
	rec := &recordingContextAction{}
	h.dispatch(t, ContextMenuAction{Selection: ContextSelection{NoteKey: key, Action: rec}}, router)

	require.NotNil(t, rec.got)
	assert.Equal(t, note.ID, rec.got.ID)
}

func TestContextActionMissingNoteIsNoOp(t *testing.T) {
	h := newHarness(t)
	router := NewRouter(TimelineRoute(ProfileTimeline("")))

	rec := &recordingContextAction{}
	h.dispatch(t, ContextMenuAction{Selection: ContextSelection{NoteKey: 99, Action: rec}}, router)

	assert.Nil(t, rec.got)
}

func TestViewMediaActionCachesURL(t *testing.T) {
	h := newHarness(t)
	backend := newMemBackend()
	h.images = NewImages(backend)
	fetched := make(chan string, 1)
	h.images.fetch = func(url string) ([]byte, error) {
		fetched <- url
		return []byte("png"), nil
	}

	router := NewRouter(TimelineRoute(ProfileTimeline("")))
	h.dispatch(t, ViewMediaAction{Media: FetchMediaAction{URL: "https://img.example/a.png"}}, router)

	select {
	case url := <-fetched:
		assert.Equal(t, "https://img.example/a.png", url)
	case <-time.After(2 * time.Second):
		t.Fatal("media fetch never happened")
	}

	require.Eventually(t, func() bool {
		_, ok := h.images.Get(context.Background(), "https://img.example/a.png")
		return ok
	}, 2*time.Second, 10*time.Millisecond)
}
