package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"nostr-columns/internal/cache"
	"nostr-columns/internal/nostr"
)

// App wires every subsystem together and runs the command loop. Each
// command becomes exactly one intent, dispatched against a fresh read
// transaction.
type App struct {
	db         *NoteDB
	noteCache  *NoteCache
	timelines  *TimelineCache
	unknownIDs *UnknownIDs
	pool       *RelayPool
	accounts   *Accounts
	global     *GlobalWallet
	zaps       *Zaps
	images     *Images
	router     *Router

	unknownSubSerial  int
	activeUnknownSubs []string
}

func main() {
	InitLogger()
	config := GetDeckConfig()

	cacheCfg := cache.DefaultConfig()
	if config.CacheBackend != "" {
		cacheCfg.Backend = config.CacheBackend
	}
	cacheCfg.RedisURL = config.RedisURL
	backend, err := cache.New(cacheCfg)
	if err != nil {
		slog.Error("cache backend init failed, falling back to memory", "error", err)
		backend, _ = cache.New(cache.DefaultConfig())
	}

	db := NewNoteDB()
	pool := NewRelayPool()
	app := &App{
		db:         db,
		noteCache:  NewNoteCache(),
		timelines:  NewTimelineCache(),
		unknownIDs: NewUnknownIDs(),
		pool:       pool,
		accounts:   NewAccounts(),
		global:     &GlobalWallet{},
		zaps:       NewZaps(db, pool),
		images:     NewImages(backend),
	}

	if secretHex := os.Getenv("NOSTR_SECRET_KEY"); secretHex != "" {
		if acc, err := app.accounts.AddFromSecretHex(secretHex); err != nil {
			slog.Error("could not load account from NOSTR_SECRET_KEY", "error", err)
		} else {
			slog.Info("account loaded", "pubkey", nostr.ShortID(acc.PubKey))
		}
	}
	if nwcURI := os.Getenv("NWC_URI"); nwcURI != "" {
		if wallet, err := NewWalletFromURI(nwcURI, config.DefaultZapMsats); err != nil {
			slog.Error("could not load wallet from NWC_URI", "error", err)
		} else {
			app.global.Wallet = wallet
			slog.Info("global wallet loaded", "relay", wallet.NWC.Relay)
		}
	}

	ctx := context.Background()
	for _, url := range config.Relays {
		if err := pool.Connect(ctx, url); err != nil {
			slog.Warn("relay connection failed", "url", url, "error", err)
		}
	}
	defer pool.Close()

	// The initial screen is the selected account's own profile when one
	// exists, otherwise an empty placeholder profile feed.
	rootPubkey := ""
	if acc := app.accounts.GetSelectedAccount(); acc != nil {
		rootPubkey = acc.PubKey
	}
	app.router = NewRouter(TimelineRoute(ProfileTimeline(rootPubkey)))

	go app.ingestLoop()

	app.commandLoop()
}

// ingestLoop drains relay events into the note database.
func (app *App) ingestLoop() {
	for evt := range app.pool.Events() {
		e := evt
		if _, fresh := app.db.Ingest(&e); fresh {
			slog.Debug("ingested note",
				"event_id", nostr.ShortID(e.ID),
				"kind", e.Kind)
		}
	}
}

// commandLoop reads one command per line and dispatches one intent per
// frame. Between frames it reconciles unknown-ID subscriptions.
func (app *App) commandLoop() {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("nostr-columns ready; type 'help' for commands")

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd, args := fields[0], fields[1:]

		if cmd == "quit" || cmd == "exit" {
			return
		}
		app.handleCommand(cmd, args)
		app.reconcileUnknowns()
	}
}

func (app *App) handleCommand(cmd string, args []string) {
	switch cmd {
	case "help":
		printHelp()

	case "login":
		if len(args) != 1 {
			fmt.Println("usage: login <secret-hex>")
			return
		}
		acc, err := app.accounts.AddFromSecretHex(args[0])
		if err != nil {
			fmt.Println("login failed:", err)
			return
		}
		app.accounts.Select(acc.PubKey)
		fmt.Println("logged in as", nostr.ShortID(acc.PubKey))

	case "wallet":
		if len(args) != 1 {
			fmt.Println("usage: wallet <nostr+walletconnect-uri>")
			return
		}
		wallet, err := NewWalletFromURI(args[0], GetDeckConfig().DefaultZapMsats)
		if err != nil {
			fmt.Println("wallet setup failed:", err)
			return
		}
		app.global.Wallet = wallet
		fmt.Println("wallet connected via", wallet.NWC.Relay)

	case "profile":
		if len(args) != 1 {
			fmt.Println("usage: profile <npub|hex>")
			return
		}
		pubkey, err := ParsePubkeyRef(args[0])
		if err != nil {
			fmt.Println("bad pubkey:", err)
			return
		}
		app.dispatch(ProfileAction{Pubkey: pubkey})

	case "thread":
		app.dispatchNoteRef(args, "thread <note|nevent|hex>", func(id string) NoteAction {
			return ThreadAction{NoteID: id}
		})

	case "hashtag":
		if len(args) != 1 {
			fmt.Println("usage: hashtag <tag>")
			return
		}
		app.dispatch(HashtagAction{Hashtag: strings.TrimPrefix(args[0], "#")})

	case "reply":
		app.dispatchNoteRef(args, "reply <note|nevent|hex>", func(id string) NoteAction {
			return ReplyAction{TargetID: id}
		})

	case "quote":
		app.dispatchNoteRef(args, "quote <note|nevent|hex>", func(id string) NoteAction {
			return QuoteAction{TargetID: id}
		})

	case "zap":
		target, ok := app.zapTargetFromArgs(args, "zap <note|nevent|hex> [msats]")
		if !ok {
			return
		}
		amount := ZapTargetAmount{Target: target}
		if len(args) == 2 {
			msats, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				fmt.Println("bad amount:", err)
				return
			}
			amount.SpecifiedMsats = &msats
		}
		app.dispatch(ZapAction{Inner: SendZapIntent{Amount: amount}})

	case "zap-custom":
		target, ok := app.zapTargetFromArgs(args, "zap-custom <note|nevent|hex>")
		if !ok {
			return
		}
		app.dispatch(ZapAction{Inner: CustomizeZapAmountIntent{Target: target}})

	case "zap-clear":
		target, ok := app.zapTargetFromArgs(args, "zap-clear <note|nevent|hex>")
		if !ok {
			return
		}
		app.dispatch(ZapAction{Inner: ClearZapErrorIntent{Target: target}})

	case "media":
		if len(args) == 0 {
			fmt.Println("usage: media <url> [url...]")
			return
		}
		if len(args) == 1 {
			app.dispatch(ViewMediaAction{Media: FetchMediaAction{URL: args[0]}})
			return
		}
		app.dispatch(ViewMediaAction{Media: ViewMediasAction{URLs: args}})

	case "broadcast":
		app.dispatchContext(args, "broadcast <note|nevent|hex>", BroadcastAction{})

	case "copy":
		app.dispatchContext(args, "copy <note|nevent|hex>", CopyNoteIDAction{
			Sink: func(nevent string) { fmt.Println(nevent) },
		})

	case "back":
		app.router.GoBack()
		app.printScreen()

	case "feed":
		app.printFeed()

	case "nav":
		app.printScreen()

	case "stats":
		printStats()

	default:
		fmt.Println("unknown command; type 'help'")
	}
}

// dispatch runs one intent through the dispatcher in a fresh read
// transaction and reports the navigation outcome.
func (app *App) dispatch(action NoteAction) {
	txn := app.db.NewTxn()
	defer txn.End()

	env := &ActionEnv{
		Txn:        txn,
		NoteCache:  app.noteCache,
		Timelines:  app.timelines,
		UnknownIDs: app.unknownIDs,
		Pool:       app.pool,
		Accounts:   app.accounts,
		Global:     app.global,
		Zaps:       app.zaps,
		Images:     app.images,
	}
	ExecuteAndProcessNoteAction(action, env, app.router)
	app.printScreen()
}

func (app *App) dispatchNoteRef(args []string, usage string, build func(id string) NoteAction) {
	if len(args) != 1 {
		fmt.Println("usage:", usage)
		return
	}
	id, err := ParseNoteRef(args[0])
	if err != nil {
		fmt.Println("bad note reference:", err)
		return
	}
	app.dispatch(build(id))
}

func (app *App) dispatchContext(args []string, usage string, action ContextAction) {
	if len(args) != 1 {
		fmt.Println("usage:", usage)
		return
	}
	id, err := ParseNoteRef(args[0])
	if err != nil {
		fmt.Println("bad note reference:", err)
		return
	}

	txn := app.db.NewTxn()
	key, ok := txn.LookupID(id)
	txn.End()
	if !ok {
		fmt.Println("note not known locally")
		return
	}
	app.dispatch(ContextMenuAction{Selection: ContextSelection{NoteKey: key, Action: action}})
}

// zapTargetFromArgs resolves a note reference to a zap target. Zaps
// need the author, so the note must be known locally.
func (app *App) zapTargetFromArgs(args []string, usage string) (NoteZapTarget, bool) {
	if len(args) < 1 {
		fmt.Println("usage:", usage)
		return NoteZapTarget{}, false
	}
	id, err := ParseNoteRef(args[0])
	if err != nil {
		fmt.Println("bad note reference:", err)
		return NoteZapTarget{}, false
	}

	txn := app.db.NewTxn()
	defer txn.End()
	key, ok := txn.LookupID(id)
	if !ok {
		fmt.Println("note not known locally; open its thread first")
		return NoteZapTarget{}, false
	}
	note, err := txn.GetNoteByKey(key)
	if err != nil {
		fmt.Println("note lookup failed:", err)
		return NoteZapTarget{}, false
	}
	return NoteZapTarget{NoteID: note.ID, Author: note.PubKey}, true
}

// reconcileUnknowns drops resolved identifiers and refreshes the relay
// subscription covering the remainder.
func (app *App) reconcileUnknowns() {
	txn := app.db.NewTxn()
	app.unknownIDs.Resolve(txn)
	txn.End()

	for _, subID := range app.activeUnknownSubs {
		app.pool.UnsubscribeAll(subID)
	}
	app.activeUnknownSubs = nil

	filters := app.unknownIDs.Filters()
	if len(filters) == 0 {
		return
	}
	app.unknownSubSerial++
	for i, filter := range filters {
		subID := fmt.Sprintf("unk-%d-%d", app.unknownSubSerial, i)
		app.pool.SubscribeAll(subID, filter)
		app.activeUnknownSubs = append(app.activeUnknownSubs, subID)
	}
}

func (app *App) printScreen() {
	top := app.router.Top()
	if top == nil {
		fmt.Println("screen: none")
		return
	}
	where := "stack"
	if app.router.ActiveKind() == RouterSheet {
		where = "sheet"
	}
	fmt.Printf("screen: %s (%s, depth %d)\n", top, where, app.router.Depth())
}

func (app *App) printFeed() {
	top := app.router.Top()
	if top == nil || top.Kind != RouteTimeline {
		fmt.Println("current screen is not a timeline")
		return
	}
	timeline, ok := app.timelines.Get(top.Timeline)
	if !ok {
		fmt.Println("timeline not open")
		return
	}

	txn := app.db.NewTxn()
	defer txn.End()
	for _, key := range timeline.Notes() {
		note, err := txn.GetNoteByKey(key)
		if err != nil {
			continue
		}
		author := nostr.ShortID(note.PubKey)
		if profile, ok := txn.ProfileFor(note.PubKey); ok {
			author = profile.BestName()
		}
		fmt.Printf("%s  %s  %s\n", nostr.ShortID(note.ID), author, NotePreview(note))
	}
	fmt.Printf("(%d notes)\n", timeline.Len())
}

func printStats() {
	stats := SnapshotStats()
	fmt.Printf("dispatched=%d aborted=%d zaps=%d zap_failures=%d ingested=%d dropped=%d cache_hits=%d cache_misses=%d\n",
		stats.ActionsDispatched, stats.ActionsAborted,
		stats.ZapsSent, stats.ZapFailures,
		stats.NotesIngested, stats.DroppedEvents,
		stats.CacheHits, stats.CacheMisses)
}

func printHelp() {
	fmt.Print(`commands:
  login <secret-hex>          add and select a signing account
  wallet <nwc-uri>            connect the global NWC wallet
  profile <npub|hex>          open an author's feed
  thread <note|nevent|hex>    open the thread containing a note
  hashtag <tag>               open a hashtag feed
  reply <note|nevent|hex>     open the composer as a reply
  quote <note|nevent|hex>     open the composer as a quote
  zap <ref> [msats]           zap a note (default or explicit amount)
  zap-custom <ref>            open the zap amount sheet
  zap-clear <ref>             dismiss a zap failure
  media <url> [url...]        prefetch note media into the cache
  broadcast <ref>             republish a note to all relays
  copy <ref>                  print the note's nevent pointer
  feed                        list the current timeline's notes
  nav                         show the current screen
  back                        go back (closes sheets first)
  stats                       show counters
  quit                        exit
`)
}
