package main

import (
	"log/slog"

	"nostr-columns/internal/nostr"
	"nostr-columns/internal/types"
)

// NoteAction is an intent raised against a single note: navigate
// somewhere, open a feed, zap, or run a per-note capability. The set is
// closed; the dispatcher handles every variant exhaustively.
type NoteAction interface {
	isNoteAction()
}

// ReplyAction opens the composer as a reply to the note.
type ReplyAction struct {
	TargetID string
}

// QuoteAction opens the composer quoting the note.
type QuoteAction struct {
	TargetID string
}

// ProfileAction opens the author's profile feed.
type ProfileAction struct {
	Pubkey string
}

// ThreadAction opens the thread containing the note.
type ThreadAction struct {
	NoteID string
}

// HashtagAction opens the hashtag feed.
type HashtagAction struct {
	Hashtag string
}

// ZapAction wraps a zap sub-intent.
type ZapAction struct {
	Inner ZapIntent
}

// ContextMenuAction runs a per-note capability from the context menu.
type ContextMenuAction struct {
	Selection ContextSelection
}

// ViewMediaAction delegates media work to the images subsystem.
type ViewMediaAction struct {
	Media MediaAction
}

func (ReplyAction) isNoteAction()       {}
func (QuoteAction) isNoteAction()       {}
func (ProfileAction) isNoteAction()     {}
func (ThreadAction) isNoteAction()      {}
func (HashtagAction) isNoteAction()     {}
func (ZapAction) isNoteAction()         {}
func (ContextMenuAction) isNoteAction() {}
func (ViewMediaAction) isNoteAction()   {}

// ZapIntent is the closed set of zap sub-intents.
type ZapIntent interface {
	isZapIntent()
}

// SendZapIntent requests a zap to the target, at the specified amount
// or the wallet default.
type SendZapIntent struct {
	Amount ZapTargetAmount
}

// ClearZapErrorIntent dismisses a recorded zap failure.
type ClearZapErrorIntent struct {
	Target NoteZapTarget
}

// CustomizeZapAmountIntent opens the amount picker sheet.
type CustomizeZapAmountIntent struct {
	Target NoteZapTarget
}

func (SendZapIntent) isZapIntent()            {}
func (ClearZapErrorIntent) isZapIntent()      {}
func (CustomizeZapAmountIntent) isZapIntent() {}

// ActionEnv bundles the mutable application state a dispatch runs
// against. One env is built per frame around a fresh read transaction.
type ActionEnv struct {
	Txn        *Txn
	NoteCache  *NoteCache
	Timelines  *TimelineCache
	UnknownIDs *UnknownIDs
	Pool       *RelayPool
	Accounts   *Accounts
	Global     *GlobalWallet
	Zaps       *Zaps
	Images     *Images
}

// NoteActionResponse is everything a dispatch can produce: an optional
// navigation instruction and an optional set of notes for the merge
// path. Either or both may be nil.
type NoteActionResponse struct {
	RouterAction *RouterAction
	OpenResult   *TimelineOpenResult
}

// NewNotes is a batch of locally-known note keys destined for one
// timeline, in database query order (newest first).
type NewNotes struct {
	Keys []types.NoteKey
	ID   TimelineKind
}

// TimelineOpenResult carries the merge work produced by opening a
// timeline. The dispatcher returns it; the caller processes it.
type TimelineOpenResult struct {
	NewNotes *NewNotes
}

// NewTimelineOpenResult wraps unmerged keys for a timeline kind.
func NewTimelineOpenResult(keys []types.NoteKey, kind TimelineKind) *TimelineOpenResult {
	return &TimelineOpenResult{NewNotes: &NewNotes{Keys: keys, ID: kind}}
}

// process merges the new notes into their timeline. Thread timelines
// merge reversed so the root lands first; every other kind merges in
// query order. A missing timeline is logged and skipped, never fatal.
func (r *TimelineOpenResult) process(env *ActionEnv) {
	if r == nil || r.NewNotes == nil || len(r.NewNotes.Keys) == 0 {
		return
	}
	timeline, ok := env.Timelines.Get(r.NewNotes.ID)
	if !ok {
		slog.Error("merge target timeline not open", "kind", r.NewNotes.ID.String())
		return
	}
	reversed := r.NewNotes.ID.Type == TimelineThread
	if err := timeline.Insert(r.NewNotes.Keys, env.Txn, env.UnknownIDs, env.NoteCache, reversed); err != nil {
		slog.Error("timeline merge failed", "kind", r.NewNotes.ID.String(), "error", err)
	}
}

// ExecuteNoteAction dispatches one intent against the environment and
// returns the response for the caller to process. routerKind says which
// navigation context is active, so zap sends can dismiss an open sheet.
// Failures degrade to no-ops; dispatch never panics and never blocks on
// the network.
func ExecuteNoteAction(action NoteAction, env *ActionEnv, routerKind RouterKind) NoteActionResponse {
	actionsDispatchedTotal.Add(1)

	switch a := action.(type) {
	case ReplyAction:
		return composerResponse(env, a.TargetID, ReplyRoute)

	case QuoteAction:
		return composerResponse(env, a.TargetID, QuoteRoute)

	case ProfileAction:
		kind := ProfileTimeline(a.Pubkey)
		return NoteActionResponse{
			RouterAction: RouteTo(TimelineRoute(kind)),
			OpenResult:   env.Timelines.Open(env.Txn, env.Pool, kind),
		}

	case HashtagAction:
		kind := HashtagTimeline(a.Hashtag)
		return NoteActionResponse{
			RouterAction: RouteTo(TimelineRoute(kind)),
			OpenResult:   env.Timelines.Open(env.Txn, env.Pool, kind),
		}

	case ThreadAction:
		selection, err := ResolveThreadRoot(env.Txn, env.NoteCache, a.NoteID)
		if err != nil {
			actionsAbortedTotal.Add(1)
			slog.Warn("thread resolution failed", "note_id", nostr.ShortID(a.NoteID), "error", err)
			return NoteActionResponse{}
		}
		kind := ThreadTimeline(selection)
		return NoteActionResponse{
			RouterAction: RouteTo(TimelineRoute(kind)),
			OpenResult:   env.Timelines.Open(env.Txn, env.Pool, kind),
		}

	case ZapAction:
		return executeZapIntent(a.Inner, env, routerKind)

	case ContextMenuAction:
		note, err := env.Txn.GetNoteByKey(a.Selection.NoteKey)
		if err != nil {
			actionsAbortedTotal.Add(1)
			slog.Error("context action target missing", "note_key", a.Selection.NoteKey, "error", err)
			return NoteActionResponse{}
		}
		a.Selection.Action.Process(note, env.Pool)
		return NoteActionResponse{}

	case ViewMediaAction:
		a.Media.Process(env.Images)
		return NoteActionResponse{}

	default:
		actionsAbortedTotal.Add(1)
		slog.Error("unhandled note action", "action", action)
		return NoteActionResponse{}
	}
}

// ExecuteAndProcessNoteAction is the per-frame entry point: it
// dispatches the intent, merges any resulting notes into their
// timeline, applies the navigation instruction, and returns it.
func ExecuteAndProcessNoteAction(action NoteAction, env *ActionEnv, router *Router) *RouterAction {
	resp := ExecuteNoteAction(action, env, router.ActiveKind())
	resp.OpenResult.process(env)
	if resp.RouterAction != nil {
		resp.RouterAction.Apply(router)
	}
	return resp.RouterAction
}

// composerResponse builds the navigation response for reply and quote,
// seeding the composer with a preview of the target note when it is
// known locally.
func composerResponse(env *ActionEnv, targetID string, route func(targetID, preview string) Route) NoteActionResponse {
	preview := ""
	if key, ok := env.Txn.LookupID(targetID); ok {
		if note, err := env.Txn.GetNoteByKey(key); err == nil {
			preview = NotePreview(note)
		}
	}
	return NoteActionResponse{RouterAction: RouteTo(route(targetID, preview))}
}

// executeZapIntent handles the zap sub-intents. Every one of them acts
// on behalf of the selected account; with none selected the whole
// intent is a silent no-op, including the amount picker.
func executeZapIntent(intent ZapIntent, env *ActionEnv, routerKind RouterKind) NoteActionResponse {
	sender := env.Accounts.GetSelectedAccount()
	if sender == nil {
		actionsAbortedTotal.Add(1)
		slog.Warn("zap intent without selected account")
		return NoteActionResponse{}
	}

	switch z := intent.(type) {
	case SendZapIntent:
		sent := sendZap(env, sender, z.Amount)
		// The amount picker sheet submits a send; dismiss it once the
		// send is actually underway.
		if sent && routerKind == RouterSheet {
			return NoteActionResponse{RouterAction: GoBack()}
		}
		return NoteActionResponse{}

	case ClearZapErrorIntent:
		env.Zaps.ClearError(sender.PubKey, z.Target)
		return NoteActionResponse{}

	case CustomizeZapAmountIntent:
		return NoteActionResponse{RouterAction: RouteToSheet(CustomizeZapAmountRoute(z.Target))}

	default:
		actionsAbortedTotal.Add(1)
		slog.Error("unhandled zap intent", "intent", intent)
		return NoteActionResponse{}
	}
}

// sendZap resolves the sender's wallet and hands off to the zap engine.
// A sender without any wallet records a visible failure on the target;
// the engine itself rejects senders that cannot sign the zap request.
// Reports whether a send was actually started.
func sendZap(env *ActionEnv, sender *Account, amount ZapTargetAmount) bool {
	wallet := getWalletFor(env.Accounts, env.Global, sender.PubKey)
	if wallet == nil {
		env.Zaps.SendError(sender.PubKey, amount.Target, ZapErrSenderNoWallet)
		slog.Warn("zap send without wallet",
			"sender", nostr.ShortID(sender.PubKey),
			"note_id", nostr.ShortID(amount.Target.NoteID))
		return false
	}

	msats := wallet.DefaultZap()
	if amount.SpecifiedMsats != nil {
		msats = *amount.SpecifiedMsats
	}

	env.Zaps.SendZap(sender, wallet, env.Pool.ConnectedURLs(), amount.Target, msats)
	return true
}
