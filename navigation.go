package main

import "fmt"

// RouteKind discriminates navigable screens.
type RouteKind int

const (
	RouteTimeline RouteKind = iota
	RouteReply
	RouteQuote
	RouteCustomizeZapAmount
)

// Route is one navigable screen and its payload.
type Route struct {
	Kind      RouteKind
	Timeline  TimelineKind  // RouteTimeline
	TargetID  string        // composer routes: note being replied to / quoted
	Preview   string        // composer routes: plain-text preview of the target
	ZapTarget NoteZapTarget // RouteCustomizeZapAmount
}

// TimelineRoute shows a timeline screen.
func TimelineRoute(kind TimelineKind) Route {
	return Route{Kind: RouteTimeline, Timeline: kind}
}

// ReplyRoute opens the composer seeded with a reply target.
func ReplyRoute(targetID, preview string) Route {
	return Route{Kind: RouteReply, TargetID: targetID, Preview: preview}
}

// QuoteRoute opens the composer seeded with a quote target.
func QuoteRoute(targetID, preview string) Route {
	return Route{Kind: RouteQuote, TargetID: targetID, Preview: preview}
}

// CustomizeZapAmountRoute opens the zap amount sheet for a target.
func CustomizeZapAmountRoute(target NoteZapTarget) Route {
	return Route{Kind: RouteCustomizeZapAmount, ZapTarget: target}
}

func (r Route) String() string {
	switch r.Kind {
	case RouteTimeline:
		return fmt.Sprintf("timeline(%s)", r.Timeline)
	case RouteReply:
		return fmt.Sprintf("reply(%s)", shortHex(r.TargetID))
	case RouteQuote:
		return fmt.Sprintf("quote(%s)", shortHex(r.TargetID))
	case RouteCustomizeZapAmount:
		return fmt.Sprintf("zap-amount(%s)", shortHex(r.ZapTarget.NoteID))
	default:
		return "unknown"
	}
}

// RouterKind names which navigation context is active: the main screen
// stack, or the sheet (modal) layered over it.
type RouterKind int

const (
	RouterStack RouterKind = iota
	RouterSheet
)

// RouterActionType enumerates the declarative navigation instructions
// the dispatcher can emit.
type RouterActionType int

const (
	RouterActionRouteTo RouterActionType = iota
	RouterActionRouteToSheet
	RouterActionGoBack
)

// RouterAction is a navigation instruction for the navigation owner.
type RouterAction struct {
	Type  RouterActionType
	Route Route
}

// RouteTo pushes a screen onto the active stack.
func RouteTo(route Route) *RouterAction {
	return &RouterAction{Type: RouterActionRouteTo, Route: route}
}

// RouteToSheet replaces the sheet contents with a screen.
func RouteToSheet(route Route) *RouterAction {
	return &RouterAction{Type: RouterActionRouteToSheet, Route: route}
}

// GoBack pops the current screen (the sheet first, when open).
func GoBack() *RouterAction {
	return &RouterAction{Type: RouterActionGoBack}
}

// Apply performs the instruction against a router.
func (a *RouterAction) Apply(router *Router) {
	switch a.Type {
	case RouterActionRouteTo:
		router.Push(a.Route)
	case RouterActionRouteToSheet:
		router.ShowSheet(a.Route)
	case RouterActionGoBack:
		router.GoBack()
	}
}

// Router owns the screen stack and the sheet sub-stack layered over it.
type Router struct {
	stack []Route
	sheet []Route
}

// NewRouter creates a router showing the given root screen.
func NewRouter(root Route) *Router {
	return &Router{stack: []Route{root}}
}

// Push pushes a screen onto the main stack.
func (r *Router) Push(route Route) {
	r.stack = append(r.stack, route)
}

// Pop removes the top screen from the main stack, keeping the root.
func (r *Router) Pop() {
	if len(r.stack) > 1 {
		r.stack = r.stack[:len(r.stack)-1]
	}
}

// ShowSheet replaces the sheet contents with one screen.
func (r *Router) ShowSheet(route Route) {
	r.sheet = []Route{route}
}

// PushSheet layers another screen onto the open sheet.
func (r *Router) PushSheet(route Route) {
	r.sheet = append(r.sheet, route)
}

// CloseSheet dismisses the whole sheet.
func (r *Router) CloseSheet() {
	r.sheet = nil
}

// GoBack pops the sheet first when one is open, otherwise the stack.
func (r *Router) GoBack() {
	if len(r.sheet) > 0 {
		r.sheet = r.sheet[:len(r.sheet)-1]
		return
	}
	r.Pop()
}

// CurrentModal returns the top sheet screen, or nil when no sheet is open.
func (r *Router) CurrentModal() *Route {
	if len(r.sheet) == 0 {
		return nil
	}
	return &r.sheet[len(r.sheet)-1]
}

// Top returns the currently visible screen.
func (r *Router) Top() *Route {
	if modal := r.CurrentModal(); modal != nil {
		return modal
	}
	if len(r.stack) == 0 {
		return nil
	}
	return &r.stack[len(r.stack)-1]
}

// ActiveKind reports which navigation context is active.
func (r *Router) ActiveKind() RouterKind {
	if len(r.sheet) > 0 {
		return RouterSheet
	}
	return RouterStack
}

// Depth returns the main stack depth.
func (r *Router) Depth() int {
	return len(r.stack)
}
