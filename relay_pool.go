package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"nostr-columns/internal/nostr"
	"nostr-columns/internal/types"
)

// isRelayURLSafe validates that a relay URL is safe to connect to.
// Allows localhost for development but blocks other private IP ranges.
func isRelayURLSafe(relayURL string) bool {
	parsed, err := url.Parse(relayURL)
	if err != nil {
		return false
	}

	if parsed.Scheme != "ws" && parsed.Scheme != "wss" {
		return false
	}

	host := parsed.Hostname()
	if host == "" {
		return false
	}

	// Allow localhost for development
	if host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return true
	}

	ips, err := net.LookupIP(host)
	if err != nil {
		// Unresolvable external hosts may still be valid; block only
		// obviously internal names
		if strings.HasSuffix(host, ".") ||
			strings.Contains(host, ".local") || strings.Contains(host, ".internal") {
			return false
		}
		return true
	}

	for _, ip := range ips {
		if !isRelayIPSafe(ip) {
			return false
		}
	}
	return true
}

// isRelayIPSafe checks if an IP is safe for relay connections
func isRelayIPSafe(ip net.IP) bool {
	if ip == nil {
		return false
	}
	if ip.IsLoopback() {
		return true
	}
	if ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return false
	}
	if ip.IsUnspecified() || ip.IsMulticast() {
		return false
	}
	// Cloud metadata IP
	if ip.Equal(net.ParseIP("169.254.169.254")) {
		return false
	}
	return true
}

// relayConn manages a single websocket connection
type relayConn struct {
	conn         *websocket.Conn
	relayURL     string
	mu           sync.Mutex
	writeMu      sync.Mutex
	closed       bool
	lastActivity time.Time
}

// RelayPool manages connections to multiple relays and funnels every
// received event into one incoming channel for the frame loop.
type RelayPool struct {
	mu          sync.RWMutex
	connections map[string]*relayConn // relayURL -> connection
	incoming    chan types.Event
	subs        map[string]*types.Filter // subID -> filter, replayed on new connections
	closed      bool
}

// NewRelayPool creates a new connection pool.
func NewRelayPool() *RelayPool {
	return &RelayPool{
		connections: make(map[string]*relayConn),
		incoming:    make(chan types.Event, 256),
		subs:        make(map[string]*types.Filter),
	}
}

// Events returns the channel relay events are delivered on.
func (p *RelayPool) Events() <-chan types.Event {
	return p.incoming
}

// Connect dials a relay and replays active subscriptions onto it.
func (p *RelayPool) Connect(ctx context.Context, relayURL string) error {
	if !isRelayURLSafe(relayURL) {
		return errors.New("relay URL blocked: unsafe destination")
	}

	p.mu.Lock()
	if rc := p.connections[relayURL]; rc != nil && !rc.isClosed() {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	slog.Info("connecting to relay", "url", relayURL)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, relayURL, nil)
	if err != nil {
		return err
	}

	rc := &relayConn{
		conn:         conn,
		relayURL:     relayURL,
		lastActivity: time.Now(),
	}

	p.mu.Lock()
	p.connections[relayURL] = rc
	replay := make(map[string]*types.Filter, len(p.subs))
	for id, f := range p.subs {
		replay[id] = f
	}
	p.mu.Unlock()

	go p.readLoop(rc)

	for subID, filter := range replay {
		p.sendREQ(rc, subID, filter)
	}
	return nil
}

// ConnectedURLs returns the sorted URLs of currently open connections.
// Zap sends use this as the sender's relay hint list.
func (p *RelayPool) ConnectedURLs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var urls []string
	for u, rc := range p.connections {
		if !rc.isClosed() {
			urls = append(urls, u)
		}
	}
	sort.Strings(urls)
	return urls
}

// SubscribeAll sends a REQ with the given filter to every connected
// relay and remembers it for relays that connect later.
func (p *RelayPool) SubscribeAll(subID string, filter *types.Filter) {
	p.mu.Lock()
	p.subs[subID] = filter
	conns := p.openConns()
	p.mu.Unlock()

	for _, rc := range conns {
		p.sendREQ(rc, subID, filter)
	}
}

// UnsubscribeAll closes a subscription on every relay.
func (p *RelayPool) UnsubscribeAll(subID string) {
	p.mu.Lock()
	delete(p.subs, subID)
	conns := p.openConns()
	p.mu.Unlock()

	for _, rc := range conns {
		rc.writeJSON([]interface{}{"CLOSE", subID})
	}
}

// Publish sends an event to every connected relay. Writes are enqueued
// per connection; the caller never waits for relay acknowledgements.
func (p *RelayPool) Publish(evt *types.Event) {
	p.mu.RLock()
	conns := p.openConns()
	p.mu.RUnlock()

	if len(conns) == 0 {
		slog.Warn("publish with no connected relays", "event_id", nostr.ShortID(evt.ID))
		return
	}
	for _, rc := range conns {
		if err := rc.writeJSON([]interface{}{"EVENT", evt}); err != nil {
			slog.Warn("publish failed", "relay", rc.relayURL, "error", err)
		}
	}
}

// PublishTo sends an event to one specific relay, connecting if needed.
func (p *RelayPool) PublishTo(ctx context.Context, relayURL string, evt *types.Event) error {
	if err := p.Connect(ctx, relayURL); err != nil {
		return err
	}
	p.mu.RLock()
	rc := p.connections[relayURL]
	p.mu.RUnlock()
	if rc == nil || rc.isClosed() {
		return errors.New("relay connection unavailable")
	}
	return rc.writeJSON([]interface{}{"EVENT", evt})
}

// openConns returns open connections. Caller must hold p.mu.
func (p *RelayPool) openConns() []*relayConn {
	conns := make([]*relayConn, 0, len(p.connections))
	for _, rc := range p.connections {
		if !rc.isClosed() {
			conns = append(conns, rc)
		}
	}
	return conns
}

func (p *RelayPool) sendREQ(rc *relayConn, subID string, filter *types.Filter) {
	req := []interface{}{"REQ", subID, filter.ToWire()}
	if err := rc.writeJSON(req); err != nil {
		slog.Warn("REQ failed", "relay", rc.relayURL, "sub", subID, "error", err)
		rc.markClosed()
	}
}

// readLoop continuously reads from the connection and routes messages.
func (p *RelayPool) readLoop(rc *relayConn) {
	defer rc.markClosed()

	for {
		var msg []interface{}
		err := rc.conn.ReadJSON(&msg)
		if err != nil {
			if !rc.isClosed() {
				slog.Warn("relay read error", "relay", rc.relayURL, "error", err)
			}
			return
		}

		rc.mu.Lock()
		rc.lastActivity = time.Now()
		rc.mu.Unlock()

		if len(msg) < 2 {
			continue
		}
		msgType, ok := msg[0].(string)
		if !ok {
			continue
		}

		switch msgType {
		case "EVENT":
			if len(msg) < 3 {
				continue
			}
			evt, ok := nostr.ParseEventFromInterface(msg[2])
			if !ok {
				continue
			}
			evt.RelaysSeen = []string{rc.relayURL}
			p.mu.RLock()
			if p.closed {
				p.mu.RUnlock()
				return
			}
			select {
			case p.incoming <- evt:
			default:
				// Frame loop is behind; drop rather than block the socket
				droppedEventCount.Add(1)
			}
			p.mu.RUnlock()

		case "NOTICE":
			if notice, ok := msg[1].(string); ok {
				slog.Info("relay notice", "relay", rc.relayURL, "notice", notice)
			}

		case "CLOSED":
			if subID, ok := msg[1].(string); ok {
				slog.Debug("relay closed subscription", "relay", rc.relayURL, "sub", subID)
			}
		}
	}
}

// Close shuts down every connection and closes the event funnel so
// consumers ranging over Events drain out.
func (p *RelayPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	for url, rc := range p.connections {
		rc.markClosed()
		delete(p.connections, url)
	}
	close(p.incoming)
}

func (rc *relayConn) writeJSON(v interface{}) error {
	rc.writeMu.Lock()
	defer rc.writeMu.Unlock()

	rc.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	defer rc.conn.SetWriteDeadline(time.Time{})
	return rc.conn.WriteJSON(v)
}

func (rc *relayConn) isClosed() bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.closed
}

func (rc *relayConn) markClosed() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.closed {
		return
	}
	rc.closed = true
	rc.conn.Close()
}
