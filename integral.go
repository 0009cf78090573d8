// Calcrush Integral Race
//
// A server-generated calculus problem is broadcast to both players in a room;
// whoever reports solving it first scores and the next round begins. After a
// fixed number of rounds the final scores and solve history are broadcast and
// the room is removed.
//
// Features:
// - One WebSocket endpoint: /integral/ws; rooms are created/joined by message
// - Random 5-char uppercase room IDs via crypto/rand, with collision check
// - Players identified by cookie (playerID)
// - Parametric problem templates instantiated per round (see problem.go)
// - Two-player rooms; the first round starts when the second player joins
// - Joins to missing or full rooms get an explicit rejection message
// - Solve reports are trusted; the expected answer ships with the question
//   and is checked client-side
// - Final results are emitted after a short pause so the last-round flash
//   can finish client-side, then the room is deleted
// - Rooms auto-reaped after a configurable idle timeout
// - In-browser QR button to share a room's join URL, backed by go-qrcode

package main

import (
	"context"
	"crypto/rand"
	_ "embed"
	"encoding/hex"
	"log"
	"maps"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

// Messages coming from clients
type ClientMessage struct {
	Type string `json:"type"`           // "create_game", "join_game", "i_solved_it"
	Room string `json:"room,omitempty"` // join_game / i_solved_it
}

// GameCreatedMessage acks room creation to the creator only.
type GameCreatedMessage struct {
	Type string `json:"type"` // "game_created"
	Room string `json:"room"`
}

// JoinRejectedMessage is sent to a single client whose join was refused.
type JoinRejectedMessage struct {
	Type    string `json:"type"` // "join_rejected"
	Room    string `json:"room"`
	Message string `json:"message"` // user-facing text
}

// RoundMessage broadcasts a fresh problem to the whole room.
type RoundMessage struct {
	Type    string         `json:"type"` // "new_round"
	Problem Problem        `json:"problem"`
	Scores  map[string]int `json:"scores"`
	Round   int            `json:"round"` // 1-based, for display
}

// ScoresMessage pushes the leaderboard after each accepted solve.
type ScoresMessage struct {
	Type   string         `json:"type"` // "update_scores"
	Scores map[string]int `json:"scores"`
}

// FinalResultsMessage is the terminal broadcast; the room is deleted after.
type FinalResultsMessage struct {
	Type    string         `json:"type"` // "final_results"
	Scores  map[string]int `json:"scores"`
	History []string       `json:"history"` // who advanced each round, in order
}

// SimpleMessage is for generic notifications ("room_expired", etc.)
type SimpleMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type Client struct {
	conn     *websocket.Conn
	send     chan any
	playerID string
	room     string // current room ID, owned by the dispatcher
	dropped  bool   // send closed, owned by the dispatcher
}

type joinRequest struct {
	client *Client
	room   string
}

type solveRequest struct {
	client *Client
	room   string
}

// Game is the room coordinator. A single dispatcher goroutine (run) consumes
// one event at a time to completion, so room mutations for a given room never
// interleave and near-simultaneous solves serialize instead of losing updates.
type Game struct {
	cfg     *Config
	store   *RoomStore
	gen     *Generator
	catalog []Template
	members map[string]map[*Client]bool

	unreg    chan *Client
	creates  chan *Client
	joins    chan joinRequest
	solves   chan solveRequest
	finishes chan string
}

func newGame(cfg *Config, catalog []Template, gen *Generator) *Game {
	if gen == nil {
		gen = newGenerator(cfg, nil)
	}
	return &Game{
		cfg:      cfg,
		store:    newRoomStore(),
		gen:      gen,
		catalog:  catalog,
		members:  make(map[string]map[*Client]bool),
		unreg:    make(chan *Client),
		creates:  make(chan *Client),
		joins:    make(chan joinRequest),
		solves:   make(chan solveRequest),
		finishes: make(chan string),
	}
}

func (g *Game) run(ctx context.Context) {
	var reap <-chan time.Time
	if g.cfg.sessionTimeout > 0 {
		ticker := time.NewTicker(g.cfg.sessionTimeout / 2)
		defer ticker.Stop()
		reap = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-g.unreg:
			g.handleUnregister(c)
		case c := <-g.creates:
			g.handleCreate(c)
		case jr := <-g.joins:
			g.handleJoin(jr)
		case sr := <-g.solves:
			g.handleSolve(sr)
		case id := <-g.finishes:
			g.handleFinish(id)
		case <-reap:
			g.handleReap()
		}
	}
}

// send delivers to one client without ever blocking the dispatcher; a client
// whose buffer is full is dropped.
func (g *Game) send(c *Client, msg any) {
	if c.dropped {
		return
	}

	select {
	case c.send <- msg:
	default:
		g.drop(c)
	}
}

// broadcast delivers to every member of a room.
func (g *Game) broadcast(roomID string, msg any) {
	for c := range g.members[roomID] {
		g.send(c, msg)
	}
}

func (g *Game) drop(c *Client) {
	if c.dropped {
		return
	}

	c.dropped = true
	if c.room != "" {
		delete(g.members[c.room], c)
	}
	close(c.send)
}

func (g *Game) handleUnregister(c *Client) {
	// Scores of departed players persist; the room plays on.
	g.drop(c)
}

func (g *Game) handleCreate(c *Client) {
	if c.room != "" {
		delete(g.members[c.room], c)
	}

	room := g.store.Create(c.playerID)
	c.room = room.ID
	g.members[room.ID] = map[*Client]bool{c: true}

	g.send(c, GameCreatedMessage{
		Type: "game_created",
		Room: room.ID,
	})

	logf(g.cfg, "GAMES: Player %s created room %s", c.playerID, room.ID)
}

func (g *Game) handleJoin(jr joinRequest) {
	c := jr.client

	room, ok := g.store.Get(jr.room)
	if !ok {
		g.send(c, JoinRejectedMessage{
			Type:    "join_rejected",
			Room:    jr.room,
			Message: "That room does not exist.",
		})
		logf(g.cfg, "GAMES: Join failed, room %s does not exist", jr.room)
		return
	}

	if !room.join(c.playerID) {
		g.send(c, JoinRejectedMessage{
			Type:    "join_rejected",
			Room:    jr.room,
			Message: "That room is already full.",
		})
		logf(g.cfg, "GAMES: Join failed, room %s is full", jr.room)
		return
	}

	if c.room != "" {
		delete(g.members[c.room], c)
	}

	c.room = room.ID
	if g.members[room.ID] == nil {
		g.members[room.ID] = make(map[*Client]bool)
	}
	g.members[room.ID][c] = true

	logf(g.cfg, "GAMES: Player %s joined room %s", c.playerID, room.ID)

	// Second player is in; the game starts now.
	g.startRound(room)
}

// startRound generates the next problem and broadcasts it with the current
// scores. A degraded instance (malformed template) is still sent; the policy
// is to never crash or stall the dispatcher on bad input.
func (g *Game) startRound(room *Room) {
	problem, err := g.gen.Roll(g.catalog)
	if err != nil {
		logf(g.cfg, "GAMES: Degraded problem in room %s: %v", room.ID, err)
	}
	room.Problem = problem

	// Snapshot the scores: the message is marshaled on each client's write
	// goroutine while the dispatcher may already be mutating the room.
	g.broadcast(room.ID, RoundMessage{
		Type:    "new_round",
		Problem: problem,
		Scores:  maps.Clone(room.Scores),
		Round:   room.Round + 1,
	})
}

func (g *Game) handleSolve(sr solveRequest) {
	// Older clients omit the room on solve reports; fall back to the room
	// this connection is known to be in.
	if sr.room == "" {
		sr.room = sr.client.room
	}

	room, ok := g.store.Get(sr.room)
	if !ok {
		// Stale or late event; rooms vanish after final results.
		return
	}

	finished, accepted := room.solve(sr.client.playerID, g.cfg.solvePoints, g.cfg.roundLimit)
	if !accepted {
		return
	}

	g.broadcast(room.ID, ScoresMessage{
		Type:   "update_scores",
		Scores: maps.Clone(room.Scores),
	})

	if !finished {
		g.startRound(room)
		return
	}

	// Let the last-round flash display client-side before results replace it.
	// The pause is scheduled back onto the dispatcher so no other room waits.
	if g.cfg.resultsDelay > 0 {
		id := room.ID
		time.AfterFunc(g.cfg.resultsDelay, func() {
			g.finishes <- id
		})
	} else {
		g.handleFinish(room.ID)
	}
}

// handleFinish emits the terminal broadcast and removes the room. Any event
// referencing the ID afterwards is silently ignored.
func (g *Game) handleFinish(id string) {
	room, ok := g.store.Get(id)
	if !ok || room.state != roomDone {
		return
	}

	g.broadcast(id, FinalResultsMessage{
		Type:    "final_results",
		Scores:  maps.Clone(room.Scores),
		History: slices.Clone(room.History),
	})

	g.store.Delete(id)
	for c := range g.members[id] {
		c.room = ""
	}
	delete(g.members, id)

	logf(g.cfg, "GAMES: Room %s finished after %d rounds", id, room.Round)
}

func (g *Game) handleReap() {
	for _, id := range g.store.Reap(g.cfg.sessionTimeout) {
		g.broadcast(id, SimpleMessage{
			Type:    "room_expired",
			Message: "This room was closed due to inactivity.",
		})
		for c := range g.members[id] {
			c.room = ""
		}
		delete(g.members, id)

		logf(g.cfg, "GAMES: Reaped idle room %s", id)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const playerCookieName = "calcrush_id"

func getOrSetPlayerID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(playerCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		log.Println("rand.Read error:", err)
		return ""
	}
	id := hex.EncodeToString(buf)

	http.SetCookie(w, &http.Cookie{
		Name:     playerCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return id
}

// serveWS upgrades the connection and runs the read/write pumps.
func serveWS(cfg *Config, g *Game) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		playerID := getOrSetPlayerID(w, r)
		if playerID == "" {
			http.Error(w, "unable to assign player id", http.StatusInternalServerError)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		client := &Client{
			conn:     conn,
			send:     make(chan any, 8),
			playerID: playerID,
		}

		go client.writePump()
		client.readPump(g)
	}
}

func (c *Client) readPump(g *Game) {
	defer func() {
		g.unreg <- c
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "create_game":
			g.creates <- c
		case "join_game":
			g.joins <- joinRequest{
				client: c,
				room:   strings.ToUpper(strings.TrimSpace(msg.Room)),
			}
		case "i_solved_it":
			g.solves <- solveRequest{
				client: c,
				room:   msg.Room,
			}
		default:
			// ignore unknown types
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// QR handler: generates a PNG QR code for a room's join URL using go-qrcode.
func qrHandler(store *RoomStore) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		roomID := ps.ByName("roomid")
		if roomID == "" {
			http.Error(w, "missing room id", http.StatusBadRequest)
			return
		}

		if _, ok := store.Get(roomID); !ok {
			http.Error(w, "no such room", http.StatusNotFound)
			return
		}

		// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		// We are at /integral/qr/:roomid; the join URL carries the room as a
		// query parameter so the client can auto-join.
		path := strings.TrimSuffix(r.URL.Path, "/qr/"+roomID)

		url := scheme + "://" + r.Host + path + "?room=" + roomID

		const qrSize = 320 // mobile-friendly size
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}
}

// ---- Static client ----

//go:embed integral/index.html
var indexHTML []byte

//go:embed integral/app.css
var integralCSS []byte

//go:embed integral/app.js
var integralJS []byte

func getIndexHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_ = getOrSetPlayerID(w, r)

		_, _ = w.Write(indexHTML)
	}
}

func getCssHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/css; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, _ = w.Write(integralCSS)
	}
}

func getJsHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, _ = w.Write(integralJS)
	}
}

// registerIntegralGame sets up routes so that:
//   - $path                  → HTML client (auto-joins when ?room= is set)
//   - $path/ws               → WebSocket carrying the game protocol
//   - $path/qr/:roomid       → PNG QR code for that room's join URL
func registerIntegralGame(ctx context.Context, cfg *Config, path string, mux *httprouter.Router) {
	catalog := loadTemplates(cfg)
	game := newGame(cfg, catalog, nil)

	go game.run(ctx)

	mux.GET(cfg.prefix+path, getIndexHandler(cfg))

	// Shared assets (no room in route)
	mux.GET(cfg.prefix+"/assets/integral/app.css", getCssHandler(cfg))
	mux.GET(cfg.prefix+"/assets/integral/app.js", getJsHandler(cfg))

	mux.GET(cfg.prefix+path+"/ws", serveWS(cfg, game))

	mux.GET(cfg.prefix+path+"/qr/:roomid", qrHandler(game.store))
}
