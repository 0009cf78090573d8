/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"crypto/rand"
	"sync"
	"time"
)

// roomState tags where a room is in its lifecycle. Transitions only move
// forward: lobby → active → done.
type roomState int

const (
	roomLobby  roomState = iota // created, waiting for a second player
	roomActive                  // rounds in progress
	roomDone                    // round limit reached, final results pending
)

// Room is the unit of shared game state: per-player scores, the round
// counter, the append-only history of who advanced each round, and the
// problem currently in play. All mutation happens on the game dispatcher
// goroutine; the store below only guards the table itself.
type Room struct {
	ID      string
	Scores  map[string]int
	Round   int
	History []string
	Problem Problem

	state      roomState
	lastActive time.Time
}

func newRoom(id, creator string) *Room {
	return &Room{
		ID:         id,
		Scores:     map[string]int{creator: 0},
		state:      roomLobby,
		lastActive: time.Now(),
	}
}

// join registers a second player and starts the game. It fails when the room
// already has two players, has finished, or the player is already a member.
func (r *Room) join(playerID string) bool {
	if r.state != roomLobby || len(r.Scores) != 1 {
		return false
	}
	if _, member := r.Scores[playerID]; member {
		return false
	}

	r.Scores[playerID] = 0
	r.state = roomActive
	r.lastActive = time.Now()

	return true
}

// solve applies one accepted solve event: score increment, history append,
// round advance, all together. ok reports whether the event was accepted;
// finished reports whether this solve reached the round limit.
func (r *Room) solve(playerID string, points, limit int) (finished, ok bool) {
	if r.state != roomActive {
		return false, false
	}
	if _, member := r.Scores[playerID]; !member {
		return false, false
	}

	r.Scores[playerID] += points
	r.History = append(r.History, playerID)
	r.Round++
	r.lastActive = time.Now()

	if r.Round >= limit {
		r.state = roomDone
		return true, true
	}

	return false, true
}

const (
	roomIDAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	roomIDLength   = 5
)

// RoomStore owns the table of live rooms. Room contents are only touched by
// the dispatcher goroutine, but the table is also read from http handlers,
// so lookups stay behind a mutex.
type RoomStore struct {
	mu    sync.Mutex
	rooms map[string]*Room
}

func newRoomStore() *RoomStore {
	return &RoomStore{
		rooms: make(map[string]*Room),
	}
}

// Create mints a fresh room ID, registers the creator with score 0, and
// stores the new room.
func (s *RoomStore) Create(creator string) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.newRoomIDLocked()
	room := newRoom(id, creator)
	s.rooms[id] = room

	return room
}

func (s *RoomStore) Get(id string) (*Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[id]

	return room, ok
}

func (s *RoomStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.rooms, id)
}

func (s *RoomStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.rooms)
}

// newRoomIDLocked generates a crypto-random 5-character uppercase base-36
// room ID, retrying until it doesn't collide with a live room.
func (s *RoomStore) newRoomIDLocked() string {
	for {
		buf := make([]byte, roomIDLength)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}

		out := make([]byte, roomIDLength)
		for i := range out {
			out[i] = roomIDAlphabet[int(buf[i])%len(roomIDAlphabet)]
		}
		id := string(out)

		if _, exists := s.rooms[id]; !exists {
			return id
		}
	}
}

// Reap removes rooms that have been idle longer than idle, returning their
// IDs so the caller can notify any connected clients.
func (s *RoomStore) Reap(idle time.Duration) []string {
	cutoff := time.Now().Add(-idle)

	s.mu.Lock()
	defer s.mu.Unlock()

	var reaped []string
	for id, room := range s.rooms {
		if room.lastActive.Before(cutoff) {
			delete(s.rooms, id)
			reaped = append(reaped, id)
		}
	}

	return reaped
}
