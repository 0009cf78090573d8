package main

import (
	"strings"
	"testing"
	"time"
)

func TestRoomIDFormat(t *testing.T) {
	store := newRoomStore()

	for range 100 {
		room := store.Create("C1")

		if len(room.ID) != roomIDLength {
			t.Fatalf("room ID %q has length %d, want %d", room.ID, len(room.ID), roomIDLength)
		}
		for _, r := range room.ID {
			if !strings.ContainsRune(roomIDAlphabet, r) {
				t.Fatalf("room ID %q contains %q", room.ID, r)
			}
		}
	}
}

func TestCreateInitializesRoom(t *testing.T) {
	store := newRoomStore()
	room := store.Create("C1")

	if room.Round != 0 {
		t.Errorf("round = %d, want 0", room.Round)
	}
	if score, ok := room.Scores["C1"]; !ok || score != 0 {
		t.Errorf("creator score = %d, %t, want 0, true", score, ok)
	}
	if len(room.History) != 0 {
		t.Errorf("history not empty: %v", room.History)
	}
	if room.state != roomLobby {
		t.Errorf("state = %d, want roomLobby", room.state)
	}

	got, ok := store.Get(room.ID)
	if !ok || got != room {
		t.Error("created room not retrievable from store")
	}
}

func TestJoinTwoPlayerCap(t *testing.T) {
	room := newRoom("AB12C", "C1")

	if !room.join("P2") {
		t.Fatal("second player should be able to join")
	}
	if room.Scores["C1"] != 0 || room.Scores["P2"] != 0 {
		t.Errorf("scores after join: %v, want both 0", room.Scores)
	}
	if room.state != roomActive {
		t.Error("room should be active once the second player joins")
	}

	if room.join("P3") {
		t.Fatal("third player should be rejected")
	}
	if len(room.Scores) != 2 {
		t.Errorf("rejected join changed state: %v", room.Scores)
	}
}

func TestJoinRejectsDuplicateAndLateJoins(t *testing.T) {
	room := newRoom("AB12C", "C1")

	if room.join("C1") {
		t.Error("creator should not be able to join their own room")
	}

	room.join("P2")
	room.state = roomDone

	if room.join("P3") {
		t.Error("finished room should reject joins")
	}
}

func TestSolveAdvancesRoundByOne(t *testing.T) {
	room := newRoom("AB12C", "A")
	room.join("B")

	for i := 1; i <= 4; i++ {
		prev := room.Round

		if _, ok := room.solve("A", 1, 5); !ok {
			t.Fatalf("solve %d rejected", i)
		}
		if room.Round != prev+1 {
			t.Fatalf("round jumped from %d to %d", prev, room.Round)
		}
	}
}

func TestSolveSequenceReachesFinal(t *testing.T) {
	room := newRoom("AB12C", "A")
	room.join("B")

	sequence := []string{"A", "B", "A", "B", "A"}
	for i, player := range sequence {
		finished, ok := room.solve(player, 1, 5)
		if !ok {
			t.Fatalf("solve %d by %s rejected", i+1, player)
		}

		wantFinished := i == len(sequence)-1
		if finished != wantFinished {
			t.Fatalf("solve %d: finished = %t, want %t", i+1, finished, wantFinished)
		}
	}

	if room.Scores["A"] != 3 || room.Scores["B"] != 2 {
		t.Errorf("final scores = %v, want A:3 B:2", room.Scores)
	}

	if len(room.History) != len(sequence) {
		t.Fatalf("history length = %d, want %d", len(room.History), len(sequence))
	}
	for i, player := range sequence {
		if room.History[i] != player {
			t.Errorf("history[%d] = %q, want %q", i, room.History[i], player)
		}
	}

	if room.state != roomDone {
		t.Error("room should be done after the final round")
	}

	// No further solves are accepted.
	if _, ok := room.solve("A", 1, 5); ok {
		t.Error("solve accepted after the round limit")
	}
	if room.Round != 5 {
		t.Errorf("round moved past the limit: %d", room.Round)
	}
}

func TestSolveConfigurablePoints(t *testing.T) {
	room := newRoom("AB12C", "A")
	room.join("B")

	room.solve("A", 10, 5)
	room.solve("A", 10, 5)

	if room.Scores["A"] != 20 {
		t.Errorf("score = %d, want 20", room.Scores["A"])
	}
}

func TestSolveRejectedBeforeSecondPlayer(t *testing.T) {
	room := newRoom("AB12C", "A")

	if _, ok := room.solve("A", 1, 5); ok {
		t.Error("solve accepted while waiting for a second player")
	}
	if room.Round != 0 {
		t.Errorf("round = %d, want 0", room.Round)
	}
}

func TestSolveRejectedForNonMember(t *testing.T) {
	room := newRoom("AB12C", "A")
	room.join("B")

	if _, ok := room.solve("X", 1, 5); ok {
		t.Error("solve accepted from a non-member")
	}
	if _, ok := room.Scores["X"]; ok {
		t.Error("non-member gained a score entry")
	}
}

func TestStoreDelete(t *testing.T) {
	store := newRoomStore()
	room := store.Create("C1")

	store.Delete(room.ID)

	if _, ok := store.Get(room.ID); ok {
		t.Error("deleted room still retrievable")
	}
	if store.Len() != 0 {
		t.Errorf("store length = %d, want 0", store.Len())
	}
}

func TestReapRemovesIdleRooms(t *testing.T) {
	store := newRoomStore()

	idle := store.Create("C1")
	idle.lastActive = time.Now().Add(-2 * time.Hour)

	fresh := store.Create("C2")

	reaped := store.Reap(time.Hour)

	if len(reaped) != 1 || reaped[0] != idle.ID {
		t.Errorf("reaped = %v, want [%s]", reaped, idle.ID)
	}
	if _, ok := store.Get(idle.ID); ok {
		t.Error("idle room still retrievable")
	}
	if _, ok := store.Get(fresh.ID); !ok {
		t.Error("fresh room was reaped")
	}
}
