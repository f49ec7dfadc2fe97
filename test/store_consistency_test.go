//go:build integration
// +build integration

package test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/linkauth"
)

func TestStoreConsistencyRoundTrip(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend) {
		ctx := context.Background()
		u := seedUser(t, b, "roundtrip@example.com")
		s := seedSession(t, b, u.ID, "tok-1", baseTime.Add(500*time.Nanosecond))

		got, err := b.sessions.FindSessionByTokenHash(ctx, linkauth.HashToken("tok-1"))
		if err != nil {
			t.Fatalf("FindSessionByTokenHash: %v", err)
		}
		if got.ID != s.ID || got.UserID != u.ID || !got.IsActive {
			t.Fatalf("unexpected session %+v", got)
		}
		if !got.LastActivityAt.Equal(s.LastActivityAt) || !got.CreatedAt.Equal(s.CreatedAt) {
			t.Fatalf("timestamps not preserved: %v / %v", got.CreatedAt, got.LastActivityAt)
		}

		byID, err := b.sessions.FindSessionByID(ctx, s.ID)
		if err != nil || byID.TokenHash != s.TokenHash {
			t.Fatalf("FindSessionByID = %+v, %v", byID, err)
		}
	})
}

func TestStoreConsistencyMissingRecords(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend) {
		ctx := context.Background()

		if _, err := b.sessions.FindSessionByTokenHash(ctx, linkauth.HashToken("absent")); !errors.Is(err, linkauth.ErrRecordNotFound) {
			t.Fatalf("expected ErrRecordNotFound by hash, got %v", err)
		}
		if _, err := b.sessions.FindSessionByID(ctx, 424242); !errors.Is(err, linkauth.ErrRecordNotFound) {
			t.Fatalf("expected ErrRecordNotFound by id, got %v", err)
		}
		if err := b.sessions.UpdateSession(ctx, linkauth.Session{ID: 424242, UserID: 1, TokenHash: linkauth.HashToken("x")}); !errors.Is(err, linkauth.ErrRecordNotFound) {
			t.Fatalf("expected ErrRecordNotFound on update, got %v", err)
		}
		list, err := b.sessions.ListSessionsByUser(ctx, 424242)
		if err != nil || len(list) != 0 {
			t.Fatalf("ListSessionsByUser on unknown user = %v, %v", list, err)
		}
	})
}

func TestStoreConsistencyListOrder(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend) {
		ctx := context.Background()
		u := seedUser(t, b, "order@example.com")

		a := seedSession(t, b, u.ID, "a", baseTime)
		c := seedSession(t, b, u.ID, "c", baseTime.Add(2*time.Minute))
		bb := seedSession(t, b, u.ID, "b", baseTime.Add(time.Minute))

		a.LastActivityAt = baseTime.Add(3 * time.Minute)
		a.IsActive = false
		if err := b.sessions.UpdateSession(ctx, a); err != nil {
			t.Fatalf("UpdateSession: %v", err)
		}

		list, err := b.sessions.ListSessionsByUser(ctx, u.ID)
		if err != nil {
			t.Fatalf("ListSessionsByUser: %v", err)
		}
		want := []int64{a.ID, c.ID, bb.ID}
		if len(list) != len(want) {
			t.Fatalf("expected %d sessions, got %d", len(want), len(list))
		}
		for i, id := range want {
			if list[i].ID != id {
				t.Fatalf("position %d: got session %d, want %d", i, list[i].ID, id)
			}
		}
		if list[0].IsActive {
			t.Fatal("deactivation was not persisted")
		}
	})
}

func TestStoreConsistencyDeleteIsIdempotent(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend) {
		ctx := context.Background()
		u := seedUser(t, b, "delete@example.com")
		other := seedUser(t, b, "keep@example.com")
		seedSession(t, b, u.ID, "d1", baseTime)
		seedSession(t, b, u.ID, "d2", baseTime)
		kept := seedSession(t, b, other.ID, "k1", baseTime)

		for i := 0; i < 2; i++ {
			if err := b.sessions.DeleteSessionsByUser(ctx, u.ID); err != nil {
				t.Fatalf("DeleteSessionsByUser #%d: %v", i+1, err)
			}
		}

		if _, err := b.sessions.FindSessionByTokenHash(ctx, linkauth.HashToken("d1")); !errors.Is(err, linkauth.ErrRecordNotFound) {
			t.Fatalf("deleted session still found: %v", err)
		}
		if _, err := b.sessions.FindSessionByID(ctx, kept.ID); err != nil {
			t.Fatalf("other user's session was removed: %v", err)
		}
	})
}
