package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newSessionStoreTest(t *testing.T) (*Store, *redis.Client, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewStore(rdb, "as")
	return store, rdb, func() {
		rdb.Close()
		mr.Close()
	}
}

func testSession(sid string) *Session {
	now := time.Now()
	return &Session{
		SessionID:   sid,
		UserID:      "u-1",
		Role:        "user",
		Perms:       3,
		RefreshHash: [32]byte{1},
		UserAgent:   "curl/8",
		IP:          "10.0.0.1",
		CreatedAt:   now.Unix(),
		ExpiresAt:   now.Add(time.Hour).Unix(),
	}
}

func TestSaveGetRoundTrip(t *testing.T) {
	store, _, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	want := testSession("sid-1")
	if err := store.Save(ctx, want, time.Hour); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.Get(ctx, "sid-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if *got != *want {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteSessionIdempotentAndIndex(t *testing.T) {
	store, rdb, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()
	sess := testSession("sid-1")

	if err := store.Save(ctx, sess, time.Hour); err != nil {
		t.Fatalf("save session: %v", err)
	}
	if err := store.Delete(ctx, sess.SessionID); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := store.Delete(ctx, sess.SessionID); err != nil {
		t.Fatalf("second delete: %v", err)
	}

	members, err := rdb.SMembers(ctx, store.userKey(sess.UserID)).Result()
	if err != nil {
		t.Fatalf("smembers: %v", err)
	}
	if len(members) != 0 {
		t.Fatalf("expected no user index members, got %v", members)
	}
}

func TestListAndDeleteAllForUser(t *testing.T) {
	store, rdb, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	older := testSession("sid-old")
	older.CreatedAt -= 60
	newer := testSession("sid-new")
	for _, s := range []*Session{older, newer} {
		if err := store.Save(ctx, s, time.Hour); err != nil {
			t.Fatalf("save %s: %v", s.SessionID, err)
		}
	}
	// dangling index entry
	if err := rdb.SAdd(ctx, store.userKey("u-1"), "sid-gone").Err(); err != nil {
		t.Fatalf("sadd: %v", err)
	}

	list, err := store.ListForUser(ctx, "u-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].SessionID != "sid-new" || list[1].SessionID != "sid-old" {
		t.Fatalf("unexpected list order: %+v", list)
	}
	if n, _ := store.ActiveSessionCount(ctx, "u-1"); n != 2 {
		t.Fatalf("expected dangling entry pruned, count=%d", n)
	}

	deleted, err := store.DeleteAllForUser(ctx, "u-1")
	if err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected 2 deleted, got %d", deleted)
	}
	if _, err := store.Get(ctx, "sid-new"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected session gone, got %v", err)
	}
}

func TestRotateRefreshHash(t *testing.T) {
	store, _, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	sess := testSession("sid-1")
	if err := store.Save(ctx, sess, time.Hour); err != nil {
		t.Fatalf("save: %v", err)
	}

	rotated, err := store.RotateRefreshHash(ctx, "sid-1", [32]byte{1}, [32]byte{2})
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if rotated.RefreshHash != [32]byte{2} || rotated.RotatedAt == 0 {
		t.Fatalf("unexpected rotated session %+v", rotated)
	}
	if rotated.Role != "user" || rotated.Perms != 3 {
		t.Fatalf("rotation lost claims: %+v", rotated)
	}

	// Replaying the old secret kills the session.
	if _, err := store.RotateRefreshHash(ctx, "sid-1", [32]byte{1}, [32]byte{3}); !errors.Is(err, ErrRefreshHashMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	if _, err := store.Get(ctx, "sid-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected session deleted after reuse, got %v", err)
	}
}

func TestRotateRefreshHashMissingAndExpired(t *testing.T) {
	store, _, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	if _, err := store.RotateRefreshHash(ctx, "missing", [32]byte{1}, [32]byte{2}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	expired := testSession("sid-expired")
	expired.ExpiresAt = time.Now().Add(-time.Minute).Unix()
	if err := store.Save(ctx, expired, time.Hour); err != nil {
		t.Fatalf("save expired session failed: %v", err)
	}
	if _, err := store.RotateRefreshHash(ctx, "sid-expired", expired.RefreshHash, [32]byte{9}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for expired, got %v", err)
	}
}

func TestGetCorruptRecord(t *testing.T) {
	store, rdb, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	if err := rdb.HSet(ctx, store.key("sid-bad"), "uid", "u-1", "rh", "zz").Err(); err != nil {
		t.Fatalf("seed corrupt: %v", err)
	}
	if _, err := store.Get(ctx, "sid-bad"); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}
