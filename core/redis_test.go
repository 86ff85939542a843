package core

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, []byte("redis-store-test-key")), mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store, mr := newTestRedisStore(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	sess, err := store.Get(req, sessionName)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	sess.Values[sessionKeyUserID] = int64(42)
	if err := sess.Save(req, rec); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if sess.ID == "" || !mr.Exists(redisSessionPrefix+sess.ID) {
		t.Fatalf("session %q not stored in redis", sess.ID)
	}
	cookie := rec.Result().Cookies()[0]
	if strings.Contains(cookie.Value, sess.ID) {
		t.Fatalf("cookie carries the raw session id")
	}

	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.AddCookie(cookie)
	loaded, err := store.Get(req2, sessionName)
	if err != nil {
		t.Fatalf("reload error: %v", err)
	}
	if loaded.IsNew || readInt64(loaded.Values[sessionKeyUserID]) != 42 {
		t.Fatalf("values not restored: new=%v values=%v", loaded.IsNew, loaded.Values)
	}
}

func TestRedisStoreRevokeAndDelete(t *testing.T) {
	store, mr := newTestRedisStore(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, _ := store.Get(req, sessionName)
	if err := sess.Save(req, httptest.NewRecorder()); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	oldID := sess.ID
	if err := store.Revoke(req.Context(), sess); err != nil {
		t.Fatalf("Revoke error: %v", err)
	}
	if mr.Exists(redisSessionPrefix + oldID) {
		t.Fatalf("revoked session still stored")
	}
	if err := sess.Save(req, httptest.NewRecorder()); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if sess.ID == oldID {
		t.Fatalf("session id not rotated")
	}

	sess.Options.MaxAge = -1
	rec := httptest.NewRecorder()
	if err := sess.Save(req, rec); err != nil {
		t.Fatalf("delete error: %v", err)
	}
	if mr.Exists(redisSessionPrefix + sess.ID) {
		t.Fatalf("deleted session still stored")
	}
	if c := rec.Result().Cookies(); len(c) != 1 || c[0].MaxAge >= 0 {
		t.Fatalf("cookie not expired: %+v", c)
	}
}

func TestRedisStoreTamperedCookie(t *testing.T) {
	store, _ := newTestRedisStore(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sessionName, Value: "forged"})
	sess, err := store.New(req, sessionName)
	if err == nil {
		t.Fatalf("expected decode error")
	}
	if sess == nil || sess.ID != "" || !sess.IsNew {
		t.Fatalf("expected fresh session, got %+v", sess)
	}
}
