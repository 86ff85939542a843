package core

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/redis/go-redis/v9"
)

const (
	redisSessionPrefix = "session:"
	// redisSessionDefaultTTL applies to browser-session cookies (MaxAge 0).
	redisSessionDefaultTTL = 24 * time.Hour
)

// NewRedisClient returns a configured go-redis client from URL (e.g., redis://localhost:6379/0).
func NewRedisClient(redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		return nil, errors.New("empty redis url")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return client, nil
}

// RedisStore is a gorilla sessions.Store that keeps session values in Redis
// and only a signed session ID in the cookie.
type RedisStore struct {
	client     *redis.Client
	Codecs     []securecookie.Codec
	Options    *sessions.Options
	serializer securecookie.GobEncoder
}

var _ sessions.Store = (*RedisStore)(nil)

// NewRedisStore signs session IDs with keyPairs (see securecookie.CodecsFromPairs).
func NewRedisStore(client *redis.Client, keyPairs ...[]byte) *RedisStore {
	return &RedisStore{
		client: client,
		Codecs: securecookie.CodecsFromPairs(keyPairs...),
		Options: &sessions.Options{
			Path:   "/",
			MaxAge: 86400 * 30,
		},
	}
}

// Get returns the session cached in the request registry, loading it on first use.
func (s *RedisStore) Get(r *http.Request, name string) (*sessions.Session, error) {
	return sessions.GetRegistry(r).Get(s, name)
}

// New loads the session named by the request cookie, or returns a fresh one.
// A cookie that fails verification yields a fresh session and the decode error.
func (s *RedisStore) New(r *http.Request, name string) (*sessions.Session, error) {
	session := sessions.NewSession(s, name)
	opts := *s.Options
	session.Options = &opts
	session.IsNew = true

	c, err := r.Cookie(name)
	if err != nil {
		return session, nil
	}
	if err := securecookie.DecodeMulti(name, c.Value, &session.ID, s.Codecs...); err != nil {
		session.ID = ""
		return session, err
	}

	data, err := s.client.Get(r.Context(), redisSessionPrefix+session.ID).Bytes()
	if errors.Is(err, redis.Nil) {
		// expired or revoked server side
		session.ID = ""
		return session, nil
	}
	if err != nil {
		return session, err
	}
	if err := s.serializer.Deserialize(data, &session.Values); err != nil {
		return session, err
	}
	session.IsNew = false
	return session, nil
}

// Save writes values to Redis and the signed ID to the cookie. MaxAge < 0 deletes both.
func (s *RedisStore) Save(r *http.Request, w http.ResponseWriter, session *sessions.Session) error {
	ctx := r.Context()
	if session.Options != nil && session.Options.MaxAge < 0 {
		if session.ID != "" {
			if err := s.client.Del(ctx, redisSessionPrefix+session.ID).Err(); err != nil {
				return err
			}
		}
		http.SetCookie(w, sessions.NewCookie(session.Name(), "", session.Options))
		return nil
	}

	if session.ID == "" {
		id, err := newSessionID()
		if err != nil {
			return err
		}
		session.ID = id
	}

	data, err := s.serializer.Serialize(session.Values)
	if err != nil {
		return err
	}
	ttl := redisSessionDefaultTTL
	if session.Options != nil && session.Options.MaxAge > 0 {
		ttl = time.Duration(session.Options.MaxAge) * time.Second
	}
	if err := s.client.Set(ctx, redisSessionPrefix+session.ID, data, ttl).Err(); err != nil {
		return err
	}

	encoded, err := securecookie.EncodeMulti(session.Name(), session.ID, s.Codecs...)
	if err != nil {
		return err
	}
	http.SetCookie(w, sessions.NewCookie(session.Name(), encoded, session.Options))
	return nil
}

// Revoke drops the server-side values of session so a new ID is issued on next Save.
func (s *RedisStore) Revoke(ctx context.Context, session *sessions.Session) error {
	if session.ID == "" {
		return nil
	}
	err := s.client.Del(ctx, redisSessionPrefix+session.ID).Err()
	session.ID = ""
	return err
}
