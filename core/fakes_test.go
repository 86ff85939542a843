package core

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// memUserRepo enforces the same unique constraints as the users table.
type memUserRepo struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]UserRecord

	// beforeCreate runs inside Create before the uniqueness check, to simulate a racing writer.
	beforeCreate func()
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: map[int64]UserRecord{}}
}

func (r *memUserRepo) find(match func(UserRecord) bool) (*UserRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			u := u
			return &u, nil
		}
	}
	return nil, ErrUserNotFound
}

func (r *memUserRepo) FindByUsername(_ context.Context, username string) (*UserRecord, error) {
	return r.find(func(u UserRecord) bool { return u.Username == username })
}

func (r *memUserRepo) FindByEmail(_ context.Context, email string) (*UserRecord, error) {
	return r.find(func(u UserRecord) bool { return strings.EqualFold(u.Email, email) })
}

func (r *memUserRepo) FindByID(_ context.Context, id int64) (*UserRecord, error) {
	return r.find(func(u UserRecord) bool { return u.ID == id })
}

func (r *memUserRepo) Create(_ context.Context, u UserRecord) (*UserRecord, error) {
	if r.beforeCreate != nil {
		hook := r.beforeCreate
		r.beforeCreate = nil
		hook()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Username == u.Username {
			return nil, ErrDuplicateUsername
		}
		if strings.EqualFold(existing.Email, u.Email) {
			return nil, ErrDuplicateEmail
		}
	}
	r.nextID++
	u.ID = r.nextID
	u.CreatedAt = time.Now()
	r.users[u.ID] = u
	return &u, nil
}

type memPostRepo struct {
	mu     sync.Mutex
	users  *memUserRepo
	nextID int64
	posts  map[int64]Post
}

func newMemPostRepo(users *memUserRepo) *memPostRepo {
	return &memPostRepo{users: users, posts: map[int64]Post{}}
}

func (r *memPostRepo) withAuthor(p Post) Post {
	if u, err := r.users.FindByID(context.Background(), p.AuthorID); err == nil {
		p.AuthorName = u.Username
	}
	return p
}

func (r *memPostRepo) filter(keep func(Post) bool) []Post {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []Post{}
	for _, p := range r.posts {
		if keep(p) {
			out = append(out, r.withAuthor(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (r *memPostRepo) List(_ context.Context) ([]Post, error) {
	return r.filter(func(Post) bool { return true }), nil
}

func (r *memPostRepo) ListByAuthor(_ context.Context, authorID int64) ([]Post, error) {
	return r.filter(func(p Post) bool { return p.AuthorID == authorID }), nil
}

func (r *memPostRepo) Get(_ context.Context, id int64) (*Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return nil, ErrNotFound
	}
	p = r.withAuthor(p)
	return &p, nil
}

func (r *memPostRepo) Create(_ context.Context, title, content string, authorID int64) (*Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	now := time.Now()
	p := Post{ID: r.nextID, Title: title, Content: content, AuthorID: authorID, CreatedAt: now, UpdatedAt: now}
	r.posts[p.ID] = p
	p = r.withAuthor(p)
	return &p, nil
}

func (r *memPostRepo) Update(_ context.Context, id int64, title, content string) (*Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return nil, ErrNotFound
	}
	p.Title, p.Content, p.UpdatedAt = title, content, time.Now()
	r.posts[id] = p
	p = r.withAuthor(p)
	return &p, nil
}

func (r *memPostRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.posts[id]; !ok {
		return ErrNotFound
	}
	delete(r.posts, id)
	return nil
}
