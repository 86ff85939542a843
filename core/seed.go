package core

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// SeedDoc is the fixture file read by cmd/seed.
//
//	users:
//	  - username: alice
//	    email: alice@example.com
//	    password: secret123   # optional, generated and logged when absent
//	posts:
//	  - author: alice
//	    title: Hello
//	    content: First post on the blog.
type SeedDoc struct {
	Users []SeedUser `yaml:"users"`
	Posts []SeedPost `yaml:"posts"`
}

type SeedUser struct {
	Username string `yaml:"username"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

type SeedPost struct {
	Author  string `yaml:"author"`
	Title   string `yaml:"title"`
	Content string `yaml:"content"`
}

// SeedResult counts what ApplySeed changed.
type SeedResult struct {
	UsersCreated int
	UsersSkipped int
	PostsCreated int
}

// ParseSeedYAML decodes and validates a fixture with the same rules as the web forms.
func ParseSeedYAML(b []byte) (SeedDoc, error) {
	var doc SeedDoc
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return doc, fmt.Errorf("seed file is malformed: %w", err)
	}

	known := map[string]bool{}
	for i := range doc.Users {
		u := &doc.Users[i]
		form := RegisterForm{Username: u.Username, Email: u.Email, Password: u.Password, Confirm: u.Password}
		if form.Password == "" {
			// placeholder so shape checks pass; replaced by a generated password
			form.Password, form.Confirm = "generated", "generated"
		}
		if err := form.Validate(); err != nil {
			return doc, fmt.Errorf("users[%d]: %w", i, err)
		}
		u.Username, u.Email = form.Username, form.Email
		if known[u.Username] {
			return doc, fmt.Errorf("users[%d]: duplicate username %q", i, u.Username)
		}
		known[u.Username] = true
	}

	for i := range doc.Posts {
		p := &doc.Posts[i]
		p.Author = strings.TrimSpace(p.Author)
		if p.Author == "" {
			return doc, fmt.Errorf("posts[%d]: author is required", i)
		}
		form := PostForm{Title: p.Title, Content: p.Content}
		if err := form.Validate(); err != nil {
			return doc, fmt.Errorf("posts[%d]: %w", i, err)
		}
		p.Title, p.Content = form.Title, form.Content
	}
	return doc, nil
}

// ApplySeed registers the fixture users and their posts.
// Users that already exist are left alone together with their posts, so reruns are idempotent.
func ApplySeed(ctx context.Context, dir *UserDirectory, posts PostRepository, doc SeedDoc) (SeedResult, error) {
	var res SeedResult
	created := map[string]int64{}

	for _, su := range doc.Users {
		password := su.Password
		if password == "" {
			var err error
			if password, err = generatePassword(16); err != nil {
				return res, err
			}
		}
		u, err := dir.Register(ctx, su.Username, su.Email, password)
		if err != nil {
			if errors.Is(err, ErrDuplicateUsername) || errors.Is(err, ErrDuplicateEmail) {
				log.Printf("seed: skipping %s: %v", su.Username, err)
				res.UsersSkipped++
				continue
			}
			return res, fmt.Errorf("register %s: %w", su.Username, err)
		}
		created[u.Username] = u.ID
		res.UsersCreated++
		if su.Password == "" {
			log.Printf("seed: created user=%s password=%s", u.Username, password)
		} else {
			log.Printf("seed: created user=%s", u.Username)
		}
	}

	for _, sp := range doc.Posts {
		authorID, ok := created[sp.Author]
		if !ok {
			if _, err := dir.FindByUsername(ctx, sp.Author); err != nil {
				return res, fmt.Errorf("post %q: author %s: %w", sp.Title, sp.Author, err)
			}
			continue
		}
		if _, err := posts.Create(ctx, sp.Title, sp.Content, authorID); err != nil {
			return res, fmt.Errorf("post %q: %w", sp.Title, err)
		}
		res.PostsCreated++
	}
	return res, nil
}

// SeedFromFile reads path and applies it.
func SeedFromFile(ctx context.Context, path string, dir *UserDirectory, posts PostRepository) (SeedResult, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return SeedResult{}, err
	}
	doc, err := ParseSeedYAML(b)
	if err != nil {
		return SeedResult{}, err
	}
	return ApplySeed(ctx, dir, posts, doc)
}

func generatePassword(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("password length must be positive")
	}
	raw := make([]byte, length)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw)[:length], nil
}
