package mockapi

import (
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"
)

// Seed helpers populate the server without going through HTTP.

// AddUser registers an account and returns its id. It panics when the
// password cannot be hashed (longer than 72 bytes).
func (s *Server) AddUser(email, password, name string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := s.hashPassword(password)
	if err != nil {
		panic(fmt.Sprintf("mockapi: hashing password for %s: %v", email, err))
	}
	u := &user{
		ID:           ulid.Make().String(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		CreatedAt:    s.now(),
	}

	s.mu.Lock()
	s.usersByEmail[email] = u
	s.usersByID[u.ID] = u
	s.mu.Unlock()
	return u.ID
}

// TokenFor issues an access token for an existing user id.
func (s *Server) TokenFor(userID string) (string, error) {
	s.mu.RLock()
	u, ok := s.usersByID[userID]
	s.mu.RUnlock()
	if !ok {
		u = &user{ID: userID}
	}
	return s.createJWT(u)
}

// AddRecipe stores a recipe authored by authorID and returns its id.
func (s *Server) AddRecipe(authorID, title, ingredients, instructions string) string {
	rec := &recipe{
		ID:           ulid.Make().String(),
		Title:        title,
		Ingredients:  ingredients,
		Instructions: instructions,
		AuthorID:     authorID,
		CreatedAt:    s.now().UTC(),
	}

	s.mu.Lock()
	s.recipes[rec.ID] = rec
	s.order = append(s.order, rec.ID)
	s.mu.Unlock()
	return rec.ID
}

// RecipeExists reports whether id is stored.
func (s *Server) RecipeExists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.recipes[id]
	return ok
}

// Upload returns the bytes stored for an uploaded image URL.
func (s *Server) Upload(url string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	up, ok := s.uploads[strings.TrimPrefix(url, "/uploads/")]
	return up.data, ok
}
