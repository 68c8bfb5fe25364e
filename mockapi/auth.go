package mockapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/render"
	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

type contextKey string

const claimsContextKey = contextKey("claims")

// AppClaims are the claims carried by issued access tokens.
type AppClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func (s *Server) hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func (s *Server) createJWT(u *user) (string, error) {
	now := s.now()
	claims := AppClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Email: u.Email,
		Name:  u.Name,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Server) parseJWT(tokenString string) (*AppClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AppClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*AppClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token")
}

// bearer extracts the token from an "Authorization: Bearer <token>" header.
func bearer(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", false
	}
	return parts[1], true
}

// requireAuth rejects requests without a valid bearer token.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, ok := bearer(r)
		if !ok {
			writeError(w, r, http.StatusUnauthorized, "Unauthorized")
			return
		}

		claims, err := s.parseJWT(tokenString)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "Unauthorized")
			return
		}

		ctx := context.WithValue(r.Context(), claimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// optionalAuth attaches claims when a valid token is present and otherwise
// lets the request through anonymously.
func (s *Server) optionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tokenString, ok := bearer(r); ok {
			if claims, err := s.parseJWT(tokenString); err == nil {
				r = r.WithContext(context.WithValue(r.Context(), claimsContextKey, claims))
			}
		}
		next.ServeHTTP(w, r)
	})
}

func claimsFrom(r *http.Request) (*AppClaims, bool) {
	claims, ok := r.Context().Value(claimsContextKey).(*AppClaims)
	return claims, ok
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := render.DecodeJSON(r.Body, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	var problems []string
	if !strings.Contains(in.Email, "@") {
		problems = append(problems, "email must be an email")
	}
	if len(in.Password) < 1 {
		problems = append(problems, "password should not be empty")
	}
	if len(problems) > 0 {
		writeErrors(w, r, http.StatusBadRequest, problems)
		return
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))
	hash, err := s.hashPassword(in.Password)
	if err != nil {
		writeErrors(w, r, http.StatusBadRequest, []string{"password is too long"})
		return
	}

	s.mu.Lock()
	if _, exists := s.usersByEmail[email]; exists {
		s.mu.Unlock()
		writeError(w, r, http.StatusConflict, "User with this email already exists")
		return
	}
	u := &user{
		ID:           ulid.Make().String(),
		Email:        email,
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: hash,
		CreatedAt:    s.now(),
	}
	s.usersByEmail[email] = u
	s.usersByID[u.ID] = u
	s.mu.Unlock()

	logrus.WithField("user_id", u.ID).Debug("mockapi: user registered")
	s.respondWithToken(w, r, u, http.StatusCreated)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := render.DecodeJSON(r.Body, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.mu.RLock()
	u, ok := s.usersByEmail[strings.ToLower(strings.TrimSpace(in.Email))]
	s.mu.RUnlock()

	if !ok || !checkPassword(u.PasswordHash, in.Password) {
		writeError(w, r, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	s.respondWithToken(w, r, u, http.StatusCreated)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r)

	s.mu.RLock()
	u, ok := s.usersByID[claims.Subject]
	s.mu.RUnlock()

	if !ok {
		writeError(w, r, http.StatusUnauthorized, "Unauthorized")
		return
	}
	render.JSON(w, r, u.public())
}

func (s *Server) respondWithToken(w http.ResponseWriter, r *http.Request, u *user, status int) {
	token, err := s.createJWT(u)
	if err != nil {
		logrus.WithError(err).Error("mockapi: failed to sign token")
		writeError(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}
	render.Status(r, status)
	render.JSON(w, r, map[string]any{
		"accessToken": token,
		"user":        u.public(),
	})
}

// now is the clock used for token timestamps.
func (s *Server) now() time.Time {
	if s.clock != nil {
		return s.clock()
	}
	return time.Now()
}
