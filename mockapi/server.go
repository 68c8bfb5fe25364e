// Package mockapi is an in-memory implementation of the FlavorAI remote API.
// It backs the client's tests and `flavorai-client mockapi` for local work.
// Nothing is persisted across restarts.
package mockapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"golang.org/x/crypto/bcrypt"
)

type (
	user struct {
		ID           string
		Email        string
		Name         string
		PasswordHash string
		CreatedAt    time.Time
	}

	publicUser struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name,omitempty"`
	}

	recipe struct {
		ID           string    `json:"id"`
		Title        string    `json:"title"`
		Description  *string   `json:"description"`
		Ingredients  string    `json:"ingredients"`
		Instructions string    `json:"instructions"`
		Cuisine      *string   `json:"cuisine"`
		AuthorID     string    `json:"authorId"`
		ImageURL     *string   `json:"imageUrl"`
		CreatedAt    time.Time `json:"createdAt"`
	}

	upload struct {
		contentType string
		data        []byte
	}

	// Call is one request as seen by the server.
	Call struct {
		Method        string
		Path          string
		Authorization string
		ContentType   string
	}

	// Fault makes the next matching request fail with Status and Message.
	Fault struct {
		Method  string
		Path    string
		Status  int
		Message string
	}
)

func (u *user) public() publicUser {
	return publicUser{ID: u.ID, Email: u.Email, Name: u.Name}
}

// Server holds the mock API state. Use Handler to mount it.
type Server struct {
	secret     []byte
	tokenTTL   time.Duration
	bcryptCost int
	clock    func() time.Time

	mu           sync.RWMutex
	usersByEmail map[string]*user
	usersByID    map[string]*user
	recipes      map[string]*recipe
	order        []string
	ratings      map[string]map[string]int // recipeID -> userID -> rating
	uploads      map[string]upload

	callsMu sync.Mutex
	calls   []Call
	faults  []Fault
	hold    map[string]chan struct{}

	router *chi.Mux
}

// Option configures a Server.
type Option func(*Server)

// WithTokenTTL sets the lifetime of issued tokens (default one week).
func WithTokenTTL(d time.Duration) Option {
	return func(s *Server) { s.tokenTTL = d }
}

// WithBcryptCost sets the bcrypt cost for stored passwords. Tests use
// bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(s *Server) { s.bcryptCost = cost }
}

// WithClock replaces time.Now for token issue and verification.
func WithClock(clock func() time.Time) Option {
	return func(s *Server) { s.clock = clock }
}

// WithRequestLog enables chi's request logger.
func WithRequestLog() Option {
	return func(s *Server) { s.router.Use(middleware.Logger) }
}

// NewServer creates an empty API signing tokens with secret.
func NewServer(secret string, opts ...Option) *Server {
	s := &Server{
		secret:       []byte(secret),
		tokenTTL:     7 * 24 * time.Hour,
		bcryptCost:   bcrypt.DefaultCost,
		usersByEmail: make(map[string]*user),
		usersByID:    make(map[string]*user),
		recipes:      make(map[string]*recipe),
		ratings:      make(map[string]map[string]int),
		uploads:      make(map[string]upload),
		hold:         make(map[string]chan struct{}),
		router:       chi.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(s.record)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Post("/register", s.handleRegister)
		r.With(s.requireAuth).Get("/me", s.handleMe)
	})

	r.Route("/recipes", func(r chi.Router) {
		r.Get("/", s.handleListRecipes)
		r.With(s.requireAuth).Get("/mine", s.handleMyRecipes)
		r.With(s.requireAuth).Post("/", s.handleCreateRecipe)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetRecipe)
			r.With(s.requireAuth).Patch("/", s.handleUpdateRecipe)
			r.With(s.requireAuth).Delete("/", s.handleDeleteRecipe)
		})
	})

	r.Route("/ratings", func(r chi.Router) {
		r.With(s.requireAuth).Post("/", s.handleRate)
		r.With(s.optionalAuth).Get("/recipe/{id}", s.handleRatingSummary)
	})

	r.Get("/uploads/{id}", s.handleUpload)
}

// record logs every call and applies injected faults and holds.
func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.callsMu.Lock()
		s.calls = append(s.calls, Call{
			Method:        r.Method,
			Path:          r.URL.Path,
			Authorization: r.Header.Get("Authorization"),
			ContentType:   r.Header.Get("Content-Type"),
		})
		var fault *Fault
		for i, f := range s.faults {
			if f.Method == r.Method && f.Path == r.URL.Path {
				ff := f
				fault = &ff
				s.faults = append(s.faults[:i], s.faults[i+1:]...)
				break
			}
		}
		gate := s.hold[r.Method+" "+r.URL.Path]
		s.callsMu.Unlock()

		if gate != nil {
			<-gate
		}
		if fault != nil {
			writeError(w, r, fault.Status, fault.Message)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Calls returns a copy of every request seen so far.
func (s *Server) Calls() []Call {
	s.callsMu.Lock()
	defer s.callsMu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallsTo returns the requests seen for method and path.
func (s *Server) CallsTo(method, path string) []Call {
	var out []Call
	for _, c := range s.Calls() {
		if c.Method == method && c.Path == path {
			out = append(out, c)
		}
	}
	return out
}

// ResetCalls forgets recorded calls.
func (s *Server) ResetCalls() {
	s.callsMu.Lock()
	s.calls = nil
	s.callsMu.Unlock()
}

// FailNext queues a one-shot failure.
func (s *Server) FailNext(f Fault) {
	s.callsMu.Lock()
	s.faults = append(s.faults, f)
	s.callsMu.Unlock()
}

// Hold blocks requests to method+path until the returned release func is
// called. Release is idempotent.
func (s *Server) Hold(method, path string) (release func()) {
	gate := make(chan struct{})
	key := method + " " + path

	s.callsMu.Lock()
	s.hold[key] = gate
	s.callsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.callsMu.Lock()
			delete(s.hold, key)
			s.callsMu.Unlock()
			close(gate)
		})
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	render.Status(r, status)
	render.JSON(w, r, map[string]any{
		"statusCode": status,
		"message":    message,
	})
}

// writeErrors mimics validation pipes that report every problem at once.
func writeErrors(w http.ResponseWriter, r *http.Request, status int, messages []string) {
	render.Status(r, status)
	render.JSON(w, r, map[string]any{
		"statusCode": status,
		"message":    messages,
		"error":      http.StatusText(status),
	})
}
