// Package fakeapi is an in-process stand-in for the recipe API.
//
// It serves the like and profile endpoints with the same wire shapes as the
// real server, assigns codes to recipes liked with code 0, records every
// call, and can be told to fail the next request for a route. Used by tests,
// the scenario harness and `recipesync serve-fake`.
package fakeapi

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/roach88/recipesync/internal/recipe"
)

// Call is one request the server received.
type Call struct {
	Method    string
	Path      string
	Query     string
	Body      string
	RequestID string
}

// String renders the call as "METHOD /path?query".
func (c Call) String() string {
	if c.Query == "" {
		return c.Method + " " + c.Path
	}
	return c.Method + " " + c.Path + "?" + c.Query
}

// Failure describes how to fail one request. Status 0 drops the
// connection without a response.
type Failure struct {
	Status int
	Body   string
	Delay  time.Duration
}

// Options configures a Server.
type Options struct {
	// Token is the accepted bearer token. Empty accepts any token.
	Token string
	// User is returned by /api/me.
	User recipe.User
	// FirstCode is the first code handed out for unassigned recipes.
	// Defaults to 100.
	FirstCode int64
	Logger    *slog.Logger
}

type likedRecipe struct {
	ref   recipe.Ref
	order int
}

// Server is the fake API. Safe for concurrent use.
type Server struct {
	mu       sync.Mutex
	token    string
	user     recipe.User
	nextCode int64
	assigned map[string]int64
	liked    map[int64]likedRecipe
	seq      int
	calls    []Call
	failures map[string][]Failure
	holds    map[string]chan struct{}
	logger   *slog.Logger
	router   *mux.Router
}

// New returns a Server with no liked recipes.
func New(opts Options) *Server {
	if opts.FirstCode <= 1 {
		opts.FirstCode = 100
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Server{
		token:    opts.Token,
		user:     opts.User,
		nextCode: opts.FirstCode,
		assigned: make(map[string]int64),
		liked:    make(map[int64]likedRecipe),
		failures: make(map[string][]Failure),
		holds:    make(map[string]chan struct{}),
		logger:   opts.Logger,
	}
	s.router = s.newRouter()
	return s
}

func (s *Server) newRouter() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.record, s.auth, s.inject)
	r.HandleFunc("/recipes/like", s.handleLike).Methods(http.MethodPost)
	r.HandleFunc("/recipes/like", s.handleUnlike).Methods(http.MethodDelete)
	r.HandleFunc("/recipes/like", s.handleLiked).Methods(http.MethodGet)
	r.HandleFunc("/api/me", s.handleMe).Methods(http.MethodGet)
	r.HandleFunc("/api/update", s.handleUpdate).Methods(http.MethodPut)
	return r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Route names a method and path, e.g. "POST /recipes/like".
func Route(method, path string) string {
	return method + " " + path
}

// FailNext queues a failure for the next request to route.
func (s *Server) FailNext(route string, f Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = append(s.failures[route], f)
}

// Hold makes requests to route wait until the returned release func is
// called. Used to keep a request in flight while a test acts.
func (s *Server) Hold(route string) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.holds[route] = ch
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			if s.holds[route] == ch {
				delete(s.holds, route)
			}
			s.mu.Unlock()
			close(ch)
		})
	}
}

// Calls returns every request received so far.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallCount returns how many requests hit route.
func (s *Server) CallCount(route string) int {
	n := 0
	for _, c := range s.Calls() {
		if Route(c.Method, c.Path) == route {
			n++
		}
	}
	return n
}

// Liked returns the codes currently liked, ascending.
func (s *Server) Liked() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	codes := make([]int64, 0, len(s.liked))
	for c := range s.liked {
		codes = append(codes, c)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}

// Seed marks r as liked on the server side. A zero code is assigned.
func (s *Server) Seed(r recipe.Ref) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.likeLocked(r)
}

// User returns the current profile.
func (s *Server) User() recipe.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

func (s *Server) likeLocked(r recipe.Ref) int64 {
	if r.ServerCode <= 0 {
		id := r.Name + "\x00" + r.Time
		code, ok := s.assigned[id]
		if !ok {
			code = s.nextCode
			s.nextCode++
			s.assigned[id] = code
		}
		r.ServerCode = code
	}
	if _, ok := s.liked[r.ServerCode]; !ok {
		s.seq++
		s.liked[r.ServerCode] = likedRecipe{ref: r, order: s.seq}
	}
	return r.ServerCode
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body.Close()
		r.Body = io.NopCloser(strings.NewReader(string(body)))

		s.mu.Lock()
		s.calls = append(s.calls, Call{
			Method:    r.Method,
			Path:      r.URL.Path,
			Query:     r.URL.RawQuery,
			Body:      string(body),
			RequestID: r.Header.Get("X-Request-ID"),
		})
		s.mu.Unlock()

		s.logger.Debug("fake api request",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", r.Header.Get("X-Request-ID"))
		next.ServeHTTP(w, r)
	})
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || tok == "" || (s.token != "" && tok != s.token) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) inject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := Route(r.Method, r.URL.Path)

		s.mu.Lock()
		hold := s.holds[route]
		var f *Failure
		if q := s.failures[route]; len(q) > 0 {
			f = &q[0]
			s.failures[route] = q[1:]
		}
		s.mu.Unlock()

		if hold != nil {
			select {
			case <-hold:
			case <-r.Context().Done():
				return
			}
		}
		if f == nil {
			next.ServeHTTP(w, r)
			return
		}

		if f.Delay > 0 {
			select {
			case <-time.After(f.Delay):
			case <-r.Context().Done():
				return
			}
		}
		if f.Status == 0 {
			if hj, ok := w.(http.Hijacker); ok {
				if conn, _, err := hj.Hijack(); err == nil {
					conn.Close()
					return
				}
			}
			f.Status = http.StatusBadGateway
		}
		http.Error(w, f.Body, f.Status)
	})
}

func (s *Server) handleLike(w http.ResponseWriter, r *http.Request) {
	var body recipe.LikeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(body.Name) == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	code := s.likeLocked(body.Ref())
	s.mu.Unlock()

	writeJSON(w, code)
}

func (s *Server) handleUnlike(w http.ResponseWriter, r *http.Request) {
	code, err := strconv.ParseInt(r.URL.Query().Get("recipeCode"), 10, 64)
	if err != nil || code <= 0 {
		http.Error(w, "recipeCode is required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	delete(s.liked, code)
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

type wireLiked struct {
	Code            int64               `json:"code"`
	Name            string              `json:"name"`
	Time            string              `json:"time"`
	Author          string              `json:"author"`
	Tools           int64               `json:"tools"`
	Type            int64               `json:"type"`
	Recipe          []string            `json:"recipe"`
	MainIngredients []recipe.Ingredient `json:"mainIngredients"`
	SubIngredients  []recipe.Ingredient `json:"subIngredients"`
	Thumbnail       string              `json:"thumbnail"`
}

func (s *Server) handleLiked(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	entries := make([]likedRecipe, 0, len(s.liked))
	for _, l := range s.liked {
		entries = append(entries, l)
	}
	s.mu.Unlock()

	// Newest first, like the real list.
	sort.Slice(entries, func(i, j int) bool { return entries[i].order > entries[j].order })

	out := make([]wireLiked, 0, len(entries))
	for _, e := range entries {
		out = append(out, wireLiked{
			Code:            e.ref.ServerCode,
			Name:            e.ref.Name,
			Time:            e.ref.Time,
			Author:          e.ref.Author,
			Tools:           e.ref.ToolsMask,
			Type:            e.ref.TypeCode,
			Recipe:          e.ref.Steps,
			MainIngredients: e.ref.MainIngredients,
			SubIngredients:  e.ref.SubIngredients,
			Thumbnail:       e.ref.Thumbnail,
		})
	}
	writeJSON(w, out)
}

type wireUser struct {
	ID          string   `json:"id"`
	Tools       int64    `json:"tools"`
	Banned      int64    `json:"banned"`
	Ingredients []string `json:"ingredients"`
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u := s.User()
	ingredients := u.Ingredients
	if ingredients == nil {
		ingredients = []string{}
	}
	writeJSON(w, wireUser{ID: u.ID, Tools: u.ToolsMask, Banned: u.BannedMask, Ingredients: ingredients})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var upd recipe.Update
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		http.Error(w, "bad body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if upd.Tools < 0 || upd.Banned < 0 {
		writeJSON(w, 0)
		return
	}

	names := make([]string, 0, len(upd.Ingredients))
	for _, it := range upd.Ingredients {
		names = append(names, it.Name)
	}

	s.mu.Lock()
	s.user.ToolsMask = upd.Tools
	s.user.BannedMask = upd.Banned
	s.user.Ingredients = names
	s.mu.Unlock()

	writeJSON(w, 1)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(v)
}
