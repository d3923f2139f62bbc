// Package activitytest provides an in-process imitation of the activity
// site for tests.
package activitytest

import (
	"fmt"
	"html/template"
	"net/http"
	"net/http/httptest"
	"sync"
)

const (
	ActivityPath = "/"
	LoginPath    = "/Activity/Login"
	LogoutPath   = "/Activity/Logout"
	TokenField   = "__RequestVerificationToken"
	cookieName   = "__RequestVerificationToken_Lw__"
)

var page = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head><title>Activity</title></head>
<body>
{{if .Errors}}<div class="validation-summary-errors"><ul>{{range .Errors}}<li>{{.}}</li>{{end}}</ul></div>{{end}}
{{if .LoggedIn}}
<p class="status">Checked in</p>
{{if not .OmitToken}}
<form action="/Activity/Logout" method="post">
  <input name="__RequestVerificationToken" type="hidden" value="{{.Token}}" />
  <button type="submit">Check out</button>
</form>
{{end}}
{{else}}
<p class="status">Checked out</p>
{{if not .OmitToken}}
<form action="/Activity/Login" method="post">
  <input name="__RequestVerificationToken" type="hidden" value="{{.Token}}" />
  <input name="password" type="password" />
  <button type="submit">Check in</button>
</form>
{{end}}
{{end}}
</body>
</html>`))

type pageData struct {
	LoggedIn  bool
	OmitToken bool
	Token     string
	Errors    []string
}

// Server imitates the activity site, tokens are bound to a per-client
// cookie the same way ASP.NET anti-forgery works.
type Server struct {
	*httptest.Server

	Password string

	mu        sync.Mutex
	down      bool
	omitToken bool
	loggedIn  bool
	sessions  int
	logins    int
	logouts   int
	gets      int

	inFlight    int
	maxInFlight int
	requests    []string
}

func NewServer(password string) *Server {
	s := &Server{Password: password}
	mux := http.NewServeMux()
	mux.HandleFunc(LoginPath, s.handleLogin)
	mux.HandleFunc(LogoutPath, s.handleLogout)
	mux.HandleFunc(ActivityPath, s.handlePage)
	s.Server = httptest.NewServer(s.track(mux))
	return s
}

// track records every request and how many were in flight at once, and
// answers 503 while the site is down.
func (s *Server) track(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		down := s.down
		s.requests = append(s.requests, r.Method+" "+r.URL.Path)
		s.inFlight++
		if s.inFlight > s.maxInFlight {
			s.maxInFlight = s.inFlight
		}
		s.mu.Unlock()

		defer func() {
			s.mu.Lock()
			s.inFlight--
			s.mu.Unlock()
		}()

		if down {
			http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SetDown makes every request fail with 503.
func (s *Server) SetDown(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.down = down
}

// SetOmitToken renders pages without their forms.
func (s *Server) SetOmitToken(omit bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.omitToken = omit
}

func (s *Server) LoggedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loggedIn
}

// Counts returns how many page views, successful logins and successful
// logouts the server has seen.
func (s *Server) Counts() (gets, logins, logouts int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets, s.logins, s.logouts
}

// Requests returns every request seen so far as "METHOD /path", in
// arrival order.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// MaxInFlight returns the most requests the server was handling at once.
func (s *Server) MaxInFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxInFlight
}

func tokenFor(session string) string {
	return "token-" + session
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) string {
	cookie, err := r.Cookie(cookieName)
	if err == nil && cookie.Value != "" {
		return cookie.Value
	}
	s.sessions++
	value := fmt.Sprintf("session-%d", s.sessions)
	http.SetCookie(w, &http.Cookie{Name: cookieName, Value: value, Path: "/", HttpOnly: true})
	return value
}

func (s *Server) render(w http.ResponseWriter, session string, errors []string) {
	w.Header().Set("content-type", "text/html; charset=utf-8")
	err := page.Execute(w, pageData{
		LoggedIn:  s.loggedIn,
		OmitToken: s.omitToken,
		Token:     tokenFor(session),
		Errors:    errors,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gets++
	session := s.session(w, r)
	s.render(w, session, nil)
}

// verify checks the anti-forgery pair, it answers 400 like ASP.NET does.
func (s *Server) verify(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	cookie, err := r.Cookie(cookieName)
	if err != nil {
		http.Error(w, "anti-forgery cookie missing", http.StatusBadRequest)
		return false
	}
	if r.PostFormValue(TokenField) != tokenFor(cookie.Value) {
		http.Error(w, "anti-forgery token invalid", http.StatusBadRequest)
		return false
	}
	return true
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.verify(w, r) {
		return
	}
	if r.PostFormValue("password") != s.Password {
		cookie, _ := r.Cookie(cookieName)
		s.render(w, cookie.Value, []string{"Invalid access code."})
		return
	}
	s.loggedIn = true
	s.logins++
	http.Redirect(w, r, ActivityPath, http.StatusFound)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.verify(w, r) {
		return
	}
	s.loggedIn = false
	s.logouts++
	http.Redirect(w, r, ActivityPath, http.StatusFound)
}
