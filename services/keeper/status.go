package keeper

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type Availability int

const (
	Unknown Availability = iota
	Up
	Down
)

func (a Availability) String() string {
	switch a {
	case Up:
		return "up"
	case Down:
		return "down"
	default:
		return "unknown"
	}
}

func (a Availability) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Availability) UnmarshalText(text []byte) error {
	switch string(text) {
	case "up":
		*a = Up
	case "down":
		*a = Down
	case "unknown":
		*a = Unknown
	default:
		return fmt.Errorf("unknown availability %q", text)
	}
	return nil
}

// Outcome is the result of the most recent run of a job.
type Outcome struct {
	At    time.Time `json:"at"`
	Ok    bool      `json:"ok"`
	Error string    `json:"error,omitempty"`
}

type Status struct {
	Availability Availability `json:"availability"`
	DownSince    *time.Time   `json:"down_since,omitempty"`
	LastCheck    *Outcome     `json:"last_check,omitempty"`
	LastLogin    *Outcome     `json:"last_login,omitempty"`
	LastLogout   *Outcome     `json:"last_logout,omitempty"`
}

func (s *Service) recordOutcome(field **Outcome, at time.Time, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	outcome := &Outcome{At: at, Ok: err == nil}
	if err != nil {
		outcome.Error = err.Error()
	}
	*field = outcome
}

func copyOutcome(o *Outcome) *Outcome {
	if o == nil {
		return nil
	}
	c := *o
	return &c
}

// Status returns a snapshot of what the keeper last observed.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := Status{
		Availability: s.status.Availability,
		LastCheck:    copyOutcome(s.status.LastCheck),
		LastLogin:    copyOutcome(s.status.LastLogin),
		LastLogout:   copyOutcome(s.status.LastLogout),
	}
	if s.status.DownSince != nil {
		since := *s.status.DownSince
		out.DownSince = &since
	}
	return out
}

// Handler serves the status snapshot as JSON on /status and a liveness
// probe on /healthz.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("content-type", "application/json")
		err := json.NewEncoder(w).Encode(s.Status())
		if err != nil {
			s.tel.ReportWarning("service.status", err)
		}
	})
	return mux
}
