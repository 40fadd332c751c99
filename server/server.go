// Package server exposes optimization and edit sessions over HTTP.
package server

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jsphweid/mmlcore/mml"
	"github.com/jsphweid/mmlcore/model"
	"github.com/jsphweid/mmlcore/optimizer"
	"github.com/jsphweid/mmlcore/score"
	"github.com/jsphweid/mmlcore/session"
	"github.com/jsphweid/mmlcore/ticktable"
	"github.com/pkg/errors"
	"github.com/rs/cors"
)

const maxBodyBytes = 1 << 20

type Server struct {
	table      *ticktable.Table
	sessions   *session.Manager
	generation optimizer.Generation
}

// New serves sessions from m. gen is used when a request names none.
func New(table *ticktable.Table, m *session.Manager, gen optimizer.Generation) *Server {
	return &Server{table: table, sessions: m, generation: gen}
}

func (s *Server) Router() *mux.Router {
	router := mux.NewRouter().StrictSlash(true)
	router.HandleFunc("/health", s.handleHealth).Methods("GET")
	router.HandleFunc("/optimize", s.HandleOptimize).Methods("POST")
	router.HandleFunc("/sessions", s.handleCreateSession).Methods("POST")
	router.HandleFunc("/sessions/{id}", s.handleGetSession).Methods("GET")
	router.HandleFunc("/sessions/{id}", s.handleDeleteSession).Methods("DELETE")
	router.HandleFunc("/sessions/{id}/notes", s.handleInsertNotes).Methods("POST")
	router.HandleFunc("/sessions/{id}/delete-min-rest", s.handleDeleteMinRest).Methods("POST")
	router.HandleFunc("/sessions/{id}/velocity", s.handleSetVelocity).Methods("POST")
	router.HandleFunc("/sessions/{id}/tempo", s.handleAddTempo).Methods("POST")
	router.HandleFunc("/sessions/{id}/textindex", s.handleTextIndex).Methods("GET")
	router.Use(logRequests)
	return router
}

// Handler is the router behind a permissive CORS policy.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(s.Router())
}

func (s *Server) ListenAndServe(addr string) error {
	log.Printf("listening on %s", addr)
	return http.ListenAndServe(addr, s.Handler())
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Printf("%s %s %d %v", r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("could not encode response: %v", err)
	}
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrUndefinedToken), errors.Is(err, model.ErrUnrepresentableDuration):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrParse), errors.Is(err, model.ErrOutOfRange),
		errors.Is(err, model.ErrInvalidRange), errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

var errBadRequest = errors.New("bad request")

func writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		log.Printf("internal error: %+v", err)
	}
	writeJSON(w, status, model.ErrorResponse{Error: err.Error()})
}

func decodeBody(r *http.Request, v interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return errors.Wrap(errBadRequest, err.Error())
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errors.Wrapf(errBadRequest, "could not unmarshal request body: %v", err)
	}
	return nil
}

func (s *Server) generationOf(n int) (optimizer.Generation, error) {
	if n == 0 {
		return s.generation, nil
	}
	g, err := optimizer.ParseGeneration(strconv.Itoa(n))
	if err != nil {
		return 0, errors.Wrap(errBadRequest, err.Error())
	}
	return g, nil
}

func (s *Server) queryGeneration(r *http.Request) (optimizer.Generation, error) {
	q := r.URL.Query().Get("generation")
	if q == "" {
		return s.generation, nil
	}
	g, err := optimizer.ParseGeneration(q)
	if err != nil {
		return 0, errors.Wrap(errBadRequest, err.Error())
	}
	return g, nil
}

func sessionID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		return uuid.Nil, errors.Wrap(session.ErrNotFound, err.Error())
	}
	return id, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleOptimize rewrites one part, or MML@ tracks one per line, at the
// requested generation.
func (s *Server) HandleOptimize(w http.ResponseWriter, r *http.Request) {
	var input model.OptimizeRequestBody
	if err := decodeBody(r, &input); err != nil {
		writeError(w, err)
		return
	}
	gen, err := s.generationOf(input.Generation)
	if err != nil {
		writeError(w, err)
		return
	}

	res := model.OptimizeResponse{Generation: int(gen)}
	if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(input.MML)), "MML@") {
		sc, err := score.Parse(s.table, input.MML)
		if err != nil {
			writeError(w, err)
			return
		}
		lines, err := sc.MML(gen, nil)
		if err != nil {
			writeError(w, err)
			return
		}
		res.MML = strings.Join(lines, "\n")
		res.TotalTicks = sc.TotalTickLength()
	} else {
		tl, err := mml.Parse(s.table, input.MML)
		if err != nil {
			writeError(w, err)
			return
		}
		if res.MML, err = optimizer.Optimize(tl, optimizer.Options{Generation: gen}); err != nil {
			writeError(w, err)
			return
		}
		res.TotalTicks = tl.TotalTickLength()
	}
	res.Length = len(res.MML)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var input model.CreateSessionRequestBody
	if err := decodeBody(r, &input); err != nil {
		writeError(w, err)
		return
	}
	id, err := s.sessions.Create(input.MML)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := s.sessions.Serialize(id, s.generation)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	gen, err := s.queryGeneration(r)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := s.sessions.Serialize(id, gen)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.sessions.Delete(id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleInsertNotes(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var input model.InsertNotesRequestBody
	if err := decodeBody(r, &input); err != nil {
		writeError(w, err)
		return
	}
	if err := s.sessions.Insert(id, input.Notes); err != nil {
		writeError(w, err)
		return
	}
	s.writeSession(w, id)
}

func (s *Server) handleDeleteMinRest(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.sessions.DeleteMinRest(id); err != nil {
		writeError(w, err)
		return
	}
	s.writeSession(w, id)
}

// handleSetVelocity starts a velocity change at the note containing
// tick_offset.
func (s *Server) handleSetVelocity(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var input model.VelocityEvent
	if err := decodeBody(r, &input); err != nil {
		writeError(w, err)
		return
	}
	if err := s.sessions.SetVelocity(id, input.TickOffset, input.Velocity); err != nil {
		writeError(w, err)
		return
	}
	s.writeSession(w, id)
}

func (s *Server) handleAddTempo(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var input model.TempoEvent
	if err := decodeBody(r, &input); err != nil {
		writeError(w, err)
		return
	}
	if err := s.sessions.AddTempo(id, input); err != nil {
		writeError(w, err)
		return
	}
	s.writeSession(w, id)
}

func (s *Server) writeSession(w http.ResponseWriter, id uuid.UUID) {
	res, err := s.sessions.Serialize(id, s.generation)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleTextIndex(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	gen, err := s.queryGeneration(r)
	if err != nil {
		writeError(w, err)
		return
	}
	tick, err := strconv.Atoi(r.URL.Query().Get("tick"))
	if err != nil {
		writeError(w, errors.Wrap(errBadRequest, "tick must be an integer"))
		return
	}
	res, err := s.sessions.TextSpan(id, gen, tick)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
