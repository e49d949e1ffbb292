// Package server handles the HTTP API for the student records.
package server

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/ASHISH26940/registrar/internal/model"
	"github.com/ASHISH26940/registrar/internal/query"
	"github.com/ASHISH26940/registrar/internal/replication"
	"github.com/ASHISH26940/registrar/internal/service"
)

// Cluster is what the server needs from the Raft node. It is nil when the
// node runs standalone.
type Cluster interface {
	AddVoter(id, addr string) error
	Status() map[string]string
}

// Server is the HTTP server for the student service.
type Server struct {
	svc     *service.Service
	cluster Cluster
	log     logrus.FieldLogger
	router  *mux.Router
	now     func() time.Time
}

// New creates a new Server instance. cluster may be nil.
func New(svc *service.Service, cluster Cluster, logger logrus.FieldLogger) *Server {
	s := &Server{
		svc:     svc,
		cluster: cluster,
		log:     logger,
		router:  mux.NewRouter(),
		now:     time.Now,
	}
	s.registerRoutes()
	return s
}

// ServeHTTP makes our Server a standard http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// registerRoutes sets up the HTTP routing for the server. Fixed paths under
// /v1/students come before the {studentNumber} routes.
func (s *Server) registerRoutes() {
	s.router.Use(s.requestID, s.accessLog)
	// mux skips its middleware when no route matches.
	s.router.NotFoundHandler = s.requestID(s.accessLog(http.HandlerFunc(s.handleNoRoute)))
	s.router.MethodNotAllowedHandler = s.requestID(s.accessLog(http.HandlerFunc(s.handleMethodNotAllowed)))

	s.router.HandleFunc("/v1/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc(replication.JoinPath, s.handleJoin).Methods(http.MethodPost)

	students := s.router.PathPrefix("/v1/students").Subrouter()
	students.HandleFunc("", s.handleList).Methods(http.MethodGet)
	students.HandleFunc("", s.handleCreate).Methods(http.MethodPost)
	students.HandleFunc("/statistics", s.handleStatistics).Methods(http.MethodGet)
	students.HandleFunc("/search", s.handleSearch).Methods(http.MethodPost)
	students.HandleFunc("/{studentNumber}", s.handleGet).Methods(http.MethodGet)
	students.HandleFunc("/{studentNumber}", s.handleUpdate).Methods(http.MethodPut)
	students.HandleFunc("/{studentNumber}", s.handlePartialUpdate).Methods(http.MethodPatch)
	students.HandleFunc("/{studentNumber}", s.handleDelete).Methods(http.MethodDelete)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":    "UP",
		"timestamp": s.now(),
		"students":  s.svc.Count(),
	}
	if s.cluster != nil {
		body["cluster"] = s.cluster.Status()
	}
	writeJSON(w, http.StatusOK, body)
}

// handleList serves one page of students.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	p := newParams(r.URL.Query())
	lp := service.ListParams{
		Filter: query.Filter{
			Name:    p.str("name"),
			City:    p.str("city"),
			MinCGPA: p.float("minCgpa", 0, 10),
		},
		SortBy:    query.ParseSortKey(p.strOr("sortBy", "studentNumber")),
		Direction: query.ParseDirection(p.strOr("sortOrder", "asc")),
		Page: query.PageRequest{
			Number: p.intOr("page", 0, 0, noMax),
			Size:   p.intOr("size", 20, 1, 100),
		},
	}
	if err := p.err(); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.svc.List(r.Context(), lp))
}

// handleSearch serves the unpaged multi-criteria search.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	p := newParams(r.URL.Query())
	f := query.Filter{
		Name:        p.str("name"),
		City:        p.str("city"),
		State:       p.str("state"),
		Country:     p.str("country"),
		MinCGPA:     p.float("minCgpa", 0, 10),
		MaxCGPA:     p.float("maxCgpa", 0, 10),
		MaxBacklogs: p.int("maxBacklogs", 0, noMax),
	}
	if err := p.err(); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Search(r.Context(), f))
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Statistics(r.Context()))
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Get(r.Context(), mux.Vars(r)["studentNumber"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleCreate stores a new student and points Location at it.
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req model.CreateRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	st, err := s.svc.Create(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", location(r, st.StudentNumber))
	writeJSON(w, http.StatusCreated, st)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	st, err := s.svc.Update(r.Context(), mux.Vars(r)["studentNumber"], req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handlePartialUpdate(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	st, err := s.svc.PartialUpdate(r.Context(), mux.Vars(r)["studentNumber"], req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Delete(r.Context(), mux.Vars(r)["studentNumber"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleJoin adds a new node to the Raft cluster.
func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	if s.cluster == nil {
		s.writeStatus(w, r, http.StatusNotFound, "clustering is not enabled on this node", nil)
		return
	}

	var req replication.JoinRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	var verr model.ValidationError
	if req.NodeID == "" {
		verr.Add("node_id", "must not be blank", nil)
	}
	if req.Addr == "" {
		verr.Add("addr", "must not be blank", nil)
	}
	if err := verr.OrNil(); err != nil {
		s.writeError(w, r, err)
		return
	}

	logger := s.requestLogger(r).WithFields(logrus.Fields{"node_id": req.NodeID, "addr": req.Addr})
	logger.Info("received join request")
	if err := s.cluster.AddVoter(req.NodeID, req.Addr); err != nil {
		s.writeError(w, r, err)
		return
	}
	logger.Info("node added to the cluster")
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleNoRoute(w http.ResponseWriter, r *http.Request) {
	s.writeStatus(w, r, http.StatusNotFound, "no handler found for "+r.Method+" "+r.URL.Path, nil)
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.writeStatus(w, r, http.StatusMethodNotAllowed, "request method '"+r.Method+"' is not supported", nil)
}

// location is the absolute URL of the student under the collection r targets.
func location(r *http.Request, number string) string {
	u := url.URL{Path: r.URL.Path + "/" + number}
	if r.Host != "" {
		u.Host = r.Host
		u.Scheme = "http"
		if r.TLS != nil {
			u.Scheme = "https"
		}
	}
	return u.String()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
