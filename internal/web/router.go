package web

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
)

func NewRouter(s *Server) *mux.Router {
	r := mux.NewRouter()
	r.Use(s.requestLogger)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "OK")
	}).Methods(http.MethodGet)

	r.HandleFunc("/", s.Home).Methods(http.MethodGet)

	r.HandleFunc("/login", s.LoginPage).Methods(http.MethodGet)
	r.HandleFunc("/login", s.LoginSubmit).Methods(http.MethodPost)
	r.HandleFunc("/login/toggle", s.LoginToggle).Methods(http.MethodPost)

	f := r.PathPrefix("/finger").Subrouter()
	f.HandleFunc("", s.FingerPage).Methods(http.MethodGet)
	f.HandleFunc("/state", s.FingerState).Methods(http.MethodGet)
	f.HandleFunc("/mode", s.FingerMode).Methods(http.MethodPost)
	f.HandleFunc("/select", s.FingerSelect).Methods(http.MethodPost)
	f.HandleFunc("/drag", s.FingerDrag).Methods(http.MethodPost)
	f.HandleFunc("/drop", s.FingerDrop).Methods(http.MethodPost)
	f.HandleFunc("/upload", s.FingerUpload).Methods(http.MethodPost)
	f.HandleFunc("/scan", s.FingerScan).Methods(http.MethodPost)

	r.PathPrefix("/static/").Handler(s.static).Methods(http.MethodGet)
	return r
}
