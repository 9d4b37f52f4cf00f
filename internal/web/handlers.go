package web

import (
	"context"
	"encoding/json"
	"html/template"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/harrylevesque/bloodscan/internal/auth"
	"github.com/harrylevesque/bloodscan/internal/finger"
	"github.com/harrylevesque/bloodscan/internal/session"
	"github.com/harrylevesque/bloodscan/internal/utils"
)

type pageData struct {
	Title  string
	Active string
	Auth   *auth.State
	Finger *fingerView
}

// fingerView is finger.State flattened for the template.
type fingerView struct {
	finger.State
	AcceptedExt   string
	PreviewURL    template.URL
	Label         string
	HasConfidence bool
	Confidence    float64
}

func newFingerView(st finger.State, ext string) *fingerView {
	v := &fingerView{State: st, AcceptedExt: ext}
	// Previews are data URIs built by the finger package, never visitor text.
	if strings.HasPrefix(st.Preview, "data:image/") {
		v.PreviewURL = template.URL(st.Preview)
	}
	if st.Result != nil {
		v.Label = st.Result.Label
		if st.Result.Confidence != nil {
			v.HasConfidence = true
			v.Confidence = *st.Result.Confidence
		}
	}
	return v
}

func (s *Server) view(w http.ResponseWriter, r *http.Request) (*session.View, bool) {
	v, err := s.registry.Acquire(w, r)
	if err != nil {
		s.logger.WithError(err).Error("acquire view")
		http.Error(w, "session unavailable", http.StatusInternalServerError)
		return nil, false
	}
	return v, true
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// statusFor maps a controller error to the status of a JSON reply.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, utils.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, utils.ErrNoSelection):
		return http.StatusBadRequest
	}
	if ve, ok := utils.AsViewError(err); ok && ve.Kind == utils.KindValidation {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// reply answers a form post: JSON state for the page script, otherwise a
// redirect back to the page.
func (s *Server) reply(w http.ResponseWriter, r *http.Request, page string, state any, err error) {
	if !wantsJSON(r) {
		http.Redirect(w, r, page, http.StatusSeeOther)
		return
	}
	writeJSON(w, statusFor(err), state)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) Home(w http.ResponseWriter, r *http.Request) {
	s.render(w, "home.html", pageData{Title: "Blood Group Detection", Active: "home"})
}

func (s *Server) LoginPage(w http.ResponseWriter, r *http.Request) {
	v, ok := s.view(w, r)
	if !ok {
		return
	}
	st := v.Auth.State()
	s.render(w, "login.html", pageData{Title: "Sign in", Active: "login", Auth: &st})
}

// LoginSubmit applies the posted fields and submits the form.
func (s *Server) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	v, ok := s.view(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	for _, name := range []string{"username", "email", "password"} {
		if vals, present := r.PostForm[name]; present && len(vals) > 0 {
			_ = v.Auth.SetField(name, vals[0])
		}
	}
	err := v.Auth.Submit(context.WithoutCancel(r.Context()))
	s.reply(w, r, "/login", v.Auth.State(), err)
}

func (s *Server) LoginToggle(w http.ResponseWriter, r *http.Request) {
	v, ok := s.view(w, r)
	if !ok {
		return
	}
	v.Auth.Toggle()
	s.reply(w, r, "/login", v.Auth.State(), nil)
}

func (s *Server) FingerPage(w http.ResponseWriter, r *http.Request) {
	v, ok := s.view(w, r)
	if !ok {
		return
	}
	fv := newFingerView(v.Finger.State(), v.Finger.AcceptedExt())
	s.render(w, "finger.html", pageData{Title: "Fingerprint Blood Group Detection", Active: "finger", Finger: fv})
}

func (s *Server) FingerState(w http.ResponseWriter, r *http.Request) {
	v, ok := s.view(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, v.Finger.State())
}

func (s *Server) FingerMode(w http.ResponseWriter, r *http.Request) {
	v, ok := s.view(w, r)
	if !ok {
		return
	}
	err := v.Finger.SetMode(finger.Mode(r.FormValue("mode")))
	s.reply(w, r, "/finger", v.Finger.State(), err)
}

func (s *Server) FingerSelect(w http.ResponseWriter, r *http.Request) {
	s.receiveFile(w, r, func(v *session.View, f finger.File) error { return v.Finger.Select(f) })
}

func (s *Server) FingerDrop(w http.ResponseWriter, r *http.Request) {
	s.receiveFile(w, r, func(v *session.View, f finger.File) error { return v.Finger.Drop(f) })
}

// receiveFile reads the first file of a multipart post and hands it to fn.
// Only the first file counts when several are dropped at once.
func (s *Server) receiveFile(w http.ResponseWriter, r *http.Request, fn func(*session.View, finger.File) error) {
	v, ok := s.view(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		s.logger.WithError(err).Info("bad multipart upload")
		http.Error(w, "file too large or malformed", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		// Nothing picked; the overlay still has to close on drop.
		v.Finger.DragLeave()
		s.reply(w, r, "/finger", v.Finger.State(), utils.ErrNoSelection)
		return
	}
	hdr := files[0]
	src, err := hdr.Open()
	if err != nil {
		http.Error(w, "cannot read file", http.StatusBadRequest)
		return
	}
	data, err := io.ReadAll(src)
	src.Close()
	if err != nil {
		http.Error(w, "cannot read file", http.StatusBadRequest)
		return
	}

	err = fn(v, finger.File{Name: hdr.Filename, Data: data})
	s.reply(w, r, "/finger", v.Finger.State(), err)
}

func (s *Server) FingerDrag(w http.ResponseWriter, r *http.Request) {
	v, ok := s.view(w, r)
	if !ok {
		return
	}
	var err error
	switch r.FormValue("event") {
	case "enter":
		v.Finger.DragEnter()
	case "leave":
		v.Finger.DragLeave()
	case "over":
		v.Finger.Hover(true)
	case "out":
		v.Finger.Hover(false)
	default:
		err = utils.Validation("unknown drag event")
	}
	s.reply(w, r, "/finger", v.Finger.State(), err)
}

// FingerUpload and FingerScan outlive the request: a visitor who navigates
// away still gets the result on their next visit.
func (s *Server) FingerUpload(w http.ResponseWriter, r *http.Request) {
	v, ok := s.view(w, r)
	if !ok {
		return
	}
	err := v.Finger.Upload(context.WithoutCancel(r.Context()))
	s.reply(w, r, "/finger", v.Finger.State(), err)
}

func (s *Server) FingerScan(w http.ResponseWriter, r *http.Request) {
	v, ok := s.view(w, r)
	if !ok {
		return
	}
	err := v.Finger.Scan(context.WithoutCancel(r.Context()))
	s.reply(w, r, "/finger", v.Finger.State(), err)
}
