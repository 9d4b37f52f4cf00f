// Package finger holds the fingerprint upload / scanner page state for one
// visitor.
package finger

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/harrylevesque/bloodscan/internal/models"
	"github.com/harrylevesque/bloodscan/internal/utils"
)

type Mode string

const (
	ModeUpload  Mode = "upload"
	ModeScanner Mode = "scanner"
)

const (
	unknownResult  = "Unknown Result"
	uploadFailed   = "Failed to upload. Please try again."
	scannerFailed  = "Scanner error. Please check connection."
	wrongExtFormat = "Only %s fingerprint images supported"
)

// Backend is the part of the backend client the page needs.
type Backend interface {
	Upload(ctx context.Context, filename string, data []byte) (models.Outcome, error)
	Scan(ctx context.Context) (models.Outcome, error)
}

// File is one picked or dropped file.
type File struct {
	Name string
	Data []byte
}

// State is a snapshot of the page. Result and Error are never both set.
type State struct {
	Mode       Mode                     `json:"mode"`
	Processing bool                     `json:"processing"`
	Scanning   bool                     `json:"scanning"`
	Overlay    bool                     `json:"overlay"`
	Dragging   bool                     `json:"dragging"`
	Filename   string                   `json:"filename,omitempty"`
	Preview    string                   `json:"preview,omitempty"`
	Result     *models.PredictionResult `json:"result,omitempty"`
	Error      string                   `json:"error,omitempty"`
}

// Controller is the fingerprint page. All methods are safe for concurrent use.
type Controller struct {
	backend     Backend
	acceptedExt string
	logger      log.FieldLogger

	mu         sync.Mutex
	mode       Mode
	processing bool
	scanning   bool
	overlay    bool
	dragging   bool
	selected   *models.UploadRequest
	preview    string
	result     *models.PredictionResult
	errMsg     string
}

// NewController returns a controller in upload mode. acceptedExt defaults
// to ".bmp".
func NewController(backend Backend, acceptedExt string, logger log.FieldLogger) *Controller {
	if acceptedExt == "" {
		acceptedExt = ".bmp"
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Controller{
		backend:     backend,
		acceptedExt: strings.ToLower(acceptedExt),
		logger:      logger,
		mode:        ModeUpload,
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := State{
		Mode:       c.mode,
		Processing: c.processing,
		Scanning:   c.scanning,
		Overlay:    c.overlay,
		Dragging:   c.dragging,
		Preview:    c.preview,
		Error:      c.errMsg,
	}
	if c.selected != nil {
		st.Filename = c.selected.Filename
	}
	if c.result != nil {
		r := *c.result
		st.Result = &r
	}
	return st
}

// AcceptedExt is the extension Select accepts.
func (c *Controller) AcceptedExt() string { return c.acceptedExt }

// SetMode switches between the upload area and the scanner button.
func (c *Controller) SetMode(m Mode) error {
	if m != ModeUpload && m != ModeScanner {
		return utils.Validation("unknown mode " + string(m))
	}
	c.mu.Lock()
	c.mode = m
	c.mu.Unlock()
	return nil
}

// Select stores f as the file to analyze and clears the previous result.
// A file with the wrong extension leaves the selection untouched and sets
// the error instead.
func (c *Controller) Select(f File) error {
	if !strings.EqualFold(filepath.Ext(f.Name), c.acceptedExt) {
		msg := fmt.Sprintf(wrongExtFormat, c.acceptedExt)
		c.mu.Lock()
		c.setError(msg)
		c.mu.Unlock()
		return utils.Validation(msg)
	}

	preview, err := Thumbnail(f.Data)
	if err != nil {
		c.logger.WithError(err).WithField("file", f.Name).Debug("thumbnail failed, using raw preview")
		preview = RawPreview(f.Data)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = &models.UploadRequest{Filename: filepath.Base(f.Name), Data: f.Data}
	c.preview = preview
	c.result = nil
	c.errMsg = ""
	return nil
}

// DragEnter shows the page-wide drop overlay.
func (c *Controller) DragEnter() {
	c.mu.Lock()
	c.overlay = true
	c.mu.Unlock()
}

// DragLeave hides the drop overlay.
func (c *Controller) DragLeave() {
	c.mu.Lock()
	c.overlay = false
	c.mu.Unlock()
}

// Hover tracks a drag over the upload area itself.
func (c *Controller) Hover(on bool) {
	c.mu.Lock()
	c.dragging = on
	c.mu.Unlock()
}

// Drop hides the overlay and handles f exactly as Select does.
func (c *Controller) Drop(f File) error {
	c.mu.Lock()
	c.overlay = false
	c.dragging = false
	c.mu.Unlock()
	return c.Select(f)
}

// Upload sends the selected file for analysis. Without a selection it
// returns utils.ErrNoSelection and changes nothing; while an upload is in
// flight it returns utils.ErrBusy. Backend failures land in State().Error.
func (c *Controller) Upload(ctx context.Context) error {
	c.mu.Lock()
	if c.selected == nil {
		c.mu.Unlock()
		return utils.ErrNoSelection
	}
	if c.processing {
		c.mu.Unlock()
		return utils.ErrBusy
	}
	c.processing = true
	c.result = nil
	c.errMsg = ""
	req := *c.selected
	c.mu.Unlock()

	out, err := c.backend.Upload(ctx, req.Filename, req.Data)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.processing = false
	c.apply("upload", out, err, uploadFailed, true)
	return nil
}

// Scan triggers the backend scanner. It returns utils.ErrBusy while a scan
// is in flight.
func (c *Controller) Scan(ctx context.Context) error {
	c.mu.Lock()
	if c.scanning {
		c.mu.Unlock()
		return utils.ErrBusy
	}
	c.scanning = true
	c.result = nil
	c.errMsg = ""
	c.mu.Unlock()

	out, err := c.backend.Scan(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.scanning = false
	c.apply("scan", out, err, scannerFailed, false)
	return nil
}

// apply records a backend response. Caller holds c.mu.
func (c *Controller) apply(op string, out models.Outcome, err error, fallback string, withPreview bool) {
	if err != nil {
		c.logger.WithError(err).WithField("op", op).Warn("fingerprint request failed")
		c.setError(fallback)
		return
	}
	switch o := out.(type) {
	case models.Err:
		c.setError(o.Message)
	case models.Ok:
		label := o.Label
		if label == "" {
			label = unknownResult
		}
		c.result = &models.PredictionResult{Label: label, Confidence: o.Confidence}
		c.errMsg = ""
		if withPreview {
			c.preview = backendPreview(o.Preview)
		}
	default:
		c.setError(fallback)
	}
}

// setError sets the error and drops any result. Caller holds c.mu.
func (c *Controller) setError(msg string) {
	c.errMsg = msg
	c.result = nil
}
