// Package auth holds the sign-in / registration form state for one visitor.
package auth

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/harrylevesque/bloodscan/internal/models"
	"github.com/harrylevesque/bloodscan/internal/utils"
)

type Mode int

const (
	SignIn Mode = iota
	Register
)

func (m Mode) String() string {
	if m == Register {
		return "register"
	}
	return "signin"
}

const (
	loginOK    = "Login successful!"
	registerOK = "Registration successful!"
	fallback   = "An error occurred."
)

// Backend is the part of the backend client the form needs.
type Backend interface {
	Login(ctx context.Context, req models.LoginRequest) (models.AuthResponse, error)
	Register(ctx context.Context, req models.RegisterRequest) (models.AuthResponse, error)
}

// State is a snapshot of the form.
type State struct {
	Mode        Mode               `json:"-"`
	ModeName    string             `json:"mode"`
	Credentials models.Credentials `json:"credentials"`
	Message     string             `json:"message,omitempty"`
	Success     bool               `json:"success"`
	Loading     bool               `json:"loading"`
}

// Controller is the auth form. All methods are safe for concurrent use.
type Controller struct {
	backend Backend
	logger  log.FieldLogger

	mu      sync.Mutex
	mode    Mode
	creds   models.Credentials
	message string
	success bool
	loading bool
}

func NewController(backend Backend, logger log.FieldLogger) *Controller {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Controller{backend: backend, logger: logger}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Mode:        c.mode,
		ModeName:    c.mode.String(),
		Credentials: c.creds,
		Message:     c.message,
		Success:     c.success,
		Loading:     c.loading,
	}
}

// Toggle switches between sign-in and register and clears the form.
func (c *Controller) Toggle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode == SignIn {
		c.mode = Register
	} else {
		c.mode = SignIn
	}
	c.creds = models.Credentials{}
	c.message = ""
	c.success = false
}

// SetField updates one credential. Unknown names are an error.
func (c *Controller) SetField(name, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch name {
	case "username":
		c.creds.Username = value
	case "email":
		c.creds.Email = value
	case "password":
		c.creds.Password = value
	default:
		return errors.Errorf("unknown field %q", name)
	}
	return nil
}

// Submit sends the credentials for the current mode. It returns
// utils.ErrBusy without calling the backend while a submit is in flight.
// Backend failures are reported through the message, not the return value.
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()
	if c.loading {
		c.mu.Unlock()
		return utils.ErrBusy
	}
	c.message = ""
	c.success = false
	mode, creds := c.mode, c.creds
	if err := required(mode, creds); err != nil {
		c.message = utils.UserMessage(err, fallback)
		c.mu.Unlock()
		return nil
	}
	c.loading = true
	c.mu.Unlock()

	var err error
	if mode == SignIn {
		_, err = c.backend.Login(ctx, models.LoginRequest{Email: creds.Email, Password: creds.Password})
	} else {
		_, err = c.backend.Register(ctx, models.RegisterRequest{Username: creds.Username, Email: creds.Email, Password: creds.Password})
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = false
	if err != nil {
		c.logger.WithError(err).WithField("mode", mode).Info("auth submit failed")
		c.message = utils.UserMessage(err, fallback)
		return nil
	}
	c.success = true
	if mode == SignIn {
		c.message = loginOK
	} else {
		c.message = registerOK
	}
	return nil
}

func required(mode Mode, creds models.Credentials) error {
	if mode == Register && strings.TrimSpace(creds.Username) == "" {
		return utils.Validation("Username is required.")
	}
	if strings.TrimSpace(creds.Email) == "" {
		return utils.Validation("Email is required.")
	}
	if creds.Password == "" {
		return utils.Validation("Password is required.")
	}
	return nil
}
