// Package backend talks to the external prediction and auth services.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/harrylevesque/bloodscan/internal/models"
	"github.com/harrylevesque/bloodscan/internal/utils"
)

const (
	uploadPath   = "/upload-single"
	scanPath     = "/scan-fingerprint"
	loginPath    = "/api/login"
	registerPath = "/api/register"
)

// Options configures a Client. A zero Timeout waits for the transport.
type Options struct {
	PredictURL  string
	AuthURL     string
	UploadField string
	Timeout     time.Duration
	Logger      log.FieldLogger
}

// Client issues the four backend calls. It is safe for concurrent use.
type Client struct {
	predict     *resty.Client
	auth        *resty.Client
	uploadField string
	logger      log.FieldLogger
}

func New(opts Options) *Client {
	if opts.UploadField == "" {
		opts.UploadField = "image"
	}
	if opts.AuthURL == "" {
		opts.AuthURL = opts.PredictURL
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Client{
		predict:     newResty(opts.PredictURL, opts.Timeout),
		auth:        newResty(opts.AuthURL, opts.Timeout),
		uploadField: opts.UploadField,
		logger:      logger,
	}
}

func newResty(base string, timeout time.Duration) *resty.Client {
	c := resty.New().SetBaseURL(base).SetHeader("Accept", "application/json")
	if timeout > 0 {
		c.SetTimeout(timeout)
	}
	return c
}

// Upload posts the image as a multipart file and returns the outcome.
func (c *Client) Upload(ctx context.Context, filename string, data []byte) (models.Outcome, error) {
	resp, err := c.predict.R().
		SetContext(ctx).
		SetFileReader(c.uploadField, filename, bytes.NewReader(data)).
		Post(uploadPath)
	return c.prediction("upload", resp, err)
}

// Scan asks the backend to capture from its attached scanner.
func (c *Client) Scan(ctx context.Context) (models.Outcome, error) {
	resp, err := c.predict.R().
		SetContext(ctx).
		Post(scanPath)
	return c.prediction("scan", resp, err)
}

// prediction maps a response to an Outcome. A body with an error field is
// an Err regardless of status; any other non-2xx or undecodable body is a
// transport error.
func (c *Client) prediction(op string, resp *resty.Response, err error) (models.Outcome, error) {
	if err != nil {
		return nil, utils.Transport(op, errors.Wrapf(err, "%s request", op))
	}
	fields := log.Fields{"op": op, "status": resp.StatusCode(), "took": resp.Time()}

	var body models.PredictResponse
	decodeErr := json.Unmarshal(resp.Body(), &body)
	if decodeErr == nil && body.Error != "" {
		c.logger.WithFields(fields).WithField("error", body.Error).Info("backend reported error")
		return body.Outcome(), nil
	}
	if resp.IsError() {
		c.logger.WithFields(fields).Warn("backend returned error status")
		return nil, utils.Transport(op, errors.Errorf("%s: unexpected status %d", op, resp.StatusCode()))
	}
	if decodeErr != nil {
		c.logger.WithFields(fields).WithError(decodeErr).Warn("undecodable backend response")
		return nil, utils.Transport(op, errors.Wrapf(decodeErr, "%s: decode response", op))
	}
	c.logger.WithFields(fields).WithField("result", body.Result).Debug("prediction received")
	return body.Outcome(), nil
}

// Login posts the credentials to the auth service.
func (c *Client) Login(ctx context.Context, req models.LoginRequest) (models.AuthResponse, error) {
	return c.postAuth(ctx, "login", loginPath, req)
}

// Register creates an account on the auth service.
func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (models.AuthResponse, error) {
	return c.postAuth(ctx, "register", registerPath, req)
}

func (c *Client) postAuth(ctx context.Context, op, path string, payload any) (models.AuthResponse, error) {
	var out models.AuthResponse
	resp, err := c.auth.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(path)
	if err != nil {
		return out, utils.Transport(op, errors.Wrapf(err, "%s request", op))
	}
	// Auth failures only need the message field; a body that does not
	// decode simply leaves it empty.
	_ = json.Unmarshal(resp.Body(), &out)

	fields := log.Fields{"op": op, "status": resp.StatusCode(), "took": resp.Time()}
	if resp.IsError() {
		c.logger.WithFields(fields).Info("auth rejected")
		return out, utils.Server(resp.StatusCode(), out.Message)
	}
	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		return out, utils.Transport(op, errors.Errorf("%s: unexpected status %d", op, resp.StatusCode()))
	}
	c.logger.WithFields(fields).Debug("auth accepted")
	return out, nil
}
