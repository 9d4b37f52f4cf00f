package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/harrylevesque/bloodscan/internal/backend"
	"github.com/harrylevesque/bloodscan/internal/models"
	"github.com/harrylevesque/bloodscan/internal/utils"
)

// Default prediction base URL; can override with BLOODSCAN_PREDICT_URL env var or --server flag.
var serverBaseURL = "http://127.0.0.1:5000"

func main() {
	cmd := flag.String("cmd", "scan", "Command: login|register|upload|scan")
	file := flag.String("file", "", "Fingerprint image (for upload)")
	username := flag.String("username", "", "Username (for register)")
	email := flag.String("email", "", "Email (for login/register)")
	password := flag.String("password", "", "Password (for login/register)")
	serverFlag := flag.String("server", "", "Override backend base URL")
	verbose := flag.Bool("v", false, "Log backend calls")
	flag.Parse()

	if env := os.Getenv("BLOODSCAN_PREDICT_URL"); env != "" {
		serverBaseURL = strings.TrimRight(env, "/")
	}
	if *serverFlag != "" {
		serverBaseURL = strings.TrimRight(*serverFlag, "/")
	}

	logger := log.New()
	logger.SetOutput(os.Stderr)
	if *verbose {
		logger.SetLevel(log.DebugLevel)
	} else {
		logger.SetLevel(log.WarnLevel)
	}
	client := backend.New(backend.Options{PredictURL: serverBaseURL, Logger: logger})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error
	switch *cmd {
	case "login":
		err = login(ctx, client, *email, *password)
	case "register":
		err = register(ctx, client, *username, *email, *password)
	case "upload":
		err = upload(ctx, client, *file)
	case "scan":
		err = scan(ctx, client)
	default:
		err = errors.Errorf("unknown command %q", *cmd)
	}
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
}

func login(ctx context.Context, c *backend.Client, email, password string) error {
	if email == "" || password == "" {
		return errors.New("--email and --password required")
	}
	resp, err := c.Login(ctx, models.LoginRequest{Email: email, Password: password})
	if err != nil {
		return errors.New(utils.UserMessage(err, "An error occurred."))
	}
	fmt.Println("Login successful!", resp.Message)
	return nil
}

func register(ctx context.Context, c *backend.Client, username, email, password string) error {
	if username == "" || email == "" || password == "" {
		return errors.New("--username, --email and --password required")
	}
	resp, err := c.Register(ctx, models.RegisterRequest{Username: username, Email: email, Password: password})
	if err != nil {
		return errors.New(utils.UserMessage(err, "An error occurred."))
	}
	fmt.Println("Registration successful!", resp.Message)
	return nil
}

func upload(ctx context.Context, c *backend.Client, path string) error {
	if path == "" {
		return errors.New("--file required")
	}
	if !strings.EqualFold(filepath.Ext(path), ".bmp") {
		return errors.New("Only .bmp fingerprint images supported")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read image")
	}
	out, err := c.Upload(ctx, filepath.Base(path), data)
	if err != nil {
		return errors.New("Failed to upload. Please try again.")
	}
	return printOutcome(out)
}

func scan(ctx context.Context, c *backend.Client) error {
	out, err := c.Scan(ctx)
	if err != nil {
		return errors.New("Scanner error. Please check connection.")
	}
	return printOutcome(out)
}

func printOutcome(out models.Outcome) error {
	switch o := out.(type) {
	case models.Err:
		return errors.New(o.Message)
	case models.Ok:
		label := o.Label
		if label == "" {
			label = "Unknown Result"
		}
		fmt.Println("Blood Group:", label)
		if o.Confidence != nil {
			fmt.Printf("Confidence: %.2f%%\n", *o.Confidence)
		}
	}
	return nil
}
