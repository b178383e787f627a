// Package sml talks to the Service Metadata Locator, the network-wide
// directory that maps a participant identifier to the SMP hosting it.
//
// The SML is a separate, remotely-owned system of record. Every local
// mutation that touches it must leave the pair (local store, SML) either
// both-updated or both-unchanged; the manager layer achieves that with
// compensating calls (UndoCreateParticipant, UndoDeleteParticipant)
// rather than transactions. The client itself is a thin HTTP wrapper and
// never retries.
package sml

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sirosfoundation/go-smp/pkg/identifier"
)

// ErrRejected is wrapped by Error when the SML refuses an operation
// with a client-side status.
var ErrRejected = errors.New("SML rejected the operation")

// Error describes a failed SML management call. It may be transient;
// callers retry the whole surrounding operation, never the single call.
type Error struct {
	Op     string
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("SML %s failed with status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("SML %s failed: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Hook is the SML integration point used by the service group manager.
// The Undo operations are the compensations: UndoCreateParticipant
// removes a registration whose local persist failed, and
// UndoDeleteParticipant restores a registration whose local delete
// failed.
type Hook interface {
	CreateParticipant(ctx context.Context, p identifier.Participant) error
	UndoCreateParticipant(ctx context.Context, p identifier.Participant) error
	DeleteParticipant(ctx context.Context, p identifier.Participant) error
	UndoDeleteParticipant(ctx context.Context, p identifier.Participant) error
}

// ClientConfig contains configuration for the SML client
type ClientConfig struct {
	// ManagementURL is the base URL of the SML participant management API
	ManagementURL string

	// SMPID is this SMP's identifier at the SML
	SMPID string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, a default client with 30s timeout is used.
	HTTPClient *http.Client

	// UserAgent is the User-Agent header to send
	UserAgent string
}

// Client implements Hook against the SML management HTTP API
type Client struct {
	config     ClientConfig
	httpClient *http.Client
}

// NewClient creates a new SML management client
func NewClient(cfg ClientConfig) *Client {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "go-smp-sml-client/1.0"
	}
	return &Client{config: cfg, httpClient: client}
}

// CreateParticipant registers a participant with the SML.
func (c *Client) CreateParticipant(ctx context.Context, p identifier.Participant) error {
	return c.do(ctx, "create", http.MethodPut, c.participantURL(p))
}

// UndoCreateParticipant compensates a failed local create by removing
// the SML registration again.
func (c *Client) UndoCreateParticipant(ctx context.Context, p identifier.Participant) error {
	return c.do(ctx, "undo-create", http.MethodDelete, c.participantURL(p))
}

// DeleteParticipant deregisters a participant from the SML.
func (c *Client) DeleteParticipant(ctx context.Context, p identifier.Participant) error {
	return c.do(ctx, "delete", http.MethodDelete, c.participantURL(p))
}

// UndoDeleteParticipant compensates a failed local delete by
// re-registering the participant.
func (c *Client) UndoDeleteParticipant(ctx context.Context, p identifier.Participant) error {
	return c.do(ctx, "undo-delete", http.MethodPut, c.participantURL(p))
}

func (c *Client) participantURL(p identifier.Participant) string {
	return fmt.Sprintf("%s/%s/participants/%s", c.config.ManagementURL, c.config.SMPID, p.Escaped())
}

func (c *Client) do(ctx context.Context, op, method, reqURL string) error {
	req, err := http.NewRequestWithContext(ctx, method, reqURL, nil)
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("X-Request-ID", uuid.New().String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return &Error{Op: op, Status: resp.StatusCode, Err: ErrRejected}
	}
	return &Error{Op: op, Status: resp.StatusCode}
}

// NoopHook satisfies Hook without talking to any SML. Used when the SML
// integration is disabled in configuration.
type NoopHook struct{}

func (NoopHook) CreateParticipant(ctx context.Context, p identifier.Participant) error {
	return nil
}
func (NoopHook) UndoCreateParticipant(ctx context.Context, p identifier.Participant) error {
	return nil
}
func (NoopHook) DeleteParticipant(ctx context.Context, p identifier.Participant) error {
	return nil
}
func (NoopHook) UndoDeleteParticipant(ctx context.Context, p identifier.Participant) error {
	return nil
}
