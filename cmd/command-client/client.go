package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"speakcity/shared"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// controlPlane is the part of control.Client the console needs.
type controlPlane interface {
	Snapshot(ctx context.Context) (shared.Snapshot, error)
	Execute(ctx context.Context, batch shared.CommandBatch) (shared.CommandResponse, error)
}

// CommandClient translates operator messages and sends them to the
// simulation server.
type CommandClient struct {
	control    controlPlane
	translator Translator
	timeout    time.Duration
}

// NewCommandClient creates a console bound to a control plane
func NewCommandClient(control controlPlane, translator Translator) *CommandClient {
	return &CommandClient{control: control, translator: translator, timeout: 30 * time.Second}
}

// Handle translates one message and executes the resulting batch.
func (c *CommandClient) Handle(ctx context.Context, text string) (shared.CommandBatch, shared.CommandResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	city, err := c.control.Snapshot(ctx)
	if err != nil {
		return shared.CommandBatch{}, shared.CommandResponse{}, fmt.Errorf("fetch snapshot: %w", err)
	}

	batch, err := c.translator.Translate(ctx, text, city)
	if err != nil {
		return batch, shared.CommandResponse{}, err
	}
	if batch.RequestID == "" {
		batch.RequestID = uuid.NewString()
	}
	log.WithFields(log.Fields{
		"request_id": batch.RequestID,
		"commands":   len(batch.Commands),
	}).Debug("Sending command batch")

	resp, err := c.control.Execute(ctx, batch)
	if err != nil {
		return batch, resp, fmt.Errorf("execute batch: %w", err)
	}
	return batch, resp, nil
}

// printResponse writes a human readable report of resp.
func printResponse(w io.Writer, batch shared.CommandBatch, resp shared.CommandResponse) {
	if batch.Summary != "" {
		fmt.Fprintf(w, "Summary: %s\n", batch.Summary)
	}
	for i, r := range resp.Results {
		target := r.Command.Target
		if target == "" {
			target = r.Command.Density
		}
		switch {
		case !r.OK:
			fmt.Fprintf(w, "%d. %s %s: FAILED (%s)\n", i+1, r.Command.Action, target, r.Error)
		case !r.Changed:
			fmt.Fprintf(w, "%d. %s %s: no change\n", i+1, r.Command.Action, target)
		case len(r.Affected) > 1:
			fmt.Fprintf(w, "%d. %s %s: ok [%s]\n", i+1, r.Command.Action, target, strings.Join(r.Affected, " "))
		default:
			fmt.Fprintf(w, "%d. %s %s: ok\n", i+1, r.Command.Action, target)
		}
	}
}
