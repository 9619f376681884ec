package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"confsync/pkg/logger"
	"confsync/pkg/protocol"

	"golang.org/x/sync/errgroup"
)

// DispatcherImpl implements the Notifier interface
type DispatcherImpl struct {
	lookup      Lookup
	sender      Sender
	log         *logger.Logger
	fanoutLimit int
}

// NewDispatcher creates a notification dispatcher. fanoutLimit caps the
// number of in-flight sends per notification; values below 1 fall back to
// a sensible default.
func NewDispatcher(lookup Lookup, sender Sender, log *logger.Logger, fanoutLimit int) *DispatcherImpl {
	if fanoutLimit < 1 {
		fanoutLimit = 64
	}
	return &DispatcherImpl{
		lookup:      lookup,
		sender:      sender,
		log:         log.Named("notify"),
		fanoutLimit: fanoutLimit,
	}
}

// NotifyClient sends a notification to every connection of the recipient.
// Zero connections means the recipient is offline: logged, not an error.
func (d *DispatcherImpl) NotifyClient(ctx context.Context, n Notification) error {
	data, err := d.encode(n)
	if err != nil {
		return err
	}

	conns := d.lookup.GetConnections(n.TenantID, n.Recipient)
	if len(conns) == 0 {
		d.log.Warn("recipient offline, nothing delivered",
			"tenant", n.TenantID, "subject", n.Recipient, "type", n.Type)
		return nil
	}

	d.fanout(ctx, n, conns, data)
	return nil
}

// NotifyAll sends a notification to every client of the tenant. Connections
// owned by excludeSubjectID are skipped when non-empty, so a change does not
// echo back to the initiating client's own sessions. An empty target set is
// a valid state and is tolerated silently.
func (d *DispatcherImpl) NotifyAll(ctx context.Context, n Notification, excludeSubjectID string) error {
	data, err := d.encode(n)
	if err != nil {
		return err
	}

	conns := d.lookup.FindTenantConnections(n.TenantID, excludeSubjectID)
	if len(conns) == 0 {
		return nil
	}

	d.fanout(ctx, n, conns, data)
	return nil
}

// fanout issues sends concurrently. Individual send failures are absorbed
// and logged; a notification failure must never break the flow that
// triggered it.
func (d *DispatcherImpl) fanout(ctx context.Context, n Notification, conns []string, data []byte) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.fanoutLimit)

	for _, connID := range conns {
		connID := connID
		g.Go(func() error {
			if err := d.sender.SendToConnection(ctx, connID, data); err != nil {
				d.log.WarnWithErr("send failed", err,
					"connection", connID, "tenant", n.TenantID, "type", n.Type)
			}
			return nil
		})
	}

	// Goroutines never return errors; Wait only joins them
	_ = g.Wait()
}

// encode wraps the notification into the wire message envelope
func (d *DispatcherImpl) encode(n Notification) ([]byte, error) {
	msgType := n.Type
	if msgType == "" {
		msgType = protocol.MsgTypeNotification
	}

	msg := &protocol.Message{
		Type:      msgType,
		ID:        protocol.GenerateID(),
		Timestamp: time.Now().UTC(),
		Payload:   n.Payload,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode notification: %w", err)
	}
	return data, nil
}
