// Package notify delivers reservation events to users and administrators.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/pearleseed/device-hub-sub001/reservation"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Publisher is the part of Client the notifier uses.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// Topics builds notification topics under a prefix:
//
//	<prefix>/notifications/admins
//	<prefix>/notifications/users/<userID>
type Topics struct{ Prefix string }

func (t Topics) Admins() string { return t.join("notifications", "admins") }

func (t Topics) User(id string) string { return t.join("notifications", "users", id) }

func (t Topics) join(parts ...string) string {
	prefix := strings.Trim(t.Prefix, "/")
	if prefix == "" {
		return strings.Join(parts, "/")
	}
	return prefix + "/" + strings.Join(parts, "/")
}

// MQTTNotifier publishes each event once per recipient topic.
type MQTTNotifier struct {
	pub    Publisher
	topics Topics
	qos    byte
}

func NewMQTTNotifier(pub Publisher, prefix string, qos byte) (*MQTTNotifier, error) {
	if err := validateQoS(qos); err != nil {
		return nil, err
	}
	return &MQTTNotifier{pub: pub, topics: Topics{Prefix: prefix}, qos: qos}, nil
}

var _ reservation.Notifier = (*MQTTNotifier)(nil)

func (n *MQTTNotifier) Notify(_ context.Context, ev reservation.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	var errs []error
	for _, topic := range n.recipients(ev) {
		if err := n.pub.Publish(topic, n.qos, false, payload); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", topic, err))
		}
	}
	return errors.Join(errs...)
}

func (n *MQTTNotifier) recipients(ev reservation.Event) []string {
	var topics []string
	if ev.TargetAdmins {
		topics = append(topics, n.topics.Admins())
	}
	seen := map[string]bool{}
	for _, id := range ev.TargetUserIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		topics = append(topics, n.topics.User(id))
	}
	return topics
}

// LogNotifier writes events to the structured log. It is the fallback when
// no broker is configured.
type LogNotifier struct{ Log *slog.Logger }

func (l LogNotifier) Notify(_ context.Context, ev reservation.Event) error {
	l.Log.Info("notification",
		"type", ev.Type,
		"title", ev.Title,
		"users", ev.TargetUserIDs,
		"admins", ev.TargetAdmins,
		"request", ev.RelatedRequestID,
		"device", ev.RelatedDeviceID,
	)
	return nil
}

// Fanout delivers to every notifier and joins their errors.
type Fanout []reservation.Notifier

func (f Fanout) Notify(ctx context.Context, ev reservation.Event) error {
	var errs []error
	for _, n := range f {
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
