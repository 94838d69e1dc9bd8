package bridge

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/Evildoersudo/back-end/internal/command"
	"github.com/Evildoersudo/back-end/internal/device"
	"github.com/Evildoersudo/back-end/internal/infrastructure/database"
	"github.com/Evildoersudo/back-end/internal/infrastructure/logging"
	"github.com/Evildoersudo/back-end/internal/infrastructure/mqtt"
	"github.com/Evildoersudo/back-end/internal/telemetry"
)

// ErrBusUnavailable is returned when a command cannot be published
// because the bus is disabled or disconnected.
var ErrBusUnavailable = errors.New("bridge: message bus unavailable")

// BusClient is the slice of the MQTT client the bridge needs. The
// concrete *mqtt.Client satisfies it; tests substitute a fake.
type BusClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	IsConnected() bool
}

// Bridge connects the message bus to the domain: it resolves inbound
// topics to device identities, applies status, telemetry, offline and
// ack messages, and fans the resulting events out to subscribers.
type Bridge struct {
	bus     BusClient
	enabled bool
	qos     byte
	topics  mqtt.Topics

	db            *database.DB
	onlineTimeout time.Duration
	reasons       *device.ReasonStore
	fanout        *Fanout
	mirror        Mirror
	log           *logging.Logger

	// now is injectable for tests.
	now func() time.Time
}

// Mirror receives a copy of accepted readings for long-term time-series
// storage. Writes must be non-blocking; the bridge does not wait on them.
type Mirror interface {
	WriteTelemetry(deviceID string, powerW, voltageV, currentA float64, ts time.Time)
	WriteStripStatus(deviceID string, online bool, totalPowerW, voltageV, currentA float64, ts time.Time)
}

// Options collects the bridge's collaborators.
type Options struct {
	Bus     BusClient
	Enabled bool
	QoS     byte
	Topics  mqtt.Topics

	DB            *database.DB
	OnlineTimeout time.Duration
	Reasons       *device.ReasonStore
	Fanout        *Fanout
	Mirror        Mirror // optional
	Logger        *logging.Logger
}

// New creates a Bridge. Call Start to attach it to the bus.
func New(opts Options) *Bridge {
	return &Bridge{
		bus:           opts.Bus,
		enabled:       opts.Enabled,
		qos:           opts.QoS,
		topics:        opts.Topics,
		db:            opts.DB,
		onlineTimeout: opts.OnlineTimeout,
		reasons:       opts.Reasons,
		fanout:        opts.Fanout,
		mirror:        opts.Mirror,
		log:           opts.Logger,
		now:           time.Now,
	}
}

// SetClock overrides the wall clock. Tests only.
func (b *Bridge) SetClock(now func() time.Time) {
	b.now = now
}

// Start subscribes to every device topic pattern, both shapes of every
// kind. No-op when the bus is disabled.
func (b *Bridge) Start() error {
	if !b.enabled {
		b.log.Info("mqtt disabled, bridge not started")
		return nil
	}
	for _, pattern := range b.topics.SubscriptionPatterns() {
		if err := b.bus.Subscribe(pattern, b.qos, b.HandleMessage); err != nil {
			return err
		}
	}
	b.log.Info("bridge subscribed", "patterns", len(b.topics.SubscriptionPatterns()))
	return nil
}

// HandleMessage processes one inbound bus message. Unrecognised topics
// and undecodable payloads are dropped without error: the bus delivers
// whatever devices publish, and the bridge only acts on what it
// understands.
//
// Each message runs in its own transaction, so the rows it touches
// commit or roll back together. Side effects that cannot roll back,
// the reason store, the mirror and the fan-out, are held back until the
// commit succeeds.
func (b *Bridge) HandleMessage(topic string, payload []byte) error {
	deviceID, kind, ok := b.parseTopic(topic)
	if !ok {
		return nil
	}

	body, ok := decodePayload(kind, payload)
	if !ok {
		b.log.Warn("invalid json payload", "topic", topic)
		return nil
	}

	if kind == mqtt.KindEvent {
		// Recognised but carries no domain action.
		return nil
	}

	ctx := context.Background()
	var after func()
	err := b.db.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		switch kind {
		case mqtt.KindStatus:
			after, err = b.handleStatus(ctx, tx, deviceID, body)
		case mqtt.KindTelemetry:
			after, err = b.handleTelemetry(ctx, tx, deviceID, body)
		case mqtt.KindLWT, mqtt.KindWill, mqtt.KindOffline:
			after, err = b.handleOffline(ctx, tx, deviceID, kind, body)
		case mqtt.KindAck:
			after, err = b.handleAck(ctx, tx, deviceID, body)
		}
		return err
	})
	if err != nil {
		return err
	}
	if after != nil {
		after()
	}
	return nil
}

// trackerFor builds a Tracker whose repositories write through the
// given transaction, so a message's device and status rows share its
// fate.
func (b *Bridge) trackerFor(tx database.DBTX) *device.Tracker {
	t := device.NewTracker(device.NewSQLiteRepository(tx), device.NewStatusSQLiteRepository(tx), b.onlineTimeout)
	t.SetClock(b.now)
	return t
}

// parseTopic resolves a topic to (deviceID, kind). The kind is the last
// segment; the identity is whatever sits between the prefix and the
// kind, with two-segment room/device identities joined by a space so
// the canonical id stays a single URL path segment.
func (b *Bridge) parseTopic(topic string) (string, string, bool) {
	parts := splitSegments(topic)
	prefix := splitSegments(b.topics.Base())

	if len(parts) < len(prefix)+2 {
		return "", "", false
	}
	for i, p := range prefix {
		if parts[i] != p {
			return "", "", false
		}
	}

	tail := parts[len(prefix):]
	kind := tail[len(tail)-1]
	if !knownKind(kind) {
		return "", "", false
	}

	idParts := make([]string, 0, len(tail)-1)
	for _, p := range tail[:len(tail)-1] {
		p = strings.Join(strings.Fields(p), " ")
		if p != "" {
			idParts = append(idParts, p)
		}
	}
	if len(idParts) == 0 {
		return "", "", false
	}
	return strings.Join(idParts, " "), kind, true
}

func splitSegments(s string) []string {
	var out []string
	for _, p := range strings.Split(strings.Trim(s, "/"), "/") {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func knownKind(kind string) bool {
	for _, k := range mqtt.SubscriptionKinds {
		if k == kind {
			return true
		}
	}
	return false
}

func (b *Bridge) handleStatus(ctx context.Context, tx *sql.Tx, deviceID string, body map[string]interface{}) (func(), error) {
	upd := device.StatusUpdate{
		TS:          int64Field(body, "ts"),
		TotalPowerW: floatField(body, "total_power_w", 0),
		CurrentA:    floatField(body, "current_a", 0),
		Sockets:     socketsField(body),
	}
	if online, ok := boolField(body, "online"); ok {
		upd.Online = &online
	}
	if v, ok := body["voltage_v"].(float64); ok {
		upd.VoltageV = &v
	}

	if _, err := b.trackerFor(tx).UpdateStatus(ctx, deviceID, upd); err != nil {
		return nil, err
	}

	return func() {
		b.reasons.Clear(deviceID)

		if b.mirror != nil {
			ts := upd.TS
			if ts == 0 {
				ts = b.now().Unix()
			}
			online := true
			if upd.Online != nil {
				online = *upd.Online
			}
			voltage := device.DefaultVoltage
			if upd.VoltageV != nil {
				voltage = *upd.VoltageV
			}
			b.mirror.WriteStripStatus(deviceID, online, upd.TotalPowerW, voltage, upd.CurrentA, time.Unix(ts, 0))
		}

		b.fanout.Emit(DeviceEvent{Type: EventDeviceStatus, DeviceID: deviceID, Payload: body})
	}, nil
}

func (b *Bridge) handleTelemetry(ctx context.Context, tx *sql.Tx, deviceID string, body map[string]interface{}) (func(), error) {
	ts := int64Field(body, "ts")
	if ts == 0 {
		ts = b.now().Unix()
	}
	if _, err := b.trackerFor(tx).Register(ctx, deviceID, ts); err != nil {
		return nil, err
	}

	// power_w with total_power_w as the fallback for strips that only
	// report the aggregate.
	power := floatField(body, "power_w", floatField(body, "total_power_w", 0))
	sample := &telemetry.Sample{
		DeviceID: deviceID,
		TS:       ts,
		PowerW:   power,
		VoltageV: floatField(body, "voltage_v", device.DefaultVoltage),
		CurrentA: floatField(body, "current_a", 0),
	}
	if err := telemetry.NewSQLiteRepository(tx).Insert(ctx, sample); err != nil {
		return nil, err
	}

	return func() {
		b.reasons.Clear(deviceID)

		if b.mirror != nil {
			b.mirror.WriteTelemetry(deviceID, sample.PowerW, sample.VoltageV, sample.CurrentA, time.Unix(ts, 0))
		}

		b.fanout.Emit(DeviceEvent{Type: EventTelemetry, DeviceID: deviceID, Payload: body})
	}, nil
}

func (b *Bridge) handleOffline(ctx context.Context, tx *sql.Tx, deviceID, kind string, body map[string]interface{}) (func(), error) {
	raw := stringField(body, "reason")
	if raw == "" {
		raw = stringField(body, "message")
	}
	if raw == "" {
		raw = kind
	}
	reason := device.ClassifyOfflineReason(raw)

	if _, err := b.trackerFor(tx).MarkOffline(ctx, deviceID, int64Field(body, "ts")); err != nil {
		return nil, err
	}

	return func() {
		b.reasons.Set(deviceID, reason)
		b.fanout.Emit(DeviceEvent{
			Type:     EventDeviceOffline,
			DeviceID: deviceID,
			Payload:  map[string]interface{}{"reason": reason},
		})
	}, nil
}

func (b *Bridge) handleAck(ctx context.Context, tx *sql.Tx, deviceID string, body map[string]interface{}) (func(), error) {
	cmdID := stringField(body, "cmdId")
	status := stringField(body, "status")
	if status == "" {
		status = command.StateSuccess
	}
	var durationMs *int
	if v, ok := body["costMs"].(float64); ok {
		ms := int(v)
		durationMs = &ms
	}

	rec, err := command.ResolveAck(ctx, command.NewSQLiteRepository(tx), cmdID, status, stringField(body, "errorMsg"), durationMs, b.now())
	if errors.Is(err, command.ErrCommandNotFound) {
		b.log.Warn("ack for unknown command", "cmd_id", cmdID, "device_id", deviceID)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if rec.State == command.StateSuccess && rec.Socket != nil {
		if err := b.trackerFor(tx).ApplySocketAction(ctx, rec.DeviceID, *rec.Socket, rec.Action); err != nil {
			return nil, err
		}
	}

	return func() {
		b.reasons.Clear(deviceID)
		b.fanout.Emit(AckEvent{
			Type:       EventCmdAck,
			CmdID:      rec.CmdID,
			State:      rec.State,
			TS:         b.now().Unix(),
			UpdatedAt:  rec.UpdatedAt,
			Message:    rec.Message,
			DurationMs: rec.DurationMs,
		})
	}, nil
}

// Enabled reports whether the bus is configured at all.
func (b *Bridge) Enabled() bool {
	return b.enabled
}

// Connected reports whether the bridge can currently reach the bus.
func (b *Bridge) Connected() bool {
	return b.enabled && b.bus.IsConnected()
}

// PublishCommand sends a command payload to a device on every topic
// shape its identity supports. Identities that split into room and
// device get both the single-segment and the two-segment topic,
// deduplicated; delivery succeeds when any publish does.
func (b *Bridge) PublishCommand(deviceID string, payload interface{}) error {
	if !b.Connected() {
		return ErrBusUnavailable
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	topics := []string{b.topics.DeviceCommand(deviceID)}
	if room, dev, ok := device.SplitRoomDevice(deviceID); ok {
		topics = append(topics, b.topics.RoomDeviceCommand(room, dev))
	}

	var published bool
	var lastErr error
	seen := make(map[string]bool, len(topics))
	for _, topic := range topics {
		if seen[topic] {
			continue
		}
		seen[topic] = true
		if err := b.bus.Publish(topic, body, b.qos, false); err != nil {
			lastErr = err
			continue
		}
		published = true
	}
	if !published {
		if lastErr != nil {
			return lastErr
		}
		return ErrBusUnavailable
	}
	return nil
}

// Reason returns the recorded offline cause for a device, empty when
// none is known.
func (b *Bridge) Reason(deviceID string) string {
	return b.reasons.Get(deviceID)
}

// Emit forwards an event to the fan-out queue. Used by the API layer
// for events that do not originate on the bus, such as a command failed
// at submission.
func (b *Bridge) Emit(event interface{}) {
	b.fanout.Emit(event)
}
