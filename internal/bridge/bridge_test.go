package bridge

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Evildoersudo/back-end/internal/command"
	"github.com/Evildoersudo/back-end/internal/device"
	"github.com/Evildoersudo/back-end/internal/infrastructure/database"
	"github.com/Evildoersudo/back-end/internal/infrastructure/logging"
	"github.com/Evildoersudo/back-end/internal/infrastructure/mqtt"
	"github.com/Evildoersudo/back-end/internal/telemetry"
	_ "github.com/Evildoersudo/back-end/migrations" // registers embedded schema
)

// fakeBus records publishes and subscriptions in memory.
type fakeBus struct {
	connected  bool
	subscribed []string
	published  map[string][]byte
	failTopics map[string]bool
}

func newFakeBus() *fakeBus {
	return &fakeBus{
		connected:  true,
		published:  make(map[string][]byte),
		failTopics: make(map[string]bool),
	}
}

func (f *fakeBus) Publish(topic string, payload []byte, _ byte, _ bool) error {
	if f.failTopics[topic] {
		return mqtt.ErrPublishFailed
	}
	f.published[topic] = payload
	return nil
}

func (f *fakeBus) Subscribe(topic string, _ byte, _ mqtt.MessageHandler) error {
	f.subscribed = append(f.subscribed, topic)
	return nil
}

func (f *fakeBus) IsConnected() bool { return f.connected }

// collectSink gathers delivered events.
type collectSink struct {
	mu  sync.Mutex
	got []interface{}
}

func (s *collectSink) Deliver(event interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, event)
}

func (s *collectSink) events() []interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]interface{}(nil), s.got...)
}

// mirrorWrite records one call on the fake mirror.
type mirrorWrite struct {
	kind     string // "telemetry" or "status"
	deviceID string
	powerW   float64
	online   bool
	ts       time.Time
}

// fakeMirror is an in-memory Mirror.
type fakeMirror struct {
	mu     sync.Mutex
	writes []mirrorWrite
}

func (m *fakeMirror) WriteTelemetry(deviceID string, powerW, _, _ float64, ts time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = append(m.writes, mirrorWrite{kind: "telemetry", deviceID: deviceID, powerW: powerW, ts: ts})
}

func (m *fakeMirror) WriteStripStatus(deviceID string, online bool, totalPowerW, _, _ float64, ts time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = append(m.writes, mirrorWrite{kind: "status", deviceID: deviceID, powerW: totalPowerW, online: online, ts: ts})
}

type testBridge struct {
	*Bridge
	db      *database.DB
	bus     *fakeBus
	sink    *collectSink
	fanout  *Fanout
	tracker *device.Tracker
	samples *telemetry.SQLiteRepository
	ledger  *command.Ledger
	mirror  *fakeMirror
}

func newTestBridge(t *testing.T, now time.Time) *testBridge {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	clock := func() time.Time { return now }
	tracker := device.NewTracker(device.NewSQLiteRepository(db), device.NewStatusSQLiteRepository(db), 60*time.Second)
	tracker.SetClock(clock)
	ledger := command.NewLedger(db, 30*time.Second)
	ledger.SetClock(clock)
	samples := telemetry.NewSQLiteRepository(db)

	bus := newFakeBus()
	sink := &collectSink{}
	fanout := NewFanout(16, sink, logging.Default())
	mirror := &fakeMirror{}

	b := New(Options{
		Bus:           bus,
		Enabled:       true,
		QoS:           1,
		Topics:        mqtt.Topics{Prefix: "dorm"},
		DB:            db,
		OnlineTimeout: 60 * time.Second,
		Reasons:       device.NewReasonStore(),
		Fanout:        fanout,
		Mirror:        mirror,
		Logger:        logging.Default(),
	})
	b.SetClock(clock)

	return &testBridge{
		Bridge: b, db: db, bus: bus, sink: sink, fanout: fanout,
		tracker: tracker, samples: samples, ledger: ledger, mirror: mirror,
	}
}

func TestStartSubscribesBothShapes(t *testing.T) {
	tb := newTestBridge(t, time.Unix(1700000000, 0))

	if err := tb.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	want := len(mqtt.SubscriptionKinds) * 2
	if len(tb.bus.subscribed) != want {
		t.Fatalf("subscribed to %d patterns, want %d", len(tb.bus.subscribed), want)
	}
}

func TestParseTopic(t *testing.T) {
	tb := newTestBridge(t, time.Unix(1700000000, 0))

	tests := []struct {
		topic    string
		deviceID string
		kind     string
		ok       bool
	}{
		{"dorm/strip01/status", "strip01", "status", true},
		{"dorm/A-302/strip01/telemetry", "A-302 strip01", "telemetry", true},
		{"dorm/A-302 strip01/ack", "A-302 strip01", "ack", true},
		{"/dorm/strip01/offline/", "strip01", "offline", true},
		{"dorm/strip01/unknown", "", "", false},
		{"other/strip01/status", "", "", false},
		{"dorm/status", "", "", false},
	}

	for _, tt := range tests {
		deviceID, kind, ok := tb.parseTopic(tt.topic)
		if ok != tt.ok || deviceID != tt.deviceID || kind != tt.kind {
			t.Errorf("parseTopic(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tt.topic, deviceID, kind, ok, tt.deviceID, tt.kind, tt.ok)
		}
	}
}

func TestParseTopicDefaultPrefix(t *testing.T) {
	// A zero-value Topics subscribes under the default prefix, so the
	// parser must strip that same prefix instead of treating it as part
	// of the device identity.
	b := New(Options{Topics: mqtt.Topics{}})

	deviceID, kind, ok := b.parseTopic("dorm/strip01/status")
	if !ok || deviceID != "strip01" || kind != "status" {
		t.Errorf("parseTopic() = (%q, %q, %v), want (strip01, status, true)", deviceID, kind, ok)
	}
}

func TestHandleStatus(t *testing.T) {
	now := time.Unix(1700000000, 0)
	tb := newTestBridge(t, now)
	ctx := context.Background()

	payload := []byte(`{
		"ts": 1700000000,
		"online": true,
		"total_power_w": 123.4,
		"voltage_v": 221.5,
		"current_a": 0.56,
		"sockets": [
			{"id": 1, "on": true, "power_w": 100.0, "device": "Laptop"},
			{"id": 2, "on": false, "power_w": 0},
			{"on": true},
			"garbage"
		]
	}`)
	if err := tb.HandleMessage("dorm/A-302/strip01/status", payload); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	tb.fanout.Close()

	d, err := device.NewSQLiteRepository(tb.db).GetByID(ctx, "A-302 strip01")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if d.Room != "A-302" || !d.Online {
		t.Errorf("device = %+v, want online in room A-302", d)
	}

	status, err := device.NewStatusSQLiteRepository(tb.db).GetStatus(ctx, "A-302 strip01")
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	if status.TotalPowerW != 123.4 || status.VoltageV != 221.5 {
		t.Errorf("status = %+v, want payload values", status)
	}
	if len(status.Sockets) != 2 {
		t.Fatalf("sockets = %d, want invalid entries skipped", len(status.Sockets))
	}
	if status.Sockets[0].Device != "Laptop" {
		t.Errorf("socket = %+v, want Laptop label", status.Sockets[0])
	}

	events := tb.sink.events()
	if len(events) != 1 {
		t.Fatalf("emitted %d events, want 1", len(events))
	}
	ev, ok := events[0].(DeviceEvent)
	if !ok || ev.Type != EventDeviceStatus || ev.DeviceID != "A-302 strip01" {
		t.Errorf("event = %+v, want DEVICE_STATUS for device", events[0])
	}

	if len(tb.mirror.writes) != 1 {
		t.Fatalf("mirror got %d writes, want 1", len(tb.mirror.writes))
	}
	mw := tb.mirror.writes[0]
	if mw.kind != "status" || !mw.online || mw.powerW != 123.4 {
		t.Errorf("mirror write = %+v, want online status 123.4", mw)
	}
}

func TestHandleStatusRollsBackOnWriteFailure(t *testing.T) {
	now := time.Unix(1700000000, 0)
	tb := newTestBridge(t, now)
	ctx := context.Background()

	// Status handling writes the device row and then the status row.
	// With the status table gone the second write fails, and the whole
	// message must roll back rather than leave the device half-applied.
	if _, err := tb.db.ExecContext(ctx, `DROP TABLE strip_status`); err != nil {
		t.Fatalf("failed to drop table: %v", err)
	}

	payload := []byte(`{"ts": 1700000000, "online": true, "total_power_w": 10}`)
	if err := tb.HandleMessage("dorm/strip99/status", payload); err == nil {
		t.Fatal("HandleMessage() error = nil, want failure")
	}
	tb.fanout.Close()

	if _, err := device.NewSQLiteRepository(tb.db).GetByID(ctx, "strip99"); !errors.Is(err, device.ErrDeviceNotFound) {
		t.Errorf("GetByID() error = %v, want ErrDeviceNotFound", err)
	}
	if events := tb.sink.events(); len(events) != 0 {
		t.Errorf("emitted %d events, want none for a rolled-back message", len(events))
	}
	if len(tb.mirror.writes) != 0 {
		t.Errorf("mirror got %d writes, want none for a rolled-back message", len(tb.mirror.writes))
	}
}

func TestHandleTelemetryPowerFallback(t *testing.T) {
	now := time.Unix(1700000000, 0)
	tb := newTestBridge(t, now)
	ctx := context.Background()

	payload := []byte(`{"total_power_w": 88.5, "voltage_v": 220}`)
	if err := tb.HandleMessage("dorm/strip01/telemetry", payload); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	tb.fanout.Close()

	samples, err := tb.samples.QueryRange(ctx, "strip01", 0, now.Unix())
	if err != nil {
		t.Fatalf("QueryRange() error = %v", err)
	}
	if len(samples) != 1 {
		t.Fatalf("stored %d samples, want 1", len(samples))
	}
	if samples[0].PowerW != 88.5 {
		t.Errorf("PowerW = %v, want total_power_w fallback 88.5", samples[0].PowerW)
	}
	if samples[0].TS != now.Unix() {
		t.Errorf("TS = %d, want clock default %d", samples[0].TS, now.Unix())
	}

	events := tb.sink.events()
	if len(events) != 1 {
		t.Fatalf("emitted %d events, want 1", len(events))
	}
	if ev := events[0].(DeviceEvent); ev.Type != EventTelemetry {
		t.Errorf("event type = %q, want TELEMETRY", ev.Type)
	}

	// The accepted sample is mirrored to the time-series store.
	if len(tb.mirror.writes) != 1 {
		t.Fatalf("mirror got %d writes, want 1", len(tb.mirror.writes))
	}
	mw := tb.mirror.writes[0]
	if mw.kind != "telemetry" || mw.deviceID != "strip01" || mw.powerW != 88.5 {
		t.Errorf("mirror write = %+v, want telemetry strip01 88.5", mw)
	}
	if !mw.ts.Equal(now) {
		t.Errorf("mirror ts = %v, want %v", mw.ts, now)
	}
}

func TestHandleOfflineClassifiesReason(t *testing.T) {
	now := time.Unix(1700000000, 0)
	tb := newTestBridge(t, now)

	// Raw non-JSON text is tolerated on offline kinds.
	if err := tb.HandleMessage("dorm/strip01/lwt", []byte("unexpected power loss")); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	tb.fanout.Close()

	if got := tb.Reason("strip01"); got != "power loss" {
		t.Errorf("Reason() = %q, want power loss", got)
	}

	d, err := device.NewSQLiteRepository(tb.db).GetByID(context.Background(), "strip01")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if d.Online {
		t.Error("device should be offline")
	}

	events := tb.sink.events()
	if len(events) != 1 {
		t.Fatalf("emitted %d events, want 1", len(events))
	}
	ev := events[0].(DeviceEvent)
	if ev.Type != EventDeviceOffline {
		t.Errorf("event type = %q, want DEVICE_OFFLINE", ev.Type)
	}
	if ev.Payload["reason"] != "power loss" {
		t.Errorf("event payload = %v, want classified reason", ev.Payload)
	}
}

func TestStatusClearsOfflineReason(t *testing.T) {
	now := time.Unix(1700000000, 0)
	tb := newTestBridge(t, now)

	if err := tb.HandleMessage("dorm/strip01/offline", []byte(`{"reason":"unplug detected"}`)); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if tb.Reason("strip01") == "" {
		t.Fatal("reason should be recorded")
	}

	if err := tb.HandleMessage("dorm/strip01/status", []byte(`{"online":true}`)); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	tb.fanout.Close()

	if got := tb.Reason("strip01"); got != "" {
		t.Errorf("Reason() = %q, want cleared", got)
	}
}

func TestHandleAck(t *testing.T) {
	now := time.Unix(1700000000, 0)
	tb := newTestBridge(t, now)
	ctx := context.Background()

	// Seed a status so the socket effect has something to patch.
	statusPayload := []byte(`{"sockets":[{"id":1,"on":true,"power_w":60},{"id":2,"on":true,"power_w":40}],"total_power_w":100}`)
	if err := tb.HandleMessage("dorm/strip01/status", statusPayload); err != nil {
		t.Fatalf("HandleMessage(status) error = %v", err)
	}

	socket := 1
	rec, err := tb.ledger.Submit(ctx, "strip01", &socket, "off", "{}")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	ack := []byte(`{"cmdId":"` + rec.CmdID + `","status":"success","costMs":150}`)
	if err := tb.HandleMessage("dorm/strip01/ack", ack); err != nil {
		t.Fatalf("HandleMessage(ack) error = %v", err)
	}
	tb.fanout.Close()

	got, err := tb.ledger.State(ctx, rec.CmdID)
	if err != nil {
		t.Fatalf("State() error = %v", err)
	}
	if got.State != command.StateSuccess {
		t.Errorf("State = %q, want success", got.State)
	}
	if got.DurationMs == nil || *got.DurationMs != 150 {
		t.Errorf("DurationMs = %v, want 150", got.DurationMs)
	}

	status, err := device.NewStatusSQLiteRepository(tb.db).GetStatus(ctx, "strip01")
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	if status.Sockets[0].On || status.Sockets[0].PowerW != 0 {
		t.Errorf("socket = %+v, want switched off", status.Sockets[0])
	}
	if status.TotalPowerW != 40 {
		t.Errorf("TotalPowerW = %v, want recomputed 40", status.TotalPowerW)
	}

	events := tb.sink.events()
	last, ok := events[len(events)-1].(AckEvent)
	if !ok {
		t.Fatalf("last event = %+v, want AckEvent", events[len(events)-1])
	}
	if last.Type != EventCmdAck || last.CmdID != rec.CmdID || last.State != command.StateSuccess {
		t.Errorf("ack event = %+v", last)
	}
}

func TestHandleAckUnknownCommand(t *testing.T) {
	tb := newTestBridge(t, time.Unix(1700000000, 0))

	if err := tb.HandleMessage("dorm/strip01/ack", []byte(`{"cmdId":"cmd_0_deadbeef","status":"success"}`)); err != nil {
		t.Fatalf("HandleMessage() error = %v, want dropped silently", err)
	}
	tb.fanout.Close()

	if n := len(tb.sink.events()); n != 0 {
		t.Errorf("emitted %d events, want 0", n)
	}
}

func TestHandleMessageDropsInvalidJSON(t *testing.T) {
	tb := newTestBridge(t, time.Unix(1700000000, 0))

	if err := tb.HandleMessage("dorm/strip01/status", []byte("not json")); err != nil {
		t.Fatalf("HandleMessage() error = %v, want dropped silently", err)
	}
	tb.fanout.Close()

	if n := len(tb.sink.events()); n != 0 {
		t.Errorf("emitted %d events, want 0", n)
	}
}

func TestPublishCommand(t *testing.T) {
	tb := newTestBridge(t, time.Unix(1700000000, 0))

	payload := map[string]interface{}{"cmdId": "cmd_1_abcd1234", "type": "OFF"}
	if err := tb.PublishCommand("A-302 strip01", payload); err != nil {
		t.Fatalf("PublishCommand() error = %v", err)
	}

	if _, ok := tb.bus.published["dorm/A-302 strip01/cmd"]; !ok {
		t.Error("single-segment topic not published")
	}
	if _, ok := tb.bus.published["dorm/A-302/strip01/cmd"]; !ok {
		t.Error("two-segment topic not published")
	}
}

func TestPublishCommandPartialFailureSucceeds(t *testing.T) {
	tb := newTestBridge(t, time.Unix(1700000000, 0))
	tb.bus.failTopics["dorm/A-302 strip01/cmd"] = true

	if err := tb.PublishCommand("A-302 strip01", map[string]interface{}{}); err != nil {
		t.Fatalf("PublishCommand() error = %v, want success via second topic", err)
	}
}

func TestPublishCommandDisconnected(t *testing.T) {
	tb := newTestBridge(t, time.Unix(1700000000, 0))
	tb.bus.connected = false

	err := tb.PublishCommand("strip01", map[string]interface{}{})
	if !errors.Is(err, ErrBusUnavailable) {
		t.Errorf("PublishCommand() error = %v, want ErrBusUnavailable", err)
	}
}
