package device

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Tracker maintains device registration and connectivity state.
//
// A Tracker is cheap to construct; the bridge creates one per inbound
// message over that message's transaction, and the API layer creates
// them over the shared connection.
type Tracker struct {
	devices  Repository
	statuses StatusRepository

	// onlineTimeout is how long a device may stay silent before refresh
	// flips it offline.
	onlineTimeout time.Duration

	// now is injectable for tests.
	now func() time.Time
}

// NewTracker creates a Tracker over the given repositories.
func NewTracker(devices Repository, statuses StatusRepository, onlineTimeout time.Duration) *Tracker {
	return &Tracker{
		devices:       devices,
		statuses:      statuses,
		onlineTimeout: onlineTimeout,
		now:           time.Now,
	}
}

// SetClock overrides the wall clock. Tests only.
func (t *Tracker) SetClock(now func() time.Time) {
	t.now = now
}

// Register ensures a device row exists for deviceID and refreshes its
// last-seen timestamp.
//
// Unknown devices are created with room and display name inferred from
// the id. Known devices only have a still-default room promoted to a
// newly inferred non-default one, and only a placeholder display name
// overwritten — customised values are never regressed. The last-seen
// timestamp is monotonic: it never moves backwards.
func (t *Tracker) Register(ctx context.Context, deviceID string, lastSeenTS int64) (*Device, error) {
	now := t.now().Unix()
	if lastSeenTS == 0 {
		lastSeenTS = now
	}

	room, name := ParseMeta(deviceID)

	d, err := t.devices.GetByID(ctx, deviceID)
	if errors.Is(err, ErrDeviceNotFound) {
		d = &Device{
			ID:         deviceID,
			Name:       name,
			Room:       room,
			Online:     true,
			LastSeenTS: lastSeenTS,
		}
		if err := t.devices.Create(ctx, d); err != nil {
			return nil, fmt.Errorf("registering device: %w", err)
		}
		return d, nil
	}
	if err != nil {
		return nil, err
	}

	if d.Room == DefaultRoom && room != DefaultRoom {
		d.Room = room
	}
	if strings.HasPrefix(d.Name, PlaceholderNamePrefix) && name != "" {
		d.Name = name
	}
	if lastSeenTS > d.LastSeenTS {
		d.LastSeenTS = lastSeenTS
	}
	d.Online = now-d.LastSeenTS <= int64(t.onlineTimeout.Seconds())

	if err := t.devices.Update(ctx, d); err != nil {
		return nil, fmt.Errorf("refreshing device: %w", err)
	}
	return d, nil
}

// Refresh recomputes the online flag from the wall clock. Idempotent;
// callable on any read path. The updated flag is persisted only when it
// changed.
func (t *Tracker) Refresh(ctx context.Context, d *Device) error {
	now := t.now().Unix()
	online := now-d.LastSeenTS <= int64(t.onlineTimeout.Seconds())
	if online == d.Online {
		return nil
	}
	d.Online = online
	return t.devices.Update(ctx, d)
}

// MarkOffline forces a device offline immediately.
//
// The last-seen timestamp is pushed at least onlineTimeout+1 seconds
// into the past (never forward), so any subsequent Refresh agrees the
// device is offline. The stored status keeps socket identity and labels
// but zeroes aggregate power, current and every socket's on/power
// fields.
func (t *Tracker) MarkOffline(ctx context.Context, deviceID string, ts int64) (*Device, error) {
	now := ts
	if now == 0 {
		now = t.now().Unix()
	}
	offlineSeen := now - int64(t.onlineTimeout.Seconds()) - 1
	if offlineSeen < 0 {
		offlineSeen = 0
	}

	d, err := t.devices.GetByID(ctx, deviceID)
	if errors.Is(err, ErrDeviceNotFound) {
		room, name := ParseMeta(deviceID)
		d = &Device{
			ID:         deviceID,
			Name:       name,
			Room:       room,
			Online:     false,
			LastSeenTS: offlineSeen,
		}
		if err := t.devices.Create(ctx, d); err != nil {
			return nil, fmt.Errorf("registering offline device: %w", err)
		}
	} else if err != nil {
		return nil, err
	} else {
		if offlineSeen < d.LastSeenTS {
			d.LastSeenTS = offlineSeen
		}
		d.Online = false
		if err := t.devices.Update(ctx, d); err != nil {
			return nil, fmt.Errorf("marking device offline: %w", err)
		}
	}

	status, err := t.statuses.GetStatus(ctx, deviceID)
	if errors.Is(err, ErrStatusNotFound) {
		status = &StripStatus{
			DeviceID: deviceID,
			TS:       now,
			VoltageV: DefaultVoltage,
			Sockets:  []Socket{},
		}
	} else if err != nil {
		return nil, err
	}

	status.TS = now
	status.Online = false
	status.TotalPowerW = 0
	status.CurrentA = 0
	for i := range status.Sockets {
		status.Sockets[i].On = false
		status.Sockets[i].PowerW = 0
	}

	if err := t.statuses.PutStatus(ctx, status); err != nil {
		return nil, err
	}
	return d, nil
}

// ApplySocketAction patches the stored status after a device confirms a
// socket switch: the socket's on flag follows the action, its power is
// zeroed when switched off, and the aggregate power is recomputed from
// the sockets.
//
// Actions other than on/off (any casing), unknown devices and unknown
// socket ids are silent no-ops: the next status message from the strip
// is authoritative anyway.
func (t *Tracker) ApplySocketAction(ctx context.Context, deviceID string, socketID int, action string) error {
	var on bool
	switch strings.ToLower(action) {
	case "on":
		on = true
	case "off":
		on = false
	default:
		return nil
	}

	status, err := t.statuses.GetStatus(ctx, deviceID)
	if errors.Is(err, ErrStatusNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	found := false
	for i := range status.Sockets {
		if status.Sockets[i].ID != socketID {
			continue
		}
		status.Sockets[i].On = on
		if !on {
			status.Sockets[i].PowerW = 0
		}
		found = true
		break
	}
	if !found {
		return nil
	}

	status.TotalPowerW = status.TotalFromSockets()
	status.TS = t.now().Unix()
	return t.statuses.PutStatus(ctx, status)
}

// UpdateStatus applies an inbound status message: registers/refreshes
// the device and replaces its stored StripStatus.
func (t *Tracker) UpdateStatus(ctx context.Context, deviceID string, upd StatusUpdate) (*Device, error) {
	ts := upd.TS
	if ts == 0 {
		ts = t.now().Unix()
	}

	d, err := t.Register(ctx, deviceID, ts)
	if err != nil {
		return nil, err
	}

	online := d.Online
	if upd.Online != nil {
		online = *upd.Online
	}

	voltage := DefaultVoltage
	if upd.VoltageV != nil {
		voltage = *upd.VoltageV
	}

	sockets := upd.Sockets
	if sockets == nil {
		sockets = []Socket{}
	}

	status := &StripStatus{
		DeviceID:    deviceID,
		TS:          ts,
		Online:      online,
		TotalPowerW: upd.TotalPowerW,
		VoltageV:    voltage,
		CurrentA:    upd.CurrentA,
		Sockets:     sockets,
	}
	if err := t.statuses.PutStatus(ctx, status); err != nil {
		return nil, err
	}
	return d, nil
}
