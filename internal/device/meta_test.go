package device

import "testing"

func TestParseMeta(t *testing.T) {
	tests := []struct {
		name     string
		deviceID string
		wantRoom string
		wantName string
	}{
		{
			name:     "room space device",
			deviceID: "A-302 strip01",
			wantRoom: "A-302",
			wantName: "strip01",
		},
		{
			name:     "room without dash",
			deviceID: "B101 strip02",
			wantRoom: "B101",
			wantName: "strip02",
		},
		{
			name:     "legacy dash separator",
			deviceID: "A-302-strip01",
			wantRoom: "A-302",
			wantName: "strip01",
		},
		{
			name:     "legacy underscore separator",
			deviceID: "C-44_mainstrip",
			wantRoom: "C-44",
			wantName: "mainstrip",
		},
		{
			name:     "bare room code",
			deviceID: "A-302",
			wantRoom: "A-302",
			wantName: "A-302",
		},
		{
			name:     "opaque id falls back to default room",
			deviceID: "strip01",
			wantRoom: DefaultRoom,
			wantName: "strip01",
		},
		{
			name:     "whitespace collapsed",
			deviceID: "  A-302   strip01  ",
			wantRoom: "A-302",
			wantName: "strip01",
		},
		{
			name:     "empty id",
			deviceID: "",
			wantRoom: DefaultRoom,
			wantName: "unknown",
		},
		{
			name:     "first token not a room code",
			deviceID: "kitchen strip01",
			wantRoom: DefaultRoom,
			wantName: "kitchen strip01",
		},
		{
			name:     "room code with five digits is not a room",
			deviceID: "A-30213 strip",
			wantRoom: DefaultRoom,
			wantName: "A-30213 strip",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			room, name := ParseMeta(tt.deviceID)
			if room != tt.wantRoom {
				t.Errorf("ParseMeta(%q) room = %q, want %q", tt.deviceID, room, tt.wantRoom)
			}
			if name != tt.wantName {
				t.Errorf("ParseMeta(%q) name = %q, want %q", tt.deviceID, name, tt.wantName)
			}
		})
	}
}

func TestSplitRoomDevice(t *testing.T) {
	room, dev, ok := SplitRoomDevice("A-302 strip01")
	if !ok || room != "A-302" || dev != "strip01" {
		t.Errorf("SplitRoomDevice() = (%q, %q, %v), want (A-302, strip01, true)", room, dev, ok)
	}

	if _, _, ok := SplitRoomDevice("strip01"); ok {
		t.Error("SplitRoomDevice() single segment should not split")
	}

	if _, _, ok := SplitRoomDevice(""); ok {
		t.Error("SplitRoomDevice() empty id should not split")
	}
}
