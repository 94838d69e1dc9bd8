package device

import (
	"regexp"
	"strings"
)

// roomPattern matches a room code: one letter, optional dash, 2-4 digits.
// Examples: A-302, B101, c-22.
var roomPattern = regexp.MustCompile(`^[A-Za-z]-?\d{2,4}$`)

// legacyPattern matches the older ROOM-DEVICE / ROOM_DEVICE naming
// convention where room and device name share one segment.
var legacyPattern = regexp.MustCompile(`^([A-Za-z]-?\d{2,4})[-_](.+)$`)

// ParseMeta infers a room and display name from a canonical device id.
//
// Inference order:
//  1. "{room} {rest}" where the first token is a room code — split there.
//  2. Legacy "ROOM-DEVICE" or "ROOM_DEVICE" — split at the separator.
//  3. A bare room code — room and name are both that code.
//  4. Anything else — DefaultRoom, name is the id verbatim.
//
// The id is whitespace-collapsed first so the space join produced by
// two-segment topic resolution stays unambiguous.
func ParseMeta(deviceID string) (room, name string) {
	normalized := strings.Join(strings.Fields(deviceID), " ")
	if normalized == "" {
		return DefaultRoom, "unknown"
	}

	if r, rest, ok := strings.Cut(normalized, " "); ok && roomPattern.MatchString(r) {
		rest = strings.TrimSpace(rest)
		if rest == "" {
			return r, normalized
		}
		return r, rest
	}

	if m := legacyPattern.FindStringSubmatch(normalized); m != nil {
		r := strings.TrimSpace(m[1])
		n := strings.TrimSpace(m[2])
		if n == "" {
			return r, normalized
		}
		return r, n
	}

	if roomPattern.MatchString(normalized) {
		return normalized, normalized
	}

	return DefaultRoom, normalized
}

// ParseRoom returns only the inferred room for a device id.
func ParseRoom(deviceID string) string {
	room, _ := ParseMeta(deviceID)
	return room
}

// SplitRoomDevice splits a canonical "{room} {device}" id back into its
// two parts. Returns ok=false for single-segment ids.
func SplitRoomDevice(deviceID string) (room, dev string, ok bool) {
	room, dev, ok = strings.Cut(strings.TrimSpace(deviceID), " ")
	if !ok || room == "" || strings.TrimSpace(dev) == "" {
		return "", "", false
	}
	return room, strings.TrimSpace(dev), true
}
