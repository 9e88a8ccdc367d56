package bridge

import "strings"

// identityHints are substrings that mark a participant identity as the
// assistant. Checked case-insensitively, in order.
var identityHints = []string{"agent", "assistant", "voxa"}

// PresenceDetector decides, from room membership snapshots, whether the
// assistant has joined. Detection is sticky per connection instance: once
// the detected callback has fired it will not fire again until Reset.
//
// The heuristic is ordered: an identity containing a known hint wins, then
// any remote participant with a published audio track, then any remote at
// all. The last rule exists because agents in sparsely named deployments
// may carry neither hint nor audio at join time.
type PresenceDetector struct {
	detected bool
	onDetect func()
}

func NewPresenceDetector(onDetect func()) *PresenceDetector {
	if onDetect == nil {
		onDetect = func() {}
	}
	return &PresenceDetector{onDetect: onDetect}
}

// Reset re-arms the detector for a new connection instance.
func (d *PresenceDetector) Reset() { d.detected = false }

// Detected reports whether this connection instance has seen the assistant.
func (d *PresenceDetector) Detected() bool { return d.detected }

// Check evaluates the current membership of conn. All triggers (connection
// open, join/leave, track subscription, fallback poll) converge here; the
// first positive evaluation fires onDetect, later ones are no-ops.
func (d *PresenceDetector) Check(conn RoomConnection) bool {
	if d.detected || conn == nil {
		return d.detected
	}
	if !assistantPresent(conn.RemoteParticipants()) {
		return false
	}
	d.detected = true
	d.onDetect()
	return true
}

func assistantPresent(remotes []Participant) bool {
	for _, p := range remotes {
		if p.IsLocal {
			continue
		}
		if p.Kind == "agent" || matchesIdentityHint(p.Identity) {
			return true
		}
	}
	for _, p := range remotes {
		if !p.IsLocal && p.HasAudioTrack {
			return true
		}
	}
	for _, p := range remotes {
		if !p.IsLocal {
			return true
		}
	}
	return false
}

func matchesIdentityHint(identity string) bool {
	lower := strings.ToLower(identity)
	for _, hint := range identityHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}
