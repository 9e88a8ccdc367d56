package bridge

import "log/slog"

// Teardown releases a room connection. Every local publication is
// unpublished and its track stopped; each attempt is contained so one
// failing publication never blocks the rest, and the connection is always
// disconnected at the end. Teardown never fails.
func Teardown(log *slog.Logger, conn RoomConnection) {
	if conn == nil {
		return
	}
	if log == nil {
		log = slog.Default()
	}
	for _, pub := range conn.LocalPublications() {
		unpublish(log, pub)
	}
	conn.Disconnect()
}

func unpublish(log *slog.Logger, pub LocalPublication) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn("publication teardown panicked", "sid", pub.SID(), "panic", r)
		}
	}()
	if err := pub.Unpublish(); err != nil {
		log.Warn("unpublish failed", "sid", pub.SID(), "error", err)
	}
	if err := pub.StopTrack(); err != nil {
		log.Warn("stop track failed", "sid", pub.SID(), "error", err)
	}
}
