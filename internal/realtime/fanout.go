package realtime

import (
	"go.uber.org/zap"
)

// fanout pushes one event to many connections. A connection that refuses
// the event is logged and skipped; the rest still receive it.
type fanout struct {
	pusher Pusher
	logger *zap.Logger
	rec    Recorder
}

func newFanout(pusher Pusher, logger *zap.Logger, rec Recorder) fanout {
	if logger == nil {
		logger = zap.NewNop()
	}
	return fanout{pusher: pusher, logger: logger, rec: recorderOrNop(rec)}
}

// deliver returns how many connections accepted ev.
func (f fanout) deliver(conns []string, ev Event) int {
	n := 0
	for _, id := range conns {
		if err := f.pusher.Push(id, ev); err != nil {
			f.rec.DeliveryFailed(ev.Name)
			f.logger.Debug("dropping event for unreachable connection",
				zap.Error(&DeliveryError{ConnID: id, Event: ev.Name, Err: err}))
			continue
		}
		f.rec.EventDelivered(ev.Name)
		n++
	}
	return n
}
