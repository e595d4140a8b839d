package mqtt

import "github.com/rs/zerolog/log"

// bufferedMsg is a serialized MQTT message held until the broker is reachable.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
	// latestOnly replaces any queued message on the same topic.
	latestOnly bool
}

// outbox queues messages while the broker is unreachable. Oldest messages
// are dropped once capacity is reached. Not safe for concurrent use.
type outbox struct {
	msgs     []bufferedMsg
	capacity int
	dropped  int // since last drain
}

func newOutbox(capacity int) *outbox {
	return &outbox{
		msgs:     make([]bufferedMsg, 0, capacity),
		capacity: capacity,
	}
}

func (o *outbox) push(m bufferedMsg) {
	if m.latestOnly {
		o.removeTopic(m.topic)
	}
	if len(o.msgs) == o.capacity {
		if o.dropped == 0 {
			log.Warn().Int("capacity", o.capacity).Msg("mqtt: outbox full, dropping oldest")
		}
		copy(o.msgs, o.msgs[1:])
		o.msgs = o.msgs[:len(o.msgs)-1]
		o.dropped++
	}
	o.msgs = append(o.msgs, m)
}

func (o *outbox) removeTopic(topic string) {
	kept := o.msgs[:0]
	for _, m := range o.msgs {
		if m.topic != topic {
			kept = append(kept, m)
		}
	}
	o.msgs = kept
}

// requeue puts unsent messages back in front of anything queued since they
// were drained. A latest-only message is skipped when a newer one for its
// topic is already queued.
func (o *outbox) requeue(msgs []bufferedMsg) {
	if len(msgs) == 0 {
		return
	}
	queued := make(map[string]bool, len(o.msgs))
	for _, m := range o.msgs {
		queued[m.topic] = true
	}
	merged := make([]bufferedMsg, 0, len(msgs)+len(o.msgs))
	for _, m := range msgs {
		if m.latestOnly && queued[m.topic] {
			continue
		}
		merged = append(merged, m)
	}
	merged = append(merged, o.msgs...)
	if over := len(merged) - o.capacity; over > 0 {
		if o.dropped == 0 {
			log.Warn().Int("capacity", o.capacity).Msg("mqtt: outbox full, dropping oldest")
		}
		merged = merged[over:]
		o.dropped += over
	}
	o.msgs = merged
}

// drain returns the queued messages oldest first and how many were dropped.
func (o *outbox) drain() ([]bufferedMsg, int) {
	if len(o.msgs) == 0 {
		dropped := o.dropped
		o.dropped = 0
		return nil, dropped
	}
	out := make([]bufferedMsg, len(o.msgs))
	copy(out, o.msgs)
	dropped := o.dropped
	o.msgs = o.msgs[:0]
	o.dropped = 0
	return out, dropped
}

func (o *outbox) len() int {
	return len(o.msgs)
}
