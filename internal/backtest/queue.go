package backtest

import "vela/internal/domain"

// eventQueue is the FIFO bus the engine drains once per bar. FIFO order
// preserves the market -> signal -> order -> fill cascade within a
// timestamp.
type eventQueue struct {
	events []domain.Event
}

func (q *eventQueue) Push(e domain.Event) {
	q.events = append(q.events, e)
}

func (q *eventQueue) Pop() (domain.Event, bool) {
	if len(q.events) == 0 {
		return nil, false
	}
	e := q.events[0]
	q.events = q.events[1:]
	return e, true
}

func (q *eventQueue) Len() int {
	return len(q.events)
}
