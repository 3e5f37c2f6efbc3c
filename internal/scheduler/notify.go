package scheduler

// Notify queues fn for the goroutine that calls ProcessNotifications. It
// never blocks and returns false when the queue is full.
func (s *Scheduler) Notify(fn func()) bool {
	if !s.notifications.Push(fn) {
		return false
	}
	s.observer.NotificationQueued()
	return true
}

// ProcessNotifications runs every queued callback on the calling goroutine,
// in queue order, and returns how many ran. A panicking callback is
// reported as a fault and does not stop the drain.
func (s *Scheduler) ProcessNotifications() int {
	count := 0
	for {
		fn, ok := s.notifications.Pop()
		if !ok {
			return count
		}
		s.runNotification(fn)
		count++
	}
}

// PendingNotifications returns the number of queued callbacks.
func (s *Scheduler) PendingNotifications() int {
	return s.notifications.Len()
}

func (s *Scheduler) runNotification(fn func()) {
	defer s.observer.NotificationProcessed()
	defer func() {
		if r := recover(); r != nil {
			err := panicError(r)
			s.logger.Error("Notification panicked.", "error", err)
			s.observer.NodeFaulted("", "notification", err)
			if s.onFault != nil {
				s.onFault(Fault{Node: "notification", Err: err})
			}
		}
	}()
	fn()
}
