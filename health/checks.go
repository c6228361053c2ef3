package health

// Connection reports a broker connection: healthy while up returns true.
func Connection(name string, up func() bool) Check {
	return func() Status {
		if up() {
			return NewHealthy(name, "connected")
		}
		return NewUnhealthy(name, "not connected")
	}
}

// Subscriptions reports a subscription engine. It is unhealthy once done is
// closed, degraded while count reports no active subscriptions. done may be nil.
func Subscriptions(name string, count func() int, done <-chan struct{}) Check {
	return func() Status {
		if done != nil {
			select {
			case <-done:
				return NewUnhealthy(name, "closed")
			default:
			}
		}
		n := count()
		if n == 0 {
			return NewDegraded(name, "no active subscriptions").WithDetail("subscriptions", 0)
		}
		return NewHealthy(name, "running").WithDetail("subscriptions", n)
	}
}
