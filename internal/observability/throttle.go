package observability

import (
	"log"
	"sync"
)

// ThrottleObserver reports rate limit decisions. It warns once per
// client when sustained usage crosses 80% of the allowance and raises
// an alert line on every tenth denial.
type ThrottleObserver struct {
	logger *log.Logger

	mu         sync.Mutex
	denyCounts map[string]int64
	warned80   map[string]bool
}

func NewThrottleObserver(logger *log.Logger) *ThrottleObserver {
	if logger == nil {
		logger = log.Default()
	}
	return &ThrottleObserver{
		logger:     logger,
		denyCounts: make(map[string]int64),
		warned80:   make(map[string]bool),
	}
}

func (o *ThrottleObserver) RecordAllow(clientID string, used int64, limit int64) {
	if o == nil {
		return
	}
	utilization := 0.0
	if limit > 0 {
		utilization = float64(used) / float64(limit)
	}
	o.logger.Printf("throttle allow client_id=%s used=%d limit=%d utilization=%.4f", clientID, used, limit, utilization)

	if utilization >= 0.8 {
		o.mu.Lock()
		alreadyWarned := o.warned80[clientID]
		if !alreadyWarned {
			o.warned80[clientID] = true
		}
		o.mu.Unlock()
		if !alreadyWarned {
			o.logger.Printf("throttle warning client_id=%s threshold=0.80 used=%d limit=%d", clientID, used, limit)
		}
	}
}

func (o *ThrottleObserver) RecordDeny(clientID string, reason string) {
	if o == nil {
		return
	}
	o.mu.Lock()
	o.denyCounts[clientID]++
	count := o.denyCounts[clientID]
	o.mu.Unlock()

	o.logger.Printf("throttle deny client_id=%s reason=%s count=%d", clientID, reason, count)

	if count%10 == 0 {
		o.logger.Printf("throttle alert client_id=%s reason=%s repeated_deny_count=%d", clientID, reason, count)
	}
}
