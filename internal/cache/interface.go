package cache

import "time"

// Cache is the backend-neutral cache contract. The news aggregator and
// RSS handlers take this interface so the memory and Redis backends are
// interchangeable at wiring time.
type Cache interface {
	Get(key string) (interface{}, bool)
	Set(key string, value interface{})
	SetWithTTL(key string, value interface{}, ttl time.Duration)
	Delete(key string)
	Clear()
}
