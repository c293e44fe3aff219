package cache

import "fmt"

func RateLimitKey(client string) string {
	return fmt.Sprintf("ratelimit:%s", client)
}

// ModelWriterLockKey guards training and bootstrapping of the shared risk model.
func ModelWriterLockKey() string {
	return "lock:model:writer"
}
