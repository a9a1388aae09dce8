package cache

import "fmt"

// TokenKey holds the persisted bearer token for one account profile.
func TokenKey(account string) string {
	return fmt.Sprintf("newscast:token:%s", account)
}

// DigestKey maps a request fingerprint to the digest that served it.
func DigestKey(fingerprint string) string {
	return fmt.Sprintf("newscast:digest:%s", fingerprint)
}

func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("ratelimit:%s", keyPrefix)
}
