package ratelimit

import "time"

// Admin login throttles.
var (
	LoginByIP       = Rule{Window: 15 * time.Minute, Limit: 5, Block: 15 * time.Minute}
	LoginByEmail    = Rule{Window: 15 * time.Minute, Limit: 3, Block: 15 * time.Minute}
	VerifyByIPEmail = Rule{Window: 15 * time.Minute, Limit: 10, Block: 15 * time.Minute}
)

// LoginIPKey keys the per-IP password submission throttle.
func LoginIPKey(ip string) string {
	return "ip:" + ip + ":admin_login"
}

// LoginEmailKey keys the per-account password submission throttle. email must already be normalized.
func LoginEmailKey(email string) string {
	return "email:" + email + ":admin_login"
}

// VerifyKey keys the code verification throttle on the (IP, email) pair.
func VerifyKey(ip, email string) string {
	return "ip_email:" + ip + ":" + email + ":admin_verify"
}
