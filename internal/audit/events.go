package audit

// Resources recorded by the authentication flow.
const (
	ResourceAuthentication = "authentication"
	ResourceSession        = "session"
	ResourceAdminUser      = "admin_user"
)

// Actions recorded by the authentication flow. Admin API mutations use ParseRoute instead.
const (
	ActionLoginThrottled      = "login_throttled"
	ActionLoginFailure        = "login_failure"
	ActionOTPSent             = "otp_sent"
	ActionOTPCooldown         = "otp_cooldown"
	ActionOTPDeliveryFailed   = "otp_delivery_failed"
	ActionVerifyThrottled     = "verify_throttled"
	ActionVerifyFailure       = "verify_failure"
	ActionLogin               = "login"
	ActionLogout              = "logout"
	ActionSuperAdminBootstrap = "super_admin_bootstrap"
)
