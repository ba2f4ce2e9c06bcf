package domain

import "time"

// Security event types emitted by the auth and biometric flows.
const (
	EventSignupCompleted     = "signup_completed"
	EventSignInSucceeded     = "signin_succeeded"
	EventSignInFailed        = "signin_failed"
	EventTwoFactorChallenged = "two_factor_challenged"
	EventPasswordReset       = "password_reset"
	EventPasswordChanged     = "password_changed"
	EventEmailChanged        = "email_changed"
	EventTwoFactorToggled    = "two_factor_toggled"
	EventProfileUpdated      = "profile_updated"
	EventAccountDeleted      = "account_deleted"
	EventBiometricRegistered = "biometric_registered"
	EventBiometricUnlocked   = "biometric_unlocked"
	EventBiometricFailed     = "biometric_failed"
	EventBiometricCleared    = "biometric_cleared"
)

// SecurityEvent is an audit record of an authentication-relevant action.
// It never carries secrets: no codes, tokens or passwords.
type SecurityEvent struct {
	Type      string
	UserID    string
	Email     string
	Source    string
	Reason    string
	CreatedAt time.Time
}
