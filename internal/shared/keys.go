package shared

import (
	"fmt"
	"strings"
)

// OTPKey builds the redis key holding a pending registration for email.
func OTPKey(email string) string {
	return fmt.Sprintf("auth:otp:%s", strings.ToLower(strings.TrimSpace(email)))
}

// OTPAttemptsKey builds the redis key counting failed verification attempts.
func OTPAttemptsKey(email string) string {
	return fmt.Sprintf("auth:otp:%s:attempts", strings.ToLower(strings.TrimSpace(email)))
}
