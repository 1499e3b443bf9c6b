// Package license holds the license key algorithm and the lifecycle rules of
// a license. It does no I/O; callers persist the result and write the logs.
package license

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/wenwu/saas-platform/odoo-admin-service/internal/models"
)

const (
	keyHexLen   = 32
	keyGroupLen = 4
)

// ErrInvalidState is returned when a transition is not allowed from the
// license's current status.
var ErrInvalidState = errors.New("license: invalid state for transition")

var keyPattern = regexp.MustCompile(`^[0-9A-F]{4}(-[0-9A-F]{4}){7}$`)

// GenerateKey derives a key from the customer identity and the instant of
// generation. The result has the form XXXX-XXXX-XXXX-XXXX-XXXX-XXXX-XXXX-XXXX.
func GenerateKey(customerPK, customerName string, at time.Time) string {
	input := fmt.Sprintf("%s-%s-%s", customerPK, customerName, at.Format(time.RFC3339Nano))
	sum := sha256.Sum256([]byte(input))
	digest := strings.ToUpper(hex.EncodeToString(sum[:])[:keyHexLen])

	groups := make([]string, 0, keyHexLen/keyGroupLen)
	for i := 0; i < keyHexLen; i += keyGroupLen {
		groups = append(groups, digest[i:i+keyGroupLen])
	}
	return strings.Join(groups, "-")
}

// ValidKeyFormat reports whether key has the shape produced by GenerateKey.
func ValidKeyFormat(key string) bool {
	return keyPattern.MatchString(key)
}

// ActivateParams are the optional deployment facts captured on activation.
// Empty fields leave the stored value alone.
type ActivateParams struct {
	HardwareFingerprint string
	DeploymentDomain    string
	DeploymentIP        string
}

// Activate moves a pending license to active. Any other status yields
// ErrInvalidState and l is not modified.
func Activate(l *models.License, p ActivateParams, now time.Time) error {
	if l.Status != models.LicenseStatusPending {
		return fmt.Errorf("%w: cannot activate from %s", ErrInvalidState, l.Status)
	}

	l.Status = models.LicenseStatusActive
	activated := now
	l.ActivatedAt = &activated
	if p.HardwareFingerprint != "" {
		l.HardwareFingerprint = p.HardwareFingerprint
	}
	if p.DeploymentDomain != "" {
		l.DeploymentDomain = p.DeploymentDomain
	}
	if p.DeploymentIP != "" {
		l.DeploymentIP = p.DeploymentIP
	}
	return nil
}

// Revoke sets the terminal revoked status from any state. Rejecting a
// repeated revoke is left to the caller.
func Revoke(l *models.License) {
	l.Status = models.LicenseStatusRevoked
}

// Expire flips an active license whose window has closed to expired and
// reports whether it did so.
func Expire(l *models.License, now time.Time) bool {
	if l.Status != models.LicenseStatusActive || !now.After(l.ValidUntil) {
		return false
	}
	l.Status = models.LicenseStatusExpired
	return true
}

// IsValid is true only for an active license inside its validity window.
func IsValid(l *models.License, now time.Time) bool {
	return l.Status == models.LicenseStatusActive &&
		!now.Before(l.ValidFrom) &&
		!now.After(l.ValidUntil)
}

// DaysRemaining counts whole days until ValidUntil for active licenses.
func DaysRemaining(l *models.License, now time.Time) int {
	if l.Status != models.LicenseStatusActive || now.After(l.ValidUntil) {
		return 0
	}
	return int(l.ValidUntil.Sub(now) / (24 * time.Hour))
}
