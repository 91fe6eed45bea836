package backend

import (
	"strings"

	"github.com/tandem-dev/tandem/pkg/tandemerrs"
)

// authErrorPatterns are message fragments that mark a failure as
// authentication-class even when the backend returned no status code.
var authErrorPatterns = []string{
	"unauthorized",
	"token expired",
	"invalid api key",
	"permission denied",
	"401",
	"403",
}

// IsAuthError classifies a backend failure as authentication-class.
// The orchestrator retries such failures once after a credential
// refresh; everything else propagates unmodified.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	if tandemerrs.HasCode(err, tandemerrs.ErrCodeAuthFailed) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range authErrorPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}

	return false
}
