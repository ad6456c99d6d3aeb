// Package identity extracts the caller's verified email from the upstream
// identity-forwarding proxy, per spec §6. Discovery itself (who the proxy
// trusts, how it authenticates) is out of scope — this package only reads
// the header the proxy is assumed to have already verified.
package identity

import (
	"errors"
	"net/http"
	"os"
)

// ForcedUserEnv is the environment variable that, when set, overrides every
// identity with a forced one bearing that email. It is read directly rather
// than through the GALLERY_ env-prefixed config provider, matching the
// original implementation's unconditional std::env::var lookup.
const ForcedUserEnv = "SIMPLE_GAL_FORCED_USER"

// ErrMissingIdentity is returned when the forwarded-email header is absent
// or repeated, either of which the upstream proxy contract forbids.
var ErrMissingIdentity = errors.New("identity: X-Forwarded-Email header missing or repeated")

// ForwardedIdentity is the caller identity resolved for one request.
type ForwardedIdentity struct {
	Email  string
	Forced bool
}

func (f ForwardedIdentity) String() string { return f.Email }

// FromRequest resolves the caller's identity for r. If the forced-user
// environment override is set, it always wins and bypasses the header
// entirely. Otherwise exactly one X-Forwarded-Email header must be present.
func FromRequest(r *http.Request) (ForwardedIdentity, error) {
	if forced, ok := os.LookupEnv(ForcedUserEnv); ok && forced != "" {
		return ForwardedIdentity{Email: forced, Forced: true}, nil
	}

	values := r.Header.Values("X-Forwarded-Email")
	if len(values) != 1 || values[0] == "" {
		return ForwardedIdentity{}, ErrMissingIdentity
	}
	return ForwardedIdentity{Email: values[0]}, nil
}
