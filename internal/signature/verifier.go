// Package signature verifies webhook deliveries signed with the
// standard-webhooks (svix) convention: HMAC-SHA-256 over
// "{id}.{timestamp}.{body}" with a base64 secret carried behind a
// "whsec_" prefix.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Tolerance is the replay/clock-skew window. Deliveries whose timestamp
// differs from local time by more than this are rejected. The bound is
// inclusive: a delivery exactly Tolerance old still passes.
const Tolerance = 300 * time.Second

const (
	// HeaderID, HeaderTimestamp, and HeaderSignature are the delivery
	// headers consumed by Verify.
	HeaderID        = "webhook-id"
	HeaderTimestamp = "webhook-timestamp"
	HeaderSignature = "webhook-signature"

	secretPrefix = "whsec_"
	versionTag   = "v1"
)

// Option configures a Verifier.
type Option func(*Verifier)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) {
		v.now = now
	}
}

// Verifier checks delivery authenticity and freshness against a shared
// secret. It holds no per-request state.
type Verifier struct {
	secret string
	log    *slog.Logger
	now    func() time.Time
}

// NewVerifier creates a Verifier for the given shared secret. The secret
// may be empty; Verify then fails every delivery.
func NewVerifier(secret string, log *slog.Logger, opts ...Option) *Verifier {
	v := &Verifier{
		secret: secret,
		log:    log,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Sign computes the signature value for a delivery, without the version
// tag. Used by tests and local tooling to produce valid deliveries.
func Sign(secret, id, timestamp string, body []byte) (string, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(secret, secretPrefix))
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(id))
	mac.Write([]byte("."))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// Verify reports whether the delivery is authentic and fresh. It never
// returns an error: every failure path resolves to false with a
// diagnostic log line.
func (v *Verifier) Verify(rawBody []byte, headers http.Header) bool {
	if v.secret == "" {
		v.log.Error("webhook secret not configured")
		return false
	}

	id := headers.Get(HeaderID)
	timestamp := headers.Get(HeaderTimestamp)
	sigHeader := headers.Get(HeaderSignature)
	if id == "" || timestamp == "" || sigHeader == "" {
		v.log.Error("missing required signature headers")
		return false
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		v.log.Error("webhook timestamp is not an integer", slog.String("timestamp", timestamp))
		return false
	}

	skew := v.now().Unix() - ts
	if skew < 0 {
		skew = -skew
	}
	if skew > int64(Tolerance/time.Second) {
		v.log.Error("webhook timestamp outside tolerance",
			slog.Int64("timestamp", ts),
			slog.Duration("tolerance", Tolerance),
		)
		return false
	}

	expected, err := Sign(v.secret, id, timestamp, rawBody)
	if err != nil {
		v.log.Error("failed to decode webhook secret", slog.String("error", err.Error()))
		return false
	}

	// Multiple space-separated entries may be present during secret
	// rotation; accept on the first match. Split each entry on the first
	// comma only, since signature values may themselves contain commas.
	for _, entry := range strings.Fields(sigHeader) {
		parts := strings.SplitN(entry, ",", 2)
		if len(parts) != 2 || parts[0] != versionTag {
			continue
		}
		if hmac.Equal([]byte(expected), []byte(parts[1])) {
			return true
		}
	}

	v.log.Error("no matching signature found", slog.String(HeaderID, id))
	return false
}
