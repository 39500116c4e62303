package extension

import (
	"bytes"
	"text/template"
	"time"

	"github.com/agilira/go-errors"

	"github.com/modshield/modshield/internal/errs"
)

// The guard references _GUARDS and DecryptionError, both declared by
// the core routine, so this fragment must come after it.
var expiryTemplate = template.Must(template.New("expiry").Parse(`

_EXPIRY_EPOCH = {{.Epoch}}


def _expiry_guard(rel_path):
    if time.time() >= _EXPIRY_EPOCH:
        raise DecryptionError("this build expired on {{.Human}}")


_GUARDS.append(_expiry_guard)
`))

// Expiry rejects every decrypt-and-execute call once the current time
// reaches or passes the captured instant. The guard runs for every
// module, not only the entry module.
type Expiry struct {
	instant time.Time
}

// NewExpiry captures the expiration instant.
func NewExpiry(instant time.Time) *Expiry {
	return &Expiry{instant: instant.UTC()}
}

// Instant returns the captured expiration time.
func (e *Expiry) Instant() time.Time {
	return e.instant
}

// Code renders the expiry guard fragment.
func (e *Expiry) Code() (string, error) {
	var buf bytes.Buffer
	err := expiryTemplate.Execute(&buf, struct {
		Epoch int64
		Human string
	}{
		Epoch: e.instant.Unix(),
		Human: e.instant.Format(time.RFC3339),
	})
	if err != nil {
		return "", errors.Wrap(err, errs.CodeInput, "failed to render expiry guard")
	}
	return buf.String(), nil
}
