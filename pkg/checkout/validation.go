package checkout

import (
	"net/mail"
	"regexp"
	"strings"

	pkgerrors "github.com/angelmondragon/fabshop-backend/pkg/errors"
	"github.com/angelmondragon/fabshop-backend/pkg/types"
)

const MaxJobIDLength = 64

var jobIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// ValidateJobID checks a caller-supplied job identifier. Job ids end up in
// URLs, storage object names and gateway reference ids, so the alphabet is
// restricted.
func ValidateJobID(jobID string) error {
	switch {
	case jobID == "":
		return pkgerrors.Field("jobId", "is required")
	case len(jobID) > MaxJobIDLength:
		return pkgerrors.Field("jobId", "must be at most 64 characters")
	case !jobIDPattern.MatchString(jobID):
		return pkgerrors.Field("jobId", "may contain only letters, digits, '-' and '_'")
	}
	return nil
}

// ValidateCustomer ensures the contact captured at checkout can be reached.
func ValidateCustomer(c types.Customer) error {
	if strings.TrimSpace(c.Name) == "" {
		return pkgerrors.Field("customer.name", "is required")
	}
	email := strings.TrimSpace(c.Email)
	if email == "" {
		return pkgerrors.Field("customer.email", "is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return pkgerrors.Field("customer.email", "is not a valid email address")
	}
	return nil
}
