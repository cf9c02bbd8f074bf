package checkout

import (
	"strings"
	"testing"

	pkgerrors "github.com/angelmondragon/fabshop-backend/pkg/errors"
	"github.com/angelmondragon/fabshop-backend/pkg/types"
)

func TestValidateJobID(t *testing.T) {
	valid := []string{"job-1", "JOB_2026_0042", "a"}
	for _, id := range valid {
		if err := ValidateJobID(id); err != nil {
			t.Fatalf("expected %q valid, got %v", id, err)
		}
	}

	invalid := []string{"", "-leading", "has space", "slash/inside", strings.Repeat("x", MaxJobIDLength+1)}
	for _, id := range invalid {
		err := ValidateJobID(id)
		if err == nil {
			t.Fatalf("expected %q rejected", id)
		}
		if pkgerrors.FieldOf(err) != "jobId" {
			t.Fatalf("expected jobId field, got %q", pkgerrors.FieldOf(err))
		}
	}
}

func TestValidateCustomer(t *testing.T) {
	if err := ValidateCustomer(types.Customer{Name: "Pat", Email: "pat@example.com"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cases := map[string]types.Customer{
		"customer.name":  {Email: "pat@example.com"},
		"customer.email": {Name: "Pat", Email: "not-an-email"},
	}
	for field, customer := range cases {
		err := ValidateCustomer(customer)
		if pkgerrors.FieldOf(err) != field {
			t.Fatalf("expected field %s, got %v", field, err)
		}
	}
	if pkgerrors.FieldOf(ValidateCustomer(types.Customer{Name: "Pat"})) != "customer.email" {
		t.Fatalf("missing email should name customer.email")
	}
}
