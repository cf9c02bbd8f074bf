package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/fabshop-backend/pkg/errors"
)

type intentBody struct {
	SourceID string `json:"sourceId" validate:"required"`
	JobID    string `json:"jobId,omitempty" validate:"omitempty,max=8"`
	Quantity int    `json:"quantity"`
}

func decode(t *testing.T, body string) (intentBody, error) {
	t.Helper()
	var dest intentBody
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	return dest, DecodeJSONBody(req, &dest)
}

func TestDecodeJSONBodyAccepts(t *testing.T) {
	got, err := decode(t, `{"sourceId":"cnon:ok","jobId":"JOB-1"}`)
	require.NoError(t, err)
	require.Equal(t, "cnon:ok", got.SourceID)
	require.Equal(t, "JOB-1", got.JobID)
}

func TestDecodeJSONBodyReportsField(t *testing.T) {
	cases := []struct {
		name  string
		body  string
		field string
	}{
		{"missing required", `{}`, "sourceId"},
		{"too long", `{"sourceId":"x","jobId":"JOB-123456789"}`, "jobId"},
		{"unknown field", `{"sourceId":"x","unitPrice":"1.00"}`, "unitPrice"},
		{"wrong type", `{"sourceId":"x","quantity":"two"}`, "quantity"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := decode(t, tc.body)
			require.Error(t, err)
			require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
			require.Equal(t, tc.field, pkgerrors.FieldOf(err))
		})
	}
}

func TestDecodeJSONBodyRejectsMalformedAndTrailing(t *testing.T) {
	_, err := decode(t, `{"sourceId":`)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = decode(t, `{"sourceId":"a"}{"sourceId":"b"}`)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
