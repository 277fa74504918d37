package auth_test

import (
	"testing"

	"github.com/jrsteele09/go-session-server/auth"
	apperrors "github.com/jrsteele09/go-session-server/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestRegisterRequest_Validate(t *testing.T) {
	tests := []struct {
		name   string
		req    auth.RegisterRequest
		fields []string
	}{
		{name: "valid", req: auth.RegisterRequest{Email: "a@example.com", Password: "x"}},
		{name: "valid with phone", req: auth.RegisterRequest{Email: "a@example.com", Password: "x", Phone: "+447700900123"}},
		{name: "bad email", req: auth.RegisterRequest{Email: "a@", Password: "x"}, fields: []string{"email"}},
		{name: "missing password", req: auth.RegisterRequest{Email: "a@example.com"}, fields: []string{"password"}},
		{name: "local phone", req: auth.RegisterRequest{Email: "a@example.com", Password: "x", Phone: "07700900123"}, fields: []string{"phone"}},
		{name: "phone with letters", req: auth.RegisterRequest{Email: "a@example.com", Password: "x", Phone: "+1555CALLNOW"}, fields: []string{"phone"}},
		{name: "everything wrong", req: auth.RegisterRequest{Email: "nope", Phone: "+1"}, fields: []string{"email", "password", "phone"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if len(tt.fields) == 0 {
				require.NoError(t, err)
				return
			}
			require.True(t, apperrors.IsKind(err, apperrors.KindValidationFailed))

			var appErr *apperrors.Error
			require.ErrorAs(t, err, &appErr)
			details, ok := appErr.Details.([]auth.FieldError)
			require.True(t, ok)
			got := make([]string, len(details))
			for i, d := range details {
				got[i] = d.Field
			}
			require.Equal(t, tt.fields, got)
		})
	}
}
