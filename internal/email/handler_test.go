package email

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleSend(t *testing.T) {
	h, err := NewHandler(slog.Default())
	require.NoError(t, err)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"valid", `{"to":"ada@example.com","subject":"Order Confirmation","body":"hi"}`, http.StatusOK},
		{"named recipient", `{"to":"Ada <ada@example.com>","subject":"Hi"}`, http.StatusOK},
		{"bad recipient", `{"to":"not-an-address","subject":"Hi"}`, http.StatusBadRequest},
		{"missing subject", `{"to":"ada@example.com","subject":"  "}`, http.StatusBadRequest},
		{"malformed", `{`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.HandleSend(rec, httptest.NewRequest(http.MethodPost, "/send", strings.NewReader(tt.body)))

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.JSONEq(t, `{"status":"sent"}`, rec.Body.String())
			}
		})
	}
}
