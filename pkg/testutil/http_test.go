package testutil

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Response helpers must compose: inspecting a recorder once must not
// consume the body for the next helper.
func TestBodyHelpersDoNotConsumeTheRecorder(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad_request","error_description":"nope"}`))
	})

	rr := DoRequest(handler, httptest.NewRequest(http.MethodGet, "/", nil))

	AssertErrorCode(t, rr, "bad_request")
	body := UnmarshalErrorResponse(t, rr)
	assert.Equal(t, "nope", body["error_description"])
	assert.NotEmpty(t, ReadBody(t, rr))
}
