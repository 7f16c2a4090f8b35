package validators

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/mateovaldes/idp-registry-backend/pkg/errors"
)

type samplePayload struct {
	Email string `json:"email" validate:"required,email"`
	Limit int    `json:"limit" validate:"min=1,max=100"`
}

func newJSONRequest(t *testing.T, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestDecodeJSONBodyAcceptsValidPayload(t *testing.T) {
	var dest samplePayload
	err := DecodeJSONBody(newJSONRequest(t, `{"email":"clerk@example.gov","limit":10}`), &dest)
	require.NoError(t, err)
	assert.Equal(t, "clerk@example.gov", dest.Email)
	assert.Equal(t, 10, dest.Limit)
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	var dest samplePayload
	err := DecodeJSONBody(newJSONRequest(t, `{"email":"clerk@example.gov","limit":10,"extra":true}`), &dest)
	require.Error(t, err)

	var typed *pkgerrors.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestDecodeJSONBodyUsesJSONTagNames(t *testing.T) {
	var dest samplePayload
	err := DecodeJSONBody(newJSONRequest(t, `{"limit":10}`), &dest)
	require.Error(t, err)

	var typed *pkgerrors.Error
	require.ErrorAs(t, err, &typed)
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok, "expected field detail map, got %T", typed.Details())
	assert.Contains(t, details, "email")
}

func TestDecodeJSONBodyRangeMessages(t *testing.T) {
	var dest samplePayload
	err := DecodeJSONBody(newJSONRequest(t, `{"email":"clerk@example.gov","limit":500}`), &dest)
	require.Error(t, err)

	var typed *pkgerrors.Error
	require.ErrorAs(t, err, &typed)
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "must be at most 100", details["limit"])
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=25", nil)
	got, err := ParseQueryInt(req, "limit", 10, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 25, got)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	got, err = ParseQueryInt(req, "limit", 10, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 10, got)

	req = httptest.NewRequest(http.MethodGet, "/?limit=0", nil)
	_, err = ParseQueryInt(req, "limit", 10, 1, 100)
	require.Error(t, err)

	req = httptest.NewRequest(http.MethodGet, "/?limit=abc", nil)
	_, err = ParseQueryInt(req, "limit", 10, 1, 100)
	require.Error(t, err)
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "karimi", SanitizeString("  karimi  ", 20))
	assert.Equal(t, "kar", SanitizeString("karimi", 3))
	assert.Equal(t, "", SanitizeString("   ", 20))
}
