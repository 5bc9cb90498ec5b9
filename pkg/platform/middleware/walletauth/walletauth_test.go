package walletauth

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentgate/pkg/requestcontext"
)

const signingKey = "test-signing-key"

func TestMiddlewareAcceptsIssuedToken(t *testing.T) {
	wallet := common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")
	token, err := IssueToken(signingKey, wallet)
	require.NoError(t, err)

	var seen common.Address
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := requestcontext.Caller(r.Context())
		require.True(t, ok)
		seen = caller
		w.WriteHeader(http.StatusOK)
	})
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := Middleware(signingKey, log)(inner)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, wallet, seen)
}

func TestMiddlewareRejectsBadTokens(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := Middleware(signingKey, log)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Fatal("handler must not run")
	}))

	wallet := common.HexToAddress("0x01")
	wrongKey, err := IssueToken("some-other-key", wallet)
	require.NoError(t, err)

	for name, header := range map[string]string{
		"missing header": "",
		"not bearer":     "Basic abc",
		"empty token":    "Bearer ",
		"garbage token":  "Bearer not.a.jwt",
		"wrong key":      "Bearer " + wrongKey,
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}
