// Package walletauth authenticates callers by a bearer JWT whose "wallet"
// claim names their address. The middleware only establishes who is calling;
// authorization decisions stay in the services.
package walletauth

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v5"

	"rentgate/pkg/requestcontext"
)

type claims struct {
	Wallet string `json:"wallet"`
	jwt.RegisteredClaims
}

// IssueToken mints a bearer token for a wallet. Used by tests and local
// tooling; real deployments issue tokens out of band.
func IssueToken(signingKey string, wallet common.Address) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{Wallet: wallet.Hex()})
	return token.SignedString([]byte(signingKey))
}

// Middleware validates the Authorization header and puts the caller wallet in
// the request context. Requests without a valid token are rejected.
func Middleware(signingKey string, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || raw == "" {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			var c claims
			token, err := jwt.ParseWithClaims(raw, &c, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
				}
				return []byte(signingKey), nil
			})
			if err != nil || !token.Valid || !common.IsHexAddress(c.Wallet) {
				log.WarnContext(r.Context(), "rejected bearer token", "error", err)
				http.Error(w, "invalid bearer token", http.StatusUnauthorized)
				return
			}

			ctx := requestcontext.WithCaller(r.Context(), common.HexToAddress(c.Wallet))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
