package eligibility_test

import (
	"bytes"
	"log/slog"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentgate/internal/eligibility"
)

func TestInsecureStubVerifierAcceptsAndWarns(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	v := eligibility.NewInsecureStubVerifier(log)
	assert.Contains(t, buf.String(), "INSECURE")

	buf.Reset()
	ok, err := v.Verify([]byte("anything"), []*big.Int{big.NewInt(1)})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, buf.String(), "INSECURE")
}
