package config

import (
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// VerifierMode selects the proof-verification capability wired into the
// eligibility gate.
type VerifierMode string

const (
	// VerifierGroth16 verifies real Groth16 proofs against a verifying key.
	VerifierGroth16 VerifierMode = "groth16"
	// VerifierStub accepts every proof. Demo use only; selecting it defeats
	// all eligibility guarantees and the gate logs warnings accordingly.
	VerifierStub VerifierMode = "stub"
)

// Server captures process-level configuration. FromEnv keeps main lean.
type Server struct {
	Addr string

	// PostgresDSN switches every store from memory to postgres when set.
	PostgresDSN string
	// RedisURL switches the nullifier set to Redis when set.
	RedisURL string

	// KafkaBrokers/KafkaTopic enable the Kafka signal sink when non-empty.
	KafkaBrokers []string
	KafkaTopic   string

	// IssuerAddress is the single trusted attestation signer.
	IssuerAddress common.Address

	VerifierMode     VerifierMode
	VerifyingKeyPath string

	// JWTSigningKey authenticates wallet bearer tokens on the HTTP surface.
	JWTSigningKey string

	// EscrowReentrancyGuard additionally rejects nested escrow entry instead
	// of relying on effects-first ordering alone.
	EscrowReentrancyGuard bool

	ShutdownTimeout time.Duration
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	addr := os.Getenv("RENTGATE_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	mode := VerifierMode(os.Getenv("RENTGATE_VERIFIER"))
	if mode == "" {
		mode = VerifierGroth16
	}

	var brokers []string
	if raw := os.Getenv("RENTGATE_KAFKA_BROKERS"); raw != "" {
		brokers = strings.Split(raw, ",")
	}
	topic := os.Getenv("RENTGATE_KAFKA_TOPIC")
	if topic == "" {
		topic = "rentgate.signals"
	}

	jwtKey := os.Getenv("RENTGATE_JWT_KEY")
	if jwtKey == "" {
		// Development default; override in any real deployment.
		jwtKey = "dev-secret-key-change-in-production"
	}

	return Server{
		Addr:                  addr,
		PostgresDSN:           os.Getenv("RENTGATE_POSTGRES_DSN"),
		RedisURL:              os.Getenv("RENTGATE_REDIS_URL"),
		KafkaBrokers:          brokers,
		KafkaTopic:            topic,
		IssuerAddress:         common.HexToAddress(os.Getenv("RENTGATE_ISSUER_ADDRESS")),
		VerifierMode:          mode,
		VerifyingKeyPath:      os.Getenv("RENTGATE_VERIFYING_KEY"),
		JWTSigningKey:         jwtKey,
		EscrowReentrancyGuard: os.Getenv("RENTGATE_ESCROW_GUARD") == "true",
		ShutdownTimeout:       10 * time.Second,
	}
}
