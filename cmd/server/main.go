// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal service packages.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"rentgate/internal/eligibility"
	eligibilityhandler "rentgate/internal/eligibility/handler"
	eligibilitymetrics "rentgate/internal/eligibility/metrics"
	"rentgate/internal/eligibility/zkp"
	"rentgate/internal/escrow"
	escrowhandler "rentgate/internal/escrow/handler"
	escrowmetrics "rentgate/internal/escrow/metrics"
	"rentgate/internal/events"
	"rentgate/internal/platform/clock"
	"rentgate/internal/platform/config"
	"rentgate/internal/platform/httpserver"
	"rentgate/internal/platform/logger"
	platformredis "rentgate/internal/platform/redis"
	"rentgate/internal/policystore"
	policyhandler "rentgate/internal/policystore/handler"
	policymetrics "rentgate/internal/policystore/metrics"
	"rentgate/pkg/platform/middleware/requestid"
	"rentgate/pkg/platform/middleware/walletauth"

	"github.com/ethereum/go-ethereum/common"
)

// escrowAccount is the in-ledger address custody funds sit under.
var escrowAccount = common.HexToAddress("0x00000000000000000000000000000000e5c20000")

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	sink, closeSink, err := buildSink(cfg)
	if err != nil {
		log.Error("signal sink setup failed", "error", err)
		os.Exit(1)
	}
	defer closeSink()
	emitter := events.NewEmitter(sink, log)

	var db *sql.DB
	if cfg.PostgresDSN != "" {
		db, err = sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			log.Error("postgres open failed", "error", err)
			os.Exit(1)
		}
		defer db.Close()
	}

	clk := clock.System{}

	var policyStore policystore.Store = policystore.NewInMemoryStore()
	var nullifiers eligibility.NullifierStore = eligibility.NewInMemoryNullifierStore()
	var records eligibility.RecordStore = eligibility.NewInMemoryRecordStore()
	var leases escrow.LeaseStore = escrow.NewInMemoryLeaseStore()
	if db != nil {
		policyStore = policystore.NewPostgres(db)
		nullifiers = eligibility.NewPostgresNullifierStore(db)
		records = eligibility.NewPostgresRecordStore(db)
		leases = escrow.NewPostgresLeaseStore(db)
	}
	if cfg.RedisURL != "" {
		rdb, err := platformredis.New(cfg.RedisURL)
		if err != nil {
			log.Error("redis setup failed", "error", err)
			os.Exit(1)
		}
		defer rdb.Close()
		nullifiers = eligibility.NewRedisNullifierStore(rdb.Client)
	}

	verifier, err := buildVerifier(cfg, log)
	if err != nil {
		log.Error("proof verifier setup failed", "error", err)
		os.Exit(1)
	}

	policies := policystore.NewService(policyStore, clk, emitter, log, policymetrics.New())
	gate := eligibility.NewService(
		policies, verifier, cfg.IssuerAddress, nullifiers, records,
		clk, emitter, log, eligibilitymetrics.New(),
	)

	var escrowOpts []escrow.Option
	if cfg.EscrowReentrancyGuard {
		escrowOpts = append(escrowOpts, escrow.WithReentrancyGuard())
	}
	leasing := escrow.NewService(
		policies, gate, leases, escrow.NewMemoryLedger(), escrowAccount,
		clk, emitter, log, escrowmetrics.New(), escrowOpts...,
	)

	router := chi.NewRouter()
	router.Use(requestid.Middleware)
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())
	router.Group(func(r chi.Router) {
		r.Use(walletauth.Middleware(cfg.JWTSigningKey, log))
		policyhandler.New(policies, log).Register(r)
		eligibilityhandler.New(gate, log).Register(r)
		escrowhandler.New(leasing, log).Register(r)
	})

	srv := httpserver.New(cfg.Addr, router)
	log.Info("starting rentgate", "addr", cfg.Addr, "verifier", string(cfg.VerifierMode))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func buildSink(cfg config.Server) (events.Sink, func(), error) {
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := events.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return nil, nil, err
		}
		return kafka, kafka.Close, nil
	}
	return events.NewMemorySink(), func() {}, nil
}

func buildVerifier(cfg config.Server, log *slog.Logger) (eligibility.ProofVerifier, error) {
	switch cfg.VerifierMode {
	case config.VerifierStub:
		return eligibility.NewInsecureStubVerifier(log), nil
	default:
		vk, err := zkp.LoadVerifyingKey(cfg.VerifyingKeyPath)
		if err != nil {
			return nil, err
		}
		return zkp.NewGroth16Verifier(vk), nil
	}
}
