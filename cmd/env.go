package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/audit"
	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/aum"
	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/identity"
	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/insurance"
	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/leaderboard"
	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/lumpsum"
	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/orchestrator"
	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/referral"
	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/resilience"
	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/scoreconfig"
	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/sip"
	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/store"
)

// env wires the store, directory, scorers and orchestrator for a command run.
type env struct {
	Store    *store.Store
	Configs  *scoreconfig.Store
	Resolver *identity.Resolver

	Lumpsum    *lumpsum.Runner
	SIP        *sip.Runner
	Insurance  *insurance.Runner
	Referral   *referral.Runner
	Aggregator *leaderboard.Aggregator

	Orchestrator *orchestrator.Orchestrator
}

func initEnv(ctx context.Context) (*env, error) {
	st, err := store.New(ctx, cfg.Store.DatabaseURL, nil)
	if err != nil {
		return nil, err
	}
	st.WithRetry(resilience.FromConfig(cfg.Retry))

	directory := identity.NewDirectory(st.Pool())
	records, err := directory.LoadAll(ctx)
	if err != nil {
		st.Close()
		return nil, eris.Wrap(err, "load rm directory")
	}
	resolver := identity.NewResolver(records)
	zap.L().Info("rm directory loaded", zap.Int("records", len(records)))

	configs := scoreconfig.NewStore(st.Pool())
	lookup := aum.NewLookup(st.Pool())
	writer := audit.NewWriter(st.Pool())

	e := &env{
		Store:    st,
		Configs:  configs,
		Resolver: resolver,
		Lumpsum: &lumpsum.Runner{
			Store: st, Configs: configs, Resolver: resolver, AUM: lookup, Audit: writer,
			Strategy: lumpsum.PenaltyStrategy(cfg.Scorer.PenaltyStrategy),
		},
		SIP: &sip.Runner{
			Store: st, Configs: configs, Resolver: resolver, AUM: lookup, Audit: writer,
		},
		Insurance: &insurance.Runner{
			Store: st, Configs: configs, Resolver: resolver, Audit: writer,
		},
		Referral: &referral.Runner{
			Store: st, Configs: configs, Resolver: resolver,
		},
		Aggregator: &leaderboard.Aggregator{
			Store: st, Configs: configs, Resolver: resolver,
		},
	}

	ttl := time.Duration(cfg.Scheduler.LockTTLMinutes) * time.Minute
	e.Orchestrator = &orchestrator.Orchestrator{
		Locks:      orchestrator.NewLockManager(st.Pool(), ttl),
		Lumpsum:    e.Lumpsum,
		SIP:        e.SIP,
		Insurance:  e.Insurance,
		Referral:   e.Referral,
		Aggregator: e.Aggregator,
	}

	return e, nil
}

func (e *env) Close() {
	e.Store.Close()
}
