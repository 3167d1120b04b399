package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/tokentally/internal/config"
	"github.com/kailas-cloud/tokentally/internal/db"
	dbRedis "github.com/kailas-cloud/tokentally/internal/db/redis"
	"github.com/kailas-cloud/tokentally/internal/domain/usage/pricing"
	"github.com/kailas-cloud/tokentally/internal/metrics"
	budgetrepo "github.com/kailas-cloud/tokentally/internal/repository/budget"
	openaiTransport "github.com/kailas-cloud/tokentally/internal/transport/openai"
	completionuc "github.com/kailas-cloud/tokentally/internal/usecase/completion"
)

// app is the composition root shared by serve and call.
type app struct {
	store     db.Store
	completer *openaiTransport.Completer
	budget    *completionuc.BudgetTracker
	tracker   *completionuc.Tracker
}

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	metrics.RegisterLLMMetrics()

	a := &app{}
	prov := cfg.Provider

	if cfg.Database.Enabled() {
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Username: cfg.Database.Username,
			Password: cfg.Database.Password,
			DB:       cfg.Database.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("create database store: %w", err)
		}
		timeout := time.Duration(cfg.Database.ReadinessTimeout) * time.Second
		if err := store.WaitForReady(ctx, timeout); err != nil {
			store.Close()
			return nil, fmt.Errorf("database not ready: %w", err)
		}
		logger.Info("Connected to database", zap.Strings("addrs", cfg.Database.Addrs))
		a.store = store
	}

	a.completer = openaiTransport.NewCompleter(&openaiTransport.Config{
		APIKey:   prov.APIKey,
		BaseURL:  prov.BaseURL,
		Model:    prov.Model,
		Provider: prov.Name,
		Options:  prov.Options,
		Logger:   logger,
	})

	if prov.Budget.DailyTokenLimit > 0 || prov.Budget.MonthlyTokenLimit > 0 {
		action := completionuc.BudgetActionWarn
		if prov.Budget.Action == "reject" {
			action = completionuc.BudgetActionReject
		}
		a.budget = completionuc.NewBudgetTracker(
			prov.Name, prov.Budget.DailyTokenLimit, prov.Budget.MonthlyTokenLimit, action, logger,
		)
		if a.store != nil {
			a.budget.WithStore(ctx, budgetrepo.New(a.store, budgetrepo.DefaultDailyTTL, budgetrepo.DefaultMonthlyTTL))
		}
	}

	// A typed nil *BudgetTracker inside the interface would not compare equal to nil.
	var budgetChecker completionuc.BudgetChecker
	if a.budget != nil {
		budgetChecker = a.budget
	}

	p := pricing.Pricing{
		CacheHitPerMillion:  prov.Pricing.CacheHitPerMillion,
		CacheMissPerMillion: prov.Pricing.CacheMissPerMillion,
		OutputPerMillion:    prov.Pricing.OutputPerMillion,
		Currency:            prov.Pricing.Currency,
	}
	a.tracker = completionuc.NewTracker(a.completer, prov.Name, prov.Model, p, budgetChecker, logger)

	return a, nil
}

func (a *app) close() {
	if a.store != nil {
		a.store.Close()
	}
}
