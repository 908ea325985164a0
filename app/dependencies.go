// Package app wires configuration, storage, services, and handlers together.
package app

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/petroflow/billing-control-plane/auth"
	"github.com/petroflow/billing-control-plane/config"
	"github.com/petroflow/billing-control-plane/handlers"
	"github.com/petroflow/billing-control-plane/metrics"
	"github.com/petroflow/billing-control-plane/middleware"
	"github.com/petroflow/billing-control-plane/migrations"
	"github.com/petroflow/billing-control-plane/repositories/postgres"
	"github.com/petroflow/billing-control-plane/services/audit"
	"github.com/petroflow/billing-control-plane/services/document"
	"github.com/petroflow/billing-control-plane/services/evaluation"
	"github.com/petroflow/billing-control-plane/services/policy"
	"github.com/petroflow/billing-control-plane/services/rules"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// Dependencies holds every constructed component of the application.
type Dependencies struct {
	Config  *config.Config
	Logger  *zap.Logger
	DB      *sql.DB
	Metrics *metrics.Metrics

	AuditService      *audit.Service
	EvaluationService *evaluation.Service
	PolicyService     *policy.Service
	DocumentService   *document.Service

	AuthMiddleware *middleware.AuthMiddleware

	EvaluationHandler *handlers.EvaluationHandler
	PolicyHandler     *handlers.PolicyHandler
	DocumentHandler   *handlers.DocumentHandler
	HealthHandler     *handlers.HealthHandler
}

// Build constructs the full dependency graph.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	db, err := postgres.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if cfg.Database.RunMigrations {
		if err := migrations.Up(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	var collectors *metrics.Metrics
	if cfg.Observability.MetricsEnabled {
		collectors = metrics.New()
	}

	documentRepo := postgres.NewDocumentRepository(db)
	policyRepo := postgres.NewPolicyRepository(db)
	auditRepo := postgres.NewAuditRepository(db)
	reviewQueueRepo := postgres.NewReviewQueueRepository(db)
	fraudFlagRepo := postgres.NewFraudFlagRepository(db)
	metricRepo := postgres.NewMetricRepository(db)

	auditSvc := audit.NewService(auditRepo, logger,
		cfg.Engine.AuditBufferSize, cfg.Engine.AuditWorkers)

	evaluator := rules.NewEvaluator(rules.Config{
		AllowRegexOperator: cfg.Engine.AllowRegexOperator,
	})

	evaluationSvc := evaluation.NewService(
		documentRepo, policyRepo, reviewQueueRepo, fraudFlagRepo, metricRepo,
		auditSvc, evaluator, collectors, logger)
	policySvc := policy.NewService(policyRepo, auditSvc, logger)
	documentSvc := document.NewService(documentRepo, logger)

	validator := auth.NewValidator(auth.Config{
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
		JWKSURL:  cfg.Auth.JWKSURL,
		CacheTTL: cfg.Auth.JWKSCacheTTL,
	})
	authMiddleware := middleware.NewAuthMiddleware(validator, logger)
	if collectors != nil {
		authMiddleware.SetFailureCounter(collectors.AuthFailuresTotal)
	}

	return &Dependencies{
		Config:  cfg,
		Logger:  logger,
		DB:      db,
		Metrics: collectors,

		AuditService:      auditSvc,
		EvaluationService: evaluationSvc,
		PolicyService:     policySvc,
		DocumentService:   documentSvc,

		AuthMiddleware: authMiddleware,

		EvaluationHandler: handlers.NewEvaluationHandler(evaluationSvc, logger),
		PolicyHandler:     handlers.NewPolicyHandler(policySvc, logger),
		DocumentHandler:   handlers.NewDocumentHandler(documentSvc, logger),
		HealthHandler:     handlers.NewHealthHandler(db, Version),
	}, nil
}

// Close releases resources in reverse construction order.
func (d *Dependencies) Close() {
	if d.AuditService != nil {
		d.AuditService.Stop()
	}
	if d.DB != nil {
		d.DB.Close()
	}
}
