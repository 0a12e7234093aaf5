// Package engine orchestrates the scoring pipeline: estimator pool,
// geo classification, blending, anomaly detection, risk classification,
// persistence, and event publication.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-finance/harrier/internal/anomaly"
	"github.com/opensource-finance/harrier/internal/blend"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/estimator"
	"github.com/opensource-finance/harrier/internal/geo"
	"github.com/opensource-finance/harrier/internal/risk"
)

// Version is stamped into verdict metadata.
const Version = "1.0.0"

// Engine is the hybrid fraud risk decision engine.
type Engine struct {
	pool       *estimator.Pool
	geo        *geo.Classifier
	blender    *blend.Blender
	detector   *anomaly.Detector
	profiles   *anomaly.Store
	classifier *risk.Classifier
	repo       domain.Repository
	bus        domain.EventBus
	logger     *slog.Logger
}

// Options bundles the engine's collaborators. Zero-value fields fall
// back to production defaults.
type Options struct {
	Pool       *estimator.Pool
	Geo        *geo.Classifier
	Blender    *blend.Blender
	Detector   *anomaly.Detector
	Profiles   *anomaly.Store
	Classifier *risk.Classifier
	Repo       domain.Repository
	Bus        domain.EventBus
	Logger     *slog.Logger
}

// New creates an engine. Repo is required; Profiles defaults to a store
// over the repo; everything else defaults to the shipped configuration.
func New(opts Options) (*Engine, error) {
	if opts.Repo == nil {
		return nil, fmt.Errorf("engine: repository is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Pool == nil {
		opts.Pool = estimator.DefaultPool(opts.Logger)
	}
	if opts.Geo == nil {
		opts.Geo = geo.DefaultClassifier()
	}
	if opts.Blender == nil {
		opts.Blender = blend.NewBlender(blend.DefaultWeightTable())
	}
	if opts.Profiles == nil {
		opts.Profiles = anomaly.NewStore(opts.Repo, nil, opts.Logger)
	}
	if opts.Detector == nil {
		opts.Detector = anomaly.NewDetector(anomaly.DefaultDetectorConfig(), opts.Profiles.BurstCounter(), opts.Logger)
	}
	if opts.Classifier == nil {
		opts.Classifier = risk.NewClassifier(risk.DefaultClassifierConfig())
	}

	return &Engine{
		pool:       opts.Pool,
		geo:        opts.Geo,
		blender:    opts.Blender,
		detector:   opts.Detector,
		profiles:   opts.Profiles,
		classifier: opts.Classifier,
		repo:       opts.Repo,
		bus:        opts.Bus,
		logger:     opts.Logger,
	}, nil
}

// ScoreTransaction runs the full decision pipeline for one transaction
// and returns the verdict plus the alert when one was raised.
//
// Same-user calls serialize on the profile store's lock so each score
// sees the profile as it stood after the previous transaction; scoring
// is deterministic given that snapshot. Estimator and detector failures
// degrade inside their components and never surface here; only
// persistence failures produce an error.
func (e *Engine) ScoreTransaction(ctx context.Context, tenantID string, tx *domain.Transaction) (*domain.RiskVerdict, *domain.FraudAlert, error) {
	if tenantID == "" {
		return nil, nil, fmt.Errorf("engine: tenantID is required")
	}
	if tx.UserID == "" {
		return nil, nil, fmt.Errorf("engine: userID is required")
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	tx.TenantID = tenantID
	if tx.Timestamp.IsZero() {
		tx.Timestamp = time.Now().UTC()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}

	start := time.Now()

	unlock := e.profiles.Lock(tenantID, tx.UserID)
	defer unlock()

	profile, err := e.profiles.Load(ctx, tenantID, tx.UserID)
	if err != nil {
		return nil, nil, err
	}

	geoCtx := e.geo.Classify(tx.UserLocation, tx.MerchantLocation)
	vec := estimator.Extract(tx, geoCtx)

	estimateStart := time.Now()
	local := e.pool.Score(ctx, estimator.LocalModelID, vec)
	global := e.pool.Score(ctx, estimator.GlobalModelID, vec)
	estimateMs := time.Since(estimateStart).Milliseconds()

	blended := e.blender.Blend(local.Probability, global.Probability, geoCtx)

	detectStart := time.Now()
	flags := e.detector.Detect(ctx, tx, profile)
	detectMs := time.Since(detectStart).Milliseconds()

	verdict := e.classifier.Classify(tx, blended, geoCtx, flags, local, global)
	verdict.Metadata = domain.VerdictMetadata{
		TraceID:       traceIDFrom(ctx),
		EstimateMs:    estimateMs,
		DetectMs:      detectMs,
		TotalMs:       time.Since(start).Milliseconds(),
		EngineVersion: Version,
	}

	if err := e.repo.SaveTransaction(ctx, tenantID, tx); err != nil {
		return nil, nil, fmt.Errorf("persist transaction %s: %w", tx.ID, err)
	}
	if err := e.repo.SaveVerdict(ctx, tenantID, verdict); err != nil {
		return nil, nil, fmt.Errorf("persist verdict %s: %w", verdict.ID, err)
	}

	var alert *domain.FraudAlert
	if e.classifier.ShouldAlert(verdict) {
		alert = risk.BuildAlert(verdict)
		if err := e.repo.SaveAlert(ctx, tenantID, alert); err != nil {
			return nil, nil, fmt.Errorf("persist alert %s: %w", alert.ID, err)
		}
	}

	if err := e.profiles.Commit(ctx, tenantID, profile.Observe(tx)); err != nil {
		return nil, nil, err
	}

	e.publish(ctx, tenantID, verdict, alert)

	e.logger.Info("transaction scored",
		"tx_id", tx.ID,
		"tenant_id", tenantID,
		"user_id", tx.UserID,
		"level", verdict.Level,
		"probability", verdict.Blended.Probability,
		"flags", verdict.Anomalies.Count(),
		"alerted", alert != nil,
		"duration_ms", verdict.Metadata.TotalMs,
	)

	return verdict, alert, nil
}

// ReviewUser produces the cross-transaction behavioral summary for a
// user from their recent verdicts and current profile.
func (e *Engine) ReviewUser(ctx context.Context, tenantID, userID string) (*anomaly.UserReview, error) {
	verdicts, err := e.repo.ListVerdictsByUser(ctx, tenantID, userID, domain.DefaultProfileWindow)
	if err != nil {
		return nil, fmt.Errorf("list verdicts for %s: %w", userID, err)
	}

	profile, err := e.profiles.Load(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}

	return anomaly.ReviewUser(userID, verdicts, profile, time.Now().UTC()), nil
}

// publish emits verdict and alert events. Publication is best effort;
// a bus failure never fails a scored transaction.
func (e *Engine) publish(ctx context.Context, tenantID string, verdict *domain.RiskVerdict, alert *domain.FraudAlert) {
	if e.bus == nil {
		return
	}

	if payload, err := json.Marshal(verdict); err == nil {
		if err := e.bus.Publish(ctx, tenantID, domain.TopicVerdict, payload); err != nil {
			e.logger.Warn("verdict publish failed", "verdict_id", verdict.ID, "error", err)
		}
	}

	if alert != nil {
		if payload, err := json.Marshal(alert); err == nil {
			if err := e.bus.Publish(ctx, tenantID, domain.TopicAlert, payload); err != nil {
				e.logger.Warn("alert publish failed", "alert_id", alert.ID, "error", err)
			}
		}
	}
}

func traceIDFrom(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
