package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

func newTestRepo(t *testing.T) domain.Repository {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "harrier-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	repo, err := New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	return repo
}

func TestSQLiteRepository(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	tenantID := "tenant-001"

	t.Run("Ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("SaveAndGetTransaction", func(t *testing.T) {
		tx := &domain.Transaction{
			ID:               "tx-001",
			UserID:           "user-001",
			MerchantID:       "merchant-001",
			Amount:           1250.50,
			Currency:         "LKR",
			Category:         "grocery_pos",
			Timestamp:        time.Now().UTC(),
			CreatedAt:        time.Now().UTC(),
			UserLocation:     domain.Coordinate{Lat: 6.9271, Lon: 79.8612},
			MerchantLocation: domain.Coordinate{Lat: 7.2906, Lon: 80.6337},
			Features:         map[string]any{"channel": "pos"},
		}

		if err := repo.SaveTransaction(ctx, tenantID, tx); err != nil {
			t.Fatalf("SaveTransaction failed: %v", err)
		}

		got, err := repo.GetTransaction(ctx, tenantID, "tx-001")
		if err != nil {
			t.Fatalf("GetTransaction failed: %v", err)
		}
		if got.UserID != "user-001" || got.MerchantID != "merchant-001" {
			t.Errorf("parties not preserved: %+v", got)
		}
		if got.Amount != 1250.50 || got.Currency != "LKR" {
			t.Errorf("amount not preserved: %v %s", got.Amount, got.Currency)
		}
		if got.Category != "grocery_pos" {
			t.Errorf("category = %q, want grocery_pos", got.Category)
		}
		if got.MerchantLocation.Lat != 7.2906 {
			t.Errorf("merchant coords not preserved: %+v", got.MerchantLocation)
		}
		if got.Features["channel"] != "pos" {
			t.Errorf("features not preserved: %v", got.Features)
		}
	})

	t.Run("TenantIsolation", func(t *testing.T) {
		_, err := repo.GetTransaction(ctx, "other-tenant", "tx-001")
		if err != ErrNotFound {
			t.Errorf("expected ErrNotFound for different tenant, got: %v", err)
		}
	})

	t.Run("EmptyTenantRejected", func(t *testing.T) {
		if err := repo.SaveTransaction(ctx, "", &domain.Transaction{ID: "x"}); err == nil {
			t.Error("expected error for empty tenantID")
		}
	})

	t.Run("GetTransactionsByUser", func(t *testing.T) {
		base := time.Now().UTC().Add(-time.Hour)
		for i, id := range []string{"tx-u1", "tx-u2", "tx-u3"} {
			tx := &domain.Transaction{
				ID:         id,
				UserID:     "user-list",
				MerchantID: "merchant-001",
				Amount:     float64(100 * (i + 1)),
				Currency:   "LKR",
				Timestamp:  base.Add(time.Duration(i) * time.Minute),
				CreatedAt:  time.Now().UTC(),
			}
			if err := repo.SaveTransaction(ctx, tenantID, tx); err != nil {
				t.Fatalf("SaveTransaction failed: %v", err)
			}
		}

		got, err := repo.GetTransactionsByUser(ctx, tenantID, "user-list", base.Add(30*time.Second))
		if err != nil {
			t.Fatalf("GetTransactionsByUser failed: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("got %d transactions, want 2 (cutoff excludes the first)", len(got))
		}
		if got[0].ID != "tx-u3" {
			t.Errorf("results should be newest first, got %s", got[0].ID)
		}
	})
}

func TestVerdictPersistence(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	tenantID := "tenant-001"

	verdict := &domain.RiskVerdict{
		ID:     "v-001",
		TxID:   "tx-001",
		UserID: "user-001",
		Level:  domain.RiskHigh,
		Blended: domain.BlendedScore{
			Probability:  0.62,
			LocalWeight:  0.10,
			GlobalWeight: 0.90,
			Case:         domain.BlendInternational,
		},
		Geo: domain.GeoContext{UserInRegion: true},
		Anomalies: domain.AnomalyFlags{
			GeographicJump: true,
			ImpliedSpeed:   4200,
		},
		LocalModel:  domain.EstimatorResult{EstimatorID: "local", Probability: 0.4, Available: true},
		GlobalModel: domain.EstimatorResult{EstimatorID: "global", Probability: 0.65, Available: false},
		Confidence:  77.0,
		Flags:       []string{"implied travel speed 4200 km/h exceeds plausible maximum"},
		Timestamp:   time.Now().UTC(),
		Metadata:    domain.VerdictMetadata{TotalMs: 12, EngineVersion: "1.0.0"},
	}

	if err := repo.SaveVerdict(ctx, tenantID, verdict); err != nil {
		t.Fatalf("SaveVerdict failed: %v", err)
	}

	t.Run("RoundTrip", func(t *testing.T) {
		got, err := repo.GetVerdict(ctx, tenantID, "v-001")
		if err != nil {
			t.Fatalf("GetVerdict failed: %v", err)
		}
		if got.Level != domain.RiskHigh {
			t.Errorf("Level = %v, want HIGH", got.Level)
		}
		if got.Blended.Probability != 0.62 || got.Blended.Case != domain.BlendInternational {
			t.Errorf("blended not preserved: %+v", got.Blended)
		}
		if !got.Anomalies.GeographicJump || got.Anomalies.ImpliedSpeed != 4200 {
			t.Errorf("anomalies not preserved: %+v", got.Anomalies)
		}
		if got.LocalModel.EstimatorID != "local" || got.GlobalModel.Available {
			t.Errorf("estimator results not preserved: %+v %+v", got.LocalModel, got.GlobalModel)
		}
		if got.Confidence != 77.0 {
			t.Errorf("Confidence = %v, want 77", got.Confidence)
		}
		if len(got.Flags) != 1 {
			t.Errorf("Flags = %v", got.Flags)
		}
		if got.Metadata.EngineVersion != "1.0.0" {
			t.Errorf("metadata not preserved: %+v", got.Metadata)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		if _, err := repo.GetVerdict(ctx, tenantID, "missing"); err != ErrNotFound {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
	})

	t.Run("ListByUser", func(t *testing.T) {
		got, err := repo.ListVerdictsByUser(ctx, tenantID, "user-001", 10)
		if err != nil {
			t.Fatalf("ListVerdictsByUser failed: %v", err)
		}
		if len(got) != 1 || got[0].ID != "v-001" {
			t.Errorf("list = %v", got)
		}
	})
}

func TestAlertPersistence(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	tenantID := "tenant-001"

	alert := &domain.FraudAlert{
		ID:     "a-001",
		TxID:   "tx-001",
		UserID: "user-001",
		Status: domain.AlertOpen,
		Verdict: domain.RiskVerdict{
			ID:    "v-001",
			Level: domain.RiskHigh,
		},
		CreatedAt: time.Now().UTC(),
	}

	if err := repo.SaveAlert(ctx, tenantID, alert); err != nil {
		t.Fatalf("SaveAlert failed: %v", err)
	}

	t.Run("RoundTrip", func(t *testing.T) {
		got, err := repo.GetAlert(ctx, tenantID, "a-001")
		if err != nil {
			t.Fatalf("GetAlert failed: %v", err)
		}
		if got.Status != domain.AlertOpen {
			t.Errorf("Status = %v, want OPEN", got.Status)
		}
		if got.Verdict.ID != "v-001" || got.Verdict.Level != domain.RiskHigh {
			t.Errorf("verdict snapshot not preserved: %+v", got.Verdict)
		}
		if got.ReviewedAt != nil || got.ResolvedAt != nil {
			t.Errorf("open alert should have no review timestamps: %+v", got)
		}
	})

	t.Run("UpdateTransition", func(t *testing.T) {
		got, err := repo.GetAlert(ctx, tenantID, "a-001")
		if err != nil {
			t.Fatal(err)
		}
		if err := got.Review("checked with cardholder"); err != nil {
			t.Fatal(err)
		}
		if err := repo.UpdateAlert(ctx, tenantID, got); err != nil {
			t.Fatalf("UpdateAlert failed: %v", err)
		}

		updated, err := repo.GetAlert(ctx, tenantID, "a-001")
		if err != nil {
			t.Fatal(err)
		}
		if updated.Status != domain.AlertReviewed {
			t.Errorf("Status = %v, want REVIEWED", updated.Status)
		}
		if updated.Notes != "checked with cardholder" {
			t.Errorf("Notes = %q", updated.Notes)
		}
		if updated.ReviewedAt == nil {
			t.Error("ReviewedAt should be set after review")
		}
	})

	t.Run("UpdateUnknownAlert", func(t *testing.T) {
		missing := &domain.FraudAlert{ID: "nope", Status: domain.AlertReviewed}
		if err := repo.UpdateAlert(ctx, tenantID, missing); err != ErrNotFound {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
	})

	t.Run("ListByStatus", func(t *testing.T) {
		second := &domain.FraudAlert{
			ID:        "a-002",
			TxID:      "tx-002",
			UserID:    "user-002",
			Status:    domain.AlertOpen,
			Verdict:   domain.RiskVerdict{ID: "v-002", Level: domain.RiskHigh},
			CreatedAt: time.Now().UTC(),
		}
		if err := repo.SaveAlert(ctx, tenantID, second); err != nil {
			t.Fatal(err)
		}

		open, err := repo.ListAlertsByStatus(ctx, tenantID, domain.AlertOpen, 50)
		if err != nil {
			t.Fatalf("ListAlertsByStatus failed: %v", err)
		}
		if len(open) != 1 || open[0].ID != "a-002" {
			t.Errorf("open alerts = %v, want only a-002", open)
		}

		all, err := repo.ListAlertsByStatus(ctx, tenantID, "", 50)
		if err != nil {
			t.Fatal(err)
		}
		if len(all) != 2 {
			t.Errorf("all alerts = %d, want 2", len(all))
		}
	})
}

func TestProfilePersistence(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	tenantID := "tenant-001"

	t.Run("UnknownUserNotFound", func(t *testing.T) {
		if _, err := repo.GetProfile(ctx, tenantID, "nobody"); err != ErrNotFound {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
	})

	t.Run("UpsertRoundTrip", func(t *testing.T) {
		profile := domain.NewUserProfile("user-001")
		for i := 0; i < 3; i++ {
			profile = profile.Observe(&domain.Transaction{
				UserID:           "user-001",
				Amount:           float64(100 + i),
				MerchantLocation: domain.Coordinate{Lat: 6.9, Lon: 79.8},
				Timestamp:        time.Now().UTC(),
			})
		}

		if err := repo.SaveProfile(ctx, tenantID, profile); err != nil {
			t.Fatalf("SaveProfile failed: %v", err)
		}

		got, err := repo.GetProfile(ctx, tenantID, "user-001")
		if err != nil {
			t.Fatalf("GetProfile failed: %v", err)
		}
		if got.Size() != 3 || got.Version != 3 {
			t.Errorf("profile = size %d version %d, want 3/3", got.Size(), got.Version)
		}

		// Second save must replace, not duplicate.
		updated := profile.Observe(&domain.Transaction{
			UserID:    "user-001",
			Amount:    500,
			Timestamp: time.Now().UTC(),
		})
		if err := repo.SaveProfile(ctx, tenantID, updated); err != nil {
			t.Fatalf("SaveProfile upsert failed: %v", err)
		}

		got, err = repo.GetProfile(ctx, tenantID, "user-001")
		if err != nil {
			t.Fatal(err)
		}
		if got.Size() != 4 || got.Version != 4 {
			t.Errorf("after upsert: size %d version %d, want 4/4", got.Size(), got.Version)
		}
	})

	t.Run("ProfileTenantIsolation", func(t *testing.T) {
		if _, err := repo.GetProfile(ctx, "other-tenant", "user-001"); err != ErrNotFound {
			t.Errorf("expected ErrNotFound for other tenant, got: %v", err)
		}
	})
}
