package config

import (
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/rcm")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8000" {
		t.Errorf("port: got %q", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Errorf("env: got %q", cfg.Env)
	}
	if cfg.DefaultHospital != "default" {
		t.Errorf("default hospital: got %q", cfg.DefaultHospital)
	}
	if cfg.DBMaxConns != 20 || cfg.DBMinConns != 5 {
		t.Errorf("pool sizes: %d/%d", cfg.DBMaxConns, cfg.DBMinConns)
	}
	if cfg.RateLimitRPS != 100 || cfg.RateLimitBurst != 200 {
		t.Errorf("rate limit: %f/%d", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
}

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error without DATABASE_URL")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/rcm")
	t.Setenv("PORT", "9090")
	t.Setenv("DEFAULT_HOSPITAL", "apollo_main")
	t.Setenv("CORS_ORIGINS", "https://a.example.com,https://b.example.com")
	t.Setenv("WORKFLOW_POLICY_FILE", "config/workflow_policy.yaml")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("port: got %q", cfg.Port)
	}
	if cfg.DefaultHospital != "apollo_main" {
		t.Errorf("default hospital: got %q", cfg.DefaultHospital)
	}
	if len(cfg.CORSOrigins) != 2 {
		t.Errorf("cors origins: %v", cfg.CORSOrigins)
	}
	if cfg.PolicyFile != "config/workflow_policy.yaml" {
		t.Errorf("policy file: got %q", cfg.PolicyFile)
	}
}

func TestValidate_DevSkipsAuthChecks(t *testing.T) {
	cfg := &Config{Env: "development"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidate_ProductionNeedsVerifier(t *testing.T) {
	cfg := &Config{Env: "production"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error without JWKS or signing key")
	}

	cfg.AuthSigningKey = "hmac-secret"
	if err := cfg.Validate(); err != nil {
		t.Errorf("signing key should satisfy validation: %v", err)
	}
}

func TestValidate_JWKSNeedsIssuer(t *testing.T) {
	cfg := &Config{Env: "production", AuthJWKSURL: "https://idp.example.com/jwks"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error without issuer")
	}

	cfg.AuthIssuer = "https://idp.example.com"
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
