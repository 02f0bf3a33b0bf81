package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID":   "msq-dev",
		"API_STORAGE_IMAGES_BUCKET": "marketsquare-images-dev",
	}

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Firestore.ProjectID != "msq-dev" {
		t.Errorf("expected firestore project to default to firebase project, got %s", cfg.Firestore.ProjectID)
	}
	if cfg.Jobs.ProjectID != "msq-dev" {
		t.Errorf("expected jobs project to default to firebase project, got %s", cfg.Jobs.ProjectID)
	}
	if cfg.RateLimits.DefaultPerMinute != 120 {
		t.Errorf("unexpected default rate limit: %d", cfg.RateLimits.DefaultPerMinute)
	}
	if cfg.Session.CookieName != defaultSessionCookieName {
		t.Errorf("expected default session cookie name, got %s", cfg.Session.CookieName)
	}
	if cfg.Session.TTL != defaultSessionTTL {
		t.Errorf("unexpected default session ttl: %s", cfg.Session.TTL)
	}
	if !cfg.Session.Secure {
		t.Error("expected session cookie to default to secure")
	}
	if cfg.Catalog.DefaultPageSize != defaultPageSize {
		t.Errorf("unexpected default page size: %d", cfg.Catalog.DefaultPageSize)
	}
	if cfg.PSP.CheckoutSessionTTL != defaultCheckoutSessionTTL {
		t.Errorf("unexpected checkout session ttl: %s", cfg.PSP.CheckoutSessionTTL)
	}
	if cfg.Security.Environment != "local" {
		t.Errorf("expected default security environment local, got %s", cfg.Security.Environment)
	}
	if cfg.Security.OIDC.JWKSURL != defaultOIDCJWKSURL {
		t.Errorf("expected default jwks url %s, got %s", defaultOIDCJWKSURL, cfg.Security.OIDC.JWKSURL)
	}
	if len(cfg.Security.OIDC.Issuers) != 1 {
		t.Errorf("expected default issuers, got %v", cfg.Security.OIDC.Issuers)
	}
}

func TestLoadWithOverridesAndSecrets(t *testing.T) {
	env := map[string]string{
		"API_SERVER_PORT":               "9090",
		"API_SERVER_READ_TIMEOUT":       "20s",
		"API_SERVER_WRITE_TIMEOUT":      "25s",
		"API_SERVER_IDLE_TIMEOUT":       "2m",
		"API_FIREBASE_PROJECT_ID":       "msq-prod",
		"API_FIRESTORE_PROJECT_ID":      "msq-fire",
		"API_STORAGE_IMAGES_BUCKET":     "images-prod",
		"API_STORAGE_PUBLIC_BASE_URL":   "https://cdn.example.com",
		"API_PSP_STRIPE_API_KEY":        "secret://stripe/api",
		"API_PSP_SUCCESS_URL":           "https://shop.example.com/checkout/success",
		"API_PSP_CANCEL_URL":            "https://shop.example.com/cart",
		"API_PSP_CHECKOUT_SESSION_TTL":  "45m",
		"API_SESSION_SIGNING_KEY":       "secret://session/key",
		"API_SESSION_COOKIE_NAME":       "shop_session",
		"API_SESSION_TTL":               "168h",
		"API_SESSION_SECURE":            "false",
		"API_JOBS_PROJECT_ID":           "msq-jobs",
		"API_JOBS_ORDER_EVENT_TOPIC":    "order-events",
		"API_CATALOG_DEFAULT_PAGE_SIZE": "24",
		"API_CATALOG_MAX_PAGE_SIZE":     "50",
		"API_RATELIMIT_DEFAULT_PER_MIN": "150",
		"API_RATELIMIT_AUTH_PER_MIN":    "300",
		"API_SECURITY_ENVIRONMENT":      "prod",
		"API_SECURITY_OIDC_AUDIENCE":    "https://service.example.com",
		"API_SECURITY_OIDC_ISSUERS":     "https://accounts.google.com, https://cloud.google.com/iap",
		"API_SECURITY_OIDC_JWKS_URL":    "https://example.com/jwks.json",
	}

	secrets := map[string]string{
		"secret://stripe/api":  "stripe-key",
		"secret://session/key": "session-signing-key",
	}

	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if v, ok := secrets[ref]; ok {
			return v, nil
		}
		return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
	})

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""), WithSecretResolver(resolver))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Server.IdleTimeout != 2*time.Minute {
		t.Errorf("unexpected idle timeout: %s", cfg.Server.IdleTimeout)
	}
	if cfg.Firestore.ProjectID != "msq-fire" {
		t.Errorf("unexpected firestore project %s", cfg.Firestore.ProjectID)
	}
	if cfg.PSP.StripeAPIKey != "stripe-key" {
		t.Errorf("expected resolved stripe api key, got %s", cfg.PSP.StripeAPIKey)
	}
	if cfg.PSP.CheckoutSessionTTL != 45*time.Minute {
		t.Errorf("unexpected checkout session ttl %s", cfg.PSP.CheckoutSessionTTL)
	}
	if cfg.Session.SigningKey != "session-signing-key" {
		t.Errorf("expected resolved session signing key, got %s", cfg.Session.SigningKey)
	}
	if cfg.Session.CookieName != "shop_session" {
		t.Errorf("unexpected cookie name %s", cfg.Session.CookieName)
	}
	if cfg.Session.TTL != 168*time.Hour {
		t.Errorf("unexpected session ttl %s", cfg.Session.TTL)
	}
	if cfg.Session.Secure {
		t.Error("expected session secure flag disabled")
	}
	if cfg.Jobs.ProjectID != "msq-jobs" {
		t.Errorf("unexpected jobs project %s", cfg.Jobs.ProjectID)
	}
	if cfg.Jobs.OrderEventTopic != "order-events" {
		t.Errorf("unexpected order event topic %s", cfg.Jobs.OrderEventTopic)
	}
	if cfg.Catalog.DefaultPageSize != 24 || cfg.Catalog.MaxPageSize != 50 {
		t.Errorf("unexpected catalog paging config %+v", cfg.Catalog)
	}
	if cfg.Security.Environment != "prod" {
		t.Errorf("expected security environment prod, got %s", cfg.Security.Environment)
	}
	if cfg.Security.OIDC.Audience != "https://service.example.com" {
		t.Errorf("unexpected oidc audience %s", cfg.Security.OIDC.Audience)
	}
	if cfg.Security.OIDC.JWKSURL != "https://example.com/jwks.json" {
		t.Errorf("unexpected jwks url %s", cfg.Security.OIDC.JWKSURL)
	}
	if len(cfg.Security.OIDC.Issuers) != 2 {
		t.Errorf("unexpected issuers %v", cfg.Security.OIDC.Issuers)
	}
}

func TestLoadOIDCAudiencePerEnvironment(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID":     "msq-dev",
		"API_STORAGE_IMAGES_BUCKET":   "images",
		"API_SECURITY_ENVIRONMENT":    "staging",
		"API_SECURITY_OIDC_AUDIENCES": "staging=https://staging.example.com,prod=https://prod.example.com",
	}

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Security.OIDC.Audience != "https://staging.example.com" {
		t.Fatalf("expected environment-mapped audience, got %s", cfg.Security.OIDC.Audience)
	}
}

func TestLoadDotEnvFallback(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "API_SERVER_PORT=7070\nAPI_FIREBASE_PROJECT_ID=msq-dot\nAPI_STORAGE_IMAGES_BUCKET=images-dot\n"
	if err := os.WriteFile(envPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write dotenv file: %v", err)
	}

	cfg, err := Load(context.Background(), WithEnvFile(envPath), WithoutSystemEnv())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "7070" {
		t.Errorf("expected port from dotenv 7070, got %s", cfg.Server.Port)
	}
	if cfg.Firebase.ProjectID != "msq-dot" {
		t.Errorf("expected firebase project from dotenv, got %s", cfg.Firebase.ProjectID)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	_, err := Load(context.Background(), WithEnvMap(map[string]string{}), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	if _, ok := err.(*ValidationError); !ok {
		t.Fatalf("expected ValidationError, got %T", err)
	}
}

func TestLoadSecretResolverError(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID":   "msq-dev",
		"API_STORAGE_IMAGES_BUCKET": "images",
		"API_PSP_STRIPE_API_KEY":    "secret://missing",
	}

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected secret resolution error, got nil")
	}
	var secretErr *SecretError
	if !errors.As(err, &secretErr) {
		t.Fatalf("expected SecretError, got %T", err)
	}
	if secretErr.Ref != "secret://missing" {
		t.Errorf("unexpected secret ref %s", secretErr.Ref)
	}
}

func TestEnvironmentValuesMergesSources(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "API_FIREBASE_PROJECT_ID=dot-project\nAPI_SECRET_FALLBACK_FILE=.dot.local\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("failed writing env file: %v", err)
	}

	t.Setenv("API_FIREBASE_PROJECT_ID", "os-project")
	t.Setenv("API_SECRET_PROJECT_IDS", "prod=project-prod")

	overrides := map[string]string{
		"API_FIREBASE_PROJECT_ID": "override-project",
		"API_SECRET_VERSION_PINS": "secret://stripe/api=5",
	}

	values, err := EnvironmentValues(WithEnvFile(envPath), WithEnvMap(overrides))
	if err != nil {
		t.Fatalf("EnvironmentValues returned error: %v", err)
	}

	if got := values["API_FIREBASE_PROJECT_ID"]; got != "override-project" {
		t.Fatalf("expected override project, got %s", got)
	}
	if got := values["API_SECRET_FALLBACK_FILE"]; got != ".dot.local" {
		t.Fatalf("expected dotenv fallback file, got %s", got)
	}
	if got := values["API_SECRET_PROJECT_IDS"]; got != "prod=project-prod" {
		t.Fatalf("expected system env project map, got %s", got)
	}
	if got := values["API_SECRET_VERSION_PINS"]; got != "secret://stripe/api=5" {
		t.Fatalf("expected override version pin, got %s", got)
	}
}

func TestLoadMissingRequiredSecrets(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID":   "msq-dev",
		"API_STORAGE_IMAGES_BUCKET": "images",
	}

	_, err := Load(context.Background(),
		WithEnvMap(env),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithRequiredSecrets("Session.SigningKey"),
	)
	if err == nil {
		t.Fatal("expected missing secrets error, got nil")
	}
	var missing *MissingSecretsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingSecretsError, got %T", err)
	}
	if got := missing.Names(); len(got) != 1 || got[0] != "Session.SigningKey" {
		t.Fatalf("unexpected missing secret names %v", got)
	}
}

func TestLoadSupportsLegacySecretScheme(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID":   "msq-dev",
		"API_STORAGE_IMAGES_BUCKET": "images",
		"API_SESSION_SIGNING_KEY":   "sm://session/key",
	}

	secrets := map[string]string{
		"secret://session/key": "legacy-secret",
	}

	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if v, ok := secrets[ref]; ok {
			return v, nil
		}
		return "", &SecretError{Ref: ref, Err: errors.New("not found")}
	})

	cfg, err := Load(context.Background(),
		WithEnvMap(env),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithSecretResolver(resolver),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Session.SigningKey != "legacy-secret" {
		t.Fatalf("expected legacy secret, got %s", cfg.Session.SigningKey)
	}
}
