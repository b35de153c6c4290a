package protect

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	detector := New()
	if len(detector.patterns) == 0 || len(detector.keywords) == 0 || len(detector.fileTypes) == 0 {
		t.Fatal("expected default rules to be loaded")
	}
	if Empty().IsProtected("internal/auth/login.go") {
		t.Error("expected empty detector to protect nothing")
	}
}

func TestDetector_PatternMatching(t *testing.T) {
	detector := New()

	tests := []struct {
		name     string
		path     string
		expected bool
	}{
		{"auth directory", "internal/auth/login.go", true},
		{"auth root", "auth/handler.go", true},
		{"git internals", ".git/config", true},
		{"relay state", ".relay/state.db", true},
		{"ci workflow", ".github/workflows/ci.yml", true},
		{"terraform", "infra/terraform/main.tf", true},
		{"k8s", "k8s/deployment.yaml", true},
		{"regular file", "internal/handler/api.go", false},
		{"test file", "internal/handler/api_test.go", false},
		{"docs", "docs/README.md", false},
		{"github but not workflows", ".github/CODEOWNERS", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := detector.IsProtected(tc.path)
			if result != tc.expected {
				t.Errorf("IsProtected(%q) = %v, expected %v", tc.path, result, tc.expected)
			}
		})
	}
}

func TestDetector_KeywordDetection(t *testing.T) {
	detector := New()

	tests := []struct {
		path     string
		expected bool
	}{
		{"utils/password_hash.go", true},
		{"config/secret_manager.go", true},
		{"pkg/credential_store.go", true},
		{"api/oauth_handler.go", true},
		{"access/rbac_policy.go", true},
		{"internal/PASSWORD_RESET.go", true},
		{"internal/user_handler.go", false},
		{"services/order_service.go", false},
	}

	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			result := detector.IsProtected(tc.path)
			if result != tc.expected {
				t.Errorf("IsProtected(%q) = %v, expected %v", tc.path, result, tc.expected)
			}
		})
	}
}

func TestDetector_FileTypeDetection(t *testing.T) {
	detector := New()

	tests := []struct {
		path     string
		expected bool
	}{
		{"db/schema.sql", true},
		{"deploy/main.tf", true},
		{"server.pem", true},
		{".env", true},
		{"config/.env", true},
		{"db/SCHEMA.SQL", true},
		{"main.go", false},
		{"config/app.yaml", false},
		{"Makefile", false},
	}

	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			result := detector.IsProtected(tc.path)
			if result != tc.expected {
				t.Errorf("IsProtected(%q) = %v, expected %v", tc.path, result, tc.expected)
			}
		})
	}
}

func TestDetector_AddRules(t *testing.T) {
	detector := New()

	if detector.IsProtected("custom/special/file.go") {
		t.Error("expected custom path to not be protected initially")
	}
	detector.AddPattern("**/custom/**")
	if !detector.IsProtected("custom/special/file.go") {
		t.Error("expected custom path to be protected after adding pattern")
	}

	detector.AddKeyword("foobar")
	if !detector.IsProtected("internal/foobar_handler.go") {
		t.Error("expected foobar path to be protected after adding keyword")
	}

	detector.AddFileType("xyz")
	if !detector.IsProtected("config/app.xyz") {
		t.Error("expected .xyz file to be protected after adding file type")
	}
}

func TestDetector_Reason(t *testing.T) {
	protected, reason := New().IsProtectedWithReason("internal/auth/login.go")
	if !protected || !strings.Contains(reason, "**/auth/**") {
		t.Errorf("got protected=%v reason=%q", protected, reason)
	}
}

func TestDetector_PathNormalization(t *testing.T) {
	detector := New()

	tests := []struct {
		name     string
		path     string
		expected bool
	}{
		{"forward slashes", "internal/auth/login.go", true},
		{"backslashes", "internal\\auth\\login.go", true},
		{"leading dot", "./internal/auth/login.go", true},
		{"escapes workspace", "../elsewhere/main.go", true},
		{"dot dot inside", "internal/../main.go", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := detector.IsProtected(tc.path)
			if result != tc.expected {
				t.Errorf("IsProtected(%q) = %v, expected %v", tc.path, result, tc.expected)
			}
		})
	}
}

func TestDetector_CheckInWorkspace(t *testing.T) {
	// The workspace itself lives under a protected-looking directory.
	ws := filepath.Join(string(filepath.Separator), "home", "dev", "auth-service")
	detector := New()

	tests := []struct {
		path     string
		expected bool
	}{
		{filepath.Join(ws, "main.go"), false},
		{"main.go", false},
		{filepath.Join(ws, "db", "schema.sql"), true},
		{filepath.Join(string(filepath.Separator), "etc", "hosts"), true},
	}
	for _, tc := range tests {
		if got, reason := detector.CheckInWorkspace(ws, tc.path); got != tc.expected {
			t.Errorf("CheckInWorkspace(%q) = %v (%s), expected %v", tc.path, got, reason, tc.expected)
		}
	}
}
