package main

import (
	"context"
	"fmt"

	"github.com/ShayCichocki/relay/internal/agent"
	"github.com/ShayCichocki/relay/internal/artifacts"
	"github.com/ShayCichocki/relay/internal/config"
	iexec "github.com/ShayCichocki/relay/internal/exec"
	"github.com/ShayCichocki/relay/internal/orchestrator"
	"github.com/ShayCichocki/relay/internal/state"
)

type debugLogSetter interface {
	SetDebugLog(fn func(format string, args ...any))
}

// buildRegistry registers every built-in backend configured from cfg.
func buildRegistry(cfg *config.Config, logger *orchestrator.DebugLogger) *agent.Registry {
	runner := iexec.NewRunner()
	reg := agent.NewRegistry(
		agent.NewClaudeAdapter(cfg.ClaudeSettings()),
		agent.NewCodexAdapter(cfg.CodexSettings(), runner),
		agent.NewGeminiAdapter(cfg.GeminiSettings(), runner),
		agent.NewMockAdapter(cfg.Mock.Delay),
	)
	for _, a := range reg.List() {
		if s, ok := a.(debugLogSetter); ok {
			s.SetDebugLog(logger.Func())
		}
	}
	return reg
}

// openArtifacts returns the local store, teed to S3 when a bucket is set.
func openArtifacts(ctx context.Context, cfg *config.Config, workspace string) (orchestrator.Persister, error) {
	files := artifacts.NewFileStore(cfg.ArtifactsDir(workspace))
	if err := files.Ensure(); err != nil {
		return nil, err
	}
	if cfg.Artifacts.S3Bucket == "" {
		return files, nil
	}

	s3, err := artifacts.NewS3Store(ctx, cfg.Artifacts.S3Bucket, cfg.Artifacts.S3Prefix, cfg.Artifacts.S3Region)
	if err != nil {
		return nil, fmt.Errorf("open s3 artifacts: %w", err)
	}
	return artifacts.Tee{files, s3}, nil
}

// openState opens and migrates the run history database for workspace.
func openState(cfg *config.Config, workspace string) (*state.DB, error) {
	db, err := state.Open(cfg.StatePath(workspace))
	if err != nil {
		return nil, fmt.Errorf("open state database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}

// loadConfig loads config and exports configured keys for the backends.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	config.ApplySecrets(cfg)
	return cfg, nil
}
