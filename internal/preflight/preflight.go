package preflight

import (
	"context"

	"glass/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// minFreeBytes is the free space required on the data volume. Extracted
// frames and audio for a long recording easily reach several gigabytes.
const minFreeBytes uint64 = 2 << 30

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckFreeSpace("Data volume", cfg.Paths.DataDir, minFreeBytes),
	}
	if cfg.Paths.LogDir != "" {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}

	for _, status := range CheckSystemDeps(cfg) {
		result := Result{Name: status.Name, Passed: status.Satisfied(), Detail: status.Path}
		if !status.Available {
			result.Detail = status.Detail
			if status.Optional {
				result.Detail += " (optional)"
			}
		}
		results = append(results, result)
	}

	if cfg.SpeechToText.Provider == config.ProviderRemote {
		results = append(results, CheckRemoteSpeech(cfg))
	}
	if cfg.Embedding.Enabled {
		results = append(results, CheckEmbedding(ctx, cfg.Embedding.BaseURL, cfg.Embedding.APIKey))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, result := range results {
		if !result.Passed {
			failed = append(failed, result)
		}
	}
	return failed
}
