// Command autograder wires the grading engine's composition root: the
// sandbox manager, the criteria/pool/preflight config loaders, and the
// staged pipeline. It is deliberately thin: the HTTP API, persistence,
// and AI feedback layers that would sit in front of this are external
// collaborators and are not built here.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"autograder/internal/config"
	"autograder/internal/grading/model"
	"autograder/internal/logging"
	"autograder/internal/pipeline"
	"autograder/internal/pipeline/steps"
	"autograder/internal/preflight"
	"autograder/internal/sandbox"
	"autograder/internal/template"
)

func main() {
	if err := godotenv.Load(); err != nil {
		// Nothing logged through zap yet; this is expected in most
		// deployments, which supply env vars directly.
	}
	logging.Init()
	defer logging.Sync()

	poolConfigPath := flag.String("pool-config", os.Getenv("SANDBOX_POOL_CONFIG"), "path to sandbox pool configuration YAML")
	preflightConfigPath := flag.String("preflight-config", os.Getenv("PREFLIGHT_CONFIG"), "path to preflight setup configuration YAML")
	flag.Parse()

	manager, setupCfg, err := bootstrap(*poolConfigPath, *preflightConfigPath)
	if err != nil {
		logging.S().Fatalw("bootstrap failed", "error", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	manager.Start(ctx)
	defer manager.Shutdown(context.Background())

	registry := template.NewRegistry()
	pl := buildPipeline(manager, registry, setupCfg)

	logging.S().Infow("grading engine ready", "languages", len(setupCfg), "pipeline_steps", pl.Len())

	<-ctx.Done()
	logging.S().Infow("shutting down")
}

// bootstrap loads sandbox pool and preflight configuration, falling back
// to built-in defaults when no path is configured, sweeps orphaned
// containers from a prior process, and constructs the manager.
func bootstrap(poolConfigPath, preflightConfigPath string) (*sandbox.Manager, preflight.SetupConfig, error) {
	poolCfg := sandbox.DefaultManagerConfig()
	if poolConfigPath != "" {
		loaded, err := config.LoadPoolConfig(poolConfigPath)
		if err != nil {
			return nil, nil, err
		}
		poolCfg = loaded
	}

	setupCfg := preflight.SetupConfig{}
	if preflightConfigPath != "" {
		loaded, err := config.LoadPreflightConfig(preflightConfigPath)
		if err != nil {
			return nil, nil, err
		}
		setupCfg = loaded
	}

	runtime, err := sandbox.NewDockerRuntime()
	if err != nil {
		return nil, nil, err
	}

	manager, err := sandbox.NewManager(context.Background(), poolCfg, runtime)
	if err != nil {
		return nil, nil, err
	}
	return manager, setupCfg, nil
}

// buildPipeline assembles the fixed BOOTSTRAP -> PRE_FLIGHT ->
// LOAD_TEMPLATE -> BUILD_TREE -> GRADE -> FEEDBACK -> FOCUS -> EXPORT
// pipeline. FEEDBACK and EXPORT are left without a Generator/Exporter
// here since both are external collaborators; a caller embedding this
// module supplies its own.
func buildPipeline(manager *sandbox.Manager, registry *template.Registry, setupCfg preflight.SetupConfig) *pipeline.Pipeline {
	return pipeline.New(
		&steps.PreFlightStep{Manager: manager, Config: setupCfg},
		&steps.LoadTemplateStep{Registry: registry},
		&steps.BuildTreeStep{},
		&steps.GradeStep{},
		&steps.FeedbackStep{},
		&steps.FocusStep{},
		&steps.ExportStep{},
	)
}

// gradeSubmission is the call shape an embedding HTTP/CLI layer uses:
// build a per-request BuildTreeStep/LoadTemplateStep bound to that
// submission's criteria and template name, run the pipeline, and
// synthesize the result.
func gradeSubmission(ctx context.Context, manager *sandbox.Manager, registry *template.Registry, setupCfg preflight.SetupConfig, sub *model.Submission, criteria model.CriteriaConfig, templateName string) pipeline.GradingResult {
	pl := pipeline.New(
		&steps.PreFlightStep{Manager: manager, Config: setupCfg},
		&steps.LoadTemplateStep{Registry: registry, TemplateName: templateName},
		&steps.BuildTreeStep{Criteria: criteria},
		&steps.GradeStep{},
		&steps.FeedbackStep{},
		&steps.FocusStep{},
		&steps.ExportStep{},
	)
	exec := pl.Run(ctx, sub)
	return pipeline.Synthesize(exec)
}
