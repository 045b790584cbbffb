package e2e

import (
	"encoding/json"
	"time"

	"github.com/arkhamforge/docintel/pkg/config"
	"github.com/arkhamforge/docintel/pkg/models"
	"github.com/arkhamforge/docintel/pkg/pipeline"
	"github.com/arkhamforge/docintel/pkg/worker"
)

// The functions below mirror cmd/docintel/bootstrap.go's stage-DAG
// wiring logic. They're duplicated rather than imported because
// cmd/docintel is package main and keeps them unexported; the harness
// needs the identical derivation so a scenario test exercises the same
// routing and completion semantics production does.

func dispatcherRoutesFrom(stages *config.StageRegistry) map[string][]worker.Route {
	all := stages.GetAll()
	routes := make(map[string][]worker.Route, len(all))
	for name, stage := range all {
		for _, next := range stage.NextStages {
			nextStage, err := stages.Get(next)
			if err != nil {
				continue
			}
			routes[name] = append(routes[name], worker.Route{NextStage: next, Pool: nextStage.Pool, Priority: 0})
		}
	}
	return routes
}

func minStaleThresholdFrom(pools *config.PoolRegistry) time.Duration {
	var min time.Duration
	for _, p := range pools.GetAll() {
		if min == 0 || p.StaleThreshold < min {
			min = p.StaleThreshold
		}
	}
	if min == 0 {
		min = 60 * time.Second
	}
	return min
}

func completionGroupsFrom(stages *config.StageRegistry) ([]pipeline.MandatoryGroup, string) {
	bySuccessor := make(map[string][]string)
	var optionalStage string

	for name, stage := range stages.GetAll() {
		if !stage.Mandatory {
			optionalStage = name
			continue
		}
		sig := ""
		for i, n := range stage.NextStages {
			if i > 0 {
				sig += ","
			}
			sig += n
		}
		bySuccessor[sig] = append(bySuccessor[sig], name)
	}

	groups := make([]pipeline.MandatoryGroup, 0, len(bySuccessor))
	for _, names := range bySuccessor {
		groups = append(groups, pipeline.MandatoryGroup(names))
	}
	return groups, optionalStage
}

func stageForPoolFrom(stages *config.StageRegistry, pool string) (string, *config.StageConfig) {
	for name, stage := range stages.GetAll() {
		if stage.Pool == pool {
			return name, stage
		}
	}
	return "", nil
}

func poolModelFromCfg(cfg *config.PoolConfig) models.Pool {
	return models.Pool{
		Name:           cfg.Name,
		ResourceTier:   models.ResourceTier(cfg.ResourceTier),
		MaxConcurrency: cfg.MaxConcurrency,
		JobTimeout:     cfg.JobTimeout,
	}
}

func jsonMarshalOCRPayload(documentID, filePath string) ([]byte, error) {
	return json.Marshal(pipeline.OCRPayload{DocumentID: documentID, FilePath: filePath})
}
