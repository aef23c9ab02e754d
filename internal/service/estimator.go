// Package service contains the core business logic: estimating the raw
// materials of a device, assembling the device report and detecting a device
// from a photo.
package service

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fleveque/crm-service/internal/llm"
	"github.com/fleveque/crm-service/internal/materials"
	"github.com/fleveque/crm-service/internal/model"
	"github.com/fleveque/crm-service/internal/parser"
	"github.com/fleveque/crm-service/internal/provider"
)

// MaterialEstimator asks the LLM, once per material, how much of it a device
// contains. Queries run concurrently; the estimator itself never fails.
type MaterialEstimator struct {
	list           materials.List
	completer      provider.Completer
	maxConcurrency int
	logger         *zap.Logger
}

// NewMaterialEstimator creates an estimator. maxConcurrency caps in-flight
// queries; 0 starts one goroutine per material.
func NewMaterialEstimator(list materials.List, completer provider.Completer, maxConcurrency int, logger *zap.Logger) *MaterialEstimator {
	return &MaterialEstimator{
		list:           list,
		completer:      completer,
		maxConcurrency: maxConcurrency,
		logger:         logger,
	}
}

// EstimateAll returns one estimate per material, in material-list order.
//
// Every goroutine writes only results[i], so the slice needs no lock; the
// errgroup join is the only synchronization point. Goroutines always return
// nil so one failed query never cancels its siblings.
func (e *MaterialEstimator) EstimateAll(ctx context.Context, deviceID string) []model.MaterialEstimate {
	results := make([]model.MaterialEstimate, e.list.Len())

	var g errgroup.Group
	if e.maxConcurrency > 0 {
		g.SetLimit(e.maxConcurrency)
	}

	for i := range results {
		q := model.MaterialQuery{MaterialID: e.list.At(i), DeviceID: deviceID}
		g.Go(func() error {
			results[i] = e.estimate(ctx, q)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (e *MaterialEstimator) estimate(ctx context.Context, q model.MaterialQuery) model.MaterialEstimate {
	raw, err := e.completer.Complete(ctx, llm.PromptMaterialAmount, q.Vars())
	if err != nil {
		e.logger.Warn("material query failed",
			zap.String("material", q.MaterialID),
			zap.String("device", q.DeviceID),
			zap.String("kind", llm.Kind(err)),
			zap.Error(err),
		)
		return model.InvalidEstimate(q.MaterialID)
	}

	amount, err := parser.ParseMaterialAmount(raw)
	if err != nil {
		e.logger.Warn("material answer rejected",
			zap.String("material", q.MaterialID),
			zap.String("device", q.DeviceID),
			zap.Error(err),
		)
		return model.InvalidEstimate(q.MaterialID)
	}

	return model.MaterialEstimate{MaterialID: q.MaterialID, AmountGrams: amount, Valid: true}
}
