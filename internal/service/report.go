package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/fleveque/crm-service/internal/llm"
	"github.com/fleveque/crm-service/internal/model"
	"github.com/fleveque/crm-service/internal/parser"
	"github.com/fleveque/crm-service/internal/provider"
)

// ReportService assembles a DeviceReport from the material estimates, the
// CO2 query and the commercial-info query.
type ReportService struct {
	estimator *MaterialEstimator
	completer provider.Completer
	logger    *zap.Logger
}

// NewReportService creates a report service.
func NewReportService(estimator *MaterialEstimator, completer provider.Completer, logger *zap.Logger) *ReportService {
	return &ReportService{
		estimator: estimator,
		completer: completer,
		logger:    logger,
	}
}

// BuildReport runs the three parts of the report concurrently. It always
// returns a report: a failed CO2 query leaves CO2Kg nil and a failed
// commercial query reports both fields as model.Unknown.
func (s *ReportService) BuildReport(ctx context.Context, deviceID string) *model.DeviceReport {
	var (
		wg         sync.WaitGroup
		estimates  []model.MaterialEstimate
		co2        *float64
		commercial model.CommercialInfo
	)

	// Each goroutine owns exactly one of the variables above.
	wg.Add(3)
	go func() {
		defer wg.Done()
		estimates = s.estimator.EstimateAll(ctx, deviceID)
	}()
	go func() {
		defer wg.Done()
		co2 = s.co2(ctx, deviceID)
	}()
	go func() {
		defer wg.Done()
		commercial = s.commercialInfo(ctx, deviceID)
	}()
	wg.Wait()

	report := &model.DeviceReport{
		DeviceID:       deviceID,
		Materials:      estimates,
		CO2Kg:          co2,
		Manufacturer:   commercial.Manufacturer,
		CommercialName: commercial.CommercialName,
	}

	s.logger.Info("device report built",
		zap.String("device", deviceID),
		zap.Int("valid", report.ValidCount()),
		zap.Int("invalid", report.InvalidCount()),
		zap.Float64("total_grams", report.TotalMassGrams()),
		zap.Bool("co2_known", co2 != nil),
	)

	return report
}

func (s *ReportService) co2(ctx context.Context, deviceID string) *float64 {
	raw, err := s.completer.Complete(ctx, llm.PromptCO2, map[string]string{"device": deviceID})
	if err == nil {
		var kg float64
		if kg, err = parser.ParseCO2(raw); err == nil {
			return &kg
		}
	}

	s.logger.Warn("co2 query failed",
		zap.String("device", deviceID),
		zap.String("kind", llm.Kind(err)),
		zap.Error(err),
	)
	return nil
}

func (s *ReportService) commercialInfo(ctx context.Context, deviceID string) model.CommercialInfo {
	raw, err := s.completer.Complete(ctx, llm.PromptCommercialInfo, map[string]string{"device": deviceID})
	if err == nil {
		var info model.CommercialInfo
		if info, err = parser.ParseCommercialInfo(raw); err == nil {
			return info
		}
	}

	s.logger.Warn("commercial info query failed",
		zap.String("device", deviceID),
		zap.String("kind", llm.Kind(err)),
		zap.Error(err),
	)
	return model.UnknownCommercialInfo()
}
