package service

import (
	"context"

	"go-fundo-ops/internal/apperr"
	"go-fundo-ops/internal/classifier"
	"go-fundo-ops/internal/kardex"
	"go-fundo-ops/internal/model"

	"go.uber.org/zap"
)

type RiskService interface {
	Assess(ctx context.Context, features []float64) (*RiskAssessment, error)
}

type RiskAssessment struct {
	Class          int                     `json:"class"`
	Level          string                  `json:"level"`
	Recommendation string                  `json:"recommendation"`
	Products       []kardex.ProductBalance `json:"products"`
}

var riskAdvice = map[classifier.Class]struct {
	text       string
	categories []model.Category
}{
	classifier.Low: {
		text: "Low mildew risk. Keep the regular monitoring schedule.",
	},
	classifier.Medium: {
		text:       "Medium mildew risk. Plan a preventive fungicide application in the coming days.",
		categories: []model.Category{model.CategoryFungicide},
	},
	classifier.High: {
		text:       "High mildew risk. Apply a curative or eradicant fungicide with adjuvant as soon as possible.",
		categories: []model.Category{model.CategoryFungicide, model.CategoryAdjuvant},
	},
}

type riskService struct {
	model  *classifier.Model
	stock  KardexService
	logger *zap.Logger
}

// NewRiskService holds m read-only for the life of the process.
func NewRiskService(m *classifier.Model, stock KardexService, logger *zap.Logger) RiskService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &riskService{model: m, stock: stock, logger: logger}
}

func (s *riskService) Assess(ctx context.Context, features []float64) (*RiskAssessment, error) {
	class, err := s.model.Classify(features)
	if err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}
	advice := riskAdvice[class]

	products := []kardex.ProductBalance{}
	if len(advice.categories) > 0 {
		balances, err := s.stock.StockByProduct(ctx)
		if err != nil {
			return nil, err
		}
		wanted := make(map[model.Category]bool, len(advice.categories))
		for _, c := range advice.categories {
			wanted[c] = true
		}
		for _, b := range balances {
			if wanted[b.Category] {
				products = append(products, b)
			}
		}
	}

	s.logger.Debug("risk assessed", zap.String("level", class.String()), zap.Int("products", len(products)))
	return &RiskAssessment{
		Class:          int(class),
		Level:          class.String(),
		Recommendation: advice.text,
		Products:       products,
	}, nil
}
