package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/satriahrh/lifeline/domain/entities"
	"github.com/satriahrh/lifeline/domain/repositories"
	"github.com/satriahrh/lifeline/internal/checklist"
	"github.com/satriahrh/lifeline/internal/protocols"
)

// ChecklistService starts the non-conversational checklist mode
type ChecklistService struct {
	classifier repositories.Classifier
	registry   *protocols.Registry
	logger     *zap.Logger
}

func NewChecklistService(classifier repositories.Classifier, registry *protocols.Registry, logger *zap.Logger) *ChecklistService {
	if registry == nil {
		registry = protocols.Default()
	}
	return &ChecklistService{classifier: classifier, registry: registry, logger: logger}
}

// Start classifies the description and opens its checklist. When
// classification fails, or yields no registered protocol, a fallback
// checklist is used.
func (s *ChecklistService) Start(ctx context.Context, description string, speaker checklist.Speaker) *checklist.Navigator {
	return checklist.NewNavigator(s.resolve(ctx, description), speaker)
}

func (s *ChecklistService) resolve(ctx context.Context, description string) *entities.Protocol {
	if s.classifier == nil {
		return s.registry.Fallback(protocols.FallbackUnavailable)
	}

	label, err := s.classifier.Classify(ctx, description)
	if err != nil {
		s.logger.Warn("Checklist classification failed", zap.Error(err))
		return s.registry.Fallback(protocols.FallbackUnavailable)
	}

	if p, ok := s.registry.Lookup(label); ok {
		return p
	}

	s.logger.Info("No protocol for label, using general checklist", zap.String("label", label))
	return s.registry.Fallback(protocols.FallbackGeneral)
}
