package invoicing

import (
	"context"
	"errors"

	"github.com/chantier/backend/internal/domain/invoicing"
	"github.com/chantier/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TemplateService handles invoice template administration
type TemplateService struct {
	templateRepo   invoicing.TemplateRepository
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// NewTemplateService creates a new TemplateService
func NewTemplateService(templateRepo invoicing.TemplateRepository, logger *zap.Logger) *TemplateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TemplateService{
		templateRepo: templateRepo,
		logger:       logger,
	}
}

// SetEventPublisher sets the publisher for template events
func (s *TemplateService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// Create creates a template; with is_default the previous default of the
// type is cleared in the same transaction.
func (s *TemplateService) Create(ctx context.Context, req CreateTemplateRequest) (*TemplateResponse, error) {
	tpl, err := invoicing.NewTemplate(req.Name, invoicing.Type(req.Type), invoicing.FileType(req.FileType), req.Content)
	if err != nil {
		return nil, err
	}
	if req.IsDefault {
		if err := tpl.MarkDefault(); err != nil {
			return nil, err
		}
	}
	if err := s.templateRepo.Save(ctx, tpl); err != nil {
		return nil, err
	}

	s.logger.Info("invoice template created",
		zap.String("template_id", tpl.ID.String()),
		zap.String("type", tpl.Type.String()),
		zap.Bool("is_default", tpl.IsDefault))

	s.publish(ctx, tpl)
	resp := ToTemplateResponse(tpl)
	return &resp, nil
}

// Update edits a template. Deactivation is refused while it is the default.
func (s *TemplateService) Update(ctx context.Context, id uuid.UUID, req UpdateTemplateRequest) (*TemplateResponse, error) {
	tpl, err := s.templateRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := tpl.Update(req.Name, invoicing.Type(req.Type), invoicing.FileType(req.FileType), req.Content); err != nil {
		return nil, err
	}
	if req.IsActive != nil {
		if *req.IsActive {
			tpl.Activate()
		} else if err := tpl.Deactivate(); err != nil {
			return nil, err
		}
	}
	if req.IsDefault != nil && *req.IsDefault {
		if err := tpl.MarkDefault(); err != nil {
			return nil, err
		}
	}
	if req.IsDefault != nil && !*req.IsDefault && tpl.IsDefault {
		return nil, shared.NewDomainError("INVALID_STATE", "Set another template as default instead of unsetting this one")
	}
	if err := s.templateRepo.Save(ctx, tpl); err != nil {
		return nil, err
	}

	s.publish(ctx, tpl)
	resp := ToTemplateResponse(tpl)
	return &resp, nil
}

// SetDefault makes the template its type's only default
func (s *TemplateService) SetDefault(ctx context.Context, id uuid.UUID) (*TemplateResponse, error) {
	tpl, err := s.templateRepo.SetDefault(ctx, id)
	if err != nil {
		return nil, err
	}

	s.logger.Info("default invoice template switched",
		zap.String("template_id", tpl.ID.String()),
		zap.String("type", tpl.Type.String()))

	s.publish(ctx, tpl)
	resp := ToTemplateResponse(tpl)
	return &resp, nil
}

// Deactivate hides a template from binding
func (s *TemplateService) Deactivate(ctx context.Context, id uuid.UUID) (*TemplateResponse, error) {
	tpl, err := s.templateRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := tpl.Deactivate(); err != nil {
		return nil, err
	}
	if err := s.templateRepo.Save(ctx, tpl); err != nil {
		return nil, err
	}
	resp := ToTemplateResponse(tpl)
	return &resp, nil
}

// GetByID retrieves a template by ID
func (s *TemplateService) GetByID(ctx context.Context, id uuid.UUID) (*TemplateResponse, error) {
	tpl, err := s.templateRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToTemplateResponse(tpl)
	return &resp, nil
}

// List retrieves templates
func (s *TemplateService) List(ctx context.Context, filter TemplateListFilter) ([]TemplateResponse, int64, error) {
	base := shared.Filter{Page: filter.Page, PageSize: filter.PageSize, OrderBy: "name", OrderDir: "asc"}
	templates, total, err := s.templateRepo.FindAll(ctx, invoicing.TemplateFilter{
		Filter:     base.Normalize(),
		Type:       invoicing.Type(filter.Type),
		ActiveOnly: filter.ActiveOnly,
	})
	if err != nil {
		return nil, 0, err
	}
	out := make([]TemplateResponse, len(templates))
	for i := range templates {
		out[i] = ToTemplateResponse(&templates[i])
	}
	return out, total, nil
}

// TemplateSeed is a built-in template installed for a type without a default
type TemplateSeed struct {
	Name     string
	Type     string
	FileType string
	Content  string
}

// EnsureDefaults installs each seed as the default of its type when the type
// has none yet. It returns how many templates were created.
func (s *TemplateService) EnsureDefaults(ctx context.Context, seeds []TemplateSeed) (int, error) {
	created := 0
	for _, seed := range seeds {
		_, err := s.templateRepo.FindDefault(ctx, invoicing.Type(seed.Type))
		if err == nil {
			continue
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return created, err
		}
		_, err = s.Create(ctx, CreateTemplateRequest{
			Name:      seed.Name,
			Type:      seed.Type,
			FileType:  seed.FileType,
			Content:   seed.Content,
			IsDefault: true,
		})
		if err != nil {
			// another instance seeded the same type first
			if errors.Is(err, shared.ErrConcurrencyConflict) {
				if _, findErr := s.templateRepo.FindDefault(ctx, invoicing.Type(seed.Type)); findErr == nil {
					continue
				}
			}
			return created, err
		}
		created++
	}
	return created, nil
}

func (s *TemplateService) publish(ctx context.Context, tpl *invoicing.Template) {
	events := tpl.PullDomainEvents()
	if s.eventPublisher == nil || len(events) == 0 {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("failed to publish template events", zap.Error(err))
	}
}
