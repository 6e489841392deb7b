package templatex

import (
	"context"
	"time"

	"github.com/Abraxas-365/docfill/pkg/fieldx"
	"github.com/Abraxas-365/docfill/pkg/kernel"
	"github.com/Abraxas-365/docfill/pkg/logx"
)

// Service is the use-case layer over a Repository.
type Service struct {
	repo   Repository
	logger *logx.Logger
}

func NewService(repo Repository, logger *logx.Logger) *Service {
	if logger == nil {
		logger = logx.GetDefaultLogger()
	}
	return &Service{repo: repo, logger: logger}
}

func (s *Service) Create(ctx context.Context, name, markup string) (*Template, error) {
	t, err := NewTemplate(name, markup)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, *t); err != nil {
		return nil, err
	}
	s.logger.WithFields(logx.Fields{
		"template_id": t.ID.String(),
		"variables":   len(t.Variables()),
	}).Info("template.created")
	return t, nil
}

// Update replaces name and markup. Blank values keep the stored ones.
func (s *Service) Update(ctx context.Context, id kernel.TemplateID, name, markup string) (*Template, error) {
	t, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = t.Name
	}
	if markup == "" {
		markup = t.Markup
	}
	next, err := NewTemplate(name, markup)
	if err != nil {
		return nil, err
	}
	t.Name, t.Markup, t.UpdatedAt = next.Name, next.Markup, time.Now().UTC()

	if err := s.repo.Save(ctx, *t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) Get(ctx context.Context, id kernel.TemplateID) (*Template, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *Service) List(ctx context.Context, opts kernel.PaginationOptions) (kernel.Paginated[Template], error) {
	return s.repo.List(ctx, opts.Normalize(20, 100))
}

func (s *Service) Delete(ctx context.Context, id kernel.TemplateID) error {
	return s.repo.Delete(ctx, id)
}

// Variables returns the template's variables paired with their colors.
func (s *Service) Variables(ctx context.Context, id kernel.TemplateID) ([]VariableColor, error) {
	t, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return VariableColors(t.Variables()), nil
}

// Render fills a stored template with fields.
func (s *Service) Render(ctx context.Context, id kernel.TemplateID, fields []fieldx.Field) (Report, error) {
	t, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Report{}, err
	}
	return t.Fill(fields), nil
}
