package templatex

import (
	"context"

	"github.com/Abraxas-365/docfill/pkg/kernel"
)

type Repository interface {
	Save(ctx context.Context, t Template) error
	FindByID(ctx context.Context, id kernel.TemplateID) (*Template, error)
	List(ctx context.Context, opts kernel.PaginationOptions) (kernel.Paginated[Template], error)
	Delete(ctx context.Context, id kernel.TemplateID) error
}
