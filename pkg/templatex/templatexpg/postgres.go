package templatexpg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Abraxas-365/docfill/pkg/kernel"
	"github.com/Abraxas-365/docfill/pkg/templatex"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Schema crea la tabla de plantillas si no existe.
const Schema = `
CREATE TABLE IF NOT EXISTS templates (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL UNIQUE,
	markup      TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
)`

// PostgresTemplateRepository es la implementación en PostgreSQL de templatex.Repository.
type PostgresTemplateRepository struct {
	db *sqlx.DB
}

// NewPostgresTemplateRepository crea una nueva instancia del repositorio.
func NewPostgresTemplateRepository(db *sqlx.DB) *PostgresTemplateRepository {
	return &PostgresTemplateRepository{db: db}
}

// Migrate applies Schema.
func (r *PostgresTemplateRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return templatex.ErrStoreFailed(err).WithDetail("op", "migrate")
	}
	return nil
}

// Save inserta o actualiza una plantilla.
func (r *PostgresTemplateRepository) Save(ctx context.Context, t templatex.Template) error {
	query := `
		INSERT INTO templates (id, name, markup, created_at, updated_at)
		VALUES (:id, :name, :markup, :created_at, :updated_at)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			markup = EXCLUDED.markup,
			updated_at = EXCLUDED.updated_at`

	if _, err := r.db.NamedExecContext(ctx, query, t); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" { // unique_violation
			return templatex.ErrInvalidTemplate().
				WithDetail("reason", "template name already exists").
				WithDetail("name", t.Name)
		}
		return templatex.ErrStoreFailed(err).WithDetail("template_id", t.ID.String())
	}
	return nil
}

// FindByID busca una plantilla por su ID.
func (r *PostgresTemplateRepository) FindByID(ctx context.Context, id kernel.TemplateID) (*templatex.Template, error) {
	var t templatex.Template
	query := `SELECT id, name, markup, created_at, updated_at FROM templates WHERE id = $1`
	if err := r.db.GetContext(ctx, &t, query, id.String()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, templatex.ErrTemplateNotFound().WithDetail("template_id", id.String())
		}
		return nil, templatex.ErrStoreFailed(err).WithDetail("template_id", id.String())
	}
	return &t, nil
}

// List devuelve las plantillas paginadas, más recientes primero.
func (r *PostgresTemplateRepository) List(ctx context.Context, opts kernel.PaginationOptions) (kernel.Paginated[templatex.Template], error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM templates`); err != nil {
		return kernel.Paginated[templatex.Template]{}, templatex.ErrStoreFailed(err)
	}

	items := []templatex.Template{}
	query := `
		SELECT id, name, markup, created_at, updated_at
		FROM templates
		ORDER BY updated_at DESC
		LIMIT $1 OFFSET $2`
	if err := r.db.SelectContext(ctx, &items, query, opts.PageSize, opts.Offset()); err != nil {
		return kernel.Paginated[templatex.Template]{}, templatex.ErrStoreFailed(err)
	}

	return kernel.NewPaginated(items, opts.Page, opts.PageSize, total), nil
}

// Delete elimina una plantilla.
func (r *PostgresTemplateRepository) Delete(ctx context.Context, id kernel.TemplateID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM templates WHERE id = $1`, id.String())
	if err != nil {
		return templatex.ErrStoreFailed(err).WithDetail("template_id", id.String())
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return templatex.ErrTemplateNotFound().WithDetail("template_id", id.String())
	}
	return nil
}

var _ templatex.Repository = (*PostgresTemplateRepository)(nil)
