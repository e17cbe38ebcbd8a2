package invoicing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/chantier/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// FileType selects the renderer for a template
type FileType string

const (
	FileTypePDF  FileType = "pdf"
	FileTypeHTML FileType = "html"
)

// IsValid checks if the file type is known
func (f FileType) IsValid() bool {
	return f == FileTypePDF || f == FileTypeHTML
}

// Template is a document layout bound to exactly one invoice type
type Template struct {
	shared.BaseAggregateRoot
	Name      string
	Type      Type
	FileType  FileType
	Content   string
	IsDefault bool
	IsActive  bool
}

// NewTemplate creates an active, non-default template
func NewTemplate(name string, t Type, fileType FileType, content string) (*Template, error) {
	tpl := &Template{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		IsActive:          true,
	}
	if err := tpl.Update(name, t, fileType, content); err != nil {
		return nil, err
	}
	return tpl, nil
}

// Update replaces the descriptive fields.
// A default template keeps its type so the per-type invariant cannot move.
func (t *Template) Update(name string, typ Type, fileType FileType, content string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return shared.NewDomainError("INVALID_INPUT", "Template name cannot be empty")
	}
	if len(name) > 200 {
		return shared.NewDomainError("INVALID_INPUT", "Template name cannot exceed 200 characters")
	}
	if !typ.IsValid() {
		return shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("Unknown invoice type %q", typ))
	}
	if !fileType.IsValid() {
		return shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("Unknown file type %q", fileType))
	}
	if t.IsDefault && t.Type != "" && t.Type != typ {
		return shared.NewDomainError("INVALID_STATE", "Cannot change the type of a default template")
	}
	t.Name = name
	t.Type = typ
	t.FileType = fileType
	t.Content = content
	t.Touch()
	return nil
}

// MarkDefault flags the template as its type's default. The caller clears the
// previous default in the same transaction.
func (t *Template) MarkDefault() error {
	if !t.IsActive {
		return shared.NewDomainError("INVALID_STATE", "An inactive template cannot become default")
	}
	if !t.IsDefault {
		t.IsDefault = true
		t.Touch()
		t.AddDomainEvent(NewTemplateDefaultChangedEvent(t))
	}
	return nil
}

// Deactivate hides the template from binding
func (t *Template) Deactivate() error {
	if t.IsDefault {
		return ErrDefaultTemplateBusy
	}
	t.IsActive = false
	t.Touch()
	return nil
}

// Activate makes the template bindable again
func (t *Template) Activate() {
	t.IsActive = true
	t.Touch()
}

// CanBind reports whether the template may render an invoice of the given type
func (t *Template) CanBind(invoiceType Type) error {
	if !t.IsActive {
		return shared.NewDomainError(CodeTemplateMismatch, fmt.Sprintf("Template %s is inactive", t.ID))
	}
	if t.Type != invoiceType {
		return shared.NewDomainError(CodeTemplateMismatch,
			fmt.Sprintf("Template %s serves %s invoices, not %s", t.ID, t.Type, invoiceType))
	}
	return nil
}

// TemplateReader is the read side used for binding
type TemplateReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Template, error)
	// FindDefault returns the active default for the type or shared.ErrNotFound
	FindDefault(ctx context.Context, t Type) (*Template, error)
}

// ResolveTemplate picks the template for a new invoice: the explicit id when
// given, otherwise the type's active default.
func ResolveTemplate(ctx context.Context, reader TemplateReader, invoiceType Type, templateID *uuid.UUID) (*Template, error) {
	if templateID != nil {
		tpl, err := reader.FindByID(ctx, *templateID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil, shared.NewDomainError(CodeTemplateMismatch, fmt.Sprintf("Template %s does not exist", *templateID))
			}
			return nil, err
		}
		if err := tpl.CanBind(invoiceType); err != nil {
			return nil, err
		}
		return tpl, nil
	}

	tpl, err := reader.FindDefault(ctx, invoiceType)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError(CodeNoDefaultTemplate,
				fmt.Sprintf("No active default template for %s invoices", invoiceType))
		}
		return nil, err
	}
	if !tpl.IsActive {
		return nil, shared.NewDomainError(CodeNoDefaultTemplate,
			fmt.Sprintf("No active default template for %s invoices", invoiceType))
	}
	return tpl, nil
}
