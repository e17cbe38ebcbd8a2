package printing

import (
	"embed"

	invoicingapp "github.com/chantier/backend/internal/application/invoicing"
)

//go:embed templates/invoice.html
var templateFS embed.FS

var defaultLayout = mustReadTemplate("templates/invoice.html")

func mustReadTemplate(path string) string {
	data, err := templateFS.ReadFile(path)
	if err != nil {
		panic("printing: missing embedded template " + path)
	}
	return string(data)
}

// DefaultLayout returns the built-in invoice layout
func DefaultLayout() string {
	return defaultLayout
}

// DefaultTemplateSeeds returns one built-in template per invoice type, used
// when an installation has no default template yet.
func DefaultTemplateSeeds(fileType string) []invoicingapp.TemplateSeed {
	if fileType == "" {
		fileType = "html"
	}
	return []invoicingapp.TemplateSeed{
		{Name: "Devis standard", Type: "quote", FileType: fileType, Content: defaultLayout},
		{Name: "Facture standard", Type: "bill", FileType: fileType, Content: defaultLayout},
	}
}
