// Package printing renders invoice documents.
//
// TemplateEngine executes html/template content against invoice data with
// locale-aware number, money and date helpers. Templates with empty content
// use the built-in layout in templates/invoice.html.
//
// ChromedpRenderer prints the resulting HTML to PDF through the Chrome
// DevTools Protocol, either with a locally launched headless Chrome or a
// remote instance:
//
//	renderer, err := printing.NewChromedpRenderer(&printing.ChromedpConfig{
//	    RemoteURL:      "ws://chrome:9222",
//	    DefaultTimeout: 30 * time.Second,
//	})
//	if err != nil {
//	    return err
//	}
//	defer renderer.Close()
//
//	pdf, err := renderer.ConvertHTML(ctx, html)
package printing
