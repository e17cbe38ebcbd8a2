// Package models contains GORM persistence models that map to database tables.
// Domain types stay free of ORM tags; each model converts to and from its
// domain counterpart and repositories only ever hand domain types back out.
//
// Structure:
//   - base.go: shared id/timestamp/version columns
//   - invoicing.go: invoices, invoice_items, invoice_templates, invoice_sequences
//   - project.go: projects, expenses, payments
package models
