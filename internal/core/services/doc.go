// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// RAGService is the engine: ingestion, grounded question answering,
// summarisation and document lifecycle. DocumentService layers file
// validation and extraction on top of it, and SettingsService maps the
// config store onto domain.AppSettings.
package services
