package service

import (
	"time"

	"github.com/okian/duel/internal/adapters/persistence"
	"github.com/okian/duel/internal/domain/model"
	"github.com/okian/duel/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithPersister replaces the configured store driver.
func WithPersister(p persistence.Persister) Option {
	return func(s *Service) {
		if p != nil {
			s.persister = p
		}
	}
}

// WithCorpus supplies the phrase corpus instead of reading corpus_path.
func WithCorpus(items []model.Item) Option {
	return func(s *Service) {
		s.corpus = items
	}
}

// WithCorpusTexts builds the corpus from phrases at the configured initial rating.
func WithCorpusTexts(texts ...string) Option {
	return func(s *Service) {
		s.corpusTexts = texts
	}
}

// WithClock overrides the service time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
