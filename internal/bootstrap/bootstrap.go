package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/PabloGalante/farum-triage/internal/adapters/llm"
	firestorestore "github.com/PabloGalante/farum-triage/internal/adapters/storage/firestore"
	memstore "github.com/PabloGalante/farum-triage/internal/adapters/storage/memory"
	sqlitestore "github.com/PabloGalante/farum-triage/internal/adapters/storage/sqlite"
	"github.com/PabloGalante/farum-triage/internal/app/conversation"
	"github.com/PabloGalante/farum-triage/internal/app/journal"
	"github.com/PabloGalante/farum-triage/internal/app/triage"
	"github.com/PabloGalante/farum-triage/internal/config"
	"github.com/PabloGalante/farum-triage/internal/domain"
	"github.com/PabloGalante/farum-triage/internal/observability"
)

// Stack is everything a binary needs to serve turns and reviews.
type Stack struct {
	Conversation *conversation.Service
	Journal      *journal.Service
	Classifier   *triage.Classifier

	closers []func() error
}

// Close releases storage clients.
func (s *Stack) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Build wires the generator, storage and classifier selected by cfg.
func Build(ctx context.Context, cfg *config.Config) (*Stack, error) {
	log := observability.WithFields("component", "bootstrap")
	stack := &Stack{}

	classifier, err := buildClassifier(cfg, log)
	if err != nil {
		return nil, err
	}
	stack.Classifier = classifier

	generator, err := buildGenerator(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	var (
		sessionStore domain.SessionStore
		eventStore   domain.EventStore
	)

	switch cfg.StorageBackend {
	case "firestore":
		log.Info("using Firestore storage", "project", cfg.GCPProjectID)
		fsStore, err := firestorestore.NewStore(ctx, cfg.GCPProjectID)
		if err != nil {
			return nil, fmt.Errorf("initializing Firestore store: %w", err)
		}
		// 1 store, implements 2 interfaces
		sessionStore, eventStore = fsStore, fsStore
		stack.closers = append(stack.closers, fsStore.Close)

	case "sqlite":
		log.Info("using SQLite storage", "path", cfg.SQLitePath)
		sqlStore, err := sqlitestore.NewStore(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("initializing SQLite store: %w", err)
		}
		sessionStore, eventStore = sqlStore, sqlStore
		stack.closers = append(stack.closers, sqlStore.Close)

	default:
		log.Info("using in-memory storage")
		sessionStore = memstore.NewSessionStore()
		eventStore = memstore.NewEventStore()
	}

	stack.Conversation = conversation.NewService(generator, sessionStore,
		conversation.WithEventStore(eventStore),
		conversation.WithClassifier(classifier),
		conversation.WithGeneratorTimeout(cfg.GeneratorTimeout),
		conversation.WithTemperature(cfg.Temperature),
	)
	stack.Journal = journal.NewService(sessionStore, eventStore)

	return stack, nil
}

func buildClassifier(cfg *config.Config, log *slog.Logger) (*triage.Classifier, error) {
	if cfg.LexiconFile == "" {
		return triage.Default(), nil
	}

	lx, err := triage.LoadLexicon(cfg.LexiconFile)
	if err != nil {
		return nil, fmt.Errorf("loading lexicon: %w", err)
	}
	classifier, err := triage.NewClassifier(lx)
	if err != nil {
		return nil, fmt.Errorf("compiling lexicon %s: %w", cfg.LexiconFile, err)
	}
	log.Info("using lexicon override", "path", cfg.LexiconFile)
	return classifier, nil
}

func buildGenerator(ctx context.Context, cfg *config.Config, log *slog.Logger) (domain.ReplyGenerator, error) {
	if cfg.UseMockLLM {
		log.Info("using mock reply generator")
		return llm.NewMockLLM(), nil
	}

	log.Info("using GenAI reply generator", "model", cfg.ModelName, "vertex", cfg.GeminiAPIKey == "")
	client, err := llm.NewGenAIClient(ctx, llm.GenAIConfig{
		APIKey:        cfg.GeminiAPIKey,
		Project:       cfg.GCPProjectID,
		Location:      cfg.GCPLocation,
		ModelName:     cfg.ModelName,
		FlattenPrompt: cfg.FlattenPrompt,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing GenAI client: %w", err)
	}
	return client, nil
}
