// This file is a documentation template and is excluded from the build.
// It uses placeholder types (ExampleService, ExampleRepository) that do not
// exist; read it alongside link.go or profile.go for a real instance.
//
//go:build ignore

package service

// TEMPLATE.go - service layer conventions
//
// Every service in this package follows the same shape. When adding a new
// service, start from this file; LinkService and ProfileService are the
// smallest real examples, JobService the largest.
//
// Conventions:
// 1. Dependencies arrive through an Options struct, not positional args.
// 2. Services depend on interfaces from internal/core, never on internal/data
//    concrete types. The data layer satisfies the interfaces.
// 3. Constructors return (*XService, error) and reject nil required deps;
//    MustNewXService variants exist only where main() would panic anyway.
// 4. Optional deps (logger, cache) may be nil and are checked before use.
// 5. Every method takes context.Context first and wraps errors with
//    fmt.Errorf("operation: %w", err).
// 6. Orchestration across repositories lives here, not in handlers or repos.

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/linkhound/ingest/internal/core"
	"github.com/linkhound/ingest/internal/domain/model"
)

// ExampleServiceOptions groups dependencies for ExampleService. Keep options
// structs small; when config grows past a few fields, nest a config struct
// the way JobServiceOptions nests LeasePolicy.
type ExampleServiceOptions struct {
	Repo   core.ExampleRepository // required
	Logger *slog.Logger           // optional
	Cache  exampleCache           // optional
}

// Optional dependencies get a locally defined minimal interface so the
// service does not couple to a full cache or notifier implementation.
type exampleCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// ExampleService holds private fields only; callers go through methods.
type ExampleService struct {
	repo   core.ExampleRepository
	logger *slog.Logger
	cache  exampleCache
}

// NewExampleService validates required dependencies up front so a wiring
// mistake fails at startup, not on the first request.
func NewExampleService(opts ExampleServiceOptions) (*ExampleService, error) {
	if opts.Repo == nil {
		return nil, fmt.Errorf("example repository is required")
	}
	return &ExampleService{
		repo:   opts.Repo,
		logger: opts.Logger,
		cache:  opts.Cache,
	}, nil
}

// Create shows the standard method shape: validate, normalize, delegate,
// wrap the error, log on success if a logger is present.
func (s *ExampleService) Create(ctx context.Context, req model.CreateExampleRequest) (*model.Example, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validate request: %w", err)
	}

	example, err := s.repo.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create example: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("example created", "id", example.ID)
	}
	return example, nil
}

// GetByID shows the optional-cache pattern: cache reads and writes are
// best effort and never fail the request.
func (s *ExampleService) GetByID(ctx context.Context, id string) (*model.Example, error) {
	if s.cache != nil {
		if cached, err := s.getCached(ctx, id); err == nil && cached != nil {
			return cached, nil
		}
	}

	example, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get example by id: %w", err)
	}

	if s.cache != nil {
		_ = s.setCached(ctx, example)
	}
	return example, nil
}

// List shows pagination clamping; the same defaults appear in the HTTP
// handlers, and the service clamps again so direct callers get them too.
func (s *ExampleService) List(ctx context.Context, limit, offset int) ([]*model.Example, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 1000 {
		limit = 1000
	}
	return s.repo.List(ctx, limit, offset)
}

func (s *ExampleService) getCached(ctx context.Context, id string) (*model.Example, error) {
	return nil, nil // placeholder
}

func (s *ExampleService) setCached(ctx context.Context, example *model.Example) error {
	return nil // placeholder
}

// Optional repository capabilities are discovered with a type assertion so
// the service degrades instead of demanding a fatter interface. JobService
// does this for LISTEN/NOTIFY support; repos without it fall back to polling.
type exampleRepositoryWithSearch interface {
	SearchByName(ctx context.Context, query string, limit int) ([]*model.Example, error)
}

func (s *ExampleService) SearchByName(ctx context.Context, query string, limit int) ([]*model.Example, error) {
	if repo, ok := any(s.repo).(exampleRepositoryWithSearch); ok {
		return repo.SearchByName(ctx, query, limit)
	}
	if s.logger != nil {
		s.logger.Debug("repository does not support search, falling back to list")
	}
	return s.repo.List(ctx, limit, 0)
}
