package listing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MarcoPoloResearchLab/schemaboard/internal/diagrams"
	"go.uber.org/zap"
)

var (
	errMissingLocalStore  = errors.New("local store is required")
	errMissingRemoteStore = errors.New("remote store is required")
)

// LocalLister lists every diagram held on the device.
type LocalLister interface {
	ListAll(ctx context.Context) ([]diagrams.Diagram, error)
}

// RemoteLister lists every mirrored diagram, most recently updated first.
type RemoteLister interface {
	ListAllOrderedByUpdatedDesc(ctx context.Context) ([]diagrams.RemoteRecord, error)
}

// ServiceConfig describes the dependencies of the listing service.
type ServiceConfig struct {
	Local  LocalLister
	Remote RemoteLister
	Clock  func() time.Time
	Logger *zap.Logger
}

// Service aggregates both stores into the open-diagram listing.
type Service struct {
	local  LocalLister
	remote RemoteLister
	clock  func() time.Time
	logger *zap.Logger
}

// NewService validates the configuration and constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Local == nil {
		return nil, errMissingLocalStore
	}
	if cfg.Remote == nil {
		return nil, errMissingRemoteStore
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{local: cfg.Local, remote: cfg.Remote, clock: clock, logger: logger}, nil
}

// List returns the merged listing. A remote failure degrades to the local list.
func (s *Service) List(ctx context.Context) ([]diagrams.Diagram, error) {
	merged, _, err := s.collect(ctx)
	return merged, err
}

// Entries returns display rows for the merged listing that satisfy filter.
func (s *Service) Entries(ctx context.Context, filter *Filter) ([]Entry, error) {
	merged, localCount, err := s.collect(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	entries := make([]Entry, 0, len(merged))
	for index, diagram := range merged {
		entry := NewEntry(diagram, index >= localCount)
		matched, err := filter.Match(entry, now)
		if err != nil {
			return nil, err
		}
		if matched {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func (s *Service) collect(ctx context.Context) ([]diagrams.Diagram, int, error) {
	local, err := s.local.ListAll(ctx)
	if err != nil {
		s.logger.Error("local listing failed", zap.Error(err))
		return nil, 0, fmt.Errorf("listing: local store: %w", err)
	}
	remote, err := s.remote.ListAllOrderedByUpdatedDesc(ctx)
	if err != nil {
		s.logger.Warn("remote listing failed; showing local diagrams only", zap.Error(err))
		remote = nil
	}
	return Merge(local, remote), len(local), nil
}
