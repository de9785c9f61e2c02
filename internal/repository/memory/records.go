package memory

import (
	"context"

	"github.com/vedran77/dmcore/internal/domain"
	"github.com/vedran77/dmcore/internal/repository"
)

type ReportRepo struct {
	s *Store
}

func (r *ReportRepo) Create(ctx context.Context, report *domain.MessageReport) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.check(ctx, "reports.Create"); err != nil {
		return err
	}
	r.s.reports = append(r.s.reports, *report)
	return nil
}

type ContactRequestRepo struct {
	s *Store
}

func (r *ContactRequestRepo) Create(ctx context.Context, req *domain.ContactRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.check(ctx, "contactRequests.Create"); err != nil {
		return err
	}
	r.s.contactRequests = append(r.s.contactRequests, *req)
	return nil
}

var (
	_ repository.ReportRepository         = (*ReportRepo)(nil)
	_ repository.ContactRequestRepository = (*ContactRequestRepo)(nil)
)
