package service

import (
	"context"

	apperrors "github.com/trpi/scheduling-server-go/internal/errors"
	"github.com/trpi/scheduling-server-go/internal/model"
	"github.com/trpi/scheduling-server-go/internal/repository"
)

type AdminService struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
}

func NewAdminService(userRepo repository.UserRepository, sessionRepo repository.SessionRepository) *AdminService {
	return &AdminService{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
	}
}

type Stats struct {
	Users struct {
		Individuals int `json:"individuals"`
		Therapists  int `json:"therapists"`
		Partners    int `json:"partners"`
		Admins      int `json:"admins"`
		Total       int `json:"total"`
	} `json:"users"`
	Sessions struct {
		PendingApproval int `json:"pendingApproval"`
		Scheduled       int `json:"scheduled"`
		InProgress      int `json:"inProgress"`
		Completed       int `json:"completed"`
		Cancelled       int `json:"cancelled"`
		Total           int `json:"total"`
	} `json:"sessions"`
}

func (s *AdminService) GetStats(ctx context.Context) (*Stats, error) {
	users, err := s.userRepo.CountByType(ctx)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	sessions, err := s.sessionRepo.CountByStatus(ctx)
	if err != nil {
		return nil, apperrors.Database(err)
	}

	stats := &Stats{}
	stats.Users.Individuals = users[model.UserTypeIndividual]
	stats.Users.Therapists = users[model.UserTypeTherapist]
	stats.Users.Partners = users[model.UserTypePartner]
	stats.Users.Admins = users[model.UserTypeAdmin]
	for _, n := range users {
		stats.Users.Total += n
	}

	stats.Sessions.PendingApproval = sessions[model.SessionStatusPendingApproval]
	stats.Sessions.Scheduled = sessions[model.SessionStatusScheduled]
	stats.Sessions.InProgress = sessions[model.SessionStatusInProgress]
	stats.Sessions.Completed = sessions[model.SessionStatusCompleted]
	stats.Sessions.Cancelled = sessions[model.SessionStatusCancelled]
	for _, n := range sessions {
		stats.Sessions.Total += n
	}

	return stats, nil
}

// PartnerMembers lists the users enrolled by a partner organization.
func (s *AdminService) PartnerMembers(ctx context.Context, p *model.Principal, limit, offset int) ([]model.User, error) {
	if !p.Is(model.UserTypePartner) || p.UserID == "" {
		return nil, apperrors.Forbidden("Only partner accounts can list members")
	}
	members, err := s.userRepo.ListByPartner(ctx, p.UserID, limit, offset)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return members, nil
}
