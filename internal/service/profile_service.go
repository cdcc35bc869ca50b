package service

import (
	"context"
	"sia_backend/internal/model"
	"sia_backend/internal/repository"
	"sia_backend/internal/util"
)

// ProfileInput is the editable part of a patient profile.
type ProfileInput struct {
	Name       string `json:"patient_name" binding:"required"`
	Age        string `json:"patient_age"`
	City       string `json:"city"`
	Language   string `json:"language" binding:"required"`
	Diagnosis  string `json:"diagnosis"`
	Severity   string `json:"severity"`
	Address    string `json:"patient_address"`
	State      string `json:"state"`
	Country    string `json:"country"`
	Profession string `json:"profession"`
	Education  string `json:"education"`
}

type ProfileService struct {
	ProfileRepo *repository.ProfileRepository
}

func NewProfileService(profileRepo *repository.ProfileRepository) *ProfileService {
	return &ProfileService{ProfileRepo: profileRepo}
}

func (s *ProfileService) GetProfile(ctx context.Context, userID string) (*model.PatientProfile, error) {
	p, err := s.ProfileRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, classifyStorageError(err)
	}
	if p == nil {
		return nil, util.ErrProfileNotFound
	}
	return p, nil
}

// SaveProfile creates or replaces the user's profile.
func (s *ProfileService) SaveProfile(ctx context.Context, userID string, in *ProfileInput) (*model.PatientProfile, error) {
	p := &model.PatientProfile{
		UserID:     userID,
		Name:       in.Name,
		Age:        in.Age,
		City:       in.City,
		Language:   in.Language,
		Diagnosis:  in.Diagnosis,
		Severity:   in.Severity,
		Address:    in.Address,
		State:      in.State,
		Country:    in.Country,
		Profession: in.Profession,
		Education:  in.Education,
	}
	if err := s.ProfileRepo.Save(ctx, p); err != nil {
		return nil, classifyStorageError(err)
	}
	return p, nil
}
