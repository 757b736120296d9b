package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rowerg/live-platform/models"
	"github.com/rowerg/live-platform/repositories"
	"github.com/rowerg/live-platform/storage"
)

type EventService interface {
	CreateEvent(ctx context.Context, input CreateEventInput) (*models.Event, error)
	GetEventByID(ctx context.Context, id int) (*models.Event, error)
	ListEvents(ctx context.Context) ([]models.Event, error)
	UpdateEvent(ctx context.Context, id int, input UpdateEventInput) (*models.Event, error)
	DeleteEvent(ctx context.Context, id int) error
	UploadBanner(ctx context.Context, id int, contentType string, banner io.Reader) (*models.Event, error)
}

type CreateEventInput struct {
	Name        string           `json:"name"`
	Description *string          `json:"description"`
	EventType   models.EventType `json:"event_type"`
	OrganizerID int              `json:"-"`
	StartDate   time.Time        `json:"start_date"`
	Location    *string          `json:"location"`
}

type UpdateEventInput struct {
	Name        *string           `json:"name"`
	Description *string           `json:"description"`
	EventType   *models.EventType `json:"event_type"`
	StartDate   *time.Time        `json:"start_date"`
	Location    *string           `json:"location"`
}

type eventService struct {
	eventRepo repositories.EventRepository
	uploader  storage.FileUploader
}

func NewEventService(eventRepo repositories.EventRepository, uploader storage.FileUploader) EventService {
	return &eventService{
		eventRepo: eventRepo,
		uploader:  uploader,
	}
}

func validEventType(t models.EventType) bool {
	switch t {
	case models.EventType500m, models.EventType2000m, models.EventTypeMinute, models.EventTypeTeam:
		return true
	default:
		return false
	}
}

func (s *eventService) CreateEvent(ctx context.Context, input CreateEventInput) (*models.Event, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, ErrEventNameRequired
	}
	if !validEventType(input.EventType) {
		return nil, ErrEventInvalidType
	}

	event := &models.Event{
		Name:        input.Name,
		Description: input.Description,
		EventType:   input.EventType,
		OrganizerID: input.OrganizerID,
		StartDate:   input.StartDate,
		Location:    input.Location,
	}
	if err := s.eventRepo.Create(ctx, event); err != nil {
		if errors.Is(err, repositories.ErrEventNameConflict) {
			return nil, ErrEventNameConflict
		}
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	return event, nil
}

func (s *eventService) GetEventByID(ctx context.Context, id int) (*models.Event, error) {
	event, err := s.eventRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrEventNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	s.populateBannerURL(event)
	return event, nil
}

func (s *eventService) ListEvents(ctx context.Context) ([]models.Event, error) {
	events, err := s.eventRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	for i := range events {
		s.populateBannerURL(&events[i])
	}
	return events, nil
}

func (s *eventService) UpdateEvent(ctx context.Context, id int, input UpdateEventInput) (*models.Event, error) {
	event, err := s.GetEventByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		if strings.TrimSpace(*input.Name) == "" {
			return nil, ErrEventNameRequired
		}
		event.Name = *input.Name
	}
	if input.Description != nil {
		event.Description = input.Description
	}
	if input.EventType != nil {
		if !validEventType(*input.EventType) {
			return nil, ErrEventInvalidType
		}
		event.EventType = *input.EventType
	}
	if input.StartDate != nil {
		event.StartDate = *input.StartDate
	}
	if input.Location != nil {
		event.Location = input.Location
	}

	if err := s.eventRepo.Update(ctx, event); err != nil {
		if errors.Is(err, repositories.ErrEventNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to update event: %w", err)
	}
	return event, nil
}

func (s *eventService) DeleteEvent(ctx context.Context, id int) error {
	event, err := s.eventRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrEventNotFound) {
			return ErrEventNotFound
		}
		return fmt.Errorf("failed to get event: %w", err)
	}
	if err := s.eventRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrEventNotFound) {
			return ErrEventNotFound
		}
		return fmt.Errorf("failed to delete event: %w", err)
	}
	if event.BannerKey != nil {
		if delErr := s.uploader.Delete(ctx, *event.BannerKey); delErr != nil {
			// Orphaned banner objects are harmless; deletion is best effort.
			return nil
		}
	}
	return nil
}

var bannerContentTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

func (s *eventService) UploadBanner(ctx context.Context, id int, contentType string, banner io.Reader) (*models.Event, error) {
	ext, ok := bannerContentTypes[contentType]
	if !ok {
		return nil, ErrUnsupportedUpload
	}

	event, err := s.GetEventByID(ctx, id)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("events/%d/banner.%s", id, ext)
	result, err := s.uploader.Upload(ctx, key, contentType, banner)
	if err != nil {
		return nil, fmt.Errorf("failed to upload banner: %w", err)
	}

	if err := s.eventRepo.UpdateBannerKey(ctx, id, &result.Key); err != nil {
		return nil, fmt.Errorf("failed to store banner key: %w", err)
	}
	event.BannerKey = &result.Key
	s.populateBannerURL(event)
	return event, nil
}

func (s *eventService) populateBannerURL(event *models.Event) {
	if event.BannerKey != nil {
		url := s.uploader.GetPublicURL(*event.BannerKey)
		event.BannerURL = &url
	}
}
