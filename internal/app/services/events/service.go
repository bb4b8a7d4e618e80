package events

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/R3E-Network/mintix/internal/app/domain/event"
	"github.com/R3E-Network/mintix/internal/app/storage"
	svcerrors "github.com/R3E-Network/mintix/internal/errors"
	"github.com/R3E-Network/mintix/pkg/logger"
)

// Input carries event fields. Nil fields are left unchanged on update.
type Input struct {
	Name       *string         `json:"name"`
	Location   *event.Location `json:"location"`
	Categories *[]string       `json:"categories"`
	Media      *string         `json:"media"`
}

// Service manages events.
type Service struct {
	store storage.EventStore
	log   *logger.Logger
}

// New constructs an event service.
func New(store storage.EventStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("events")
	}
	return &Service{store: store, log: log}
}

// Create stores a new event. Name is required.
func (s *Service) Create(ctx context.Context, in Input) (event.Event, error) {
	var evt event.Event
	if in.Name == nil {
		return event.Event{}, svcerrors.Validation("name is required")
	}
	if err := apply(&evt, in); err != nil {
		return event.Event{}, err
	}
	if evt.Categories == nil {
		evt.Categories = []string{}
	}
	created, err := s.store.CreateEvent(ctx, evt)
	if err != nil {
		return event.Event{}, svcerrors.Persistence("failed to create event", err)
	}
	s.log.WithContext(ctx).WithField("event_id", created.ID).Info("event created")
	return created, nil
}

// Update applies the non-nil fields of in.
func (s *Service) Update(ctx context.Context, id string, in Input) (event.Event, error) {
	evt, err := s.Get(ctx, id)
	if err != nil {
		return event.Event{}, err
	}
	if err := apply(&evt, in); err != nil {
		return event.Event{}, err
	}
	updated, err := s.store.UpdateEvent(ctx, evt)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return event.Event{}, svcerrors.NotFound("event", id)
		}
		return event.Event{}, svcerrors.Persistence("failed to update event", err)
	}
	return updated, nil
}

// Get returns one event.
func (s *Service) Get(ctx context.Context, id string) (event.Event, error) {
	evt, err := s.store.GetEvent(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return event.Event{}, svcerrors.NotFound("event", id)
		}
		return event.Event{}, svcerrors.Persistence("failed to load event", err)
	}
	return evt, nil
}

// List returns a page of events, newest first.
func (s *Service) List(ctx context.Context, page storage.Page) ([]event.Event, error) {
	out, err := s.store.ListEvents(ctx, page)
	if err != nil {
		return nil, svcerrors.Persistence("failed to list events", err)
	}
	return out, nil
}

// Delete removes an event. Records that reference it are kept.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteEvent(ctx, strings.TrimSpace(id)); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return svcerrors.NotFound("event", id)
		}
		return svcerrors.Persistence("failed to delete event", err)
	}
	s.log.WithContext(ctx).WithField("event_id", id).Info("event deleted")
	return nil
}

func apply(evt *event.Event, in Input) error {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return svcerrors.Validation("name must not be empty")
		}
		evt.Name = name
	}
	if in.Location != nil {
		loc, err := normalizeLocation(*in.Location)
		if err != nil {
			return err
		}
		evt.Location = &loc
	}
	if in.Categories != nil {
		cats := make([]string, 0, len(*in.Categories))
		for _, c := range *in.Categories {
			if c = strings.TrimSpace(c); c != "" {
				cats = append(cats, c)
			}
		}
		evt.Categories = cats
	}
	if in.Media != nil {
		evt.Media = strings.TrimSpace(*in.Media)
	}
	return nil
}

// normalizeLocation accepts a GeoJSON point as [longitude, latitude].
func normalizeLocation(loc event.Location) (event.Location, error) {
	if loc.Type == "" {
		loc.Type = "Point"
	}
	if loc.Type != "Point" {
		return event.Location{}, svcerrors.Validation(`location.type must be "Point"`)
	}
	if len(loc.Coordinates) != 2 {
		return event.Location{}, svcerrors.Validation("location.coordinates must be [longitude, latitude]")
	}
	lng, lat := loc.Coordinates[0], loc.Coordinates[1]
	if math.IsNaN(lng) || math.IsNaN(lat) || lng < -180 || lng > 180 || lat < -90 || lat > 90 {
		return event.Location{}, svcerrors.Validation("location.coordinates are out of range")
	}
	return event.Location{Type: loc.Type, Coordinates: []float64{lng, lat}}, nil
}
