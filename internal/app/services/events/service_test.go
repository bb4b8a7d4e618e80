package events

import (
	"context"
	"testing"

	"github.com/R3E-Network/mintix/internal/app/domain/event"
	"github.com/R3E-Network/mintix/internal/app/storage"
	"github.com/R3E-Network/mintix/internal/app/storage/memory"
	svcerrors "github.com/R3E-Network/mintix/internal/errors"
)

func strPtr(s string) *string { return &s }

func TestEventLifecycle(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()

	cats := []string{"music", " ", "outdoor"}
	created, err := svc.Create(ctx, Input{
		Name:       strPtr(" Summer Fest "),
		Location:   &event.Location{Coordinates: []float64{13.4, 52.5}},
		Categories: &cats,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Name != "Summer Fest" || created.Location.Type != "Point" {
		t.Fatalf("unexpected event %+v", created)
	}
	if len(created.Categories) != 2 || created.Categories[1] != "outdoor" {
		t.Fatalf("categories not normalised: %v", created.Categories)
	}

	updated, err := svc.Update(ctx, created.ID, Input{Media: strPtr("poster.png")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Summer Fest" || updated.Media != "poster.png" {
		t.Fatalf("partial update lost fields: %+v", updated)
	}

	list, err := svc.List(ctx, storage.Page{Limit: 10})
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %v %d", err, len(list))
	}

	if err := svc.Delete(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(ctx, created.ID); !svcerrors.IsCode(err, svcerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := svc.Delete(ctx, created.ID); !svcerrors.IsCode(err, svcerrors.CodeNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestEventValidation(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()

	cases := map[string]Input{
		"missing name": {},
		"blank name":   {Name: strPtr("  ")},
		"polygon":      {Name: strPtr("x"), Location: &event.Location{Type: "Polygon", Coordinates: []float64{1, 2}}},
		"one coord":    {Name: strPtr("x"), Location: &event.Location{Coordinates: []float64{1}}},
		"bad latitude": {Name: strPtr("x"), Location: &event.Location{Coordinates: []float64{10, 91}}},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := svc.Create(ctx, in); !svcerrors.IsCode(err, svcerrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}
