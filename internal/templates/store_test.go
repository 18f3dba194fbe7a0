package templates

import (
	"context"
	"testing"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func TestStoreLookupBrandWins(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := NewStore(mock)
	brandID := uuid.New()

	mock.ExpectQuery("SELECT id, brand_id, name, template_sid").
		WithArgs("travelbro", brandID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "brand_id", "name", "template_sid", "variable_slots", "is_active"}).
			AddRow(uuid.New(), &brandID, "travelbro", "HX123", []string{"1", "2"}, true))

	def, err := store.Lookup(context.Background(), "travelbro", brandID)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if def == nil || def.TemplateSID != "HX123" {
		t.Fatalf("expected HX123, got %+v", def)
	}
	if def.BrandID == nil || *def.BrandID != brandID {
		t.Fatalf("expected brand-scoped definition, got %+v", def.BrandID)
	}
}

func TestStoreLookupNoMatch(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := NewStore(mock)

	mock.ExpectQuery("SELECT id, brand_id, name, template_sid").
		WithArgs("unknown", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "brand_id", "name", "template_sid", "variable_slots", "is_active"}))

	def, err := store.Lookup(context.Background(), "unknown", uuid.New())
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if def != nil {
		t.Fatalf("expected nil definition, got %+v", def)
	}
}

func TestStoreUpsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := NewStore(mock)

	mock.ExpectExec("INSERT INTO whatsapp_templates").
		WithArgs(pgxmock.AnyArg(), (*uuid.UUID)(nil), "travelbro", "HX999", []string{"1"}, true).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	def := &Definition{Name: "travelbro", TemplateSID: "HX999", VariableSlots: []string{"1"}, IsActive: true}
	if err := store.Upsert(context.Background(), def); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if def.ID == uuid.Nil {
		t.Fatal("expected generated id")
	}
}
