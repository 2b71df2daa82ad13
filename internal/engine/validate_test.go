package engine

import (
	"errors"
	"testing"

	"github.com/avdonin/Conveyor/internal/domain"
)

func TestValidate_OK(t *testing.T) {
	spec := &domain.ProjectSpec{
		Items: []domain.ItemDef{
			{Name: "raw", Type: "data_connection"},
			{Name: "import", Type: "importer"},
			{Name: "db", Type: "data_store"},
			{Name: "model", Type: "tool"},
			{Name: "export", Type: "exporter"},
			{Name: "preview", Type: "view"},
		},
		Connections: []domain.ConnectionDef{
			{From: "raw", To: "import"},
			{From: "import", To: "db"},
			{From: "db", To: "model", Filters: []domain.FilterDef{
				{Type: domain.FilterTypeScenario, Values: []string{"base", "high"}},
			}},
			{From: "model", To: "export"},
			{From: "db", To: "preview"},
		},
	}

	if err := Validate(spec); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		spec    *domain.ProjectSpec
		wantErr error
	}{
		{
			name:    "nil spec",
			spec:    nil,
			wantErr: ErrEmptyItems,
		},
		{
			name:    "no items",
			spec:    &domain.ProjectSpec{},
			wantErr: ErrEmptyItems,
		},
		{
			name: "empty item name",
			spec: &domain.ProjectSpec{
				Items: []domain.ItemDef{{Name: "", Type: "tool"}},
			},
			wantErr: ErrEmptyItemName,
		},
		{
			name: "duplicate item name",
			spec: &domain.ProjectSpec{
				Items: []domain.ItemDef{
					{Name: "x", Type: "tool"},
					{Name: "x", Type: "view"},
				},
			},
			wantErr: ErrDuplicateItemName,
		},
		{
			name: "unknown item type",
			spec: &domain.ProjectSpec{
				Items: []domain.ItemDef{{Name: "x", Type: "widget"}},
			},
			wantErr: ErrUnknownItemType,
		},
		{
			name: "connection to unknown item",
			spec: &domain.ProjectSpec{
				Items: []domain.ItemDef{{Name: "x", Type: "tool"}},
				Connections: []domain.ConnectionDef{
					{From: "x", To: "ghost"},
				},
			},
			wantErr: ErrUnknownItem,
		},
		{
			name: "self connection",
			spec: &domain.ProjectSpec{
				Items: []domain.ItemDef{{Name: "x", Type: "tool"}},
				Connections: []domain.ConnectionDef{
					{From: "x", To: "x"},
				},
			},
			wantErr: ErrSelfConnection,
		},
		{
			name: "unknown filter type",
			spec: &domain.ProjectSpec{
				Items: []domain.ItemDef{
					{Name: "a", Type: "data_store"},
					{Name: "b", Type: "tool"},
				},
				Connections: []domain.ConnectionDef{
					{From: "a", To: "b", Filters: []domain.FilterDef{
						{Type: "tag_filter", Values: []string{"x"}},
					}},
				},
			},
			wantErr: ErrUnknownFilterType,
		},
		{
			name: "filter without values",
			spec: &domain.ProjectSpec{
				Items: []domain.ItemDef{
					{Name: "a", Type: "data_store"},
					{Name: "b", Type: "tool"},
				},
				Connections: []domain.ConnectionDef{
					{From: "a", To: "b", Filters: []domain.FilterDef{
						{Type: domain.FilterTypeScenario},
					}},
				},
			},
			wantErr: ErrEmptyFilterValues,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.spec)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidate_ValidationErrorDetails(t *testing.T) {
	spec := &domain.ProjectSpec{
		Items: []domain.ItemDef{{Name: "model", Type: "simulator"}},
	}

	err := Validate(spec)

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if verr.ItemName != "model" {
		t.Errorf("expected item name model, got %s", verr.ItemName)
	}
	if verr.Field != "type" {
		t.Errorf("expected field type, got %s", verr.Field)
	}
}

func TestValidateInputs(t *testing.T) {
	spec := &domain.ProjectSpec{
		Inputs: map[string]domain.InputDef{
			"year":   {Required: true},
			"region": {Required: true, Default: "fi"},
			"debug":  {Required: false},
		},
	}

	if err := ValidateInputs(spec, map[string]any{"year": 2026}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	err := ValidateInputs(spec, nil)
	if !errors.Is(err, ErrMissingInput) {
		t.Errorf("expected ErrMissingInput, got %v", err)
	}
}

func TestMergeInputs(t *testing.T) {
	spec := &domain.ProjectSpec{
		Inputs: map[string]domain.InputDef{
			"region": {Default: "fi"},
			"year":   {Required: true},
		},
	}

	merged := MergeInputs(spec, map[string]any{"year": 2026})

	if merged["region"] != "fi" {
		t.Errorf("expected default region fi, got %v", merged["region"])
	}
	if merged["year"] != 2026 {
		t.Errorf("expected year 2026, got %v", merged["year"])
	}

	// Переданное значение перекрывает default
	merged = MergeInputs(spec, map[string]any{"region": "se"})
	if merged["region"] != "se" {
		t.Errorf("expected region se, got %v", merged["region"])
	}
}

func TestIsValidItemType(t *testing.T) {
	for _, typ := range []string{"data_store", "data_connection", "tool", "importer", "exporter", "view"} {
		if !IsValidItemType(typ) {
			t.Errorf("%s should be valid", typ)
		}
	}
	if IsValidItemType("gadget") {
		t.Error("gadget should not be valid")
	}
}
