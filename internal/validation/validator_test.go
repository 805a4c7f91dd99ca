package validation

import (
	"errors"
	"testing"

	"github.com/drissi/moviespace/internal/apperror"
)

type testForm struct {
	Name   string  `form:"name" validate:"required,max=10"`
	Email  string  `form:"email" validate:"omitempty,email"`
	Rating float64 `form:"rating" validate:"gte=1,lte=10"`
	Kind   string  `form:"import_type" validate:"oneof=letterboxd imdb"`
}

func TestStruct(t *testing.T) {
	valid := testForm{Name: "ok", Rating: 5, Kind: "imdb"}

	tests := []struct {
		name      string
		mutate    func(*testForm)
		wantField string
		wantMsg   string
	}{
		{"valid", func(*testForm) {}, "", ""},
		{"missing name", func(f *testForm) { f.Name = "" }, "name", "name is required"},
		{"long name", func(f *testForm) { f.Name = "abcdefghijk" }, "name", "name must be at most 10 characters"},
		{"bad email", func(f *testForm) { f.Email = "nope" }, "email", "email must be a valid email address"},
		{"rating too low", func(f *testForm) { f.Rating = 0.5 }, "rating", "rating must be at least 1"},
		{"rating too high", func(f *testForm) { f.Rating = 10.5 }, "rating", "rating must be at most 10"},
		{"unknown kind", func(f *testForm) { f.Kind = "csv" }, "import_type", "import_type must be one of: letterboxd imdb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := valid
			tt.mutate(&f)
			err := Struct(f)

			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Struct() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, apperror.ErrValidation) {
				t.Fatalf("Struct() error = %v, want ErrValidation", err)
			}
			if got := apperror.FieldOf(err); got != tt.wantField {
				t.Errorf("field = %q, want %q", got, tt.wantField)
			}
			if err.Error() != tt.wantMsg {
				t.Errorf("message = %q, want %q", err.Error(), tt.wantMsg)
			}
		})
	}
}
