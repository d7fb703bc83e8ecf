package validate

import (
	"errors"
	"strings"
	"testing"
)

type sampleRequest struct {
	Name     string  `validate:"required,max=10"`
	Priority string  `validate:"omitempty,oneof=Low Normal High Urgent"`
	ID       *string `validate:"omitempty,uuid"`
}

func TestStruct_Valid(t *testing.T) {
	if err := Struct(&sampleRequest{Name: "fbc", Priority: "High"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestStruct_Required(t *testing.T) {
	err := Struct(&sampleRequest{})
	var fields FieldErrors
	if !errors.As(err, &fields) {
		t.Fatalf("expected FieldErrors, got %T", err)
	}
	if fields["name"] != "is required" {
		t.Errorf("name error = %q", fields["name"])
	}
}

func TestStruct_OneOf(t *testing.T) {
	err := Struct(&sampleRequest{Name: "fbc", Priority: "ASAP"})
	var fields FieldErrors
	if !errors.As(err, &fields) {
		t.Fatalf("expected FieldErrors, got %T", err)
	}
	if !strings.Contains(fields["priority"], "must be one of") {
		t.Errorf("priority error = %q", fields["priority"])
	}
}

func TestStruct_UUID(t *testing.T) {
	bad := "not-a-uuid"
	err := Struct(&sampleRequest{Name: "fbc", ID: &bad})
	var fields FieldErrors
	if !errors.As(err, &fields) {
		t.Fatalf("expected FieldErrors, got %T", err)
	}
	if fields["id"] != "must be a valid UUID" {
		t.Errorf("id error = %q", fields["id"])
	}
}

func TestFieldErrors_Error(t *testing.T) {
	f := FieldErrors{"name": "is required"}
	if f.Error() != "name is required" {
		t.Errorf("Error() = %q", f.Error())
	}
}
