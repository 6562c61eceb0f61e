package pagination

import (
	"errors"
	"testing"
	"time"
)

func TestEncodeDecodeToken(t *testing.T) {
	cursor := Cursor{CreatedAt: time.Date(2024, time.May, 2, 10, 0, 0, 0, time.UTC), ID: "ord_01"}

	token, err := EncodeToken(cursor)
	if err != nil {
		t.Fatalf("EncodeToken: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	decoded, err := DecodeToken(token)
	if err != nil {
		t.Fatalf("DecodeToken: %v", err)
	}
	if decoded.ID != cursor.ID || !decoded.CreatedAt.Equal(cursor.CreatedAt) {
		t.Fatalf("expected %#v, got %#v", cursor, decoded)
	}
}

func TestEncodeZeroCursor(t *testing.T) {
	token, err := EncodeToken(Cursor{})
	if err != nil {
		t.Fatalf("EncodeToken: %v", err)
	}
	if token != "" {
		t.Fatalf("expected empty token, got %q", token)
	}
}

func TestDecodeInvalidToken(t *testing.T) {
	if _, err := DecodeToken("%%%"); !errors.Is(err, ErrInvalidPageToken) {
		t.Fatalf("expected ErrInvalidPageToken, got %v", err)
	}
	if _, err := DecodeToken("e30"); !errors.Is(err, ErrInvalidPageToken) {
		t.Fatalf("expected ErrInvalidPageToken for empty object, got %v", err)
	}
}

func TestParsePageSize(t *testing.T) {
	size, err := ParsePageSize("", 25, 40)
	if err != nil || size != 25 {
		t.Fatalf("expected default 25, got %d (%v)", size, err)
	}

	size, err = ParsePageSize("400", 25, 40)
	if err != nil || size != 40 {
		t.Fatalf("expected clamped 40, got %d (%v)", size, err)
	}

	if _, err := ParsePageSize("abc", 25, 40); err == nil {
		t.Fatal("expected error for non-numeric size")
	}
	if _, err := ParsePageSize("0", 25, 40); err == nil {
		t.Fatal("expected error for zero size")
	}
}
