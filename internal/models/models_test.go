package models

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

// gormTag extracts the gorm tag from a struct field.
func gormTag(t *testing.T, typ reflect.Type, fieldName string) string {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	return f.Tag.Get("gorm")
}

// assertGormTag checks that a struct field's gorm tag contains the expected value.
func assertGormTag(t *testing.T, typ reflect.Type, fieldName, expected string) {
	t.Helper()
	tag := gormTag(t, typ, fieldName)
	if !strings.Contains(tag, expected) {
		t.Errorf("%s.%s gorm tag = %q, want to contain %q", typ.Name(), fieldName, tag, expected)
	}
}

// assertFieldType checks that a struct field has the expected Go type.
func assertFieldType(t *testing.T, typ reflect.Type, fieldName, expectedType string) {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	got := f.Type.String()
	if got != expectedType {
		t.Errorf("%s.%s type = %q, want %q", typ.Name(), fieldName, got, expectedType)
	}
}

func TestStoreEntry_Fields(t *testing.T) {
	typ := reflect.TypeOf(StoreEntry{})

	assertGormTag(t, typ, "Key", "primaryKey")
	assertGormTag(t, typ, "Key", "size:64")
	assertGormTag(t, typ, "Value", "type:longtext")

	assertFieldType(t, typ, "Key", "string")
	assertFieldType(t, typ, "Value", "string")
	assertFieldType(t, typ, "UpdatedAt", "time.Time")
}

func TestRun_Fields(t *testing.T) {
	typ := reflect.TypeOf(Run{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "ID", "size:36")
	assertGormTag(t, typ, "ChannelID", "index")
	assertGormTag(t, typ, "Phase", "size:16")
	assertGormTag(t, typ, "Phase", "index")
	assertGormTag(t, typ, "Error", "type:text")
	assertGormTag(t, typ, "StartedAt", "index")

	assertFieldType(t, typ, "Messages", "int")
	assertFieldType(t, typ, "Threads", "int")
	assertFieldType(t, typ, "StartedAt", "time.Time")
	assertFieldType(t, typ, "FinishedAt", "*time.Time")
}

func TestRun_Instantiation(t *testing.T) {
	now := time.Now()
	r := Run{
		ID:          "0b6d1c8e-6a0e-4a57-9d5e-8c0d9f3f2a11",
		ChannelID:   "C0123",
		ChannelName: "general",
		Phase:       "completed",
		Messages:    120,
		Threads:     4,
		StartedAt:   now,
		FinishedAt:  &now,
	}
	if r.FinishedAt == nil || !r.FinishedAt.Equal(now) {
		t.Errorf("FinishedAt = %v, want %v", r.FinishedAt, now)
	}
}
