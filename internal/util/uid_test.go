package util

import (
	"math/big"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestGenerateDeterministicUID(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"short key", "test"},
		{"long key", "this_is_a_very_long_key_string_for_testing_uid_generation_across_inputs"},
		{"path key", "out/slice_0001.dcm|seed=0|call=3"},
		{"empty key", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkUID(t, GenerateDeterministicUID(tt.key))
		})
	}
}

func TestGenerateDeterministicUID_Determinism(t *testing.T) {
	if GenerateDeterministicUID("a") != GenerateDeterministicUID("a") {
		t.Error("Same key produced different UIDs")
	}
	if GenerateDeterministicUID("a") == GenerateDeterministicUID("b") {
		t.Error("Different keys produced the same UID")
	}
}

func TestGenerateDeterministicUID_EncodesNameBasedUUID(t *testing.T) {
	uid := GenerateDeterministicUID("seed_0")

	n, ok := new(big.Int).SetString(strings.TrimPrefix(uid, UIDRoot+"."), 10)
	if !ok {
		t.Fatalf("UID suffix is not a decimal integer: %s", uid)
	}
	var u uuid.UUID
	n.FillBytes(u[:])

	if u.Version() != 5 {
		t.Errorf("Expected a version 5 UUID, got version %d", u.Version())
	}
	if u != uuid.NewSHA1(uidNamespace, []byte("seed_0")) {
		t.Errorf("UID %s does not encode the name-based UUID of its key", uid)
	}
}

func checkUID(t *testing.T, uid string) {
	t.Helper()
	if !strings.HasPrefix(uid, UIDRoot+".") {
		t.Errorf("UID should start with %s, got: %s", UIDRoot, uid)
	}
	if len(uid) > 64 {
		t.Errorf("UID too long: %d chars: %s", len(uid), uid)
	}
	for _, c := range uid {
		if c != '.' && (c < '0' || c > '9') {
			t.Fatalf("UID contains invalid character %q: %s", c, uid)
		}
	}
	for i, part := range strings.Split(uid, ".") {
		if len(part) > 1 && part[0] == '0' {
			t.Errorf("Component %d has leading zero in UID: %s", i, uid)
		}
	}
}
