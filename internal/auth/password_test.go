package auth

import "testing"

func TestPasswordHashAndVerify(t *testing.T) {
	hash, err := HashPassword("s3nh4-forte")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "s3nh4-forte" {
		t.Fatalf("hash equals plaintext")
	}
	if err := VerifyPassword(hash, "s3nh4-forte"); err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if err := VerifyPassword(hash, "senha-errada"); err == nil {
		t.Fatalf("expected mismatch error")
	}
}

func TestPasswordEdgeCases(t *testing.T) {
	if _, err := HashPassword(""); err == nil {
		t.Fatalf("expected error for empty password")
	}
	if err := VerifyPassword("", "qualquer"); err == nil {
		t.Fatalf("expected error for empty hash")
	}
}
