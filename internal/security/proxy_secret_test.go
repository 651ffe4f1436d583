package security

import (
	"strings"
	"testing"
)

func TestEncryptDecryptProxySecretRoundTrip(t *testing.T) {
	t.Setenv("STREAMGATE_SECRET_KEY", "unit-test-key")
	ResetProxyCipherForTests()

	encrypted, err := EncryptProxySecret("proxy-password")
	if err != nil {
		t.Fatalf("EncryptProxySecret: %v", err)
	}
	if !strings.HasPrefix(encrypted, secretPrefix) {
		t.Fatalf("encrypted value %q is missing the %q prefix", encrypted, secretPrefix)
	}
	if strings.Contains(encrypted, "proxy-password") {
		t.Fatal("encrypted value contains the plaintext secret")
	}

	plaintext, wasEncrypted, err := DecryptProxySecret(encrypted)
	if err != nil {
		t.Fatalf("DecryptProxySecret: %v", err)
	}
	if !wasEncrypted {
		t.Fatal("DecryptProxySecret did not recognise an encrypted value")
	}
	if plaintext != "proxy-password" {
		t.Fatalf("DecryptProxySecret returned %q, want proxy-password", plaintext)
	}
}

func TestDecryptProxySecretPassesThroughPlaintext(t *testing.T) {
	t.Setenv("STREAMGATE_SECRET_KEY", "unit-test-key")
	ResetProxyCipherForTests()

	plaintext, wasEncrypted, err := DecryptProxySecret("legacy-plain")
	if err != nil {
		t.Fatalf("DecryptProxySecret: %v", err)
	}
	if wasEncrypted {
		t.Fatal("plaintext value was reported as encrypted")
	}
	if plaintext != "legacy-plain" {
		t.Fatalf("DecryptProxySecret returned %q, want legacy-plain", plaintext)
	}
}

func TestEncryptProxySecretRequiresKey(t *testing.T) {
	t.Setenv("STREAMGATE_SECRET_KEY", "")
	ResetProxyCipherForTests()

	if _, err := EncryptProxySecret("secret"); err == nil {
		t.Fatal("expected an error when no secret key is configured")
	}
}

func TestEncryptProxySecretEmptyInput(t *testing.T) {
	t.Setenv("STREAMGATE_SECRET_KEY", "unit-test-key")
	ResetProxyCipherForTests()

	encrypted, err := EncryptProxySecret("")
	if err != nil {
		t.Fatalf("EncryptProxySecret: %v", err)
	}
	if encrypted != "" {
		t.Fatalf("expected empty output for empty input, got %q", encrypted)
	}
}
