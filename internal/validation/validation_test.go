package validation

import (
	"fmt"
	"testing"
)

func TestValidPINRejectsWeakSet(t *testing.T) {
	weak := []string{"0000", "1111", "2222", "3333", "4444", "5555", "6666", "7777", "8888", "9999", "1234", "4321"}
	for _, pin := range weak {
		if ValidPIN(pin) {
			t.Fatalf("expected weak pin %s to be rejected", pin)
		}
	}
}

func TestValidPINAcceptsEveryOtherFourDigitPIN(t *testing.T) {
	accepted := 0
	for i := 0; i < 10000; i++ {
		pin := fmt.Sprintf("%04d", i)
		if ValidPIN(pin) {
			accepted++
		}
	}
	if accepted != 10000-len(weakPINs) {
		t.Fatalf("expected %d accepted pins, got %d", 10000-len(weakPINs), accepted)
	}
}

func TestValidPINRejectsMalformed(t *testing.T) {
	for _, pin := range []string{"", "123", "12345", "12a4", " 5678", "५६७८"} {
		if ValidPIN(pin) {
			t.Fatalf("expected %q to be rejected", pin)
		}
	}
}

func TestNormalizePhoneVariants(t *testing.T) {
	inputs := []string{"0712345678", "254712345678", "+254712345678", "0712 345 678"}
	for _, in := range inputs {
		if !ValidPhone(in) {
			t.Fatalf("expected %q to be valid", in)
		}
		if got := NormalizePhone(in); got != "+254712345678" {
			t.Fatalf("NormalizePhone(%q) = %q", in, got)
		}
	}
}

func TestNormalizePhoneIdempotent(t *testing.T) {
	for _, in := range []string{"0712345678", "0112345678", "254112345678"} {
		once := NormalizePhone(in)
		if twice := NormalizePhone(once); twice != once {
			t.Fatalf("normalize not idempotent: %q -> %q -> %q", in, once, twice)
		}
	}
}

func TestValidPhoneRejects(t *testing.T) {
	for _, in := range []string{"", "0812345678", "07123456", "+255712345678", "07123456789", "abc"} {
		if ValidPhone(in) {
			t.Fatalf("expected %q to be rejected", in)
		}
	}
}

func TestValidNationalID(t *testing.T) {
	if !ValidNationalID("12345678") {
		t.Fatal("expected 8 digit id to be valid")
	}
	for _, in := range []string{"1234567", "123456789", "1234567a", ""} {
		if ValidNationalID(in) {
			t.Fatalf("expected %q to be rejected", in)
		}
	}
}

func TestParseAmount(t *testing.T) {
	amount, err := ParseAmount("500")
	if err != nil {
		t.Fatalf("ParseAmount err: %v", err)
	}
	if amount.String() != "500" {
		t.Fatalf("unexpected amount %s", amount)
	}

	if amount, err := ParseAmount("12.50"); err != nil || amount.StringFixed(2) != "12.50" {
		t.Fatalf("unexpected decimal parse: %v %v", amount, err)
	}

	if amount, err := ParseAmount(" 999999999999.99 "); err != nil || amount.String() != "999999999999.99" {
		t.Fatalf("unexpected upper bound parse: %v %v", amount, err)
	}

	for _, in := range []string{
		"", "0", "0.00", "-5", "abc", "1e", "1e3", "1e9999", "1e50000000", "1e-50000000",
		"1E2", "0x10", "+5", ".5", "5.", "12.345", "1,000", "1 000", "1234567890123",
	} {
		if _, err := ParseAmount(in); err == nil {
			t.Fatalf("expected %q to be rejected", in)
		}
	}
}
