package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/router-for-me/ErasureRelay/internal/erasure"
)

func TestSignCmdReadsStdin(t *testing.T) {
	body := `{"EventType":"RightToErasureRequest"}`
	cmd := signCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetIn(strings.NewReader(body))
	cmd.SetArgs([]string{"--secret", "s3cret", "--timestamp", "1700000000"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("sign: %v", err)
	}

	line := strings.TrimSpace(out.String())
	header, ok := strings.CutPrefix(line, erasure.SignatureHeaderName+": ")
	if !ok {
		t.Fatalf("unexpected output %q", line)
	}
	if err := erasure.VerifySignature([]byte(body), header, "s3cret"); err != nil {
		t.Fatalf("signature does not verify: %v", err)
	}
}

func TestSignCmdRequiresSecret(t *testing.T) {
	cmd := signCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader("{}"))
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected error without secret")
	}
}

func TestCheckPasswordCmd(t *testing.T) {
	cmd := checkPasswordCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"correct-horse!"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("check-password: %v", err)
	}
	if strings.TrimSpace(out.String()) != "password ok" {
		t.Fatalf("unexpected output %q", out.String())
	}

	weak := checkPasswordCmd()
	weak.SetOut(&bytes.Buffer{})
	weak.SetErr(&bytes.Buffer{})
	weak.SetArgs([]string{"short"})
	if err := weak.Execute(); err == nil {
		t.Fatalf("expected policy failure")
	}
}
