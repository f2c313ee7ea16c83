package authctx

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/splicehq/splice/cmn/cos"
	"github.com/splicehq/splice/proto"
)

func signedToken(t *testing.T, claims Claims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestNewOriginatesTraceAndSpan(t *testing.T) {
	b := NewBuilder("")
	rc := b.New(nil)
	if !cos.IsValidUUID(rc.TraceID) || !cos.IsValidUUID(rc.SpanID) {
		t.Fatalf("expected generated ids, got trace=%q span=%q", rc.TraceID, rc.SpanID)
	}
	if rc.TraceID == rc.SpanID {
		t.Fatalf("trace and span ids should differ")
	}
}

func TestNewDecodesBearerToken(t *testing.T) {
	claims := Claims{Subject: "alice", Roles: []string{"admin", "dev"}}
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Hour))
	token := signedToken(t, claims)

	b := NewBuilder("Authorization")
	rc := b.New([]proto.Header{{Name: "Authorization", Value: "Bearer " + token}})
	if rc.Auth == nil {
		t.Fatalf("expected an AuthRecord")
	}
	if rc.Auth.UserID != "alice" || len(rc.Auth.Roles) != 2 {
		t.Fatalf("unexpected auth record: %+v", rc.Auth)
	}
}

func TestNewIgnoresMalformedToken(t *testing.T) {
	b := NewBuilder("Authorization")
	rc := b.New([]proto.Header{{Name: "Authorization", Value: "Bearer not-a-jwt"}})
	if rc.Auth != nil {
		t.Fatalf("expected no AuthRecord for a malformed token, got %+v", rc.Auth)
	}
}

func TestNewIgnoresMissingHeader(t *testing.T) {
	b := NewBuilder("Authorization")
	rc := b.New([]proto.Header{{Name: "X-Other", Value: "irrelevant"}})
	if rc.Auth != nil {
		t.Fatalf("expected no AuthRecord, got %+v", rc.Auth)
	}
}

func TestChildPreservesTraceNewSpan(t *testing.T) {
	b := NewBuilder("")
	parent := b.New(nil)
	child := b.Child(parent)
	if child.TraceID != parent.TraceID {
		t.Fatalf("child should keep parent trace id")
	}
	if child.SpanID == parent.SpanID {
		t.Fatalf("child should get a new span id")
	}
}
