// Package authctx builds the RequestContext carried on every Invoke: it
// originates trace/span ids when the host has none to propagate, and
// opportunistically decodes a bearer token into an AuthRecord. Neither
// the decode nor its result are ever verified or enforced here — the
// core treats AuthRecord as an opaque, purely-informational passenger
// (spec.md §1 Non-goals: no authN/authZ in the core).
package authctx

import (
	"github.com/golang-jwt/jwt/v4"

	"github.com/splicehq/splice/cmn/cos"
	"github.com/splicehq/splice/proto"
)

// Claims is the subset of a bearer token's payload authctx understands.
// Unknown claims are ignored; a malformed token, or one without a
// subject, yields no AuthRecord rather than an error, since the core
// never rejects an invocation on its account. The signature is not
// verified, so an unsigned token with a subject does yield a record.
type Claims struct {
	Subject string   `json:"sub"`
	Roles   []string `json:"roles"`
	jwt.RegisteredClaims
}

// Builder assembles RequestContext values for invocations originated
// at this process's boundary (as opposed to ones forwarded from an
// upstream caller, which already carry their own RequestContext).
type Builder struct {
	headerName string // bearer-token source header, e.g. "Authorization"
}

func NewBuilder(headerName string) *Builder {
	if headerName == "" {
		headerName = "Authorization"
	}
	return &Builder{headerName: headerName}
}

// New originates a fresh RequestContext: new trace id, new span id (no
// parent), and an AuthRecord decoded from headers if a bearer token is
// present and parses.
func (b *Builder) New(headers []proto.Header) proto.RequestContext {
	rc := proto.RequestContext{
		TraceID: cos.GenUUID(),
		SpanID:  cos.GenUUID(),
		Headers: headers,
	}
	if rec := b.decodeAuth(headers); rec != nil {
		rc.Auth = rec
	}
	return rc
}

// Child derives a new span under parent's trace, for a sub-invocation
// made on behalf of an already-in-flight request.
func (b *Builder) Child(parent proto.RequestContext) proto.RequestContext {
	child := parent
	child.SpanID = cos.GenUUID()
	return child
}

// decodeAuth looks for headerName among headers and, if present, parses
// it as a bearer JWT without verifying its signature: the core has no
// notion of a trusted signing key, and isn't the component responsible
// for rejecting bad tokens (spec.md §1 Non-goals).
func (b *Builder) decodeAuth(headers []proto.Header) *proto.AuthRecord {
	token := bearerToken(headers, b.headerName)
	if token == "" {
		return nil
	}
	var claims Claims
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return nil
	}
	if claims.Subject == "" {
		return nil
	}
	return &proto.AuthRecord{UserID: claims.Subject, Roles: claims.Roles}
}

func bearerToken(headers []proto.Header, name string) string {
	const prefix = "Bearer "
	for _, h := range headers {
		if !equalFold(h.Name, name) {
			continue
		}
		if len(h.Value) > len(prefix) && equalFold(h.Value[:len(prefix)], prefix) {
			return h.Value[len(prefix):]
		}
		return ""
	}
	return ""
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
