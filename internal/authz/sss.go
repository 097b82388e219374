// Package authz implements the sss/local credential check the balance
// pull endpoint requires of every FST caller (§4.7 step 1). The real
// xrootd sss protocol negotiates a shared secret out of band; here the FST
// and MGM already share the same symkey.Store key material (C1), so the
// check is a digest comparison against the current key rather than a new
// authentication mechanism.
package authz

import "context"

type ctxKey struct{}

// WithToken attaches the caller-presented token to ctx, set by the HTTP
// handler from the request's credential header before calling Schedule.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, ctxKey{}, token)
}

// TokenFromContext retrieves a token attached by WithToken.
func TokenFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKey{}).(string)
	return v, ok
}

// KeyDigester is the subset of symkey.Store the checker needs.
type KeyDigester interface {
	CurrentKeyDigest() (string, bool)
}

// SSSChecker implements balance.AuthChecker by comparing the caller's
// token against the current shared key's digest.
type SSSChecker struct {
	Keys KeyDigester
}

// Authorized implements balance.AuthChecker.
func (c SSSChecker) Authorized(ctx context.Context) bool {
	token, ok := TokenFromContext(ctx)
	if !ok || token == "" {
		return false
	}
	digest, ok := c.Keys.CurrentKeyDigest()
	if !ok {
		return false
	}
	return token == digest
}
