package authz

import (
	"context"
	"testing"
)

type fakeDigester struct {
	digest string
	ok     bool
}

func (f fakeDigester) CurrentKeyDigest() (string, bool) { return f.digest, f.ok }

func TestSSSCheckerAuthorized(t *testing.T) {
	c := SSSChecker{Keys: fakeDigester{digest: "abc123", ok: true}}
	ctx := WithToken(context.Background(), "abc123")
	if !c.Authorized(ctx) {
		t.Fatal("expected authorized with matching digest")
	}
}

func TestSSSCheckerRejectsMismatch(t *testing.T) {
	c := SSSChecker{Keys: fakeDigester{digest: "abc123", ok: true}}
	ctx := WithToken(context.Background(), "wrong")
	if c.Authorized(ctx) {
		t.Fatal("expected rejection on digest mismatch")
	}
}

func TestSSSCheckerRejectsMissingToken(t *testing.T) {
	c := SSSChecker{Keys: fakeDigester{digest: "abc123", ok: true}}
	if c.Authorized(context.Background()) {
		t.Fatal("expected rejection with no token in context")
	}
}

func TestSSSCheckerRejectsNoKeyInstalled(t *testing.T) {
	c := SSSChecker{Keys: fakeDigester{ok: false}}
	ctx := WithToken(context.Background(), "anything")
	if c.Authorized(ctx) {
		t.Fatal("expected rejection when no key is installed")
	}
}
