/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package symkey implements the shared symmetric-key store and the
// capability engine built on top of it (C1). A capability is an opaque,
// HMAC-signed, time-bounded envelope that authorizes one fid transfer
// between two storage nodes; it is minted by the MGM and verified by the
// receiving FST without either side needing a shared session.
//
// Capabilities are sealed with HMAC-SHA256 under the selected key, and keys
// are identified by the SHA256 digest of their raw bytes.
package symkey

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// KeySize is the raw length of a symmetric key, in bytes.
	KeySize = 20

	// Grace is the margin before a key's expiry after which the key is no
	// longer used to create new capabilities.
	Grace = 5 * time.Second

	// DeletionOffset delays physical deletion of an expired key past its
	// expiry so that in-flight verifications signed just before expiry
	// still succeed.
	DeletionOffset = 60 * time.Second

	hmacBlockSize  = 64
	hmacResultSize = sha256.Size
)

var (
	ErrInvalidKeyLength  = errors.New("raw key must be exactly 20 bytes")
	ErrKeyNotFound       = errors.New("no key with that digest")
	ErrNoCurrentKey      = errors.New("no valid current key")
	ErrKeyExpired        = errors.New("key has expired")
	ErrCapabilityExpired = errors.New("capability has expired")
	ErrCapabilityBadSig  = errors.New("capability signature is invalid")
	ErrCapabilityCorrupt = errors.New("capability payload is corrupt")
)

// Clock is overridable for deterministic expiry tests (property 6 / S5),
// aliased to jwt.ClockFunc so expiry checks here and capability-claim
// validation in ExtractCapability share the same time-injection seam.
type Clock = jwt.ClockFunc

// SymKey is a single installed key: its raw bytes, the base64 encoding used
// on the wire, and a digest used to reference it without exposing the raw
// secret.
type SymKey struct {
	Raw      [KeySize]byte
	Base64   string
	Digest   [sha256.Size]byte
	Digest64 string
	// Expiry is a unix-seconds timestamp; 0 means non-expiring.
	Expiry int64
}

func newSymKey(raw []byte, expiry int64) (*SymKey, error) {
	if len(raw) != KeySize {
		return nil, ErrInvalidKeyLength
	}
	k := &SymKey{Expiry: expiry}
	copy(k.Raw[:], raw)
	k.Base64 = base64.StdEncoding.EncodeToString(k.Raw[:])
	k.Digest = sha256.Sum256(k.Raw[:])
	k.Digest64 = base64.StdEncoding.EncodeToString(k.Digest[:])
	return k, nil
}

// validForCreation reports whether k may be used to mint new capabilities:
// non-expiring, or not yet within Grace of expiry. The comparison is done
// through jwt.NumericDate, the same claim-timestamp type a jwt.Validator
// uses for exp/nbf/iat, so the capability's expiry behaves like a jwt claim
// even though the envelope itself is HMAC-sealed rather than jwt-encoded.
func (k *SymKey) validForCreation(now time.Time) bool {
	if k.Expiry == 0 {
		return true
	}
	return jwt.NewNumericDate(now.Add(Grace)).Before(time.Unix(k.Expiry, 0))
}

// validForExtraction reports whether k may still be used to verify
// capabilities sealed earlier: accepted up until DeletionOffset past
// expiry.
func (k *SymKey) validForExtraction(now time.Time) bool {
	if k.Expiry == 0 {
		return true
	}
	deadline := time.Unix(k.Expiry, 0).Add(DeletionOffset)
	return !jwt.NewNumericDate(now).After(deadline)
}

// deleted reports whether k is past its deletion horizon and should be
// pruned from the store.
func (k *SymKey) deleted(now time.Time) bool {
	if k.Expiry == 0 {
		return false
	}
	return jwt.NewNumericDate(now).After(time.Unix(k.Expiry, 0).Add(DeletionOffset))
}

// Store is the insertion-ordered SymKey table (gSymKeyStore in the original
// design). All mutating operations serialize on mtx; reads take the same
// mutex in read mode, matching the "one writer at a time, readers under the
// same mutex" policy.
type Store struct {
	mtx        sync.RWMutex
	order      []string
	keys       map[string]*SymKey
	currentKey *SymKey
	now        Clock
}

// NewStore creates an empty key store.
func NewStore() *Store {
	return &Store{
		keys: make(map[string]*SymKey),
		now:  time.Now,
	}
}

// WithClock overrides the store's time source; used by tests only.
func (s *Store) WithClock(c Clock) *Store {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.now = c
	return s
}

func (s *Store) clock() time.Time {
	if s.now != nil {
		return s.now.Now()
	}
	return time.Now()
}

// SetKey installs raw (20 raw bytes, or a base64-encoded 20 byte string) as
// a key expiring at expiry (unix seconds, 0 = non-expiring). If a key with
// the same digest already exists its expiry is replaced rather than a
// duplicate being inserted. The newly installed key becomes CurrentKey.
func (s *Store) SetKey(raw string, expiry int64) (*SymKey, error) {
	rb, err := decodeRaw(raw)
	if err != nil {
		return nil, err
	}
	k, err := newSymKey(rb, expiry)
	if err != nil {
		return nil, err
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()
	if existing, ok := s.keys[k.Digest64]; ok {
		existing.Expiry = expiry
		s.currentKey = existing
		return existing, nil
	}
	s.keys[k.Digest64] = k
	s.order = append(s.order, k.Digest64)
	s.currentKey = k
	return k, nil
}

// decodeRaw accepts either a raw 20-byte key or its base64 encoding.
func decodeRaw(raw string) ([]byte, error) {
	if len(raw) == KeySize {
		return []byte(raw), nil
	}
	b, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, ErrInvalidKeyLength
	}
	if len(b) != KeySize {
		return nil, ErrInvalidKeyLength
	}
	return b, nil
}

// GetKey performs an exact digest lookup, pruning the key first if it has
// passed its deletion horizon.
func (s *Store) GetKey(digest64 string) (*SymKey, bool) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.pruneLocked()
	k, ok := s.keys[digest64]
	return k, ok
}

// CurrentKeyDigest returns the current key's digest, for callers (authz)
// that only need to compare identity, never the raw key material.
func (s *Store) CurrentKeyDigest() (string, bool) {
	k, ok := s.CurrentKey()
	if !ok {
		return "", false
	}
	return k.Digest64, true
}

// CurrentKey returns the most recently installed key iff it is still valid
// for minting new capabilities.
func (s *Store) CurrentKey() (*SymKey, bool) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	if s.currentKey == nil || !s.currentKey.validForCreation(s.clock()) {
		return nil, false
	}
	return s.currentKey, true
}

// pruneLocked deletes keys past DeletionOffset. Callers must hold mtx.
func (s *Store) pruneLocked() {
	now := s.clock()
	live := s.order[:0]
	for _, d := range s.order {
		if k := s.keys[d]; k != nil && k.deleted(now) {
			delete(s.keys, d)
			continue
		}
		live = append(live, d)
	}
	s.order = live
}

// ---- hashing primitives (§4.1) ----

// HMACSHA256 computes an HMAC-SHA256 over data using key, using the stated
// block/result sizes (standard for SHA256: 64/32).
func HMACSHA256(key, data []byte) []byte {
	_ = hmacBlockSize
	_ = hmacResultSize
	m := hmac.New(sha256.New, key)
	m.Write(data)
	return m.Sum(nil)
}

// SHA256Hex returns the lowercase hex SHA256 digest of data.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func Base64Encode(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

func Base64Decode(s string) ([]byte, error) { return base64.StdEncoding.DecodeString(s) }

// TrimBase64Prefix strips the "base64:" wire prefix convention used by some
// capability fields, returning the value unchanged if the prefix is absent.
func TrimBase64Prefix(s string) string {
	return strings.TrimPrefix(s, "base64:")
}

// ---- capability envelope (§4.1, §6.1) ----

// Env is a flat key-value capability payload.
type Env map[string]string

// Encode renders e as a "k=v&k=v" URL-query-escaped string, the wire form
// a capability travels in once attached to a transfer URL.
func (e Env) Encode() string {
	v := url.Values{}
	for k, val := range e {
		v.Set(k, val)
	}
	return v.Encode()
}

// sealedMessage is the decoded form of cap.msg: which key signed it, when
// it expires, and the original env.
type sealedMessage struct {
	digest64 string
	expiry   int64
	env      Env
}

func (m sealedMessage) encode() []byte {
	v := url.Values{}
	for k, val := range m.env {
		v.Set(k, val)
	}
	body := fmt.Sprintf("%s|%d|%s", m.digest64, m.expiry, v.Encode())
	return []byte(body)
}

func decodeSealedMessage(b []byte) (sealedMessage, error) {
	parts := strings.SplitN(string(b), "|", 3)
	if len(parts) != 3 {
		return sealedMessage{}, ErrCapabilityCorrupt
	}
	expiry, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return sealedMessage{}, ErrCapabilityCorrupt
	}
	vals, err := url.ParseQuery(parts[2])
	if err != nil {
		return sealedMessage{}, ErrCapabilityCorrupt
	}
	env := Env{}
	for k := range vals {
		env[k] = vals.Get(k)
	}
	return sealedMessage{digest64: parts[0], expiry: expiry, env: env}, nil
}

// CreateCapability seals in under key, valid for the given duration from
// now. The returned env is a copy of in with "cap.sym" and "cap.msg" added.
func (s *Store) CreateCapability(in Env, key *SymKey, validity time.Duration) (Env, error) {
	if key == nil {
		return nil, ErrNoCurrentKey
	}
	now := s.clock()
	if !key.validForCreation(now) {
		return nil, ErrKeyExpired
	}
	expiry := now.Add(validity).Unix()
	msg := sealedMessage{digest64: key.Digest64, expiry: expiry, env: in}
	body := msg.encode()
	sig := HMACSHA256(key.Raw[:], body)

	out := Env{}
	for k, v := range in {
		out[k] = v
	}
	out["cap.msg"] = Base64Encode(body)
	out["cap.sym"] = hex.EncodeToString(sig)
	return out, nil
}

// ExtractCapability verifies and unseals an envelope produced by
// CreateCapability, returning the original (non cap.* ) fields.
func (s *Store) ExtractCapability(in Env) (Env, error) {
	rawMsg, ok := in["cap.msg"]
	if !ok {
		return nil, ErrCapabilityCorrupt
	}
	rawSig, ok := in["cap.sym"]
	if !ok {
		return nil, ErrCapabilityCorrupt
	}
	body, err := Base64Decode(rawMsg)
	if err != nil {
		return nil, ErrCapabilityCorrupt
	}
	msg, err := decodeSealedMessage(body)
	if err != nil {
		return nil, err
	}
	key, ok := s.GetKey(msg.digest64)
	if !ok {
		return nil, ErrKeyNotFound
	}
	now := s.clock()
	if !key.validForExtraction(now) {
		return nil, ErrKeyExpired
	}
	wantSig := HMACSHA256(key.Raw[:], body)
	gotSig, err := hex.DecodeString(rawSig)
	if err != nil || !hmac.Equal(wantSig, gotSig) {
		return nil, ErrCapabilityBadSig
	}
	if msg.expiry != 0 && jwt.NewNumericDate(now).After(time.Unix(msg.expiry, 0)) {
		return nil, ErrCapabilityExpired
	}
	return msg.env, nil
}

// DigestOrder returns the digests of installed keys in insertion order;
// exposed for diagnostics/tests only.
func (s *Store) DigestOrder() []string {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// SecureRandomKey generates a fresh 20-byte key suitable for SetKey.
func SecureRandomKey() ([]byte, error) {
	b := make([]byte, KeySize)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}
