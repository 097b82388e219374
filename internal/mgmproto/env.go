/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package mgmproto implements the opaque query/env wire protocol (§6.2)
// used between the MGM and FST daemons: getfmd, dumpmd, getxattr, and
// rewrite queries, each carried as a flat "k=v&k=v"-encoded env, plus the
// streaming dumpmd decoder that turns one line per FileRecord into
// internal/fmd.Record values without shelling out to a temp file.
package mgmproto

import (
	"net/url"
	"strconv"
	"strings"
)

// Env is a flat string-keyed query/reply payload, the same shape
// internal/symkey seals into capabilities.
type Env map[string]string

// Encode renders e as a "k=v&k=v" string using URL query escaping.
func (e Env) Encode() string {
	v := url.Values{}
	for k, val := range e {
		v.Set(k, val)
	}
	return v.Encode()
}

// DecodeEnv parses a "k=v&k=v" string into an Env.
func DecodeEnv(s string) (Env, error) {
	v, err := url.ParseQuery(s)
	if err != nil {
		return nil, err
	}
	e := Env{}
	for k := range v {
		e[k] = v.Get(k)
	}
	return e, nil
}

func (e Env) Int64(key string) (int64, bool) {
	s, ok := e[key]
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	return n, err == nil
}

func (e Env) Uint64(key string) (uint64, bool) {
	s, ok := e[key]
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseUint(s, 10, 64)
	return n, err == nil
}

func (e Env) Uint32(key string) (uint32, bool) {
	n, ok := e.Uint64(key)
	return uint32(n), ok
}

// StatusRetryable reports whether an opaque-query reply status code falls
// in the transient range [100,300) that callers must retry once with a
// 1-second back-off (§6.2).
func StatusRetryable(code int) bool {
	return code >= 100 && code < 300
}

// IsError reports whether a raw reply line is the "ERROR..." form used
// across every opaque query.
func IsError(line string) bool {
	return strings.HasPrefix(line, "ERROR")
}
