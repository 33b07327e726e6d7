/*
Copyright (C) 2026  ReedCMS Contributors

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package auth is the hashing primitive backing the users table:
// Argon2id per RFC 9106's second recommendation, PHC-encoded, with
// timing-safe verification. Everything else about authentication
// (sessions, roles, HTTP) is out of scope.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/reedcms/reedbase/errs"
)

// RFC 9106 second recommendation: m ~= 19456 KiB, t = 2, p = 1.
const (
	memoryKiB  = 19 * 1024
	iterations = 2
	parallel   = 1
	saltLen    = 16
	keyLen     = 32
)

// Hash derives the PHC-encoded Argon2id hash of password. Deliberately
// slow (~100ms on commodity hardware) -- this is a design decision,
// not a performance bug.
func Hash(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", errs.New(errs.IoError, "auth.Hash", "", err)
	}
	key := argon2.IDKey([]byte(password), salt, iterations, memoryKiB, parallel, keyLen)
	return encodePHC(salt, key), nil
}

func encodePHC(salt, key []byte) string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, memoryKiB, iterations, parallel,
		b64(salt), b64(key))
}

// Verify reports whether password matches the PHC-encoded hash phc, in
// constant time with respect to the comparison itself.
func Verify(phc, password string) (bool, error) {
	m, t, p, salt, key, err := decodePHC(phc)
	if err != nil {
		return false, err
	}
	candidate := argon2.IDKey([]byte(password), salt, t, m, p, uint32(len(key)))
	return subtle.ConstantTimeCompare(candidate, key) == 1, nil
}

func decodePHC(phc string) (m uint32, t uint32, p uint8, salt, key []byte, err error) {
	parts := strings.Split(phc, "$")
	// parts[0] == "", parts[1] == "argon2id", parts[2] == "v=19",
	// parts[3] == "m=...,t=...,p=...", parts[4] == salt, parts[5] == hash
	if len(parts) != 6 || parts[1] != "argon2id" {
		return 0, 0, 0, nil, nil, errs.New(errs.ValidationError, "auth.Verify", "", fmt.Errorf("malformed PHC string"))
	}
	if _, scanErr := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &m, &t, &p); scanErr != nil {
		return 0, 0, 0, nil, nil, errs.New(errs.ValidationError, "auth.Verify", "", scanErr)
	}
	salt, err = unb64(parts[4])
	if err != nil {
		return 0, 0, 0, nil, nil, errs.New(errs.ValidationError, "auth.Verify", "", err)
	}
	key, err = unb64(parts[5])
	if err != nil {
		return 0, 0, 0, nil, nil, errs.New(errs.ValidationError, "auth.Verify", "", err)
	}
	return m, t, p, salt, key, nil
}
