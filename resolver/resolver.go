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

// Package resolver implements the environment/language fallback
// algorithm: given a logical key and optional language/environment, it
// produces the ordered sequence of concrete keys to try and returns
// the first one that resolves.
package resolver

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/reedcms/reedbase/errs"
)

// MaxRecommendedDepth is the recommended maximum dot-segment depth.
// Deeper keys are accepted; nothing in this package or the store
// counts or flags them.
const MaxRecommendedDepth = 8

var segmentRe = regexp.MustCompile(`^[a-z0-9_-]+$`)
var suffixRe = regexp.MustCompile(`^[a-z0-9_]+$`)

// ValidateKey checks the logical-key syntax: one or more dot-separated
// segments of `[a-z0-9_-]+`, with an optional `@suffix` that may
// appear at most twice -- once for language, once for environment, as
// produced by the resolver's own k@L@E candidate (§4.5). It does not
// check that a single-suffix key's suffix is specifically a language
// or environment token belonging to the caller's own separate
// arguments -- that is ValidateSuffix's job.
func ValidateKey(key string) error {
	if key == "" {
		return errs.New(errs.ValidationError, "resolver.ValidateKey", key, fmt.Errorf("empty key"))
	}
	base := key
	if i := strings.IndexByte(key, '@'); i >= 0 {
		base = key[:i]
		suffixes := strings.Split(key[i+1:], "@")
		if len(suffixes) > 2 {
			return errs.New(errs.ValidationError, "resolver.ValidateKey", key,
				fmt.Errorf("at most two @suffix segments allowed, got %d", len(suffixes)))
		}
		for _, suffix := range suffixes {
			if err := ValidateSuffix(suffix); err != nil {
				return err
			}
		}
	}
	segments := strings.Split(base, ".")
	for _, seg := range segments {
		if seg == "" || !segmentRe.MatchString(seg) {
			return errs.New(errs.ValidationError, "resolver.ValidateKey", key,
				fmt.Errorf("invalid segment %q", seg))
		}
	}
	return nil
}

// ValidateSuffix checks a bare language or environment token:
// `[a-z0-9_]+`, no leading '@'.
func ValidateSuffix(suffix string) error {
	if suffix == "" || !suffixRe.MatchString(suffix) {
		return errs.New(errs.ValidationError, "resolver.ValidateSuffix", suffix,
			fmt.Errorf("invalid suffix %q", suffix))
	}
	return nil
}

// Depth returns the dot-segment count of a key's base (suffix
// excluded).
func Depth(key string) int {
	base := key
	if i := strings.IndexByte(key, '@'); i >= 0 {
		base = key[:i]
	}
	return strings.Count(base, ".") + 1
}

// Candidates returns the ordered list of concrete keys to try for a
// lookup of key with optional language/environment: k@L@E, k@L, k@E,
// k, omitting any candidate whose suffix component is absent.
func Candidates(key, language, environment string) []string {
	var out []string
	if language != "" && environment != "" {
		out = append(out, key+"@"+language+"@"+environment)
	}
	if language != "" {
		out = append(out, key+"@"+language)
	}
	if environment != "" {
		out = append(out, key+"@"+environment)
	}
	out = append(out, key)
	return out
}

// NotFoundError is returned when no candidate key resolves.
type NotFoundError struct {
	Resource    string
	Language    string
	Environment string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("resource %q not found (language=%q, environment=%q)", e.Resource, e.Language, e.Environment)
}

// Result is the outcome of a successful Resolve.
type Result struct {
	Value       string
	ResolvedKey string
	Language    string
	Environment string
}

// Lookup is a single concrete-key lookup function, typically
// cache.Cache.Lookup bound to one table.
type Lookup func(key string) (string, bool)

// Resolve validates key, builds the candidate sequence, and returns the
// first candidate that lookup resolves.
func Resolve(lookup Lookup, key, language, environment string) (Result, error) {
	if err := ValidateKey(key); err != nil {
		return Result{}, err
	}
	if language != "" {
		if err := ValidateSuffix(language); err != nil {
			return Result{}, err
		}
	}
	if environment != "" {
		if err := ValidateSuffix(environment); err != nil {
			return Result{}, err
		}
	}
	for _, candidate := range Candidates(key, language, environment) {
		if v, ok := lookup(candidate); ok {
			return Result{Value: v, ResolvedKey: candidate, Language: language, Environment: environment}, nil
		}
	}
	return Result{}, errs.New(errs.NotFound, "resolver.Resolve", key,
		&NotFoundError{Resource: key, Language: language, Environment: environment})
}
