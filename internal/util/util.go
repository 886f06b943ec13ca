// Package util provides small parsing helpers shared by the CLI and CSV transfer.
package util

import (
	"math"
	"strconv"
	"strings"
)

// ParseOptionalFloat parses a trimmed decimal. Empty, malformed and non-finite
// input reports false.
func ParseOptionalFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// ParseOptionalUint parses a trimmed unsigned id. Empty, malformed, negative
// and zero input reports false.
func ParseOptionalUint(s string) (uint, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseUint(s, 10, 0)
	if err != nil || v == 0 {
		return 0, false
	}
	return uint(v), true
}

// SplitList splits s on sep, trimming items and dropping empty ones.
func SplitList(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ParseUintList parses a comma-separated id list, skipping malformed items.
func ParseUintList(s string) []uint {
	var out []uint
	for _, item := range SplitList(s, ",") {
		if id, ok := ParseOptionalUint(item); ok {
			out = append(out, id)
		}
	}
	return out
}

// FormatOptionalUint renders id or an empty string.
func FormatOptionalUint(id *uint) string {
	if id == nil {
		return ""
	}
	return strconv.FormatUint(uint64(*id), 10)
}

// FormatOptionalFloat renders v in the shortest exact form or an empty string.
func FormatOptionalFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// Contains reports whether slice holds v.
func Contains[T comparable](slice []T, v T) bool {
	for _, item := range slice {
		if item == v {
			return true
		}
	}
	return false
}
