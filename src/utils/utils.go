package utils

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"git.handmade.network/hmn/postmerge/src/oops"
)

// Returns the provided value, or a default value if the input was zero.
func OrDefault[T comparable](v T, def T) T {
	var zero T
	if v == zero {
		return def
	} else {
		return v
	}
}

func IntMax(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Panics if err is non-nil. Typed nil pointers count as nil.
func Must[E error](err E) {
	if !isNilError(err) {
		panic(err)
	}
}

func Must1[T any, E error](v T, err E) T {
	Must(err)
	return v
}

func isNilError[E error](err E) bool {
	var asError error = err
	if asError == nil {
		return true
	}
	v := reflect.ValueOf(asError)
	return v.Kind() == reflect.Ptr && v.IsNil()
}

/*
Recover a panic and convert it to a returned error. Call it like so:

	func MyFunc() (err error) {
		defer utils.RecoverPanicAsError(&err)
	}

If an error was already present, both the existing error and the panic are
kept, so errors.Is works against either of them.
*/
func RecoverPanicAsError(err *error) {
	if r := recover(); r != nil {
		var recoveredErr error
		if rerr, ok := r.(error); ok {
			recoveredErr = rerr
		} else {
			recoveredErr = fmt.Errorf("panic with value: %v", r)
		}
		if *err != nil {
			recoveredErr = errors.Join(recoveredErr, *err)
		}
		*err = oops.New(recoveredErr, "panic recovered as error")
	}
}

// Returns the distinct values of s, in order of first appearance.
func Distinct[T comparable](s []T) []T {
	seen := make(map[T]struct{}, len(s))
	result := make([]T, 0, len(s))
	for _, v := range s {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}

func JoinInts(ids []int, sep string) string {
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = strconv.Itoa(id)
	}
	return strings.Join(strs, sep)
}
