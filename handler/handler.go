// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

// Package handler provides adapters to the tinymq.Handler and
// tinymq.NotifyFunc types for functions with other signatures.
//
// Parameters are decoded from the JSON parameters of the request into a value
// of the parameter type. Results are returned to the worker, which encodes
// them as the JSON response.
package handler

import (
	"context"
	"encoding/json"
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/creachadair/tinymq"
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// ParamResultError adapts a function f that accepts parameters of type P and
// returns a result of type R and an error, to a tinymq.Handler.
func ParamResultError[P, R any](f func(context.Context, P) (R, error)) tinymq.Handler {
	return func(ctx context.Context, params json.RawMessage) (any, error) {
		var p P
		if err := unmarshal(params, &p); err != nil {
			return nil, err
		}
		r, err := f(ctx, p)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
}

// ParamResult adapts a function f that accepts parameters of type P and
// returns a result of type R without error, to a tinymq.Handler.
func ParamResult[P, R any](f func(context.Context, P) R) tinymq.Handler {
	return func(ctx context.Context, params json.RawMessage) (any, error) {
		var p P
		if err := unmarshal(params, &p); err != nil {
			return nil, err
		}
		return f(ctx, p), nil
	}
}

// ParamError adapts a function f that accepts parameters of type P and returns
// an error with no result, to a tinymq.Handler. The response to a successful
// call is null.
func ParamError[P any](f func(context.Context, P) error) tinymq.Handler {
	return func(ctx context.Context, params json.RawMessage) (any, error) {
		var p P
		if err := unmarshal(params, &p); err != nil {
			return nil, err
		}
		return nil, f(ctx, p)
	}
}

// ResultError adapts a function f that accepts no parameters and returns a
// result of type R and an error, to a tinymq.Handler.
func ResultError[R any](f func(context.Context) (R, error)) tinymq.Handler {
	return func(ctx context.Context, _ json.RawMessage) (any, error) {
		r, err := f(ctx)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
}

// ResultOnly adapts a function f that accepts no parameters and returns a
// result of type R, to a tinymq.Handler.
func ResultOnly[R any](f func(context.Context) R) tinymq.Handler {
	return func(ctx context.Context, _ json.RawMessage) (any, error) {
		return f(ctx), nil
	}
}

// Notify adapts a function f that accepts a notification of type P to a
// tinymq.NotifyFunc.
func Notify[P any](f func(context.Context, P) error) tinymq.NotifyFunc {
	return func(ctx context.Context, payload json.RawMessage) error {
		var p P
		if err := unmarshal(payload, &p); err != nil {
			return err
		}
		return f(ctx, p)
	}
}

// unmarshal decodes data into v. Missing data leaves v unchanged.
func unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := codec.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid parameters: %w", err)
	}
	return nil
}
