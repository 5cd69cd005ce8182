// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/creachadair/tinymq"
	"github.com/creachadair/tinymq/channel"
	"github.com/creachadair/tinymq/handler"
	"github.com/fortytw2/leaktest"
)

type args struct {
	Name string `json:"name"`
}

type result struct {
	Greeting string `json:"greeting"`
}

func TestHandler(t *testing.T) {
	defer leaktest.Check(t)()

	sw := channel.NewSwitch()
	defer sw.Close()
	w := tinymq.NewWorker(&tinymq.Options{Dialer: sw})
	defer w.Shutdown()

	var broker *channel.Conn
	defer func() {
		if broker != nil {
			broker.Close()
		}
	}()

	check := func(t *testing.T, want, etext string, h tinymq.Handler) {
		t.Helper()
		if err := w.Connect("test://broker", h); err != nil {
			t.Fatalf("Connect: %v", err)
		}
		if broker == nil {
			conn, err := sw.Accept(t.Context())
			if err != nil {
				t.Fatalf("Accept: %v", err)
			}
			broker = &conn
		}
		req, err := tinymq.EncodeRequest("r1", args{Name: "input"})
		if err != nil {
			t.Fatalf("EncodeRequest: %v", err)
		}
		if err := broker.Send(req); err != nil {
			t.Fatalf("Send: %v", err)
		}
		frame, err := broker.Recv()
		if err != nil {
			t.Fatalf("Recv: %v", err)
		}
		rsp, err := tinymq.DecodeReply(frame)
		if err != nil {
			t.Fatalf("DecodeReply: %v", err)
		}
		if rsp.ID != "r1" {
			t.Errorf("Reply ID: got %q, want r1", rsp.ID)
		}
		if err := rsp.Err(); err != nil {
			if !strings.HasPrefix(rsp.Message, etext) || etext == "" {
				t.Fatalf("Call: got error %v, want %q", err, etext)
			}
		} else if etext != "" {
			t.Fatalf("Call: got %s, want error %q", rsp.Response, etext)
		} else if got := string(rsp.Response); got != want && !(want == "null" && got == "") {
			t.Errorf("Call result: got %s, want %s", got, want)
		}
	}
	checkReq := func(t *testing.T, ctx context.Context) {
		t.Helper()
		req := tinymq.ContextRequest(ctx)
		if req == nil {
			t.Error("Context does not contain request")
		} else if req.ID != "r1" {
			t.Errorf("Request ID: got %q, want r1", req.ID)
		}
	}

	t.Run("PRE", func(t *testing.T) {
		t.Run("StructString", func(t *testing.T) {
			check(t, `"input-ok"`, "", handler.ParamResultError(
				func(ctx context.Context, a args) (string, error) {
					checkReq(t, ctx)
					return a.Name + "-ok", nil
				},
			))
		})
		t.Run("MapStruct", func(t *testing.T) {
			check(t, `{"greeting":"hello, input"}`, "", handler.ParamResultError(
				func(ctx context.Context, m map[string]string) (result, error) {
					checkReq(t, ctx)
					return result{Greeting: "hello, " + m["name"]}, nil
				},
			))
		})
		t.Run("Raw", func(t *testing.T) {
			check(t, `{"name":"input"}`, "", handler.ParamResultError(
				func(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
					return raw, nil
				},
			))
		})
		t.Run("Error", func(t *testing.T) {
			check(t, "", "bad robot", handler.ParamResultError(
				func(ctx context.Context, a args) (string, error) {
					checkReq(t, ctx)
					return "", errors.New("bad robot")
				},
			))
		})
		t.Run("BadParams", func(t *testing.T) {
			check(t, "", "invalid parameters", handler.ParamResultError(
				func(ctx context.Context, v struct{ Name int }) (string, error) {
					t.Error("Handler called with invalid parameters")
					return "", nil
				},
			))
		})
	})

	t.Run("PR", func(t *testing.T) {
		check(t, `"input-ok"`, "", handler.ParamResult(
			func(ctx context.Context, a args) string { checkReq(t, ctx); return a.Name + "-ok" },
		))
	})

	t.Run("PE", func(t *testing.T) {
		t.Run("OK", func(t *testing.T) {
			check(t, "null", "", handler.ParamError(
				func(ctx context.Context, a args) error { checkReq(t, ctx); return nil },
			))
		})
		t.Run("Error", func(t *testing.T) {
			check(t, "", "ok", handler.ParamError(
				func(ctx context.Context, a args) error { checkReq(t, ctx); return errors.New("ok") },
			))
		})
	})

	t.Run("RE", func(t *testing.T) {
		t.Run("String", func(t *testing.T) {
			check(t, `"please"`, "", handler.ResultError(
				func(ctx context.Context) (string, error) {
					checkReq(t, ctx)
					return "please", nil
				},
			))
		})
		t.Run("Error", func(t *testing.T) {
			check(t, "", "no thanks", handler.ResultError(
				func(ctx context.Context) (int, error) {
					checkReq(t, ctx)
					return 0, errors.New("no thanks")
				},
			))
		})
	})

	t.Run("RO", func(t *testing.T) {
		check(t, `[1,2,3]`, "", handler.ResultOnly(
			func(ctx context.Context) []int { checkReq(t, ctx); return []int{1, 2, 3} },
		))
	})
}

func TestNotify(t *testing.T) {
	var got args
	f := handler.Notify(func(_ context.Context, a args) error {
		got = a
		if a.Name == "" {
			return errors.New("empty name")
		}
		return nil
	})

	if err := f(t.Context(), json.RawMessage(`{"name":"bell"}`)); err != nil {
		t.Errorf("Notify: unexpected error: %v", err)
	}
	if got.Name != "bell" {
		t.Errorf("Notify: got %+v, want name bell", got)
	}
	if err := f(t.Context(), json.RawMessage(`{}`)); err == nil {
		t.Error("Notify: got nil, want error")
	}
	if err := f(t.Context(), json.RawMessage(`[1]`)); err == nil {
		t.Error("Notify: got nil, want decoding error")
	}
}
