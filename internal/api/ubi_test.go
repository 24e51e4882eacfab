package api

import (
	"context"
	"encoding/base64"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

func newTestClient(t *testing.T, handler fasthttp.RequestHandler) *UbiClient {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: handler}
	go srv.Serve(ln)
	t.Cleanup(func() {
		srv.Shutdown()
		ln.Close()
	})

	return NewUbiClientWith("http://ubi.test", &fasthttp.Client{
		Dial: func(addr string) (net.Conn, error) {
			return ln.Dial()
		},
	})
}

func TestLoginSendsBasicAuth(t *testing.T) {
	client := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		if string(ctx.Method()) != fasthttp.MethodPost || string(ctx.Path()) != "/v3/profiles/sessions" {
			ctx.SetStatusCode(fasthttp.StatusNotFound)
			return
		}
		want := "Basic " + base64.StdEncoding.EncodeToString([]byte("user:pass"))
		if string(ctx.Request.Header.Peek("Authorization")) != want {
			ctx.SetStatusCode(fasthttp.StatusUnauthorized)
			ctx.SetBodyString(`{"errorCode":1,"message":"Invalid credentials"}`)
			return
		}
		if string(ctx.Request.Header.Peek("Ubi-AppId")) == "" {
			ctx.SetStatusCode(fasthttp.StatusBadRequest)
			return
		}
		ctx.SetBodyString(`{"ticket":"t-1","sessionId":"s-1","expiration":"2030-01-01T00:00:00.0000000Z"}`)
	})

	resp, err := client.Login(context.Background(), "user", "pass")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if resp.Ticket != "t-1" || resp.SessionID != "s-1" {
		t.Errorf("unexpected session %+v", resp)
	}

	_, err = client.Login(context.Background(), "user", "wrong")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != fasthttp.StatusUnauthorized || apiErr.ErrorCode != 1 {
		t.Errorf("unexpected APIError %+v", apiErr)
	}
}

func TestErrorCodeOnSuccessStatusIsAnError(t *testing.T) {
	client := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetBodyString(`{"errorCode":3,"message":"space not found"}`)
	})

	endpoint := client.StatsCardEndpoint("space")
	_, err := client.GetStatsCard(context.Background(), Credentials{Ticket: "t", SessionID: "s"}, endpoint("p-1"))
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.ErrorCode != 3 {
		t.Fatalf("expected APIError with code 3, got %v", err)
	}
}

func TestGetStatsCardUsesTicketHeaders(t *testing.T) {
	client := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		if got := string(ctx.Request.Header.Peek("Authorization")); got != "Ubi_v1 t=tick" {
			ctx.SetStatusCode(fasthttp.StatusUnauthorized)
			return
		}
		if got := string(ctx.Request.Header.Peek("Ubi-SessionId")); got != "sess" {
			ctx.SetStatusCode(fasthttp.StatusUnauthorized)
			return
		}
		if !strings.HasPrefix(string(ctx.Path()), "/v1/profiles/p-1/statscard") || string(ctx.QueryArgs().Peek("spaceId")) != "space-b" {
			ctx.SetStatusCode(fasthttp.StatusNotFound)
			return
		}
		ctx.SetBodyString(`{"Statscards":[{"statName":"level","value":"30"},{"statName":"rank","value":"5"}]}`)
	})

	endpoint := client.StatsCardEndpoint("space-b")
	resp, err := client.GetStatsCard(context.Background(), Credentials{Ticket: "tick", SessionID: "sess"}, endpoint("p-1"))
	if err != nil {
		t.Fatalf("GetStatsCard() error = %v", err)
	}
	if len(resp.Statscards) != 2 || resp.Statscards[0].Value != "30" {
		t.Errorf("unexpected cards %+v", resp.Statscards)
	}
}

func TestSearchProfilesEscapesName(t *testing.T) {
	client := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		name := string(ctx.QueryArgs().Peek("nameOnPlatform"))
		if name != "Agent 47&x" || string(ctx.QueryArgs().Peek("platformType")) != "uplay" {
			ctx.SetBodyString(`{"profiles":[]}`)
			return
		}
		ctx.SetBodyString(`{"profiles":[{"profileId":"p-1","nameOnPlatform":"Agent 47&x"}]}`)
	})

	resp, err := client.SearchProfiles(context.Background(), Credentials{Ticket: "t"}, "Agent 47&x")
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Profiles) != 1 || resp.Profiles[0].ProfileID != "p-1" {
		t.Errorf("unexpected profiles %+v", resp.Profiles)
	}
}

func TestCancelledContextReturnsPromptly(t *testing.T) {
	release := make(chan struct{})
	client := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		<-release
		ctx.SetBodyString(`{"profiles":[]}`)
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := client.GetProfile(ctx, Credentials{Ticket: "t"}, "p-1")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Errorf("cancellation took %v", time.Since(start))
	}
}

func TestNonJSONBodyFails(t *testing.T) {
	client := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetBodyString(`<html>maintenance</html>`)
	})
	if _, err := client.GetProfile(context.Background(), Credentials{}, "p-1"); err == nil {
		t.Fatal("expected decode error")
	}
}
