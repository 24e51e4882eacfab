package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"division-tracker/internal/config"
	"division-tracker/internal/constants"

	"github.com/valyala/fasthttp"
)

// Credentials is a consistent snapshot of the upstream session.
type Credentials struct {
	Ticket    string
	SessionID string
}

// Endpoint builds the statistics URL for one profile id.
type Endpoint func(profileID string) string

type UbiClient struct {
	baseURL string
	client  *fasthttp.Client
}

func NewUbiClient(cfg *config.Config) *UbiClient {
	return NewUbiClientWith(cfg.UbiBaseURL, &fasthttp.Client{
		MaxConnsPerHost:     100,
		ReadTimeout:         constants.ExternalAPITimeout,
		WriteTimeout:        constants.ExternalAPITimeout,
		MaxIdleConnDuration: 1 * time.Minute,
	})
}

func NewUbiClientWith(baseURL string, client *fasthttp.Client) *UbiClient {
	return &UbiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

// APIError is an upstream failure: a non-2xx status or an errorCode body.
type APIError struct {
	Status    int
	ErrorCode int
	Message   string
}

func (e *APIError) Error() string {
	if e.ErrorCode != 0 {
		return fmt.Sprintf("ubi API error: status %d, code %d: %s", e.Status, e.ErrorCode, e.Message)
	}
	return fmt.Sprintf("ubi API error: %d", e.Status)
}

type upstreamError struct {
	ErrorCode int    `json:"errorCode"`
	Message   string `json:"message"`
}

func (u upstreamError) apiError(status int) error {
	if u.ErrorCode == 0 {
		return nil
	}
	return &APIError{Status: status, ErrorCode: u.ErrorCode, Message: u.Message}
}

type coded interface {
	apiError(status int) error
}

type SessionResponse struct {
	upstreamError
	Ticket     string `json:"ticket"`
	SessionID  string `json:"sessionId"`
	Expiration string `json:"expiration"`
	ProfileID  string `json:"profileId"`
}

type ProfilesResponse struct {
	upstreamError
	Profiles []Profile `json:"profiles"`
}

type Profile struct {
	ProfileID      string `json:"profileId"`
	UserID         string `json:"userId"`
	NameOnPlatform string `json:"nameOnPlatform"`
	PlatformType   string `json:"platformType"`
}

type StatsCardResponse struct {
	upstreamError
	Statscards []StatsCard `json:"Statscards"`
}

type StatsCard struct {
	StatName    string `json:"statName"`
	DisplayName string `json:"displayName"`
	Value       string `json:"value"`
}

func (c *UbiClient) Login(ctx context.Context, username, password string) (*SessionResponse, error) {
	auth := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
	return doRequest[SessionResponse](ctx, c, fasthttp.MethodPost, c.baseURL+"/v3/profiles/sessions", "Basic "+auth, "")
}

func (c *UbiClient) SearchProfiles(ctx context.Context, creds Credentials, name string) (*ProfilesResponse, error) {
	u := fmt.Sprintf("%s/v3/profiles?nameOnPlatform=%s&platformType=%s", c.baseURL, url.QueryEscape(name), constants.UbiPlatformType)
	return c.getProfiles(ctx, creds, u)
}

func (c *UbiClient) GetProfile(ctx context.Context, creds Credentials, profileID string) (*ProfilesResponse, error) {
	u := fmt.Sprintf("%s/v3/profiles?profileId=%s", c.baseURL, url.QueryEscape(profileID))
	return c.getProfiles(ctx, creds, u)
}

func (c *UbiClient) getProfiles(ctx context.Context, creds Credentials, u string) (*ProfilesResponse, error) {
	return doRequest[ProfilesResponse](ctx, c, fasthttp.MethodGet, u, ticketAuth(creds), creds.SessionID)
}

func (c *UbiClient) StatsCardEndpoint(spaceID string) Endpoint {
	return func(profileID string) string {
		return fmt.Sprintf("%s/v1/profiles/%s/statscard?spaceId=%s", c.baseURL, url.PathEscape(profileID), url.QueryEscape(spaceID))
	}
}

func (c *UbiClient) GetStatsCard(ctx context.Context, creds Credentials, u string) (*StatsCardResponse, error) {
	return doRequest[StatsCardResponse](ctx, c, fasthttp.MethodGet, u, ticketAuth(creds), creds.SessionID)
}

func ticketAuth(creds Credentials) string {
	return "Ubi_v1 t=" + creds.Ticket
}

func setCommonHeaders(h *fasthttp.RequestHeader) {
	h.Set("Content-Type", constants.UbiContentType)
	h.Set("Accept", constants.UbiAccept)
	h.Set("User-Agent", constants.UbiUserAgent)
	h.Set("Cache-Control", "no-cache")
	h.Set("Ubi-AppId", constants.UbiAppID)
	h.Set("Ubi-RequestedPlatformType", constants.UbiPlatformType)
	h.Set("Ubi-LocaleCode", constants.UbiLocaleCode)
}

type rawResult struct {
	status int
	body   []byte
	err    error
}

// doRequest runs the call on its own goroutine, which owns the pooled request
// and response, so a cancelled ctx returns without waiting for the socket.
func doRequest[T any](ctx context.Context, client *UbiClient, method, u, authorization, sessionID string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(constants.ExternalAPITimeout)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	req.SetRequestURI(u)
	req.Header.SetMethod(method)
	setCommonHeaders(&req.Header)
	req.Header.Set("Authorization", authorization)
	if sessionID != "" {
		req.Header.Set("Ubi-SessionId", sessionID)
	}

	done := make(chan rawResult, 1)
	go func() {
		defer fasthttp.ReleaseRequest(req)
		defer fasthttp.ReleaseResponse(resp)

		err := client.client.DoDeadline(req, resp, deadline)
		if err != nil {
			done <- rawResult{err: err}
			return
		}
		done <- rawResult{
			status: resp.StatusCode(),
			body:   append([]byte(nil), resp.Body()...),
		}
	}()

	var res rawResult
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-done:
	}
	if res.err != nil {
		return nil, res.err
	}

	if res.status < 200 || res.status >= 300 {
		var ue upstreamError
		if json.Unmarshal(res.body, &ue) == nil && ue.ErrorCode != 0 {
			return nil, ue.apiError(res.status)
		}
		return nil, &APIError{Status: res.status}
	}

	var result T
	if err := json.Unmarshal(res.body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response from %s: %w", stripQuery(u), err)
	}
	// ubiservices sometimes answers 200 with an errorCode body
	if c, ok := any(&result).(coded); ok {
		if err := c.apiError(res.status); err != nil {
			return nil, err
		}
	}
	return &result, nil
}

func stripQuery(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		return u[:i]
	}
	return u
}
