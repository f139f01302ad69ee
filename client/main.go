package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/cyverse-de/dbricks-groups/logging"
	"github.com/cyverse-de/go-mod/restutils"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var log = logging.Log.WithFields(logrus.Fields{"package": "client"})

// Workspace identifies a Databricks workspace and the personal access token
// used against it. It is passed explicitly to every directory call.
type Workspace struct {
	Endpoint string
	Token    string
}

// Host returns the workspace host name, or the raw endpoint if it can't be parsed.
func (w Workspace) Host() string {
	u, err := url.Parse(w.Endpoint)
	if err != nil || u.Host == "" {
		return w.Endpoint
	}
	return u.Host
}

// ServiceError is the error body returned by the Databricks REST API.
type ServiceError struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

// Response is the raw result of a write operation.
type Response struct {
	StatusCode int
	Body       []byte
}

func (r *Response) String() string {
	if r == nil {
		return "<no response>"
	}
	return fmt.Sprintf("%d %s", r.StatusCode, strings.TrimSpace(string(r.Body)))
}

// Requester issues JSON requests against a workspace.
type Requester struct {
	http *resty.Client
}

func NewRequester() *Requester {
	return NewRequesterWithTransport(http.DefaultTransport)
}

// NewRequesterWithTransport wraps the given transport for tracing. Tests pass
// an httptest server's transport through here.
func NewRequesterWithTransport(rt http.RoundTripper) *Requester {
	c := resty.New().
		SetTransport(otelhttp.NewTransport(rt)).
		SetLogger(log).
		SetHeader("Accept", "application/json")
	return &Requester{http: c}
}

func (r *Requester) uri(ws Workspace, path string) (string, error) {
	base, err := url.Parse(ws.Endpoint)
	if err != nil {
		return "", errors.Wrap(err, "Failed to parse workspace URL")
	}
	if base.Scheme == "" || base.Host == "" {
		return "", errors.Errorf("workspace URL %q must include a scheme and host", ws.Endpoint)
	}
	return base.JoinPath(path).String(), nil
}

// ReqJSON sends the request and decodes a successful body into target, if
// non-nil. query is sent as URL parameters and body as a JSON document. The
// raw response is returned whenever the service answered, even on error.
func (r *Requester) ReqJSON(ctx context.Context, ws Workspace, method, path string, query map[string]string, body, target any) (*Response, error) {
	uri, err := r.uri(ws, path)
	if err != nil {
		return nil, err
	}

	req := r.http.R().
		SetContext(ctx).
		SetAuthToken(ws.Token)
	if len(query) > 0 {
		req.SetQueryParams(query)
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	resp, err := req.Execute(method, uri)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed requesting %s %s", method, path)
	}

	raw := &Response{StatusCode: resp.StatusCode(), Body: resp.Body()}

	if resp.IsError() || resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return raw, httpError(method, path, raw)
	}

	if target != nil {
		if err = json.Unmarshal(raw.Body, target); err != nil {
			return raw, errors.Wrapf(err, "Failed decoding JSON from %s %s", method, path)
		}
	}

	return raw, nil
}

func httpError(method, path string, raw *Response) error {
	var e ServiceError
	sc := raw.StatusCode
	if len(raw.Body) > 0 {
		if err := json.Unmarshal(raw.Body, &e); err != nil {
			log.Debug(errors.Wrap(err, "Failed decoding error response"))
		}
	}

	// Older API versions answer 400 or 500 for these.
	switch e.ErrorCode {
	case "RESOURCE_DOES_NOT_EXIST":
		sc = http.StatusNotFound
	case "RESOURCE_ALREADY_EXISTS":
		sc = http.StatusConflict
	}

	msg := fmt.Sprintf("%s %s returned %d", method, path, sc)
	if e.ErrorCode != "" {
		msg = fmt.Sprintf("%s: %s: %s", msg, e.ErrorCode, e.Message)
	}
	return restutils.NewHTTPError(sc, msg)
}
