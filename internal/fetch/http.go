package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Request customises an HTTP fetch.
type Request struct {
	Method  string
	Headers map[string]string
	Body    []byte
}

// Response is the raw result of an HTTP fetch.
type Response struct {
	Body        []byte
	ContentType string
}

// HTTP performs the request and returns the body of a 2xx response.
func (f *Fetcher) HTTP(ctx context.Context, url string, request Request) (Response, error) {
	if !f.allowHTTP {
		return Response{}, ErrHTTPDisabled
	}
	if f.http == nil {
		return Response{}, errors.New("fetch: http client is not configured")
	}
	if url == "" {
		return Response{}, errors.New("fetch: url is required")
	}

	reqCtx := ctx
	var cancel context.CancelFunc
	if f.timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	method := strings.ToUpper(strings.TrimSpace(request.Method))
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if len(request.Body) > 0 {
		body = bytes.NewReader(request.Body)
	}

	req, err := http.NewRequestWithContext(reqCtx, method, url, body)
	if err != nil {
		return Response{}, err
	}
	for key, value := range request.Headers {
		req.Header.Set(key, value)
	}

	resp, err := f.http.Do(req)
	if err != nil {
		return Response{}, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Response{}, fmt.Errorf("fetch: unexpected status %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, err
	}
	return Response{Body: data, ContentType: resp.Header.Get("Content-Type")}, nil
}
