package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

// HandleLambda serves an API Gateway proxy request with the same routes as
// the HTTP server. Websocket upgrades are not available in this mode.
func (s *Server) HandleLambda(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	httpReq, err := toHTTPRequest(ctx, req)
	if err != nil {
		s.logger.Warn("invalid proxy request", "path", req.Path, "error", err)
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusBadRequest,
			Headers:    map[string]string{"Content-Type": "application/json"},
			Body:       `{"success":false,"error":"invalid request"}`,
		}, nil
	}

	w := newProxyResponseWriter()
	s.engine.ServeHTTP(w, httpReq)
	return w.response(), nil
}

func toHTTPRequest(ctx context.Context, req events.APIGatewayProxyRequest) (*http.Request, error) {
	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return nil, fmt.Errorf("decode body: %w", err)
		}
		body = decoded
	}

	query := url.Values{}
	for k, vs := range req.MultiValueQueryStringParameters {
		for _, v := range vs {
			query.Add(k, v)
		}
	}
	for k, v := range req.QueryStringParameters {
		if _, ok := query[k]; !ok {
			query.Set(k, v)
		}
	}

	target := (&url.URL{Path: req.Path, RawQuery: query.Encode()}).String()
	httpReq, err := http.NewRequestWithContext(ctx, req.HTTPMethod, target, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	for k, vs := range req.MultiValueHeaders {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	for k, v := range req.Headers {
		if httpReq.Header.Get(k) == "" {
			httpReq.Header.Set(k, v)
		}
	}
	httpReq.RemoteAddr = req.RequestContext.Identity.SourceIP + ":0"

	return httpReq, nil
}

// proxyResponseWriter buffers a response for API Gateway.
type proxyResponseWriter struct {
	header http.Header
	body   bytes.Buffer
	status int
}

func newProxyResponseWriter() *proxyResponseWriter {
	return &proxyResponseWriter{header: http.Header{}}
}

func (w *proxyResponseWriter) Header() http.Header {
	return w.header
}

func (w *proxyResponseWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.body.Write(b)
}

func (w *proxyResponseWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
}

func (w *proxyResponseWriter) response() events.APIGatewayProxyResponse {
	status := w.status
	if status == 0 {
		status = http.StatusOK
	}

	headers := make(map[string]string, len(w.header))
	for k, vs := range w.header {
		headers[k] = strings.Join(vs, ",")
	}

	return events.APIGatewayProxyResponse{
		StatusCode:        status,
		Headers:           headers,
		MultiValueHeaders: w.header,
		Body:              w.body.String(),
	}
}
