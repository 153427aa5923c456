package httpmiddleware

import (
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 120 * time.Second

var client = &http.Client{Timeout: defaultTimeout}

type HttpRequestStruct struct {
	Method  string
	Url     string
	Body    io.Reader
	Headers map[string]string
}

// HttpRequest performs a single HTTP request and returns the raw response
// body. Non-2xx statuses are returned as errors together with the body text
// so callers can log the upstream failure reason.
func HttpRequest(args HttpRequestStruct) ([]byte, error) {
	req, err := http.NewRequest(args.Method, args.Url, args.Body)
	if err != nil {
		return nil, fmt.Errorf("could not build request: %w", err)
	}

	for key, value := range args.Headers {
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("could not read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("request to %s failed with status %d: %s", args.Url, resp.StatusCode, string(respBody))
	}

	return respBody, nil
}
