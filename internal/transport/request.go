package transport

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/rdmdatalab/econbench/pkg/errors"
	"github.com/rdmdatalab/econbench/pkg/logging"
)

// RequestBuilder assembles API URLs with query parameters. Encode sorts
// parameters by key; the Census and BEA APIs accept any order.
type RequestBuilder struct {
	base   string
	params url.Values
}

// NewRequestBuilder creates a request builder rooted at the given base URL.
func NewRequestBuilder(base string) *RequestBuilder {
	return &RequestBuilder{base: base, params: url.Values{}}
}

// Param adds a query parameter and returns the builder for chaining.
func (rb *RequestBuilder) Param(key, value string) *RequestBuilder {
	rb.params.Set(key, value)
	return rb
}

// URL renders the final request URL.
func (rb *RequestBuilder) URL() string {
	if len(rb.params) == 0 {
		return rb.base
	}
	return rb.base + "?" + rb.params.Encode()
}

// DecodeResponse decodes a JSON response into the target structure. Non-200
// statuses surface as an APIError carrying the body text.
func DecodeResponse(source string, resp *http.Response, target any) error {
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logging.Default().Warn().Err(err).Msg("failed to close response body")
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.WrapIO("read", "response body", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &errors.APIError{
			Source:     source,
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   resp.Request.URL.String(),
		}
	}

	if err := json.Unmarshal(body, target); err != nil {
		return errors.WrapParse("json", "response", err)
	}

	return nil
}
