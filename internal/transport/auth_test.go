package transport

import (
	"net/http"
	"net/url"
	"testing"
)

// TestNoAuth tests that NoAuth applies no authentication.
func TestNoAuth(t *testing.T) {
	auth := &NoAuth{}
	req := &http.Request{
		Header: make(http.Header),
	}

	auth.Apply(req, "test-api-key")

	// Should not have any authentication headers
	if len(req.Header) != 0 {
		t.Errorf("Expected no headers, got %d", len(req.Header))
	}
}

// TestQueryAuth tests query parameter authentication.
func TestQueryAuth(t *testing.T) {
	auth := &QueryAuth{Param: "key"}

	// Test with valid URL
	reqURL, _ := url.Parse("https://api.census.gov/data/2022/abscs")
	req := &http.Request{
		URL:    reqURL,
		Header: make(http.Header),
	}

	auth.Apply(req, "test-api-key")

	// Check that the query parameter was added
	if req.URL.Query().Get("key") != "test-api-key" {
		t.Errorf("Expected query param 'key=test-api-key', got '%s'", req.URL.RawQuery)
	}

	// Test with existing query parameters
	reqURL2, _ := url.Parse("https://api.census.gov/data/2022/abscs?for=county:075")
	req2 := &http.Request{
		URL:    reqURL2,
		Header: make(http.Header),
	}

	auth.Apply(req2, "test-api-key")

	query := req2.URL.Query()
	if query.Get("key") != "test-api-key" {
		t.Errorf("Expected query param 'key=test-api-key', got '%s'", query.Get("key"))
	}
	if query.Get("for") != "county:075" {
		t.Errorf("Expected existing param to be preserved, got '%s'", query.Get("for"))
	}

	// Test with nil URL (should not panic)
	req3 := &http.Request{
		URL:    nil,
		Header: make(http.Header),
	}

	auth.Apply(req3, "test-api-key")
	// Should not panic and should do nothing
}

// TestQueryAuthBEAParam tests the BEA-style UserID parameter.
func TestQueryAuthBEAParam(t *testing.T) {
	auth := &QueryAuth{Param: "UserID"}

	reqURL, _ := url.Parse("https://apps.bea.gov/api/data")
	req := &http.Request{
		URL:    reqURL,
		Header: make(http.Header),
	}

	auth.Apply(req, "bea-registration-key")

	if req.URL.Query().Get("UserID") != "bea-registration-key" {
		t.Errorf("Expected query param 'UserID=bea-registration-key', got '%s'", req.URL.RawQuery)
	}
	if len(req.Header) != 0 {
		t.Errorf("Query auth should not touch headers, got %d", len(req.Header))
	}
}
