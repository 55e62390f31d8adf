package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"
)

// apiPrefix marks the routes answering with the {"data"} / {"error"} envelope.
const apiPrefix = "/api/v1/"

const maxReportedBody = 200

// skipValidation lists plain-text and document endpoints.
var skipValidation = map[string]bool{
	"/healthz":          true,
	"/readyz":           true,
	"/api/openapi.yaml": true,
}

// OpenAPIValidator checks trigger API traffic against the OpenAPI document
// and the response envelope convention.
type OpenAPIValidator struct {
	router routers.Router
}

// NewOpenAPIValidator loads the document at specPath or fails the test.
func NewOpenAPIValidator(t *testing.T, specPath string) *OpenAPIValidator {
	t.Helper()

	v, err := LoadOpenAPIValidator(specPath)
	if err != nil {
		t.Fatalf("load OpenAPI validator: %v", err)
	}
	return v
}

// LoadOpenAPIValidator loads the document and checks it is itself valid.
func LoadOpenAPIValidator(specPath string) (*OpenAPIValidator, error) {
	doc, err := openapi3.NewLoader().LoadFromFile(specPath)
	if err != nil {
		return nil, fmt.Errorf("load OpenAPI document %s: %w", specPath, err)
	}

	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("validate OpenAPI document: %w", err)
	}

	router, err := legacy.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("create OpenAPI router: %w", err)
	}

	return &OpenAPIValidator{router: router}, nil
}

// Validate reports a test error for every way the exchange deviates from the
// document. The response body is consumed and restored.
func (v *OpenAPIValidator) Validate(t *testing.T, req *http.Request, resp *http.Response) {
	t.Helper()

	if skipValidation[req.URL.Path] {
		return
	}

	route, pathParams, err := v.router.FindRoute(req)
	if err != nil {
		t.Errorf("OpenAPI: no route for %s %s: %v", req.Method, req.URL.Path, err)
		return
	}

	input := &openapi3filter.RequestValidationInput{
		Request:    req,
		PathParams: pathParams,
		Route:      route,
		Options:    &openapi3filter.Options{MultiError: true},
	}
	if err := openapi3filter.ValidateRequest(context.Background(), input); err != nil {
		t.Errorf("OpenAPI request %s %s: %v", req.Method, req.URL.Path, err)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Errorf("read response body: %v", err)
		return
	}
	_ = resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(body))

	err = openapi3filter.ValidateResponse(context.Background(), &openapi3filter.ResponseValidationInput{
		RequestValidationInput: input,
		Status:                 resp.StatusCode,
		Header:                 resp.Header,
		Body:                   io.NopCloser(bytes.NewReader(body)),
		Options: &openapi3filter.Options{
			MultiError:            true,
			IncludeResponseStatus: true,
		},
	})
	if err != nil {
		t.Errorf("OpenAPI response %s %s (status %d): %v\nbody: %s",
			req.Method, req.URL.Path, resp.StatusCode, err, truncateBody(body))
	}

	if strings.HasPrefix(req.URL.Path, apiPrefix) {
		if err := CheckEnvelope(resp.StatusCode, body); err != nil {
			t.Errorf("envelope %s %s (status %d): %v\nbody: %s",
				req.Method, req.URL.Path, resp.StatusCode, err, truncateBody(body))
		}
	}
}

// CheckEnvelope verifies that a trigger API body carries exactly one
// top-level key: "data" for 2xx statuses, "error" with a message otherwise.
func CheckEnvelope(status int, body []byte) error {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("body is not a JSON object: %w", err)
	}
	if len(envelope) != 1 {
		return fmt.Errorf("expected one top-level key, got %d", len(envelope))
	}

	if status >= 200 && status < 300 {
		if _, ok := envelope["data"]; !ok {
			return errors.New(`success response without "data"`)
		}
		return nil
	}

	raw, ok := envelope["error"]
	if !ok {
		return errors.New(`error response without "error"`)
	}
	var e struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &e); err != nil || e.Message == "" {
		return errors.New("error response without a message")
	}
	return nil
}

func truncateBody(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxReportedBody {
		return s[:maxReportedBody] + "..."
	}
	return s
}
