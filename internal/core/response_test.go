package core

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pharmstock/internal/types"
)

// --- JSON Tests ---

func TestJSON_WritesEnvelope(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()

	JSON(rec, req, http.StatusOK, APIResponse{
		Data: map[string]string{"hello": "world"},
	})

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %q", ct)
	}

	var resp struct {
		Data map[string]string `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response body: %v", err)
	}
	if resp.Data["hello"] != "world" {
		t.Errorf("unexpected data: %v", resp.Data)
	}
}

func TestJSON_MarshalFailure_FallsBackTo500(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()

	// Channels cannot be marshalled to JSON.
	JSON(rec, req, http.StatusOK, make(chan int))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", rec.Code)
	}

	var resp APIErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("fallback body is not valid JSON: %v", err)
	}
	if resp.Error.Code != string(types.ErrCodeInternalUnexpected) {
		t.Errorf("expected code %q, got %q", types.ErrCodeInternalUnexpected, resp.Error.Code)
	}
}

// --- Error Tests ---

func TestError_AppError_MapsStatusAndBody(t *testing.T) {
	tests := []struct {
		name       string
		code       types.ErrorCode
		wantStatus int
	}{
		{"validation", types.ErrCodeValidationInvalidJSON, http.StatusBadRequest},
		{"auth", types.ErrCodeAuthTokenExpired, http.StatusUnauthorized},
		{"permission", types.ErrCodePermissionRole, http.StatusForbidden},
		{"not found", types.ErrCodeNotFoundMedicine, http.StatusNotFound},
		{"conflict", types.ErrCodeConflictEmail, http.StatusConflict},
		{"upstream", types.ErrCodeUpstreamUnavailable, http.StatusBadGateway},
		{"internal", types.ErrCodeInternalDB, http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req = req.WithContext(types.WithRequestID(req.Context(), "req_err"))
			rec := httptest.NewRecorder()

			Error(rec, req, types.NewAppError(tc.code, "boom", nil))

			if rec.Code != tc.wantStatus {
				t.Errorf("expected status %d, got %d", tc.wantStatus, rec.Code)
			}

			var resp APIErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to unmarshal response body: %v", err)
			}
			if resp.Error.Code != string(tc.code) {
				t.Errorf("expected code %q, got %q", tc.code, resp.Error.Code)
			}
			if resp.Error.RequestID != "req_err" {
				t.Errorf("expected request_id %q, got %q", "req_err", resp.Error.RequestID)
			}
		})
	}
}

func TestError_WrappedAppError_Unwraps(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()

	inner := types.NewAppError(types.ErrCodeNotFoundUser, "user not found", nil)
	Error(rec, req, errors.Join(errors.New("handler context"), inner))

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rec.Code)
	}
}

func TestError_PlainError_Returns500Generic(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()

	Error(rec, req, errors.New("connection refused to db host 10.0.0.5"))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", rec.Code)
	}

	// Internal details must not leak to the client.
	if strings.Contains(rec.Body.String(), "10.0.0.5") {
		t.Error("internal error details leaked into response body")
	}

	var resp APIErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response body: %v", err)
	}
	if resp.Error.Code != string(types.ErrCodeInternalUnexpected) {
		t.Errorf("expected code %q, got %q", types.ErrCodeInternalUnexpected, resp.Error.Code)
	}
}

// --- DecodeJSON Tests ---

type decodePayload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func decodeRequest(t *testing.T, body string) (*httptest.ResponseRecorder, *http.Request) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	return httptest.NewRecorder(), req
}

func TestDecodeJSON_Success(t *testing.T) {
	rec, req := decodeRequest(t, `{"name":"Aspirin","count":3}`)

	var dst decodePayload
	if err := DecodeJSON(rec, req, &dst); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dst.Name != "Aspirin" || dst.Count != 3 {
		t.Errorf("unexpected decoded payload: %+v", dst)
	}
}

func TestDecodeJSON_UnknownField(t *testing.T) {
	rec, req := decodeRequest(t, `{"name":"Aspirin","bogus":true}`)

	var dst decodePayload
	err := DecodeJSON(rec, req, &dst)
	assertDecodeError(t, err, "unknown field")
}

func TestDecodeJSON_EmptyBody(t *testing.T) {
	rec, req := decodeRequest(t, "")

	var dst decodePayload
	err := DecodeJSON(rec, req, &dst)
	assertDecodeError(t, err, "must not be empty")
}

func TestDecodeJSON_MalformedJSON(t *testing.T) {
	rec, req := decodeRequest(t, `{"name": `)

	var dst decodePayload
	err := DecodeJSON(rec, req, &dst)
	if err == nil {
		t.Fatal("expected error for malformed JSON")
	}
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *types.AppError, got %T", err)
	}
	if appErr.Code != types.ErrCodeValidationInvalidJSON {
		t.Errorf("expected code %q, got %q", types.ErrCodeValidationInvalidJSON, appErr.Code)
	}
}

func TestDecodeJSON_WrongFieldType_IncludesDetails(t *testing.T) {
	rec, req := decodeRequest(t, `{"name":"Aspirin","count":"three"}`)

	var dst decodePayload
	err := DecodeJSON(rec, req, &dst)
	if err == nil {
		t.Fatal("expected error for wrong field type")
	}
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *types.AppError, got %T", err)
	}
	if appErr.Details["field"] != "count" {
		t.Errorf("expected details to name field %q, got %v", "count", appErr.Details)
	}
}

func TestDecodeJSON_MultipleValues(t *testing.T) {
	rec, req := decodeRequest(t, `{"name":"a"}{"name":"b"}`)

	var dst decodePayload
	err := DecodeJSON(rec, req, &dst)
	assertDecodeError(t, err, "single JSON")
}

func assertDecodeError(t *testing.T, err error, wantSubstr string) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *types.AppError, got %T", err)
	}
	if appErr.Code != types.ErrCodeValidationInvalidJSON {
		t.Errorf("expected code %q, got %q", types.ErrCodeValidationInvalidJSON, appErr.Code)
	}
	if !strings.Contains(appErr.Message, wantSubstr) {
		t.Errorf("expected message containing %q, got %q", wantSubstr, appErr.Message)
	}
}
