package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"studybuddy-backend/internal/middleware"
	"studybuddy-backend/internal/models"
	"studybuddy-backend/internal/services"
)

// newRequest builds a request carrying an authenticated user and chi route params.
func newRequest(method, target string, body []byte, userID uuid.UUID, params map[string]string) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	ctx = context.WithValue(ctx, middleware.UserIDKey, userID)
	return req.WithContext(ctx)
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(dst); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
}

func TestHandleServiceError_StatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantErr  string
	}{
		{"validation", &services.ValidationError{Message: "Room name is required", Fields: map[string]string{"name": "Room name is required"}}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"bad request", &services.BadRequestError{Message: "Room is full"}, http.StatusBadRequest, "BAD_REQUEST"},
		{"conflict", &services.ConflictError{Message: "Already a member of this room"}, http.StatusBadRequest, "CONFLICT"},
		{"not found", &services.NotFoundError{Message: "Room not found"}, http.StatusNotFound, "NOT_FOUND"},
		{"forbidden", &services.ForbiddenError{Message: "Access denied"}, http.StatusForbidden, "FORBIDDEN"},
		{"unauthorized", &services.UnauthorizedError{Message: "Invalid credentials"}, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"rate limit", &services.RateLimitError{Message: "Slow down"}, http.StatusTooManyRequests, "RATE_LIMITED"},
		{"wrapped not found", errors.Join(errors.New("ctx"), &services.NotFoundError{Message: "Room not found"}), http.StatusNotFound, "NOT_FOUND"},
		{"unexpected", errors.New("connection reset"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/rooms", nil)
			rr := httptest.NewRecorder()
			handleServiceError(rr, req, tc.err)

			if rr.Code != tc.wantCode {
				t.Fatalf("Expected %d, got %d", tc.wantCode, rr.Code)
			}
			var body models.ErrorResponse
			decodeBody(t, rr, &body)
			if body.Code != tc.wantErr {
				t.Errorf("Expected code %s, got %s", tc.wantErr, body.Code)
			}
			if tc.wantCode == http.StatusInternalServerError && strings.Contains(body.Error, "connection reset") {
				t.Error("Internal error details must not leak to the client")
			}
		})
	}
}

func TestHandleServiceError_ValidationFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/rooms", nil)
	rr := httptest.NewRecorder()
	handleServiceError(rr, req, &services.ValidationError{
		Message: "Room name is required",
		Fields:  map[string]string{"name": "Room name is required"},
	})

	var body models.ErrorResponse
	decodeBody(t, rr, &body)
	if body.Error != "Room name is required" || body.Fields["name"] == "" {
		t.Errorf("Unexpected body %+v", body)
	}
}

func TestDecodeSanitized(t *testing.T) {
	type target struct {
		Name     string   `json:"name"`
		Password string   `json:"password"`
		Tags     []string `json:"tags"`
		Count    int      `json:"count"`
	}

	t.Run("strips markup except exempt keys", func(t *testing.T) {
		body := `{"name":"  <b>Biology</b> ","password":"p<a>ss","tags":["<i>cells</i>"],"count":12}`
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))

		var got target
		if err := decodeSanitized(req, &got, "password"); err != nil {
			t.Fatalf("decodeSanitized failed: %v", err)
		}
		if got.Name != "Biology" {
			t.Errorf("Expected sanitized name, got %q", got.Name)
		}
		if got.Password != "p<a>ss" {
			t.Errorf("Expected password untouched, got %q", got.Password)
		}
		if len(got.Tags) != 1 || got.Tags[0] != "cells" {
			t.Errorf("Expected nested strings sanitized, got %v", got.Tags)
		}
		if got.Count != 12 {
			t.Errorf("Expected count 12, got %d", got.Count)
		}
	})

	bad := []struct {
		name string
		body string
	}{
		{"empty", ""},
		{"not json", "nope"},
		{"array", `["a"]`},
		{"null", "null"},
		{"wrong type", `{"count":"many"}`},
	}
	for _, tc := range bad {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			var got target
			if err := decodeSanitized(req, &got); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestUUIDParam_Invalid(t *testing.T) {
	req := newRequest(http.MethodGet, "/api/rooms/abc", nil, uuid.New(), map[string]string{"id": "abc"})
	rr := httptest.NewRecorder()

	if _, ok := uuidParam(rr, req, "id", "room"); ok {
		t.Fatal("Expected parse failure")
	}
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rr.Code)
	}
}
