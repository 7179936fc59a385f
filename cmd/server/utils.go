package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/propsage/propsage"
)

// parseResourcePath parses /api/v1/{resource}/{id} or
// /api/v1/{resource}/{id}/{action}.
func parseResourcePath(path, resource string) (id string, action string, err error) {
	path = strings.TrimPrefix(path, "/api/v1/"+resource+"/")
	path = strings.Trim(path, "/")

	if path == "" {
		return "", "", fmt.Errorf("invalid path: missing %s id", resource)
	}

	parts := strings.Split(path, "/")
	switch len(parts) {
	case 1:
		return parts[0], "", nil
	case 2:
		return parts[0], parts[1], nil
	default:
		return "", "", fmt.Errorf("invalid path format")
	}
}

// APIResponse is the standard response format
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// writeJSON writes JSON response to http.ResponseWriter
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// writeError writes an error response
func writeError(w http.ResponseWriter, statusCode int, message string) error {
	return writeJSON(w, statusCode, APIResponse{
		Success: false,
		Error:   message,
	})
}

// writeSuccess writes a success response
func writeSuccess(w http.ResponseWriter, statusCode int, data interface{}) error {
	return writeJSON(w, statusCode, data)
}

// writeCoreError maps a core error value to its HTTP status.
func writeCoreError(w http.ResponseWriter, err error) error {
	var coreErr *propsage.Error
	if errors.As(err, &coreErr) {
		switch coreErr.Type {
		case propsage.ErrorTypeNotFound:
			return writeError(w, http.StatusNotFound, coreErr.Message)
		case propsage.ErrorTypeValidation, propsage.ErrorTypeMalformedInput, propsage.ErrorTypeUnknownColumn:
			return writeError(w, http.StatusBadRequest, coreErr.Message)
		case propsage.ErrorTypeService:
			return writeError(w, http.StatusBadGateway, coreErr.Message)
		}
	}
	return writeError(w, http.StatusInternalServerError, err.Error())
}

// parseUUID parses a UUID string
func parseUUID(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}
