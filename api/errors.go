// Copyright 2026 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/googlegenomics/gffx/internal/index"
	"github.com/googlegenomics/gffx/internal/query"
	"github.com/googlegenomics/gffx/internal/source"
)

var (
	errMissingDataset = errors.New("no dataset specified")
	errMissingRegion  = errors.New("no region specified")
	errMissingID      = errors.New("no feature identifier specified")
	errMissingValue   = errors.New("no attribute value specified")
)

// apiError is used to capture errors that have been defined in the API.
type apiError struct {
	name  string
	code  int
	cause error
}

func (err *apiError) Error() string {
	return fmt.Sprintf("%s (%d): %v", err.name, err.code, err.cause)
}

func (err *apiError) Unwrap() error {
	return err.cause
}

func newAPIError(name string, code int, context string, err error) error {
	return &apiError{name, code, fmt.Errorf("%s: %w", context, err)}
}

func newInvalidAuthenticationError(context string, err error) error {
	return newAPIError("InvalidAuthentication", http.StatusUnauthorized, context, err)
}

func newInvalidInputError(context string, err error) error {
	return newAPIError("InvalidInput", http.StatusBadRequest, context, err)
}

func newPermissionDeniedError(context string, err error) error {
	return newAPIError("PermissionDenied", http.StatusForbidden, context, err)
}

func newNotFoundError(context string, err error) error {
	return newAPIError("NotFound", http.StatusNotFound, context, err)
}

func newIndexMissingError(context string, err error) error {
	return newAPIError("IndexMissing", http.StatusNotFound, context, err)
}

// classify maps errors from the lower layers onto API errors.  Errors it does
// not recognize are returned unchanged and reported as internal errors.
func classify(context string, err error) error {
	var known *apiError
	switch {
	case errors.As(err, &known):
		return err
	case index.IsMissing(err):
		return newIndexMissingError(context, err)
	case errors.Is(err, source.ErrMissingToken), errors.Is(err, source.ErrPermissionDenied):
		return newPermissionDeniedError(context, err)
	case errors.Is(err, source.ErrUnauthenticated):
		return newInvalidAuthenticationError(context, err)
	case errors.Is(err, source.ErrNotFound), errors.Is(err, os.ErrNotExist),
		errors.Is(err, query.ErrUnknownSequence), errors.Is(err, query.ErrNoAttributeMatch):
		return newNotFoundError(context, err)
	}
	return fmt.Errorf("%s: %w", context, err)
}

// writeError writes either a JSON object or bare HTTP error describing err.  A
// JSON object is written only when the error has a name and code defined by
// the API.
func writeError(c *gin.Context, err error) {
	var known *apiError
	if errors.As(err, &known) {
		c.AbortWithStatusJSON(known.code, gin.H{
			"error":   known.name,
			"message": fmt.Sprintf("%s: %v", http.StatusText(known.code), known.cause),
		})
		return
	}
	c.String(http.StatusInternalServerError, "%s: %v", http.StatusText(http.StatusInternalServerError), err)
	c.Abort()
}
