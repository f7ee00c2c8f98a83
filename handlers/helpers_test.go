package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Dosada05/tabletennis-bracket/brackets"
	"github.com/Dosada05/tabletennis-bracket/livescore"
	"github.com/Dosada05/tabletennis-bracket/services"
)

func TestMapServiceErrorToHTTP(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&brackets.ValidationError{Reason: "bad set"}, http.StatusUnprocessableEntity},
		{&brackets.StateConflictError{Op: "confirm", Reason: "finished"}, http.StatusConflict},
		{&brackets.StructuralError{Reason: "two byes"}, http.StatusConflict},
		{&brackets.NotFoundError{Entity: "match", ID: 3}, http.StatusNotFound},
		{fmt.Errorf("%w: nope", services.ErrForbiddenOperation), http.StatusForbidden},
		{services.ErrNotAssignedReferee, http.StatusForbidden},
		{livescore.ErrContended, http.StatusConflict},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		mapServiceErrorToHTTP(rec, req, tt.err)
		if rec.Code != tt.want {
			t.Errorf("%v: status = %d, want %d", tt.err, rec.Code, tt.want)
		}
		if !strings.Contains(rec.Body.String(), `"error"`) {
			t.Errorf("%v: body = %s", tt.err, rec.Body)
		}
	}
}

func TestReadJSONRejects(t *testing.T) {
	var dst struct {
		Name string `json:"name"`
	}
	for name, body := range map[string]string{
		"empty":    "",
		"unknown":  `{"nmae":"x"}`,
		"trailing": `{"name":"x"}{}`,
		"syntax":   `{"name":`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		if err := readJSON(httptest.NewRecorder(), req, &dst); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}
