package httpapi

import (
	"net/http"
	"testing"

	"github.com/marcus-qen/agentobservatory/internal/apierr"
)

func TestClassify_StatusCodes(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", apierr.Validation("field", "bad value"), http.StatusBadRequest},
		{"not_found", apierr.NotFound("run missing"), http.StatusNotFound},
		{"conflict", apierr.Conflict("run already exists"), http.StatusConflict},
		{"insufficient_data", apierr.InsufficientData("not enough runs"), http.StatusUnprocessableEntity},
		{"unwrapped", errUnclassified{}, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, _ := classify(tc.err)
			if status != tc.want {
				t.Errorf("classify(%v) = %d, want %d", tc.err, status, tc.want)
			}
		})
	}
}

type errUnclassified struct{}

func (errUnclassified) Error() string { return "boom" }
