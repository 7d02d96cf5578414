package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorResponse(t *testing.T) {
	lat, lon := 40.78, -73.97
	cause := errors.New("boom")

	tests := []struct {
		name string
		task Task
		id   string
	}{
		{"CallerId", Task{TaskId: "mine", Lat: &lat, Lon: &lon, Date: "2023-01-01"}, "mine"},
		{"Area", Task{AreaId: "AREA_1", Date: "2023-01-01"}, "AREA_1:2023-01-01"},
		{"Coordinates", Task{Lat: &lat, Lon: &lon, Date: "2023-01-01"}, "40.7800,-73.9700:2023-01-01"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := ErrorResponse(tc.task, cause)
			assert.Equal(t, tc.id, resp.TaskId)
			assert.Equal(t, TaskError, resp.Status)
			assert.Equal(t, "boom", resp.Results["error"])
		})
	}
}
