package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaoscast/chaoscast/internal/analytics/timeaxis"
	"github.com/chaoscast/chaoscast/internal/storage"
)

func TestNewProjectResponse(t *testing.T) {
	created := time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)
	resp := NewProjectResponse(&storage.Project{
		ID:        "p1",
		Name:      "grid",
		Status:    storage.StatusTrained,
		DataPath:  "/data/projects/p1/data.csv",
		Target:    "load",
		Model:     "mlp",
		Window:    32,
		Horizon:   12,
		CreatedAt: created,
		UpdatedAt: created.Add(time.Hour),
	})

	assert.True(t, resp.HasData)
	assert.Equal(t, "2024-05-01T08:30:00Z", resp.CreatedAt)
	assert.Equal(t, "2024-05-01T09:30:00Z", resp.UpdatedAt)

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "data.csv")
	assert.NotContains(t, string(data), "description")
}

func TestTimeEncodingRequest_Encoding(t *testing.T) {
	var missing *TimeEncodingRequest
	assert.Nil(t, missing.Encoding())

	req := &TimeEncodingRequest{Kind: "explicit_format", Format: "%Y%m%d", Column: "day"}
	assert.Equal(t, &timeaxis.Encoding{Kind: timeaxis.KindExplicit, Format: "%Y%m%d", Column: "day"}, req.Encoding())
}
