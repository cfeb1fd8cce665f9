package handlers

import (
	"encoding/json"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaoscast/chaoscast/internal/models"
	"github.com/chaoscast/chaoscast/internal/services"
	"github.com/chaoscast/chaoscast/internal/storage"
)

type stageBody struct {
	ProjectID string          `json:"project_id"`
	Status    string          `json:"status"`
	Result    json.RawMessage `json:"result"`
}

func TestPipelineHandlers_Flow(t *testing.T) {
	app := newTestApp(t)
	p := createProject(t, app, "flow")

	resp, body := uploadCSV(t, app, p.ID, "Data.CSV", rampCSV(60))
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))
	var uploaded struct {
		Project models.ProjectResponse `json:"project"`
		Preview struct {
			Info struct {
				Rows        int      `json:"rows"`
				ColumnNames []string `json:"column_names"`
			} `json:"info"`
		} `json:"preview"`
	}
	require.NoError(t, json.Unmarshal(body, &uploaded))
	assert.Equal(t, storage.StatusUploaded, uploaded.Project.Status)
	assert.Equal(t, 60, uploaded.Preview.Info.Rows)
	assert.Equal(t, []string{"t", "value", "label"}, uploaded.Preview.Info.ColumnNames)

	resp, body = doJSON(t, app, "POST", "/v1/projects/"+p.ID+"/select", models.SelectColumnsRequest{Target: "value", Features: []string{"t"}})
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))

	resp, body = doJSON(t, app, "POST", "/v1/projects/"+p.ID+"/preprocess", models.PreprocessRequest{
		Strategy:      "last",
		SegmentLength: 30,
		Time:          &models.TimeEncodingRequest{Kind: "index", Column: "t"},
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))
	var pre stageBody
	require.NoError(t, json.Unmarshal(body, &pre))
	assert.Equal(t, storage.StatusPreprocessed, pre.Status)

	resp, body = doJSON(t, app, "POST", "/v1/projects/"+p.ID+"/train", models.TrainRequest{Model: "rnn"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))
	var trained stageBody
	require.NoError(t, json.Unmarshal(body, &trained))
	var train services.TrainResult
	require.NoError(t, json.Unmarshal(trained.Result, &train))
	assert.Equal(t, "rnn", train.Model)
	assert.Len(t, train.Prediction, 2)

	steps := 2
	resp, body = doJSON(t, app, "POST", "/v1/projects/"+p.ID+"/forecast", models.ForecastRequest{Steps: &steps})
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))
	var fc stageBody
	require.NoError(t, json.Unmarshal(body, &fc))
	var forecast struct {
		Values []interface{} `json:"values"`
		Time   []interface{} `json:"time"`
	}
	require.NoError(t, json.Unmarshal(fc.Result, &forecast))
	assert.Len(t, forecast.Values, 4)
	assert.Len(t, forecast.Time, 4)

	resp, body = doJSON(t, app, "GET", "/v1/projects/"+p.ID, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var final models.ProjectResponse
	require.NoError(t, json.Unmarshal(body, &final))
	assert.Equal(t, storage.StatusForecasted, final.Status)
	assert.Equal(t, "value", final.Target)
	assert.Equal(t, "rnn", final.Model)
}

func TestPipelineHandlers_UploadErrors(t *testing.T) {
	app := newTestApp(t)
	p := createProject(t, app, "")

	resp, body := uploadCSV(t, app, p.ID, "data.xlsx", "a,b\n1,2\n")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, services.CodeInvalidCSV, errorCode(t, body))

	resp, body = doJSON(t, app, "POST", "/v1/projects/"+p.ID+"/upload", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, services.CodeInvalidRequest, errorCode(t, body))

	resp, body = uploadCSV(t, app, p.ID, "empty.csv", "")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, services.CodeInvalidCSV, errorCode(t, body))

	resp, body = uploadCSV(t, app, "missing", "data.csv", "a\n1\n")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, services.CodeProjectNotFound, errorCode(t, body))
}

func TestPipelineHandlers_StageErrors(t *testing.T) {
	app := newTestApp(t)
	p := createProject(t, app, "")

	resp, body := doJSON(t, app, "POST", "/v1/projects/"+p.ID+"/select", models.SelectColumnsRequest{Target: "value"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, services.CodeNoData, errorCode(t, body))

	resp, body = uploadCSV(t, app, p.ID, "data.csv", rampCSV(30))
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))

	resp, body = doJSON(t, app, "POST", "/v1/projects/"+p.ID+"/select", map[string]interface{}{})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, services.CodeInvalidRequest, errorCode(t, body))
	assert.Contains(t, string(body), "target is required")

	resp, body = doJSON(t, app, "POST", "/v1/projects/"+p.ID+"/preprocess", models.PreprocessRequest{Target: "value", Baseline: "median"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, services.CodeInvalidRequest, errorCode(t, body))

	resp, body = doJSON(t, app, "POST", "/v1/projects/"+p.ID+"/preprocess", models.PreprocessRequest{Target: "value", Strategy: "median"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, services.CodeUnknownStrategy, errorCode(t, body))
	assert.Contains(t, string(body), "available_strategies")

	resp, body = doJSON(t, app, "POST", "/v1/projects/"+p.ID+"/train", models.TrainRequest{Target: "value", Model: "gpt"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, services.CodeUnknownModel, errorCode(t, body))
	assert.Contains(t, string(body), "available_models")

	resp, body = doJSON(t, app, "POST", "/v1/projects/"+p.ID+"/train", models.TrainRequest{Target: "value", LearningRate: 5})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, services.CodeInvalidRequest, errorCode(t, body))
	assert.Contains(t, string(body), "learning_rate")

	resp, body = doJSON(t, app, "POST", "/v1/projects/"+p.ID+"/forecast", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, services.CodeModelNotTrained, errorCode(t, body))

	negative := -1
	resp, body = doJSON(t, app, "POST", "/v1/projects/"+p.ID+"/forecast", models.ForecastRequest{Steps: &negative})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, services.CodeInvalidRequest, errorCode(t, body))
}
