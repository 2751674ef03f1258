package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"parity/internal/core"
)

type appendRequest struct {
	method, path string
	query        map[string]string
	body         gsheet.ValueRange
}

func newTestClient(t *testing.T, status int) (*Client, *[]appendRequest) {
	t.Helper()
	var requests []appendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		req := appendRequest{
			method: r.Method,
			path:   r.URL.Path,
			query: map[string]string{
				"valueInputOption": r.URL.Query().Get("valueInputOption"),
				"insertDataOption": r.URL.Query().Get("insertDataOption"),
			},
		}
		_ = json.Unmarshal(raw, &req.body)
		requests = append(requests, req)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"code":403,"message":"The caller does not have permission"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-123","updates":{"updatedRange":"'Parity runs'!A2:K3","updatedRows":2}}`))
	}))
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	client, err := New(svc, "sheet-123", "", nil)
	require.NoError(t, err)
	return client, &requests
}

func sampleRun() core.RunSummary {
	return core.RunSummary{
		ID:              "run-1",
		GeneratedAt:     time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC),
		ReferenceEngine: "reference",
		HeadlineMetric:  "report.totalGrossProfit",
		ReferenceValue:  400,
		Candidates: []core.CandidateSummary{
			{Name: "go-streaming", Status: core.StatusOK, HeadlineValue: 400},
			{Name: "gp-engine-process", Status: core.StatusDiverged, HeadlineValue: 401.5, Divergence: 1.5, MismatchCount: 1},
		},
	}
}

func TestPublishRunAppendsRows(t *testing.T) {
	client, requests := newTestClient(t, http.StatusOK)

	require.NoError(t, client.PublishRun(context.Background(), sampleRun()))
	require.Len(t, *requests, 1)

	req := (*requests)[0]
	assert.Equal(t, http.MethodPost, req.method)
	assert.True(t, strings.HasSuffix(req.path, ":append"), req.path)
	assert.Contains(t, req.path, "/v4/spreadsheets/sheet-123/values/")
	assert.Equal(t, "USER_ENTERED", req.query["valueInputOption"])
	assert.Equal(t, "INSERT_ROWS", req.query["insertDataOption"])

	require.Len(t, req.body.Values, 2)
	assert.Equal(t, "go-streaming", req.body.Values[0][5])
	assert.Equal(t, "diverged", req.body.Values[1][6])
}

func TestPublishRunPropagatesAPIErrors(t *testing.T) {
	client, _ := newTestClient(t, http.StatusForbidden)

	err := client.PublishRun(context.Background(), sampleRun())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "append run run-1")
}

func TestPublishRunWithoutCandidatesIsNoop(t *testing.T) {
	client, requests := newTestClient(t, http.StatusOK)
	require.NoError(t, client.PublishRun(context.Background(), core.RunSummary{ID: "empty"}))
	assert.Empty(t, *requests)
}

func TestNewRequiresSpreadsheetID(t *testing.T) {
	_, err := New(nil, "  ", "", nil)
	assert.Error(t, err)

	client, err := New(nil, "id", "", nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultSheetName, client.sheetName)
	assert.Error(t, client.PublishRun(context.Background(), sampleRun()))
}

func TestNewFromConfigWithoutCredentials(t *testing.T) {
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := NewFromConfig(context.Background(), "id", "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing service account credentials")
}
