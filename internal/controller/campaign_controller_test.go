package controller_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/unclebandit/activity-sim/internal/activity"
	"github.com/unclebandit/activity-sim/internal/content"
	"github.com/unclebandit/activity-sim/internal/controller"
	"github.com/unclebandit/activity-sim/internal/handler"
	"github.com/unclebandit/activity-sim/internal/random"
	"github.com/unclebandit/activity-sim/internal/repository/memory"
	"github.com/unclebandit/activity-sim/internal/service"
)

func TestMain(m *testing.M) {
	// genai links opencensus, whose view worker starts in init
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

func newServer(t *testing.T) http.Handler {
	t.Helper()
	personas := memory.NewPersonaRepository()
	store := memory.NewContentRepository()
	memory.SeedDemo(personas, store, 20, time.Now())

	src := random.NewSeeded(1)
	disp, err := activity.NewDispatcher(&activity.Deps{
		Personas:  personas,
		Content:   store,
		Generator: content.NewTemplateGenerator(),
		Rand:      src,
	})
	require.NoError(t, err)

	svc := service.NewCampaignService(service.Options{
		Campaigns:  memory.NewCampaignRepository(),
		Records:    memory.NewActivityRecordRepository(),
		Personas:   personas,
		Dispatcher: disp,
		Rand:       src,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, svc.Shutdown(ctx))
	})

	return controller.Routes(
		&controller.CampaignController{CampaignService: svc},
		&handler.CampaignHandler{Service: svc},
	)
}

func do(t *testing.T, srv http.Handler, method, path string, body any) (int, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	var res map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Result().Body).Decode(&res))
	return w.Code, res
}

func createBody(bots, total int) map[string]interface{} {
	return map[string]interface{}{
		"name":            "morning likes",
		"activityType":    "LIKE",
		"botCount":        bots,
		"totalActivities": total,
		"durationHours":   1,
		"config":          map[string]interface{}{"distributeEvenly": true},
	}
}

func TestCreateAndInspectCampaign(t *testing.T) {
	srv := newServer(t)

	code, res := do(t, srv, "POST", "/campaigns", createBody(4, 8))
	require.Equal(t, http.StatusCreated, code, res)
	assert.Equal(t, true, res["success"])
	id, ok := res["campaignId"].(string)
	require.True(t, ok)

	require.Eventually(t, func() bool {
		code, res := do(t, srv, "GET", "/campaigns/"+id, nil)
		return code == http.StatusOK && res["status"] == "completed"
	}, 5*time.Second, 10*time.Millisecond)

	_, status := do(t, srv, "GET", "/campaigns/"+id, nil)
	assert.EqualValues(t, 8, status["totalExecuted"])
	assert.EqualValues(t, 8, status["totalActivities"])
	assert.NotEmpty(t, status["startTime"])
	assert.NotEmpty(t, status["endTime"])

	code, list := do(t, srv, "GET", "/campaigns?page=1&page_size=10&activity_type=LIKE", nil)
	require.Equal(t, http.StatusOK, code)
	data := list["data"].([]interface{})
	require.Len(t, data, 1)
	summary := data[0].(map[string]interface{})
	assert.Equal(t, id, summary["id"])
	assert.EqualValues(t, 8, summary["totalExecuted"])

	code, acts := do(t, srv, "GET", "/campaigns/"+id+"/activities?page_size=5", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, acts["data"], 5)
	pagination := acts["pagination"].(map[string]interface{})
	assert.EqualValues(t, 8, pagination["total_count"])
	assert.EqualValues(t, 2, pagination["total_pages"])

	code, res = do(t, srv, "POST", "/campaigns/"+id+"/cancel", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "campaign already completed", res["message"])
}

func TestCreateValidationErrors(t *testing.T) {
	srv := newServer(t)

	body := createBody(0, 8)
	code, res := do(t, srv, "POST", "/campaigns", body)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, false, res["success"])
	assert.Contains(t, res["message"], "botCount")

	req := httptest.NewRequest("POST", "/campaigns", bytes.NewBufferString("{not json"))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUnknownCampaignIs404(t *testing.T) {
	srv := newServer(t)

	for _, tc := range []struct{ method, path string }{
		{"GET", "/campaigns/nope"},
		{"GET", "/campaigns/nope/activities"},
		{"POST", "/campaigns/nope/cancel"},
		{"POST", "/campaigns/nope/stop-recurring"},
	} {
		code, res := do(t, srv, tc.method, tc.path, nil)
		assert.Equal(t, http.StatusNotFound, code, tc.path)
		assert.Equal(t, false, res["success"], tc.path)
	}
}

func TestRecurringLifecycle(t *testing.T) {
	srv := newServer(t)

	code, res := do(t, srv, "POST", "/campaigns/recurring", createBody(2, 2))
	require.Equal(t, http.StatusCreated, code, res)
	id := res["campaignId"].(string)

	code, res = do(t, srv, "POST", "/campaigns/"+id+"/stop-recurring", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, res["success"])

	// one-off campaigns have no recurrence to stop
	_, res = do(t, srv, "POST", "/campaigns", createBody(1, 1))
	oneOff := res["campaignId"].(string)
	code, _ = do(t, srv, "POST", "/campaigns/"+oneOff+"/stop-recurring", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}
