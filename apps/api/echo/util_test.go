package echoapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/myschool/backend/apps/api/echo"
	"github.com/myschool/backend/core/user"
	"github.com/myschool/backend/services/roster"
	"github.com/myschool/backend/testutil"
)

func setup(t *testing.T) (*testutil.Env, echoapi.Server) {
	t.Helper()
	env := testutil.NewEnv()
	validator := user.NewValidator()
	srv := echoapi.NewServer(echoapi.ServerDeps{
		Conf:      env.Conf,
		Logger:    env.Logger,
		UserSvc:   env.UserSvc,
		RosterSvc: rostersvc.NewService(env.UserSvc, validator, env.Logger),
		Validator: validator,
	})
	return env, srv
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	wantCode int
	wantData []byte
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	return req, rec
}

func serve(app http.Handler, method, path string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newRequest(method, path, data...)
	app.ServeHTTP(rec, req)
	return rec
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

// checkError compares the status, message and code of an error response, ignoring per-field messages.
func checkError(t *testing.T, rec *httptest.ResponseRecorder, wantCode int, want echoapi.ErrorResponse) {
	t.Helper()
	assert.Equal(t, wantCode, rec.Code, rec.Body.String())
	var got echoapi.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("json.Unmarshal(%s): %v", rec.Body.String(), err)
	}
	assert.Equal(t, want.Error, got.Error)
	assert.Equal(t, want.Code, got.Code)
}

type successResponse struct {
	Message string          `json:"message"`
	Error   bool            `json:"error"`
	Data    json.RawMessage `json:"data"`
}

func decodeSuccess(t *testing.T, rec *httptest.ResponseRecorder, data interface{}) successResponse {
	t.Helper()
	var resp successResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json.Unmarshal(%s): %v", rec.Body.String(), err)
	}
	if data != nil && len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, data); err != nil {
			t.Fatalf("json.Unmarshal(%s): %v", resp.Data, err)
		}
	}
	return resp
}

type payload map[string]interface{}
