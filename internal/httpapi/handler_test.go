package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"facetrack/internal/attendance"
	"facetrack/internal/attendance/mock"
	"facetrack/internal/auth"
	"facetrack/internal/queue"
)

const (
	testIssuer = "facetrack-test"
	testKey    = "test-signing-key"
)

func newTestRouter(t *testing.T) (*gin.Engine, *queue.InMemory) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	q := queue.NewInMemory(16)
	h := New(attendance.NewService(mock.NewStore()), q, testIssuer, testKey, time.Hour, 24*time.Hour)
	r := gin.New()
	h.Register(r)
	return r, q
}

func do(r *gin.Engine, method, path, token string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func doJSON(r *gin.Engine, method, path, token string, payload any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&buf).Encode(payload); err != nil {
			panic(err)
		}
	}
	return do(r, method, path, token, &buf, "application/json")
}

func decode(t *testing.T, w *httptest.ResponseRecorder, into any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), into); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

func registerDevice(t *testing.T, r *gin.Engine) string {
	t.Helper()
	w := doJSON(r, http.MethodPost, "/devices/register", "", gin.H{"device_id": "kiosk-1"})
	if w.Code != http.StatusCreated {
		t.Fatalf("device register = %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	decode(t, w, &resp)
	if resp.AccessToken == "" {
		t.Fatal("empty access token")
	}
	return resp.AccessToken
}

func enrollForm(t *testing.T, name, nationalID string, companyID int64) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("name", name)
	_ = mw.WriteField("nationalId", nationalID)
	_ = mw.WriteField("title", "clerk")
	_ = mw.WriteField("companyId", fmt.Sprintf("%d", companyID))
	fw, err := mw.CreateFormFile("photo", name+".jpg")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write([]byte("jpeg-bytes-" + name))
	_ = mw.Close()
	return &buf, mw.FormDataContentType()
}

func enrollPerson(t *testing.T, r *gin.Engine, token, name, nationalID string, companyID int64) int64 {
	t.Helper()
	body, ct := enrollForm(t, name, nationalID, companyID)
	w := do(r, http.MethodPost, "/enroll", token, body, ct)
	if w.Code != http.StatusCreated {
		t.Fatalf("enroll %s = %d: %s", name, w.Code, w.Body.String())
	}
	var resp struct {
		ID int64 `json:"id"`
	}
	decode(t, w, &resp)
	return resp.ID
}

func TestRegisterDeviceIssuesValidToken(t *testing.T) {
	r, _ := newTestRouter(t)
	token := registerDevice(t, r)

	claims, err := auth.Parse(token, testKey, testIssuer)
	if err != nil {
		t.Fatalf("issued token does not parse: %v", err)
	}
	if claims.Subject != "kiosk-1" || claims.Role != "kiosk" {
		t.Errorf("claims = %+v, want sub kiosk-1 role kiosk", claims)
	}
}

func TestWriteEndpointsRequireAuth(t *testing.T) {
	r, _ := newTestRouter(t)

	paths := []string{"/companies", "/enroll", "/attendance/entry", "/attendance/exit"}
	for _, p := range paths {
		if w := doJSON(r, http.MethodPost, p, "", gin.H{}); w.Code != http.StatusUnauthorized {
			t.Errorf("POST %s without token = %d, want 401", p, w.Code)
		}
		if w := doJSON(r, http.MethodPost, p, "garbage.token.here", gin.H{}); w.Code != http.StatusUnauthorized {
			t.Errorf("POST %s with bad token = %d, want 401", p, w.Code)
		}
	}
}

func TestCreateAndListCompanies(t *testing.T) {
	r, _ := newTestRouter(t)
	token := registerDevice(t, r)

	w := doJSON(r, http.MethodPost, "/companies", token, gin.H{"name": "Acme"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create company = %d: %s", w.Code, w.Body.String())
	}

	w = do(r, http.MethodGet, "/companies", "", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("list companies = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Acme") {
		t.Errorf("company missing from listing: %s", w.Body.String())
	}
}

func TestEnrollPublishesAndRejectsDuplicates(t *testing.T) {
	r, q := newTestRouter(t)
	token := registerDevice(t, r)

	id := enrollPerson(t, r, token, "Ana", "123", 1)
	if id <= 0 {
		t.Fatalf("enroll id = %d", id)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	msgs, _ := q.Consume(ctx)
	select {
	case msg := <-msgs:
		if msg.Type != queue.TypeEnroll {
			t.Errorf("published type = %q, want %q", msg.Type, queue.TypeEnroll)
		}
	case <-time.After(time.Second):
		t.Error("no enrollment message published")
	}

	body, ct := enrollForm(t, "Ana Again", "123", 1)
	w := do(r, http.MethodPost, "/enroll", token, body, ct)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("duplicate enroll = %d, want 400: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "already enrolled") {
		t.Errorf("duplicate error message = %s", w.Body.String())
	}
}

func TestRosterAndPhotoAndPersonID(t *testing.T) {
	r, _ := newTestRouter(t)
	token := registerDevice(t, r)
	id := enrollPerson(t, r, token, "Ana", "123", 1)

	w := do(r, http.MethodGet, "/roster?companyId=1", "", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("roster = %d", w.Code)
	}
	var roster struct {
		Labels     []string `json:"labels"`
		TotalUsers int      `json:"totalUsers"`
	}
	decode(t, w, &roster)
	if roster.TotalUsers != 1 || len(roster.Labels) != 1 || roster.Labels[0] != "Ana" {
		t.Errorf("roster = %+v, want exactly [Ana]", roster)
	}

	w = do(r, http.MethodGet, "/enrollment-photo?companyId=1&label=Ana", "", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("photo = %d", w.Code)
	}
	if w.Body.String() != "jpeg-bytes-Ana" {
		t.Errorf("photo bytes = %q", w.Body.String())
	}

	w = do(r, http.MethodGet, "/person-id?companyId=1&label=Ana", "", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("person-id = %d", w.Code)
	}
	var pid struct {
		ID int64 `json:"id"`
	}
	decode(t, w, &pid)
	if pid.ID != id {
		t.Errorf("person id = %d, want %d", pid.ID, id)
	}

	// Empty roster for an unknown company is a 200, not an error.
	w = do(r, http.MethodGet, "/roster?companyId=99", "", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("empty roster = %d, want 200", w.Code)
	}
	decode(t, w, &roster)
	if roster.TotalUsers != 0 {
		t.Errorf("empty roster totalUsers = %d", roster.TotalUsers)
	}
}

func TestAttendanceDayFlow(t *testing.T) {
	r, _ := newTestRouter(t)
	token := registerDevice(t, r)
	id := enrollPerson(t, r, token, "Ana", "123", 1)

	// The exists endpoints answer for the server's current day, so the flow
	// uses now-based timestamps.
	ts := time.Now().Format(time.RFC3339)
	entry := gin.H{"personId": id, "companyId": 1, "timestamp": ts}

	existsPath := fmt.Sprintf("/attendance/entry-exists?personId=%d&companyId=1", id)
	w := do(r, http.MethodGet, existsPath, "", nil, "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "false") {
		t.Fatalf("entry-exists before entry = %d %s", w.Code, w.Body.String())
	}

	if w = doJSON(r, http.MethodPost, "/attendance/entry", token, entry); w.Code != http.StatusOK {
		t.Fatalf("entry = %d: %s", w.Code, w.Body.String())
	}
	if w = doJSON(r, http.MethodPost, "/attendance/entry", token, entry); w.Code != http.StatusConflict {
		t.Fatalf("second entry = %d, want 409: %s", w.Code, w.Body.String())
	}

	w = do(r, http.MethodGet, existsPath, "", nil, "")
	if !strings.Contains(w.Body.String(), "true") {
		t.Fatalf("entry-exists after entry = %s", w.Body.String())
	}

	if w = doJSON(r, http.MethodPost, "/attendance/exit", token, entry); w.Code != http.StatusOK {
		t.Fatalf("exit = %d: %s", w.Code, w.Body.String())
	}
	if w = doJSON(r, http.MethodPost, "/attendance/exit", token, entry); w.Code != http.StatusConflict {
		t.Fatalf("second exit = %d, want 409: %s", w.Code, w.Body.String())
	}

	w = do(r, http.MethodGet, fmt.Sprintf("/attendance/exit-exists?personId=%d&companyId=1", id), "", nil, "")
	if !strings.Contains(w.Body.String(), "true") {
		t.Fatalf("exit-exists after exit = %s", w.Body.String())
	}

	w = do(r, http.MethodGet, "/attendance/records?companyId=1", "", nil, "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "entry_at") {
		t.Fatalf("records = %d %s", w.Code, w.Body.String())
	}
}

func TestExitWithoutEntryConflicts(t *testing.T) {
	r, _ := newTestRouter(t)
	token := registerDevice(t, r)
	id := enrollPerson(t, r, token, "Ana", "123", 1)

	body := gin.H{"personId": id, "companyId": 1, "timestamp": time.Now().Format(time.RFC3339)}
	if w := doJSON(r, http.MethodPost, "/attendance/exit", token, body); w.Code != http.StatusConflict {
		t.Fatalf("exit without entry = %d, want 409: %s", w.Code, w.Body.String())
	}
}

func TestAttendanceRejectsBadInput(t *testing.T) {
	r, _ := newTestRouter(t)
	token := registerDevice(t, r)

	w := doJSON(r, http.MethodPost, "/attendance/entry", token, gin.H{
		"personId": 1, "companyId": 1, "timestamp": "yesterday at nine",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad timestamp = %d, want 400", w.Code)
	}

	w = doJSON(r, http.MethodPost, "/attendance/entry", token, gin.H{"personId": 1})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing fields = %d, want 400", w.Code)
	}

	if w = do(r, http.MethodGet, "/roster", "", nil, ""); w.Code != http.StatusBadRequest {
		t.Errorf("roster without companyId = %d, want 400", w.Code)
	}
}
