package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/evalIA/property-import-service/internal/ai"
	"github.com/evalIA/property-import-service/internal/auth"
	"github.com/evalIA/property-import-service/internal/config"
	"github.com/evalIA/property-import-service/internal/db"
	"github.com/evalIA/property-import-service/internal/models"
	"github.com/evalIA/property-import-service/internal/services"
)

const roleText = "ROLE D'EVALUATION FONCIERE Municipalite de Longueuil. Matricule 8041-23-4567-8-000-0000. " +
	"Adresse 123 Rue Principale. Valeur de l'immeuble 547 200 $."

const llmReply = `{"properties":[{"address":"123 Rue Principale, Longueuil, H1H 1H1","matricule":"8041-23-4567-8-000-0000","totalValue":"547 200 $"}]}`

// plainText treats the upload as the document text
type plainText struct{}

func (plainText) ExtractText(data []byte) (string, float64, error) {
	return string(data), 0, nil
}

type stubProvider struct{}

func (stubProvider) Name() string { return "stub" }

func (stubProvider) Complete(ctx context.Context, system, user string) (string, error) {
	return llmReply, nil
}

type testServer struct {
	handler http.Handler
	batches *services.BatchCoordinator
	token   string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret!"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{
		Server: config.ServerConfig{MaxUploadMB: 1},
		AI: config.AIConfig{
			OpenAI:           config.ProviderConfig{APIKey: "sk-test"},
			DefaultProvider:  "openai",
			ProviderPriority: []string{"openai", "gemini"},
		},
		Import: config.ImportConfig{MinTextLength: 50, MaxBatchFiles: 5},
		Users: []config.User{{
			ID:           "u1",
			Username:     "marie",
			PasswordHash: string(hash),
			Name:         "Marie Tremblay",
		}},
	}
	if err := auth.Init(config.AuthConfig{JWTSecret: "0123456789abcdef0123456789abcdef"}); err != nil {
		t.Fatal(err)
	}

	llm := ai.NewClient(cfg.AI).WithProviderFactory(func(ctx context.Context, creds models.Credentials) (ai.Provider, error) {
		return stubProvider{}, nil
	})
	importer := services.NewImporter(plainText{}, llm, db.NewMemoryStore(), services.NewSessionStore(50), cfg.Import.MinTextLength)
	batches := services.NewBatchCoordinator(importer, cfg.Import.MaxBatchFiles)
	h := NewHandler(cfg, importer, batches)

	ts := &testServer{handler: h.Routes(), batches: batches}
	ts.token = ts.login(t)
	return ts
}

func (ts *testServer) login(t *testing.T) string {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/login", "application/json", strings.NewReader(`{"username":"marie","password":"s3cret!"}`), false)
	if rec.Code != http.StatusOK {
		t.Fatalf("Login failed: %d %s", rec.Code, rec.Body.String())
	}
	var resp auth.LoginResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	return resp.Token
}

func (ts *testServer) do(t *testing.T, method, path, contentType string, body *strings.Reader, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, body)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+ts.token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

type upload struct {
	name string
	data string
}

func multipartBody(t *testing.T, field string, files []upload, values map[string][]string) (string, *strings.Reader) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		part, err := mw.CreateFormFile(field, f.name)
		if err != nil {
			t.Fatal(err)
		}
		part.Write([]byte(f.data))
	}
	for k, vs := range values {
		for _, v := range vs {
			mw.WriteField(k, v)
		}
	}
	mw.Close()
	return mw.FormDataContentType(), strings.NewReader(buf.String())
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("Invalid JSON body %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealthIsPublic(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/health", "", nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("Health = %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("Expected a request id header")
	}
	body := decode(t, rec)
	if body["status"] != "healthy" || body["version"] != Version {
		t.Errorf("Unexpected health %v", body)
	}
	database, _ := body["database"].(map[string]interface{})
	if database["backend"] != "memory" || database["available"] != false {
		t.Errorf("Expected the in-memory fallback, got %v", database)
	}
}

func TestRoutesRequireToken(t *testing.T) {
	ts := newTestServer(t)
	for _, path := range []string{"/api/imports", "/api/document-types", "/api/properties", "/api/batches/current"} {
		if rec := ts.do(t, http.MethodGet, path, "", nil, false); rec.Code != http.StatusUnauthorized {
			t.Errorf("GET %s without token = %d, want 401", path, rec.Code)
		}
	}
}

func TestListDocumentTypes(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/api/document-types", "", nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d", rec.Code)
	}
	types := decode(t, rec)["documentTypes"].([]interface{})
	if len(types) != len(models.AllDocumentTypes()) {
		t.Errorf("Expected %d document types, got %d", len(models.AllDocumentTypes()), len(types))
	}
}

func TestImportReviewAndComplete(t *testing.T) {
	ts := newTestServer(t)

	ct, body := multipartBody(t, "file", []upload{{"role.pdf", roleText}}, map[string][]string{"documentType": {"role_foncier"}})
	rec := ts.do(t, http.MethodPost, "/api/imports", ct, body, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("Import = %d %s", rec.Code, rec.Body.String())
	}
	resp := decode(t, rec)
	session := resp["session"].(map[string]interface{})
	if resp["success"] != true || session["status"] != "review" {
		t.Fatalf("Expected review session, got %v", resp)
	}
	id := session["id"].(string)
	data := session["extractedData"].(map[string]interface{})
	if data["totalValue"] != 547200.0 {
		t.Errorf("Expected normalized total value, got %v", data["totalValue"])
	}

	// Completing before choosing an action conflicts
	rec = ts.do(t, http.MethodPost, "/api/imports/"+id+"/extractions/0/complete", "", nil, true)
	if rec.Code != http.StatusConflict {
		t.Errorf("Complete without action = %d, want 409", rec.Code)
	}

	rec = ts.do(t, http.MethodPut, "/api/imports/"+id+"/extractions/0", "application/json", strings.NewReader(`{"action":"create"}`), true)
	if rec.Code != http.StatusOK {
		t.Fatalf("Resolve = %d %s", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, http.MethodPost, "/api/imports/"+id+"/extractions/0/complete", "", nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("Complete = %d %s", rec.Code, rec.Body.String())
	}
	propertyID := decode(t, rec)["propertyId"].(string)

	rec = ts.do(t, http.MethodPost, "/api/imports/"+id+"/extractions/0/complete", "", nil, true)
	if rec.Code != http.StatusConflict {
		t.Errorf("Second complete = %d, want 409", rec.Code)
	}

	rec = ts.do(t, http.MethodGet, "/api/properties/"+propertyID, "", nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("Get property = %d", rec.Code)
	}
	fields := decode(t, rec)["property"].(map[string]interface{})["fields"].(map[string]interface{})
	if fields["city"] != "Longueuil" || fields["assessedValue"] != 547200.0 || fields["source"] != "import" {
		t.Errorf("Unexpected property fields %v", fields)
	}

	rec = ts.do(t, http.MethodGet, "/api/imports", "", nil, true)
	if decode(t, rec)["count"] != 1.0 {
		t.Errorf("Expected one session listed, got %s", rec.Body.String())
	}
	rec = ts.do(t, http.MethodGet, "/api/imports/"+id, "", nil, true)
	if rec.Code != http.StatusOK {
		t.Errorf("Get import = %d", rec.Code)
	}
	rec = ts.do(t, http.MethodDelete, "/api/imports/"+id, "", nil, true)
	if rec.Code != http.StatusOK {
		t.Errorf("Delete import = %d", rec.Code)
	}
	if rec = ts.do(t, http.MethodGet, "/api/imports/"+id, "", nil, true); rec.Code != http.StatusNotFound {
		t.Errorf("Get deleted import = %d, want 404", rec.Code)
	}
}

func TestImportErrors(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name    string
		data    string
		values  map[string][]string
		want    int
		wantErr string
	}{
		{"unknown type", roleText, map[string][]string{"documentType": {"facture"}}, http.StatusBadRequest, "unknown document type"},
		{"provider without key", roleText, map[string][]string{"documentType": {"autre"}, "provider": {"gemini"}}, http.StatusBadRequest, "gemini"},
		{"too large", strings.Repeat("x", 2*1024*1024), map[string][]string{"documentType": {"autre"}}, http.StatusBadRequest, "too large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ct, body := multipartBody(t, "file", []upload{{"doc.pdf", tt.data}}, tt.values)
			rec := ts.do(t, http.MethodPost, "/api/imports", ct, body, true)
			if rec.Code != tt.want {
				t.Fatalf("Status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
			if msg, _ := decode(t, rec)["error"].(string); !strings.Contains(msg, tt.wantErr) {
				t.Errorf("Error %q does not mention %q", msg, tt.wantErr)
			}
		})
	}

	if rec := ts.do(t, http.MethodGet, "/api/imports/nope", "", nil, true); rec.Code != http.StatusNotFound {
		t.Errorf("Unknown session = %d, want 404", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, "/api/properties/nope", "", nil, true); rec.Code != http.StatusNotFound {
		t.Errorf("Unknown property = %d, want 404", rec.Code)
	}
}

func TestFailedImportIsOK(t *testing.T) {
	ts := newTestServer(t)
	ct, body := multipartBody(t, "file", []upload{{"scan.pdf", "Page 1"}}, map[string][]string{"documentType": {"autre"}})
	rec := ts.do(t, http.MethodPost, "/api/imports", ct, body, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d", rec.Code)
	}
	resp := decode(t, rec)
	session := resp["session"].(map[string]interface{})
	if resp["success"] != false || session["status"] != "failed" {
		t.Errorf("Expected failed session, got %v", resp)
	}
	errs := session["errors"].([]interface{})
	if len(errs) != 1 || !strings.Contains(errs[0].(string), "too short") {
		t.Errorf("Unexpected errors %v", errs)
	}
}

func TestBatchEndpoints(t *testing.T) {
	ts := newTestServer(t)

	if rec := ts.do(t, http.MethodGet, "/api/batches/current/report", "", nil, true); rec.Code != http.StatusNotFound {
		t.Errorf("Report without batch = %d, want 404", rec.Code)
	}
	if rec := ts.do(t, http.MethodDelete, "/api/batches/current", "", nil, true); rec.Code != http.StatusNotFound {
		t.Errorf("Cancel without batch = %d, want 404", rec.Code)
	}

	ct, body := multipartBody(t, "files",
		[]upload{{"a.pdf", roleText}, {"b.pdf", "Page 1"}},
		map[string][]string{"documentTypes": {"role_foncier"}, "mergeMode": {"new"}},
	)
	rec := ts.do(t, http.MethodPost, "/api/batches", ct, body, true)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("Start batch = %d %s", rec.Code, rec.Body.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ts.batches.Wait(ctx, "u1"); err != nil {
		t.Fatalf("Batch did not finish: %v", err)
	}

	rec = ts.do(t, http.MethodGet, "/api/batches/current", "", nil, true)
	progress := decode(t, rec)["progress"].(map[string]interface{})
	if len(progress["completedFiles"].([]interface{})) != 1 || len(progress["failedFiles"].([]interface{})) != 1 {
		t.Errorf("Unexpected progress %v", progress)
	}

	rec = ts.do(t, http.MethodGet, "/api/batches/current/report", "", nil, true)
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != xlsxContentType || rec.Body.Len() == 0 {
		t.Errorf("Report = %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}

	rec = ts.do(t, http.MethodGet, "/api/properties", "", nil, true)
	if decode(t, rec)["count"] != 1.0 {
		t.Errorf("Expected one property from the batch, got %s", rec.Body.String())
	}
}

func TestStartBatchValidation(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		files  []upload
		values map[string][]string
		want   int
	}{
		{"type count mismatch", []upload{{"a.pdf", roleText}, {"b.pdf", roleText}, {"c.pdf", roleText}}, map[string][]string{"documentTypes": {"autre", "autre"}}, http.StatusBadRequest},
		{"unknown type", []upload{{"a.pdf", roleText}}, map[string][]string{"documentTypes": {"facture"}}, http.StatusBadRequest},
		{"merge without target", []upload{{"a.pdf", roleText}}, map[string][]string{"documentTypes": {"autre"}, "mergeMode": {"existing"}}, http.StatusBadRequest},
		{"missing target", []upload{{"a.pdf", roleText}}, map[string][]string{"documentTypes": {"autre"}, "mergeMode": {"existing"}, "targetId": {"nope"}}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ct, body := multipartBody(t, "files", tt.files, tt.values)
			if rec := ts.do(t, http.MethodPost, "/api/batches", ct, body, true); rec.Code != tt.want {
				t.Errorf("Status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := RequestIDMiddleware(RecoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("Status = %d, want 500", rec.Code)
	}
	if body := decode(t, rec); body["request_id"] != "req-42" {
		t.Errorf("Expected request id echoed, got %v", body)
	}
}
