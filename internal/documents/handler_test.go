package documents_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"contract-analyzer/internal/bootstrap"
	"contract-analyzer/internal/shared/auth"
	"contract-analyzer/internal/shared/config"
)

func newApp(t *testing.T) *bootstrap.App {
	t.Helper()
	t.Setenv("JWT_SECRET", "documents-secret")
	gin.SetMode(gin.TestMode)

	cfg := config.Config{
		Port:            "0",
		CORSAllowOrigin: []string{"http://localhost:5173"},
		LocalStoreDir:   t.TempDir(),
		Env:             "dev",
		ObjectStoreType: "local",
		LLMProvider:     "placeholder",
	}
	app, err := bootstrap.Build(cfg)
	if err != nil {
		t.Fatalf("bootstrap build: %v", err)
	}
	t.Cleanup(app.Close)
	return app
}

func tokenFor(t *testing.T, userID string) string {
	t.Helper()
	token, err := auth.SignJWT(auth.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: userID}})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return token
}

func uploadRequest(t *testing.T, fileName string, content []byte, token string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	fileWriter, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fileWriter.Write(content); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestDocumentsUploadAndList(t *testing.T) {
	app := newApp(t)
	router := app.Router
	token := tokenFor(t, "user-1")

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, uploadRequest(t, "lease.pdf", []byte("%PDF-1.4\nlease body"), token))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var created struct {
		DocumentID string `json:"documentId"`
		FileName   string `json:"fileName"`
		MimeType   string `json:"mimeType"`
		Status     string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.DocumentID == "" {
		t.Fatalf("expected documentId, got empty")
	}
	// CreateFormFile declares application/octet-stream, so the type is sniffed.
	if created.MimeType != "application/pdf" {
		t.Fatalf("expected sniffed application/pdf, got %q", created.MimeType)
	}
	if created.Status != "uploaded" {
		t.Fatalf("expected status uploaded, got %q", created.Status)
	}

	reqList := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
	reqList.Header.Set("Authorization", "Bearer "+token)
	respList := httptest.NewRecorder()
	router.ServeHTTP(respList, reqList)
	if respList.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", respList.Code)
	}
	var list []struct {
		DocumentID string `json:"documentId"`
	}
	if err := json.NewDecoder(respList.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 || list[0].DocumentID != created.DocumentID {
		t.Fatalf("unexpected list %+v", list)
	}

	// Another user sees nothing.
	reqOther := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
	reqOther.Header.Set("Authorization", "Bearer "+tokenFor(t, "user-2"))
	respOther := httptest.NewRecorder()
	router.ServeHTTP(respOther, reqOther)
	if strings.TrimSpace(respOther.Body.String()) != "[]" {
		t.Fatalf("expected empty list for other user, got %s", respOther.Body.String())
	}
}

func TestDocumentsUploadRequiresAuth(t *testing.T) {
	app := newApp(t)
	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, uploadRequest(t, "a.pdf", []byte("%PDF"), ""))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestDocumentsUploadRequiresFile(t *testing.T) {
	app := newApp(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", strings.NewReader(""))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, "user-1"))
	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestDocumentsUploadTooLarge(t *testing.T) {
	app := newApp(t)
	big := bytes.Repeat([]byte("a"), 11<<20)
	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, uploadRequest(t, "big.pdf", big, tokenFor(t, "user-1")))
	if resp.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", resp.Code)
	}
}
