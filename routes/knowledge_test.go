package routes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

// The QA handler must refuse blank questions before touching any backing
// service; deps are left zero-valued so reaching one would fail the test.
func TestQARejectsBlankQuestion(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/knowledge/qa", handleQA(KnowledgeDeps{}))

	for _, question := range []string{"   ", "\t", " \n "} {
		body, _ := json.Marshal(map[string]any{
			"user_id":  "user-1",
			"question": question,
		})
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/knowledge/qa", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("question %q: status = %d, want %d", question, w.Code, http.StatusBadRequest)
		}
	}
}

func TestQARejectsMissingFields(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/knowledge/qa", handleQA(KnowledgeDeps{}))

	for _, payload := range []map[string]any{
		{"user_id": "user-1"},
		{"question": "what is a graph?"},
		{},
	} {
		body, _ := json.Marshal(payload)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/knowledge/qa", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("payload %v: status = %d, want %d", payload, w.Code, http.StatusBadRequest)
		}
	}
}
