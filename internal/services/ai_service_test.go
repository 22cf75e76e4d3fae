package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"codequill/internal/models"
)

func TestGenerate_Success(t *testing.T) {
	var gotBody generateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("ожидался POST, получили %s", r.Method)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("неверный заголовок Authorization: %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("невалидное тело запроса: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]string{"generatedText": "готовый текст"})
	}))
	defer server.Close()

	svc := NewAIService(server.URL, "test-key", "gemini-1.5-flash")

	text, err := svc.Generate(context.Background(), "напиши введение", svc.TemplateByID("blog-intro"))
	if err != nil {
		t.Fatalf("ошибка генерации: %v", err)
	}
	if text != "готовый текст" {
		t.Fatalf("неожиданный текст: %q", text)
	}
	if gotBody.Model != "gemini-1.5-flash" {
		t.Fatalf("модель не передана: %q", gotBody.Model)
	}
	if gotBody.Template == nil || gotBody.Template.ID != "blog-intro" {
		t.Fatal("шаблон не передан")
	}
}

// Ошибка удалённого сервиса должна отдаваться дословно.
func TestGenerate_RemoteErrorVerbatim(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{"error": "quota exceeded"})
	}))
	defer server.Close()

	svc := NewAIService(server.URL, "", "")

	_, err := svc.Generate(context.Background(), "prompt", nil)
	if !errors.Is(err, models.ErrRemoteUnavailable) {
		t.Fatalf("ожидалась ErrRemoteUnavailable, получили %v", err)
	}
	if !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("текст ошибки сервиса потерян: %v", err)
	}
}

func TestGenerate_EmptyPrompt(t *testing.T) {
	svc := NewAIService("http://localhost:1", "", "")

	_, err := svc.Generate(context.Background(), "   ", nil)
	if !errors.Is(err, models.ErrValidation) {
		t.Fatalf("ожидалась ErrValidation, получили %v", err)
	}
}

func TestGenerate_NoEndpoint(t *testing.T) {
	svc := NewAIService("", "", "")

	_, err := svc.Generate(context.Background(), "prompt", nil)
	if !errors.Is(err, models.ErrRemoteUnavailable) {
		t.Fatalf("ожидалась ErrRemoteUnavailable, получили %v", err)
	}
}

func TestTemplateByID(t *testing.T) {
	svc := NewAIService("", "", "")

	if tpl := svc.TemplateByID("code-tutorial"); tpl == nil || tpl.Name != "Code Tutorial" {
		t.Fatalf("шаблон code-tutorial не найден: %+v", tpl)
	}
	if tpl := svc.TemplateByID("nope"); tpl != nil {
		t.Fatal("несуществующий шаблон должен давать nil")
	}
}
