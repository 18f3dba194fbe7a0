package messaging

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func staticResolver(bs BrandSettings) *SettingsResolver {
	return NewSettingsResolver(nil, nil, bs, 0, nil)
}

func testCreds() BrandSettings {
	return BrandSettings{
		AccountSID:     "AC123",
		AuthToken:      "token",
		WhatsAppNumber: "+14155238886",
	}
}

func TestSendFreeform(t *testing.T) {
	var gotForm map[string]string
	var gotPath, gotUser string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		gotForm = map[string]string{}
		for k := range r.PostForm {
			gotForm[k] = r.PostForm.Get(k)
		}
		gotPath = r.URL.Path
		gotUser, _, _ = r.BasicAuth()
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid":"SM123","status":"queued"}`))
	}))
	defer srv.Close()

	sender := NewWhatsAppSender(staticResolver(testCreds()), nil).WithBaseURL(srv.URL)
	brandID := uuid.New()

	if err := sender.SendFreeform(context.Background(), brandID, "+31612345678", "hello"); err != nil {
		t.Fatalf("send freeform: %v", err)
	}
	if gotForm["To"] != "whatsapp:+31612345678" {
		t.Fatalf("expected whatsapp-prefixed To, got %q", gotForm["To"])
	}
	if gotForm["From"] != "whatsapp:+14155238886" {
		t.Fatalf("expected whatsapp-prefixed From, got %q", gotForm["From"])
	}
	if gotForm["Body"] != "hello" {
		t.Fatalf("unexpected body: %q", gotForm["Body"])
	}
	if !strings.Contains(gotPath, "AC123") {
		t.Fatalf("expected account in path, got %q", gotPath)
	}
	if gotUser != "AC123" {
		t.Fatalf("expected basic auth user AC123, got %q", gotUser)
	}
}

type templateForm struct {
	contentSid  string
	contentVars string
	body        string
}

func TestSendTemplate(t *testing.T) {
	var gotForm templateForm
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		gotForm = templateForm{
			contentSid:  r.PostForm.Get("ContentSid"),
			contentVars: r.PostForm.Get("ContentVariables"),
			body:        r.PostForm.Get("Body"),
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid":"SM456"}`))
	}))
	defer srv.Close()

	sender := NewWhatsAppSender(staticResolver(testCreds()), nil).WithBaseURL(srv.URL)

	err := sender.SendTemplate(context.Background(), uuid.New(), "+31612345678", "HX123", map[string]string{"1": "Lisbon"})
	if err != nil {
		t.Fatalf("send template: %v", err)
	}
	if gotForm.contentSid != "HX123" {
		t.Fatalf("expected ContentSid HX123, got %q", gotForm.contentSid)
	}
	if !strings.Contains(gotForm.contentVars, `"1":"Lisbon"`) {
		t.Fatalf("unexpected content variables: %q", gotForm.contentVars)
	}
	if gotForm.body != "" {
		t.Fatal("template send must not carry a Body")
	}
}

func TestSendSurfacesTwilioError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":63016,"message":"outside the allowed window","status":400}`))
	}))
	defer srv.Close()

	sender := NewWhatsAppSender(staticResolver(testCreds()), nil).WithBaseURL(srv.URL)

	err := sender.SendFreeform(context.Background(), uuid.New(), "+31612345678", "hello")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "63016") {
		t.Fatalf("expected twilio error code in message, got %v", err)
	}
}

func TestSendValidation(t *testing.T) {
	sender := NewWhatsAppSender(staticResolver(testCreds()), nil)
	ctx := context.Background()

	if err := sender.SendFreeform(ctx, uuid.New(), "", "hello"); err == nil {
		t.Fatal("expected error for missing recipient")
	}
	if err := sender.SendFreeform(ctx, uuid.New(), "+31612345678", "  "); err == nil {
		t.Fatal("expected error for blank body")
	}
	if err := sender.SendTemplate(ctx, uuid.New(), "+31612345678", "", nil); err == nil {
		t.Fatal("expected error for missing template sid")
	}
}

func TestWhatsappAddress(t *testing.T) {
	if got := whatsappAddress("+31612345678"); got != "whatsapp:+31612345678" {
		t.Fatalf("unexpected address: %q", got)
	}
	if got := whatsappAddress("whatsapp:+31612345678"); got != "whatsapp:+31612345678" {
		t.Fatalf("double prefix: %q", got)
	}
}
