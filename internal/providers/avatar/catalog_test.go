package avatar

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"studio/internal/jobs"
)

func catalogServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/avatars", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.Header.Get("X-API-KEY") != "hg-key" {
			t.Errorf("request = %s key %q", r.Method, r.Header.Get("X-API-KEY"))
		}
		_, _ = w.Write([]byte(`{"error":null,"data":{"avatars":[
			{"avatar_id":"Abigail_expressive","avatar_name":"Abigail","gender":"female","preview_image_url":"https://p/a.webp"},
			{"avatar_id":"tp-1","name":"Custom","avatar_type":"talking_photo"}]}}`))
	})
	mux.HandleFunc("/v2/voices", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("language"); got != "es" {
			t.Errorf("language = %q", got)
		}
		_, _ = w.Write([]byte(`{"data":[
			{"voice_id":"v-es","name":"Lucia","gender":"female","language":"es","accent":"castilian","preview_audio":"https://p/l.mp3"}]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestListAvatars(t *testing.T) {
	srv := catalogServer(t)
	a := newAdapter(t, srv.URL+"/v2")
	orch := jobs.New(jobs.Options{HTTPClient: srv.Client(), SubmitTimeout: 5 * time.Second})

	avatars, err := a.ListAvatars(context.Background(), orch)
	if err != nil {
		t.Fatalf("ListAvatars returned error: %v", err)
	}
	if len(avatars) != 2 {
		t.Fatalf("avatars = %+v", avatars)
	}
	if avatars[0].ID != "Abigail_expressive" || avatars[0].Name != "Abigail" || avatars[0].Type != "standard" {
		t.Fatalf("first avatar = %+v", avatars[0])
	}
	if avatars[1].Name != "Custom" || avatars[1].Type != "talking_photo" {
		t.Fatalf("second avatar = %+v", avatars[1])
	}
}

func TestListVoices(t *testing.T) {
	srv := catalogServer(t)
	a := newAdapter(t, srv.URL+"/v2")
	orch := jobs.New(jobs.Options{HTTPClient: srv.Client(), SubmitTimeout: 5 * time.Second})

	voices, err := a.ListVoices(context.Background(), orch, " es ")
	if err != nil {
		t.Fatalf("ListVoices returned error: %v", err)
	}
	want := VoiceInfo{ID: "v-es", Name: "Lucia", Gender: "female", Language: "es", Accent: "castilian", PreviewAudioURL: "https://p/l.mp3"}
	if len(voices) != 1 || voices[0] != want {
		t.Fatalf("voices = %+v", voices)
	}
}

func TestListVoicesCallOmitsEmptyLanguage(t *testing.T) {
	a := newAdapter(t, "https://api.heygen.test/v2/")
	if got := a.ListVoicesCall("").URL; got != "https://api.heygen.test/v2/voices" {
		t.Fatalf("url = %q", got)
	}
	if got := a.ListVoicesCall("pt-BR").URL; got != "https://api.heygen.test/v2/voices?language=pt-BR" {
		t.Fatalf("url = %q", got)
	}
}

func TestCatalogErrorsAreClassified(t *testing.T) {
	a := newAdapter(t, "")
	tests := []struct {
		name string
		resp jobs.Response
		kind jobs.Kind
	}{
		{name: "auth", resp: jobs.Response{StatusCode: http.StatusUnauthorized, Body: []byte(`{"error":"bad key"}`)}, kind: jobs.KindAuth},
		{name: "rate limited", resp: jobs.Response{StatusCode: http.StatusTooManyRequests, Body: []byte(`{}`)}, kind: jobs.KindRateLimited},
		{name: "server", resp: jobs.Response{StatusCode: http.StatusBadGateway, Body: []byte(`oops`)}, kind: jobs.KindTransient},
		{name: "malformed list", resp: jobs.Response{StatusCode: http.StatusOK, Body: []byte(`{"data":{"avatars":"none"}}`)}, kind: jobs.KindFatal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := a.ParseAvatars(tt.resp); jobs.KindOf(err) != tt.kind {
				t.Fatalf("err = %v, want kind %s", err, tt.kind)
			}
		})
	}

	voices, err := a.ParseVoices(jobs.Response{StatusCode: http.StatusOK, Body: []byte(`{"data":{"voices":null}}`)})
	if err != nil || len(voices) != 0 {
		t.Fatalf("empty voices = %+v, %v", voices, err)
	}
}
