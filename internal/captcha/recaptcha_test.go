package captcha

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func siteVerify(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "secret", r.PostForm.Get("secret"))
		assert.Equal(t, "token", r.PostForm.Get("response"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestReCaptchaScoreThreshold(t *testing.T) {
	cases := []struct {
		name string
		body string
		want bool
	}{
		{"human", `{"success":true,"score":0.9}`, true},
		{"at threshold", `{"success":true,"score":0.4}`, true},
		{"low score", `{"success":true,"score":0.3}`, false},
		{"failed", `{"success":false,"score":0.9,"error-codes":["invalid-input-response"]}`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := siteVerify(t, tc.body)
			v := NewReCaptcha(Config{VerifyURL: srv.URL, Secret: "secret"})

			ok, err := v.Verify(context.Background(), "token", "10.0.0.1")
			require.NoError(t, err)
			assert.Equal(t, tc.want, ok)
		})
	}
}

func TestReCaptchaEmptyToken(t *testing.T) {
	v := NewReCaptcha(Config{VerifyURL: "http://127.0.0.1:0", Secret: "secret"})
	ok, err := v.Verify(context.Background(), " ", "")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestReCaptchaTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	v := NewReCaptcha(Config{VerifyURL: srv.URL, Secret: "secret"})
	_, err := v.Verify(context.Background(), "token", "")
	assert.Error(t, err)
}
