package httpkit

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func fixedSigner() *OAuth1Signer {
	s := NewOAuth1Signer("ck", "cs", "at", "ats")
	s.nonce = func() string { return "fixednonce" }
	s.now = func() time.Time { return time.Unix(1700000000, 0) }
	return s
}

func TestOAuth1Signer_SetsAuthorizationHeader(t *testing.T) {
	s := fixedSigner()
	req, _ := http.NewRequest("GET", "https://stream.twitter.com/1.1/statuses/sample.json?delimited=length", nil)

	if err := s.Sign(req); err != nil {
		t.Fatalf("Sign() error: %v", err)
	}

	auth := req.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "OAuth ") {
		t.Fatalf("Authorization header = %q, want OAuth prefix", auth)
	}
	for _, want := range []string{
		`oauth_consumer_key="ck"`,
		`oauth_nonce="fixednonce"`,
		`oauth_signature_method="HMAC-SHA1"`,
		`oauth_timestamp="1700000000"`,
		`oauth_token="at"`,
		`oauth_version="1.0"`,
		`oauth_signature=`,
	} {
		if !strings.Contains(auth, want) {
			t.Errorf("Authorization header %q missing %q", auth, want)
		}
	}
}

func TestOAuth1Signer_DeterministicSignature(t *testing.T) {
	s1 := fixedSigner()
	s2 := fixedSigner()

	req1, _ := http.NewRequest("POST", "https://stream.twitter.com/1.1/statuses/filter.json?delimited=length&track=cats%2Cdogs", nil)
	req2, _ := http.NewRequest("POST", "https://stream.twitter.com/1.1/statuses/filter.json?delimited=length&track=cats%2Cdogs", nil)

	if err := s1.Sign(req1); err != nil {
		t.Fatal(err)
	}
	if err := s2.Sign(req2); err != nil {
		t.Fatal(err)
	}

	if req1.Header.Get("Authorization") != req2.Header.Get("Authorization") {
		t.Error("same request/params/nonce/timestamp produced different signatures")
	}
}

func TestOAuth1Signer_DifferentParamsDifferentSignature(t *testing.T) {
	s := fixedSigner()
	req1, _ := http.NewRequest("GET", "https://stream.twitter.com/1.1/statuses/sample.json?delimited=length", nil)
	req2, _ := http.NewRequest("GET", "https://stream.twitter.com/1.1/statuses/sample.json?delimited=length&track=cats", nil)

	if err := s.Sign(req1); err != nil {
		t.Fatal(err)
	}
	if err := s.Sign(req2); err != nil {
		t.Fatal(err)
	}

	if req1.Header.Get("Authorization") == req2.Header.Get("Authorization") {
		t.Error("different params should produce different signatures")
	}
}

func TestSigningTransport_SignsBeforeSend(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(WithOAuth1(fixedSigner()), WithTimeout(5*time.Second))
	resp, err := c.Get(srv.URL + "?delimited=length")
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	resp.Body.Close()

	if !strings.HasPrefix(gotAuth, "OAuth ") {
		t.Errorf("server saw Authorization = %q, want OAuth-signed header", gotAuth)
	}
}

func TestPercentEncode_Unreserved(t *testing.T) {
	cases := map[string]string{
		"abcXYZ019-._~": "abcXYZ019-._~",
		"cats,dogs":     "cats%2Cdogs",
		"a b":           "a%20b",
	}
	for in, want := range cases {
		if got := percentEncode(in); got != want {
			t.Errorf("percentEncode(%q) = %q, want %q", in, got, want)
		}
	}
}
