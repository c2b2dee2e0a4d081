package eventfilter

import "testing"

func TestDecode_Valid(t *testing.T) {
	e, err := Decode([]byte(`{"in_reply_to_status_id":null,"lang":"en","text":"hi"}`))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if _, ok := e["in_reply_to_status_id"]; !ok {
		t.Error("decoded event missing in_reply_to_status_id key")
	}
}

func TestDecode_Invalid(t *testing.T) {
	if _, err := Decode([]byte("not json")); err == nil {
		t.Fatal("Decode() should error on invalid JSON")
	}
}

func TestAllow_RequiresInReplyKey(t *testing.T) {
	e := Event{"lang": "en"}
	if Allow(e, LegacyAllowedLanguages) {
		t.Error("Allow() = true without in_reply_to_status_id, want false")
	}
}

func TestAllow_NullValueStillCounts(t *testing.T) {
	e := Event{"in_reply_to_status_id": nil, "lang": "en"}
	if !Allow(e, LegacyAllowedLanguages) {
		t.Error("Allow() = false for null in_reply_to_status_id, want true (presence only)")
	}
}

func TestAllow_DisallowedLanguage(t *testing.T) {
	e := Event{"in_reply_to_status_id": 1, "lang": "fr"}
	if Allow(e, LegacyAllowedLanguages) {
		t.Error("Allow() = true for disallowed language, want false")
	}
}

func TestAllow_AllowedLanguage(t *testing.T) {
	e := Event{"in_reply_to_status_id": 1, "lang": "no"}
	if !Allow(e, LegacyAllowedLanguages) {
		t.Error("Allow() = false for allowed language, want true")
	}
}

func TestAllow_MissingLang(t *testing.T) {
	e := Event{"in_reply_to_status_id": 1}
	if Allow(e, LegacyAllowedLanguages) {
		t.Error("Allow() = true without lang field, want false")
	}
}

func TestAllow_ConfiguredLanguagesOverrideLegacyDefault(t *testing.T) {
	e := Event{"in_reply_to_status_id": 1, "lang": "fr"}
	if !Allow(e, []string{"fr", "de"}) {
		t.Error("Allow() = false for lang in configured set, want true")
	}
}

func TestAllow_NilEvent(t *testing.T) {
	if Allow(nil, LegacyAllowedLanguages) {
		t.Error("Allow(nil) = true, want false")
	}
}

func TestText(t *testing.T) {
	e := Event{"text": "I love cats"}
	if got := Text(e); got != "I love cats" {
		t.Errorf("Text() = %q, want %q", got, "I love cats")
	}
	if got := Text(Event{}); got != "" {
		t.Errorf("Text() on missing field = %q, want empty", got)
	}
}
