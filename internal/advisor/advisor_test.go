package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
	openaiopt "github.com/openai/openai-go/v3/option"
	"github.com/rs/zerolog"

	"lobbi-trader/internal/domain"
)

func TestParseAdvice(t *testing.T) {
	tests := []struct {
		in     string
		sell   bool
		reason string
	}{
		{"SELL, momentum faded", true, "momentum faded"},
		{"  sell,  dumping, fast ", true, "dumping, fast"},
		{"SELL", true, ""},
		{"HOLD", false, ""},
		{"I think you should SELL", false, ""},
		{"", false, ""},
	}
	for _, tt := range tests {
		got := ParseAdvice(tt.in)
		if got.ShouldSell != tt.sell || got.Reason != tt.reason {
			t.Errorf("ParseAdvice(%q) = %+v, want sell=%v reason=%q", tt.in, got, tt.sell, tt.reason)
		}
	}
}

func TestPrompt_CarriesPositionContext(t *testing.T) {
	pnl := 12.34
	p := Prompt("ABC", "fresh listing", domain.PositionQuote{UnrealizedPnlPercent: &pnl, HoldSeconds: 185})
	for _, want := range []string{"ABC", "fresh listing", "PnL 12.3%", "held 3m", `"SELL" or "HOLD"`} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q:\n%s", want, p)
		}
	}

	p = Prompt("ABC", "x", domain.PositionQuote{})
	if !strings.Contains(p, "PnL 0.0%") {
		t.Errorf("unknown pnl must render as 0.0%%:\n%s", p)
	}
}

type fakeCompleter struct {
	reply string
	err   error
}

func (f fakeCompleter) Complete(context.Context, string) (string, error) { return f.reply, f.err }

func TestLLM_ErrorHolds(t *testing.T) {
	l := NewLLM("test", fakeCompleter{reply: "SELL", err: errors.New("timeout")}, zerolog.Nop())
	if adv := l.AskShouldSell(context.Background(), "ABC", "", domain.PositionQuote{}); adv.ShouldSell {
		t.Fatal("advisor error must read as hold")
	}

	l = NewLLM("test", fakeCompleter{reply: "SELL, rug risk"}, zerolog.Nop())
	adv := l.AskShouldSell(context.Background(), "ABC", "", domain.PositionQuote{})
	if !adv.ShouldSell || adv.Reason != "rug risk" {
		t.Fatalf("unexpected advice %+v", adv)
	}
}

func TestNew_SelectsProvider(t *testing.T) {
	if New(Config{}, zerolog.Nop()).Enabled() {
		t.Error("no keys must yield a disabled advisor")
	}
	a := New(Config{AnthropicKey: "a", OpenAIKey: "o"}, zerolog.Nop()).(*LLM)
	if a.provider != "anthropic" {
		t.Errorf("expected anthropic preferred, got %s", a.provider)
	}
	o := New(Config{OpenAIKey: "o"}, zerolog.Nop()).(*LLM)
	if o.provider != "openai" {
		t.Errorf("expected openai, got %s", o.provider)
	}
}

func TestAnthropic_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/messages") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["model"] != DefaultAnthropicModel || body["max_tokens"] != float64(maxTokens) {
			t.Errorf("unexpected request %v", body)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-5-haiku-20241022",
			"content":[{"type":"text","text":"HOLD"}],"stop_reason":"end_turn",
			"usage":{"input_tokens":10,"output_tokens":1}}`))
	}))
	defer server.Close()

	c := NewAnthropic("k", "", anthropicopt.WithBaseURL(server.URL), anthropicopt.WithMaxRetries(0))
	text, err := c.Complete(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if text != "HOLD" {
		t.Errorf("expected HOLD, got %q", text)
	}
}

func TestOpenAI_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o-mini",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"SELL, volume dried up"}}]}`))
	}))
	defer server.Close()

	c := NewOpenAI("k", "", openaiopt.WithBaseURL(server.URL), openaiopt.WithMaxRetries(0))
	text, err := c.Complete(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if adv := ParseAdvice(text); !adv.ShouldSell || adv.Reason != "volume dried up" {
		t.Errorf("unexpected advice from %q: %+v", text, adv)
	}
}
