package answer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"pdfchat/internal/config"
)

type fakeChatModel struct {
	reply    *schema.Message
	err      error
	messages []*schema.Message
	options  *model.Options
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.messages = input
	f.options = model.GetCommonOptions(&model.Options{}, opts...)
	return f.reply, f.err
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

func TestBuildPrompt(t *testing.T) {
	got := BuildPrompt("What is it?", "A widget.")
	want := "Context: A widget.\nQuestion: What is it?\nAnswer:"
	if got != want {
		t.Fatalf("prompt = %q", got)
	}
}

func TestRemoteGeneratorSendsPromptAndOptions(t *testing.T) {
	fake := &fakeChatModel{reply: schema.AssistantMessage("  forty-two \n", nil)}
	gen := NewRemoteGenerator(fake)

	got, err := gen.Answer(context.Background(), "meaning?", "the doc")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if got != "forty-two" {
		t.Fatalf("answer = %q", got)
	}
	if len(fake.messages) != 2 || fake.messages[0].Role != schema.System || fake.messages[0].Content != "You are a helpful assistant." {
		t.Fatalf("unexpected system message: %+v", fake.messages)
	}
	if fake.messages[1].Role != schema.User || fake.messages[1].Content != BuildPrompt("meaning?", "the doc") {
		t.Fatalf("unexpected user message: %+v", fake.messages[1])
	}
	if fake.options.Temperature == nil || *fake.options.Temperature != 0.5 {
		t.Fatalf("temperature not set: %+v", fake.options.Temperature)
	}
	if fake.options.MaxTokens == nil || *fake.options.MaxTokens != 300 {
		t.Fatalf("max tokens not set: %+v", fake.options.MaxTokens)
	}
}

func TestRemoteGeneratorWrapsFailures(t *testing.T) {
	gen := NewRemoteGenerator(&fakeChatModel{err: errors.New(`401 {"error":"bad key"}`)})
	_, err := gen.Answer(context.Background(), "q", "c")
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected GenerationError, got %v", err)
	}
	if genErr.Error() != `401 {"error":"bad key"}` {
		t.Fatalf("remote payload not carried verbatim: %q", genErr.Error())
	}
}

func TestRemoteGeneratorNilReply(t *testing.T) {
	gen := NewRemoteGenerator(&fakeChatModel{})
	var genErr *GenerationError
	if _, err := gen.Answer(context.Background(), "q", "c"); !errors.As(err, &genErr) {
		t.Fatalf("expected GenerationError, got %v", err)
	}
}

func TestNewChatModelValidates(t *testing.T) {
	if _, err := NewChatModel(context.Background(), config.GeneratorConfig{Provider: "openai"}); err == nil {
		t.Fatalf("expected error without api key")
	}
	if _, err := NewChatModel(context.Background(), config.GeneratorConfig{Provider: "nope", APIKey: "k"}); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
	if _, err := NewChatModel(context.Background(), config.GeneratorConfig{Provider: "openai", APIKey: "k", Model: "m", BaseURL: "http://127.0.0.1:1"}); err != nil {
		t.Fatalf("openai model should build offline: %v", err)
	}
}

func TestTruncatePromptKeepsQuestion(t *testing.T) {
	docContext := strings.Repeat("word ", 1000)
	prompt := truncatePrompt("what now?", docContext, 20)
	if n := len(strings.Fields(prompt)); n != 20 {
		t.Fatalf("prompt has %d tokens, want 20", n)
	}
	if !strings.HasSuffix(prompt, "Question: what now?\nAnswer:") {
		t.Fatalf("question or marker lost: %q", prompt)
	}

	short := truncatePrompt("q", "tiny context", 512)
	if short != BuildPrompt("q", "tiny context") {
		t.Fatalf("short context should be untouched: %q", short)
	}
}

func TestStripToAnswer(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{in: "Context: x\nQuestion: y\nAnswer: blue ", want: "blue"},
		{in: "Answer: a Answer: b", want: "b"},
		{in: "  no marker  ", want: "no marker"},
	}
	for _, tc := range cases {
		if got := stripToAnswer(tc.in); got != tc.want {
			t.Errorf("stripToAnswer(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func newFakeOllama(t *testing.T, handler func(w http.ResponseWriter, req map[string]any)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		handler(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLocalGenerator(t *testing.T) {
	var seen map[string]any
	srv := newFakeOllama(t, func(w http.ResponseWriter, req map[string]any) {
		seen = req
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"model":    req["model"],
			"response": "Context: ...\nAnswer: Paris",
			"done":     true,
		})
	})

	gen, err := NewLocalGenerator(config.LocalConfig{Host: srv.URL, Model: "flan-t5"}, srv.Client())
	if err != nil {
		t.Fatalf("new local generator: %v", err)
	}
	got, err := gen.Answer(context.Background(), "Capital?", "France's capital is Paris.")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if got != "Paris" {
		t.Fatalf("answer = %q", got)
	}
	if seen["model"] != "flan-t5" || seen["stream"] != false {
		t.Fatalf("unexpected request: %+v", seen)
	}
	if !strings.HasSuffix(seen["prompt"].(string), "Question: Capital?\nAnswer:") {
		t.Fatalf("unexpected prompt: %q", seen["prompt"])
	}
	opts, _ := seen["options"].(map[string]any)
	if opts["num_predict"] != float64(512) || opts["temperature"] != float64(0) || opts["repeat_last_n"] != float64(2) {
		t.Fatalf("unexpected options: %+v", opts)
	}
	if penalty, _ := opts["repeat_penalty"].(float64); penalty <= 1 {
		t.Fatalf("repeat penalty should discourage repeats: %v", opts["repeat_penalty"])
	}
}

func TestLocalGeneratorError(t *testing.T) {
	srv := newFakeOllama(t, func(w http.ResponseWriter, req map[string]any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"model 'flan-t5' not found"}`))
	})
	gen, err := NewLocalGenerator(config.LocalConfig{Host: srv.URL, Model: "flan-t5"}, srv.Client())
	if err != nil {
		t.Fatalf("new local generator: %v", err)
	}
	_, err = gen.Answer(context.Background(), "q", "c")
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected GenerationError, got %v", err)
	}
	if !strings.Contains(genErr.Error(), "not found") {
		t.Fatalf("backend message lost: %q", genErr.Error())
	}
}

func TestNewLocalGeneratorRequiresModel(t *testing.T) {
	if _, err := NewLocalGenerator(config.LocalConfig{}, nil); err == nil {
		t.Fatalf("expected error without model")
	}
}
