package logger

import (
	"io"
	"log"
	"strings"
	"sync"
)

var (
	llmMu  sync.Mutex
	llmLog *log.Logger
)

// SetLLMWriter routes raw model prompts/responses to w. Nil disables the
// transcript log entirely (the default outside debug mode).
func SetLLMWriter(w io.Writer) {
	llmMu.Lock()
	defer llmMu.Unlock()
	if w == nil {
		llmLog = nil
		return
	}
	llmLog = log.New(w, "", log.LstdFlags)
}

type llmSection struct {
	Title string
	Body  string
}

func logLLM(kind, role, stage string, sections []llmSection) {
	llmMu.Lock()
	logger := llmLog
	llmMu.Unlock()
	if logger == nil {
		return
	}
	var b strings.Builder
	b.WriteString("[LLM]")
	if kind != "" {
		b.WriteString("[")
		b.WriteString(kind)
		b.WriteString("]")
	}
	if role != "" {
		b.WriteString("[")
		b.WriteString(role)
		b.WriteString("]")
	}
	if stage != "" {
		b.WriteString("[")
		b.WriteString(stage)
		b.WriteString("]")
	}
	b.WriteString("\n")
	for _, sec := range sections {
		t := strings.TrimSpace(sec.Title)
		if t == "" {
			t = "CONTENT"
		}
		b.WriteString("--- ")
		b.WriteString(t)
		b.WriteString(" ---\n")
		body := sec.Body
		b.WriteString(body)
		if !strings.HasSuffix(body, "\n") {
			b.WriteString("\n")
		}
	}
	b.WriteString("=====\n")
	logger.Print(b.String())
}

func LogLLMRequest(role, stage, systemPrompt, userPrompt string) {
	logLLM("request", role, stage, []llmSection{
		{Title: "SYSTEM", Body: systemPrompt},
		{Title: "USER", Body: userPrompt},
	})
}

func LogLLMResponse(role, stage, raw string) {
	logLLM("response", role, stage, []llmSection{{Title: "RAW", Body: raw}})
}
