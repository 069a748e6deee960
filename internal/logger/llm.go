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

// SetLLMWriter points the LLM transcript dump at w. Nil disables dumping.
func SetLLMWriter(w io.Writer) {
	llmMu.Lock()
	defer llmMu.Unlock()
	if w == nil {
		llmLog = nil
		return
	}
	llmLog = log.New(w, "", log.LstdFlags)
}

func dumpLLM(purpose string, sections [][2]string) {
	llmMu.Lock()
	l := llmLog
	llmMu.Unlock()
	if l == nil {
		return
	}
	var b strings.Builder
	b.WriteString("[LLM][")
	b.WriteString(purpose)
	b.WriteString("]\n")
	for _, sec := range sections {
		b.WriteString("--- ")
		b.WriteString(sec[0])
		b.WriteString(" ---\n")
		b.WriteString(sec[1])
		if !strings.HasSuffix(sec[1], "\n") {
			b.WriteString("\n")
		}
	}
	b.WriteString("=====\n")
	l.Print(b.String())
}

// LogLLMRequest records the prompts sent for one model call.
func LogLLMRequest(purpose, systemPrompt, userPrompt string) {
	dumpLLM(purpose+"-request", [][2]string{
		{"SYSTEM", systemPrompt},
		{"USER", userPrompt},
	})
}

// LogLLMResponse records the raw model output for one call.
func LogLLMResponse(purpose, raw string) {
	dumpLLM(purpose+"-response", [][2]string{{"RAW", raw}})
}
