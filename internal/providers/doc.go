// Package providers abstracts the LLM backends that act as scribe's
// text-quality scoring and rewrite engine.
//
// Each provider implements [Completer]: it sends a system and user prompt and
// returns the raw completion. Anthropic, OpenAI and Ollama/LM Studio are
// called over their HTTP APIs; Gemini goes through google.golang.org/genai.
// Rate-limit and server errors are retried with exponential backoff;
// authentication errors are surfaced immediately via [IsAuthError].
package providers
