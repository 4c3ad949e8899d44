// Package openai provides an ai.Embedder implementation backed by any
// OpenAI-compatible embeddings API (OpenAI, Ollama, LocalAI, vLLM).
package openai
