// Package ai defines the embedding capability interface consumed by the
// document pipeline, along with its configuration.
//
// The worker treats the embedder as a replaceable external collaborator:
// production deployments use the OpenAI-compatible implementation in
// ai/openai, tests use the deterministic mock in ai/mock.
package ai
