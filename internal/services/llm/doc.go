// Package llm provides an OpenAI-compatible chat client used for plate
// recognition and purchase summaries.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.CompleteJSON: send system/user prompts, receive a JSON response.
// Client.DescribeImage: send an instruction plus one image URL, receive text.
// Client.HealthCheck: verify API key and model availability.
// DecodeLLMJSON: decode JSON from a reply, tolerating code fences and chatter.
//
// # Failures
//
// Each call issues exactly one request. HTTP errors surface as
// *HTTPStatusError; empty replies include a response snippet. Callers decide
// whether a failure is fatal; the enrichment stages treat it as no data.
package llm
