// Package agent provides the decision loop of the hybrid assistant.
//
// For every question the agent builds a fresh session, seeds it with a system
// prompt describing the discovered capabilities, and then asks the model, one
// step at a time, for a single JSON directive:
//
//	{"action":"retrieve","arguments":{"query":"..."}}
//	{"action":"tool","name":"fetch-weather","arguments":{"city":"Delhi"}}
//	{"action":"prompt","name":"review-code","arguments":{...}}
//	{"action":"resource","uri":"config://app"}
//	{"action":"final","answer":"..."}
//
// Directives are parsed leniently (see ParseDirective). Output that cannot be
// parsed is answered with a corrective system turn, never with an abort.
//
// # Fallbacks
//
// Capability directives are replaced by a retrieval over the latest user turn
// when the question asks for retrieval only, or when no capability server is
// configured. In the second case the model is also told, once, to stick to
// retrieve and final. A failed resource read is always followed by such a
// retrieval.
//
// # Step budget
//
// The loop runs at most Config.MaxSteps iterations. If no final directive
// arrives in time, the accumulated context is handed to a plain completion
// and its answer is returned with Result.Forced set.
//
// # Subpackages
//
// agent/terminal: Line-oriented front-end. Every line typed is a separate
// question with its own session.
//
// agent/acp: Agent Client Protocol server for IDE integration, streaming the
// turns of each prompt as session/update notifications.
package agent
