// Package acp implements the Agent Client Protocol (ACP) front-end for the
// hybrid agent. Editors such as Zed talk to it with newline-delimited
// JSON-RPC over stdio; cmd/ws_bridge serves the same protocol over a
// WebSocket.
//
// The implementation supports the following ACP methods:
// - initialize: returns protocol version and capabilities
// - session/new: creates a session with a random id
// - session/prompt: answers the prompt text as one independent question
// - session/cancel: stops the prompt running in a session
//
// While a prompt runs, session/update notifications report each directive as
// a tool_call, the turns it produces as tool_call_update, and the final
// answer as an agent_message_chunk.
package acp
