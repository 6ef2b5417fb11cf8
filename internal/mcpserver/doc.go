// Package mcpserver exposes the session engine as Model Context Protocol
// tools, so MCP clients can open sessions and run queries against them.
//
// Tools are held in an internal registry that can be called directly and
// are also registered with an MCP SDK server for serving over a transport
// such as stdio.
package mcpserver
