package mcpserver

// QueryGuide describes block types, inline markup and execution results for
// LLM consumers that edit the session.
const QueryGuide = `# Float Block Guide

The session is a tree of blocks under the block ` + "`root`" + `. Blocks are never
deleted or moved; new blocks are appended under a parent, context blocks are
prepended under root.

## Block types

| type     | limit | executable | purpose                                   |
|----------|-------|------------|-------------------------------------------|
| text     | 500   | no         | notes and injected context                |
| query    | 1000  | yes        | natural language or pseudo-code query     |
| dispatch | 500   | yes        | a system event or action to simulate      |

Limits count Unicode code points. Injected context blocks allow 1000.

## Inline markup

- ` + "`[[Title]]`" + ` links a reference node by title.
- ` + "`[tag::name]`" + ` tags the block.
- ` + "`[marker::{kind::value}]`" + ` and bare ` + "`{kind::value}`" + ` are markers.

## Execution

` + "`execute_block`" + ` sends the block content verbatim, together with a JSON
snapshot of every reference node, to the configured provider and waits for
the answer. The provider is asked for a single JSON object.

- On success the block ` + "`result`" + ` holds the parsed JSON and ` + "`lastRun`" + ` is set.
- A response that is not JSON is kept as
  ` + "`{\"error\":\"PARSE_FAILURE\",\"raw\":\"...\"}`" + `.
- When the provider cannot be reached, or no API key is configured, the block
  ` + "`error`" + ` is ` + "`CORE_CONNECTION_FAILED`" + ` and ` + "`result`" + ` is empty.
- A block that is already running rejects a second execution.

## Example

` + "```" + `
query {
  nodes(filter: { marker: "{ctx::sys}" }) {
    id
    title
  }
}
` + "```" + `
`
