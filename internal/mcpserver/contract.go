package mcpserver

// CaptureRecordFormat describes the JSON written for every request the
// capture listener receives.
const CaptureRecordFormat = `# Capture Record Format

The capture listener writes one JSON file per received request into its
debug directory. Records are never overwritten.

## File name

` + "```" + `
<received_at UTC, 20060102T150405.000000000Z>_<METHOD>_<ULID>.json
` + "```" + `

Names sort by arrival time. The ULID keeps names unique when two requests
arrive within the same instant.

## Fields

| Field         | Type                | Notes                                   |
|---------------|---------------------|-----------------------------------------|
| ` + "`id`" + `          | string              | ULID, also the file name suffix          |
| ` + "`method`" + `      | string              | HTTP method as received                  |
| ` + "`url`" + `         | string              | request URI including the query string   |
| ` + "`path`" + `        | string              | URL path only                            |
| ` + "`remote_addr`" + ` | string              | client address                           |
| ` + "`headers`" + `     | object of string[]  | all request headers                      |
| ` + "`body`" + `        | string              | full request body                        |
| ` + "`received_at`" + ` | RFC 3339 timestamp  | UTC                                      |

## Example

` + "```" + `json
{
  "id": "01J9Z6Q4YB3M7R2D8K5N0PXW1T",
  "method": "POST",
  "url": "/callback?code=abc",
  "path": "/callback",
  "remote_addr": "127.0.0.1:53122",
  "headers": {"Content-Type": ["application/json"]},
  "body": "{\"ok\":true}",
  "received_at": "2026-10-17T09:12:44.123456789Z"
}
` + "```" + `
`
