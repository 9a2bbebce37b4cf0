// Package replay renders captured sessions as replay documents and
// checks written documents against the replay format.
//
// # Document Shape
//
//	{
//	  "meta": {"version": "1.0"},
//	  "sessions": [{
//	    "protocol": [{"name": "http", "version": "1.1"}, {"name": "tcp"}, {"name": "ip", "version": "4"}],
//	    "connection-time": 1700000000000000000,
//	    "transactions": [{
//	      "start-time": 1700000000000000000,
//	      "uuid": "...",
//	      "client-request":  {"method": "GET", "url": "/", "version": "1.1", "headers": {...}, "content": {...}},
//	      "proxy-request":   {...},
//	      "server-response": {"status": 200, "reason": "OK", "headers": {...}, "content": {...}},
//	      "proxy-response":  {...}
//	    }]
//	  }]
//	}
//
// Headers are written as {"encoding": "esc_json", "fields": [[name, value], ...]}
// in wire order. Content records the body size and, when bodies are dumped,
// the data ("plain" for UTF-8, "base64" otherwise) plus a truncation flag.
//
// # Checking Files
//
// Validate checks a document's structure. Verify additionally checks
// redaction of sensitive fields and the session's protocol stack, the way
// the replay verification tool does before replaying a capture.
package replay
