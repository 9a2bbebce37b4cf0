package replay

import (
	"fmt"
	"strconv"

	"github.com/valyala/fastjson"
)

var parserPool fastjson.ParserPool

// SchemaError reports where a document departs from the replay format.
type SchemaError struct {
	Path    string // JSON path of the offending node (e.g. "sessions[0].protocol")
	Message string
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	return fmt.Sprintf("replay schema violation at %s: %s", e.Path, e.Message)
}

func schemaErr(path, format string, args ...any) *SchemaError {
	return &SchemaError{Path: path, Message: fmt.Sprintf(format, args...)}
}

// Validate checks that data is a well-formed replay document.
func Validate(data []byte) error {
	p := parserPool.Get()
	defer parserPool.Put(p)

	root, err := p.ParseBytes(data)
	if err != nil {
		return schemaErr("$", "invalid JSON: %v", err)
	}
	return validateDocument(root)
}

func validateDocument(root *fastjson.Value) error {
	if root.Type() != fastjson.TypeObject {
		return schemaErr("$", "document must be an object")
	}

	meta := root.Get("meta")
	if meta == nil || meta.Type() != fastjson.TypeObject {
		return schemaErr("meta", "missing meta object")
	}
	if v := meta.Get("version"); v == nil || v.Type() != fastjson.TypeString {
		return schemaErr("meta.version", "missing format version")
	}

	sessions := root.Get("sessions")
	if sessions == nil || sessions.Type() != fastjson.TypeArray {
		return schemaErr("sessions", "missing sessions array")
	}
	list, _ := sessions.Array()
	if len(list) == 0 {
		return schemaErr("sessions", "document holds no session")
	}
	for i, s := range list {
		if err := validateSession(fmt.Sprintf("sessions[%d]", i), s); err != nil {
			return err
		}
	}
	return nil
}

func validateSession(path string, s *fastjson.Value) error {
	if s.Type() != fastjson.TypeObject {
		return schemaErr(path, "session must be an object")
	}

	protocol := s.Get("protocol")
	if protocol == nil || protocol.Type() != fastjson.TypeArray {
		return schemaErr(path+".protocol", "missing protocol stack")
	}
	nodes, _ := protocol.Array()
	if len(nodes) == 0 {
		return schemaErr(path+".protocol", "empty protocol stack")
	}
	for i, n := range nodes {
		nodePath := fmt.Sprintf("%s.protocol[%d]", path, i)
		if n.Type() != fastjson.TypeObject {
			return schemaErr(nodePath, "protocol node must be an object")
		}
		if name := n.Get("name"); name == nil || name.Type() != fastjson.TypeString {
			return schemaErr(nodePath+".name", "missing protocol name")
		}
	}

	if ct := s.Get("connection-time"); ct != nil && ct.Type() != fastjson.TypeNumber {
		return schemaErr(path+".connection-time", "must be a number")
	}

	txs := s.Get("transactions")
	if txs == nil || txs.Type() != fastjson.TypeArray {
		return schemaErr(path+".transactions", "missing transactions array")
	}
	list, _ := txs.Array()
	for i, tx := range list {
		if err := validateTransaction(fmt.Sprintf("%s.transactions[%d]", path, i), tx); err != nil {
			return err
		}
	}
	return nil
}

func validateTransaction(path string, tx *fastjson.Value) error {
	if tx.Type() != fastjson.TypeObject {
		return schemaErr(path, "transaction must be an object")
	}
	if v := tx.Get("uuid"); v != nil && v.Type() != fastjson.TypeString {
		return schemaErr(path+".uuid", "must be a string")
	}
	if v := tx.Get("start-time"); v != nil && v.Type() != fastjson.TypeNumber {
		return schemaErr(path+".start-time", "must be a number")
	}
	if tx.Get("client-request") == nil {
		return schemaErr(path+".client-request", "missing client request")
	}

	for _, key := range []string{"client-request", "proxy-request"} {
		if m := tx.Get(key); m != nil {
			if err := validateMessage(path+"."+key, m, true); err != nil {
				return err
			}
		}
	}
	for _, key := range []string{"server-response", "proxy-response"} {
		if m := tx.Get(key); m != nil {
			if err := validateMessage(path+"."+key, m, false); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateMessage(path string, m *fastjson.Value, request bool) error {
	if m.Type() != fastjson.TypeObject {
		return schemaErr(path, "message must be an object")
	}

	if request {
		if v := m.Get("method"); v != nil && v.Type() != fastjson.TypeString {
			return schemaErr(path+".method", "must be a string")
		}
		if v := m.Get("url"); v != nil && v.Type() != fastjson.TypeString {
			return schemaErr(path+".url", "must be a string")
		}
	} else {
		if v := m.Get("status"); v != nil {
			if _, err := v.Int(); err != nil {
				return schemaErr(path+".status", "must be an integer")
			}
		}
	}

	headers := m.Get("headers")
	if headers == nil || headers.Type() != fastjson.TypeObject {
		return schemaErr(path+".headers", "missing headers object")
	}
	if v := headers.Get("encoding"); v == nil || v.Type() != fastjson.TypeString {
		return schemaErr(path+".headers.encoding", "missing header encoding")
	}
	fields := headers.Get("fields")
	if fields == nil || fields.Type() != fastjson.TypeArray {
		return schemaErr(path+".headers.fields", "missing fields array")
	}
	list, _ := fields.Array()
	for i, f := range list {
		pair, err := f.Array()
		if err != nil || len(pair) != 2 ||
			pair[0].Type() != fastjson.TypeString || pair[1].Type() != fastjson.TypeString {
			return schemaErr(path+".headers.fields["+strconv.Itoa(i)+"]", "field must be a [name, value] string pair")
		}
	}

	content := m.Get("content")
	if content == nil || content.Type() != fastjson.TypeObject {
		return schemaErr(path+".content", "missing content object")
	}
	encoding := string(content.GetStringBytes("encoding"))
	switch encoding {
	case EncodingPlain, EncodingBase64:
	default:
		return schemaErr(path+".content.encoding", "unknown encoding %q", encoding)
	}
	if v := content.Get("size"); v == nil || v.Type() != fastjson.TypeNumber {
		return schemaErr(path+".content.size", "missing body size")
	}
	return nil
}
